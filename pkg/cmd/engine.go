package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/dukex/shopflow/pkg/actions"
	"github.com/dukex/shopflow/pkg/actions/email"
	"github.com/dukex/shopflow/pkg/asyncevents"
	"github.com/dukex/shopflow/pkg/batch"
	"github.com/dukex/shopflow/pkg/datalayer"
	"github.com/dukex/shopflow/pkg/datatypes"
	"github.com/dukex/shopflow/pkg/entities"
	"github.com/dukex/shopflow/pkg/eventbus"
	"github.com/dukex/shopflow/pkg/options"
	"github.com/dukex/shopflow/pkg/otelhelper"
	"github.com/dukex/shopflow/pkg/persistence"
	"github.com/dukex/shopflow/pkg/queue"
	"github.com/dukex/shopflow/pkg/registry"
	"github.com/dukex/shopflow/pkg/rules"
	"github.com/dukex/shopflow/pkg/scheduler"
	"github.com/dukex/shopflow/pkg/services"
	"github.com/dukex/shopflow/pkg/triggers"
	"github.com/dukex/shopflow/pkg/variables"
	"github.com/dukex/shopflow/pkg/workflow"
)

// Recurring engine jobs.
const (
	QueueJob   = "queue_run"
	CleanupJob = "queue_cleanup"
	RefreshJob = "hooks_refresh"
)

const webhookTimeout = 30 * time.Second

type Config struct {
	DatabaseURL  string
	EventBus     string
	KafkaBrokers []string
	OptionsURL   string
	LockURL      string
	FixturesPath string
	PluginsPath  string
	ServiceName  string
	Tracing      bool

	// Optional overrides, mostly for tests.
	Mailer    email.Mailer
	Scheduler scheduler.Scheduler
	Now       func() time.Time
}

// Engine holds every long-lived component of a shopflow process.
type Engine struct {
	Logger      *slog.Logger
	Store       *entities.MemoryStore
	Persistence persistence.Persistence
	Settings    *options.Settings
	Bus         eventbus.Bus
	Registry    *registry.Registry
	Codec       *datalayer.Codec
	Service     *workflow.Service
	Dispatcher  *workflow.Dispatcher
	Active      *workflow.ActiveTriggers
	Hooks       *triggers.Hooks
	Events      *asyncevents.Manager
	Scheduler   scheduler.Scheduler
	Worker      *queue.Worker
	Batch       *batch.Runner
	Workflows   *services.Workflow
	Queue       *services.Queue
	Logs        *services.Logs
	Tracer      trace.Tracer

	now     func() time.Time
	closers []func(ctx context.Context) error
}

type lifecycle interface {
	Start()
	Stop()
}

// NewEngine builds the engine described by cfg. Nothing runs until Start.
func NewEngine(ctx context.Context, logger *slog.Logger, cfg Config) (*Engine, error) {
	e := &Engine{Logger: logger, now: cfg.Now}
	if e.now == nil {
		e.now = time.Now
	}

	if cfg.ServiceName == "" {
		cfg.ServiceName = "shopflow"
	}

	err := e.build(ctx, cfg)
	if err != nil {
		closeErr := e.Close(ctx)
		if closeErr != nil {
			logger.ErrorContext(ctx, "Failed to release partially built engine", "error", closeErr)
		}

		return nil, err
	}

	return e, nil
}

func (e *Engine) build(ctx context.Context, cfg Config) error {
	e.Store = entities.NewMemoryStore()
	if cfg.FixturesPath != "" {
		err := e.Store.LoadFixtures(cfg.FixturesPath)
		if err != nil {
			return fmt.Errorf("failed to load fixtures: %w", err)
		}
	}

	p, err := NewPersistence(ctx, e.Logger, cfg.DatabaseURL)
	if err != nil {
		return err
	}

	e.Persistence = p
	e.closers = append(e.closers, p.Close)

	store, err := NewOptionStore(ctx, cfg.OptionsURL)
	if err != nil {
		return fmt.Errorf("failed to open option store: %w", err)
	}

	e.closers = append(e.closers, func(context.Context) error { return store.Close() })
	e.Settings = options.NewSettings(e.Logger, store)

	e.Bus, err = NewEventBus(e.Logger, cfg.EventBus, cfg.ServiceName, cfg.KafkaBrokers)
	if err != nil {
		return err
	}

	e.closers = append(e.closers, func(context.Context) error { return e.Bus.Close() })

	e.Tracer = otelhelper.Noop()
	if cfg.Tracing {
		tracer, shutdown, err := otelhelper.NewTracer(ctx, cfg.ServiceName)
		if err != nil {
			return fmt.Errorf("failed to initialize tracer: %w", err)
		}

		e.Tracer = tracer
		e.closers = append(e.closers, shutdown)
	}

	e.Scheduler = cfg.Scheduler
	if e.Scheduler == nil {
		locker, closeLocker, err := NewLocker(cfg.LockURL, store, e.now)
		if err != nil {
			return fmt.Errorf("failed to open cadence locker: %w", err)
		}

		e.closers = append(e.closers, func(context.Context) error { return closeLocker() })

		guard := scheduler.NewGuard(e.Logger, locker, e.Settings.QueueLockCooldown)
		e.Scheduler = scheduler.NewCron(e.Logger, scheduler.WithGuard(guard))
	}

	e.Codec = datalayer.NewCodec(e.Logger, datatypes.Catalog(e.Store), datalayer.NewMemo())

	mailer := cfg.Mailer
	if mailer == nil {
		mailer = email.NewLogMailer(e.Logger)
	}

	e.Registry, err = NewRegistry(ctx, e.Logger, Components{
		Store:    e.Store,
		Writer:   e.Store,
		Queue:    e.Persistence.QueueRepository(),
		Codec:    e.Codec,
		Settings: e.Settings,
		Mailer:   mailer,
		Client:   &http.Client{Timeout: webhookTimeout},
		Now:      e.now,
	}, cfg.PluginsPath)
	if err != nil {
		return err
	}

	e.wire()

	return nil
}

func (e *Engine) wire() {
	location := func() *time.Location { return e.Settings.Location(context.Background()) }
	resolver := variables.NewResolver(e.Logger, location)

	e.Service = workflow.NewService(workflow.Deps{
		Logger:      e.Logger,
		Persistence: e.Persistence,
		Triggers:    e.Registry,
		Rules:       rules.NewEngine(e.Logger, e.Registry),
		Pipeline:    actions.NewPipeline(e.Logger, e.Registry, resolver),
		Codec:       e.Codec,
		Resolver:    resolver,
		Settings:    e.Settings,
		Tracer:      e.Tracer,
		Now:         e.now,
	})
	e.Dispatcher = workflow.NewDispatcher(e.Logger, e.Service, e.Persistence.WorkflowRepository())
	e.Active = workflow.NewActiveTriggers(e.Persistence.WorkflowRepository(), e.Settings)
	e.Hooks = triggers.NewHooks(e.Logger, e.Bus, e.Dispatcher, e.Registry, e.Active)
	e.Events = asyncevents.NewManager(asyncevents.Deps{
		Bus:       e.Bus,
		Store:     e.Store,
		Writer:    e.Store,
		Scheduler: e.Scheduler,
		Settings:  e.Settings,
		Logger:    e.Logger,
		Now:       e.now,
	}, e.Registry.AsyncEvents(), nil, e.Registry, e.Active)

	e.Worker = queue.NewWorker(e.Logger, e.Persistence, e.Service, e.Registry, e.Settings, e.Tracer)
	e.Batch = batch.NewRunner(batch.Deps{
		Logger:     e.Logger,
		Workflows:  e.Persistence.WorkflowRepository(),
		Triggers:   e.Registry,
		Dispatcher: e.Dispatcher,
		Scheduler:  e.Scheduler,
		Settings:   e.Settings,
		Tracer:     e.Tracer,
		Now:        e.now,
	})

	e.Workflows = services.NewWorkflow(e.Logger, e.Persistence, e.Registry, e.Settings, e.Active, e.Service, e.Batch)
	e.Queue = services.NewQueue(e.Logger, e.Persistence, e.now)
	e.Logs = services.NewLogs(e.Persistence, e.now)
}

// Start schedules the recurring engine jobs, activates the hooks and async
// events of enabled workflows and starts consuming events.
func (e *Engine) Start(ctx context.Context) error {
	if w, ok := e.Bus.(*eventbus.Watermill); ok {
		err := w.Start(ctx)
		if err != nil {
			return fmt.Errorf("failed to start event bus: %w", err)
		}
	}

	e.Scheduler.Register(QueueJob, e.runQueue)
	e.Scheduler.Register(CleanupJob, e.cleanup)
	e.Scheduler.Register(RefreshJob, e.refresh)

	recurring := []struct {
		job     string
		cadence scheduler.Cadence
	}{
		{QueueJob, scheduler.EveryMinute},
		{CleanupJob, scheduler.Daily},
		{RefreshJob, scheduler.EveryFiveMinutes},
	}

	for _, r := range recurring {
		err := e.Scheduler.ScheduleRecurring(ctx, r.cadence, r.job)
		if err != nil {
			return fmt.Errorf("failed to schedule %s: %w", r.job, err)
		}
	}

	err := e.Batch.Register(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to register batch jobs: %w", err)
	}

	err = e.Refresh(ctx)
	if err != nil {
		return err
	}

	if l, ok := e.Scheduler.(lifecycle); ok {
		l.Start()
	}

	e.Logger.InfoContext(ctx, "Engine started")

	return nil
}

// Refresh picks up triggers and async events that became required since the
// last call. Already active ones are left alone.
func (e *Engine) Refresh(ctx context.Context) error {
	events, err := e.Events.InitRequiredEvents(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize async events: %w", err)
	}

	hooks, err := e.Hooks.Register(ctx)
	if err != nil {
		return fmt.Errorf("failed to register trigger hooks: %w", err)
	}

	if len(events) > 0 || len(hooks) > 0 {
		e.Logger.InfoContext(ctx, "Activated triggers", "async_events", events, "triggers", hooks)
	}

	return nil
}

// Close stops the scheduler and releases every opened resource, newest
// first.
func (e *Engine) Close(ctx context.Context) error {
	if l, ok := e.Scheduler.(lifecycle); ok {
		l.Stop()
	}

	var errs []error

	for i := len(e.closers) - 1; i >= 0; i-- {
		err := e.closers[i](ctx)
		if err != nil {
			errs = append(errs, err)
		}
	}

	e.closers = nil

	return errors.Join(errs...)
}

func (e *Engine) runQueue(ctx context.Context, _ map[string]any) error {
	n, err := e.Worker.Run(ctx)
	if n > 0 {
		e.Logger.DebugContext(ctx, "Processed queued events", "count", n)
	}

	return err
}

func (e *Engine) cleanup(ctx context.Context, _ map[string]any) error {
	n, err := e.Worker.Cleanup(ctx)
	if err != nil {
		return err
	}

	if n > 0 {
		e.Logger.InfoContext(ctx, "Removed expired failed events", "count", n)
	}

	return nil
}

func (e *Engine) refresh(ctx context.Context, _ map[string]any) error {
	return e.Refresh(ctx)
}
