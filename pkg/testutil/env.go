package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dukex/shopflow/pkg/actions"
	"github.com/dukex/shopflow/pkg/actions/clearqueue"
	"github.com/dukex/shopflow/pkg/actions/customertags"
	"github.com/dukex/shopflow/pkg/actions/email"
	actionlog "github.com/dukex/shopflow/pkg/actions/log"
	"github.com/dukex/shopflow/pkg/actions/ordernote"
	"github.com/dukex/shopflow/pkg/actions/orderstatus"
	"github.com/dukex/shopflow/pkg/actions/subscriptionstatus"
	"github.com/dukex/shopflow/pkg/asyncevents"
	"github.com/dukex/shopflow/pkg/datalayer"
	"github.com/dukex/shopflow/pkg/datatypes"
	"github.com/dukex/shopflow/pkg/entities"
	"github.com/dukex/shopflow/pkg/eventbus"
	"github.com/dukex/shopflow/pkg/log"
	"github.com/dukex/shopflow/pkg/models"
	"github.com/dukex/shopflow/pkg/options"
	"github.com/dukex/shopflow/pkg/persistence"
	"github.com/dukex/shopflow/pkg/persistence/file"
	"github.com/dukex/shopflow/pkg/registry"
	"github.com/dukex/shopflow/pkg/rules"
	"github.com/dukex/shopflow/pkg/scheduler"
	"github.com/dukex/shopflow/pkg/triggers"
	"github.com/dukex/shopflow/pkg/variables"
	"github.com/dukex/shopflow/pkg/workflow"
)

// Start is the clock of a new Env.
var Start = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

// Mailer records sent messages.
type Mailer struct {
	mu   sync.Mutex
	sent []email.Message
}

func (m *Mailer) Send(_ context.Context, msg email.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sent = append(m.sent, msg)

	return nil
}

func (m *Mailer) Sent() []email.Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]email.Message(nil), m.sent...)
}

// Env is a complete engine over in-memory collaborators and file
// persistence in a temporary directory. Its clock only moves on Advance.
type Env struct {
	Store       *entities.MemoryStore
	Persistence *file.Persistence
	Settings    *options.Settings
	Codec       *datalayer.Codec
	Resolver    *variables.Resolver
	Triggers    triggers.Set
	Rules       *rules.Engine
	Pipeline    *actions.Pipeline
	Mailer      *Mailer
	Service     *workflow.Service
	Dispatcher  *workflow.Dispatcher
	Active      *workflow.ActiveTriggers
	Registry    *registry.Registry
	Scheduler   *scheduler.Manual
	Bus         *eventbus.Local

	mu  sync.Mutex
	now time.Time
}

func NewEnv(t testing.TB) *Env {
	t.Helper()

	logger := log.Discard()
	e := &Env{
		Store:       entities.NewMemoryStore(),
		Persistence: file.NewPersistence(t.TempDir()),
		Settings:    options.NewSettings(logger, options.NewMemory()),
		Mailer:      &Mailer{},
		Scheduler:   scheduler.NewManual(logger),
		Bus:         eventbus.NewLocal(),
		now:         Start,
	}

	Seed(e.Store, e.now)

	e.Codec = datalayer.NewCodec(logger, datatypes.Catalog(e.Store), datalayer.NewMemo())
	e.Resolver = variables.NewResolver(logger, func() *time.Location { return e.Settings.Location(context.Background()) })
	e.Triggers = triggers.NewSet(triggers.Builtin(triggers.Env{
		Store:    e.Store,
		Codec:    e.Codec,
		Logger:   logger,
		Location: e.Settings.Location,
		Now:      e.Now,
	})...)
	ruleList := rules.Builtin(func() (time.Time, *time.Location) {
		return e.Now(), e.Settings.Location(context.Background())
	})
	actionList := []actions.Action{
		email.New(e.Mailer),
		orderstatus.New(e.Store),
		ordernote.New(e.Store),
		customertags.New(e.Store),
		subscriptionstatus.New(e.Store),
		clearqueue.New(e.Persistence.QueueRepository(), e.Codec),
		actionlog.New(logger),
	}

	e.Rules = rules.NewEngine(logger, rules.NewSet(ruleList...))
	e.Pipeline = actions.NewPipeline(logger, actions.NewSet(actionList...), e.Resolver)

	e.Registry = registry.NewRegistry(logger)
	for _, dt := range datatypes.Catalog(e.Store) {
		e.Registry.RegisterDataType(dt)
	}

	for _, rule := range ruleList {
		e.Registry.RegisterRule(rule)
	}

	for _, action := range actionList {
		e.Registry.RegisterAction(action)
	}

	for _, name := range e.Triggers.Names() {
		require.NoError(t, e.Registry.RegisterTrigger(e.Triggers[name]))
	}

	for _, event := range asyncevents.Builtin() {
		e.Registry.RegisterAsyncEvent(event)
	}

	e.Service = workflow.NewService(workflow.Deps{
		Logger:      logger,
		Persistence: e.Persistence,
		Triggers:    e.Triggers,
		Rules:       e.Rules,
		Pipeline:    e.Pipeline,
		Codec:       e.Codec,
		Resolver:    e.Resolver,
		Settings:    e.Settings,
		Now:         e.Now,
	})
	e.Dispatcher = workflow.NewDispatcher(logger, e.Service, e.Persistence.WorkflowRepository())
	e.Active = workflow.NewActiveTriggers(e.Persistence.WorkflowRepository(), e.Settings)

	return e
}

func (e *Env) Now() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.now
}

// Advance moves the clock forward by d.
func (e *Env) Advance(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.now = e.now.Add(d)
}

func (e *Env) SaveWorkflow(t testing.TB, wf *models.Workflow) *models.Workflow {
	t.Helper()

	require.NoError(t, e.Persistence.WorkflowRepository().Save(context.Background(), wf))

	return wf
}

func (e *Env) Logs(t testing.TB) []*models.Log {
	t.Helper()

	logs, err := e.Persistence.LogRepository().List(context.Background(), persistence.ListLogsOptions{})
	require.NoError(t, err)

	return logs
}

func (e *Env) Queued(t testing.TB) []*models.QueuedEvent {
	t.Helper()

	events, err := e.Persistence.QueueRepository().List(context.Background(), persistence.ListQueueOptions{})
	require.NoError(t, err)

	return events
}

// OrderLayer builds the data layer of a manual order run.
func (e *Env) OrderLayer(t testing.TB, id string) *datalayer.DataLayer {
	t.Helper()

	trigger, ok := e.Triggers[triggers.ManualOrderName].(triggers.ManualTrigger)
	require.True(t, ok)

	dl, err := trigger.DataLayer(context.Background(), id)
	require.NoError(t, err)

	return dl
}
