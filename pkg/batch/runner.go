// Package batch drives batched triggers. A recurring tick finds the batched
// workflows due today, or schedules their start at the time of day, and pages
// through their items with async jobs, so no single job handles more than one
// page.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/shopflow/pkg/models"
	"github.com/dukex/shopflow/pkg/options"
	"github.com/dukex/shopflow/pkg/otelhelper"
	"github.com/dukex/shopflow/pkg/persistence"
	"github.com/dukex/shopflow/pkg/scheduler"
	"github.com/dukex/shopflow/pkg/triggers"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Job names.
const (
	TickJob  = "batch_tick"
	PageJob  = "batch_page"
	ItemsJob = "batch_items"
)

// Cadence is how often due batched workflows are looked for.
const Cadence = scheduler.EveryFifteenMinutes

var ErrInvalidArgs = errors.New("invalid batch job arguments")

// Deps are the collaborators of a Runner.
type Deps struct {
	Logger     *slog.Logger
	Workflows  persistence.WorkflowRepository
	Triggers   triggers.Lookup
	Dispatcher triggers.Dispatcher
	Scheduler  scheduler.Scheduler
	Settings   *options.Settings
	Tracer     trace.Tracer
	Now        func() time.Time
}

type Runner struct {
	logger     *slog.Logger
	workflows  persistence.WorkflowRepository
	triggers   triggers.Lookup
	dispatcher triggers.Dispatcher
	scheduler  scheduler.Scheduler
	settings   *options.Settings
	tracer     trace.Tracer
	now        func() time.Time
}

func NewRunner(deps Deps) *Runner {
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	return &Runner{
		logger:     deps.Logger.With("module", "batch"),
		workflows:  deps.Workflows,
		triggers:   deps.Triggers,
		dispatcher: deps.Dispatcher,
		scheduler:  deps.Scheduler,
		settings:   deps.Settings,
		tracer:     deps.Tracer,
		now:        now,
	}
}

// Register adds the batch jobs to the scheduler. When tick is non-nil it
// replaces Tick as the recurring job, so callers can wrap it in a cadence
// lock.
func (r *Runner) Register(ctx context.Context, tick scheduler.Job) error {
	if tick == nil {
		tick = r.Tick
	}

	r.scheduler.Register(TickJob, tick)
	r.scheduler.Register(PageJob, r.Page)
	r.scheduler.Register(ItemsJob, r.Items)

	return r.scheduler.ScheduleRecurring(ctx, Cadence, TickJob)
}

// LastRunKey is the option holding the local day a workflow last started a
// batch.
func LastRunKey(workflowID string) string {
	return "batch_last_run_" + workflowID
}

// Tick starts a batch for every active batched workflow whose schedule is
// due and that has not started one today. A workflow due later today gets a
// single start job at its time of day instead of waiting for a later tick.
func (r *Runner) Tick(ctx context.Context, _ map[string]any) error {
	ctx, span := otelhelper.StartSpan(ctx, r.tracer, "batch.tick",
		attribute.String(otelhelper.CadenceKey, string(Cadence)),
	)
	defer span.End()

	workflows, err := r.workflows.List(ctx, persistence.ListWorkflowsOptions{
		Status: models.WorkflowStatusActive,
		Type:   models.WorkflowTypeAutomatic,
	})
	if err != nil {
		otelhelper.SetError(span, err)

		return fmt.Errorf("failed to list workflows: %w", err)
	}

	now := r.now()
	loc := r.settings.Location(ctx)

	var errs []error

	for _, wf := range workflows {
		trigger, ok := r.batched(wf)
		if !ok {
			continue
		}

		schedule, err := trigger.ScheduleFor(wf)
		if err != nil {
			r.logger.WarnContext(ctx, "Invalid batch schedule", "workflow_id", wf.ID, "error", err)

			continue
		}

		start, ok := schedule.Start(now, loc)
		if !ok {
			continue
		}

		day := schedule.Day(now, loc)
		if r.settings.String(ctx, LastRunKey(wf.ID)) == day {
			continue
		}

		if now.Before(start) {
			err = r.scheduler.ScheduleSingle(ctx, start, PageJob, startArgs(wf.ID))
			if err != nil {
				errs = append(errs, fmt.Errorf("workflow %s: %w", wf.ID, err))
			}

			continue
		}

		err = r.begin(ctx, wf.ID, day)
		if err != nil {
			errs = append(errs, fmt.Errorf("workflow %s: %w", wf.ID, err))
		}
	}

	return errors.Join(errs...)
}

// Unschedule drops the pending start job of a workflow.
func (r *Runner) Unschedule(ctx context.Context, workflowID string) error {
	return r.scheduler.Cancel(ctx, PageJob, startArgs(workflowID))
}

// startArgs are the page job args of a start scheduled at the time of day.
func startArgs(workflowID string) map[string]any {
	return map[string]any{"workflow_id": workflowID, "offset": 0, "start": true}
}

// begin records day as the workflow's batch day and enqueues its first page.
func (r *Runner) begin(ctx context.Context, workflowID, day string) error {
	err := r.settings.Set(ctx, LastRunKey(workflowID), day)
	if err != nil {
		return err
	}

	err = r.scheduler.EnqueueAsync(ctx, PageJob, map[string]any{"workflow_id": workflowID, "offset": 0})
	if err != nil {
		return err
	}

	r.logger.InfoContext(ctx, "Batch started", "workflow_id", workflowID, "day", day)

	return nil
}

// startScheduled runs a start job. A workflow that already ran today or
// whose schedule moved is left to the next tick.
func (r *Runner) startScheduled(ctx context.Context, wf *models.Workflow, trigger triggers.BatchedTrigger) error {
	schedule, err := trigger.ScheduleFor(wf)
	if err != nil {
		r.logger.WarnContext(ctx, "Invalid batch schedule", "workflow_id", wf.ID, "error", err)

		return nil
	}

	now := r.now()
	loc := r.settings.Location(ctx)

	if !schedule.Due(now, loc) {
		return nil
	}

	day := schedule.Day(now, loc)
	if r.settings.String(ctx, LastRunKey(wf.ID)) == day {
		return nil
	}

	return r.begin(ctx, wf.ID, day)
}

// Page fetches one page of item ids, hands them to an items job and
// enqueues the next page until a page comes back empty.
func (r *Runner) Page(ctx context.Context, args map[string]any) error {
	id, ok := args["workflow_id"].(string)
	if !ok || id == "" {
		return fmt.Errorf("%w: workflow_id", ErrInvalidArgs)
	}

	offset, ok := intArg(args["offset"])
	if !ok {
		return fmt.Errorf("%w: offset", ErrInvalidArgs)
	}

	ctx, span := otelhelper.StartSpan(ctx, r.tracer, "batch.page",
		attribute.String(otelhelper.WorkflowIDKey, id),
		attribute.Int(otelhelper.BatchOffsetKey, offset),
	)
	defer span.End()

	wf, trigger, ok, err := r.workflow(ctx, id)
	if err != nil {
		otelhelper.SetError(span, err)

		return err
	}

	if !ok {
		return nil
	}

	if start, _ := args["start"].(bool); start {
		return r.startScheduled(ctx, wf, trigger)
	}

	limit := r.settings.BatchPageSize(ctx)

	ids, err := trigger.BatchForWorkflow(ctx, wf, offset, limit)
	if err != nil {
		otelhelper.SetError(span, err)

		return fmt.Errorf("failed to fetch batch of workflow %s at %d: %w", id, offset, err)
	}

	if len(ids) == 0 {
		r.logger.InfoContext(ctx, "Batch finished", "workflow_id", id, "items", offset)

		return nil
	}

	err = r.scheduler.EnqueueAsync(ctx, ItemsJob, map[string]any{"workflow_id": id, "items": ids})
	if err != nil {
		return fmt.Errorf("failed to enqueue batch items: %w", err)
	}

	return r.scheduler.EnqueueAsync(ctx, PageJob, map[string]any{"workflow_id": id, "offset": offset + len(ids)})
}

// Items processes each item of a page independently. A failing item is
// logged and skipped.
func (r *Runner) Items(ctx context.Context, args map[string]any) error {
	id, ok := args["workflow_id"].(string)
	if !ok || id == "" {
		return fmt.Errorf("%w: workflow_id", ErrInvalidArgs)
	}

	items, ok := stringsArg(args["items"])
	if !ok {
		return fmt.Errorf("%w: items", ErrInvalidArgs)
	}

	wf, trigger, ok, err := r.workflow(ctx, id)
	if err != nil || !ok {
		return err
	}

	failed := 0

	for _, item := range items {
		err := trigger.ProcessItemForWorkflow(ctx, wf, item, r.dispatcher)
		if err != nil {
			failed++

			r.logger.WarnContext(ctx, "Batch item failed", "workflow_id", id, "item", item, "error", err)
		}
	}

	r.logger.DebugContext(ctx, "Batch items processed", "workflow_id", id, "items", len(items), "failed", failed)

	return nil
}

// workflow loads an active batched workflow. A deleted or disabled
// workflow ends its batch quietly.
func (r *Runner) workflow(ctx context.Context, id string) (*models.Workflow, triggers.BatchedTrigger, bool, error) {
	wf, err := r.workflows.Get(ctx, id)
	if persistence.IsWorkflowNotFound(err) {
		return nil, nil, false, nil
	}

	if err != nil {
		return nil, nil, false, fmt.Errorf("failed to load workflow %s: %w", id, err)
	}

	if !wf.IsActive() {
		return nil, nil, false, nil
	}

	trigger, ok := r.batched(wf)

	return wf, trigger, ok, nil
}

func (r *Runner) batched(wf *models.Workflow) (triggers.BatchedTrigger, bool) {
	t, ok := r.triggers.Trigger(wf.Trigger.Name)
	if !ok {
		return nil, false
	}

	bt, ok := t.(triggers.BatchedTrigger)

	return bt, ok
}

// intArg accepts the integer forms job args take before and after a JSON
// round trip.
func intArg(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

func stringsArg(v any) ([]string, bool) {
	switch s := v.(type) {
	case []string:
		return s, true
	case []any:
		out := make([]string, 0, len(s))

		for _, item := range s {
			str, ok := item.(string)
			if !ok {
				return nil, false
			}

			out = append(out, str)
		}

		return out, true
	default:
		return nil, false
	}
}
