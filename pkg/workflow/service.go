// Package workflow decides whether a fired data layer runs a workflow now,
// later or not at all, and executes the run.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/shopflow/pkg/actions"
	"github.com/dukex/shopflow/pkg/datalayer"
	"github.com/dukex/shopflow/pkg/models"
	"github.com/dukex/shopflow/pkg/options"
	"github.com/dukex/shopflow/pkg/otelhelper"
	"github.com/dukex/shopflow/pkg/persistence"
	"github.com/dukex/shopflow/pkg/rules"
	"github.com/dukex/shopflow/pkg/triggers"
	"github.com/dukex/shopflow/pkg/variables"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrUnknownTrigger = errors.New("unknown trigger")
	ErrNotMatched     = errors.New("workflow rules did not match")
)

// Outcome is the result of offering a data layer to a workflow.
type Outcome string

const (
	OutcomeDisabled   Outcome = "disabled"
	OutcomeNotMatched Outcome = "not_matched"
	OutcomeDuplicate  Outcome = "duplicate"
	OutcomeCompleted  Outcome = "completed"
	OutcomeFailed     Outcome = "failed"
	OutcomeQueued     Outcome = "queued"
)

// Deps are the collaborators of a Service.
type Deps struct {
	Logger      *slog.Logger
	Persistence persistence.Persistence
	Triggers    triggers.Lookup
	Rules       *rules.Engine
	Pipeline    *actions.Pipeline
	Codec       *datalayer.Codec
	Resolver    *variables.Resolver
	Settings    *options.Settings
	Tracer      trace.Tracer
	Now         func() time.Time
}

type Service struct {
	logger   *slog.Logger
	queue    persistence.QueueRepository
	logs     persistence.LogRepository
	triggers triggers.Lookup
	rules    *rules.Engine
	pipeline *actions.Pipeline
	codec    *datalayer.Codec
	resolver *variables.Resolver
	settings *options.Settings
	tracer   trace.Tracer
	now      func() time.Time
}

func NewService(deps Deps) *Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	tracer := deps.Tracer
	if tracer == nil {
		tracer = otelhelper.Noop()
	}

	return &Service{
		logger:   deps.Logger.With("module", "workflow"),
		queue:    deps.Persistence.QueueRepository(),
		logs:     deps.Persistence.LogRepository(),
		triggers: deps.Triggers,
		rules:    deps.Rules,
		pipeline: deps.Pipeline,
		codec:    deps.Codec,
		resolver: deps.Resolver,
		settings: deps.Settings,
		tracer:   tracer,
		now:      now,
	}
}

func (s *Service) Codec() *datalayer.Codec {
	return s.codec
}

func (s *Service) Rules() *rules.Engine {
	return s.rules
}

func (s *Service) Now() time.Time {
	return s.now()
}

// MaybeRun offers dl to wf. Disabled workflows, trigger option mismatches,
// duplicates and rule mismatches end without a log or queue row. Matching
// workflows run now under immediate timing and are queued otherwise.
func (s *Service) MaybeRun(ctx context.Context, wf *models.Workflow, dl *datalayer.DataLayer) (Outcome, error) {
	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "workflow.maybe_run",
		attribute.String(otelhelper.WorkflowIDKey, wf.ID),
		attribute.String(otelhelper.TriggerNameKey, wf.Trigger.Name),
	)
	defer span.End()

	outcome, err := s.maybeRun(ctx, wf, dl)
	span.SetAttributes(attribute.String(otelhelper.OutcomeKey, string(outcome)))

	if err != nil {
		otelhelper.SetError(span, err)
	}

	return outcome, err
}

func (s *Service) maybeRun(ctx context.Context, wf *models.Workflow, dl *datalayer.DataLayer) (Outcome, error) {
	logger := s.logger.With("workflow_id", wf.ID, "trigger", wf.Trigger.Name)

	if !wf.IsActive() {
		return OutcomeDisabled, nil
	}

	trigger, ok := s.triggers.Trigger(wf.Trigger.Name)
	if !ok {
		return OutcomeNotMatched, fmt.Errorf("%w: %s", ErrUnknownTrigger, wf.Trigger.Name)
	}

	if !trigger.ValidateWorkflow(ctx, wf, dl) {
		logger.DebugContext(ctx, "Trigger options did not match")

		return OutcomeNotMatched, nil
	}

	duplicate, err := s.isDuplicate(ctx, wf, trigger, dl)
	if err != nil {
		return OutcomeFailed, err
	}

	if duplicate {
		logger.DebugContext(ctx, "Workflow already ran for this data item")

		return OutcomeDuplicate, nil
	}

	if !s.rules.Match(dl, wf.Rules) {
		logger.DebugContext(ctx, "Workflow rules did not match")

		return OutcomeNotMatched, nil
	}

	if wf.Timing.Kind() != models.TimingImmediate {
		event, err := s.Queue(ctx, wf, dl)
		if err != nil {
			return OutcomeFailed, err
		}

		logger.InfoContext(ctx, "Workflow queued", "queued_event_id", event.ID, "due_date", event.DueDate)

		return OutcomeQueued, nil
	}

	log, err := s.Run(ctx, wf, dl, "")
	if err != nil {
		return OutcomeFailed, err
	}

	if log.HasErrors {
		return OutcomeFailed, nil
	}

	return OutcomeCompleted, nil
}

func (s *Service) isDuplicate(ctx context.Context, wf *models.Workflow, trigger triggers.Trigger, dl *datalayer.DataLayer) (bool, error) {
	name, ok := trigger.DuplicateGuard()
	if !ok || !dl.Has(name) {
		return false, nil
	}

	snapshot, err := s.codec.Compress(dl)
	if err != nil {
		return false, fmt.Errorf("failed to compress data layer: %w", err)
	}

	token, ok := snapshot.Get(name)
	if !ok {
		return false, nil
	}

	var since time.Time
	if window := s.settings.DuplicateWindow(ctx); window > 0 {
		since = s.now().Add(-window)
	}

	ran, err := s.logs.HasRunForEntity(ctx, wf.ID, string(name), token, since)
	if err != nil {
		return false, fmt.Errorf("failed to check run history: %w", err)
	}

	if ran {
		return true, nil
	}

	queued, err := s.queue.ExistsForEntity(ctx, wf.ID, string(name), token)
	if err != nil {
		return false, fmt.Errorf("failed to check queue: %w", err)
	}

	return queued, nil
}

// Queue persists dl as a queued event due according to the workflow timing.
func (s *Service) Queue(ctx context.Context, wf *models.Workflow, dl *datalayer.DataLayer) (*models.QueuedEvent, error) {
	now := s.now()

	due, err := s.DueDate(ctx, wf, dl, now)
	if err != nil {
		return nil, err
	}

	snapshot, err := s.codec.Compress(dl)
	if err != nil {
		return nil, fmt.Errorf("failed to compress data layer: %w", err)
	}

	event := &models.QueuedEvent{
		WorkflowID: wf.ID,
		DueDate:    due.UTC(),
		CreatedAt:  now.UTC(),
		DataItems:  snapshot,
	}

	err = s.queue.Create(ctx, event)
	if err != nil {
		return nil, fmt.Errorf("failed to queue workflow %s: %w", wf.ID, err)
	}

	return event, nil
}

// Run executes the action pipeline and writes the log. Action failures are
// recorded on the log; the returned error reports only a failure to persist
// it.
func (s *Service) Run(ctx context.Context, wf *models.Workflow, dl *datalayer.DataLayer, queuedEventID string) (*models.Log, error) {
	return s.run(ctx, wf, dl, queuedEventID, false)
}

// RunManual runs a manual workflow for one entity. Timing is ignored but the
// rules still apply.
func (s *Service) RunManual(ctx context.Context, wf *models.Workflow, id string) (*models.Log, error) {
	trigger, ok := s.triggers.Trigger(wf.Trigger.Name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTrigger, wf.Trigger.Name)
	}

	manual, ok := trigger.(triggers.ManualTrigger)
	if !ok {
		return nil, fmt.Errorf("%s: %w", wf.Trigger.Name, triggers.ErrNotManual)
	}

	dl, err := manual.DataLayer(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to build data layer for %s: %w", id, err)
	}

	if !s.rules.Match(dl, wf.Rules) {
		return nil, ErrNotMatched
	}

	return s.run(ctx, wf, dl, "", true)
}

func (s *Service) run(ctx context.Context, wf *models.Workflow, dl *datalayer.DataLayer, queuedEventID string, manual bool) (*models.Log, error) {
	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "workflow.run",
		attribute.String(otelhelper.WorkflowIDKey, wf.ID),
		attribute.String(otelhelper.WorkflowTitleKey, wf.Title),
		attribute.String(otelhelper.QueuedEventIDKey, queuedEventID),
	)
	defer span.End()

	defer s.cleanup()

	log, err := s.newLog(wf, dl, queuedEventID)
	if err != nil {
		return nil, err
	}

	log.Manual = manual

	span.SetAttributes(attribute.String(otelhelper.LogIDKey, log.ID))

	failures := s.pipeline.Execute(ctx, wf, dl, log)
	for _, failure := range failures {
		log.AddNote(failure.Error())
	}

	log.HasErrors = len(failures) > 0

	err = s.logs.Create(ctx, log)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to write log for workflow %s: %w", wf.ID, err)
	}

	if log.HasErrors {
		otelhelper.SetError(span, errors.Join(failures...))
	}

	s.logger.InfoContext(ctx, "Workflow ran", "workflow_id", wf.ID, "log_id", log.ID, "has_errors", log.HasErrors, "manual", manual)

	return log, nil
}

// RecordFailure writes a failed log for a queued event that did not run.
func (s *Service) RecordFailure(ctx context.Context, event *models.QueuedEvent, code models.FailureCode, note string) (*models.Log, error) {
	log := &models.Log{
		WorkflowID:    event.WorkflowID,
		DataItems:     event.DataItems,
		Date:          s.now().UTC(),
		QueuedEventID: event.ID,
		Failed:        true,
		FailureCode:   code,
	}

	if note != "" {
		log.AddNote(note)
	}

	err := s.logs.Create(ctx, log)
	if err != nil {
		return nil, fmt.Errorf("failed to write failure log for queued event %s: %w", event.ID, err)
	}

	return log, nil
}

func (s *Service) newLog(wf *models.Workflow, dl *datalayer.DataLayer, queuedEventID string) (*models.Log, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate log ID: %w", err)
	}

	snapshot, err := s.codec.Compress(dl)
	if err != nil {
		return nil, fmt.Errorf("failed to compress data layer: %w", err)
	}

	return &models.Log{
		ID:            id.String(),
		WorkflowID:    wf.ID,
		DataItems:     snapshot,
		Date:          s.now().UTC(),
		QueuedEventID: queuedEventID,
	}, nil
}

// cleanup releases per-run caches.
func (s *Service) cleanup() {
	if memo := s.codec.Memo(); memo != nil {
		memo.Clear()
	}
}
