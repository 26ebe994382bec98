// Package queue drains due queued events. Every event is claimed before it
// runs, so a crash leaves it visibly failed instead of running twice.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dukex/shopflow/pkg/datalayer"
	"github.com/dukex/shopflow/pkg/datatypes"
	"github.com/dukex/shopflow/pkg/models"
	"github.com/dukex/shopflow/pkg/options"
	"github.com/dukex/shopflow/pkg/otelhelper"
	"github.com/dukex/shopflow/pkg/persistence"
	"github.com/dukex/shopflow/pkg/triggers"
	"github.com/dukex/shopflow/pkg/workflow"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Result is what happened to one queued event.
type Result string

const (
	ResultSkipped   Result = "skipped"
	ResultCompleted Result = "completed"
	ResultInactive  Result = "workflow_inactive"
	ResultMissing   Result = "missing_data"
	ResultFatal     Result = "fatal_error"
)

type Worker struct {
	logger    *slog.Logger
	queue     persistence.QueueRepository
	workflows persistence.WorkflowRepository
	service   *workflow.Service
	triggers  triggers.Lookup
	settings  *options.Settings
	tracer    trace.Tracer
}

func NewWorker(logger *slog.Logger, p persistence.Persistence, service *workflow.Service, lookup triggers.Lookup, settings *options.Settings, tracer trace.Tracer) *Worker {
	return &Worker{
		logger:    logger.With("module", "queue"),
		queue:     p.QueueRepository(),
		workflows: p.WorkflowRepository(),
		service:   service,
		triggers:  lookup,
		settings:  settings,
		tracer:    tracer,
	}
}

// Run processes up to one batch of due events and returns how many were
// claimed by this call.
func (w *Worker) Run(ctx context.Context) (int, error) {
	due, err := w.queue.Due(ctx, w.service.Now(), w.settings.QueueBatchSize(ctx))
	if err != nil {
		return 0, fmt.Errorf("failed to load due events: %w", err)
	}

	processed := 0

	var errs []error

	for _, event := range due {
		result, err := w.Process(ctx, event)
		if err != nil {
			errs = append(errs, err)
		}

		if result != ResultSkipped {
			processed++
		}
	}

	if processed > 0 {
		w.logger.InfoContext(ctx, "Queue batch processed", "due", len(due), "processed", processed)
	}

	return processed, errors.Join(errs...)
}

// Process claims and runs one event. Terminal failures write a failed log
// and delete the event. Unexpected errors leave the event claimed with
// FATAL_ERROR for an operator to inspect.
func (w *Worker) Process(ctx context.Context, event *models.QueuedEvent) (Result, error) {
	ctx, span := otelhelper.StartSpan(ctx, w.tracer, "queue.process",
		attribute.String(otelhelper.QueuedEventIDKey, event.ID),
		attribute.String(otelhelper.WorkflowIDKey, event.WorkflowID),
	)
	defer span.End()

	logger := w.logger.With("queued_event_id", event.ID, "workflow_id", event.WorkflowID)

	won, err := w.queue.Claim(ctx, event.ID)
	if err != nil {
		otelhelper.SetError(span, err)

		return ResultSkipped, fmt.Errorf("failed to claim queued event %s: %w", event.ID, err)
	}

	if !won {
		logger.DebugContext(ctx, "Queued event already claimed")

		return ResultSkipped, nil
	}

	result, note, err := w.execute(ctx, event)
	span.SetAttributes(attribute.String(otelhelper.OutcomeKey, string(result)))

	if err != nil {
		otelhelper.SetError(span, err)
		logger.ErrorContext(ctx, "Queued event failed", "error", err)

		return ResultFatal, err
	}

	if result != ResultCompleted {
		code := failureCode(result)
		otelhelper.SetFailure(span, code, note)
		logger.WarnContext(ctx, "Queued event did not run", "result", result, "note", note)

		_, err = w.service.RecordFailure(ctx, event, code, note)
		if err != nil {
			return ResultFatal, err
		}
	}

	err = w.queue.Delete(ctx, event.ID)
	if err != nil {
		return result, fmt.Errorf("failed to delete queued event %s: %w", event.ID, err)
	}

	return result, nil
}

func (w *Worker) execute(ctx context.Context, event *models.QueuedEvent) (Result, string, error) {
	wf, err := w.workflows.Get(ctx, event.WorkflowID)
	if persistence.IsWorkflowNotFound(err) {
		return ResultInactive, "Workflow was deleted", nil
	}

	if err != nil {
		return ResultFatal, "", err
	}

	if !wf.IsActive() {
		return ResultInactive, "Workflow is disabled", nil
	}

	trigger, ok := w.triggers.Trigger(wf.Trigger.Name)
	if !ok {
		return ResultInactive, fmt.Sprintf("Trigger %q is not registered", wf.Trigger.Name), nil
	}

	// Entities are re-read at dequeue, never served from an earlier run.
	codec := w.service.Codec()
	if memo := codec.Memo(); memo != nil {
		memo.Clear()
		defer memo.Clear()
	}

	dl, err := codec.Decompress(ctx, datalayer.Compressed(event.DataItems), trigger.SuppliedDataItems())
	if err != nil {
		return ResultFatal, "", fmt.Errorf("failed to restore data layer: %w", err)
	}

	if dl.HasMissing() {
		return ResultMissing, "Missing data items: " + joinNames(dl.Missing()), nil
	}

	if !trigger.ValidateBeforeQueuedEvent(ctx, wf, dl) {
		return ResultInactive, "Trigger validation failed before the run", nil
	}

	if !w.service.Rules().Match(dl, wf.Rules) {
		return ResultInactive, "Workflow rules no longer match", nil
	}

	_, err = w.service.Run(ctx, wf, dl, event.ID)
	if err != nil {
		return ResultFatal, "", err
	}

	return ResultCompleted, "", nil
}

// Cleanup deletes failed events older than the retention window.
func (w *Worker) Cleanup(ctx context.Context) (int, error) {
	before := w.service.Now().Add(-w.settings.FailedQueueRetention(ctx))

	n, err := w.queue.DeleteFailedBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("failed to clean failed queued events: %w", err)
	}

	if n > 0 {
		w.logger.InfoContext(ctx, "Failed queued events removed", "count", n, "before", before.Format(time.RFC3339))
	}

	return n, nil
}

func failureCode(r Result) models.FailureCode {
	switch r {
	case ResultInactive:
		return models.FailureWorkflowInactive
	case ResultMissing:
		return models.FailureMissingData
	case ResultCompleted, ResultSkipped:
		return models.FailureNone
	default:
		return models.FailureFatalError
	}
}

func joinNames(names []datatypes.Name) string {
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = string(n)
	}

	return strings.Join(parts, ", ")
}
