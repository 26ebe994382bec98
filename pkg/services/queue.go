package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/shopflow/pkg/models"
	"github.com/dukex/shopflow/pkg/persistence"
)

// Queue lets operators inspect, cancel and retry queued events.
type Queue struct {
	logger *slog.Logger
	queue  persistence.QueueRepository
	now    func() time.Time
}

func NewQueue(logger *slog.Logger, p persistence.Persistence, now func() time.Time) *Queue {
	if now == nil {
		now = time.Now
	}

	return &Queue{logger: logger.With("module", "queue_service"), queue: p.QueueRepository(), now: now}
}

type ListQueueRequest struct {
	WorkflowID string
	Failed     *bool
	Limit      int
	Offset     int
}

func (q *Queue) List(ctx context.Context, req ListQueueRequest) ([]*models.QueuedEvent, error) {
	if req.Limit <= 0 || req.Limit > 100 {
		req.Limit = 50
	}

	events, err := q.queue.List(ctx, persistence.ListQueueOptions{
		WorkflowID: req.WorkflowID,
		Failed:     req.Failed,
		Limit:      req.Limit,
		Offset:     max(req.Offset, 0),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list queued events: %w", err)
	}

	return events, nil
}

func (q *Queue) Get(ctx context.Context, id string) (*models.QueuedEvent, error) {
	return q.queue.Get(ctx, id)
}

// Delete cancels a queued event.
func (q *Queue) Delete(ctx context.Context, id string) error {
	err := q.queue.Delete(ctx, id)
	if err != nil {
		return err
	}

	q.logger.InfoContext(ctx, "Queued event deleted", "queued_event_id", id)

	return nil
}

// Retry makes a failed event due again now.
func (q *Queue) Retry(ctx context.Context, id string) (*models.QueuedEvent, error) {
	event, err := q.queue.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if !event.Failed {
		return nil, &ServiceError{Op: "Retry", Code: "NOT_FAILED", Message: "only failed events can be retried", Err: ErrQueuedEventNotFailed}
	}

	err = q.queue.Retry(ctx, id, q.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to retry queued event: %w", err)
	}

	q.logger.InfoContext(ctx, "Queued event retried", "queued_event_id", id, "failure_code", event.FailureCode)

	return q.queue.Get(ctx, id)
}
