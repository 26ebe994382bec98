package file

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/dukex/shopflow/pkg/models"
	"github.com/dukex/shopflow/pkg/persistence"
	"github.com/google/uuid"
)

type QueueRepository struct {
	records *collection[models.QueuedEvent]
}

func NewQueueRepository(root string) *QueueRepository {
	return &QueueRepository{records: newCollection[models.QueuedEvent](root, "queue")}
}

func eventID(e *models.QueuedEvent) string {
	return e.ID
}

func (qr *QueueRepository) Create(_ context.Context, event *models.QueuedEvent) error {
	if event.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate queued event id: %w", err)
		}

		event.ID = id.String()
	}

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	qr.records.mu.Lock()
	defer qr.records.mu.Unlock()

	return qr.records.write(event.ID, event)
}

func (qr *QueueRepository) Get(_ context.Context, id string) (*models.QueuedEvent, error) {
	event, err := qr.records.load(id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch queued event %s: %w", id, err)
	}

	if event == nil {
		return nil, &persistence.QueueError{Op: "Get", EventID: id, Err: persistence.ErrQueuedEventNotFound}
	}

	return event, nil
}

func (qr *QueueRepository) Delete(_ context.Context, id string) error {
	qr.records.mu.Lock()
	defer qr.records.mu.Unlock()

	ok, err := qr.records.remove(id)
	if err != nil {
		return err
	}

	if !ok {
		return &persistence.QueueError{Op: "Delete", EventID: id, Err: persistence.ErrQueuedEventNotFound}
	}

	return nil
}

func (qr *QueueRepository) sorted(match func(*models.QueuedEvent) bool) ([]*models.QueuedEvent, error) {
	all, err := qr.records.all()
	if err != nil {
		return nil, fmt.Errorf("failed to list queued events: %w", err)
	}

	events := make([]*models.QueuedEvent, 0, len(all))

	for _, event := range all {
		if match(event) {
			events = append(events, event)
		}
	}

	slices.SortFunc(events, func(a, b *models.QueuedEvent) int {
		return cmp.Or(a.DueDate.Compare(b.DueDate), cmp.Compare(a.ID, b.ID))
	})

	return events, nil
}

func (qr *QueueRepository) List(_ context.Context, opts persistence.ListQueueOptions) ([]*models.QueuedEvent, error) {
	events, err := qr.sorted(opts.Match)
	if err != nil {
		return nil, err
	}

	return persistence.Page(events, opts.Offset, opts.Limit), nil
}

func (qr *QueueRepository) Due(_ context.Context, now time.Time, limit int) ([]*models.QueuedEvent, error) {
	events, err := qr.sorted(func(e *models.QueuedEvent) bool {
		return !e.Failed && !e.DueDate.After(now)
	})
	if err != nil {
		return nil, err
	}

	return persistence.Page(events, 0, limit), nil
}

func (qr *QueueRepository) Claim(_ context.Context, id string) (bool, error) {
	qr.records.mu.Lock()
	defer qr.records.mu.Unlock()

	event, err := qr.records.load(id)
	if err != nil {
		return false, err
	}

	if event == nil || event.Failed {
		return false, nil
	}

	event.Failed = true
	event.FailureCode = models.FailureFatalError

	err = qr.records.write(id, event)
	if err != nil {
		return false, err
	}

	return true, nil
}

func (qr *QueueRepository) Retry(_ context.Context, id string, due time.Time) error {
	qr.records.mu.Lock()
	defer qr.records.mu.Unlock()

	event, err := qr.records.load(id)
	if err != nil {
		return err
	}

	if event == nil {
		return &persistence.QueueError{Op: "Retry", EventID: id, Err: persistence.ErrQueuedEventNotFound}
	}

	event.Failed = false
	event.FailureCode = models.FailureNone
	event.DueDate = due

	return qr.records.write(id, event)
}

func (qr *QueueRepository) ExistsForEntity(_ context.Context, workflowID, dataType, token string) (bool, error) {
	events, err := qr.sorted(func(e *models.QueuedEvent) bool {
		return e.WorkflowID == workflowID && e.HasItem(dataType, token)
	})
	if err != nil {
		return false, err
	}

	return len(events) > 0, nil
}

func (qr *QueueRepository) DeleteForEntity(_ context.Context, workflowID, dataType, token string) (int, error) {
	qr.records.mu.Lock()
	defer qr.records.mu.Unlock()

	return qr.records.removeWhere(eventID, func(e *models.QueuedEvent) bool {
		return e.WorkflowID == workflowID && e.HasItem(dataType, token)
	})
}

func (qr *QueueRepository) DeleteForWorkflow(_ context.Context, workflowID string) (int, error) {
	qr.records.mu.Lock()
	defer qr.records.mu.Unlock()

	return qr.records.removeWhere(eventID, func(e *models.QueuedEvent) bool {
		return e.WorkflowID == workflowID
	})
}

func (qr *QueueRepository) DeleteFailedBefore(_ context.Context, before time.Time) (int, error) {
	qr.records.mu.Lock()
	defer qr.records.mu.Unlock()

	return qr.records.removeWhere(eventID, func(e *models.QueuedEvent) bool {
		return e.Failed && e.CreatedAt.Before(before)
	})
}
