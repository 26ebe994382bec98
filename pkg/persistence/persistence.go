// Package persistence provides the storage abstraction for workflows, queued
// events and run logs.
package persistence

import (
	"context"
	"time"

	"github.com/dukex/shopflow/pkg/models"
)

type Persistence interface {
	WorkflowRepository() WorkflowRepository
	QueueRepository() QueueRepository
	LogRepository() LogRepository
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// ListWorkflowsOptions filters a workflow listing. Zero values match all.
type ListWorkflowsOptions struct {
	Trigger string
	Status  models.WorkflowStatus
	Type    models.WorkflowType
	Limit   int
	Offset  int
}

func (o ListWorkflowsOptions) Match(wf *models.Workflow) bool {
	return (o.Trigger == "" || wf.Trigger.Name == o.Trigger) &&
		(o.Status == "" || wf.Status == o.Status) &&
		(o.Type == "" || wf.Type == o.Type)
}

// WorkflowRepository stores workflow definitions. List orders by Order then
// ID.
type WorkflowRepository interface {
	Get(ctx context.Context, id string) (*models.Workflow, error)
	Save(ctx context.Context, workflow *models.Workflow) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, opts ListWorkflowsOptions) ([]*models.Workflow, error)
}

type ListQueueOptions struct {
	WorkflowID string
	Failed     *bool
	Limit      int
	Offset     int
}

func (o ListQueueOptions) Match(ev *models.QueuedEvent) bool {
	return (o.WorkflowID == "" || ev.WorkflowID == o.WorkflowID) &&
		(o.Failed == nil || ev.Failed == *o.Failed)
}

// QueueRepository stores queued events.
type QueueRepository interface {
	Create(ctx context.Context, event *models.QueuedEvent) error
	Get(ctx context.Context, id string) (*models.QueuedEvent, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, opts ListQueueOptions) ([]*models.QueuedEvent, error)

	// Due returns events due at now that have not failed, earliest first.
	Due(ctx context.Context, now time.Time, limit int) ([]*models.QueuedEvent, error)

	// Claim marks a not yet failed event as FATAL_ERROR and reports whether
	// this caller won it. Only the winner may run the event.
	Claim(ctx context.Context, id string) (bool, error)

	// Retry clears the failure of an event and sets a new due date.
	Retry(ctx context.Context, id string, due time.Time) error

	ExistsForEntity(ctx context.Context, workflowID, dataType, token string) (bool, error)
	DeleteForEntity(ctx context.Context, workflowID, dataType, token string) (int, error)
	DeleteForWorkflow(ctx context.Context, workflowID string) (int, error)

	// DeleteFailedBefore removes failed events created before the cutoff.
	DeleteFailedBefore(ctx context.Context, before time.Time) (int, error)
}

type ListLogsOptions struct {
	WorkflowID string
	Limit      int
	Offset     int
}

// LogRepository stores run logs. List orders by date, newest first.
type LogRepository interface {
	Create(ctx context.Context, log *models.Log) error
	Get(ctx context.Context, id string) (*models.Log, error)
	Update(ctx context.Context, log *models.Log) error
	List(ctx context.Context, opts ListLogsOptions) ([]*models.Log, error)

	// HasRunForEntity reports whether a non-failed log exists for the
	// workflow and data item since the given time. A zero since checks the
	// whole history.
	HasRunForEntity(ctx context.Context, workflowID, dataType, token string, since time.Time) (bool, error)
	DeleteForWorkflow(ctx context.Context, workflowID string) (int, error)
}

// Page applies offset and limit to an already ordered slice. A limit of zero
// or less returns everything after offset.
func Page[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return []T{}
	}

	if offset > 0 {
		items = items[offset:]
	}

	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}

	return items
}
