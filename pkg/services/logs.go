package services

import (
	"context"
	"fmt"
	"time"

	"github.com/dukex/shopflow/pkg/models"
	"github.com/dukex/shopflow/pkg/persistence"
)

// Logs reads run history and records email engagement.
type Logs struct {
	logs persistence.LogRepository
	now  func() time.Time
}

func NewLogs(p persistence.Persistence, now func() time.Time) *Logs {
	if now == nil {
		now = time.Now
	}

	return &Logs{logs: p.LogRepository(), now: now}
}

type ListLogsRequest struct {
	WorkflowID string
	Limit      int
	Offset     int
}

func (l *Logs) List(ctx context.Context, req ListLogsRequest) ([]*models.Log, error) {
	if req.Limit <= 0 || req.Limit > 100 {
		req.Limit = 50
	}

	logs, err := l.logs.List(ctx, persistence.ListLogsOptions{
		WorkflowID: req.WorkflowID,
		Limit:      req.Limit,
		Offset:     max(req.Offset, 0),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list logs: %w", err)
	}

	return logs, nil
}

func (l *Logs) Get(ctx context.Context, id string) (*models.Log, error) {
	return l.logs.Get(ctx, id)
}

// TrackOpen records that the email sent by a run was opened.
func (l *Logs) TrackOpen(ctx context.Context, id string) (*models.Log, error) {
	return l.track(ctx, id, func(log *models.Log, at time.Time) { log.MarkOpened(at) })
}

// TrackClick records a click in the email sent by a run.
func (l *Logs) TrackClick(ctx context.Context, id string) (*models.Log, error) {
	return l.track(ctx, id, func(log *models.Log, at time.Time) { log.MarkClicked(at) })
}

func (l *Logs) track(ctx context.Context, id string, mark func(*models.Log, time.Time)) (*models.Log, error) {
	log, err := l.logs.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	mark(log, l.now().UTC())

	err = l.logs.Update(ctx, log)
	if err != nil {
		return nil, fmt.Errorf("failed to update log %s: %w", id, err)
	}

	return log, nil
}
