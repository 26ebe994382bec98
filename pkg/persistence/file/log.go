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

type LogRepository struct {
	records *collection[models.Log]
}

func NewLogRepository(root string) *LogRepository {
	return &LogRepository{records: newCollection[models.Log](root, "logs")}
}

func (lr *LogRepository) Create(_ context.Context, log *models.Log) error {
	if log.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate log id: %w", err)
		}

		log.ID = id.String()
	}

	if log.Date.IsZero() {
		log.Date = time.Now().UTC()
	}

	lr.records.mu.Lock()
	defer lr.records.mu.Unlock()

	return lr.records.write(log.ID, log)
}

func (lr *LogRepository) Get(_ context.Context, id string) (*models.Log, error) {
	log, err := lr.records.load(id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch log %s: %w", id, err)
	}

	if log == nil {
		return nil, fmt.Errorf("log %s: %w", id, persistence.ErrLogNotFound)
	}

	return log, nil
}

func (lr *LogRepository) Update(_ context.Context, log *models.Log) error {
	lr.records.mu.Lock()
	defer lr.records.mu.Unlock()

	existing, err := lr.records.load(log.ID)
	if err != nil {
		return err
	}

	if existing == nil {
		return fmt.Errorf("log %s: %w", log.ID, persistence.ErrLogNotFound)
	}

	return lr.records.write(log.ID, log)
}

func (lr *LogRepository) List(_ context.Context, opts persistence.ListLogsOptions) ([]*models.Log, error) {
	all, err := lr.records.all()
	if err != nil {
		return nil, fmt.Errorf("failed to list logs: %w", err)
	}

	logs := make([]*models.Log, 0, len(all))

	for _, log := range all {
		if opts.WorkflowID == "" || log.WorkflowID == opts.WorkflowID {
			logs = append(logs, log)
		}
	}

	slices.SortFunc(logs, func(a, b *models.Log) int {
		return cmp.Or(b.Date.Compare(a.Date), cmp.Compare(b.ID, a.ID))
	})

	return persistence.Page(logs, opts.Offset, opts.Limit), nil
}

func (lr *LogRepository) HasRunForEntity(_ context.Context, workflowID, dataType, token string, since time.Time) (bool, error) {
	all, err := lr.records.all()
	if err != nil {
		return false, fmt.Errorf("failed to list logs: %w", err)
	}

	for _, log := range all {
		if log.Failed || log.WorkflowID != workflowID || log.DataItems[dataType] != token {
			continue
		}

		if since.IsZero() || !log.Date.Before(since) {
			return true, nil
		}
	}

	return false, nil
}

func (lr *LogRepository) DeleteForWorkflow(_ context.Context, workflowID string) (int, error) {
	lr.records.mu.Lock()
	defer lr.records.mu.Unlock()

	return lr.records.removeWhere(func(l *models.Log) string { return l.ID }, func(l *models.Log) bool {
		return l.WorkflowID == workflowID
	})
}
