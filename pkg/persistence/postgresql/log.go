package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/shopflow/pkg/models"
	"github.com/dukex/shopflow/pkg/persistence"
	"github.com/google/uuid"
)

const logColumns = `id, workflow_id, data_items, date, queued_event_id, notes, has_errors, failed, failure_code, manual, opened_at, clicked_at`

type LogRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewLogRepository(db *sql.DB, logger *slog.Logger) *LogRepository {
	return &LogRepository{db: db, logger: logger}
}

func (r *LogRepository) Create(ctx context.Context, log *models.Log) error {
	if log.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate log ID: %w", err)
		}

		log.ID = id.String()
	}

	if log.Date.IsZero() {
		log.Date = time.Now().UTC()
	}

	items, notes, err := marshalLog(log)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO workflow_logs (`+logColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		log.ID, log.WorkflowID, items, log.Date, log.QueuedEventID, notes,
		log.HasErrors, log.Failed, log.FailureCode, log.Manual, log.OpenedAt, log.ClickedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert log: %w", err)
	}

	return nil
}

func (r *LogRepository) Get(ctx context.Context, id string) (*models.Log, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+logColumns+` FROM workflow_logs WHERE id = $1`, id)

	log, err := scanLog(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("log %s: %w", id, persistence.ErrLogNotFound)
		}

		return nil, fmt.Errorf("failed to scan log: %w", err)
	}

	return log, nil
}

func (r *LogRepository) Update(ctx context.Context, log *models.Log) error {
	items, notes, err := marshalLog(log)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE workflow_logs SET
			data_items = $2,
			notes = $3,
			has_errors = $4,
			failed = $5,
			failure_code = $6,
			opened_at = $7,
			clicked_at = $8
		WHERE id = $1
	`, log.ID, items, notes, log.HasErrors, log.Failed, log.FailureCode, log.OpenedAt, log.ClickedAt)
	if err != nil {
		return fmt.Errorf("failed to update log: %w", err)
	}

	n, err := rowsAffected(result)
	if err != nil {
		return err
	}

	if n == 0 {
		return fmt.Errorf("log %s: %w", log.ID, persistence.ErrLogNotFound)
	}

	return nil
}

func (r *LogRepository) List(ctx context.Context, opts persistence.ListLogsOptions) ([]*models.Log, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+logColumns+`
		FROM workflow_logs
		WHERE ($1 = '' OR workflow_id = $1)
		ORDER BY date DESC, id DESC
		LIMIT $2 OFFSET $3
	`, opts.WorkflowID, limit(opts.Limit), opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query logs: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	logs := make([]*models.Log, 0)

	for rows.Next() {
		log, err := scanLog(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan log: %w", err)
		}

		logs = append(logs, log)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating logs: %w", err)
	}

	return logs, nil
}

func (r *LogRepository) HasRunForEntity(ctx context.Context, workflowID, dataType, token string, since time.Time) (bool, error) {
	filter, err := entityFilter(dataType, token)
	if err != nil {
		return false, err
	}

	var after sql.NullTime
	if !since.IsZero() {
		after = sql.NullTime{Time: since, Valid: true}
	}

	var exists bool

	err = r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM workflow_logs
			WHERE workflow_id = $1
			  AND failed = false
			  AND data_items @> $2::JSONB
			  AND ($3::TIMESTAMPTZ IS NULL OR date >= $3)
		)
	`, workflowID, filter, after).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to query logs for entity: %w", err)
	}

	return exists, nil
}

func (r *LogRepository) DeleteForWorkflow(ctx context.Context, workflowID string) (int, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM workflow_logs WHERE workflow_id = $1`, workflowID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete logs: %w", err)
	}

	return rowsAffected(result)
}

func marshalLog(log *models.Log) ([]byte, []byte, error) {
	items, err := json.Marshal(log.DataItems)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal data items: %w", err)
	}

	notes := log.Notes
	if notes == nil {
		notes = []string{}
	}

	encoded, err := json.Marshal(notes)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal notes: %w", err)
	}

	return items, encoded, nil
}

func scanLog(row scanner) (*models.Log, error) {
	var (
		log                 models.Log
		items, notes        []byte
		openedAt, clickedAt sql.NullTime
	)

	err := row.Scan(
		&log.ID, &log.WorkflowID, &items, &log.Date, &log.QueuedEventID, &notes,
		&log.HasErrors, &log.Failed, &log.FailureCode, &log.Manual, &openedAt, &clickedAt,
	)
	if err != nil {
		return nil, err
	}

	err = json.Unmarshal(items, &log.DataItems)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal data items: %w", err)
	}

	err = json.Unmarshal(notes, &log.Notes)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal notes: %w", err)
	}

	if openedAt.Valid {
		log.OpenedAt = &openedAt.Time
	}

	if clickedAt.Valid {
		log.ClickedAt = &clickedAt.Time
	}

	return &log, nil
}
