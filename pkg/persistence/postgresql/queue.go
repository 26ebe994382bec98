package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/dukex/shopflow/pkg/datatypes"
	"github.com/dukex/shopflow/pkg/models"
	"github.com/dukex/shopflow/pkg/persistence"
	"github.com/google/uuid"
)

// dataItemColumns maps each persisted data type to its sparse token column.
var dataItemColumns = func() []string {
	names := datatypes.Persisted()
	columns := make([]string, len(names))

	for i, name := range names {
		columns[i] = "data_item_" + string(name)
	}

	return columns
}()

var queueColumns = `id, workflow_id, due_date, created_at, failed, failure_code, ` + strings.Join(dataItemColumns, ", ")

func dataItemColumn(dataType string) (string, error) {
	name := datatypes.Name(dataType)
	if !name.Persisted() {
		return "", fmt.Errorf("%q: %w", dataType, persistence.ErrInvalidDataItem)
	}

	return "data_item_" + dataType, nil
}

// QueueRepository stores queued events. Claim relies on a conditional
// UPDATE so concurrent workers cannot both win the same event.
type QueueRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewQueueRepository(db *sql.DB, logger *slog.Logger) *QueueRepository {
	return &QueueRepository{db: db, logger: logger}
}

func (r *QueueRepository) Create(ctx context.Context, event *models.QueuedEvent) error {
	if event.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate queued event ID: %w", err)
		}

		event.ID = id.String()
	}

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	for dataType := range event.DataItems {
		_, err := dataItemColumn(dataType)
		if err != nil {
			return err
		}
	}

	args := []any{event.ID, event.WorkflowID, event.DueDate, event.CreatedAt, event.Failed, event.FailureCode}
	placeholders := []string{"$1", "$2", "$3", "$4", "$5", "$6"}

	for _, name := range datatypes.Persisted() {
		var token sql.NullString
		if v, ok := event.DataItems[string(name)]; ok {
			token = sql.NullString{String: v, Valid: true}
		}

		args = append(args, token)
		placeholders = append(placeholders, "$"+strconv.Itoa(len(args)))
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO queued_events (`+queueColumns+`) VALUES (`+strings.Join(placeholders, ", ")+`)`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("failed to insert queued event: %w", err)
	}

	return nil
}

func (r *QueueRepository) Get(ctx context.Context, id string) (*models.QueuedEvent, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+queueColumns+` FROM queued_events WHERE id = $1`, id)

	event, err := scanQueuedEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &persistence.QueueError{Op: "Get", EventID: id, Err: persistence.ErrQueuedEventNotFound}
		}

		return nil, fmt.Errorf("failed to scan queued event: %w", err)
	}

	return event, nil
}

func (r *QueueRepository) Delete(ctx context.Context, id string) error {
	n, err := r.exec(ctx, `DELETE FROM queued_events WHERE id = $1`, id)
	if err != nil {
		return err
	}

	if n == 0 {
		return &persistence.QueueError{Op: "Delete", EventID: id, Err: persistence.ErrQueuedEventNotFound}
	}

	return nil
}

func (r *QueueRepository) List(ctx context.Context, opts persistence.ListQueueOptions) ([]*models.QueuedEvent, error) {
	var failed sql.NullBool
	if opts.Failed != nil {
		failed = sql.NullBool{Bool: *opts.Failed, Valid: true}
	}

	return r.query(ctx, `SELECT `+queueColumns+`
		FROM queued_events
		WHERE ($1 = '' OR workflow_id = $1)
		  AND ($2::BOOLEAN IS NULL OR failed = $2)
		ORDER BY due_date, id
		LIMIT $3 OFFSET $4
	`, opts.WorkflowID, failed, limit(opts.Limit), opts.Offset)
}

func (r *QueueRepository) Due(ctx context.Context, now time.Time, n int) ([]*models.QueuedEvent, error) {
	return r.query(ctx, `SELECT `+queueColumns+`
		FROM queued_events
		WHERE failed = false AND due_date <= $1
		ORDER BY due_date, id
		LIMIT $2
	`, now, limit(n))
}

func (r *QueueRepository) Claim(ctx context.Context, id string) (bool, error) {
	n, err := r.exec(ctx,
		`UPDATE queued_events SET failed = true, failure_code = $2 WHERE id = $1 AND failed = false`,
		id, models.FailureFatalError,
	)
	if err != nil {
		return false, err
	}

	return n == 1, nil
}

func (r *QueueRepository) Retry(ctx context.Context, id string, due time.Time) error {
	n, err := r.exec(ctx,
		`UPDATE queued_events SET failed = false, failure_code = 0, due_date = $2 WHERE id = $1`,
		id, due,
	)
	if err != nil {
		return err
	}

	if n == 0 {
		return &persistence.QueueError{Op: "Retry", EventID: id, Err: persistence.ErrQueuedEventNotFound}
	}

	return nil
}

func (r *QueueRepository) ExistsForEntity(ctx context.Context, workflowID, dataType, token string) (bool, error) {
	column, err := dataItemColumn(dataType)
	if err != nil {
		return false, err
	}

	var exists bool

	err = r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM queued_events WHERE workflow_id = $1 AND `+column+` = $2)`,
		workflowID, token,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to query queued events for entity: %w", err)
	}

	return exists, nil
}

func (r *QueueRepository) DeleteForEntity(ctx context.Context, workflowID, dataType, token string) (int, error) {
	column, err := dataItemColumn(dataType)
	if err != nil {
		return 0, err
	}

	return r.exec(ctx, `DELETE FROM queued_events WHERE workflow_id = $1 AND `+column+` = $2`, workflowID, token)
}

func (r *QueueRepository) DeleteForWorkflow(ctx context.Context, workflowID string) (int, error) {
	return r.exec(ctx, `DELETE FROM queued_events WHERE workflow_id = $1`, workflowID)
}

func (r *QueueRepository) DeleteFailedBefore(ctx context.Context, before time.Time) (int, error) {
	return r.exec(ctx, `DELETE FROM queued_events WHERE failed = true AND created_at < $1`, before)
}

func (r *QueueRepository) exec(ctx context.Context, query string, args ...any) (int, error) {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to update queued events: %w", err)
	}

	return rowsAffected(result)
}

func (r *QueueRepository) query(ctx context.Context, query string, args ...any) ([]*models.QueuedEvent, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query queued events: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	events := make([]*models.QueuedEvent, 0)

	for rows.Next() {
		event, err := scanQueuedEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan queued event: %w", err)
		}

		events = append(events, event)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating queued events: %w", err)
	}

	return events, nil
}

func scanQueuedEvent(row scanner) (*models.QueuedEvent, error) {
	var event models.QueuedEvent

	tokens := make([]sql.NullString, len(dataItemColumns))
	dest := []any{&event.ID, &event.WorkflowID, &event.DueDate, &event.CreatedAt, &event.Failed, &event.FailureCode}

	for i := range tokens {
		dest = append(dest, &tokens[i])
	}

	err := row.Scan(dest...)
	if err != nil {
		return nil, err
	}

	event.DataItems = make(map[string]string)

	for i, name := range datatypes.Persisted() {
		if tokens[i].Valid {
			event.DataItems[string(name)] = tokens[i].String
		}
	}

	return &event, nil
}
