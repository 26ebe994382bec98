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

const workflowColumns = `
	id
  , title
  , status
  , type
  , trigger_name
  , trigger_options
  , rules
  , actions
  , timing
  , sort_order
  , created_at
  , updated_at
`

// WorkflowRepository handles workflow-related database operations.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

func (r *WorkflowRepository) Get(ctx context.Context, id string) (*models.Workflow, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+workflowColumns+` FROM workflows WHERE id = $1`, id)

	workflow, err := scanWorkflow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewWorkflowError("Get", id, persistence.ErrWorkflowNotFound)
		}

		return nil, fmt.Errorf("failed to scan workflow: %w", err)
	}

	return workflow, nil
}

func (r *WorkflowRepository) List(ctx context.Context, opts persistence.ListWorkflowsOptions) ([]*models.Workflow, error) {
	query := `SELECT ` + workflowColumns + `
		FROM workflows
		WHERE ($1 = '' OR trigger_name = $1)
		  AND ($2 = '' OR status = $2)
		  AND ($3 = '' OR type = $3)
		ORDER BY sort_order, id
		LIMIT $4 OFFSET $5
	`

	rows, err := r.db.QueryContext(ctx, query, opts.Trigger, opts.Status, opts.Type, limit(opts.Limit), opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	workflows := make([]*models.Workflow, 0)

	for rows.Next() {
		workflow, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		workflows = append(workflows, workflow)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	return workflows, nil
}

// Save upserts a workflow, assigning an ID when it has none.
func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	now := time.Now().UTC()

	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	if workflow.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate workflow ID: %w", err)
		}

		workflow.ID = id.String()
	}

	options, err := json.Marshal(workflow.Trigger.Options)
	if err != nil {
		return fmt.Errorf("failed to marshal trigger options: %w", err)
	}

	rules, err := json.Marshal(workflow.Rules)
	if err != nil {
		return fmt.Errorf("failed to marshal rules: %w", err)
	}

	actions, err := json.Marshal(workflow.Actions)
	if err != nil {
		return fmt.Errorf("failed to marshal actions: %w", err)
	}

	timing, err := json.Marshal(workflow.Timing)
	if err != nil {
		return fmt.Errorf("failed to marshal timing: %w", err)
	}

	query := `
		INSERT INTO workflows (id, title, status, type, trigger_name, trigger_options, rules, actions, timing, sort_order, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			status = EXCLUDED.status,
			type = EXCLUDED.type,
			trigger_name = EXCLUDED.trigger_name,
			trigger_options = EXCLUDED.trigger_options,
			rules = EXCLUDED.rules,
			actions = EXCLUDED.actions,
			timing = EXCLUDED.timing,
			sort_order = EXCLUDED.sort_order,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		workflow.ID,
		workflow.Title,
		workflow.Status,
		workflow.Type,
		workflow.Trigger.Name,
		options,
		rules,
		actions,
		timing,
		workflow.Order,
		workflow.CreatedAt,
		workflow.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save workflow: %w", err)
	}

	return nil
}

func (r *WorkflowRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM workflows WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}

	n, err := rowsAffected(result)
	if err != nil {
		return err
	}

	if n == 0 {
		return persistence.NewWorkflowError("Delete", id, persistence.ErrWorkflowNotFound)
	}

	return nil
}

func scanWorkflow(row scanner) (*models.Workflow, error) {
	var (
		workflow                              models.Workflow
		options, rules, actions, timingConfig []byte
	)

	err := row.Scan(
		&workflow.ID,
		&workflow.Title,
		&workflow.Status,
		&workflow.Type,
		&workflow.Trigger.Name,
		&options,
		&rules,
		&actions,
		&timingConfig,
		&workflow.Order,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	for _, field := range []struct {
		name string
		data []byte
		dest any
	}{
		{"trigger options", options, &workflow.Trigger.Options},
		{"rules", rules, &workflow.Rules},
		{"actions", actions, &workflow.Actions},
		{"timing", timingConfig, &workflow.Timing},
	} {
		err := json.Unmarshal(field.data, field.dest)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s: %w", field.name, err)
		}
	}

	return &workflow, nil
}
