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

// WorkflowRepository handles workflow-related file operations.
type WorkflowRepository struct {
	records *collection[models.Workflow]
}

func NewWorkflowRepository(root string) *WorkflowRepository {
	return &WorkflowRepository{records: newCollection[models.Workflow](root, "workflows")}
}

func (wr *WorkflowRepository) Get(_ context.Context, id string) (*models.Workflow, error) {
	workflow, err := wr.records.load(id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch workflow %s: %w", id, err)
	}

	if workflow == nil {
		return nil, persistence.NewWorkflowError("Get", id, persistence.ErrWorkflowNotFound)
	}

	return workflow, nil
}

// Save creates or replaces a workflow, assigning an ID when it has none.
func (wr *WorkflowRepository) Save(_ context.Context, workflow *models.Workflow) error {
	if workflow.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate workflow id: %w", err)
		}

		workflow.ID = id.String()
	}

	now := time.Now().UTC()
	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	wr.records.mu.Lock()
	defer wr.records.mu.Unlock()

	return wr.records.write(workflow.ID, workflow)
}

func (wr *WorkflowRepository) Delete(_ context.Context, id string) error {
	wr.records.mu.Lock()
	defer wr.records.mu.Unlock()

	ok, err := wr.records.remove(id)
	if err != nil {
		return fmt.Errorf("failed to delete workflow %s: %w", id, err)
	}

	if !ok {
		return persistence.NewWorkflowError("Delete", id, persistence.ErrWorkflowNotFound)
	}

	return nil
}

func (wr *WorkflowRepository) List(_ context.Context, opts persistence.ListWorkflowsOptions) ([]*models.Workflow, error) {
	all, err := wr.records.all()
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	workflows := make([]*models.Workflow, 0, len(all))

	for _, workflow := range all {
		if opts.Match(workflow) {
			workflows = append(workflows, workflow)
		}
	}

	slices.SortFunc(workflows, func(a, b *models.Workflow) int {
		return cmp.Or(cmp.Compare(a.Order, b.Order), cmp.Compare(a.ID, b.ID))
	})

	return persistence.Page(workflows, opts.Offset, opts.Limit), nil
}
