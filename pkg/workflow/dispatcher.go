package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/shopflow/pkg/datalayer"
	"github.com/dukex/shopflow/pkg/models"
	"github.com/dukex/shopflow/pkg/persistence"
)

// Dispatcher offers fired data layers to the active workflows of a trigger.
type Dispatcher struct {
	logger    *slog.Logger
	service   *Service
	workflows persistence.WorkflowRepository
}

func NewDispatcher(logger *slog.Logger, service *Service, workflows persistence.WorkflowRepository) *Dispatcher {
	return &Dispatcher{
		logger:    logger.With("module", "dispatcher"),
		service:   service,
		workflows: workflows,
	}
}

// MaybeRun runs every active automatic workflow of the trigger in Order,
// then ID order. A failing workflow does not stop the others.
func (d *Dispatcher) MaybeRun(ctx context.Context, trigger string, dl *datalayer.DataLayer) error {
	workflows, err := d.workflows.List(ctx, persistence.ListWorkflowsOptions{
		Trigger: trigger,
		Status:  models.WorkflowStatusActive,
		Type:    models.WorkflowTypeAutomatic,
	})
	if err != nil {
		return fmt.Errorf("failed to list workflows for trigger %s: %w", trigger, err)
	}

	var errs []error

	for _, wf := range workflows {
		err := d.MaybeRunWorkflow(ctx, wf, dl)
		if err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (d *Dispatcher) MaybeRunWorkflow(ctx context.Context, wf *models.Workflow, dl *datalayer.DataLayer) error {
	outcome, err := d.service.MaybeRun(ctx, wf, dl)
	if err != nil {
		d.logger.ErrorContext(ctx, "Workflow run failed", "workflow_id", wf.ID, "outcome", outcome, "error", err)

		return fmt.Errorf("workflow %s: %w", wf.ID, err)
	}

	d.logger.DebugContext(ctx, "Workflow considered", "workflow_id", wf.ID, "outcome", outcome)

	return nil
}
