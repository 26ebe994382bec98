package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/dukex/shopflow/pkg/models"
	"github.com/dukex/shopflow/pkg/options"
	"github.com/dukex/shopflow/pkg/persistence"
	"github.com/dukex/shopflow/pkg/workflow"
)

var (
	// ErrWorkflowNotFound is returned when a workflow is not found.
	ErrWorkflowNotFound = persistence.ErrWorkflowNotFound
)

// ComponentValidator checks that a workflow only references registered
// triggers, rules and actions with valid options.
type ComponentValidator interface {
	ValidateWorkflow(wf *models.Workflow) error
}

// Invalidator drops a cache derived from the workflow set.
type Invalidator interface {
	Invalidate()
}

// Unscheduler drops the pending scheduled starts of a workflow.
type Unscheduler interface {
	Unschedule(ctx context.Context, workflowID string) error
}

// Runner executes manual workflows.
type Runner interface {
	RunManual(ctx context.Context, wf *models.Workflow, id string) (*models.Log, error)
}

var _ Runner = (*workflow.Service)(nil)

type Workflow struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	components  ComponentValidator
	settings    *options.Settings
	active      Invalidator
	runner      Runner
	batches     Unscheduler
	validate    *validator.Validate
}

// NewWorkflow creates a new workflow service. Every change bumps the option
// store version so other processes refresh their active trigger caches.
func NewWorkflow(logger *slog.Logger, p persistence.Persistence, components ComponentValidator, settings *options.Settings, active Invalidator, runner Runner, batches Unscheduler) *Workflow {
	return &Workflow{
		logger:      logger.With("module", "workflow_service"),
		persistence: p,
		components:  components,
		settings:    settings,
		active:      active,
		runner:      runner,
		batches:     batches,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

// HealthCheck checks the health of the persistence layer.
func (w *Workflow) HealthCheck(ctx context.Context) (string, bool) {
	if w.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := w.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// ListWorkflowsRequest contains options for listing workflows.
type ListWorkflowsRequest struct {
	Limit   int
	Offset  int
	Trigger string
	Status  models.WorkflowStatus
	Type    models.WorkflowType
}

// ListWorkflowsResponse contains the result of listing workflows.
type ListWorkflowsResponse struct {
	Workflows   []*models.Workflow `json:"workflows"`
	HasNextPage bool               `json:"has_next_page"`
}

// ListWorkflows retrieves workflows with filtering and pagination.
func (w *Workflow) ListWorkflows(ctx context.Context, req ListWorkflowsRequest) (*ListWorkflowsResponse, error) {
	if err := validateListWorkflowsRequest(&req); err != nil {
		return nil, err
	}

	// One extra row tells whether another page exists.
	workflows, err := w.persistence.WorkflowRepository().List(ctx, persistence.ListWorkflowsOptions{
		Trigger: req.Trigger,
		Status:  req.Status,
		Type:    req.Type,
		Limit:   req.Limit + 1,
		Offset:  req.Offset,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	hasNext := len(workflows) > req.Limit
	if hasNext {
		workflows = workflows[:req.Limit]
	}

	return &ListWorkflowsResponse{Workflows: workflows, HasNextPage: hasNext}, nil
}

func validateListWorkflowsRequest(req *ListWorkflowsRequest) error {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	if req.Limit > 100 {
		req.Limit = 100
	}

	if req.Offset < 0 {
		req.Offset = 0
	}

	switch req.Status {
	case "", models.WorkflowStatusActive, models.WorkflowStatusDisabled:
	default:
		return NewValidationError("ListWorkflows", "INVALID_STATUS",
			fmt.Sprintf("invalid status '%s', allowed: active, disabled", req.Status), ErrInvalidStatus)
	}

	switch req.Type {
	case "", models.WorkflowTypeAutomatic, models.WorkflowTypeManual:
	default:
		return NewValidationError("ListWorkflows", "INVALID_TYPE",
			fmt.Sprintf("invalid type '%s', allowed: automatic, manual", req.Type), ErrInvalidRequest)
	}

	return nil
}

// FetchByID retrieves a workflow by its ID.
func (w *Workflow) FetchByID(ctx context.Context, id string) (*models.Workflow, error) {
	return w.persistence.WorkflowRepository().Get(ctx, id)
}

// Create validates and stores a new workflow. New workflows are automatic
// and disabled unless stated otherwise.
func (w *Workflow) Create(ctx context.Context, wf *models.Workflow) (*models.Workflow, error) {
	if wf == nil {
		return nil, ErrWorkflowNil
	}

	wf.ID = ""

	if wf.Status == "" {
		wf.Status = models.WorkflowStatusDisabled
	}

	if wf.Type == "" {
		wf.Type = models.WorkflowTypeAutomatic
	}

	err := w.check("Create", wf)
	if err != nil {
		return nil, err
	}

	err = w.persistence.WorkflowRepository().Save(ctx, wf)
	if err != nil {
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}

	w.changed(ctx)
	w.logger.InfoContext(ctx, "Workflow created", "workflow_id", wf.ID, "trigger", wf.Trigger.Name)

	return wf, nil
}

// Update replaces an existing workflow by its ID.
func (w *Workflow) Update(ctx context.Context, workflowID string, wf *models.Workflow) (*models.Workflow, error) {
	if wf == nil {
		return nil, ErrWorkflowNil
	}

	existing, err := w.persistence.WorkflowRepository().Get(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	wf.ID = workflowID
	wf.CreatedAt = existing.CreatedAt

	if wf.Status == "" {
		wf.Status = existing.Status
	}

	if wf.Type == "" {
		wf.Type = existing.Type
	}

	err = w.check("Update", wf)
	if err != nil {
		return nil, err
	}

	err = w.persistence.WorkflowRepository().Save(ctx, wf)
	if err != nil {
		return nil, fmt.Errorf("failed to update workflow: %w", err)
	}

	if !wf.IsActive() {
		w.unschedule(ctx, wf.ID)
	}

	w.changed(ctx)

	return wf, nil
}

// SetStatus enables or disables a workflow. Queued events of a disabled
// workflow stay queued and fail as inactive when they come due.
func (w *Workflow) SetStatus(ctx context.Context, workflowID string, status models.WorkflowStatus) (*models.Workflow, error) {
	if status != models.WorkflowStatusActive && status != models.WorkflowStatusDisabled {
		return nil, NewValidationError("SetStatus", "INVALID_STATUS",
			fmt.Sprintf("invalid status '%s', allowed: active, disabled", status), ErrInvalidStatus)
	}

	wf, err := w.persistence.WorkflowRepository().Get(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if wf.Status == status {
		return wf, nil
	}

	wf.Status = status

	err = w.persistence.WorkflowRepository().Save(ctx, wf)
	if err != nil {
		return nil, fmt.Errorf("failed to update workflow status: %w", err)
	}

	if !wf.IsActive() {
		w.unschedule(ctx, wf.ID)
	}

	w.changed(ctx)
	w.logger.InfoContext(ctx, "Workflow status changed", "workflow_id", wf.ID, "status", status)

	return wf, nil
}

// Delete removes a workflow with its queued events and logs.
func (w *Workflow) Delete(ctx context.Context, workflowID string) error {
	_, err := w.persistence.WorkflowRepository().Get(ctx, workflowID)
	if err != nil {
		return err
	}

	queued, err := w.persistence.QueueRepository().DeleteForWorkflow(ctx, workflowID)
	if err != nil {
		return fmt.Errorf("failed to delete queued events: %w", err)
	}

	logs, err := w.persistence.LogRepository().DeleteForWorkflow(ctx, workflowID)
	if err != nil {
		return fmt.Errorf("failed to delete logs: %w", err)
	}

	err = w.persistence.WorkflowRepository().Delete(ctx, workflowID)
	if err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}

	w.unschedule(ctx, workflowID)
	w.changed(ctx)
	w.logger.InfoContext(ctx, "Workflow deleted", "workflow_id", workflowID, "queued_events", queued, "logs", logs)

	return nil
}

// Run starts a manual workflow for each entity id. Ids that fail do not stop
// the others.
func (w *Workflow) Run(ctx context.Context, workflowID string, ids []string) ([]*models.Log, error) {
	wf, err := w.persistence.WorkflowRepository().Get(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if !wf.IsManual() {
		return nil, &ServiceError{Op: "Run", Code: "NOT_MANUAL", Message: "only manual workflows can be run", Err: ErrNotManual}
	}

	if !wf.IsActive() {
		return nil, &ServiceError{Op: "Run", Code: "DISABLED", Message: "workflow is disabled", Err: ErrWorkflowDisabled}
	}

	if len(ids) == 0 {
		return nil, NewValidationError("Run", "NO_ITEMS", "at least one id is required", ErrInvalidRequest)
	}

	var (
		logs []*models.Log
		errs []error
	)

	for _, id := range ids {
		log, err := w.runner.RunManual(ctx, wf, id)
		if errors.Is(err, workflow.ErrNotMatched) {
			continue
		}

		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", id, err))

			continue
		}

		logs = append(logs, log)
	}

	return logs, errors.Join(errs...)
}

func (w *Workflow) check(op string, wf *models.Workflow) error {
	err := w.validate.Struct(wf)
	if err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, len(verrs))
			for i, fe := range verrs {
				fields[i] = fmt.Sprintf("%s failed on %s", fe.Namespace(), fe.Tag())
			}

			return NewValidationError(op, "INVALID_WORKFLOW", strings.Join(fields, "; "), ErrInvalidWorkflow)
		}

		return NewValidationError(op, "INVALID_WORKFLOW", err.Error(), ErrInvalidWorkflow)
	}

	if w.components == nil {
		return nil
	}

	err = w.components.ValidateWorkflow(wf)
	if err != nil {
		return &ServiceError{Op: op, Code: "INVALID_COMPONENT", Message: err.Error(), Err: errors.Join(ErrInvalidWorkflow, err)}
	}

	return nil
}

// unschedule cancels a pending batch start. The start job also skips
// inactive workflows, so a failure here is only logged.
func (w *Workflow) unschedule(ctx context.Context, workflowID string) {
	if w.batches == nil {
		return
	}

	err := w.batches.Unschedule(ctx, workflowID)
	if err != nil {
		w.logger.WarnContext(ctx, "Failed to cancel scheduled batch start", "workflow_id", workflowID, "error", err)
	}
}

// changed publishes a workflow set change to every process.
func (w *Workflow) changed(ctx context.Context) {
	if w.active != nil {
		w.active.Invalidate()
	}

	if w.settings == nil {
		return
	}

	_, err := w.settings.BumpVersion(ctx)
	if err != nil {
		w.logger.WarnContext(ctx, "Failed to bump workflow version", "error", err)
	}
}
