// Package web provides HTTP request and response types for the workflow API.
package web

import (
	"github.com/dukex/shopflow/pkg/actions"
	"github.com/dukex/shopflow/pkg/models"
	"github.com/dukex/shopflow/pkg/rules"
	"github.com/dukex/shopflow/pkg/triggers"
)

// CreateWorkflowRequest represents the request body for creating a new workflow.
// Status defaults to disabled and type to automatic.
type CreateWorkflowRequest struct {
	Title   string                `json:"title"   validate:"required,min=3"`
	Status  models.WorkflowStatus `json:"status"  validate:"omitempty,oneof=active disabled"`
	Type    models.WorkflowType   `json:"type"    validate:"omitempty,oneof=automatic manual"`
	Trigger models.TriggerConfig  `json:"trigger"`
	Rules   []models.RuleConfig   `json:"rules"   validate:"dive"`
	Actions []models.ActionConfig `json:"actions" validate:"dive"`
	Timing  models.Timing         `json:"timing"`
	Order   int                   `json:"order"`
}

func (r CreateWorkflowRequest) Workflow() *models.Workflow {
	return &models.Workflow{
		Title:   r.Title,
		Status:  r.Status,
		Type:    r.Type,
		Trigger: r.Trigger,
		Rules:   r.Rules,
		Actions: r.Actions,
		Timing:  r.Timing,
		Order:   r.Order,
	}
}

// UpdateWorkflowRequest represents the request body for updating an existing workflow.
// All fields are optional to support partial updates.
type UpdateWorkflowRequest struct {
	Title   *string               `json:"title,omitempty"   validate:"omitempty,min=3"`
	Type    *models.WorkflowType  `json:"type,omitempty"    validate:"omitempty,oneof=automatic manual"`
	Trigger *models.TriggerConfig `json:"trigger,omitempty"`
	Rules   []models.RuleConfig   `json:"rules,omitempty"   validate:"omitempty,dive"`
	Actions []models.ActionConfig `json:"actions,omitempty" validate:"omitempty,dive"`
	Timing  *models.Timing        `json:"timing,omitempty"`
	Order   *int                  `json:"order,omitempty"`
}

// Apply merges the set fields into wf.
func (r UpdateWorkflowRequest) Apply(wf *models.Workflow) {
	if r.Title != nil {
		wf.Title = *r.Title
	}

	if r.Type != nil {
		wf.Type = *r.Type
	}

	if r.Trigger != nil {
		wf.Trigger = *r.Trigger
	}

	if r.Rules != nil {
		wf.Rules = r.Rules
	}

	if r.Actions != nil {
		wf.Actions = r.Actions
	}

	if r.Timing != nil {
		wf.Timing = *r.Timing
	}

	if r.Order != nil {
		wf.Order = *r.Order
	}
}

// RunWorkflowRequest lists the entity ids a manual workflow runs for.
type RunWorkflowRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,dive,required"`
}

// QueuedEventResponse adds the readable failure message to a queued event.
type QueuedEventResponse struct {
	*models.QueuedEvent

	FailureMessage string `json:"failure_message,omitempty"`
}

func TransformQueuedEvent(event *models.QueuedEvent) QueuedEventResponse {
	return QueuedEventResponse{QueuedEvent: event, FailureMessage: event.FailureMessage()}
}

type TriggerResponse struct {
	Name                string          `json:"name"`
	Title               string          `json:"title"`
	Description         string          `json:"description"`
	Group               string          `json:"group"`
	SuppliedDataItems   []string        `json:"supplied_data_items"`
	RequiredAsyncEvents []string        `json:"required_async_events"`
	Fields              []actions.Field `json:"fields"`
	Manual              bool            `json:"manual"`
	Batched             bool            `json:"batched"`
}

func TransformTrigger(t triggers.Trigger) TriggerResponse {
	supplied := make([]string, 0, len(t.SuppliedDataItems()))
	for _, name := range t.SuppliedDataItems() {
		supplied = append(supplied, string(name))
	}

	_, manual := t.(triggers.ManualTrigger)
	_, batched := t.(triggers.BatchedTrigger)

	return TriggerResponse{
		Name:                t.Name(),
		Title:               t.Title(),
		Description:         t.Description(),
		Group:               t.Group(),
		SuppliedDataItems:   supplied,
		RequiredAsyncEvents: t.RequiredAsyncEvents(),
		Fields:              t.Fields(),
		Manual:              manual,
		Batched:             batched,
	}
}

type RuleResponse struct {
	Name      string           `json:"name"`
	Title     string           `json:"title"`
	Group     string           `json:"group"`
	DataItem  string           `json:"data_item,omitempty"`
	Kind      rules.Kind       `json:"kind"`
	Operators []rules.Operator `json:"operators"`
	Choices   []string         `json:"choices,omitempty"`
}

func TransformRule(r rules.Rule) RuleResponse {
	return RuleResponse{
		Name:      r.Name(),
		Title:     r.Title(),
		Group:     r.Group(),
		DataItem:  string(r.DataItem()),
		Kind:      r.Kind(),
		Operators: r.Operators(),
		Choices:   r.Choices(),
	}
}

type ActionResponse struct {
	Name        string          `json:"name"`
	Title       string          `json:"title"`
	Group       string          `json:"group"`
	Description string          `json:"description"`
	Fields      []actions.Field `json:"fields"`
}

func TransformAction(a actions.Action) ActionResponse {
	return ActionResponse{
		Name:        a.Name(),
		Title:       a.Title(),
		Group:       a.Group(),
		Description: a.Description(),
		Fields:      a.Fields(),
	}
}
