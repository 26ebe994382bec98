// Package testutil provides test data builders and an in-memory engine for
// testing.
package testutil

import (
	"time"

	"github.com/dukex/shopflow/pkg/actions/email"
	"github.com/dukex/shopflow/pkg/models"
)

// NewWorkflow creates an active automatic workflow for trigger with default
// values that can be overridden.
func NewWorkflow(trigger string, overrides ...func(*models.Workflow)) *models.Workflow {
	wf := &models.Workflow{
		Title:   "Test Workflow",
		Status:  models.WorkflowStatusActive,
		Type:    models.WorkflowTypeAutomatic,
		Trigger: models.TriggerConfig{Name: trigger, Options: map[string]any{}},
		Actions: []models.ActionConfig{SendEmail()},
	}

	for _, override := range overrides {
		override(wf)
	}

	return wf
}

// WithTitle sets the workflow title.
func WithTitle(title string) func(*models.Workflow) {
	return func(wf *models.Workflow) {
		wf.Title = title
	}
}

// WithOption sets one trigger option.
func WithOption(name string, value any) func(*models.Workflow) {
	return func(wf *models.Workflow) {
		wf.Trigger.Options[name] = value
	}
}

// WithRule appends a rule to the conjunction.
func WithRule(name, compare string, value any) func(*models.Workflow) {
	return func(wf *models.Workflow) {
		wf.Rules = append(wf.Rules, models.RuleConfig{Name: name, Compare: compare, Value: value})
	}
}

// WithActions replaces the action list.
func WithActions(actions ...models.ActionConfig) func(*models.Workflow) {
	return func(wf *models.Workflow) {
		wf.Actions = actions
	}
}

// WithTiming sets the timing policy.
func WithTiming(timing models.Timing) func(*models.Workflow) {
	return func(wf *models.Workflow) {
		wf.Timing = timing
	}
}

// WithDelay queues runs for d after the trigger fires.
func WithDelay(d time.Duration) func(*models.Workflow) {
	return WithTiming(models.Timing{Type: models.TimingDelayed, Delay: models.Duration(d)})
}

// Disabled marks the workflow disabled.
func Disabled() func(*models.Workflow) {
	return func(wf *models.Workflow) {
		wf.Status = models.WorkflowStatusDisabled
	}
}

// Manual marks the workflow operator-run.
func Manual() func(*models.Workflow) {
	return func(wf *models.Workflow) {
		wf.Type = models.WorkflowTypeManual
	}
}

// SendEmail is a send_email action addressed to the layer's customer.
func SendEmail() models.ActionConfig {
	return models.ActionConfig{Name: email.Name, Options: map[string]any{
		"to":      "{{ customer.email }}",
		"subject": "Hello {{ customer.first_name | fallback: 'there' }}",
		"body":    "Thanks for shopping with {{ shop.name }}",
	}}
}
