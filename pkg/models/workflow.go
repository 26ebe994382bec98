// Package models defines the persisted records of the workflow engine.
package models

import "time"

// WorkflowStatus is the operator-controlled activation state.
type WorkflowStatus string

const (
	WorkflowStatusActive   WorkflowStatus = "active"
	WorkflowStatusDisabled WorkflowStatus = "disabled"
)

// WorkflowType distinguishes event-driven workflows from operator-run ones.
type WorkflowType string

const (
	WorkflowTypeAutomatic WorkflowType = "automatic"
	WorkflowTypeManual    WorkflowType = "manual"
)

// Workflow binds one trigger, a rule conjunction, an ordered action list and
// a timing policy.
type Workflow struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"     validate:"required,min=3"`
	Status    WorkflowStatus `json:"status"    validate:"required,oneof=active disabled"`
	Type      WorkflowType   `json:"type"      validate:"required,oneof=automatic manual"`
	Trigger   TriggerConfig  `json:"trigger"`
	Rules     []RuleConfig   `json:"rules"     validate:"dive"`
	Actions   []ActionConfig `json:"actions"   validate:"dive"`
	Timing    Timing         `json:"timing"`
	Order     int            `json:"order"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (w *Workflow) IsActive() bool {
	return w.Status == WorkflowStatusActive
}

func (w *Workflow) IsManual() bool {
	return w.Type == WorkflowTypeManual
}

// TriggerConfig names the trigger and carries its configured options.
type TriggerConfig struct {
	Name    string         `json:"name"              validate:"required"`
	Options map[string]any `json:"options,omitempty"`
}

// Option returns a trigger option by name.
func (t TriggerConfig) Option(name string) (any, bool) {
	v, ok := t.Options[name]

	return v, ok
}

// RuleConfig is one configured rule of a workflow's conjunction.
type RuleConfig struct {
	Name    string `json:"name"    validate:"required"`
	Compare string `json:"compare" validate:"required"`
	Value   any    `json:"value,omitempty"`
}

// ActionConfig is one configured action with its raw option values.
type ActionConfig struct {
	Name    string         `json:"name"              validate:"required"`
	Options map[string]any `json:"options,omitempty"`
}
