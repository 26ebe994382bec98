// Package actions defines the unit of side-effecting work a workflow runs and
// the run context that resolves an action's configured options.
package actions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"

	"github.com/dukex/shopflow/pkg/datalayer"
	"github.com/dukex/shopflow/pkg/models"
)

// FieldType is the input kind of an action field.
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldTextarea FieldType = "textarea"
	FieldNumber   FieldType = "number"
	FieldSelect   FieldType = "select"
	FieldCheckbox FieldType = "checkbox"
	FieldEmail    FieldType = "email"
	FieldURL      FieldType = "url"
)

// Field declares one option of an action.
type Field struct {
	Name             string    `json:"name"`
	Title            string    `json:"title"`
	Type             FieldType `json:"type"`
	Description      string    `json:"description,omitempty"`
	Required         bool      `json:"required"`
	Default          any       `json:"default,omitempty"`
	Options          []string  `json:"options,omitempty"`
	ProcessVariables bool      `json:"process_variables"`
	AllowHTML        bool      `json:"allow_html"`
}

// Action is a stateless unit of work bound to a workflow at run time.
type Action interface {
	Name() string
	Title() string
	Group() string
	Description() string
	Fields() []Field
	Run(ctx context.Context, run *Run) error
}

var (
	ErrMissingDataItem = errors.New("required data item not in data layer")
	ErrInvalidOptions  = errors.New("invalid action options")
)

// MissingFieldsError lists every required field without a value.
type MissingFieldsError struct {
	Action string
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("action %s is missing required fields: %s", e.Action, strings.Join(e.Fields, ", "))
}

// ActionError wraps a failure of one action in a run.
type ActionError struct {
	Action string
	Index  int
	Err    error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("action %d (%s) failed: %v", e.Index+1, e.Action, e.Err)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

func (e *ActionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// Lookup resolves an action by name.
type Lookup interface {
	Action(name string) (Action, bool)
}

// Set is a Lookup over a fixed list of actions.
type Set map[string]Action

func NewSet(actions ...Action) Set {
	s := make(Set, len(actions))
	for _, a := range actions {
		s[a.Name()] = a
	}

	return s
}

func (s Set) Action(name string) (Action, bool) {
	a, ok := s[name]

	return a, ok
}

// Pipeline runs a workflow's actions in declaration order. A failing or
// panicking action is recorded and the next action still runs.
type Pipeline struct {
	logger   *slog.Logger
	actions  Lookup
	resolver Resolver
}

func NewPipeline(logger *slog.Logger, actions Lookup, resolver Resolver) *Pipeline {
	return &Pipeline{
		logger:   logger.With("module", "actions"),
		actions:  actions,
		resolver: resolver,
	}
}

// Execute runs every configured action and returns one error per failed
// action, in order.
func (p *Pipeline) Execute(ctx context.Context, wf *models.Workflow, dl *datalayer.DataLayer, log *models.Log) []error {
	var failures []error

	for i, cfg := range wf.Actions {
		action, ok := p.actions.Action(cfg.Name)
		if !ok {
			failures = append(failures, &ActionError{Action: cfg.Name, Index: i, Err: fmt.Errorf("unknown action %q", cfg.Name)})

			continue
		}

		run := NewRun(action, wf, dl, cfg.Options, p.resolver)
		if log != nil {
			run.LogID = log.ID
		}

		err := p.runOne(ctx, action, run)

		if log != nil {
			for _, note := range run.Notes() {
				log.AddNote(note)
			}
		}

		if err != nil {
			p.logger.ErrorContext(ctx, "Action failed", "workflow_id", wf.ID, "action", cfg.Name, "index", i, "error", err)
			failures = append(failures, &ActionError{Action: cfg.Name, Index: i, Err: err})
		}
	}

	return failures
}

func (p *Pipeline) runOne(ctx context.Context, action Action, run *Run) (err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.ErrorContext(ctx, "Action panicked", "action", action.Name(), "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("action panicked: %v", r)
		}
	}()

	err = run.ValidateRequiredFields()
	if err != nil {
		return err
	}

	return action.Run(ctx, run)
}
