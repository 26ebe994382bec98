package actions

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/dukex/shopflow/pkg/datalayer"
	"github.com/dukex/shopflow/pkg/models"
)

// Resolver substitutes variable expressions against a data layer.
type Resolver interface {
	Process(s string, dl *datalayer.DataLayer) string
}

var (
	validate   = validator.New()
	tagPattern = regexp.MustCompile(`(?s)<[^>]*>`)
)

// Run binds an action to one workflow execution and its raw options.
type Run struct {
	Action    string
	Workflow  *models.Workflow
	DataLayer *datalayer.DataLayer
	LogID     string

	options  map[string]any
	fields   map[string]Field
	order    []Field
	resolver Resolver
	notes    []string
}

func NewRun(action Action, wf *models.Workflow, dl *datalayer.DataLayer, options map[string]any, resolver Resolver) *Run {
	fields := action.Fields()
	byName := make(map[string]Field, len(fields))

	for _, f := range fields {
		byName[f.Name] = f
	}

	if options == nil {
		options = map[string]any{}
	}

	return &Run{
		Action:    action.Name(),
		Workflow:  wf,
		DataLayer: dl,
		options:   options,
		fields:    byName,
		order:     fields,
		resolver:  resolver,
	}
}

// GetOption returns the configured value of name, or the field default.
// String values are run through variable substitution when
// processVariables is set and stripped of HTML tags unless allowHTML is set.
func (r *Run) GetOption(name string, processVariables, allowHTML bool) any {
	raw, ok := r.options[name]
	if !ok || raw == nil {
		if f, declared := r.fields[name]; declared {
			raw = f.Default
		}
	}

	s, isString := raw.(string)
	if !isString {
		return raw
	}

	if processVariables && r.resolver != nil {
		s = r.resolver.Process(s, r.DataLayer)
	}

	if !allowHTML {
		s = tagPattern.ReplaceAllString(s, "")
	}

	return strings.TrimSpace(s)
}

// Option resolves name using its field declaration.
func (r *Run) Option(name string) any {
	f := r.fields[name]

	return r.GetOption(name, f.ProcessVariables, f.AllowHTML)
}

// String resolves name as a string.
func (r *Run) String(name string) string {
	switch v := r.Option(name).(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// ValidateRequiredFields reports every required field that resolves to an
// empty value in one error.
func (r *Run) ValidateRequiredFields() error {
	var missing []string

	for _, f := range r.order {
		if !f.Required {
			continue
		}

		if isEmpty(r.Option(f.Name)) {
			missing = append(missing, f.Name)
		}
	}

	if len(missing) > 0 {
		return &MissingFieldsError{Action: r.Action, Fields: missing}
	}

	return nil
}

// Decode resolves every declared field into target and validates it. Target
// is a pointer to the action's config struct with json and validate tags.
func (r *Run) Decode(target any) error {
	values := make(map[string]any, len(r.order))

	for _, f := range r.order {
		v := r.Option(f.Name)
		if v == nil {
			continue
		}

		converted, err := convert(f, v)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidOptions, f.Name, err)
		}

		values[f.Name] = converted
	}

	data, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("failed to encode options: %w", err)
	}

	err = json.Unmarshal(data, target)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}

	err = validate.Struct(target)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}

	return nil
}

// AddNote attaches a note to the run log.
func (r *Run) AddNote(note string) {
	r.notes = append(r.notes, note)
}

func (r *Run) Notes() []string {
	return r.notes
}

func convert(f Field, v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return v, nil
	}

	switch f.Type {
	case FieldNumber:
		if s == "" {
			return nil, nil
		}

		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", s)
		}

		return n, nil
	case FieldCheckbox:
		switch strings.ToLower(s) {
		case "", "no", "false", "0":
			return false, nil
		default:
			return true, nil
		}
	default:
		return s, nil
	}
}

func isEmpty(v any) bool {
	switch value := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(value) == ""
	case []any:
		return len(value) == 0
	default:
		return false
	}
}

// SplitList splits a comma or newline separated option into trimmed
// non-empty values.
func SplitList(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '\n' })
	out := make([]string, 0, len(parts))

	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}

	return out
}
