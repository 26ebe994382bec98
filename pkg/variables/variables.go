// Package variables substitutes {{ type.field | param: 'arg' }} expressions
// in option strings with values read from a data layer.
package variables

import (
	"log/slog"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dukex/shopflow/pkg/datalayer"
	"github.com/dukex/shopflow/pkg/datatypes"
)

var expressionPattern = regexp.MustCompile(`\{\{\s*(.*?)\s*\}\}`)

// Variable reads one value from a data layer. The value may be a string, a
// number, a bool or a time.Time.
type Variable struct {
	Name        string
	DataType    datatypes.Name
	Description string
	Value       func(dl *datalayer.DataLayer) (any, bool)
}

// Resolver substitutes variable expressions. It never fails: unknown
// variables, absent data items and malformed expressions resolve to the
// fallback parameter or an empty string.
type Resolver struct {
	logger   *slog.Logger
	vars     map[string]Variable
	location func() *time.Location
}

// NewResolver creates a resolver over the built-in variables. Location
// returns the shop timezone used when formatting times; nil means UTC.
func NewResolver(logger *slog.Logger, location func() *time.Location) *Resolver {
	if location == nil {
		location = func() *time.Location { return time.UTC }
	}

	r := &Resolver{
		logger:   logger.With("module", "variables"),
		vars:     map[string]Variable{},
		location: location,
	}

	for _, v := range builtins() {
		r.Register(v)
	}

	return r
}

func (r *Resolver) Register(v Variable) {
	r.vars[v.Name] = v
}

// Variables lists registered variables sorted by name.
func (r *Resolver) Variables() []Variable {
	out := make([]Variable, 0, len(r.vars))
	for _, v := range r.vars {
		out = append(out, v)
	}

	slices.SortFunc(out, func(a, b Variable) int { return strings.Compare(a.Name, b.Name) })

	return out
}

// Process replaces every expression in s.
func (r *Resolver) Process(s string, dl *datalayer.DataLayer) string {
	if !strings.Contains(s, "{{") {
		return s
	}

	return expressionPattern.ReplaceAllStringFunc(s, func(match string) string {
		inner := expressionPattern.FindStringSubmatch(match)[1]

		return r.Expression(inner, dl)
	})
}

// Expression evaluates one expression body without the braces.
func (r *Resolver) Expression(body string, dl *datalayer.DataLayer) string {
	expr, ok := parse(body)
	if !ok {
		r.logger.Debug("Malformed variable expression", "expression", body)

		return ""
	}

	value, ok := r.lookup(expr.variable, dl)
	if !ok {
		return expr.fallback()
	}

	out, ok := r.apply(value, expr.params)
	if !ok || out == "" {
		return expr.fallback()
	}

	return out
}

// Time resolves a variable expression to a time, used by datetime timing.
func (r *Resolver) Time(body string, dl *datalayer.DataLayer) (time.Time, bool) {
	body = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(body), "{{"), "}}"))

	expr, ok := parse(body)
	if !ok {
		return time.Time{}, false
	}

	value, ok := r.lookup(expr.variable, dl)
	if !ok {
		return time.Time{}, false
	}

	t, ok := value.(time.Time)
	if !ok || t.IsZero() {
		return time.Time{}, false
	}

	for _, p := range expr.params {
		if p.name == "modify" {
			t, ok = modify(t, p.arg)
			if !ok {
				return time.Time{}, false
			}
		}
	}

	return t, true
}

func (r *Resolver) lookup(name string, dl *datalayer.DataLayer) (any, bool) {
	v, ok := r.vars[name]
	if !ok || dl == nil || !dl.Has(v.DataType) {
		return nil, false
	}

	return v.Value(dl)
}

func (r *Resolver) apply(value any, params []param) (string, bool) {
	if t, ok := value.(time.Time); ok {
		return r.applyTime(t.In(r.location()), params)
	}

	if f, ok := value.(float64); ok {
		decimals := -1

		for _, p := range params {
			if p.name == "round" {
				n, err := strconv.Atoi(p.arg)
				if err != nil {
					n = 0
				}

				decimals = n
			}
		}

		return strconv.FormatFloat(f, 'f', decimals, 64), true
	}

	var s string

	switch v := value.(type) {
	case string:
		s = v
	case int:
		s = strconv.Itoa(v)
	case bool:
		s = strconv.FormatBool(v)
	case []string:
		s = strings.Join(v, ", ")
	default:
		return "", false
	}

	for _, p := range params {
		switch p.name {
		case "upper":
			s = strings.ToUpper(s)
		case "lower":
			s = strings.ToLower(s)
		case "title":
			s = titleCase(s)
		case "trim":
			s = strings.TrimSpace(s)
		}
	}

	return s, true
}

func (r *Resolver) applyTime(t time.Time, params []param) (string, bool) {
	layout := "2006-01-02 15:04"

	for _, p := range params {
		switch p.name {
		case "modify":
			var ok bool

			t, ok = modify(t, p.arg)
			if !ok {
				return "", false
			}
		case "format":
			layout = goLayout(p.arg)
		}
	}

	return t.Format(layout), true
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		_, size := utf8.DecodeRuneInString(w)
		words[i] = strings.ToUpper(w[:size]) + strings.ToLower(w[size:])
	}

	return strings.Join(words, " ")
}
