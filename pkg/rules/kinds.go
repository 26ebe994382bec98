package rules

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/dukex/shopflow/pkg/datatypes"
)

// extract reads the compared field from a data item of type T.
func extract[T, V any](item any, name string, get func(*T) V) (V, error) {
	var zero V

	typed, ok := item.(*T)
	if !ok || typed == nil {
		return zero, fmt.Errorf("%w: %s got %T", ErrWrongDataItem, name, item)
	}

	return get(typed), nil
}

type stringRule[T any] struct {
	base
	get func(*T) string
}

func newString[T any](name, title, group string, item datatypes.Name, get func(*T) string) Rule {
	return &stringRule[T]{base: base{name, title, group, item}, get: get}
}

func (r *stringRule[T]) Kind() Kind            { return KindString }
func (r *stringRule[T]) Operators() []Operator { return stringOperators }

func (r *stringRule[T]) Evaluate(item any, op Operator, value any) (bool, error) {
	actual, err := extract(item, r.name, r.get)
	if err != nil {
		return false, err
	}

	return compareString(strings.ToLower(actual), op, strings.ToLower(toString(value)))
}

func compareString(actual string, op Operator, expected string) (bool, error) {
	switch op {
	case Is:
		return actual == expected, nil
	case IsNot:
		return actual != expected, nil
	case Contains:
		return strings.Contains(actual, expected), nil
	case NotContains:
		return !strings.Contains(actual, expected), nil
	case StartsWith:
		return strings.HasPrefix(actual, expected), nil
	case EndsWith:
		return strings.HasSuffix(actual, expected), nil
	case IsSet:
		return actual != "", nil
	case IsNotSet:
		return actual == "", nil
	default:
		return false, fmt.Errorf("%w: %s", ErrUnsupportedOperator, op)
	}
}

type numberRule[T any] struct {
	base
	get func(*T) float64
}

func newNumber[T any](name, title, group string, item datatypes.Name, get func(*T) float64) Rule {
	return &numberRule[T]{base: base{name, title, group, item}, get: get}
}

func (r *numberRule[T]) Kind() Kind            { return KindNumber }
func (r *numberRule[T]) Operators() []Operator { return numberOperators }

func (r *numberRule[T]) Evaluate(item any, op Operator, value any) (bool, error) {
	actual, err := extract(item, r.name, r.get)
	if err != nil {
		return false, err
	}

	expected, err := toFloat(value)
	if err != nil {
		return false, err
	}

	const epsilon = 1e-9

	switch op {
	case Is:
		return math.Abs(actual-expected) < epsilon, nil
	case IsNot:
		return math.Abs(actual-expected) >= epsilon, nil
	case GreaterThan:
		return actual > expected, nil
	case LessThan:
		return actual < expected, nil
	case MultipleOf:
		if expected == 0 {
			return false, fmt.Errorf("%w: multiple of zero", ErrInvalidValue)
		}

		return math.Abs(math.Remainder(actual, expected)) < epsilon, nil
	default:
		return false, fmt.Errorf("%w: %s", ErrUnsupportedOperator, op)
	}
}

type selectRule[T any] struct {
	base
	choices []string
	get     func(*T) []string
}

func newSelect[T any](name, title, group string, item datatypes.Name, choices []string, get func(*T) []string) Rule {
	return &selectRule[T]{base: base{name, title, group, item}, choices: choices, get: get}
}

func (r *selectRule[T]) Kind() Kind            { return KindSelect }
func (r *selectRule[T]) Operators() []Operator { return selectOperators }
func (r *selectRule[T]) Choices() []string     { return r.choices }

func (r *selectRule[T]) Evaluate(item any, op Operator, value any) (bool, error) {
	actual, err := extract(item, r.name, r.get)
	if err != nil {
		return false, err
	}

	expected := toStrings(value)
	if len(expected) == 0 {
		return false, fmt.Errorf("%w: %s needs at least one value", ErrInvalidValue, r.name)
	}

	hits := 0

	for _, e := range expected {
		if slices.ContainsFunc(actual, func(a string) bool { return strings.EqualFold(a, e) }) {
			hits++
		}
	}

	switch op {
	case MatchesAny:
		return hits > 0, nil
	case MatchesAll:
		return hits == len(expected), nil
	case MatchesNone:
		return hits == 0, nil
	default:
		return false, fmt.Errorf("%w: %s", ErrUnsupportedOperator, op)
	}
}

type boolRule[T any] struct {
	base
	get func(*T) bool
}

func newBool[T any](name, title, group string, item datatypes.Name, get func(*T) bool) Rule {
	return &boolRule[T]{base: base{name, title, group, item}, get: get}
}

func (r *boolRule[T]) Kind() Kind            { return KindBool }
func (r *boolRule[T]) Operators() []Operator { return boolOperators }

func (r *boolRule[T]) Evaluate(item any, op Operator, value any) (bool, error) {
	if op != Is {
		return false, fmt.Errorf("%w: %s", ErrUnsupportedOperator, op)
	}

	actual, err := extract(item, r.name, r.get)
	if err != nil {
		return false, err
	}

	expected, err := toBool(value)
	if err != nil {
		return false, err
	}

	return actual == expected, nil
}

// Clock returns the evaluation instant and the shop timezone. Date rules are
// pure given a clock.
type Clock func() (time.Time, *time.Location)

type dateRule[T any] struct {
	base
	clock Clock
	get   func(*T) *time.Time
}

func newDate[T any](name, title, group string, item datatypes.Name, clock Clock, get func(*T) *time.Time) Rule {
	return &dateRule[T]{base: base{name, title, group, item}, clock: clock, get: get}
}

func (r *dateRule[T]) Kind() Kind            { return KindDate }
func (r *dateRule[T]) Operators() []Operator { return dateOperators }

func (r *dateRule[T]) Evaluate(item any, op Operator, value any) (bool, error) {
	actual, err := extract(item, r.name, r.get)
	if err != nil {
		return false, err
	}

	switch op {
	case IsSet:
		return actual != nil && !actual.IsZero(), nil
	case IsNotSet:
		return actual == nil || actual.IsZero(), nil
	}

	if actual == nil || actual.IsZero() {
		return false, nil
	}

	now, loc := r.clock()

	switch op {
	case IsAfter, IsBefore:
		expected, err := toTime(value, loc)
		if err != nil {
			return false, err
		}

		if op == IsAfter {
			return actual.After(expected), nil
		}

		return actual.Before(expected), nil
	case IsBetween:
		bounds := toStringsOrTimes(value)
		if len(bounds) != 2 {
			return false, fmt.Errorf("%w: is_between needs two dates", ErrInvalidValue)
		}

		from, err := toTime(bounds[0], loc)
		if err != nil {
			return false, err
		}

		to, err := toTime(bounds[1], loc)
		if err != nil {
			return false, err
		}

		return !actual.Before(from) && !actual.After(to), nil
	case IsInTheLast, IsNotInTheLast:
		period, err := toPeriod(value)
		if err != nil {
			return false, err
		}

		within := !actual.Before(now.Add(-period)) && !actual.After(now)
		if op == IsInTheLast {
			return within, nil
		}

		return !within, nil
	default:
		return false, fmt.Errorf("%w: %s", ErrUnsupportedOperator, op)
	}
}

func toStringsOrTimes(v any) []any {
	switch b := v.(type) {
	case []any:
		return b
	case []string:
		out := make([]any, len(b))
		for i, s := range b {
			out[i] = s
		}

		return out
	case []time.Time:
		out := make([]any, len(b))
		for i, t := range b {
			out[i] = t
		}

		return out
	default:
		return nil
	}
}
