// Package rules evaluates a workflow's rule conjunction against a data layer.
package rules

import (
	"errors"
	"fmt"
	"slices"

	"github.com/dukex/shopflow/pkg/datatypes"
	"github.com/dukex/shopflow/pkg/models"
)

// Kind is the value type a rule compares against.
type Kind string

const (
	KindString     Kind = "string"
	KindNumber     Kind = "number"
	KindSelect     Kind = "select"
	KindDate       Kind = "date"
	KindBool       Kind = "bool"
	KindExpression Kind = "expression"
)

// Operator is a rule comparison.
type Operator string

const (
	Is               Operator = "is"
	IsNot            Operator = "is_not"
	Contains         Operator = "contains"
	NotContains      Operator = "not_contains"
	StartsWith       Operator = "starts_with"
	EndsWith         Operator = "ends_with"
	GreaterThan      Operator = "greater_than"
	LessThan         Operator = "less_than"
	MultipleOf       Operator = "multiple_of"
	IsSet            Operator = "is_set"
	IsNotSet         Operator = "is_not_set"
	MatchesAny       Operator = "matches_any"
	MatchesAll       Operator = "matches_all"
	MatchesNone      Operator = "matches_none"
	IsAfter          Operator = "is_after"
	IsBefore         Operator = "is_before"
	IsBetween        Operator = "is_between"
	IsInTheLast      Operator = "is_in_the_last"
	IsNotInTheLast   Operator = "is_not_in_the_last"
	EvaluatesToTrue  Operator = "true"
	EvaluatesToFalse Operator = "false"
)

var (
	ErrUnsupportedOperator = errors.New("unsupported operator")
	ErrInvalidValue        = errors.New("invalid rule value")
	ErrWrongDataItem       = errors.New("rule received wrong data item")
)

var (
	stringOperators = []Operator{Is, IsNot, Contains, NotContains, StartsWith, EndsWith, IsSet, IsNotSet}
	numberOperators = []Operator{Is, IsNot, GreaterThan, LessThan, MultipleOf}
	selectOperators = []Operator{MatchesAny, MatchesAll, MatchesNone}
	dateOperators   = []Operator{IsAfter, IsBefore, IsBetween, IsInTheLast, IsNotInTheLast, IsSet, IsNotSet}
	boolOperators   = []Operator{Is}
)

// Rule is a stateless predicate over one data item.
type Rule interface {
	Name() string
	Title() string
	Group() string
	// DataItem is the data type the rule reads. Expression rules read the
	// whole layer and return an empty name.
	DataItem() datatypes.Name
	Kind() Kind
	Operators() []Operator
	// Choices lists the allowed values of select rules.
	Choices() []string
	Evaluate(item any, op Operator, value any) (bool, error)
}

// ValidateConfig checks a configured rule against the rule's declared
// operators and choices.
func ValidateConfig(rule Rule, cfg models.RuleConfig) error {
	op := Operator(cfg.Compare)
	if !slices.Contains(rule.Operators(), op) {
		return fmt.Errorf("%w: %s does not support %q", ErrUnsupportedOperator, rule.Name(), cfg.Compare)
	}

	if op == IsSet || op == IsNotSet {
		return nil
	}

	if cfg.Value == nil {
		return fmt.Errorf("%w: %s requires a value", ErrInvalidValue, rule.Name())
	}

	if choices := rule.Choices(); len(choices) > 0 {
		for _, v := range toStrings(cfg.Value) {
			if !slices.Contains(choices, v) {
				return fmt.Errorf("%w: %q is not a choice of %s", ErrInvalidValue, v, rule.Name())
			}
		}
	}

	return nil
}

// base carries rule metadata.
type base struct {
	name  string
	title string
	group string
	item  datatypes.Name
}

func (b base) Name() string             { return b.name }
func (b base) Title() string            { return b.title }
func (b base) Group() string            { return b.group }
func (b base) DataItem() datatypes.Name { return b.item }
func (b base) Choices() []string        { return nil }
