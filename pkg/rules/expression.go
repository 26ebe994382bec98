package rules

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/dukex/shopflow/pkg/datalayer"
)

// Expression evaluates a boolean expr-lang expression over the whole data
// layer. Each item is exposed under its data type name with its JSON field
// names, e.g. `order.total > 100 && customer.order_count == 1`.
type Expression struct {
	base
	mu    sync.RWMutex
	cache map[string]*vm.Program
}

func NewExpression() *Expression {
	return &Expression{
		base:  base{name: "expression", title: "Advanced - Expression", group: "Advanced"},
		cache: map[string]*vm.Program{},
	}
}

func (e *Expression) Kind() Kind            { return KindExpression }
func (e *Expression) Operators() []Operator { return []Operator{EvaluatesToTrue, EvaluatesToFalse} }

// Compile checks an expression without running it.
func (e *Expression) Compile(code string) error {
	_, err := e.program(code)

	return err
}

func (e *Expression) Evaluate(item any, op Operator, value any) (bool, error) {
	dl, ok := item.(*datalayer.DataLayer)
	if !ok || dl == nil {
		return false, fmt.Errorf("%w: expression got %T", ErrWrongDataItem, item)
	}

	code := toString(value)

	program, err := e.program(code)
	if err != nil {
		return false, err
	}

	env, err := environment(dl)
	if err != nil {
		return false, err
	}

	result, err := expr.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("failed to run expression: %w", err)
	}

	b, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("expression %q did not evaluate to a boolean, got %T", code, result)
	}

	switch op {
	case EvaluatesToTrue:
		return b, nil
	case EvaluatesToFalse:
		return !b, nil
	default:
		return false, fmt.Errorf("%w: %s", ErrUnsupportedOperator, op)
	}
}

func (e *Expression) program(code string) (*vm.Program, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: empty expression", ErrInvalidValue)
	}

	e.mu.RLock()
	program, ok := e.cache[code]
	e.mu.RUnlock()

	if ok {
		return program, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if program, ok = e.cache[code]; ok {
		return program, nil
	}

	program, err := expr.Compile(code, expr.AllowUndefinedVariables(), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidValue, err)
	}

	e.cache[code] = program

	return program, nil
}

// environment converts every item to its JSON map form.
func environment(dl *datalayer.DataLayer) (map[string]any, error) {
	env := make(map[string]any, dl.Len())

	for _, item := range dl.Items() {
		data, err := json.Marshal(item.Value)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s for expression: %w", item.Type, err)
		}

		var m map[string]any

		err = json.Unmarshal(data, &m)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s for expression: %w", item.Type, err)
		}

		env[string(item.Type)] = m
	}

	return env, nil
}
