package rules

import (
	"log/slog"

	"github.com/dukex/shopflow/pkg/datalayer"
	"github.com/dukex/shopflow/pkg/models"
)

// Lookup resolves a rule by name.
type Lookup interface {
	Rule(name string) (Rule, bool)
}

// Engine matches a rule conjunction. It holds no state between calls.
type Engine struct {
	logger *slog.Logger
	rules  Lookup
}

func NewEngine(logger *slog.Logger, rules Lookup) *Engine {
	return &Engine{
		logger: logger.With("module", "rules"),
		rules:  rules,
	}
}

// Match reports whether every configured rule passes. It stops at the first
// failing rule. Unknown rules, absent or missing data items and evaluation
// errors all count as a failed rule.
func (e *Engine) Match(dl *datalayer.DataLayer, configs []models.RuleConfig) bool {
	for _, cfg := range configs {
		if !e.matchOne(dl, cfg) {
			return false
		}
	}

	return true
}

func (e *Engine) matchOne(dl *datalayer.DataLayer, cfg models.RuleConfig) bool {
	rule, ok := e.rules.Rule(cfg.Name)
	if !ok {
		e.logger.Debug("Unknown rule", "rule", cfg.Name)

		return false
	}

	var item any = dl

	if name := rule.DataItem(); name != "" {
		if dl.IsMissing(name) {
			return false
		}

		item, ok = dl.Get(name)
		if !ok {
			e.logger.Debug("Rule data item not in data layer", "rule", cfg.Name, "data_item", name)

			return false
		}
	}

	matched, err := rule.Evaluate(item, Operator(cfg.Compare), cfg.Value)
	if err != nil {
		e.logger.Debug("Rule evaluation failed", "rule", cfg.Name, "error", err)

		return false
	}

	return matched
}

// Set is a Lookup over a fixed list of rules.
type Set map[string]Rule

func NewSet(rules ...Rule) Set {
	s := make(Set, len(rules))
	for _, r := range rules {
		s[r.Name()] = r
	}

	return s
}

func (s Set) Rule(name string) (Rule, bool) {
	r, ok := s[name]

	return r, ok
}
