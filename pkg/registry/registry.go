// Package registry holds the data types, rules, actions, triggers and async
// events available to the engine. It is built once at process start and
// passed to the components that need it.
package registry

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"plugin"
	"slices"
	"strings"

	"github.com/dukex/shopflow/pkg/actions"
	"github.com/dukex/shopflow/pkg/asyncevents"
	"github.com/dukex/shopflow/pkg/datatypes"
	"github.com/dukex/shopflow/pkg/models"
	"github.com/dukex/shopflow/pkg/rules"
	"github.com/dukex/shopflow/pkg/triggers"
)

var (
	ErrNotRegistered     = errors.New("component not registered")
	ErrManualTrigger     = errors.New("manual workflows need a manual trigger")
	ErrDuplicateRegister = errors.New("component already registered")
)

type Registry struct {
	logger      *slog.Logger
	dataTypes   map[datatypes.Name]datatypes.DataType
	rules       map[string]rules.Rule
	actions     map[string]actions.Action
	triggers    map[string]triggers.Trigger
	asyncEvents map[string]asyncevents.AsyncEvent
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger:      log.With("module", "registry"),
		dataTypes:   map[datatypes.Name]datatypes.DataType{},
		rules:       map[string]rules.Rule{},
		actions:     map[string]actions.Action{},
		triggers:    map[string]triggers.Trigger{},
		asyncEvents: map[string]asyncevents.AsyncEvent{},
	}
}

func (r *Registry) RegisterDataType(dt datatypes.DataType) {
	r.dataTypes[dt.Name()] = dt
}

func (r *Registry) RegisterRule(rule rules.Rule) {
	r.rules[rule.Name()] = rule
}

func (r *Registry) RegisterAction(action actions.Action) {
	r.actions[action.Name()] = action
}

// RegisterTrigger rejects a second trigger with the same name.
func (r *Registry) RegisterTrigger(trigger triggers.Trigger) error {
	if _, ok := r.triggers[trigger.Name()]; ok {
		return fmt.Errorf("%w: trigger %s", ErrDuplicateRegister, trigger.Name())
	}

	r.triggers[trigger.Name()] = trigger

	return nil
}

func (r *Registry) RegisterAsyncEvent(event asyncevents.AsyncEvent) {
	r.asyncEvents[event.Name] = event
}

func (r *Registry) DataType(name datatypes.Name) (datatypes.DataType, bool) {
	dt, ok := r.dataTypes[name]

	return dt, ok
}

func (r *Registry) Rule(name string) (rules.Rule, bool) {
	rule, ok := r.rules[name]

	return rule, ok
}

func (r *Registry) Action(name string) (actions.Action, bool) {
	action, ok := r.actions[name]

	return action, ok
}

func (r *Registry) Trigger(name string) (triggers.Trigger, bool) {
	trigger, ok := r.triggers[name]

	return trigger, ok
}

// RequiredAsyncEvents returns the async events a trigger needs, none for
// unknown triggers.
func (r *Registry) RequiredAsyncEvents(trigger string) []string {
	t, ok := r.triggers[trigger]
	if !ok {
		return nil
	}

	return t.RequiredAsyncEvents()
}

func (r *Registry) DataTypes() []datatypes.DataType {
	out := make([]datatypes.DataType, 0, len(r.dataTypes))
	for _, name := range datatypes.All() {
		if dt, ok := r.dataTypes[name]; ok {
			out = append(out, dt)
		}
	}

	return out
}

func (r *Registry) Rules() []rules.Rule {
	return sortedValues(r.rules)
}

func (r *Registry) Actions() []actions.Action {
	return sortedValues(r.actions)
}

func (r *Registry) Triggers() []triggers.Trigger {
	return sortedValues(r.triggers)
}

func (r *Registry) AsyncEvents() []asyncevents.AsyncEvent {
	return sortedValues(r.asyncEvents)
}

// BatchedTriggers lists the registered triggers processed in batches.
func (r *Registry) BatchedTriggers() []triggers.BatchedTrigger {
	var out []triggers.BatchedTrigger

	for _, t := range r.Triggers() {
		if bt, ok := t.(triggers.BatchedTrigger); ok {
			out = append(out, bt)
		}
	}

	return out
}

// ValidateWorkflow checks that every component a workflow references is
// registered and that its configured options fit the declared fields.
func (r *Registry) ValidateWorkflow(wf *models.Workflow) error {
	trigger, ok := r.triggers[wf.Trigger.Name]
	if !ok {
		return fmt.Errorf("%w: trigger %s", ErrNotRegistered, wf.Trigger.Name)
	}

	if wf.IsManual() {
		if _, ok := trigger.(triggers.ManualTrigger); !ok {
			return fmt.Errorf("%w: %s", ErrManualTrigger, trigger.Name())
		}
	}

	err := actions.ValidateFields(trigger.Name(), trigger.Fields(), wf.Trigger.Options)
	if err != nil {
		return err
	}

	for _, cfg := range wf.Rules {
		rule, ok := r.rules[cfg.Name]
		if !ok {
			return fmt.Errorf("%w: rule %s", ErrNotRegistered, cfg.Name)
		}

		err := rules.ValidateConfig(rule, cfg)
		if err != nil {
			return err
		}
	}

	for _, cfg := range wf.Actions {
		action, ok := r.actions[cfg.Name]
		if !ok {
			return fmt.Errorf("%w: action %s", ErrNotRegistered, cfg.Name)
		}

		err := actions.ValidateOptions(action, cfg.Options)
		if err != nil {
			return err
		}
	}

	return nil
}

// LoadActionPlugins opens every .so under pluginsPath/actions and returns
// the Action symbol each exports.
func (r *Registry) LoadActionPlugins(pluginsPath string) ([]actions.Action, error) {
	return loadPlugin[actions.Action](r.logger, pluginsPath, "Action")
}

func sortedValues[K ~string, V any](m map[K]V) []V {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	slices.Sort(keys)

	out := make([]V, 0, len(keys))
	for _, k := range keys {
		out = append(out, m[k])
	}

	return out
}

func loadPlugin[T any](logger *slog.Logger, pluginsPath string, symbolName string) ([]T, error) {
	rootPath := pluginsPath + "/" + strings.ToLower(symbolName) + "s"
	root := os.DirFS(rootPath)

	pluginPathList, err := fs.Glob(root, "*.so")
	if err != nil {
		return nil, err
	}

	l := logger.With(slog.String("path", pluginsPath), slog.String("type", symbolName))
	l.Info("Loading plugins")

	pluginList := make([]T, 0, len(pluginPathList))

	for _, p := range pluginPathList {
		plg, err := plugin.Open(rootPath + "/" + p)
		if err != nil {
			return nil, fmt.Errorf("failed to open plugin %s: %w", p, err)
		}

		v, err := plg.Lookup(symbolName)
		if err != nil {
			return nil, fmt.Errorf("plugin %s has no %s symbol: %w", p, symbolName, err)
		}

		castV, ok := v.(T)
		if !ok {
			if ptr, isPtr := v.(*T); isPtr {
				castV, ok = *ptr, true
			}
		}

		if !ok {
			return nil, fmt.Errorf("plugin %s: %s has type %T", p, symbolName, v)
		}

		pluginList = append(pluginList, castV)

		l.Info("Loaded plugin", slog.String("plugin", p))
	}

	return pluginList, nil
}
