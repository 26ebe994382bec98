package asyncevents

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// TriggerEvents maps a trigger name to the async events it requires.
type TriggerEvents interface {
	RequiredAsyncEvents(trigger string) []string
}

// ActiveTriggers lists the trigger names used by enabled workflows.
type ActiveTriggers interface {
	Names(ctx context.Context) ([]string, error)
}

// Manager computes the required async events and initializes each of them
// at most once per process.
type Manager struct {
	deps     Deps
	events   map[string]AsyncEvent
	always   []string
	triggers TriggerEvents
	active   ActiveTriggers
	logger   *slog.Logger

	mu          sync.Mutex
	initialized map[string]bool
}

func NewManager(deps Deps, events []AsyncEvent, always []string, triggers TriggerEvents, active ActiveTriggers) *Manager {
	byName := make(map[string]AsyncEvent, len(events))
	for _, e := range events {
		byName[e.Name] = e
	}

	logger := deps.Logger.With("module", "async_events")
	deps.Logger = logger

	return &Manager{
		deps:        deps,
		events:      byName,
		always:      always,
		triggers:    triggers,
		active:      active,
		logger:      logger,
		initialized: map[string]bool{},
	}
}

// RequiredEvents returns the always-required events, the events required by
// every active trigger and their transitive dependencies, sorted.
func (m *Manager) RequiredEvents(ctx context.Context) ([]string, error) {
	names, err := m.active.Names(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active triggers: %w", err)
	}

	seen := map[string]bool{}

	var visit func(name string)

	visit = func(name string) {
		if seen[name] {
			return
		}

		seen[name] = true

		for _, dep := range m.events[name].Dependencies {
			visit(dep)
		}
	}

	for _, name := range m.always {
		visit(name)
	}

	for _, trigger := range names {
		for _, name := range m.triggers.RequiredAsyncEvents(trigger) {
			visit(name)
		}
	}

	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}

	slices.Sort(out)

	return out, nil
}

// InitRequiredEvents initializes required events not initialized yet,
// dependencies first, and returns the names it initialized. Calling it again
// after the active triggers change picks up the newly required events.
func (m *Manager) InitRequiredEvents(ctx context.Context) ([]string, error) {
	required, err := m.RequiredEvents(ctx)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var started []string

	var start func(name string) error

	start = func(name string) error {
		if m.initialized[name] {
			return nil
		}

		event, ok := m.events[name]
		if !ok {
			m.logger.WarnContext(ctx, "Unknown async event", "event", name)
			m.initialized[name] = true

			return nil
		}

		m.initialized[name] = true

		for _, dep := range event.Dependencies {
			if err := start(dep); err != nil {
				return err
			}
		}

		if err := event.Init(ctx, m.deps); err != nil {
			delete(m.initialized, name)

			return fmt.Errorf("failed to init async event %s: %w", name, err)
		}

		m.logger.InfoContext(ctx, "Async event initialized", "event", name)
		started = append(started, name)

		return nil
	}

	for _, name := range required {
		if err := start(name); err != nil {
			return started, err
		}
	}

	return started, nil
}

// Initialized lists the events initialized so far, sorted.
func (m *Manager) Initialized() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.initialized))
	for name := range m.initialized {
		if _, ok := m.events[name]; ok {
			out = append(out, name)
		}
	}

	slices.Sort(out)

	return out
}
