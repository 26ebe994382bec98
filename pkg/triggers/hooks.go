package triggers

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/dukex/shopflow/pkg/eventbus"
)

// ActiveNames lists the trigger names used by enabled workflows.
type ActiveNames interface {
	Names(ctx context.Context) ([]string, error)
}

// Hooks registers the event hooks of triggers in active use, each at most
// once per process.
type Hooks struct {
	logger     *slog.Logger
	bus        eventbus.Subscriber
	dispatcher Dispatcher
	triggers   Lookup
	active     ActiveNames

	mu         sync.Mutex
	registered map[string]bool
}

func NewHooks(logger *slog.Logger, bus eventbus.Subscriber, dispatcher Dispatcher, triggers Lookup, active ActiveNames) *Hooks {
	return &Hooks{
		logger:     logger.With("module", "trigger_hooks"),
		bus:        bus,
		dispatcher: dispatcher,
		triggers:   triggers,
		active:     active,
		registered: map[string]bool{},
	}
}

// Register wires hooks for active triggers not registered yet and returns
// their names. Call it again after workflows change to pick up new triggers.
func (h *Hooks) Register(ctx context.Context) ([]string, error) {
	names, err := h.active.Names(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active triggers: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	var added []string

	for _, name := range names {
		if h.registered[name] {
			continue
		}

		trigger, ok := h.triggers.Trigger(name)
		if !ok {
			h.logger.WarnContext(ctx, "Workflow uses unknown trigger", "trigger", name)

			continue
		}

		err := trigger.RegisterHooks(h.bus, h.dispatcher)
		if err != nil {
			return added, fmt.Errorf("failed to register hooks of %s: %w", name, err)
		}

		h.registered[name] = true
		added = append(added, name)

		h.logger.InfoContext(ctx, "Trigger hooks registered", "trigger", name)
	}

	return added, nil
}

func (h *Hooks) Registered() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]string, 0, len(h.registered))
	for name := range h.registered {
		out = append(out, name)
	}

	slices.Sort(out)

	return out
}
