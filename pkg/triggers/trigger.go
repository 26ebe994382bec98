// Package triggers defines the events that make workflows consider running
// and the data layers each one supplies.
package triggers

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/dukex/shopflow/pkg/actions"
	"github.com/dukex/shopflow/pkg/datalayer"
	"github.com/dukex/shopflow/pkg/datatypes"
	"github.com/dukex/shopflow/pkg/entities"
	"github.com/dukex/shopflow/pkg/eventbus"
	"github.com/dukex/shopflow/pkg/models"
)

var ErrNotManual = errors.New("trigger does not support manual runs")

// Dispatcher hands a fired data layer to the workflows of a trigger.
type Dispatcher interface {
	// MaybeRun offers dl to every enabled workflow of the trigger.
	MaybeRun(ctx context.Context, trigger string, dl *datalayer.DataLayer) error
	// MaybeRunWorkflow offers dl to a single workflow.
	MaybeRunWorkflow(ctx context.Context, wf *models.Workflow, dl *datalayer.DataLayer) error
}

// Trigger is a stateless description of an event source.
type Trigger interface {
	Name() string
	Title() string
	Description() string
	Group() string
	SuppliedDataItems() []datatypes.Name
	RequiredAsyncEvents() []string
	Fields() []actions.Field

	// RegisterHooks wires the trigger to its event source. It is called at
	// most once per process.
	RegisterHooks(bus eventbus.Subscriber, d Dispatcher) error

	// ValidateWorkflow checks the trigger options of wf against the event
	// that just fired.
	ValidateWorkflow(ctx context.Context, wf *models.Workflow, dl *datalayer.DataLayer) bool

	// ValidateBeforeQueuedEvent re-checks a queued run right before it executes.
	ValidateBeforeQueuedEvent(ctx context.Context, wf *models.Workflow, dl *datalayer.DataLayer) bool

	// DuplicateGuard names the data item a workflow runs at most once for.
	DuplicateGuard() (datatypes.Name, bool)
}

// BatchedTrigger finds its items by scanning instead of reacting to events.
type BatchedTrigger interface {
	Trigger
	ScheduleFor(wf *models.Workflow) (Schedule, error)
	BatchForWorkflow(ctx context.Context, wf *models.Workflow, offset, limit int) ([]string, error)
	ProcessItemForWorkflow(ctx context.Context, wf *models.Workflow, id string, d Dispatcher) error
}

// ManualTrigger builds a data layer from an entity id for operator runs.
type ManualTrigger interface {
	Trigger
	DataLayer(ctx context.Context, id string) (*datalayer.DataLayer, error)
}

// Meta is the static description of a trigger.
type Meta struct {
	Name           string
	Title          string
	Description    string
	Group          string
	Supplies       []datatypes.Name
	AsyncEvents    []string
	Fields         []actions.Field
	DuplicateGuard datatypes.Name
}

// Base implements the metadata part of Trigger and accepting defaults for
// the validation hooks.
type Base struct {
	meta Meta
}

func NewBase(meta Meta) Base {
	return Base{meta: meta}
}

func (b Base) Name() string        { return b.meta.Name }
func (b Base) Title() string       { return b.meta.Title }
func (b Base) Description() string { return b.meta.Description }
func (b Base) Group() string       { return b.meta.Group }

// SuppliedDataItems always includes the derived shop item.
func (b Base) SuppliedDataItems() []datatypes.Name {
	out := slices.Clone(b.meta.Supplies)
	if !slices.Contains(out, datatypes.Shop) {
		out = append(out, datatypes.Shop)
	}

	return out
}

func (b Base) RequiredAsyncEvents() []string { return slices.Clone(b.meta.AsyncEvents) }
func (b Base) Fields() []actions.Field       { return slices.Clone(b.meta.Fields) }

func (b Base) RegisterHooks(eventbus.Subscriber, Dispatcher) error { return nil }

func (b Base) ValidateWorkflow(context.Context, *models.Workflow, *datalayer.DataLayer) bool {
	return true
}

func (b Base) ValidateBeforeQueuedEvent(context.Context, *models.Workflow, *datalayer.DataLayer) bool {
	return true
}

func (b Base) DuplicateGuard() (datatypes.Name, bool) {
	return b.meta.DuplicateGuard, b.meta.DuplicateGuard != ""
}

// Env holds the collaborators triggers use to build data layers.
type Env struct {
	Store    entities.Store
	Codec    *datalayer.Codec
	Logger   *slog.Logger
	Location func(ctx context.Context) *time.Location
	Now      func() time.Time
}

func (e Env) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}

	return time.Now()
}

func (e Env) location(ctx context.Context) *time.Location {
	if e.Location != nil {
		return e.Location(ctx)
	}

	return time.UTC
}

// Lookup resolves a trigger by name.
type Lookup interface {
	Trigger(name string) (Trigger, bool)
}

// Set is a Lookup over a fixed list of triggers.
type Set map[string]Trigger

func NewSet(triggers ...Trigger) Set {
	s := make(Set, len(triggers))
	for _, t := range triggers {
		s[t.Name()] = t
	}

	return s
}

func (s Set) Trigger(name string) (Trigger, bool) {
	t, ok := s[name]

	return t, ok
}

// Names returns the trigger names, sorted.
func (s Set) Names() []string {
	out := make([]string, 0, len(s))
	for name := range s {
		out = append(out, name)
	}

	slices.Sort(out)

	return out
}
