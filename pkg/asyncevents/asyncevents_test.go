package asyncevents

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/shopflow/pkg/entities"
	"github.com/dukex/shopflow/pkg/eventbus"
	"github.com/dukex/shopflow/pkg/log"
	"github.com/dukex/shopflow/pkg/options"
	"github.com/dukex/shopflow/pkg/scheduler"
)

type triggerEvents map[string][]string

func (t triggerEvents) RequiredAsyncEvents(trigger string) []string {
	return t[trigger]
}

type activeTriggers struct {
	names []string
}

func (a *activeTriggers) Names(context.Context) ([]string, error) {
	return a.names, nil
}

type fixture struct {
	bus       *eventbus.Local
	store     *entities.MemoryStore
	scheduler *scheduler.Manual
	deps      Deps
	now       time.Time
}

func newFixture() *fixture {
	f := &fixture{
		bus:       eventbus.NewLocal(),
		store:     entities.NewMemoryStore(),
		scheduler: scheduler.NewManual(log.Discard()),
		now:       time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC),
	}

	f.deps = Deps{
		Bus:       f.bus,
		Store:     f.store,
		Writer:    f.store,
		Scheduler: f.scheduler,
		Settings:  options.NewSettings(log.Discard(), options.NewMemory()),
		Logger:    log.Discard(),
		Now:       func() time.Time { return f.now },
	}

	return f
}

func (f *fixture) record(t *testing.T, topic eventbus.Topic) *[]eventbus.Event {
	t.Helper()

	var got []eventbus.Event

	require.NoError(t, f.bus.Subscribe(topic, func(_ context.Context, e eventbus.Event) error {
		got = append(got, e)

		return nil
	}))

	return &got
}

func TestManager_RequiredEvents(t *testing.T) {
	f := newFixture()
	active := &activeTriggers{names: []string{"order_paid", "cart_abandoned"}}
	triggers := triggerEvents{
		"order_paid":     {OrderPaid},
		"cart_abandoned": {CartAbandoned},
		"order_created":  {OrderCreated},
	}

	m := NewManager(f.deps, Builtin(), nil, triggers, active)

	got, err := m.RequiredEvents(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []string{CartAbandoned, CartUpdated, OrderPaid, OrderStatusChanged}, got)

	// Disabling the only trigger needing cart_abandoned drops it and its dependency.
	active.names = []string{"order_paid"}

	got, err = m.RequiredEvents(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []string{OrderPaid, OrderStatusChanged}, got)
}

func TestManager_AlwaysRequired(t *testing.T) {
	f := newFixture()
	m := NewManager(f.deps, Builtin(), []string{SubscriptionStatusChanged}, triggerEvents{}, &activeTriggers{})

	got, err := m.RequiredEvents(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []string{SubscriptionStatusChanged}, got)
}

func TestManager_InitOnce(t *testing.T) {
	f := newFixture()
	active := &activeTriggers{names: []string{"order_status_changes"}}
	triggers := triggerEvents{
		"order_status_changes": {OrderStatusChanged},
		"order_placed":         {OrderCreated},
	}

	m := NewManager(f.deps, Builtin(), nil, triggers, active)

	started, err := m.InitRequiredEvents(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []string{OrderStatusChanged}, started)

	started, err = m.InitRequiredEvents(t.Context())
	require.NoError(t, err)
	assert.Empty(t, started)

	assert.True(t, f.bus.Subscribed(eventbus.OrderUpdated))
	assert.False(t, f.bus.Subscribed(eventbus.OrderCreated))

	active.names = append(active.names, "order_placed")

	started, err = m.InitRequiredEvents(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []string{OrderCreated}, started)
	assert.Equal(t, []string{OrderCreated, OrderStatusChanged}, m.Initialized())

	changed := f.record(t, eventbus.OrderStatusChanged)

	require.NoError(t, f.bus.Publish(t.Context(), eventbus.OrderUpdatedEvent{OrderID: "1", PreviousStatus: "pending", Status: "processing"}))
	assert.Len(t, *changed, 1, "handler subscribed exactly once")
}

func TestOrderPaid(t *testing.T) {
	f := newFixture()
	m := NewManager(f.deps, Builtin(), []string{OrderPaid}, triggerEvents{}, &activeTriggers{})

	_, err := m.InitRequiredEvents(t.Context())
	require.NoError(t, err)

	paid := f.record(t, eventbus.OrderPaid)
	ctx := t.Context()

	require.NoError(t, f.bus.Publish(ctx, eventbus.OrderUpdatedEvent{OrderID: "1", PreviousStatus: "pending", Status: "pending"}))
	require.NoError(t, f.bus.Publish(ctx, eventbus.OrderUpdatedEvent{OrderID: "1", PreviousStatus: "pending", Status: "processing"}))
	require.NoError(t, f.bus.Publish(ctx, eventbus.OrderUpdatedEvent{OrderID: "1", PreviousStatus: "processing", Status: "completed"}))

	require.Len(t, *paid, 1)

	e, ok := eventbus.Payload[eventbus.OrderPaidEvent]((*paid)[0])
	require.True(t, ok)
	assert.Equal(t, "1", e.OrderID)
}

func TestOrderCreated(t *testing.T) {
	f := newFixture()
	f.store.PutOrder(&entities.Order{ID: "1", Status: entities.OrderStatusPending})
	f.store.PutOrder(&entities.Order{ID: "2", Status: entities.OrderStatusFailed})

	require.NoError(t, initOrderCreated(t.Context(), f.deps))

	placed := f.record(t, eventbus.OrderPlaced)

	for _, id := range []string{"1", "2", "missing"} {
		require.NoError(t, f.bus.Publish(t.Context(), eventbus.OrderCreatedEvent{OrderID: id}))
	}

	require.Len(t, *placed, 1)
}

func TestSubscriptionStatusChanged(t *testing.T) {
	f := newFixture()
	require.NoError(t, initSubscriptionStatusChanged(t.Context(), f.deps))

	changed := f.record(t, eventbus.SubscriptionStatusChanged)

	require.NoError(t, f.bus.Publish(t.Context(), eventbus.SubscriptionUpdatedEvent{SubscriptionID: "s", PreviousStatus: "active", Status: "on-hold"}))
	require.NoError(t, f.bus.Publish(t.Context(), eventbus.SubscriptionUpdatedEvent{SubscriptionID: "s", PreviousStatus: "on-hold", Status: "on-hold"}))

	require.Len(t, *changed, 1)

	e, _ := eventbus.Payload[eventbus.SubscriptionStatusChangedEvent]((*changed)[0])
	assert.Equal(t, "active", e.From)
	assert.Equal(t, "on-hold", e.To)
}

func TestCartAbandoned_ScanAndReactivate(t *testing.T) {
	f := newFixture()
	ctx := t.Context()
	items := []entities.CartItem{{ProductID: "p", Quantity: 1, Total: 10}}

	f.store.PutCart(&entities.Cart{ID: "old", GuestEmail: "a@example.com", Status: entities.CartStatusActive, Items: items, UpdatedAt: f.now.Add(-time.Hour)})
	f.store.PutCart(&entities.Cart{ID: "fresh", GuestEmail: "b@example.com", Status: entities.CartStatusActive, Items: items, UpdatedAt: f.now.Add(-time.Minute)})

	m := NewManager(f.deps, Builtin(), []string{CartAbandoned}, triggerEvents{}, &activeTriggers{})

	started, err := m.InitRequiredEvents(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{CartUpdated, CartAbandoned}, started)
	assert.Equal(t, []string{CartAbandonedScanJob}, f.scheduler.Recurring(scheduler.EveryTwoMinutes))

	abandoned := f.record(t, eventbus.CartAbandoned)

	require.NoError(t, f.scheduler.Tick(ctx, scheduler.EveryTwoMinutes))
	require.Len(t, *abandoned, 1)

	cart, err := f.store.Cart(ctx, "old")
	require.NoError(t, err)
	assert.Equal(t, entities.CartStatusAbandoned, cart.Status)

	// A second scan does not abandon the same cart again.
	require.NoError(t, f.scheduler.Tick(ctx, scheduler.EveryTwoMinutes))
	assert.Len(t, *abandoned, 1)

	require.NoError(t, f.bus.Publish(ctx, eventbus.CartUpdatedEvent{CartID: "old"}))

	cart, err = f.store.Cart(ctx, "old")
	require.NoError(t, err)
	assert.Equal(t, entities.CartStatusActive, cart.Status)
}
