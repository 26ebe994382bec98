package triggers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/shopflow/pkg/actions"
	"github.com/dukex/shopflow/pkg/datalayer"
	"github.com/dukex/shopflow/pkg/datatypes"
	"github.com/dukex/shopflow/pkg/entities"
	"github.com/dukex/shopflow/pkg/eventbus"
	"github.com/dukex/shopflow/pkg/log"
	"github.com/dukex/shopflow/pkg/models"
)

type dispatched struct {
	trigger  string
	workflow string
	dl       *datalayer.DataLayer
	ctx      context.Context
}

type recordingDispatcher struct {
	calls []dispatched
}

func (r *recordingDispatcher) MaybeRun(ctx context.Context, trigger string, dl *datalayer.DataLayer) error {
	r.calls = append(r.calls, dispatched{trigger: trigger, dl: dl, ctx: ctx})

	return nil
}

func (r *recordingDispatcher) MaybeRunWorkflow(ctx context.Context, wf *models.Workflow, dl *datalayer.DataLayer) error {
	r.calls = append(r.calls, dispatched{workflow: wf.ID, dl: dl, ctx: ctx})

	return nil
}

type staticNames []string

func (s staticNames) Names(context.Context) ([]string, error) { return s, nil }

var now = time.Date(2025, 5, 5, 10, 0, 0, 0, time.UTC) // a Monday

func newEnv(store *entities.MemoryStore) Env {
	return Env{
		Store:  store,
		Codec:  datalayer.NewCodec(log.Discard(), datatypes.Catalog(store), nil),
		Logger: log.Discard(),
		Now:    func() time.Time { return now },
	}
}

func seed() *entities.MemoryStore {
	store := entities.NewMemoryStore()
	store.PutCustomer(&entities.Customer{ID: "c1", Email: "ana@example.com", FirstName: "Ana"})
	store.PutProduct(&entities.Product{ID: "p1", Name: "Mug"})
	store.PutOrder(&entities.Order{
		ID: "501", Status: entities.OrderStatusProcessing, CustomerID: "c1", BillingEmail: "ana@example.com", Total: 150,
		Items: []entities.OrderItem{
			{ID: "i1", OrderID: "501", ProductID: "p1", Quantity: 1, Total: 50},
			{ID: "i2", OrderID: "501", ProductID: "p2", Quantity: 2, Total: 100},
		},
	})
	store.PutCart(&entities.Cart{ID: "k1", GuestEmail: "ana@example.com", Status: entities.CartStatusAbandoned})

	return store
}

func workflow(trigger string, opts map[string]any) *models.Workflow {
	return &models.Workflow{ID: "w1", Trigger: models.TriggerConfig{Name: trigger, Options: opts}}
}

func TestBuiltin_Metadata(t *testing.T) {
	set := NewSet(Builtin(newEnv(seed()))...)

	assert.Len(t, set.Names(), 11)

	for _, name := range set.Names() {
		trigger, _ := set.Trigger(name)

		assert.NotEmpty(t, trigger.Title(), name)
		assert.Contains(t, trigger.SuppliedDataItems(), datatypes.Shop, name)

		defaults := map[string]any{}
		for _, f := range trigger.Fields() {
			if f.Default != nil {
				defaults[f.Name] = f.Default
			}
		}

		require.NoError(t, actions.ValidateFields(name, trigger.Fields(), defaults), name)
	}

	_, ok := set.Trigger(SubscriptionBeforeRenewalName)
	require.True(t, ok)

	trigger, _ := set.Trigger(SubscriptionBeforeRenewalName)
	_, batched := trigger.(BatchedTrigger)
	assert.True(t, batched)

	trigger, _ = set.Trigger(ManualOrderName)
	_, manual := trigger.(ManualTrigger)
	assert.True(t, manual)

	name, ok := NewOrderPaid(Env{}).DuplicateGuard()
	assert.True(t, ok)
	assert.Equal(t, datatypes.Order, name)

	_, ok = NewOrderStatusChanges(Env{}).DuplicateGuard()
	assert.False(t, ok)
}

func TestOrderStatusChanges_Hook(t *testing.T) {
	env := newEnv(seed())
	bus := eventbus.NewLocal()
	d := &recordingDispatcher{}
	trigger := NewOrderStatusChanges(env)

	require.NoError(t, trigger.RegisterHooks(bus, d))
	require.NoError(t, bus.Publish(t.Context(), eventbus.OrderStatusChangedEvent{OrderID: "501", From: "pending", To: "processing"}))
	require.NoError(t, bus.Publish(t.Context(), eventbus.OrderStatusChangedEvent{OrderID: "missing", From: "pending", To: "processing"}))

	require.Len(t, d.calls, 1)

	call := d.calls[0]
	assert.Equal(t, OrderStatusChangesName, call.trigger)
	assert.Equal(t, "501", call.dl.Order().ID)
	assert.Equal(t, "c1", call.dl.Customer().ID)
	assert.True(t, call.dl.Has(datatypes.Shop))

	tests := []struct {
		name string
		opts map[string]any
		want bool
	}{
		{"no filter", nil, true},
		{"to matches", map[string]any{OptionToStatus: "processing, completed"}, true},
		{"to differs", map[string]any{OptionToStatus: "completed"}, false},
		{"from matches list", map[string]any{OptionFromStatus: []any{"pending"}, OptionToStatus: "processing"}, true},
		{"from differs", map[string]any{OptionFromStatus: "on-hold"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, trigger.ValidateWorkflow(call.ctx, workflow(OrderStatusChangesName, tt.opts), call.dl))
		})
	}
}

func TestOrderStatusChanges_ValidateBeforeQueuedEvent(t *testing.T) {
	store := seed()
	env := newEnv(store)
	trigger := NewOrderStatusChanges(env)
	wf := workflow(OrderStatusChangesName, map[string]any{OptionToStatus: "processing"})

	dl, _, err := env.orderLayer(t.Context(), "501")
	require.NoError(t, err)
	assert.True(t, trigger.ValidateBeforeQueuedEvent(t.Context(), wf, dl))

	require.NoError(t, store.UpdateOrderStatus(t.Context(), "501", entities.OrderStatusCancelled, ""))

	dl, _, err = env.orderLayer(t.Context(), "501")
	require.NoError(t, err)
	assert.False(t, trigger.ValidateBeforeQueuedEvent(t.Context(), wf, dl))
	assert.False(t, trigger.ValidateBeforeQueuedEvent(t.Context(), wf, datalayer.MustNew()))
}

func TestOrderItemPurchased_OneLayerPerItem(t *testing.T) {
	env := newEnv(seed())
	bus := eventbus.NewLocal()
	d := &recordingDispatcher{}
	trigger := NewOrderItemPurchased(env)

	require.NoError(t, trigger.RegisterHooks(bus, d))
	require.NoError(t, bus.Publish(t.Context(), eventbus.OrderPaidEvent{OrderID: "501"}))

	require.Len(t, d.calls, 2)
	assert.Equal(t, "i1", d.calls[0].dl.OrderItem().ID)
	assert.Equal(t, "p1", d.calls[0].dl.Product().ID)
	assert.Nil(t, d.calls[1].dl.Product(), "unknown product is left out")

	wf := workflow(OrderItemPurchasedName, map[string]any{OptionProducts: "p1"})
	assert.True(t, trigger.ValidateWorkflow(t.Context(), wf, d.calls[0].dl))
	assert.False(t, trigger.ValidateWorkflow(t.Context(), wf, d.calls[1].dl))
}

func TestCartAbandoned_GuestCustomerAndRevalidation(t *testing.T) {
	store := seed()
	env := newEnv(store)
	bus := eventbus.NewLocal()
	d := &recordingDispatcher{}
	trigger := NewCartAbandoned(env)

	require.NoError(t, trigger.RegisterHooks(bus, d))
	require.NoError(t, bus.Publish(t.Context(), eventbus.CartAbandonedEvent{CartID: "k1"}))

	require.Len(t, d.calls, 1)

	dl := d.calls[0].dl
	assert.Equal(t, "c1", dl.Customer().ID)
	assert.True(t, trigger.ValidateBeforeQueuedEvent(t.Context(), nil, dl))

	require.NoError(t, store.UpdateCartStatus(t.Context(), "k1", entities.CartStatusOrdered))

	dl, err := env.cartLayer(t.Context(), "k1")
	require.NoError(t, err)
	assert.False(t, trigger.ValidateBeforeQueuedEvent(t.Context(), nil, dl))
}

func TestSubscriptionBeforeRenewal_Batch(t *testing.T) {
	store := seed()
	renews := now.AddDate(0, 0, 3).Add(2 * time.Hour)
	later := now.AddDate(0, 0, 5)

	store.PutSubscription(&entities.Subscription{ID: "s1", CustomerID: "c1", Status: entities.SubscriptionStatusActive, NextPaymentDate: &renews})
	store.PutSubscription(&entities.Subscription{ID: "s2", CustomerID: "c1", Status: entities.SubscriptionStatusActive, NextPaymentDate: &later})

	env := newEnv(store)
	trigger := NewSubscriptionBeforeRenewal(env)
	wf := workflow(SubscriptionBeforeRenewalName, map[string]any{OptionDaysBefore: float64(3)})

	ids, err := trigger.BatchForWorkflow(t.Context(), wf, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, ids)

	d := &recordingDispatcher{}
	require.NoError(t, trigger.ProcessItemForWorkflow(t.Context(), wf, "s1", d))
	require.Len(t, d.calls, 1)
	assert.Equal(t, "w1", d.calls[0].workflow)
	assert.Equal(t, "s1", d.calls[0].dl.Subscription().ID)

	require.Error(t, trigger.ProcessItemForWorkflow(t.Context(), wf, "missing", d))
}

func TestCardExpiresSoon_Batch(t *testing.T) {
	store := seed()
	store.PutCard(&entities.Card{ID: "card1", CustomerID: "c1", ExpiryMonth: 5, ExpiryYear: 2025})
	store.PutCard(&entities.Card{ID: "card2", CustomerID: "c1", ExpiryMonth: 12, ExpiryYear: 2030})

	trigger := NewCardExpiresSoon(newEnv(store))
	// May 2025 cards expire on the last second of May 31, 26 days after now.
	wf := workflow(CardExpiresSoonName, map[string]any{OptionDaysBefore: "26"})

	ids, err := trigger.BatchForWorkflow(t.Context(), wf, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"card1"}, ids)
}

func TestSchedule(t *testing.T) {
	s, err := ParseSchedule("09:30", []string{"monday", "Wed", "5"})
	require.NoError(t, err)
	assert.Equal(t, []time.Weekday{time.Monday, time.Wednesday, time.Friday}, s.Weekdays)

	assert.True(t, s.Due(now, time.UTC))
	assert.False(t, s.Due(now.Add(-time.Hour), time.UTC))
	assert.False(t, s.Due(now.AddDate(0, 0, 1), time.UTC), "Tuesday")
	assert.Equal(t, "2025-05-05", s.Day(now, time.UTC))

	start, ok := s.Start(now, time.UTC)
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 5, 5, 9, 30, 0, 0, time.UTC), start)

	_, ok = s.Start(now.AddDate(0, 0, 1), time.UTC)
	assert.False(t, ok, "Tuesday")

	_, err = ParseSchedule("9am", nil)
	require.Error(t, err)

	_, err = ParseSchedule("", []string{"someday"})
	require.Error(t, err)

	always, err := ParseSchedule("", nil)
	require.NoError(t, err)
	assert.True(t, always.Due(now, time.UTC))
}

func TestManualOrder_DataLayer(t *testing.T) {
	trigger := NewManualOrder(newEnv(seed()))

	dl, err := trigger.DataLayer(t.Context(), "501")
	require.NoError(t, err)
	assert.Equal(t, "501", dl.Order().ID)

	_, err = trigger.DataLayer(t.Context(), "nope")
	require.ErrorIs(t, err, entities.ErrNotFound)
}

func TestHooks_RegisterOnce(t *testing.T) {
	env := newEnv(seed())
	bus := eventbus.NewLocal()
	d := &recordingDispatcher{}
	set := NewSet(Builtin(env)...)
	active := staticNames{OrderPaidName, "unknown"}

	hooks := NewHooks(log.Discard(), bus, d, set, &active)

	added, err := hooks.Register(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []string{OrderPaidName}, added)

	added, err = hooks.Register(t.Context())
	require.NoError(t, err)
	assert.Empty(t, added)

	assert.False(t, bus.Subscribed(eventbus.CartAbandoned))

	active = append(active, CartAbandonedName)

	added, err = hooks.Register(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []string{CartAbandonedName}, added)
	assert.Equal(t, []string{CartAbandonedName, OrderPaidName}, hooks.Registered())

	require.NoError(t, bus.Publish(t.Context(), eventbus.OrderPaidEvent{OrderID: "501"}))
	assert.Len(t, d.calls, 1)
}
