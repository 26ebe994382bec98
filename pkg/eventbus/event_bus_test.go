package eventbus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/shopflow/pkg/channels/gochannel"
	"github.com/dukex/shopflow/pkg/log"
)

func TestLocal_DispatchesInSubscriptionOrder(t *testing.T) {
	bus := NewLocal()

	var calls []string

	require.NoError(t, bus.Subscribe(OrderPaid, func(_ context.Context, e Event) error {
		paid, ok := Payload[OrderPaidEvent](e)
		require.True(t, ok)
		calls = append(calls, "first:"+paid.OrderID)

		return errors.New("first failed")
	}))
	require.NoError(t, bus.Subscribe(OrderPaid, func(context.Context, Event) error {
		calls = append(calls, "second")

		return nil
	}))

	err := bus.Publish(t.Context(), &OrderPaidEvent{OrderID: "501"})

	require.EqualError(t, err, "first failed")
	assert.Equal(t, []string{"first:501", "second"}, calls)
	assert.True(t, bus.Subscribed(OrderPaid))
	assert.False(t, bus.Subscribed(CartAbandoned))
}

func TestLocal_RejectsUnknownTopic(t *testing.T) {
	bus := NewLocal()

	require.ErrorIs(t, bus.Subscribe("download.created", nil), ErrUnknownTopic)
}

func TestNewPayload_CoversEveryTopic(t *testing.T) {
	for _, topic := range Topics() {
		event, err := NewPayload(topic)
		require.NoError(t, err, topic)
		assert.Equal(t, topic, event.Topic())
	}

	_, err := NewPayload("nope")
	require.ErrorIs(t, err, ErrUnknownTopic)
	assert.True(t, OrderUpdated.Raw())
	assert.False(t, OrderPaid.Raw())
}

func TestPayload(t *testing.T) {
	byValue, ok := Payload[CartUpdatedEvent](CartUpdatedEvent{CartID: "c1"})
	require.True(t, ok)
	assert.Equal(t, "c1", byValue.CartID)

	byPointer, ok := Payload[CartUpdatedEvent](&CartUpdatedEvent{CartID: "c2"})
	require.True(t, ok)
	assert.Equal(t, "c2", byPointer.CartID)

	_, ok = Payload[CartUpdatedEvent]((*CartUpdatedEvent)(nil))
	assert.False(t, ok)

	_, ok = Payload[CartUpdatedEvent](&OrderPaidEvent{})
	assert.False(t, ok)
}

func TestLocal_DeliversValueAndPointerEvents(t *testing.T) {
	bus := NewLocal()

	var orders []string

	require.NoError(t, bus.Subscribe(OrderCreated, func(_ context.Context, e Event) error {
		created, ok := Payload[OrderCreatedEvent](e)
		require.True(t, ok)

		orders = append(orders, created.OrderID)

		return nil
	}))

	require.NoError(t, bus.Publish(t.Context(), OrderCreatedEvent{OrderID: "o1"}))
	require.NoError(t, bus.Publish(t.Context(), &OrderCreatedEvent{OrderID: "o2"}))

	assert.Equal(t, []string{"o1", "o2"}, orders)
}

func TestWatermill_RoundTripOverGoChannel(t *testing.T) {
	pub, sub, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := NewWatermill(log.Discard(), pub, sub)

	t.Cleanup(func() { _ = bus.Close() })

	received := make(chan *OrderStatusChangedEvent, 1)

	require.NoError(t, bus.Subscribe(OrderStatusChanged, func(_ context.Context, e Event) error {
		changed, ok := Payload[OrderStatusChangedEvent](e)
		if ok {
			received <- changed
		}

		return nil
	}))
	require.NoError(t, bus.Start(t.Context()))

	require.NoError(t, bus.Publish(t.Context(), &OrderCreatedEvent{OrderID: "ignored"}))
	require.NoError(t, bus.Publish(t.Context(), &OrderStatusChangedEvent{OrderID: "501", From: "pending", To: "processing"}))

	select {
	case got := <-received:
		assert.Equal(t, OrderStatusChangedEvent{OrderID: "501", From: "pending", To: "processing"}, *got)
	case <-time.After(5 * time.Second):
		t.Fatal("event not delivered")
	}
}
