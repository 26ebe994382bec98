package eventbus

import (
	"fmt"
	"slices"
)

// Topic names an event stream.
type Topic string

// Raw topics are fed by the shop backend.
const (
	OrderCreated        Topic = "order.created"
	OrderUpdated        Topic = "order.updated"
	CustomerCreated     Topic = "customer.created"
	CartUpdated         Topic = "cart.updated"
	SubscriptionUpdated Topic = "subscription.updated"
)

// Derived topics are published by async events.
const (
	OrderPlaced               Topic = "order.placed"
	OrderStatusChanged        Topic = "order.status_changed"
	OrderPaid                 Topic = "order.paid"
	CartAbandoned             Topic = "cart.abandoned"
	SubscriptionStatusChanged Topic = "subscription.status_changed"
)

var rawTopics = []Topic{OrderCreated, OrderUpdated, CustomerCreated, CartUpdated, SubscriptionUpdated}

var derivedTopics = []Topic{OrderPlaced, OrderStatusChanged, OrderPaid, CartAbandoned, SubscriptionStatusChanged}

// Topics lists every topic, raw first.
func Topics() []Topic {
	return slices.Concat(rawTopics, derivedTopics)
}

func (t Topic) Valid() bool {
	return slices.Contains(rawTopics, t) || slices.Contains(derivedTopics, t)
}

// Raw reports whether external sources may publish on t.
func (t Topic) Raw() bool {
	return slices.Contains(rawTopics, t)
}

type OrderCreatedEvent struct {
	OrderID string `json:"order_id" validate:"required"`
}

func (OrderCreatedEvent) Topic() Topic { return OrderCreated }

type OrderUpdatedEvent struct {
	OrderID        string `json:"order_id"        validate:"required"`
	PreviousStatus string `json:"previous_status"`
	Status         string `json:"status"          validate:"required"`
}

func (OrderUpdatedEvent) Topic() Topic { return OrderUpdated }

type CustomerCreatedEvent struct {
	CustomerID string `json:"customer_id" validate:"required"`
}

func (CustomerCreatedEvent) Topic() Topic { return CustomerCreated }

type CartUpdatedEvent struct {
	CartID string `json:"cart_id" validate:"required"`
}

func (CartUpdatedEvent) Topic() Topic { return CartUpdated }

type SubscriptionUpdatedEvent struct {
	SubscriptionID string `json:"subscription_id" validate:"required"`
	PreviousStatus string `json:"previous_status"`
	Status         string `json:"status"          validate:"required"`
}

func (SubscriptionUpdatedEvent) Topic() Topic { return SubscriptionUpdated }

type OrderPlacedEvent struct {
	OrderID string `json:"order_id" validate:"required"`
}

func (OrderPlacedEvent) Topic() Topic { return OrderPlaced }

type OrderStatusChangedEvent struct {
	OrderID string `json:"order_id" validate:"required"`
	From    string `json:"from"`
	To      string `json:"to"       validate:"required"`
}

func (OrderStatusChangedEvent) Topic() Topic { return OrderStatusChanged }

type OrderPaidEvent struct {
	OrderID string `json:"order_id" validate:"required"`
}

func (OrderPaidEvent) Topic() Topic { return OrderPaid }

type CartAbandonedEvent struct {
	CartID string `json:"cart_id" validate:"required"`
}

func (CartAbandonedEvent) Topic() Topic { return CartAbandoned }

type SubscriptionStatusChangedEvent struct {
	SubscriptionID string `json:"subscription_id" validate:"required"`
	From           string `json:"from"`
	To             string `json:"to"              validate:"required"`
}

func (SubscriptionStatusChangedEvent) Topic() Topic { return SubscriptionStatusChanged }

// NewPayload returns an empty payload for decoding messages of topic.
func NewPayload(topic Topic) (Event, error) {
	switch topic {
	case OrderCreated:
		return &OrderCreatedEvent{}, nil
	case OrderUpdated:
		return &OrderUpdatedEvent{}, nil
	case CustomerCreated:
		return &CustomerCreatedEvent{}, nil
	case CartUpdated:
		return &CartUpdatedEvent{}, nil
	case SubscriptionUpdated:
		return &SubscriptionUpdatedEvent{}, nil
	case OrderPlaced:
		return &OrderPlacedEvent{}, nil
	case OrderStatusChanged:
		return &OrderStatusChangedEvent{}, nil
	case OrderPaid:
		return &OrderPaidEvent{}, nil
	case CartAbandoned:
		return &CartAbandonedEvent{}, nil
	case SubscriptionStatusChanged:
		return &SubscriptionStatusChangedEvent{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
	}
}

// Payload returns the event as *T whether it was published by value or by
// pointer.
func Payload[T any](event Event) (*T, bool) {
	switch e := any(event).(type) {
	case *T:
		return e, e != nil
	case T:
		return &e, true
	default:
		return nil, false
	}
}
