// Package asyncevents wraps raw shop event sources into derived events that
// are only wired up when an active trigger needs them.
package asyncevents

import (
	"context"
	"log/slog"
	"time"

	"github.com/dukex/shopflow/pkg/entities"
	"github.com/dukex/shopflow/pkg/eventbus"
	"github.com/dukex/shopflow/pkg/options"
	"github.com/dukex/shopflow/pkg/scheduler"
)

// Event names.
const (
	OrderCreated              = "order_created"
	OrderStatusChanged        = "order_status_changed"
	OrderPaid                 = "order_paid"
	CartUpdated               = "cart_updated"
	CartAbandoned             = "cart_abandoned"
	SubscriptionStatusChanged = "subscription_status_changed"
)

// CartAbandonedScanJob is the recurring job marking inactive carts abandoned.
const CartAbandonedScanJob = "cart_abandoned_scan"

// Deps are the collaborators handed to an event's Init.
type Deps struct {
	Bus       eventbus.Bus
	Store     entities.Store
	Writer    entities.Writer
	Scheduler scheduler.Scheduler
	Settings  *options.Settings
	Logger    *slog.Logger
	Now       func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}

	return time.Now()
}

// AsyncEvent subscribes to raw sources and publishes a derived topic.
type AsyncEvent struct {
	Name         string
	Dependencies []string
	Init         func(ctx context.Context, deps Deps) error
}

// Builtin returns every async event shipped with the engine.
func Builtin() []AsyncEvent {
	return []AsyncEvent{
		{Name: OrderCreated, Init: initOrderCreated},
		{Name: OrderStatusChanged, Init: initOrderStatusChanged},
		{Name: OrderPaid, Dependencies: []string{OrderStatusChanged}, Init: initOrderPaid},
		{Name: CartUpdated, Init: initCartUpdated},
		{Name: CartAbandoned, Dependencies: []string{CartUpdated}, Init: initCartAbandoned},
		{Name: SubscriptionStatusChanged, Init: initSubscriptionStatusChanged},
	}
}

func initOrderCreated(_ context.Context, deps Deps) error {
	return deps.Bus.Subscribe(eventbus.OrderCreated, func(ctx context.Context, event eventbus.Event) error {
		e, ok := eventbus.Payload[eventbus.OrderCreatedEvent](event)
		if !ok {
			return nil
		}

		order, err := deps.Store.Order(ctx, e.OrderID)
		if err != nil {
			deps.Logger.WarnContext(ctx, "Skipping placed order", "order_id", e.OrderID, "error", err)

			return nil
		}

		if order.Status == entities.OrderStatusFailed {
			return nil
		}

		return deps.Bus.Publish(ctx, eventbus.OrderPlacedEvent{OrderID: order.ID})
	})
}

func initOrderStatusChanged(_ context.Context, deps Deps) error {
	return deps.Bus.Subscribe(eventbus.OrderUpdated, func(ctx context.Context, event eventbus.Event) error {
		e, ok := eventbus.Payload[eventbus.OrderUpdatedEvent](event)
		if !ok || e.PreviousStatus == e.Status {
			return nil
		}

		return deps.Bus.Publish(ctx, eventbus.OrderStatusChangedEvent{
			OrderID: e.OrderID,
			From:    e.PreviousStatus,
			To:      e.Status,
		})
	})
}

// initOrderPaid publishes once per transition into a paid status.
func initOrderPaid(_ context.Context, deps Deps) error {
	return deps.Bus.Subscribe(eventbus.OrderStatusChanged, func(ctx context.Context, event eventbus.Event) error {
		e, ok := eventbus.Payload[eventbus.OrderStatusChangedEvent](event)
		if !ok || entities.IsPaidStatus(e.From) || !entities.IsPaidStatus(e.To) {
			return nil
		}

		return deps.Bus.Publish(ctx, eventbus.OrderPaidEvent{OrderID: e.OrderID})
	})
}

// initCartUpdated reactivates an abandoned cart once the shopper touches it
// again, so it can be abandoned anew.
func initCartUpdated(_ context.Context, deps Deps) error {
	return deps.Bus.Subscribe(eventbus.CartUpdated, func(ctx context.Context, event eventbus.Event) error {
		e, ok := eventbus.Payload[eventbus.CartUpdatedEvent](event)
		if !ok {
			return nil
		}

		cart, err := deps.Store.Cart(ctx, e.CartID)
		if err != nil {
			return nil
		}

		if cart.Status != entities.CartStatusAbandoned {
			return nil
		}

		return deps.Writer.UpdateCartStatus(ctx, cart.ID, entities.CartStatusActive)
	})
}

func initCartAbandoned(ctx context.Context, deps Deps) error {
	deps.Scheduler.Register(CartAbandonedScanJob, func(ctx context.Context, _ map[string]any) error {
		return scanAbandonedCarts(ctx, deps)
	})

	return deps.Scheduler.ScheduleRecurring(ctx, scheduler.EveryTwoMinutes, CartAbandonedScanJob)
}

func scanAbandonedCarts(ctx context.Context, deps Deps) error {
	before := deps.now().Add(-deps.Settings.AbandonedCartTimeout(ctx))
	limit := deps.Settings.BatchPageSize(ctx)

	var ids []string

	for offset := 0; ; offset += limit {
		page, err := deps.Store.InactiveCarts(ctx, before, offset, limit)
		if err != nil {
			return err
		}

		ids = append(ids, page...)

		if len(page) < limit {
			break
		}
	}

	for _, id := range ids {
		err := deps.Writer.UpdateCartStatus(ctx, id, entities.CartStatusAbandoned)
		if err != nil {
			deps.Logger.WarnContext(ctx, "Failed to mark cart abandoned", "cart_id", id, "error", err)

			continue
		}

		err = deps.Bus.Publish(ctx, eventbus.CartAbandonedEvent{CartID: id})
		if err != nil {
			deps.Logger.ErrorContext(ctx, "Cart abandoned handlers failed", "cart_id", id, "error", err)
		}
	}

	if len(ids) > 0 {
		deps.Logger.InfoContext(ctx, "Marked carts abandoned", "count", len(ids))
	}

	return nil
}

func initSubscriptionStatusChanged(_ context.Context, deps Deps) error {
	return deps.Bus.Subscribe(eventbus.SubscriptionUpdated, func(ctx context.Context, event eventbus.Event) error {
		e, ok := eventbus.Payload[eventbus.SubscriptionUpdatedEvent](event)
		if !ok || e.PreviousStatus == e.Status {
			return nil
		}

		return deps.Bus.Publish(ctx, eventbus.SubscriptionStatusChangedEvent{
			SubscriptionID: e.SubscriptionID,
			From:           e.PreviousStatus,
			To:             e.Status,
		})
	})
}
