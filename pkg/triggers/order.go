package triggers

import (
	"context"
	"errors"
	"fmt"

	"github.com/dukex/shopflow/pkg/actions"
	"github.com/dukex/shopflow/pkg/asyncevents"
	"github.com/dukex/shopflow/pkg/datalayer"
	"github.com/dukex/shopflow/pkg/datatypes"
	"github.com/dukex/shopflow/pkg/entities"
	"github.com/dukex/shopflow/pkg/eventbus"
	"github.com/dukex/shopflow/pkg/models"
)

const (
	OrderCreatedName        = "order_created"
	OrderStatusChangesName  = "order_status_changes"
	OrderPaidName           = "order_paid"
	OrderItemPurchasedName  = "order_item_purchased"
	ManualOrderName         = "manual_order"
	OptionFromStatus        = "from_status"
	OptionToStatus          = "to_status"
	OptionProducts          = "products"
	orderGroup              = "Orders"
	orderStatusListHelpText = "Comma separated statuses. Leave empty for any status."
)

var orderSupplies = []datatypes.Name{datatypes.Order, datatypes.Customer}

type OrderCreated struct {
	Base
	env Env
}

func NewOrderCreated(env Env) *OrderCreated {
	return &OrderCreated{
		Base: NewBase(Meta{
			Name:           OrderCreatedName,
			Title:          "Order Created",
			Description:    "Fires once when a new order is placed, whatever its status.",
			Group:          orderGroup,
			Supplies:       orderSupplies,
			AsyncEvents:    []string{asyncevents.OrderCreated},
			DuplicateGuard: datatypes.Order,
		}),
		env: env,
	}
}

func (t *OrderCreated) RegisterHooks(bus eventbus.Subscriber, d Dispatcher) error {
	return bus.Subscribe(eventbus.OrderPlaced, func(ctx context.Context, event eventbus.Event) error {
		e, ok := eventbus.Payload[eventbus.OrderPlacedEvent](event)
		if !ok {
			return nil
		}

		return t.env.dispatch(ctx, d, t.Name(), func() (*datalayer.DataLayer, error) {
			dl, _, err := t.env.orderLayer(ctx, e.OrderID)

			return dl, err
		})
	})
}

// OrderStatusChanges fires on every status transition matching its
// from/to filters.
type OrderStatusChanges struct {
	Base
	env Env
}

func NewOrderStatusChanges(env Env) *OrderStatusChanges {
	return &OrderStatusChanges{
		Base: NewBase(Meta{
			Name:        OrderStatusChangesName,
			Title:       "Order Status Changes",
			Description: "Fires when an order moves between the configured statuses.",
			Group:       orderGroup,
			Supplies:    orderSupplies,
			AsyncEvents: []string{asyncevents.OrderStatusChanged},
			Fields: []actions.Field{
				{Name: OptionFromStatus, Title: "Order Status Changes From", Type: actions.FieldText, Description: orderStatusListHelpText},
				{Name: OptionToStatus, Title: "Order Status Changes To", Type: actions.FieldText, Description: orderStatusListHelpText},
			},
		}),
		env: env,
	}
}

func (t *OrderStatusChanges) RegisterHooks(bus eventbus.Subscriber, d Dispatcher) error {
	return bus.Subscribe(eventbus.OrderStatusChanged, func(ctx context.Context, event eventbus.Event) error {
		e, ok := eventbus.Payload[eventbus.OrderStatusChangedEvent](event)
		if !ok {
			return nil
		}

		ctx = WithTransition(ctx, Transition{From: e.From, To: e.To})

		return t.env.dispatch(ctx, d, t.Name(), func() (*datalayer.DataLayer, error) {
			dl, _, err := t.env.orderLayer(ctx, e.OrderID)

			return dl, err
		})
	})
}

func (t *OrderStatusChanges) ValidateWorkflow(ctx context.Context, wf *models.Workflow, dl *datalayer.DataLayer) bool {
	order := dl.Order()
	if order == nil {
		return false
	}

	tr, ok := TransitionFrom(ctx)
	if !ok {
		tr = Transition{To: order.Status}
	}

	if from := listOption(wf, OptionFromStatus); len(from) > 0 && !allowed(from, tr.From) {
		return false
	}

	return allowed(listOption(wf, OptionToStatus), tr.To)
}

// ValidateBeforeQueuedEvent requires the order to still hold a target status.
func (t *OrderStatusChanges) ValidateBeforeQueuedEvent(_ context.Context, wf *models.Workflow, dl *datalayer.DataLayer) bool {
	order := dl.Order()
	if order == nil {
		return false
	}

	return allowed(listOption(wf, OptionToStatus), order.Status)
}

type OrderPaid struct {
	Base
	env Env
}

func NewOrderPaid(env Env) *OrderPaid {
	return &OrderPaid{
		Base: NewBase(Meta{
			Name:           OrderPaidName,
			Title:          "Order Paid",
			Description:    "Fires once when payment for an order completes.",
			Group:          orderGroup,
			Supplies:       orderSupplies,
			AsyncEvents:    []string{asyncevents.OrderPaid},
			DuplicateGuard: datatypes.Order,
		}),
		env: env,
	}
}

func (t *OrderPaid) RegisterHooks(bus eventbus.Subscriber, d Dispatcher) error {
	return bus.Subscribe(eventbus.OrderPaid, func(ctx context.Context, event eventbus.Event) error {
		e, ok := eventbus.Payload[eventbus.OrderPaidEvent](event)
		if !ok {
			return nil
		}

		return t.env.dispatch(ctx, d, t.Name(), func() (*datalayer.DataLayer, error) {
			dl, _, err := t.env.orderLayer(ctx, e.OrderID)

			return dl, err
		})
	})
}

// ValidateBeforeQueuedEvent skips orders refunded or cancelled while queued.
func (t *OrderPaid) ValidateBeforeQueuedEvent(_ context.Context, _ *models.Workflow, dl *datalayer.DataLayer) bool {
	order := dl.Order()

	return order != nil && entities.IsPaidStatus(order.Status)
}

// OrderItemPurchased fires once per line of a paid order.
type OrderItemPurchased struct {
	Base
	env Env
}

func NewOrderItemPurchased(env Env) *OrderItemPurchased {
	return &OrderItemPurchased{
		Base: NewBase(Meta{
			Name:        OrderItemPurchasedName,
			Title:       "Order Item Purchased",
			Description: "Fires for each line item of an order once it is paid.",
			Group:       orderGroup,
			Supplies:    []datatypes.Name{datatypes.Order, datatypes.OrderItem, datatypes.Product, datatypes.Customer},
			AsyncEvents: []string{asyncevents.OrderPaid},
			Fields: []actions.Field{
				{Name: OptionProducts, Title: "Products", Type: actions.FieldText,
					Description: "Comma separated product IDs. Leave empty for any product."},
			},
			DuplicateGuard: datatypes.OrderItem,
		}),
		env: env,
	}
}

func (t *OrderItemPurchased) RegisterHooks(bus eventbus.Subscriber, d Dispatcher) error {
	return bus.Subscribe(eventbus.OrderPaid, func(ctx context.Context, event eventbus.Event) error {
		e, ok := eventbus.Payload[eventbus.OrderPaidEvent](event)
		if !ok {
			return nil
		}

		order, err := t.env.Store.Order(ctx, e.OrderID)
		if err != nil {
			t.env.Logger.WarnContext(ctx, "Skipping trigger, order unavailable", "trigger", t.Name(), "order_id", e.OrderID, "error", err)

			return nil
		}

		var errs []error

		for i := range order.Items {
			dl, err := t.env.orderItemLayer(ctx, order, &order.Items[i])
			if err != nil {
				errs = append(errs, fmt.Errorf("item %s: %w", order.Items[i].ID, err))

				continue
			}

			if err := d.MaybeRun(ctx, t.Name(), dl); err != nil {
				errs = append(errs, err)
			}
		}

		return errors.Join(errs...)
	})
}

func (t *OrderItemPurchased) ValidateWorkflow(_ context.Context, wf *models.Workflow, dl *datalayer.DataLayer) bool {
	item := dl.OrderItem()

	return item != nil && allowed(listOption(wf, OptionProducts), item.ProductID)
}

type ManualOrder struct {
	Base
	env Env
}

func NewManualOrder(env Env) *ManualOrder {
	return &ManualOrder{
		Base: NewBase(Meta{
			Name:        ManualOrderName,
			Title:       "Orders (Manual)",
			Description: "Runs on selected orders when started by an operator.",
			Group:       orderGroup,
			Supplies:    orderSupplies,
		}),
		env: env,
	}
}

func (t *ManualOrder) DataLayer(ctx context.Context, id string) (*datalayer.DataLayer, error) {
	dl, _, err := t.env.orderLayer(ctx, id)

	return dl, err
}
