package triggers

import (
	"context"
	"fmt"

	"github.com/dukex/shopflow/pkg/datalayer"
	"github.com/dukex/shopflow/pkg/datatypes"
	"github.com/dukex/shopflow/pkg/entities"
)

// build validates items into a data layer and adds the shop when the
// store provides one.
func (e Env) build(ctx context.Context, items ...datalayer.Item) (*datalayer.DataLayer, error) {
	shop, err := e.Store.Shop(ctx)
	if err == nil && shop != nil {
		items = append(items, datalayer.Item{Type: datatypes.Shop, Value: shop})
	}

	return e.Codec.Build(items...)
}

// customer resolves the customer of an entity by id, falling back to the
// email. It returns nil when neither resolves.
func (e Env) customer(ctx context.Context, id, email string) *entities.Customer {
	if id != "" {
		c, err := e.Store.Customer(ctx, id)
		if err == nil {
			return c
		}
	}

	if email != "" {
		c, err := e.Store.CustomerByEmail(ctx, email)
		if err == nil {
			return c
		}
	}

	return nil
}

func customerItem(c *entities.Customer) []datalayer.Item {
	if c == nil {
		return nil
	}

	return []datalayer.Item{{Type: datatypes.Customer, Value: c}}
}

func (e Env) orderLayer(ctx context.Context, orderID string) (*datalayer.DataLayer, *entities.Order, error) {
	order, err := e.Store.Order(ctx, orderID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load order %s: %w", orderID, err)
	}

	items := append([]datalayer.Item{{Type: datatypes.Order, Value: order}},
		customerItem(e.customer(ctx, order.CustomerID, order.BillingEmail))...)

	dl, err := e.build(ctx, items...)

	return dl, order, err
}

func (e Env) orderItemLayer(ctx context.Context, order *entities.Order, item *entities.OrderItem) (*datalayer.DataLayer, error) {
	items := []datalayer.Item{
		{Type: datatypes.Order, Value: order},
		{Type: datatypes.OrderItem, Value: item},
	}

	if product, err := e.Store.Product(ctx, item.ProductID); err == nil {
		items = append(items, datalayer.Item{Type: datatypes.Product, Value: product})
	}

	items = append(items, customerItem(e.customer(ctx, order.CustomerID, order.BillingEmail))...)

	return e.build(ctx, items...)
}

func (e Env) customerLayer(ctx context.Context, customerID string) (*datalayer.DataLayer, error) {
	c, err := e.Store.Customer(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load customer %s: %w", customerID, err)
	}

	return e.build(ctx, datalayer.Item{Type: datatypes.Customer, Value: c})
}

func (e Env) cartLayer(ctx context.Context, cartID string) (*datalayer.DataLayer, error) {
	cart, err := e.Store.Cart(ctx, cartID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart %s: %w", cartID, err)
	}

	items := append([]datalayer.Item{{Type: datatypes.Cart, Value: cart}},
		customerItem(e.customer(ctx, cart.CustomerID, cart.GuestEmail))...)

	return e.build(ctx, items...)
}

func (e Env) subscriptionLayer(ctx context.Context, subscriptionID string) (*datalayer.DataLayer, error) {
	sub, err := e.Store.Subscription(ctx, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load subscription %s: %w", subscriptionID, err)
	}

	items := append([]datalayer.Item{{Type: datatypes.Subscription, Value: sub}},
		customerItem(e.customer(ctx, sub.CustomerID, ""))...)

	return e.build(ctx, items...)
}

func (e Env) cardLayer(ctx context.Context, cardID string) (*datalayer.DataLayer, error) {
	card, err := e.Store.Card(ctx, cardID)
	if err != nil {
		return nil, fmt.Errorf("failed to load card %s: %w", cardID, err)
	}

	items := append([]datalayer.Item{{Type: datatypes.Card, Value: card}},
		customerItem(e.customer(ctx, card.CustomerID, ""))...)

	return e.build(ctx, items...)
}

// dispatch offers a layer built by load to the trigger's workflows. An
// entity that cannot be loaded is skipped with a warning.
func (e Env) dispatch(ctx context.Context, d Dispatcher, trigger string, load func() (*datalayer.DataLayer, error)) error {
	dl, err := load()
	if err != nil {
		e.Logger.WarnContext(ctx, "Skipping trigger, data layer unavailable", "trigger", trigger, "error", err)

		return nil
	}

	return d.MaybeRun(ctx, trigger, dl)
}
