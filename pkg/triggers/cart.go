package triggers

import (
	"context"

	"github.com/dukex/shopflow/pkg/asyncevents"
	"github.com/dukex/shopflow/pkg/datalayer"
	"github.com/dukex/shopflow/pkg/datatypes"
	"github.com/dukex/shopflow/pkg/entities"
	"github.com/dukex/shopflow/pkg/eventbus"
	"github.com/dukex/shopflow/pkg/models"
)

const CartAbandonedName = "cart_abandoned"

type CartAbandoned struct {
	Base
	env Env
}

func NewCartAbandoned(env Env) *CartAbandoned {
	return &CartAbandoned{
		Base: NewBase(Meta{
			Name:           CartAbandonedName,
			Title:          "Cart Abandoned",
			Description:    "Fires when a cart has been inactive for the abandoned cart timeout.",
			Group:          "Carts",
			Supplies:       []datatypes.Name{datatypes.Cart, datatypes.Customer},
			AsyncEvents:    []string{asyncevents.CartAbandoned},
			DuplicateGuard: datatypes.Cart,
		}),
		env: env,
	}
}

func (t *CartAbandoned) RegisterHooks(bus eventbus.Subscriber, d Dispatcher) error {
	return bus.Subscribe(eventbus.CartAbandoned, func(ctx context.Context, event eventbus.Event) error {
		e, ok := eventbus.Payload[eventbus.CartAbandonedEvent](event)
		if !ok {
			return nil
		}

		return t.env.dispatch(ctx, d, t.Name(), func() (*datalayer.DataLayer, error) {
			return t.env.cartLayer(ctx, e.CartID)
		})
	})
}

// ValidateBeforeQueuedEvent drops runs for carts that were recovered or
// turned into an order while queued.
func (t *CartAbandoned) ValidateBeforeQueuedEvent(_ context.Context, _ *models.Workflow, dl *datalayer.DataLayer) bool {
	cart := dl.Cart()

	return cart != nil && cart.Status == entities.CartStatusAbandoned
}
