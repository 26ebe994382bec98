package triggers

import (
	"context"

	"github.com/dukex/shopflow/pkg/datalayer"
	"github.com/dukex/shopflow/pkg/datatypes"
	"github.com/dukex/shopflow/pkg/eventbus"
)

const CustomerAccountCreatedName = "customer_account_created"

type CustomerAccountCreated struct {
	Base
	env Env
}

func NewCustomerAccountCreated(env Env) *CustomerAccountCreated {
	return &CustomerAccountCreated{
		Base: NewBase(Meta{
			Name:           CustomerAccountCreatedName,
			Title:          "Customer Account Created",
			Description:    "Fires when a customer registers an account.",
			Group:          "Customers",
			Supplies:       []datatypes.Name{datatypes.Customer},
			DuplicateGuard: datatypes.Customer,
		}),
		env: env,
	}
}

// RegisterHooks listens to the raw source directly; the event is cheap.
func (t *CustomerAccountCreated) RegisterHooks(bus eventbus.Subscriber, d Dispatcher) error {
	return bus.Subscribe(eventbus.CustomerCreated, func(ctx context.Context, event eventbus.Event) error {
		e, ok := eventbus.Payload[eventbus.CustomerCreatedEvent](event)
		if !ok {
			return nil
		}

		return t.env.dispatch(ctx, d, t.Name(), func() (*datalayer.DataLayer, error) {
			return t.env.customerLayer(ctx, e.CustomerID)
		})
	})
}
