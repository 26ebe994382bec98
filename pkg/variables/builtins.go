package variables

import (
	"time"

	"github.com/dukex/shopflow/pkg/datalayer"
	"github.com/dukex/shopflow/pkg/datatypes"
	"github.com/dukex/shopflow/pkg/entities"
)

func orderVar(field, desc string, fn func(o *entities.Order) any) Variable {
	return Variable{
		Name:        "order." + field,
		DataType:    datatypes.Order,
		Description: desc,
		Value: func(dl *datalayer.DataLayer) (any, bool) {
			o := dl.Order()
			if o == nil {
				return nil, false
			}

			return fn(o), true
		},
	}
}

func customerVar(field, desc string, fn func(c *entities.Customer) any) Variable {
	return Variable{
		Name:        "customer." + field,
		DataType:    datatypes.Customer,
		Description: desc,
		Value: func(dl *datalayer.DataLayer) (any, bool) {
			c := dl.Customer()
			if c == nil {
				return nil, false
			}

			return fn(c), true
		},
	}
}

func cartVar(field, desc string, fn func(c *entities.Cart) any) Variable {
	return Variable{
		Name:        "cart." + field,
		DataType:    datatypes.Cart,
		Description: desc,
		Value: func(dl *datalayer.DataLayer) (any, bool) {
			c := dl.Cart()
			if c == nil {
				return nil, false
			}

			return fn(c), true
		},
	}
}

func subscriptionVar(field, desc string, fn func(s *entities.Subscription) (any, bool)) Variable {
	return Variable{
		Name:        "subscription." + field,
		DataType:    datatypes.Subscription,
		Description: desc,
		Value: func(dl *datalayer.DataLayer) (any, bool) {
			s := dl.Subscription()
			if s == nil {
				return nil, false
			}

			return fn(s)
		},
	}
}

func always[T any](fn func(T) any) func(T) (any, bool) {
	return func(v T) (any, bool) { return fn(v), true }
}

func timePtr(t *time.Time) (any, bool) {
	if t == nil {
		return nil, false
	}

	return *t, true
}

func builtins() []Variable {
	vars := []Variable{
		orderVar("id", "Order ID", func(o *entities.Order) any { return o.ID }),
		orderVar("status", "Order status slug", func(o *entities.Order) any { return o.Status }),
		orderVar("total", "Order total", func(o *entities.Order) any { return o.Total }),
		orderVar("currency", "Order currency", func(o *entities.Order) any { return o.Currency }),
		orderVar("billing_email", "Billing email", func(o *entities.Order) any { return o.BillingEmail }),
		orderVar("payment_method", "Payment method", func(o *entities.Order) any { return o.PaymentMethod }),
		orderVar("item_count", "Number of order lines", func(o *entities.Order) any { return len(o.Items) }),
		orderVar("date_created", "Date the order was placed", func(o *entities.Order) any { return o.CreatedAt }),
		{
			Name:        "order.date_paid",
			DataType:    datatypes.Order,
			Description: "Date the order was paid",
			Value: func(dl *datalayer.DataLayer) (any, bool) {
				if o := dl.Order(); o != nil {
					return timePtr(o.PaidAt)
				}

				return nil, false
			},
		},

		customerVar("id", "Customer ID", func(c *entities.Customer) any { return c.ID }),
		customerVar("email", "Customer email", func(c *entities.Customer) any { return c.Email }),
		customerVar("first_name", "First name", func(c *entities.Customer) any { return c.FirstName }),
		customerVar("last_name", "Last name", func(c *entities.Customer) any { return c.LastName }),
		customerVar("full_name", "First and last name", func(c *entities.Customer) any { return c.FullName() }),
		customerVar("order_count", "Number of orders", func(c *entities.Customer) any { return c.OrderCount }),
		customerVar("total_spent", "Lifetime spend", func(c *entities.Customer) any { return c.TotalSpent }),
		customerVar("tags", "Customer tags", func(c *entities.Customer) any { return c.Tags }),

		cartVar("id", "Cart ID", func(c *entities.Cart) any { return c.ID }),
		cartVar("total", "Cart total", func(c *entities.Cart) any { return c.Total }),
		cartVar("currency", "Cart currency", func(c *entities.Cart) any { return c.Currency }),
		cartVar("item_count", "Number of cart lines", func(c *entities.Cart) any { return len(c.Items) }),
		cartVar("last_updated", "Last cart activity", func(c *entities.Cart) any { return c.UpdatedAt }),

		subscriptionVar("id", "Subscription ID", always(func(s *entities.Subscription) any { return s.ID })),
		subscriptionVar("status", "Subscription status", always(func(s *entities.Subscription) any { return s.Status })),
		subscriptionVar("total", "Recurring total", always(func(s *entities.Subscription) any { return s.Total })),
		subscriptionVar("next_payment_date", "Next renewal date", func(s *entities.Subscription) (any, bool) {
			return timePtr(s.NextPaymentDate)
		}),
	}

	return append(vars, otherBuiltins()...)
}

func otherBuiltins() []Variable {
	return []Variable{
		{
			Name: "order_item.name", DataType: datatypes.OrderItem, Description: "Item name",
			Value: func(dl *datalayer.DataLayer) (any, bool) {
				if i := dl.OrderItem(); i != nil {
					return i.Name, true
				}

				return nil, false
			},
		},
		{
			Name: "order_item.quantity", DataType: datatypes.OrderItem, Description: "Item quantity",
			Value: func(dl *datalayer.DataLayer) (any, bool) {
				if i := dl.OrderItem(); i != nil {
					return i.Quantity, true
				}

				return nil, false
			},
		},
		{
			Name: "product.name", DataType: datatypes.Product, Description: "Product name",
			Value: func(dl *datalayer.DataLayer) (any, bool) {
				if p := dl.Product(); p != nil {
					return p.Name, true
				}

				return nil, false
			},
		},
		{
			Name: "product.sku", DataType: datatypes.Product, Description: "Product SKU",
			Value: func(dl *datalayer.DataLayer) (any, bool) {
				if p := dl.Product(); p != nil {
					return p.SKU, true
				}

				return nil, false
			},
		},
		{
			Name: "product.permalink", DataType: datatypes.Product, Description: "Product URL",
			Value: func(dl *datalayer.DataLayer) (any, bool) {
				if p := dl.Product(); p != nil {
					return p.Permalink, true
				}

				return nil, false
			},
		},
		{
			Name: "card.brand", DataType: datatypes.Card, Description: "Card brand",
			Value: func(dl *datalayer.DataLayer) (any, bool) {
				if c := dl.Card(); c != nil {
					return c.Brand, true
				}

				return nil, false
			},
		},
		{
			Name: "card.last4", DataType: datatypes.Card, Description: "Last four digits",
			Value: func(dl *datalayer.DataLayer) (any, bool) {
				if c := dl.Card(); c != nil {
					return c.Last4, true
				}

				return nil, false
			},
		},
		{
			Name: "card.expiry_date", DataType: datatypes.Card, Description: "Card expiry",
			Value: func(dl *datalayer.DataLayer) (any, bool) {
				if c := dl.Card(); c != nil {
					return c.ExpiresAt(time.UTC), true
				}

				return nil, false
			},
		},
		{
			Name: "shop.name", DataType: datatypes.Shop, Description: "Shop name",
			Value: func(dl *datalayer.DataLayer) (any, bool) {
				if s := dl.Shop(); s != nil {
					return s.Name, true
				}

				return nil, false
			},
		},
		{
			Name: "shop.url", DataType: datatypes.Shop, Description: "Shop URL",
			Value: func(dl *datalayer.DataLayer) (any, bool) {
				if s := dl.Shop(); s != nil {
					return s.URL, true
				}

				return nil, false
			},
		},
	}
}
