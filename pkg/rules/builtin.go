package rules

import (
	"time"

	"github.com/dukex/shopflow/pkg/datatypes"
	"github.com/dukex/shopflow/pkg/entities"
)

var orderStatuses = []string{
	entities.OrderStatusPending, entities.OrderStatusProcessing, entities.OrderStatusOnHold,
	entities.OrderStatusCompleted, entities.OrderStatusCancelled, entities.OrderStatusRefunded,
	entities.OrderStatusFailed,
}

var subscriptionStatuses = []string{
	entities.SubscriptionStatusActive, entities.SubscriptionStatusOnHold, entities.SubscriptionStatusCancelled,
	entities.SubscriptionStatusExpired, entities.SubscriptionStatusPending,
}

// SystemClock reads the wall clock in the location returned by loc.
func SystemClock(loc func() *time.Location) Clock {
	return func() (time.Time, *time.Location) {
		l := loc()

		return time.Now().In(l), l
	}
}

// Builtin returns every built-in rule except the expression rule, which
// needs its own evaluator.
func Builtin(clock Clock) []Rule {
	return []Rule{
		newNumber("order_total", "Order - Total", "Order", datatypes.Order,
			func(o *entities.Order) float64 { return o.Total }),
		newSelect("order_status", "Order - Status", "Order", datatypes.Order, orderStatuses,
			func(o *entities.Order) []string { return []string{o.Status} }),
		newNumber("order_item_count", "Order - Item Count", "Order", datatypes.Order,
			func(o *entities.Order) float64 { return float64(len(o.Items)) }),
		newString("order_payment_method", "Order - Payment Method", "Order", datatypes.Order,
			func(o *entities.Order) string { return o.PaymentMethod }),
		newDate("order_created_date", "Order - Created Date", "Order", datatypes.Order, clock,
			func(o *entities.Order) *time.Time { return &o.CreatedAt }),
		newBool("order_is_customers_first", "Order - Is Customer's First", "Order", datatypes.Customer,
			func(c *entities.Customer) bool { return c.OrderCount <= 1 }),

		newString("customer_email", "Customer - Email", "Customer", datatypes.Customer,
			func(c *entities.Customer) string { return c.Email }),
		newNumber("customer_order_count", "Customer - Order Count", "Customer", datatypes.Customer,
			func(c *entities.Customer) float64 { return float64(c.OrderCount) }),
		newNumber("customer_total_spent", "Customer - Total Spent", "Customer", datatypes.Customer,
			func(c *entities.Customer) float64 { return c.TotalSpent }),
		newBool("customer_is_guest", "Customer - Is Guest", "Customer", datatypes.Customer,
			func(c *entities.Customer) bool { return c.IsGuest }),
		newSelect("customer_tags", "Customer - Tags", "Customer", datatypes.Customer, nil,
			func(c *entities.Customer) []string { return c.Tags }),

		newNumber("cart_total", "Cart - Total", "Cart", datatypes.Cart,
			func(c *entities.Cart) float64 { return c.Total }),
		newNumber("cart_item_count", "Cart - Item Count", "Cart", datatypes.Cart,
			func(c *entities.Cart) float64 { return float64(len(c.Items)) }),

		newSelect("subscription_status", "Subscription - Status", "Subscription", datatypes.Subscription, subscriptionStatuses,
			func(s *entities.Subscription) []string { return []string{s.Status} }),
		newDate("subscription_next_payment_date", "Subscription - Next Payment Date", "Subscription", datatypes.Subscription, clock,
			func(s *entities.Subscription) *time.Time { return s.NextPaymentDate }),

		newSelect("product_categories", "Product - Categories", "Product", datatypes.Product, nil,
			func(p *entities.Product) []string { return p.Categories }),
	}
}
