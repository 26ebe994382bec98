package testutil

import (
	"time"

	"github.com/dukex/shopflow/pkg/entities"
)

// Fixture ids loaded by Seed.
const (
	CustomerID     = "c1"
	CustomerEmail  = "ana@example.com"
	BigOrderID     = "501"
	SmallOrderID   = "502"
	CartID         = "cart1"
	SubscriptionID = "sub1"
	CardID         = "card1"
)

// Seed loads a small shop: one customer with two processing orders (totals
// 150 and 20), an abandoned cart, a subscription renewing three days after
// now and a saved card.
func Seed(store *entities.MemoryStore, now time.Time) {
	store.SetShop(entities.Shop{Name: "Test Shop", URL: "https://shop.example.com", Email: "shop@example.com", Currency: "USD"})
	store.PutCustomer(&entities.Customer{ID: CustomerID, Email: CustomerEmail, FirstName: "Ana", LastName: "Lima", CreatedAt: now.AddDate(-1, 0, 0)})
	store.PutProduct(&entities.Product{ID: "p1", Name: "Coffee Beans", SKU: "CB-1", Price: 75, Categories: []string{"coffee"}})

	store.PutOrder(&entities.Order{
		ID: BigOrderID, Status: entities.OrderStatusProcessing, CustomerID: CustomerID, BillingEmail: CustomerEmail,
		Total: 150, Currency: "USD", CreatedAt: now.Add(-time.Hour),
		Items: []entities.OrderItem{{ID: "i1", OrderID: BigOrderID, ProductID: "p1", Name: "Coffee Beans", Quantity: 2, Total: 150}},
	})
	store.PutOrder(&entities.Order{
		ID: SmallOrderID, Status: entities.OrderStatusProcessing, CustomerID: CustomerID, BillingEmail: CustomerEmail,
		Total: 20, Currency: "USD", CreatedAt: now.Add(-time.Hour),
	})

	store.PutCart(&entities.Cart{
		ID: CartID, CustomerID: CustomerID, Status: entities.CartStatusAbandoned, Total: 75, Currency: "USD",
		Items: []entities.CartItem{{ProductID: "p1", Quantity: 1, Total: 75}}, UpdatedAt: now.Add(-time.Hour),
	})

	renews := now.AddDate(0, 0, 3)
	store.PutSubscription(&entities.Subscription{
		ID: SubscriptionID, CustomerID: CustomerID, Status: entities.SubscriptionStatusActive, Total: 30, Currency: "USD",
		ProductIDs: []string{"p1"}, NextPaymentDate: &renews, CreatedAt: now.AddDate(0, -6, 0),
	})

	store.PutCard(&entities.Card{ID: CardID, CustomerID: CustomerID, Brand: "visa", Last4: "4242", ExpiryMonth: 12, ExpiryYear: now.Year() + 1})
}
