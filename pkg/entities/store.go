package entities

import (
	"context"
	"time"
)

// Store resolves entities by identifier. Implementations must return
// ErrNotFound for unknown ids and ErrInvalid for records that exist but are
// unusable.
type Store interface {
	Order(ctx context.Context, id string) (*Order, error)
	Customer(ctx context.Context, id string) (*Customer, error)
	Cart(ctx context.Context, id string) (*Cart, error)
	Subscription(ctx context.Context, id string) (*Subscription, error)
	Product(ctx context.Context, id string) (*Product, error)
	Card(ctx context.Context, id string) (*Card, error)
	Shop(ctx context.Context) (*Shop, error)

	// CustomerByEmail resolves a registered customer or guest by email.
	CustomerByEmail(ctx context.Context, email string) (*Customer, error)

	// SubscriptionsRenewingBetween pages through subscription ids whose next
	// payment falls in [from, to).
	SubscriptionsRenewingBetween(ctx context.Context, from, to time.Time, offset, limit int) ([]string, error)

	// CardsExpiringBetween pages through card ids expiring in [from, to).
	CardsExpiringBetween(ctx context.Context, from, to time.Time, offset, limit int) ([]string, error)

	// InactiveCarts pages through active cart ids not updated since before.
	InactiveCarts(ctx context.Context, before time.Time, offset, limit int) ([]string, error)
}

// Writer is the write side used by side-effecting actions.
type Writer interface {
	UpdateOrderStatus(ctx context.Context, orderID, status, note string) error
	AddOrderNote(ctx context.Context, orderID, note string) error
	UpdateSubscriptionStatus(ctx context.Context, subscriptionID, status string) error
	AddCustomerTags(ctx context.Context, customerID string, tags []string) error
	UpdateCartStatus(ctx context.Context, cartID, status string) error
}
