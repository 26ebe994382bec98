// Package entities defines the e-commerce entities the engine reads and the
// store interfaces it queries them through. The engine never owns these
// records; an external shop backend does.
package entities

import (
	"errors"
	"slices"
	"time"
)

var (
	// ErrNotFound is returned when no entity exists for an identifier.
	ErrNotFound = errors.New("entity not found")

	// ErrInvalid is returned when an entity exists but cannot be used, e.g. a
	// trashed order or a cart without a customer or guest email.
	ErrInvalid = errors.New("entity invalid")
)

// Order statuses use the shop backend's slugs without a prefix.
const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusOnHold     = "on-hold"
	OrderStatusCompleted  = "completed"
	OrderStatusCancelled  = "cancelled"
	OrderStatusRefunded   = "refunded"
	OrderStatusFailed     = "failed"
	OrderStatusTrash      = "trash"
)

// PaidStatuses are the order statuses that count as paid.
var PaidStatuses = []string{OrderStatusProcessing, OrderStatusCompleted}

// IsPaidStatus reports whether status counts as paid.
func IsPaidStatus(status string) bool {
	return slices.Contains(PaidStatuses, status)
}

const (
	CartStatusActive    = "active"
	CartStatusAbandoned = "abandoned"
	CartStatusOrdered   = "ordered"
)

const (
	SubscriptionStatusActive    = "active"
	SubscriptionStatusOnHold    = "on-hold"
	SubscriptionStatusCancelled = "cancelled"
	SubscriptionStatusExpired   = "expired"
	SubscriptionStatusPending   = "pending"
)

type Order struct {
	ID            string      `json:"id"`
	Status        string      `json:"status"`
	CustomerID    string      `json:"customer_id,omitempty"`
	BillingEmail  string      `json:"billing_email"`
	Total         float64     `json:"total"`
	Currency      string      `json:"currency"`
	PaymentMethod string      `json:"payment_method,omitempty"`
	Items         []OrderItem `json:"items"`
	Notes         []string    `json:"notes,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	PaidAt        *time.Time  `json:"paid_at,omitempty"`
}

// Item returns the order line with the given id.
func (o *Order) Item(id string) (*OrderItem, bool) {
	for i := range o.Items {
		if o.Items[i].ID == id {
			return &o.Items[i], true
		}
	}

	return nil, false
}

type OrderItem struct {
	ID        string  `json:"id"`
	OrderID   string  `json:"order_id"`
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	Total     float64 `json:"total"`
}

type Customer struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	IsGuest    bool      `json:"is_guest"`
	OrderCount int       `json:"order_count"`
	TotalSpent float64   `json:"total_spent"`
	Tags       []string  `json:"tags,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// FullName joins first and last name.
func (c *Customer) FullName() string {
	switch {
	case c.FirstName == "":
		return c.LastName
	case c.LastName == "":
		return c.FirstName
	default:
		return c.FirstName + " " + c.LastName
	}
}

type CartItem struct {
	ProductID string  `json:"product_id"`
	Quantity  int     `json:"quantity"`
	Total     float64 `json:"total"`
}

type Cart struct {
	ID         string     `json:"id"`
	CustomerID string     `json:"customer_id,omitempty"`
	GuestEmail string     `json:"guest_email,omitempty"`
	Status     string     `json:"status"`
	Total      float64    `json:"total"`
	Currency   string     `json:"currency"`
	Items      []CartItem `json:"items"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

type Subscription struct {
	ID              string     `json:"id"`
	CustomerID      string     `json:"customer_id"`
	Status          string     `json:"status"`
	Total           float64    `json:"total"`
	Currency        string     `json:"currency"`
	ProductIDs      []string   `json:"product_ids"`
	NextPaymentDate *time.Time `json:"next_payment_date,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

type Product struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	SKU        string   `json:"sku"`
	Price      float64  `json:"price"`
	Categories []string `json:"categories,omitempty"`
	Permalink  string   `json:"permalink,omitempty"`
}

// Card is a saved payment token.
type Card struct {
	ID          string `json:"id"`
	CustomerID  string `json:"customer_id"`
	Brand       string `json:"brand"`
	Last4       string `json:"last4"`
	ExpiryMonth int    `json:"expiry_month"`
	ExpiryYear  int    `json:"expiry_year"`
}

// ExpiresAt returns the last instant the card is valid, in loc.
func (c *Card) ExpiresAt(loc *time.Location) time.Time {
	firstOfNext := time.Date(c.ExpiryYear, time.Month(c.ExpiryMonth)+1, 1, 0, 0, 0, 0, loc)

	return firstOfNext.Add(-time.Second)
}

// Shop carries store-wide details. It is derived, never stored.
type Shop struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Email    string `json:"email"`
	Currency string `json:"currency"`
}
