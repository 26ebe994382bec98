package entities

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"time"
)

// Fixtures is the on-disk shape loaded by MemoryStore.LoadFixtures.
type Fixtures struct {
	Shop          *Shop           `json:"shop,omitempty"`
	Orders        []*Order        `json:"orders"`
	Customers     []*Customer     `json:"customers"`
	Carts         []*Cart         `json:"carts"`
	Subscriptions []*Subscription `json:"subscriptions"`
	Products      []*Product      `json:"products"`
	Cards         []*Card         `json:"cards"`
}

// MemoryStore is an in-process Store and Writer. It backs tests and the
// fixture-driven demo mode of the binary.
type MemoryStore struct {
	mu            sync.RWMutex
	shop          Shop
	orders        map[string]*Order
	customers     map[string]*Customer
	carts         map[string]*Cart
	subscriptions map[string]*Subscription
	products      map[string]*Product
	cards         map[string]*Card
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		shop:          Shop{Name: "Shop", Currency: "USD"},
		orders:        map[string]*Order{},
		customers:     map[string]*Customer{},
		carts:         map[string]*Cart{},
		subscriptions: map[string]*Subscription{},
		products:      map[string]*Product{},
		cards:         map[string]*Card{},
	}
}

// LoadFixtures reads a JSON fixtures file and adds every record to the store.
func (s *MemoryStore) LoadFixtures(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read fixtures file: %w", err)
	}

	var fixtures Fixtures

	err = json.Unmarshal(data, &fixtures)
	if err != nil {
		return fmt.Errorf("failed to unmarshal fixtures: %w", err)
	}

	if fixtures.Shop != nil {
		s.SetShop(*fixtures.Shop)
	}

	for _, o := range fixtures.Orders {
		s.PutOrder(o)
	}

	for _, c := range fixtures.Customers {
		s.PutCustomer(c)
	}

	for _, c := range fixtures.Carts {
		s.PutCart(c)
	}

	for _, sub := range fixtures.Subscriptions {
		s.PutSubscription(sub)
	}

	for _, p := range fixtures.Products {
		s.PutProduct(p)
	}

	for _, c := range fixtures.Cards {
		s.PutCard(c)
	}

	return nil
}

func (s *MemoryStore) SetShop(shop Shop) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.shop = shop
}

func (s *MemoryStore) PutOrder(o *Order) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range o.Items {
		o.Items[i].OrderID = o.ID
	}

	s.orders[o.ID] = o
}

func (s *MemoryStore) PutCustomer(c *Customer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.customers[c.ID] = c
}

func (s *MemoryStore) PutCart(c *Cart) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.carts[c.ID] = c
}

func (s *MemoryStore) PutSubscription(sub *Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.subscriptions[sub.ID] = sub
}

func (s *MemoryStore) PutProduct(p *Product) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.products[p.ID] = p
}

func (s *MemoryStore) PutCard(c *Card) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cards[c.ID] = c
}

// DeleteOrder removes an order, simulating a hard delete in the shop.
func (s *MemoryStore) DeleteOrder(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.orders, id)
}

func (s *MemoryStore) DeleteCart(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.carts, id)
}

func (s *MemoryStore) Order(_ context.Context, id string) (*Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", id, ErrNotFound)
	}

	if o.Status == OrderStatusTrash {
		return nil, fmt.Errorf("order %s is trashed: %w", id, ErrInvalid)
	}

	cp := *o
	cp.Items = slices.Clone(o.Items)
	cp.Notes = slices.Clone(o.Notes)

	return &cp, nil
}

func (s *MemoryStore) Customer(_ context.Context, id string) (*Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.customers[id]
	if !ok {
		return nil, fmt.Errorf("customer %s: %w", id, ErrNotFound)
	}

	cp := *c
	cp.Tags = slices.Clone(c.Tags)

	return &cp, nil
}

func (s *MemoryStore) CustomerByEmail(_ context.Context, email string) (*Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.customers {
		if strings.EqualFold(c.Email, email) {
			cp := *c
			cp.Tags = slices.Clone(c.Tags)

			return &cp, nil
		}
	}

	return nil, fmt.Errorf("customer with email %s: %w", email, ErrNotFound)
}

func (s *MemoryStore) Cart(_ context.Context, id string) (*Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.carts[id]
	if !ok {
		return nil, fmt.Errorf("cart %s: %w", id, ErrNotFound)
	}

	if c.CustomerID == "" && c.GuestEmail == "" {
		return nil, fmt.Errorf("cart %s has no customer: %w", id, ErrInvalid)
	}

	cp := *c
	cp.Items = slices.Clone(c.Items)

	return &cp, nil
}

func (s *MemoryStore) Subscription(_ context.Context, id string) (*Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.subscriptions[id]
	if !ok {
		return nil, fmt.Errorf("subscription %s: %w", id, ErrNotFound)
	}

	cp := *sub
	cp.ProductIDs = slices.Clone(sub.ProductIDs)

	return &cp, nil
}

func (s *MemoryStore) Product(_ context.Context, id string) (*Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, fmt.Errorf("product %s: %w", id, ErrNotFound)
	}

	cp := *p
	cp.Categories = slices.Clone(p.Categories)

	return &cp, nil
}

func (s *MemoryStore) Card(_ context.Context, id string) (*Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.cards[id]
	if !ok {
		return nil, fmt.Errorf("card %s: %w", id, ErrNotFound)
	}

	cp := *c

	return &cp, nil
}

func (s *MemoryStore) Shop(_ context.Context) (*Shop, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cp := s.shop

	return &cp, nil
}

func (s *MemoryStore) SubscriptionsRenewingBetween(_ context.Context, from, to time.Time, offset, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string

	for id, sub := range s.subscriptions {
		if sub.Status != SubscriptionStatusActive || sub.NextPaymentDate == nil {
			continue
		}

		if !sub.NextPaymentDate.Before(from) && sub.NextPaymentDate.Before(to) {
			ids = append(ids, id)
		}
	}

	return page(ids, offset, limit), nil
}

func (s *MemoryStore) CardsExpiringBetween(_ context.Context, from, to time.Time, offset, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string

	for id, c := range s.cards {
		expires := c.ExpiresAt(from.Location())
		if !expires.Before(from) && expires.Before(to) {
			ids = append(ids, id)
		}
	}

	return page(ids, offset, limit), nil
}

func (s *MemoryStore) InactiveCarts(_ context.Context, before time.Time, offset, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string

	for id, c := range s.carts {
		if c.Status == CartStatusActive && len(c.Items) > 0 && c.UpdatedAt.Before(before) {
			ids = append(ids, id)
		}
	}

	return page(ids, offset, limit), nil
}

func (s *MemoryStore) UpdateOrderStatus(_ context.Context, orderID, status, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok {
		return fmt.Errorf("order %s: %w", orderID, ErrNotFound)
	}

	o.Status = status
	if IsPaidStatus(status) && o.PaidAt == nil {
		now := time.Now().UTC()
		o.PaidAt = &now
	}

	if note != "" {
		o.Notes = append(o.Notes, note)
	}

	return nil
}

func (s *MemoryStore) AddOrderNote(_ context.Context, orderID, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok {
		return fmt.Errorf("order %s: %w", orderID, ErrNotFound)
	}

	o.Notes = append(o.Notes, note)

	return nil
}

func (s *MemoryStore) UpdateSubscriptionStatus(_ context.Context, subscriptionID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subscriptions[subscriptionID]
	if !ok {
		return fmt.Errorf("subscription %s: %w", subscriptionID, ErrNotFound)
	}

	sub.Status = status

	return nil
}

func (s *MemoryStore) AddCustomerTags(_ context.Context, customerID string, tags []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.customers[customerID]
	if !ok {
		return fmt.Errorf("customer %s: %w", customerID, ErrNotFound)
	}

	for _, tag := range tags {
		if !slices.Contains(c.Tags, tag) {
			c.Tags = append(c.Tags, tag)
		}
	}

	return nil
}

func (s *MemoryStore) UpdateCartStatus(_ context.Context, cartID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.carts[cartID]
	if !ok {
		return fmt.Errorf("cart %s: %w", cartID, ErrNotFound)
	}

	c.Status = status

	return nil
}

// page sorts ids for stable paging and returns the requested window.
func page(ids []string, offset, limit int) []string {
	slices.Sort(ids)

	if offset >= len(ids) {
		return []string{}
	}

	end := min(offset+limit, len(ids))

	return ids[offset:end]
}
