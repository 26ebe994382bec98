package datatypes

import (
	"context"
	"fmt"

	"github.com/dukex/shopflow/pkg/entities"
)

// entityType is the codec shared by every stored entity resolved by id.
type entityType[T any] struct {
	name  Name
	id    func(*T) string
	fetch func(ctx context.Context, id string) (*T, error)
}

func (e *entityType[T]) Name() Name { return e.name }

func (e *entityType[T]) Stored() bool { return true }

func (e *entityType[T]) Validate(v any) bool {
	value, ok := v.(*T)

	return ok && value != nil && e.id(value) != ""
}

func (e *entityType[T]) Compress(v any) (Token, error) {
	if !e.Validate(v) {
		return Token{}, fmt.Errorf("%w: %s got %T", ErrInvalidValue, e.name, v)
	}

	return Token{Type: e.name, Value: e.id(v.(*T))}, nil
}

func (e *entityType[T]) Decompress(ctx context.Context, tok Token, _ map[Name]Token) (any, error) {
	if tok.Value == "" {
		return nil, fmt.Errorf("empty %s token: %w", e.name, entities.ErrNotFound)
	}

	value, err := e.fetch(ctx, tok.Value)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", e.name, err)
	}

	return value, nil
}

func NewOrder(store entities.Store) DataType {
	return &entityType[entities.Order]{
		name:  Order,
		id:    func(o *entities.Order) string { return o.ID },
		fetch: store.Order,
	}
}

func NewCustomer(store entities.Store) DataType {
	return &entityType[entities.Customer]{
		name:  Customer,
		id:    func(c *entities.Customer) string { return c.ID },
		fetch: store.Customer,
	}
}

func NewCart(store entities.Store) DataType {
	return &entityType[entities.Cart]{
		name:  Cart,
		id:    func(c *entities.Cart) string { return c.ID },
		fetch: store.Cart,
	}
}

func NewSubscription(store entities.Store) DataType {
	return &entityType[entities.Subscription]{
		name:  Subscription,
		id:    func(s *entities.Subscription) string { return s.ID },
		fetch: store.Subscription,
	}
}

func NewProduct(store entities.Store) DataType {
	return &entityType[entities.Product]{
		name:  Product,
		id:    func(p *entities.Product) string { return p.ID },
		fetch: store.Product,
	}
}

func NewCard(store entities.Store) DataType {
	return &entityType[entities.Card]{
		name:  Card,
		id:    func(c *entities.Card) string { return c.ID },
		fetch: store.Card,
	}
}

// orderItemType resolves an item through its parent order token.
type orderItemType struct {
	store entities.Store
}

func NewOrderItem(store entities.Store) DataType {
	return &orderItemType{store: store}
}

func (o *orderItemType) Name() Name { return OrderItem }

func (o *orderItemType) Stored() bool { return true }

func (o *orderItemType) Validate(v any) bool {
	item, ok := v.(*entities.OrderItem)

	return ok && item != nil && item.ID != "" && item.OrderID != ""
}

func (o *orderItemType) Compress(v any) (Token, error) {
	if !o.Validate(v) {
		return Token{}, fmt.Errorf("%w: %s got %T", ErrInvalidValue, OrderItem, v)
	}

	return Token{Type: OrderItem, Value: v.(*entities.OrderItem).ID}, nil
}

func (o *orderItemType) Decompress(ctx context.Context, tok Token, siblings map[Name]Token) (any, error) {
	parent, ok := siblings[Order]
	if !ok || parent.Value == "" {
		return nil, fmt.Errorf("order item %s: %w", tok.Value, ErrMissingParent)
	}

	order, err := o.store.Order(ctx, parent.Value)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve order for item %s: %w", tok.Value, err)
	}

	item, ok := order.Item(tok.Value)
	if !ok {
		return nil, fmt.Errorf("order item %s in order %s: %w", tok.Value, order.ID, entities.ErrNotFound)
	}

	return item, nil
}

// shopType is derived from store settings and never persisted.
type shopType struct {
	store entities.Store
}

func NewShop(store entities.Store) DataType {
	return &shopType{store: store}
}

func (s *shopType) Name() Name { return Shop }

func (s *shopType) Stored() bool { return false }

func (s *shopType) Validate(v any) bool {
	shop, ok := v.(*entities.Shop)

	return ok && shop != nil
}

func (s *shopType) Compress(any) (Token, error) {
	return Token{}, fmt.Errorf("%s: %w", Shop, ErrNotStored)
}

func (s *shopType) Decompress(ctx context.Context, _ Token, _ map[Name]Token) (any, error) {
	shop, err := s.store.Shop(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve shop: %w", err)
	}

	return shop, nil
}

// Catalog returns a codec for every data type backed by store.
func Catalog(store entities.Store) []DataType {
	return []DataType{
		NewOrder(store),
		NewOrderItem(store),
		NewCustomer(store),
		NewCart(store),
		NewSubscription(store),
		NewProduct(store),
		NewCard(store),
		NewShop(store),
	}
}
