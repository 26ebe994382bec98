// Package datatypes defines the named kinds of entity a data layer can carry
// and the codecs that turn them into durable tokens and back.
package datatypes

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

// Name identifies a data type. The set is closed.
type Name string

const (
	Order        Name = "order"
	OrderItem    Name = "order_item"
	Customer     Name = "customer"
	Cart         Name = "cart"
	Subscription Name = "subscription"
	Product      Name = "product"
	Card         Name = "card"
	Shop         Name = "shop"
)

var all = []Name{Order, OrderItem, Customer, Cart, Subscription, Product, Card, Shop}

// All returns every data type name in declaration order.
func All() []Name {
	return slices.Clone(all)
}

func (n Name) Valid() bool {
	return slices.Contains(all, n)
}

// Persisted reports whether tokens of this type are written to queued events
// and logs. The shop is always derived again.
func (n Name) Persisted() bool {
	return n.Valid() && n != Shop
}

// Persisted returns every persisted data type name in declaration order.
func Persisted() []Name {
	names := make([]Name, 0, len(all))

	for _, n := range all {
		if n.Persisted() {
			names = append(names, n)
		}
	}

	return names
}

var (
	ErrUnknownType   = errors.New("unknown data type")
	ErrNotStored     = errors.New("data type is not stored")
	ErrInvalidValue  = errors.New("invalid value for data type")
	ErrMissingParent = errors.New("parent token missing")
)

// Token is the compressed form of one data item.
type Token struct {
	Type  Name   `json:"type"`
	Value string `json:"value"`
}

func (t Token) String() string {
	return fmt.Sprintf("%s=%s", t.Type, t.Value)
}

// DataType validates, compresses and decompresses values of one kind.
type DataType interface {
	Name() Name
	// Stored reports whether values are persisted in queued events and logs.
	// Non-stored types are derived again on decompression.
	Stored() bool
	Validate(v any) bool
	Compress(v any) (Token, error)
	// Decompress resolves a token back to a live value. Siblings holds the
	// other tokens of the same snapshot for derived lookups.
	Decompress(ctx context.Context, tok Token, siblings map[Name]Token) (any, error)
}
