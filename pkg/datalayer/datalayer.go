// Package datalayer carries the entities associated with one firing event.
package datalayer

import (
	"errors"
	"fmt"
	"slices"

	"github.com/dukex/shopflow/pkg/datatypes"
	"github.com/dukex/shopflow/pkg/entities"
)

var ErrDuplicateItem = errors.New("data layer already contains item")

// Item is one named value in a data layer.
type Item struct {
	Type  datatypes.Name
	Value any
}

// DataLayer is an ordered set of data items with unique type keys. It does
// not change after construction except for the missing markers.
type DataLayer struct {
	items   []Item
	index   map[datatypes.Name]int
	missing map[datatypes.Name]bool
}

// New builds a data layer, rejecting duplicate keys and nil values.
func New(items ...Item) (*DataLayer, error) {
	dl := &DataLayer{
		items:   make([]Item, 0, len(items)),
		index:   make(map[datatypes.Name]int, len(items)),
		missing: map[datatypes.Name]bool{},
	}

	for _, item := range items {
		if _, exists := dl.index[item.Type]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateItem, item.Type)
		}

		if item.Value == nil {
			continue
		}

		dl.index[item.Type] = len(dl.items)
		dl.items = append(dl.items, item)
	}

	return dl, nil
}

// MustNew is New for static item lists known to be unique.
func MustNew(items ...Item) *DataLayer {
	dl, err := New(items...)
	if err != nil {
		panic(err)
	}

	return dl
}

func (dl *DataLayer) Get(name datatypes.Name) (any, bool) {
	i, ok := dl.index[name]
	if !ok {
		return nil, false
	}

	return dl.items[i].Value, true
}

func (dl *DataLayer) Has(name datatypes.Name) bool {
	_, ok := dl.index[name]

	return ok
}

// Names returns item keys in insertion order.
func (dl *DataLayer) Names() []datatypes.Name {
	names := make([]datatypes.Name, len(dl.items))
	for i, item := range dl.items {
		names[i] = item.Type
	}

	return names
}

func (dl *DataLayer) Items() []Item {
	return slices.Clone(dl.items)
}

func (dl *DataLayer) Len() int {
	return len(dl.items)
}

// MarkMissing records that an item existed when the layer was captured but
// could not be resolved later.
func (dl *DataLayer) MarkMissing(name datatypes.Name) {
	dl.missing[name] = true
}

func (dl *DataLayer) IsMissing(name datatypes.Name) bool {
	return dl.missing[name]
}

// Missing returns missing item names sorted.
func (dl *DataLayer) Missing() []datatypes.Name {
	names := make([]datatypes.Name, 0, len(dl.missing))
	for name := range dl.missing {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}

func (dl *DataLayer) HasMissing() bool {
	return len(dl.missing) > 0
}

func getAs[T any](dl *DataLayer, name datatypes.Name) *T {
	v, ok := dl.Get(name)
	if !ok {
		return nil
	}

	typed, _ := v.(*T)

	return typed
}

func (dl *DataLayer) Order() *entities.Order { return getAs[entities.Order](dl, datatypes.Order) }

func (dl *DataLayer) OrderItem() *entities.OrderItem {
	return getAs[entities.OrderItem](dl, datatypes.OrderItem)
}

func (dl *DataLayer) Customer() *entities.Customer {
	return getAs[entities.Customer](dl, datatypes.Customer)
}

func (dl *DataLayer) Cart() *entities.Cart { return getAs[entities.Cart](dl, datatypes.Cart) }

func (dl *DataLayer) Subscription() *entities.Subscription {
	return getAs[entities.Subscription](dl, datatypes.Subscription)
}

func (dl *DataLayer) Product() *entities.Product {
	return getAs[entities.Product](dl, datatypes.Product)
}

func (dl *DataLayer) Card() *entities.Card { return getAs[entities.Card](dl, datatypes.Card) }

func (dl *DataLayer) Shop() *entities.Shop { return getAs[entities.Shop](dl, datatypes.Shop) }
