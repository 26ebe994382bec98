package datatypes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/shopflow/pkg/entities"
)

func fixtureStore() *entities.MemoryStore {
	store := entities.NewMemoryStore()
	store.PutOrder(&entities.Order{ID: "501", Status: entities.OrderStatusProcessing, Items: []entities.OrderItem{{ID: "i1", ProductID: "p1"}}})
	store.PutCustomer(&entities.Customer{ID: "c1", Email: "a@example.com"})
	store.PutCart(&entities.Cart{ID: "cart1", CustomerID: "c1", Status: entities.CartStatusActive})
	store.PutSubscription(&entities.Subscription{ID: "s1", CustomerID: "c1", Status: entities.SubscriptionStatusActive})
	store.PutProduct(&entities.Product{ID: "p1", Name: "Mug"})
	store.PutCard(&entities.Card{ID: "card1", CustomerID: "c1"})

	return store
}

func TestRoundTrip_StoredTypes(t *testing.T) {
	store := fixtureStore()
	ctx := t.Context()

	order, err := store.Order(ctx, "501")
	require.NoError(t, err)

	item, ok := order.Item("i1")
	require.True(t, ok)

	customer, _ := store.Customer(ctx, "c1")
	cart, _ := store.Cart(ctx, "cart1")
	sub, _ := store.Subscription(ctx, "s1")
	product, _ := store.Product(ctx, "p1")
	card, _ := store.Card(ctx, "card1")

	tests := []struct {
		name  string
		codec DataType
		value any
		id    func(any) string
	}{
		{"order", NewOrder(store), order, func(v any) string { return v.(*entities.Order).ID }},
		{"order_item", NewOrderItem(store), item, func(v any) string { return v.(*entities.OrderItem).ID }},
		{"customer", NewCustomer(store), customer, func(v any) string { return v.(*entities.Customer).ID }},
		{"cart", NewCart(store), cart, func(v any) string { return v.(*entities.Cart).ID }},
		{"subscription", NewSubscription(store), sub, func(v any) string { return v.(*entities.Subscription).ID }},
		{"product", NewProduct(store), product, func(v any) string { return v.(*entities.Product).ID }},
		{"card", NewCard(store), card, func(v any) string { return v.(*entities.Card).ID }},
	}

	siblings := map[Name]Token{Order: {Type: Order, Value: "501"}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.True(t, tt.codec.Stored())
			require.True(t, tt.codec.Validate(tt.value))

			tok, err := tt.codec.Compress(tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.codec.Name(), tok.Type)

			got, err := tt.codec.Decompress(ctx, tok, siblings)
			require.NoError(t, err)
			assert.Equal(t, tt.id(tt.value), tt.id(got))
		})
	}
}

func TestCompress_RejectsWrongValue(t *testing.T) {
	codec := NewOrder(fixtureStore())

	assert.False(t, codec.Validate(&entities.Customer{ID: "c1"}))

	_, err := codec.Compress(&entities.Customer{ID: "c1"})
	require.ErrorIs(t, err, ErrInvalidValue)

	_, err = codec.Compress((*entities.Order)(nil))
	require.ErrorIs(t, err, ErrInvalidValue)
}

func TestDecompress_NotFoundIsDistinctFromInvalid(t *testing.T) {
	store := fixtureStore()
	store.PutOrder(&entities.Order{ID: "trashed", Status: entities.OrderStatusTrash})
	codec := NewOrder(store)

	_, err := codec.Decompress(t.Context(), Token{Type: Order, Value: "missing"}, nil)
	require.ErrorIs(t, err, entities.ErrNotFound)

	_, err = codec.Decompress(t.Context(), Token{Type: Order, Value: "trashed"}, nil)
	require.ErrorIs(t, err, entities.ErrInvalid)
	assert.NotErrorIs(t, err, entities.ErrNotFound)
}

func TestOrderItem_RequiresParent(t *testing.T) {
	codec := NewOrderItem(fixtureStore())

	_, err := codec.Decompress(t.Context(), Token{Type: OrderItem, Value: "i1"}, nil)
	require.ErrorIs(t, err, ErrMissingParent)

	_, err = codec.Decompress(t.Context(), Token{Type: OrderItem, Value: "nope"}, map[Name]Token{Order: {Type: Order, Value: "501"}})
	require.ErrorIs(t, err, entities.ErrNotFound)
}

func TestShop_IsNotStored(t *testing.T) {
	codec := NewShop(fixtureStore())

	assert.False(t, codec.Stored())

	_, err := codec.Compress(&entities.Shop{})
	require.ErrorIs(t, err, ErrNotStored)

	got, err := codec.Decompress(t.Context(), Token{}, nil)
	require.NoError(t, err)
	assert.True(t, codec.Validate(got))
}

func TestCatalog_CoversEveryName(t *testing.T) {
	var names []Name
	for _, codec := range Catalog(fixtureStore()) {
		names = append(names, codec.Name())
	}

	assert.Equal(t, All(), names)
	assert.True(t, Order.Valid())
	assert.False(t, Name("download").Valid())
}

func TestPersisted_MatchesCodecs(t *testing.T) {
	for _, codec := range Catalog(fixtureStore()) {
		assert.Equal(t, codec.Stored(), codec.Name().Persisted(), codec.Name())
	}

	assert.NotContains(t, Persisted(), Shop)
	assert.Len(t, Persisted(), len(All())-1)
	assert.False(t, Name("download").Persisted())
}
