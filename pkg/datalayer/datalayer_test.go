package datalayer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/shopflow/pkg/datatypes"
	"github.com/dukex/shopflow/pkg/entities"
	"github.com/dukex/shopflow/pkg/log"
)

func newStore() *entities.MemoryStore {
	store := entities.NewMemoryStore()
	store.PutOrder(&entities.Order{ID: "501", Status: entities.OrderStatusProcessing, Total: 150, Items: []entities.OrderItem{{ID: "i1"}}})
	store.PutCustomer(&entities.Customer{ID: "c1", Email: "a@example.com"})

	return store
}

func TestNew_RejectsDuplicateKeys(t *testing.T) {
	_, err := New(
		Item{Type: datatypes.Order, Value: &entities.Order{ID: "1"}},
		Item{Type: datatypes.Order, Value: &entities.Order{ID: "2"}},
	)

	require.ErrorIs(t, err, ErrDuplicateItem)
}

func TestDataLayer_Accessors(t *testing.T) {
	order := &entities.Order{ID: "1"}
	customer := &entities.Customer{ID: "c1"}

	dl := MustNew(
		Item{Type: datatypes.Customer, Value: customer},
		Item{Type: datatypes.Order, Value: order},
		Item{Type: datatypes.Cart, Value: nil},
	)

	assert.Equal(t, []datatypes.Name{datatypes.Customer, datatypes.Order}, dl.Names())
	assert.Same(t, order, dl.Order())
	assert.Same(t, customer, dl.Customer())
	assert.Nil(t, dl.Cart())
	assert.False(t, dl.Has(datatypes.Cart))
	assert.Equal(t, 2, dl.Len())

	dl.MarkMissing(datatypes.Product)
	assert.True(t, dl.HasMissing())
	assert.Equal(t, []datatypes.Name{datatypes.Product}, dl.Missing())
}

func TestCodec_Build_ValidatesValues(t *testing.T) {
	codec := NewCodec(log.Discard(), datatypes.Catalog(newStore()), nil)

	_, err := codec.Build(Item{Type: datatypes.Order, Value: &entities.Customer{ID: "c1"}})
	require.ErrorIs(t, err, datatypes.ErrInvalidValue)

	_, err = codec.Build(Item{Type: "download", Value: "x"})
	require.ErrorIs(t, err, datatypes.ErrUnknownType)
}

func TestCodec_RoundTrip(t *testing.T) {
	store := newStore()
	codec := NewCodec(log.Discard(), datatypes.Catalog(store), NewMemo())
	ctx := t.Context()

	order, err := store.Order(ctx, "501")
	require.NoError(t, err)

	item, _ := order.Item("i1")
	customer, _ := store.Customer(ctx, "c1")
	shop, _ := store.Shop(ctx)

	dl, err := codec.Build(
		Item{Type: datatypes.Order, Value: order},
		Item{Type: datatypes.OrderItem, Value: item},
		Item{Type: datatypes.Customer, Value: customer},
		Item{Type: datatypes.Shop, Value: shop},
	)
	require.NoError(t, err)

	snapshot, err := codec.Compress(dl)
	require.NoError(t, err)
	assert.Equal(t, Compressed{"order": "501", "order_item": "i1", "customer": "c1"}, snapshot)

	restored, err := codec.Decompress(ctx, snapshot, []datatypes.Name{datatypes.Order, datatypes.OrderItem, datatypes.Customer, datatypes.Shop})
	require.NoError(t, err)
	assert.False(t, restored.HasMissing())
	assert.Equal(t, "501", restored.Order().ID)
	assert.Equal(t, "i1", restored.OrderItem().ID)
	assert.Equal(t, "c1", restored.Customer().ID)
	assert.NotNil(t, restored.Shop())
	assert.Equal(t, 3, codec.Memo().Len())
}

func TestCodec_Decompress_MarksMissing(t *testing.T) {
	store := newStore()
	codec := NewCodec(log.Discard(), datatypes.Catalog(store), nil)

	restored, err := codec.Decompress(t.Context(), Compressed{"order": "999", "customer": "c1"}, []datatypes.Name{datatypes.Order, datatypes.Customer, datatypes.Cart})
	require.NoError(t, err)

	assert.Equal(t, []datatypes.Name{datatypes.Order}, restored.Missing())
	assert.Nil(t, restored.Order())
	assert.NotNil(t, restored.Customer())
	assert.False(t, restored.IsMissing(datatypes.Cart), "absent tokens are not missing")
}

func TestMemo_ServesCachedValueUntilCleared(t *testing.T) {
	store := newStore()
	memo := NewMemo()
	codec := NewCodec(log.Discard(), datatypes.Catalog(store), memo)
	names := []datatypes.Name{datatypes.Order}

	first, err := codec.Decompress(t.Context(), Compressed{"order": "501"}, names)
	require.NoError(t, err)

	store.DeleteOrder("501")

	cached, err := codec.Decompress(t.Context(), Compressed{"order": "501"}, names)
	require.NoError(t, err)
	assert.Same(t, first.Order(), cached.Order())

	memo.Clear()

	fresh, err := codec.Decompress(t.Context(), Compressed{"order": "501"}, names)
	require.NoError(t, err)
	assert.True(t, fresh.IsMissing(datatypes.Order))
}
