package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/niksmo/storefront/internal/core/port"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockKV struct {
	mock.Mock
}

func (m *MockKV) Get(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockKV) Set(ctx context.Context, key, value string) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *MockKV) Remove(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

type mapKV struct {
	mu   sync.Mutex
	data map[string]string
}

func newMapKV() *mapKV {
	return &mapKV{data: make(map[string]string)}
}

func (kv *mapKV) Get(_ context.Context, key string) (string, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	v, ok := kv.data[key]
	if !ok {
		return "", port.ErrKeyNotFound
	}
	return v, nil
}

func (kv *mapKV) Set(_ context.Context, key, value string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.data[key] = value
	return nil
}

func (kv *mapKV) Remove(_ context.Context, key string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	delete(kv.data, key)
	return nil
}

func (kv *mapKV) has(key string) bool {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	_, ok := kv.data[key]
	return ok
}

type jsonCodec struct{}

func (jsonCodec) EncodeCart(c domain.Cart) (string, error) {
	b, err := json.Marshal(c.Items)
	return string(b), err
}

func (jsonCodec) DecodeCart(s string) (domain.Cart, error) {
	var items []domain.LineItem
	err := json.Unmarshal([]byte(s), &items)
	return domain.Cart{Items: items}, err
}

func product(id, price string) domain.ProductSnapshot {
	return domain.ProductSnapshot{
		ProductID:    id,
		Title:        "Product " + id,
		ThumbnailURL: "https://cdn.test/" + id,
		Brand:        "Acme",
		UnitPrice:    decimal.RequireFromString(price),
	}
}

func newTestStore(t *testing.T, kv port.KVStorage) *CartStore {
	t.Helper()
	s, err := LoadCartStore(
		t.Context(), CartKey, kv, jsonCodec{}, domain.DefaultPricing(),
	)
	require.NoError(t, err)
	return s
}

func TestLoadCartStore(t *testing.T) {
	t.Run("Missing", func(t *testing.T) {
		kv := new(MockKV)
		kv.On("Get", mock.Anything, CartKey).
			Return("", port.ErrKeyNotFound)

		s := newTestStore(t, kv)
		assert.True(t, s.IsEmpty())
		kv.AssertExpectations(t)
	})

	t.Run("Corrupt", func(t *testing.T) {
		kv := new(MockKV)
		kv.On("Get", mock.Anything, CartKey).Return("{not json", nil)

		s := newTestStore(t, kv)
		assert.True(t, s.IsEmpty())
	})

	t.Run("StorageFailure", func(t *testing.T) {
		kv := new(MockKV)
		storageErr := errors.New("connection refused")
		kv.On("Get", mock.Anything, CartKey).Return("", storageErr)

		_, err := LoadCartStore(
			t.Context(), CartKey, kv, jsonCodec{}, domain.DefaultPricing(),
		)
		require.Error(t, err)
		assert.ErrorIs(t, err, storageErr)
	})

	t.Run("NormalizesRecord", func(t *testing.T) {
		kv := newMapKV()
		raw, err := jsonCodec{}.EncodeCart(domain.Cart{Items: []domain.LineItem{
			{ProductID: "A", UnitPrice: decimal.NewFromInt(5), Quantity: 40},
			{ProductID: "A", UnitPrice: decimal.NewFromInt(5), Quantity: 1},
		}})
		require.NoError(t, err)
		require.NoError(t, kv.Set(t.Context(), CartKey, raw))

		s := newTestStore(t, kv)
		items := s.Items()
		require.Len(t, items, 1)
		assert.Equal(t, domain.DefaultMaxQuantity, items[0].Quantity)
	})
}

func TestCartStoreScenario(t *testing.T) {
	kv := newMapKV()
	s := newTestStore(t, kv)
	ctx := t.Context()

	require.NoError(t, s.Add(ctx, product("A1", "500"), 1))
	require.NoError(t, s.Add(ctx, product("A2", "600"), 1))

	totals := s.Totals()
	assert.True(t, decimal.NewFromInt(1100).Equal(totals.Subtotal))
	assert.True(t, decimal.NewFromInt(11).Equal(totals.Discount))
	assert.True(t, decimal.Zero.Equal(totals.ShippingFee))
	assert.True(t, decimal.NewFromInt(1089).Equal(totals.Total))

	require.NoError(t, s.SetQuantity(ctx, "A1", 0))

	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "A2", items[0].ProductID)

	totals = s.Totals()
	assert.True(t, decimal.NewFromInt(600).Equal(totals.Subtotal))
	assert.True(t, decimal.NewFromInt(40).Equal(totals.ShippingFee))
	assert.True(t, decimal.NewFromInt(6).Equal(totals.Discount))
	assert.True(t, decimal.NewFromInt(566).Equal(totals.Total))
}

func TestCartStorePersistence(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		kv := newMapKV()
		s := newTestStore(t, kv)
		ctx := t.Context()

		require.NoError(t, s.Add(ctx, product("A", "19.99"), 3))
		require.NoError(t, s.Add(ctx, product("B", "250"), 1))
		require.NoError(t, s.Add(ctx, product("A", "19.99"), 1))

		reloaded := newTestStore(t, kv)

		want, got := s.Snapshot(), reloaded.Snapshot()
		require.Len(t, got.Items, len(want.Items))
		for i := range want.Items {
			assert.Equal(t, want.Items[i].ProductID, got.Items[i].ProductID)
			assert.Equal(t, want.Items[i].Quantity, got.Items[i].Quantity)
			assert.True(t, want.Items[i].UnitPrice.Equal(got.Items[i].UnitPrice))
		}
		assert.True(t, want.Totals.Total.Equal(got.Totals.Total))
	})

	t.Run("ClearRemovesRecord", func(t *testing.T) {
		kv := newMapKV()
		s := newTestStore(t, kv)
		ctx := t.Context()

		require.NoError(t, s.Add(ctx, product("A", "10"), 2))
		require.True(t, kv.has(CartKey))

		require.NoError(t, s.Clear(ctx))
		assert.False(t, kv.has(CartKey))

		snap := s.Snapshot()
		assert.Empty(t, snap.Items)
		assert.Zero(t, snap.Totals.ItemCount)
		assert.True(t, snap.Totals.Subtotal.IsZero())

		assert.True(t, newTestStore(t, kv).IsEmpty())
	})

	t.Run("RemovingLastItemRemovesRecord", func(t *testing.T) {
		kv := newMapKV()
		s := newTestStore(t, kv)
		ctx := t.Context()

		require.NoError(t, s.Add(ctx, product("A", "10"), 1))
		require.NoError(t, s.Remove(ctx, "A"))
		require.NoError(t, s.Remove(ctx, "A"))

		assert.False(t, kv.has(CartKey))
		assert.True(t, s.IsEmpty())
	})

	t.Run("FailedWriteKeepsState", func(t *testing.T) {
		kv := new(MockKV)
		writeErr := errors.New("disk full")
		kv.On("Get", mock.Anything, CartKey).Return("", port.ErrKeyNotFound)
		kv.On("Set", mock.Anything, CartKey, mock.Anything).Return(writeErr)

		s := newTestStore(t, kv)

		var notified int
		s.Subscribe(func(domain.CartSnapshot) { notified++ })

		err := s.Add(t.Context(), product("A", "10"), 1)
		require.Error(t, err)
		assert.ErrorIs(t, err, writeErr)
		assert.True(t, s.IsEmpty())
		assert.Zero(t, notified)
	})

	t.Run("CanceledContext", func(t *testing.T) {
		kv := newMapKV()
		s := newTestStore(t, kv)

		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		err := s.Add(ctx, product("A", "10"), 1)
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, kv.has(CartKey))
	})
}

func TestCartStoreSubscribe(t *testing.T) {
	s := newTestStore(t, newMapKV())
	ctx := t.Context()

	var got []domain.CartSnapshot
	unsubscribe := s.Subscribe(func(snap domain.CartSnapshot) {
		got = append(got, snap)
	})

	require.NoError(t, s.Add(ctx, product("A", "10"), 1))
	require.NoError(t, s.Add(ctx, product("A", "10"), 1))
	require.NoError(t, s.SetQuantity(ctx, "A", 5))

	require.Len(t, got, 3)
	assert.Equal(t, 1, got[0].Totals.ItemCount)
	assert.Equal(t, 2, got[1].Totals.ItemCount)
	assert.Equal(t, 5, got[2].Totals.ItemCount)

	unsubscribe()
	unsubscribe()
	require.NoError(t, s.Clear(ctx))
	assert.Len(t, got, 3)
}

func TestCartStoreConcurrentAdds(t *testing.T) {
	kv := newMapKV()
	pricing := domain.DefaultPricing()
	pricing.MaxQuantity = 0
	s, err := LoadCartStore(t.Context(), CartKey, kv, jsonCodec{}, pricing)
	require.NoError(t, err)

	const n = 50
	var wg sync.WaitGroup
	wg.Add(n)
	for range n {
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Add(t.Context(), product("A", "1"), 1))
		}()
	}
	wg.Wait()

	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, n, items[0].Quantity)

	reloaded, err := LoadCartStore(t.Context(), CartKey, kv, jsonCodec{}, pricing)
	require.NoError(t, err)
	assert.Equal(t, n, reloaded.Items()[0].Quantity)
}
