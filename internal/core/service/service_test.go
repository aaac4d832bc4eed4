package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockCatalog struct {
	mock.Mock
}

func (m *MockCatalog) ListProducts(
	ctx context.Context, q domain.ProductQuery,
) ([]domain.Product, error) {
	args := m.Called(ctx, q)
	return args.Get(0).([]domain.Product), args.Error(1)
}

func (m *MockCatalog) ReadProduct(
	ctx context.Context, productID string,
) (domain.Product, error) {
	args := m.Called(ctx, productID)
	return args.Get(0).(domain.Product), args.Error(1)
}

func (m *MockCatalog) ListCategories(ctx context.Context) ([]domain.Category, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Category), args.Error(1)
}

type stubWorker struct {
	started chan struct{}
	mu      sync.Mutex
	closed  bool
}

func (w *stubWorker) Run(ctx context.Context) {
	close(w.started)
	<-ctx.Done()
}

func (w *stubWorker) Close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
}

func TestServiceProducts(t *testing.T) {
	t.Run("DefaultLimit", func(t *testing.T) {
		c := new(MockCatalog)
		c.On("ListProducts", mock.Anything, domain.ProductQuery{
			Search: "lamp", Limit: defaultProductsLimit,
		}).Return([]domain.Product{{ProductID: "1"}}, nil)

		ps, err := New(c).Products(t.Context(), domain.ProductQuery{Search: "  lamp "})
		require.NoError(t, err)
		assert.Len(t, ps, 1)
		c.AssertExpectations(t)
	})

	t.Run("LimitCapped", func(t *testing.T) {
		c := new(MockCatalog)
		c.On("ListProducts", mock.Anything, domain.ProductQuery{Limit: maxProductsLimit}).
			Return([]domain.Product{}, nil)

		_, err := New(c).Products(t.Context(), domain.ProductQuery{Limit: 10_000})
		require.NoError(t, err)
		c.AssertExpectations(t)
	})

	t.Run("CatalogFailure", func(t *testing.T) {
		c := new(MockCatalog)
		upstreamErr := errors.New("upstream unavailable")
		c.On("ListProducts", mock.Anything, mock.Anything).
			Return([]domain.Product(nil), upstreamErr)

		_, err := New(c).Products(t.Context(), domain.ProductQuery{})
		assert.ErrorIs(t, err, upstreamErr)
	})

	t.Run("CanceledContext", func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		c := new(MockCatalog)
		_, err := New(c).Products(ctx, domain.ProductQuery{})
		assert.ErrorIs(t, err, context.Canceled)
		c.AssertNotCalled(t, "ListProducts", mock.Anything, mock.Anything)
	})
}

func TestServiceProduct(t *testing.T) {
	c := new(MockCatalog)
	c.On("ReadProduct", mock.Anything, "7").Return(domain.Product{ProductID: "7"}, nil)
	c.On("ReadProduct", mock.Anything, "999").
		Return(domain.Product{}, domain.ErrProductNotFound)

	s := New(c)

	p, err := s.Product(t.Context(), " 7 ")
	require.NoError(t, err)
	assert.Equal(t, "7", p.ProductID)

	_, err = s.Product(t.Context(), "999")
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestServiceCategories(t *testing.T) {
	c := new(MockCatalog)
	c.On("ListCategories", mock.Anything).
		Return([]domain.Category{{Slug: "beauty", Name: "Beauty"}}, nil)

	cs, err := New(c).Categories(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []domain.Category{{Slug: "beauty", Name: "Beauty"}}, cs)
}

func TestServiceWorkers(t *testing.T) {
	w1 := &stubWorker{started: make(chan struct{})}
	w2 := &stubWorker{started: make(chan struct{})}
	s := New(new(MockCatalog), w1, w2)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	s.Run(ctx)
	<-w1.started
	<-w2.started

	s.Close()
	assert.True(t, w1.closed)
	assert.True(t, w2.closed)
}
