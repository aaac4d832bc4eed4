package httphandler

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/niksmo/storefront/internal/adapter/storage"
	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/niksmo/storefront/internal/core/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockOrderPlacer struct {
	mock.Mock
}

func (m *MockOrderPlacer) PlaceOrder(
	ctx context.Context, req domain.CheckoutRequest,
) (domain.Order, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(domain.Order), args.Error(1)
}

type MockOrdersReader struct {
	mock.Mock
}

func (m *MockOrdersReader) Orders(
	ctx context.Context, email string,
) ([]domain.OrderSummary, error) {
	args := m.Called(ctx, email)
	return args.Get(0).([]domain.OrderSummary), args.Error(1)
}

func (m *MockOrdersReader) Order(
	ctx context.Context, orderID string,
) (domain.Order, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).(domain.Order), args.Error(1)
}

type MockProductsReader struct {
	mock.Mock
}

func (m *MockProductsReader) Products(
	ctx context.Context, q domain.ProductQuery,
) ([]domain.Product, error) {
	args := m.Called(ctx, q)
	return args.Get(0).([]domain.Product), args.Error(1)
}

func (m *MockProductsReader) Product(
	ctx context.Context, productID string,
) (domain.Product, error) {
	args := m.Called(ctx, productID)
	return args.Get(0).(domain.Product), args.Error(1)
}

func (m *MockProductsReader) Categories(
	ctx context.Context,
) ([]domain.Category, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Category), args.Error(1)
}

type fixture struct {
	router   http.Handler
	placer   *MockOrderPlacer
	orders   *MockOrdersReader
	products *MockProductsReader
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	f := fixture{
		placer:   new(MockOrderPlacer),
		orders:   new(MockOrdersReader),
		products: new(MockProductsReader),
	}
	sessions, err := service.NewSessions(
		storage.NewMemoryKV(), storage.JSONCartCodec{}, domain.DefaultPricing(),
	)
	require.NoError(t, err)
	f.router = NewRouter(sessions, f.placer, f.orders, f.products)
	return f
}

func (f fixture) do(
	t *testing.T, method, target, sessionID, body string,
) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if sessionID != "" {
		req.Header.Set(SessionHeader, sessionID)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeCart(t *testing.T, w *httptest.ResponseRecorder) Cart {
	t.Helper()
	var c Cart
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &c))
	return c
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

func TestSession(t *testing.T) {
	f := newFixture(t)

	t.Run("Generated", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/v1/cart", "", "")
		require.Equal(t, http.StatusOK, w.Code)
		_, err := uuid.Parse(w.Header().Get(SessionHeader))
		assert.NoError(t, err)
	})

	t.Run("Echoed", func(t *testing.T) {
		id := uuid.NewString()
		w := f.do(t, http.MethodGet, "/v1/cart", id, "")
		assert.Equal(t, id, w.Header().Get(SessionHeader))
	})

	t.Run("MalformedReplaced", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/v1/cart", "../../etc", "")
		got := w.Header().Get(SessionHeader)
		assert.NotEqual(t, "../../etc", got)
		_, err := uuid.Parse(got)
		assert.NoError(t, err)
	})
}

func TestAllowJSON(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(
		http.MethodPost, "/v1/cart/items", strings.NewReader(`{"id": 1}`),
	)
	req.Header.Set("Content-Type", "text/plain")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)

	req = httptest.NewRequest(
		http.MethodPost, "/v1/cart/items", strings.NewReader(`{"id": 1}`),
	)
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	w = httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCartRoutes(t *testing.T) {
	f := newFixture(t)
	session := uuid.NewString()

	w := f.do(t, http.MethodGet, "/v1/cart", session, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, mustField(t, w, "items"))

	w = f.do(t, http.MethodPost, "/v1/cart/items", session,
		`{"id": 1, "title": "Lamp", "price": 500, "brand": "Lumen", "thumbnail": "https://cdn/1.webp"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodPost, "/v1/cart/items", session,
		`{"id": "2", "title": "Desk", "price": "300", "quantity": 2}`)
	require.Equal(t, http.StatusOK, w.Code)

	c := decodeCart(t, w)
	require.Len(t, c.Items, 2)
	assert.Equal(t, "1", c.Items[0].ID)
	assert.Equal(t, "Lumen", c.Items[0].Brand)
	assert.Equal(t, 2, c.Items[1].Quantity)
	assertDecimal(t, "600", c.Items[1].Amount)
	assertDecimal(t, "1100", c.Subtotal)
	assertDecimal(t, "11", c.Discount)
	assertDecimal(t, "0", c.Shipping)
	assertDecimal(t, "1089", c.Total)
	assert.Equal(t, 3, c.ItemCount)
	assert.Equal(t, 2, c.DistinctCount)

	t.Run("SetQuantityZeroRemoves", func(t *testing.T) {
		w := f.do(t, http.MethodPut, "/v1/cart/items/1", session, `{"quantity": 0}`)
		require.Equal(t, http.StatusOK, w.Code)

		c := decodeCart(t, w)
		require.Len(t, c.Items, 1)
		assert.Equal(t, "2", c.Items[0].ID)
		assertDecimal(t, "600", c.Subtotal)
		assertDecimal(t, "6", c.Discount)
		assertDecimal(t, "40", c.Shipping)
		assertDecimal(t, "634", c.Total)
	})

	t.Run("SetQuantityClamped", func(t *testing.T) {
		w := f.do(t, http.MethodPut, "/v1/cart/items/2", session, `{"quantity": "25"}`)
		require.Equal(t, http.StatusOK, w.Code)
		c := decodeCart(t, w)
		assert.Equal(t, domain.DefaultMaxQuantity, c.Items[0].Quantity)
	})

	t.Run("SetQuantityNotNumeric", func(t *testing.T) {
		w := f.do(t, http.MethodPut, "/v1/cart/items/2", session, `{"quantity": "many"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("OtherSessionIsolated", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/v1/cart", uuid.NewString(), "")
		c := decodeCart(t, w)
		assert.Empty(t, c.Items)
	})

	t.Run("DeleteItem", func(t *testing.T) {
		w := f.do(t, http.MethodDelete, "/v1/cart/items/2", session, "")
		require.Equal(t, http.StatusOK, w.Code)
		c := decodeCart(t, w)
		assert.Empty(t, c.Items)
		assertDecimal(t, "0", c.Subtotal)
		assertDecimal(t, "40", c.Shipping)
		assertDecimal(t, "40", c.Total)
	})

	t.Run("Clear", func(t *testing.T) {
		f.do(t, http.MethodPost, "/v1/cart/items", session, `{"id": 3, "price": 10}`)
		w := f.do(t, http.MethodDelete, "/v1/cart", session, "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, decodeCart(t, w).Items)
	})
}

func TestCartPostItemRejects(t *testing.T) {
	f := newFixture(t)

	t.Run("InvalidJSON", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/v1/cart/items", "", `{"id":`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("MissingID", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/v1/cart/items", "", `{"title": "Lamp", "price": 5}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestCartEvents(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	session := uuid.NewString()
	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/v1/cart/events", nil)
	require.NoError(t, err)
	req.Header.Set(SessionHeader, session)

	res, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "text/event-stream", res.Header.Get("Content-Type"))

	events := bufio.NewReader(res.Body)
	first := readEvent(t, events)
	assert.Empty(t, first.Items)

	post, err := http.NewRequestWithContext(
		ctx, http.MethodPost, srv.URL+"/v1/cart/items",
		strings.NewReader(`{"id": 7, "title": "Lamp", "price": 49.5}`),
	)
	require.NoError(t, err)
	post.Header.Set("Content-Type", "application/json")
	post.Header.Set(SessionHeader, session)
	postRes, err := srv.Client().Do(post)
	require.NoError(t, err)
	postRes.Body.Close()

	next := readEvent(t, events)
	require.Len(t, next.Items, 1)
	assert.Equal(t, "7", next.Items[0].ID)
	assertDecimal(t, "89.005", next.Total)
}

func readEvent(t *testing.T, r *bufio.Reader) Cart {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		var c Cart
		require.NoError(t, json.Unmarshal([]byte(data), &c))
		return c
	}
}

func mustField(t *testing.T, w *httptest.ResponseRecorder, name string) string {
	t.Helper()
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	return string(m[name])
}

func TestCheckoutRoutes(t *testing.T) {
	const body = `{
		"email": "jane@example.com",
		"agreement": true,
		"shipping": {
			"fullName": "Jane Doe", "email": "jane@example.com", "phone": "(555) 123-4567",
			"country": "US", "city": "Austin", "state": "TX", "zipCode": "73301"
		}
	}`

	order := domain.Order{
		OrderID: "ORD-123456",
		Email:   "jane@example.com",
		Status:  domain.OrderStatusProcessing,
		Items: []domain.LineItem{
			{ProductID: "1", Title: "Lamp", UnitPrice: decimal.NewFromInt(500), Quantity: 1},
		},
		Subtotal:      decimal.NewFromInt(500),
		Discount:      decimal.NewFromInt(5),
		ShippingFee:   decimal.NewFromInt(40),
		Total:         decimal.NewFromInt(535),
		PaymentMethod: domain.DefaultPaymentMethod,
		Shipping: domain.ShippingDetails{
			FullName: "Jane Doe", Email: "jane@example.com", Phone: "5551234567",
			Country: "US", City: "Austin", State: "TX", ZipCode: "73301",
		},
		CreatedAt: time.Date(2025, 3, 14, 19, 30, 0, 0, time.UTC),
	}

	t.Run("Created", func(t *testing.T) {
		f := newFixture(t)
		session := uuid.NewString()
		f.placer.On("PlaceOrder", mock.Anything, mock.MatchedBy(
			func(req domain.CheckoutRequest) bool {
				return req.SessionID == session &&
					req.Agreement &&
					req.Shipping.Phone == "(555) 123-4567" &&
					req.DirectBuy == nil
			},
		)).Return(order, nil)

		w := f.do(t, http.MethodPost, "/v1/checkout", session, body)
		require.Equal(t, http.StatusCreated, w.Code)

		var got Order
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, "ORD-123456", got.OrderID)
		assert.Equal(t, "2025-03-14", got.Date)
		assert.Equal(t, "Austin, TX, 73301", got.Address)
		assert.Equal(t, "visa", got.PaymentMethod)
		assertDecimal(t, "535", got.Total)
		f.placer.AssertExpectations(t)
	})

	t.Run("DirectBuy", func(t *testing.T) {
		f := newFixture(t)
		f.placer.On("PlaceOrder", mock.Anything, mock.MatchedBy(
			func(req domain.CheckoutRequest) bool {
				return req.DirectBuy != nil &&
					req.DirectBuy.ProductID == "9" &&
					req.DirectBuy.UnitPrice.Equal(decimal.RequireFromString("49.5"))
			},
		)).Return(order, nil)

		direct := strings.Replace(body, `"agreement": true,`,
			`"agreement": true, "directBuy": {"id": 9, "title": "Mug", "price": "49.5"},`, 1)
		w := f.do(t, http.MethodPost, "/v1/checkout", "", direct)
		assert.Equal(t, http.StatusCreated, w.Code)
		f.placer.AssertExpectations(t)
	})

	t.Run("ValidationFailure", func(t *testing.T) {
		f := newFixture(t)
		verr := fmt.Errorf("Checkout.PlaceOrder: %w", errors.Join(
			fmt.Errorf("%w: terms and conditions must be accepted", domain.ErrValidation),
			fmt.Errorf("%w: phone number must be exactly 10 digits", domain.ErrValidation),
		))
		f.placer.On("PlaceOrder", mock.Anything, mock.Anything).
			Return(domain.Order{}, verr)

		w := f.do(t, http.MethodPost, "/v1/checkout", "", body)
		require.Equal(t, http.StatusBadRequest, w.Code)

		var res Error
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		assert.Equal(t, domain.ErrValidation.Error(), res.Error)
		assert.Equal(t, []string{
			"validation failed: terms and conditions must be accepted",
			"validation failed: phone number must be exactly 10 digits",
		}, res.Details)
	})

	t.Run("EmptyCart", func(t *testing.T) {
		f := newFixture(t)
		f.placer.On("PlaceOrder", mock.Anything, mock.Anything).
			Return(domain.Order{}, fmt.Errorf("Checkout.PlaceOrder: %w", domain.ErrEmptyCart))

		w := f.do(t, http.MethodPost, "/v1/checkout", "", body)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("StorageFailure", func(t *testing.T) {
		f := newFixture(t)
		f.placer.On("PlaceOrder", mock.Anything, mock.Anything).
			Return(domain.Order{}, errors.New("connection refused"))

		w := f.do(t, http.MethodPost, "/v1/checkout", "", body)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.NotContains(t, w.Body.String(), "connection refused")
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		f := newFixture(t)
		w := f.do(t, http.MethodPost, "/v1/checkout", "", `{"email": 1`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		f.placer.AssertNotCalled(t, "PlaceOrder", mock.Anything, mock.Anything)
	})
}

func TestOrderRoutes(t *testing.T) {
	t.Run("List", func(t *testing.T) {
		f := newFixture(t)
		f.orders.On("Orders", mock.Anything, "jane@example.com").
			Return([]domain.OrderSummary{{
				OrderID:   "ORD-123456",
				Status:    domain.OrderStatusProcessing,
				Total:     decimal.NewFromInt(1089),
				ItemCount: 3,
			}}, nil)

		w := f.do(t, http.MethodGet, "/v1/orders?email=jane@example.com", "", "")
		require.Equal(t, http.StatusOK, w.Code)

		var got []OrderSummary
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		require.Len(t, got, 1)
		assert.Equal(t, 3, got[0].ItemCount)
	})

	t.Run("ListWithoutEmail", func(t *testing.T) {
		f := newFixture(t)
		f.orders.On("Orders", mock.Anything, "").Return(
			[]domain.OrderSummary(nil),
			fmt.Errorf("%w: email is required", domain.ErrValidation),
		)
		w := f.do(t, http.MethodGet, "/v1/orders", "", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("NotFound", func(t *testing.T) {
		f := newFixture(t)
		f.orders.On("Order", mock.Anything, "ORD-000000").
			Return(domain.Order{}, domain.ErrOrderNotFound)
		w := f.do(t, http.MethodGet, "/v1/orders/ORD-000000", "", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestProductRoutes(t *testing.T) {
	t.Run("List", func(t *testing.T) {
		f := newFixture(t)
		f.products.On("Products", mock.Anything, domain.ProductQuery{
			Search: "lamp", Category: "lighting", Limit: 5,
		}).Return([]domain.Product{{
			ProductID: "7", Title: "Lamp", Price: decimal.RequireFromString("49.5"),
		}}, nil)

		w := f.do(t, http.MethodGet, "/v1/products?q=lamp&category=lighting&limit=5", "", "")
		require.Equal(t, http.StatusOK, w.Code)

		var got []Product
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		require.Len(t, got, 1)
		assert.Equal(t, "7", got[0].ID)
		assertDecimal(t, "49.5", got[0].Price)
	})

	t.Run("InvalidLimit", func(t *testing.T) {
		f := newFixture(t)
		w := f.do(t, http.MethodGet, "/v1/products?limit=ten", "", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("NotFound", func(t *testing.T) {
		f := newFixture(t)
		f.products.On("Product", mock.Anything, "999").
			Return(domain.Product{}, domain.ErrProductNotFound)
		w := f.do(t, http.MethodGet, "/v1/products/999", "", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("CatalogUnavailable", func(t *testing.T) {
		f := newFixture(t)
		f.products.On("Product", mock.Anything, "1").
			Return(domain.Product{}, errors.New("upstream unavailable"))
		w := f.do(t, http.MethodGet, "/v1/products/1", "", "")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("Categories", func(t *testing.T) {
		f := newFixture(t)
		f.products.On("Categories", mock.Anything).
			Return([]domain.Category{{Slug: "beauty", Name: "Beauty"}}, nil)
		w := f.do(t, http.MethodGet, "/v1/categories", "", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `[{"slug": "beauty", "name": "Beauty"}]`, w.Body.String())
	})
}

func TestTimeoutHandler(t *testing.T) {
	t.Run("TimedOut", func(t *testing.T) {
		slow := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		})

		w := httptest.NewRecorder()
		timeoutHandler(slow, 10*time.Millisecond).
			ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/cart", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var body Error
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "service unavailable", body.Error)
	})

	t.Run("InTime", func(t *testing.T) {
		fast := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, "test", http.StatusOK, Category{Slug: "beauty", Name: "Beauty"})
		})

		w := httptest.NewRecorder()
		timeoutHandler(fast, time.Second).
			ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/categories", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		assert.JSONEq(t, `{"slug":"beauty","name":"Beauty"}`, w.Body.String())
	})
}
