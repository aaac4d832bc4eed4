package port

import (
	"context"
	"errors"

	"github.com/niksmo/storefront/internal/core/domain"
)

// ErrKeyNotFound is returned by a KVStorage for a missing key.
var ErrKeyNotFound = errors.New("key not found")

type (
	runnerContext interface {
		Run(context.Context)
	}

	closer interface {
		Close()
	}
)

// A Cart is one session's cart store as seen by inbound adapters.
type Cart interface {
	Add(ctx context.Context, p domain.ProductSnapshot, quantity int) error
	Remove(ctx context.Context, productID string) error
	SetQuantity(ctx context.Context, productID string, quantity int) error
	Clear(ctx context.Context) error
	Snapshot() domain.CartSnapshot
	Subscribe(fn func(domain.CartSnapshot)) (unsubscribe func())
}

type CartProvider interface {
	Cart(ctx context.Context, sessionID string) (Cart, error)
}

type OrderPlacer interface {
	PlaceOrder(context.Context, domain.CheckoutRequest) (domain.Order, error)
}

type OrdersReader interface {
	Orders(ctx context.Context, email string) ([]domain.OrderSummary, error)
	Order(ctx context.Context, orderID string) (domain.Order, error)
}

type ProductsReader interface {
	Products(context.Context, domain.ProductQuery) ([]domain.Product, error)
	Product(ctx context.Context, productID string) (domain.Product, error)
	Categories(context.Context) ([]domain.Category, error)
}

// A KVStorage is the durable key-value store a cart persists to.
type KVStorage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// A CartCodec serialises the item list of a cart.
type CartCodec interface {
	EncodeCart(domain.Cart) (string, error)
	DecodeCart(string) (domain.Cart, error)
}

type OrdersStorage interface {
	StoreOrder(context.Context, domain.Order) error
	ReadOrder(ctx context.Context, orderID string) (domain.Order, error)
	ListOrders(ctx context.Context, email string) ([]domain.OrderSummary, error)
}

type OrderEventsProducer interface {
	ProduceOrder(context.Context, domain.Order) error
}

// An OrderHistoryReader serves the per-user order history projection.
type OrderHistoryReader interface {
	ListOrders(ctx context.Context, email string) ([]domain.OrderSummary, error)
}

// A BackgroundWorker runs until its context is canceled.
type BackgroundWorker interface {
	runnerContext
	closer
}

type ProductCatalog interface {
	ListProducts(context.Context, domain.ProductQuery) ([]domain.Product, error)
	ReadProduct(ctx context.Context, productID string) (domain.Product, error)
	ListCategories(context.Context) ([]domain.Category, error)
}
