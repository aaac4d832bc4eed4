package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/niksmo/storefront/internal/core/port"
	"github.com/niksmo/storefront/pkg/retry"
)

const orderIDAttempts = 5

var _ port.OrderPlacer = (*Checkout)(nil)
var _ port.OrdersReader = (*Checkout)(nil)

// A Checkout turns a cart into a stored order.
type Checkout struct {
	sessions *Sessions
	orders   port.OrdersStorage
	events   port.OrderEventsProducer
	history  port.OrderHistoryReader

	newOrderID func() string
	now        func() time.Time
}

// NewCheckout returns a Checkout. events and history are optional: without
// events no order event is published, without history the order storage
// serves order lists.
func NewCheckout(
	sessions *Sessions,
	orders port.OrdersStorage,
	events port.OrderEventsProducer,
	history port.OrderHistoryReader,
) *Checkout {
	return &Checkout{
		sessions:   sessions,
		orders:     orders,
		events:     events,
		history:    history,
		newOrderID: NewOrderID,
		now:        time.Now,
	}
}

// PlaceOrder validates the request, stores the order and removes the
// ordered items from the session cart. A direct-buy order leaves the cart
// as is.
func (c *Checkout) PlaceOrder(
	ctx context.Context, req domain.CheckoutRequest,
) (domain.Order, error) {
	const op = "Checkout.PlaceOrder"
	log := slog.With("op", op)

	if err := ctx.Err(); err != nil {
		return domain.Order{}, fmt.Errorf("%s: %w", op, err)
	}

	shipping := req.Shipping.Normalize()
	if err := c.validate(req, shipping); err != nil {
		return domain.Order{}, fmt.Errorf("%s: %w", op, err)
	}

	var (
		cart  domain.Cart
		store *CartStore
	)
	if req.DirectBuy != nil {
		cart = domain.Cart{}.Add(*req.DirectBuy, 1, 0)
	} else {
		s, err := c.sessions.Store(ctx, req.SessionID)
		if err != nil {
			return domain.Order{}, fmt.Errorf("%s: %w", op, err)
		}
		store = s
		cart = domain.Cart{Items: s.Items()}
	}

	if cart.IsEmpty() {
		return domain.Order{}, fmt.Errorf("%s: %w", op, domain.ErrEmptyCart)
	}

	order, err := c.storeOrder(ctx, req, shipping, cart)
	if err != nil {
		return domain.Order{}, fmt.Errorf("%s: %w", op, err)
	}
	log = log.With("orderID", order.OrderID)

	if c.events != nil {
		if err := c.events.ProduceOrder(ctx, order); err != nil {
			log.Error("failed to publish order event", "err", err)
		}
	}

	if store != nil {
		if err := store.RemoveOrdered(ctx, order.Items); err != nil {
			log.Error("failed to remove ordered items from cart", "err", err)
		}
	}

	log.Info("order placed", "total", order.Total.String(), "directBuy", order.DirectBuy)
	return order, nil
}

// Orders lists the user's orders newest first.
func (c *Checkout) Orders(
	ctx context.Context, email string,
) ([]domain.OrderSummary, error) {
	const op = "Checkout.Orders"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	email = strings.TrimSpace(email)
	if email == "" {
		return nil, fmt.Errorf("%s: %w: email is required", op, domain.ErrValidation)
	}

	if c.history != nil {
		orders, err := c.history.ListOrders(ctx, email)
		if err == nil {
			return orders, nil
		}
		slog.Warn(
			"order history is unavailable, reading order storage",
			"op", op, "err", err,
		)
	}

	orders, err := c.orders.ListOrders(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return orders, nil
}

func (c *Checkout) Order(
	ctx context.Context, orderID string,
) (domain.Order, error) {
	const op = "Checkout.Order"

	if err := ctx.Err(); err != nil {
		return domain.Order{}, fmt.Errorf("%s: %w", op, err)
	}

	order, err := c.orders.ReadOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("%s: %w", op, err)
	}
	return order, nil
}

// storeOrder saves a new order, drawing a fresh id while the drawn one
// is taken.
func (c *Checkout) storeOrder(
	ctx context.Context,
	req domain.CheckoutRequest,
	shipping domain.ShippingDetails,
	cart domain.Cart,
) (domain.Order, error) {
	order := c.buildOrder(req, shipping, cart)

	cfg := retry.RetryConfig{
		MaxAttempts: orderIDAttempts,
		Backoff:     retry.LinearBackoff(0),
		ShouldRetry: func(err error) bool {
			return errors.Is(err, domain.ErrOrderIDTaken)
		},
	}
	err := retry.Do(ctx, cfg, func() error {
		err := c.orders.StoreOrder(ctx, order)
		if errors.Is(err, domain.ErrOrderIDTaken) {
			slog.Warn("order id is taken, drawing another", "orderID", order.OrderID)
			order.OrderID = c.newOrderID()
		}
		return err
	})
	if err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

func (c *Checkout) validate(
	req domain.CheckoutRequest, shipping domain.ShippingDetails,
) error {
	var errs []error
	if !req.Agreement {
		errs = append(errs, fmt.Errorf(
			"%w: terms and conditions must be accepted", domain.ErrValidation,
		))
	}
	if err := shipping.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c *Checkout) buildOrder(
	req domain.CheckoutRequest,
	shipping domain.ShippingDetails,
	cart domain.Cart,
) domain.Order {
	totals := c.sessions.Pricing().Totals(cart)

	email := strings.TrimSpace(req.Email)
	if email == "" {
		email = shipping.Email
	}

	payment := strings.TrimSpace(req.PaymentMethod)
	if payment == "" {
		payment = domain.DefaultPaymentMethod
	}

	return domain.Order{
		OrderID:       c.newOrderID(),
		Email:         email,
		Status:        domain.OrderStatusProcessing,
		Items:         cart.Items,
		Subtotal:      totals.Subtotal,
		Discount:      totals.Discount,
		ShippingFee:   totals.ShippingFee,
		Total:         totals.Total,
		Shipping:      shipping,
		PaymentMethod: payment,
		DirectBuy:     req.DirectBuy != nil,
		CreatedAt:     c.now().UTC(),
	}
}

// NewOrderID returns "ORD-" followed by six random digits.
func NewOrderID() string {
	return fmt.Sprintf("ORD-%d", 100000+rand.IntN(900000))
}
