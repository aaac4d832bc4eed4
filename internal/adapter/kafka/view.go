package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lovoo/goka"
	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/niksmo/storefront/internal/core/port"
	"github.com/niksmo/storefront/pkg/schema"
)

var (
	_ port.OrderHistoryReader = (*OrderHistoryView)(nil)
	_ port.BackgroundWorker   = (*OrderHistoryView)(nil)
)

var ErrViewNotRecovered = errors.New("view is not recovered")

// An OrderHistoryViewConfig is used for setup [OrderHistoryView].
//
// SeedBrokers and GroupTable are required.
type OrderHistoryViewConfig struct {
	SeedBrokers []string
	GroupTable  string
	Security    Security
	Options     []goka.ViewOption
}

// An OrderHistoryView serves the group table kept by
// [OrderHistoryProcessor].
type OrderHistoryView struct {
	gv *goka.View
}

func NewOrderHistoryView(
	config OrderHistoryViewConfig,
) (*OrderHistoryView, error) {
	const op = "NewOrderHistoryView"

	applySASLTLS(config.Security)

	gv, err := goka.NewView(
		config.SeedBrokers,
		goka.GroupTable(goka.Group(config.GroupTable)),
		newOrderHistoryCodec(),
		config.Options...,
	)
	if err != nil {
		return nil, opErr(err, op)
	}

	return &OrderHistoryView{gv}, nil
}

func (v *OrderHistoryView) Run(ctx context.Context) {
	const op = "OrderHistoryView.Run"
	log := slog.With("op", op)

	log.Info("running")
	err := v.gv.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("unexpected fail on run", "err", err)
		return
	}
	log.Info("stopped")
}

// Close is a no-op: the view stops when its run context is canceled.
func (v *OrderHistoryView) Close() {}

func (v *OrderHistoryView) ListOrders(
	ctx context.Context, email string,
) ([]domain.OrderSummary, error) {
	const op = "OrderHistoryView.ListOrders"

	if err := ctx.Err(); err != nil {
		return nil, opErr(err, op)
	}

	if !v.gv.Recovered() {
		return nil, opErr(ErrViewNotRecovered, op)
	}

	value, err := v.gv.Get(email)
	if err != nil {
		return nil, opErr(err, op)
	}

	orders := []domain.OrderSummary{}
	if value == nil {
		return orders, nil
	}

	history, ok := value.(schema.OrderHistoryV1)
	if !ok {
		err := fmt.Errorf("%w: %T", ErrInvalidValueType, value)
		return nil, opErr(err, op)
	}

	for _, s := range history.Orders {
		orders = append(orders, summaryFromSchemaV1(s))
	}
	return orders, nil
}
