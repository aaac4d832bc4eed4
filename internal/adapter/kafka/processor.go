package kafka

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"github.com/hamba/avro/v2"
	"github.com/lovoo/goka"
	"github.com/niksmo/storefront/internal/core/port"
	"github.com/niksmo/storefront/pkg/schema"
)

var _ port.BackgroundWorker = (*OrderHistoryProcessor)(nil)

// maxHistoryLen bounds the summaries kept per user.
const maxHistoryLen = 100

// A processor is used for composition.
//
// Running and closing the underlying [goka.Processor]
type processor struct {
	opPrefix string
	gp       *goka.Processor
}

// run blocks until ctx is canceled or the processor fails.
func (p *processor) run(ctx context.Context) {
	const op = "run"
	log := slog.With("op", makeOp(p.opPrefix, op))

	log.Info("preparing...")
	go p.waitForReady(ctx)

	err := p.gp.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("stopped", "err", err)
		return
	}
	log.Info("stopped")
}

func (p *processor) waitForReady(ctx context.Context) {
	const op = "waitForReady"
	log := slog.With("op", makeOp(p.opPrefix, op))

	err := p.gp.WaitForReadyContext(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		log.Error("fall down while preparing", "err", err)
		return
	}
	log.Info("running")
}

func (p *processor) close() {
	const op = "close"
	log := slog.With("op", makeOp(p.opPrefix, op))

	log.Info("closing processor...")
	p.gp.Stop()
	log.Info("processor is closed")
}

// An orderEventCodec used for serde [schema.OrderPlacedV1]
type orderEventCodec struct {
	serde Serde
}

func newOrderEventCodec(s Serde) orderEventCodec {
	return orderEventCodec{s}
}

func (c orderEventCodec) Encode(v any) ([]byte, error) {
	const op = "orderEventCodec.Encode"
	if _, ok := v.(schema.OrderPlacedV1); !ok {
		return nil, opErr(ErrInvalidValueType, op)
	}
	return c.serde.Encode(v)
}

func (c orderEventCodec) Decode(data []byte) (any, error) {
	const op = "orderEventCodec.Decode"
	var s schema.OrderPlacedV1
	if err := c.serde.Decode(data, &s); err != nil {
		return nil, opErr(err, op)
	}
	return s, nil
}

// An orderHistoryCodec used for serde [schema.OrderHistoryV1] table values.
// Table values are plain avro without the registry header.
type orderHistoryCodec struct {
	avroSchema avro.Schema
}

func newOrderHistoryCodec() orderHistoryCodec {
	return orderHistoryCodec{schema.OrderHistoryV1Avro()}
}

func (c orderHistoryCodec) Encode(v any) ([]byte, error) {
	const op = "orderHistoryCodec.Encode"
	h, ok := v.(schema.OrderHistoryV1)
	if !ok {
		return nil, opErr(ErrInvalidValueType, op)
	}
	data, err := avro.Marshal(c.avroSchema, h)
	if err != nil {
		return nil, opErr(err, op)
	}
	return data, nil
}

func (c orderHistoryCodec) Decode(data []byte) (any, error) {
	const op = "orderHistoryCodec.Decode"
	var h schema.OrderHistoryV1
	if err := avro.Unmarshal(c.avroSchema, data, &h); err != nil {
		return nil, opErr(err, op)
	}
	return h, nil
}

// An OrderHistoryProcessor folds order events from the orders stream
// into a group table of per-user order histories, newest first.
type OrderHistoryProcessor struct {
	opPrefix string
	proc     processor
}

func NewOrderHistoryProcessor(
	seedBrokers []string,
	inputStream string,
	groupTable string,
	orderSerde Serde,
	sec Security,
	opts ...goka.ProcessorOption,
) (*OrderHistoryProcessor, error) {
	const op = "NewOrderHistoryProcessor"

	p := OrderHistoryProcessor{opPrefix: "OrderHistoryProcessor"}

	applySASLTLS(sec)

	gg := goka.DefineGroup(goka.Group(groupTable),
		goka.Input(
			goka.Stream(inputStream),
			newOrderEventCodec(orderSerde),
			p.processFn,
		),
		goka.Persist(newOrderHistoryCodec()),
	)

	opts = append([]goka.ProcessorOption{withNonlogProcOpt()}, opts...)
	gp, err := goka.NewProcessor(seedBrokers, gg, opts...)
	if err != nil {
		return nil, opErr(err, op)
	}

	p.proc = processor{
		opPrefix: p.opPrefix,
		gp:       gp,
	}
	return &p, nil
}

func (p *OrderHistoryProcessor) Run(ctx context.Context) {
	p.proc.run(ctx)
}

func (p *OrderHistoryProcessor) Close() {
	p.proc.close()
}

func (p *OrderHistoryProcessor) processFn(ctx goka.Context, msg any) {
	const op = "processFn"

	event, ok := msg.(schema.OrderPlacedV1)
	if !ok {
		return
	}
	log := slog.With(
		"op", makeOp(p.opPrefix, op), "orderID", event.OrderID,
	)

	history, _ := ctx.Value().(schema.OrderHistoryV1)
	history.Email = ctx.Key()
	history.Orders = appendSummary(history.Orders, summaryToSchemaV1(event))

	ctx.SetValue(history)
	log.Debug("order history updated", "orders", len(history.Orders))
}

// appendSummary inserts s keeping the list newest first. A redelivered
// order replaces its previous summary.
func appendSummary(
	orders []schema.OrderSummaryV1, s schema.OrderSummaryV1,
) []schema.OrderSummaryV1 {
	orders = slices.DeleteFunc(slices.Clone(orders), func(o schema.OrderSummaryV1) bool {
		return o.OrderID == s.OrderID
	})
	orders = append(orders, s)

	slices.SortStableFunc(orders, func(a, b schema.OrderSummaryV1) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	if len(orders) > maxHistoryLen {
		orders = orders[:maxHistoryLen]
	}
	return orders
}
