package kafka

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/lovoo/goka"
	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/niksmo/storefront/pkg/schema"
	"github.com/shopspring/decimal"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/sasl/plain"
)

var (
	ErrTooFewOpts       = errors.New("too few options")
	ErrInvalidValueType = errors.New("invalid value type")
)

// Security holds optional TLS and SASL/PLAIN settings.
// The zero value connects in plain text.
type Security struct {
	TLSConfig *tls.Config
	User      string
	Pass      string
}

func (s Security) kgoOpts() []kgo.Opt {
	var opts []kgo.Opt
	if s.TLSConfig != nil {
		opts = append(opts, kgo.DialTLSConfig(s.TLSConfig))
	}
	if s.User != "" {
		opts = append(opts, kgo.SASL(plain.Auth{
			User: s.User,
			Pass: s.Pass,
		}.AsMechanism()))
	}
	return opts
}

// applySASLTLS replaces the global goka config, so it must be called
// before any processor or view is created.
func applySASLTLS(s Security) {
	cfg := goka.DefaultConfig()
	if s.TLSConfig != nil {
		cfg.Net.TLS.Enable = true
		cfg.Net.TLS.Config = s.TLSConfig
	}
	if s.User != "" {
		cfg.Net.SASL.Enable = true
		cfg.Net.SASL.User = s.User
		cfg.Net.SASL.Password = s.Pass
	}
	goka.ReplaceGlobalConfig(cfg)
}

type ProducerOpt func(*producerOpts) error

type producerOpts struct {
	cl      ProducerClient
	encoder Encoder
}

func ProducerClientOpt(
	ctx context.Context, seedBrokers []string, topic string, sec Security,
) ProducerOpt {
	return func(opts *producerOpts) error {
		kgoOpts := append([]kgo.Opt{
			kgo.SeedBrokers(seedBrokers...),
			kgo.DefaultProduceTopicAlways(),
			kgo.DefaultProduceTopic(topic),
			kgo.RequiredAcks(kgo.AllISRAcks()),
			kgo.AllowAutoTopicCreation(),
		}, sec.kgoOpts()...)

		cl, err := kgo.NewClient(kgoOpts...)
		if err != nil {
			return err
		}

		if err := cl.Ping(ctx); err != nil {
			cl.Close()
			return err
		}
		opts.cl = cl
		return nil
	}
}

func ProducerEncoderOpt(encoder Encoder) ProducerOpt {
	return func(opts *producerOpts) error {
		if encoder == nil {
			return errors.New("encoder is nil")
		}
		opts.encoder = encoder
		return nil
	}
}

type ProducerClient interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

type Encoder interface {
	Encode(v any) ([]byte, error)
}

type Decoder interface {
	Decode(b []byte, v any) error
}

type Serde interface {
	Encoder
	Decoder
}

func withNonlogProcOpt() goka.ProcessorOption {
	return goka.WithLogger(log.New(io.Discard, "", 0))
}

func makeOp(s ...string) string {
	return strings.Join(s, ".")
}

func opErr(err error, op ...string) error {
	return fmt.Errorf("%s: %w", makeOp(op...), err)
}

func orderToSchemaV1(v domain.Order) (s schema.OrderPlacedV1) {
	s.OrderID = v.OrderID
	s.Email = v.Email
	s.Status = v.Status
	s.Subtotal = v.Subtotal.String()
	s.Discount = v.Discount.String()
	s.ShippingFee = v.ShippingFee.String()
	s.Total = v.Total.String()
	s.PaymentMethod = v.PaymentMethod
	s.DirectBuy = v.DirectBuy
	s.CreatedAt = v.CreatedAt

	s.Shipping.FullName = v.Shipping.FullName
	s.Shipping.Email = v.Shipping.Email
	s.Shipping.Phone = v.Shipping.Phone
	s.Shipping.Country = v.Shipping.Country
	s.Shipping.City = v.Shipping.City
	s.Shipping.State = v.Shipping.State
	s.Shipping.ZipCode = v.Shipping.ZipCode

	s.Items = make([]schema.OrderItemV1, len(v.Items))
	for i, li := range v.Items {
		s.Items[i].ProductID = li.ProductID
		s.Items[i].Title = li.Title
		s.Items[i].ThumbnailURL = li.ThumbnailURL
		s.Items[i].Brand = li.Brand
		s.Items[i].UnitPrice = li.UnitPrice.String()
		s.Items[i].Quantity = li.Quantity
	}
	return
}

func summaryFromSchemaV1(s schema.OrderSummaryV1) domain.OrderSummary {
	return domain.OrderSummary{
		OrderID:   s.OrderID,
		Status:    s.Status,
		Total:     domain.CoercePrice(s.Total),
		ItemCount: s.ItemCount,
		CreatedAt: s.CreatedAt,
	}
}

func summaryToSchemaV1(e schema.OrderPlacedV1) schema.OrderSummaryV1 {
	var n int
	for _, it := range e.Items {
		n += domain.CoerceQuantity(it.Quantity)
	}

	total, err := decimal.NewFromString(e.Total)
	if err != nil {
		total = decimal.Zero
	}

	return schema.OrderSummaryV1{
		OrderID:   e.OrderID,
		Status:    e.Status,
		Total:     total.String(),
		ItemCount: n,
		CreatedAt: e.CreatedAt,
	}
}
