package schema

import (
	"time"

	"github.com/hamba/avro/v2"
)

const OrderPlacedSchemaTextV1 = `{
	"type": "record",
	"namespace": "storefront.orders",
	"name": "order_placed",
	"fields": [
		{"name": "order_id", "type": "string"},
		{"name": "email", "type": "string"},
		{"name": "status", "type": "string"},
		{"name": "items", "type": {
			"type": "array",
			"items": {
				"type": "record",
				"name": "order_item",
				"fields": [
					{"name": "product_id", "type": "string"},
					{"name": "title", "type": "string"},
					{"name": "thumbnail_url", "type": "string"},
					{"name": "brand", "type": "string"},
					{"name": "unit_price", "type": "string"},
					{"name": "quantity", "type": "int"}
				]
			}
		}},
		{"name": "subtotal", "type": "string"},
		{"name": "discount", "type": "string"},
		{"name": "shipping_fee", "type": "string"},
		{"name": "total", "type": "string"},
		{"name": "payment_method", "type": "string"},
		{"name": "direct_buy", "type": "boolean"},
		{"name": "shipping", "type": {
			"type": "record",
			"name": "shipping_details",
			"fields": [
				{"name": "full_name", "type": "string"},
				{"name": "email", "type": "string"},
				{"name": "phone", "type": "string"},
				{"name": "country", "type": "string"},
				{"name": "city", "type": "string"},
				{"name": "state", "type": "string"},
				{"name": "zip_code", "type": "string"}
			]
		}},
		{"name": "created_at", "type": {"type": "long", "logicalType": "timestamp-millis"}}
	]
}`

// OrderHistorySchemaTextV1 describes the per-user order history kept
// in the group table. Money amounts are decimal strings.
const OrderHistorySchemaTextV1 = `{
	"type": "record",
	"namespace": "storefront.orders",
	"name": "order_history",
	"fields": [
		{"name": "email", "type": "string"},
		{"name": "orders", "type": {
			"type": "array",
			"items": {
				"type": "record",
				"name": "order_summary",
				"fields": [
					{"name": "order_id", "type": "string"},
					{"name": "status", "type": "string"},
					{"name": "total", "type": "string"},
					{"name": "item_count", "type": "int"},
					{"name": "created_at", "type": {"type": "long", "logicalType": "timestamp-millis"}}
				]
			}
		}}
	]
}`

type (
	OrderPlacedV1 struct {
		OrderID       string            `avro:"order_id"`
		Email         string            `avro:"email"`
		Status        string            `avro:"status"`
		Items         []OrderItemV1     `avro:"items"`
		Subtotal      string            `avro:"subtotal"`
		Discount      string            `avro:"discount"`
		ShippingFee   string            `avro:"shipping_fee"`
		Total         string            `avro:"total"`
		PaymentMethod string            `avro:"payment_method"`
		DirectBuy     bool              `avro:"direct_buy"`
		Shipping      ShippingDetailsV1 `avro:"shipping"`
		CreatedAt     time.Time         `avro:"created_at"`
	}

	OrderItemV1 struct {
		ProductID    string `avro:"product_id"`
		Title        string `avro:"title"`
		ThumbnailURL string `avro:"thumbnail_url"`
		Brand        string `avro:"brand"`
		UnitPrice    string `avro:"unit_price"`
		Quantity     int    `avro:"quantity"`
	}

	ShippingDetailsV1 struct {
		FullName string `avro:"full_name"`
		Email    string `avro:"email"`
		Phone    string `avro:"phone"`
		Country  string `avro:"country"`
		City     string `avro:"city"`
		State    string `avro:"state"`
		ZipCode  string `avro:"zip_code"`
	}

	OrderHistoryV1 struct {
		Email  string           `avro:"email"`
		Orders []OrderSummaryV1 `avro:"orders"`
	}

	OrderSummaryV1 struct {
		OrderID   string    `avro:"order_id"`
		Status    string    `avro:"status"`
		Total     string    `avro:"total"`
		ItemCount int       `avro:"item_count"`
		CreatedAt time.Time `avro:"created_at"`
	}
)

// OrderPlacedV1Avro panics if the schema text is invalid.
func OrderPlacedV1Avro() avro.Schema {
	return avro.MustParse(OrderPlacedSchemaTextV1)
}

func OrderHistoryV1Avro() avro.Schema {
	return avro.MustParse(OrderHistorySchemaTextV1)
}
