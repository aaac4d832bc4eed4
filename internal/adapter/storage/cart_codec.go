package storage

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/niksmo/storefront/internal/core/port"
	"github.com/spf13/cast"
)

var _ port.CartCodec = JSONCartCodec{}

// cartRecord is one element of the persisted item list. Fields are read
// loosely: records written by older clients may carry numeric ids,
// string prices or missing quantities.
type cartRecord struct {
	ID        any `json:"id"`
	Title     any `json:"title"`
	Price     any `json:"price"`
	Thumbnail any `json:"thumbnail"`
	Brand     any `json:"brand"`
	Quantity  any `json:"quantity"`
}

// JSONCartCodec stores a cart as a JSON array of
// {id, title, price, thumbnail, brand, quantity} objects.
type JSONCartCodec struct{}

func (JSONCartCodec) EncodeCart(c domain.Cart) (string, error) {
	const op = "JSONCartCodec.EncodeCart"

	records := make([]cartRecord, len(c.Items))
	for i, li := range c.Items {
		records[i] = cartRecord{
			ID:        li.ProductID,
			Title:     li.Title,
			Price:     json.Number(domain.CoercePrice(li.UnitPrice).String()),
			Thumbnail: li.ThumbnailURL,
			Brand:     li.Brand,
			Quantity:  li.Quantity,
		}
	}

	b, err := json.Marshal(records)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return string(b), nil
}

func (JSONCartCodec) DecodeCart(s string) (domain.Cart, error) {
	const op = "JSONCartCodec.DecodeCart"

	dec := json.NewDecoder(bytes.NewBufferString(s))
	dec.UseNumber()

	var records []cartRecord
	if err := dec.Decode(&records); err != nil {
		return domain.Cart{}, fmt.Errorf("%s: %w", op, err)
	}

	items := make([]domain.LineItem, 0, len(records))
	for _, r := range records {
		items = append(items, domain.LineItem{
			ProductID:    domain.CoerceID(r.ID),
			Title:        cast.ToString(r.Title),
			ThumbnailURL: cast.ToString(r.Thumbnail),
			Brand:        cast.ToString(r.Brand),
			UnitPrice:    domain.CoercePrice(r.Price),
			Quantity:     domain.CoerceQuantity(r.Quantity),
		})
	}
	return domain.Cart{Items: items}, nil
}
