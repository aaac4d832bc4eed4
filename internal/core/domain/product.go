package domain

import (
	"errors"

	"github.com/shopspring/decimal"
)

var ErrProductNotFound = errors.New("product not found")

type (
	// A Product is a catalog record as served by the upstream product API.
	Product struct {
		ProductID          string
		Title              string
		Description        string
		Category           string
		Brand              string
		Price              decimal.Decimal
		DiscountPercentage float64
		Rating             float64
		Stock              int
		Tags               []string
		Thumbnail          string
		Images             []string
	}

	// A ProductSnapshot is the part of a product copied into the cart
	// at add-time. It is never re-fetched.
	ProductSnapshot struct {
		ProductID    string
		Title        string
		ThumbnailURL string
		Brand        string
		UnitPrice    decimal.Decimal
	}

	ProductQuery struct {
		Search   string
		Category string
		Limit    int
	}

	Category struct {
		Slug string
		Name string
	}
)

func (p Product) Snapshot() ProductSnapshot {
	return ProductSnapshot{
		ProductID:    p.ProductID,
		Title:        p.Title,
		ThumbnailURL: p.Thumbnail,
		Brand:        p.Brand,
		UnitPrice:    CoercePrice(p.Price),
	}
}
