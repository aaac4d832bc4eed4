package httphandler

import (
	"time"

	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/shopspring/decimal"
)

// Request bodies keep numeric fields loosely typed: ids and prices come
// from catalog data where they may be numbers or strings.
type (
	ProductRef struct {
		ID        any    `json:"id"`
		Title     string `json:"title"`
		Price     any    `json:"price"`
		Thumbnail string `json:"thumbnail"`
		Brand     string `json:"brand"`
	}

	AddItemRequest struct {
		ProductRef
		Quantity any `json:"quantity"`
	}

	SetQuantityRequest struct {
		Quantity any `json:"quantity"`
	}

	Shipping struct {
		FullName string `json:"fullName"`
		Email    string `json:"email"`
		Phone    string `json:"phone"`
		Country  string `json:"country"`
		City     string `json:"city"`
		State    string `json:"state"`
		ZipCode  string `json:"zipCode"`
	}

	CheckoutRequest struct {
		Email         string      `json:"email"`
		Shipping      Shipping    `json:"shipping"`
		Agreement     bool        `json:"agreement"`
		PaymentMethod string      `json:"paymentMethod"`
		DirectBuy     *ProductRef `json:"directBuy,omitempty"`
	}
)

type (
	LineItem struct {
		ID        string          `json:"id"`
		Title     string          `json:"title"`
		Price     decimal.Decimal `json:"price"`
		Thumbnail string          `json:"thumbnail"`
		Brand     string          `json:"brand"`
		Quantity  int             `json:"quantity"`
		Amount    decimal.Decimal `json:"amount"`
	}

	Cart struct {
		Items         []LineItem      `json:"items"`
		Subtotal      decimal.Decimal `json:"subtotal"`
		Discount      decimal.Decimal `json:"discount"`
		Shipping      decimal.Decimal `json:"shipping"`
		Total         decimal.Decimal `json:"total"`
		ItemCount     int             `json:"itemCount"`
		DistinctCount int             `json:"distinctCount"`
	}

	Order struct {
		OrderID       string          `json:"orderId"`
		Date          string          `json:"date"`
		Status        string          `json:"status"`
		Email         string          `json:"email"`
		Items         []LineItem      `json:"items"`
		Subtotal      decimal.Decimal `json:"subtotal"`
		Discount      decimal.Decimal `json:"discount"`
		ShippingFee   decimal.Decimal `json:"shippingFee"`
		Total         decimal.Decimal `json:"total"`
		Shipping      Shipping        `json:"shipping"`
		Address       string          `json:"address"`
		PaymentMethod string          `json:"paymentMethod"`
		DirectBuy     bool            `json:"directBuy"`
		CreatedAt     time.Time       `json:"createdAt"`
	}

	OrderSummary struct {
		OrderID   string          `json:"orderId"`
		Status    string          `json:"status"`
		Total     decimal.Decimal `json:"total"`
		ItemCount int             `json:"itemCount"`
		CreatedAt time.Time       `json:"createdAt"`
	}

	Product struct {
		ID                 string          `json:"id"`
		Title              string          `json:"title"`
		Description        string          `json:"description"`
		Category           string          `json:"category"`
		Brand              string          `json:"brand"`
		Price              decimal.Decimal `json:"price"`
		DiscountPercentage float64         `json:"discountPercentage"`
		Rating             float64         `json:"rating"`
		Stock              int             `json:"stock"`
		Tags               []string        `json:"tags"`
		Thumbnail          string          `json:"thumbnail"`
		Images             []string        `json:"images"`
	}

	Category struct {
		Slug string `json:"slug"`
		Name string `json:"name"`
	}

	Error struct {
		Error   string   `json:"error"`
		Details []string `json:"details,omitempty"`
	}
)

func (p ProductRef) toDomain() domain.ProductSnapshot {
	return domain.ProductSnapshot{
		ProductID:    domain.CoerceID(p.ID),
		Title:        p.Title,
		ThumbnailURL: p.Thumbnail,
		Brand:        p.Brand,
		UnitPrice:    domain.CoercePrice(p.Price),
	}
}

func (s Shipping) toDomain() domain.ShippingDetails {
	return domain.ShippingDetails{
		FullName: s.FullName,
		Email:    s.Email,
		Phone:    s.Phone,
		Country:  s.Country,
		City:     s.City,
		State:    s.State,
		ZipCode:  s.ZipCode,
	}
}

func fromDomainShipping(d domain.ShippingDetails) Shipping {
	return Shipping{
		FullName: d.FullName,
		Email:    d.Email,
		Phone:    d.Phone,
		Country:  d.Country,
		City:     d.City,
		State:    d.State,
		ZipCode:  d.ZipCode,
	}
}

func fromDomainItems(items []domain.LineItem) []LineItem {
	res := make([]LineItem, 0, len(items))
	for _, li := range items {
		res = append(res, LineItem{
			ID:        li.ProductID,
			Title:     li.Title,
			Price:     li.UnitPrice,
			Thumbnail: li.ThumbnailURL,
			Brand:     li.Brand,
			Quantity:  li.Quantity,
			Amount:    li.Amount(),
		})
	}
	return res
}

func fromDomainCart(s domain.CartSnapshot) Cart {
	return Cart{
		Items:         fromDomainItems(s.Items),
		Subtotal:      s.Totals.Subtotal,
		Discount:      s.Totals.Discount,
		Shipping:      s.Totals.ShippingFee,
		Total:         s.Totals.Total,
		ItemCount:     s.Totals.ItemCount,
		DistinctCount: s.Totals.DistinctCount,
	}
}

func fromDomainOrder(o domain.Order) Order {
	return Order{
		OrderID:       o.OrderID,
		Date:          o.Date(),
		Status:        o.Status,
		Email:         o.Email,
		Items:         fromDomainItems(o.Items),
		Subtotal:      o.Subtotal,
		Discount:      o.Discount,
		ShippingFee:   o.ShippingFee,
		Total:         o.Total,
		Shipping:      fromDomainShipping(o.Shipping),
		Address:       o.Shipping.Address(),
		PaymentMethod: o.PaymentMethod,
		DirectBuy:     o.DirectBuy,
		CreatedAt:     o.CreatedAt,
	}
}

func fromDomainSummaries(os []domain.OrderSummary) []OrderSummary {
	res := make([]OrderSummary, 0, len(os))
	for _, o := range os {
		res = append(res, OrderSummary{
			OrderID:   o.OrderID,
			Status:    o.Status,
			Total:     o.Total,
			ItemCount: o.ItemCount,
			CreatedAt: o.CreatedAt,
		})
	}
	return res
}

func fromDomainProduct(p domain.Product) Product {
	return Product{
		ID:                 p.ProductID,
		Title:              p.Title,
		Description:        p.Description,
		Category:           p.Category,
		Brand:              p.Brand,
		Price:              p.Price,
		DiscountPercentage: p.DiscountPercentage,
		Rating:             p.Rating,
		Stock:              p.Stock,
		Tags:               p.Tags,
		Thumbnail:          p.Thumbnail,
		Images:             p.Images,
	}
}
