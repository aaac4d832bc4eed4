package domain

import "github.com/shopspring/decimal"

const DefaultMaxQuantity = 10

var (
	DefaultDiscountRate      = decimal.RequireFromString("0.01")
	DefaultShippingThreshold = decimal.NewFromInt(1000)
	DefaultShippingFee       = decimal.NewFromInt(40)
)

// A Pricing holds the policy constants that turn a cart into a payable total.
type Pricing struct {
	DiscountRate      decimal.Decimal
	ShippingThreshold decimal.Decimal
	ShippingFee       decimal.Decimal

	// MaxQuantity bounds a single line item. Zero disables the bound.
	MaxQuantity int
}

func DefaultPricing() Pricing {
	return Pricing{
		DiscountRate:      DefaultDiscountRate,
		ShippingThreshold: DefaultShippingThreshold,
		ShippingFee:       DefaultShippingFee,
		MaxQuantity:       DefaultMaxQuantity,
	}
}

// Totals are the values derived from a cart, shared by every surface.
type Totals struct {
	Subtotal      decimal.Decimal
	Discount      decimal.Decimal
	ShippingFee   decimal.Decimal
	Total         decimal.Decimal
	ItemCount     int
	DistinctCount int
}

// Discount is exactly subtotal * DiscountRate. Rounding is left to display.
func (p Pricing) Discount(subtotal decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(p.DiscountRate)
}

// Shipping is free strictly above the threshold.
func (p Pricing) Shipping(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.GreaterThan(p.ShippingThreshold) {
		return decimal.Zero
	}
	return p.ShippingFee
}

// Total is subtotal - discount + shipping, never below zero.
func (p Pricing) Total(
	subtotal, discount, shipping decimal.Decimal,
) decimal.Decimal {
	total := subtotal.Sub(discount).Add(shipping)
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}

// Totals derives all totals for c. The formulas hold for an empty cart
// too: its subtotal is 0 so it carries the shipping fee.
func (p Pricing) Totals(c Cart) Totals {
	subtotal := c.Subtotal()
	discount := p.Discount(subtotal)
	shipping := p.Shipping(subtotal)

	return Totals{
		Subtotal:      subtotal,
		Discount:      discount,
		ShippingFee:   shipping,
		Total:         p.Total(subtotal, discount, shipping),
		ItemCount:     c.ItemCount(),
		DistinctCount: c.DistinctCount(),
	}
}
