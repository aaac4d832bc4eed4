package domain

import "github.com/shopspring/decimal"

// A LineItem is one distinct product held in the cart.
type LineItem struct {
	ProductID    string
	Title        string
	ThumbnailURL string
	Brand        string
	UnitPrice    decimal.Decimal
	Quantity     int
}

// Amount returns UnitPrice * Quantity, reading bad values as 0 and 1.
func (li LineItem) Amount() decimal.Decimal {
	price := CoercePrice(li.UnitPrice)
	qty := CoerceQuantity(li.Quantity)
	return price.Mul(decimal.NewFromInt(int64(qty)))
}

// A Cart is an ordered list of line items with unique product ids.
//
// Transitions never modify the receiver, they return a new Cart.
type Cart struct {
	Items []LineItem
}

func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

func (c Cart) Find(id string) (LineItem, bool) {
	i := c.indexOf(id)
	if i < 0 {
		return LineItem{}, false
	}
	return c.Items[i], true
}

// Add returns a cart with quantity units of s added.
//
// An existing line item is incremented, otherwise a new one is appended.
// A quantity below 1 counts as 1. limit <= 0 means no upper bound.
func (c Cart) Add(s ProductSnapshot, quantity, limit int) Cart {
	if s.ProductID == "" {
		return c.clone()
	}
	quantity = CoerceQuantity(quantity)

	next := c.clone()
	if i := next.indexOf(s.ProductID); i >= 0 {
		next.Items[i].Quantity = clampQuantity(
			next.Items[i].Quantity+quantity, limit,
		)
		return next
	}

	next.Items = append(next.Items, LineItem{
		ProductID:    s.ProductID,
		Title:        s.Title,
		ThumbnailURL: s.ThumbnailURL,
		Brand:        s.Brand,
		UnitPrice:    CoercePrice(s.UnitPrice),
		Quantity:     clampQuantity(quantity, limit),
	})
	return next
}

// Remove returns a cart without the line item id. Unknown ids are ignored.
func (c Cart) Remove(id string) Cart {
	next := Cart{Items: make([]LineItem, 0, len(c.Items))}
	for _, li := range c.Items {
		if li.ProductID != id {
			next.Items = append(next.Items, li)
		}
	}
	return next
}

// SetQuantity returns a cart where the line item id has the given quantity.
//
// A quantity below 1 removes the item. Unknown ids are ignored.
func (c Cart) SetQuantity(id string, quantity, limit int) Cart {
	if quantity < 1 {
		return c.Remove(id)
	}

	next := c.clone()
	if i := next.indexOf(id); i >= 0 {
		next.Items[i].Quantity = clampQuantity(quantity, limit)
	}
	return next
}

// Subtract returns a cart with the quantities of ordered taken out. Lines
// left with less than one unit are removed, lines not in ordered are kept.
func (c Cart) Subtract(ordered []LineItem) Cart {
	taken := make(map[string]int, len(ordered))
	for _, li := range ordered {
		taken[li.ProductID] += CoerceQuantity(li.Quantity)
	}

	next := Cart{Items: make([]LineItem, 0, len(c.Items))}
	for _, li := range c.Items {
		li.Quantity -= taken[li.ProductID]
		if li.Quantity >= 1 {
			next.Items = append(next.Items, li)
		}
	}
	if len(next.Items) == 0 {
		return Cart{}
	}
	return next
}

func (c Cart) Clear() Cart {
	return Cart{}
}

// Normalize repairs a cart read from untrusted storage: items without an id
// are dropped, duplicate ids are merged, prices and quantities are coerced.
func (c Cart) Normalize(limit int) Cart {
	var next Cart
	for _, li := range c.Items {
		if li.ProductID == "" {
			continue
		}
		li.UnitPrice = CoercePrice(li.UnitPrice)
		li.Quantity = clampQuantity(CoerceQuantity(li.Quantity), limit)

		if i := next.indexOf(li.ProductID); i >= 0 {
			next.Items[i].Quantity = clampQuantity(
				next.Items[i].Quantity+li.Quantity, limit,
			)
			continue
		}
		next.Items = append(next.Items, li)
	}
	return next
}

// Subtotal is the sum of unit price times quantity over all items.
func (c Cart) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, li := range c.Items {
		sum = sum.Add(li.Amount())
	}
	return sum
}

// ItemCount is the sum of quantities, shown on badges.
func (c Cart) ItemCount() int {
	var n int
	for _, li := range c.Items {
		n += CoerceQuantity(li.Quantity)
	}
	return n
}

// DistinctCount is the number of distinct products.
func (c Cart) DistinctCount() int {
	return len(c.Items)
}

func (c Cart) indexOf(id string) int {
	for i := range c.Items {
		if c.Items[i].ProductID == id {
			return i
		}
	}
	return -1
}

func (c Cart) clone() Cart {
	if c.Items == nil {
		return Cart{}
	}
	items := make([]LineItem, len(c.Items))
	copy(items, c.Items)
	return Cart{Items: items}
}

func clampQuantity(q, limit int) int {
	if q < 1 {
		return 1
	}
	if limit > 0 && q > limit {
		return limit
	}
	return q
}

// A CartSnapshot is what display surfaces read: items plus derived totals.
type CartSnapshot struct {
	Items  []LineItem
	Totals Totals
}
