package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrValidation    = errors.New("validation failed")
	ErrEmptyCart     = errors.New("cart is empty")
	ErrOrderNotFound = errors.New("order not found")
	ErrOrderIDTaken  = errors.New("order id is taken")
)

const (
	OrderStatusProcessing = "Processing"
	DefaultPaymentMethod  = "visa"
	PhoneDigits           = 10
)

type ShippingDetails struct {
	FullName string
	Email    string
	Phone    string
	Country  string
	City     string
	State    string
	ZipCode  string
}

// Address joins city, state and zip code the way receipts print it.
func (d ShippingDetails) Address() string {
	return fmt.Sprintf("%s, %s, %s", d.City, d.State, d.ZipCode)
}

// Normalize trims fields and keeps at most PhoneDigits digits of the phone.
func (d ShippingDetails) Normalize() ShippingDetails {
	d.FullName = strings.TrimSpace(d.FullName)
	d.Email = strings.TrimSpace(d.Email)
	d.Country = strings.TrimSpace(d.Country)
	d.City = strings.TrimSpace(d.City)
	d.State = strings.TrimSpace(d.State)
	d.ZipCode = strings.TrimSpace(d.ZipCode)

	var b strings.Builder
	for _, r := range d.Phone {
		if b.Len() == PhoneDigits {
			break
		}
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	d.Phone = b.String()
	return d
}

// Validate returns every problem found, each wrapping ErrValidation.
func (d ShippingDetails) Validate() error {
	var errs []error
	if d.FullName == "" {
		errs = append(errs, fmt.Errorf("%w: full name is required", ErrValidation))
	}
	if d.Email == "" {
		errs = append(errs, fmt.Errorf("%w: email is required", ErrValidation))
	}
	if d.Phone == "" {
		errs = append(errs, fmt.Errorf("%w: phone is required", ErrValidation))
	} else if len(d.Phone) != PhoneDigits {
		errs = append(errs, fmt.Errorf(
			"%w: phone number must be exactly %d digits",
			ErrValidation, PhoneDigits,
		))
	}
	return errors.Join(errs...)
}

type Order struct {
	OrderID       string
	Email         string
	Status        string
	Items         []LineItem
	Subtotal      decimal.Decimal
	Discount      decimal.Decimal
	ShippingFee   decimal.Decimal
	Total         decimal.Decimal
	Shipping      ShippingDetails
	PaymentMethod string
	DirectBuy     bool
	CreatedAt     time.Time
}

// Date is the order day as YYYY-MM-DD.
func (o Order) Date() string {
	return o.CreatedAt.UTC().Format(time.DateOnly)
}

// An OrderSummary is a compact order history row.
type OrderSummary struct {
	OrderID   string
	Status    string
	Total     decimal.Decimal
	ItemCount int
	CreatedAt time.Time
}

func (o Order) Summary() OrderSummary {
	var n int
	for _, li := range o.Items {
		n += CoerceQuantity(li.Quantity)
	}
	return OrderSummary{
		OrderID:   o.OrderID,
		Status:    o.Status,
		Total:     o.Total,
		ItemCount: n,
		CreatedAt: o.CreatedAt,
	}
}
