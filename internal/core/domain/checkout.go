package domain

// A CheckoutRequest is everything a checkout form submits.
//
// DirectBuy, when set, is purchased alone with quantity 1 and the cart
// is left untouched.
type CheckoutRequest struct {
	SessionID     string
	Email         string
	Shipping      ShippingDetails
	Agreement     bool
	PaymentMethod string
	DirectBuy     *ProductSnapshot
}
