package httphandler

import (
	"log/slog"
	"net/http"

	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/niksmo/storefront/internal/core/port"
)

// POST v1/checkout JSON (201 Created, 400 Bad request, 503 Service unavailable)
// GET v1/orders?email= (200 OK, 400 Bad request)
// GET v1/orders/{id} (200 OK, 404 Not found)

type CheckoutHandler struct {
	placer port.OrderPlacer
	orders port.OrdersReader
}

func RegisterCheckout(
	mux *http.ServeMux, placer port.OrderPlacer, orders port.OrdersReader,
) {
	h := CheckoutHandler{placer, orders}
	mux.Handle("POST /v1/checkout", withTimeout(h.PostCheckout))
	mux.Handle("GET /v1/orders", withTimeout(h.GetOrders))
	mux.Handle("GET /v1/orders/{id}", withTimeout(h.GetOrder))
}

func (h CheckoutHandler) PostCheckout(w http.ResponseWriter, r *http.Request) {
	const op = "CheckoutHandler.PostCheckout"

	var req CheckoutRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, op, http.StatusBadRequest, "invalid JSON data")
		slog.Warn("failed to parse JSON", "op", op, "err", err)
		return
	}

	order, err := h.placer.PlaceOrder(r.Context(), h.toDomain(r, req))
	if err != nil {
		writeDomainError(w, op, err)
		return
	}
	writeJSON(w, op, http.StatusCreated, fromDomainOrder(order))
}

func (h CheckoutHandler) GetOrders(w http.ResponseWriter, r *http.Request) {
	const op = "CheckoutHandler.GetOrders"

	orders, err := h.orders.Orders(r.Context(), r.URL.Query().Get("email"))
	if err != nil {
		writeDomainError(w, op, err)
		return
	}
	writeJSON(w, op, http.StatusOK, fromDomainSummaries(orders))
}

func (h CheckoutHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	const op = "CheckoutHandler.GetOrder"

	order, err := h.orders.Order(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, op, err)
		return
	}
	writeJSON(w, op, http.StatusOK, fromDomainOrder(order))
}

func (h CheckoutHandler) toDomain(
	r *http.Request, req CheckoutRequest,
) domain.CheckoutRequest {
	dr := domain.CheckoutRequest{
		SessionID:     SessionID(r.Context()),
		Email:         req.Email,
		Shipping:      req.Shipping.toDomain(),
		Agreement:     req.Agreement,
		PaymentMethod: req.PaymentMethod,
	}
	if req.DirectBuy != nil {
		p := req.DirectBuy.toDomain()
		dr.DirectBuy = &p
	}
	return dr
}
