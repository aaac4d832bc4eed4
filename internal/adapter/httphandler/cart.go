package httphandler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/niksmo/storefront/internal/core/port"
)

// GET v1/cart (200 OK)
// POST v1/cart/items JSON {id, title, price, thumbnail, brand, quantity} (200 OK, 400 Bad request)
// PUT v1/cart/items/{id} JSON {quantity} (200 OK, 400 Bad request)
// DELETE v1/cart/items/{id} (200 OK)
// DELETE v1/cart (200 OK)
// GET v1/cart/events text/event-stream of cart snapshots

type CartHandler struct {
	carts port.CartProvider
}

func RegisterCart(mux *http.ServeMux, carts port.CartProvider) {
	h := CartHandler{carts}
	mux.Handle("GET /v1/cart", withTimeout(h.GetCart))
	mux.Handle("POST /v1/cart/items", withTimeout(h.PostItem))
	mux.Handle("PUT /v1/cart/items/{id}", withTimeout(h.PutItem))
	mux.Handle("DELETE /v1/cart/items/{id}", withTimeout(h.DeleteItem))
	mux.Handle("DELETE /v1/cart", withTimeout(h.DeleteCart))
	mux.HandleFunc("GET /v1/cart/events", h.GetEvents)
}

func (h CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	const op = "CartHandler.GetCart"

	cart, ok := h.cart(w, r, op)
	if !ok {
		return
	}
	writeJSON(w, op, http.StatusOK, fromDomainCart(cart.Snapshot()))
}

func (h CartHandler) PostItem(w http.ResponseWriter, r *http.Request) {
	const op = "CartHandler.PostItem"

	var req AddItemRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, op, http.StatusBadRequest, "invalid JSON data")
		slog.Warn("failed to parse JSON", "op", op, "err", err)
		return
	}

	product := req.toDomain()
	if product.ProductID == "" {
		writeError(w, op, http.StatusBadRequest, "product id is required")
		return
	}

	cart, ok := h.cart(w, r, op)
	if !ok {
		return
	}

	if err := cart.Add(r.Context(), product, domain.CoerceQuantity(req.Quantity)); err != nil {
		writeDomainError(w, op, err)
		return
	}
	writeJSON(w, op, http.StatusOK, fromDomainCart(cart.Snapshot()))
}

func (h CartHandler) PutItem(w http.ResponseWriter, r *http.Request) {
	const op = "CartHandler.PutItem"

	var req SetQuantityRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, op, http.StatusBadRequest, "invalid JSON data")
		slog.Warn("failed to parse JSON", "op", op, "err", err)
		return
	}

	quantity, ok := domain.ParseQuantity(req.Quantity)
	if !ok {
		writeError(w, op, http.StatusBadRequest, "quantity must be a number")
		return
	}

	cart, ok := h.cart(w, r, op)
	if !ok {
		return
	}

	if err := cart.SetQuantity(r.Context(), r.PathValue("id"), quantity); err != nil {
		writeDomainError(w, op, err)
		return
	}
	writeJSON(w, op, http.StatusOK, fromDomainCart(cart.Snapshot()))
}

func (h CartHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	const op = "CartHandler.DeleteItem"

	cart, ok := h.cart(w, r, op)
	if !ok {
		return
	}

	if err := cart.Remove(r.Context(), r.PathValue("id")); err != nil {
		writeDomainError(w, op, err)
		return
	}
	writeJSON(w, op, http.StatusOK, fromDomainCart(cart.Snapshot()))
}

func (h CartHandler) DeleteCart(w http.ResponseWriter, r *http.Request) {
	const op = "CartHandler.DeleteCart"

	cart, ok := h.cart(w, r, op)
	if !ok {
		return
	}

	if err := cart.Clear(r.Context()); err != nil {
		writeDomainError(w, op, err)
		return
	}
	writeJSON(w, op, http.StatusOK, fromDomainCart(cart.Snapshot()))
}

// GetEvents streams the current cart and then every committed change
// until the client goes away. A slow client only sees the latest state.
func (h CartHandler) GetEvents(w http.ResponseWriter, r *http.Request) {
	const op = "CartHandler.GetEvents"
	log := slog.With("op", op)

	cart, ok := h.cart(w, r, op)
	if !ok {
		return
	}

	rc := http.NewResponseController(w)
	updates := make(chan domain.CartSnapshot, 1)
	unsubscribe := cart.Subscribe(func(s domain.CartSnapshot) {
		select {
		case <-updates:
		default:
		}
		updates <- s
	})
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	send := func(s domain.CartSnapshot) bool {
		data, err := json.Marshal(fromDomainCart(s))
		if err != nil {
			log.Error("failed to encode cart", "err", err)
			return false
		}
		if _, err := fmt.Fprintf(w, "event: cart\ndata: %s\n\n", data); err != nil {
			return false
		}
		return rc.Flush() == nil
	}

	if !send(cart.Snapshot()) {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case s := <-updates:
			if !send(s) {
				return
			}
		}
	}
}

func (h CartHandler) cart(
	w http.ResponseWriter, r *http.Request, op string,
) (port.Cart, bool) {
	cart, err := h.carts.Cart(r.Context(), SessionID(r.Context()))
	if err != nil {
		writeDomainError(w, op, err)
		return nil, false
	}
	return cart, true
}
