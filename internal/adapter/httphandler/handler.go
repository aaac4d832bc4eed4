package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/niksmo/storefront/internal/core/port"
)

// requestTimeout bounds every non-streaming handler.
const requestTimeout = 5 * time.Second

const maxBodySize = 1 << 20

// GET v1/products?q=&category=&limit= (200 OK, 400 Bad request)
// GET v1/products/{id} (200 OK, 404 Not found)
// GET v1/categories (200 OK)

type ProductsHandler struct {
	products port.ProductsReader
}

func RegisterProducts(mux *http.ServeMux, products port.ProductsReader) {
	h := ProductsHandler{products}
	mux.Handle("GET /v1/products", withTimeout(h.GetProducts))
	mux.Handle("GET /v1/products/{id}", withTimeout(h.GetProduct))
	mux.Handle("GET /v1/categories", withTimeout(h.GetCategories))
}

func (h ProductsHandler) GetProducts(w http.ResponseWriter, r *http.Request) {
	const op = "ProductsHandler.GetProducts"

	query := r.URL.Query()
	q := domain.ProductQuery{
		Search:   query.Get("q"),
		Category: query.Get("category"),
	}
	if v := query.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			writeError(w, op, http.StatusBadRequest, "invalid limit")
			return
		}
		q.Limit = limit
	}

	ps, err := h.products.Products(r.Context(), q)
	if err != nil {
		writeDomainError(w, op, err)
		return
	}

	res := make([]Product, 0, len(ps))
	for _, p := range ps {
		res = append(res, fromDomainProduct(p))
	}
	writeJSON(w, op, http.StatusOK, res)
}

func (h ProductsHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	const op = "ProductsHandler.GetProduct"

	p, err := h.products.Product(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, op, err)
		return
	}
	writeJSON(w, op, http.StatusOK, fromDomainProduct(p))
}

func (h ProductsHandler) GetCategories(w http.ResponseWriter, r *http.Request) {
	const op = "ProductsHandler.GetCategories"

	cs, err := h.products.Categories(r.Context())
	if err != nil {
		writeDomainError(w, op, err)
		return
	}

	res := make([]Category, 0, len(cs))
	for _, c := range cs {
		res = append(res, Category{Slug: c.Slug, Name: c.Name})
	}
	writeJSON(w, op, http.StatusOK, res)
}

// timeoutBody matches what writeError produces for a 503.
const timeoutBody = `{"error":"service unavailable"}` + "\n"

func withTimeout(hf http.HandlerFunc) http.Handler {
	return timeoutHandler(hf, requestTimeout)
}

// timeoutHandler answers 503 with a JSON error body once d has passed.
// The handler's own headers replace the preset content type.
func timeoutHandler(h http.Handler, d time.Duration) http.Handler {
	th := http.TimeoutHandler(h, d, timeoutBody)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		th.ServeHTTP(w, r)
	})
}

// decodeBody reads a JSON body keeping numbers as [json.Number].
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	dec.UseNumber()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, op string, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response body", "op", op, "err", err)
	}
}

func writeError(w http.ResponseWriter, op string, status int, msg string) {
	writeJSON(w, op, status, Error{Error: msg})
}

// writeDomainError maps core errors to statuses. Anything unknown is
// a dependency failure and answers 503.
func writeDomainError(w http.ResponseWriter, op string, err error) {
	log := slog.With("op", op)

	switch {
	case errors.Is(err, domain.ErrValidation):
		log.Debug("rejected", "err", err)
		writeJSON(w, op, http.StatusBadRequest, Error{
			Error:   domain.ErrValidation.Error(),
			Details: validationDetails(err),
		})
	case errors.Is(err, domain.ErrEmptyCart):
		writeError(w, op, http.StatusBadRequest, domain.ErrEmptyCart.Error())
	case errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, domain.ErrOrderNotFound):
		writeError(w, op, http.StatusNotFound, "not found")
	case errors.Is(err, context.Canceled):
		log.Debug("request canceled", "err", err)
	default:
		log.Error("request failed", "err", err)
		writeError(w, op, http.StatusServiceUnavailable, "service unavailable")
	}
}

// validationDetails collects the messages of errors directly wrapping
// [domain.ErrValidation], without the op prefixes around them.
func validationDetails(err error) []string {
	switch e := err.(type) {
	case interface{ Unwrap() []error }:
		var details []string
		for _, child := range e.Unwrap() {
			details = append(details, validationDetails(child)...)
		}
		return details
	case interface{ Unwrap() error }:
		inner := e.Unwrap()
		if inner == domain.ErrValidation {
			return []string{err.Error()}
		}
		return validationDetails(inner)
	}
	return nil
}
