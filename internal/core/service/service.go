package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/niksmo/storefront/internal/core/port"
)

var _ port.ProductsReader = (*Service)(nil)

const (
	defaultProductsLimit = 30
	maxProductsLimit     = 200
)

// A Service serves the product catalog and owns the background
// workers, such as the order history processor and view.
type Service struct {
	catalog port.ProductCatalog
	workers []port.BackgroundWorker
}

func New(
	catalog port.ProductCatalog,
	workers ...port.BackgroundWorker,
) Service {
	return Service{catalog, workers}
}

// Run runs every worker in its own goroutine.
func (s Service) Run(ctx context.Context) {
	for _, w := range s.workers {
		go w.Run(ctx)
	}
}

func (s Service) Close() {
	for _, w := range s.workers {
		w.Close()
	}
}

func (s Service) Products(
	ctx context.Context, q domain.ProductQuery,
) ([]domain.Product, error) {
	const op = "Service.Products"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	q.Search = strings.TrimSpace(q.Search)
	q.Category = strings.TrimSpace(q.Category)
	switch {
	case q.Limit <= 0:
		q.Limit = defaultProductsLimit
	case q.Limit > maxProductsLimit:
		q.Limit = maxProductsLimit
	}

	ps, err := s.catalog.ListProducts(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return ps, nil
}

func (s Service) Product(
	ctx context.Context, productID string,
) (domain.Product, error) {
	const op = "Service.Product"

	if err := ctx.Err(); err != nil {
		return domain.Product{}, fmt.Errorf("%s: %w", op, err)
	}

	p, err := s.catalog.ReadProduct(ctx, strings.TrimSpace(productID))
	if err != nil {
		return domain.Product{}, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

func (s Service) Categories(ctx context.Context) ([]domain.Category, error) {
	const op = "Service.Categories"

	cs, err := s.catalog.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return cs, nil
}
