package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/niksmo/storefront/internal/core/port"
)

var _ port.OrdersStorage = OrdersRepository{}

type OrdersRepository struct {
	sqldb sqldb
}

func NewOrdersRepository(sqldb sqldb) OrdersRepository {
	return OrdersRepository{sqldb}
}

// StoreOrder inserts the order and its line items in one transaction.
func (r OrdersRepository) StoreOrder(
	ctx context.Context, o domain.Order,
) (storeErr error) {
	const op = "OrdersRepository.StoreOrder"
	log := slog.With("op", op, "orderID", o.OrderID)

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	tx, err := r.sqldb.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: failed to begin tx: %w", op, err)
	}

	defer func() {
		if storeErr == nil {
			if err := tx.Commit(); err != nil {
				storeErr = fmt.Errorf("%s: failed to commit: %w", op, err)
			}
			return
		}

		if err := tx.Rollback(); err != nil {
			log.Error("failed to rollback tx", "err", err)
		}
	}()

	orderQuery := `
		INSERT INTO orders (
			order_id, email, status, subtotal, discount, shipping_fee, total,
			payment_method, direct_buy, full_name, contact_email, phone,
			country, city, state, zip_code, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17);
	`
	s := o.Shipping
	_, err = tx.ExecContext(ctx, orderQuery,
		o.OrderID, o.Email, o.Status,
		o.Subtotal, o.Discount, o.ShippingFee, o.Total,
		o.PaymentMethod, o.DirectBuy,
		s.FullName, s.Email, s.Phone, s.Country, s.City, s.State, s.ZipCode,
		o.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%s: %w", op, domain.ErrOrderIDTaken)
		}
		return fmt.Errorf("%s: failed to insert order: %w", op, err)
	}

	itemQuery := `
		INSERT INTO order_items (
			order_id, position, product_id, title, thumbnail_url, brand,
			unit_price, quantity
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
	`
	stmt, err := tx.PrepareContext(ctx, itemQuery)
	if err != nil {
		return fmt.Errorf("%s: failed to prepare stmt: %w", op, err)
	}
	defer func() {
		if err := stmt.Close(); err != nil {
			log.Error("failed to close prepared stmt", "err", err)
		}
	}()

	for i, li := range o.Items {
		_, err := stmt.ExecContext(ctx,
			o.OrderID, i, li.ProductID, li.Title, li.ThumbnailURL, li.Brand,
			li.UnitPrice, li.Quantity,
		)
		if err != nil {
			return fmt.Errorf("%s: failed to insert item: %w", op, err)
		}
	}

	return nil
}

func (r OrdersRepository) ReadOrder(
	ctx context.Context, orderID string,
) (domain.Order, error) {
	const op = "OrdersRepository.ReadOrder"

	if err := ctx.Err(); err != nil {
		return domain.Order{}, fmt.Errorf("%s: %w", op, err)
	}

	query := `
		SELECT
			order_id, email, status, subtotal, discount, shipping_fee, total,
			payment_method, direct_buy, full_name, contact_email, phone,
			country, city, state, zip_code, created_at
		FROM orders
		WHERE order_id = $1;`

	var o domain.Order
	s := &o.Shipping
	err := r.sqldb.QueryRowContext(ctx, query, orderID).Scan(
		&o.OrderID, &o.Email, &o.Status,
		&o.Subtotal, &o.Discount, &o.ShippingFee, &o.Total,
		&o.PaymentMethod, &o.DirectBuy,
		&s.FullName, &s.Email, &s.Phone, &s.Country, &s.City, &s.State, &s.ZipCode,
		&o.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, fmt.Errorf("%s: %w", op, domain.ErrOrderNotFound)
		}
		return domain.Order{}, fmt.Errorf("%s: %w", op, err)
	}

	items, err := r.readItems(ctx, orderID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("%s: %w", op, err)
	}
	o.Items = items
	return o, nil
}

// ListOrders returns the user's order summaries, newest first.
func (r OrdersRepository) ListOrders(
	ctx context.Context, email string,
) ([]domain.OrderSummary, error) {
	const op = "OrdersRepository.ListOrders"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	query := `
		SELECT
			o.order_id, o.status, o.total, o.created_at,
			COALESCE(SUM(i.quantity), 0)
		FROM orders o
		LEFT JOIN order_items i ON i.order_id = o.order_id
		WHERE o.email = $1
		GROUP BY o.order_id
		ORDER BY o.created_at DESC, o.order_id DESC;`

	rows, err := r.sqldb.QueryContext(ctx, query, email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	orders := []domain.OrderSummary{}
	for rows.Next() {
		var v domain.OrderSummary
		err := rows.Scan(&v.OrderID, &v.Status, &v.Total, &v.CreatedAt, &v.ItemCount)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		orders = append(orders, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return orders, nil
}

func (r OrdersRepository) readItems(
	ctx context.Context, orderID string,
) ([]domain.LineItem, error) {
	query := `
		SELECT product_id, title, thumbnail_url, brand, unit_price, quantity
		FROM order_items
		WHERE order_id = $1
		ORDER BY position ASC;`

	rows, err := r.sqldb.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.LineItem
	for rows.Next() {
		var li domain.LineItem
		err := rows.Scan(
			&li.ProductID, &li.Title, &li.ThumbnailURL, &li.Brand,
			&li.UnitPrice, &li.Quantity,
		)
		if err != nil {
			return nil, err
		}
		items = append(items, li)
	}
	return items, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
