package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/prashanthkr7799/praahis-restaurant-sub004/internal/models"
)

const orderColumns = `id, session_id, table_id, restaurant_id, order_number,
	items, subtotal::text, tax::text, total::text, order_status, payment_status,
	created_at, updated_at`

// scanOrder reads one order row, normalizing the loosely-typed items
// column into the validated shape every downstream consumer expects.
// Amounts travel as text to keep NUMERIC precision intact.
func scanOrder(row pgx.Row) (models.Order, error) {
	var (
		o                  models.Order
		rawItems           []byte
		subtotal, tax, tot string
	)
	if err := row.Scan(&o.ID, &o.SessionID, &o.TableID, &o.RestaurantID, &o.OrderNumber,
		&rawItems, &subtotal, &tax, &tot, &o.OrderStatus, &o.PaymentStatus,
		&o.CreatedAt, &o.UpdatedAt); err != nil {
		return models.Order{}, err
	}

	items, err := models.ParseOrderItems(rawItems)
	if err != nil {
		return models.Order{}, fmt.Errorf("order %s: %w", o.ID, err)
	}
	o.Items = items

	if o.Subtotal, err = decimal.NewFromString(subtotal); err != nil {
		return models.Order{}, fmt.Errorf("order %s subtotal: %w", o.ID, err)
	}
	if o.Tax, err = decimal.NewFromString(tax); err != nil {
		return models.Order{}, fmt.Errorf("order %s tax: %w", o.ID, err)
	}
	if o.Total, err = decimal.NewFromString(tot); err != nil {
		return models.Order{}, fmt.Errorf("order %s total: %w", o.ID, err)
	}
	return o, nil
}

func (r *PostgresRepository) collectOrders(rows pgx.Rows) ([]models.Order, error) {
	defer rows.Close()
	var orders []models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// VisibleOrders returns the tenant's dashboard feed: paid orders only.
func (r *PostgresRepository) VisibleOrders(ctx context.Context, restaurantID string) ([]models.Order, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE restaurant_id = $1 AND payment_status = 'paid'
		ORDER BY created_at`,
		restaurantID)
	if err != nil {
		return nil, wrapTimeout("visible orders", err)
	}
	orders, err := r.collectOrders(rows)
	return orders, wrapTimeout("visible orders", err)
}

func (r *PostgresRepository) OrderByID(ctx context.Context, restaurantID, orderID string) (models.Order, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = $1 AND restaurant_id = $2`,
		orderID, restaurantID)

	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Order{}, models.ErrNotFound
	}
	if err != nil {
		return models.Order{}, wrapTimeout("order lookup", err)
	}
	return o, nil
}

// UnpaidServedOrders lists the orders blocking a force release: served
// but still pending or failed payment. Orders not yet served are
// intentionally outside this guard.
func (r *PostgresRepository) UnpaidServedOrders(ctx context.Context, restaurantID, sessionID string) ([]models.Order, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE restaurant_id = $1 AND session_id = $2
		  AND order_status = 'served'
		  AND payment_status IN ('pending', 'failed')
		ORDER BY created_at`,
		restaurantID, sessionID)
	if err != nil {
		return nil, wrapTimeout("unpaid served orders", err)
	}
	orders, err := r.collectOrders(rows)
	return orders, wrapTimeout("unpaid served orders", err)
}

// OrdersBetween returns all orders created in [from, to) regardless of
// payment state; the stats aggregator filters by payment itself.
func (r *PostgresRepository) OrdersBetween(ctx context.Context, restaurantID string, from, to time.Time) ([]models.Order, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE restaurant_id = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at`,
		restaurantID, from, to)
	if err != nil {
		return nil, wrapTimeout("orders between", err)
	}
	orders, err := r.collectOrders(rows)
	return orders, wrapTimeout("orders between", err)
}

// ComplaintCountSince counts complaints recorded since the given time.
func (r *PostgresRepository) ComplaintCountSince(ctx context.Context, restaurantID string, since time.Time) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM complaints
		WHERE restaurant_id = $1 AND created_at >= $2`,
		restaurantID, since).Scan(&n)
	if err != nil {
		return 0, wrapTimeout("complaint count", err)
	}
	return n, nil
}
