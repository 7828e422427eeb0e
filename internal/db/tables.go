package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/prashanthkr7799/praahis-restaurant-sub004/internal/models"
)

const tableColumns = `id, restaurant_id, number, capacity, status, active_session_id, created_at, updated_at`

func scanTable(row pgx.Row) (models.Table, error) {
	var t models.Table
	err := row.Scan(&t.ID, &t.RestaurantID, &t.Number, &t.Capacity, &t.Status,
		&t.ActiveSessionID, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

// Tables returns the tenant's full table collection.
func (r *PostgresRepository) Tables(ctx context.Context, restaurantID string) ([]models.Table, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+tableColumns+`
		FROM tables
		WHERE restaurant_id = $1
		ORDER BY number`,
		restaurantID)
	if err != nil {
		return nil, wrapTimeout("tables", err)
	}
	defer rows.Close()

	var tables []models.Table
	for rows.Next() {
		t, err := scanTable(rows)
		if err != nil {
			return nil, wrapTimeout("tables", err)
		}
		tables = append(tables, t)
	}
	return tables, wrapTimeout("tables", rows.Err())
}

func (r *PostgresRepository) TableByID(ctx context.Context, restaurantID, tableID string) (models.Table, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+tableColumns+`
		FROM tables
		WHERE id = $1 AND restaurant_id = $2`,
		tableID, restaurantID)

	t, err := scanTable(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Table{}, models.ErrNotFound
	}
	if err != nil {
		return models.Table{}, wrapTimeout("table lookup", err)
	}
	return t, nil
}
