package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prashanthkr7799/praahis-restaurant-sub004/internal/models"
)

// PostgresRepository is the canonical store. It is the sole enforcer of
// the one-active-session-per-table invariant: a partial unique index on
// table_sessions(table_id) WHERE status = 'active' resolves all
// concurrent claims, never client-side locking.
type PostgresRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewPostgresRepository(ctx context.Context, connString string, logger *slog.Logger) (*PostgresRepository, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres config: %w", err)
	}

	p, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("no response from postgres: %w", err)
	}

	return &PostgresRepository{pool: p, logger: logger}, nil
}

func (r *PostgresRepository) Close() {
	r.pool.Close()
}

// wrapTimeout converts a missed deadline into the retryable
// StorageTimeoutError contract. All other errors pass through.
func wrapTimeout(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &models.StorageTimeoutError{Op: op, Err: err}
	}
	return err
}

// isUniqueViolation reports whether a concurrent writer beat us to the
// partial unique index.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// isSerializationFailure covers serialization and deadlock aborts,
// both safe to retry from the top.
func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && (pgErr.Code == "40001" || pgErr.Code == "40P01")
}
