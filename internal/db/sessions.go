package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/prashanthkr7799/praahis-restaurant-sub004/internal/models"
)

const sessionColumns = `id, table_id, restaurant_id, status, created_at, ended_at, last_activity_at`

func scanSession(row pgx.Row) (models.TableSession, error) {
	var s models.TableSession
	err := row.Scan(&s.ID, &s.TableID, &s.RestaurantID, &s.Status, &s.CreatedAt, &s.EndedAt, &s.LastActivityAt)
	return s, err
}

// ClaimSession returns the table's active session, creating one
// atomically if absent. The second return value reports whether this
// call created it. Concurrent claims for the same table all resolve to
// the single row admitted by the partial unique index; a claim that
// loses the race and then finds no winner (the winner ended in between)
// surfaces models.ErrWriteConflict for the service-level retry.
func (r *PostgresRepository) ClaimSession(ctx context.Context, restaurantID, tableID string) (models.TableSession, bool, error) {
	existing, err := r.ActiveSessionForTable(ctx, restaurantID, tableID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return models.TableSession{}, false, wrapTimeout("session lookup", err)
	}

	sess, err := r.insertSession(ctx, restaurantID, tableID)
	if err == nil {
		return sess, true, nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return models.TableSession{}, false, wrapTimeout("session claim", err)
	}

	if isUniqueViolation(err) || isSerializationFailure(err) || errors.Is(err, models.ErrWriteConflict) {
		// Lost the insert race; the winner's row should be visible now.
		winner, lookupErr := r.ActiveSessionForTable(ctx, restaurantID, tableID)
		if lookupErr == nil {
			return winner, false, nil
		}
		if errors.Is(lookupErr, models.ErrNotFound) {
			return models.TableSession{}, false, models.ErrWriteConflict
		}
		return models.TableSession{}, false, wrapTimeout("session lookup after conflict", lookupErr)
	}

	return models.TableSession{}, false, fmt.Errorf("session claim failed: %w", err)
}

func (r *PostgresRepository) insertSession(ctx context.Context, restaurantID, tableID string) (models.TableSession, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return models.TableSession{}, err
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	id := uuid.NewString()

	row := tx.QueryRow(ctx, `
		INSERT INTO table_sessions (id, table_id, restaurant_id, status, created_at, last_activity_at)
		VALUES ($1, $2, $3, 'active', $4, $4)
		ON CONFLICT (table_id) WHERE status = 'active' DO NOTHING
		RETURNING `+sessionColumns,
		id, tableID, restaurantID, now)

	sess, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		// The conflict target swallowed the insert: a concurrent claim won.
		return models.TableSession{}, models.ErrWriteConflict
	}
	if err != nil {
		return models.TableSession{}, err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE tables
		SET status = 'occupied', active_session_id = $1, updated_at = $2
		WHERE id = $3 AND restaurant_id = $4`,
		sess.ID, now, tableID, restaurantID)
	if err != nil {
		return models.TableSession{}, err
	}
	if tag.RowsAffected() == 0 {
		return models.TableSession{}, fmt.Errorf("table %s: %w", tableID, models.ErrNotFound)
	}

	if err := tx.Commit(ctx); err != nil {
		return models.TableSession{}, err
	}
	return sess, nil
}

// ActiveSessionForTable returns the single active session of a table,
// or models.ErrNotFound.
func (r *PostgresRepository) ActiveSessionForTable(ctx context.Context, restaurantID, tableID string) (models.TableSession, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM table_sessions
		WHERE table_id = $1 AND restaurant_id = $2 AND status = 'active'`,
		tableID, restaurantID)

	sess, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.TableSession{}, models.ErrNotFound
	}
	if err != nil {
		return models.TableSession{}, wrapTimeout("active session lookup", err)
	}
	return sess, nil
}

func (r *PostgresRepository) SessionByID(ctx context.Context, restaurantID, sessionID string) (models.TableSession, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM table_sessions
		WHERE id = $1 AND restaurant_id = $2`,
		sessionID, restaurantID)

	sess, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.TableSession{}, models.ErrNotFound
	}
	if err != nil {
		return models.TableSession{}, wrapTimeout("session lookup", err)
	}
	return sess, nil
}

// EndSession marks an active session ended. It deliberately does not
// touch table status; releasing the table is a separate decision.
func (r *PostgresRepository) EndSession(ctx context.Context, restaurantID, sessionID string, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE table_sessions
		SET status = 'ended', ended_at = $1, last_activity_at = $1
		WHERE id = $2 AND restaurant_id = $3 AND status = 'active'`,
		at, sessionID, restaurantID)
	if err != nil {
		return wrapTimeout("end session", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("active session %s: %w", sessionID, models.ErrNotFound)
	}
	return nil
}

// FreeTable flips the table back to available and detaches the session
// pointer.
func (r *PostgresRepository) FreeTable(ctx context.Context, restaurantID, tableID string, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE tables
		SET status = 'available', active_session_id = NULL, updated_at = $1
		WHERE id = $2 AND restaurant_id = $3`,
		at, tableID, restaurantID)
	if err != nil {
		return wrapTimeout("free table", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("table %s: %w", tableID, models.ErrNotFound)
	}
	return nil
}

// TouchSession bumps last_activity_at for idle-expiry policies driven
// by an external timer.
func (r *PostgresRepository) TouchSession(ctx context.Context, restaurantID, sessionID string, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE table_sessions
		SET last_activity_at = $1
		WHERE id = $2 AND restaurant_id = $3 AND status = 'active'`,
		at, sessionID, restaurantID)
	if err != nil {
		return wrapTimeout("touch session", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("active session %s: %w", sessionID, models.ErrNotFound)
	}
	return nil
}
