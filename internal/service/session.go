package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/prashanthkr7799/praahis-restaurant-sub004/internal/models"
	"github.com/prashanthkr7799/praahis-restaurant-sub004/pkg/metrics"
)

// SessionStore is the transactional contract the session manager
// requires from the canonical store. The store, not this service,
// enforces the one-active-session-per-table invariant.
type SessionStore interface {
	ClaimSession(ctx context.Context, restaurantID, tableID string) (models.TableSession, bool, error)
	ActiveSessionForTable(ctx context.Context, restaurantID, tableID string) (models.TableSession, error)
	SessionByID(ctx context.Context, restaurantID, sessionID string) (models.TableSession, error)
	EndSession(ctx context.Context, restaurantID, sessionID string, at time.Time) error
	FreeTable(ctx context.Context, restaurantID, tableID string, at time.Time) error
	TouchSession(ctx context.Context, restaurantID, sessionID string, at time.Time) error
	UnpaidServedOrders(ctx context.Context, restaurantID, sessionID string) ([]models.Order, error)
}

// EventPublisher pushes change events to the bus after a canonical
// mutation succeeds.
type EventPublisher interface {
	PublishEvent(ctx context.Context, ev models.ChangeEvent) error
}

// SessionManager owns table occupancy and the session lifecycle.
type SessionManager struct {
	store     SessionStore
	events    EventPublisher
	logger    *slog.Logger
	opTimeout time.Duration
	clock     func() time.Time
}

func NewSessionManager(store SessionStore, events EventPublisher, opTimeout time.Duration, logger *slog.Logger) *SessionManager {
	return &SessionManager{
		store:     store,
		events:    events,
		logger:    logger,
		opTimeout: opTimeout,
		clock:     time.Now,
	}
}

// GetOrCreateActiveSession returns the table's active session, creating
// one atomically if none exists. Idempotent: repeated calls without an
// intervening end return the same session. A transient write conflict
// is retried exactly once; a second loss surfaces SessionConflictError.
func (m *SessionManager) GetOrCreateActiveSession(ctx context.Context, restaurantID, tableID string) (models.TableSession, error) {
	const attempts = 2

	for i := 0; i < attempts; i++ {
		opCtx, cancel := context.WithTimeout(ctx, m.opTimeout)
		sess, created, err := m.store.ClaimSession(opCtx, restaurantID, tableID)
		cancel()

		if err == nil {
			if created {
				metrics.SessionClaims.WithLabelValues("created").Inc()
				m.logger.Info("Table session created", "restaurant_id", restaurantID, "table_id", tableID, "session_id", sess.ID)
				m.emit(models.EntitySession, models.OpInsert, restaurantID, sess.ID, sess)
				m.emit(models.EntityTable, models.OpUpdate, restaurantID, tableID, nil)
			} else {
				metrics.SessionClaims.WithLabelValues("existing").Inc()
			}
			return sess, nil
		}

		var timeout *models.StorageTimeoutError
		if errors.As(err, &timeout) {
			metrics.SessionClaims.WithLabelValues("timeout").Inc()
			return models.TableSession{}, err
		}

		if errors.Is(err, models.ErrWriteConflict) {
			m.logger.Warn("Session claim hit a write conflict, retrying once", "table_id", tableID, "attempt", i+1)
			continue
		}

		metrics.SessionClaims.WithLabelValues("error").Inc()
		return models.TableSession{}, fmt.Errorf("session claim for table %s: %w", tableID, err)
	}

	metrics.SessionClaims.WithLabelValues("conflict").Inc()
	return models.TableSession{}, &models.SessionConflictError{TableID: tableID}
}

// EndSession marks the session ended. Table status is left alone: the
// caller confirms no blocking orders before freeing the table.
func (m *SessionManager) EndSession(ctx context.Context, restaurantID, sessionID string) error {
	opCtx, cancel := context.WithTimeout(ctx, m.opTimeout)
	defer cancel()

	now := m.clock().UTC()
	if err := m.store.EndSession(opCtx, restaurantID, sessionID, now); err != nil {
		return wrapOp("end session", err)
	}

	m.logger.Info("Table session ended", "restaurant_id", restaurantID, "session_id", sessionID)
	m.emit(models.EntitySession, models.OpUpdate, restaurantID, sessionID, nil)
	return nil
}

// ForceReleaseSession ends the session and frees its table, unless any
// served order under it is still unpaid. The guard is a policy error,
// never retried, and names every blocking order with the total due.
func (m *SessionManager) ForceReleaseSession(ctx context.Context, restaurantID, sessionID string) error {
	opCtx, cancel := context.WithTimeout(ctx, m.opTimeout)
	defer cancel()

	sess, err := m.store.SessionByID(opCtx, restaurantID, sessionID)
	if err != nil {
		return wrapOp("session lookup", err)
	}

	return m.forceRelease(opCtx, sess)
}

// ForceReleaseTable resolves the table's active session and releases it.
func (m *SessionManager) ForceReleaseTable(ctx context.Context, restaurantID, tableID string) error {
	opCtx, cancel := context.WithTimeout(ctx, m.opTimeout)
	defer cancel()

	sess, err := m.store.ActiveSessionForTable(opCtx, restaurantID, tableID)
	if err != nil {
		return wrapOp("active session lookup", err)
	}

	return m.forceRelease(opCtx, sess)
}

func (m *SessionManager) forceRelease(ctx context.Context, sess models.TableSession) error {
	blocking, err := m.store.UnpaidServedOrders(ctx, sess.RestaurantID, sess.ID)
	if err != nil {
		return wrapOp("unpaid order scan", err)
	}

	if len(blocking) > 0 {
		numbers := make([]string, 0, len(blocking))
		due := decimal.Zero
		for _, o := range blocking {
			numbers = append(numbers, o.OrderNumber)
			due = due.Add(o.Total)
		}
		metrics.ReleasesBlocked.Inc()
		return &models.UnpaidOrdersError{SessionID: sess.ID, OrderNumbers: numbers, TotalDue: due}
	}

	now := m.clock().UTC()
	if sess.Status == models.SessionActive {
		if err := m.store.EndSession(ctx, sess.RestaurantID, sess.ID, now); err != nil {
			return wrapOp("end session", err)
		}
	}
	if err := m.store.FreeTable(ctx, sess.RestaurantID, sess.TableID, now); err != nil {
		return wrapOp("free table", err)
	}

	m.logger.Info("Table force-released", "restaurant_id", sess.RestaurantID, "table_id", sess.TableID, "session_id", sess.ID)
	m.emit(models.EntitySession, models.OpUpdate, sess.RestaurantID, sess.ID, nil)
	m.emit(models.EntityTable, models.OpUpdate, sess.RestaurantID, sess.TableID, nil)
	return nil
}

// RecordActivity bumps last_activity_at for the idle-expiry timer that
// runs outside this service.
func (m *SessionManager) RecordActivity(ctx context.Context, restaurantID, sessionID string) error {
	opCtx, cancel := context.WithTimeout(ctx, m.opTimeout)
	defer cancel()

	if err := m.store.TouchSession(opCtx, restaurantID, sessionID, m.clock().UTC()); err != nil {
		return wrapOp("record activity", err)
	}
	return nil
}

// emit publishes a change event best-effort. A publish failure never
// rolls back the store write; dashboards converge on the next poll.
func (m *SessionManager) emit(entityType models.EntityType, op models.Operation, restaurantID, entityID string, payload any) {
	ev := models.ChangeEvent{
		EventID:      uuid.NewString(),
		EntityType:   entityType,
		Operation:    op,
		RestaurantID: restaurantID,
		EntityID:     entityID,
		EmittedAt:    m.clock().UTC(),
	}
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			m.logger.Error("Failed to serialize event payload", "entity_id", entityID, "error", err)
		} else {
			ev.Payload = body
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := m.events.PublishEvent(ctx, ev); err != nil {
		m.logger.Warn("Change event publish failed, poll path will compensate",
			"entity_type", entityType, "entity_id", entityID, "error", err)
	}
}

func wrapOp(op string, err error) error {
	var timeout *models.StorageTimeoutError
	if errors.As(err, &timeout) || errors.Is(err, models.ErrNotFound) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}
