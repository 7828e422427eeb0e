package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/prashanthkr7799/praahis-restaurant-sub004/internal/models"
)

// memoryStore is a single in-memory canonical store backing every store
// interface at once, so a whole dinner service can run end to end
// without Postgres.
type memoryStore struct {
	mu       sync.Mutex
	nextSess int
	tables   map[string]models.Table
	sessions map[string]models.TableSession
	orders   map[string]models.Order
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		tables:   make(map[string]models.Table),
		sessions: make(map[string]models.TableSession),
		orders:   make(map[string]models.Order),
	}
}

func (m *memoryStore) ClaimSession(ctx context.Context, restaurantID, tableID string) (models.TableSession, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.TableID == tableID && s.Status == models.SessionActive {
			return s, false, nil
		}
	}
	m.nextSess++
	now := time.Now().UTC()
	sess := models.TableSession{
		ID:             fmt.Sprintf("sess-%d", m.nextSess),
		TableID:        tableID,
		RestaurantID:   restaurantID,
		Status:         models.SessionActive,
		CreatedAt:      now,
		LastActivityAt: now,
	}
	m.sessions[sess.ID] = sess

	tbl := m.tables[tableID]
	tbl.Status = models.TableOccupied
	tbl.ActiveSessionID = &sess.ID
	m.tables[tableID] = tbl
	return sess, true, nil
}

func (m *memoryStore) ActiveSessionForTable(ctx context.Context, restaurantID, tableID string) (models.TableSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.TableID == tableID && s.Status == models.SessionActive {
			return s, nil
		}
	}
	return models.TableSession{}, models.ErrNotFound
}

func (m *memoryStore) SessionByID(ctx context.Context, restaurantID, sessionID string) (models.TableSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return models.TableSession{}, models.ErrNotFound
	}
	return s, nil
}

func (m *memoryStore) EndSession(ctx context.Context, restaurantID, sessionID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok || s.Status != models.SessionActive {
		return models.ErrNotFound
	}
	s.Status = models.SessionEnded
	s.EndedAt = &at
	m.sessions[sessionID] = s
	return nil
}

func (m *memoryStore) FreeTable(ctx context.Context, restaurantID, tableID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tbl := m.tables[tableID]
	tbl.Status = models.TableAvailable
	tbl.ActiveSessionID = nil
	tbl.UpdatedAt = at
	m.tables[tableID] = tbl
	return nil
}

func (m *memoryStore) TouchSession(ctx context.Context, restaurantID, sessionID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return models.ErrNotFound
	}
	s.LastActivityAt = at
	m.sessions[sessionID] = s
	return nil
}

func (m *memoryStore) UnpaidServedOrders(ctx context.Context, restaurantID, sessionID string) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Order
	for _, o := range m.orders {
		if o.SessionID != nil && *o.SessionID == sessionID &&
			o.OrderStatus == models.OrderServed && o.PaymentStatus.Unsettled() {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memoryStore) VisibleOrders(ctx context.Context, restaurantID string) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Order
	for _, o := range m.orders {
		if o.PaymentStatus == models.PaymentPaid {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memoryStore) Tables(ctx context.Context, restaurantID string) ([]models.Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Table
	for _, t := range m.tables {
		out = append(out, t)
	}
	return out, nil
}

func (m *memoryStore) OrdersBetween(ctx context.Context, restaurantID string, from, to time.Time) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Order
	for _, o := range m.orders {
		if !o.CreatedAt.Before(from) && o.CreatedAt.Before(to) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memoryStore) ComplaintCountSince(ctx context.Context, restaurantID string, since time.Time) (int, error) {
	return 0, nil
}

func (m *memoryStore) putOrder(o models.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.ID] = o
}

func (m *memoryStore) table(id string) models.Table {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tables[id]
}

// loopbackBus is both ends of the push path: mutations published here
// fan out to every open dashboard subscription.
type loopbackBus struct {
	mu   sync.Mutex
	subs []*fakeSubscription
}

func (b *loopbackBus) PublishEvent(ctx context.Context, ev models.ChangeEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs {
		select {
		case sub.ch <- ev:
		default:
		}
	}
	return nil
}

func (b *loopbackBus) Subscribe(restaurantID string, entityTypes []models.EntityType) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub := &fakeSubscription{ch: make(chan models.ChangeEvent, 64)}
	b.subs = append(b.subs, sub)
	return sub, nil
}

// TestFullDinnerService walks one table through an entire visit: seat,
// order, partially pay, watch the dashboard converge over push, hit the
// unpaid-order release guard, settle, and release.
func TestFullDinnerService(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	bus := &loopbackBus{}
	notifier := newCountingNotifier()

	store.tables["t7"] = models.Table{
		ID: "t7", RestaurantID: "r1", Number: 7, Capacity: 4,
		Status: models.TableAvailable,
	}

	manager := NewSessionManager(store, bus, time.Second, testLogger())
	syncer := NewSynchronizer(SynchronizerConfig{
		RestaurantID: "r1",
		PollInterval: time.Hour, // push path only; convergence must not need the poll
		FetchTimeout: time.Second,
	}, store, bus, NewStatsAggregator(store), notifier, testLogger())

	stop, err := syncer.Start(ctx)
	if err != nil {
		t.Fatalf("start synchronizer: %v", err)
	}
	defer stop()

	// Seat the party. A second claim for the same table must come back
	// with the same session.
	sess, err := manager.GetOrCreateActiveSession(ctx, "r1", "t7")
	if err != nil {
		t.Fatalf("claim session: %v", err)
	}
	again, err := manager.GetOrCreateActiveSession(ctx, "r1", "t7")
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if again.ID != sess.ID {
		t.Fatalf("second claim created a new session: %s vs %s", again.ID, sess.ID)
	}
	if tbl := store.table("t7"); !tbl.Occupied() {
		t.Fatalf("table not occupied after claim: %+v", tbl)
	}

	waitFor(t, 2*time.Second, "occupancy to reach the dashboard", func() bool {
		snap := syncer.Snapshot()
		return len(snap.Tables) == 1 && snap.Tables[0].Occupied()
	})

	now := time.Now().UTC()
	orderA := models.Order{
		ID: "oa", SessionID: &sess.ID, TableID: "t7", RestaurantID: "r1",
		OrderNumber: "ORD-A", Total: decimal.NewFromInt(400),
		OrderStatus: models.OrderServed, PaymentStatus: models.PaymentPaid,
		CreatedAt: now,
	}
	orderB := models.Order{
		ID: "ob", SessionID: &sess.ID, TableID: "t7", RestaurantID: "r1",
		OrderNumber: "ORD-B", Total: decimal.NewFromInt(250),
		OrderStatus: models.OrderServed, PaymentStatus: models.PaymentPending,
		CreatedAt: now,
	}
	store.putOrder(orderA)
	store.putOrder(orderB)
	if err := bus.PublishEvent(ctx, orderEvent(t, models.OpInsert, orderA)); err != nil {
		t.Fatalf("publish order A: %v", err)
	}
	if err := bus.PublishEvent(ctx, orderEvent(t, models.OpInsert, orderB)); err != nil {
		t.Fatalf("publish order B: %v", err)
	}

	// Only the paid order surfaces; the pending one stays invisible.
	waitFor(t, 2*time.Second, "paid order on the dashboard", func() bool {
		snap := syncer.Snapshot()
		return len(snap.Orders) == 1 && snap.Orders[0].OrderNumber == "ORD-A"
	})
	waitFor(t, 2*time.Second, "ORD-A announcement", func() bool {
		return notifier.count("ORD-A") == 1
	})
	if notifier.count("ORD-B") != 0 {
		t.Fatal("unpaid order must not be announced")
	}

	// The release guard names the blocking order and its amount.
	err = manager.ForceReleaseTable(ctx, "r1", "t7")
	var unpaid *models.UnpaidOrdersError
	if !errors.As(err, &unpaid) {
		t.Fatalf("expected UnpaidOrdersError, got %v", err)
	}
	if len(unpaid.OrderNumbers) != 1 || unpaid.OrderNumbers[0] != "ORD-B" {
		t.Fatalf("blocking orders = %v, want [ORD-B]", unpaid.OrderNumbers)
	}
	if !unpaid.TotalDue.Equal(decimal.NewFromInt(250)) {
		t.Fatalf("total due = %s, want 250", unpaid.TotalDue)
	}
	if tbl := store.table("t7"); !tbl.Occupied() {
		t.Fatal("blocked release must leave the table occupied")
	}

	// Settle the bill: order B flips to paid and joins the view.
	orderB.PaymentStatus = models.PaymentPaid
	store.putOrder(orderB)
	if err := bus.PublishEvent(ctx, orderEvent(t, models.OpUpdate, orderB)); err != nil {
		t.Fatalf("publish payment: %v", err)
	}

	waitFor(t, 2*time.Second, "settled order on the dashboard", func() bool {
		snap := syncer.Snapshot()
		return len(snap.Orders) == 2 && notifier.count("ORD-B") == 1
	})
	waitFor(t, 2*time.Second, "revenue rollup", func() bool {
		return syncer.Snapshot().Stats.TodayRevenue.Equal(decimal.NewFromInt(650))
	})

	// Now the release goes through and the table turns over.
	if err := manager.ForceReleaseTable(ctx, "r1", "t7"); err != nil {
		t.Fatalf("release after settlement: %v", err)
	}
	if tbl := store.table("t7"); tbl.Status != models.TableAvailable || tbl.ActiveSessionID != nil {
		t.Fatalf("table not freed: %+v", tbl)
	}
	if _, err := store.ActiveSessionForTable(ctx, "r1", "t7"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected no active session after release, got %v", err)
	}
	ended, err := store.SessionByID(ctx, "r1", sess.ID)
	if err != nil {
		t.Fatalf("session lookup: %v", err)
	}
	if ended.Status != models.SessionEnded || ended.EndedAt == nil {
		t.Fatalf("session not ended: %+v", ended)
	}

	waitFor(t, 2*time.Second, "turnover to reach the dashboard", func() bool {
		snap := syncer.Snapshot()
		return len(snap.Tables) == 1 && snap.Tables[0].Status == models.TableAvailable
	})
}
