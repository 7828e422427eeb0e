package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/prashanthkr7799/praahis-restaurant-sub004/internal/models"
	"github.com/prashanthkr7799/praahis-restaurant-sub004/pkg/metrics"
)

// ViewStore supplies the canonical collections a dashboard mirrors.
type ViewStore interface {
	VisibleOrders(ctx context.Context, restaurantID string) ([]models.Order, error)
	Tables(ctx context.Context, restaurantID string) ([]models.Table, error)
}

// Subscription is one open push stream.
type Subscription interface {
	Events() <-chan models.ChangeEvent
	Close() error
}

// EventBus is the push-delivery collaborator. At-least-once,
// tenant-scoped, best-effort ordering, silent drops possible; the poll
// path exists because of exactly these properties.
type EventBus interface {
	Subscribe(restaurantID string, entityTypes []models.EntityType) (Subscription, error)
}

// Notifier receives fire-and-forget new-order announcements.
type Notifier interface {
	NewOrderArrived(orderNumber string)
}

// SynchronizerConfig tunes one dashboard connection.
type SynchronizerConfig struct {
	RestaurantID string
	PollInterval time.Duration
	FetchTimeout time.Duration
	// OnUpdate, if set, receives an immutable snapshot after every
	// successful apply from either path.
	OnUpdate func(models.ViewSnapshot)
}

// Synchronizer keeps one dashboard's view converged with the canonical
// store through two independent paths: optimistic push applies for
// latency and a periodic wholesale re-fetch for correctness. Push
// updates are never the sole source of truth; any divergence heals
// within one poll interval.
type Synchronizer struct {
	cfg      SynchronizerConfig
	store    ViewStore
	bus      EventBus
	stats    *StatsAggregator
	notifier Notifier
	logger   *slog.Logger

	// mu serializes every "replace local state" operation so a poll
	// replace and a push-triggered re-fetch can never interleave
	// partially.
	mu          sync.Mutex
	orders      map[string]models.Order
	tables      map[string]models.Table
	prevPayment map[string]models.PaymentStatus
	notified    map[string]struct{}
	dashStats   models.DashboardStats
	lastApplied time.Time
}

func NewSynchronizer(cfg SynchronizerConfig, store ViewStore, bus EventBus, stats *StatsAggregator, notifier Notifier, logger *slog.Logger) *Synchronizer {
	return &Synchronizer{
		cfg:         cfg,
		store:       store,
		bus:         bus,
		stats:       stats,
		notifier:    notifier,
		logger:      logger.With("restaurant_id", cfg.RestaurantID),
		orders:      make(map[string]models.Order),
		tables:      make(map[string]models.Table),
		prevPayment: make(map[string]models.PaymentStatus),
		notified:    make(map[string]struct{}),
	}
}

// Start brings the view up and launches both paths. One full fetch must
// complete before the push subscription opens, so deltas never apply to
// an undefined base. The returned stop function is idempotent and tears
// down the subscription and the poll loop on every exit path.
func (s *Synchronizer) Start(ctx context.Context) (stop func(), err error) {
	if err := s.refreshAll(ctx); err != nil {
		return nil, fmt.Errorf("initial fetch: %w", err)
	}

	sub, err := s.bus.Subscribe(s.cfg.RestaurantID, []models.EntityType{
		models.EntityOrder, models.EntitySession, models.EntityTable,
	})
	if err != nil {
		return nil, fmt.Errorf("push subscribe: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.pollLoop(runCtx)
	}()
	go func() {
		defer wg.Done()
		s.pushLoop(runCtx, sub)
	}()

	var once sync.Once
	stop = func() {
		once.Do(func() {
			cancel()
			_ = sub.Close()
			wg.Wait()
		})
	}
	return stop, nil
}

// Snapshot returns a copy of the current view, safe for concurrent use.
func (s *Synchronizer) Snapshot() models.ViewSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Synchronizer) snapshotLocked() models.ViewSnapshot {
	snap := models.ViewSnapshot{
		RestaurantID: s.cfg.RestaurantID,
		Orders:       make([]models.Order, 0, len(s.orders)),
		Tables:       make([]models.Table, 0, len(s.tables)),
		Stats:        s.dashStats,
		LastApplied:  s.lastApplied,
	}
	for _, o := range s.orders {
		snap.Orders = append(snap.Orders, o)
	}
	for _, t := range s.tables {
		snap.Tables = append(snap.Tables, t)
	}
	sort.Slice(snap.Orders, func(i, j int) bool { return snap.Orders[i].CreatedAt.Before(snap.Orders[j].CreatedAt) })
	sort.Slice(snap.Tables, func(i, j int) bool { return snap.Tables[i].Number < snap.Tables[j].Number })
	return snap
}

// --- poll path ---

func (s *Synchronizer) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.refreshAll(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				var timeout *models.StorageTimeoutError
				if errors.As(err, &timeout) || errors.Is(err, context.DeadlineExceeded) {
					// A slow fetch is skipped, never retried mid-cycle,
					// so it cannot cascade into overlapping polls.
					metrics.PollCycles.WithLabelValues("skipped_timeout").Inc()
					s.logger.Debug("Poll tick skipped after fetch timeout")
				} else {
					metrics.PollCycles.WithLabelValues("error").Inc()
					s.logger.Warn("Poll refresh failed, keeping last view", "error", err)
				}
				continue
			}
			metrics.PollCycles.WithLabelValues("replaced").Inc()
		}
	}
}

// refreshAll unconditionally re-fetches both collections and replaces
// local state wholesale.
func (s *Synchronizer) refreshAll(ctx context.Context) error {
	start := time.Now()
	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	orders, err := s.store.VisibleOrders(fetchCtx, s.cfg.RestaurantID)
	if err != nil {
		return err
	}
	tables, err := s.store.Tables(fetchCtx, s.cfg.RestaurantID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.replaceOrdersLocked(orders)
	s.replaceTablesLocked(tables)
	s.mu.Unlock()

	metrics.RefreshDuration.Observe(time.Since(start).Seconds())
	s.afterApply(ctx)
	return nil
}

func (s *Synchronizer) refreshOrders(ctx context.Context) {
	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	orders, err := s.store.VisibleOrders(fetchCtx, s.cfg.RestaurantID)
	if err != nil {
		s.logger.Debug("Corrective order re-fetch failed, next poll heals", "error", err)
		return
	}

	s.mu.Lock()
	s.replaceOrdersLocked(orders)
	s.mu.Unlock()
	s.afterApply(ctx)
}

func (s *Synchronizer) refreshTables(ctx context.Context) {
	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	tables, err := s.store.Tables(fetchCtx, s.cfg.RestaurantID)
	if err != nil {
		s.logger.Debug("Corrective table re-fetch failed, next poll heals", "error", err)
		return
	}

	s.mu.Lock()
	s.replaceTablesLocked(tables)
	s.mu.Unlock()
	s.afterApply(ctx)
}

func (s *Synchronizer) replaceOrdersLocked(orders []models.Order) {
	s.orders = make(map[string]models.Order, len(orders))
	for _, o := range orders {
		s.orders[o.ID] = o
		s.prevPayment[o.ID] = o.PaymentStatus
	}
}

func (s *Synchronizer) replaceTablesLocked(tables []models.Table) {
	s.tables = make(map[string]models.Table, len(tables))
	for _, t := range tables {
		s.tables[t.ID] = t
	}
}

// --- push path ---

func (s *Synchronizer) pushLoop(ctx context.Context, sub Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				s.logger.Warn("Push stream closed, poll path continues alone")
				return
			}
			s.handleEvent(ctx, ev)
		}
	}
}

func (s *Synchronizer) handleEvent(ctx context.Context, ev models.ChangeEvent) {
	switch ev.EntityType {
	case models.EntityOrder:
		s.applyOrderEvent(ctx, ev)
	case models.EntityTable, models.EntitySession:
		// Occupancy changes carry no useful delta for the view; the
		// table collection is simply re-fetched.
		metrics.PushEventsApplied.WithLabelValues(string(ev.EntityType), "update").Inc()
		s.refreshTables(ctx)
	default:
		s.logger.Debug("Ignoring change event for unknown entity", "entity_type", ev.EntityType)
	}
}

// applyOrderEvent applies the projector's action optimistically, then
// runs a corrective re-fetch of the order collection to repair any
// optimistic-merge error from duplicated or reordered deliveries.
func (s *Synchronizer) applyOrderEvent(ctx context.Context, ev models.ChangeEvent) {
	if ev.Operation == models.OpDelete {
		s.mu.Lock()
		delete(s.orders, ev.EntityID)
		delete(s.prevPayment, ev.EntityID)
		s.mu.Unlock()
		metrics.PushEventsApplied.WithLabelValues(string(models.EntityOrder), ActionRemove.String()).Inc()
		s.afterApply(ctx)
		s.refreshOrders(ctx)
		return
	}

	var order models.Order
	if len(ev.Payload) == 0 || json.Unmarshal(ev.Payload, &order) != nil || order.ID == "" {
		// Unusable snapshot: skip the optimistic step, re-fetch only.
		s.logger.Debug("Order event without usable payload, re-fetching", "entity_id", ev.EntityID)
		s.refreshOrders(ctx)
		return
	}

	s.mu.Lock()
	action := Project(order, s.prevPayment[order.ID])
	notify := false
	switch action {
	case ActionInsert:
		s.orders[order.ID] = order
		// Exactly one announcement per order id, no matter how many
		// times the same transition is delivered.
		if _, seen := s.notified[order.ID]; !seen {
			s.notified[order.ID] = struct{}{}
			notify = true
		}
	case ActionUpdate:
		s.orders[order.ID] = order
	case ActionRemove:
		delete(s.orders, order.ID)
	case ActionIgnore:
	}
	s.prevPayment[order.ID] = order.PaymentStatus
	s.mu.Unlock()

	metrics.PushEventsApplied.WithLabelValues(string(models.EntityOrder), action.String()).Inc()

	if notify && s.notifier != nil {
		s.notifier.NewOrderArrived(order.OrderNumber)
	}
	if action == ActionIgnore {
		return
	}

	s.afterApply(ctx)
	s.refreshOrders(ctx)
}

// afterApply recomputes the rollups and publishes a snapshot. Stats
// failures keep the previous rollups; the view itself stays current.
func (s *Synchronizer) afterApply(ctx context.Context) {
	snap := s.Snapshot()

	statsCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	stats, err := s.stats.Recompute(statsCtx, s.cfg.RestaurantID, snap.Orders, snap.Tables)
	cancel()

	s.mu.Lock()
	if err != nil {
		s.logger.Debug("Stats recompute failed, keeping previous rollups", "error", err)
	} else {
		s.dashStats = stats
	}
	s.lastApplied = time.Now().UTC()
	snap = s.snapshotLocked()
	s.mu.Unlock()

	if s.cfg.OnUpdate != nil {
		s.cfg.OnUpdate(snap)
	}
}
