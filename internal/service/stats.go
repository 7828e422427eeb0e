package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/prashanthkr7799/praahis-restaurant-sub004/internal/models"
)

// StatsStore supplies the time-scoped queries the aggregator needs
// beyond the live collections: yesterday's orders sit outside the
// working set a dashboard holds, and today's set must include unpaid
// orders the gated view never contains.
type StatsStore interface {
	OrdersBetween(ctx context.Context, restaurantID string, from, to time.Time) ([]models.Order, error)
	ComplaintCountSince(ctx context.Context, restaurantID string, since time.Time) (int, error)
}

// StatsAggregator recomputes the dashboard rollups after every
// successful view apply. All sums stay at full decimal precision;
// rounding is a presentation concern.
type StatsAggregator struct {
	store StatsStore
	clock func() time.Time
}

func NewStatsAggregator(store StatsStore) *StatsAggregator {
	return &StatsAggregator{store: store, clock: time.Now}
}

// Recompute derives the rollups from the synchronizer's current
// collections plus the today/yesterday store queries. Revenue counts
// paid orders only.
func (a *StatsAggregator) Recompute(ctx context.Context, restaurantID string, orders []models.Order, tables []models.Table) (models.DashboardStats, error) {
	now := a.clock()
	startToday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	startYesterday := startToday.AddDate(0, 0, -1)

	today, err := a.store.OrdersBetween(ctx, restaurantID, startToday, startToday.AddDate(0, 0, 1))
	if err != nil {
		return models.DashboardStats{}, fmt.Errorf("today query: %w", err)
	}
	yesterday, err := a.store.OrdersBetween(ctx, restaurantID, startYesterday, startToday)
	if err != nil {
		return models.DashboardStats{}, fmt.Errorf("yesterday query: %w", err)
	}
	complaints, err := a.store.ComplaintCountSince(ctx, restaurantID, startToday)
	if err != nil {
		return models.DashboardStats{}, fmt.Errorf("complaint query: %w", err)
	}

	stats := models.DashboardStats{
		TodayRevenue:     paidRevenue(today),
		YesterdayRevenue: paidRevenue(yesterday),
		ComplaintsToday:  complaints,
		ComputedAt:       now.UTC(),
	}

	for _, o := range today {
		if o.PaymentStatus.Unsettled() {
			stats.PendingPaymentTotal = stats.PendingPaymentTotal.Add(o.Total)
		}
	}
	for _, o := range orders {
		if o.Active() {
			stats.ActiveOrderCount++
		}
	}
	for _, t := range tables {
		if t.Status == models.TableOccupied {
			stats.OccupiedTableCount++
		}
	}

	return stats, nil
}

func paidRevenue(orders []models.Order) decimal.Decimal {
	sum := decimal.Zero
	for _, o := range orders {
		if o.PaymentStatus == models.PaymentPaid {
			sum = sum.Add(o.Total)
		}
	}
	return sum
}
