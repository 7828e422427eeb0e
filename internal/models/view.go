package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DashboardStats is the rollup recomputed after every successful view
// apply. Sums stay at full precision; formatting happens at the edge.
type DashboardStats struct {
	TodayRevenue        decimal.Decimal `json:"today_revenue"`
	YesterdayRevenue    decimal.Decimal `json:"yesterday_revenue"`
	ActiveOrderCount    int             `json:"active_order_count"`
	OccupiedTableCount  int             `json:"occupied_table_count"`
	PendingPaymentTotal decimal.Decimal `json:"pending_payment_total"`
	ComplaintsToday     int             `json:"complaints_today"`
	ComputedAt          time.Time       `json:"computed_at"`
}

// ViewSnapshot is the immutable copy of one dashboard's materialized
// state, safe to hand to a transport writer while the synchronizer
// keeps mutating its own collections.
type ViewSnapshot struct {
	RestaurantID string         `json:"restaurant_id"`
	Orders       []Order        `json:"orders"`
	Tables       []Table        `json:"tables"`
	Stats        DashboardStats `json:"stats"`
	LastApplied  time.Time      `json:"last_applied"`
}
