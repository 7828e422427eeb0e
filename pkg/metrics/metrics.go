package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DashboardsConnected tracks live websocket dashboard connections per tenant
	DashboardsConnected = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gateway_dashboards_connected",
		Help: "Currently connected dashboard synchronizers",
	}, []string{"restaurant_id"})

	// PushEventsApplied counts change events handled by the push path
	// action: insert, update, remove, ignore
	PushEventsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_push_events_total",
		Help: "Change events processed by the push path",
	}, []string{"entity_type", "action"})

	// PollCycles counts poll-path outcomes
	// status: replaced, skipped_timeout, error
	PollCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_poll_cycles_total",
		Help: "Poll-path refresh cycles by outcome",
	}, []string{"status"})

	// RefreshDuration measures one full collection re-fetch
	RefreshDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gateway_view_refresh_duration_seconds",
		Help:    "Time taken to re-fetch and replace a dashboard view",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	})

	// SessionClaims counts session create attempts
	// outcome: created, existing, conflict, timeout, error
	SessionClaims = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_session_claims_total",
		Help: "Table session claim attempts by outcome",
	}, []string{"outcome"})

	// ReleasesBlocked counts force releases refused over unpaid orders
	ReleasesBlocked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_releases_blocked_total",
		Help: "Force releases blocked by unpaid served orders",
	})

	// NotificationsSent counts new-order notifications published to the fanout
	NotificationsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_order_notifications_total",
		Help: "new-order notifications published to the fanout exchange",
	})

	// BrokerHealthy is 1 while the RabbitMQ link is up
	BrokerHealthy = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gateway_broker_healthy",
		Help: "Current health of the RabbitMQ connection (1 healthy, 0 down)",
	})
)
