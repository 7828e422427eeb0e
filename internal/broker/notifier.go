package broker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/prashanthkr7799/praahis-restaurant-sub004/pkg/metrics"
)

// NewOrderNotification is the fanout message emitted when a paid order
// first becomes visible to a tenant's dashboards.
type NewOrderNotification struct {
	RestaurantID string    `json:"restaurant_id"`
	OrderNumber  string    `json:"order_number"`
	EmittedAt    time.Time `json:"emitted_at"`
}

// OrderNotifier publishes new-order notifications for one tenant.
// Fire-and-forget: no confirms, no acknowledgment expected, failures
// are logged and swallowed.
type OrderNotifier struct {
	client       *Client
	restaurantID string
	logger       *slog.Logger
}

func NewOrderNotifier(client *Client, restaurantID string, logger *slog.Logger) *OrderNotifier {
	return &OrderNotifier{client: client, restaurantID: restaurantID, logger: logger}
}

func (n *OrderNotifier) NewOrderArrived(orderNumber string) {
	body, err := json.Marshal(NewOrderNotification{
		RestaurantID: n.restaurantID,
		OrderNumber:  orderNumber,
		EmittedAt:    time.Now().UTC(),
	})
	if err != nil {
		n.logger.Error("failed to serialize order notification", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err = n.client.channel.PublishWithContext(
		ctx,
		NotificationsExchange,
		"",
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
	if err != nil {
		n.logger.Error("failed to publish order notification", "error", err, "order_number", orderNumber)
		return
	}
	metrics.NotificationsSent.Inc()
}
