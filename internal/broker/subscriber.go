package broker

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/prashanthkr7799/praahis-restaurant-sub004/internal/models"
)

// Subscription is one dashboard's push stream: an exclusive auto-delete
// queue bound to the tenant's routing keys. Delivery is at-least-once
// with best-effort ordering; malformed or cross-tenant messages are
// dropped silently, the poll path compensates.
type Subscription struct {
	channel   *amqp.Channel
	events    chan models.ChangeEvent
	logger    *slog.Logger
	closeOnce sync.Once
}

// Subscribe opens a dedicated channel and queue for one dashboard
// connection, bound to each requested entity type of the tenant.
func (c *Client) Subscribe(restaurantID string, entityTypes []models.EntityType) (*Subscription, error) {
	if !c.IsHealthy() {
		return nil, fmt.Errorf("broker connection is closed")
	}

	ch, err := c.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open subscription channel: %v", err)
	}

	// Exclusive + auto-delete: this queue lives and dies with the
	// dashboard connection, no backlog survives a disconnect.
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to declare subscription queue: %v", err)
	}

	for _, et := range entityTypes {
		key := fmt.Sprintf("resto.%s.%s.*", restaurantID, et)
		if err := ch.QueueBind(q.Name, key, SyncExchange, false, nil); err != nil {
			ch.Close()
			return nil, fmt.Errorf("failed to bind queue for %s: %v", et, err)
		}
	}

	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to register consumer: %v", err)
	}

	sub := &Subscription{
		channel: ch,
		events:  make(chan models.ChangeEvent, 64),
		logger:  c.logger.With("restaurant_id", restaurantID, "queue", q.Name),
	}

	go sub.pump(restaurantID, deliveries)

	c.logger.Info("Dashboard subscription online", "restaurant_id", restaurantID, "queue", q.Name)
	return sub, nil
}

func (s *Subscription) pump(restaurantID string, deliveries <-chan amqp.Delivery) {
	defer close(s.events)
	for d := range deliveries {
		var ev models.ChangeEvent
		if err := json.Unmarshal(d.Body, &ev); err != nil {
			s.logger.Error("Dropping malformed change event", "error", err)
			continue
		}
		if ev.RestaurantID != restaurantID {
			// Tenant scoping is enforced by the routing key; a mismatch
			// here means a misbehaving publisher.
			s.logger.Warn("Dropping cross-tenant change event", "got", ev.RestaurantID)
			continue
		}
		select {
		case s.events <- ev:
		default:
			// A stalled consumer loses events, not the whole stream.
			// The poll path heals whatever is missed here.
			s.logger.Warn("Subscriber buffer full, dropping change event", "event_id", ev.EventID)
		}
	}
}

// Events streams the tenant's change events. The channel closes when
// the subscription is closed or the broker drops the channel.
func (s *Subscription) Events() <-chan models.ChangeEvent {
	return s.events
}

// Close tears down the queue and consumer. Safe to call more than once.
func (s *Subscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.channel.Close()
	})
	return err
}
