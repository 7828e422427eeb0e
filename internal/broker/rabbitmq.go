package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/prashanthkr7799/praahis-restaurant-sub004/internal/models"
	"github.com/prashanthkr7799/praahis-restaurant-sub004/pkg/metrics"
)

const (
	// SyncExchange carries change events, routed per tenant and entity:
	// resto.<restaurant_id>.<entity_type>.<operation>
	SyncExchange = "resto.sync.topic"
	// NotificationsExchange fans out new-order notifications to any
	// listening sink.
	NotificationsExchange = "resto.notifications.fanout"

	confirmTimeout = 10 * time.Second
)

// Client handles the low-level communication with the message broker.
type Client struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	logger     *slog.Logger
	connClosed chan *amqp.Error
	chanClosed chan *amqp.Error
	closeOnce  sync.Once
	healthy    atomic.Bool
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewClient initializes a connection and a publishing channel, declares
// the exchanges, and enables publisher confirms.
func NewClient(url string, l *slog.Logger) (*Client, error) {
	c, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %v", err)
	}

	ch, err := c.Channel()
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to open RabbitMQ channel: %v", err)
	}

	if err := declareExchanges(ch); err != nil {
		ch.Close()
		c.Close()
		return nil, err
	}

	if err := ch.Confirm(false); err != nil {
		ch.Close()
		c.Close()
		return nil, fmt.Errorf("failed to activate Publisher Confirms: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	client := &Client{
		conn:       c,
		channel:    ch,
		logger:     l,
		connClosed: make(chan *amqp.Error, 1),
		chanClosed: make(chan *amqp.Error, 1),
		ctx:        ctx,
		cancel:     cancel,
	}

	client.healthy.Store(true)
	metrics.BrokerHealthy.Set(1)

	client.conn.NotifyClose(client.connClosed)
	client.channel.NotifyClose(client.chanClosed)

	go func() {
		select {
		case err := <-client.connClosed:
			client.healthy.Store(false)
			metrics.BrokerHealthy.Set(0)
			l.Warn("RabbitMQ connection closed", "error", err)
		case err := <-client.chanClosed:
			client.healthy.Store(false)
			metrics.BrokerHealthy.Set(0)
			l.Warn("RabbitMQ channel closed", "error", err)
		case <-client.ctx.Done():
			return
		}
	}()

	l.Info("Connected to RabbitMQ, monitors established", "url", url)
	return client, nil
}

func declareExchanges(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(SyncExchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare sync exchange: %v", err)
	}
	if err := ch.ExchangeDeclare(NotificationsExchange, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare notifications exchange: %v", err)
	}
	return nil
}

// PublishEvent routes a change event to the tenant's subscribers and
// blocks until the broker confirms persistence.
func (c *Client) PublishEvent(ctx context.Context, ev models.ChangeEvent) error {
	if !c.IsHealthy() {
		return fmt.Errorf("broker connection is closed")
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to serialize event: %v", err)
	}

	routingKey := fmt.Sprintf("resto.%s.%s.%s", ev.RestaurantID, ev.EntityType, ev.Operation)

	deferred, err := c.channel.PublishWithDeferredConfirmWithContext(
		ctx,
		SyncExchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			Headers: amqp.Table{
				"event_id": ev.EventID,
			},
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    ev.EmittedAt,
			Body:         body,
		},
	)
	if err != nil {
		c.logger.Error("failed to publish event to exchange", "error", err, "routing_key", routingKey)
		return fmt.Errorf("publish call failed: %v", err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-deferred.Done():
		if !deferred.Acked() {
			return fmt.Errorf("RabbitMQ NACK received: event not persisted")
		}
		return nil
	case <-time.After(confirmTimeout):
		return fmt.Errorf("publisher confirm timeout")
	}
}

// Close gracefully shuts down the RabbitMQ resources.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.logger.Info("Terminating RabbitMQ client")
		c.cancel()
		if c.channel != nil {
			c.channel.Close()
		}
		if c.conn != nil {
			c.conn.Close()
		}
	})
	return nil
}

// IsHealthy returns true if the connection and channel are active.
func (c *Client) IsHealthy() bool {
	return c.healthy.Load()
}
