package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/prashanthkr7799/praahis-restaurant-sub004/internal/broker"
	"github.com/prashanthkr7799/praahis-restaurant-sub004/internal/config"
	"github.com/prashanthkr7799/praahis-restaurant-sub004/pkg/infra"
)

// The notifier is a thin sink on the notifications fanout: every
// new-order announcement the projector fires lands here. In production
// the same exchange feeds SMS/printer bridges; this binary logs.
func main() {
	cfg := config.Load()
	logger := infra.SetupLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backoff := infra.NewBackoff(1*time.Second, 60*time.Second, 2.0)

	for {
		select {
		case <-ctx.Done():
			logger.Info("Notifier shutting down")
			return
		default:
			if err := listen(ctx, cfg.RabbitMQURL, logger); err != nil {
				wait := backoff.Next()
				logger.Error("Notification stream lost, reconnecting...", "wait_duration", wait, "error", err)
				select {
				case <-ctx.Done():
					return
				case <-time.After(wait):
				}
				continue
			}
			backoff.Reset()
		}
	}
}

func listen(ctx context.Context, url string, logger *slog.Logger) error {
	conn, err := amqp.Dial(url)
	if err != nil {
		return err
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(broker.NotificationsExchange, "fanout", true, false, false, false, nil); err != nil {
		return err
	}

	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return err
	}
	if err := ch.QueueBind(q.Name, "", broker.NotificationsExchange, false, nil); err != nil {
		return err
	}

	msgs, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		return err
	}

	logger.Info("Notifier online, waiting for order notifications", "queue", q.Name)

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return amqp.ErrClosed
			}
			var n broker.NewOrderNotification
			if err := json.Unmarshal(d.Body, &n); err != nil {
				logger.Error("Dropping malformed notification", "error", err)
				continue
			}
			logger.Info("New order arrived",
				"restaurant_id", n.RestaurantID,
				"order_number", n.OrderNumber,
				"emitted_at", n.EmittedAt,
			)
		}
	}
}
