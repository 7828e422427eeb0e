package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/prashanthkr7799/praahis-restaurant-sub004/internal/broker"
	"github.com/prashanthkr7799/praahis-restaurant-sub004/internal/config"
	"github.com/prashanthkr7799/praahis-restaurant-sub004/internal/models"
	"github.com/prashanthkr7799/praahis-restaurant-sub004/pkg/infra"
)

// ordersim replays the order lifecycle a payment collaborator would
// produce: an unpaid insert followed by the paid transition. Useful for
// exercising a connected dashboard without the full upstream stack.
func main() {
	restaurant := flag.String("restaurant", "rest-demo", "tenant id to publish under")
	table := flag.String("table", "table-7", "table id for the synthetic order")
	number := flag.String("number", "ORD-1042", "order number")
	total := flag.String("total", "400", "order total in rupees")
	delay := flag.Duration("delay", 2*time.Second, "pause between the unpaid insert and the paid update")
	flag.Parse()

	cfg := config.Load()
	logger := infra.SetupLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	amount, err := decimal.NewFromString(*total)
	if err != nil {
		logger.Error("invalid --total", "error", err)
		os.Exit(2)
	}

	client, err := broker.NewClient(cfg.RabbitMQURL, logger)
	if err != nil {
		logger.Error("RabbitMQ connection failed", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	now := time.Now().UTC()
	order := models.Order{
		ID:           uuid.NewString(),
		TableID:      *table,
		RestaurantID: *restaurant,
		OrderNumber:  *number,
		Items: []models.OrderItem{
			{Name: "Masala Dosa", Quantity: 2, Price: amount.Div(decimal.NewFromInt(2))},
		},
		Subtotal:      amount,
		Tax:           decimal.Zero,
		Total:         amount,
		OrderStatus:   models.OrderReceived,
		PaymentStatus: models.PaymentPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	publish(client, order, models.OpInsert, logger)

	time.Sleep(*delay)

	order.PaymentStatus = models.PaymentPaid
	order.UpdatedAt = time.Now().UTC()
	publish(client, order, models.OpUpdate, logger)

	logger.Info("Order simulation complete", "order_number", order.OrderNumber, "total", models.FormatINR(order.Total))
}

func publish(client *broker.Client, order models.Order, op models.Operation, logger *slog.Logger) {
	payload, err := json.Marshal(order)
	if err != nil {
		logger.Error("failed to serialize order", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = client.PublishEvent(ctx, models.ChangeEvent{
		EventID:      uuid.NewString(),
		EntityType:   models.EntityOrder,
		Operation:    op,
		RestaurantID: order.RestaurantID,
		EntityID:     order.ID,
		Payload:      payload,
		EmittedAt:    time.Now().UTC(),
	})
	if err != nil {
		logger.Error("publish failed", "operation", op, "error", err)
		os.Exit(1)
	}
	logger.Info("Change event confirmed by broker", "operation", op, "payment_status", order.PaymentStatus)
}
