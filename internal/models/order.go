package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// OrderStatus is the kitchen-side progression of an order.
type OrderStatus string

const (
	OrderReceived  OrderStatus = "received"
	OrderPreparing OrderStatus = "preparing"
	OrderReady     OrderStatus = "ready"
	OrderServed    OrderStatus = "served"
	OrderCompleted OrderStatus = "completed"
	OrderCancelled OrderStatus = "cancelled"
)

// PaymentStatus is the payment-side state of an order. Dashboards only
// ever see orders with PaymentPaid.
type PaymentStatus string

const (
	PaymentPendingPayment PaymentStatus = "pending_payment"
	PaymentPending        PaymentStatus = "pending"
	PaymentPaid           PaymentStatus = "paid"
	PaymentFailed         PaymentStatus = "failed"
	PaymentRefunded       PaymentStatus = "refunded"
)

// Unsettled reports whether the payment state blocks a force release
// for a served order.
func (p PaymentStatus) Unsettled() bool {
	return p == PaymentPending || p == PaymentFailed
}

// OrderItem is one validated line of an order.
type OrderItem struct {
	Name     string          `json:"name" validate:"required"`
	Quantity int             `json:"quantity" validate:"min=1"`
	Price    decimal.Decimal `json:"price"`
}

// Order is created and mutated by upstream order-placement and payment
// collaborators; this service only reads and projects it.
type Order struct {
	ID            string          `json:"id"`
	SessionID     *string         `json:"session_id,omitempty"`
	TableID       string          `json:"table_id"`
	RestaurantID  string          `json:"restaurant_id"`
	OrderNumber   string          `json:"order_number"`
	Items         []OrderItem     `json:"items"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Tax           decimal.Decimal `json:"tax"`
	Total         decimal.Decimal `json:"total"`
	OrderStatus   OrderStatus     `json:"order_status"`
	PaymentStatus PaymentStatus   `json:"payment_status"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Active reports whether the order still needs kitchen or floor attention.
func (o Order) Active() bool {
	return o.OrderStatus != OrderCompleted && o.OrderStatus != OrderCancelled
}

var itemValidate = validator.New()

// ParseOrderItems normalizes the loosely-typed item column. Upstream
// writers sometimes store a JSON array and sometimes a double-encoded
// JSON string of that array; both forms are accepted here, once, at the
// store boundary. Each item is validated so downstream consumers never
// re-check shape.
func ParseOrderItems(raw []byte) ([]OrderItem, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	data := raw
	var encoded string
	if err := json.Unmarshal(raw, &encoded); err == nil {
		data = []byte(encoded)
	}

	var items []OrderItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("malformed order items: %w", err)
	}

	for i, it := range items {
		if err := itemValidate.Struct(it); err != nil {
			return nil, fmt.Errorf("invalid order item %d (%q): %w", i, it.Name, err)
		}
		if it.Price.IsNegative() {
			return nil, fmt.Errorf("invalid order item %d (%q): negative price", i, it.Name)
		}
	}
	return items, nil
}
