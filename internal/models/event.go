package models

import (
	"encoding/json"
	"time"
)

// EntityType identifies which collection a change event belongs to.
type EntityType string

const (
	EntityOrder   EntityType = "order"
	EntitySession EntityType = "table_session"
	EntityTable   EntityType = "table"
)

// Operation is the mutation kind carried by a change event.
type Operation string

const (
	OpInsert Operation = "insert"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// ChangeEvent is the ephemeral push notification emitted after a
// canonical mutation. Payload carries a full entity snapshot, but
// delivery is at-least-once with only best-effort ordering, so
// consumers treat it as a hint and re-fetch to correct.
type ChangeEvent struct {
	EventID      string          `json:"event_id"`
	EntityType   EntityType      `json:"entity_type"`
	Operation    Operation       `json:"operation"`
	RestaurantID string          `json:"restaurant_id"`
	EntityID     string          `json:"entity_id"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	EmittedAt    time.Time       `json:"emitted_at"`
}
