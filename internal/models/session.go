package models

import "time"

// SessionStatus is the lifecycle state of a table session.
type SessionStatus string

const (
	SessionActive SessionStatus = "active"
	SessionEnded  SessionStatus = "ended"
)

// TableSession is one seating occupancy of a table. The store enforces
// at most one active session per table via a partial unique index; the
// service layer never takes client-side locks for this.
type TableSession struct {
	ID             string        `json:"id"`
	TableID        string        `json:"table_id"`
	RestaurantID   string        `json:"restaurant_id"`
	Status         SessionStatus `json:"status"`
	CreatedAt      time.Time     `json:"created_at"`
	EndedAt        *time.Time    `json:"ended_at,omitempty"`
	LastActivityAt time.Time     `json:"last_activity_at"`
}
