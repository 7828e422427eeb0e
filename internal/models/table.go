package models

import "time"

// TableStatus is the occupancy state of a physical table.
type TableStatus string

const (
	TableAvailable TableStatus = "available"
	TableOccupied  TableStatus = "occupied"
	TableReserved  TableStatus = "reserved"
)

// Table is the canonical occupancy record. Only the session manager
// mutates it; dashboards receive read-only copies.
type Table struct {
	ID              string      `json:"id"`
	RestaurantID    string      `json:"restaurant_id"`
	Number          int         `json:"number"`
	Capacity        int         `json:"capacity"`
	Status          TableStatus `json:"status"`
	ActiveSessionID *string     `json:"active_session_id,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// Occupied reports whether the table currently carries an active session.
func (t Table) Occupied() bool {
	return t.Status == TableOccupied && t.ActiveSessionID != nil
}
