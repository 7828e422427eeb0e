package models

import "time"

// Complaint is recorded by an external feedback collaborator; this
// service only counts same-day complaints for the dashboard rollup.
type Complaint struct {
	ID           string    `json:"id"`
	RestaurantID string    `json:"restaurant_id"`
	OrderID      *string   `json:"order_id,omitempty"`
	Summary      string    `json:"summary"`
	CreatedAt    time.Time `json:"created_at"`
}
