package service

import "github.com/prashanthkr7799/praahis-restaurant-sub004/internal/models"

// Action is the view mutation derived from one order change.
type Action int

const (
	ActionIgnore Action = iota
	ActionInsert
	ActionUpdate
	ActionRemove
)

func (a Action) String() string {
	switch a {
	case ActionInsert:
		return "insert"
	case ActionUpdate:
		return "update"
	case ActionRemove:
		return "remove"
	default:
		return "ignore"
	}
}

// Project maps a raw order mutation to a view action, gated on payment
// completion. Pure: no side effects, no store access. An Insert also
// means "announce the order once"; deduplicating repeat deliveries of
// the same transition is the synchronizer's responsibility.
//
//	previous  new     action
//	!=paid    paid    Insert
//	paid      !=paid  Remove
//	paid      paid    Update
//	!=paid    !=paid  Ignore
func Project(order models.Order, previous models.PaymentStatus) Action {
	paidBefore := previous == models.PaymentPaid
	paidNow := order.PaymentStatus == models.PaymentPaid

	switch {
	case !paidBefore && paidNow:
		return ActionInsert
	case paidBefore && !paidNow:
		return ActionRemove
	case paidBefore && paidNow:
		return ActionUpdate
	default:
		return ActionIgnore
	}
}
