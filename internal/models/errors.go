package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Sentinels returned by the store layer.
var (
	// ErrNotFound means the requested entity does not exist for the tenant.
	ErrNotFound = errors.New("not found")
	// ErrWriteConflict means a concurrent writer won a transactional race.
	// The session manager retries it exactly once.
	ErrWriteConflict = errors.New("transient write conflict")
)

// SessionConflictError is returned when the single automatic retry of a
// session claim was also lost to a concurrent writer. Callers may retry.
type SessionConflictError struct {
	TableID string
}

func (e *SessionConflictError) Error() string {
	return fmt.Sprintf("session claim for table %s lost to a concurrent writer, try again", e.TableID)
}

func (e *SessionConflictError) Unwrap() error { return ErrWriteConflict }

// UnpaidOrdersError blocks a force release while served orders remain
// unsettled. It is a policy decision, never retried.
type UnpaidOrdersError struct {
	SessionID    string
	OrderNumbers []string
	TotalDue     decimal.Decimal
}

func (e *UnpaidOrdersError) Error() string {
	return fmt.Sprintf("session %s has unpaid served orders [%s], %s due",
		e.SessionID, strings.Join(e.OrderNumbers, ", "), FormatINR(e.TotalDue))
}

// StorageTimeoutError wraps a store call that missed its deadline.
// Retryable by the caller with backoff; never retried silently inside
// the core.
type StorageTimeoutError struct {
	Op  string
	Err error
}

func (e *StorageTimeoutError) Error() string {
	return fmt.Sprintf("storage timeout during %s: %v", e.Op, e.Err)
}

func (e *StorageTimeoutError) Unwrap() error { return e.Err }
