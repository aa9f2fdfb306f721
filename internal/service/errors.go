// Package service holds the business rules of the ticketing core: the
// booking state machine, the inventory ledger protocol, the event
// publication gate and the expiry reaper. Services speak to storage
// through narrow interfaces declared next to each service, so tests
// can run them against in-memory fakes.
package service

import (
	"errors"
	"fmt"
)

// Validation failures. Handlers translate these into HTTP 400.
var (
	ErrInvalidQuantity   = errors.New("quantity must be between 1 and 10")
	ErrInvalidPrice      = errors.New("price must not be negative")
	ErrInvalidQuota      = errors.New("quota must be at least 1")
	ErrInvalidTicketType = errors.New("unknown ticket type")
	ErrInvalidSchedule   = errors.New("event must start in the future and end after it starts")
)

// State conflicts. Handlers translate these into HTTP 409.
var (
	ErrEventNotBookable    = errors.New("event is not open for booking")
	ErrEventAlreadyStarted = errors.New("event has already started")
	ErrEventCancelled      = errors.New("event is cancelled")
	ErrNotDraft            = errors.New("event is not in draft")
	ErrNoTicketTiers       = errors.New("event has no ticket tiers")
	ErrNotPending          = errors.New("booking is not pending")
	ErrBookingExpired      = errors.New("booking has expired")
	ErrAlreadyCancelled    = errors.New("already cancelled")
	ErrDuplicateTicketType = errors.New("event already has a tier of this type")
	ErrQuotaBelowSold      = errors.New("quota cannot drop below tickets already sold")
)

// InsufficientInventoryError reports a reservation that asked for more
// tickets than the tier has left. Available carries the count observed
// under the row lock so the client can retry with a smaller quantity.
type InsufficientInventoryError struct {
	Available uint32
}

func (e *InsufficientInventoryError) Error() string {
	return fmt.Sprintf("insufficient inventory: %d tickets available", e.Available)
}
