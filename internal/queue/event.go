// Package queue defines the message payloads exchanged over the broker
// and the background consumer that turns them into the booking audit
// log. Queue names double as routing keys on the default exchange.
package queue

import "github.com/shopspring/decimal"

// Queue names. Publishers and the consumer declare them durable so
// messages survive broker restarts.
const (
	BookingConfirmedQueue = "booking.confirmed"
	BookingCancelledQueue = "booking.cancelled"
	EventCancelledQueue   = "event.cancelled"
)

// BookingConfirmedEvent is published when a booking is confirmed. It
// carries enough for downstream consumers to log or notify without
// querying the primary database.
type BookingConfirmedEvent struct {
	BookingID   uint64          `json:"booking_id"`
	UserID      uint64          `json:"user_id"`
	EventID     uint64          `json:"event_id"`
	EventTitle  string          `json:"event_title"`
	TierID      uint64          `json:"tier_id"`
	TicketType  string          `json:"ticket_type"`
	Quantity    uint32          `json:"quantity"`
	TotalPrice  decimal.Decimal `json:"total_price"`
	ConfirmedAt string          `json:"confirmed_at"`
}

// Cancellation reasons carried in BookingCancelledEvent.
const (
	ReasonUserCancelled  = "user_cancelled"
	ReasonRefunded       = "refunded"
	ReasonExpired        = "expired"
	ReasonEventCancelled = "event_cancelled"
)

// BookingCancelledEvent is published whenever a booking leaves the
// active set, whatever the trigger: a user cancel, an administrative
// refund, the expiry reaper or an event cancellation cascade.
type BookingCancelledEvent struct {
	BookingID   uint64 `json:"booking_id"`
	UserID      uint64 `json:"user_id"`
	EventID     uint64 `json:"event_id"`
	TierID      uint64 `json:"tier_id"`
	Quantity    uint32 `json:"quantity"`
	Reason      string `json:"reason"`
	CancelledAt string `json:"cancelled_at"`
}

// EventCancelledEvent is published once per cancelled event, before
// the per-booking cascade events.
type EventCancelledEvent struct {
	EventID     uint64 `json:"event_id"`
	EventTitle  string `json:"event_title"`
	CancelledAt string `json:"cancelled_at"`
}
