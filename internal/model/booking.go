package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// BookingStatus is the state of a booking.  PENDING bookings hold
// inventory and expire; CONFIRMED and CANCELLED are terminal, with the
// single exception of an administrative refund which moves a CONFIRMED
// booking to CANCELLED.
type BookingStatus string

const (
	BookingPending   BookingStatus = "PENDING"
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingCancelled BookingStatus = "CANCELLED"
)

// Booking is a user's reservation of tickets on one tier.  Creating a
// booking reserves inventory immediately (Sold is incremented on the
// tier); the seats stay held while the booking is PENDING and are
// released when it is cancelled, refunded or reaped after expiry.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – booking owner.
//  TierID    – tier the tickets were reserved on (protect-on-delete).
//  Quantity  – number of tickets, 1..10 per booking.
//  Status    – PENDING, CONFIRMED or CANCELLED.
//  ExpiresAt – deadline for confirming; set only while PENDING.
type Booking struct {
	ID        uint64        `json:"id"`
	UserID    uint64        `json:"user_id"`
	TierID    uint64        `json:"tier_id"`
	Quantity  uint32        `json:"quantity"`
	Status    BookingStatus `json:"status"`
	ExpiresAt *time.Time    `json:"expires_at,omitempty"`
	Entity
}

// Expired reports whether a pending booking's confirmation window has
// closed at the given instant.  Bookings without a deadline never
// expire.
func (b Booking) Expired(now time.Time) bool {
	return b.ExpiresAt != nil && !b.ExpiresAt.After(now)
}

// TotalPrice multiplies the tier price by the booked quantity.
func (b Booking) TotalPrice(price decimal.Decimal) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(b.Quantity)))
}

// BookingDetail is the read model for booking listings: the booking
// joined with its tier and event so the API can show what was booked
// and what it cost without extra round trips.
type BookingDetail struct {
	Booking
	TicketType TicketType      `json:"ticket_type"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	TotalPrice decimal.Decimal `json:"total_price"`
	EventID    uint64          `json:"event_id"`
	EventTitle string          `json:"event_title"`
	StartsAt   time.Time       `json:"starts_at"`
}
