package model

import "github.com/shopspring/decimal"

// TicketType enumerates the tiers an event may sell.  Each event can
// carry at most one tier of each type.
type TicketType string

const (
	TicketStandard  TicketType = "STANDARD"
	TicketVIP       TicketType = "VIP"
	TicketEarlyBird TicketType = "EARLY_BIRD"
	TicketStudent   TicketType = "STUDENT"
	TicketGroup     TicketType = "GROUP"
)

// ValidTicketType reports whether t is one of the known tier types.
func ValidTicketType(t TicketType) bool {
	switch t {
	case TicketStandard, TicketVIP, TicketEarlyBird, TicketStudent, TicketGroup:
		return true
	}
	return false
}

// TicketTier is a priced ticket category for one event with a finite
// quota.  Quota and Sold form the inventory ledger for the tier: Sold
// counts seats currently reserved or confirmed and must satisfy
// 0 <= Sold <= Quota at all times.  That invariant is guaranteed by the
// serialized reserve/release protocol in the booking service, not by
// the database check constraints, which exist only as a last-resort
// guard against bypassed write paths.
//
// Fields:
//  ID         – primary key identifier.
//  EventID    – owning event (tiers cascade-delete with it).
//  TicketType – tier type; unique per event.
//  Price      – non-negative price per ticket.
//  Quota      – total number of sellable tickets.
//  Sold       – tickets currently reserved or confirmed.
type TicketTier struct {
	ID         uint64          `json:"id"`
	EventID    uint64          `json:"event_id"`
	TicketType TicketType      `json:"ticket_type"`
	Price      decimal.Decimal `json:"price"`
	Quota      uint32          `json:"quota"`
	Sold       uint32          `json:"sold"`
	Entity
}

// Available returns the number of tickets still sellable on the tier.
func (t TicketTier) Available() uint32 {
	if t.Sold >= t.Quota {
		return 0
	}
	return t.Quota - t.Sold
}
