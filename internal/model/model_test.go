package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestBookingExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	var b Booking
	assert.False(t, b.Expired(now), "booking without a deadline never expires")

	past := now.Add(-time.Minute)
	b.ExpiresAt = &past
	assert.True(t, b.Expired(now))

	b.ExpiresAt = &now
	assert.True(t, b.Expired(now), "deadline is inclusive")

	future := now.Add(time.Minute)
	b.ExpiresAt = &future
	assert.False(t, b.Expired(now))
}

func TestBookingTotalPrice(t *testing.T) {
	b := Booking{Quantity: 3}
	total := b.TotalPrice(decimal.RequireFromString("19.99"))
	assert.Equal(t, "59.97", total.StringFixed(2))
}

func TestTicketTierAvailable(t *testing.T) {
	assert.Equal(t, uint32(7), TicketTier{Quota: 10, Sold: 3}.Available())
	assert.Equal(t, uint32(0), TicketTier{Quota: 10, Sold: 10}.Available())
	// Sold past quota can only come from a bypassed write path; report
	// zero rather than wrapping the unsigned difference.
	assert.Equal(t, uint32(0), TicketTier{Quota: 10, Sold: 12}.Available())
}

func TestEventBookable(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(time.Hour)

	assert.True(t, Event{Status: EventPublished, StartsAt: future}.Bookable(now))
	assert.False(t, Event{Status: EventDraft, StartsAt: future}.Bookable(now))
	assert.False(t, Event{Status: EventCancelled, StartsAt: future}.Bookable(now))
	assert.False(t, Event{Status: EventPublished, StartsAt: now}.Bookable(now),
		"an event that has started is no longer bookable")
}

func TestValidTicketType(t *testing.T) {
	for _, typ := range []TicketType{TicketStandard, TicketVIP, TicketEarlyBird, TicketStudent, TicketGroup} {
		assert.True(t, ValidTicketType(typ))
	}
	assert.False(t, ValidTicketType("BALCONY"))
	assert.False(t, ValidTicketType(""))
}
