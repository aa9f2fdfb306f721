package model

import "time"

// EventStatus is the lifecycle state of an event.  DRAFT events are
// being prepared and accept no bookings; PUBLISHED events are live;
// CANCELLED is terminal.
type EventStatus string

const (
	EventDraft     EventStatus = "DRAFT"
	EventPublished EventStatus = "PUBLISHED"
	EventCancelled EventStatus = "CANCELLED"
)

// Event is a scheduled happening users can book tickets for.  It
// belongs to one organization, one venue and one category, and owns
// zero or more ticket tiers (cascade-deleted with the event).
//
// Fields:
//  ID             – primary key identifier.
//  OrganizationID – hosting organization (protect-on-delete).
//  VenueID        – venue where the event takes place (protect-on-delete).
//  CategoryID     – event category (protect-on-delete).
//  Title          – unique title.
//  Description    – optional long description.
//  StartsAt       – when the event begins.
//  EndsAt         – when the event ends; must be after StartsAt.
//  Status         – DRAFT, PUBLISHED or CANCELLED.
//  Capacity       – optional override of the venue capacity.
type Event struct {
	ID             uint64      `json:"id"`
	OrganizationID uint64      `json:"organization_id"`
	VenueID        uint64      `json:"venue_id"`
	CategoryID     uint64      `json:"category_id"`
	Title          string      `json:"title"`
	Description    string      `json:"description,omitempty"`
	StartsAt       time.Time   `json:"starts_at"`
	EndsAt         time.Time   `json:"ends_at"`
	Status         EventStatus `json:"status"`
	Capacity       *uint32     `json:"capacity,omitempty"`
	Entity
}

// Started reports whether the event has already begun at the given
// instant.  Bookings and cancellations are rejected once an event has
// started.
func (e Event) Started(now time.Time) bool { return !e.StartsAt.After(now) }

// Bookable reports whether the event may accept new bookings at the
// given instant: it must be published and strictly in the future.
func (e Event) Bookable(now time.Time) bool {
	return e.Status == EventPublished && !e.Started(now)
}
