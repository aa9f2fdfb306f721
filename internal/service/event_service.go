package service

import (
	"context"
	"log"
	"time"

	"github.com/btick/btick/internal/clock"
	"github.com/btick/btick/internal/model"
	"github.com/btick/btick/internal/queue"
	"github.com/btick/btick/internal/repository"
)

// EventStore is the persistence surface the event service needs.
// *repository.EventRepo satisfies it.
type EventStore interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	Create(ctx context.Context, e *model.Event) error
	GetByID(ctx context.Context, id uint64) (model.Event, error)
	GetForUpdate(ctx context.Context, id uint64) (model.Event, error)
	ListPublished(ctx context.Context, now time.Time) ([]model.Event, error)
	ListByOrganization(ctx context.Context, orgID uint64) ([]model.Event, error)
	Update(ctx context.Context, e *model.Event) error
	SetStatus(ctx context.Context, id uint64, status model.EventStatus, version uint64) error
	HasTiers(ctx context.Context, eventID uint64) (bool, error)
	SoftDelete(ctx context.Context, id uint64) error
}

// VenueReader and CategoryReader validate references on event
// creation. The venue and category repos satisfy them.
type VenueReader interface {
	GetByID(ctx context.Context, id uint64) (model.Venue, error)
}

type CategoryReader interface {
	GetByID(ctx context.Context, id uint64) (model.EventCategory, error)
}

// ActiveBookingLister feeds the cancellation cascade.
// *repository.BookingRepo satisfies it.
type ActiveBookingLister interface {
	ActiveByEvent(ctx context.Context, eventID uint64) ([]uint64, error)
}

// BookingCanceller cancels one booking as part of an event
// cancellation. *BookingService satisfies it.
type BookingCanceller interface {
	CancelForEventCascade(ctx context.Context, bookingID uint64) error
}

// TierLister exposes tier listings for the availability endpoint.
// *repository.TicketTierRepo satisfies it.
type TierLister interface {
	ListByEvent(ctx context.Context, eventID uint64) ([]model.TicketTier, error)
	AvailableByEvent(ctx context.Context, eventID uint64) ([]model.TicketTier, error)
}

// EventPublisher emits event lifecycle messages. *queue.Publisher
// satisfies it.
type EventPublisher interface {
	EventCancelled(ctx context.Context, ev queue.EventCancelledEvent) error
}

// EventService manages the event lifecycle: draft, publish, cancel.
// Publication is gated on the event having at least one ticket tier;
// cancellation cascades to every active booking of the event.
type EventService struct {
	events     EventStore
	venues     VenueReader
	categories CategoryReader
	tiers      TierLister
	bookings   ActiveBookingLister
	canceller  BookingCanceller
	pub        EventPublisher
	clk        clock.Clock
}

// NewEventService wires an EventService.
func NewEventService(events EventStore, venues VenueReader, categories CategoryReader, tiers TierLister, bookings ActiveBookingLister, canceller BookingCanceller, pub EventPublisher, clk clock.Clock) *EventService {
	return &EventService{events: events, venues: venues, categories: categories, tiers: tiers, bookings: bookings, canceller: canceller, pub: pub, clk: clk}
}

// EventInput carries the caller-editable fields of an event.
type EventInput struct {
	OrganizationID uint64
	VenueID        uint64
	CategoryID     uint64
	Title          string
	Description    string
	StartsAt       time.Time
	EndsAt         time.Time
	Capacity       *uint32
}

func (s *EventService) validateSchedule(startsAt, endsAt time.Time, now time.Time) error {
	if !startsAt.After(now) || !endsAt.After(startsAt) {
		return ErrInvalidSchedule
	}
	return nil
}

// Create makes a new DRAFT event after validating the schedule and
// that the venue and category exist.
func (s *EventService) Create(ctx context.Context, actor Actor, in EventInput) (model.Event, error) {
	if !actor.CanManage(in.OrganizationID) {
		return model.Event{}, repository.ErrForbidden
	}
	now := s.clk.Now().UTC()
	if err := s.validateSchedule(in.StartsAt, in.EndsAt, now); err != nil {
		return model.Event{}, err
	}
	if _, err := s.venues.GetByID(ctx, in.VenueID); err != nil {
		return model.Event{}, err
	}
	if _, err := s.categories.GetByID(ctx, in.CategoryID); err != nil {
		return model.Event{}, err
	}
	e := model.Event{
		OrganizationID: in.OrganizationID,
		VenueID:        in.VenueID,
		CategoryID:     in.CategoryID,
		Title:          in.Title,
		Description:    in.Description,
		StartsAt:       in.StartsAt.UTC(),
		EndsAt:         in.EndsAt.UTC(),
		Capacity:       in.Capacity,
	}
	if err := s.events.Create(ctx, &e); err != nil {
		return model.Event{}, err
	}
	return e, nil
}

// Update rewrites the editable fields of an event that has not been
// cancelled or started yet. The write is versioned; a concurrent
// change surfaces as ErrStaleWrite.
func (s *EventService) Update(ctx context.Context, actor Actor, id uint64, in EventInput) (model.Event, error) {
	now := s.clk.Now().UTC()
	var updated model.Event
	err := s.events.WithTx(ctx, func(ctx context.Context) error {
		e, err := s.events.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !actor.CanManage(e.OrganizationID) {
			return repository.ErrForbidden
		}
		if e.Status == model.EventCancelled {
			return ErrEventCancelled
		}
		if e.Started(now) {
			return ErrEventAlreadyStarted
		}
		if err := s.validateSchedule(in.StartsAt, in.EndsAt, now); err != nil {
			return err
		}
		if in.VenueID != e.VenueID {
			if _, err := s.venues.GetByID(ctx, in.VenueID); err != nil {
				return err
			}
		}
		if in.CategoryID != e.CategoryID {
			if _, err := s.categories.GetByID(ctx, in.CategoryID); err != nil {
				return err
			}
		}
		e.VenueID = in.VenueID
		e.CategoryID = in.CategoryID
		e.Title = in.Title
		e.Description = in.Description
		e.StartsAt = in.StartsAt.UTC()
		e.EndsAt = in.EndsAt.UTC()
		e.Capacity = in.Capacity
		if err := s.events.Update(ctx, &e); err != nil {
			return err
		}
		updated = e
		return nil
	})
	if err != nil {
		return model.Event{}, err
	}
	return updated, nil
}

// Publish moves a DRAFT event to PUBLISHED. The gate: the event must
// still be in the future and must own at least one ticket tier,
// checked while holding the event row lock so a concurrent tier delete
// cannot slip through.
func (s *EventService) Publish(ctx context.Context, actor Actor, id uint64) (model.Event, error) {
	now := s.clk.Now().UTC()
	var published model.Event
	err := s.events.WithTx(ctx, func(ctx context.Context) error {
		e, err := s.events.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !actor.CanManage(e.OrganizationID) {
			return repository.ErrForbidden
		}
		if e.Status != model.EventDraft {
			return ErrNotDraft
		}
		if e.Started(now) {
			return ErrEventAlreadyStarted
		}
		ok, err := s.events.HasTiers(ctx, id)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNoTicketTiers
		}
		if err := s.events.SetStatus(ctx, id, model.EventPublished, e.Version); err != nil {
			return err
		}
		published = e
		published.Status = model.EventPublished
		return nil
	})
	if err != nil {
		return model.Event{}, err
	}
	return published, nil
}

// Cancel moves the event to CANCELLED and then cancels every active
// booking on its tiers, one transaction per booking so a single
// failure never blocks the rest of the cascade. Failures are logged
// and the cascade can be re-driven by cancelling again; already
// terminal bookings are skipped.
func (s *EventService) Cancel(ctx context.Context, actor Actor, id uint64) error {
	now := s.clk.Now().UTC()
	var cancelled model.Event
	err := s.events.WithTx(ctx, func(ctx context.Context) error {
		e, err := s.events.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !actor.CanManage(e.OrganizationID) {
			return repository.ErrForbidden
		}
		if e.Status == model.EventCancelled {
			return ErrAlreadyCancelled
		}
		if err := s.events.SetStatus(ctx, id, model.EventCancelled, e.Version); err != nil {
			return err
		}
		cancelled = e
		return nil
	})
	if err != nil {
		return err
	}

	if s.pub != nil {
		_ = s.pub.EventCancelled(ctx, queue.EventCancelledEvent{
			EventID:     cancelled.ID,
			EventTitle:  cancelled.Title,
			CancelledAt: now.Format(time.RFC3339),
		})
	}

	ids, err := s.bookings.ActiveByEvent(ctx, id)
	if err != nil {
		return err
	}
	for _, bookingID := range ids {
		if err := s.canceller.CancelForEventCascade(ctx, bookingID); err != nil {
			log.Printf("event-service: cascade cancel booking %d failed: %v", bookingID, err)
		}
	}
	return nil
}

// Get returns one event by ID. Draft events stay hidden from everyone
// but their organization and platform staff.
func (s *EventService) Get(ctx context.Context, actor Actor, id uint64) (model.Event, error) {
	e, err := s.events.GetByID(ctx, id)
	if err != nil {
		return model.Event{}, err
	}
	if e.Status == model.EventDraft && !actor.CanManage(e.OrganizationID) && !actor.Staff() {
		return model.Event{}, repository.ErrEventNotFound
	}
	return e, nil
}

// ListPublished returns the publicly browsable events.
func (s *EventService) ListPublished(ctx context.Context) ([]model.Event, error) {
	return s.events.ListPublished(ctx, s.clk.Now().UTC())
}

// ListForOrganization returns an organization's events for its
// managers and platform staff.
func (s *EventService) ListForOrganization(ctx context.Context, actor Actor, orgID uint64) ([]model.Event, error) {
	if !actor.CanManage(orgID) && !actor.Staff() {
		return nil, repository.ErrForbidden
	}
	return s.events.ListByOrganization(ctx, orgID)
}

// TierAvailability is one row of the public availability listing.
type TierAvailability struct {
	TierID     uint64           `json:"tier_id"`
	TicketType model.TicketType `json:"ticket_type"`
	Price      string           `json:"price"`
	Available  uint32           `json:"available"`
}

// AvailableTiers lists the tiers of a published event that still have
// unsold tickets, cheapest first. Draft events stay hidden from
// everyone but their organization; cancelled events report
// ErrEventCancelled.
func (s *EventService) AvailableTiers(ctx context.Context, actor Actor, eventID uint64) ([]TierAvailability, error) {
	e, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	switch e.Status {
	case model.EventCancelled:
		return nil, ErrEventCancelled
	case model.EventDraft:
		if !actor.CanManage(e.OrganizationID) && !actor.Staff() {
			return nil, repository.ErrEventNotFound
		}
	}
	tiers, err := s.tiers.AvailableByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	out := make([]TierAvailability, 0, len(tiers))
	for _, t := range tiers {
		out = append(out, TierAvailability{
			TierID:     t.ID,
			TicketType: t.TicketType,
			Price:      t.Price.StringFixed(2),
			Available:  t.Available(),
		})
	}
	return out, nil
}
