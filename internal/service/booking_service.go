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

// Booking quantity bounds per request.
const (
	MinBookingQuantity = 1
	MaxBookingQuantity = 10
)

// BookingStore is the persistence surface the booking service needs.
// *repository.BookingRepo satisfies it.
type BookingStore interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	Create(ctx context.Context, b *model.Booking) error
	GetByID(ctx context.Context, id uint64) (model.Booking, error)
	GetForUpdate(ctx context.Context, id uint64) (model.Booking, error)
	SetStatus(ctx context.Context, id uint64, status model.BookingStatus, expiresAt *time.Time, version uint64) error
	GetDetail(ctx context.Context, id uint64) (model.BookingDetail, error)
	ListByUser(ctx context.Context, userID uint64) ([]model.BookingDetail, error)
	ExpiredPending(ctx context.Context, now time.Time, limit int) ([]uint64, error)
}

// TierStore is the slice of the tier repository the booking service
// uses to move inventory. *repository.TicketTierRepo satisfies it.
type TierStore interface {
	GetByID(ctx context.Context, id uint64) (model.TicketTier, error)
	GetForUpdate(ctx context.Context, id uint64) (model.TicketTier, error)
	AddSold(ctx context.Context, id uint64, qty uint32) error
	SubtractSold(ctx context.Context, id uint64, qty uint32) error
}

// EventReader is the read-only event access the booking service needs.
// *repository.EventRepo satisfies it.
type EventReader interface {
	GetByID(ctx context.Context, id uint64) (model.Event, error)
}

// BookingPublisher emits booking lifecycle messages. Publishing is
// best effort: it happens after commit and failures never undo the
// transition. *queue.Publisher satisfies it.
type BookingPublisher interface {
	BookingConfirmed(ctx context.Context, ev queue.BookingConfirmedEvent) error
	BookingCancelled(ctx context.Context, ev queue.BookingCancelledEvent) error
}

// BookingService drives the booking state machine and the inventory
// ledger. Every inventory decision happens inside one transaction
// holding the tier row lock, re-read under that lock; when a booking
// row is locked too, the tier lock is always taken first.
type BookingService struct {
	bookings BookingStore
	tiers    TierStore
	events   EventReader
	pub      BookingPublisher
	clk      clock.Clock
	holdTTL  time.Duration
}

// NewBookingService wires a BookingService. holdTTL is how long a
// PENDING booking holds its tickets before the reaper may take them
// back.
func NewBookingService(bookings BookingStore, tiers TierStore, events EventReader, pub BookingPublisher, clk clock.Clock, holdTTL time.Duration) *BookingService {
	return &BookingService{bookings: bookings, tiers: tiers, events: events, pub: pub, clk: clk, holdTTL: holdTTL}
}

// Create reserves qty tickets on a tier and opens a PENDING booking
// with a confirmation deadline. The quota check runs against the
// sold count re-read under the tier row lock, so concurrent requests
// serialize and the tier can never oversell.
func (s *BookingService) Create(ctx context.Context, actor Actor, tierID uint64, qty uint32) (model.Booking, error) {
	if qty < MinBookingQuantity || qty > MaxBookingQuantity {
		return model.Booking{}, ErrInvalidQuantity
	}
	now := s.clk.Now().UTC()
	var booking model.Booking
	err := s.bookings.WithTx(ctx, func(ctx context.Context) error {
		tier, err := s.tiers.GetForUpdate(ctx, tierID)
		if err != nil {
			return err
		}
		event, err := s.events.GetByID(ctx, tier.EventID)
		if err != nil {
			return err
		}
		if event.Status != model.EventPublished {
			return ErrEventNotBookable
		}
		if event.Started(now) {
			return ErrEventAlreadyStarted
		}
		if avail := tier.Available(); avail < qty {
			return &InsufficientInventoryError{Available: avail}
		}
		if err := s.tiers.AddSold(ctx, tierID, qty); err != nil {
			return err
		}
		expires := now.Add(s.holdTTL)
		booking = model.Booking{
			UserID:    actor.UserID,
			TierID:    tierID,
			Quantity:  qty,
			ExpiresAt: &expires,
		}
		return s.bookings.Create(ctx, &booking)
	})
	if err != nil {
		return model.Booking{}, err
	}
	return booking, nil
}

// Confirm moves a PENDING booking to CONFIRMED. Inventory does not
// move; the tickets were already reserved at creation. An expired
// booking cannot be confirmed even before the reaper gets to it.
func (s *BookingService) Confirm(ctx context.Context, actor Actor, id uint64) (model.Booking, error) {
	now := s.clk.Now().UTC()
	var confirmed model.Booking
	err := s.bookings.WithTx(ctx, func(ctx context.Context) error {
		b, err := s.bookings.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if b.UserID != actor.UserID && !actor.Staff() {
			return repository.ErrForbidden
		}
		if b.Status != model.BookingPending {
			return ErrNotPending
		}
		if b.Expired(now) {
			return ErrBookingExpired
		}
		if err := s.bookings.SetStatus(ctx, id, model.BookingConfirmed, nil, b.Version); err != nil {
			return err
		}
		confirmed = b
		confirmed.Status = model.BookingConfirmed
		confirmed.ExpiresAt = nil
		return nil
	})
	if err != nil {
		return model.Booking{}, err
	}
	s.publishConfirmed(ctx, confirmed, now)
	return confirmed, nil
}

// Cancel moves a PENDING or CONFIRMED booking to CANCELLED and returns
// its tickets to the pool. Users may cancel only before the event
// starts; cancelling an already cancelled booking reports
// ErrAlreadyCancelled and changes nothing.
func (s *BookingService) Cancel(ctx context.Context, actor Actor, id uint64) error {
	now := s.clk.Now().UTC()
	var cancelled model.Booking
	err := s.bookings.WithTx(ctx, func(ctx context.Context) error {
		probe, err := s.bookings.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if probe.UserID != actor.UserID && !actor.Staff() {
			return repository.ErrForbidden
		}
		// Tier lock first, then the booking lock.
		tier, err := s.tiers.GetForUpdate(ctx, probe.TierID)
		if err != nil {
			return err
		}
		b, err := s.bookings.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if b.Status == model.BookingCancelled {
			return ErrAlreadyCancelled
		}
		event, err := s.events.GetByID(ctx, tier.EventID)
		if err != nil {
			return err
		}
		if event.Started(now) {
			return ErrEventAlreadyStarted
		}
		if err := s.tiers.SubtractSold(ctx, b.TierID, b.Quantity); err != nil {
			return err
		}
		if err := s.bookings.SetStatus(ctx, id, model.BookingCancelled, nil, b.Version); err != nil {
			return err
		}
		cancelled = b
		return nil
	})
	if err != nil {
		return err
	}
	s.publishCancelled(ctx, cancelled, queue.ReasonUserCancelled, now)
	return nil
}

// Refund is the administrative path out of an active booking: staff
// only, no start-time restriction, tickets go back to the pool. A
// PENDING booking may be refunded too, which releases its hold early;
// refunding an already cancelled booking reports ErrAlreadyCancelled
// and releases nothing.
func (s *BookingService) Refund(ctx context.Context, actor Actor, id uint64) error {
	if !actor.Staff() {
		return repository.ErrForbidden
	}
	now := s.clk.Now().UTC()
	var refunded model.Booking
	err := s.bookings.WithTx(ctx, func(ctx context.Context) error {
		probe, err := s.bookings.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if _, err := s.tiers.GetForUpdate(ctx, probe.TierID); err != nil {
			return err
		}
		b, err := s.bookings.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if b.Status == model.BookingCancelled {
			return ErrAlreadyCancelled
		}
		if err := s.tiers.SubtractSold(ctx, b.TierID, b.Quantity); err != nil {
			return err
		}
		if err := s.bookings.SetStatus(ctx, id, model.BookingCancelled, nil, b.Version); err != nil {
			return err
		}
		refunded = b
		return nil
	})
	if err != nil {
		return err
	}
	s.publishCancelled(ctx, refunded, queue.ReasonRefunded, now)
	return nil
}

// CancelForEventCascade cancels one booking because its event was
// cancelled. It skips the start-time check and accepts an already
// terminal booking silently, so the event cascade is idempotent.
func (s *BookingService) CancelForEventCascade(ctx context.Context, id uint64) error {
	now := s.clk.Now().UTC()
	var (
		cancelled model.Booking
		done      bool
	)
	err := s.bookings.WithTx(ctx, func(ctx context.Context) error {
		probe, err := s.bookings.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if _, err := s.tiers.GetForUpdate(ctx, probe.TierID); err != nil {
			return err
		}
		b, err := s.bookings.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if b.Status == model.BookingCancelled {
			return nil
		}
		if err := s.tiers.SubtractSold(ctx, b.TierID, b.Quantity); err != nil {
			return err
		}
		if err := s.bookings.SetStatus(ctx, id, model.BookingCancelled, nil, b.Version); err != nil {
			return err
		}
		cancelled, done = b, true
		return nil
	})
	if err != nil {
		return err
	}
	if done {
		s.publishCancelled(ctx, cancelled, queue.ReasonEventCancelled, now)
	}
	return nil
}

// SweepExpired cancels up to limit PENDING bookings whose deadline has
// passed and returns how many it reaped. Candidates are listed without
// locks and then revalidated one transaction at a time under the tier
// and booking locks, so a confirm racing the sweep wins cleanly on one
// side or the other.
func (s *BookingService) SweepExpired(ctx context.Context, limit int) (int, error) {
	now := s.clk.Now().UTC()
	ids, err := s.bookings.ExpiredPending(ctx, now, limit)
	if err != nil {
		return 0, err
	}
	reaped := 0
	for _, id := range ids {
		var cancelled model.Booking
		err := s.bookings.WithTx(ctx, func(ctx context.Context) error {
			probe, err := s.bookings.GetByID(ctx, id)
			if err != nil {
				return err
			}
			if _, err := s.tiers.GetForUpdate(ctx, probe.TierID); err != nil {
				return err
			}
			b, err := s.bookings.GetForUpdate(ctx, id)
			if err != nil {
				return err
			}
			if b.Status != model.BookingPending || !b.Expired(now) {
				return nil
			}
			if err := s.tiers.SubtractSold(ctx, b.TierID, b.Quantity); err != nil {
				return err
			}
			if err := s.bookings.SetStatus(ctx, id, model.BookingCancelled, nil, b.Version); err != nil {
				return err
			}
			cancelled = b
			return nil
		})
		if err != nil {
			log.Printf("booking-service: sweep booking %d failed: %v", id, err)
			continue
		}
		if cancelled.ID != 0 {
			reaped++
			s.publishCancelled(ctx, cancelled, queue.ReasonExpired, now)
		}
	}
	return reaped, nil
}

// Get returns one booking with tier and event details. Customers see
// only their own bookings; staff see all.
func (s *BookingService) Get(ctx context.Context, actor Actor, id uint64) (model.BookingDetail, error) {
	d, err := s.bookings.GetDetail(ctx, id)
	if err != nil {
		return model.BookingDetail{}, err
	}
	if d.UserID != actor.UserID && !actor.Staff() {
		return model.BookingDetail{}, repository.ErrForbidden
	}
	return d, nil
}

// ListForUser returns a user's bookings, newest first. Customers may
// list only themselves.
func (s *BookingService) ListForUser(ctx context.Context, actor Actor, userID uint64) ([]model.BookingDetail, error) {
	if userID != actor.UserID && !actor.Staff() {
		return nil, repository.ErrForbidden
	}
	return s.bookings.ListByUser(ctx, userID)
}

func (s *BookingService) publishConfirmed(ctx context.Context, b model.Booking, now time.Time) {
	if s.pub == nil {
		return
	}
	ev := queue.BookingConfirmedEvent{
		BookingID:   b.ID,
		UserID:      b.UserID,
		TierID:      b.TierID,
		Quantity:    b.Quantity,
		ConfirmedAt: now.Format(time.RFC3339),
	}
	if tier, err := s.tiers.GetByID(ctx, b.TierID); err == nil {
		ev.TicketType = string(tier.TicketType)
		ev.TotalPrice = b.TotalPrice(tier.Price)
		if event, err := s.events.GetByID(ctx, tier.EventID); err == nil {
			ev.EventID = event.ID
			ev.EventTitle = event.Title
		}
	}
	_ = s.pub.BookingConfirmed(ctx, ev)
}

func (s *BookingService) publishCancelled(ctx context.Context, b model.Booking, reason string, now time.Time) {
	if s.pub == nil {
		return
	}
	ev := queue.BookingCancelledEvent{
		BookingID:   b.ID,
		UserID:      b.UserID,
		TierID:      b.TierID,
		Quantity:    b.Quantity,
		Reason:      reason,
		CancelledAt: now.Format(time.RFC3339),
	}
	if tier, err := s.tiers.GetByID(ctx, b.TierID); err == nil {
		ev.EventID = tier.EventID
	}
	_ = s.pub.BookingCancelled(ctx, ev)
}
