package service

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/btick/btick/internal/model"
	"github.com/btick/btick/internal/repository"
)

// TierAdminStore is the persistence surface the tier service needs.
// *repository.TicketTierRepo satisfies it.
type TierAdminStore interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	Create(ctx context.Context, t *model.TicketTier) error
	GetByID(ctx context.Context, id uint64) (model.TicketTier, error)
	GetForUpdate(ctx context.Context, id uint64) (model.TicketTier, error)
	ListByEvent(ctx context.Context, eventID uint64) ([]model.TicketTier, error)
	Update(ctx context.Context, t *model.TicketTier) error
	SoftDelete(ctx context.Context, id uint64) error
}

// TierService manages ticket tiers on behalf of event organizers. The
// quota floor (quota never below sold) is checked under the tier row
// lock so it cannot race a concurrent booking.
type TierService struct {
	tiers  TierAdminStore
	events EventReader
}

// NewTierService wires a TierService.
func NewTierService(tiers TierAdminStore, events EventReader) *TierService {
	return &TierService{tiers: tiers, events: events}
}

// TierInput carries the caller-editable fields of a ticket tier.
type TierInput struct {
	TicketType model.TicketType
	Price      decimal.Decimal
	Quota      uint32
}

func validateTierInput(in TierInput) error {
	if !model.ValidTicketType(in.TicketType) {
		return ErrInvalidTicketType
	}
	if in.Price.IsNegative() {
		return ErrInvalidPrice
	}
	if in.Quota < 1 {
		return ErrInvalidQuota
	}
	return nil
}

// Create adds a tier to an event that is not cancelled. At most one
// tier per ticket type and event; a second one reports
// ErrDuplicateTicketType.
func (s *TierService) Create(ctx context.Context, actor Actor, eventID uint64, in TierInput) (model.TicketTier, error) {
	if err := validateTierInput(in); err != nil {
		return model.TicketTier{}, err
	}
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return model.TicketTier{}, err
	}
	if !actor.CanManage(event.OrganizationID) {
		return model.TicketTier{}, repository.ErrForbidden
	}
	if event.Status == model.EventCancelled {
		return model.TicketTier{}, ErrEventCancelled
	}
	t := model.TicketTier{
		EventID:    eventID,
		TicketType: in.TicketType,
		Price:      in.Price,
		Quota:      in.Quota,
	}
	if err := s.tiers.Create(ctx, &t); err != nil {
		if err == repository.ErrDuplicate {
			return model.TicketTier{}, ErrDuplicateTicketType
		}
		return model.TicketTier{}, err
	}
	return t, nil
}

// Update rewrites price and quota. The new quota must cover the
// tickets already sold, verified against the sold count re-read under
// the row lock. The ticket type is immutable; delete and recreate the
// tier to change it.
func (s *TierService) Update(ctx context.Context, actor Actor, tierID uint64, price decimal.Decimal, quota uint32) (model.TicketTier, error) {
	if price.IsNegative() {
		return model.TicketTier{}, ErrInvalidPrice
	}
	if quota < 1 {
		return model.TicketTier{}, ErrInvalidQuota
	}
	var updated model.TicketTier
	err := s.tiers.WithTx(ctx, func(ctx context.Context) error {
		t, err := s.tiers.GetForUpdate(ctx, tierID)
		if err != nil {
			return err
		}
		event, err := s.events.GetByID(ctx, t.EventID)
		if err != nil {
			return err
		}
		if !actor.CanManage(event.OrganizationID) {
			return repository.ErrForbidden
		}
		if event.Status == model.EventCancelled {
			return ErrEventCancelled
		}
		if quota < t.Sold {
			return ErrQuotaBelowSold
		}
		t.Price = price
		t.Quota = quota
		if err := s.tiers.Update(ctx, &t); err != nil {
			return err
		}
		updated = t
		return nil
	})
	if err != nil {
		return model.TicketTier{}, err
	}
	return updated, nil
}

// ListForEvent returns all tiers of an event, cheapest first.
func (s *TierService) ListForEvent(ctx context.Context, eventID uint64) ([]model.TicketTier, error) {
	if _, err := s.events.GetByID(ctx, eventID); err != nil {
		return nil, err
	}
	return s.tiers.ListByEvent(ctx, eventID)
}

// Delete soft-deletes a tier that has no active bookings holding its
// inventory.
func (s *TierService) Delete(ctx context.Context, actor Actor, tierID uint64) error {
	t, err := s.tiers.GetByID(ctx, tierID)
	if err != nil {
		return err
	}
	event, err := s.events.GetByID(ctx, t.EventID)
	if err != nil {
		return err
	}
	if !actor.CanManage(event.OrganizationID) {
		return repository.ErrForbidden
	}
	return s.tiers.SoftDelete(ctx, tierID)
}
