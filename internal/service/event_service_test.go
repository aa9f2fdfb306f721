package service

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/btick/btick/internal/model"
	"github.com/btick/btick/internal/queue"
	"github.com/btick/btick/internal/repository"
)

// EventStore surface for fakeEvents.

func (f *fakeEvents) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(fakeTxKey{}) != nil {
		return fn(ctx)
	}
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	return fn(context.WithValue(ctx, fakeTxKey{}, true))
}

func (f *fakeEvents) Create(ctx context.Context, e *model.Event) error {
	defer f.w.lock(ctx)()
	for _, other := range f.w.events {
		if other.Title == e.Title {
			return repository.ErrDuplicate
		}
	}
	e.ID = f.w.id()
	e.Status = model.EventDraft
	f.w.events[e.ID] = *e
	return nil
}

func (f *fakeEvents) GetForUpdate(ctx context.Context, id uint64) (model.Event, error) {
	return f.GetByID(ctx, id)
}

func (f *fakeEvents) ListPublished(ctx context.Context, now time.Time) ([]model.Event, error) {
	defer f.w.lock(ctx)()
	out := make([]model.Event, 0)
	for _, e := range f.w.events {
		if e.Status == model.EventPublished && e.EndsAt.After(now) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out, nil
}

func (f *fakeEvents) ListByOrganization(ctx context.Context, orgID uint64) ([]model.Event, error) {
	defer f.w.lock(ctx)()
	out := make([]model.Event, 0)
	for _, e := range f.w.events {
		if e.OrganizationID == orgID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeEvents) Update(ctx context.Context, e *model.Event) error {
	defer f.w.lock(ctx)()
	cur, ok := f.w.events[e.ID]
	if !ok {
		return repository.ErrEventNotFound
	}
	if cur.Version != e.Version {
		return repository.ErrStaleWrite
	}
	e.Version++
	f.w.events[e.ID] = *e
	return nil
}

func (f *fakeEvents) SetStatus(ctx context.Context, id uint64, status model.EventStatus, version uint64) error {
	defer f.w.lock(ctx)()
	e, ok := f.w.events[id]
	if !ok {
		return repository.ErrEventNotFound
	}
	if e.Version != version {
		return repository.ErrStaleWrite
	}
	e.Status = status
	e.Version++
	f.w.events[id] = e
	return nil
}

func (f *fakeEvents) HasTiers(ctx context.Context, eventID uint64) (bool, error) {
	defer f.w.lock(ctx)()
	for _, t := range f.w.tiers {
		if t.EventID == eventID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeEvents) SoftDelete(ctx context.Context, id uint64) error {
	defer f.w.lock(ctx)()
	if _, ok := f.w.events[id]; !ok {
		return repository.ErrEventNotFound
	}
	delete(f.w.events, id)
	return nil
}

// TierLister surface for fakeTiers.

func (f *fakeTiers) ListByEvent(ctx context.Context, eventID uint64) ([]model.TicketTier, error) {
	defer f.w.lock(ctx)()
	out := make([]model.TicketTier, 0)
	for _, t := range f.w.tiers {
		if t.EventID == eventID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Price.LessThan(out[j].Price) })
	return out, nil
}

func (f *fakeTiers) AvailableByEvent(ctx context.Context, eventID uint64) ([]model.TicketTier, error) {
	all, err := f.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, t := range all {
		if t.Available() > 0 {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeBookings) ActiveByEvent(ctx context.Context, eventID uint64) ([]uint64, error) {
	defer f.w.lock(ctx)()
	out := make([]uint64, 0)
	for id, b := range f.w.bookings {
		if b.Status == model.BookingCancelled {
			continue
		}
		if f.w.tiers[b.TierID].EventID == eventID {
			out = append(out, id)
		}
	}
	return out, nil
}

type fakeVenues struct{ venues map[uint64]model.Venue }

func (f *fakeVenues) GetByID(_ context.Context, id uint64) (model.Venue, error) {
	v, ok := f.venues[id]
	if !ok {
		return model.Venue{}, repository.ErrVenueNotFound
	}
	return v, nil
}

type fakeCategories struct{ categories map[uint64]model.EventCategory }

func (f *fakeCategories) GetByID(_ context.Context, id uint64) (model.EventCategory, error) {
	c, ok := f.categories[id]
	if !ok {
		return model.EventCategory{}, repository.ErrCategoryNotFound
	}
	return c, nil
}

type fakeEventPublisher struct{ cancelled []queue.EventCancelledEvent }

func (p *fakeEventPublisher) EventCancelled(_ context.Context, ev queue.EventCancelledEvent) error {
	p.cancelled = append(p.cancelled, ev)
	return nil
}

type eventFixture struct {
	w          *world
	clk        *stepClock
	bookingPub *fakePublisher
	eventPub   *fakeEventPublisher
	bookings   *BookingService
	svc        *EventService
	orgID      uint64
	venueID    uint64
	categoryID uint64
}

func newEventFixture(t *testing.T) *eventFixture {
	t.Helper()
	w := newWorld()
	clk := newStepClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	bookingPub := &fakePublisher{}
	eventPub := &fakeEventPublisher{}

	bookings := NewBookingService(&fakeBookings{w: w}, &fakeTiers{w: w}, &fakeEvents{w: w}, bookingPub, clk, 15*time.Minute)
	venues := &fakeVenues{venues: map[uint64]model.Venue{1: {ID: 1, Name: "City Hall"}}}
	categories := &fakeCategories{categories: map[uint64]model.EventCategory{1: {ID: 1, Name: "Music"}}}
	svc := NewEventService(&fakeEvents{w: w}, venues, categories, &fakeTiers{w: w}, &fakeBookings{w: w}, bookings, eventPub, clk)

	return &eventFixture{
		w:          w,
		clk:        clk,
		bookingPub: bookingPub,
		eventPub:   eventPub,
		bookings:   bookings,
		svc:        svc,
		orgID:      42,
		venueID:    1,
		categoryID: 1,
	}
}

func (f *eventFixture) manager() Actor {
	return Actor{
		UserID:   50,
		Role:     model.RoleOrganizer,
		OrgRoles: map[uint64]model.OrgRole{f.orgID: model.OrgRoleOwner},
	}
}

func (f *eventFixture) input(title string) EventInput {
	return EventInput{
		OrganizationID: f.orgID,
		VenueID:        f.venueID,
		CategoryID:     f.categoryID,
		Title:          title,
		StartsAt:       f.clk.Now().Add(48 * time.Hour),
		EndsAt:         f.clk.Now().Add(52 * time.Hour),
	}
}

func (f *eventFixture) addTier(t *testing.T, eventID uint64, typ model.TicketType, price string, quota uint32) uint64 {
	t.Helper()
	id := f.w.id()
	f.w.tiers[id] = model.TicketTier{
		ID:         id,
		EventID:    eventID,
		TicketType: typ,
		Price:      decimal.RequireFromString(price),
		Quota:      quota,
	}
	return id
}

func TestEventCreateValidation(t *testing.T) {
	f := newEventFixture(t)
	ctx := context.Background()
	mgr := f.manager()

	_, err := f.svc.Create(ctx, customer(7), f.input("Nope"))
	assert.ErrorIs(t, err, repository.ErrForbidden)

	in := f.input("Backwards")
	in.StartsAt, in.EndsAt = in.EndsAt, in.StartsAt
	_, err = f.svc.Create(ctx, mgr, in)
	assert.ErrorIs(t, err, ErrInvalidSchedule)

	in = f.input("Yesterday")
	in.StartsAt = f.clk.Now().Add(-time.Hour)
	_, err = f.svc.Create(ctx, mgr, in)
	assert.ErrorIs(t, err, ErrInvalidSchedule)

	in = f.input("Nowhere")
	in.VenueID = 99
	_, err = f.svc.Create(ctx, mgr, in)
	assert.ErrorIs(t, err, repository.ErrVenueNotFound)

	e, err := f.svc.Create(ctx, mgr, f.input("Spring Jazz Night"))
	require.NoError(t, err)
	assert.Equal(t, model.EventDraft, e.Status)

	_, err = f.svc.Create(ctx, mgr, f.input("Spring Jazz Night"))
	assert.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestPublishGate(t *testing.T) {
	f := newEventFixture(t)
	ctx := context.Background()
	mgr := f.manager()

	e, err := f.svc.Create(ctx, mgr, f.input("Spring Jazz Night"))
	require.NoError(t, err)

	// No tiers yet.
	_, err = f.svc.Publish(ctx, mgr, e.ID)
	assert.ErrorIs(t, err, ErrNoTicketTiers)

	f.addTier(t, e.ID, model.TicketStandard, "25.00", 100)

	_, err = f.svc.Publish(ctx, customer(7), e.ID)
	assert.ErrorIs(t, err, repository.ErrForbidden)

	published, err := f.svc.Publish(ctx, mgr, e.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EventPublished, published.Status)

	// Already published.
	_, err = f.svc.Publish(ctx, mgr, e.ID)
	assert.ErrorIs(t, err, ErrNotDraft)
}

func TestPublishStartedDraft(t *testing.T) {
	f := newEventFixture(t)
	ctx := context.Background()
	mgr := f.manager()

	e, err := f.svc.Create(ctx, mgr, f.input("Spring Jazz Night"))
	require.NoError(t, err)
	f.addTier(t, e.ID, model.TicketStandard, "25.00", 100)

	f.clk.advance(72 * time.Hour)
	_, err = f.svc.Publish(ctx, mgr, e.ID)
	assert.ErrorIs(t, err, ErrEventAlreadyStarted)
}

func TestPublishCancelledEvent(t *testing.T) {
	f := newEventFixture(t)
	ctx := context.Background()
	mgr := f.manager()

	e, err := f.svc.Create(ctx, mgr, f.input("Spring Jazz Night"))
	require.NoError(t, err)
	require.NoError(t, f.svc.Cancel(ctx, mgr, e.ID))

	// Cancelled is just another non-draft state to the publish gate.
	_, err = f.svc.Publish(ctx, mgr, e.ID)
	assert.ErrorIs(t, err, ErrNotDraft)
}

func TestEventCancelCascade(t *testing.T) {
	f := newEventFixture(t)
	ctx := context.Background()
	mgr := f.manager()

	e, err := f.svc.Create(ctx, mgr, f.input("Spring Jazz Night"))
	require.NoError(t, err)
	tierID := f.addTier(t, e.ID, model.TicketStandard, "25.00", 100)
	_, err = f.svc.Publish(ctx, mgr, e.ID)
	require.NoError(t, err)

	pending, err := f.bookings.Create(ctx, customer(1), tierID, 2)
	require.NoError(t, err)
	confirmedB, err := f.bookings.Create(ctx, customer(2), tierID, 3)
	require.NoError(t, err)
	_, err = f.bookings.Confirm(ctx, customer(2), confirmedB.ID)
	require.NoError(t, err)
	require.Equal(t, uint32(5), f.w.tiers[tierID].Sold)

	require.NoError(t, f.svc.Cancel(ctx, mgr, e.ID))

	assert.Equal(t, model.EventCancelled, f.w.events[e.ID].Status)
	assert.Equal(t, model.BookingCancelled, f.w.bookings[pending.ID].Status)
	assert.Equal(t, model.BookingCancelled, f.w.bookings[confirmedB.ID].Status)
	assert.Equal(t, uint32(0), f.w.tiers[tierID].Sold)

	require.Len(t, f.eventPub.cancelled, 1)
	assert.Equal(t, e.ID, f.eventPub.cancelled[0].EventID)
	assert.ElementsMatch(t,
		[]string{queue.ReasonEventCancelled, queue.ReasonEventCancelled},
		f.bookingPub.reasons())

	// Cancelling again is rejected, and the cascade already ran.
	err = f.svc.Cancel(ctx, mgr, e.ID)
	assert.ErrorIs(t, err, ErrAlreadyCancelled)
	assert.Equal(t, uint32(0), f.w.tiers[tierID].Sold)
}

func TestEventUpdate(t *testing.T) {
	f := newEventFixture(t)
	ctx := context.Background()
	mgr := f.manager()

	e, err := f.svc.Create(ctx, mgr, f.input("Spring Jazz Night"))
	require.NoError(t, err)

	in := f.input("Spring Jazz Night, Extended")
	updated, err := f.svc.Update(ctx, mgr, e.ID, in)
	require.NoError(t, err)
	assert.Equal(t, "Spring Jazz Night, Extended", updated.Title)
	assert.Equal(t, "Spring Jazz Night, Extended", f.w.events[e.ID].Title)

	_, err = f.svc.Update(ctx, customer(7), e.ID, in)
	assert.ErrorIs(t, err, repository.ErrForbidden)

	f.clk.advance(72 * time.Hour)
	_, err = f.svc.Update(ctx, mgr, e.ID, in)
	assert.ErrorIs(t, err, ErrEventAlreadyStarted)
}

func TestAvailableTiers(t *testing.T) {
	f := newEventFixture(t)
	ctx := context.Background()
	mgr := f.manager()

	e, err := f.svc.Create(ctx, mgr, f.input("Spring Jazz Night"))
	require.NoError(t, err)
	f.addTier(t, e.ID, model.TicketVIP, "80.00", 10)
	cheapID := f.addTier(t, e.ID, model.TicketStandard, "25.00", 2)

	// Draft events stay hidden from customers but not their managers.
	_, err = f.svc.AvailableTiers(ctx, customer(7), e.ID)
	assert.ErrorIs(t, err, repository.ErrEventNotFound)
	tiers, err := f.svc.AvailableTiers(ctx, mgr, e.ID)
	require.NoError(t, err)
	assert.Len(t, tiers, 2)

	_, err = f.svc.Publish(ctx, mgr, e.ID)
	require.NoError(t, err)

	tiers, err = f.svc.AvailableTiers(ctx, customer(7), e.ID)
	require.NoError(t, err)
	require.Len(t, tiers, 2)
	// Cheapest first, prices with two decimals.
	assert.Equal(t, cheapID, tiers[0].TierID)
	assert.Equal(t, "25.00", tiers[0].Price)
	assert.Equal(t, uint32(2), tiers[0].Available)

	// Selling out a tier drops it from the listing.
	_, err = f.bookings.Create(ctx, customer(1), cheapID, 2)
	require.NoError(t, err)
	tiers, err = f.svc.AvailableTiers(ctx, customer(7), e.ID)
	require.NoError(t, err)
	require.Len(t, tiers, 1)
	assert.Equal(t, model.TicketVIP, tiers[0].TicketType)

	require.NoError(t, f.svc.Cancel(ctx, mgr, e.ID))
	_, err = f.svc.AvailableTiers(ctx, customer(7), e.ID)
	assert.ErrorIs(t, err, ErrEventCancelled)
}

func TestGetHidesDrafts(t *testing.T) {
	f := newEventFixture(t)
	ctx := context.Background()
	mgr := f.manager()

	e, err := f.svc.Create(ctx, mgr, f.input("Spring Jazz Night"))
	require.NoError(t, err)

	_, err = f.svc.Get(ctx, customer(7), e.ID)
	assert.ErrorIs(t, err, repository.ErrEventNotFound)
	_, err = f.svc.Get(ctx, Actor{}, e.ID)
	assert.ErrorIs(t, err, repository.ErrEventNotFound)

	got, err := f.svc.Get(ctx, mgr, e.ID)
	require.NoError(t, err)
	assert.Equal(t, e.ID, got.ID)

	f.addTier(t, e.ID, model.TicketStandard, "25.00", 10)
	_, err = f.svc.Publish(ctx, mgr, e.ID)
	require.NoError(t, err)

	got, err = f.svc.Get(ctx, customer(7), e.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EventPublished, got.Status)
}

func TestListForOrganization(t *testing.T) {
	f := newEventFixture(t)
	ctx := context.Background()
	mgr := f.manager()

	_, err := f.svc.Create(ctx, mgr, f.input("Spring Jazz Night"))
	require.NoError(t, err)

	_, err = f.svc.ListForOrganization(ctx, customer(7), f.orgID)
	assert.ErrorIs(t, err, repository.ErrForbidden)

	events, err := f.svc.ListForOrganization(ctx, mgr, f.orgID)
	require.NoError(t, err)
	assert.Len(t, events, 1)

	events, err = f.svc.ListForOrganization(ctx, staff(), f.orgID)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}
