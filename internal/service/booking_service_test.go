package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/btick/btick/internal/model"
	"github.com/btick/btick/internal/queue"
	"github.com/btick/btick/internal/repository"
)

// stepClock is a Clock whose time tests can move forward explicitly.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock(t time.Time) *stepClock { return &stepClock{now: t.UTC()} }

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// world is an in-memory stand-in for the database. WithTx takes the
// single lock for the whole transaction, which models the serializing
// effect of the tier row lock; methods called inside the transaction
// skip locking via the context marker.
type world struct {
	mu       sync.Mutex
	events   map[uint64]model.Event
	tiers    map[uint64]model.TicketTier
	bookings map[uint64]model.Booking
	nextID   uint64
}

func newWorld() *world {
	return &world{
		events:   make(map[uint64]model.Event),
		tiers:    make(map[uint64]model.TicketTier),
		bookings: make(map[uint64]model.Booking),
	}
}

type fakeTxKey struct{}

func (w *world) lock(ctx context.Context) func() {
	if ctx.Value(fakeTxKey{}) != nil {
		return func() {}
	}
	w.mu.Lock()
	return w.mu.Unlock
}

func (w *world) id() uint64 {
	w.nextID++
	return w.nextID
}

type fakeEvents struct{ w *world }

func (f *fakeEvents) GetByID(ctx context.Context, id uint64) (model.Event, error) {
	defer f.w.lock(ctx)()
	e, ok := f.w.events[id]
	if !ok {
		return model.Event{}, repository.ErrEventNotFound
	}
	return e, nil
}

type fakeTiers struct{ w *world }

func (f *fakeTiers) GetByID(ctx context.Context, id uint64) (model.TicketTier, error) {
	defer f.w.lock(ctx)()
	t, ok := f.w.tiers[id]
	if !ok {
		return model.TicketTier{}, repository.ErrTierNotFound
	}
	return t, nil
}

func (f *fakeTiers) GetForUpdate(ctx context.Context, id uint64) (model.TicketTier, error) {
	return f.GetByID(ctx, id)
}

func (f *fakeTiers) AddSold(ctx context.Context, id uint64, qty uint32) error {
	defer f.w.lock(ctx)()
	t, ok := f.w.tiers[id]
	if !ok || t.Sold+qty > t.Quota {
		return repository.ErrConflict
	}
	t.Sold += qty
	t.Version++
	f.w.tiers[id] = t
	return nil
}

func (f *fakeTiers) SubtractSold(ctx context.Context, id uint64, qty uint32) error {
	defer f.w.lock(ctx)()
	t, ok := f.w.tiers[id]
	if !ok || t.Sold < qty {
		return repository.ErrConflict
	}
	t.Sold -= qty
	t.Version++
	f.w.tiers[id] = t
	return nil
}

type fakeBookings struct{ w *world }

func (f *fakeBookings) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(fakeTxKey{}) != nil {
		return fn(ctx)
	}
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	return fn(context.WithValue(ctx, fakeTxKey{}, true))
}

func (f *fakeBookings) Create(ctx context.Context, b *model.Booking) error {
	defer f.w.lock(ctx)()
	b.ID = f.w.id()
	b.Status = model.BookingPending
	f.w.bookings[b.ID] = *b
	return nil
}

func (f *fakeBookings) GetByID(ctx context.Context, id uint64) (model.Booking, error) {
	defer f.w.lock(ctx)()
	b, ok := f.w.bookings[id]
	if !ok {
		return model.Booking{}, repository.ErrBookingNotFound
	}
	return b, nil
}

func (f *fakeBookings) GetForUpdate(ctx context.Context, id uint64) (model.Booking, error) {
	return f.GetByID(ctx, id)
}

func (f *fakeBookings) SetStatus(ctx context.Context, id uint64, status model.BookingStatus, expiresAt *time.Time, version uint64) error {
	defer f.w.lock(ctx)()
	b, ok := f.w.bookings[id]
	if !ok {
		return repository.ErrBookingNotFound
	}
	if b.Version != version {
		return repository.ErrStaleWrite
	}
	b.Status = status
	b.ExpiresAt = expiresAt
	b.Version++
	f.w.bookings[id] = b
	return nil
}

func (f *fakeBookings) GetDetail(ctx context.Context, id uint64) (model.BookingDetail, error) {
	defer f.w.lock(ctx)()
	b, ok := f.w.bookings[id]
	if !ok {
		return model.BookingDetail{}, repository.ErrBookingNotFound
	}
	t := f.w.tiers[b.TierID]
	e := f.w.events[t.EventID]
	return model.BookingDetail{
		Booking:    b,
		TicketType: t.TicketType,
		UnitPrice:  t.Price,
		TotalPrice: b.TotalPrice(t.Price),
		EventID:    e.ID,
		EventTitle: e.Title,
		StartsAt:   e.StartsAt,
	}, nil
}

func (f *fakeBookings) ListByUser(ctx context.Context, userID uint64) ([]model.BookingDetail, error) {
	defer f.w.lock(ctx)()
	out := make([]model.BookingDetail, 0)
	for _, b := range f.w.bookings {
		if b.UserID != userID {
			continue
		}
		t := f.w.tiers[b.TierID]
		out = append(out, model.BookingDetail{
			Booking:    b,
			TicketType: t.TicketType,
			UnitPrice:  t.Price,
			TotalPrice: b.TotalPrice(t.Price),
			EventID:    t.EventID,
		})
	}
	return out, nil
}

func (f *fakeBookings) ExpiredPending(ctx context.Context, now time.Time, limit int) ([]uint64, error) {
	defer f.w.lock(ctx)()
	out := make([]uint64, 0)
	for id, b := range f.w.bookings {
		if b.Status == model.BookingPending && b.Expired(now) {
			out = append(out, id)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// fakePublisher records published messages.
type fakePublisher struct {
	mu        sync.Mutex
	confirmed []queue.BookingConfirmedEvent
	cancelled []queue.BookingCancelledEvent
}

func (p *fakePublisher) BookingConfirmed(_ context.Context, ev queue.BookingConfirmedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.confirmed = append(p.confirmed, ev)
	return nil
}

func (p *fakePublisher) BookingCancelled(_ context.Context, ev queue.BookingCancelledEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelled = append(p.cancelled, ev)
	return nil
}

func (p *fakePublisher) reasons() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.cancelled))
	for _, ev := range p.cancelled {
		out = append(out, ev.Reason)
	}
	return out
}

type fixture struct {
	w       *world
	svc     *BookingService
	clk     *stepClock
	pub     *fakePublisher
	eventID uint64
}

func newFixture(t *testing.T, quota uint32) (*fixture, uint64) {
	t.Helper()
	w := newWorld()
	clk := newStepClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	pub := &fakePublisher{}

	eventID := w.id()
	w.events[eventID] = model.Event{
		ID:       eventID,
		Title:    "Spring Jazz Night",
		StartsAt: clk.Now().Add(48 * time.Hour),
		EndsAt:   clk.Now().Add(52 * time.Hour),
		Status:   model.EventPublished,
	}
	tierID := w.id()
	w.tiers[tierID] = model.TicketTier{
		ID:         tierID,
		EventID:    eventID,
		TicketType: model.TicketStandard,
		Price:      decimal.RequireFromString("25.00"),
		Quota:      quota,
	}

	svc := NewBookingService(&fakeBookings{w: w}, &fakeTiers{w: w}, &fakeEvents{w: w}, pub, clk, 15*time.Minute)
	return &fixture{w: w, svc: svc, clk: clk, pub: pub, eventID: eventID}, tierID
}

func customer(id uint64) Actor { return Actor{UserID: id, Role: model.RoleCustomer} }

func staff() Actor { return Actor{UserID: 999, Role: model.RoleSupport} }

func TestCreateBookingReservesInventory(t *testing.T) {
	f, tierID := newFixture(t, 10)
	ctx := context.Background()

	b, err := f.svc.Create(ctx, customer(7), tierID, 3)
	require.NoError(t, err)
	assert.Equal(t, model.BookingPending, b.Status)
	assert.Equal(t, uint32(3), b.Quantity)
	require.NotNil(t, b.ExpiresAt)
	assert.Equal(t, f.clk.Now().Add(15*time.Minute), *b.ExpiresAt)
	assert.Equal(t, uint32(3), f.w.tiers[tierID].Sold)
}

func TestCreateBookingQuantityBounds(t *testing.T) {
	f, tierID := newFixture(t, 10)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, customer(7), tierID, 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = f.svc.Create(ctx, customer(7), tierID, 11)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	assert.Equal(t, uint32(0), f.w.tiers[tierID].Sold)
}

func TestCreateBookingInsufficientInventory(t *testing.T) {
	f, tierID := newFixture(t, 5)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, customer(7), tierID, 6)
	var insufficient *InsufficientInventoryError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, uint32(5), insufficient.Available)
	assert.Equal(t, uint32(0), f.w.tiers[tierID].Sold)
}

func TestCreateBookingEventGate(t *testing.T) {
	f, tierID := newFixture(t, 10)
	ctx := context.Background()

	ev := f.w.events[f.eventID]
	ev.Status = model.EventDraft
	f.w.events[f.eventID] = ev
	_, err := f.svc.Create(ctx, customer(7), tierID, 1)
	assert.ErrorIs(t, err, ErrEventNotBookable)

	ev.Status = model.EventCancelled
	f.w.events[f.eventID] = ev
	_, err = f.svc.Create(ctx, customer(7), tierID, 1)
	assert.ErrorIs(t, err, ErrEventNotBookable)

	ev.Status = model.EventPublished
	f.w.events[f.eventID] = ev
	f.clk.advance(72 * time.Hour)
	_, err = f.svc.Create(ctx, customer(7), tierID, 1)
	assert.ErrorIs(t, err, ErrEventAlreadyStarted)
}

func TestConfirmBooking(t *testing.T) {
	f, tierID := newFixture(t, 10)
	ctx := context.Background()

	b, err := f.svc.Create(ctx, customer(7), tierID, 2)
	require.NoError(t, err)

	got, err := f.svc.Confirm(ctx, customer(7), b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingConfirmed, got.Status)
	assert.Nil(t, got.ExpiresAt)
	// Confirm does not move inventory.
	assert.Equal(t, uint32(2), f.w.tiers[tierID].Sold)
	require.Len(t, f.pub.confirmed, 1)
	assert.Equal(t, b.ID, f.pub.confirmed[0].BookingID)
	assert.Equal(t, "50", f.pub.confirmed[0].TotalPrice.String())
}

func TestConfirmExpiredBooking(t *testing.T) {
	f, tierID := newFixture(t, 10)
	ctx := context.Background()

	b, err := f.svc.Create(ctx, customer(7), tierID, 1)
	require.NoError(t, err)

	f.clk.advance(16 * time.Minute)
	_, err = f.svc.Confirm(ctx, customer(7), b.ID)
	assert.ErrorIs(t, err, ErrBookingExpired)
	// The hold stays until the reaper takes it back.
	assert.Equal(t, uint32(1), f.w.tiers[tierID].Sold)
}

func TestConfirmOwnership(t *testing.T) {
	f, tierID := newFixture(t, 10)
	ctx := context.Background()

	b, err := f.svc.Create(ctx, customer(7), tierID, 1)
	require.NoError(t, err)

	_, err = f.svc.Confirm(ctx, customer(8), b.ID)
	assert.ErrorIs(t, err, repository.ErrForbidden)

	_, err = f.svc.Confirm(ctx, staff(), b.ID)
	assert.NoError(t, err)
}

func TestConfirmTwice(t *testing.T) {
	f, tierID := newFixture(t, 10)
	ctx := context.Background()

	b, err := f.svc.Create(ctx, customer(7), tierID, 1)
	require.NoError(t, err)
	_, err = f.svc.Confirm(ctx, customer(7), b.ID)
	require.NoError(t, err)
	_, err = f.svc.Confirm(ctx, customer(7), b.ID)
	assert.ErrorIs(t, err, ErrNotPending)
}

func TestCancelReleasesOnce(t *testing.T) {
	f, tierID := newFixture(t, 10)
	ctx := context.Background()

	b, err := f.svc.Create(ctx, customer(7), tierID, 4)
	require.NoError(t, err)
	require.Equal(t, uint32(4), f.w.tiers[tierID].Sold)

	require.NoError(t, f.svc.Cancel(ctx, customer(7), b.ID))
	assert.Equal(t, uint32(0), f.w.tiers[tierID].Sold)

	err = f.svc.Cancel(ctx, customer(7), b.ID)
	assert.ErrorIs(t, err, ErrAlreadyCancelled)
	assert.Equal(t, uint32(0), f.w.tiers[tierID].Sold)
	assert.Equal(t, []string{queue.ReasonUserCancelled}, f.pub.reasons())
}

func TestCancelAfterEventStart(t *testing.T) {
	f, tierID := newFixture(t, 10)
	ctx := context.Background()

	b, err := f.svc.Create(ctx, customer(7), tierID, 1)
	require.NoError(t, err)
	_, err = f.svc.Confirm(ctx, customer(7), b.ID)
	require.NoError(t, err)

	f.clk.advance(72 * time.Hour)
	err = f.svc.Cancel(ctx, customer(7), b.ID)
	assert.ErrorIs(t, err, ErrEventAlreadyStarted)
	assert.Equal(t, uint32(1), f.w.tiers[tierID].Sold)
}

func TestRefund(t *testing.T) {
	f, tierID := newFixture(t, 10)
	ctx := context.Background()

	b, err := f.svc.Create(ctx, customer(7), tierID, 2)
	require.NoError(t, err)
	_, err = f.svc.Confirm(ctx, customer(7), b.ID)
	require.NoError(t, err)

	// Customers cannot refund, even their own booking.
	err = f.svc.Refund(ctx, customer(7), b.ID)
	assert.ErrorIs(t, err, repository.ErrForbidden)

	// Refunds work after the event has started.
	f.clk.advance(72 * time.Hour)
	require.NoError(t, f.svc.Refund(ctx, staff(), b.ID))
	assert.Equal(t, uint32(0), f.w.tiers[tierID].Sold)
	assert.Equal(t, model.BookingCancelled, f.w.bookings[b.ID].Status)
	assert.Equal(t, []string{queue.ReasonRefunded}, f.pub.reasons())

	// A second refund reports the terminal state and touches nothing.
	err = f.svc.Refund(ctx, staff(), b.ID)
	assert.ErrorIs(t, err, ErrAlreadyCancelled)
	assert.Equal(t, uint32(0), f.w.tiers[tierID].Sold)
}

func TestRefundPendingReleasesHold(t *testing.T) {
	f, tierID := newFixture(t, 10)
	ctx := context.Background()

	b, err := f.svc.Create(ctx, customer(7), tierID, 3)
	require.NoError(t, err)
	require.Equal(t, uint32(3), f.w.tiers[tierID].Sold)

	require.NoError(t, f.svc.Refund(ctx, staff(), b.ID))
	assert.Equal(t, model.BookingCancelled, f.w.bookings[b.ID].Status)
	assert.Equal(t, uint32(0), f.w.tiers[tierID].Sold)
	assert.Equal(t, []string{queue.ReasonRefunded}, f.pub.reasons())
}

func TestRefundAfterUserCancel(t *testing.T) {
	f, tierID := newFixture(t, 10)
	ctx := context.Background()

	b, err := f.svc.Create(ctx, customer(7), tierID, 1)
	require.NoError(t, err)
	require.NoError(t, f.svc.Cancel(ctx, customer(7), b.ID))

	err = f.svc.Refund(ctx, staff(), b.ID)
	assert.ErrorIs(t, err, ErrAlreadyCancelled)
	assert.Equal(t, uint32(0), f.w.tiers[tierID].Sold)
	assert.Equal(t, []string{queue.ReasonUserCancelled}, f.pub.reasons())
}

func TestSweepExpired(t *testing.T) {
	f, tierID := newFixture(t, 10)
	ctx := context.Background()

	b1, err := f.svc.Create(ctx, customer(1), tierID, 2)
	require.NoError(t, err)
	b2, err := f.svc.Create(ctx, customer(2), tierID, 3)
	require.NoError(t, err)

	f.clk.advance(10 * time.Minute)
	fresh, err := f.svc.Create(ctx, customer(3), tierID, 1)
	require.NoError(t, err)

	f.clk.advance(6 * time.Minute) // b1 and b2 past deadline, fresh not yet

	n, err := f.svc.SweepExpired(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, model.BookingCancelled, f.w.bookings[b1.ID].Status)
	assert.Equal(t, model.BookingCancelled, f.w.bookings[b2.ID].Status)
	assert.Equal(t, model.BookingPending, f.w.bookings[fresh.ID].Status)
	assert.Equal(t, uint32(1), f.w.tiers[tierID].Sold)
	assert.ElementsMatch(t, []string{queue.ReasonExpired, queue.ReasonExpired}, f.pub.reasons())

	// A second sweep finds nothing.
	n, err = f.svc.SweepExpired(ctx, 100)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestConcurrentCreateNoOversell(t *testing.T) {
	f, tierID := newFixture(t, 10)
	ctx := context.Background()

	const requests = 20
	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		ok           int
		insufficient int
	)
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func(user uint64) {
			defer wg.Done()
			_, err := f.svc.Create(ctx, customer(user), tierID, 1)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
				return
			}
			var ie *InsufficientInventoryError
			if assert.ErrorAs(t, err, &ie) {
				insufficient++
			}
		}(uint64(i + 1))
	}
	wg.Wait()

	assert.Equal(t, 10, ok)
	assert.Equal(t, 10, insufficient)
	tier := f.w.tiers[tierID]
	assert.Equal(t, uint32(10), tier.Sold)
	assert.LessOrEqual(t, tier.Sold, tier.Quota)
}

func TestGetAndListOwnership(t *testing.T) {
	f, tierID := newFixture(t, 10)
	ctx := context.Background()

	b, err := f.svc.Create(ctx, customer(7), tierID, 1)
	require.NoError(t, err)

	d, err := f.svc.Get(ctx, customer(7), b.ID)
	require.NoError(t, err)
	assert.Equal(t, "25", d.UnitPrice.String())
	assert.Equal(t, "Spring Jazz Night", d.EventTitle)

	_, err = f.svc.Get(ctx, customer(8), b.ID)
	assert.ErrorIs(t, err, repository.ErrForbidden)

	_, err = f.svc.ListForUser(ctx, customer(8), 7)
	assert.ErrorIs(t, err, repository.ErrForbidden)

	list, err := f.svc.ListForUser(ctx, staff(), 7)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
