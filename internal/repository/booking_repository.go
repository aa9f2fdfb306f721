package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/btick/btick/internal/model"
)

// BookingRepo provides data access to the bookings table. Status
// moves are versioned so a reaper sweep and a user confirm racing on
// the same booking cannot both win.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingCols = "id, user_id, tier_id, quantity, status, expires_at, " + entityCols

func scanBooking(row interface{ Scan(...any) error }) (model.Booking, error) {
	var (
		b       model.Booking
		expires sql.NullTime
	)
	es := entityScan{e: &b.Entity}
	dest := append([]any{&b.ID, &b.UserID, &b.TierID, &b.Quantity, &b.Status, &expires}, es.dest()...)
	if err := row.Scan(dest...); err != nil {
		return model.Booking{}, err
	}
	es.finish()
	if expires.Valid {
		t := expires.Time
		b.ExpiresAt = &t
	}
	return b, nil
}

// WithTx runs fn inside a transaction shared through the context.
func (r *BookingRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return runInTx(ctx, r.db, fn)
}

// Create inserts a PENDING booking with its confirmation deadline.
// The caller reserves the inventory in the same transaction before
// calling this.
func (r *BookingRepo) Create(ctx context.Context, b *model.Booking) error {
	var expires any
	if b.ExpiresAt != nil {
		expires = b.ExpiresAt.UTC()
	}
	res, err := q(ctx, r.db).ExecContext(ctx,
		"INSERT INTO bookings (user_id, tier_id, quantity, status, expires_at) VALUES (?, ?, ?, ?, ?)",
		b.UserID, b.TierID, b.Quantity, model.BookingPending, expires)
	if err != nil {
		return fmt.Errorf("create booking: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	got, err := r.GetByID(ctx, b.ID)
	if err != nil {
		return err
	}
	*b = got
	return nil
}

// GetByID returns a live booking or ErrBookingNotFound.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (model.Booking, error) {
	row := q(ctx, r.db).QueryRowContext(ctx,
		"SELECT "+bookingCols+" FROM bookings WHERE id = ? AND deleted_at IS NULL", id)
	b, err := scanBooking(row)
	if err == sql.ErrNoRows {
		return model.Booking{}, ErrBookingNotFound
	}
	if err != nil {
		return model.Booking{}, fmt.Errorf("get booking: %w", err)
	}
	return b, nil
}

// GetForUpdate locks the booking row for the remainder of the
// enclosing transaction. Lock ordering is tier before booking, so
// callers that also lock the tier must do that first. Must run inside
// WithTx.
func (r *BookingRepo) GetForUpdate(ctx context.Context, id uint64) (model.Booking, error) {
	row := q(ctx, r.db).QueryRowContext(ctx,
		"SELECT "+bookingCols+" FROM bookings WHERE id = ? AND deleted_at IS NULL FOR UPDATE", id)
	b, err := scanBooking(row)
	if err == sql.ErrNoRows {
		return model.Booking{}, ErrBookingNotFound
	}
	if err != nil {
		return model.Booking{}, mapLockError(fmt.Errorf("lock booking: %w", err))
	}
	return b, nil
}

// SetStatus moves the booking to a new status under the caller's
// version and rewrites the deadline (nil clears it, which every
// transition out of PENDING does).
func (r *BookingRepo) SetStatus(ctx context.Context, id uint64, status model.BookingStatus, expiresAt *time.Time, version uint64) error {
	var expires any
	if expiresAt != nil {
		expires = expiresAt.UTC()
	}
	res, err := q(ctx, r.db).ExecContext(ctx,
		"UPDATE bookings SET status = ?, expires_at = ?, version = version + 1 WHERE id = ? AND version = ? AND deleted_at IS NULL",
		status, expires, id, version)
	if err != nil {
		return mapLockError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return staleOrMissing(ctx, r.db, "bookings", id, ErrBookingNotFound)
	}
	return nil
}

const bookingDetailQuery = `
SELECT b.id, b.user_id, b.tier_id, b.quantity, b.status, b.expires_at,
       b.created_at, b.updated_at, b.is_active, b.deleted_at, b.version,
       t.ticket_type, t.price, e.id, e.title, e.starts_at
FROM bookings b
JOIN ticket_tiers t ON t.id = b.tier_id
JOIN events e ON e.id = t.event_id`

func scanBookingDetail(row interface{ Scan(...any) error }) (model.BookingDetail, error) {
	var (
		d       model.BookingDetail
		expires sql.NullTime
	)
	es := entityScan{e: &d.Entity}
	dest := append([]any{&d.ID, &d.UserID, &d.TierID, &d.Quantity, &d.Status, &expires}, es.dest()...)
	dest = append(dest, &d.TicketType, &d.UnitPrice, &d.EventID, &d.EventTitle, &d.StartsAt)
	if err := row.Scan(dest...); err != nil {
		return model.BookingDetail{}, err
	}
	es.finish()
	if expires.Valid {
		t := expires.Time
		d.ExpiresAt = &t
	}
	d.TotalPrice = d.Booking.TotalPrice(d.UnitPrice)
	return d, nil
}

// ListByUser returns a user's live bookings joined with tier and event
// details, newest first.
func (r *BookingRepo) ListByUser(ctx context.Context, userID uint64) ([]model.BookingDetail, error) {
	rows, err := q(ctx, r.db).QueryContext(ctx,
		bookingDetailQuery+" WHERE b.user_id = ? AND b.deleted_at IS NULL ORDER BY b.created_at DESC, b.id DESC",
		userID)
	if err != nil {
		return nil, fmt.Errorf("list user bookings: %w", err)
	}
	defer rows.Close()
	out := make([]model.BookingDetail, 0)
	for rows.Next() {
		d, err := scanBookingDetail(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// GetDetail returns one live booking joined with tier and event
// details, or ErrBookingNotFound.
func (r *BookingRepo) GetDetail(ctx context.Context, id uint64) (model.BookingDetail, error) {
	row := q(ctx, r.db).QueryRowContext(ctx,
		bookingDetailQuery+" WHERE b.id = ? AND b.deleted_at IS NULL", id)
	d, err := scanBookingDetail(row)
	if err == sql.ErrNoRows {
		return model.BookingDetail{}, ErrBookingNotFound
	}
	if err != nil {
		return model.BookingDetail{}, fmt.Errorf("get booking detail: %w", err)
	}
	return d, nil
}

// ExpiredPending returns IDs of PENDING bookings whose deadline has
// passed, oldest deadline first, capped at limit. The reaper fetches
// candidates here without locks and then revalidates each one under
// its row lock.
func (r *BookingRepo) ExpiredPending(ctx context.Context, now time.Time, limit int) ([]uint64, error) {
	rows, err := q(ctx, r.db).QueryContext(ctx,
		`SELECT id FROM bookings
		 WHERE status = ? AND expires_at IS NOT NULL AND expires_at <= ? AND deleted_at IS NULL
		 ORDER BY expires_at LIMIT ?`,
		model.BookingPending, now.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("list expired bookings: %w", err)
	}
	defer rows.Close()
	out := make([]uint64, 0)
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// ActiveByEvent returns IDs of PENDING and CONFIRMED bookings across
// all tiers of an event. Event cancellation walks this list and
// cancels each booking in its own transaction.
func (r *BookingRepo) ActiveByEvent(ctx context.Context, eventID uint64) ([]uint64, error) {
	rows, err := q(ctx, r.db).QueryContext(ctx,
		`SELECT b.id FROM bookings b
		 JOIN ticket_tiers t ON t.id = b.tier_id
		 WHERE t.event_id = ? AND b.status IN (?, ?) AND b.deleted_at IS NULL
		 ORDER BY b.id`,
		eventID, model.BookingPending, model.BookingConfirmed)
	if err != nil {
		return nil, fmt.Errorf("list active event bookings: %w", err)
	}
	defer rows.Close()
	out := make([]uint64, 0)
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// SoftDelete hides the booking. Only terminal bookings should reach
// here; the service releases inventory first when needed.
func (r *BookingRepo) SoftDelete(ctx context.Context, id uint64) error {
	return softDelete(ctx, r.db, "bookings", id, ErrBookingNotFound)
}

// HardDelete physically removes the row.
func (r *BookingRepo) HardDelete(ctx context.Context, id uint64) error {
	return hardDelete(ctx, r.db, "bookings", id, ErrBookingNotFound)
}
