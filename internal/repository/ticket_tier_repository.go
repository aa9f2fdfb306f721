package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/btick/btick/internal/model"
)

// TicketTierRepo provides data access to the ticket_tiers table. The
// sold counter is the inventory ledger: it only moves through AddSold
// and SubtractSold, and callers must hold the row lock (GetForUpdate)
// before deciding to move it.
type TicketTierRepo struct {
	db *sql.DB
}

// NewTicketTierRepo returns a TicketTierRepo bound to the given database.
func NewTicketTierRepo(db *sql.DB) *TicketTierRepo { return &TicketTierRepo{db: db} }

const tierCols = "id, event_id, ticket_type, price, quota, sold, " + entityCols

func scanTier(row interface{ Scan(...any) error }) (model.TicketTier, error) {
	var t model.TicketTier
	es := entityScan{e: &t.Entity}
	dest := append([]any{&t.ID, &t.EventID, &t.TicketType, &t.Price, &t.Quota, &t.Sold}, es.dest()...)
	if err := row.Scan(dest...); err != nil {
		return model.TicketTier{}, err
	}
	es.finish()
	return t, nil
}

// WithTx runs fn inside a transaction shared through the context.
func (r *TicketTierRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return runInTx(ctx, r.db, fn)
}

// Create inserts a tier with sold = 0. A second tier of the same type
// on the same event fails with ErrDuplicate.
func (r *TicketTierRepo) Create(ctx context.Context, t *model.TicketTier) error {
	res, err := q(ctx, r.db).ExecContext(ctx,
		"INSERT INTO ticket_tiers (event_id, ticket_type, price, quota, sold) VALUES (?, ?, ?, ?, 0)",
		t.EventID, t.TicketType, t.Price, t.Quota)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create ticket tier: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	got, err := r.GetByID(ctx, t.ID)
	if err != nil {
		return err
	}
	*t = got
	return nil
}

// GetByID returns a live tier or ErrTierNotFound.
func (r *TicketTierRepo) GetByID(ctx context.Context, id uint64) (model.TicketTier, error) {
	row := q(ctx, r.db).QueryRowContext(ctx,
		"SELECT "+tierCols+" FROM ticket_tiers WHERE id = ? AND deleted_at IS NULL", id)
	t, err := scanTier(row)
	if err == sql.ErrNoRows {
		return model.TicketTier{}, ErrTierNotFound
	}
	if err != nil {
		return model.TicketTier{}, fmt.Errorf("get ticket tier: %w", err)
	}
	return t, nil
}

// GetForUpdate locks the tier row for the remainder of the enclosing
// transaction and returns its current quota and sold count. All
// inventory decisions must be made against the state this returns, not
// against an earlier unlocked read. Must run inside WithTx.
func (r *TicketTierRepo) GetForUpdate(ctx context.Context, id uint64) (model.TicketTier, error) {
	row := q(ctx, r.db).QueryRowContext(ctx,
		"SELECT "+tierCols+" FROM ticket_tiers WHERE id = ? AND deleted_at IS NULL FOR UPDATE", id)
	t, err := scanTier(row)
	if err == sql.ErrNoRows {
		return model.TicketTier{}, ErrTierNotFound
	}
	if err != nil {
		return model.TicketTier{}, mapLockError(fmt.Errorf("lock ticket tier: %w", err))
	}
	return t, nil
}

// ListByEvent returns all live tiers of an event ordered by price.
func (r *TicketTierRepo) ListByEvent(ctx context.Context, eventID uint64) ([]model.TicketTier, error) {
	return r.list(ctx,
		"SELECT "+tierCols+" FROM ticket_tiers WHERE event_id = ? AND deleted_at IS NULL ORDER BY price",
		eventID)
}

// AvailableByEvent returns the live tiers of an event that still have
// unsold inventory, cheapest first. This feeds the public
// available-tickets listing.
func (r *TicketTierRepo) AvailableByEvent(ctx context.Context, eventID uint64) ([]model.TicketTier, error) {
	return r.list(ctx,
		"SELECT "+tierCols+" FROM ticket_tiers WHERE event_id = ? AND quota > sold AND deleted_at IS NULL ORDER BY price",
		eventID)
}

func (r *TicketTierRepo) list(ctx context.Context, query string, args ...any) ([]model.TicketTier, error) {
	rows, err := q(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list ticket tiers: %w", err)
	}
	defer rows.Close()
	out := make([]model.TicketTier, 0)
	for rows.Next() {
		t, err := scanTier(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// AddSold reserves qty units by raising the sold counter. The guard
// clause re-checks quota so a buggy caller cannot oversell even with a
// stale lock read; zero rows affected means the tier changed under us.
func (r *TicketTierRepo) AddSold(ctx context.Context, id uint64, qty uint32) error {
	res, err := q(ctx, r.db).ExecContext(ctx,
		"UPDATE ticket_tiers SET sold = sold + ?, version = version + 1 WHERE id = ? AND sold + ? <= quota AND deleted_at IS NULL",
		qty, id, qty)
	if err != nil {
		return mapLockError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

// SubtractSold releases qty units back to the pool. The guard keeps
// sold from wrapping below zero on the unsigned column.
func (r *TicketTierRepo) SubtractSold(ctx context.Context, id uint64, qty uint32) error {
	res, err := q(ctx, r.db).ExecContext(ctx,
		"UPDATE ticket_tiers SET sold = sold - ?, version = version + 1 WHERE id = ? AND sold >= ? AND deleted_at IS NULL",
		qty, id, qty)
	if err != nil {
		return mapLockError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

// Update writes price and quota under the caller's version. The quota
// floor (never below sold) is enforced by the tier service while it
// holds the row lock.
func (r *TicketTierRepo) Update(ctx context.Context, t *model.TicketTier) error {
	res, err := q(ctx, r.db).ExecContext(ctx,
		`UPDATE ticket_tiers SET price = ?, quota = ?, version = version + 1
		 WHERE id = ? AND version = ? AND deleted_at IS NULL`,
		t.Price, t.Quota, t.ID, t.Version)
	if err != nil {
		return mapLockError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return staleOrMissing(ctx, r.db, "ticket_tiers", t.ID, ErrTierNotFound)
	}
	got, err := r.GetByID(ctx, t.ID)
	if err != nil {
		return err
	}
	*t = got
	return nil
}

// SoftDelete hides the tier unless bookings still hold its inventory.
func (r *TicketTierRepo) SoftDelete(ctx context.Context, id uint64) error {
	return runInTx(ctx, r.db, func(ctx context.Context) error {
		var n int
		err := q(ctx, r.db).QueryRowContext(ctx,
			"SELECT COUNT(*) FROM bookings WHERE tier_id = ? AND status IN (?, ?) AND deleted_at IS NULL",
			id, model.BookingPending, model.BookingConfirmed).Scan(&n)
		if err != nil {
			return fmt.Errorf("count tier bookings: %w", err)
		}
		if n > 0 {
			return ErrConflict
		}
		return softDelete(ctx, r.db, "ticket_tiers", id, ErrTierNotFound)
	})
}

// HardDelete physically removes the row. Bookings referencing the tier
// make the delete fail with ErrConflict via the foreign key.
func (r *TicketTierRepo) HardDelete(ctx context.Context, id uint64) error {
	return hardDelete(ctx, r.db, "ticket_tiers", id, ErrTierNotFound)
}
