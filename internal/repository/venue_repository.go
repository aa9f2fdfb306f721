package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/btick/btick/internal/model"
)

// VenueRepo provides data access to the venues table. Venues are
// protect-on-delete: removing one that still hosts events fails with
// ErrConflict.
type VenueRepo struct {
	db *sql.DB
}

// NewVenueRepo returns a VenueRepo bound to the given database.
func NewVenueRepo(db *sql.DB) *VenueRepo { return &VenueRepo{db: db} }

const venueCols = "id, name, address, capacity, " + entityCols

func scanVenue(row interface{ Scan(...any) error }) (model.Venue, error) {
	var v model.Venue
	es := entityScan{e: &v.Entity}
	dest := append([]any{&v.ID, &v.Name, &v.Address, &v.Capacity}, es.dest()...)
	if err := row.Scan(dest...); err != nil {
		return model.Venue{}, err
	}
	es.finish()
	return v, nil
}

// Create inserts a venue; duplicate names fail with ErrDuplicate.
func (r *VenueRepo) Create(ctx context.Context, v *model.Venue) error {
	res, err := q(ctx, r.db).ExecContext(ctx,
		"INSERT INTO venues (name, address, capacity) VALUES (?, ?, ?)",
		v.Name, v.Address, v.Capacity)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create venue: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	v.ID = uint64(id)
	got, err := r.GetByID(ctx, v.ID)
	if err != nil {
		return err
	}
	*v = got
	return nil
}

// GetByID returns a live venue or ErrVenueNotFound.
func (r *VenueRepo) GetByID(ctx context.Context, id uint64) (model.Venue, error) {
	row := q(ctx, r.db).QueryRowContext(ctx,
		"SELECT "+venueCols+" FROM venues WHERE id = ? AND deleted_at IS NULL", id)
	v, err := scanVenue(row)
	if err == sql.ErrNoRows {
		return model.Venue{}, ErrVenueNotFound
	}
	if err != nil {
		return model.Venue{}, fmt.Errorf("get venue: %w", err)
	}
	return v, nil
}

// List returns all live venues ordered by name.
func (r *VenueRepo) List(ctx context.Context) ([]model.Venue, error) {
	return r.list(ctx, "SELECT "+venueCols+" FROM venues WHERE deleted_at IS NULL ORDER BY name")
}

// ListIncludingDeleted returns every venue row, soft-deleted included.
func (r *VenueRepo) ListIncludingDeleted(ctx context.Context) ([]model.Venue, error) {
	return r.list(ctx, "SELECT "+venueCols+" FROM venues ORDER BY name")
}

func (r *VenueRepo) list(ctx context.Context, query string) ([]model.Venue, error) {
	rows, err := q(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list venues: %w", err)
	}
	defer rows.Close()
	out := make([]model.Venue, 0)
	for rows.Next() {
		v, err := scanVenue(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Update writes the mutable fields under the caller's version.
func (r *VenueRepo) Update(ctx context.Context, v *model.Venue) error {
	res, err := q(ctx, r.db).ExecContext(ctx,
		`UPDATE venues SET name = ?, address = ?, capacity = ?, version = version + 1
		 WHERE id = ? AND version = ? AND deleted_at IS NULL`,
		v.Name, v.Address, v.Capacity, v.ID, v.Version)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return mapLockError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return staleOrMissing(ctx, r.db, "venues", v.ID, ErrVenueNotFound)
	}
	got, err := r.GetByID(ctx, v.ID)
	if err != nil {
		return err
	}
	*v = got
	return nil
}

// SoftDelete hides the venue unless events still reference it.
func (r *VenueRepo) SoftDelete(ctx context.Context, id uint64) error {
	return runInTx(ctx, r.db, func(ctx context.Context) error {
		var n int
		err := q(ctx, r.db).QueryRowContext(ctx,
			"SELECT COUNT(*) FROM events WHERE venue_id = ? AND deleted_at IS NULL", id).Scan(&n)
		if err != nil {
			return fmt.Errorf("count venue events: %w", err)
		}
		if n > 0 {
			return ErrConflict
		}
		return softDelete(ctx, r.db, "venues", id, ErrVenueNotFound)
	})
}

// HardDelete physically removes the row.
func (r *VenueRepo) HardDelete(ctx context.Context, id uint64) error {
	return hardDelete(ctx, r.db, "venues", id, ErrVenueNotFound)
}
