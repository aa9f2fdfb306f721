package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/btick/btick/internal/model"
)

// EventRepo provides data access to the events table. Status
// transitions (publish/cancel) are driven by the event service, which
// locks the row first; this repo only supplies the primitives.
type EventRepo struct {
	db *sql.DB
}

// NewEventRepo returns an EventRepo bound to the given database.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

const eventCols = "id, organization_id, venue_id, category_id, title, description, starts_at, ends_at, status, capacity, " + entityCols

func scanEvent(row interface{ Scan(...any) error }) (model.Event, error) {
	var (
		e        model.Event
		capacity sql.NullInt64
	)
	es := entityScan{e: &e.Entity}
	dest := append([]any{
		&e.ID, &e.OrganizationID, &e.VenueID, &e.CategoryID,
		&e.Title, &e.Description, &e.StartsAt, &e.EndsAt, &e.Status, &capacity,
	}, es.dest()...)
	if err := row.Scan(dest...); err != nil {
		return model.Event{}, err
	}
	es.finish()
	if capacity.Valid {
		c := uint32(capacity.Int64)
		e.Capacity = &c
	}
	return e, nil
}

// WithTx runs fn inside a transaction shared through the context.
func (r *EventRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return runInTx(ctx, r.db, fn)
}

// Create inserts a new event in DRAFT status. Duplicate titles fail
// with ErrDuplicate; a missing organization/venue/category surfaces as
// a foreign-key error from the driver.
func (r *EventRepo) Create(ctx context.Context, e *model.Event) error {
	var capacity any
	if e.Capacity != nil {
		capacity = *e.Capacity
	}
	res, err := q(ctx, r.db).ExecContext(ctx,
		`INSERT INTO events (organization_id, venue_id, category_id, title, description, starts_at, ends_at, status, capacity)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.OrganizationID, e.VenueID, e.CategoryID, e.Title, e.Description,
		e.StartsAt.UTC(), e.EndsAt.UTC(), model.EventDraft, capacity)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = uint64(id)
	got, err := r.GetByID(ctx, e.ID)
	if err != nil {
		return err
	}
	*e = got
	return nil
}

// GetByID returns a live event or ErrEventNotFound.
func (r *EventRepo) GetByID(ctx context.Context, id uint64) (model.Event, error) {
	row := q(ctx, r.db).QueryRowContext(ctx,
		"SELECT "+eventCols+" FROM events WHERE id = ? AND deleted_at IS NULL", id)
	e, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return model.Event{}, ErrEventNotFound
	}
	if err != nil {
		return model.Event{}, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

// GetForUpdate locks the event row for the remainder of the enclosing
// transaction and returns its current state. Must run inside WithTx.
func (r *EventRepo) GetForUpdate(ctx context.Context, id uint64) (model.Event, error) {
	row := q(ctx, r.db).QueryRowContext(ctx,
		"SELECT "+eventCols+" FROM events WHERE id = ? AND deleted_at IS NULL FOR UPDATE", id)
	e, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return model.Event{}, ErrEventNotFound
	}
	if err != nil {
		return model.Event{}, mapLockError(fmt.Errorf("lock event: %w", err))
	}
	return e, nil
}

// ListPublished returns PUBLISHED events that have not ended yet,
// ordered by start time. This feeds the public browse endpoint.
func (r *EventRepo) ListPublished(ctx context.Context, now time.Time) ([]model.Event, error) {
	rows, err := q(ctx, r.db).QueryContext(ctx,
		"SELECT "+eventCols+" FROM events WHERE status = ? AND ends_at > ? AND deleted_at IS NULL ORDER BY starts_at",
		model.EventPublished, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("list published events: %w", err)
	}
	defer rows.Close()
	out := make([]model.Event, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListByOrganization returns all live events of one organization.
func (r *EventRepo) ListByOrganization(ctx context.Context, orgID uint64) ([]model.Event, error) {
	rows, err := q(ctx, r.db).QueryContext(ctx,
		"SELECT "+eventCols+" FROM events WHERE organization_id = ? AND deleted_at IS NULL ORDER BY starts_at",
		orgID)
	if err != nil {
		return nil, fmt.Errorf("list organization events: %w", err)
	}
	defer rows.Close()
	out := make([]model.Event, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Update writes the mutable fields under the caller's version. Status
// is not touched here; use SetStatus.
func (r *EventRepo) Update(ctx context.Context, e *model.Event) error {
	var capacity any
	if e.Capacity != nil {
		capacity = *e.Capacity
	}
	res, err := q(ctx, r.db).ExecContext(ctx,
		`UPDATE events SET venue_id = ?, category_id = ?, title = ?, description = ?,
		        starts_at = ?, ends_at = ?, capacity = ?, version = version + 1
		 WHERE id = ? AND version = ? AND deleted_at IS NULL`,
		e.VenueID, e.CategoryID, e.Title, e.Description,
		e.StartsAt.UTC(), e.EndsAt.UTC(), capacity, e.ID, e.Version)
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
		return staleOrMissing(ctx, r.db, "events", e.ID, ErrEventNotFound)
	}
	got, err := r.GetByID(ctx, e.ID)
	if err != nil {
		return err
	}
	*e = got
	return nil
}

// SetStatus moves the event to a new lifecycle status under the
// caller's version. The service validates the transition beforehand
// while holding the row lock.
func (r *EventRepo) SetStatus(ctx context.Context, id uint64, status model.EventStatus, version uint64) error {
	res, err := q(ctx, r.db).ExecContext(ctx,
		"UPDATE events SET status = ?, version = version + 1 WHERE id = ? AND version = ? AND deleted_at IS NULL",
		status, id, version)
	if err != nil {
		return mapLockError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return staleOrMissing(ctx, r.db, "events", id, ErrEventNotFound)
	}
	return nil
}

// HasTiers reports whether the event owns at least one live ticket
// tier. Used by the publication gate.
func (r *EventRepo) HasTiers(ctx context.Context, eventID uint64) (bool, error) {
	var one int
	err := q(ctx, r.db).QueryRowContext(ctx,
		"SELECT 1 FROM ticket_tiers WHERE event_id = ? AND deleted_at IS NULL LIMIT 1", eventID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check event tiers: %w", err)
	}
	return true, nil
}

// SoftDelete hides the event. Its tiers stay in place (they
// cascade-delete only on hard delete) but become unreachable through
// default read paths because tier lookups join on live events.
func (r *EventRepo) SoftDelete(ctx context.Context, id uint64) error {
	return softDelete(ctx, r.db, "events", id, ErrEventNotFound)
}

// HardDelete physically removes the event; ticket tiers cascade.
func (r *EventRepo) HardDelete(ctx context.Context, id uint64) error {
	return hardDelete(ctx, r.db, "events", id, ErrEventNotFound)
}
