package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/btick/btick/internal/model"
)

// CategoryRepo provides data access to the event_categories table.
type CategoryRepo struct {
	db *sql.DB
}

// NewCategoryRepo returns a CategoryRepo bound to the given database.
func NewCategoryRepo(db *sql.DB) *CategoryRepo { return &CategoryRepo{db: db} }

const categoryCols = "id, name, " + entityCols

func scanCategory(row interface{ Scan(...any) error }) (model.EventCategory, error) {
	var c model.EventCategory
	es := entityScan{e: &c.Entity}
	dest := append([]any{&c.ID, &c.Name}, es.dest()...)
	if err := row.Scan(dest...); err != nil {
		return model.EventCategory{}, err
	}
	es.finish()
	return c, nil
}

// Create inserts a category; duplicate names fail with ErrDuplicate.
func (r *CategoryRepo) Create(ctx context.Context, c *model.EventCategory) error {
	res, err := q(ctx, r.db).ExecContext(ctx,
		"INSERT INTO event_categories (name) VALUES (?)", c.Name)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create category: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = uint64(id)
	got, err := r.GetByID(ctx, c.ID)
	if err != nil {
		return err
	}
	*c = got
	return nil
}

// GetByID returns a live category or ErrCategoryNotFound.
func (r *CategoryRepo) GetByID(ctx context.Context, id uint64) (model.EventCategory, error) {
	row := q(ctx, r.db).QueryRowContext(ctx,
		"SELECT "+categoryCols+" FROM event_categories WHERE id = ? AND deleted_at IS NULL", id)
	c, err := scanCategory(row)
	if err == sql.ErrNoRows {
		return model.EventCategory{}, ErrCategoryNotFound
	}
	if err != nil {
		return model.EventCategory{}, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

// List returns all live categories ordered by name.
func (r *CategoryRepo) List(ctx context.Context) ([]model.EventCategory, error) {
	rows, err := q(ctx, r.db).QueryContext(ctx,
		"SELECT "+categoryCols+" FROM event_categories WHERE deleted_at IS NULL ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()
	out := make([]model.EventCategory, 0)
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SoftDelete hides the category unless events still reference it.
func (r *CategoryRepo) SoftDelete(ctx context.Context, id uint64) error {
	return runInTx(ctx, r.db, func(ctx context.Context) error {
		var n int
		err := q(ctx, r.db).QueryRowContext(ctx,
			"SELECT COUNT(*) FROM events WHERE category_id = ? AND deleted_at IS NULL", id).Scan(&n)
		if err != nil {
			return fmt.Errorf("count category events: %w", err)
		}
		if n > 0 {
			return ErrConflict
		}
		return softDelete(ctx, r.db, "event_categories", id, ErrCategoryNotFound)
	})
}

// HardDelete physically removes the row.
func (r *CategoryRepo) HardDelete(ctx context.Context, id uint64) error {
	return hardDelete(ctx, r.db, "event_categories", id, ErrCategoryNotFound)
}
