package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/btick/btick/internal/model"
)

// OrganizationRepo provides data access to the organizations table.
// Default read paths exclude soft-deleted rows; ListIncludingDeleted
// exposes everything. Deleting an organization that still hosts
// events fails with ErrConflict (protect-on-delete).
type OrganizationRepo struct {
	db *sql.DB
}

// NewOrganizationRepo returns an OrganizationRepo bound to the given database.
func NewOrganizationRepo(db *sql.DB) *OrganizationRepo { return &OrganizationRepo{db: db} }

const orgCols = "id, name, website, contact_email, " + entityCols

func scanOrganization(row interface{ Scan(...any) error }) (model.Organization, error) {
	var o model.Organization
	es := entityScan{e: &o.Entity}
	dest := append([]any{&o.ID, &o.Name, &o.Website, &o.ContactEmail}, es.dest()...)
	if err := row.Scan(dest...); err != nil {
		return model.Organization{}, err
	}
	es.finish()
	return o, nil
}

// Create inserts a new organization and populates its ID and entity
// columns. A duplicate name fails with ErrDuplicate.
func (r *OrganizationRepo) Create(ctx context.Context, o *model.Organization) error {
	res, err := q(ctx, r.db).ExecContext(ctx,
		"INSERT INTO organizations (name, website, contact_email) VALUES (?, ?, ?)",
		o.Name, o.Website, o.ContactEmail)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create organization: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	o.ID = uint64(id)
	got, err := r.GetByID(ctx, o.ID)
	if err != nil {
		return err
	}
	*o = got
	return nil
}

// GetByID returns a live organization or ErrOrganizationNotFound.
func (r *OrganizationRepo) GetByID(ctx context.Context, id uint64) (model.Organization, error) {
	row := q(ctx, r.db).QueryRowContext(ctx,
		"SELECT "+orgCols+" FROM organizations WHERE id = ? AND deleted_at IS NULL", id)
	o, err := scanOrganization(row)
	if err == sql.ErrNoRows {
		return model.Organization{}, ErrOrganizationNotFound
	}
	if err != nil {
		return model.Organization{}, fmt.Errorf("get organization: %w", err)
	}
	return o, nil
}

// List returns all live organizations ordered by name.
func (r *OrganizationRepo) List(ctx context.Context) ([]model.Organization, error) {
	return r.list(ctx, "SELECT "+orgCols+" FROM organizations WHERE deleted_at IS NULL ORDER BY name")
}

// ListIncludingDeleted returns every organization row, soft-deleted
// ones included. This is the explicit "all records" accessor; normal
// paths should use List.
func (r *OrganizationRepo) ListIncludingDeleted(ctx context.Context) ([]model.Organization, error) {
	return r.list(ctx, "SELECT "+orgCols+" FROM organizations ORDER BY name")
}

func (r *OrganizationRepo) list(ctx context.Context, query string) ([]model.Organization, error) {
	rows, err := q(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	defer rows.Close()
	out := make([]model.Organization, 0)
	for rows.Next() {
		o, err := scanOrganization(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// Update writes the mutable fields, guarded by the version the caller
// read. A moved version fails with ErrStaleWrite and nothing is
// written.
func (r *OrganizationRepo) Update(ctx context.Context, o *model.Organization) error {
	res, err := q(ctx, r.db).ExecContext(ctx,
		`UPDATE organizations SET name = ?, website = ?, contact_email = ?, version = version + 1
		 WHERE id = ? AND version = ? AND deleted_at IS NULL`,
		o.Name, o.Website, o.ContactEmail, o.ID, o.Version)
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
		return staleOrMissing(ctx, r.db, "organizations", o.ID, ErrOrganizationNotFound)
	}
	got, err := r.GetByID(ctx, o.ID)
	if err != nil {
		return err
	}
	*o = got
	return nil
}

// SoftDelete hides the organization unless events still reference it.
func (r *OrganizationRepo) SoftDelete(ctx context.Context, id uint64) error {
	return runInTx(ctx, r.db, func(ctx context.Context) error {
		var n int
		err := q(ctx, r.db).QueryRowContext(ctx,
			"SELECT COUNT(*) FROM events WHERE organization_id = ? AND deleted_at IS NULL", id).Scan(&n)
		if err != nil {
			return fmt.Errorf("count organization events: %w", err)
		}
		if n > 0 {
			return ErrConflict
		}
		return softDelete(ctx, r.db, "organizations", id, ErrOrganizationNotFound)
	})
}

// HardDelete physically removes the row. Referencing events make the
// delete fail with ErrConflict via the foreign key.
func (r *OrganizationRepo) HardDelete(ctx context.Context, id uint64) error {
	return hardDelete(ctx, r.db, "organizations", id, ErrOrganizationNotFound)
}
