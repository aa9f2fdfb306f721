package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/btick/btick/internal/model"
)

// MembershipRepo provides data access to organization memberships.
// The auth middleware loads a user's role map once per request and
// hands it to the services inside the Actor value.
type MembershipRepo struct {
	db *sql.DB
}

// NewMembershipRepo returns a MembershipRepo bound to the given database.
func NewMembershipRepo(db *sql.DB) *MembershipRepo { return &MembershipRepo{db: db} }

const membershipCols = "id, user_id, organization_id, role, " + entityCols

func scanMembership(row interface{ Scan(...any) error }) (model.Membership, error) {
	var m model.Membership
	es := entityScan{e: &m.Entity}
	dest := append([]any{&m.ID, &m.UserID, &m.OrganizationID, &m.Role}, es.dest()...)
	if err := row.Scan(dest...); err != nil {
		return model.Membership{}, err
	}
	es.finish()
	return m, nil
}

// Add inserts a membership. A second membership of the same user in
// the same organization fails with ErrDuplicate.
func (r *MembershipRepo) Add(ctx context.Context, m *model.Membership) error {
	res, err := q(ctx, r.db).ExecContext(ctx,
		"INSERT INTO memberships (user_id, organization_id, role) VALUES (?, ?, ?)",
		m.UserID, m.OrganizationID, m.Role)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("add membership: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	m.ID = uint64(id)
	return nil
}

// RolesForUser returns the user's live memberships as a map from
// organization ID to role.
func (r *MembershipRepo) RolesForUser(ctx context.Context, userID uint64) (map[uint64]model.OrgRole, error) {
	rows, err := q(ctx, r.db).QueryContext(ctx,
		"SELECT organization_id, role FROM memberships WHERE user_id = ? AND deleted_at IS NULL",
		userID)
	if err != nil {
		return nil, fmt.Errorf("list user memberships: %w", err)
	}
	defer rows.Close()
	roles := make(map[uint64]model.OrgRole)
	for rows.Next() {
		var (
			orgID uint64
			role  model.OrgRole
		)
		if err := rows.Scan(&orgID, &role); err != nil {
			return nil, err
		}
		roles[orgID] = role
	}
	return roles, rows.Err()
}

// ListByOrganization returns the live memberships of one organization.
func (r *MembershipRepo) ListByOrganization(ctx context.Context, orgID uint64) ([]model.Membership, error) {
	rows, err := q(ctx, r.db).QueryContext(ctx,
		"SELECT "+membershipCols+" FROM memberships WHERE organization_id = ? AND deleted_at IS NULL ORDER BY id",
		orgID)
	if err != nil {
		return nil, fmt.Errorf("list organization memberships: %w", err)
	}
	defer rows.Close()
	out := make([]model.Membership, 0)
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Remove soft-deletes the user's membership in the organization.
func (r *MembershipRepo) Remove(ctx context.Context, userID, orgID uint64) error {
	res, err := q(ctx, r.db).ExecContext(ctx,
		`UPDATE memberships SET deleted_at = UTC_TIMESTAMP(), is_active = 0, version = version + 1
		 WHERE user_id = ? AND organization_id = ? AND deleted_at IS NULL`,
		userID, orgID)
	if err != nil {
		return mapLockError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrMembershipNotFound
	}
	return nil
}
