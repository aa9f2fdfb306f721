package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/btick/btick/internal/model"
)

// UserRepo provides data access to the users table. Password hashing
// happens in the auth layer; this repo stores whatever hash it is
// given.
type UserRepo struct {
	db *sql.DB
}

// NewUserRepo returns a UserRepo bound to the given database.
func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{db: db} }

const userCols = "id, email, full_name, password_hash, role, " + entityCols

func scanUser(row interface{ Scan(...any) error }) (model.User, error) {
	var u model.User
	es := entityScan{e: &u.Entity}
	dest := append([]any{&u.ID, &u.Email, &u.FullName, &u.PasswordHash, &u.Role}, es.dest()...)
	if err := row.Scan(dest...); err != nil {
		return model.User{}, err
	}
	es.finish()
	return u, nil
}

// Create inserts a user with a normalized email. A taken email fails
// with ErrDuplicate.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	res, err := q(ctx, r.db).ExecContext(ctx,
		"INSERT INTO users (email, full_name, password_hash, role) VALUES (?, ?, ?, ?)",
		u.Email, u.FullName, u.PasswordHash, u.Role)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = uint64(id)
	got, err := r.GetByID(ctx, u.ID)
	if err != nil {
		return err
	}
	*u = got
	return nil
}

// GetByEmail fetches a live user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	row := q(ctx, r.db).QueryRowContext(ctx,
		"SELECT "+userCols+" FROM users WHERE email = ? AND deleted_at IS NULL LIMIT 1", email)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return model.User{}, ErrUserNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// GetByID fetches a live user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	row := q(ctx, r.db).QueryRowContext(ctx,
		"SELECT "+userCols+" FROM users WHERE id = ? AND deleted_at IS NULL", id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return model.User{}, ErrUserNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// SoftDelete deactivates the account. Existing bookings keep their
// user_id for audit.
func (r *UserRepo) SoftDelete(ctx context.Context, id uint64) error {
	return softDelete(ctx, r.db, "users", id, ErrUserNotFound)
}
