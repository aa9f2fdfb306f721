package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/btick/btick/internal/model"
)

// entityCols is the shared trailing column list every table carries.
// Selects list it last so scanEntity can be reused across repos.
const entityCols = "created_at, updated_at, is_active, deleted_at, version"

// entityDest returns scan destinations for entityCols. The deleted_at
// column needs a NullTime staging value; call e.finish() after Scan.
type entityScan struct {
	e       *model.Entity
	deleted sql.NullTime
}

func (s *entityScan) dest() []any {
	return []any{&s.e.CreatedAt, &s.e.UpdatedAt, &s.e.IsActive, &s.deleted, &s.e.Version}
}

func (s *entityScan) finish() {
	if s.deleted.Valid {
		t := s.deleted.Time
		s.e.DeletedAt = &t
	}
}

// softDelete marks a row deleted and inactive in one statement. The
// not-found sentinel is supplied by the calling repo so errors stay
// aggregate-specific.
func softDelete(ctx context.Context, db *sql.DB, table string, id uint64, notFound error) error {
	res, err := q(ctx, db).ExecContext(ctx,
		"UPDATE "+table+" SET deleted_at = UTC_TIMESTAMP(), is_active = 0, version = version + 1 WHERE id = ? AND deleted_at IS NULL",
		id)
	if err != nil {
		return mapLockError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// hardDelete physically removes a row. Foreign keys with RESTRICT
// semantics surface as ErrConflict.
func hardDelete(ctx context.Context, db *sql.DB, table string, id uint64, notFound error) error {
	res, err := q(ctx, db).ExecContext(ctx, "DELETE FROM "+table+" WHERE id = ?", id)
	if err != nil {
		var code uint16
		if me, ok := mysqlErr(err); ok {
			code = me
		}
		// 1451: cannot delete parent row, foreign key constraint fails.
		if code == 1451 {
			return ErrConflict
		}
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// staleOrMissing resolves a zero-rows-affected versioned update: the
// row either never existed (or is soft-deleted) or its version moved.
func staleOrMissing(ctx context.Context, db *sql.DB, table string, id uint64, notFound error) error {
	var one int
	err := q(ctx, db).QueryRowContext(ctx,
		"SELECT 1 FROM "+table+" WHERE id = ? AND deleted_at IS NULL", id).Scan(&one)
	if err == sql.ErrNoRows {
		return notFound
	}
	if err != nil {
		return fmt.Errorf("check %s row: %w", table, err)
	}
	return ErrStaleWrite
}
