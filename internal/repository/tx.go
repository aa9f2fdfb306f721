package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"
)

// querier is the subset of database/sql shared by *sql.DB and *sql.Tx.
// Repository methods run against whichever the context carries, so the
// same method works standalone or inside a service-owned transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type txKey struct{}

// runInTx executes fn inside a transaction carried through the context.
// When the context already holds a transaction, fn joins it and commit
// or rollback stays with the outermost caller. Lock waits that the
// server aborts surface as ErrLockTimeout.
func runInTx(ctx context.Context, db *sql.DB, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		_ = tx.Rollback()
		return mapLockError(err)
	}
	if err := tx.Commit(); err != nil {
		return mapLockError(err)
	}
	return nil
}

func txFromContext(ctx context.Context) *sql.Tx {
	tx, _ := ctx.Value(txKey{}).(*sql.Tx)
	return tx
}

// q returns the transaction from the context when present, the pool
// otherwise.
func q(ctx context.Context, db *sql.DB) querier {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return db
}

// MySQL server error numbers checked below:
// 1062 duplicate entry, 1205 lock wait timeout, 1213 deadlock victim.
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}

func isLockTimeout(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && (me.Number == 1205 || me.Number == 1213)
}

func mysqlErr(err error) (uint16, bool) {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number, true
	}
	return 0, false
}

func mapLockError(err error) error {
	if isLockTimeout(err) {
		return ErrLockTimeout
	}
	return err
}
