package repositories

import (
	"context"
	"database/sql"
	"fmt"
)

// SQLExecutor is satisfied by both *sql.DB and *sql.Tx so repository methods
// can run standalone or inside a caller-owned transaction.
type SQLExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// TxRunner wraps a unit of work in a transaction. fn receives the transaction
// as an SQLExecutor; a non-nil error or a panic rolls back, otherwise commit.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(exec SQLExecutor) error) error
}

type sqlTxRunner struct {
	db *sql.DB
}

func NewSQLTxRunner(db *sql.DB) TxRunner {
	return &sqlTxRunner{db: db}
}

func (r *sqlTxRunner) WithinTx(ctx context.Context, fn func(exec SQLExecutor) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	var txErr error
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if txErr != nil {
			if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
				txErr = fmt.Errorf("%w (rollback also failed: %v)", txErr, rbErr)
			}
		}
	}()

	if txErr = fn(tx); txErr != nil {
		return txErr
	}
	if cErr := tx.Commit(); cErr != nil {
		txErr = fmt.Errorf("failed to commit transaction: %w", cErr)
	}
	return txErr
}

// Advisory lock classes. Each class forms its own key space so a tournament
// lock and a waitlist lock on the same numeric id never collide.
type LockClass int32

const (
	LockTournament LockClass = iota + 1
	LockEventWaitlist
	LockTournamentWaitlist
)

// AdvisoryLocker serializes writers touching the same entity. Locks are
// transaction scoped and released automatically on commit or rollback, so
// exec must be a transaction.
type AdvisoryLocker interface {
	Acquire(ctx context.Context, exec SQLExecutor, class LockClass, key int) error
}

type pgAdvisoryLocker struct{}

func NewPGAdvisoryLocker() AdvisoryLocker {
	return pgAdvisoryLocker{}
}

func (pgAdvisoryLocker) Acquire(ctx context.Context, exec SQLExecutor, class LockClass, key int) error {
	if _, err := exec.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1, $2)`, int32(class), int32(key)); err != nil {
		return fmt.Errorf("failed to acquire advisory lock (%d, %d): %w", class, key, err)
	}
	return nil
}

func checkAffectedRows(result sql.Result, notFoundError error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rowsAffected == 0 {
		return notFoundError
	}
	return nil
}
