// Package libdbexec abstracts SQL execution behind a driver-agnostic
// DBManager/Exec pair with a shared sentinel-error taxonomy, so stores can be
// written once and run against Postgres or SQLite.
package libdbexec

import (
	"context"
	"database/sql"
	"errors"
)

// Exec is the minimal query surface stores depend on. It is satisfied both by
// the raw connection pool and by an open transaction.
type Exec interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) QueryRower
}

// QueryRower wraps *sql.Row so Scan errors pass through driver-specific
// error translation.
type QueryRower interface {
	Scan(dest ...any) error
}

// CommitTx commits the transaction. The context is checked before committing.
type CommitTx func(ctx context.Context) error

// ReleaseTx rolls the transaction back unless it was committed. Safe to defer.
type ReleaseTx func() error

// DBManager owns a database connection pool and hands out executors.
type DBManager interface {
	WithoutTransaction() Exec
	WithTransaction(ctx context.Context, onRollback ...func()) (Exec, CommitTx, ReleaseTx, error)
	Close() error
}

var (
	ErrNotFound             = errors.New("libdb: not found")
	ErrTxFailed             = errors.New("libdb: transaction failed")
	ErrQueryCanceled        = errors.New("libdb: query canceled")
	ErrUniqueViolation      = errors.New("libdb: unique constraint violation")
	ErrForeignKeyViolation  = errors.New("libdb: foreign key constraint violation")
	ErrNotNullViolation     = errors.New("libdb: not-null constraint violation")
	ErrCheckViolation       = errors.New("libdb: check constraint violation")
	ErrConstraintViolation  = errors.New("libdb: constraint violation")
	ErrDeadlockDetected     = errors.New("libdb: deadlock detected")
	ErrSerializationFailure = errors.New("libdb: serialization failure")
	ErrLockNotAvailable     = errors.New("libdb: lock not available")
	ErrDataTruncation       = errors.New("libdb: data truncation")
	ErrNumericOutOfRange    = errors.New("libdb: numeric value out of range")
	ErrInvalidInputSyntax   = errors.New("libdb: invalid input syntax")
	ErrUndefinedColumn      = errors.New("libdb: undefined column")
	ErrUndefinedTable       = errors.New("libdb: undefined table")
	ErrMaxRowsReached       = errors.New("libdb: max rows reached")
)
