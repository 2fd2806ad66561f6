package database

import (
	"context"
	"database/sql"
	"sync"

	"github.com/rs/zerolog"
)

// Querier is the subset of *sql.DB / *sql.Tx used by repositories.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type unitKey struct{}

// unit is one atomic operation: its transaction and the hooks to run once it commits.
type unit struct {
	tx          *sql.Tx
	afterCommit []func()
}

func unitFrom(ctx context.Context) (*unit, bool) {
	u, ok := ctx.Value(unitKey{}).(*unit)
	return u, ok
}

// InTx reports whether ctx carries an open atomic unit.
func InTx(ctx context.Context) bool {
	_, ok := unitFrom(ctx)
	return ok
}

// Q returns the transaction carried by ctx, or the plain connection for reads outside a unit.
func (db *DB) Q(ctx context.Context) Querier {
	if u, ok := unitFrom(ctx); ok {
		return u.tx
	}
	return db.conn
}

// AfterCommit registers fn to run once the enclosing unit commits.
// Outside a unit fn runs immediately. Hooks of a rolled-back unit never run.
func AfterCommit(ctx context.Context, fn func()) {
	if u, ok := unitFrom(ctx); ok {
		u.afterCommit = append(u.afterCommit, fn)
		return
	}
	fn()
}

// Runtime is the single sequential execution context of the treasury.
// Each top-level operation runs to completion inside one SQLite transaction
// or leaves no trace; operations never interleave.
type Runtime struct {
	db  *DB
	mu  sync.Mutex
	log zerolog.Logger
}

// NewRuntime creates the runtime over the treasury database
func NewRuntime(db *DB, log zerolog.Logger) *Runtime {
	return &Runtime{
		db:  db,
		log: log.With().Str("component", "runtime").Logger(),
	}
}

// DB returns the database the runtime executes against
func (r *Runtime) DB() *DB {
	return r.db
}

// Atomic runs fn as one indivisible unit. A call made while ctx already
// carries a unit joins it, so a strategy or token operation invoked by the
// ledger commits or rolls back together with the ledger's own writes.
func (r *Runtime) Atomic(ctx context.Context, fn func(ctx context.Context) error) error {
	if InTx(ctx) {
		return fn(ctx)
	}

	r.mu.Lock()
	u := &unit{}
	err := withTransactionContext(ctx, r.db.conn, func(tx *sql.Tx) error {
		u.tx = tx
		return fn(context.WithValue(ctx, unitKey{}, u))
	})
	r.mu.Unlock()

	if err != nil {
		r.log.Debug().Err(err).Msg("Atomic unit rolled back")
		return err
	}

	for _, hook := range u.afterCommit {
		hook()
	}
	return nil
}
