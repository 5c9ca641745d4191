// Package persistence executes units of relational database work safely
// under concurrent request load.
//
// It is built from three pieces:
//   - Pool: a reference-counted connection lease scoped to a context.
//     Nested Acquire calls on a context that already carries a lease reuse
//     the same physical connection; the connection is returned to its
//     Opener when the last matching Release happens.
//   - Tracker: closes every statement and cursor opened during one attempt,
//     last-opened first, whatever the outcome.
//   - Runner: wraps a unit of work in a transaction, commits on success,
//     rolls back on failure and retries transient failures (deadlocks,
//     lock timeouts, busy databases) up to a configured ceiling.
//
// # Worker ownership
//
// A lease lives in the context returned by Acquire. That context belongs to
// one goroutine: do not hand it to another goroutine while the lease is
// held. Two goroutines that start from the same parent context without a
// lease get two different connections.
//
// # Failure surface
//
// Every failure reported by Run is a *Failure. RunAuthorized additionally
// lets errors matching ErrUnauthorized through unchanged, so a caller can
// map them to an access-denied response. Cleanup errors (closing statements,
// cursors, connections, rolling back on restore) are logged, never returned.
//
// # Usage
//
//	pool := persistence.NewPool(persistence.DBOpener{DB: db.DB}, logger)
//	runner := persistence.NewRunner(pool, persistence.Options{Logger: logger})
//
//	n, err := persistence.Run(ctx, runner, persistence.Named("count-audit",
//	    func(ctx context.Context, tx *persistence.Tx) (int, error) {
//	        var n int
//	        err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_logs").Scan(&n)
//	        return n, err
//	    }))
package persistence
