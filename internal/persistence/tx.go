package persistence

import (
	"context"
	"database/sql"
	"io"
)

// Tx is what a unit of work sees for one attempt. Every statement and cursor
// obtained through it is closed when the attempt ends.
type Tx struct {
	conn    *Conn
	tracker *Tracker
	runID   string
	attempt int
	joined  bool
}

// Conn returns the leased connection.
func (tx *Tx) Conn() *Conn { return tx.conn }

// RunID identifies the run in logs and telemetry.
func (tx *Tx) RunID() string { return tx.runID }

// Attempt is the 1-based attempt number.
func (tx *Tx) Attempt() int { return tx.attempt }

// Joined reports whether this run joined an enclosing transaction on the same lease.
func (tx *Tx) Joined() bool { return tx.joined }

// Track registers an extra handle to be closed at the end of the attempt.
func (tx *Tx) Track(c io.Closer) { tx.tracker.Track(c) }

// Prepare prepares a tracked statement inside the transaction.
func (tx *Tx) Prepare(ctx context.Context, query string) (*sql.Stmt, error) {
	return tx.tracker.Prepare(ctx, tx.conn, query)
}

// Query runs a prepared statement and returns tracked rows.
func (tx *Tx) Query(ctx context.Context, stmt *sql.Stmt, args ...any) (*sql.Rows, error) {
	return tx.tracker.Query(ctx, stmt, args...)
}

// QueryContext runs an ad-hoc query and returns tracked rows.
func (tx *Tx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := tx.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	tx.tracker.Track(rows)
	return rows, nil
}

// ExecContext executes a statement that returns no rows.
func (tx *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return tx.conn.ExecContext(ctx, query, args...)
}

// QueryRowContext executes a query expected to return at most one row.
func (tx *Tx) QueryRowContext(ctx context.Context, query string, args ...any) *Row {
	return tx.conn.QueryRowContext(ctx, query, args...)
}
