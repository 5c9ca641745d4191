package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"io"
)

// Preparer is anything that can prepare a statement: *Conn, *sql.Conn, *sql.Tx, *sql.DB.
type Preparer interface {
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// Tracker remembers the statements and cursors opened during one attempt and
// closes them together, most recent first.
//
// A Tracker is used by a single goroutine and is not safe for concurrent use.
type Tracker struct {
	logger  Logger
	handles []io.Closer
}

// NewTracker returns an empty tracker. A nil logger discards close errors.
func NewTracker(logger Logger) *Tracker {
	return &Tracker{logger: orNoop(logger)}
}

// Track registers a handle to be closed by Cleanup. Nil is ignored.
func (t *Tracker) Track(c io.Closer) {
	if c == nil {
		return
	}
	t.handles = append(t.handles, c)
}

// Prepare prepares query on p and tracks the statement.
func (t *Tracker) Prepare(ctx context.Context, p Preparer, query string) (*sql.Stmt, error) {
	stmt, err := p.PrepareContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("preparing statement: %w", err)
	}
	t.Track(stmt)
	return stmt, nil
}

// Query runs a prepared statement and tracks the resulting cursor.
func (t *Tracker) Query(ctx context.Context, stmt *sql.Stmt, args ...any) (*sql.Rows, error) {
	rows, err := stmt.QueryContext(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}
	t.Track(rows)
	return rows, nil
}

// Len returns the number of handles still awaiting Cleanup.
func (t *Tracker) Len() int {
	return len(t.handles)
}

// Cleanup closes every tracked handle in reverse order of registration.
// Close errors are logged and do not stop the remaining closes. Calling
// Cleanup again closes nothing.
func (t *Tracker) Cleanup() {
	for i := len(t.handles) - 1; i >= 0; i-- {
		h := t.handles[i]
		if err := h.Close(); err != nil {
			t.logger.Warn("closing tracked resource", "type", fmt.Sprintf("%T", h), "error", err)
		}
	}
	t.handles = nil
}
