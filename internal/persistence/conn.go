package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
)

// Conn is one physical connection leased to one execution context.
//
// It emulates an auto-commit switch on top of database/sql: with auto-commit
// on, statements go straight to the connection; with it off, statements run
// inside a transaction that is begun when auto-commit is switched off and
// again lazily after each Commit or Rollback.
type Conn struct {
	id  string
	raw *sql.Conn

	mu         sync.Mutex
	refs       int
	autoCommit bool
	tx         *sql.Tx
	closed     bool
}

// sqlTarget is what *sql.Conn and *sql.Tx have in common.
type sqlTarget interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// ID identifies the lease in logs.
func (c *Conn) ID() string {
	return c.id
}

// Refs returns the outstanding acquisition count.
func (c *Conn) Refs() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refs
}

// AutoCommit reports whether statements are committed individually.
func (c *Conn) AutoCommit() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.autoCommit
}

// InTx reports whether a transaction is currently open on the connection.
func (c *Conn) InTx() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tx != nil
}

// SetAutoCommit switches auto-commit mode.
//
// Switching it off begins a transaction. Switching it back on rolls back any
// transaction still open; work that wants to keep its changes must Commit first.
func (c *Conn) SetAutoCommit(ctx context.Context, on bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrConnClosed
	}
	if on == c.autoCommit {
		return nil
	}

	if !on {
		tx, err := c.raw.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("beginning transaction: %w", err)
		}
		c.tx = tx
		c.autoCommit = false
		return nil
	}

	c.autoCommit = true
	return c.endTxLocked(false)
}

// Commit commits the open transaction. With nothing executed since the last
// Commit or Rollback it is a no-op.
func (c *Conn) Commit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.autoCommit {
		return ErrAutoCommit
	}
	return c.endTxLocked(true)
}

// Rollback rolls back the open transaction.
func (c *Conn) Rollback() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.autoCommit {
		return ErrAutoCommit
	}
	return c.endTxLocked(false)
}

func (c *Conn) endTxLocked(commit bool) error {
	tx := c.tx
	c.tx = nil
	if tx == nil {
		return nil
	}

	if commit {
		return tx.Commit()
	}
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

// target returns where the next statement should run, beginning a
// transaction if auto-commit is off and none is open.
func (c *Conn) target(ctx context.Context) (sqlTarget, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrConnClosed
	}
	if c.autoCommit {
		return c.raw, nil
	}
	if c.tx == nil {
		tx, err := c.raw.BeginTx(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("beginning transaction: %w", err)
		}
		c.tx = tx
	}
	return c.tx, nil
}

// ExecContext executes a statement that returns no rows.
func (c *Conn) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	t, err := c.target(ctx)
	if err != nil {
		return nil, err
	}
	return t.ExecContext(ctx, query, args...)
}

// QueryContext executes a query. The caller owns the returned rows.
func (c *Conn) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	t, err := c.target(ctx)
	if err != nil {
		return nil, err
	}
	return t.QueryContext(ctx, query, args...)
}

// QueryRowContext executes a query expected to return at most one row.
func (c *Conn) QueryRowContext(ctx context.Context, query string, args ...any) *Row {
	t, err := c.target(ctx)
	if err != nil {
		return &Row{err: err}
	}
	return &Row{row: t.QueryRowContext(ctx, query, args...)}
}

// PrepareContext prepares a statement. The caller owns the returned statement.
func (c *Conn) PrepareContext(ctx context.Context, query string) (*sql.Stmt, error) {
	t, err := c.target(ctx)
	if err != nil {
		return nil, err
	}
	return t.PrepareContext(ctx, query)
}

// Row is the result of QueryRowContext. Errors from starting the transaction
// are deferred to Scan, as with *sql.Row.
type Row struct {
	row *sql.Row
	err error
}

// Scan copies the columns of the row into dest.
func (r *Row) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return r.row.Scan(dest...)
}

// Err returns the error, if any, encountered running the query.
func (r *Row) Err() error {
	if r.err != nil {
		return r.err
	}
	return r.row.Err()
}
