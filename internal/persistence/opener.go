package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
)

// Opener produces and disposes of physical connections for a Pool.
type Opener interface {
	Open(ctx context.Context) (*sql.Conn, error)
	Close(conn *sql.Conn) error
}

// DBOpener leases connections from a managed database/sql pool.
// Close hands the connection back to that pool rather than dropping it.
type DBOpener struct {
	DB *sql.DB
}

// Open implements Opener.
func (o DBOpener) Open(ctx context.Context) (*sql.Conn, error) {
	conn, err := o.DB.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("leasing managed connection: %w", err)
	}
	return conn, nil
}

// Close implements Opener.
func (o DBOpener) Close(conn *sql.Conn) error {
	return conn.Close()
}

// DirectOpener dials a dedicated physical connection on every Open and
// tears it down on Close. Nothing is kept idle between leases.
type DirectOpener struct {
	driver string
	dsn    string

	mu  sync.Mutex
	dbs map[*sql.Conn]*sql.DB
}

// NewDirectOpener returns an opener for the given database/sql driver name and DSN.
func NewDirectOpener(driver, dsn string) *DirectOpener {
	return &DirectOpener{
		driver: driver,
		dsn:    dsn,
		dbs:    make(map[*sql.Conn]*sql.DB),
	}
}

// Open implements Opener.
func (o *DirectOpener) Open(ctx context.Context) (*sql.Conn, error) {
	db, err := sql.Open(o.driver, o.dsn)
	if err != nil {
		return nil, fmt.Errorf("opening direct connection: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("opening direct connection: %w", err)
	}

	o.mu.Lock()
	o.dbs[conn] = db
	o.mu.Unlock()

	return conn, nil
}

// Close implements Opener.
func (o *DirectOpener) Close(conn *sql.Conn) error {
	o.mu.Lock()
	db := o.dbs[conn]
	delete(o.dbs, conn)
	o.mu.Unlock()

	err := conn.Close()
	if db != nil {
		err = errors.Join(err, db.Close())
	}
	return err
}

// OpenCount reports how many direct connections are currently dialled.
func (o *DirectOpener) OpenCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.dbs)
}
