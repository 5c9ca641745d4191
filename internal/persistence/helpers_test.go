package persistence

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/require"
)

// deadlock is the MySQL error the runner retries in most tests.
func deadlock() error {
	return &mysql.MySQLError{Number: 1213, Message: "Deadlock found when trying to get lock"}
}

// countingOpener wraps an Opener and counts physical opens and closes.
type countingOpener struct {
	inner Opener

	mu     sync.Mutex
	opens  int
	closes int
	failOn error
}

func (o *countingOpener) Open(ctx context.Context) (*sql.Conn, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.failOn != nil {
		return nil, o.failOn
	}
	o.opens++
	return o.inner.Open(ctx)
}

func (o *countingOpener) Close(conn *sql.Conn) error {
	o.mu.Lock()
	o.closes++
	o.mu.Unlock()
	return o.inner.Close(conn)
}

func (o *countingOpener) counts() (opens, closes int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opens, o.closes
}

// newMock returns a sqlmock database with ordered expectations. The
// expectations are verified when the test ends.
func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		db.Close() //nolint:errcheck // Test cleanup
	})
	return db, mock
}

// newMockRunner wires a Runner to a sqlmock database through a counting opener.
func newMockRunner(t *testing.T, opts Options) (*Runner, sqlmock.Sqlmock, *countingOpener) {
	t.Helper()

	db, mock := newMock(t)
	opener := &countingOpener{inner: DBOpener{DB: db}}
	return NewRunner(NewPool(opener, nil), opts), mock, opener
}

// fakeCloser records the order in which handles are closed.
type fakeCloser struct {
	name   string
	log    *[]string
	closed int
	err    error
}

func (f *fakeCloser) Close() error {
	f.closed++
	*f.log = append(*f.log, f.name)
	return f.err
}

var errBoom = errors.New("boom")
