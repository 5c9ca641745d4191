package persistence

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConn_AutoCommitStatementsSkipTransaction(t *testing.T) {
	db, mock := newMock(t)
	pool := NewPool(DBOpener{DB: db}, nil)

	mock.ExpectExec("INSERT INTO t").WillReturnResult(sqlmock.NewResult(1, 1))

	ctx, conn, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	defer pool.Release(ctx) //nolint:errcheck // Test cleanup

	assert.True(t, conn.AutoCommit())
	_, err = conn.ExecContext(ctx, "INSERT INTO t VALUES (1)")
	require.NoError(t, err)

	assert.ErrorIs(t, conn.Commit(), ErrAutoCommit)
	assert.ErrorIs(t, conn.Rollback(), ErrAutoCommit)
}

func TestConn_ManualModeBeginsLazilyAfterCommit(t *testing.T) {
	db, mock := newMock(t)
	pool := NewPool(DBOpener{DB: db}, nil)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE t").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE t").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	ctx, conn, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	defer pool.Release(ctx) //nolint:errcheck // Test cleanup

	require.NoError(t, conn.SetAutoCommit(ctx, false))
	assert.True(t, conn.InTx())

	_, err = conn.ExecContext(ctx, "UPDATE t SET a = 1")
	require.NoError(t, err)
	require.NoError(t, conn.Commit())
	assert.False(t, conn.InTx(), "no transaction until the next statement")

	// Commit with nothing pending does not touch the database.
	require.NoError(t, conn.Commit())

	_, err = conn.ExecContext(ctx, "UPDATE t SET a = 2")
	require.NoError(t, err)
	assert.True(t, conn.InTx())

	// Restoring auto-commit discards the uncommitted update.
	require.NoError(t, conn.SetAutoCommit(ctx, true))
	assert.False(t, conn.InTx())
	assert.True(t, conn.AutoCommit())
}

func TestConn_QueryRowDefersBeginError(t *testing.T) {
	db, mock := newMock(t)
	pool := NewPool(DBOpener{DB: db}, nil)

	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectBegin().WillReturnError(errBoom)

	ctx, conn, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	defer pool.Release(ctx) //nolint:errcheck // Test cleanup

	require.NoError(t, conn.SetAutoCommit(ctx, false))
	require.NoError(t, conn.Commit())

	var n int
	row := conn.QueryRowContext(ctx, "SELECT 1")
	assert.ErrorIs(t, row.Err(), errBoom)
	assert.ErrorIs(t, row.Scan(&n), errBoom)
}

func TestConn_StatementsAfterCloseFail(t *testing.T) {
	db, _ := newMock(t)
	pool := NewPool(DBOpener{DB: db}, nil)

	ctx, conn, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	require.NoError(t, pool.Release(ctx))

	_, err = conn.ExecContext(ctx, "SELECT 1")
	assert.ErrorIs(t, err, ErrConnClosed)
	assert.ErrorIs(t, conn.SetAutoCommit(ctx, false), ErrConnClosed)
}
