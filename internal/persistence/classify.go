package persistence

import (
	"errors"
	"slices"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

// Classifier decides whether a failed attempt is worth retrying.
type Classifier interface {
	Transient(err error) bool
}

// ClassifierFunc adapts a function to the Classifier interface.
type ClassifierFunc func(err error) bool

// Transient calls f(err).
func (f ClassifierFunc) Transient(err error) bool {
	return f(err)
}

// CodeClassifier treats an error as transient when the driver error it wraps
// carries one of the listed codes. Anything that is not a recognised driver
// error is not transient.
type CodeClassifier struct {
	MySQL    []uint16
	SQLite   []sqlite3.ErrNo
	Postgres []string
}

// MySQL server error numbers.
const (
	mysqlLockWaitTimeout uint16 = 1205
	mysqlDeadlock        uint16 = 1213
	// Duplicate key: raised under contention by racing auto-increment allocations.
	mysqlDuplicateEntry uint16 = 1062
)

// PostgreSQL SQLSTATE codes.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
)

// DefaultClassifier returns the allow-list of lock-contention codes for the
// supported drivers.
func DefaultClassifier() CodeClassifier {
	return CodeClassifier{
		MySQL:    []uint16{mysqlLockWaitTimeout, mysqlDeadlock, mysqlDuplicateEntry},
		SQLite:   []sqlite3.ErrNo{sqlite3.ErrBusy, sqlite3.ErrLocked},
		Postgres: []string{pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable},
	}
}

// Transient implements Classifier.
func (c CodeClassifier) Transient(err error) bool {
	if err == nil {
		return false
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return slices.Contains(c.MySQL, myErr.Number)
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return slices.Contains(c.SQLite, liteErr.Code)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return slices.Contains(c.Postgres, pgErr.Code)
	}

	return false
}
