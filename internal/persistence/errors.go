package persistence

import (
	"errors"
	"fmt"
)

// Sentinel errors for persistence operations.
var (
	// ErrNotAcquired is returned by Release when the context carries no
	// outstanding acquisition from the pool.
	ErrNotAcquired = errors.New("persistence: release without matching acquire")

	// ErrPoolClosed is returned by Acquire after Shutdown.
	ErrPoolClosed = errors.New("persistence: pool is shut down")

	// ErrConnClosed is returned when a statement is issued on a lease that
	// has already been returned to its opener.
	ErrConnClosed = errors.New("persistence: connection is closed")

	// ErrAutoCommit is returned by Commit and Rollback on a connection that
	// is in auto-commit mode.
	ErrAutoCommit = errors.New("persistence: connection is in auto-commit mode")

	// ErrUnauthorized marks an authorisation failure raised by a unit of work.
	// RunAuthorized passes such errors through unchanged.
	ErrUnauthorized = errors.New("persistence: unauthorised")

	// ErrRetriesExhausted matches a *Failure whose transient retries ran out.
	ErrRetriesExhausted = errors.New("persistence: retries exhausted")
)

// Unauthorised returns an error matching ErrUnauthorized with a reason.
func Unauthorised(reason string) error {
	return fmt.Errorf("%w: %s", ErrUnauthorized, reason)
}

// Failure is the single error type callers of the runner see for anything
// other than an authorisation failure.
type Failure struct {
	// Op names the unit of work.
	Op string

	// Attempts is how many attempts were made, including the failing one.
	Attempts int

	// Exhausted is true when every attempt failed transiently.
	Exhausted bool

	// Err is the underlying cause; for exhausted runs, the last transient error.
	Err error
}

func (f *Failure) Error() string {
	if f.Exhausted {
		return fmt.Sprintf("persistence: %s failed after %d attempts: %v", f.Op, f.Attempts, f.Err)
	}
	return fmt.Sprintf("persistence: %s failed on attempt %d: %v", f.Op, f.Attempts, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Is reports whether target is ErrRetriesExhausted and the failure exhausted its retries.
func (f *Failure) Is(target error) bool {
	return target == ErrRetriesExhausted && f.Exhausted
}
