package persistence

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxAttempts is the retry ceiling used when Options.MaxAttempts is zero.
const DefaultMaxAttempts = 20

// Options configures a Runner. The zero value gives 20 immediate attempts
// with the default driver classifier.
type Options struct {
	// MaxAttempts is the total number of attempts per run, first one included.
	MaxAttempts int

	// Backoff is the wait before the first retry. It doubles on each further
	// retry up to MaxBackoff. Zero retries immediately.
	Backoff    time.Duration
	MaxBackoff time.Duration

	Classifier Classifier
	Observer   Observer
	Logger     Logger
}

// Outcome is how a run ended.
type Outcome string

// Run outcomes.
const (
	OutcomeCommitted    Outcome = "committed"
	OutcomeJoined       Outcome = "joined"
	OutcomeUnauthorized Outcome = "unauthorized"
	OutcomeFailed       Outcome = "failed"
	OutcomeExhausted    Outcome = "exhausted"
)

// RunReport describes one finished run.
type RunReport struct {
	Name     string
	ID       string
	Attempts int
	Outcome  Outcome
	Duration time.Duration
	Err      error
}

// Observer receives a report for every run. It is called synchronously on
// the caller's goroutine and must not block.
type Observer interface {
	ObserveRun(report RunReport)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(report RunReport)

// ObserveRun calls f(report).
func (f ObserverFunc) ObserveRun(report RunReport) {
	f(report)
}

// Stats is a snapshot of runner counters.
type Stats struct {
	Runs                  uint64 `json:"runs"`
	Attempts              uint64 `json:"attempts"`
	Commits               uint64 `json:"commits"`
	Rollbacks             uint64 `json:"rollbacks"`
	Retries               uint64 `json:"retries"`
	Failures              uint64 `json:"failures"`
	AuthorizationFailures uint64 `json:"authorization_failures"`
}

// Runner executes units of work in transactions on a Pool.
//
// Thread Safety:
//   - A Runner is safe for concurrent use; each run leases its own connection
//     unless its context already carries one.
type Runner struct {
	pool       *Pool
	logger     Logger
	classifier Classifier
	observer   Observer

	maxAttempts int
	backoff     time.Duration
	maxBackoff  time.Duration

	runs, attempts, commits, rollbacks, retries, failures, authFailures atomic.Uint64
}

// NewRunner creates a Runner over pool.
func NewRunner(pool *Pool, opts Options) *Runner {
	r := &Runner{
		pool:        pool,
		logger:      orNoop(opts.Logger),
		classifier:  opts.Classifier,
		observer:    opts.Observer,
		maxAttempts: opts.MaxAttempts,
		backoff:     opts.Backoff,
		maxBackoff:  opts.MaxBackoff,
	}
	if r.classifier == nil {
		r.classifier = DefaultClassifier()
	}
	if r.maxAttempts <= 0 {
		r.maxAttempts = DefaultMaxAttempts
	}
	return r
}

// Pool returns the pool the runner leases from.
func (r *Runner) Pool() *Pool {
	return r.pool
}

// MaxAttempts returns the retry ceiling.
func (r *Runner) MaxAttempts() int {
	return r.maxAttempts
}

// Stats returns a snapshot of the runner counters.
func (r *Runner) Stats() Stats {
	return Stats{
		Runs:                  r.runs.Load(),
		Attempts:              r.attempts.Load(),
		Commits:               r.commits.Load(),
		Rollbacks:             r.rollbacks.Load(),
		Retries:               r.retries.Load(),
		Failures:              r.failures.Load(),
		AuthorizationFailures: r.authFailures.Load(),
	}
}

// policy selects how authorisation failures are treated.
type policy int

const (
	// policyStrict treats authorisation failures like any other fatal error.
	policyStrict policy = iota
	// policyAuthorized lets ErrUnauthorized through unchanged.
	policyAuthorized
)

// verdict is the decision taken at the end of one attempt.
type verdict int

const (
	verdictCommitted verdict = iota
	verdictJoined
	verdictTransient
	verdictUnauthorized
	verdictFatal
)

// Run executes work in a transaction, retrying transient failures.
//
// On success the transaction is committed and the work's result returned.
// Any failure is returned as a *Failure; an exhausted run matches
// ErrRetriesExhausted and wraps the last transient cause. If ctx already
// carries a lease with a transaction in progress, work joins that
// transaction: it runs once and its error is returned unchanged for the
// enclosing run to decide on.
//
// Parameters:
//   - ctx: Execution context; the work receives a context carrying the lease
//   - r: Runner to execute on
//   - work: Unit of work; may be executed more than once
//
// Returns:
//   - T: The work's result from the committed attempt
//   - error: nil on commit, *Failure otherwise
func Run[T any](ctx context.Context, r *Runner, work Work[T]) (T, error) {
	return run(ctx, r, work, policyStrict)
}

// RunAuthorized is Run for work that may fail authorisation. An error
// matching ErrUnauthorized rolls back the transaction and is returned
// unchanged, without retry and without being wrapped in a *Failure.
func RunAuthorized[T any](ctx context.Context, r *Runner, work Work[T]) (T, error) {
	return run(ctx, r, work, policyAuthorized)
}

func run[T any](ctx context.Context, r *Runner, work Work[T], pol policy) (T, error) {
	var zero T

	name := workName(work)
	runID := uuid.NewString()
	start := time.Now()
	r.runs.Add(1)

	finish := func(attempts int, outcome Outcome, err error) {
		if r.observer == nil {
			return
		}
		r.observer.ObserveRun(RunReport{
			Name:     name,
			ID:       runID,
			Attempts: attempts,
			Outcome:  outcome,
			Duration: time.Since(start),
			Err:      err,
		})
	}

	fail := func(attempts int, exhausted bool, err error) (T, error) {
		r.failures.Add(1)
		if pol == policyStrict && errors.Is(err, ErrUnauthorized) {
			// Not a declared outcome of strict runs; keep it from matching ErrUnauthorized.
			err = fmt.Errorf("undeclared authorisation failure: %v", err)
		}
		f := &Failure{Op: name, Attempts: attempts, Exhausted: exhausted, Err: err}
		r.logger.Error("transaction failed", "tx", name, "run_id", runID, "attempt", attempts, "error", err)
		outcome := OutcomeFailed
		if exhausted {
			outcome = OutcomeExhausted
		}
		finish(attempts, outcome, f)
		return zero, f
	}

	for attempt := 1; ; attempt++ {
		res, v, err := runAttempt(ctx, r, work, runID, attempt, pol)

		switch v {
		case verdictCommitted:
			finish(attempt, OutcomeCommitted, nil)
			return res, nil

		case verdictJoined:
			finish(attempt, OutcomeJoined, err)
			return res, err

		case verdictUnauthorized:
			r.authFailures.Add(1)
			r.logger.Info("transaction unauthorised", "tx", name, "run_id", runID, "error", err)
			finish(attempt, OutcomeUnauthorized, err)
			return zero, err

		case verdictTransient:
			if attempt >= r.maxAttempts {
				return fail(attempt, true, err)
			}
			r.retries.Add(1)
			delay := r.delay(attempt)
			r.logger.Warn("retrying transaction",
				"tx", name, "run_id", runID, "attempt", attempt, "delay", delay, "error", err)
			if werr := wait(ctx, delay); werr != nil {
				return fail(attempt, false, fmt.Errorf("%w (after transient error: %v)", werr, err))
			}

		default:
			return fail(attempt, false, err)
		}
	}
}

// runAttempt executes one attempt and decides what happens next.
// Tracker cleanup, auto-commit restore and release happen on every path,
// panics included, in that order.
func runAttempt[T any](ctx context.Context, r *Runner, work Work[T], runID string, attempt int, pol policy) (res T, v verdict, err error) {
	r.attempts.Add(1)

	lctx, conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return res, r.classify(err, pol), err
	}
	defer func() {
		if rerr := r.pool.Release(lctx); rerr != nil {
			r.logger.Warn("releasing connection", "run_id", runID, "conn_id", conn.ID(), "error", rerr)
		}
	}()

	tracker := NewTracker(r.logger)

	if !conn.AutoCommit() {
		defer tracker.Cleanup()
		res, err = work.Execute(lctx, &Tx{conn: conn, tracker: tracker, runID: runID, attempt: attempt, joined: true})
		return res, verdictJoined, err
	}

	defer func() {
		tracker.Cleanup()
		if rerr := conn.SetAutoCommit(lctx, true); rerr != nil {
			r.logger.Warn("restoring auto-commit", "run_id", runID, "conn_id", conn.ID(), "error", rerr)
		}
	}()

	if err = conn.SetAutoCommit(lctx, false); err != nil {
		return res, r.classify(err, pol), err
	}

	res, err = work.Execute(lctx, &Tx{conn: conn, tracker: tracker, runID: runID, attempt: attempt})
	tracker.Cleanup()

	if err == nil {
		if cerr := conn.Commit(); cerr != nil {
			err = fmt.Errorf("committing transaction: %w", cerr)
			if r.classifier.Transient(cerr) {
				return res, verdictTransient, err
			}
			return res, verdictFatal, err
		}
		r.commits.Add(1)
		return res, verdictCommitted, nil
	}

	if rerr := conn.Rollback(); rerr != nil {
		r.logger.Warn("rolling back transaction", "run_id", runID, "conn_id", conn.ID(), "error", rerr)
	}
	r.rollbacks.Add(1)

	return res, r.classify(err, pol), err
}

func (r *Runner) classify(err error, pol policy) verdict {
	switch {
	case pol == policyAuthorized && errors.Is(err, ErrUnauthorized):
		return verdictUnauthorized
	case r.classifier.Transient(err):
		return verdictTransient
	default:
		return verdictFatal
	}
}

// maxDelay bounds an uncapped backoff so doubling never overflows.
const maxDelay = time.Duration(math.MaxInt64)

// delay returns the wait before the retry that follows attempt.
func (r *Runner) delay(attempt int) time.Duration {
	if r.backoff <= 0 {
		return 0
	}
	ceiling := r.maxBackoff
	if ceiling <= 0 {
		ceiling = maxDelay
	}
	d := min(r.backoff, ceiling)
	for i := 1; i < attempt && d < ceiling; i++ {
		if d >= ceiling-d {
			return ceiling
		}
		d *= 2
	}
	return d
}

// wait sleeps for d or until ctx is done.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
