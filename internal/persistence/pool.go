package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// leaseKey is the context key under which a Pool stores its lease.
// Keying on the pool lets one context carry leases from several pools.
type leaseKey struct {
	p *Pool
}

// Pool hands out context-scoped, reference-counted connection leases.
//
// Thread Safety:
//   - Pool methods are safe for concurrent use.
//   - A context carrying a lease must stay on the goroutine that acquired it.
type Pool struct {
	opener Opener
	logger Logger

	mu     sync.Mutex
	leases map[*Conn]struct{}
	closed bool
	opened uint64
	closes uint64
}

// PoolStats is a snapshot of pool activity.
type PoolStats struct {
	// Active is the number of live leases.
	Active int `json:"active"`

	// Opened counts physical connections obtained from the opener.
	Opened uint64 `json:"opened"`

	// Closed counts physical connections handed back to the opener.
	Closed uint64 `json:"closed"`
}

// NewPool creates a pool over the given opener. A nil logger discards output.
func NewPool(opener Opener, logger Logger) *Pool {
	return &Pool{
		opener: opener,
		logger: orNoop(logger),
		leases: make(map[*Conn]struct{}),
	}
}

// Acquire returns a connection for the execution context ctx.
//
// If ctx already carries a live lease from this pool, its count is
// incremented and ctx is returned as-is. Otherwise a physical connection is
// opened and a derived context carrying the new lease is returned. Callers
// must pass the returned context to the matching Release.
//
// Parameters:
//   - ctx: Execution context; also bounds the time spent opening a connection
//
// Returns:
//   - context.Context: Context carrying the lease
//   - *Conn: The leased connection
//   - error: ErrPoolClosed after Shutdown, or the opener's error
func (p *Pool) Acquire(ctx context.Context) (context.Context, *Conn, error) {
	if c := p.leaseFrom(ctx); c != nil {
		c.mu.Lock()
		if !c.closed {
			c.refs++
			c.mu.Unlock()
			return ctx, c, nil
		}
		c.mu.Unlock()
	}

	if p.isClosed() {
		return ctx, nil, ErrPoolClosed
	}

	raw, err := p.opener.Open(ctx)
	if err != nil {
		return ctx, nil, fmt.Errorf("acquiring connection: %w", err)
	}

	c := &Conn{
		id:         uuid.NewString(),
		raw:        raw,
		refs:       1,
		autoCommit: true,
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.opener.Close(raw) //nolint:errcheck // Shutdown raced the open; connection was never handed out
		return ctx, nil, ErrPoolClosed
	}
	p.leases[c] = struct{}{}
	p.opened++
	p.mu.Unlock()

	p.logger.Debug("connection leased", "conn_id", c.id)

	return context.WithValue(ctx, leaseKey{p: p}, c), c, nil
}

// Release gives back one acquisition made through ctx. When the count
// reaches zero the physical connection goes back to the opener and the
// lease in ctx is dead; a later Acquire on ctx opens a fresh connection.
//
// Releasing without an outstanding acquisition returns ErrNotAcquired.
func (p *Pool) Release(ctx context.Context) error {
	c := p.leaseFrom(ctx)
	if c == nil {
		p.logger.Error("release without acquire", "error", ErrNotAcquired)
		return ErrNotAcquired
	}

	c.mu.Lock()
	if c.closed || c.refs <= 0 {
		c.mu.Unlock()
		p.logger.Error("release of dead lease", "conn_id", c.id, "error", ErrNotAcquired)
		return ErrNotAcquired
	}
	c.refs--
	remaining := c.refs
	c.mu.Unlock()

	if remaining > 0 {
		return nil
	}
	return p.closeLease(c)
}

// ConnFrom returns the live lease carried by ctx, if any.
func (p *Pool) ConnFrom(ctx context.Context) (*Conn, bool) {
	c := p.leaseFrom(ctx)
	if c == nil {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, false
	}
	return c, true
}

// Shutdown refuses further acquisitions and force-closes every lease still
// outstanding. Leaked leases are logged and their open transactions rolled back.
func (p *Pool) Shutdown() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	leaked := make([]*Conn, 0, len(p.leases))
	for c := range p.leases {
		leaked = append(leaked, c)
	}
	p.mu.Unlock()

	var errs []error
	for _, c := range leaked {
		p.logger.Warn("closing leaked connection", "conn_id", c.id, "refs", c.Refs())
		if err := p.closeLease(c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Stats returns a snapshot of pool activity.
func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PoolStats{
		Active: len(p.leases),
		Opened: p.opened,
		Closed: p.closes,
	}
}

func (p *Pool) leaseFrom(ctx context.Context) *Conn {
	c, _ := ctx.Value(leaseKey{p: p}).(*Conn)
	return c
}

func (p *Pool) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// closeLease marks c dead, rolls back anything pending and returns the
// physical connection to the opener.
func (p *Pool) closeLease(c *Conn) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.refs = 0
	tx := c.tx
	c.tx = nil
	c.mu.Unlock()

	if tx != nil {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			p.logger.Warn("rolling back on close", "conn_id", c.id, "error", err)
		}
	}

	p.mu.Lock()
	delete(p.leases, c)
	p.closes++
	p.mu.Unlock()

	if err := p.opener.Close(c.raw); err != nil {
		p.logger.Warn("closing connection", "conn_id", c.id, "error", err)
		return fmt.Errorf("closing connection: %w", err)
	}

	p.logger.Debug("connection returned", "conn_id", c.id)
	return nil
}
