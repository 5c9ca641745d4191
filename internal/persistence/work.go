package persistence

import (
	"context"
	"fmt"
)

// Work is a unit of database work. Execute may be invoked several times for
// one run; each invocation sees a fresh transaction.
type Work[T any] interface {
	Execute(ctx context.Context, tx *Tx) (T, error)
}

// WorkFunc adapts a function to the Work interface.
type WorkFunc[T any] func(ctx context.Context, tx *Tx) (T, error)

// Execute calls f(ctx, tx).
func (f WorkFunc[T]) Execute(ctx context.Context, tx *Tx) (T, error) {
	return f(ctx, tx)
}

type namedWork[T any] struct {
	name string
	fn   WorkFunc[T]
}

func (w namedWork[T]) Execute(ctx context.Context, tx *Tx) (T, error) {
	return w.fn(ctx, tx)
}

func (w namedWork[T]) Name() string {
	return w.name
}

// Named wraps fn as a unit of work whose name appears in logs, failures and
// run reports.
func Named[T any](name string, fn func(ctx context.Context, tx *Tx) (T, error)) Work[T] {
	return namedWork[T]{name: name, fn: fn}
}

// workName returns the Name() of w when it has one, otherwise its type.
func workName(w any) string {
	if n, ok := w.(interface{ Name() string }); ok && n.Name() != "" {
		return n.Name()
	}
	return fmt.Sprintf("%T", w)
}
