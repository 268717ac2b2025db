// Package pending provides the deferred-result handle that resolvers hand back
// to the executor.
//
// A Computation settles exactly once, to a value or an error. Waiters observe
// the settled result through Await or Done. A waiter that gives up (its context
// ends first) abandons the computation: the computation keeps running to
// completion but its result only ever lands in its own handle, so late results
// never touch shared state.
package pending

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
)

// Computation is a value that may not be available yet.
type Computation[T any] struct {
	done  chan struct{}
	once  sync.Once
	value T
	err   error
}

func newComputation[T any]() *Computation[T] {
	return &Computation[T]{done: make(chan struct{})}
}

// Go runs fn on its own goroutine and returns a handle to its result. A panic
// inside fn settles the computation with an error instead of crashing the
// process.
func Go[T any](ctx context.Context, fn func(context.Context) (T, error)) *Computation[T] {
	c := newComputation[T]()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				var zero T
				c.settle(zero, &PanicError{Value: r, Stack: debug.Stack()})
			}
		}()
		v, err := fn(ctx)
		c.settle(v, err)
	}()
	return c
}

// Resolved returns an already settled computation holding v.
func Resolved[T any](v T) *Computation[T] {
	c := newComputation[T]()
	c.settle(v, nil)
	return c
}

// Failed returns an already settled computation holding err.
func Failed[T any](err error) *Computation[T] {
	c := newComputation[T]()
	var zero T
	c.settle(zero, err)
	return c
}

// Promise is the write side of a Computation that is settled by the caller.
type Promise[T any] struct {
	c *Computation[T]
}

// New returns an unsettled computation together with its write side.
func New[T any]() (*Computation[T], Promise[T]) {
	c := newComputation[T]()
	return c, Promise[T]{c: c}
}

// Resolve settles the computation with v. Later calls are ignored.
func (p Promise[T]) Resolve(v T) { p.c.settle(v, nil) }

// Reject settles the computation with err. Later calls are ignored.
func (p Promise[T]) Reject(err error) {
	var zero T
	p.c.settle(zero, err)
}

func (c *Computation[T]) settle(v T, err error) {
	c.once.Do(func() {
		c.value = v
		c.err = err
		close(c.done)
	})
}

// Done is closed once the computation has settled.
func (c *Computation[T]) Done() <-chan struct{} { return c.done }

// Settled reports whether the computation has a result.
func (c *Computation[T]) Settled() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Await blocks until the computation settles or ctx ends. When ctx ends first
// the computation is abandoned and ctx.Err() is returned.
func (c *Computation[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-c.done:
		return c.value, c.err
	default:
	}
	select {
	case <-c.done:
		return c.value, c.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Then derives a computation from c's value. fn runs only when c succeeds.
func Then[T, U any](ctx context.Context, c *Computation[T], fn func(T) (U, error)) *Computation[U] {
	return Go(ctx, func(ctx context.Context) (U, error) {
		v, err := c.Await(ctx)
		if err != nil {
			var zero U
			return zero, err
		}
		return fn(v)
	})
}

// Result is one settled outcome collected by AwaitAll.
type Result[T any] struct {
	Value T
	Err   error
}

// AwaitAll joins every computation, preserving order. If ctx ends before all
// have settled, the unsettled ones report ctx.Err().
func AwaitAll[T any](ctx context.Context, cs []*Computation[T]) []Result[T] {
	out := make([]Result[T], len(cs))
	for i, c := range cs {
		if c == nil {
			out[i] = Result[T]{Err: fmt.Errorf("pending: nil computation at index %d", i)}
			continue
		}
		v, err := c.Await(ctx)
		out[i] = Result[T]{Value: v, Err: err}
	}
	return out
}

// All settles once every computation in cs has settled. It holds the values in
// order, or the first error by position.
func All[T any](ctx context.Context, cs []*Computation[T]) *Computation[[]T] {
	if len(cs) == 0 {
		return Resolved([]T{})
	}
	return Go(ctx, func(ctx context.Context) ([]T, error) {
		out := make([]T, len(cs))
		for i, r := range AwaitAll(ctx, cs) {
			if r.Err != nil {
				return nil, r.Err
			}
			out[i] = r.Value
		}
		return out, nil
	})
}

// PanicError carries a value recovered from a panicking computation.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Value) }
