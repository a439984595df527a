package rest

import (
	"context"
	"sync"
)

// Future adapts a request's completion to an awaitable value. Callers block
// on Get or select on Done; only the calling goroutine ever blocks.
type Future[T any] struct {
	mu        sync.Mutex
	done      chan struct{}
	val       T
	err       error
	completed bool
	cancelFn  func() bool
}

// NewFuture returns an incomplete future.
func NewFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// CompletedFuture returns a future already resolved with val. Used for
// locally-satisfiable calls that need no transport exchange.
func CompletedFuture[T any](val T) *Future[T] {
	f := NewFuture[T]()
	f.Complete(val)
	return f
}

// FailedFuture returns a future already resolved with err. Used when a call
// is rejected by local validation before any request is built.
func FailedFuture[T any](err error) *Future[T] {
	f := NewFuture[T]()
	f.CompleteError(err)
	return f
}

// BindCancel wires Cancel through to the underlying request.
func (f *Future[T]) BindCancel(fn func() bool) {
	f.mu.Lock()
	f.cancelFn = fn
	f.mu.Unlock()
}

// Complete resolves the future with a value. Returns false if the future
// was already resolved.
func (f *Future[T]) Complete(val T) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.completed {
		return false
	}
	f.val = val
	f.completed = true
	close(f.done)
	return true
}

// CompleteError resolves the future with an error.
func (f *Future[T]) CompleteError(err error) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.completed {
		return false
	}
	f.err = err
	f.completed = true
	close(f.done)
	return true
}

// Cancel cancels the bound request when one exists and resolves the future
// with ErrCanceled. No-op once resolved.
func (f *Future[T]) Cancel() bool {
	f.mu.Lock()
	cancelFn := f.cancelFn
	f.mu.Unlock()

	if cancelFn != nil {
		cancelFn()
	}
	return f.CompleteError(ErrCanceled)
}

// Done returns a channel closed when the future resolves.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Get blocks until the future resolves or ctx is done.
func (f *Future[T]) Get(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
