// Package future provides future/promise pairs for handing results of
// asynchronous work to callers. A Future is the read side: it can be
// awaited (with or without a context), converted to a channel, or given
// callbacks. The matching Promise is the write side and is fulfilled at
// most once.
package future

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"go.uber.org/atomic"

	"github.com/amp-labs/amp-hsm/try"
)

// Future is the read side of an asynchronous computation. It completes
// exactly once; every Await, channel and callback observes that single
// result. The zero value is not usable, construct through New, Go or
// GoContext.
type Future[T any] struct {
	result      try.Try[T]
	resultReady chan struct{}
	once        sync.Once
	completed   *atomic.Bool

	mu               sync.Mutex
	successCallbacks []func(T)
	errorCallbacks   []func(error)
	resultCallbacks  []func(try.Try[T])
}

// New creates an unfulfilled Future together with the Promise that
// completes it. The promise references the future, never the other way
// around, so futures can be handed out without exposing completion.
func New[T any]() (*Future[T], *Promise[T]) {
	fut := &Future[T]{
		resultReady: make(chan struct{}),
		completed:   atomic.NewBool(false),
	}

	return fut, &Promise[T]{future: fut}
}

// Go runs f in a new goroutine and returns a Future carrying its outcome.
// A panic inside f fails the future instead of crashing the process.
func Go[T any](f func() (T, error)) *Future[T] {
	fut, promise := New[T]()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				promise.Failure(panicError(r, debug.Stack()))
			}
		}()

		promise.Complete(f())
	}()

	return fut
}

// GoContext runs f with ctx in a new goroutine and returns a Future
// carrying its outcome. Cancellation is cooperative: f decides whether
// and how to honor ctx.
func GoContext[T any](ctx context.Context, f func(context.Context) (T, error)) *Future[T] {
	fut, promise := New[T]()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				promise.Failure(panicError(r, debug.Stack()))
			}
		}()

		promise.Complete(f(ctx))
	}()

	return fut
}

// Await blocks until the future completes and returns its outcome.
func (f *Future[T]) Await() (T, error) { //nolint:ireturn
	<-f.resultReady

	return f.result.Get()
}

// AwaitContext blocks until the future completes or ctx is done,
// whichever comes first. Abandoning the wait does not affect the
// underlying computation, which still runs to completion.
func (f *Future[T]) AwaitContext(ctx context.Context) (T, error) { //nolint:ireturn
	select {
	case <-ctx.Done():
		var zero T

		return zero, ctx.Err()
	case <-f.resultReady:
		return f.result.Get()
	}
}

// IsCompleted reports whether the future already holds its result.
func (f *Future[T]) IsCompleted() bool {
	return f.completed.Load()
}

// OnSuccess registers a callback invoked with the value if the future
// completes successfully. Registration after completion invokes the
// callback right away. Callbacks run in their own goroutines.
func (f *Future[T]) OnSuccess(callback func(T)) {
	f.mu.Lock()
	defer f.mu.Unlock()

	select {
	case <-f.resultReady:
		if f.result.IsSuccess() {
			invokeCallback("OnSuccess", callback, f.result.Value)
		}
	default:
		f.successCallbacks = append(f.successCallbacks, callback)
	}
}

// OnError registers a callback invoked with the error if the future
// fails. Registration after completion invokes the callback right away.
// Callbacks run in their own goroutines.
func (f *Future[T]) OnError(callback func(error)) {
	f.mu.Lock()
	defer f.mu.Unlock()

	select {
	case <-f.resultReady:
		if f.result.IsFailure() {
			invokeCallback("OnError", callback, f.result.Error)
		}
	default:
		f.errorCallbacks = append(f.errorCallbacks, callback)
	}
}

// OnResult registers a callback invoked with the outcome, success or
// failure, once the future completes. Registration after completion
// invokes the callback right away. Callbacks run in their own goroutines.
func (f *Future[T]) OnResult(callback func(try.Try[T])) {
	f.mu.Lock()
	defer f.mu.Unlock()

	select {
	case <-f.resultReady:
		invokeCallback("OnResult", callback, f.result)
	default:
		f.resultCallbacks = append(f.resultCallbacks, callback)
	}
}

// ToChannel returns a channel that receives the outcome once and is then
// closed. The channel is buffered, the send never blocks on the reader.
func (f *Future[T]) ToChannel() <-chan try.Try[T] {
	ch := make(chan try.Try[T], 1)

	f.OnResult(func(result try.Try[T]) {
		ch <- result
		close(ch)
	})

	return ch
}

// Map derives a future holding transform applied to this future's value.
// Failures pass through to the derived future unchanged.
func Map[T, U any](f *Future[T], transform func(T) (U, error)) *Future[U] {
	fut, promise := New[U]()

	f.OnResult(func(result try.Try[T]) {
		promise.fulfill(try.Map(result, transform))
	})

	return fut
}

// panicError converts a recovered panic value into an error, preserving
// wrapped error values where the panic carried one.
func panicError(r any, stack []byte) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("recovered from panic: %w\nstack trace: %s", err, stack)
	}

	return fmt.Errorf("recovered from panic: %v\nstack trace: %s", r, stack)
}
