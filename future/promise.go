package future

import "github.com/amp-labs/amp-hsm/try"

// Promise is the write side of an asynchronous computation. It fulfills
// its Future at most once: later fulfillments are ignored, from any
// goroutine, without error.
type Promise[T any] struct {
	future *Future[T]
}

// Success fulfills the promise with a value.
func (p *Promise[T]) Success(value T) {
	p.fulfill(try.Success(value))
}

// Failure fulfills the promise with an error.
func (p *Promise[T]) Failure(err error) {
	p.fulfill(try.Failure[T](err))
}

// Complete fulfills the promise from a conventional (value, error) pair,
// matching the shape of most Go call sites.
func (p *Promise[T]) Complete(value T, err error) {
	p.fulfill(try.FromResult(value, err))
}

// IsCompleted reports whether the promise has been fulfilled.
func (p *Promise[T]) IsCompleted() bool {
	return p.future.completed.Load()
}

// fulfill stores the result exactly once, broadcasts readiness by closing
// the ready channel, and fires callbacks registered so far. The channel
// close happens under the future's mutex so late registrations observe
// the result instead of being lost.
func (p *Promise[T]) fulfill(result try.Try[T]) {
	p.future.once.Do(func() {
		fut := p.future

		fut.result = result
		fut.completed.Store(true)

		fut.mu.Lock()

		close(fut.resultReady)

		successCallbacks := fut.successCallbacks
		errorCallbacks := fut.errorCallbacks
		resultCallbacks := fut.resultCallbacks

		// Clear so each callback fires once and the GC can collect them.
		fut.successCallbacks = nil
		fut.errorCallbacks = nil
		fut.resultCallbacks = nil

		fut.mu.Unlock()

		for _, callback := range resultCallbacks {
			invokeCallback("OnResult", callback, result)
		}

		if result.IsSuccess() {
			for _, callback := range successCallbacks {
				invokeCallback("OnSuccess", callback, result.Value)
			}
		} else {
			for _, callback := range errorCallbacks {
				invokeCallback("OnError", callback, result.Error)
			}
		}
	})
}
