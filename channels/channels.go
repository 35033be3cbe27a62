// Package channels provides the channel plumbing used around mailboxes:
// bounded channels with a depth probe, unbounded FIFO buffering, and a
// close helper that tolerates double closes.
package channels

import "go.uber.org/atomic"

// CloseIgnorePanic closes ch, suppressing the panic raised when the
// channel is already closed. Nil channels are ignored.
func CloseIgnorePanic[T any](ch chan<- T) {
	if ch == nil {
		return
	}

	defer func() {
		_ = recover()
	}()

	close(ch)
}

// Create returns the send side, the receive side and a depth probe for a
// buffered channel. The probe reports how many values sit unread in the
// buffer.
func Create[T any](depth int) (chan<- T, <-chan T, func() int) {
	ch := make(chan T, depth)

	return ch, ch, func() int { return len(ch) }
}

// Infinite returns a send side and a receive side joined by an unbounded
// FIFO buffer, plus a probe reporting how many values are buffered.
// Sends never block. Closing the send side drains the buffer and then
// closes the receive side, so consumer range loops terminate naturally.
//
// The buffer grows without bound when the sender outpaces the receiver;
// watch the probe in long-running processes.
func Infinite[T any]() (chan<- T, <-chan T, func() int) {
	in := make(chan T)
	out := make(chan T)
	size := atomic.NewInt64(0)

	go func() {
		defer close(out)

		var queue []T

		for {
			if len(queue) == 0 {
				// Nothing buffered, the only possible move is another receive.
				v, ok := <-in
				if !ok {
					return
				}

				queue = append(queue, v)
				size.Inc()

				continue
			}

			select {
			case v, ok := <-in:
				if !ok {
					// Sender is gone, flush what is left.
					for _, pending := range queue {
						out <- pending
						size.Dec()
					}

					return
				}

				queue = append(queue, v)
				size.Inc()
			case out <- queue[0]:
				queue = queue[1:]
				size.Dec()
			}
		}
	}()

	return in, out, func() int { return int(size.Load()) }
}
