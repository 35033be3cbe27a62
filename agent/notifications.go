package agent

import (
	"sync"

	"github.com/amp-labs/amp-hsm/channels"
	"github.com/amp-labs/amp-hsm/optional"
	"github.com/amp-labs/amp-hsm/statemachine"
)

// TransitionEvent reports one executed transition: where the machine
// was, where it settled, and the states whose exit and entry steps ran
// along the way, in execution order.
type TransitionEvent[M, D any] struct {
	From    statemachine.StateID
	To      statemachine.StateID
	Entered []statemachine.StateID
	Exited  []statemachine.StateID
	Next    statemachine.Context[M, D]
}

// StopEvent reports the machine reaching its terminal state.
type StopEvent[M, D any] struct {
	From   statemachine.StateID
	Kind   StopKind
	Reason optional.Value[string]
	Final  statemachine.Context[M, D]
}

// topic is one subscription channel group. Each subscriber gets its own
// unbounded channel, so a slow consumer delays nobody, and publishing
// never blocks the worker.
type topic[T any] struct {
	mu     sync.Mutex
	closed bool
	subs   []chan<- T
}

func (t *topic[T]) subscribe() <-chan T {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		closed := make(chan T)
		close(closed)

		return closed
	}

	in, out, _ := channels.Infinite[T]()
	t.subs = append(t.subs, in)

	return out
}

func (t *topic[T]) publish(event T) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}

	for _, sub := range t.subs {
		sub <- event
	}
}

// close closes every subscriber channel after their buffered events
// drain. Safe to call more than once.
func (t *topic[T]) close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}

	t.closed = true

	for _, sub := range t.subs {
		channels.CloseIgnorePanic(sub)
	}

	t.subs = nil
}

// hub fans agent events out to subscribers. Events publish after the
// request that produced them has its reply, so a caller who awaits a
// send and then reads its subscription sees its own event.
type hub[M, D any] struct {
	processed   topic[statemachine.Processed[M, D]]
	transitions topic[TransitionEvent[M, D]]
	stops       topic[StopEvent[M, D]]
}

func (h *hub[M, D]) close() {
	h.processed.close()
	h.transitions.close()
	h.stops.close()
}
