// Package testing provides fixtures for exercising state machines: an
// ordered event recorder, handler builders that feed it, and the nested
// tree the engine and agent tests share.
package testing

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/amp-labs/amp-hsm/zero"
)

// Recorder captures handler activity in execution order. Safe for
// concurrent use, so one recorder can observe an agent's worker while
// the test goroutine asserts.
type Recorder struct {
	mu     sync.Mutex
	events []string
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record appends one event.
func (r *Recorder) Record(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, event)
}

// Recordf appends one formatted event.
func (r *Recorder) Recordf(format string, args ...any) {
	r.Record(fmt.Sprintf(format, args...))
}

// Events returns a copy of the recorded events in order.
func (r *Recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, len(r.events))
	copy(out, r.events)

	return out
}

// Reset clears the recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = nil
}

// Receive reads one value from ch, failing the test after a second.
func Receive[T any](t *testing.T, ch <-chan T) T { //nolint:ireturn
	t.Helper()

	select {
	case v, ok := <-ch:
		require.True(t, ok, "channel closed before delivering a value")

		return v
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for a value")

		return zero.Value[T]()
	}
}

// ReceiveClosed asserts that ch closes within a second, draining any
// values still buffered.
func ReceiveClosed[T any](t *testing.T, ch <-chan T) {
	t.Helper()

	deadline := time.After(time.Second)

	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for the channel to close")
		}
	}
}
