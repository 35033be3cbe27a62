package agent

import (
	"errors"
	"fmt"
)

// Lifecycle errors.
var (
	// ErrNotStarted indicates an operation that needs a started agent.
	ErrNotStarted = errors.New("agent not started")

	// ErrAlreadyStarted indicates a second start on a started agent.
	ErrAlreadyStarted = errors.New("agent already started")

	// ErrAlreadyStopped indicates an operation on a stopped agent.
	ErrAlreadyStopped = errors.New("agent already stopped")

	// ErrAgentPanic indicates a handler panicked inside the worker. The
	// failing request gets the error; the agent itself keeps running.
	ErrAgentPanic = errors.New("agent panicked")
)

// panicErr converts a recovered panic value into an ErrAgentPanic-tagged
// error, preserving wrapped errors for errors.Is checks.
func panicErr(name string, recovered any) error {
	err, isErr := recovered.(error)
	if isErr {
		return fmt.Errorf("%w: %s: %w", ErrAgentPanic, name, err)
	}

	return fmt.Errorf("%w: %s: %v", ErrAgentPanic, name, recovered)
}
