package agent

import (
	"github.com/amp-labs/amp-hsm/optional"
	"github.com/amp-labs/amp-hsm/statemachine"
	"github.com/amp-labs/amp-hsm/zero"
)

// Phase is where an agent sits in its lifecycle.
type Phase int

const (
	// PhaseNew means the agent exists but no start has completed.
	PhaseNew Phase = iota
	// PhaseStarted means the machine is live and accepting messages.
	PhaseStarted
	// PhaseStopped means the machine reached its terminal state. Final.
	PhaseStopped
)

func (p Phase) String() string {
	switch p {
	case PhaseNew:
		return "new"
	case PhaseStarted:
		return "started"
	case PhaseStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// StopKind records what drove an agent to stop.
type StopKind int

const (
	// StopInternal means a message handler ended the machine.
	StopInternal StopKind = iota
	// StopExternal means a caller invoked Stop on the agent.
	StopExternal
)

func (k StopKind) String() string {
	switch k {
	case StopInternal:
		return "internal"
	case StopExternal:
		return "external"
	default:
		return "unknown"
	}
}

// Lifecycle is an immutable snapshot of an agent's phase and, once
// started, its machine context. Snapshots of stopped agents retain the
// final terminal context, the state the machine stopped from and what
// drove the stop.
type Lifecycle[M, D any] struct {
	phase    Phase
	context  statemachine.Context[M, D]
	from     statemachine.StateID
	stopKind StopKind
	reason   optional.Value[string]
}

func startedLifecycle[M, D any](ctx statemachine.Context[M, D]) Lifecycle[M, D] {
	return Lifecycle[M, D]{phase: PhaseStarted, context: ctx}
}

func stoppedLifecycle[M, D any](
	final statemachine.Context[M, D],
	from statemachine.StateID,
	kind StopKind,
	reason optional.Value[string],
) Lifecycle[M, D] {
	return Lifecycle[M, D]{
		phase:    PhaseStopped,
		context:  final,
		from:     from,
		stopKind: kind,
		reason:   reason,
	}
}

// Phase returns the lifecycle phase.
func (l Lifecycle[M, D]) Phase() Phase {
	return l.phase
}

// Context returns the machine context. It is absent before the first
// successful start; for stopped agents it is the final terminal context.
func (l Lifecycle[M, D]) Context() (statemachine.Context[M, D], bool) {
	if l.phase == PhaseNew {
		return statemachine.Context[M, D]{}, false
	}

	return l.context, true
}

// StoppedFrom returns the state the machine stopped from.
func (l Lifecycle[M, D]) StoppedFrom() (statemachine.StateID, bool) {
	if l.phase != PhaseStopped {
		return "", false
	}

	return l.from, true
}

// StopKind returns what drove the stop.
func (l Lifecycle[M, D]) StopKind() (StopKind, bool) {
	if l.phase != PhaseStopped {
		return StopInternal, false
	}

	return l.stopKind, true
}

// StopReason returns the reason recorded when the machine stopped, if the
// stop supplied one.
func (l Lifecycle[M, D]) StopReason() optional.Value[string] {
	if l.phase != PhaseStopped {
		return optional.None[string]()
	}

	return l.reason
}

// FinalData returns the machine's data as of the stop.
func (l Lifecycle[M, D]) FinalData() (D, bool) { //nolint:ireturn
	if l.phase != PhaseStopped {
		return zero.Value[D](), false
	}

	return l.context.Data(), true
}
