package statemachine

import "github.com/amp-labs/amp-hsm/optional"

// ResultKind discriminates what a message handler asked for.
type ResultKind int

const (
	// ResultUnhandled defers the message to the parent state.
	ResultUnhandled ResultKind = iota
	// ResultStay keeps the current state and updates data only.
	ResultStay
	// ResultTransition moves the machine to a named target state.
	ResultTransition
	// ResultSelf exits and re-enters the machine's current state.
	ResultSelf
	// ResultStop moves the machine to the synthetic terminal state.
	ResultStop
	// ResultReject reports the message as invalid in the current state.
	ResultReject
)

func (k ResultKind) String() string {
	switch k {
	case ResultUnhandled:
		return "unhandled"
	case ResultStay:
		return "stay"
	case ResultTransition:
		return "transition"
	case ResultSelf:
		return "self"
	case ResultStop:
		return "stop"
	case ResultReject:
		return "reject"
	default:
		return "unknown"
	}
}

// MessageResult is a message handler's decision. Build one with the
// constructors below. The zero value defers to the parent state.
type MessageResult[D any] struct {
	kind   ResultKind
	target StateID
	data   D
	action TransitionHandler[D]
	reason optional.Value[string]
	code   string
}

// Unhandled defers the message to the parent state, which sees the same
// message and the same data.
func Unhandled[D any]() MessageResult[D] {
	return MessageResult[D]{kind: ResultUnhandled}
}

// Stay keeps the machine in its current state with updated data. No
// exit, entry or action handlers run.
func Stay[D any](next D) MessageResult[D] {
	return MessageResult[D]{kind: ResultStay, data: next}
}

// Transition moves the machine to target carrying next as the data the
// transition starts from. Attach a transition action with WithAction.
func Transition[D any](target StateID, next D) MessageResult[D] {
	return MessageResult[D]{kind: ResultTransition, target: target, data: next}
}

// SelfTransition exits and re-enters the machine's current state exactly
// once each. The current state is the machine's, not the handling
// state's: an ancestor handler returning SelfTransition cycles the state
// the machine actually rests in.
func SelfTransition[D any](next D) MessageResult[D] {
	return MessageResult[D]{kind: ResultSelf, data: next}
}

// Stop ends the machine in the terminal state. Attach a reason with
// WithReason.
func Stop[D any]() MessageResult[D] {
	return MessageResult[D]{kind: ResultStop}
}

// Reject reports the message as invalid in the current state. Rejection
// is a normal outcome: the dispatch succeeds and the machine is
// unchanged.
func Reject[D any](reason, code string) MessageResult[D] {
	return MessageResult[D]{kind: ResultReject, reason: optional.Some(reason), code: code}
}

// WithAction attaches an action that runs between the exit and entry
// phases of the transition, with the least common ancestor as the
// handling state. Meaningful on Transition and SelfTransition results.
func (r MessageResult[D]) WithAction(action TransitionHandler[D]) MessageResult[D] {
	r.action = action

	return r
}

// WithReason attaches an operator-readable reason to a Stop result.
func (r MessageResult[D]) WithReason(reason string) MessageResult[D] {
	r.reason = optional.Some(reason)

	return r
}

// Kind returns which decision this result carries.
func (r MessageResult[D]) Kind() ResultKind {
	return r.kind
}

// ProcessedKind discriminates dispatch outcomes.
type ProcessedKind int

const (
	// ProcessedHandled means a state accepted the message and the
	// machine advanced: its data, its state, or both.
	ProcessedHandled ProcessedKind = iota
	// ProcessedUnhandled means no state accepted the message. The
	// machine is unchanged and the dispatch still succeeded.
	ProcessedUnhandled
	// ProcessedRejected means a handler declared the message invalid.
	// The machine is unchanged.
	ProcessedRejected
)

func (k ProcessedKind) String() string {
	switch k {
	case ProcessedHandled:
		return "handled"
	case ProcessedUnhandled:
		return "unhandled"
	case ProcessedRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Processed reports how one dispatch went. Prev and Next are the machine
// contexts before and after; they are equal when the machine did not
// move. Entered and Exited list, in execution order, the states whose
// entry and exit steps were part of the transition, descent included.
type Processed[M, D any] struct {
	Kind    ProcessedKind
	Message M
	Prev    Context[M, D]
	Next    Context[M, D]
	Entered []StateID
	Exited  []StateID

	// Rejection details, set when Kind is ProcessedRejected.
	Reason string
	Code   string
}
