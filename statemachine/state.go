package statemachine

import (
	"context"

	"github.com/amp-labs/amp-hsm/optional"
)

// StateID identifies a state within a tree. All engine comparisons
// (least common ancestor, exit/entry paths, self-transition detection)
// use id equality, never struct identity.
type StateID string

// TerminalStateID names the synthetic state a stopped machine rests in.
// It is never stored in a Tree; only contexts of stopped machines carry it.
const TerminalStateID StateID = "__terminal__"

// StateKind discriminates the state variants.
type StateKind int

const (
	// KindRoot is the single top state of a tree.
	KindRoot StateKind = iota
	// KindInterior is a composite state with a parent and children.
	KindInterior
	// KindLeaf is a childless state; machines usually rest in one.
	KindLeaf
	// KindTerminal is the synthetic stopped state.
	KindTerminal
)

func (k StateKind) String() string {
	switch k {
	case KindRoot:
		return "root"
	case KindInterior:
		return "interior"
	case KindLeaf:
		return "leaf"
	case KindTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// MessageHandler decides what a message means in a given state. A nil
// handler defers every message to the parent state.
type MessageHandler[M, D any] func(ctx context.Context, msg M, data D) (MessageResult[D], error)

// TransitionHandler runs when a state is entered or exited and when a
// transition action fires. It receives an immutable TransitionContext
// and returns the data the machine continues with. A nil handler leaves
// data unchanged.
type TransitionHandler[D any] func(ctx context.Context, tc TransitionContext[D]) (D, error)

// InitialTransition picks which direct child a composite state descends
// into, possibly updating data on the way down.
type InitialTransition[D any] func(ctx context.Context, data D) (D, StateID, error)

// Handlers bundles the callbacks of one state. Any field may be nil.
type Handlers[M, D any] struct {
	OnMessage MessageHandler[M, D]
	OnEnter   TransitionHandler[D]
	OnExit    TransitionHandler[D]
}

// State is one node of a state tree: the root, an interior composite, a
// leaf, or the synthetic terminal of a stopped machine. States are
// immutable values created by the tree (NewTree, AddInterior, AddLeaf)
// and, for terminals, by the engine; there is no way to hand-build one,
// which keeps the variant set closed.
type State[M, D any] struct {
	id       StateID
	kind     StateKind
	parent   StateID
	handlers Handlers[M, D]
	initial  InitialTransition[D]

	stoppedFrom StateID
	stopReason  optional.Value[string]
}

func newRoot[M, D any](id StateID, handlers Handlers[M, D], initial InitialTransition[D]) State[M, D] {
	return State[M, D]{id: id, kind: KindRoot, handlers: handlers, initial: initial}
}

func newInterior[M, D any](
	id, parent StateID,
	handlers Handlers[M, D],
	initial InitialTransition[D],
) State[M, D] {
	return State[M, D]{id: id, kind: KindInterior, parent: parent, handlers: handlers, initial: initial}
}

func newLeaf[M, D any](id, parent StateID, handlers Handlers[M, D]) State[M, D] {
	return State[M, D]{id: id, kind: KindLeaf, parent: parent, handlers: handlers}
}

func newTerminal[M, D any](root, from StateID, reason optional.Value[string]) State[M, D] {
	return State[M, D]{
		id:          TerminalStateID,
		kind:        KindTerminal,
		parent:      root,
		stoppedFrom: from,
		stopReason:  reason,
	}
}

// ID returns the state's identifier.
func (s State[M, D]) ID() StateID {
	return s.id
}

// Kind returns which variant this state is.
func (s State[M, D]) Kind() StateKind {
	return s.kind
}

// Parent returns the parent id. The root has none.
func (s State[M, D]) Parent() (StateID, bool) {
	if s.kind == KindRoot {
		return "", false
	}

	return s.parent, true
}

// Handlers returns the state's callbacks.
func (s State[M, D]) Handlers() Handlers[M, D] {
	return s.handlers
}

// Initial returns the state's initial transition. It is nil for rest
// states, which machines can settle in after a transition.
func (s State[M, D]) Initial() InitialTransition[D] {
	return s.initial
}

// IsTerminal reports whether this is the synthetic stopped state.
func (s State[M, D]) IsTerminal() bool {
	return s.kind == KindTerminal
}

// StoppedFrom returns the state the machine stopped from. It is only
// meaningful on terminal states.
func (s State[M, D]) StoppedFrom() StateID {
	return s.stoppedFrom
}

// StopReason returns the reason supplied when the machine stopped, if any.
func (s State[M, D]) StopReason() optional.Value[string] {
	return s.stopReason
}
