package testing

import (
	"context"
	"fmt"

	"github.com/amp-labs/amp-hsm/statemachine"
)

// Msg is the message type used by the shared fixtures.
type Msg string

// Data is the machine data threaded through the shared fixtures. Hops counts
// how many enter and exit handlers have observed the value.
type Data struct {
	Hops int
}

// State identifiers for the nested fixture tree:
//
//	root
//	├── a
//	│   ├── a1
//	│   └── a2
//	│       └── a2a
//	└── b
//	    └── b1
const (
	Root statemachine.StateID = "root"
	A    statemachine.StateID = "a"
	A1   statemachine.StateID = "a1"
	A2   statemachine.StateID = "a2"
	A2A  statemachine.StateID = "a2a"
	B    statemachine.StateID = "b"
	B1   statemachine.StateID = "b1"
)

// Routing maps messages to per-state message handlers when building a fixture
// tree. States absent from the map get no message handler of their own.
type Routing map[statemachine.StateID]statemachine.MessageHandler[Msg, Data]

// ChildOf returns an initial transition that descends into the given child
// without touching the data.
func ChildOf(child statemachine.StateID) statemachine.InitialTransition[Data] {
	return func(_ context.Context, data Data) (Data, statemachine.StateID, error) {
		return data, child, nil
	}
}

// Handlers builds a Handlers value whose enter and exit callbacks record
// themselves on the Recorder and bump Data.Hops. The message handler is
// attached as given and may be nil.
func (r *Recorder) Handlers(id statemachine.StateID, onMessage statemachine.MessageHandler[Msg, Data]) statemachine.Handlers[Msg, Data] {
	return statemachine.Handlers[Msg, Data]{
		OnMessage: onMessage,
		OnEnter: func(_ context.Context, tc statemachine.TransitionContext[Data]) (Data, error) {
			r.Recordf("enter:%s", id)

			next := tc.TargetData
			next.Hops++

			return next, nil
		},
		OnExit: func(_ context.Context, tc statemachine.TransitionContext[Data]) (Data, error) {
			r.Recordf("exit:%s", id)

			next := tc.TargetData
			next.Hops++

			return next, nil
		},
	}
}

// Action returns a transition action that records the label together with the
// transition endpoints and the state whose handler requested it.
func (r *Recorder) Action(label string) statemachine.TransitionHandler[Data] {
	return func(_ context.Context, tc statemachine.TransitionContext[Data]) (Data, error) {
		r.Recordf("action:%s:%s->%s@%s", label, tc.Source, tc.Target, tc.Handling)

		return tc.TargetData, nil
	}
}

// NestedTree builds the shared three-level fixture tree with recording enter
// and exit handlers on every state and message handlers taken from routing.
func NestedTree(rec *Recorder, routing Routing) (statemachine.Tree[Msg, Data], error) {
	tree, err := statemachine.NewTreeBuilder(
		Root, rec.Handlers(Root, routing[Root]), ChildOf(A),
		statemachine.WithName("nested"),
	).
		Interior(A, Root, rec.Handlers(A, routing[A]), ChildOf(A1)).
		Leaf(A1, A, rec.Handlers(A1, routing[A1])).
		Interior(A2, A, rec.Handlers(A2, routing[A2]), ChildOf(A2A)).
		Leaf(A2A, A2, rec.Handlers(A2A, routing[A2A])).
		Interior(B, Root, rec.Handlers(B, routing[B]), ChildOf(B1)).
		Leaf(B1, B, rec.Handlers(B1, routing[B1])).
		Build()
	if err != nil {
		return statemachine.Tree[Msg, Data]{}, fmt.Errorf("building nested fixture tree: %w", err)
	}

	return tree, nil
}
