package statemachine

import (
	"fmt"
	"iter"
	"maps"
	"slices"

	"github.com/amp-labs/amp-hsm/optional"
)

// TreeOption configures a Tree at construction time.
type TreeOption func(*treeOptions)

type treeOptions struct {
	name   string
	logger Logger
}

// WithName sets the machine name used in logs, metrics and spans.
// Defaults to the root state's ID.
func WithName(name string) TreeOption {
	return func(o *treeOptions) {
		o.name = name
	}
}

// WithLogger sets the logger the engine reports execution events to.
// Defaults to a no-op logger.
func WithLogger(logger Logger) TreeOption {
	return func(o *treeOptions) {
		o.logger = logger
	}
}

// Tree is an immutable hierarchy of states sharing a single root. Add
// methods return a new Tree and leave the receiver untouched, so a tree
// can be shared freely between machines and goroutines once built.
//
// The zero Tree is not usable; construct one with NewTree.
type Tree[M, D any] struct {
	name   string
	rootID StateID
	states map[StateID]State[M, D]
	logger Logger
}

// NewTree creates a tree holding only its root state. The root may carry
// message handlers, entry/exit handlers and an initial transition like
// any other composite state.
func NewTree[M, D any](
	rootID StateID,
	handlers Handlers[M, D],
	initial InitialTransition[D],
	opts ...TreeOption,
) (Tree[M, D], error) {
	if rootID == "" {
		return Tree[M, D]{}, ErrMissingRoot
	}

	options := treeOptions{
		name:   string(rootID),
		logger: NopLogger{},
	}

	for _, opt := range opts {
		opt(&options)
	}

	return Tree[M, D]{
		name:   options.name,
		rootID: rootID,
		states: map[StateID]State[M, D]{
			rootID: newRoot(rootID, handlers, initial),
		},
		logger: options.logger,
	}, nil
}

// AddInterior returns a new tree with a composite state added under
// parent. When initial is nil the state is a rest state: a machine can
// stay in it after a transition targets it.
func (t Tree[M, D]) AddInterior(
	id, parent StateID,
	handlers Handlers[M, D],
	initial InitialTransition[D],
) (Tree[M, D], error) {
	return t.add(newInterior(id, parent, handlers, initial))
}

// AddLeaf returns a new tree with a childless state added under parent.
func (t Tree[M, D]) AddLeaf(id, parent StateID, handlers Handlers[M, D]) (Tree[M, D], error) {
	return t.add(newLeaf(id, parent, handlers))
}

func (t Tree[M, D]) add(s State[M, D]) (Tree[M, D], error) {
	if _, ok := t.states[s.id]; ok {
		return t, fmt.Errorf("%w: %q", ErrDuplicateID, s.id)
	}

	parent, ok := t.states[s.parent]
	if !ok {
		return t, fmt.Errorf("%w: %q of state %q is not in the tree", ErrInvalidParent, s.parent, s.id)
	}

	if parent.kind == KindLeaf {
		return t, fmt.Errorf("%w: %q of state %q is a leaf", ErrInvalidParent, s.parent, s.id)
	}

	states := maps.Clone(t.states)
	states[s.id] = s

	return Tree[M, D]{
		name:   t.name,
		rootID: t.rootID,
		states: states,
		logger: t.logger,
	}, nil
}

// Name returns the machine name.
func (t Tree[M, D]) Name() string {
	return t.name
}

// RootID returns the root state's ID.
func (t Tree[M, D]) RootID() StateID {
	return t.rootID
}

// Root returns the root state.
func (t Tree[M, D]) Root() State[M, D] {
	return t.states[t.rootID]
}

// Len returns the number of states in the tree.
func (t Tree[M, D]) Len() int {
	return len(t.states)
}

// Contains reports whether a state with the given ID is in the tree.
func (t Tree[M, D]) Contains(id StateID) bool {
	_, ok := t.states[id]

	return ok
}

// Find returns the state with the given ID, or ErrUnknownState.
func (t Tree[M, D]) Find(id StateID) (State[M, D], error) {
	s, ok := t.states[id]
	if !ok {
		return State[M, D]{}, fmt.Errorf("%w: %q", ErrUnknownState, id)
	}

	return s, nil
}

// TryFind returns the state with the given ID, if present.
func (t Tree[M, D]) TryFind(id StateID) optional.Value[State[M, D]] {
	s, ok := t.states[id]
	if !ok {
		return optional.None[State[M, D]]()
	}

	return optional.Some(s)
}

// Parent returns the parent of the state with the given ID. The result
// is empty for the root. Fails with ErrUnknownState when id is not in
// the tree.
func (t Tree[M, D]) Parent(id StateID) (optional.Value[State[M, D]], error) {
	s, err := t.Find(id)
	if err != nil {
		return optional.None[State[M, D]](), err
	}

	parentID, ok := s.Parent()
	if !ok {
		return optional.None[State[M, D]](), nil
	}

	return optional.Some(t.states[parentID]), nil
}

// Ancestors returns the proper ancestors of the state with the given ID,
// nearest first, root last. The root has none.
func (t Tree[M, D]) Ancestors(id StateID) ([]State[M, D], error) {
	chain, err := t.SelfAndAncestors(id)
	if err != nil {
		return nil, err
	}

	return chain[1:], nil
}

// SelfAndAncestors returns the state with the given ID followed by its
// ancestors up to and including the root.
func (t Tree[M, D]) SelfAndAncestors(id StateID) ([]State[M, D], error) {
	s, err := t.Find(id)
	if err != nil {
		return nil, err
	}

	chain := []State[M, D]{s}

	for {
		parentID, ok := s.Parent()
		if !ok {
			return chain, nil
		}

		s = t.states[parentID]
		chain = append(chain, s)
	}
}

// IsSelfOrAncestor reports whether candidate equals the state with the
// given ID or sits on its ancestor chain. Unknown IDs report false.
func (t Tree[M, D]) IsSelfOrAncestor(id, candidate StateID) bool {
	s, ok := t.states[id]
	if !ok {
		return false
	}

	for {
		if s.id == candidate {
			return true
		}

		parentID, hasParent := s.Parent()
		if !hasParent {
			return false
		}

		s = t.states[parentID]
	}
}

// States iterates over the tree's states in unspecified order.
func (t Tree[M, D]) States() iter.Seq[State[M, D]] {
	return func(yield func(State[M, D]) bool) {
		for _, s := range t.states {
			if !yield(s) {
				return
			}
		}
	}
}

// rootFirstIDs returns the chain from the root down to id. The caller
// guarantees id is in the tree.
func (t Tree[M, D]) rootFirstIDs(id StateID) []StateID {
	ids := []StateID{id}
	s := t.states[id]

	for {
		parentID, ok := s.Parent()
		if !ok {
			break
		}

		ids = append(ids, parentID)
		s = t.states[parentID]
	}

	slices.Reverse(ids)

	return ids
}

// rootFirstStates is rootFirstIDs resolved to states.
func (t Tree[M, D]) rootFirstStates(id StateID) []State[M, D] {
	ids := t.rootFirstIDs(id)
	states := make([]State[M, D], 0, len(ids))

	for _, stateID := range ids {
		states = append(states, t.states[stateID])
	}

	return states
}

// childOf returns the state with the given ID if it is a direct child of
// parent.
func (t Tree[M, D]) childOf(parent, id StateID) (State[M, D], bool) {
	s, ok := t.states[id]
	if !ok || s.parent != parent || s.kind == KindRoot {
		return State[M, D]{}, false
	}

	return s, true
}

// log returns the tree's logger, tolerating zero-value trees.
func (t Tree[M, D]) log() Logger {
	if t.logger == nil {
		return NopLogger{}
	}

	return t.logger
}
