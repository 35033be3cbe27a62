package statemachine

// Context is the externally visible snapshot of one machine: its current
// state, the caller-owned data value, and the tree it runs on. Engine
// operations never mutate a Context; each successful operation returns a
// fresh one, so snapshots stay valid indefinitely.
type Context[M, D any] struct {
	state State[M, D]
	data  D
	tree  Tree[M, D]
}

// State returns the machine's current state.
func (c Context[M, D]) State() State[M, D] {
	return c.state
}

// Data returns the machine's current data value.
func (c Context[M, D]) Data() D { //nolint:ireturn
	return c.data
}

// Tree returns the tree the machine runs on.
func (c Context[M, D]) Tree() Tree[M, D] {
	return c.tree
}

// Terminated reports whether the machine rests in the terminal state.
func (c Context[M, D]) Terminated() bool {
	return c.state.IsTerminal()
}

// TransitionContext is the immutable view handlers receive during exits,
// entries and transition actions. Source is the state the transition
// left and Target where it is headed (TerminalStateID when stopping).
// Handling names the state whose handler is currently running: each
// exited or entered state in turn, and the least common ancestor for the
// action itself. SourceData is the data the transition started with;
// TargetData is the value accumulated so far along the composed
// exit/action/entry chain.
type TransitionContext[D any] struct {
	Source     StateID
	Target     StateID
	Handling   StateID
	SourceData D
	TargetData D
}
