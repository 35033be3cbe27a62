package statemachine

// TreeBuilder provides a fluent API for constructing state trees. Errors
// are deferred: the first failed addition sticks and Build reports it,
// so call chains stay unconditional.
type TreeBuilder[M, D any] struct {
	tree Tree[M, D]
	err  error
}

// NewTreeBuilder starts a builder whose tree has the given root state.
func NewTreeBuilder[M, D any](
	rootID StateID,
	handlers Handlers[M, D],
	initial InitialTransition[D],
	opts ...TreeOption,
) *TreeBuilder[M, D] {
	tree, err := NewTree(rootID, handlers, initial, opts...)

	return &TreeBuilder[M, D]{tree: tree, err: err}
}

// Interior adds a composite state under parent.
func (b *TreeBuilder[M, D]) Interior(
	id, parent StateID,
	handlers Handlers[M, D],
	initial InitialTransition[D],
) *TreeBuilder[M, D] {
	if b.err != nil {
		return b
	}

	b.tree, b.err = b.tree.AddInterior(id, parent, handlers, initial)

	return b
}

// Leaf adds a childless state under parent.
func (b *TreeBuilder[M, D]) Leaf(id, parent StateID, handlers Handlers[M, D]) *TreeBuilder[M, D] {
	if b.err != nil {
		return b
	}

	b.tree, b.err = b.tree.AddLeaf(id, parent, handlers)

	return b
}

// Build returns the accumulated tree, or the first error any addition
// produced.
func (b *TreeBuilder[M, D]) Build() (Tree[M, D], error) {
	if b.err != nil {
		return Tree[M, D]{}, b.err
	}

	return b.tree, nil
}
