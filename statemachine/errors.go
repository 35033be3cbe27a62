package statemachine

import (
	"errors"
	"fmt"
)

// Tree construction errors.
var (
	// ErrMissingRoot indicates a tree was constructed without a root state ID.
	ErrMissingRoot = errors.New("tree requires a root state")

	// ErrDuplicateID indicates a state with the same ID already exists in the tree.
	ErrDuplicateID = errors.New("duplicate state ID")

	// ErrInvalidParent indicates a state's declared parent is missing or cannot
	// have children.
	ErrInvalidParent = errors.New("invalid parent state")
)

// Lookup and execution errors.
var (
	// ErrUnknownState indicates a state ID that is not present in the tree.
	ErrUnknownState = errors.New("unknown state")

	// ErrInvalidChild indicates an initial transition selected a state that is
	// not a direct child of the state being entered.
	ErrInvalidChild = errors.New("invalid child state")

	// ErrAlreadyTerminal indicates an operation on a machine that has already
	// reached its terminal state.
	ErrAlreadyTerminal = errors.New("machine is already terminal")
)

// Configuration errors.
var (
	// ErrNilConfig indicates a nil config was passed to BuildTree.
	ErrNilConfig = errors.New("config is nil")

	// ErrConfigNameRequired indicates a config without a machine name.
	ErrConfigNameRequired = errors.New("config name is required")

	// ErrConfigRootRequired indicates a config without a root state.
	ErrConfigRootRequired = errors.New("config root state is required")

	// ErrConfigStateNameRequired indicates a declared state without a name.
	ErrConfigStateNameRequired = errors.New("state name is required")

	// ErrConfigDuplicateState indicates two declared states sharing a name.
	ErrConfigDuplicateState = errors.New("duplicate state name")

	// ErrConfigParentRequired indicates a declared state without a parent.
	ErrConfigParentRequired = errors.New("state parent is required")

	// ErrConfigUnknownParent indicates a parent reference that names no
	// declared state.
	ErrConfigUnknownParent = errors.New("unknown parent state")

	// ErrConfigLeafParent indicates a parent reference that names a leaf state.
	ErrConfigLeafParent = errors.New("leaf states cannot have children")

	// ErrConfigInvalidKind indicates a state kind outside interior/leaf.
	ErrConfigInvalidKind = errors.New("invalid state kind")

	// ErrConfigLeafInitial indicates an initial transition declared on a leaf.
	ErrConfigLeafInitial = errors.New("leaf states cannot declare an initial transition")

	// ErrConfigParentCycle indicates declared states whose parent references
	// form a cycle.
	ErrConfigParentCycle = errors.New("state parents form a cycle")

	// ErrUnknownHandler indicates a handler name with no registry entry.
	ErrUnknownHandler = errors.New("unknown handler")

	// ErrNoConfigLoader indicates a named config load without a registered loader.
	ErrNoConfigLoader = errors.New("no config loader registered; use SetConfigLoader() or provide a file path")
)

// StateError wraps an error produced while running one state's handler.
type StateError struct {
	State StateID
	Err   error
}

func (e *StateError) Error() string {
	return fmt.Sprintf("state %s: %v", e.State, e.Err)
}

func (e *StateError) Unwrap() error {
	return e.Err
}

// TransitionError wraps a failure inside a composed transition between two
// states. The wrapped error usually carries a StateError identifying the
// handler that failed.
type TransitionError struct {
	From StateID
	To   StateID
	Err  error
}

func (e *TransitionError) Error() string {
	if e.To == "" {
		return fmt.Sprintf("transition from %s: %v", e.From, e.Err)
	}

	return fmt.Sprintf("transition %s -> %s: %v", e.From, e.To, e.Err)
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}

// WrapStateError wraps an error with state context. Returns nil if err is nil.
func WrapStateError(state StateID, err error) error {
	if err == nil {
		return nil
	}

	return &StateError{
		State: state,
		Err:   err,
	}
}

// WrapTransitionError wraps an error with transition context. Returns nil if
// err is nil.
func WrapTransitionError(from, to StateID, err error) error {
	if err == nil {
		return nil
	}

	return &TransitionError{
		From: from,
		To:   to,
		Err:  err,
	}
}
