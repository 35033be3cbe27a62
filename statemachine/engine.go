// Package statemachine implements hierarchical state machines: immutable
// state trees whose states delegate unrecognized messages to their
// ancestors, with exit/action/entry chains composed through the least
// common ancestor on every transition.
//
// A machine is a Context value produced by Start and advanced by
// Process and Stop. Operations return new Context values and never
// mutate their receiver, so a Context can be snapshotted, shared and
// retried freely. For a mailbox-driven machine with async dispatch, see
// the agent package.
package statemachine

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/amp-labs/amp-hsm/optional"
)

// Outcome label values shared by metrics, logs and spans.
const (
	outcomeSuccess = "success"
	outcomeError   = "error"
)

// Start brings a machine to life at the tree's root: the root's entry
// handler runs, then initial transitions descend until a state without
// one. The returned Context rests in the state the descent settled on.
func Start[M, D any](ctx context.Context, tree Tree[M, D], data D) (Context[M, D], error) {
	return startAt(ctx, tree, data, tree.rootID)
}

// StartAt is Start beginning at an explicit state: entry handlers for
// the chain from the root down to at run first, then the descent
// continues from at. Fails with ErrUnknownState when at is not in the
// tree.
func StartAt[M, D any](ctx context.Context, tree Tree[M, D], data D, at StateID) (Context[M, D], error) {
	return startAt(ctx, tree, data, at)
}

func startAt[M, D any](goCtx context.Context, tree Tree[M, D], data D, at StateID) (_ Context[M, D], err error) {
	goCtx, span := startStartSpan(goCtx, tree.name, at)
	defer func() {
		machineStartsTotal.WithLabelValues(sanitizeMachine(tree.name), errOutcome(err)).Inc()
		finishSpan(span, err)
	}()

	start, err := tree.Find(at)
	if err != nil {
		return Context[M, D]{}, err
	}

	tc := TransitionContext[D]{
		Source:     at,
		Target:     at,
		SourceData: data,
	}

	cur := data
	for _, s := range tree.rootFirstStates(at) {
		cur, err = runEnter(goCtx, tree, s, tc, cur)
		if err != nil {
			return Context[M, D]{}, err
		}
	}

	final, cur, _, err := descend(goCtx, tree, start, cur, tc)
	if err != nil {
		return Context[M, D]{}, err
	}

	span.SetAttributes(attribute.String("resolved_state", string(final.id)))
	tree.log().MachineStarted(goCtx, tree.name, final.id)

	return Context[M, D]{state: final, data: cur, tree: tree}, nil
}

// Process dispatches one message. The current state sees it first; a
// state that leaves it unhandled defers to its parent, up to the root.
// A message nobody claims is reported ProcessedUnhandled with the
// machine unchanged, which is a successful dispatch, not an error.
//
// The receiver is never mutated: the advanced machine is p.Next.
func (c Context[M, D]) Process(goCtx context.Context, msg M) (p Processed[M, D], err error) {
	tree := c.tree

	goCtx, span := startProcessSpan(goCtx, tree.name, c.state.id)
	began := time.Now()

	defer func() {
		outcome := outcomeError
		if err == nil {
			outcome = p.Kind.String()
		}

		span.SetAttributes(
			attribute.String("outcome", outcome),
			attribute.String("to_state", string(p.Next.state.id)),
		)
		finishSpan(span, err)

		messagesProcessedTotal.WithLabelValues(sanitizeMachine(tree.name), outcome).Inc()
		processDuration.WithLabelValues(sanitizeMachine(tree.name), outcome).Observe(time.Since(began).Seconds())
		tree.log().MessageProcessed(goCtx, tree.name, outcome, time.Since(began), err)
	}()

	if c.state.IsTerminal() {
		return Processed[M, D]{}, fmt.Errorf("%w: cannot process %T", ErrAlreadyTerminal, msg)
	}

	handling, res, handled, err := c.resolve(goCtx, msg)
	if err != nil {
		return Processed[M, D]{}, err
	}

	if !handled {
		return Processed[M, D]{Kind: ProcessedUnhandled, Message: msg, Prev: c, Next: c}, nil
	}

	switch res.kind {
	case ResultStay:
		next := Context[M, D]{state: c.state, data: res.data, tree: tree}

		return Processed[M, D]{Kind: ProcessedHandled, Message: msg, Prev: c, Next: next}, nil

	case ResultReject:
		return Processed[M, D]{
			Kind:    ProcessedRejected,
			Message: msg,
			Prev:    c,
			Next:    c,
			Reason:  res.reason.GetOrElse(""),
			Code:    res.code,
		}, nil

	case ResultStop:
		terminal := newTerminal[M, D](tree.rootID, c.state.id, res.reason)

		next, entered, exited, err := c.transitionTo(goCtx, terminal, c.data, nil, false)
		if err != nil {
			return Processed[M, D]{}, err
		}

		machineStopsTotal.WithLabelValues(sanitizeMachine(tree.name), stopTriggerMessage).Inc()
		tree.log().MachineStopped(goCtx, tree.name, c.state.id, res.reason.GetOrElse(""))

		return Processed[M, D]{
			Kind:    ProcessedHandled,
			Message: msg,
			Prev:    c,
			Next:    next,
			Entered: entered,
			Exited:  exited,
		}, nil

	case ResultSelf:
		next, entered, exited, err := c.transitionTo(goCtx, c.state, res.data, res.action, true)
		if err != nil {
			return Processed[M, D]{}, err
		}

		return Processed[M, D]{
			Kind:    ProcessedHandled,
			Message: msg,
			Prev:    c,
			Next:    next,
			Entered: entered,
			Exited:  exited,
		}, nil

	case ResultTransition:
		target, err := tree.Find(res.target)
		if err != nil {
			return Processed[M, D]{}, WrapStateError(handling.id, err)
		}

		next, entered, exited, err := c.transitionTo(goCtx, target, res.data, res.action, false)
		if err != nil {
			return Processed[M, D]{}, err
		}

		return Processed[M, D]{
			Kind:    ProcessedHandled,
			Message: msg,
			Prev:    c,
			Next:    next,
			Entered: entered,
			Exited:  exited,
		}, nil

	case ResultUnhandled:
		// resolve never reports unhandled results as handled.
		fallthrough
	default:
		return Processed[M, D]{}, fmt.Errorf("%w: unexpected result kind %s", ErrUnknownState, res.kind)
	}
}

// resolve bubbles msg from the current state toward the root until some
// handler claims it. Handler errors abort the dispatch.
func (c Context[M, D]) resolve(goCtx context.Context, msg M) (State[M, D], MessageResult[D], bool, error) {
	handling := c.state

	for {
		if h := handling.handlers.OnMessage; h != nil {
			res, err := h(goCtx, msg, c.data)
			if err != nil {
				return handling, MessageResult[D]{}, false, WrapStateError(handling.id, err)
			}

			if res.kind != ResultUnhandled {
				return handling, res, true, nil
			}
		}

		parentID, ok := handling.Parent()
		if !ok {
			return handling, MessageResult[D]{}, false, nil
		}

		handling = c.tree.states[parentID]
	}
}

// Stop moves the machine to the terminal state: exit handlers run from
// the current state up to, but excluding, the root. Fails with
// ErrAlreadyTerminal when the machine already stopped.
func (c Context[M, D]) Stop(goCtx context.Context) (Context[M, D], error) {
	return c.stop(goCtx, "")
}

// StopWithReason is Stop recording an operator-readable reason on the
// terminal state.
func (c Context[M, D]) StopWithReason(goCtx context.Context, reason string) (Context[M, D], error) {
	return c.stop(goCtx, reason)
}

func (c Context[M, D]) stop(goCtx context.Context, reason string) (_ Context[M, D], err error) {
	tree := c.tree

	goCtx, span := startStopSpan(goCtx, tree.name, c.state.id)
	defer func() {
		finishSpan(span, err)
	}()

	if c.state.IsTerminal() {
		return Context[M, D]{}, ErrAlreadyTerminal
	}

	terminal := newTerminal[M, D](tree.rootID, c.state.id, optionalReason(reason))

	next, _, _, err := c.transitionTo(goCtx, terminal, c.data, nil, false)
	if err != nil {
		return Context[M, D]{}, err
	}

	machineStopsTotal.WithLabelValues(sanitizeMachine(tree.name), stopTriggerExplicit).Inc()
	tree.log().MachineStopped(goCtx, tree.name, c.state.id, reason)

	return next, nil
}

// transitionTo executes the composed exit/action/entry chain from the
// machine's current state to target, then descends via initial
// transitions. With selfCycle set the chain exits and re-enters the
// current state exactly once each, regardless of the least common
// ancestor algebra; that is the SelfTransition form.
func (c Context[M, D]) transitionTo(
	goCtx context.Context,
	target State[M, D],
	data D,
	action TransitionHandler[D],
	selfCycle bool,
) (Context[M, D], []StateID, []StateID, error) {
	tree := c.tree
	source := c.state

	exitPath, entryPath, lca := c.composePaths(target, selfCycle)

	tc := TransitionContext[D]{
		Source:     source.id,
		Target:     target.id,
		SourceData: data,
	}

	cur := data

	exited := make([]StateID, 0, len(exitPath))

	for _, s := range exitPath {
		var err error

		cur, err = runExit(goCtx, tree, s, tc, cur)
		if err != nil {
			return Context[M, D]{}, nil, nil, WrapTransitionError(source.id, target.id, err)
		}

		exited = append(exited, s.id)
	}

	if action != nil {
		actionTC := tc
		actionTC.Handling = lca
		actionTC.TargetData = cur

		next, err := action(goCtx, actionTC)
		if err != nil {
			return Context[M, D]{}, nil, nil, WrapTransitionError(source.id, target.id, WrapStateError(lca, err))
		}

		cur = next
	}

	entered := make([]StateID, 0, len(entryPath))

	for _, s := range entryPath {
		var err error

		cur, err = runEnter(goCtx, tree, s, tc, cur)
		if err != nil {
			return Context[M, D]{}, nil, nil, WrapTransitionError(source.id, target.id, err)
		}

		entered = append(entered, s.id)
	}

	final := target

	if !target.IsTerminal() {
		var (
			descended []StateID
			err       error
		)

		final, cur, descended, err = descend(goCtx, tree, target, cur, tc)
		if err != nil {
			return Context[M, D]{}, nil, nil, WrapTransitionError(source.id, target.id, err)
		}

		entered = append(entered, descended...)
	}

	transitionsTotal.WithLabelValues(
		sanitizeMachine(tree.name),
		sanitizeState(source.id),
		sanitizeState(final.id),
	).Inc()
	tree.log().TransitionExecuted(goCtx, tree.name, source.id, final.id)

	return Context[M, D]{state: final, data: cur, tree: tree}, entered, exited, nil
}

// composePaths derives the exit path (leaf-most first), entry path
// (root-most first) and least common ancestor for a transition from the
// machine's current state to target. Both paths exclude the LCA itself.
func (c Context[M, D]) composePaths(
	target State[M, D],
	selfCycle bool,
) ([]State[M, D], []State[M, D], StateID) {
	tree := c.tree
	source := c.state

	if selfCycle {
		// The pivot of a self-cycle is the state's parent; the root
		// cycles around itself.
		lca := source.id
		if parentID, ok := source.Parent(); ok {
			lca = parentID
		}

		return []State[M, D]{source}, []State[M, D]{source}, lca
	}

	sourceChain := tree.rootFirstIDs(source.id)

	var targetChain []StateID
	if target.IsTerminal() {
		targetChain = append(tree.rootFirstIDs(target.parent), target.id)
	} else {
		targetChain = tree.rootFirstIDs(target.id)
	}

	// Both chains begin at the root, so at least one element is common.
	lcaIdx := 0
	for i := 0; i < len(sourceChain) && i < len(targetChain) && sourceChain[i] == targetChain[i]; i++ {
		lcaIdx = i
	}

	exitIDs := slices.Clone(sourceChain[lcaIdx+1:])
	slices.Reverse(exitIDs)

	exitPath := make([]State[M, D], 0, len(exitIDs))
	for _, id := range exitIDs {
		exitPath = append(exitPath, tree.states[id])
	}

	entryPath := make([]State[M, D], 0, len(targetChain)-lcaIdx-1)

	for _, id := range targetChain[lcaIdx+1:] {
		if target.IsTerminal() && id == target.id {
			entryPath = append(entryPath, target)

			continue
		}

		entryPath = append(entryPath, tree.states[id])
	}

	return exitPath, entryPath, sourceChain[lcaIdx]
}

// descend follows initial transitions from state until reaching one
// without. Each selected child must be a direct child of the state that
// picked it; children sit strictly deeper than their parents, so the
// walk is bounded by tree depth.
func descend[M, D any](
	goCtx context.Context,
	tree Tree[M, D],
	from State[M, D],
	data D,
	tc TransitionContext[D],
) (State[M, D], D, []StateID, error) {
	state := from
	cur := data

	var entered []StateID

	for state.initial != nil {
		next, childID, err := state.initial(goCtx, cur)
		if err != nil {
			return State[M, D]{}, data, nil, WrapStateError(state.id, err)
		}

		child, ok := tree.childOf(state.id, childID)
		if !ok {
			return State[M, D]{}, data, nil, fmt.Errorf(
				"%w: %q is not a direct child of %q", ErrInvalidChild, childID, state.id,
			)
		}

		tc.Target = child.id

		cur, err = runEnter(goCtx, tree, child, tc, next)
		if err != nil {
			return State[M, D]{}, data, nil, err
		}

		entered = append(entered, child.id)
		state = child
	}

	return state, cur, entered, nil
}

// runEnter invokes a state's entry handler with Handling pointed at it,
// then reports the entry. A nil handler still counts as an entry.
func runEnter[M, D any](
	goCtx context.Context,
	tree Tree[M, D],
	s State[M, D],
	tc TransitionContext[D],
	data D,
) (D, error) {
	tc.Handling = s.id
	tc.TargetData = data

	next := data

	if h := s.handlers.OnEnter; h != nil {
		var err error

		next, err = h(goCtx, tc)
		if err != nil {
			return data, WrapStateError(s.id, err)
		}
	}

	statesEnteredTotal.WithLabelValues(sanitizeMachine(tree.name), sanitizeState(s.id)).Inc()
	tree.log().StateEntered(goCtx, tree.name, s.id)

	return next, nil
}

// runExit is runEnter's counterpart for exit handlers.
func runExit[M, D any](
	goCtx context.Context,
	tree Tree[M, D],
	s State[M, D],
	tc TransitionContext[D],
	data D,
) (D, error) {
	tc.Handling = s.id
	tc.TargetData = data

	next := data

	if h := s.handlers.OnExit; h != nil {
		var err error

		next, err = h(goCtx, tc)
		if err != nil {
			return data, WrapStateError(s.id, err)
		}
	}

	statesExitedTotal.WithLabelValues(sanitizeMachine(tree.name), sanitizeState(s.id)).Inc()
	tree.log().StateExited(goCtx, tree.name, s.id)

	return next, nil
}

func errOutcome(err error) string {
	if err != nil {
		return outcomeError
	}

	return outcomeSuccess
}

func optionalReason(reason string) optional.Value[string] {
	if reason == "" {
		return optional.None[string]()
	}

	return optional.Some(reason)
}
