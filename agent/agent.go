// Package agent runs one hierarchical state machine behind a single
// worker goroutine. Every operation becomes a request in an unbounded
// FIFO mailbox, so starts, sends and stops from any number of
// goroutines execute strictly one at a time, in arrival order, against
// the machine's own lifecycle.
//
// Blocking calls are thin wrappers over their Async variants; a caller
// that abandons a wait only abandons the result, never the request,
// which stays queued and executes in its original position.
package agent

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"

	"github.com/amp-labs/amp-hsm/channels"
	"github.com/amp-labs/amp-hsm/contexts"
	"github.com/amp-labs/amp-hsm/future"
	"github.com/amp-labs/amp-hsm/optional"
	"github.com/amp-labs/amp-hsm/statemachine"
)

// Option configures an Agent.
type Option func(*options)

type options struct {
	name    string
	startAt statemachine.StateID
	logger  *slog.Logger
	baseCtx context.Context
}

// WithName overrides the agent name used in logs and metrics. Defaults
// to the tree's machine name.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithStartAt starts the machine at an explicit state instead of the
// tree's root.
func WithStartAt(at statemachine.StateID) Option {
	return func(o *options) {
		o.startAt = at
	}
}

// WithLogger sets the logger for agent-level events. Machine-level
// events go through the tree's own logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithBaseContext sets the context handlers run under. Requests execute
// after their submitter may be long gone, so handlers never see a
// submitter's context; cancel this one to abort handler work instead.
func WithBaseContext(ctx context.Context) Option {
	return func(o *options) {
		o.baseCtx = ctx
	}
}

type requestKind int

const (
	requestStart requestKind = iota
	requestSend
	requestStop
)

func (k requestKind) label() string {
	switch k {
	case requestStart:
		return kindStart
	case requestSend:
		return kindSend
	case requestStop:
		return kindStop
	default:
		return "unknown"
	}
}

// envelope is one queued request and the promise its caller awaits.
type envelope[M, D any] struct {
	kind    requestKind
	msg     M
	reason  optional.Value[string]
	promise *future.Promise[statemachine.Context[M, D]]
}

// Agent owns one machine. Create with New, drive with Start, Send and
// Stop (or their Async variants), observe with Lifecycle, Context and
// the Subscribe methods. All methods are safe for concurrent use.
type Agent[M, D any] struct {
	id      string
	name    string
	tree    statemachine.Tree[M, D]
	initial D
	startAt statemachine.StateID
	logger  *slog.Logger
	baseCtx context.Context //nolint:containedctx // Detaches handler execution from submitter contexts

	mu             sync.Mutex
	lifecycle      Lifecycle[M, D]
	startRequested bool
	mailbox        chan<- envelope[M, D]
	inbox          <-chan envelope[M, D]
	depth          func() int

	alive *atomic.Bool
	wg    sync.WaitGroup
	hub   hub[M, D]
}

// New creates an agent for tree with the given initial data. The worker
// goroutine spawns lazily on the first start request.
func New[M, D any](tree statemachine.Tree[M, D], initial D, opts ...Option) *Agent[M, D] {
	options := options{
		name:    tree.Name(),
		logger:  slog.Default(),
		baseCtx: context.Background(),
	}

	for _, opt := range opts {
		opt(&options)
	}

	return &Agent[M, D]{
		id:      uuid.New().String(),
		name:    options.name,
		tree:    tree,
		initial: initial,
		startAt: options.startAt,
		logger:  options.logger,
		baseCtx: contexts.EnsureContext(options.baseCtx),
		alive:   atomic.NewBool(true),
	}
}

// ID returns the agent's unique identifier.
func (a *Agent[M, D]) ID() string {
	return a.id
}

// Name returns the agent's name.
func (a *Agent[M, D]) Name() string {
	return a.name
}

// Alive reports whether the agent can still accept work.
func (a *Agent[M, D]) Alive() bool {
	return a.alive.Load()
}

// Start runs the machine's initialization and blocks for the result.
// Fails with ErrAlreadyStarted or ErrAlreadyStopped outside the New
// phase.
func (a *Agent[M, D]) Start(ctx context.Context) (statemachine.Context[M, D], error) {
	return a.StartAsync().AwaitContext(ctx)
}

// StartAsync is Start returning a future instead of blocking.
func (a *Agent[M, D]) StartAsync() *future.Future[statemachine.Context[M, D]] {
	fut, promise := future.New[statemachine.Context[M, D]]()
	a.submit(envelope[M, D]{kind: requestStart, promise: promise})

	return fut
}

// Send dispatches one message and blocks for the machine context the
// dispatch produced. A dispatch whose handler ends the machine flips the
// agent to its stopped phase before the result is delivered.
//
// Abandoning the wait (context cancellation) does not retract the
// request; it still executes in order.
func (a *Agent[M, D]) Send(ctx context.Context, msg M) (statemachine.Context[M, D], error) {
	return a.SendAsync(msg).AwaitContext(ctx)
}

// SendAsync is Send returning a future instead of blocking.
func (a *Agent[M, D]) SendAsync(msg M) *future.Future[statemachine.Context[M, D]] {
	fut, promise := future.New[statemachine.Context[M, D]]()
	a.submit(envelope[M, D]{kind: requestSend, msg: msg, promise: promise})

	return fut
}

// Stop drives the machine to its terminal state and blocks for the
// final context. Stopping an already stopped agent is a no-op returning
// the same final context. Fails with ErrNotStarted before the first
// start.
func (a *Agent[M, D]) Stop(ctx context.Context) (statemachine.Context[M, D], error) {
	return a.StopAsync().AwaitContext(ctx)
}

// StopWithReason is Stop recording an operator-readable reason.
func (a *Agent[M, D]) StopWithReason(ctx context.Context, reason string) (statemachine.Context[M, D], error) {
	return a.StopWithReasonAsync(reason).AwaitContext(ctx)
}

// StopAsync is Stop returning a future instead of blocking.
func (a *Agent[M, D]) StopAsync() *future.Future[statemachine.Context[M, D]] {
	fut, promise := future.New[statemachine.Context[M, D]]()
	a.submit(envelope[M, D]{kind: requestStop, reason: optional.None[string](), promise: promise})

	return fut
}

// StopWithReasonAsync is StopWithReason returning a future.
func (a *Agent[M, D]) StopWithReasonAsync(reason string) *future.Future[statemachine.Context[M, D]] {
	fut, promise := future.New[statemachine.Context[M, D]]()
	a.submit(envelope[M, D]{kind: requestStop, reason: optional.Some(reason), promise: promise})

	return fut
}

// Context returns the machine's current context. Fails with
// ErrNotStarted before the first start and ErrAlreadyStopped after the
// stop; the final context of a stopped agent is on its Lifecycle.
func (a *Agent[M, D]) Context() (statemachine.Context[M, D], error) {
	lc := a.snapshot()

	switch lc.phase {
	case PhaseNew:
		return statemachine.Context[M, D]{}, ErrNotStarted
	case PhaseStopped:
		return statemachine.Context[M, D]{}, ErrAlreadyStopped
	case PhaseStarted:
	}

	return lc.context, nil
}

// Lifecycle returns a snapshot of the agent's lifecycle.
func (a *Agent[M, D]) Lifecycle() Lifecycle[M, D] {
	return a.snapshot()
}

// Wait blocks until the worker goroutine has exited. Returns
// immediately when the worker never started.
func (a *Agent[M, D]) Wait() {
	a.wg.Wait()
}

// SubscribeProcessed returns a channel receiving every dispatch report,
// rejected and unhandled ones included. The channel is unbounded and
// closes when the agent stops.
func (a *Agent[M, D]) SubscribeProcessed() <-chan statemachine.Processed[M, D] {
	return a.hub.processed.subscribe()
}

// SubscribeTransitions returns a channel receiving an event per executed
// transition. The channel is unbounded and closes when the agent stops.
func (a *Agent[M, D]) SubscribeTransitions() <-chan TransitionEvent[M, D] {
	return a.hub.transitions.subscribe()
}

// SubscribeStops returns a channel receiving the stop event. The channel
// is unbounded and closes when the agent stops.
func (a *Agent[M, D]) SubscribeStops() <-chan StopEvent[M, D] {
	return a.hub.stops.subscribe()
}

// submit performs the cheap synchronous lifecycle pre-check and, when it
// passes, enqueues the request. The worker re-validates on dequeue: the
// pre-check reads the lifecycle as of submission, and queued requests
// ahead of this one may change it. That also enables pipelining — a
// send submitted after a start request queues behind it even though the
// start has not completed yet.
func (a *Agent[M, D]) submit(env envelope[M, D]) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch a.lifecycle.phase {
	case PhaseStopped:
		if env.kind == requestStop {
			env.promise.Success(a.lifecycle.context)

			return
		}

		env.promise.Failure(ErrAlreadyStopped)

		return

	case PhaseNew:
		if env.kind != requestStart && !a.startRequested {
			env.promise.Failure(ErrNotStarted)

			return
		}

	case PhaseStarted:
		if env.kind == requestStart {
			env.promise.Failure(ErrAlreadyStarted)

			return
		}
	}

	if env.kind == requestStart {
		a.startRequested = true
	}

	a.ensureWorkerLocked()

	a.mailbox <- env
	submitCount.WithLabelValues(a.name, env.kind.label()).Inc()
	enqueuedRequests.WithLabelValues(a.name).Set(float64(a.depth()))
}

// ensureWorkerLocked spawns the worker on the first start request. The
// caller holds a.mu.
func (a *Agent[M, D]) ensureWorkerLocked() {
	if a.mailbox != nil {
		return
	}

	in, out, depth := channels.Infinite[envelope[M, D]]()
	a.mailbox, a.inbox, a.depth = in, out, depth

	a.wg.Add(1)
	agentStarted.Inc()
	aliveAgents.WithLabelValues(a.name).Inc()

	go a.run()
}

// run is the worker loop. It exits when the mailbox closes and its
// buffered requests drain; requests arriving after the stop resolve
// synchronously in submit.
func (a *Agent[M, D]) run() {
	defer a.wg.Done()
	defer a.hub.close()
	defer agentStopped.Inc()
	defer aliveAgents.WithLabelValues(a.name).Dec()

	a.logger.Debug("Agent worker started", "agent", a.name, "id", a.id)

	for env := range a.inbox {
		a.handle(env)
		enqueuedRequests.WithLabelValues(a.name).Set(float64(a.depth()))
	}

	a.logger.Debug("Agent worker stopped", "agent", a.name, "id", a.id)
}

// handle executes one request. A panicking handler fails that request
// with ErrAgentPanic and leaves the lifecycle as it was; the worker
// keeps serving the queue.
func (a *Agent[M, D]) handle(env envelope[M, D]) {
	began := time.Now()

	var err error

	defer func() {
		if r := recover(); r != nil {
			agentPanic.WithLabelValues(a.name).Inc()

			err = panicErr(a.name, r)
			a.logger.Error("Agent recovered from panic",
				"agent", a.name,
				"id", a.id,
				"error", err,
				"stack", string(debug.Stack()),
			)
			env.promise.Failure(err)
		}

		processedRequests.WithLabelValues(a.name, env.kind.label(), errOutcome(err)).Inc()
		processingTime.WithLabelValues(a.name, env.kind.label()).Observe(time.Since(began).Seconds())
	}()

	switch env.kind {
	case requestStart:
		err = a.handleStart(env)
	case requestSend:
		err = a.handleSend(env)
	case requestStop:
		err = a.handleStop(env)
	}
}

func (a *Agent[M, D]) handleStart(env envelope[M, D]) error {
	switch a.snapshot().phase {
	case PhaseStarted:
		env.promise.Failure(ErrAlreadyStarted)

		return ErrAlreadyStarted
	case PhaseStopped:
		env.promise.Failure(ErrAlreadyStopped)

		return ErrAlreadyStopped
	case PhaseNew:
	}

	var (
		smctx statemachine.Context[M, D]
		err   error
	)

	if a.startAt == "" {
		smctx, err = statemachine.Start(a.baseCtx, a.tree, a.initial)
	} else {
		smctx, err = statemachine.StartAt(a.baseCtx, a.tree, a.initial, a.startAt)
	}

	if err != nil {
		env.promise.Failure(err)

		return err
	}

	a.setLifecycle(startedLifecycle(smctx))
	env.promise.Success(smctx)

	return nil
}

func (a *Agent[M, D]) handleSend(env envelope[M, D]) error {
	lc := a.snapshot()

	switch lc.phase {
	case PhaseNew:
		env.promise.Failure(ErrNotStarted)

		return ErrNotStarted
	case PhaseStopped:
		env.promise.Failure(ErrAlreadyStopped)

		return ErrAlreadyStopped
	case PhaseStarted:
	}

	processed, err := lc.context.Process(a.baseCtx, env.msg)
	if err != nil {
		env.promise.Failure(err)

		return err
	}

	next := processed.Next
	if next.Terminated() {
		a.recordStop(next, StopInternal)
	} else {
		a.setLifecycle(startedLifecycle(next))
	}

	env.promise.Success(next)
	a.publish(processed)

	return nil
}

func (a *Agent[M, D]) handleStop(env envelope[M, D]) error {
	lc := a.snapshot()

	switch lc.phase {
	case PhaseNew:
		env.promise.Failure(ErrNotStarted)

		return ErrNotStarted
	case PhaseStopped:
		// Idempotent: every stop resolves to the same final context.
		env.promise.Success(lc.context)

		return nil
	case PhaseStarted:
	}

	var (
		final statemachine.Context[M, D]
		err   error
	)

	reason, hasReason := env.reason.Get()
	if hasReason {
		final, err = lc.context.StopWithReason(a.baseCtx, reason)
	} else {
		final, err = lc.context.Stop(a.baseCtx)
	}

	if err != nil {
		env.promise.Failure(err)

		return err
	}

	a.recordStop(final, StopExternal)
	env.promise.Success(final)
	a.publishStop(final, StopExternal)

	return nil
}

// recordStop flips the lifecycle to stopped and closes the mailbox, all
// under the submit lock so no request can slip between the two.
func (a *Agent[M, D]) recordStop(final statemachine.Context[M, D], kind StopKind) {
	terminal := final.State()

	a.mu.Lock()
	defer a.mu.Unlock()

	a.lifecycle = stoppedLifecycle(final, terminal.StoppedFrom(), kind, terminal.StopReason())
	a.alive.Store(false)
	channels.CloseIgnorePanic(a.mailbox)
}

// publish fans one dispatch out: always the processed report, a
// transition event when the machine actually moved, and a stop event
// when the dispatch ended the machine.
func (a *Agent[M, D]) publish(processed statemachine.Processed[M, D]) {
	a.hub.processed.publish(processed)

	moved := processed.Kind == statemachine.ProcessedHandled &&
		(len(processed.Entered) > 0 ||
			len(processed.Exited) > 0 ||
			processed.Prev.State().ID() != processed.Next.State().ID())
	if moved {
		a.hub.transitions.publish(TransitionEvent[M, D]{
			From:    processed.Prev.State().ID(),
			To:      processed.Next.State().ID(),
			Entered: processed.Entered,
			Exited:  processed.Exited,
			Next:    processed.Next,
		})
	}

	if processed.Next.Terminated() {
		a.publishStop(processed.Next, StopInternal)
	}
}

func (a *Agent[M, D]) publishStop(final statemachine.Context[M, D], kind StopKind) {
	terminal := final.State()

	a.hub.stops.publish(StopEvent[M, D]{
		From:   terminal.StoppedFrom(),
		Kind:   kind,
		Reason: terminal.StopReason(),
		Final:  final,
	})
}

func (a *Agent[M, D]) snapshot() Lifecycle[M, D] {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.lifecycle
}

func (a *Agent[M, D]) setLifecycle(lc Lifecycle[M, D]) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.lifecycle = lc
}

func errOutcome(err error) string {
	if err != nil {
		return outcomeError
	}

	return outcomeSuccess
}
