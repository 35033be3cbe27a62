package agent_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amp-labs/amp-hsm/agent"
	"github.com/amp-labs/amp-hsm/future"
	"github.com/amp-labs/amp-hsm/statemachine"
	smtest "github.com/amp-labs/amp-hsm/statemachine/testing"
	"github.com/amp-labs/amp-hsm/tests"
)

var errBoom = errors.New("boom")

// logTree builds a single-state machine whose data is the ordered log of
// messages its handlers saw. handle decides per message; nil means log
// and stay.
func logTree(
	t *testing.T,
	name string,
	handle func(msg string, log []string) (statemachine.MessageResult[[]string], bool),
) statemachine.Tree[string, []string] {
	t.Helper()

	onMessage := func(_ context.Context, msg string, log []string) (statemachine.MessageResult[[]string], error) {
		if handle != nil {
			if res, ok := handle(msg, log); ok {
				return res, nil
			}
		}

		return statemachine.Stay(append(log, msg)), nil
	}

	tree, err := statemachine.NewTreeBuilder(
		"root", statemachine.Handlers[string, []string]{OnMessage: onMessage}, nil,
		statemachine.WithName(name),
	).Build()
	require.NoError(t, err)

	return tree
}

//nolint:paralleltest,tparallel // Subtests share one agent and must run in order.
func TestAgentLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rec := smtest.NewRecorder()

	tree, err := smtest.NestedTree(rec, nil)
	require.NoError(t, err)

	a := agent.New(tree, smtest.Data{}, agent.WithLogger(slogt.New(t)))

	t.Run("new agent", func(t *testing.T) {
		assert.True(t, a.Alive())
		assert.Equal(t, agent.PhaseNew, a.Lifecycle().Phase())

		_, err := a.Context()
		require.ErrorIs(t, err, agent.ErrNotStarted)

		_, ok := a.Lifecycle().Context()
		assert.False(t, ok)

		_, err = a.Send(ctx, "too early")
		require.ErrorIs(t, err, agent.ErrNotStarted)

		_, err = a.Stop(ctx)
		require.ErrorIs(t, err, agent.ErrNotStarted)
	})

	t.Run("start", func(t *testing.T) {
		smctx, err := a.Start(ctx)
		require.NoError(t, err)

		assert.Equal(t, smtest.A1, smctx.State().ID())
		assert.Equal(t, agent.PhaseStarted, a.Lifecycle().Phase())

		current, err := a.Context()
		require.NoError(t, err)
		assert.Equal(t, smtest.A1, current.State().ID())

		_, err = a.Start(ctx)
		require.ErrorIs(t, err, agent.ErrAlreadyStarted)
	})

	t.Run("stop", func(t *testing.T) {
		final, err := a.StopWithReason(ctx, "shift over")
		require.NoError(t, err)

		assert.True(t, final.Terminated())
		assert.False(t, a.Alive())

		lc := a.Lifecycle()
		assert.Equal(t, agent.PhaseStopped, lc.Phase())

		from, ok := lc.StoppedFrom()
		assert.True(t, ok)
		assert.Equal(t, smtest.A1, from)

		kind, ok := lc.StopKind()
		assert.True(t, ok)
		assert.Equal(t, agent.StopExternal, kind)

		assert.Equal(t, "shift over", lc.StopReason().GetOrElse(""))

		data, ok := lc.FinalData()
		assert.True(t, ok)
		assert.Equal(t, smtest.Data{Hops: 5}, data)

		_, err = a.Context()
		require.ErrorIs(t, err, agent.ErrAlreadyStopped)
	})

	t.Run("stopped agent", func(t *testing.T) {
		// Stop is idempotent and resolves to the same final context.
		again, err := a.Stop(ctx)
		require.NoError(t, err)
		assert.True(t, again.Terminated())
		assert.Equal(t, smtest.A1, again.State().StoppedFrom())

		_, err = a.Send(ctx, "anything")
		require.ErrorIs(t, err, agent.ErrAlreadyStopped)

		_, err = a.Start(ctx)
		require.ErrorIs(t, err, agent.ErrAlreadyStopped)

		a.Wait()
	})
}

func TestAgentStartAt(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rec := smtest.NewRecorder()

	tree, err := smtest.NestedTree(rec, nil)
	require.NoError(t, err)

	a := agent.New(tree, smtest.Data{}, agent.WithStartAt(smtest.A2))

	smctx, err := a.Start(ctx)
	require.NoError(t, err)
	assert.Equal(t, smtest.A2A, smctx.State().ID())
}

func TestAgentIdentity(t *testing.T) {
	t.Parallel()

	tree := logTree(t, "identity-machine", nil)

	a := agent.New(tree, nil)
	b := agent.New(tree, nil, agent.WithName("custom"))

	assert.Equal(t, "identity-machine", a.Name())
	assert.Equal(t, "custom", b.Name())
	assert.NotEmpty(t, a.ID())
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestAgentSerializesRequests(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("single submitter order", func(t *testing.T) {
		t.Parallel()

		a := agent.New(logTree(t, "fifo-single", nil), nil)

		_, err := a.Start(ctx)
		require.NoError(t, err)

		const n = 20

		futures := make([]*future.Future[statemachine.Context[string, []string]], 0, n)
		expected := make([]string, 0, n)

		for i := range n {
			msg := fmt.Sprintf("msg-%02d", i)
			expected = append(expected, msg)
			futures = append(futures, a.SendAsync(msg))
		}

		for _, fut := range futures {
			_, err := fut.AwaitContext(ctx)
			require.NoError(t, err)
		}

		current, err := a.Context()
		require.NoError(t, err)

		// One submitter; the mailbox preserves its order exactly.
		assert.Equal(t, expected, current.Data())
	})

	t.Run("concurrent submitters", func(t *testing.T) {
		t.Parallel()

		a := agent.New(logTree(t, "fifo-concurrent", nil), nil)

		_, err := a.Start(ctx)
		require.NoError(t, err)

		const (
			goroutines = 4
			perG       = 25
		)

		var wg sync.WaitGroup

		for g := range goroutines {
			wg.Add(1)

			go func() {
				defer wg.Done()

				for i := range perG {
					_, err := a.Send(ctx, fmt.Sprintf("g%d-%02d", g, i))
					assert.NoError(t, err)
				}
			}()
		}

		wg.Wait()

		current, err := a.Context()
		require.NoError(t, err)

		log := current.Data()
		require.Len(t, log, goroutines*perG)

		// Interleaving across goroutines is arbitrary, but each
		// goroutine's own messages stay in order.
		for g := range goroutines {
			var mine []string

			prefix := fmt.Sprintf("g%d-", g)
			for _, msg := range log {
				if strings.HasPrefix(msg, prefix) {
					mine = append(mine, msg)
				}
			}

			require.Len(t, mine, perG)

			for i, msg := range mine {
				assert.Equal(t, fmt.Sprintf("g%d-%02d", g, i), msg)
			}
		}
	})
}

func TestAgentPipelining(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	a := agent.New(logTree(t, "pipelined", nil), nil)

	// The send queues behind the start that has not completed yet.
	startFut := a.StartAsync()
	sendFut := a.SendAsync("first")
	secondStart := a.StartAsync()

	_, err := startFut.AwaitContext(ctx)
	require.NoError(t, err)

	smctx, err := sendFut.AwaitContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"first"}, smctx.Data())

	// The duplicate start fails the same way whether the submission
	// pre-check or the worker catches it.
	_, err = secondStart.AwaitContext(ctx)
	require.ErrorIs(t, err, agent.ErrAlreadyStarted)
}

func TestAgentAbandonedWaitStillExecutes(t *testing.T) {
	t.Parallel()

	tree := logTree(t, "abandoned", func(msg string, log []string) (statemachine.MessageResult[[]string], bool) {
		if msg == "slow" {
			time.Sleep(50 * time.Millisecond)
		}

		return statemachine.Stay(append(log, msg)), true
	})

	a := agent.New(tree, nil)

	_, err := a.Start(context.Background())
	require.NoError(t, err)

	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	// The wait is abandoned immediately, the request is not.
	_, err = a.Send(canceled, "slow")
	require.ErrorIs(t, err, context.Canceled)

	smctx, err := a.Send(context.Background(), "probe")
	require.NoError(t, err)

	// The probe queued behind the abandoned request, so seeing the
	// probe's effect proves the slow dispatch ran first.
	assert.Equal(t, []string{"slow", "probe"}, smctx.Data())
}

func TestAgentPanicRecovery(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tree := logTree(t, "panicky", func(msg string, log []string) (statemachine.MessageResult[[]string], bool) {
		switch msg {
		case "panic-string":
			panic("kaboom")
		case "panic-error":
			panic(errBoom)
		default:
			return statemachine.Stay(append(log, msg)), true
		}
	})

	a := agent.New(tree, nil, agent.WithLogger(slogt.New(t)))

	_, err := a.Start(ctx)
	require.NoError(t, err)

	_, err = a.Send(ctx, "panic-string")
	require.ErrorIs(t, err, agent.ErrAgentPanic)
	assert.Contains(t, err.Error(), "kaboom")

	// Error panic values stay reachable through the wrap.
	_, err = a.Send(ctx, "panic-error")
	require.ErrorIs(t, err, agent.ErrAgentPanic)
	require.ErrorIs(t, err, errBoom)

	// The worker survived both panics and the lifecycle is untouched.
	assert.True(t, a.Alive())
	assert.Equal(t, agent.PhaseStarted, a.Lifecycle().Phase())

	smctx, err := a.Send(ctx, "probe")
	require.NoError(t, err)
	assert.Equal(t, []string{"probe"}, smctx.Data())
}

func TestAgentInternalStop(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tree := logTree(t, "self-stopping", func(msg string, _ []string) (statemachine.MessageResult[[]string], bool) {
		if msg == "die" {
			return statemachine.Stop[[]string]().WithReason("fatal message"), true
		}

		return statemachine.MessageResult[[]string]{}, false
	})

	a := agent.New(tree, nil)

	_, err := a.Start(ctx)
	require.NoError(t, err)

	final, err := a.Send(ctx, "die")
	require.NoError(t, err)
	assert.True(t, final.Terminated())

	lc := a.Lifecycle()
	assert.Equal(t, agent.PhaseStopped, lc.Phase())

	kind, ok := lc.StopKind()
	assert.True(t, ok)
	assert.Equal(t, agent.StopInternal, kind)

	assert.Equal(t, "fatal message", lc.StopReason().GetOrElse(""))
	assert.False(t, a.Alive())

	_, err = a.Send(ctx, "anything")
	require.ErrorIs(t, err, agent.ErrAlreadyStopped)

	// An external stop after the internal one is the usual idempotent
	// no-op.
	again, err := a.Stop(ctx)
	require.NoError(t, err)
	assert.True(t, again.Terminated())

	a.Wait()
}

func TestAgentStartFailure(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	failing := func(_ context.Context, d smtest.Data) (smtest.Data, statemachine.StateID, error) {
		return d, "", errBoom
	}

	tree, err := statemachine.NewTreeBuilder(
		smtest.Root, statemachine.Handlers[smtest.Msg, smtest.Data]{}, failing,
	).
		Leaf(smtest.A1, smtest.Root, statemachine.Handlers[smtest.Msg, smtest.Data]{}).
		Build()
	require.NoError(t, err)

	a := agent.New(tree, smtest.Data{})

	_, err = a.Start(ctx)
	require.ErrorIs(t, err, errBoom)

	// The failed start leaves the agent new; pipelined sends fail on
	// dequeue rather than executing against a dead machine.
	assert.Equal(t, agent.PhaseNew, a.Lifecycle().Phase())

	_, err = a.Send(ctx, "after failed start")
	require.ErrorIs(t, err, agent.ErrNotStarted)

	// Starting again retries initialization.
	_, err = a.Start(ctx)
	require.ErrorIs(t, err, errBoom)
}

func TestAgentBaseContext(t *testing.T) {
	t.Parallel()

	base := tests.GetUniqueContext(t)
	wantID, ok := tests.GetTestID(base)
	require.True(t, ok)

	onMessage := func(ctx context.Context, msg string, log []string) (statemachine.MessageResult[[]string], error) {
		id, _ := tests.GetTestID(ctx)

		return statemachine.Stay(append(log, msg+":"+id)), nil
	}

	tree, err := statemachine.NewTreeBuilder(
		"root", statemachine.Handlers[string, []string]{OnMessage: onMessage}, nil,
		statemachine.WithName("base-ctx"),
	).Build()
	require.NoError(t, err)

	a := agent.New(tree, nil, agent.WithBaseContext(base))

	_, err = a.Start(context.Background())
	require.NoError(t, err)

	// The submitter's context carries no test id; the handler still
	// sees the agent's base context.
	smctx, err := a.Send(context.Background(), "probe")
	require.NoError(t, err)
	assert.Equal(t, []string{"probe:" + wantID}, smctx.Data())

	_, err = a.Stop(context.Background())
	require.NoError(t, err)
}

func TestAgentWaitWithoutStart(t *testing.T) {
	t.Parallel()

	a := agent.New(logTree(t, "never-started", nil), nil)

	// No worker ever spawned; Wait must not block.
	done := make(chan struct{})

	go func() {
		a.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait blocked for an agent that never started")
	}
}
