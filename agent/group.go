package agent

import (
	"context"
	"slices"
	"sync"

	"github.com/alitto/pond/v2"

	"github.com/amp-labs/amp-hsm/statemachine"
	"github.com/amp-labs/amp-hsm/try"
)

const defaultGroupWorkers = 10

// GroupOption configures a Group.
type GroupOption func(*groupOptions)

type groupOptions struct {
	workers int
}

// WithWorkers sets the size of the group's fan-out pool.
func WithWorkers(count int) GroupOption {
	return func(o *groupOptions) {
		o.workers = count
	}
}

// Group fans operations out to a set of agents over a shared worker
// pool. Members are keyed by agent ID; an agent may belong to several
// groups. All methods are safe for concurrent use.
type Group[M, D any] struct {
	name string
	pool pond.Pool

	mu      sync.RWMutex
	members map[string]*Agent[M, D]
}

// NewGroup creates an empty group.
func NewGroup[M, D any](name string, opts ...GroupOption) *Group[M, D] {
	options := groupOptions{workers: defaultGroupWorkers}

	for _, opt := range opts {
		opt(&options)
	}

	return &Group[M, D]{
		name:    name,
		pool:    pond.NewPool(options.workers),
		members: make(map[string]*Agent[M, D]),
	}
}

// Name returns the group's name.
func (g *Group[M, D]) Name() string {
	return g.name
}

// Add registers agents with the group.
func (g *Group[M, D]) Add(agents ...*Agent[M, D]) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, a := range agents {
		g.members[a.ID()] = a
	}
}

// Remove drops an agent from the group. The agent itself keeps running.
func (g *Group[M, D]) Remove(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.members, id)
}

// Get returns a member by agent ID.
func (g *Group[M, D]) Get(id string) (*Agent[M, D], bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	a, ok := g.members[id]

	return a, ok
}

// Len returns the number of members.
func (g *Group[M, D]) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return len(g.members)
}

// IDs returns the member agent IDs, sorted.
func (g *Group[M, D]) IDs() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	ids := make([]string, 0, len(g.members))
	for id := range g.members {
		ids = append(ids, id)
	}

	slices.Sort(ids)

	return ids
}

// Broadcast sends msg to every member in parallel and waits for all of
// them. Results are keyed by agent ID; each is that agent's own
// success or failure, so one rejecting machine does not hide the rest.
func (g *Group[M, D]) Broadcast(ctx context.Context, msg M) map[string]try.Try[statemachine.Context[M, D]] {
	return g.fanOut(func(a *Agent[M, D]) (statemachine.Context[M, D], error) {
		return a.Send(ctx, msg)
	})
}

// StopAll stops every member in parallel and waits for all of them.
func (g *Group[M, D]) StopAll(ctx context.Context) map[string]try.Try[statemachine.Context[M, D]] {
	return g.fanOut(func(a *Agent[M, D]) (statemachine.Context[M, D], error) {
		return a.Stop(ctx)
	})
}

func (g *Group[M, D]) fanOut(
	op func(*Agent[M, D]) (statemachine.Context[M, D], error),
) map[string]try.Try[statemachine.Context[M, D]] {
	g.mu.RLock()

	members := make(map[string]*Agent[M, D], len(g.members))
	for id, a := range g.members {
		members[id] = a
	}

	g.mu.RUnlock()

	var (
		resultsMu sync.Mutex
		results   = make(map[string]try.Try[statemachine.Context[M, D]], len(members))
	)

	tasks := make(map[string]pond.Task, len(members))

	for id, member := range members {
		tasks[id] = g.pool.Submit(func() {
			smctx, err := op(member)

			resultsMu.Lock()
			defer resultsMu.Unlock()

			results[id] = try.FromResult(smctx, err)
		})
	}

	for id, task := range tasks {
		err := task.Wait()
		if err == nil {
			continue
		}

		// The pool rejected or lost the task itself, so the member
		// never produced a result of its own.
		resultsMu.Lock()

		if _, ok := results[id]; !ok {
			results[id] = try.Failure[statemachine.Context[M, D]](err)
		}

		resultsMu.Unlock()
	}

	return results
}

// Close stops the fan-out pool and waits for in-flight operations.
// Members are not stopped; use StopAll first if they should be.
func (g *Group[M, D]) Close() {
	g.pool.StopAndWait()
}
