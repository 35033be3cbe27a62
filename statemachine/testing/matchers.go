package testing

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/amp-labs/amp-hsm/statemachine"
)

// Matcher errors.
var (
	ErrEmptyTrace       = errors.New("no events recorded")
	ErrNoMatchersPassed = errors.New("no matchers passed")
	ErrStateNotEntered  = errors.New("state was not entered")
	ErrStateNotExited   = errors.New("state was not exited")
	ErrActionNotRun     = errors.New("action was not run")
	ErrEventsOutOfOrder = errors.New("events out of order")
)

// Matcher checks an assertion against a recorded trace.
type Matcher interface {
	Match(rec *Recorder) (bool, error)
	Description() string
}

// Entered creates a matcher that checks whether a state's enter handler ran.
func Entered(id statemachine.StateID) Matcher {
	return &eventMatcher{
		event: fmt.Sprintf("enter:%s", id),
		err:   fmt.Errorf("%w: %q", ErrStateNotEntered, id),
		desc:  fmt.Sprintf("state %q should be entered", id),
	}
}

// Exited creates a matcher that checks whether a state's exit handler ran.
func Exited(id statemachine.StateID) Matcher {
	return &eventMatcher{
		event: fmt.Sprintf("exit:%s", id),
		err:   fmt.Errorf("%w: %q", ErrStateNotExited, id),
		desc:  fmt.Sprintf("state %q should be exited", id),
	}
}

// ActionRan creates a matcher that checks whether a transition action with
// the given label ran.
func ActionRan(label string) Matcher {
	return &eventMatcher{
		prefix: fmt.Sprintf("action:%s:", label),
		err:    fmt.Errorf("%w: %q", ErrActionNotRun, label),
		desc:   fmt.Sprintf("action %q should run", label),
	}
}

type eventMatcher struct {
	event  string
	prefix string
	err    error
	desc   string
}

func (m *eventMatcher) Match(rec *Recorder) (bool, error) {
	events := rec.Events()
	if len(events) == 0 {
		return false, ErrEmptyTrace
	}

	for _, event := range events {
		if event == m.event || (m.prefix != "" && strings.HasPrefix(event, m.prefix)) {
			return true, nil
		}
	}

	return false, m.err
}

func (m *eventMatcher) Description() string {
	return m.desc
}

// InOrder creates a matcher that checks the given events appear in the trace
// in the given order, possibly interleaved with other events.
func InOrder(events ...string) Matcher {
	return &orderMatcher{events: events}
}

type orderMatcher struct {
	events []string
}

func (m *orderMatcher) Match(rec *Recorder) (bool, error) {
	trace := rec.Events()
	if len(trace) == 0 {
		return false, ErrEmptyTrace
	}

	remaining := m.events
	for _, event := range trace {
		if len(remaining) == 0 {
			break
		}

		if event == remaining[0] {
			remaining = remaining[1:]
		}
	}

	if len(remaining) > 0 {
		return false, fmt.Errorf("%w: %q missing after %v", ErrEventsOutOfOrder, remaining[0], trace)
	}

	return true, nil
}

func (m *orderMatcher) Description() string {
	return fmt.Sprintf("events %v should appear in order", m.events)
}

// Exactly creates a matcher that checks the trace equals the given events.
func Exactly(events ...string) Matcher {
	return &exactMatcher{events: events}
}

type exactMatcher struct {
	events []string
}

func (m *exactMatcher) Match(rec *Recorder) (bool, error) {
	trace := rec.Events()
	if !slices.Equal(trace, m.events) {
		return false, fmt.Errorf("%w: got %v, want %v", ErrEventsOutOfOrder, trace, m.events)
	}

	return true, nil
}

func (m *exactMatcher) Description() string {
	return fmt.Sprintf("trace should equal %v", m.events)
}

// All creates a matcher that requires all sub-matchers to pass.
func All(matchers ...Matcher) Matcher {
	return &allMatcher{matchers: matchers}
}

type allMatcher struct {
	matchers []Matcher
}

func (m *allMatcher) Match(rec *Recorder) (bool, error) {
	for _, matcher := range m.matchers {
		matched, err := matcher.Match(rec)
		if !matched || err != nil {
			return false, err
		}
	}

	return true, nil
}

func (m *allMatcher) Description() string {
	return "all matchers should pass"
}

// Any creates a matcher that requires at least one sub-matcher to pass.
func Any(matchers ...Matcher) Matcher {
	return &anyMatcher{matchers: matchers}
}

type anyMatcher struct {
	matchers []Matcher
}

func (m *anyMatcher) Match(rec *Recorder) (bool, error) {
	for _, matcher := range m.matchers {
		matched, err := matcher.Match(rec)
		if matched && err == nil {
			return true, nil
		}
	}

	return false, ErrNoMatchersPassed
}

func (m *anyMatcher) Description() string {
	return "at least one matcher should pass"
}
