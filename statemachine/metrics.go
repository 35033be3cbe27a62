package statemachine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric definitions with appropriate labels.
//
//nolint:gochecknoglobals // Package-level metrics registered once via promauto
var (
	// MachineStartsTotal tracks machine start attempts by machine and outcome.
	machineStartsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "statemachine_starts_total",
		Help: "Total number of machine starts by machine and outcome (success or error)",
	}, []string{"machine", "outcome"})

	// MessagesProcessedTotal tracks dispatches by machine and outcome.
	messagesProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "statemachine_messages_processed_total",
		Help: "Total number of processed messages by machine and outcome (handled, unhandled, rejected or error)",
	}, []string{"machine", "outcome"})

	// ProcessDuration tracks single-dispatch latency.
	processDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "statemachine_process_duration_seconds",
		Help:    "Duration of message dispatch by machine and outcome",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
	}, []string{"machine", "outcome"})

	// TransitionsTotal tracks executed transitions.
	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "statemachine_transitions_total",
		Help: "Total number of executed transitions by machine, from_state and to_state",
	}, []string{"machine", "from_state", "to_state"})

	// StatesEnteredTotal tracks entry steps, descent included.
	statesEnteredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "statemachine_states_entered_total",
		Help: "Total number of state entries by machine and state",
	}, []string{"machine", "state"})

	// StatesExitedTotal tracks exit steps.
	statesExitedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "statemachine_states_exited_total",
		Help: "Total number of state exits by machine and state",
	}, []string{"machine", "state"})

	// MachineStopsTotal tracks terminal arrivals by trigger.
	machineStopsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "statemachine_stops_total",
		Help: "Total number of machine stops by machine and trigger (message or explicit)",
	}, []string{"machine", "trigger"})
)

// Stop trigger label values.
const (
	stopTriggerMessage  = "message"
	stopTriggerExplicit = "explicit"
)

// Helper functions for label sanitization.
func sanitizeMachine(machine string) string {
	if machine == "" {
		return "unknown"
	}

	return machine
}

func sanitizeState(state StateID) string {
	if state == "" {
		return "unknown"
	}

	return string(state)
}
