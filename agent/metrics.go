package agent

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for monitoring agent behavior and performance.
// Labeled metrics carry the agent name; the machine-level view lives in
// the statemachine package's own metrics.

var (
	// agentStarted counts the total number of agent workers started.
	agentStarted = promauto.NewCounter(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "agent_started",
		Help: "The total number of agents started",
	})

	// agentStopped counts the total number of agent workers that exited.
	agentStopped = promauto.NewCounter(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "agent_stopped",
		Help: "The total number of agents stopped",
	})

	// aliveAgents tracks the number of currently running agent workers.
	aliveAgents = promauto.NewGaugeVec(prometheus.GaugeOpts{ //nolint:gochecknoglobals
		Name: "agent_alive_agents",
		Help: "The total number of agents alive",
	}, []string{"agent"})

	// agentPanic counts the number of times an agent recovered from a panic.
	agentPanic = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "agent_panic",
		Help: "The total number of agents that recovered from a panic",
	}, []string{"agent"})

	// enqueuedRequests tracks the current mailbox depth.
	enqueuedRequests = promauto.NewGaugeVec(prometheus.GaugeOpts{ //nolint:gochecknoglobals
		Name: "agent_enqueued_requests",
		Help: "The total number of requests enqueued",
	}, []string{"agent"})

	// submitCount counts the total number of requests submitted to agents.
	submitCount = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "agent_submit_count",
		Help: "The total number of requests submitted",
	}, []string{"agent", "kind"})

	// processedRequests counts requests the worker completed, by outcome.
	processedRequests = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "agent_processed_requests",
		Help: "The total number of requests processed",
	}, []string{"agent", "kind", "outcome"})

	// processingTime measures the time the worker spent on each request.
	processingTime = promauto.NewHistogramVec(prometheus.HistogramOpts{ //nolint:gochecknoglobals
		Name: "agent_processing_time",
		Help: "The time spent processing a request",
		Buckets: []float64{
			0.001, // 1ms
			0.01,  // 10ms
			0.1,   // 100ms
			1,     // 1s
			10,    // 10s
			60,    // 1m
			120,   // 2m
			300,   // 5m
		},
	}, []string{"agent", "kind"})
)

// Request kind label values.
const (
	kindStart = "start"
	kindSend  = "send"
	kindStop  = "stop"
)

// Outcome label values.
const (
	outcomeSuccess = "success"
	outcomeError   = "error"
)
