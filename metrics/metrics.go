// Package metrics exposes Prometheus instrumentation for workflow runs.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the workflow collectors.
type Metrics struct {
	nodeExecutions *prometheus.CounterVec
	nodeDuration   *prometheus.HistogramVec
	interrupts     *prometheus.CounterVec
	completed      prometheus.Counter
	llmCalls       *prometheus.CounterVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		nodeExecutions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "semfolio_node_executions_total",
			Help: "Node executions by node and outcome",
		}, []string{"node", "outcome"}),

		nodeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "semfolio_node_duration_seconds",
			Help:    "Node execution latency",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 15, 60},
		}, []string{"node"}),

		interrupts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "semfolio_interrupts_total",
			Help: "Threads suspended for human input, by node",
		}, []string{"node"}),

		completed: factory.NewCounter(prometheus.CounterOpts{
			Name: "semfolio_runs_completed_total",
			Help: "Threads that reached the end of the graph",
		}),

		llmCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "semfolio_llm_calls_total",
			Help: "Structured model calls by schema and outcome",
		}, []string{"schema", "outcome"}),
	}
}

// NodeFinished records one node execution.
func (m *Metrics) NodeFinished(node, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.nodeExecutions.WithLabelValues(node, outcome).Inc()
	m.nodeDuration.WithLabelValues(node).Observe(d.Seconds())
}

// Interrupted records a suspension.
func (m *Metrics) Interrupted(node string) {
	if m == nil {
		return
	}
	m.interrupts.WithLabelValues(node).Inc()
}

// Completed records a finished thread.
func (m *Metrics) Completed() {
	if m == nil {
		return
	}
	m.completed.Inc()
}

// LLMCall records a structured model call. outcome is "ok" or "error".
func (m *Metrics) LLMCall(schema, outcome string) {
	if m == nil {
		return
	}
	m.llmCalls.WithLabelValues(schema, outcome).Inc()
}
