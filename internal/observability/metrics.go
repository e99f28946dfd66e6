// Package observability provides logging, metrics, and tracing helpers
// shared by every component of the worker.
package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	// WorkerTasksTotal counts dispatcher outcomes by result label, the
	// single metric named in spec.md §6.
	WorkerTasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_tasks_total",
			Help: "Total number of tasks processed by the worker, by result",
		},
		[]string{"result"},
	)

	// AgentDuration records agent execution latency by agent type.
	AgentDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agent_duration_seconds",
			Help:    "Agent execution duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"agent_type"},
	)

	// AIRequestsTotal counts AI provider calls by provider and outcome.
	AIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_requests_total",
			Help: "Total number of AI provider requests",
		},
		[]string{"provider", "outcome"},
	)

	// AIRequestDuration records AI provider call latency.
	AIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_request_duration_seconds",
			Help:    "AI provider request duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 20},
		},
		[]string{"provider"},
	)
)

// RegisterDefault registers all worker metrics on the default Prometheus
// registry. Safe to call once at process startup.
func RegisterDefault() {
	prometheus.MustRegister(WorkerTasksTotal, AgentDuration, AIRequestsTotal, AIRequestDuration)
}

// RecordTaskResult increments worker_tasks_total for the given result label
// (one of "success", "failed", "reviewed").
func RecordTaskResult(result string) {
	WorkerTasksTotal.WithLabelValues(result).Inc()
}
