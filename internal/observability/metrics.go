package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects the hub's Prometheus metrics. Each Metrics instance owns
// its registry so independent hubs (and tests) never collide.
type Metrics struct {
	registry *prometheus.Registry

	// ToolInvocations counts invocations by tool and outcome.
	// Labels: tool, ok ("true"|"false")
	ToolInvocations *prometheus.CounterVec

	// ToolRetries counts retry attempts by tool.
	ToolRetries *prometheus.CounterVec

	// PolicyDenied counts policy denials by tool and reason class.
	PolicyDenied *prometheus.CounterVec

	// Jobs counts job transitions by tool and terminal status.
	Jobs *prometheus.CounterVec

	// ToolLatency measures invocation latency in milliseconds.
	// Buckets: 1ms to 60s.
	ToolLatency *prometheus.HistogramVec
}

// NewMetrics creates and registers the hub metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		ToolInvocations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolhub_tool_invocations_total",
				Help: "Total tool invocations by tool name and outcome",
			},
			[]string{"tool", "ok"},
		),

		ToolRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolhub_tool_retries_total",
				Help: "Total retry attempts by tool name",
			},
			[]string{"tool"},
		),

		PolicyDenied: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolhub_policy_denied_total",
				Help: "Total policy denials by tool name and reason",
			},
			[]string{"tool", "reason"},
		),

		Jobs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolhub_jobs_total",
				Help: "Total job state transitions by tool name and status",
			},
			[]string{"tool", "status"},
		),

		ToolLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "toolhub_tool_latency_ms",
				Help:    "Tool invocation latency in milliseconds",
				Buckets: []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000, 30000, 60000},
			},
			[]string{"tool"},
		),
	}
}

// RecordInvocation records one completed invocation.
func (m *Metrics) RecordInvocation(tool string, ok bool, latencyMs float64) {
	outcome := "false"
	if ok {
		outcome = "true"
	}
	m.ToolInvocations.WithLabelValues(tool, outcome).Inc()
	m.ToolLatency.WithLabelValues(tool).Observe(latencyMs)
}

// RecordRetry records one retry attempt.
func (m *Metrics) RecordRetry(tool string) {
	m.ToolRetries.WithLabelValues(tool).Inc()
}

// RecordPolicyDenied records one policy denial.
func (m *Metrics) RecordPolicyDenied(tool, reason string) {
	m.PolicyDenied.WithLabelValues(tool, reason).Inc()
}

// RecordJob records a job transition.
func (m *Metrics) RecordJob(tool, status string) {
	m.Jobs.WithLabelValues(tool, status).Inc()
}

// Handler exposes the registry in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
