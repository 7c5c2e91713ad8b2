// Package obs wires the engine's observability: Prometheus counters and
// histograms for node executions, downstream calls, and limit breaches
// (grounded on pkg/prefetch.Metrics's promauto pattern), plus optional
// OpenTelemetry tracing spans around node execution and downstream calls.
package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds the engine's Prometheus collectors. All metrics are
// prefixed with "toolgraph_" for namespacing.
type Metrics struct {
	NodeExecutionsTotal  *prometheus.CounterVec
	NodeDuration         *prometheus.HistogramVec
	DownstreamCallsTotal *prometheus.CounterVec
	DownstreamDuration   *prometheus.HistogramVec
	LimitBreachesTotal   *prometheus.CounterVec
}

// NewMetrics creates and registers the engine's Prometheus metrics.
// sync.Once guards against duplicate-registration panics when multiple
// engine instances share a process.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			NodeExecutionsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "toolgraph_node_executions_total",
					Help: "Total number of node executions, by node type and outcome.",
				},
				[]string{"node_type", "outcome"},
			),
			NodeDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name: "toolgraph_node_duration_seconds",
					Help: "Node execution duration in seconds, by node type.",
				},
				[]string{"node_type"},
			),
			DownstreamCallsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "toolgraph_downstream_calls_total",
					Help: "Total number of downstream tool calls, by server and outcome.",
				},
				[]string{"server", "outcome"},
			),
			DownstreamDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name: "toolgraph_downstream_call_duration_seconds",
					Help: "Downstream tool call duration in seconds, by server.",
				},
				[]string{"server"},
			),
			LimitBreachesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "toolgraph_limit_breaches_total",
					Help: "Total number of invocations that failed on a limit breach, by kind.",
				},
				[]string{"kind"},
			),
		}
	})
	return globalMetrics
}
