// Package metrics exposes prometheus instrumentation for the approval
// engine. The collector implements the advance package's observer
// interfaces so it can be wired straight into the executor and
// orchestrator.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	registry *prometheus.Registry

	runsTotal        *prometheus.CounterVec
	nodesPerRun      prometheus.Histogram
	nodeLatency      *prometheus.HistogramVec
	mlFallbacksTotal *prometheus.CounterVec
	auditFailures    prometheus.Counter
}

func New() *Collector {
	registry := prometheus.NewRegistry()

	return &Collector{
		registry: registry,
		runsTotal: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "advance_runs_total",
			Help: "Completed approval runs by outcome",
		}, []string{"outcome"}),
		nodesPerRun: promauto.With(registry).NewHistogram(prometheus.HistogramOpts{
			Name:    "advance_run_nodes_visited",
			Help:    "Nodes visited per approval run",
			Buckets: []float64{1, 2, 3, 4, 6, 8, 12},
		}),
		nodeLatency: promauto.With(registry).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "advance_node_latency_seconds",
			Help:    "Node execution latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"node"}),
		mlFallbacksTotal: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "advance_ml_fallbacks_total",
			Help: "ML node executions that degraded to rule fallback",
		}, []string{"model_key"}),
		auditFailures: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "advance_audit_write_failures_total",
			Help: "Best-effort audit writes that failed",
		}),
	}
}

func (c *Collector) ObserveNodeLatency(nodeName string, duration time.Duration) {
	c.nodeLatency.WithLabelValues(nodeName).Observe(duration.Seconds())
}

func (c *Collector) ObserveRun(approved bool, nodesVisited int) {
	outcome := "rejected"
	if approved {
		outcome = "approved"
	}
	c.runsTotal.WithLabelValues(outcome).Inc()
	c.nodesPerRun.Observe(float64(nodesVisited))
}

func (c *Collector) ObserveMLFallback(modelKey string) {
	c.mlFallbacksTotal.WithLabelValues(modelKey).Inc()
}

func (c *Collector) ObserveAuditFailure() {
	c.auditFailures.Inc()
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
