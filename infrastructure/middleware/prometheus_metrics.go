// Package middleware provides cross-cutting concerns for the dispatch
// service.
package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ahrav/go-tribunal/internal/ports"
)

// PrometheusMetrics implements the MetricsCollector interface using
// Prometheus. It exposes backend call outcomes, failover activity, and
// dispatch latency for operational monitoring.
type PrometheusMetrics struct {
	backendCalls     *prometheus.CounterVec
	dispatchEvents   *prometheus.CounterVec
	callLatency      *prometheus.HistogramVec
	dispatchLatency  *prometheus.HistogramVec
	backendState     *prometheus.GaugeVec
	operationLatency *prometheus.HistogramVec
}

// NewPrometheusMetrics creates a PrometheusMetrics instance and registers
// all metrics in the given registerer. A nil registerer uses the global
// default.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		backendCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backend_calls_total",
				Help: "Total generation backend calls by outcome.",
			},
			[]string{"backend", "model", "status"},
		),
		dispatchEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dispatch_events_total",
				Help: "Dispatch-level events: attempts, failovers, fallbacks.",
			},
			[]string{"event", "backend", "status"},
		),
		callLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "backend_call_seconds",
				Help:    "Wall-clock duration of individual backend calls.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"backend", "status"},
		),
		dispatchLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dispatch_duration_seconds",
				Help:    "End-to-end dispatch duration including retries and failover.",
				Buckets: []float64{.25, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"decision"},
		),
		backendState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "backend_health_state",
				Help: "Current per-backend health values.",
			},
			[]string{"backend", "metric"},
		),
		operationLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "operation_duration_seconds",
				Help:    "Duration of named service operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordLatency records a named operation's duration.
func (pm *PrometheusMetrics) RecordLatency(
	operation string, duration time.Duration, labels map[string]string,
) {
	pm.operationLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordCounter increments the counter matching the metric name. Unknown
// metrics are folded into the dispatch event counter under their own
// event label.
func (pm *PrometheusMetrics) RecordCounter(
	metric string, value float64, labels map[string]string,
) {
	switch metric {
	case "backend_calls_total":
		pm.backendCalls.WithLabelValues(
			labels["backend"], labels["model"], labels["status"],
		).Add(value)
	case "dispatch_attempts_total":
		pm.dispatchEvents.WithLabelValues(
			"attempt", labels["backend"], labels["status"],
		).Add(value)
	case "dispatch_failovers_total":
		pm.dispatchEvents.WithLabelValues(
			"failover", labels["backend"], "",
		).Add(value)
	case "dispatch_fallbacks_total":
		pm.dispatchEvents.WithLabelValues("fallback", "", "").Add(value)
	default:
		pm.dispatchEvents.WithLabelValues(metric, labels["backend"], labels["status"]).Add(value)
	}
}

// RecordGauge sets a per-backend health gauge.
func (pm *PrometheusMetrics) RecordGauge(
	metric string, value float64, labels map[string]string,
) {
	pm.backendState.WithLabelValues(labels["backend"], metric).Set(value)
}

// RecordHistogram records a value in the histogram matching the metric
// name.
func (pm *PrometheusMetrics) RecordHistogram(
	metric string, value float64, labels map[string]string,
) {
	switch metric {
	case "backend_call_seconds":
		pm.callLatency.WithLabelValues(labels["backend"], labels["status"]).Observe(value)
	case "dispatch_duration_seconds":
		pm.dispatchLatency.WithLabelValues(labels["decision"]).Observe(value)
	default:
		pm.operationLatency.WithLabelValues(metric).Observe(value)
	}
}

// Compile-time verification that PrometheusMetrics implements MetricsCollector.
var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)
