package ports

import (
	"context"
	"time"

	"github.com/ahrav/go-tribunal/internal/domain"
)

// ContextRetriever supplies ranked context snippets for a query string.
// Implementations may use keyword matching, vector search, or any other
// ranking strategy; the dispatch layer only depends on the ordering.
type ContextRetriever interface {
	// Retrieve returns up to limit snippets ordered by descending
	// relevance. An empty result is not an error; the dispatch layer
	// short-circuits it to an Uncertain decision.
	Retrieve(ctx context.Context, query string, limit int) ([]domain.Snippet, error)
}

// DecisionAnalyzer is the sole request-path entry point of the system.
// Implementations must always produce a DecisionObject for a live
// context; only cancellation of ctx may yield no result.
type DecisionAnalyzer interface {
	// Analyze routes the query and snippets to a generation backend and
	// returns the validated decision. An empty snippet list short-circuits
	// to an Uncertain decision without contacting any backend.
	Analyze(ctx context.Context, query string, snippets []domain.Snippet) (*domain.DecisionObject, error)

	// HealthReport returns a point-in-time snapshot of every configured
	// backend's health state, keyed by backend ID.
	HealthReport() map[string]domain.BackendStatus
}

// MetricsCollector defines the interface for collecting operational
// metrics. Implementations should integrate with observability platforms
// like Prometheus, OpenTelemetry, or custom monitoring solutions.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	// The labels map provides additional context for the metric.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric.
	// This is useful for tracking events like failovers, errors, etc.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets the current value of a gauge metric.
	// This is useful for tracking values like healthy backend counts.
	RecordGauge(metric string, value float64, labels map[string]string)

	// RecordHistogram records a value in a histogram.
	// This is useful for tracking distributions like dispatch latency.
	RecordHistogram(metric string, value float64, labels map[string]string)
}
