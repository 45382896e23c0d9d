package llm

import (
	"context"
	"errors"
	"time"

	"github.com/ahrav/go-tribunal/internal/ports"
)

// meteredTransport collects per-call metrics. This provides observability
// into request patterns, latency, and error rates per backend.
type meteredTransport struct {
	next      Transport
	backend   string
	collector ports.MetricsCollector
}

// MetricsMiddleware creates middleware that records call latency and
// outcome counters labeled by backend and model.
func MetricsMiddleware(backend string, collector ports.MetricsCollector) Middleware {
	return func(next Transport) Transport {
		return &meteredTransport{
			next:      next,
			backend:   backend,
			collector: collector,
		}
	}
}

// Generate executes the call while recording latency and a status label
// derived from the classified failure type.
func (m *meteredTransport) Generate(ctx context.Context, prompt string, opts RequestOptions) (string, error) {
	start := time.Now()
	response, err := m.next.Generate(ctx, prompt, opts)

	labels := map[string]string{
		"backend": m.backend,
		"model":   m.next.Model(),
		"status":  "success",
	}
	if err != nil {
		labels["status"] = "error"
		var be *BackendError
		if errors.As(err, &be) {
			if s := be.typeString(); s != "" {
				labels["status"] = s
			}
		}
	}

	if m.collector != nil {
		m.collector.RecordHistogram("backend_call_seconds", time.Since(start).Seconds(), labels)
		m.collector.RecordCounter("backend_calls_total", 1, labels)
	}

	return response, err
}

// Model returns the model name from the wrapped transport.
func (m *meteredTransport) Model() string { return m.next.Model() }
