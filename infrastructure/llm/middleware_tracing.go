package llm

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "generation-dispatcher"

// tracedTransport wraps each backend call in an OpenTelemetry span so a
// request's candidate walk shows up as a sequence of attempt spans.
type tracedTransport struct {
	next    Transport
	backend string
	tracer  trace.Tracer
}

// TracingMiddleware creates middleware that records each call as a span
// carrying the backend ID, model, and prompt length.
func TracingMiddleware(backend string) Middleware {
	return func(next Transport) Transport {
		return &tracedTransport{
			next:    next,
			backend: backend,
			tracer:  otel.Tracer(tracerName),
		}
	}
}

// Generate executes the call within a span, recording the classified
// error on failure.
func (t *tracedTransport) Generate(ctx context.Context, prompt string, opts RequestOptions) (string, error) {
	ctx, span := t.tracer.Start(ctx, "backend.generate",
		trace.WithAttributes(
			attribute.String("backend.id", t.backend),
			attribute.String("backend.model", t.next.Model()),
			attribute.Int("prompt.length", len(prompt)),
		),
	)
	defer span.End()

	response, err := t.next.Generate(ctx, prompt, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return response, err
	}

	span.SetAttributes(attribute.Int("response.length", len(response)))
	return response, nil
}

// Model returns the model name from the wrapped transport.
func (t *tracedTransport) Model() string { return t.next.Model() }
