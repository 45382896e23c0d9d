package llm

import (
	"context"
	"time"
)

// timeoutTransport enforces a fixed per-call wall-clock deadline. The
// deadline is independent of the dispatcher's retry backoff; each attempt
// gets the full window.
type timeoutTransport struct {
	next    Transport
	timeout time.Duration
}

// TimeoutMiddleware creates middleware that bounds every call with a
// deadline so a hung backend cannot stall the candidate walk.
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return func(next Transport) Transport {
		return &timeoutTransport{
			next:    next,
			timeout: timeout,
		}
	}
}

// Generate executes the call with a timeout context. A deadline hit
// surfaces as context.DeadlineExceeded and is classified downstream as a
// timeout failure for that attempt.
func (t *timeoutTransport) Generate(ctx context.Context, prompt string, opts RequestOptions) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Generate(ctx, prompt, opts)
}

// Model returns the model name from the wrapped transport.
func (t *timeoutTransport) Model() string { return t.next.Model() }
