package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// pacedTransport spaces outbound calls using a token bucket. Client-side
// pacing reduces how often a backend answers 429 in the first place; the
// health tracker still handles the ones that get through.
type pacedTransport struct {
	next    Transport
	limiter *rate.Limiter
}

// PacingMiddleware creates middleware that enforces a sustained request
// rate with a burst allowance.
func PacingMiddleware(limit rate.Limit, burst int) Middleware {
	limiter := rate.NewLimiter(limit, burst)

	return func(next Transport) Transport {
		return &pacedTransport{
			next:    next,
			limiter: limiter,
		}
	}
}

// Generate waits for a pacing token before forwarding the call. The wait
// is cancellable through the request context.
func (p *pacedTransport) Generate(ctx context.Context, prompt string, opts RequestOptions) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("pacing: %w", err)
	}
	return p.next.Generate(ctx, prompt, opts)
}

// Model returns the model name from the wrapped transport.
func (p *pacedTransport) Model() string { return p.next.Model() }
