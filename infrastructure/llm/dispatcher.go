package llm

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ahrav/go-tribunal/internal/domain"
	"github.com/ahrav/go-tribunal/internal/ports"
)

var _ ports.DecisionAnalyzer = (*Dispatcher)(nil)

// Dispatcher executes a request's candidate list with per-backend retry
// and inter-backend failover. It owns the at-most-one-winner contract:
// the first structurally valid response ends the request and no further
// candidates are tried. All per-backend failures are converted into
// health updates and failover; none reach the caller.
type Dispatcher struct {
	registry  *Registry
	policy    DispatchPolicy
	validator *ResponseValidator
	logger    *zap.Logger
	metrics   ports.MetricsCollector
}

// DispatcherConfig holds the dependencies for a Dispatcher.
type DispatcherConfig struct {
	// Registry is the owned backend registry. Required.
	Registry *Registry

	// Policy parameterizes retry, backoff, and the call profile. Zero
	// fields take defaults.
	Policy DispatchPolicy

	// Logger receives per-attempt structured events. Nil selects a
	// no-op logger.
	Logger *zap.Logger

	// Metrics, when non-nil, records dispatch outcomes and latency.
	Metrics ports.MetricsCollector
}

// NewDispatcher creates a dispatcher bound to a registry.
func NewDispatcher(cfg DispatcherConfig) (*Dispatcher, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		registry:  cfg.Registry,
		policy:    cfg.Policy.withDefaults(),
		validator: NewResponseValidator(),
		logger:    logger,
		metrics:   cfg.Metrics,
	}, nil
}

// Analyze routes the query and snippets to a generation backend and
// returns the validated decision. An empty snippet list short-circuits
// to an Uncertain decision without contacting any backend. When every
// candidate is exhausted the fallback synthesizer produces a grounded
// Uncertain decision; the only error Analyze can return is the caller's
// own context cancellation, which yields no result.
func (d *Dispatcher) Analyze(ctx context.Context, query string, snippets []domain.Snippet) (*domain.DecisionObject, error) {
	if len(snippets) == 0 {
		return EmptyContextDecision(), nil
	}

	start := time.Now()
	ctx, span := otel.Tracer(tracerName).Start(ctx, "dispatch.analyze",
		trace.WithAttributes(
			attribute.Int("context.snippets", len(snippets)),
			attribute.Int("query.length", len(query)),
		),
	)
	defer span.End()

	prompt := BuildReasoningPrompt(query, snippets)

	decision, err := d.dispatch(ctx, prompt)
	if err != nil {
		if ctx.Err() != nil {
			span.SetStatus(codes.Error, ctx.Err().Error())
			return nil, ctx.Err()
		}
		d.logger.Error("all candidates exhausted, synthesizing fallback",
			zap.Error(err))
		span.RecordError(err)
		d.count("dispatch_fallbacks_total", nil)
		decision = SynthesizeFallback(snippets, err)
	}

	span.SetAttributes(attribute.String("dispatch.decision", string(decision.Decision)))

	if d.metrics != nil {
		d.metrics.RecordHistogram("dispatch_duration_seconds",
			time.Since(start).Seconds(), map[string]string{"decision": string(decision.Decision)})
	}
	return decision, nil
}

// HealthReport returns the registry's per-backend status snapshot.
func (d *Dispatcher) HealthReport() map[string]domain.BackendStatus {
	return d.registry.HealthReport()
}

// dispatch walks the candidate list in order until one backend produces
// a validated decision. It returns the last concrete failure when every
// candidate is exhausted, and the context error when the caller cancels.
func (d *Dispatcher) dispatch(ctx context.Context, prompt string) (*domain.DecisionObject, error) {
	candidates := d.registry.SelectCandidates()

	if d.policy.RaceCandidates >= 2 {
		return d.race(ctx, prompt, candidates)
	}

	var lastErr error
	for _, c := range candidates {
		decision, err := d.tryCandidate(ctx, prompt, c)
		if err == nil {
			return decision, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		d.count("dispatch_failovers_total", map[string]string{"backend": c.Config.ID})
	}

	if lastErr == nil {
		lastErr = ErrNoUsableBackends
	}
	return nil, fmt.Errorf("all candidates exhausted: %w", lastErr)
}

// tryCandidate runs up to MaxAttempts against one backend. A rate-limit
// signal abandons the candidate immediately, skipping both the backoff
// wait and any remaining attempts; other deterministic failures
// (authentication, bad request) also fail over without further attempts.
func (d *Dispatcher) tryCandidate(ctx context.Context, prompt string, c Candidate) (*domain.DecisionObject, error) {
	transport, ok := d.registry.Transport(c.Config.ID)
	if !ok {
		return nil, fmt.Errorf("no transport for backend %q", c.Config.ID)
	}
	health := d.registry.Health()

	var lastErr error
	for attempt := 1; attempt <= d.policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			// The wait blocks only this request's progress and holds no
			// lock on shared health state.
			if err := d.wait(ctx, d.backoffDelay(attempt-1)); err != nil {
				return nil, err
			}
		}

		raw, err := transport.Generate(ctx, prompt, d.policy.Profile)
		if err == nil {
			decision, verr := d.validator.Validate(c.Config.ID, raw)
			if verr == nil {
				health.MarkSuccess(c.Config.ID)
				d.logger.Info("backend produced validated decision",
					zap.String("backend", c.Config.ID),
					zap.Int("attempt", attempt))
				d.count("dispatch_attempts_total",
					map[string]string{"backend": c.Config.ID, "status": "success"})
				return decision, nil
			}
			// A malformed payload counts as an ordinary failure for this
			// attempt.
			err = verr
		}

		// A cancelled request says nothing about the backend: the caller
		// disconnected, or a raced sibling already won. Only real faults
		// are marked against health.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		health.MarkFailure(c.Config.ID)
		lastErr = err
		d.logAttemptFailure(c.Config.ID, attempt, err)
		d.count("dispatch_attempts_total",
			map[string]string{"backend": c.Config.ID, "status": attemptStatus(err)})

		var be *BackendError
		if errors.As(err, &be) && (be.IsRateLimit() || !be.Retryable()) {
			break
		}
	}

	return nil, lastErr
}

// race tries the top candidates concurrently and returns the first
// structurally valid decision, cancelling the rest. Health marking still
// applies per attempt. Candidates beyond the raced set are tried
// sequentially if the race produces no winner.
func (d *Dispatcher) race(ctx context.Context, prompt string, candidates []Candidate) (*domain.DecisionObject, error) {
	n := d.policy.RaceCandidates
	if n > len(candidates) {
		n = len(candidates)
	}
	if n < 2 {
		d.logger.Warn("not enough candidates to race, running sequentially")
		n = len(candidates)
	}

	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu      sync.Mutex
		winner  *domain.DecisionObject
		lastErr error
	)

	g, gctx := errgroup.WithContext(raceCtx)
	for _, c := range candidates[:n] {
		g.Go(func() error {
			decision, err := d.tryCandidate(gctx, prompt, c)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if lastErr == nil || gctx.Err() == nil {
					lastErr = err
				}
				return nil
			}
			if winner == nil {
				winner = decision
				cancel()
			}
			return nil
		})
	}
	_ = g.Wait()

	if winner != nil {
		return winner, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	for _, c := range candidates[n:] {
		decision, err := d.tryCandidate(ctx, prompt, c)
		if err == nil {
			return decision, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
	}

	if lastErr == nil {
		lastErr = ErrNoUsableBackends
	}
	return nil, fmt.Errorf("all candidates exhausted: %w", lastErr)
}

// backoffDelay computes the exponential backoff with jitter for a retry
// against the same backend. attempt counts completed attempts, so the
// first retry waits roughly BaseDelay*2.
func (d *Dispatcher) backoffDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 30 {
		attempt = 30
	}
	delay := d.policy.BaseDelay * time.Duration(1<<uint(attempt))
	if delay > d.policy.MaxDelay {
		delay = d.policy.MaxDelay
	}

	jitter := int64(float64(delay) * d.policy.JitterFraction)
	if jitter > 0 {
		//nolint:gosec // G404: math/rand is acceptable for retry jitter timing.
		delay += time.Duration(rand.Int64N(jitter))
	}

	return delay
}

// wait is a cancellable timed wait tied to the request's own context.
func (d *Dispatcher) wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (d *Dispatcher) logAttemptFailure(backend string, attempt int, err error) {
	fields := []zap.Field{
		zap.String("backend", backend),
		zap.Int("attempt", attempt),
		zap.Error(err),
	}
	var be *BackendError
	if errors.As(err, &be) {
		fields = append(fields, zap.String("error_type", be.typeString()))
	}
	d.logger.Warn("backend attempt failed", fields...)
}

func (d *Dispatcher) count(metric string, labels map[string]string) {
	if d.metrics != nil {
		d.metrics.RecordCounter(metric, 1, labels)
	}
}

// attemptStatus maps an attempt failure to a metrics label.
func attemptStatus(err error) string {
	var be *BackendError
	if errors.As(err, &be) {
		if s := be.typeString(); s != "" {
			return s
		}
	}
	return "error"
}
