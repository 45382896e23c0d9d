package llm

import (
	"fmt"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ahrav/go-tribunal/internal/domain"
	"github.com/ahrav/go-tribunal/internal/ports"
)

// Registry is the static per-process set of usable generation backends
// plus their live health records. The set of backends is immutable after
// construction; only health state mutates at runtime, which bounds the
// synchronization surface to the health records. The registry is an
// explicitly constructed, owned object passed by handle into the
// Dispatcher; there are no package-level provider singletons.
type Registry struct {
	backends   []BackendConfig // usable backends in priority order
	transports map[string]Transport
	health     *HealthTracker
	logger     *zap.Logger
}

// RegistryConfig holds everything needed to construct a Registry.
type RegistryConfig struct {
	// Backends lists the configured backends. Entries without a usable
	// credential are skipped; at least one must survive.
	Backends []BackendConfig

	// Policy supplies the cooldown window and disablement threshold for
	// the health tracker. Zero fields take defaults.
	Policy DispatchPolicy

	// Logger receives structured startup and skip events. Nil selects a
	// no-op logger.
	Logger *zap.Logger

	// Metrics, when non-nil, wraps every transport with metrics
	// collection middleware.
	Metrics ports.MetricsCollector

	// EnableTracing wraps every transport with an OpenTelemetry span per
	// outbound call.
	EnableTracing bool
}

// NewRegistry builds the registry from configuration. Backends with a
// missing or placeholder credential are excluded permanently; if none
// remain, construction fails with ErrNoUsableBackends. This is the only
// error path that aborts initialization.
func NewRegistry(cfg RegistryConfig) (*Registry, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	policy := cfg.Policy.withDefaults()

	ordered := append([]BackendConfig{}, cfg.Backends...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority < ordered[j].Priority
	})

	r := &Registry{
		transports: make(map[string]Transport),
		logger:     logger,
	}

	for _, bc := range ordered {
		if !bc.hasUsableCredential() {
			logger.Warn("skipping backend without usable credential",
				zap.String("backend", bc.ID))
			continue
		}
		if _, dup := r.transports[bc.ID]; dup {
			return nil, fmt.Errorf("duplicate backend ID %q", bc.ID)
		}

		transport, err := newTransport(bc, r.defaultMiddleware(bc, cfg))
		if err != nil {
			return nil, err
		}

		r.backends = append(r.backends, bc)
		r.transports[bc.ID] = transport
		logger.Info("backend registered",
			zap.String("backend", bc.ID),
			zap.String("provider", bc.Provider),
			zap.String("model", bc.Model))
	}

	if len(r.backends) == 0 {
		return nil, ErrNoUsableBackends
	}

	ids := make([]string, len(r.backends))
	for i, bc := range r.backends {
		ids[i] = bc.ID
	}
	r.health = NewHealthTracker(policy.CooldownWindow, policy.DisableThreshold, ids)

	return r, nil
}

// defaultMiddleware assembles the registry-level transport chain for one
// backend: tracing outermost, then metrics, client-side pacing, and the
// per-call timeout closest to the wire.
func (r *Registry) defaultMiddleware(bc BackendConfig, cfg RegistryConfig) []Middleware {
	var chain []Middleware
	if cfg.EnableTracing {
		chain = append(chain, TracingMiddleware(bc.ID))
	}
	if cfg.Metrics != nil {
		chain = append(chain, MetricsMiddleware(bc.ID, cfg.Metrics))
	}
	if bc.RequestsPerSecond > 0 {
		burst := bc.Burst
		if burst <= 0 {
			burst = 1
		}
		chain = append(chain, PacingMiddleware(rate.Limit(bc.RequestsPerSecond), burst))
	}
	chain = append(chain, TimeoutMiddleware(bc.timeout()))
	return chain
}

// Backends returns the usable backends in priority order. The returned
// slice is a copy; the registry's composition cannot be mutated.
func (r *Registry) Backends() []BackendConfig {
	return append([]BackendConfig{}, r.backends...)
}

// Transport returns the transport for a backend ID.
func (r *Registry) Transport(id string) (Transport, bool) {
	t, ok := r.transports[id]
	return t, ok
}

// Health returns the registry's health tracker.
func (r *Registry) Health() *HealthTracker { return r.health }

// HealthReport returns a point-in-time status snapshot for every
// registered backend, keyed by backend ID. Two successive reports with
// no intervening attempts are identical.
func (r *Registry) HealthReport() map[string]domain.BackendStatus {
	report := make(map[string]domain.BackendStatus, len(r.backends))
	for _, bc := range r.backends {
		snap := r.health.Snapshot(bc.ID)
		status := domain.BackendStatus{
			Available:           !snap.RateLimited && !snap.Disabled,
			RateLimited:         snap.RateLimited,
			Disabled:            snap.Disabled,
			ConsecutiveFailures: snap.ConsecutiveFailures,
			Model:               bc.Model,
		}
		if !snap.LastFailure.IsZero() {
			failure := snap.LastFailure
			status.LastFailure = &failure
		}
		report[bc.ID] = status
	}
	return report
}
