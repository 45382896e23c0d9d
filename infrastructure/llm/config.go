package llm

import (
	"strings"
	"time"
)

// RequestShape selects how a prompt is encoded on the wire.
type RequestShape string

const (
	// ShapeMessages sends the prompt as a single-entry message list,
	// the chat-completion request shape.
	ShapeMessages RequestShape = "messages"
	// ShapePrompt sends the prompt as a raw string, the legacy
	// completion request shape.
	ShapePrompt RequestShape = "prompt"
)

// Default dispatch policy constants. Every value is configuration, not
// forked code; DispatchPolicy carries the live settings.
const (
	// DefaultCooldownWindow is how long a backend is treated as rate
	// limited after a marked failure.
	DefaultCooldownWindow = 60 * time.Second
	// DefaultDisableThreshold is the consecutive-failure count at which a
	// backend is treated as temporarily unusable.
	DefaultDisableThreshold = 3
	// DefaultMaxAttempts is the number of attempts per candidate.
	DefaultMaxAttempts = 3
	// DefaultBaseDelay is the initial backoff delay between attempts
	// against the same backend.
	DefaultBaseDelay = 2 * time.Second
	// DefaultMaxDelay caps the backoff delay.
	DefaultMaxDelay = 30 * time.Second
	// DefaultJitterFraction is the randomized fraction added to each
	// backoff delay to avoid request storms.
	DefaultJitterFraction = 0.25
	// DefaultCallTimeout is the per-call wall-clock timeout.
	DefaultCallTimeout = 60 * time.Second
)

// Default call profile values, matching the document-analysis workload.
const (
	DefaultMaxTokens   = 2000
	DefaultTemperature = 0.2
	DefaultTopP        = 0.9
)

// BackendConfig is the immutable description of one configured generation
// backend. Instances are created at startup and never mutated; a backend
// without a usable credential is excluded from the registry permanently
// at startup, not per request.
type BackendConfig struct {
	// ID uniquely identifies the backend in candidate lists, health
	// reports, and logs.
	ID string

	// Provider names the transport factory to use (openai, anthropic,
	// google, or a registered custom provider).
	Provider string

	// APIKey authenticates requests. An empty or placeholder value
	// excludes the backend from the registry.
	APIKey string

	// Model is the model identifier sent on every request.
	Model string

	// BaseURL overrides the provider's default endpoint. This is how
	// OpenAI-compatible services (Groq, Together, Fireworks) are reached
	// through the openai provider.
	BaseURL string

	// Shape selects the request encoding; defaults to ShapeMessages.
	Shape RequestShape

	// Timeout is the fixed per-call wall-clock timeout, independent of
	// retry backoff. Zero selects DefaultCallTimeout.
	Timeout time.Duration

	// Priority is the static rank; lower values are tried first. The
	// designated primary carries the lowest value. Ties keep
	// registration order.
	Priority int

	// RequestsPerSecond enables optional client-side pacing when > 0.
	RequestsPerSecond float64

	// Burst is the pacing burst size; only meaningful with
	// RequestsPerSecond.
	Burst int

	// Middleware specifies backend-specific transport middleware,
	// applied inside the registry defaults.
	Middleware []Middleware
}

// shape returns the configured request shape, defaulting to messages.
func (c BackendConfig) shape() RequestShape {
	if c.Shape == "" {
		return ShapeMessages
	}
	return c.Shape
}

// timeout returns the configured per-call timeout, defaulting when unset.
func (c BackendConfig) timeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultCallTimeout
	}
	return c.Timeout
}

// hasUsableCredential reports whether the configured credential looks
// real. Placeholder values left over from configuration templates count
// as missing.
func (c BackendConfig) hasUsableCredential() bool {
	key := strings.TrimSpace(c.APIKey)
	if key == "" {
		return false
	}
	lower := strings.ToLower(key)
	return !strings.HasPrefix(lower, "your_") && lower != "changeme"
}

// DispatchPolicy is the single parameterized policy object governing
// health tracking, retry, and backoff across all backends.
type DispatchPolicy struct {
	// CooldownWindow is how long a backend stays rate limited after a
	// marked failure.
	CooldownWindow time.Duration

	// DisableThreshold is the consecutive-failure count at which a
	// backend is temporarily disabled.
	DisableThreshold int

	// MaxAttempts is the maximum attempts per candidate, including the
	// first.
	MaxAttempts int

	// BaseDelay is the initial backoff delay; subsequent delays grow
	// exponentially.
	BaseDelay time.Duration

	// MaxDelay caps the backoff delay.
	MaxDelay time.Duration

	// JitterFraction adds a random fraction of the delay to prevent a
	// thundering-herd pattern. It should be between 0.0 and 1.0.
	JitterFraction float64

	// RaceCandidates, when >= 2, races that many top candidates and
	// returns the first structurally valid response. Zero keeps the
	// sequential baseline.
	RaceCandidates int

	// Profile is the fixed call profile applied to every request.
	Profile RequestOptions
}

// DefaultDispatchPolicy returns a DispatchPolicy with the default
// constants applied.
func DefaultDispatchPolicy() DispatchPolicy {
	return DispatchPolicy{
		CooldownWindow:   DefaultCooldownWindow,
		DisableThreshold: DefaultDisableThreshold,
		MaxAttempts:      DefaultMaxAttempts,
		BaseDelay:        DefaultBaseDelay,
		MaxDelay:         DefaultMaxDelay,
		JitterFraction:   DefaultJitterFraction,
		Profile: RequestOptions{
			MaxTokens:   DefaultMaxTokens,
			Temperature: DefaultTemperature,
			TopP:        DefaultTopP,
		},
	}
}

// withDefaults fills zero-valued policy fields so a partially specified
// policy behaves like the default one.
func (p DispatchPolicy) withDefaults() DispatchPolicy {
	if p.CooldownWindow <= 0 {
		p.CooldownWindow = DefaultCooldownWindow
	}
	if p.DisableThreshold <= 0 {
		p.DisableThreshold = DefaultDisableThreshold
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultBaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultMaxDelay
	}
	if p.JitterFraction < 0 || p.JitterFraction > 1 {
		p.JitterFraction = DefaultJitterFraction
	}
	if p.Profile.MaxTokens <= 0 {
		p.Profile.MaxTokens = DefaultMaxTokens
	}
	if p.Profile.Temperature <= 0 {
		p.Profile.Temperature = DefaultTemperature
	}
	if p.Profile.TopP <= 0 {
		p.Profile.TopP = DefaultTopP
	}
	return p
}
