package llm

import (
	"context"
	"fmt"
	"net/url"
)

// Transport is the minimal interface a backend implementation must
// satisfy. It abstracts the provider-specific wire call so the dispatcher
// and middleware can wrap any conforming implementation.
type Transport interface {
	// Generate sends a prompt to the backend and returns the raw response
	// text. Classification of failures into BackendError categories
	// happens here, at the call site where the real status is known.
	Generate(ctx context.Context, prompt string, opts RequestOptions) (string, error)

	// Model returns the model identifier the transport is configured with.
	Model() string
}

// RequestOptions is the fixed call profile applied to every outbound
// generation request. Values are set once per dispatcher, not per call.
type RequestOptions struct {
	// MaxTokens specifies the maximum number of tokens to generate.
	MaxTokens int
	// Temperature controls the randomness of the output.
	Temperature float64
	// TopP is the nucleus sampling threshold.
	TopP float64
}

// Middleware wraps a Transport to add cross-cutting functionality such as
// timeouts, pacing, metrics, or tracing without modifying transport logic.
type Middleware func(Transport) Transport

// TransportFactory creates a Transport implementation from a backend
// configuration. The factory registry allows tests and extensions to
// plug in custom transports without modifying the core package.
type TransportFactory func(BackendConfig) (Transport, error)

var transportFactories = map[string]TransportFactory{}

// RegisterTransportFactory registers a transport factory under a provider
// name. Later registrations for the same name replace earlier ones.
func RegisterTransportFactory(provider string, factory TransportFactory) {
	transportFactories[provider] = factory
}

// newTransport builds the transport for a backend and applies its
// middleware chain. Middleware are applied in reverse order so the first
// entry is the outermost wrapper.
func newTransport(cfg BackendConfig, extra []Middleware) (Transport, error) {
	factory, ok := transportFactories[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q for backend %q", cfg.Provider, cfg.ID)
	}

	transport, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create transport for backend %q: %w", cfg.ID, err)
	}

	chain := append(append([]Middleware{}, extra...), cfg.Middleware...)
	for i := len(chain) - 1; i >= 0; i-- {
		transport = chain[i](transport)
	}

	return transport, nil
}

// validateBaseURL validates and normalizes a base URL override. An empty
// string is valid and selects the provider's default endpoint.
func validateBaseURL(baseURL string) (string, error) {
	if baseURL == "" {
		return "", nil
	}

	parsed, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL format: %w", err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("URL scheme must be http or https, but got: %q", parsed.Scheme)
	}

	if parsed.Host == "" {
		return "", fmt.Errorf("URL must include a host")
	}

	return parsed.String(), nil
}
