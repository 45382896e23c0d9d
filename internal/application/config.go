// Package application wires configuration, retrieval, and the dispatch
// engine into the query-analysis service.
package application

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-tribunal/infrastructure/llm"
)

// Config is the top-level service configuration, loaded from YAML.
type Config struct {
	// Backends lists the generation backends in any order; runtime
	// ordering comes from each backend's priority.
	Backends []BackendEntry `yaml:"backends" validate:"required,min=1,dive"`
	// Dispatch tunes health tracking, retry, and backoff. Omitted fields
	// take defaults.
	Dispatch DispatchConfig `yaml:"dispatch"`
	// Retrieval tunes document chunking and snippet selection.
	Retrieval RetrievalConfig `yaml:"retrieval"`
}

// BackendEntry describes one generation backend. Credentials are
// resolved from the environment at load time, never stored in the file.
type BackendEntry struct {
	// ID uniquely identifies the backend in logs and health reports.
	ID string `yaml:"id" validate:"required,min=1,max=100"`
	// Provider selects the transport implementation.
	Provider string `yaml:"provider" validate:"required,oneof=openai anthropic google"`
	// APIKeyEnv names the environment variable holding the credential.
	APIKeyEnv string `yaml:"api_key_env" validate:"required"`
	// Model is the model identifier sent on every request.
	Model string `yaml:"model" validate:"required"`
	// BaseURL overrides the provider's default endpoint for
	// OpenAI-compatible services.
	BaseURL string `yaml:"base_url" validate:"omitempty,url"`
	// Shape selects the request encoding; defaults to messages.
	Shape string `yaml:"shape" validate:"omitempty,oneof=messages prompt"`
	// Priority ranks the backend; lower values are tried first.
	Priority int `yaml:"priority" validate:"min=0,max=1000"`
	// TimeoutSeconds bounds each call's wall-clock time.
	TimeoutSeconds int `yaml:"timeout_seconds" validate:"omitempty,min=1,max=600"`
	// RequestsPerSecond enables client-side pacing when > 0.
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"omitempty,min=0"`
	// Burst is the pacing burst size.
	Burst int `yaml:"burst" validate:"omitempty,min=1,max=100"`
}

// DispatchConfig mirrors the dispatch policy in file form. Zero values
// select the compiled defaults.
type DispatchConfig struct {
	CooldownSeconds  int     `yaml:"cooldown_seconds" validate:"omitempty,min=1,max=3600"`
	DisableThreshold int     `yaml:"disable_threshold" validate:"omitempty,min=1,max=100"`
	MaxAttempts      int     `yaml:"max_attempts" validate:"omitempty,min=1,max=10"`
	BaseDelaySeconds int     `yaml:"base_delay_seconds" validate:"omitempty,min=1,max=60"`
	MaxDelaySeconds  int     `yaml:"max_delay_seconds" validate:"omitempty,min=1,max=600"`
	JitterFraction   float64 `yaml:"jitter_fraction" validate:"omitempty,min=0,max=1"`
	RaceCandidates   int     `yaml:"race_candidates" validate:"omitempty,min=0,max=10"`
	MaxTokens        int     `yaml:"max_tokens" validate:"omitempty,min=1,max=100000"`
	Temperature      float64 `yaml:"temperature" validate:"omitempty,min=0,max=2"`
	TopP             float64 `yaml:"top_p" validate:"omitempty,min=0,max=1"`
}

// RetrievalConfig tunes the keyword retriever.
type RetrievalConfig struct {
	// SnippetLimit is how many ranked snippets a query retrieves.
	SnippetLimit int `yaml:"snippet_limit" validate:"omitempty,min=1,max=50"`
	// MinChunkChars merges short document paragraphs into larger chunks.
	MinChunkChars int `yaml:"min_chunk_chars" validate:"omitempty,min=1,max=10000"`
}

// DefaultSnippetLimit matches the prompt builder's snippet capacity.
const DefaultSnippetLimit = 5

// DefaultMinChunkChars is the default merge threshold for short chunks.
const DefaultMinChunkChars = 200

// LoadConfig reads, parses, and validates a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses and validates raw YAML configuration.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// BuildBackends converts config entries into backend configurations,
// resolving credentials from the environment. Entries whose variable is
// unset produce an empty key and are excluded by the registry at
// construction.
func (c *Config) BuildBackends() []llm.BackendConfig {
	backends := make([]llm.BackendConfig, 0, len(c.Backends))
	for _, e := range c.Backends {
		backends = append(backends, llm.BackendConfig{
			ID:                e.ID,
			Provider:          e.Provider,
			APIKey:            os.Getenv(e.APIKeyEnv),
			Model:             e.Model,
			BaseURL:           e.BaseURL,
			Shape:             llm.RequestShape(e.Shape),
			Timeout:           time.Duration(e.TimeoutSeconds) * time.Second,
			Priority:          e.Priority,
			RequestsPerSecond: e.RequestsPerSecond,
			Burst:             e.Burst,
		})
	}
	return backends
}

// BuildPolicy converts the dispatch section into a policy object.
// Omitted fields stay zero and take defaults inside the engine.
func (c *Config) BuildPolicy() llm.DispatchPolicy {
	d := c.Dispatch
	return llm.DispatchPolicy{
		CooldownWindow:   time.Duration(d.CooldownSeconds) * time.Second,
		DisableThreshold: d.DisableThreshold,
		MaxAttempts:      d.MaxAttempts,
		BaseDelay:        time.Duration(d.BaseDelaySeconds) * time.Second,
		MaxDelay:         time.Duration(d.MaxDelaySeconds) * time.Second,
		JitterFraction:   d.JitterFraction,
		RaceCandidates:   d.RaceCandidates,
		Profile: llm.RequestOptions{
			MaxTokens:   d.MaxTokens,
			Temperature: d.Temperature,
			TopP:        d.TopP,
		},
	}
}

// SnippetLimit returns the configured snippet limit or the default.
func (c *Config) SnippetLimit() int {
	if c.Retrieval.SnippetLimit > 0 {
		return c.Retrieval.SnippetLimit
	}
	return DefaultSnippetLimit
}

// MinChunkChars returns the configured chunk merge threshold or the
// default.
func (c *Config) MinChunkChars() int {
	if c.Retrieval.MinChunkChars > 0 {
		return c.Retrieval.MinChunkChars
	}
	return DefaultMinChunkChars
}
