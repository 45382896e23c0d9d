package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicDefaultModel is used when a backend omits an explicit model.
const AnthropicDefaultModel = "claude-3-5-sonnet-20241022"

func init() {
	RegisterTransportFactory("anthropic", newAnthropicTransport)
}

// anthropicTransport implements Transport over Anthropic's Messages API.
type anthropicTransport struct {
	client  anthropic.Client
	backend string
	model   string

	errorClassifier *ErrorClassifier
}

func newAnthropicTransport(cfg BackendConfig) (Transport, error) {
	if cfg.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	model := cfg.Model
	if model == "" {
		model = AnthropicDefaultModel
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		validatedURL, err := validateBaseURL(cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid BaseURL: %w", err)
		}
		opts = append(opts, option.WithBaseURL(validatedURL))
	}

	return &anthropicTransport{
		client:          anthropic.NewClient(opts...),
		backend:         cfg.ID,
		model:           model,
		errorClassifier: &ErrorClassifier{Backend: cfg.ID},
	}, nil
}

func (t *anthropicTransport) Model() string { return t.model }

func (t *anthropicTransport) Generate(ctx context.Context, prompt string, opts RequestOptions) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(t.model),
		MaxTokens: int64(opts.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
		Temperature: anthropic.Float(opts.Temperature),
		TopP:        anthropic.Float(opts.TopP),
	}

	message, err := t.client.Messages.New(ctx, params)
	if err != nil {
		return "", t.handleError(err)
	}

	var responseText strings.Builder
	for _, block := range message.Content {
		switch content := block.AsAny().(type) {
		case anthropic.TextBlock:
			responseText.WriteString(content.Text)
		}
	}

	response := responseText.String()
	if response == "" {
		return "", NewBackendError(t.backend, ErrorTypeServer, 0,
			"empty response body", ErrEmptyResponse)
	}
	return response, nil
}

func (t *anthropicTransport) handleError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return t.errorClassifier.ClassifyContextError(err)
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return t.errorClassifier.ClassifyHTTPError(apiErr.StatusCode, apiErr.Error(), err)
	}

	return NewBackendError(t.backend, ErrorTypeNetwork, 0, "request failed", err)
}
