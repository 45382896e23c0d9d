package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIDefaultModel is used when a backend omits an explicit model.
const OpenAIDefaultModel = "gpt-4o-mini"

func init() {
	RegisterTransportFactory("openai", newOpenAITransport)
}

// openAITransport implements Transport over the OpenAI chat and legacy
// completion APIs. With a BaseURL override it also serves any
// OpenAI-compatible service (Groq, Together, Fireworks), which is how
// most of the registry's backends are reached.
type openAITransport struct {
	client  *openai.Client
	backend string
	model   string
	shape   RequestShape

	errorClassifier *ErrorClassifier
}

func newOpenAITransport(cfg BackendConfig) (Transport, error) {
	if cfg.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	model := cfg.Model
	if model == "" {
		model = OpenAIDefaultModel
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)

	if cfg.BaseURL != "" {
		validatedURL, err := validateBaseURL(cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid BaseURL: %w", err)
		}
		clientConfig.BaseURL = validatedURL
	}

	clientConfig.HTTPClient = &http.Client{Timeout: cfg.timeout()}

	return &openAITransport{
		client:          openai.NewClientWithConfig(clientConfig),
		backend:         cfg.ID,
		model:           model,
		shape:           cfg.shape(),
		errorClassifier: &ErrorClassifier{Backend: cfg.ID},
	}, nil
}

func (t *openAITransport) Model() string { return t.model }

// Generate sends the prompt using the backend's configured request shape
// and returns the raw response text.
func (t *openAITransport) Generate(ctx context.Context, prompt string, opts RequestOptions) (string, error) {
	if t.shape == ShapePrompt {
		return t.generateCompletion(ctx, prompt, opts)
	}
	return t.generateChat(ctx, prompt, opts)
}

func (t *openAITransport) generateChat(ctx context.Context, prompt string, opts RequestOptions) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: t.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   opts.MaxTokens,
		Temperature: float32(opts.Temperature),
		TopP:        float32(opts.TopP),
	}

	resp, err := t.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", t.handleError(err)
	}
	if len(resp.Choices) == 0 {
		return "", NewBackendError(t.backend, ErrorTypeServer, 0,
			"no response choices returned", ErrNoResponseChoice)
	}
	return resp.Choices[0].Message.Content, nil
}

func (t *openAITransport) generateCompletion(ctx context.Context, prompt string, opts RequestOptions) (string, error) {
	req := openai.CompletionRequest{
		Model:       t.model,
		Prompt:      prompt,
		MaxTokens:   opts.MaxTokens,
		Temperature: float32(opts.Temperature),
		TopP:        float32(opts.TopP),
	}

	resp, err := t.client.CreateCompletion(ctx, req)
	if err != nil {
		return "", t.handleError(err)
	}
	if len(resp.Choices) == 0 {
		return "", NewBackendError(t.backend, ErrorTypeServer, 0,
			"no response choices returned", ErrNoResponseChoice)
	}
	return resp.Choices[0].Text, nil
}

// handleError classifies SDK errors into BackendError categories at the
// call site, where the real status code is known.
func (t *openAITransport) handleError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return t.errorClassifier.ClassifyContextError(err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		message := apiErr.Message
		if message == "" {
			message = "unknown error"
		}
		return t.errorClassifier.ClassifyHTTPError(apiErr.HTTPStatusCode, message, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return t.errorClassifier.ClassifyHTTPError(reqErr.HTTPStatusCode, reqErr.Error(), err)
	}

	return NewBackendError(t.backend, ErrorTypeNetwork, 0, "request failed", err)
}
