package llm

import (
	"context"
	"errors"
	"fmt"
	"math"

	"google.golang.org/api/googleapi"
	"google.golang.org/genai"
)

// GoogleDefaultModel is used when a backend omits an explicit model.
const GoogleDefaultModel = "gemini-2.0-flash-exp"

func init() {
	RegisterTransportFactory("google", newGoogleTransport)
}

// googleTransport implements Transport over Google's Gemini API.
type googleTransport struct {
	client  *genai.Client
	backend string
	model   string

	errorClassifier *ErrorClassifier
}

func newGoogleTransport(cfg BackendConfig) (Transport, error) {
	if cfg.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	model := cfg.Model
	if model == "" {
		model = GoogleDefaultModel
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Google client: %w", err)
	}

	return &googleTransport{
		client:          client,
		backend:         cfg.ID,
		model:           model,
		errorClassifier: &ErrorClassifier{Backend: cfg.ID},
	}, nil
}

func (t *googleTransport) Model() string { return t.model }

func (t *googleTransport) Generate(ctx context.Context, prompt string, opts RequestOptions) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(opts.Temperature)),
		TopP:        genai.Ptr(float32(opts.TopP)),
	}
	if opts.MaxTokens > 0 {
		if opts.MaxTokens > math.MaxInt32 {
			config.MaxOutputTokens = math.MaxInt32
		} else {
			config.MaxOutputTokens = int32(opts.MaxTokens)
		}
	}

	resp, err := t.client.Models.GenerateContent(ctx, t.model, contents, config)
	if err != nil {
		return "", t.handleError(err)
	}

	content := resp.Text()
	if content == "" {
		return "", NewBackendError(t.backend, ErrorTypeServer, 0,
			"empty response body", ErrEmptyResponse)
	}
	return content, nil
}

func (t *googleTransport) handleError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return t.errorClassifier.ClassifyContextError(err)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		message := apiErr.Message
		if message == "" && len(apiErr.Errors) > 0 {
			message = apiErr.Errors[0].Message
		}
		return t.errorClassifier.ClassifyHTTPError(apiErr.Code, message, err)
	}

	return NewBackendError(t.backend, ErrorTypeNetwork, 0, "request failed", err)
}
