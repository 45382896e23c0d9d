package llm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDispatchPolicy_WithDefaults(t *testing.T) {
	got := DispatchPolicy{}.withDefaults()
	assert.Equal(t, DefaultCooldownWindow, got.CooldownWindow)
	assert.Equal(t, DefaultDisableThreshold, got.DisableThreshold)
	assert.Equal(t, DefaultMaxAttempts, got.MaxAttempts)
	assert.Equal(t, DefaultBaseDelay, got.BaseDelay)
	assert.Equal(t, DefaultMaxDelay, got.MaxDelay)
	assert.Equal(t, DefaultMaxTokens, got.Profile.MaxTokens)
	assert.Equal(t, DefaultTemperature, got.Profile.Temperature)
	assert.Equal(t, DefaultTopP, got.Profile.TopP)

	partial := DispatchPolicy{MaxAttempts: 5, BaseDelay: time.Second}.withDefaults()
	assert.Equal(t, 5, partial.MaxAttempts)
	assert.Equal(t, time.Second, partial.BaseDelay)
	assert.Equal(t, DefaultCooldownWindow, partial.CooldownWindow)
	assert.Equal(t, DefaultMaxDelay, partial.MaxDelay)
}

func TestDispatchPolicy_JitterFractionBounds(t *testing.T) {
	// Out-of-range values fall back; zero is a deliberate "no jitter".
	assert.Equal(t, DefaultJitterFraction, DispatchPolicy{JitterFraction: -0.5}.withDefaults().JitterFraction)
	assert.Equal(t, DefaultJitterFraction, DispatchPolicy{JitterFraction: 1.5}.withDefaults().JitterFraction)
	assert.Equal(t, 0.0, DispatchPolicy{}.withDefaults().JitterFraction)
	assert.Equal(t, 0.5, DispatchPolicy{JitterFraction: 0.5}.withDefaults().JitterFraction)
}

func TestBackendConfig_Defaults(t *testing.T) {
	var cfg BackendConfig
	assert.Equal(t, ShapeMessages, cfg.shape())
	assert.Equal(t, DefaultCallTimeout, cfg.timeout())

	cfg.Shape = ShapePrompt
	cfg.Timeout = 10 * time.Second
	assert.Equal(t, ShapePrompt, cfg.shape())
	assert.Equal(t, 10*time.Second, cfg.timeout())
}

func TestBackendConfig_HasUsableCredential(t *testing.T) {
	tests := []struct {
		name   string
		apiKey string
		want   bool
	}{
		{name: "real key", apiKey: "sk-abc", want: true},
		{name: "empty", apiKey: "", want: false},
		{name: "blank", apiKey: "  \t", want: false},
		{name: "template placeholder", apiKey: "your_openai_key", want: false},
		{name: "mixed case placeholder", apiKey: "Your_Key_Here", want: false},
		{name: "changeme", apiKey: "ChangeMe", want: false},
		{name: "key containing your later", apiKey: "abc_your_key", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := BackendConfig{APIKey: tt.apiKey}
			assert.Equal(t, tt.want, cfg.hasUsableCredential())
		})
	}
}

func TestValidateBaseURL(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		wantErr bool
	}{
		{name: "empty is default endpoint", baseURL: "", wantErr: false},
		{name: "https", baseURL: "https://api.groq.com/openai/v1", wantErr: false},
		{name: "http", baseURL: "http://localhost:8080/v1", wantErr: false},
		{name: "bad scheme", baseURL: "ftp://host/path", wantErr: true},
		{name: "no host", baseURL: "https://", wantErr: true},
		{name: "not a url", baseURL: "://broken", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := validateBaseURL(tt.baseURL)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
