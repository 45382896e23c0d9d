package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorClassifier_ClassifyHTTPError(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		wantType   ErrorType
	}{
		{name: "unauthorized", statusCode: 401, wantType: ErrorTypeAuthentication},
		{name: "forbidden", statusCode: 403, wantType: ErrorTypeAuthentication},
		{name: "rate limited", statusCode: 429, wantType: ErrorTypeRateLimit},
		{name: "bad request", statusCode: 400, wantType: ErrorTypeBadRequest},
		{name: "not found", statusCode: 404, wantType: ErrorTypeNotFound},
		{name: "request timeout", statusCode: 408, wantType: ErrorTypeTimeout},
		{name: "internal error", statusCode: 500, wantType: ErrorTypeServer},
		{name: "bad gateway", statusCode: 502, wantType: ErrorTypeServer},
		{name: "service unavailable", statusCode: 503, wantType: ErrorTypeServer},
		{name: "other 4xx", statusCode: 418, wantType: ErrorTypeBadRequest},
		{name: "other 5xx", statusCode: 599, wantType: ErrorTypeServer},
		{name: "no status", statusCode: 0, wantType: ErrorTypeUnknown},
	}

	ec := &ErrorClassifier{Backend: "primary"}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ec.ClassifyHTTPError(tt.statusCode, "msg", errors.New("wire"))
			assert.Equal(t, tt.wantType, got.Type)
			assert.Equal(t, "primary", got.Backend)
			assert.Equal(t, tt.statusCode, got.StatusCode)
		})
	}
}

func TestErrorClassifier_ClassifyContextError(t *testing.T) {
	ec := &ErrorClassifier{Backend: "primary"}

	deadline := ec.ClassifyContextError(context.DeadlineExceeded)
	assert.Equal(t, ErrorTypeTimeout, deadline.Type)

	canceled := ec.ClassifyContextError(context.Canceled)
	assert.Equal(t, ErrorTypeNetwork, canceled.Type)

	other := ec.ClassifyContextError(errors.New("misc"))
	assert.Equal(t, ErrorTypeUnknown, other.Type)
}

func TestBackendError_Retryable(t *testing.T) {
	tests := []struct {
		errType   ErrorType
		retryable bool
	}{
		{ErrorTypeServer, true},
		{ErrorTypeNetwork, true},
		{ErrorTypeTimeout, true},
		{ErrorTypeParse, true},
		{ErrorTypeSchema, true},
		{ErrorTypeUnknown, true},
		{ErrorTypeRateLimit, false},
		{ErrorTypeAuthentication, false},
		{ErrorTypeBadRequest, false},
		{ErrorTypeNotFound, false},
	}

	for _, tt := range tests {
		err := NewBackendError("b", tt.errType, 0, "", nil)
		assert.Equal(t, tt.retryable, err.Retryable(),
			"unexpected retryability for type %v", tt.errType)
	}
}

func TestBackendError_UnwrapPreservesChain(t *testing.T) {
	root := errors.New("connection reset")
	be := NewBackendError("primary", ErrorTypeNetwork, 0, "request failed", root)
	wrapped := fmt.Errorf("all candidates exhausted: %w", be)

	assert.ErrorIs(t, wrapped, root)

	var got *BackendError
	require.True(t, errors.As(wrapped, &got),
		"the typed error must survive wrapping")
	assert.Equal(t, "primary", got.Backend)
}

func TestBackendError_ErrorString(t *testing.T) {
	be := NewBackendError("primary", ErrorTypeRateLimit, 429, "slow down", errors.New("wire"))

	msg := be.Error()
	assert.Contains(t, msg, "primary")
	assert.Contains(t, msg, "429")
	assert.Contains(t, msg, "rate_limit")
	assert.Contains(t, msg, "slow down")
}

func TestBackendError_IsRateLimit(t *testing.T) {
	assert.True(t, NewBackendError("b", ErrorTypeRateLimit, 429, "", nil).IsRateLimit())
	assert.False(t, NewBackendError("b", ErrorTypeServer, 500, "", nil).IsRateLimit())
}
