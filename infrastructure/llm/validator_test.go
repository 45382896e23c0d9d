package llm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-tribunal/internal/domain"
)

const validPayload = `{
	"direct_answer": "Yes, knee surgery is covered after the waiting period.",
	"decision": "Approved",
	"justification": "Section 1 lists knee surgery as a covered procedure.",
	"referenced_clauses": [
		{
			"clause_id": "Section 1",
			"text": "This policy covers knee surgery.",
			"reasoning": "Directly addresses the queried procedure."
		}
	],
	"additional_info": "A 90 day waiting period applies."
}`

func TestResponseValidator_AcceptsCleanJSON(t *testing.T) {
	rv := NewResponseValidator()

	decision, err := rv.Validate("primary", validPayload)
	require.NoError(t, err)
	assert.Equal(t, domain.DecisionApproved, decision.Decision)
	assert.Equal(t, "Yes, knee surgery is covered after the waiting period.", decision.DirectAnswer)
	require.Len(t, decision.ReferencedClauses, 1)
	assert.Equal(t, "Section 1", decision.ReferencedClauses[0].ClauseID)
}

func TestResponseValidator_ToleratesWrapping(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{
			name: "json code fence",
			raw:  "```json\n" + validPayload + "\n```",
		},
		{
			name: "bare code fence",
			raw:  "```\n" + validPayload + "\n```",
		},
		{
			name: "surrounding prose",
			raw:  "Here is my analysis:\n" + validPayload + "\nLet me know if you need more.",
		},
		{
			name: "leading and trailing whitespace",
			raw:  "\n\n  " + validPayload + "  \n",
		},
	}

	rv := NewResponseValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision, err := rv.Validate("primary", tt.raw)
			require.NoError(t, err, "wrapped payload should still validate")
			assert.Equal(t, domain.DecisionApproved, decision.Decision)
		})
	}
}

func TestResponseValidator_Failures(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantType ErrorType
	}{
		{
			name:     "no braces at all",
			raw:      "I could not produce a structured answer.",
			wantType: ErrorTypeParse,
		},
		{
			name:     "empty response",
			raw:      "",
			wantType: ErrorTypeParse,
		},
		{
			name:     "payload is not valid JSON",
			raw:      `{not valid json}`,
			wantType: ErrorTypeSchema,
		},
		{
			name:     "missing decision field",
			raw:      `{"direct_answer": "a", "justification": "b", "referenced_clauses": [], "additional_info": "c"}`,
			wantType: ErrorTypeSchema,
		},
		{
			name:     "invalid decision value",
			raw:      `{"direct_answer": "a", "decision": "Maybe", "justification": "b", "referenced_clauses": [], "additional_info": "c"}`,
			wantType: ErrorTypeSchema,
		},
		{
			name:     "clause missing reasoning",
			raw:      `{"direct_answer": "a", "decision": "Denied", "justification": "b", "referenced_clauses": [{"clause_id": "c1", "text": "t"}], "additional_info": "c"}`,
			wantType: ErrorTypeSchema,
		},
		{
			name:     "referenced_clauses not a list",
			raw:      `{"direct_answer": "a", "decision": "Denied", "justification": "b", "referenced_clauses": "none", "additional_info": "c"}`,
			wantType: ErrorTypeSchema,
		},
		{
			name:     "referenced_clauses is null",
			raw:      `{"direct_answer": "a", "decision": "Approved", "justification": "b", "referenced_clauses": null, "additional_info": "c"}`,
			wantType: ErrorTypeSchema,
		},
	}

	rv := NewResponseValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := rv.Validate("primary", tt.raw)
			require.Error(t, err)

			var be *BackendError
			require.True(t, errors.As(err, &be), "failure should be a typed BackendError")
			assert.Equal(t, tt.wantType, be.Type)
			assert.Equal(t, "primary", be.Backend)
			assert.True(t, be.Retryable(),
				"parse and schema failures count as ordinary retryable failures")
		})
	}
}

func TestResponseValidator_EmptyStringValuesAreLegal(t *testing.T) {
	raw := `{"direct_answer": "", "decision": "Uncertain", "justification": "", "referenced_clauses": [], "additional_info": ""}`

	rv := NewResponseValidator()
	decision, err := rv.Validate("primary", raw)
	require.NoError(t, err, "presence is required, non-emptiness is not")
	assert.Equal(t, domain.DecisionUncertain, decision.Decision)
	assert.Empty(t, decision.ReferencedClauses)
}

func TestResponseValidator_ReturnsObjectUnmodified(t *testing.T) {
	raw := `{"direct_answer": "  spaced  ", "decision": "Denied", "justification": "verbatim", "referenced_clauses": [], "additional_info": "unchanged"}`

	rv := NewResponseValidator()
	decision, err := rv.Validate("primary", raw)
	require.NoError(t, err)
	assert.Equal(t, "  spaced  ", decision.DirectAnswer,
		"validated content must pass through without normalization")
}

func TestExtractPayload(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		want   string
		wantOK bool
	}{
		{
			name:   "bounded by braces",
			raw:    `prefix {"a": 1} suffix`,
			want:   `{"a": 1}`,
			wantOK: true,
		},
		{
			name:   "nested objects keep outer bounds",
			raw:    `{"a": {"b": 2}}`,
			want:   `{"a": {"b": 2}}`,
			wantOK: true,
		},
		{
			name:   "no opening brace",
			raw:    `just text}`,
			wantOK: false,
		},
		{
			name:   "closing before opening",
			raw:    `} {`,
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := extractPayload(tt.raw)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
