package llm

import (
	"encoding/json"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ahrav/go-tribunal/internal/domain"
)

// requiredDecisionFields are the top-level keys every backend payload
// must carry.
var requiredDecisionFields = []string{
	"direct_answer", "decision", "justification", "referenced_clauses", "additional_info",
}

// requiredClauseFields are the keys every referenced clause must carry.
var requiredClauseFields = []string{"clause_id", "text", "reasoning"}

// wireDecision is the typed form a payload is checked against once field
// presence has been established. Only the decision enum needs a tag;
// presence is validated separately because empty string values are legal.
type wireDecision struct {
	DirectAnswer      string                    `json:"direct_answer"`
	Decision          string                    `json:"decision" validate:"oneof=Approved Denied Uncertain"`
	Justification     string                    `json:"justification"`
	ReferencedClauses []domain.ReferencedClause `json:"referenced_clauses"`
	AdditionalInfo    string                    `json:"additional_info"`
}

// ResponseValidator parses and structurally validates raw backend output
// into a DecisionObject. Parse and schema failures are reported as
// ordinary BackendErrors, identical in effect to a transport failure;
// they never escape to the caller.
type ResponseValidator struct {
	validate *validator.Validate
}

// NewResponseValidator creates a validator ready for concurrent use.
func NewResponseValidator() *ResponseValidator {
	return &ResponseValidator{validate: validator.New()}
}

// Validate turns one backend's raw response text into a DecisionObject.
// The pipeline tolerates code fences and surrounding prose: the payload
// is the substring bounded by the first '{' and the last '}'. A missing
// payload is a parse failure; anything structurally wrong after that is
// a schema failure. A validated object is returned unmodified.
func (rv *ResponseValidator) Validate(backend, raw string) (*domain.DecisionObject, error) {
	payload, ok := extractPayload(raw)
	if !ok {
		return nil, NewBackendError(backend, ErrorTypeParse, 0,
			"no JSON object found in response", nil)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &fields); err != nil {
		return nil, NewBackendError(backend, ErrorTypeSchema, 0,
			"response payload is not a JSON object", err)
	}

	for _, key := range requiredDecisionFields {
		if _, present := fields[key]; !present {
			return nil, NewBackendError(backend, ErrorTypeSchema, 0,
				"missing required field "+key, nil)
		}
	}

	// Unmarshal treats a JSON null as a no-op on the target slice, so it
	// must be rejected explicitly; null is not a sequence.
	clausesRaw := strings.TrimSpace(string(fields["referenced_clauses"]))
	if clausesRaw == "null" {
		return nil, NewBackendError(backend, ErrorTypeSchema, 0,
			"referenced_clauses is not a sequence of objects", nil)
	}
	var clauses []map[string]json.RawMessage
	if err := json.Unmarshal(fields["referenced_clauses"], &clauses); err != nil {
		return nil, NewBackendError(backend, ErrorTypeSchema, 0,
			"referenced_clauses is not a sequence of objects", err)
	}
	for _, clause := range clauses {
		for _, key := range requiredClauseFields {
			if _, present := clause[key]; !present {
				return nil, NewBackendError(backend, ErrorTypeSchema, 0,
					"referenced clause missing field "+key, nil)
			}
		}
	}

	var wire wireDecision
	if err := json.Unmarshal([]byte(payload), &wire); err != nil {
		return nil, NewBackendError(backend, ErrorTypeSchema, 0,
			"response fields have wrong types", err)
	}
	if err := rv.validate.Struct(wire); err != nil {
		return nil, NewBackendError(backend, ErrorTypeSchema, 0,
			"decision is not one of Approved, Denied, Uncertain", err)
	}

	return &domain.DecisionObject{
		DirectAnswer:      wire.DirectAnswer,
		Decision:          domain.Decision(wire.Decision),
		Justification:     wire.Justification,
		ReferencedClauses: wire.ReferencedClauses,
		AdditionalInfo:    wire.AdditionalInfo,
	}, nil
}

// extractPayload strips optional markdown fences and returns the
// substring bounded by the first '{' and the last '}'. The second return
// is false when no such bounds exist.
func extractPayload(raw string) (string, bool) {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```json") {
		s = s[len("```json"):]
	} else if strings.HasPrefix(s, "```") {
		s = s[len("```"):]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end < start {
		return "", false
	}
	return s[start : end+1], true
}
