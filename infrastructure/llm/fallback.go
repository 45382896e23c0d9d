package llm

import (
	"errors"
	"fmt"

	"github.com/ahrav/go-tribunal/internal/domain"
)

// Fallback synthesis limits.
const (
	// MaxFallbackClauses is the number of snippets surfaced as referenced
	// clauses when every backend is exhausted.
	MaxFallbackClauses = 3
	// MaxFallbackClauseChars caps each fallback clause excerpt.
	MaxFallbackClauseChars = 300
)

// SynthesizeFallback builds a grounded Uncertain decision after every
// candidate is exhausted. The referenced clauses come straight from the
// top retrieved snippets, independent of any backend, so the caller
// still receives document content under a total outage. The answer
// template depends on whether the terminal failure was a rate-limit
// condition, decided from the typed error rather than message text. This
// path never fails; it is the system's guaranteed terminal branch.
func SynthesizeFallback(snippets []domain.Snippet, terminal error) *domain.DecisionObject {
	if len(snippets) > MaxFallbackClauses {
		snippets = snippets[:MaxFallbackClauses]
	}

	clauses := make([]domain.ReferencedClause, 0, len(snippets))
	for i, s := range snippets {
		sourceID := s.SourceID
		if sourceID == "" {
			sourceID = fmt.Sprintf("Section %d", i+1)
		}
		text := s.Text
		if len([]rune(text)) > MaxFallbackClauseChars {
			text = truncateRunes(text, MaxFallbackClauseChars) + "..."
		}
		clauses = append(clauses, domain.ReferencedClause{
			ClauseID:  sourceID,
			Text:      text,
			Reasoning: fmt.Sprintf("Relevant content with similarity score: %.3f", s.RelevanceScore),
		})
	}

	directAnswer := "A system error occurred - here's what I found in your document"
	additionalInfo := "A technical error occurred, but the most relevant sections from your document are shown above."
	if isRateLimitFailure(terminal) {
		directAnswer = "All generation backends are rate limited - here's what I found in your document"
		additionalInfo = "All generation backends are experiencing high demand. The relevant document sections are shown above. Please try again in a few minutes."
	}
	if len(clauses) == 0 {
		directAnswer = "I'm unable to process your question due to a system error."
	}

	return &domain.DecisionObject{
		DirectAnswer: directAnswer,
		Decision:     domain.DecisionUncertain,
		Justification: fmt.Sprintf(
			"System error prevented backend analysis: %v. However, relevant document sections have been identified by similarity matching.",
			terminal),
		ReferencedClauses: clauses,
		AdditionalInfo:    additionalInfo,
	}
}

// EmptyContextDecision is the canned short-circuit response for a request
// arriving with no context snippets. No backend is contacted.
func EmptyContextDecision() *domain.DecisionObject {
	return &domain.DecisionObject{
		DirectAnswer:      "I couldn't find relevant information in the document to answer your question.",
		Decision:          domain.DecisionUncertain,
		Justification:     "No relevant information found in the document to answer this query.",
		ReferencedClauses: []domain.ReferencedClause{},
		AdditionalInfo:    "Please ensure your question is related to the content of the uploaded document.",
	}
}

// isRateLimitFailure reports whether the terminal dispatch failure was an
// explicit rate-limit signal.
func isRateLimitFailure(err error) bool {
	var be *BackendError
	return errors.As(err, &be) && be.IsRateLimit()
}
