// Package domain defines the core data types exchanged between the
// dispatch engine and its callers. These types carry no behavior beyond
// basic validation helpers; all state-machine logic lives in the
// infrastructure layer.
package domain

import "time"

// Decision is the closed set of outcomes a backend may return for an
// analyzed query. Any other value fails structural validation.
type Decision string

const (
	// DecisionApproved indicates the analyzed documents clearly support
	// the request or claim.
	DecisionApproved Decision = "Approved"

	// DecisionDenied indicates the analyzed documents explicitly prohibit
	// or exclude the request or claim.
	DecisionDenied Decision = "Denied"

	// DecisionUncertain indicates the documents are ambiguous, lack
	// specific coverage details, or the system could not complete the
	// analysis. It is also the decision of every fallback response.
	DecisionUncertain Decision = "Uncertain"
)

// Valid reports whether d is one of the three recognized decisions.
func (d Decision) Valid() bool {
	switch d {
	case DecisionApproved, DecisionDenied, DecisionUncertain:
		return true
	}
	return false
}

// ReferencedClause ties a decision back to a specific passage of the
// analyzed document. Every clause must carry all three fields.
type ReferencedClause struct {
	// ClauseID is the section identifier the passage was taken from.
	ClauseID string `json:"clause_id"`

	// Text is the relevant excerpt from the clause.
	Text string `json:"text"`

	// Reasoning explains why this clause is relevant to the decision.
	Reasoning string `json:"reasoning"`
}

// DecisionObject is the validated structured answer returned to the
// caller. Once a backend response passes structural validation the
// object is returned unmodified.
type DecisionObject struct {
	// DirectAnswer is a concise, conversational answer to the query.
	DirectAnswer string `json:"direct_answer"`

	// Decision is the categorical outcome of the analysis.
	Decision Decision `json:"decision"`

	// Justification states the reasoning behind the decision.
	Justification string `json:"justification"`

	// ReferencedClauses lists the document passages the decision rests
	// on, in the order the backend (or fallback synthesizer) ranked them.
	ReferencedClauses []ReferencedClause `json:"referenced_clauses"`

	// AdditionalInfo carries conditions, limitations, or exceptions the
	// caller should know about.
	AdditionalInfo string `json:"additional_info"`
}

// Snippet is a retrieved context fragment supplied by a retriever.
// The dispatcher consumes at most the first five for prompt construction
// and at most the first three on the fallback path.
type Snippet struct {
	// Text is the fragment content.
	Text string `json:"text"`

	// SourceID identifies the document section the fragment came from.
	SourceID string `json:"source_id"`

	// RelevanceScore is the retriever-assigned ranking score.
	RelevanceScore float64 `json:"relevance_score"`
}

// BackendStatus is one entry of a health report. It is a point-in-time
// snapshot; two reports taken with no intervening attempts are identical.
type BackendStatus struct {
	// Available is true when the backend is neither rate limited nor
	// disabled and would appear in the next candidate list.
	Available bool `json:"available"`

	// RateLimited is true while the backend's cooldown window is active.
	RateLimited bool `json:"rate_limited"`

	// Disabled is true once consecutive failures reach the disablement
	// threshold.
	Disabled bool `json:"disabled"`

	// ConsecutiveFailures is the current failure streak.
	ConsecutiveFailures int `json:"consecutive_failures"`

	// Model is the model identifier the backend is configured with.
	Model string `json:"model"`

	// LastFailure is the time of the most recent marked failure.
	// It is omitted when the backend has never failed.
	LastFailure *time.Time `json:"last_failure,omitempty"`
}
