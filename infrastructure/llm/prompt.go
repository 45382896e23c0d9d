package llm

import (
	"fmt"
	"strings"

	"github.com/ahrav/go-tribunal/internal/domain"
)

// Prompt construction limits.
const (
	// MaxPromptSnippets is the number of ranked snippets included in the
	// generation prompt.
	MaxPromptSnippets = 5
	// MaxSnippetChars caps each prompt snippet's length.
	MaxSnippetChars = 1000
)

// BuildReasoningPrompt assembles the document-analysis prompt from the
// query and the top ranked context snippets. Each snippet is truncated to
// MaxSnippetChars and labeled with its source identifier; the prompt
// states the JSON response contract the Response Validator later enforces.
func BuildReasoningPrompt(query string, snippets []domain.Snippet) string {
	if len(snippets) > MaxPromptSnippets {
		snippets = snippets[:MaxPromptSnippets]
	}

	var context strings.Builder
	for i, s := range snippets {
		sourceID := s.SourceID
		if sourceID == "" {
			sourceID = fmt.Sprintf("Section %d", i+1)
		}
		fmt.Fprintf(&context, "### %s\n%s\n\n", sourceID, truncateRunes(s.Text, MaxSnippetChars))
	}

	return fmt.Sprintf(`You are an expert document analysis assistant. Your task is to analyze documents and provide direct, concise responses to user queries.

## CONTEXT FROM DOCUMENT:
%s
## USER QUERY:
%s

## INSTRUCTIONS:
Analyze the provided document sections and answer the user's query. You must respond with a valid JSON object in exactly this format:

{
  "direct_answer": "A concise, direct answer to the user's question",
  "decision": "Approved" | "Denied" | "Uncertain",
  "justification": "Clear reasoning based on the document analysis",
  "referenced_clauses": [
    {
      "clause_id": "section identifier from document",
      "text": "relevant excerpt from the clause",
      "reasoning": "why this clause is relevant to the decision"
    }
  ],
  "additional_info": "Any additional relevant information, context, or conditions that the user should know about"
}

## DECISION CRITERIA:
- **Approved**: The document clearly supports the user's request/claim
- **Denied**: The document explicitly prohibits or excludes the request/claim
- **Uncertain**: The document is ambiguous, lacks specific coverage details, or requires additional information

## REQUIREMENTS:
1. The direct_answer should be conversational and directly address the user's question
2. Base your decision ONLY on the provided document sections
3. Quote relevant text excerpts in referenced_clauses
4. Provide clear reasoning for each referenced clause
5. If multiple clauses are relevant, include up to 3 most important ones
6. Be precise and factual in your justification
7. Include any relevant conditions, limitations, or exceptions in additional_info
8. Return ONLY the JSON object, no additional text

## RESPONSE:`, context.String(), query)
}

// truncateRunes shortens s to at most n runes, keeping multi-byte
// characters intact.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
