// Package retrieval provides context retrievers that rank document
// chunks against a query. The keyword retriever is the in-process
// default; anything satisfying ports.ContextRetriever (a vector store,
// a search service) can replace it.
package retrieval

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"

	"github.com/ahrav/go-tribunal/internal/domain"
	"github.com/ahrav/go-tribunal/internal/ports"
)

// foldCaser is a package-level Unicode case folder for performance.
var foldCaser = cases.Fold()

// fuzzyThreshold is the minimum normalized similarity for two terms to
// count as a fuzzy match.
const fuzzyThreshold = 0.8

// Chunk is one indexed span of a source document.
type Chunk struct {
	// ID labels the chunk in referenced clauses and health output.
	ID string
	// Text is the chunk's content.
	Text string
}

var _ ports.ContextRetriever = (*KeywordRetriever)(nil)

// KeywordRetriever ranks chunks by fuzzy keyword overlap with the query.
// Scoring is deterministic: each query term contributes its best
// similarity against the chunk's terms, normalized by query length, so
// scores land in [0, 1] and identical inputs always rank identically.
type KeywordRetriever struct {
	chunks []Chunk
}

// NewKeywordRetriever creates a retriever over a fixed chunk set.
func NewKeywordRetriever(chunks []Chunk) *KeywordRetriever {
	return &KeywordRetriever{chunks: chunks}
}

// Retrieve returns the top limit chunks ranked by relevance to the
// query. Chunks scoring zero are excluded entirely; an empty result is
// legal and triggers the caller's empty-context handling.
func (r *KeywordRetriever) Retrieve(ctx context.Context, query string, limit int) ([]domain.Snippet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	queryTerms := tokenize(query)
	if len(queryTerms) == 0 || limit <= 0 {
		return nil, nil
	}

	scored := make([]domain.Snippet, 0, len(r.chunks))
	for _, chunk := range r.chunks {
		score := scoreChunk(queryTerms, tokenize(chunk.Text))
		if score <= 0 {
			continue
		}
		scored = append(scored, domain.Snippet{
			Text:           chunk.Text,
			SourceID:       chunk.ID,
			RelevanceScore: score,
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].RelevanceScore > scored[j].RelevanceScore
	})

	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

// scoreChunk averages each query term's best similarity against the
// chunk's terms.
func scoreChunk(queryTerms, chunkTerms []string) float64 {
	if len(chunkTerms) == 0 {
		return 0
	}

	var total float64
	for _, qt := range queryTerms {
		best := 0.0
		for _, ct := range chunkTerms {
			if s := termSimilarity(qt, ct); s > best {
				best = s
				if best == 1.0 {
					break
				}
			}
		}
		if best >= fuzzyThreshold {
			total += best
		}
	}
	return total / float64(len(queryTerms))
}

// termSimilarity computes normalized Levenshtein similarity between two
// case-folded terms. The distance operates on runes, so the
// normalization uses rune counts.
func termSimilarity(a, b string) float64 {
	if a == b {
		return 1.0
	}

	distance := levenshtein.ComputeDistance(a, b)
	maxLen := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > maxLen {
		maxLen = n
	}
	if maxLen == 0 {
		return 1.0
	}

	similarity := 1.0 - float64(distance)/float64(maxLen)
	if similarity < 0 {
		similarity = 0
	}
	return similarity
}

// tokenize splits text into case-folded alphanumeric terms, dropping
// terms too short to be discriminating.
func tokenize(text string) []string {
	folded := foldCaser.String(text)
	fields := strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if utf8.RuneCountInString(f) >= 3 {
			terms = append(terms, f)
		}
	}
	return terms
}

// SplitDocument chunks a document into indexed spans on blank-line
// boundaries, merging runs shorter than minChunkChars with the next
// span. IDs follow the "Section N" convention used by prompt assembly.
func SplitDocument(text string, minChunkChars int) []Chunk {
	paragraphs := strings.Split(text, "\n\n")

	var chunks []Chunk
	var pending strings.Builder
	flush := func() {
		body := strings.TrimSpace(pending.String())
		pending.Reset()
		if body == "" {
			return
		}
		chunks = append(chunks, Chunk{
			ID:   sectionID(len(chunks) + 1),
			Text: body,
		})
	}

	for _, p := range paragraphs {
		if strings.TrimSpace(p) == "" {
			continue
		}
		if pending.Len() > 0 {
			pending.WriteString("\n\n")
		}
		pending.WriteString(strings.TrimSpace(p))
		if pending.Len() >= minChunkChars {
			flush()
		}
	}
	flush()

	return chunks
}

func sectionID(n int) string {
	return "Section " + strconv.Itoa(n)
}
