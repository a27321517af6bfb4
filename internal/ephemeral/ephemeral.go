// Package ephemeral scores caller-supplied, per-request documents against a
// query (spec §4.E). The overlap-scoring half is grounded on the teacher
// pack's SimpleReranker term-overlap formula
// (_examples/fyrsmithlabs-contextd/internal/reranker/simple.go); the
// position-penalty and semantic-similarity halves follow spec §4.E exactly.
package ephemeral

import (
	"context"
	"sort"
	"strings"

	"github.com/aman-cerp/federated-retrieval/internal/retrieval"
)

// maxEmbedChars bounds how much of a document's text gets embedded for
// semantic similarity scoring (spec §4.E).
const maxEmbedChars = 1000

// Scorer scores ExternalDocs against a query (spec §4.E).
type Scorer struct {
	embedder retrieval.Embedder
}

// New constructs a Scorer. embedder may be nil, in which case semantic
// similarity is skipped for every document.
func New(embedder retrieval.Embedder) *Scorer {
	return &Scorer{embedder: embedder}
}

// Score implements score_external: queryVec may be nil when no semantic
// embedding is available for the request.
func (s *Scorer) Score(ctx context.Context, queryText string, queryVec retrieval.Embedding, docs []retrieval.ExternalDoc) []retrieval.ExternalHit {
	queryTokens := tokenSet(queryText)

	type scored struct {
		hit   retrieval.ExternalHit
		index int
	}
	results := make([]scored, len(docs))

	for i, doc := range docs {
		base := doc.Priority - 0.01*float64(i)

		var sim float64
		haveSim := false
		if queryVec != nil && s.embedder != nil {
			truncated := doc.Text
			if runes := []rune(truncated); len(runes) > maxEmbedChars {
				truncated = string(runes[:maxEmbedChars])
			}
			embedded, err := s.embedder.Embed(ctx, truncated)
			if err == nil {
				if normalized, ok := retrieval.Normalize(embedded); ok {
					sim = retrieval.Dot(queryVec, normalized)
					haveSim = true
				}
			}
			// embedding failure degrades this doc only to lexical-only scoring
		}

		var s1 float64
		if haveSim {
			s1 = 0.7*maxFloat(base, 0.1) + 0.3*sim
		} else {
			s1 = maxFloat(base, 0.1)
		}

		overlap := lexicalOverlap(queryTokens, doc.Text)
		score := clamp(0.8*s1+0.2*overlap, 0, 1)

		results[i] = scored{
			hit: retrieval.ExternalHit{
				SrcID:       doc.SrcID,
				Score:       score,
				TextOverlap: overlap,
				Priority:    doc.Priority,
				Meta:        doc.Meta,
			},
			index: i,
		}
	}

	sort.SliceStable(results, func(a, b int) bool {
		if results[a].hit.Score != results[b].hit.Score {
			return results[a].hit.Score > results[b].hit.Score
		}
		return results[a].index < results[b].index
	})

	out := make([]retrieval.ExternalHit, len(results))
	for rank, r := range results {
		h := r.hit
		h.RankInSource = rank + 1
		out[rank] = h
	}
	return out
}

func tokenSet(text string) map[string]struct{} {
	tokens := strings.Fields(strings.ToLower(text))
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

// lexicalOverlap returns |Q ∩ D| / |Q|, 0 if Q is empty.
func lexicalOverlap(queryTokens map[string]struct{}, docText string) float64 {
	if len(queryTokens) == 0 {
		return 0
	}
	docTokens := tokenSet(docText)
	overlap := 0
	for t := range queryTokens {
		if _, ok := docTokens[t]; ok {
			overlap++
		}
	}
	return float64(overlap) / float64(len(queryTokens))
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
