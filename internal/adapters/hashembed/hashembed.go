// Package hashembed provides a deterministic, dependency-free Embedder
// adapter, adapted from the teacher's StaticEmbedder768
// (internal/embed/static768.go): a hash-bucketed bag-of-tokens-and-trigrams
// vector. It exists so the engine has a concrete, zero-network Embedder to
// exercise in tests and small deployments without committing to one
// embedding provider.
package hashembed

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"

	"github.com/aman-cerp/federated-retrieval/internal/retrieval"
)

const (
	tokenWeight = 0.7
	ngramWeight = 0.3
	ngramSize   = 3
)

// Embedder is a stateless, deterministic hash-based Embedder.
type Embedder struct {
	dimension int
}

var _ retrieval.Embedder = (*Embedder)(nil)

// New constructs an Embedder producing vectors of the given dimension.
func New(dimension int) *Embedder {
	if dimension <= 0 {
		dimension = 768
	}
	return &Embedder{dimension: dimension}
}

// Embed returns a unit-norm embedding for text. Never errors: empty input
// yields the zero vector's normalization failure is handled by callers via
// retrieval.Normalize, consistent with spec §3's zero-vector rejection.
func (e *Embedder) Embed(_ context.Context, text string) (retrieval.Embedding, error) {
	trimmed := strings.TrimSpace(text)
	vec := make(retrieval.Embedding, e.dimension)
	if trimmed == "" {
		return vec, nil
	}

	for _, tok := range tokenize(trimmed) {
		vec[hashToIndex(tok, e.dimension)] += tokenWeight
	}
	for _, gram := range ngrams(normalizeForNgrams(trimmed), ngramSize) {
		vec[hashToIndex(gram, e.dimension)] += ngramWeight
	}

	normalized, ok := retrieval.Normalize(vec)
	if !ok {
		return vec, nil
	}
	return normalized, nil
}

func tokenize(text string) []string {
	var tokens []string
	for _, word := range strings.Fields(text) {
		for _, sub := range splitCodeToken(word) {
			if lower := strings.ToLower(sub); lower != "" {
				tokens = append(tokens, lower)
			}
		}
	}
	return tokens
}

func splitCodeToken(token string) []string {
	if strings.Contains(token, "_") {
		var out []string
		for _, part := range strings.Split(token, "_") {
			if part != "" {
				out = append(out, splitCamelCase(part)...)
			}
		}
		return out
	}
	return splitCamelCase(token)
}

func splitCamelCase(s string) []string {
	if s == "" {
		return nil
	}
	var result []string
	var current strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prevLower := unicode.IsLower(runes[i-1])
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prevLower || nextLower {
				if current.Len() > 0 {
					result = append(result, current.String())
					current.Reset()
				}
			}
		}
		current.WriteRune(r)
	}
	if current.Len() > 0 {
		result = append(result, current.String())
	}
	return result
}

func normalizeForNgrams(text string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func ngrams(text string, n int) []string {
	if len(text) < n {
		return nil
	}
	out := make([]string, 0, len(text)-n+1)
	for i := 0; i <= len(text)-n; i++ {
		out = append(out, text[i:i+n])
	}
	return out
}

func hashToIndex(s string, size int) int {
	h := fnv.New64()
	_, _ = h.Write([]byte(s))
	return int(h.Sum64() % uint64(size))
}
