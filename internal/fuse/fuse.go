// Package fuse merges ranked lists from the vector, lexical, and external
// sources into one total order via Reciprocal Rank Fusion (spec §4.F),
// adapted directly from the teacher's RRFFusion
// (internal/search/fusion.go), generalized from its fixed two-source
// (BM25, vector) shape to three sources plus an external priority blend.
package fuse

import (
	"sort"

	"github.com/aman-cerp/federated-retrieval/internal/retrieval"
)

// DefaultK is the RRF smoothing constant (spec §4.F default: 60).
const DefaultK = 60

// DefaultExternalBoost is the multiplier applied to external candidates'
// effective score (spec §4.F: "the 20% boost").
const DefaultExternalBoost = 1.2

// Fuser combines internal (vector/lexical) and external ranked lists.
type Fuser struct {
	K             int
	ExternalBoost float64
}

// New constructs a Fuser. Non-positive k defaults to DefaultK; non-positive
// boost defaults to DefaultExternalBoost.
func New(k int, externalBoost float64) *Fuser {
	if k <= 0 {
		k = DefaultK
	}
	if externalBoost <= 0 {
		externalBoost = DefaultExternalBoost
	}
	return &Fuser{K: k, ExternalBoost: externalBoost}
}

type candidate struct {
	id            string
	origin        retrieval.Origin
	rrfScore      float64
	inVector      bool
	inLexical     bool
	contributions []retrieval.Contribution
	externalScore float64
	effective     float64
}

// Fuse implements spec §4.F steps 1-2: RRF over vector+lexical, then blend
// with external candidates by effective score, truncating to kTotal.
func (f *Fuser) Fuse(vector, lexical []retrieval.InternalHit, externalHits []retrieval.ExternalHit, kTotal int) []retrieval.ScoredHit {
	internal := f.fuseInternal(vector, lexical)
	candidates := f.combineWithExternal(internal, externalHits)

	sort.SliceStable(candidates, func(i, j int) bool {
		return f.compare(candidates[i], candidates[j])
	})

	if kTotal > 0 && kTotal < len(candidates) {
		candidates = candidates[:kTotal]
	}

	out := make([]retrieval.ScoredHit, len(candidates))
	for rank, c := range candidates {
		out[rank] = retrieval.ScoredHit{
			ID:            c.id,
			Origin:        c.origin,
			FusedScore:    c.effective,
			FinalRank:     rank + 1,
			Contributions: c.contributions,
		}
	}
	return out
}

// fuseInternal runs RRF over the vector and lexical lists (step 1).
func (f *Fuser) fuseInternal(vector, lexical []retrieval.InternalHit) map[string]*candidate {
	byID := make(map[string]*candidate, len(vector)+len(lexical))

	getOrCreate := func(id string) *candidate {
		if c, ok := byID[id]; ok {
			return c
		}
		c := &candidate{id: id}
		byID[id] = c
		return c
	}

	for _, h := range vector {
		c := getOrCreate(h.DocID)
		c.inVector = true
		term := 1.0 / float64(f.K+h.RankInSource)
		c.rrfScore += term
		c.contributions = append(c.contributions, retrieval.Contribution{
			Source: retrieval.OriginVector, Rank: h.RankInSource, RRFTerm: term,
		})
	}

	for _, h := range lexical {
		c := getOrCreate(h.DocID)
		c.inLexical = true
		term := 1.0 / float64(f.K+h.RankInSource)
		c.rrfScore += term
		c.contributions = append(c.contributions, retrieval.Contribution{
			Source: retrieval.OriginLexical, Rank: h.RankInSource, RRFTerm: term,
		})
	}

	for _, c := range byID {
		c.origin = retrieval.OriginVector
		if !c.inVector && c.inLexical {
			c.origin = retrieval.OriginLexical
		}
		c.effective = c.rrfScore
	}

	return byID
}

// combineWithExternal computes each candidate's effective score (step 2).
// External hits with an ID matching an internal candidate are kept as a
// distinct candidate (spec §4.F edge cases: cross-origin duplicates stay
// attributable to their source).
func (f *Fuser) combineWithExternal(internal map[string]*candidate, external []retrieval.ExternalHit) []*candidate {
	out := make([]*candidate, 0, len(internal)+len(external))
	for _, c := range internal {
		out = append(out, c)
	}

	for _, h := range external {
		c := &candidate{
			id:            h.SrcID,
			origin:        retrieval.OriginExternal,
			externalScore: h.Score,
			effective:     h.Score * f.ExternalBoost,
			contributions: []retrieval.Contribution{
				{Source: retrieval.OriginExternal, Rank: h.RankInSource, RRFTerm: h.Score},
			},
		}
		out = append(out, c)
	}

	return out
}

// compare implements the tie-break cascade: effective score desc, then
// origin priority external > vector > lexical, then id asc.
func (f *Fuser) compare(a, b *candidate) bool {
	if a.effective != b.effective {
		return a.effective > b.effective
	}
	pa, pb := originPriority(a.origin), originPriority(b.origin)
	if pa != pb {
		return pa < pb
	}
	return a.id < b.id
}

func originPriority(o retrieval.Origin) int {
	switch o {
	case retrieval.OriginExternal:
		return 0
	case retrieval.OriginVector:
		return 1
	case retrieval.OriginLexical:
		return 2
	default:
		return 3
	}
}
