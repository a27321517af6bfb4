// Package retrieval defines the data model and collaborator contracts shared
// by every component of the federated retrieval engine: Embedder,
// VectorIndex, LexicalIndex, and the request/result types that flow between
// them. Concrete implementations of the collaborator interfaces (and of
// CentroidStore, which has its own package because it owns persistence
// concerns) live in sibling packages; this package only describes shapes.
package retrieval

import "time"

// Embedding is a fixed-dimension dense vector. Unless noted otherwise,
// embeddings flowing through the engine are unit-norm (L2 norm == 1).
type Embedding []float32

// TenantID identifies an isolation boundary. Results and centroids never
// cross tenant lines.
type TenantID string

// Centroid is the L2-normalized mean of a tenant's indexed embeddings within
// one topic tag, plus the metadata needed to judge its freshness and
// reliability.
type Centroid struct {
	Vector      Embedding
	UpdatedAt   time.Time
	SourceCount int
	Dimension   int
}

// Origin discriminates which retrieval source produced a ScoredHit or
// contributed to its fusion score. Replaces the dynamic string-keyed maps
// the original implementation used for hit provenance (spec §9).
type Origin string

const (
	OriginVector   Origin = "vector"
	OriginLexical  Origin = "lexical"
	OriginExternal Origin = "external"
)

// ExternalDoc is a caller-supplied ephemeral document, valid only for the
// request that carried it. Never persisted, never leaked across requests.
type ExternalDoc struct {
	SrcID    string
	Text     string
	Meta     map[string]any
	Priority float64
}

// QueryRequest is the single-shot input to Engine.Search.
type QueryRequest struct {
	QueryText   string
	Tenant      TenantID
	KTotal      int
	Alpha       *float64 // nil means "use configured default_alpha"
	Personalize bool
	Tag         *string // nil means "infer from query text"
	External    []ExternalDoc
	UseInternal bool
}

// InternalHit is a single result from the vector or lexical index, before fusion.
type InternalHit struct {
	DocID        string
	Score        float64
	Source       Origin // OriginVector or OriginLexical
	RankInSource int    // 1-indexed
	Payload      map[string]any
}

// ExternalHit is a single scored ephemeral document, before fusion.
type ExternalHit struct {
	SrcID        string
	Score        float64
	RankInSource int // 1-indexed
	TextOverlap  float64
	Priority     float64
	Meta         map[string]any
}

// Contribution records one source's input to a fused hit's score, so callers
// can audit how a ranking was produced.
type Contribution struct {
	Source  Origin
	Rank    int
	RRFTerm float64
}

// ScoredHit is a single fused, ranked result returned to the caller.
type ScoredHit struct {
	ID           string
	Origin       Origin
	FusedScore   float64
	FinalRank    int
	Contributions []Contribution
}

// SearchTrace carries non-fatal degradation notes and search metadata. It is
// the sole channel through which the engine reports things that did not
// outright fail but did deviate from the happy path (spec §7).
type SearchTrace struct {
	Total                     int
	InternalCount             int
	ExternalCount             int
	PersonalizationApplied    bool
	AlphaUsed                 float64
	SimilarityQueryToCentroid *float64
	DurationMS                int64

	// Notes records degradations: partial source failures, centroid-fetch
	// fallback, k_total clamping, and so on. Never fatal on its own.
	Notes []string

	// QueryShape is an informational-only classification of the query
	// ("lexical", "semantic", "mixed"); it never feeds back into fusion
	// weights, it is reported for observability (see SPEC_FULL.md §9).
	QueryShape string
}

// AddNote appends a degradation/observation note to the trace.
func (t *SearchTrace) AddNote(note string) {
	t.Notes = append(t.Notes, note)
}

// Result is the return value of Engine.Search.
type Result struct {
	Hits  []ScoredHit
	Trace SearchTrace
}
