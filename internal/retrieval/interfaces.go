package retrieval

import "context"

// Embedder generates a deterministic, unit-norm embedding for a query or
// document string. Implementations are external collaborators (spec §6);
// the engine only depends on this method contract.
type Embedder interface {
	// Embed returns a unit-norm embedding for text, or an error.
	Embed(ctx context.Context, text string) (Embedding, error)
}

// VectorIndex is the internal semantic index collaborator.
type VectorIndex interface {
	// Search returns up to limit hits for vec within tenant, ranked
	// descending by similarity, rank_in_source starting at 1.
	Search(ctx context.Context, tenant TenantID, vec Embedding, limit int) ([]InternalHit, error)

	// Scan streams embeddings for (tenant, tag), batch at a time, used only
	// by the centroid builder. A zero-value cursor starts the scan; the
	// returned cursor is opaque and fed back on the next call. An empty
	// nextCursor signals the scan is complete.
	Scan(ctx context.Context, tenant TenantID, tag string, cursor string, batch int) (vectors []Embedding, nextCursor string, err error)
}

// LexicalIndex is the internal keyword index collaborator.
type LexicalIndex interface {
	// Search returns up to limit hits for text within tenant, ranked by
	// lexical score, rank_in_source starting at 1.
	Search(ctx context.Context, tenant TenantID, text string, limit int) ([]InternalHit, error)
}
