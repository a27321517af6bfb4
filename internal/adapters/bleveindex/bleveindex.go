// Package bleveindex adapts blevesearch/bleve into a retrieval.LexicalIndex,
// adapted from the teacher's BleveBM25Index (internal/store/bm25.go): one
// in-memory bleve index per tenant, documents indexed with a single
// "content" field, queried with bleve.NewMatchQuery the same way the
// teacher's Search does.
package bleveindex

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"

	"github.com/aman-cerp/federated-retrieval/internal/retrieval"
)

type document struct {
	Content string `json:"content"`
}

// Index is an in-process, per-tenant bleve-backed LexicalIndex.
type Index struct {
	mu      sync.RWMutex
	tenants map[retrieval.TenantID]bleve.Index
}

var _ retrieval.LexicalIndex = (*Index)(nil)

// New constructs an empty Index.
func New() *Index {
	return &Index{tenants: make(map[retrieval.TenantID]bleve.Index)}
}

func (idx *Index) tenantIndexFor(tenant retrieval.TenantID) (bleve.Index, error) {
	if i, ok := idx.tenants[tenant]; ok {
		return i, nil
	}
	mapping := bleve.NewIndexMapping()
	i, err := bleve.NewMemOnly(mapping)
	if err != nil {
		return nil, fmt.Errorf("creating bleve index for tenant %s: %w", tenant, err)
	}
	idx.tenants[tenant] = i
	return i, nil
}

// Upsert indexes or reindexes a document's text under tenant.
func (idx *Index) Upsert(_ context.Context, tenant retrieval.TenantID, docID, text string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	i, err := idx.tenantIndexFor(tenant)
	if err != nil {
		return err
	}
	return i.Index(docID, document{Content: text})
}

// Search implements retrieval.LexicalIndex.
func (idx *Index) Search(ctx context.Context, tenant retrieval.TenantID, text string, limit int) ([]retrieval.InternalHit, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	idx.mu.RLock()
	i, ok := idx.tenants[tenant]
	idx.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	query := bleve.NewMatchQuery(text)
	query.SetField("content")
	req := bleve.NewSearchRequest(query)
	req.Size = limit

	result, err := i.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("lexical search failed: %w", err)
	}

	hits := make([]retrieval.InternalHit, len(result.Hits))
	for rank, hit := range result.Hits {
		hits[rank] = retrieval.InternalHit{
			DocID:        hit.ID,
			Score:        hit.Score,
			Source:       retrieval.OriginLexical,
			RankInSource: rank + 1,
		}
	}
	return hits, nil
}
