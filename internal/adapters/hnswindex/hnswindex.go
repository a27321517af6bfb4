// Package hnswindex adapts coder/hnsw into a retrieval.VectorIndex,
// adapted from the teacher's HNSWStore (internal/store/hnsw.go): same
// string-ID <-> uint64-key mapping via two maps, same lazy-deletion
// strategy, generalized to a per-tenant graph set and to serve
// CentroidBuilder's Scan in addition to Engine's Search.
package hnswindex

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/coder/hnsw"

	"github.com/aman-cerp/federated-retrieval/internal/retrieval"
)

type tenantGraph struct {
	graph   *hnsw.Graph[uint64]
	idMap   map[string]uint64
	keyMap  map[uint64]string
	tags    map[string]string              // docID -> tag, for Scan filtering
	vectors map[string]retrieval.Embedding // docID -> original vector, for Scan (coder/hnsw exposes no node lookup by key)
	nextKey uint64
}

// Index is an in-process, per-tenant HNSW-backed VectorIndex. Each tenant
// gets an independent graph so centroid and search math never mixes
// tenants (spec §3 tenant isolation).
type Index struct {
	mu       sync.RWMutex
	tenants  map[retrieval.TenantID]*tenantGraph
	dimension int
}

var _ retrieval.VectorIndex = (*Index)(nil)

// New constructs an empty Index for vectors of the given dimension.
func New(dimension int) *Index {
	return &Index{tenants: make(map[retrieval.TenantID]*tenantGraph), dimension: dimension}
}

func (idx *Index) tenantGraphFor(tenant retrieval.TenantID) *tenantGraph {
	if g, ok := idx.tenants[tenant]; ok {
		return g
	}
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = 20
	graph.Ml = 0.25
	g := &tenantGraph{
		graph:   graph,
		idMap:   make(map[string]uint64),
		keyMap:  make(map[uint64]string),
		tags:    make(map[string]string),
		vectors: make(map[string]retrieval.Embedding),
	}
	idx.tenants[tenant] = g
	return g
}

// Upsert inserts or replaces a document's vector under (tenant, tag).
func (idx *Index) Upsert(_ context.Context, tenant retrieval.TenantID, docID, tag string, vec retrieval.Embedding) error {
	if len(vec) != idx.dimension {
		return fmt.Errorf("vector dimension %d does not match index dimension %d", len(vec), idx.dimension)
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()

	g := idx.tenantGraphFor(tenant)
	if oldKey, exists := g.idMap[docID]; exists {
		delete(g.keyMap, oldKey)
	}
	key := g.nextKey
	g.nextKey++
	g.idMap[docID] = key
	g.keyMap[key] = docID
	g.tags[docID] = tag
	g.vectors[docID] = vec
	g.graph.Add(hnsw.MakeNode(key, []float32(vec)))
	return nil
}

// Search implements retrieval.VectorIndex.
func (idx *Index) Search(_ context.Context, tenant retrieval.TenantID, vec retrieval.Embedding, limit int) ([]retrieval.InternalHit, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	g, ok := idx.tenants[tenant]
	if !ok || g.graph.Len() == 0 {
		return nil, nil
	}

	nodes := g.graph.Search([]float32(vec), limit)
	hits := make([]retrieval.InternalHit, 0, len(nodes))
	for _, node := range nodes {
		docID, exists := g.keyMap[node.Key]
		if !exists {
			continue
		}
		dist := g.graph.Distance([]float32(vec), node.Value)
		hits = append(hits, retrieval.InternalHit{
			DocID:  docID,
			Score:  1 - dist, // cosine distance -> similarity
			Source: retrieval.OriginVector,
		})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	for i := range hits {
		hits[i].RankInSource = i + 1
	}
	return hits, nil
}

// Scan implements retrieval.VectorIndex for the centroid builder. cursor is
// a decimal offset into a tag-filtered, docID-sorted snapshot, so repeated
// Scan calls against a stable index return a consistent partition even
// though the underlying maps have no intrinsic order.
func (idx *Index) Scan(_ context.Context, tenant retrieval.TenantID, tag string, cursor string, batch int) ([]retrieval.Embedding, string, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	g, ok := idx.tenants[tenant]
	if !ok {
		return nil, "", nil
	}

	var docIDs []string
	for docID, docTag := range g.tags {
		if docTag == tag {
			docIDs = append(docIDs, docID)
		}
	}
	sort.Strings(docIDs)

	offset := 0
	if cursor != "" {
		if _, err := fmt.Sscanf(cursor, "%d", &offset); err != nil {
			return nil, "", err
		}
	}
	if batch <= 0 {
		batch = len(docIDs)
	}
	if offset >= len(docIDs) {
		return nil, "", nil
	}
	end := offset + batch
	if end > len(docIDs) {
		end = len(docIDs)
	}

	vectors := make([]retrieval.Embedding, 0, end-offset)
	for _, docID := range docIDs[offset:end] {
		if v, ok := g.vectors[docID]; ok {
			vectors = append(vectors, v)
		}
	}

	nextCursor := ""
	if end < len(docIDs) {
		nextCursor = fmt.Sprintf("%d", end)
	}
	return vectors, nextCursor, nil
}
