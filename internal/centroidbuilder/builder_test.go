package centroidbuilder

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-cerp/federated-retrieval/internal/centroidstore"
	"github.com/aman-cerp/federated-retrieval/internal/retrieval"
)

type fakeScanIndex struct {
	batches [][]retrieval.Embedding
}

func (f *fakeScanIndex) Search(_ context.Context, _ retrieval.TenantID, _ retrieval.Embedding, _ int) ([]retrieval.InternalHit, error) {
	return nil, nil
}

func (f *fakeScanIndex) Scan(_ context.Context, _ retrieval.TenantID, _ string, cursor string, _ int) ([]retrieval.Embedding, string, error) {
	idx := 0
	if cursor != "" {
		for i, c := range []byte(cursor) {
			_ = i
			idx = int(c - '0')
		}
	}
	if idx >= len(f.batches) {
		return nil, "", nil
	}
	next := ""
	if idx+1 < len(f.batches) {
		next = string(rune('0' + idx + 1))
	}
	return f.batches[idx], next, nil
}

func TestRun_ComputesUnitMeanFromStreamedBatches(t *testing.T) {
	idx := &fakeScanIndex{batches: [][]retrieval.Embedding{
		{{1, 0}, {1, 0}},
		{{0, 1}, {0, 1}},
	}}
	store := centroidstore.NewMemStore()
	b := New(idx, store, "", 10, 2, 0, time.Hour)

	err := b.Run(context.Background(), "t1", "docs")
	require.NoError(t, err)

	c, found, err := store.Get(context.Background(), centroidstore.Key{Tenant: "t1", Tag: "docs"})
	require.NoError(t, err)
	require.True(t, found)
	assert.InDelta(t, 1.0, retrieval.Norm(c.Vector), 1e-6)
	assert.Equal(t, 4, c.SourceCount)
}

func TestRun_InsufficientVectorsIsDegenerate(t *testing.T) {
	idx := &fakeScanIndex{batches: [][]retrieval.Embedding{{{1, 0}}}}
	store := centroidstore.NewMemStore()
	b := New(idx, store, "", 10, 5, 0, time.Hour)

	err := b.Run(context.Background(), "t1", "docs")
	assert.Error(t, err)
	assert.Equal(t, StateDegenerate, b.State(centroidstore.Key{Tenant: "t1", Tag: "docs"}))
}

func TestRun_ZeroMeanIsDegenerate(t *testing.T) {
	idx := &fakeScanIndex{batches: [][]retrieval.Embedding{{{1, 0}, {-1, 0}}}}
	store := centroidstore.NewMemStore()
	b := New(idx, store, "", 10, 2, 0, time.Hour)

	err := b.Run(context.Background(), "t1", "docs")
	assert.Error(t, err)
	assert.Equal(t, StateDegenerate, b.State(centroidstore.Key{Tenant: "t1", Tag: "docs"}))
}

func TestRun_SamplesWhenOverMax(t *testing.T) {
	batch := make([]retrieval.Embedding, 100)
	for i := range batch {
		batch[i] = retrieval.Embedding{1, 0}
	}
	idx := &fakeScanIndex{batches: [][]retrieval.Embedding{batch}}
	store := centroidstore.NewMemStore()
	b := New(idx, store, "", 10, 2, 10, time.Hour)

	err := b.Run(context.Background(), "t1", "docs")
	require.NoError(t, err)
	c, _, err := store.Get(context.Background(), centroidstore.Key{Tenant: "t1", Tag: "docs"})
	require.NoError(t, err)
	assert.Equal(t, 10, c.SourceCount)
}

func TestRun_SucceedsReachesIdleState(t *testing.T) {
	idx := &fakeScanIndex{batches: [][]retrieval.Embedding{{{1, 0}, {1, 0}}}}
	store := centroidstore.NewMemStore()
	b := New(idx, store, "", 10, 2, 0, time.Hour)

	require.NoError(t, b.Run(context.Background(), "t1", "docs"))
	assert.Equal(t, StateIdle, b.State(centroidstore.Key{Tenant: "t1", Tag: "docs"}))
}

func TestState_DefaultsToIdleForUnknownKey(t *testing.T) {
	b := New(&fakeScanIndex{}, centroidstore.NewMemStore(), "", 10, 2, 0, time.Hour)
	assert.Equal(t, StateIdle, b.State(centroidstore.Key{Tenant: "unknown", Tag: "x"}))
}
