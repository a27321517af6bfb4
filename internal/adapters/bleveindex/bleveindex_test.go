package bleveindex

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearch_UnknownTenantReturnsEmpty(t *testing.T) {
	idx := New()
	hits, err := idx.Search(context.Background(), "t1", "query", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestUpsertThenSearch_FindsMatchingDoc(t *testing.T) {
	idx := New()
	require.NoError(t, idx.Upsert(context.Background(), "t1", "doc1", "rollback deployment incident"))

	hits, err := idx.Search(context.Background(), "t1", "rollback", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "doc1", hits[0].DocID)
	assert.Equal(t, 1, hits[0].RankInSource)
}

func TestSearch_TenantIsolation(t *testing.T) {
	idx := New()
	require.NoError(t, idx.Upsert(context.Background(), "t1", "doc1", "rollback deployment"))

	hits, err := idx.Search(context.Background(), "t2", "rollback", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearch_EmptyQueryReturnsEmpty(t *testing.T) {
	idx := New()
	require.NoError(t, idx.Upsert(context.Background(), "t1", "doc1", "content"))
	hits, err := idx.Search(context.Background(), "t1", "   ", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearch_NoMatchReturnsEmpty(t *testing.T) {
	idx := New()
	require.NoError(t, idx.Upsert(context.Background(), "t1", "doc1", "unrelated content"))
	hits, err := idx.Search(context.Background(), "t1", "nonexistentword", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestUpsert_OverwritesExistingDoc(t *testing.T) {
	idx := New()
	require.NoError(t, idx.Upsert(context.Background(), "t1", "doc1", "alpha"))
	require.NoError(t, idx.Upsert(context.Background(), "t1", "doc1", "beta"))

	hits, err := idx.Search(context.Background(), "t1", "beta", 10)
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	hits, err = idx.Search(context.Background(), "t1", "alpha", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}
