package centroidstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-cerp/federated-retrieval/internal/retrieval"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	sqliteStore, err := NewSQLiteStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqliteStore.Close() })
	return map[string]Store{
		"MemStore":    NewMemStore(),
		"SQLiteStore": sqliteStore,
	}
}

func TestStore_GetMissingReturnsFalse(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			c, found, err := s.Get(context.Background(), Key{Tenant: "t1", Tag: "docs"})
			require.NoError(t, err)
			assert.False(t, found)
			assert.Nil(t, c)
		})
	}
}

func TestStore_PutThenGetRoundTrips(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			key := Key{Tenant: "t1", Tag: "docs"}
			c := retrieval.Centroid{
				Vector:      retrieval.Embedding{0.6, 0.8},
				Dimension:   2,
				SourceCount: 42,
				UpdatedAt:   time.Now().Truncate(time.Second),
			}
			require.NoError(t, s.Put(ctx, key, c))

			got, found, err := s.Get(ctx, key)
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, c.Dimension, got.Dimension)
			assert.Equal(t, c.SourceCount, got.SourceCount)
			assert.InDelta(t, c.Vector[0], got.Vector[0], 1e-6)
			assert.InDelta(t, c.Vector[1], got.Vector[1], 1e-6)
			assert.WithinDuration(t, c.UpdatedAt, got.UpdatedAt, time.Second)
		})
	}
}

func TestStore_PutOverwritesExisting(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			key := Key{Tenant: "t1", Tag: "docs"}
			require.NoError(t, s.Put(ctx, key, retrieval.Centroid{Vector: retrieval.Embedding{1, 0}, SourceCount: 1}))
			require.NoError(t, s.Put(ctx, key, retrieval.Centroid{Vector: retrieval.Embedding{0, 1}, SourceCount: 2}))

			got, found, err := s.Get(ctx, key)
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, 2, got.SourceCount)
		})
	}
}

func TestStore_DeleteRemovesKey(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			key := Key{Tenant: "t1", Tag: "docs"}
			require.NoError(t, s.Put(ctx, key, retrieval.Centroid{Vector: retrieval.Embedding{1, 0}}))
			require.NoError(t, s.Delete(ctx, key))

			_, found, err := s.Get(ctx, key)
			require.NoError(t, err)
			assert.False(t, found)
		})
	}
}

func TestStore_ScanPaginatesAllKeys(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i := 0; i < 5; i++ {
				key := Key{Tenant: "t1", Tag: string(rune('a' + i))}
				require.NoError(t, s.Put(ctx, key, retrieval.Centroid{Vector: retrieval.Embedding{1}}))
			}

			seen := map[Key]bool{}
			cursor := ""
			for {
				keys, next, err := s.Scan(ctx, cursor, 2)
				require.NoError(t, err)
				for _, k := range keys {
					seen[k] = true
				}
				if next == "" {
					break
				}
				cursor = next
			}
			assert.Len(t, seen, 5)
		})
	}
}

func TestIsStale(t *testing.T) {
	now := time.Now()
	fresh := retrieval.Centroid{UpdatedAt: now.Add(-1 * time.Minute)}
	stale := retrieval.Centroid{UpdatedAt: now.Add(-200 * time.Hour)}

	assert.False(t, IsStale(fresh, 168*time.Hour, now))
	assert.True(t, IsStale(stale, 168*time.Hour, now))
	assert.False(t, IsStale(stale, 0, now))
}
