// Package centroidstore persists per-(tenant, tag) centroids. It mirrors the
// teacher's store package split: a narrow interface plus swappable backends
// (an in-memory MemStore for tests/small deployments, a SQLiteStore for
// durable single-node deployments), both behind the same contract.
package centroidstore

import (
	"context"
	"time"

	"github.com/aman-cerp/federated-retrieval/internal/retrieval"
)

// Key identifies one centroid within a tenant's tag space.
type Key struct {
	Tenant retrieval.TenantID
	Tag    string
}

// Store is the persistence contract for centroids (spec §4.A).
type Store interface {
	// Get returns the centroid for key, or (nil, false, nil) if absent.
	Get(ctx context.Context, key Key) (*retrieval.Centroid, bool, error)

	// Put writes or replaces the centroid for key.
	Put(ctx context.Context, key Key, c retrieval.Centroid) error

	// Scan enumerates every (tenant, tag) pair with a stored centroid,
	// batch at a time, for the centroid builder's maintenance sweeps.
	Scan(ctx context.Context, cursor string, batch int) (keys []Key, nextCursor string, err error)

	// Delete removes a stored centroid. The builder does not call it; a
	// degenerate build leaves any earlier centroid in place.
	Delete(ctx context.Context, key Key) error

	Close() error
}

// IsStale reports whether c is older than ttl relative to now.
func IsStale(c retrieval.Centroid, ttl time.Duration, now time.Time) bool {
	if ttl <= 0 {
		return false
	}
	return now.Sub(c.UpdatedAt) > ttl
}
