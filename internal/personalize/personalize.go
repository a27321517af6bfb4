// Package personalize blends a query embedding toward a tenant/tag centroid
// (spec §4.D), grounded on the teacher's normalizeVector helper in
// internal/embed/types.go, generalized with the blend-and-renormalize math
// in internal/retrieval/vecmath.go.
package personalize

import (
	"context"

	"github.com/aman-cerp/federated-retrieval/internal/centroidcache"
	"github.com/aman-cerp/federated-retrieval/internal/centroidstore"
	"github.com/aman-cerp/federated-retrieval/internal/retrieval"
	"github.com/aman-cerp/federated-retrieval/internal/taginfer"
	"github.com/aman-cerp/federated-retrieval/internal/telemetry"
)

// Result is the output of Personalize: the (possibly blended) embedding,
// whether blending actually applied, and the query-to-centroid similarity
// when a centroid was available (nil otherwise).
type Result struct {
	Embedding retrieval.Embedding
	Applied   bool
	Sim       *float64
}

// Personalizer resolves tags and alpha, blends against a cached centroid,
// and degrades gracefully on any miss.
type Personalizer struct {
	cache         *centroidcache.Cache
	tagInferencer *taginfer.Inferencer
	metrics       telemetry.Recorder
	minAlpha      float64
	maxAlpha      float64
	defaultAlpha  float64
}

// New constructs a Personalizer. minAlpha/maxAlpha/defaultAlpha come from
// engine configuration (spec §9 defaults: 0, 1, 0.25).
func New(cache *centroidcache.Cache, tagInferencer *taginfer.Inferencer, minAlpha, maxAlpha, defaultAlpha float64) *Personalizer {
	return &Personalizer{
		cache:         cache,
		tagInferencer: tagInferencer,
		metrics:       telemetry.NopRecorder{},
		minAlpha:      minAlpha,
		maxAlpha:      maxAlpha,
		defaultAlpha:  defaultAlpha,
	}
}

// WithMetrics attaches a telemetry.Recorder for centroid cache hit/miss
// accounting, mirroring the teacher's optional WithMetrics dependency.
func (p *Personalizer) WithMetrics(m telemetry.Recorder) *Personalizer {
	p.metrics = m
	return p
}

// Cache exposes the underlying centroid cache so callers can invalidate
// entries (e.g. Engine.InvalidateCentroid) without duplicating the cache
// reference.
func (p *Personalizer) Cache() *centroidcache.Cache {
	return p.cache
}

// Personalize implements spec §4.D steps 1-6. queryText feeds tag inference
// when tag is nil; q must already be unit-norm.
func (p *Personalizer) Personalize(ctx context.Context, q retrieval.Embedding, tenant retrieval.TenantID, queryText string, tag *string, alpha *float64) Result {
	resolvedTag := p.resolveTag(queryText, tag)
	resolvedAlpha := p.resolveAlpha(alpha)

	key := centroidstore.Key{Tenant: tenant, Tag: resolvedTag}
	centroid, found, err := p.cache.Get(ctx, key)
	if err != nil || !found {
		p.metrics.RecordCacheMiss()
		return Result{Embedding: q, Applied: false, Sim: nil}
	}
	p.metrics.RecordCacheHit()

	sim := retrieval.Dot(q, centroid.Vector)

	// A zero (or zeroed-by-alpha) centroid contribution must leave q
	// bit-for-bit unchanged: renormalizing q alone would still perturb its
	// low bits even though q is already unit-norm.
	scaledCentroid := retrieval.Scale(centroid.Vector, resolvedAlpha)
	if retrieval.Norm(scaledCentroid) < retrieval.Epsilon {
		return Result{Embedding: q, Applied: true, Sim: &sim}
	}

	blended := retrieval.Add(q, scaledCentroid)
	normalized, ok := retrieval.Normalize(blended)
	if !ok {
		return Result{Embedding: q, Applied: false, Sim: &sim}
	}

	return Result{Embedding: normalized, Applied: true, Sim: &sim}
}

func (p *Personalizer) resolveTag(queryText string, tag *string) string {
	if tag != nil && *tag != "" {
		return *tag
	}
	return p.tagInferencer.Infer(queryText)
}

func (p *Personalizer) resolveAlpha(alpha *float64) float64 {
	if alpha == nil {
		return p.defaultAlpha
	}
	a := *alpha
	if a < p.minAlpha {
		return p.minAlpha
	}
	if a > p.maxAlpha {
		return p.maxAlpha
	}
	return a
}
