// Package engine implements FederatedSearch (spec §4.G): the orchestrator
// that drives the vector index, lexical index, and ephemeral scorer
// concurrently, personalizes the query, fuses the results, and returns hits
// plus a trace. Concurrency is grounded directly on the teacher's
// parallelSearch (internal/search/engine.go), generalized from its
// fixed two-source errgroup fan-out to three independent sources with a
// per-request deadline.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/aman-cerp/federated-retrieval/internal/centroidstore"
	"github.com/aman-cerp/federated-retrieval/internal/ephemeral"
	"github.com/aman-cerp/federated-retrieval/internal/fuse"
	"github.com/aman-cerp/federated-retrieval/internal/obslog"
	"github.com/aman-cerp/federated-retrieval/internal/personalize"
	"github.com/aman-cerp/federated-retrieval/internal/rerrors"
	"github.com/aman-cerp/federated-retrieval/internal/retrieval"
	"github.com/aman-cerp/federated-retrieval/internal/shape"
	"github.com/aman-cerp/federated-retrieval/internal/telemetry"
)

// maxSearchK bounds the per-source search limit (spec §4.G step 5).
const maxSearchK = 50

// Config holds the orchestrator's policy knobs. Engine does not import
// internal/config directly, keeping it independent of the YAML/env loading
// concern (callers translate config.EngineConfig into engine.Config).
type Config struct {
	MaxKTotal       int
	RequestDeadline time.Duration
	RRFKParameter   int
	ExternalBoost   float64

	// MaxConcurrentSources bounds concurrent source backend calls across
	// every in-flight Search (spec §5). Zero derives a default from
	// runtime.NumCPU()*2.
	MaxConcurrentSources int
}

// Engine is the federated search orchestrator.
type Engine struct {
	embedder      retrieval.Embedder
	vectorIndex   retrieval.VectorIndex
	lexicalIndex  retrieval.LexicalIndex
	personalizer  *personalize.Personalizer
	scorer        *ephemeral.Scorer
	fuser         *fuse.Fuser
	metrics       telemetry.Recorder
	centroidStore centroidstore.Store
	breaker       *rerrors.CircuitBreaker
	sem           sourceSemaphore
	cfg           Config
}

// New constructs an Engine from its collaborators and policy config.
func New(embedder retrieval.Embedder, vectorIndex retrieval.VectorIndex, lexicalIndex retrieval.LexicalIndex, personalizer *personalize.Personalizer, scorer *ephemeral.Scorer, cfg Config) *Engine {
	return &Engine{
		embedder:     embedder,
		vectorIndex:  vectorIndex,
		lexicalIndex: lexicalIndex,
		personalizer: personalizer,
		scorer:       scorer,
		fuser:        fuse.New(cfg.RRFKParameter, cfg.ExternalBoost),
		metrics:      telemetry.NopRecorder{},
		sem:          newSourceSemaphore(cfg.MaxConcurrentSources),
		cfg:          cfg,
	}
}

// WithMetrics attaches a telemetry.Recorder, mirroring the teacher's
// search.Engine WithMetrics optional-dependency pattern.
func (e *Engine) WithMetrics(m telemetry.Recorder) *Engine {
	e.metrics = m
	return e
}

// WithCentroidStore attaches the centroid store and its circuit breaker so
// Stats can enumerate known tags and report backend health. Optional: Stats
// reports empty tags and a closed state without it. InvalidateCentroid does
// not use the store; it evicts from the personalizer's cache.
func (e *Engine) WithCentroidStore(store centroidstore.Store, breaker *rerrors.CircuitBreaker) *Engine {
	e.centroidStore = store
	e.breaker = breaker
	return e
}

// EngineStats reports cache hit/miss counters, known centroid tags for a
// tenant, and circuit breaker health, grounded on the teacher's
// search.Engine.Stats()/EngineStats shape (SPEC_FULL.md §9).
type EngineStats struct {
	Tenant       retrieval.TenantID
	CacheHits    int64
	CacheMisses  int64
	KnownTags    []string
	CircuitState string
}

// Stats implements the Engine.Stats(tenant) operation named in spec.md §6.
func (e *Engine) Stats(ctx context.Context, tenant retrieval.TenantID) (EngineStats, error) {
	stats := EngineStats{Tenant: tenant, CircuitState: rerrors.CircuitClosed.String()}

	if snapshotter, ok := e.metrics.(interface{ Snapshot() telemetry.Snapshot }); ok {
		snap := snapshotter.Snapshot()
		stats.CacheHits = snap.CacheHits
		stats.CacheMisses = snap.CacheMisses
	}
	if e.breaker != nil {
		stats.CircuitState = e.breaker.State().String()
	}
	if e.centroidStore == nil {
		return stats, nil
	}

	tags, err := knownTagsForTenant(ctx, e.centroidStore, tenant)
	if err != nil {
		return stats, rerrors.Wrap(rerrors.Unavailable, "listing known centroid tags", err)
	}
	stats.KnownTags = tags
	return stats, nil
}

// InvalidateCentroid evicts tenant/tag's cached centroid so the next
// personalized search re-fetches from the store.
func (e *Engine) InvalidateCentroid(tenant retrieval.TenantID, tag string) {
	e.personalizer.Cache().Invalidate(centroidstore.Key{Tenant: tenant, Tag: tag})
}

func knownTagsForTenant(ctx context.Context, store centroidstore.Store, tenant retrieval.TenantID) ([]string, error) {
	var tags []string
	cursor := ""
	for {
		keys, next, err := store.Scan(ctx, cursor, 100)
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			if k.Tenant == tenant {
				tags = append(tags, k.Tag)
			}
		}
		if next == "" {
			return tags, nil
		}
		cursor = next
	}
}

// Search implements spec §4.G's seven-step sequence.
func (e *Engine) Search(ctx context.Context, req retrieval.QueryRequest) (retrieval.Result, error) {
	start := time.Now()
	trace := retrieval.SearchTrace{QueryShape: shape.Classify(req.QueryText)}
	logger := obslog.FromContext(ctx).With(slog.String("tenant", string(req.Tenant)))

	if err := e.validate(req); err != nil {
		return retrieval.Result{}, err
	}
	kTotal, clamped := e.clampKTotal(req.KTotal)
	if clamped {
		trace.AddNote(fmt.Sprintf("k_total clamped to %d", kTotal))
		logger.Debug("k_total clamped", slog.Int("requested", req.KTotal), slog.Int("clamped_to", kTotal))
	}

	deadline := e.cfg.RequestDeadline
	if deadline <= 0 {
		deadline = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	needsEmbedding := req.UseInternal || len(req.External) > 0
	var queryVec retrieval.Embedding
	if needsEmbedding {
		vec, err := e.embedder.Embed(ctx, req.QueryText)
		if err != nil {
			if isCancellation(ctx, err) {
				return retrieval.Result{}, rerrors.Wrap(rerrors.Cancelled, "query embedding cancelled", err)
			}
			return retrieval.Result{}, rerrors.Wrap(rerrors.Unavailable, "query embedding failed", err)
		}
		normalized, ok := retrieval.Normalize(vec)
		if !ok {
			return retrieval.Result{}, rerrors.Invalid("query embedding has zero norm")
		}
		queryVec = normalized
	}

	searchVec := queryVec
	trace.AlphaUsed = 0
	if req.Personalize && queryVec != nil {
		res := e.personalizer.Personalize(ctx, queryVec, req.Tenant, req.QueryText, req.Tag, req.Alpha)
		trace.PersonalizationApplied = res.Applied
		trace.SimilarityQueryToCentroid = res.Sim
		if res.Applied {
			searchVec = res.Embedding
		} else {
			trace.AddNote("personalization not applied: centroid unavailable or degenerate")
		}
	}

	kSearch := kTotal * 2
	if kSearch > maxSearchK {
		kSearch = maxSearchK
	}

	vectorHits, lexicalHits, externalHits, sourceErrCount, totalSources, err := e.fanOut(ctx, req, searchVec, kSearch)
	if err != nil {
		return retrieval.Result{}, err
	}
	if sourceErrCount > 0 {
		trace.AddNote(fmt.Sprintf("%d of %d sources failed, proceeding with partial results", sourceErrCount, totalSources))
		logger.Warn("search sources degraded", slog.Int("failed", sourceErrCount), slog.Int("attempted", totalSources))
	}

	hits := e.fuser.Fuse(vectorHits, lexicalHits, externalHits, kTotal)

	trace.Total = len(hits)
	trace.InternalCount = len(vectorHits) + len(lexicalHits)
	trace.ExternalCount = len(externalHits)
	elapsed := time.Since(start)
	trace.DurationMS = elapsed.Milliseconds()

	e.metrics.RecordSearch(telemetry.SearchEvent{
		QueryType:              queryType(req),
		ResultCount:            trace.Total,
		Latency:                elapsed,
		PersonalizationApplied: trace.PersonalizationApplied,
		SourcesFailed:          sourceErrCount,
	})

	return retrieval.Result{Hits: hits, Trace: trace}, nil
}

func queryType(req retrieval.QueryRequest) telemetry.QueryType {
	switch {
	case req.UseInternal && len(req.External) > 0:
		return telemetry.QueryTypeMixed
	case req.UseInternal:
		return telemetry.QueryTypeInternalOnly
	default:
		return telemetry.QueryTypeExternalOnly
	}
}

func (e *Engine) validate(req retrieval.QueryRequest) error {
	if !req.UseInternal && len(req.External) == 0 {
		return rerrors.Invalid("query must use internal sources or supply external documents")
	}
	if req.Tenant == "" {
		return rerrors.Invalid("tenant is required")
	}
	seen := make(map[string]struct{}, len(req.External))
	aggregateChars := 0
	for _, doc := range req.External {
		if doc.SrcID == "" {
			return rerrors.Invalid("external doc src_id must not be empty")
		}
		if _, dup := seen[doc.SrcID]; dup {
			return rerrors.Invalid(fmt.Sprintf("duplicate external doc src_id %q", doc.SrcID))
		}
		seen[doc.SrcID] = struct{}{}
		textChars := utf8.RuneCountInString(doc.Text)
		if textChars == 0 || textChars > 50000 {
			return rerrors.Invalid(fmt.Sprintf("external doc %q text length must be in [1, 50000]", doc.SrcID))
		}
		if doc.Priority < 0 || doc.Priority > 1 {
			return rerrors.Invalid(fmt.Sprintf("external doc %q priority must be in [0, 1]", doc.SrcID))
		}
		aggregateChars += textChars
	}
	if len(req.External) > 50 {
		return rerrors.Invalid("at most 50 external docs are allowed per request")
	}
	if aggregateChars > 500000 {
		return rerrors.Invalid("aggregate external doc text exceeds 500000 chars")
	}
	return nil
}

func (e *Engine) clampKTotal(k int) (int, bool) {
	maxK := e.cfg.MaxKTotal
	if maxK <= 0 {
		maxK = 100
	}
	if k < 1 {
		return 1, true
	}
	if k > maxK {
		return maxK, true
	}
	return k, false
}

// fanOut runs vector search, lexical search, and external scoring
// concurrently, tolerating partial failure the same way the teacher's
// parallelSearch tolerates one of {bm25, vector} failing.
func (e *Engine) fanOut(ctx context.Context, req retrieval.QueryRequest, searchVec retrieval.Embedding, kSearch int) (vector, lexical []retrieval.InternalHit, external []retrieval.ExternalHit, errCount, total int, err error) {
	g, gctx := errgroup.WithContext(ctx)

	var vectorErr, lexicalErr error
	sourcesAttempted := 0

	if req.UseInternal && searchVec != nil {
		sourcesAttempted++
		g.Go(func() error {
			e.sem.acquire()
			defer e.sem.release()
			hits, searchErr := e.vectorIndex.Search(gctx, req.Tenant, searchVec, kSearch)
			if searchErr != nil {
				if isCancellation(gctx, searchErr) {
					return searchErr
				}
				vectorErr = searchErr
				return nil
			}
			vector = hits
			return nil
		})
	}

	if req.UseInternal {
		sourcesAttempted++
		g.Go(func() error {
			e.sem.acquire()
			defer e.sem.release()
			hits, searchErr := e.lexicalIndex.Search(gctx, req.Tenant, req.QueryText, kSearch)
			if searchErr != nil {
				if isCancellation(gctx, searchErr) {
					return searchErr
				}
				lexicalErr = searchErr
				return nil
			}
			lexical = hits
			return nil
		})
	}

	if len(req.External) > 0 {
		sourcesAttempted++
		e.sem.acquire()
		external = e.scorer.Score(gctx, req.QueryText, searchVec, req.External)
		e.sem.release()
	}

	if waitErr := g.Wait(); waitErr != nil {
		return nil, nil, nil, 0, 0, rerrors.Wrap(rerrors.Cancelled, "search cancelled", waitErr)
	}

	failed := 0
	if vectorErr != nil {
		failed++
	}
	if lexicalErr != nil {
		failed++
	}
	internalSourcesAttempted := 0
	if req.UseInternal && searchVec != nil {
		internalSourcesAttempted++
	}
	if req.UseInternal {
		internalSourcesAttempted++
	}
	if internalSourcesAttempted > 0 && failed == internalSourcesAttempted && len(req.External) == 0 {
		return nil, nil, nil, 0, 0, rerrors.Wrap(rerrors.Unavailable, "all sources failed", firstNonNil(vectorErr, lexicalErr))
	}

	return vector, lexical, external, failed, sourcesAttempted, nil
}

// isCancellation reports whether err reflects ctx's own deadline expiry or
// explicit cancellation, as opposed to a backend failure unrelated to ctx
// (spec §7: Cancelled = "deadline or explicit cancellation").
func isCancellation(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

func firstNonNil(errs ...error) error {
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}
