// Package app wires the federated retrieval engine's collaborators from an
// EngineConfig, mirroring the teacher's cmd/amanmcp bootstrap flow (data
// directory layout, engine/store construction) but collapsed into one
// constructor instead of scattering wiring across individual commands, so
// retrievalctl's subcommands share a single App instead of redoing it.
package app

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/aman-cerp/federated-retrieval/internal/adapters/bleveindex"
	"github.com/aman-cerp/federated-retrieval/internal/adapters/hashembed"
	"github.com/aman-cerp/federated-retrieval/internal/adapters/hnswindex"
	"github.com/aman-cerp/federated-retrieval/internal/centroidbuilder"
	"github.com/aman-cerp/federated-retrieval/internal/centroidcache"
	"github.com/aman-cerp/federated-retrieval/internal/centroidstore"
	"github.com/aman-cerp/federated-retrieval/internal/config"
	"github.com/aman-cerp/federated-retrieval/internal/engine"
	"github.com/aman-cerp/federated-retrieval/internal/ephemeral"
	"github.com/aman-cerp/federated-retrieval/internal/obslog"
	"github.com/aman-cerp/federated-retrieval/internal/personalize"
	"github.com/aman-cerp/federated-retrieval/internal/rerrors"
	"github.com/aman-cerp/federated-retrieval/internal/taginfer"
	"github.com/aman-cerp/federated-retrieval/internal/telemetry"
)

// App bundles the fully-wired collaborators retrievalctl's subcommands
// operate on.
type App struct {
	Engine  *engine.Engine
	Builder *centroidbuilder.Builder
	Store   centroidstore.Store
	Metrics *telemetry.Metrics
	Logger  *slog.Logger
	Config  config.EngineConfig
}

// DataDir returns the directory holding the engine's persisted state
// (centroid store, advisory lock files, debug logs), mirroring the
// teacher's ".amanmcp" per-project data directory idiom.
func DataDir(root string) string {
	return filepath.Join(root, ".retrievalctl")
}

// New constructs an App from cfg. dataDir holds the SQLite centroid store
// and per-key build lock files; an empty dataDir runs entirely in memory
// (MemStore, no cross-process locking), matching centroidbuilder.New's
// documented degradation when lockDir is empty.
func New(cfg config.EngineConfig, dataDir string, debug bool) (*App, func(), error) {
	logCfg := obslog.DefaultConfig()
	if !debug {
		logCfg.FilePath = ""
	}
	logger, loggingCleanup, err := obslog.Setup(logCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("setting up logging: %w", err)
	}

	store, storeCleanup, err := openStore(dataDir)
	if err != nil {
		loggingCleanup()
		return nil, nil, err
	}

	breaker := rerrors.NewCircuitBreaker("centroidstore")
	guardedStore := centroidstore.WithCircuitBreaker(store, breaker)

	cacheTTL, err := cfg.CentroidCacheTTLDuration()
	if err != nil {
		storeCleanup()
		loggingCleanup()
		return nil, nil, fmt.Errorf("parsing centroid_cache_ttl: %w", err)
	}
	cache, err := centroidcache.New(guardedStore, cfg.CentroidCacheSize, cacheTTL)
	if err != nil {
		storeCleanup()
		loggingCleanup()
		return nil, nil, fmt.Errorf("constructing centroid cache: %w", err)
	}

	metrics := telemetry.New()

	embedder := hashembed.New(cfg.EmbeddingDimension)
	vectorIndex := hnswindex.New(cfg.EmbeddingDimension)
	lexicalIndex := bleveindex.New()

	personalizer := personalize.New(cache, taginfer.Default(), cfg.MinAlpha, cfg.MaxAlpha, cfg.DefaultAlpha).WithMetrics(metrics)
	scorer := ephemeral.New(embedder)

	requestDeadline, err := cfg.RequestDeadlineDuration()
	if err != nil {
		storeCleanup()
		loggingCleanup()
		return nil, nil, fmt.Errorf("parsing request_deadline: %w", err)
	}

	eng := engine.New(embedder, vectorIndex, lexicalIndex, personalizer, scorer, engine.Config{
		MaxKTotal:            cfg.MaxKTotal,
		RequestDeadline:      requestDeadline,
		RRFKParameter:        cfg.RRFKParameter,
		ExternalBoost:        cfg.ExternalBoost,
		MaxConcurrentSources: cfg.MaxConcurrentSources,
	}).WithMetrics(metrics).WithCentroidStore(guardedStore, breaker)

	centroidTTL, err := cfg.CentroidTTLDuration()
	if err != nil {
		storeCleanup()
		loggingCleanup()
		return nil, nil, fmt.Errorf("parsing centroid_ttl: %w", err)
	}
	var lockDir string
	if dataDir != "" {
		lockDir = filepath.Join(dataDir, "locks")
		if err := os.MkdirAll(lockDir, 0o755); err != nil {
			storeCleanup()
			loggingCleanup()
			return nil, nil, fmt.Errorf("creating lock directory: %w", err)
		}
	}
	builder := centroidbuilder.New(vectorIndex, guardedStore, lockDir, cfg.BuildBatchSize, cfg.MinVectorsForCentroid, cfg.MaxVectorsForCentroid, centroidTTL).WithMetrics(metrics)

	cleanup := func() {
		storeCleanup()
		loggingCleanup()
	}

	return &App{
		Engine:  eng,
		Builder: builder,
		Store:   guardedStore,
		Metrics: metrics,
		Logger:  logger,
		Config:  cfg,
	}, cleanup, nil
}

func openStore(dataDir string) (centroidstore.Store, func(), error) {
	if dataDir == "" {
		store := centroidstore.NewMemStore()
		return store, func() {}, nil
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "centroids.db")
	store, err := centroidstore.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening centroid store: %w", err)
	}
	return store, func() { _ = store.Close() }, nil
}

// BuildTimeout bounds one centroidbuilder.Run invocation from the CLI,
// independent of the engine's per-search request deadline.
const BuildTimeout = 2 * time.Minute
