// Package centroidbuilder implements the periodic/triggered job that
// recomputes a tenant/tag centroid from the vector index (spec §4.H). Batch
// streaming and accumulator bookkeeping follow the teacher's cursor-batch
// idiom in internal/store (VectorStore.Scan-style pagination); per-key
// advisory locking reuses the teacher's gofrs/flock FileLock
// (internal/embed/lock.go) so concurrent builder triggers for the same
// (tenant, tag) serialize instead of racing.
package centroidbuilder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/aman-cerp/federated-retrieval/internal/centroidstore"
	"github.com/aman-cerp/federated-retrieval/internal/retrieval"
	"github.com/aman-cerp/federated-retrieval/internal/telemetry"
)

// errInsufficientVectors and errDegenerateCentroid mark the two abort paths
// spec §4.H names explicitly, distinct from transport/store failures.
var (
	errInsufficientVectors = errors.New("insufficient vectors for centroid")
	errDegenerateCentroid  = errors.New("degenerate centroid")
)

// State is the per-key lifecycle of one build run (spec §4.H, §9 supplemented detail).
type State string

const (
	StateIdle        State = "idle"
	StateScanning    State = "scanning"
	StateAggregating State = "aggregating"
	StateWriting     State = "writing"
	StateDegenerate  State = "degenerate"
	StateFailed      State = "failed"
)

// DefaultBatchSize is the streaming batch size (spec §4.H default: 1000).
const DefaultBatchSize = 1000

// Builder recomputes centroids from a VectorIndex and writes them to a Store.
type Builder struct {
	index     retrieval.VectorIndex
	store     centroidstore.Store
	lockDir   string
	batchSize int
	minVecs   int
	maxVecs   int
	ttl       time.Duration
	metrics   telemetry.Recorder

	mu     sync.Mutex
	states map[centroidstore.Key]State
}

// New constructs a Builder. lockDir holds per-key advisory lock files; an
// empty lockDir disables build locking entirely, so concurrent Runs for the
// same key are not serialized.
func New(index retrieval.VectorIndex, store centroidstore.Store, lockDir string, batchSize, minVecs, maxVecs int, ttl time.Duration) *Builder {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Builder{
		index:     index,
		store:     store,
		lockDir:   lockDir,
		batchSize: batchSize,
		minVecs:   minVecs,
		maxVecs:   maxVecs,
		ttl:       ttl,
		metrics:   telemetry.NopRecorder{},
		states:    make(map[centroidstore.Key]State),
	}
}

// WithMetrics attaches a telemetry.Recorder for build-state accounting.
func (b *Builder) WithMetrics(m telemetry.Recorder) *Builder {
	b.metrics = m
	return b
}

// State returns the last-observed state for key, StateIdle if never built.
func (b *Builder) State(key centroidstore.Key) State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.states[key]; ok {
		return s
	}
	return StateIdle
}

func (b *Builder) setState(key centroidstore.Key, s State) {
	b.mu.Lock()
	b.states[key] = s
	b.mu.Unlock()
}

// Run executes one build for (tenant, tag), implementing spec §4.H steps 1-5.
func (b *Builder) Run(ctx context.Context, tenant retrieval.TenantID, tag string) error {
	key := centroidstore.Key{Tenant: tenant, Tag: tag}
	n := 0

	unlock, err := b.acquireLock(key)
	if err != nil {
		b.finish(key, StateFailed, n)
		return fmt.Errorf("acquiring centroid build lock for %s/%s: %w", tenant, tag, err)
	}
	defer unlock()

	b.setState(key, StateScanning)
	vectors, dimension, err := b.scanAll(ctx, tenant, tag)
	if err != nil {
		b.finish(key, StateFailed, n)
		return err
	}

	b.setState(key, StateAggregating)
	n = len(vectors)
	if n < b.minVecs {
		b.finish(key, StateDegenerate, n)
		return fmt.Errorf("only %d vectors found for %s/%s, need at least %d: %w", n, tenant, tag, b.minVecs, errInsufficientVectors)
	}
	if b.maxVecs > 0 && n > b.maxVecs {
		vectors = sampleUniform(vectors, b.maxVecs)
		n = len(vectors)
	}

	mean := accumulateMean(vectors, dimension)
	unit, ok := retrieval.Normalize(mean)
	if !ok {
		b.finish(key, StateDegenerate, n)
		return fmt.Errorf("centroid for %s/%s is degenerate (near-zero mean norm): %w", tenant, tag, errDegenerateCentroid)
	}

	b.setState(key, StateWriting)
	centroid := retrieval.Centroid{
		Vector:      unit,
		UpdatedAt:   time.Now(),
		SourceCount: n,
		Dimension:   dimension,
	}
	if err := b.store.Put(ctx, key, centroid); err != nil {
		b.finish(key, StateFailed, n)
		return fmt.Errorf("writing centroid for %s/%s: %w", tenant, tag, err)
	}

	b.finish(key, StateIdle, n)
	return nil
}

// finish sets the terminal state for key and reports it to the configured
// telemetry.Recorder.
func (b *Builder) finish(key centroidstore.Key, s State, vectorCount int) {
	b.setState(key, s)
	b.metrics.RecordBuild(telemetry.BuildEvent{
		Tenant:      string(key.Tenant),
		Tag:         key.Tag,
		State:       string(s),
		VectorCount: vectorCount,
	})
}

// scanAll streams all embeddings for (tenant, tag) in chunks of the
// configured batch size (DefaultBatchSize unless set) via VectorIndex.Scan
// (spec §4.H step 2).
func (b *Builder) scanAll(ctx context.Context, tenant retrieval.TenantID, tag string) ([]retrieval.Embedding, int, error) {
	var all []retrieval.Embedding
	dimension := 0
	cursor := ""
	for {
		batch, next, err := b.index.Scan(ctx, tenant, tag, cursor, b.batchSize)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning vector index for %s/%s: %w", tenant, tag, err)
		}
		for _, v := range batch {
			if dimension == 0 {
				dimension = len(v)
			}
			all = append(all, v)
		}
		if next == "" {
			break
		}
		cursor = next

		select {
		case <-ctx.Done():
			return nil, 0, ctx.Err()
		default:
		}
	}
	return all, dimension, nil
}

func (b *Builder) acquireLock(key centroidstore.Key) (func(), error) {
	if b.lockDir == "" {
		return func() {}, nil
	}
	if err := os.MkdirAll(b.lockDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating centroid build lock directory: %w", err)
	}
	path := filepath.Join(b.lockDir, lockFileName(key))
	fl := flock.New(path)
	if err := fl.Lock(); err != nil {
		return nil, fmt.Errorf("locking %s: %w", path, err)
	}
	return func() { _ = fl.Unlock() }, nil
}

func lockFileName(key centroidstore.Key) string {
	return fmt.Sprintf("%s__%s.lock", string(key.Tenant), key.Tag)
}

// accumulateMean sums vectors and divides by count, matching spec §4.H
// step 4's Σ/n. Vectors shorter than dimension contribute zero padding.
func accumulateMean(vectors []retrieval.Embedding, dimension int) retrieval.Embedding {
	sum := make(retrieval.Embedding, dimension)
	for _, v := range vectors {
		for i := 0; i < dimension && i < len(v); i++ {
			sum[i] += v[i]
		}
	}
	n := float64(len(vectors))
	for i := range sum {
		sum[i] = float32(float64(sum[i]) / n)
	}
	return sum
}

// sampleUniform deterministically downsamples to maxN by taking an evenly
// spaced stride through vectors, avoiding the bias of always keeping the
// first maxN (which would skew toward whatever batch order Scan returns).
func sampleUniform(vectors []retrieval.Embedding, maxN int) []retrieval.Embedding {
	if len(vectors) <= maxN {
		return vectors
	}
	out := make([]retrieval.Embedding, 0, maxN)
	step := float64(len(vectors)) / float64(maxN)
	for i := 0; i < maxN; i++ {
		idx := int(float64(i) * step)
		if idx >= len(vectors) {
			idx = len(vectors) - 1
		}
		out = append(out, vectors[idx])
	}
	return out
}
