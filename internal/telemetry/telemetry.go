// Package telemetry tracks query-type histograms, fusion latency buckets,
// and centroid cache hit/miss counters, adapted from the teacher's
// internal/telemetry/query_metrics.go (CircularBuffer, latency bucketing)
// but scoped to this engine's own events rather than BM25/vector query
// classification.
package telemetry

import (
	"sync"
	"time"
)

// QueryType classifies a search request by which sources it drew on.
type QueryType string

const (
	QueryTypeInternalOnly QueryType = "internal_only"
	QueryTypeExternalOnly QueryType = "external_only"
	QueryTypeMixed        QueryType = "mixed"
)

// LatencyBucket is a coarse search-latency histogram bucket.
type LatencyBucket string

const (
	BucketP10   LatencyBucket = "p10"   // <10ms
	BucketP50   LatencyBucket = "p50"   // 10-50ms
	BucketP100  LatencyBucket = "p100"  // 50-100ms
	BucketP500  LatencyBucket = "p500"  // 100-500ms
	BucketP1000 LatencyBucket = "p1000" // >=500ms
)

// LatencyToBucket converts a duration to its histogram bucket.
func LatencyToBucket(d time.Duration) LatencyBucket {
	ms := d.Milliseconds()
	switch {
	case ms < 10:
		return BucketP10
	case ms < 50:
		return BucketP50
	case ms < 100:
		return BucketP100
	case ms < 500:
		return BucketP500
	default:
		return BucketP1000
	}
}

// SearchEvent summarizes one completed FederatedSearch call for recording.
type SearchEvent struct {
	QueryType              QueryType
	ResultCount            int
	Latency                time.Duration
	PersonalizationApplied bool
	SourcesFailed          int
}

// IsZeroResult reports whether the search returned nothing.
func (e SearchEvent) IsZeroResult() bool {
	return e.ResultCount == 0
}

// CircularBuffer is a fixed-capacity FIFO buffer, used here to retain the
// timestamps of the most recent zero-result searches for diagnosis.
type CircularBuffer[T any] struct {
	items    []T
	head     int
	size     int
	capacity int
	mu       sync.RWMutex
}

// NewCircularBuffer creates a buffer with the given capacity; a capacity of
// zero or less becomes 100.
func NewCircularBuffer[T any](capacity int) *CircularBuffer[T] {
	if capacity <= 0 {
		capacity = 100
	}
	return &CircularBuffer[T]{items: make([]T, capacity), capacity: capacity}
}

// Add appends an item, evicting the oldest entry once full.
func (b *CircularBuffer[T]) Add(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items[b.head] = item
	b.head = (b.head + 1) % b.capacity
	if b.size < b.capacity {
		b.size++
	}
}

// Items returns the buffered entries oldest-first.
func (b *CircularBuffer[T]) Items() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.size == 0 {
		return []T{}
	}
	result := make([]T, b.size)
	if b.size < b.capacity {
		copy(result, b.items[:b.size])
	} else {
		copy(result, b.items[b.head:])
		copy(result[b.capacity-b.head:], b.items[:b.head])
	}
	return result
}

// Size reports the current number of buffered items.
func (b *CircularBuffer[T]) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// Snapshot is an immutable view of accumulated metrics.
type Snapshot struct {
	QueryTypeCounts     map[QueryType]int64
	LatencyDistribution map[LatencyBucket]int64
	TotalQueries        int64
	ZeroResultCount     int64
	PersonalizedCount   int64
	DegradedCount       int64
	CacheHits           int64
	CacheMisses         int64
	BuildsByState       map[string]int64
	Since               time.Time
}

// CacheHitRate returns hits / (hits + misses), or 0 if there have been none.
func (s Snapshot) CacheHitRate() float64 {
	total := s.CacheHits + s.CacheMisses
	if total == 0 {
		return 0
	}
	return float64(s.CacheHits) / float64(total)
}

// BuildEvent summarizes one completed centroidbuilder.Builder.Run call.
type BuildEvent struct {
	Tenant      string
	Tag         string
	State       string
	VectorCount int
}

// Recorder is the optional telemetry dependency engine.Engine and
// centroidbuilder.Builder accept, mirroring the teacher's
// search.Engine WithMetrics optional-dependency pattern: callers that don't
// want telemetry pass NopRecorder{} instead of nil-checking everywhere.
type Recorder interface {
	RecordSearch(event SearchEvent)
	RecordCacheHit()
	RecordCacheMiss()
	RecordBuild(event BuildEvent)
}

// NopRecorder discards every event.
type NopRecorder struct{}

func (NopRecorder) RecordSearch(SearchEvent) {}
func (NopRecorder) RecordCacheHit()          {}
func (NopRecorder) RecordCacheMiss()         {}
func (NopRecorder) RecordBuild(BuildEvent)   {}

var _ Recorder = NopRecorder{}

// Metrics is the in-memory Recorder implementation. Thread-safe.
type Metrics struct {
	mu sync.RWMutex

	queryTypes        map[QueryType]int64
	latencies         map[LatencyBucket]int64
	zeroResultQueries *CircularBuffer[time.Time]
	totalQueries      int64
	zeroResultCount   int64
	personalizedCount int64
	degradedCount     int64
	cacheHits         int64
	cacheMisses       int64
	buildsByState     map[string]int64
	startTime         time.Time
}

var _ Recorder = (*Metrics)(nil)

// New constructs an empty Metrics recorder.
func New() *Metrics {
	return &Metrics{
		queryTypes:        make(map[QueryType]int64),
		latencies:         make(map[LatencyBucket]int64),
		zeroResultQueries: NewCircularBuffer[time.Time](100),
		buildsByState:     make(map[string]int64),
		startTime:         time.Now(),
	}
}

// RecordSearch captures metrics from a completed search.
func (m *Metrics) RecordSearch(event SearchEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.queryTypes[event.QueryType]++
	m.totalQueries++
	m.latencies[LatencyToBucket(event.Latency)]++

	if event.IsZeroResult() {
		m.zeroResultQueries.Add(time.Now())
		m.zeroResultCount++
	}
	if event.PersonalizationApplied {
		m.personalizedCount++
	}
	if event.SourcesFailed > 0 {
		m.degradedCount++
	}
}

// RecordCacheHit records a centroid cache hit.
func (m *Metrics) RecordCacheHit() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cacheHits++
}

// RecordCacheMiss records a centroid cache miss.
func (m *Metrics) RecordCacheMiss() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cacheMisses++
}

// RecordBuild records the terminal state of a centroid build run.
func (m *Metrics) RecordBuild(event BuildEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buildsByState[event.State]++
}

// Snapshot returns a point-in-time copy of the accumulated metrics.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	queryTypes := make(map[QueryType]int64, len(m.queryTypes))
	for k, v := range m.queryTypes {
		queryTypes[k] = v
	}
	latencies := make(map[LatencyBucket]int64, len(m.latencies))
	for k, v := range m.latencies {
		latencies[k] = v
	}
	builds := make(map[string]int64, len(m.buildsByState))
	for k, v := range m.buildsByState {
		builds[k] = v
	}

	return Snapshot{
		QueryTypeCounts:     queryTypes,
		LatencyDistribution: latencies,
		TotalQueries:        m.totalQueries,
		ZeroResultCount:     m.zeroResultCount,
		PersonalizedCount:   m.personalizedCount,
		DegradedCount:       m.degradedCount,
		CacheHits:           m.cacheHits,
		CacheMisses:         m.cacheMisses,
		BuildsByState:       builds,
		Since:               m.startTime,
	}
}
