package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCircularBuffer_MaintainsCapacity(t *testing.T) {
	buf := NewCircularBuffer[string](3)
	buf.Add("a")
	buf.Add("b")
	buf.Add("c")
	buf.Add("d")

	items := buf.Items()
	assert.Equal(t, []string{"b", "c", "d"}, items)
	assert.Equal(t, 3, buf.Size())
}

func TestLatencyToBucket(t *testing.T) {
	cases := map[time.Duration]LatencyBucket{
		5 * time.Millisecond:   BucketP10,
		30 * time.Millisecond:  BucketP50,
		80 * time.Millisecond:  BucketP100,
		300 * time.Millisecond: BucketP500,
		900 * time.Millisecond: BucketP1000,
	}
	for d, want := range cases {
		assert.Equal(t, want, LatencyToBucket(d))
	}
}

func TestMetrics_RecordSearch_AccumulatesCounts(t *testing.T) {
	m := New()
	m.RecordSearch(SearchEvent{QueryType: QueryTypeMixed, ResultCount: 5, Latency: 20 * time.Millisecond})
	m.RecordSearch(SearchEvent{QueryType: QueryTypeMixed, ResultCount: 0, Latency: 5 * time.Millisecond})
	m.RecordSearch(SearchEvent{QueryType: QueryTypeInternalOnly, ResultCount: 3, Latency: 600 * time.Millisecond, PersonalizationApplied: true, SourcesFailed: 1})

	snap := m.Snapshot()
	assert.EqualValues(t, 3, snap.TotalQueries)
	assert.EqualValues(t, 2, snap.QueryTypeCounts[QueryTypeMixed])
	assert.EqualValues(t, 1, snap.QueryTypeCounts[QueryTypeInternalOnly])
	assert.EqualValues(t, 1, snap.ZeroResultCount)
	assert.EqualValues(t, 1, snap.PersonalizedCount)
	assert.EqualValues(t, 1, snap.DegradedCount)
	assert.EqualValues(t, 1, snap.LatencyDistribution[BucketP50])
	assert.EqualValues(t, 1, snap.LatencyDistribution[BucketP10])
	assert.EqualValues(t, 1, snap.LatencyDistribution[BucketP1000])
}

func TestMetrics_CacheHitRate(t *testing.T) {
	m := New()
	m.RecordCacheHit()
	m.RecordCacheHit()
	m.RecordCacheHit()
	m.RecordCacheMiss()

	snap := m.Snapshot()
	assert.EqualValues(t, 3, snap.CacheHits)
	assert.EqualValues(t, 1, snap.CacheMisses)
	assert.InDelta(t, 0.75, snap.CacheHitRate(), 1e-9)
}

func TestSnapshot_CacheHitRate_ZeroWhenNoSamples(t *testing.T) {
	var s Snapshot
	assert.Equal(t, 0.0, s.CacheHitRate())
}

func TestNopRecorder_DiscardsEverything(t *testing.T) {
	var r Recorder = NopRecorder{}
	r.RecordSearch(SearchEvent{ResultCount: 0})
	r.RecordCacheHit()
	r.RecordCacheMiss()
	r.RecordBuild(BuildEvent{State: "idle"})
}

func TestMetrics_RecordBuild_TalliesByState(t *testing.T) {
	m := New()
	m.RecordBuild(BuildEvent{Tenant: "t1", Tag: "code", State: "idle", VectorCount: 500})
	m.RecordBuild(BuildEvent{Tenant: "t1", Tag: "docs", State: "degenerate", VectorCount: 2})
	m.RecordBuild(BuildEvent{Tenant: "t2", Tag: "code", State: "idle", VectorCount: 10})

	snap := m.Snapshot()
	assert.EqualValues(t, 2, snap.BuildsByState["idle"])
	assert.EqualValues(t, 1, snap.BuildsByState["degenerate"])
}
