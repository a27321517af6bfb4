package fuse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-cerp/federated-retrieval/internal/retrieval"
)

func TestFuse_DocumentInBothListsRanksAboveSingleList(t *testing.T) {
	f := New(60, 1.2)
	vector := []retrieval.InternalHit{{DocID: "a", RankInSource: 1}, {DocID: "b", RankInSource: 2}}
	lexical := []retrieval.InternalHit{{DocID: "a", RankInSource: 1}}

	hits := f.Fuse(vector, lexical, nil, 10)
	require.Len(t, hits, 2)
	assert.Equal(t, "a", hits[0].ID)
	assert.Equal(t, 1, hits[0].FinalRank)
}

func TestFuse_ExternalBoostAppliesToExternalScore(t *testing.T) {
	f := New(60, 1.2)
	external := []retrieval.ExternalHit{{SrcID: "ext1", Score: 0.5, RankInSource: 1}}

	hits := f.Fuse(nil, nil, external, 10)
	require.Len(t, hits, 1)
	assert.InDelta(t, 0.6, hits[0].FusedScore, 1e-9)
	assert.Equal(t, retrieval.OriginExternal, hits[0].Origin)
}

func TestFuse_CrossOriginDuplicateIDsStayDistinct(t *testing.T) {
	f := New(60, 1.2)
	vector := []retrieval.InternalHit{{DocID: "dup", RankInSource: 1}}
	external := []retrieval.ExternalHit{{SrcID: "dup", Score: 0.9, RankInSource: 1}}

	hits := f.Fuse(vector, nil, external, 10)
	assert.Len(t, hits, 2)
}

func TestFuse_TruncatesToKTotal(t *testing.T) {
	f := New(60, 1.2)
	vector := []retrieval.InternalHit{
		{DocID: "a", RankInSource: 1},
		{DocID: "b", RankInSource: 2},
		{DocID: "c", RankInSource: 3},
	}
	hits := f.Fuse(vector, nil, nil, 2)
	assert.Len(t, hits, 2)
}

func TestFuse_EmptyInputsReturnEmpty(t *testing.T) {
	f := New(60, 1.2)
	hits := f.Fuse(nil, nil, nil, 10)
	assert.Empty(t, hits)
}

func TestFuse_TieBreaksByOriginPriorityThenID(t *testing.T) {
	// With a boost of 1.0, an external score of 1/61 equals a rank-1 RRF term
	// (k=60), so all four candidates tie on effective score.
	f := New(60, 1.0)
	external := []retrieval.ExternalHit{
		{SrcID: "z", Score: 1.0 / 61.0, RankInSource: 1},
		{SrcID: "y", Score: 1.0 / 61.0, RankInSource: 2},
	}
	vector := []retrieval.InternalHit{{DocID: "b", RankInSource: 1}}
	lexical := []retrieval.InternalHit{{DocID: "a", RankInSource: 1}}

	hits := f.Fuse(vector, lexical, external, 10)
	require.Len(t, hits, 4)
	assert.Equal(t, "y", hits[0].ID)
	assert.Equal(t, "z", hits[1].ID)
	assert.Equal(t, "b", hits[2].ID)
	assert.Equal(t, "a", hits[3].ID)
}

func TestFuse_FinalRanksAreSequentialAndUnique(t *testing.T) {
	f := New(60, 1.2)
	vector := []retrieval.InternalHit{
		{DocID: "a", RankInSource: 1},
		{DocID: "b", RankInSource: 2},
	}
	lexical := []retrieval.InternalHit{
		{DocID: "c", RankInSource: 1},
	}
	external := []retrieval.ExternalHit{
		{SrcID: "d", Score: 0.5, RankInSource: 1},
	}
	hits := f.Fuse(vector, lexical, external, 10)
	seen := map[int]bool{}
	for _, h := range hits {
		assert.False(t, seen[h.FinalRank])
		seen[h.FinalRank] = true
	}
	assert.Len(t, seen, len(hits))
}

func TestFuse_SourceAbsentIsSimplyOmitted(t *testing.T) {
	f := New(60, 1.2)
	lexical := []retrieval.InternalHit{{DocID: "only-lexical", RankInSource: 1}}
	hits := f.Fuse(nil, lexical, nil, 10)
	require.Len(t, hits, 1)
	assert.Equal(t, retrieval.OriginLexical, hits[0].Origin)
}

func TestFuse_SingleSourceDocScoresOneRRFTermOnly(t *testing.T) {
	f := New(60, 1.2)
	vector := []retrieval.InternalHit{{DocID: "a", RankInSource: 1}}

	hits := f.Fuse(vector, nil, nil, 10)
	require.Len(t, hits, 1)
	assert.InDelta(t, 1.0/61.0, hits[0].FusedScore, 1e-12)
	require.Len(t, hits[0].Contributions, 1)

	var contribSum float64
	for _, c := range hits[0].Contributions {
		contribSum += c.RRFTerm
	}
	assert.InDelta(t, hits[0].FusedScore, contribSum, 1e-12)
}
