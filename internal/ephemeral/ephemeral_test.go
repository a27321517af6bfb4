package ephemeral

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-cerp/federated-retrieval/internal/retrieval"
)

type fakeEmbedder struct {
	vec retrieval.Embedding
	err error
}

func (f fakeEmbedder) Embed(_ context.Context, _ string) (retrieval.Embedding, error) {
	return f.vec, f.err
}

func TestScore_NoQueryVecUsesBasePriorityOnly(t *testing.T) {
	s := New(nil)
	docs := []retrieval.ExternalDoc{
		{SrcID: "a", Text: "hello world", Priority: 0.9},
		{SrcID: "b", Text: "goodbye", Priority: 0.2},
	}
	hits := s.Score(context.Background(), "hello", nil, docs)
	require.Len(t, hits, 2)
	assert.Equal(t, "a", hits[0].SrcID)
	assert.Equal(t, 1, hits[0].RankInSource)
	assert.Equal(t, 2, hits[1].RankInSource)
}

func TestScore_PositionPenaltyBreaksTiesOnEqualPriority(t *testing.T) {
	s := New(nil)
	docs := []retrieval.ExternalDoc{
		{SrcID: "first", Text: "x", Priority: 0.5},
		{SrcID: "second", Text: "x", Priority: 0.5},
	}
	hits := s.Score(context.Background(), "", nil, docs)
	assert.Equal(t, "first", hits[0].SrcID)
	assert.Equal(t, "second", hits[1].SrcID)
}

func TestScore_SemanticSimilarityBoostsScore(t *testing.T) {
	embedder := fakeEmbedder{vec: retrieval.Embedding{1, 0}}
	s := New(embedder)
	docs := []retrieval.ExternalDoc{{SrcID: "a", Text: "anything", Priority: 0.1}}
	queryVec := retrieval.Embedding{1, 0}
	hits := s.Score(context.Background(), "", queryVec, docs)
	require.Len(t, hits, 1)
	assert.Greater(t, hits[0].Score, 0.1)
}

func TestScore_EmbeddingFailureDegradesGracefully(t *testing.T) {
	embedder := fakeEmbedder{err: errors.New("embedding unavailable")}
	s := New(embedder)
	docs := []retrieval.ExternalDoc{
		{SrcID: "a", Text: "x", Priority: 0.5},
		{SrcID: "b", Text: "x", Priority: 0.3},
	}
	queryVec := retrieval.Embedding{1, 0}
	hits := s.Score(context.Background(), "x", queryVec, docs)
	require.Len(t, hits, 2)
	// no panic, still ranked, degraded to lexical/base-only scoring
	assert.Equal(t, "a", hits[0].SrcID)
}

func TestScore_LexicalOverlapContributesToScore(t *testing.T) {
	s := New(nil)
	docs := []retrieval.ExternalDoc{
		{SrcID: "match", Text: "deploy rollback incident", Priority: 0.1},
		{SrcID: "nomatch", Text: "unrelated text entirely", Priority: 0.1},
	}
	hits := s.Score(context.Background(), "deploy rollback", nil, docs)
	var matchScore, nomatchScore float64
	for _, h := range hits {
		if h.SrcID == "match" {
			matchScore = h.Score
		} else {
			nomatchScore = h.Score
		}
	}
	assert.Greater(t, matchScore, nomatchScore)
}

func TestScore_EmptyDocsReturnsEmpty(t *testing.T) {
	s := New(nil)
	hits := s.Score(context.Background(), "q", nil, nil)
	assert.Empty(t, hits)
}

func TestScore_ScoreNeverExceedsOne(t *testing.T) {
	embedder := fakeEmbedder{vec: retrieval.Embedding{1, 0}}
	s := New(embedder)
	docs := []retrieval.ExternalDoc{{SrcID: "a", Text: "x", Priority: 1.0}}
	queryVec := retrieval.Embedding{1, 0}
	hits := s.Score(context.Background(), "x", queryVec, docs)
	require.Len(t, hits, 1)
	assert.LessOrEqual(t, hits[0].Score, 1.0)
}
