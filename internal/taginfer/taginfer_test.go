package taginfer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfer_EmptyQueryReturnsDefault(t *testing.T) {
	inf := Default()
	assert.Equal(t, DefaultTag, inf.Infer(""))
	assert.Equal(t, DefaultTag, inf.Infer("   "))
}

func TestInfer_NoMatchReturnsDefault(t *testing.T) {
	inf := Default()
	assert.Equal(t, DefaultTag, inf.Infer("the quick brown fox"))
}

func TestInfer_SingleRuleMatch(t *testing.T) {
	inf := Default()
	assert.Equal(t, "code", inf.Infer("why does this function throw an exception"))
}

func TestInfer_TieBreaksToEarliestDeclaredRule(t *testing.T) {
	inf := New([]Rule{
		{Tag: "first", Keywords: []string{"alpha"}},
		{Tag: "second", Keywords: []string{"alpha"}},
	})
	assert.Equal(t, "first", inf.Infer("alpha"))
}

func TestInfer_HigherScoreWins(t *testing.T) {
	inf := New([]Rule{
		{Tag: "low", Keywords: []string{"alpha"}},
		{Tag: "high", Keywords: []string{"alpha", "beta", "gamma"}},
	})
	assert.Equal(t, "high", inf.Infer("alpha beta gamma"))
}

func TestInfer_CaseInsensitive(t *testing.T) {
	inf := Default()
	assert.Equal(t, "config", inf.Infer("CONFIGURATION file missing"))
}

func TestInfer_IsDeterministicAcrossCalls(t *testing.T) {
	inf := Default()
	q := "deploy rollback incident"
	first := inf.Infer(q)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, inf.Infer(q))
	}
}
