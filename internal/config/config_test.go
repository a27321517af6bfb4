package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.Validate())
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().EmbeddingDimension, cfg.EmbeddingDimension)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "default_alpha: 0.4\nmax_k_total: 50\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.4, cfg.DefaultAlpha)
	assert.Equal(t, 50, cfg.MaxKTotal)
	// unspecified fields keep their defaults
	assert.Equal(t, Default().EmbeddingDimension, cfg.EmbeddingDimension)
}

func TestLoad_MissingFileErrors(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}

func TestApplyEnvOverrides_WinsOverFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("default_alpha: 0.4\n"), 0o644))

	t.Setenv("RETRIEVAL_DEFAULT_ALPHA", "0.7")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.7, cfg.DefaultAlpha)
}

func TestValidate_RejectsAlphaOutOfRange(t *testing.T) {
	cfg := Default()
	cfg.DefaultAlpha = 1.5
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsInvertedKTotalBounds(t *testing.T) {
	cfg := Default()
	cfg.DefaultKTotal = 200
	cfg.MaxKTotal = 100
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsBadDuration(t *testing.T) {
	cfg := Default()
	cfg.CentroidTTL = "not-a-duration"
	assert.Error(t, cfg.Validate())
}

func TestClampAlpha(t *testing.T) {
	cfg := Default()
	assert.Equal(t, cfg.MinAlpha, cfg.ClampAlpha(-1))
	assert.Equal(t, cfg.MaxAlpha, cfg.ClampAlpha(5))
	assert.Equal(t, 0.5, cfg.ClampAlpha(0.5))
}

func TestClampKTotal(t *testing.T) {
	cfg := Default()
	k, clamped := cfg.ClampKTotal(0)
	assert.Equal(t, 1, k)
	assert.True(t, clamped)

	k, clamped = cfg.ClampKTotal(cfg.MaxKTotal + 50)
	assert.Equal(t, cfg.MaxKTotal, k)
	assert.True(t, clamped)

	k, clamped = cfg.ClampKTotal(5)
	assert.Equal(t, 5, k)
	assert.False(t, clamped)
}

func TestCentroidTTLDuration_DefaultsOnEmpty(t *testing.T) {
	cfg := Default()
	cfg.CentroidTTL = ""
	d, err := cfg.CentroidTTLDuration()
	require.NoError(t, err)
	assert.Equal(t, 168*60*60*1e9, float64(d))
}
