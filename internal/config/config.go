// Package config loads federated retrieval engine configuration from a YAML
// file, then overlays RETRIEVAL_*-prefixed environment variables — the same
// two-tier precedence the teacher codebase uses for its own config
// (file defaults, env vars win), see EngineConfig.applyEnvOverrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EngineConfig holds every configuration knob named in spec.md §6, plus the
// knobs resolved from spec.md §9's Open Questions.
type EngineConfig struct {
	EmbeddingDimension int `yaml:"embedding_dimension" json:"embedding_dimension"`

	DefaultAlpha float64 `yaml:"default_alpha" json:"default_alpha"`
	MinAlpha     float64 `yaml:"min_alpha" json:"min_alpha"`
	MaxAlpha     float64 `yaml:"max_alpha" json:"max_alpha"`

	DefaultKTotal int `yaml:"default_k_total" json:"default_k_total"`
	MaxKTotal     int `yaml:"max_k_total" json:"max_k_total"`

	RRFKParameter int `yaml:"rrf_k_parameter" json:"rrf_k_parameter"`

	// CentroidTTL and CentroidCacheTTL are duration strings ("168h", "5m"),
	// parsed on demand rather than stored as time.Duration so the struct
	// round-trips through YAML the way the teacher's own duration fields do.
	CentroidTTL      string `yaml:"centroid_ttl" json:"centroid_ttl"`
	CentroidCacheTTL string `yaml:"centroid_cache_ttl" json:"centroid_cache_ttl"`

	MinVectorsForCentroid int `yaml:"min_vectors_for_centroid" json:"min_vectors_for_centroid"`
	MaxVectorsForCentroid int `yaml:"max_vectors_for_centroid" json:"max_vectors_for_centroid"`

	TagInferenceMethod string `yaml:"tag_inference_method" json:"tag_inference_method"`

	RequestDeadline string `yaml:"request_deadline" json:"request_deadline"`

	// ExternalBoost is the multiplier applied to external-doc effective
	// scores during fusion (spec §4.F, §9 Open Question — made configurable,
	// defaulting to the value the original used).
	ExternalBoost float64 `yaml:"external_boost" json:"external_boost"`

	// BuildBatchSize is the centroid builder's streaming batch size (spec §4.H).
	BuildBatchSize int `yaml:"build_batch_size" json:"build_batch_size"`

	// CentroidCacheSize bounds the in-process LRU cache entry count (spec §4.B).
	CentroidCacheSize int `yaml:"centroid_cache_size" json:"centroid_cache_size"`

	// MaxConcurrentSources bounds concurrent source calls per engine (spec §5).
	// Zero means "derive from runtime.NumCPU() * 2" at engine construction.
	MaxConcurrentSources int `yaml:"max_concurrent_sources" json:"max_concurrent_sources"`
}

// Default returns the spec's documented defaults.
func Default() EngineConfig {
	return EngineConfig{
		EmbeddingDimension:     768,
		DefaultAlpha:           0.25,
		MinAlpha:               0,
		MaxAlpha:               1,
		DefaultKTotal:          10,
		MaxKTotal:              100,
		RRFKParameter:          60,
		CentroidTTL:            "168h", // 7 days
		CentroidCacheTTL:       "5m",
		MinVectorsForCentroid:  10,
		MaxVectorsForCentroid:  10000,
		TagInferenceMethod:     "keyword_table",
		RequestDeadline:        "2s",
		ExternalBoost:          1.2,
		BuildBatchSize:         1000,
		CentroidCacheSize:      10000,
		MaxConcurrentSources:   0,
	}
}

// Validate checks internal consistency of the configuration.
func (c EngineConfig) Validate() error {
	if c.EmbeddingDimension <= 0 {
		return fmt.Errorf("embedding_dimension must be positive, got %d", c.EmbeddingDimension)
	}
	if c.MinAlpha < 0 || c.MaxAlpha > 1 || c.MinAlpha > c.MaxAlpha {
		return fmt.Errorf("min_alpha/max_alpha must satisfy 0 <= min <= max <= 1, got %f/%f", c.MinAlpha, c.MaxAlpha)
	}
	if c.DefaultAlpha < c.MinAlpha || c.DefaultAlpha > c.MaxAlpha {
		return fmt.Errorf("default_alpha %f outside [min_alpha, max_alpha] = [%f, %f]", c.DefaultAlpha, c.MinAlpha, c.MaxAlpha)
	}
	if c.MaxKTotal <= 0 {
		return fmt.Errorf("max_k_total must be positive, got %d", c.MaxKTotal)
	}
	if c.DefaultKTotal <= 0 || c.DefaultKTotal > c.MaxKTotal {
		return fmt.Errorf("default_k_total must be in (0, max_k_total], got %d", c.DefaultKTotal)
	}
	if c.RRFKParameter <= 0 {
		return fmt.Errorf("rrf_k_parameter must be positive, got %d", c.RRFKParameter)
	}
	if c.MinVectorsForCentroid <= 0 || c.MaxVectorsForCentroid < c.MinVectorsForCentroid {
		return fmt.Errorf("min_vectors_for_centroid/max_vectors_for_centroid misconfigured: %d/%d", c.MinVectorsForCentroid, c.MaxVectorsForCentroid)
	}
	if _, err := c.CentroidTTLDuration(); err != nil {
		return fmt.Errorf("centroid_ttl: %w", err)
	}
	if _, err := c.CentroidCacheTTLDuration(); err != nil {
		return fmt.Errorf("centroid_cache_ttl: %w", err)
	}
	if _, err := c.RequestDeadlineDuration(); err != nil {
		return fmt.Errorf("request_deadline: %w", err)
	}
	return nil
}

// CentroidTTLDuration parses CentroidTTL, defaulting to 168h on empty string.
func (c EngineConfig) CentroidTTLDuration() (time.Duration, error) {
	return parseDurationOr(c.CentroidTTL, 168*time.Hour)
}

// CentroidCacheTTLDuration parses CentroidCacheTTL, defaulting to 5m.
func (c EngineConfig) CentroidCacheTTLDuration() (time.Duration, error) {
	return parseDurationOr(c.CentroidCacheTTL, 5*time.Minute)
}

// RequestDeadlineDuration parses RequestDeadline, defaulting to 2s.
func (c EngineConfig) RequestDeadlineDuration() (time.Duration, error) {
	return parseDurationOr(c.RequestDeadline, 2*time.Second)
}

func parseDurationOr(s string, fallback time.Duration) (time.Duration, error) {
	if s == "" {
		return fallback, nil
	}
	return time.ParseDuration(s)
}

// Load reads YAML configuration from path, falling back to Default() for
// any zero-valued field, then applies RETRIEVAL_*-prefixed environment
// overrides. An empty path skips the file and returns defaults plus env
// overrides.
func Load(path string) (EngineConfig, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return EngineConfig{}, fmt.Errorf("reading config file: %w", err)
		}
		var fromFile EngineConfig
		if err := yaml.Unmarshal(data, &fromFile); err != nil {
			return EngineConfig{}, fmt.Errorf("parsing config file: %w", err)
		}
		cfg.mergeNonZero(fromFile)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return EngineConfig{}, err
	}
	return cfg, nil
}

// mergeNonZero overlays any non-zero-valued field of other onto c.
func (c *EngineConfig) mergeNonZero(other EngineConfig) {
	if other.EmbeddingDimension != 0 {
		c.EmbeddingDimension = other.EmbeddingDimension
	}
	if other.DefaultAlpha != 0 {
		c.DefaultAlpha = other.DefaultAlpha
	}
	if other.MinAlpha != 0 {
		c.MinAlpha = other.MinAlpha
	}
	if other.MaxAlpha != 0 {
		c.MaxAlpha = other.MaxAlpha
	}
	if other.DefaultKTotal != 0 {
		c.DefaultKTotal = other.DefaultKTotal
	}
	if other.MaxKTotal != 0 {
		c.MaxKTotal = other.MaxKTotal
	}
	if other.RRFKParameter != 0 {
		c.RRFKParameter = other.RRFKParameter
	}
	if other.CentroidTTL != "" {
		c.CentroidTTL = other.CentroidTTL
	}
	if other.CentroidCacheTTL != "" {
		c.CentroidCacheTTL = other.CentroidCacheTTL
	}
	if other.MinVectorsForCentroid != 0 {
		c.MinVectorsForCentroid = other.MinVectorsForCentroid
	}
	if other.MaxVectorsForCentroid != 0 {
		c.MaxVectorsForCentroid = other.MaxVectorsForCentroid
	}
	if other.TagInferenceMethod != "" {
		c.TagInferenceMethod = other.TagInferenceMethod
	}
	if other.RequestDeadline != "" {
		c.RequestDeadline = other.RequestDeadline
	}
	if other.ExternalBoost != 0 {
		c.ExternalBoost = other.ExternalBoost
	}
	if other.BuildBatchSize != 0 {
		c.BuildBatchSize = other.BuildBatchSize
	}
	if other.CentroidCacheSize != 0 {
		c.CentroidCacheSize = other.CentroidCacheSize
	}
	if other.MaxConcurrentSources != 0 {
		c.MaxConcurrentSources = other.MaxConcurrentSources
	}
}

// applyEnvOverrides applies RETRIEVAL_* environment variable overrides,
// highest precedence (mirrors the teacher's AMANMCP_* env override rule).
func (c *EngineConfig) applyEnvOverrides() {
	if v := os.Getenv("RETRIEVAL_DEFAULT_ALPHA"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.DefaultAlpha = f
		}
	}
	if v := os.Getenv("RETRIEVAL_MIN_ALPHA"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.MinAlpha = f
		}
	}
	if v := os.Getenv("RETRIEVAL_MAX_ALPHA"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.MaxAlpha = f
		}
	}
	if v := os.Getenv("RETRIEVAL_MAX_K_TOTAL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.MaxKTotal = n
		}
	}
	if v := os.Getenv("RETRIEVAL_RRF_K_PARAMETER"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.RRFKParameter = n
		}
	}
	if v := os.Getenv("RETRIEVAL_CENTROID_TTL"); v != "" {
		c.CentroidTTL = v
	}
	if v := os.Getenv("RETRIEVAL_CENTROID_CACHE_TTL"); v != "" {
		c.CentroidCacheTTL = v
	}
	if v := os.Getenv("RETRIEVAL_REQUEST_DEADLINE"); v != "" {
		c.RequestDeadline = v
	}
	if v := os.Getenv("RETRIEVAL_EXTERNAL_BOOST"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.ExternalBoost = f
		}
	}
	if v := os.Getenv("RETRIEVAL_TAG_INFERENCE_METHOD"); v != "" {
		c.TagInferenceMethod = v
	}
}

// ClampAlpha clamps a caller-supplied alpha into [MinAlpha, MaxAlpha].
func (c EngineConfig) ClampAlpha(alpha float64) float64 {
	if alpha < c.MinAlpha {
		return c.MinAlpha
	}
	if alpha > c.MaxAlpha {
		return c.MaxAlpha
	}
	return alpha
}

// ClampKTotal clamps a caller-supplied k_total into [1, MaxKTotal], reporting
// whether clamping occurred (spec §8 boundary behavior).
func (c EngineConfig) ClampKTotal(k int) (clamped int, wasClamped bool) {
	if k < 1 {
		return 1, true
	}
	if k > c.MaxKTotal {
		return c.MaxKTotal, true
	}
	return k, false
}

// String renders the config for logs with no sensitive fields to redact —
// unlike the teacher's Secret wrapper, this config carries no credentials.
func (c EngineConfig) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "EngineConfig{dim=%d default_alpha=%.2f k_total=[%d,%d] rrf_k=%d centroid_ttl=%s cache_ttl=%s external_boost=%.2f}",
		c.EmbeddingDimension, c.DefaultAlpha, c.DefaultKTotal, c.MaxKTotal, c.RRFKParameter, c.CentroidTTL, c.CentroidCacheTTL, c.ExternalBoost)
	return b.String()
}
