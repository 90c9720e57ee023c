package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/colmap/pkg/override"
	"github.com/orneryd/colmap/pkg/similarity"
)

func TestLoadFromEnvDefaults(t *testing.T) {
	cfg := LoadFromEnv()

	assert.Equal(t, 0.6, cfg.Fuzzy.MinConfidence)
	assert.Equal(t, 10, cfg.Fuzzy.MaxResults)
	assert.Equal(t, 0.3, cfg.Fuzzy.WeightLevenshtein)
	assert.Equal(t, 0.15, cfg.Fuzzy.WeightSoundex)
	assert.True(t, cfg.Fuzzy.CacheEnabled)
	assert.Equal(t, 1000, cfg.Fuzzy.CacheSize)
	assert.False(t, cfg.Fuzzy.Explain)

	assert.Equal(t, string(override.HighestPriority), cfg.Override.Strategy)
	assert.Equal(t, 10, cfg.Override.MaxConflicts)

	assert.Equal(t, "./data", cfg.Store.DataDir)
	assert.False(t, cfg.Store.InMemory)

	assert.Equal(t, "info", cfg.Logging.Level)

	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("COLMAP_FUZZY_MIN_CONFIDENCE", "0.8")
	t.Setenv("COLMAP_FUZZY_MAX_RESULTS", "3")
	t.Setenv("COLMAP_FUZZY_CACHE_TTL", "5m")
	t.Setenv("COLMAP_OVERRIDE_STRATEGY", "most_specific")
	t.Setenv("COLMAP_STORE_IN_MEMORY", "true")
	t.Setenv("COLMAP_LOG_LEVEL", "debug")

	cfg := LoadFromEnv()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 0.8, cfg.Fuzzy.MinConfidence)
	assert.Equal(t, 3, cfg.Fuzzy.MaxResults)
	assert.Equal(t, 5*time.Minute, cfg.Fuzzy.CacheTTL)
	assert.Equal(t, string(override.MostSpecific), cfg.Override.Strategy)
	assert.True(t, cfg.Store.InMemory)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromEnvIgnoresMalformedValues(t *testing.T) {
	t.Setenv("COLMAP_FUZZY_MIN_CONFIDENCE", "not-a-number")
	t.Setenv("COLMAP_FUZZY_CACHE_ENABLED", "definitely")
	t.Setenv("COLMAP_FUZZY_CACHE_TTL", "sometime")

	cfg := LoadFromEnv()
	assert.Equal(t, 0.6, cfg.Fuzzy.MinConfidence)
	assert.True(t, cfg.Fuzzy.CacheEnabled)
	assert.Equal(t, time.Duration(0), cfg.Fuzzy.CacheTTL)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"confidence above one", func(c *Config) { c.Fuzzy.MinConfidence = 1.5 }},
		{"negative confidence", func(c *Config) { c.Fuzzy.MinConfidence = -0.1 }},
		{"zero max results", func(c *Config) { c.Fuzzy.MaxResults = 0 }},
		{"negative weight", func(c *Config) { c.Fuzzy.WeightNGram = -1 }},
		{"zero cache size", func(c *Config) { c.Fuzzy.CacheSize = 0 }},
		{"unknown strategy", func(c *Config) { c.Override.Strategy = "coin_flip" }},
		{"zero override cache", func(c *Config) { c.Override.CacheSize = 0 }},
		{"missing data dir", func(c *Config) { c.Store.DataDir = "" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := LoadFromEnv()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestFuzzyConfigConversion(t *testing.T) {
	cfg := LoadFromEnv()
	cfg.Fuzzy.WeightJaroWinkler = 0.45

	fc := cfg.FuzzyConfig()
	assert.Equal(t, cfg.Fuzzy.MinConfidence, fc.MinConfidence)
	assert.Equal(t, 0.45, fc.Weights[similarity.JaroWinkler])
	assert.Equal(t, 0.3, fc.Weights[similarity.Levenshtein])
	assert.Equal(t, 0.25, fc.Weights[similarity.Ngram])
	assert.Equal(t, 0.15, fc.Weights[similarity.Soundex])
	assert.Equal(t, cfg.Fuzzy.CacheSize, fc.CacheSize)

	// Every algorithm kind must carry a weight, or the matcher would
	// silently drop it from the ensemble.
	for _, kind := range similarity.Kinds() {
		assert.Contains(t, fc.Weights, kind)
	}
}

func TestEngineOptionsConversion(t *testing.T) {
	cfg := LoadFromEnv()
	cfg.Override.Strategy = string(override.MostRecent)
	cfg.Override.MaxConflicts = 4

	opts := cfg.EngineOptions()
	assert.Equal(t, override.MostRecent, opts.Strategy)
	assert.Equal(t, 4, opts.MaxConflictsReported)
	assert.Equal(t, cfg.Override.CacheSize, opts.CacheSize)
}
