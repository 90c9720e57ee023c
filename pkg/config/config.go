// Package config provides environment-based configuration.
//
// All settings are read from COLMAP_-prefixed environment variables with
// sensible defaults, so a bare process starts with a working configuration.
//
// Example Usage:
//
//	cfg := config.LoadFromEnv()
//	if err := cfg.Validate(); err != nil {
//		log.Fatalf("configuration error: %v", err)
//	}
//	matcher := fuzzy.NewMatcher(cfg.FuzzyConfig())
//	engine := override.NewEngine(cfg.EngineOptions())
//
// Environment Variables:
//
//	Fuzzy matching:
//	- COLMAP_FUZZY_MIN_CONFIDENCE=0.6
//	- COLMAP_FUZZY_MAX_RESULTS=10
//	- COLMAP_FUZZY_WEIGHT_LEVENSHTEIN=0.3
//	- COLMAP_FUZZY_WEIGHT_JARO_WINKLER=0.3
//	- COLMAP_FUZZY_WEIGHT_NGRAM=0.25
//	- COLMAP_FUZZY_WEIGHT_SOUNDEX=0.15
//	- COLMAP_FUZZY_CACHE_ENABLED=true
//	- COLMAP_FUZZY_CACHE_SIZE=1000
//	- COLMAP_FUZZY_CACHE_TTL=0
//	- COLMAP_FUZZY_EXPLAIN=false
//
//	Override engine:
//	- COLMAP_OVERRIDE_CACHE_SIZE=1000
//	- COLMAP_OVERRIDE_CACHE_TTL=0
//	- COLMAP_OVERRIDE_STRATEGY=highest_priority
//	- COLMAP_OVERRIDE_MAX_CONFLICTS=10
//
//	Rule store:
//	- COLMAP_STORE_DATA_DIR="./data"
//	- COLMAP_STORE_IN_MEMORY=false
//	- COLMAP_STORE_SYNC_WRITES=false
//
//	Logging:
//	- COLMAP_LOG_LEVEL=info
//
// Configuration Priority:
//  1. Environment variables (highest)
//  2. Default values (if env var not set)
//  3. No config files (environment-only by design)
//
// Thread Safety:
//
//	LoadFromEnv reads environment variables which are process-global and
//	should not be modified after startup. The returned Config is immutable.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/orneryd/colmap/pkg/fuzzy"
	"github.com/orneryd/colmap/pkg/override"
	"github.com/orneryd/colmap/pkg/similarity"
)

// Config holds the complete process configuration.
type Config struct {
	Fuzzy    FuzzySettings
	Override OverrideSettings
	Store    StoreSettings
	Logging  LoggingSettings
}

// FuzzySettings configures the ensemble matcher.
type FuzzySettings struct {
	// MinConfidence is the threshold below which matches are discarded.
	MinConfidence float64
	// MaxResults caps how many candidates a batch match returns.
	MaxResults int
	// WeightLevenshtein through WeightSoundex set the per-algorithm
	// ensemble weights. A zero weight disables the algorithm.
	WeightLevenshtein float64
	WeightJaroWinkler float64
	WeightNGram       float64
	WeightSoundex     float64
	CacheEnabled      bool
	CacheSize         int
	CacheTTL          time.Duration
	// Explain attaches per-algorithm breakdowns to every result.
	Explain bool
}

// OverrideSettings configures the override engine.
type OverrideSettings struct {
	CacheSize    int
	CacheTTL     time.Duration
	Strategy     string
	MaxConflicts int
}

// StoreSettings configures the persistent rule store.
type StoreSettings struct {
	DataDir    string
	InMemory   bool
	SyncWrites bool
}

// LoggingSettings configures process logging.
type LoggingSettings struct {
	Level string
}

// LoadFromEnv builds a Config from environment variables, falling back to
// defaults for anything unset.
func LoadFromEnv() *Config {
	config := &Config{}

	// Fuzzy matching
	config.Fuzzy.MinConfidence = getEnvFloat("COLMAP_FUZZY_MIN_CONFIDENCE", 0.6)
	config.Fuzzy.MaxResults = getEnvInt("COLMAP_FUZZY_MAX_RESULTS", 10)
	config.Fuzzy.WeightLevenshtein = getEnvFloat("COLMAP_FUZZY_WEIGHT_LEVENSHTEIN", 0.3)
	config.Fuzzy.WeightJaroWinkler = getEnvFloat("COLMAP_FUZZY_WEIGHT_JARO_WINKLER", 0.3)
	config.Fuzzy.WeightNGram = getEnvFloat("COLMAP_FUZZY_WEIGHT_NGRAM", 0.25)
	config.Fuzzy.WeightSoundex = getEnvFloat("COLMAP_FUZZY_WEIGHT_SOUNDEX", 0.15)
	config.Fuzzy.CacheEnabled = getEnvBool("COLMAP_FUZZY_CACHE_ENABLED", true)
	config.Fuzzy.CacheSize = getEnvInt("COLMAP_FUZZY_CACHE_SIZE", 1000)
	config.Fuzzy.CacheTTL = getEnvDuration("COLMAP_FUZZY_CACHE_TTL", 0)
	config.Fuzzy.Explain = getEnvBool("COLMAP_FUZZY_EXPLAIN", false)

	// Override engine
	config.Override.CacheSize = getEnvInt("COLMAP_OVERRIDE_CACHE_SIZE", 1000)
	config.Override.CacheTTL = getEnvDuration("COLMAP_OVERRIDE_CACHE_TTL", 0)
	config.Override.Strategy = getEnv("COLMAP_OVERRIDE_STRATEGY", string(override.HighestPriority))
	config.Override.MaxConflicts = getEnvInt("COLMAP_OVERRIDE_MAX_CONFLICTS", 10)

	// Rule store
	config.Store.DataDir = getEnv("COLMAP_STORE_DATA_DIR", "./data")
	config.Store.InMemory = getEnvBool("COLMAP_STORE_IN_MEMORY", false)
	config.Store.SyncWrites = getEnvBool("COLMAP_STORE_SYNC_WRITES", false)

	// Logging
	config.Logging.Level = getEnv("COLMAP_LOG_LEVEL", "info")

	return config
}

// Validate checks the configuration for logical errors and invalid values.
//
// Call Validate() after LoadFromEnv() and before using the Config.
func (c *Config) Validate() error {
	if c.Fuzzy.MinConfidence < 0 || c.Fuzzy.MinConfidence > 1 {
		return fmt.Errorf("fuzzy min confidence must be in [0, 1], got %v", c.Fuzzy.MinConfidence)
	}
	if c.Fuzzy.MaxResults <= 0 {
		return fmt.Errorf("fuzzy max results must be positive, got %d", c.Fuzzy.MaxResults)
	}
	for name, w := range map[string]float64{
		"levenshtein":  c.Fuzzy.WeightLevenshtein,
		"jaro_winkler": c.Fuzzy.WeightJaroWinkler,
		"ngram":        c.Fuzzy.WeightNGram,
		"soundex":      c.Fuzzy.WeightSoundex,
	} {
		if w < 0 {
			return fmt.Errorf("fuzzy weight %s must not be negative, got %v", name, w)
		}
	}
	if c.Fuzzy.CacheEnabled && c.Fuzzy.CacheSize <= 0 {
		return fmt.Errorf("fuzzy cache size must be positive, got %d", c.Fuzzy.CacheSize)
	}

	switch override.Strategy(c.Override.Strategy) {
	case override.HighestPriority, override.MostRecent, override.MostSpecific,
		override.Combine, override.ReportAndFallback:
	default:
		return fmt.Errorf("unknown override strategy: %q", c.Override.Strategy)
	}
	if c.Override.CacheSize <= 0 {
		return fmt.Errorf("override cache size must be positive, got %d", c.Override.CacheSize)
	}
	if c.Override.MaxConflicts < 0 {
		return fmt.Errorf("override max conflicts must not be negative, got %d", c.Override.MaxConflicts)
	}

	if !c.Store.InMemory && c.Store.DataDir == "" {
		return fmt.Errorf("store data dir is required unless running in memory")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error", "DEBUG", "INFO", "WARN", "ERROR":
	default:
		return fmt.Errorf("invalid log level: %q", c.Logging.Level)
	}

	return nil
}

// FuzzyConfig converts the fuzzy section into a matcher configuration.
func (c *Config) FuzzyConfig() fuzzy.Config {
	return fuzzy.Config{
		MinConfidence: c.Fuzzy.MinConfidence,
		MaxResults:    c.Fuzzy.MaxResults,
		Weights: map[similarity.Kind]float64{
			similarity.Levenshtein: c.Fuzzy.WeightLevenshtein,
			similarity.JaroWinkler: c.Fuzzy.WeightJaroWinkler,
			similarity.Ngram:       c.Fuzzy.WeightNGram,
			similarity.Soundex:     c.Fuzzy.WeightSoundex,
		},
		EnableCache:         c.Fuzzy.CacheEnabled,
		CacheSize:           c.Fuzzy.CacheSize,
		CacheTTL:            c.Fuzzy.CacheTTL,
		IncludeExplanations: c.Fuzzy.Explain,
	}
}

// EngineOptions converts the override section into engine options.
func (c *Config) EngineOptions() override.EngineOptions {
	return override.EngineOptions{
		CacheSize:            c.Override.CacheSize,
		CacheTTL:             c.Override.CacheTTL,
		Strategy:             override.Strategy(c.Override.Strategy),
		MaxConflictsReported: c.Override.MaxConflicts,
	}
}

// String returns a representation of the Config safe for logging.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{MinConfidence: %v, Strategy: %s, DataDir: %s, InMemory: %v, LogLevel: %s}",
		c.Fuzzy.MinConfidence,
		c.Override.Strategy,
		c.Store.DataDir,
		c.Store.InMemory,
		c.Logging.Level,
	)
}

// Helper functions for environment variable parsing

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
