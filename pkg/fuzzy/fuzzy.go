// Package fuzzy implements the weighted-ensemble fuzzy matching engine.
//
// The matcher combines the similarity algorithms from pkg/similarity, the
// text preprocessor from pkg/text, and an LRU result cache. Each enabled
// algorithm contributes a weighted term; overall confidence is the weighted
// mean of the raw scores.
//
// Resolution for a (source, target) pair proceeds in order: verbatim
// equality, cache probe, equality after preprocessing, then the algorithm
// ensemble. Batch queries against large target pools narrow the scoring set
// with a length and first-character index before scoring.
//
// Example:
//
//	m := fuzzy.NewMatcher(fuzzy.ColumnProfile())
//	results := m.FindMatches("Assett ID", []string{"Asset ID", "Asset Name"})
//	// results[0].Target == "Asset ID", results[0].Confidence > 0.8
package fuzzy

import (
	"encoding/binary"
	"hash/fnv"
	"math"
	"time"

	"github.com/orneryd/colmap/pkg/similarity"
)

// Config controls matcher behavior.
//
// Algorithms appear in the ensemble only if their Kind has an entry in
// Weights; a present-but-zero weight runs the algorithm with no effect on
// confidence. An empty Weights map yields confidence 0 for every
// non-exact pair.
type Config struct {
	// MinConfidence is the threshold below which batch results are dropped.
	MinConfidence float64
	// MaxResults caps the number of results returned by batch queries.
	MaxResults int
	// Weights maps each enabled algorithm to its ensemble weight.
	Weights map[similarity.Kind]float64
	// EnableCache toggles the LRU result cache.
	EnableCache bool
	// CacheSize bounds the result cache.
	CacheSize int
	// CacheTTL expires cached results after this duration. Zero disables
	// expiration.
	CacheTTL time.Duration
	// IncludeExplanations attaches a full per-algorithm breakdown to each
	// ensemble-scored result.
	IncludeExplanations bool
}

// DefaultConfig returns the general-purpose matcher configuration.
func DefaultConfig() Config {
	return Config{
		MinConfidence: 0.6,
		MaxResults:    10,
		Weights: map[similarity.Kind]float64{
			similarity.Levenshtein: 0.3,
			similarity.JaroWinkler: 0.3,
			similarity.Ngram:       0.25,
			similarity.Soundex:     0.15,
		},
		EnableCache: true,
		CacheSize:   1000,
	}
}

// ColumnProfile returns a configuration tuned for spreadsheet column
// headers: Jaro-Winkler dominant, since header typos are mostly
// transpositions and short edits near the front of the string.
func ColumnProfile() Config {
	cfg := DefaultConfig()
	cfg.MaxResults = 5
	cfg.Weights = map[similarity.Kind]float64{
		similarity.Levenshtein: 0.25,
		similarity.JaroWinkler: 0.45,
		similarity.Ngram:       0.25,
		similarity.Soundex:     0.05,
	}
	return cfg
}

// fingerprint hashes every cache-relevant configuration field.
//
// Weights are folded in the fixed Kinds() order so equal configurations
// always hash equally regardless of map iteration order. The fingerprint is
// embedded in every cache key, so results computed under an older
// configuration can never be served after a change.
func (c Config) fingerprint() uint64 {
	h := fnv.New64a()
	var buf [8]byte

	binary.BigEndian.PutUint64(buf[:], math.Float64bits(c.MinConfidence))
	h.Write(buf[:])
	binary.BigEndian.PutUint64(buf[:], uint64(c.MaxResults))
	h.Write(buf[:])
	if c.EnableCache {
		h.Write([]byte{1})
	} else {
		h.Write([]byte{0})
	}
	binary.BigEndian.PutUint64(buf[:], uint64(c.CacheSize))
	h.Write(buf[:])
	if c.IncludeExplanations {
		h.Write([]byte{1})
	} else {
		h.Write([]byte{0})
	}

	for _, k := range similarity.Kinds() {
		w, ok := c.Weights[k]
		if !ok {
			continue
		}
		h.Write([]byte(k))
		binary.BigEndian.PutUint64(buf[:], math.Float64bits(w))
		h.Write(buf[:])
	}

	return h.Sum64()
}

// kinds returns the enabled algorithms in the fixed Kinds() order.
func (c Config) kinds() []similarity.Kind {
	out := make([]similarity.Kind, 0, len(c.Weights))
	for _, k := range similarity.Kinds() {
		if _, ok := c.Weights[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

// Result is the outcome of scoring one (source, target) pair.
type Result struct {
	// Target is the candidate string that was scored.
	Target string `json:"target"`
	// Confidence is the overall score in [0, 1].
	Confidence float64 `json:"confidence"`
	// AlgorithmScores holds each algorithm's raw score. Empty for exact
	// matches, which skip the ensemble.
	AlgorithmScores map[similarity.Kind]float64 `json:"algorithm_scores,omitempty"`
	// PreprocessingApplied lists the normalization steps that fired on the
	// source string.
	PreprocessingApplied []string `json:"preprocessing_applied,omitempty"`
	// ExactMatch is set when the pair matched verbatim or after
	// preprocessing.
	ExactMatch bool `json:"exact_match"`
	// Explanation carries the full scoring breakdown when enabled.
	Explanation *Explanation `json:"explanation,omitempty"`
}

// Explanation details how an ensemble score was computed.
type Explanation struct {
	OriginalSource  string `json:"original_source"`
	OriginalTarget  string `json:"original_target"`
	ProcessedSource string `json:"processed_source"`
	ProcessedTarget string `json:"processed_target"`

	// Contributions holds the per-algorithm breakdown.
	Contributions map[similarity.Kind]Contribution `json:"contributions"`

	TotalWeightedScore float64 `json:"total_weighted_score"`
	TotalWeight        float64 `json:"total_weight"`
	FinalScore         float64 `json:"final_score"`

	// CacheHit is set when the result was served from the cache.
	CacheHit bool `json:"cache_hit"`
	// AlgorithmsExecuted counts the algorithms that actually ran.
	AlgorithmsExecuted int `json:"algorithms_executed"`
}

// Contribution is a single algorithm's term in the weighted sum.
type Contribution struct {
	RawScore       float64       `json:"raw_score"`
	Weight         float64       `json:"weight"`
	WeightedScore  float64       `json:"weighted_score"`
	ProcessingTime time.Duration `json:"processing_time"`
}
