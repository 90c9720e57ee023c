package fuzzy

import (
	"sort"
	"sync"
	"time"
	"unicode"

	"github.com/orneryd/colmap/pkg/cache"
	"github.com/orneryd/colmap/pkg/similarity"
	"github.com/orneryd/colmap/pkg/text"
	"github.com/orneryd/colmap/pkg/xlog"
)

// Matcher scores source strings against candidate targets using the
// configured algorithm ensemble.
//
// Scoring is a pure function of (source, target, configuration), so results
// are memoized in an LRU cache keyed by the pair plus a configuration
// fingerprint. Reads may run concurrently; UpdateConfig and BuildIndex are
// serialized against them.
type Matcher struct {
	mu sync.RWMutex

	config  Config
	enabled []similarity.Kind
	pre     *text.Preprocessor
	cache   *cache.Cache
	index   *targetIndex

	fingerprint uint64
}

// NewMatcher creates a matcher with the given configuration.
func NewMatcher(cfg Config) *Matcher {
	m := &Matcher{
		config:      cfg,
		enabled:     cfg.kinds(),
		pre:         text.NewPreprocessor(),
		fingerprint: cfg.fingerprint(),
	}
	if cfg.EnableCache {
		m.cache = cache.New(cfg.CacheSize, cfg.CacheTTL)
	}
	return m
}

// Preprocessor returns the matcher's text preprocessor so callers can
// register custom abbreviations and stop words before matching begins.
// Mutating the preprocessor after results have been cached is unsound;
// call ClearCache afterwards if needed.
func (m *Matcher) Preprocessor() *text.Preprocessor {
	return m.pre
}

// Config returns a copy of the current configuration.
func (m *Matcher) Config() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg := m.config
	cfg.Weights = make(map[similarity.Kind]float64, len(m.config.Weights))
	for k, w := range m.config.Weights {
		cfg.Weights[k] = w
	}
	return cfg
}

// Fingerprint returns the hash of the current configuration. It changes
// whenever any weight, threshold, or cache setting changes.
func (m *Matcher) Fingerprint() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fingerprint
}

// Match scores a single (source, target) pair.
//
// A verbatim match returns confidence 1.0 without consulting algorithms or
// cache. Otherwise the cache is probed, both strings are preprocessed, and
// the ensemble runs only if the preprocessed forms differ.
func (m *Matcher) Match(source, target string) Result {
	if source == target {
		return Result{
			Target:               target,
			Confidence:           1.0,
			PreprocessingApplied: []string{text.StepExactMatch},
			ExactMatch:           true,
		}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	processedSource, sourceSteps := m.pre.Process(source)
	return m.scorePair(source, target, processedSource, sourceSteps)
}

// FindMatches scores source against every target and returns the matches at
// or above MinConfidence, sorted by confidence descending and truncated to
// MaxResults.
//
// A verbatim match against any target short-circuits: the single exact
// result is returned and nothing else is scored. Pools larger than 100
// entries are narrowed with a length and first-character index before
// scoring.
func (m *Matcher) FindMatches(source string, targets []string) []Result {
	for _, target := range targets {
		if source == target {
			return []Result{{
				Target:               target,
				Confidence:           1.0,
				PreprocessingApplied: []string{text.StepExactMatch},
				ExactMatch:           true,
			}}
		}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(targets) > 100 {
		idx := buildTargetIndex(targets)
		candidates := idx.candidates(source)
		xlog.Debug("narrowed fuzzy candidate pool", map[string]interface{}{
			"source":     source,
			"pool":       len(targets),
			"candidates": len(candidates),
		})
		return m.scoreBatch(source, candidates, true)
	}
	return m.scoreBatch(source, targets, false)
}

// BuildIndex precomputes a candidate index over a fixed target pool for
// repeated MatchIndexed queries against the same pool.
func (m *Matcher) BuildIndex(targets []string) {
	idx := buildTargetIndex(targets)

	m.mu.Lock()
	m.index = idx
	m.mu.Unlock()

	xlog.Debug("built fuzzy match index", map[string]interface{}{"targets": len(targets)})
}

// MatchIndexed runs a batch query against the pool registered with
// BuildIndex. Returns nil if no index has been built.
func (m *Matcher) MatchIndexed(source string) []Result {
	m.mu.RLock()
	idx := m.index
	m.mu.RUnlock()

	if idx == nil {
		return nil
	}

	for _, target := range idx.all {
		if source == target {
			return []Result{{
				Target:               target,
				Confidence:           1.0,
				PreprocessingApplied: []string{text.StepExactMatch},
				ExactMatch:           true,
			}}
		}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(idx.all) > 100 {
		return m.scoreBatch(source, idx.candidates(source), true)
	}
	return m.scoreBatch(source, idx.all, false)
}

// IndexStats describes the candidate index built by BuildIndex.
type IndexStats struct {
	Built         bool `json:"built"`
	Targets       int  `json:"targets"`
	LengthBuckets int  `json:"length_buckets"`
	FirstChars    int  `json:"first_chars"`
}

// IndexStats returns a snapshot of the candidate index.
func (m *Matcher) IndexStats() IndexStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.index == nil {
		return IndexStats{}
	}
	return IndexStats{
		Built:         true,
		Targets:       len(m.index.all),
		LengthBuckets: len(m.index.lengthBuckets),
		FirstChars:    len(m.index.firstChar),
	}
}

// UpdateConfig replaces the configuration.
//
// If the fingerprint changed the cache is cleared so no stale entry can be
// served under the new configuration. The cache itself is rebuilt only when
// cache-affecting settings (enabled flag, capacity, TTL) changed.
func (m *Matcher) UpdateConfig(cfg Config) {
	m.mu.Lock()
	defer m.mu.Unlock()

	newFingerprint := cfg.fingerprint()
	if newFingerprint != m.fingerprint {
		if m.cache != nil {
			m.cache.Clear()
		}
		m.fingerprint = newFingerprint
	}

	if cfg.EnableCache != m.config.EnableCache ||
		cfg.CacheSize != m.config.CacheSize ||
		cfg.CacheTTL != m.config.CacheTTL {
		if cfg.EnableCache {
			m.cache = cache.New(cfg.CacheSize, cfg.CacheTTL)
		} else {
			m.cache = nil
		}
	}

	m.config = cfg
	m.enabled = cfg.kinds()
}

// ClearCache drops all cached results.
func (m *Matcher) ClearCache() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.cache != nil {
		m.cache.Clear()
	}
}

// CacheStats returns the result cache's counters. Zero when caching is
// disabled.
func (m *Matcher) CacheStats() cache.Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.cache == nil {
		return cache.Stats{}
	}
	return m.cache.Stats()
}

// scoreBatch scores source against each target, filters by MinConfidence,
// sorts descending, and truncates. When capped is set, scoring stops once
// twice MaxResults have accumulated.
// Caller must hold at least a read lock.
func (m *Matcher) scoreBatch(source string, targets []string, capped bool) []Result {
	processedSource, sourceSteps := m.pre.Process(source)

	results := make([]Result, 0, minInt(len(targets), m.config.MaxResults*2))
	for _, target := range targets {
		r := m.scorePair(source, target, processedSource, sourceSteps)
		if r.Confidence >= m.config.MinConfidence {
			results = append(results, r)
		}
		if capped && m.config.MaxResults > 0 && len(results) >= m.config.MaxResults*2 {
			break
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Confidence > results[j].Confidence
	})
	if m.config.MaxResults > 0 && len(results) > m.config.MaxResults {
		results = results[:m.config.MaxResults]
	}
	return results
}

// scorePair resolves one pair: cache probe, preprocessed equality, then the
// weighted ensemble.
// Caller must hold at least a read lock.
func (m *Matcher) scorePair(source, target, processedSource string, sourceSteps []string) Result {
	var key uint64
	if m.cache != nil {
		key = cache.Key(m.fingerprint, source, target)
		if v, ok := m.cache.Get(key); ok {
			r := v.(Result)
			if r.Explanation != nil {
				exp := *r.Explanation
				exp.CacheHit = true
				r.Explanation = &exp
			}
			return r
		}
	}

	processedTarget, _ := m.pre.Process(target)

	if processedSource == processedTarget {
		r := Result{
			Target:               target,
			Confidence:           1.0,
			PreprocessingApplied: sourceSteps,
			ExactMatch:           true,
		}
		if m.cache != nil {
			m.cache.Put(key, r)
		}
		return r
	}

	scores := make(map[similarity.Kind]float64, len(m.enabled))
	var contributions map[similarity.Kind]Contribution
	if m.config.IncludeExplanations {
		contributions = make(map[similarity.Kind]Contribution, len(m.enabled))
	}

	totalWeighted := 0.0
	totalWeight := 0.0
	for _, k := range m.enabled {
		started := time.Now()

		s1, s2 := source, target
		if k.NeedsNormalized() {
			s1, s2 = processedSource, processedTarget
		}

		raw := k.Similarity(s1, s2)
		weight := m.config.Weights[k]
		weighted := raw * weight

		scores[k] = raw
		if contributions != nil {
			contributions[k] = Contribution{
				RawScore:       raw,
				Weight:         weight,
				WeightedScore:  weighted,
				ProcessingTime: time.Since(started),
			}
		}

		totalWeighted += weighted
		totalWeight += weight
	}

	confidence := 0.0
	if totalWeight > 0 {
		confidence = totalWeighted / totalWeight
	}

	r := Result{
		Target:               target,
		Confidence:           confidence,
		AlgorithmScores:      scores,
		PreprocessingApplied: sourceSteps,
	}
	if m.config.IncludeExplanations {
		r.Explanation = &Explanation{
			OriginalSource:     source,
			OriginalTarget:     target,
			ProcessedSource:    processedSource,
			ProcessedTarget:    processedTarget,
			Contributions:      contributions,
			TotalWeightedScore: totalWeighted,
			TotalWeight:        totalWeight,
			FinalScore:         confidence,
			AlgorithmsExecuted: len(m.enabled),
		}
	}

	if m.cache != nil {
		m.cache.Put(key, r)
	}
	return r
}

// targetIndex buckets a target pool by character length and by lowercased
// first character so large batch queries only score plausible candidates.
type targetIndex struct {
	lengthBuckets map[int][]string
	firstChar     map[rune][]string
	all           []string
}

func buildTargetIndex(targets []string) *targetIndex {
	idx := &targetIndex{
		lengthBuckets: make(map[int][]string),
		firstChar:     make(map[rune][]string),
		all:           targets,
	}
	for _, target := range targets {
		runes := []rune(target)
		idx.lengthBuckets[len(runes)] = append(idx.lengthBuckets[len(runes)], target)
		if len(runes) > 0 {
			first := unicode.ToLower(runes[0])
			idx.firstChar[first] = append(idx.firstChar[first], target)
		}
	}
	return idx
}

// candidates returns targets whose length is within 2 of the source or
// whose first character matches. If fewer than 50 candidates are found the
// first 100 targets are added as a fallback sample.
func (ix *targetIndex) candidates(source string) []string {
	runes := []rune(source)
	sourceLen := len(runes)

	seen := make(map[string]struct{})
	out := make([]string, 0, 64)
	add := func(target string) {
		if _, dup := seen[target]; dup {
			return
		}
		seen[target] = struct{}{}
		out = append(out, target)
	}

	low := sourceLen - 2
	if low < 0 {
		low = 0
	}
	for length := low; length <= sourceLen+2; length++ {
		for _, target := range ix.lengthBuckets[length] {
			add(target)
		}
	}

	if sourceLen > 0 {
		for _, target := range ix.firstChar[unicode.ToLower(runes[0])] {
			add(target)
		}
	}

	if len(out) < 50 {
		limit := minInt(100, len(ix.all))
		for _, target := range ix.all[:limit] {
			add(target)
		}
	}

	return out
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
