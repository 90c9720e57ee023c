package override

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/orneryd/colmap/pkg/cache"
	"github.com/orneryd/colmap/pkg/xlog"
)

// EngineOptions configure the override engine.
type EngineOptions struct {
	// CacheSize bounds the resolution cache. Defaults to 1000.
	CacheSize int
	// CacheTTL expires cached resolutions. Zero disables expiration.
	CacheTTL time.Duration
	// Strategy selects the conflict resolution strategy.
	Strategy Strategy
	// MaxConflictsReported caps ReportAndFallback conflict reports.
	// Defaults to 10.
	MaxConflictsReported int
}

// DefaultEngineOptions returns the default engine configuration.
func DefaultEngineOptions() EngineOptions {
	return EngineOptions{
		CacheSize:            1000,
		Strategy:             HighestPriority,
		MaxConflictsReported: 10,
	}
}

// Engine owns the rule list, its resolution cache, and performance
// counters.
//
// The rule list is kept sorted by descending priority at all times; every
// mutation re-sorts and invalidates the entire cache, since rule order and
// content are global state with no sound partial invalidation.
type Engine struct {
	mu sync.Mutex

	rules     []Rule
	resolver  *Resolver
	validator *Validator
	cache     *cache.Cache
	metrics   Metrics
}

// NewEngine creates an engine with the given options.
func NewEngine(opts EngineOptions) *Engine {
	if opts.CacheSize <= 0 {
		opts.CacheSize = 1000
	}
	if opts.MaxConflictsReported <= 0 {
		opts.MaxConflictsReported = 10
	}
	if opts.Strategy == "" {
		opts.Strategy = HighestPriority
	}

	resolver := NewResolverWithStrategy(opts.Strategy)
	resolver.SetMaxConflictsReported(opts.MaxConflictsReported)

	return &Engine{
		resolver:  resolver,
		validator: NewValidator(),
		cache:     cache.New(opts.CacheSize, opts.CacheTTL),
	}
}

// AddRule validates and inserts a rule.
//
// Conflicts against existing rules of equal priority and overlapping
// scope/pattern are detected and returned; they do not block the insert.
func (e *Engine) AddRule(rule Rule) ([]Conflict, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.validator.Validate(&rule); err != nil {
		return nil, err
	}

	conflicts := e.detectConflicts(&rule)
	if len(conflicts) > 0 {
		xlog.Warn("adding rule with conflicts", map[string]interface{}{
			"rule":      rule.Name,
			"conflicts": len(conflicts),
		})
	}

	e.rules = append(e.rules, rule)
	e.sortRules()
	e.cache.Clear()

	xlog.Info("added override rule", map[string]interface{}{"rule": rule.Name})
	return conflicts, nil
}

// UpdateRule validates and replaces the rule with the same ID. Returns
// false if no such rule exists.
func (e *Engine) UpdateRule(rule Rule) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pos := -1
	for i := range e.rules {
		if e.rules[i].ID == rule.ID {
			pos = i
			break
		}
	}
	if pos < 0 {
		return false, nil
	}

	if err := e.validator.Validate(&rule); err != nil {
		return false, err
	}

	e.rules[pos] = rule
	e.sortRules()
	e.cache.Clear()
	return true, nil
}

// RemoveRule deletes a rule by ID. Returns false if no such rule exists.
func (e *Engine) RemoveRule(id uuid.UUID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	kept := e.rules[:0]
	removed := false
	for _, r := range e.rules {
		if r.ID == id {
			removed = true
			continue
		}
		kept = append(kept, r)
	}
	e.rules = kept

	if removed {
		e.cache.Clear()
		xlog.Info("removed override rule", map[string]interface{}{"id": id.String()})
	}
	return removed
}

// Rule returns a rule by ID.
func (e *Engine) Rule(id uuid.UUID) (Rule, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, r := range e.rules {
		if r.ID == id {
			return r, true
		}
	}
	return Rule{}, false
}

// Rules returns a copy of all rules in priority order.
func (e *Engine) Rules() []Rule {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Rule(nil), e.rules...)
}

// ActiveRules returns a copy of the active rules in priority order.
func (e *Engine) ActiveRules() []Rule {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Rule, 0, len(e.rules))
	for _, r := range e.rules {
		if r.Active {
			out = append(out, r)
		}
	}
	return out
}

// ResolveMapping resolves a column against the rule set.
//
// Each active rule is tried in priority order: its scope must match the
// context, its conditions must pass, and its pattern must match the
// column. A single match applies directly; multiple matches go through the
// conflict resolver. Results are cached per (column, document type,
// context document type).
func (e *Engine) ResolveMapping(sourceColumn, documentType string, ctx *Context) Resolution {
	started := time.Now()

	e.mu.Lock()
	defer e.mu.Unlock()

	ctxDocType := ""
	if ctx != nil {
		ctxDocType = ctx.DocumentType
	}
	key := cache.Key(0, sourceColumn, documentType, ctxDocType)

	if v, ok := e.cache.Get(key); ok {
		result := v.(Resolution)
		result.FromCache = true
		return result
	}

	var matches []Match
	for i := range e.rules {
		rule := &e.rules[i]
		if !rule.Active {
			continue
		}
		if !scopeMatches(rule.Scope, ctx) {
			continue
		}
		if !evaluateConditions(rule.Conditions, documentType, ctx) {
			continue
		}
		confidence, ok := checkPatternMatch(&rule.Pattern, rule.PatternType, sourceColumn)
		if !ok {
			continue
		}
		matches = append(matches, Match{Rule: *rule, Confidence: confidence})
	}

	var applied *Rule
	var alternatives []Rule
	var conflicts []Conflict
	switch len(matches) {
	case 0:
	case 1:
		applied = &matches[0].Rule
	default:
		outcome := e.resolver.Resolve(matches)
		applied = outcome.Selected
		alternatives = outcome.Alternatives
		conflicts = outcome.Conflicts
	}

	result := Resolution{
		OverrideApplied: applied != nil,
		Applied:         applied,
		Alternatives:    alternatives,
		Conflicts:       conflicts,
		ResolutionTime:  time.Since(started),
	}
	if applied != nil {
		result.TargetField = applied.TargetField
		result.Confidence = 1.0
	}

	e.cache.Put(key, result)
	e.updateMetrics(&result)
	return result
}

// Metrics returns a snapshot of the engine's counters.
func (e *Engine) Metrics() Metrics {
	e.mu.Lock()
	defer e.mu.Unlock()

	m := e.metrics
	m.CacheHitRate = e.cache.Stats().HitRate
	return m
}

// ClearCache drops every cached resolution.
func (e *Engine) ClearCache() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cache.Clear()
}

// SetStrategy changes the conflict resolution strategy. The resolution
// cache is invalidated since strategy affects resolution outcomes.
func (e *Engine) SetStrategy(strategy Strategy) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resolver.SetStrategy(strategy)
	e.cache.Clear()
}

// Strategy returns the current conflict resolution strategy.
func (e *Engine) Strategy() Strategy {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resolver.Strategy()
}

// sortRules keeps the list ordered by descending priority.
// Caller must hold the lock.
func (e *Engine) sortRules() {
	sort.SliceStable(e.rules, func(i, j int) bool {
		return e.rules[i].Priority > e.rules[j].Priority
	})
}

// updateMetrics folds one resolution into the counters.
// Caller must hold the lock.
func (e *Engine) updateMetrics(result *Resolution) {
	e.metrics.TotalApplications++
	if result.OverrideApplied {
		e.metrics.SuccessfulMatches++
	}
	if len(result.Conflicts) > 0 {
		e.metrics.ConflictsDetected++
	}

	micros := float64(result.ResolutionTime.Microseconds())
	e.metrics.AvgResolutionTimeMicros = e.metrics.AvgResolutionTimeMicros*0.9 + micros*0.1
	e.metrics.LastUpdated = time.Now().UTC()
}

// detectConflicts checks a new rule against existing rules of equal
// priority, equal scope, and overlapping pattern.
// Caller must hold the lock.
func (e *Engine) detectConflicts(newRule *Rule) []Conflict {
	var conflicts []Conflict
	for i := range e.rules {
		existing := &e.rules[i]
		if existing.ID == newRule.ID {
			continue
		}
		if existing.Priority == newRule.Priority &&
			existing.Scope == newRule.Scope &&
			patternsOverlap(existing.PatternType, &existing.Pattern, newRule.PatternType, &newRule.Pattern) {
			conflicts = append(conflicts, Conflict{
				RuleIDs:  pairIDs(existing.ID, newRule.ID),
				Type:     PriorityTie,
				Severity: SeverityMedium,
				Description: fmt.Sprintf("rule %q has the same priority (%d) as existing rule %q",
					newRule.Name, newRule.Priority, existing.Name),
				SuggestedResolution: "adjust priority levels to resolve conflict",
			})
		}
	}
	return conflicts
}

// patternsOverlap conservatively detects pattern overlap.
//
// Only clear cases are reported: two literal patterns of the same type
// whose case-folded text is equal, or a contains pattern whose text is a
// substring of the other pattern's text. Regex, fuzzy, positional, and
// conditional overlap analysis is not implemented; such pairs report no
// overlap.
func patternsOverlap(t1 PatternType, p1 *Pattern, t2 PatternType, p2 *Pattern) bool {
	s1 := strings.ToLower(p1.Pattern)
	s2 := strings.ToLower(p2.Pattern)

	if t1 == t2 {
		switch t1 {
		case ExactMatch, ContainsMatch, PrefixSuffixMatch:
			if s1 == s2 {
				return true
			}
		}
	}

	if t1 == ContainsMatch && (t2 == ExactMatch || t2 == ContainsMatch) && strings.Contains(s2, s1) {
		return true
	}
	if t2 == ContainsMatch && (t1 == ExactMatch || t1 == ContainsMatch) && strings.Contains(s1, s2) {
		return true
	}

	return false
}

// checkPatternMatch attempts a pattern against a column, producing a
// confidence when it matches.
//
// Exact matches score 1.0 and contains matches 0.8. Regex and fuzzy
// patterns are validated at insert time but not executed here; they return
// fixed placeholder confidences of 0.9 and 0.7 pending a real
// implementation. Remaining pattern types never match.
func checkPatternMatch(p *Pattern, patternType PatternType, sourceColumn string) (float64, bool) {
	switch patternType {
	case ExactMatch:
		if p.CaseSensitive {
			if sourceColumn == p.Pattern {
				return 1.0, true
			}
		} else if strings.EqualFold(sourceColumn, p.Pattern) {
			return 1.0, true
		}
		return 0, false
	case ContainsMatch:
		if p.CaseSensitive {
			if strings.Contains(sourceColumn, p.Pattern) {
				return 0.8, true
			}
		} else if strings.Contains(strings.ToLower(sourceColumn), strings.ToLower(p.Pattern)) {
			return 0.8, true
		}
		return 0, false
	case RegexPattern:
		// TODO: execute the compiled regex against the column instead of
		// returning a placeholder confidence.
		return 0.9, true
	case FuzzyMatch:
		// TODO: delegate to the fuzzy matching engine with the rule's
		// threshold instead of returning a placeholder confidence.
		return 0.7, true
	default:
		xlog.Debug("pattern matching not implemented for rule type", map[string]interface{}{
			"pattern_type": string(patternType),
		})
		return 0, false
	}
}

// scopeMatches reports whether a rule's scope applies to the context. Each
// non-global scope requires exact equality with its context discriminator.
func scopeMatches(s Scope, ctx *Context) bool {
	if s.Kind == ScopeGlobal {
		return true
	}
	if ctx == nil {
		return false
	}
	switch s.Kind {
	case ScopeDocumentType:
		return ctx.DocumentType == s.Value
	case ScopeOrganization:
		return ctx.Organization == s.Value
	case ScopeUser:
		return ctx.UserID == s.Value
	case ScopeSession:
		return ctx.SessionID == s.Value
	case ScopeProject:
		return ctx.ProjectID == s.Value
	}
	return false
}

// evaluateConditions checks a rule's conditions: all required conditions
// must pass, and if any optional conditions exist at least one must pass.
func evaluateConditions(conditions []Condition, documentType string, ctx *Context) bool {
	if len(conditions) == 0 {
		return true
	}

	requiredMet := true
	optionalMet := false
	hasOptional := false

	for i := range conditions {
		c := &conditions[i]
		result := evaluateCondition(c, documentType, ctx)
		if c.Required {
			requiredMet = requiredMet && result
		} else {
			hasOptional = true
			optionalMet = optionalMet || result
		}
	}

	return requiredMet && (!hasOptional || optionalMet)
}

// evaluateCondition checks a single condition.
//
// Only DocumentType and FileName conditions are evaluated; the remaining
// condition types default to true pending implementation.
func evaluateCondition(c *Condition, documentType string, ctx *Context) bool {
	switch c.Type {
	case CondDocumentType:
		expected, _ := c.Value.(string)
		switch c.Operator {
		case OpEquals:
			return documentType == expected
		case OpNotEquals:
			return documentType != expected
		}
		return false
	case CondFileName:
		if ctx == nil || ctx.FileName == "" {
			return false
		}
		expected, _ := c.Value.(string)
		switch c.Operator {
		case OpContains:
			return strings.Contains(ctx.FileName, expected)
		case OpNotContains:
			return !strings.Contains(ctx.FileName, expected)
		}
		return false
	default:
		xlog.Debug("condition evaluation not implemented for type", map[string]interface{}{
			"condition_type": string(c.Type),
		})
		return true
	}
}

func pairIDs(a, b uuid.UUID) []uuid.UUID {
	return []uuid.UUID{a, b}
}
