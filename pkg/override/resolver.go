package override

import (
	"fmt"
	"sort"

	"github.com/orneryd/colmap/pkg/xlog"
)

// Match pairs a rule with the confidence its pattern produced.
type Match struct {
	Rule       Rule
	Confidence float64
}

// Outcome is the result of conflict resolution over a set of matches.
type Outcome struct {
	// Selected is the winning rule, nil when no match was supplied.
	Selected *Rule
	// Alternatives are the matches that were not selected.
	Alternatives []Rule
	// Conflicts detected among the matches.
	Conflicts []Conflict
}

// Resolver picks one rule when several match the same column.
//
// Zero-match and single-match inputs bypass strategy selection entirely.
type Resolver struct {
	strategy             Strategy
	maxConflictsReported int
}

// NewResolver creates a resolver using HighestPriority and reporting at
// most 10 conflicts.
func NewResolver() *Resolver {
	return &Resolver{
		strategy:             HighestPriority,
		maxConflictsReported: 10,
	}
}

// NewResolverWithStrategy creates a resolver with a specific strategy.
func NewResolverWithStrategy(strategy Strategy) *Resolver {
	r := NewResolver()
	r.strategy = strategy
	return r
}

// SetStrategy changes the resolution strategy.
func (r *Resolver) SetStrategy(strategy Strategy) {
	r.strategy = strategy
}

// Strategy returns the current resolution strategy.
func (r *Resolver) Strategy() Strategy {
	return r.strategy
}

// SetMaxConflictsReported bounds how many conflicts ReportAndFallback
// emits.
func (r *Resolver) SetMaxConflictsReported(max int) {
	r.maxConflictsReported = max
}

// MaxConflictsReported returns the conflict report cap.
func (r *Resolver) MaxConflictsReported() int {
	return r.maxConflictsReported
}

// Resolve selects one rule from the matches.
func (r *Resolver) Resolve(matches []Match) Outcome {
	if len(matches) == 0 {
		return Outcome{}
	}
	if len(matches) == 1 {
		selected := matches[0].Rule
		return Outcome{Selected: &selected}
	}

	xlog.Debug("resolving conflicts", map[string]interface{}{
		"matches":  len(matches),
		"strategy": r.strategy,
	})

	switch r.strategy {
	case MostRecent:
		return r.resolveByMostRecent(matches)
	case MostSpecific:
		return r.resolveByMostSpecific(matches)
	case Combine:
		xlog.Warn("combine strategy not implemented, falling back to highest priority", nil)
		return r.resolveByHighestPriority(matches)
	case ReportAndFallback:
		return r.resolveWithFallback(matches)
	default:
		return r.resolveByHighestPriority(matches)
	}
}

// resolveByHighestPriority sorts by priority descending, then confidence
// descending, and reports residual priority ties against the winner.
func (r *Resolver) resolveByHighestPriority(matches []Match) Outcome {
	sorted := append([]Match(nil), matches...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Rule.Priority != sorted[j].Rule.Priority {
			return sorted[i].Rule.Priority > sorted[j].Rule.Priority
		}
		return sorted[i].Confidence > sorted[j].Confidence
	})

	selected := sorted[0].Rule
	alternatives := make([]Rule, 0, len(sorted)-1)
	for _, m := range sorted[1:] {
		alternatives = append(alternatives, m.Rule)
	}

	return Outcome{
		Selected:     &selected,
		Alternatives: alternatives,
		Conflicts:    detectPriorityTies(&selected, alternatives),
	}
}

func (r *Resolver) resolveByMostRecent(matches []Match) Outcome {
	sorted := append([]Match(nil), matches...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Rule.CreatedAt.Equal(sorted[j].Rule.CreatedAt) {
			return sorted[i].Rule.CreatedAt.After(sorted[j].Rule.CreatedAt)
		}
		return sorted[i].Rule.Priority > sorted[j].Rule.Priority
	})

	selected := sorted[0].Rule
	alternatives := make([]Rule, 0, len(sorted)-1)
	for _, m := range sorted[1:] {
		alternatives = append(alternatives, m.Rule)
	}
	return Outcome{Selected: &selected, Alternatives: alternatives}
}

func (r *Resolver) resolveByMostSpecific(matches []Match) Outcome {
	type scored struct {
		match       Match
		specificity float64
	}
	ranked := make([]scored, 0, len(matches))
	for _, m := range matches {
		ranked = append(ranked, scored{match: m, specificity: SpecificityScore(&m.Rule)})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].specificity != ranked[j].specificity {
			return ranked[i].specificity > ranked[j].specificity
		}
		return ranked[i].match.Rule.Priority > ranked[j].match.Rule.Priority
	})

	selected := ranked[0].match.Rule
	alternatives := make([]Rule, 0, len(ranked)-1)
	for _, s := range ranked[1:] {
		alternatives = append(alternatives, s.match.Rule)
	}
	return Outcome{Selected: &selected, Alternatives: alternatives}
}

// resolveWithFallback generates pairwise conflict reports, then selects by
// highest priority.
func (r *Resolver) resolveWithFallback(matches []Match) Outcome {
	conflicts := r.pairwiseConflicts(matches)
	outcome := r.resolveByHighestPriority(matches)
	outcome.Conflicts = append(outcome.Conflicts, conflicts...)
	return outcome
}

// SpecificityScore ranks a rule by how narrowly it applies: scope weight
// plus pattern-type weight plus 0.5 per condition plus 0.5 each for
// case-sensitive and whole-word patterns.
func SpecificityScore(rule *Rule) float64 {
	score := 0.0

	switch rule.Scope.Kind {
	case ScopeGlobal:
		score += 1.0
	case ScopeDocumentType:
		score += 2.0
	case ScopeOrganization:
		score += 3.0
	case ScopeProject:
		score += 4.0
	case ScopeSession:
		score += 5.0
	case ScopeUser:
		score += 6.0
	}

	switch rule.PatternType {
	case ExactMatch:
		score += 6.0
	case RegexPattern:
		score += 5.0
	case ConditionalMatch:
		score += 5.0
	case PositionalMatch:
		score += 4.0
	case ContainsMatch:
		score += 3.0
	case PrefixSuffixMatch:
		score += 2.0
	case FuzzyMatch:
		score += 1.0
	}

	score += float64(len(rule.Conditions)) * 0.5

	if rule.Pattern.CaseSensitive {
		score += 0.5
	}
	if rule.Pattern.WholeWord {
		score += 0.5
	}

	return score
}

func detectPriorityTies(selected *Rule, alternatives []Rule) []Conflict {
	var conflicts []Conflict
	for i := range alternatives {
		alt := &alternatives[i]
		if alt.Priority == selected.Priority {
			conflicts = append(conflicts, Conflict{
				RuleIDs:  pairIDs(selected.ID, alt.ID),
				Type:     PriorityTie,
				Severity: SeverityMedium,
				Description: fmt.Sprintf("rules %q and %q have the same priority (%d)",
					selected.Name, alt.Name, selected.Priority),
				SuggestedResolution: "adjust priority levels to resolve conflict",
				ResolutionApplied:   HighestPriority,
			})
		}
	}
	return conflicts
}

// pairwiseConflicts reports ScopeOverlap and PriorityTie for every
// conflicting pair, capped at maxConflictsReported.
func (r *Resolver) pairwiseConflicts(matches []Match) []Conflict {
	var conflicts []Conflict
	for i := 0; i < len(matches); i++ {
		for j := i + 1; j < len(matches); j++ {
			r1, r2 := &matches[i].Rule, &matches[j].Rule

			if r1.Scope == r2.Scope {
				conflicts = append(conflicts, Conflict{
					RuleIDs:  pairIDs(r1.ID, r2.ID),
					Type:     ScopeOverlap,
					Severity: SeverityLow,
					Description: fmt.Sprintf("rules %q and %q have overlapping scopes",
						r1.Name, r2.Name),
					SuggestedResolution: "consider narrowing scope or adjusting priorities",
				})
			}

			if r1.Priority == r2.Priority {
				conflicts = append(conflicts, Conflict{
					RuleIDs:  pairIDs(r1.ID, r2.ID),
					Type:     PriorityTie,
					Severity: SeverityMedium,
					Description: fmt.Sprintf("rules %q and %q have the same priority (%d)",
						r1.Name, r2.Name, r1.Priority),
					SuggestedResolution: "adjust priority levels to resolve conflict",
				})
			}
		}
	}

	if len(conflicts) > r.maxConflictsReported {
		conflicts = conflicts[:r.maxConflictsReported]
	}
	return conflicts
}
