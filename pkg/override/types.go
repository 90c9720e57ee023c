// Package override implements user-authored mapping override rules.
//
// An override rule deterministically forces a matching column name to a
// target field ahead of automatic fuzzy resolution. Rules carry a pattern,
// a priority, an applicability scope, and optional conditions; when several
// rules match the same column a conflict resolver picks one according to a
// configurable strategy.
//
// The engine owns the rule list, a resolution cache, and performance
// counters. Any mutation re-sorts the list by priority and invalidates the
// entire cache.
package override

import (
	"time"

	"github.com/google/uuid"
)

// PatternType classifies how a rule's pattern is matched against a column.
type PatternType string

const (
	ExactMatch        PatternType = "exact_match"
	RegexPattern      PatternType = "regex_pattern"
	FuzzyMatch        PatternType = "fuzzy_match"
	ContainsMatch     PatternType = "contains_match"
	PrefixSuffixMatch PatternType = "prefix_suffix_match"
	PositionalMatch   PatternType = "positional_match"
	ConditionalMatch  PatternType = "conditional_match"
)

// ConditionType classifies what a rule condition inspects.
type ConditionType string

const (
	CondDocumentType   ConditionType = "document_type"
	CondFileName       ConditionType = "file_name"
	CondColumnCount    ConditionType = "column_count"
	CondDataSample     ConditionType = "data_sample"
	CondUserRole       ConditionType = "user_role"
	CondOrganization   ConditionType = "organization"
	CondCustomMetadata ConditionType = "custom_metadata"
)

// Operator is a condition's comparison operator.
type Operator string

const (
	OpEquals             Operator = "equals"
	OpNotEquals          Operator = "not_equals"
	OpContains           Operator = "contains"
	OpNotContains        Operator = "not_contains"
	OpMatches            Operator = "matches"
	OpNotMatches         Operator = "not_matches"
	OpGreaterThan        Operator = "greater_than"
	OpLessThan           Operator = "less_than"
	OpGreaterThanOrEqual Operator = "greater_than_or_equal"
	OpLessThanOrEqual    Operator = "less_than_or_equal"
	OpIn                 Operator = "in"
	OpNotIn              Operator = "not_in"
)

// ScopeKind names a scope variant.
type ScopeKind string

const (
	ScopeGlobal       ScopeKind = "global"
	ScopeDocumentType ScopeKind = "document_type"
	ScopeOrganization ScopeKind = "organization"
	ScopeUser         ScopeKind = "user"
	ScopeSession      ScopeKind = "session"
	ScopeProject      ScopeKind = "project"
)

// Scope bounds where a rule applies. Non-global scopes carry a
// discriminating value that must equal the corresponding context field.
type Scope struct {
	Kind  ScopeKind `json:"kind"`
	Value string    `json:"value,omitempty"`
}

// GlobalScope applies to all documents.
func GlobalScope() Scope { return Scope{Kind: ScopeGlobal} }

// DocumentTypeScope applies only to the named document type.
func DocumentTypeScope(docType string) Scope {
	return Scope{Kind: ScopeDocumentType, Value: docType}
}

// OrganizationScope applies only within the named organization.
func OrganizationScope(org string) Scope {
	return Scope{Kind: ScopeOrganization, Value: org}
}

// UserScope applies only for the named user.
func UserScope(user string) Scope { return Scope{Kind: ScopeUser, Value: user} }

// SessionScope applies only within the named session.
func SessionScope(session string) Scope {
	return Scope{Kind: ScopeSession, Value: session}
}

// ProjectScope applies only within the named project.
func ProjectScope(project string) Scope {
	return Scope{Kind: ScopeProject, Value: project}
}

// Strategy selects how conflicts between matching rules are resolved.
type Strategy string

const (
	// HighestPriority picks the highest-priority match.
	HighestPriority Strategy = "highest_priority"
	// MostRecent picks the most recently created match.
	MostRecent Strategy = "most_recent"
	// MostSpecific picks the match with the highest specificity score.
	MostSpecific Strategy = "most_specific"
	// Combine is not implemented and falls back to HighestPriority.
	Combine Strategy = "combine"
	// ReportAndFallback reports pairwise conflicts, then falls back to
	// HighestPriority.
	ReportAndFallback Strategy = "report_and_fallback"
)

// ConflictType classifies a detected conflict between rules.
type ConflictType string

const (
	PatternOverlap          ConflictType = "pattern_overlap"
	PriorityTie             ConflictType = "priority_tie"
	CircularDependency      ConflictType = "circular_dependency"
	ContradictoryConditions ConflictType = "contradictory_conditions"
	ScopeOverlap            ConflictType = "scope_overlap"
)

// Severity grades a conflict.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Pattern is a rule's matching configuration.
type Pattern struct {
	// Pattern is the literal, regex, or fuzzy target string.
	Pattern string `json:"pattern"`
	// CaseSensitive controls literal comparisons.
	CaseSensitive bool `json:"case_sensitive"`
	// WholeWord requests whole-word matching for literal patterns.
	WholeWord bool `json:"whole_word"`
	// RegexFlags carries extra flags for regex patterns.
	RegexFlags string `json:"regex_flags,omitempty"`
	// FuzzyThreshold is the similarity floor for fuzzy patterns.
	FuzzyThreshold *float64 `json:"fuzzy_threshold,omitempty"`
	// PositionConstraints bound positional patterns.
	PositionConstraints *PositionConstraints `json:"position_constraints,omitempty"`
}

// PositionConstraints bound a positional pattern by column index.
type PositionConstraints struct {
	MinIndex   *int `json:"min_index,omitempty"`
	MaxIndex   *int `json:"max_index,omitempty"`
	ExactIndex *int `json:"exact_index,omitempty"`
	// RelativePosition is one of first, last, second, third, fourth,
	// fifth.
	RelativePosition string `json:"relative_position,omitempty"`
}

// Condition gates a rule on request context.
//
// Required conditions AND together; if any optional conditions exist, at
// least one must also pass.
type Condition struct {
	Type     ConditionType `json:"condition_type"`
	Field    string        `json:"field"`
	Operator Operator      `json:"operator"`
	Value    interface{}   `json:"value"`
	Required bool          `json:"required"`
}

// Rule is one mapping override.
type Rule struct {
	ID          uuid.UUID   `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	PatternType PatternType `json:"pattern_type"`
	Pattern     Pattern     `json:"pattern"`
	TargetField string      `json:"target_field"`
	// Priority orders rules; higher wins. Bounded to [-1000, 1000].
	Priority   int         `json:"priority"`
	Conditions []Condition `json:"conditions,omitempty"`
	Scope      Scope       `json:"scope"`
	CreatedBy  string      `json:"created_by"`
	CreatedAt  time.Time   `json:"created_at"`
	ModifiedAt time.Time   `json:"modified_at"`
	Active     bool        `json:"active"`
	Version    int         `json:"version"`
	Tags       []string    `json:"tags,omitempty"`
}

// NewRule creates an active, global, version-1 rule with fresh ID and
// timestamps. Callers adjust scope, priority, and conditions afterwards.
func NewRule(name, description string, patternType PatternType, pattern Pattern, targetField string, createdBy string) Rule {
	now := time.Now().UTC()
	return Rule{
		ID:          uuid.New(),
		Name:        name,
		Description: description,
		PatternType: patternType,
		Pattern:     pattern,
		TargetField: targetField,
		Scope:       GlobalScope(),
		CreatedBy:   createdBy,
		CreatedAt:   now,
		ModifiedAt:  now,
		Active:      true,
		Version:     1,
	}
}

// Conflict records a detected clash between rules.
type Conflict struct {
	RuleIDs             []uuid.UUID  `json:"rule_ids"`
	Type                ConflictType `json:"conflict_type"`
	Severity            Severity     `json:"severity"`
	Description         string       `json:"description"`
	SuggestedResolution string       `json:"suggested_resolution,omitempty"`
	ResolutionApplied   Strategy     `json:"resolution_applied,omitempty"`
}

// Context carries the request-side facts that scopes and conditions
// evaluate against.
type Context struct {
	DocumentType string                 `json:"document_type"`
	FileName     string                 `json:"file_name,omitempty"`
	UserID       string                 `json:"user_id,omitempty"`
	Organization string                 `json:"organization,omitempty"`
	SessionID    string                 `json:"session_id,omitempty"`
	ProjectID    string                 `json:"project_id,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	ColumnCount  int                    `json:"column_count,omitempty"`
	SampleData   []interface{}          `json:"sample_data,omitempty"`
}

// Resolution is the outcome of resolving one column against the rule set.
type Resolution struct {
	// OverrideApplied is set when some rule matched and was selected.
	OverrideApplied bool `json:"override_applied"`
	// TargetField is the selected rule's target, empty otherwise.
	TargetField string `json:"target_field,omitempty"`
	// Confidence is 1.0 when an override applied, 0 otherwise.
	Confidence float64 `json:"confidence"`
	// Applied is the selected rule.
	Applied *Rule `json:"applied,omitempty"`
	// Alternatives are other rules that also matched.
	Alternatives []Rule `json:"alternatives,omitempty"`
	// Conflicts detected during resolution.
	Conflicts []Conflict `json:"conflicts,omitempty"`
	// ResolutionTime is how long resolution took.
	ResolutionTime time.Duration `json:"resolution_time"`
	// FromCache is set when the result was cache-served.
	FromCache bool `json:"from_cache"`
}

// Metrics are the engine's performance counters.
type Metrics struct {
	TotalApplications uint64 `json:"total_applications"`
	SuccessfulMatches uint64 `json:"successful_matches"`
	ConflictsDetected uint64 `json:"conflicts_detected"`
	// AvgResolutionTimeMicros is an exponentially smoothed average with
	// factor 0.9 old / 0.1 new.
	AvgResolutionTimeMicros float64   `json:"avg_resolution_time_us"`
	CacheHitRate            float64   `json:"cache_hit_rate"`
	LastUpdated             time.Time `json:"last_updated"`
}
