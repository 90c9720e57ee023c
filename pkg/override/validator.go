package override

import (
	"fmt"
	"regexp"

	"github.com/orneryd/colmap/pkg/xlog"
)

// ValidationError reports a malformed rule. A failed validation rejects the
// mutation outright; a rule is never partially applied or silently coerced.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return "override validation: " + e.Message
}

func validationErrorf(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

var validRelativePositions = map[string]struct{}{
	"first": {}, "last": {}, "second": {}, "third": {}, "fourth": {}, "fifth": {},
}

// Validator checks rules on every add and update.
//
// Regex patterns are compiled during validation and kept in a cache separate
// from the engine's resolution cache, so repeated validations of the same
// pattern do not recompile.
type Validator struct {
	regexCache   map[string]*regexp.Regexp
	maxCacheSize int
}

// NewValidator creates a validator with a 1000-entry regex cache.
func NewValidator() *Validator {
	return &Validator{
		regexCache:   make(map[string]*regexp.Regexp),
		maxCacheSize: 1000,
	}
}

// Validate checks every constraint on a rule. Returns a *ValidationError
// describing the first violation found.
func (v *Validator) Validate(rule *Rule) error {
	if err := v.validateBasicFields(rule); err != nil {
		return err
	}
	if err := v.validatePattern(&rule.Pattern, rule.PatternType); err != nil {
		return err
	}
	if err := v.validateConditions(rule.Conditions); err != nil {
		return err
	}
	if err := v.validateScope(rule.Scope); err != nil {
		return err
	}
	if err := v.validateBusinessRules(rule); err != nil {
		return err
	}

	xlog.Debug("rule passed validation", map[string]interface{}{"rule": rule.Name})
	return nil
}

func (v *Validator) validateBasicFields(rule *Rule) error {
	if rule.Name == "" {
		return validationErrorf("rule name cannot be empty")
	}
	if len(rule.Name) > 255 {
		return validationErrorf("rule name too long (max 255 characters)")
	}

	if rule.Description == "" {
		return validationErrorf("rule description cannot be empty")
	}
	if len(rule.Description) > 1000 {
		return validationErrorf("rule description too long (max 1000 characters)")
	}

	if rule.TargetField == "" {
		return validationErrorf("target field cannot be empty")
	}
	if len(rule.TargetField) > 255 {
		return validationErrorf("target field name too long (max 255 characters)")
	}

	if rule.Priority < -1000 || rule.Priority > 1000 {
		return validationErrorf("priority must be between -1000 and 1000")
	}

	if rule.CreatedBy == "" {
		return validationErrorf("created by field cannot be empty")
	}

	if rule.Version < 1 {
		return validationErrorf("version must be greater than 0")
	}

	for _, tag := range rule.Tags {
		if tag == "" {
			return validationErrorf("tags cannot be empty")
		}
		if len(tag) > 50 {
			return validationErrorf("tag too long (max 50 characters)")
		}
	}

	return nil
}

func (v *Validator) validatePattern(p *Pattern, patternType PatternType) error {
	if p.Pattern == "" {
		return validationErrorf("pattern cannot be empty")
	}
	if len(p.Pattern) > 1000 {
		return validationErrorf("pattern too long (max 1000 characters)")
	}

	switch patternType {
	case RegexPattern:
		if _, err := v.CompiledRegex(p.Pattern); err != nil {
			return validationErrorf("invalid regex pattern: %v", err)
		}
	case FuzzyMatch:
		if p.FuzzyThreshold == nil {
			return validationErrorf("fuzzy threshold is required for fuzzy matching")
		}
		if *p.FuzzyThreshold < 0 || *p.FuzzyThreshold > 1 {
			return validationErrorf("fuzzy threshold must be between 0.0 and 1.0")
		}
	case PositionalMatch:
		if err := validatePositionConstraints(p.PositionConstraints); err != nil {
			return err
		}
	case ExactMatch, ContainsMatch, PrefixSuffixMatch, ConditionalMatch:
		// Literal patterns need no extra checks.
	default:
		return validationErrorf("unknown pattern type %q", patternType)
	}

	return nil
}

func validatePositionConstraints(pc *PositionConstraints) error {
	if pc == nil {
		return validationErrorf("position constraints are required for positional matching")
	}

	if pc.MinIndex != nil && pc.MaxIndex != nil && *pc.MinIndex > *pc.MaxIndex {
		return validationErrorf("minimum index cannot be greater than maximum index")
	}
	if pc.MinIndex != nil && *pc.MinIndex < 0 {
		return validationErrorf("minimum index cannot be negative")
	}
	if pc.ExactIndex != nil {
		if *pc.ExactIndex < 0 {
			return validationErrorf("exact index cannot be negative")
		}
		if *pc.ExactIndex > 10000 {
			return validationErrorf("exact index seems unreasonably large (>10000)")
		}
	}
	if pc.RelativePosition != "" {
		if _, ok := validRelativePositions[pc.RelativePosition]; !ok {
			return validationErrorf("invalid relative position: %s", pc.RelativePosition)
		}
	}
	return nil
}

func (v *Validator) validateConditions(conditions []Condition) error {
	for i := range conditions {
		if err := validateCondition(&conditions[i]); err != nil {
			return err
		}
	}

	// Contradictory pairs are warned about, not rejected.
	for i := 0; i < len(conditions); i++ {
		for j := i + 1; j < len(conditions); j++ {
			c1, c2 := &conditions[i], &conditions[j]
			if c1.Field == c2.Field && c1.Type == c2.Type &&
				operatorsContradict(c1.Operator, c2.Operator, c1.Value, c2.Value) {
				xlog.Warn("potentially contradictory conditions", map[string]interface{}{
					"field": c1.Field,
				})
			}
		}
	}

	return nil
}

func validateCondition(c *Condition) error {
	if c.Field == "" {
		return validationErrorf("condition field cannot be empty")
	}

	switch c.Type {
	case CondDocumentType, CondFileName:
		if _, ok := c.Value.(string); !ok {
			return validationErrorf("%s condition value must be a string", c.Type)
		}
	case CondColumnCount:
		count, ok := numericValue(c.Value)
		if !ok {
			return validationErrorf("column count condition value must be a number")
		}
		if count < 1 || count > 10000 {
			return validationErrorf("column count must be between 1 and 10000")
		}
	case CondUserRole, CondOrganization:
		if _, ok := c.Value.(string); !ok {
			return validationErrorf("%s condition value must be a string", c.Type)
		}
	case CondDataSample, CondCustomMetadata:
		// Any value type is allowed.
	default:
		return validationErrorf("unknown condition type %q", c.Type)
	}

	return validateOperatorCompatibility(c.Type, c.Operator)
}

// validateOperatorCompatibility enforces that numeric operators only pair
// with count-type conditions and string operators with string-type
// conditions.
func validateOperatorCompatibility(condType ConditionType, op Operator) error {
	switch condType {
	case CondColumnCount:
		switch op {
		case OpEquals, OpNotEquals, OpGreaterThan, OpLessThan,
			OpGreaterThanOrEqual, OpLessThanOrEqual:
			return nil
		}
		return validationErrorf("invalid operator %q for column count condition", op)
	case CondDocumentType, CondFileName, CondUserRole, CondOrganization:
		switch op {
		case OpEquals, OpNotEquals, OpContains, OpNotContains,
			OpMatches, OpNotMatches, OpIn, OpNotIn:
			return nil
		}
		return validationErrorf("invalid operator %q for string condition", op)
	}
	return nil
}

func operatorsContradict(op1, op2 Operator, v1, v2 interface{}) bool {
	switch {
	case op1 == OpEquals && op2 == OpNotEquals,
		op1 == OpNotEquals && op2 == OpEquals,
		op1 == OpContains && op2 == OpNotContains,
		op1 == OpNotContains && op2 == OpContains:
		return v1 == v2
	}
	return false
}

func (v *Validator) validateScope(s Scope) error {
	switch s.Kind {
	case ScopeGlobal:
		return nil
	case ScopeDocumentType, ScopeOrganization, ScopeUser, ScopeSession, ScopeProject:
		if s.Value == "" {
			return validationErrorf("%s scope cannot be empty", s.Kind)
		}
		return nil
	}
	return validationErrorf("unknown scope kind %q", s.Kind)
}

func (v *Validator) validateBusinessRules(rule *Rule) error {
	if rule.Active && rule.Priority < -100 {
		xlog.Warn("active rule has very low priority", map[string]interface{}{
			"rule":     rule.Name,
			"priority": rule.Priority,
		})
	}

	if rule.ModifiedAt.Before(rule.CreatedAt) {
		return validationErrorf("modified date cannot be before created date")
	}

	return nil
}

// CompiledRegex returns the compiled form of a pattern, compiling and
// caching on first use. The cache is dropped wholesale when full.
func (v *Validator) CompiledRegex(pattern string) (*regexp.Regexp, error) {
	if re, ok := v.regexCache[pattern]; ok {
		return re, nil
	}

	if len(v.regexCache) >= v.maxCacheSize {
		v.regexCache = make(map[string]*regexp.Regexp)
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	v.regexCache[pattern] = re
	return re, nil
}

// ClearCache drops all compiled regex patterns.
func (v *Validator) ClearCache() {
	v.regexCache = make(map[string]*regexp.Regexp)
}

// CacheStats returns the regex cache's size and capacity.
func (v *Validator) CacheStats() (size, maxSize int) {
	return len(v.regexCache), v.maxCacheSize
}

func numericValue(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
