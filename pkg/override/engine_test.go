package override

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exactRule(name, pattern, target string, priority int) Rule {
	r := NewRule(name, "test rule "+name, ExactMatch, Pattern{Pattern: pattern}, target, "tester")
	r.Priority = priority
	return r
}

func containsRule(name, pattern, target string, priority int) Rule {
	r := NewRule(name, "test rule "+name, ContainsMatch, Pattern{Pattern: pattern}, target, "tester")
	r.Priority = priority
	return r
}

func TestResolveExactOverContains(t *testing.T) {
	e := NewEngine(DefaultEngineOptions())

	_, err := e.AddRule(exactRule("asset name", "Asset Name", "title", 10))
	require.NoError(t, err)
	_, err = e.AddRule(containsRule("asset catch-all", "Asset", "description", 1))
	require.NoError(t, err)

	result := e.ResolveMapping("Asset Name", "inventory", &Context{DocumentType: "inventory"})
	assert.True(t, result.OverrideApplied)
	assert.Equal(t, "title", result.TargetField)
	assert.Equal(t, 1.0, result.Confidence)
	assert.Empty(t, result.Conflicts, "different priorities must not report conflicts")
	assert.Len(t, result.Alternatives, 1)
}

func TestResolveNoMatch(t *testing.T) {
	e := NewEngine(DefaultEngineOptions())

	_, err := e.AddRule(exactRule("asset name", "Asset Name", "title", 10))
	require.NoError(t, err)

	result := e.ResolveMapping("Completely Different", "inventory", &Context{DocumentType: "inventory"})
	assert.False(t, result.OverrideApplied)
	assert.Equal(t, "", result.TargetField)
	assert.Equal(t, 0.0, result.Confidence)
	assert.Nil(t, result.Applied)
}

func TestExactMatchIsCaseInsensitiveByDefault(t *testing.T) {
	e := NewEngine(DefaultEngineOptions())

	_, err := e.AddRule(exactRule("asset name", "Asset Name", "title", 10))
	require.NoError(t, err)

	result := e.ResolveMapping("ASSET NAME", "inventory", nil)
	assert.True(t, result.OverrideApplied)

	sensitive := exactRule("strict", "Asset Name", "title", 20)
	sensitive.Pattern.CaseSensitive = true
	_, err = e.AddRule(sensitive)
	require.NoError(t, err)

	result = e.ResolveMapping("asset name", "inventory", nil)
	require.True(t, result.OverrideApplied)
	assert.Equal(t, "asset name", result.Applied.Name, "case-sensitive rule must not match different casing")
}

func TestAddRuleDetectsPriorityTie(t *testing.T) {
	e := NewEngine(DefaultEngineOptions())

	_, err := e.AddRule(exactRule("first", "Asset Name", "title", 5))
	require.NoError(t, err)

	conflicts, err := e.AddRule(exactRule("second", "asset name", "description", 5))
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, PriorityTie, conflicts[0].Type)
	assert.Equal(t, SeverityMedium, conflicts[0].Severity)
	assert.Len(t, conflicts[0].RuleIDs, 2)
}

func TestAddRuleNoConflictForDifferentPatterns(t *testing.T) {
	e := NewEngine(DefaultEngineOptions())

	_, err := e.AddRule(exactRule("first", "Asset Name", "title", 5))
	require.NoError(t, err)

	conflicts, err := e.AddRule(exactRule("second", "Severity", "severity", 5))
	require.NoError(t, err)
	assert.Empty(t, conflicts)
}

func TestAddRuleRejectsInvalid(t *testing.T) {
	e := NewEngine(DefaultEngineOptions())

	bad := exactRule("", "Asset Name", "title", 5)
	_, err := e.AddRule(bad)
	require.Error(t, err)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
	assert.Empty(t, e.Rules(), "rejected rule must not be applied")
}

func TestResolveMappingIsCached(t *testing.T) {
	e := NewEngine(DefaultEngineOptions())
	_, err := e.AddRule(exactRule("asset name", "Asset Name", "title", 10))
	require.NoError(t, err)

	first := e.ResolveMapping("Asset Name", "inventory", &Context{DocumentType: "inventory"})
	assert.False(t, first.FromCache)

	second := e.ResolveMapping("Asset Name", "inventory", &Context{DocumentType: "inventory"})
	assert.True(t, second.FromCache)
	assert.Equal(t, first.TargetField, second.TargetField)
}

func TestRemoveRuleInvalidatesCache(t *testing.T) {
	e := NewEngine(DefaultEngineOptions())

	rule := exactRule("asset name", "Asset Name", "title", 10)
	_, err := e.AddRule(rule)
	require.NoError(t, err)

	result := e.ResolveMapping("Asset Name", "inventory", nil)
	require.True(t, result.OverrideApplied)

	assert.True(t, e.RemoveRule(rule.ID))

	result = e.ResolveMapping("Asset Name", "inventory", nil)
	assert.False(t, result.OverrideApplied, "removed rule's target must never resurface")
	assert.False(t, result.FromCache)
}

func TestUpdateRule(t *testing.T) {
	e := NewEngine(DefaultEngineOptions())

	rule := exactRule("asset name", "Asset Name", "title", 10)
	_, err := e.AddRule(rule)
	require.NoError(t, err)

	rule.TargetField = "hostname"
	rule.ModifiedAt = time.Now().UTC()
	ok, err := e.UpdateRule(rule)
	require.NoError(t, err)
	require.True(t, ok)

	result := e.ResolveMapping("Asset Name", "inventory", nil)
	assert.Equal(t, "hostname", result.TargetField)

	missing := exactRule("ghost", "Ghost", "x", 1)
	ok, err = e.UpdateRule(missing)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInactiveRulesAreSkipped(t *testing.T) {
	e := NewEngine(DefaultEngineOptions())

	rule := exactRule("asset name", "Asset Name", "title", 10)
	rule.Active = false
	_, err := e.AddRule(rule)
	require.NoError(t, err)

	result := e.ResolveMapping("Asset Name", "inventory", nil)
	assert.False(t, result.OverrideApplied)
	assert.Empty(t, e.ActiveRules())
}

func TestDocumentTypeScope(t *testing.T) {
	e := NewEngine(DefaultEngineOptions())

	rule := exactRule("poam only", "Severity", "severity", 10)
	rule.Scope = DocumentTypeScope("poam")
	_, err := e.AddRule(rule)
	require.NoError(t, err)

	result := e.ResolveMapping("Severity", "poam", &Context{DocumentType: "poam"})
	assert.True(t, result.OverrideApplied)

	result = e.ResolveMapping("Severity", "inventory", &Context{DocumentType: "inventory"})
	assert.False(t, result.OverrideApplied, "scoped rule must not apply to other document types")
}

func TestConditionsGateRules(t *testing.T) {
	e := NewEngine(DefaultEngineOptions())

	rule := exactRule("conditioned", "Severity", "severity", 10)
	rule.Conditions = []Condition{{
		Type:     CondFileName,
		Field:    "file_name",
		Operator: OpContains,
		Value:    "poam",
		Required: true,
	}}
	_, err := e.AddRule(rule)
	require.NoError(t, err)

	result := e.ResolveMapping("Severity", "poam", &Context{DocumentType: "poam", FileName: "fedramp-poam-v3.xlsx"})
	assert.True(t, result.OverrideApplied)

	result = e.ResolveMapping("Severity", "poam", &Context{DocumentType: "poam", FileName: "inventory.xlsx"})
	assert.False(t, result.OverrideApplied)
}

func TestOptionalConditionsRequireOne(t *testing.T) {
	e := NewEngine(DefaultEngineOptions())

	rule := exactRule("either file", "Severity", "severity", 10)
	rule.Conditions = []Condition{
		{Type: CondFileName, Field: "file_name", Operator: OpContains, Value: "poam", Required: false},
		{Type: CondFileName, Field: "file_name", Operator: OpContains, Value: "milestones", Required: false},
	}
	_, err := e.AddRule(rule)
	require.NoError(t, err)

	result := e.ResolveMapping("Severity", "poam", &Context{DocumentType: "poam", FileName: "milestones.xlsx"})
	assert.True(t, result.OverrideApplied)

	result = e.ResolveMapping("Severity", "poam", &Context{DocumentType: "poam", FileName: "other.xlsx"})
	assert.False(t, result.OverrideApplied, "at least one optional condition must pass")
}

func TestPlaceholderPatternConfidences(t *testing.T) {
	e := NewEngine(DefaultEngineOptions())

	regex := NewRule("regex", "regex rule", RegexPattern, Pattern{Pattern: `^Asset.*$`}, "title", "tester")
	regex.Priority = 10
	_, err := e.AddRule(regex)
	require.NoError(t, err)

	threshold := 0.7
	fuzzy := NewRule("fuzzy", "fuzzy rule", FuzzyMatch, Pattern{Pattern: "Asset Name", FuzzyThreshold: &threshold}, "description", "tester")
	fuzzy.Priority = 5
	_, err = e.AddRule(fuzzy)
	require.NoError(t, err)

	// Both pattern types match unconditionally with fixed confidences
	// until real evaluation is implemented.
	result := e.ResolveMapping("anything at all", "inventory", nil)
	require.True(t, result.OverrideApplied)
	assert.Equal(t, "title", result.TargetField, "regex placeholder outranks fuzzy by priority")
	assert.Len(t, result.Alternatives, 1)
}

func TestMetricsAccumulate(t *testing.T) {
	e := NewEngine(DefaultEngineOptions())
	_, err := e.AddRule(exactRule("asset name", "Asset Name", "title", 10))
	require.NoError(t, err)

	e.ResolveMapping("Asset Name", "inventory", nil)
	e.ResolveMapping("No Match Here", "inventory", nil)

	m := e.Metrics()
	assert.Equal(t, uint64(2), m.TotalApplications)
	assert.Equal(t, uint64(1), m.SuccessfulMatches)
	assert.False(t, m.LastUpdated.IsZero())
}

func TestRulesSortedByPriority(t *testing.T) {
	e := NewEngine(DefaultEngineOptions())

	_, err := e.AddRule(exactRule("low", "A", "a", 1))
	require.NoError(t, err)
	_, err = e.AddRule(exactRule("high", "B", "b", 100))
	require.NoError(t, err)
	_, err = e.AddRule(exactRule("mid", "C", "c", 50))
	require.NoError(t, err)

	rules := e.Rules()
	require.Len(t, rules, 3)
	assert.Equal(t, "high", rules[0].Name)
	assert.Equal(t, "mid", rules[1].Name)
	assert.Equal(t, "low", rules[2].Name)
}
