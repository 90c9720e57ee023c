package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/colmap/pkg/lookup"
	"github.com/orneryd/colmap/pkg/override"
	"github.com/orneryd/colmap/pkg/schema"
)

func testPipeline(t *testing.T) *Pipeline {
	t.Helper()

	s := &schema.Schema{Fields: []schema.Field{
		{Name: "uuid", SourceType: schema.SourceInventory, Required: true, Aliases: []string{"Asset ID", "UUID"}},
		{Name: "title", SourceType: schema.SourceInventory, Required: true, Aliases: []string{"Asset Name", "Hostname"}},
		{Name: "severity", SourceType: schema.SourcePOAM, Aliases: []string{"Severity", "Risk Rating"}},
	}}
	ix := lookup.NewIndex(s, nil)
	engine := override.NewEngine(override.DefaultEngineOptions())
	return NewPipeline(ix, engine, 0.6)
}

func addOverride(t *testing.T, p *Pipeline, name, pattern, target string, priority int) override.Rule {
	t.Helper()
	r := override.NewRule(name, "test rule "+name, override.ExactMatch,
		override.Pattern{Pattern: pattern}, target, "tester")
	r.Priority = priority
	_, err := p.Overrides().AddRule(r)
	require.NoError(t, err)
	return r
}

func TestOverrideTakesPrecedenceOverExact(t *testing.T) {
	p := testPipeline(t)

	// "Asset Name" is an exact alias for title, but the override forces
	// it to severity.
	addOverride(t, p, "force severity", "Asset Name", "severity", 10)

	m := p.Resolve("Asset Name", "inventory", &override.Context{DocumentType: "inventory"})
	assert.Equal(t, MethodOverride, m.Method)
	assert.Equal(t, "severity", m.TargetField)
	assert.Equal(t, 1.0, m.Confidence)
}

func TestExactStage(t *testing.T) {
	p := testPipeline(t)

	m := p.Resolve("asset-id", "inventory", nil)
	assert.Equal(t, MethodExact, m.Method)
	assert.Equal(t, "uuid", m.TargetField)
	assert.Equal(t, 1.0, m.Confidence)
	assert.True(t, m.Required)
	assert.Equal(t, schema.SourceInventory, m.SourceType)
}

func TestFuzzyStage(t *testing.T) {
	p := testPipeline(t)

	m := p.Resolve("Assett ID", "inventory", nil)
	assert.Equal(t, MethodFuzzy, m.Method)
	assert.Equal(t, "uuid", m.TargetField)
	assert.Greater(t, m.Confidence, 0.8)
}

func TestNoneStage(t *testing.T) {
	p := testPipeline(t)

	m := p.Resolve("Quarterly Revenue Forecast", "inventory", nil)
	assert.Equal(t, MethodNone, m.Method)
	assert.Equal(t, "", m.TargetField)
	assert.Equal(t, 0.0, m.Confidence)
}

func TestRemovedOverrideDoesNotResurface(t *testing.T) {
	p := testPipeline(t)

	rule := addOverride(t, p, "force severity", "Asset Name", "severity", 10)

	m := p.Resolve("Asset Name", "inventory", nil)
	require.Equal(t, "severity", m.TargetField)

	require.True(t, p.Overrides().RemoveRule(rule.ID))

	m = p.Resolve("Asset Name", "inventory", nil)
	assert.Equal(t, MethodExact, m.Method)
	assert.Equal(t, "title", m.TargetField, "removed rule's target must never return")
}

func TestNilOverrideEngineSkipsStage(t *testing.T) {
	s := &schema.Schema{Fields: []schema.Field{
		{Name: "uuid", Aliases: []string{"Asset ID"}},
	}}
	p := NewPipeline(lookup.NewIndex(s, nil), nil, 0.6)

	m := p.Resolve("Asset ID", "inventory", nil)
	assert.Equal(t, MethodExact, m.Method)
}

func TestMapColumns(t *testing.T) {
	p := testPipeline(t)

	report := p.MapColumns(
		[]string{"Asset ID", "Assett Name", "Nothing Like A Field At All"},
		"inventory", nil)

	require.Len(t, report.Mappings, 3)
	assert.Equal(t, MethodExact, report.Mappings[0].Method)
	assert.Equal(t, MethodFuzzy, report.Mappings[1].Method)
	assert.Equal(t, MethodNone, report.Mappings[2].Method)

	assert.Equal(t, []string{"Nothing Like A Field At All"}, report.Unmapped)
	assert.Empty(t, report.MissingRequired, "uuid and title are both mapped")
}

func TestMapColumnsReportsMissingRequired(t *testing.T) {
	p := testPipeline(t)

	report := p.MapColumns([]string{"Severity"}, "poam", nil)
	assert.Contains(t, report.MissingRequired, "uuid")
	assert.Contains(t, report.MissingRequired, "title")
	assert.Len(t, report.MissingRequired, 2)
}
