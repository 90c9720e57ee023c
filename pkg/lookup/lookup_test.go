package lookup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/colmap/pkg/schema"
)

func testSchema() *schema.Schema {
	return &schema.Schema{Fields: []schema.Field{
		{
			Name:       "uuid",
			SourceType: schema.SourceInventory,
			Required:   true,
			Aliases:    []string{"Asset ID", "Asset Identifier", "UUID"},
			Validation: "regex:^[0-9a-f-]+$",
		},
		{
			Name:       "title",
			SourceType: schema.SourceInventory,
			Required:   true,
			Aliases:    []string{"Asset Name", "Hostname"},
		},
		{
			Name:       "severity",
			SourceType: schema.SourcePOAM,
			Aliases:    []string{"Severity", "Risk Rating"},
			Validation: "values:low,moderate,high",
		},
	}}
}

func TestNormalizeIsIdempotentAndInsensitive(t *testing.T) {
	assert.Equal(t, Normalize("Asset ID"), Normalize("asset-id"))
	assert.Equal(t, Normalize("Asset ID"), Normalize("ASSET_ID"))
	assert.Equal(t, "assetid", Normalize("Asset ID"))
	assert.Equal(t, Normalize("assetid"), Normalize(Normalize("Asset ID")))
	assert.Equal(t, "poamitems", Normalize("POA.M Items"))
}

func TestNormalizeSpellsOutAmpersand(t *testing.T) {
	assert.Equal(t, "poaandm", Normalize("POA&M"))
}

func TestFindExactMatch(t *testing.T) {
	ix := NewIndex(testSchema(), nil)

	entry, ok := ix.FindExactMatch("asset-id")
	require.True(t, ok)
	assert.Equal(t, "uuid", entry.TargetField)
	assert.Equal(t, schema.SourceInventory, entry.SourceType)
	assert.True(t, entry.Required)

	_, ok = ix.FindExactMatch("completely unknown")
	assert.False(t, ok)
}

func TestFindFuzzyMatchesTypo(t *testing.T) {
	ix := NewIndex(testSchema(), nil)

	results := ix.FindFuzzyMatches("Assett ID", 0.6)
	require.NotEmpty(t, results)
	assert.Equal(t, "uuid", results[0].TargetField)
	assert.Greater(t, results[0].Confidence, 0.8)
	assert.Equal(t, "Assett ID", results[0].SourceColumn)
}

func TestFindFuzzyMatchesRespectsThreshold(t *testing.T) {
	ix := NewIndex(testSchema(), nil)

	results := ix.FindFuzzyMatches("Assett ID", 1.01)
	assert.Empty(t, results)
}

func TestFuzzyEquivalentAliasIsExact(t *testing.T) {
	ix := NewIndex(testSchema(), nil)

	results := ix.FindFuzzyMatches("asset id", 0.6)
	require.NotEmpty(t, results)
	assert.Equal(t, "uuid", results[0].TargetField)
	assert.Equal(t, 1.0, results[0].Confidence)
	assert.True(t, results[0].ExactMatch)
}

func TestValidationRuleLookup(t *testing.T) {
	ix := NewIndex(testSchema(), nil)

	rule, ok := ix.ValidationRule("uuid")
	require.True(t, ok)
	assert.Equal(t, ValidationRegex, rule.Type)
	assert.Equal(t, "regex:^[0-9a-f-]+$", rule.Raw)

	rule, ok = ix.ValidationRule("severity")
	require.True(t, ok)
	assert.Equal(t, ValidationAllowedValues, rule.Type)

	_, ok = ix.ValidationRule("title")
	assert.False(t, ok)
}

func TestIsRequiredField(t *testing.T) {
	ix := NewIndex(testSchema(), nil)

	assert.True(t, ix.IsRequiredField("uuid"))
	assert.True(t, ix.IsRequiredField("title"))
	assert.False(t, ix.IsRequiredField("severity"))
	assert.False(t, ix.IsRequiredField("nonexistent"))
}

func TestStats(t *testing.T) {
	ix := NewIndex(testSchema(), nil)

	stats := ix.Stats()
	assert.Equal(t, 7, stats.FuzzyCandidates)
	assert.Equal(t, 2, stats.ValidationRules)
	assert.Equal(t, 2, stats.RequiredFields)
	assert.Equal(t, 5, stats.SourceTypes[schema.SourceInventory])
	assert.Equal(t, 2, stats.SourceTypes[schema.SourcePOAM])
}

func TestParseValidationType(t *testing.T) {
	assert.Equal(t, ValidationBoolean, parseValidationType("bool"))
	assert.Equal(t, ValidationNumeric, parseValidationType("Number"))
	assert.Equal(t, ValidationDate, parseValidationType("date"))
	assert.Equal(t, ValidationEmail, parseValidationType("email"))
	assert.Equal(t, ValidationURL, parseValidationType("url"))
	assert.Equal(t, ValidationRegex, parseValidationType("regex:^x$"))
	assert.Equal(t, ValidationAllowedValues, parseValidationType("values:a,b"))
	assert.Equal(t, ValidationCustom, parseValidationType("something else"))
}
