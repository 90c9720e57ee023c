package store

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/colmap/pkg/override"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testRule(name, pattern, target string) override.Rule {
	return override.NewRule(name, "test rule "+name, override.ExactMatch,
		override.Pattern{Pattern: pattern}, target, "tester")
}

func TestPutGetRoundTrip(t *testing.T) {
	s := testStore(t)

	rule := testRule("asset name", "Asset Name", "title")
	rule.Priority = 42
	rule.Tags = []string{"fedramp"}
	require.NoError(t, s.PutRule(rule))

	got, err := s.GetRule(rule.ID)
	require.NoError(t, err)
	assert.Equal(t, rule.ID, got.ID)
	assert.Equal(t, rule.Name, got.Name)
	assert.Equal(t, 42, got.Priority)
	assert.Equal(t, []string{"fedramp"}, got.Tags)
	assert.Equal(t, override.ExactMatch, got.PatternType)
	assert.True(t, rule.CreatedAt.Equal(got.CreatedAt))
}

func TestGetMissingRule(t *testing.T) {
	s := testStore(t)

	_, err := s.GetRule(uuid.New())
	assert.ErrorIs(t, err, ErrRuleNotFound)
}

func TestPutOverwritesSameID(t *testing.T) {
	s := testStore(t)

	rule := testRule("asset name", "Asset Name", "title")
	require.NoError(t, s.PutRule(rule))

	rule.TargetField = "hostname"
	require.NoError(t, s.PutRule(rule))

	got, err := s.GetRule(rule.ID)
	require.NoError(t, err)
	assert.Equal(t, "hostname", got.TargetField)

	n, err := s.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDeleteRule(t *testing.T) {
	s := testStore(t)

	rule := testRule("asset name", "Asset Name", "title")
	require.NoError(t, s.PutRule(rule))
	require.NoError(t, s.DeleteRule(rule.ID))

	_, err := s.GetRule(rule.ID)
	assert.ErrorIs(t, err, ErrRuleNotFound)

	assert.ErrorIs(t, s.DeleteRule(rule.ID), ErrRuleNotFound)
}

func TestListRules(t *testing.T) {
	s := testStore(t)

	for _, r := range []override.Rule{
		testRule("a", "Asset Name", "title"),
		testRule("b", "Severity", "severity"),
		testRule("c", "IP Address", "ip_address"),
	} {
		require.NoError(t, s.PutRule(r))
	}

	rules, err := s.ListRules()
	require.NoError(t, err)
	assert.Len(t, rules, 3)

	names := make(map[string]bool)
	for _, r := range rules {
		names[r.Name] = true
	}
	assert.True(t, names["a"] && names["b"] && names["c"])
}

func TestLoadInto(t *testing.T) {
	s := testStore(t)

	good := testRule("good", "Asset Name", "title")
	require.NoError(t, s.PutRule(good))

	// An invalid rule in the store must be skipped, not fail the load.
	bad := testRule("bad", "", "title")
	require.NoError(t, s.PutRule(bad))

	engine := override.NewEngine(override.DefaultEngineOptions())
	loaded, err := s.LoadInto(engine)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded)
	assert.Len(t, engine.Rules(), 1)
}

func TestExportImportJSON(t *testing.T) {
	src := testStore(t)

	r1 := testRule("a", "Asset Name", "title")
	r2 := testRule("b", "Severity", "severity")
	require.NoError(t, src.PutRule(r1))
	require.NoError(t, src.PutRule(r2))

	var buf bytes.Buffer
	require.NoError(t, src.ExportJSON(&buf))

	dst := testStore(t)
	n, err := dst.ImportJSON(&buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := dst.GetRule(r1.ID)
	require.NoError(t, err)
	assert.Equal(t, "a", got.Name)
}

func TestImportJSONRejectsMalformed(t *testing.T) {
	s := testStore(t)

	_, err := s.ImportJSON(bytes.NewBufferString(`{"not": "an array"`))
	assert.Error(t, err)
}

func TestClosedStoreFails(t *testing.T) {
	s, err := OpenInMemory()
	require.NoError(t, err)
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.PutRule(testRule("a", "A", "a")), ErrStoreClosed)
	_, err = s.GetRule(uuid.New())
	assert.ErrorIs(t, err, ErrStoreClosed)
	_, err = s.ListRules()
	assert.ErrorIs(t, err, ErrStoreClosed)

	assert.NoError(t, s.Close(), "double close is a no-op")
}
