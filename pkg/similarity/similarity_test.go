package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindsOrderIsStable(t *testing.T) {
	expected := []Kind{Levenshtein, JaroWinkler, Ngram, Soundex}
	assert.Equal(t, expected, Kinds())
	assert.Equal(t, expected, Kinds(), "repeated calls must return the same order")
}

func TestParseKind(t *testing.T) {
	k, ok := ParseKind("jaro_winkler")
	require.True(t, ok)
	assert.Equal(t, JaroWinkler, k)

	_, ok = ParseKind("metaphone")
	assert.False(t, ok)
}

func TestIdenticalStringsScoreOne(t *testing.T) {
	for _, k := range Kinds() {
		assert.Equal(t, 1.0, k.Similarity("asset id", "asset id"), "%s", k)
		assert.Equal(t, 1.0, k.Similarity("", ""), "%s on empty input", k)
	}
}

func TestScoresStayInUnitInterval(t *testing.T) {
	pairs := [][2]string{
		{"asset id", "asset identifier"},
		{"a", "zzzzzzzzzz"},
		{"", "nonempty"},
		{"Ünïcode", "unicode"},
		{"POA&M Item", "plan of action"},
	}
	for _, k := range Kinds() {
		for _, pair := range pairs {
			score := k.Similarity(pair[0], pair[1])
			assert.GreaterOrEqual(t, score, 0.0, "%s(%q, %q)", k, pair[0], pair[1])
			assert.LessOrEqual(t, score, 1.0, "%s(%q, %q)", k, pair[0], pair[1])
		}
	}
}

func TestLevenshteinSimilarity(t *testing.T) {
	// kitten -> sitting is 3 edits over max length 7
	assert.InDelta(t, 1.0-3.0/7.0, LevenshteinSimilarity("kitten", "sitting"), 1e-9)

	// One empty side scores zero
	assert.Equal(t, 0.0, LevenshteinSimilarity("abc", ""))
	assert.Equal(t, 0.0, LevenshteinSimilarity("", "abc"))

	// Single substitution in a long string stays high
	assert.Greater(t, LevenshteinSimilarity("assetidentifier", "assetidentifies"), 0.9)
}

func TestJaroWinklerSimilarity(t *testing.T) {
	// Classic reference value
	assert.InDelta(t, 0.961, JaroWinklerSimilarity("martha", "marhta"), 0.001)

	// Prefix boost only applies above the 0.7 Jaro floor
	low := JaroWinklerSimilarity("abcdef", "uvwxyz")
	assert.Less(t, low, 0.7)

	// A one-character typo on a column header scores well above 0.8
	assert.Greater(t, JaroWinklerSimilarity("assett id", "asset id"), 0.8)
}

func TestNgramSimilarity(t *testing.T) {
	// Disjoint bigrams score zero
	assert.Equal(t, 0.0, NgramSimilarity("aabb", "ccdd"))

	// Repeated bigrams are counted with multiplicity: "aaa" has {aa:2},
	// "aa" has {aa:1}, so overlap is 1/2.
	assert.InDelta(t, 0.5, NgramSimilarity("aaa", "aa"), 1e-9)

	// Single-character strings fall back to whole-string grams
	assert.Equal(t, 0.0, NgramSimilarity("a", "b"))
}

func TestSoundexSimilarity(t *testing.T) {
	// Smith and Smythe share a Soundex code
	assert.Equal(t, 0.8, SoundexSimilarity("Smith", "Smythe"))

	// Unequal codes score by position agreement, capped at 0.6
	score := SoundexSimilarity("Robert", "Lauren")
	assert.Less(t, score, 0.8)
	assert.GreaterOrEqual(t, score, 0.0)
}

func TestSoundexCode(t *testing.T) {
	assert.Equal(t, "S530", soundexCode("Smith"))
	assert.Equal(t, "R163", soundexCode("Robert"))
	assert.Equal(t, "0000", soundexCode(""))
}

func TestNeedsNormalized(t *testing.T) {
	assert.True(t, Levenshtein.NeedsNormalized())
	assert.True(t, JaroWinkler.NeedsNormalized())
	assert.True(t, Ngram.NeedsNormalized())
	assert.False(t, Soundex.NeedsNormalized(), "soundex folds case itself")
}
