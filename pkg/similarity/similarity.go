// Package similarity implements the string similarity algorithms used by the
// fuzzy matching engine.
//
// Four algorithms are provided as a closed set: Levenshtein (edit distance),
// Jaro-Winkler (transposition-aware with prefix boost), Ngram (counted bigram
// overlap), and Soundex (phonetic encoding). Each returns a score in [0, 1]
// where 1.0 means identical.
//
// The set is deliberately closed. Callers switch exhaustively over Kind so
// that adding an algorithm forces review of every call site that weighs,
// names, or preprocesses for one.
//
// Example:
//
//	score := similarity.JaroWinkler.Similarity("Asset ID", "Assett ID")
//	fmt.Printf("%s: %.3f\n", similarity.JaroWinkler, score) // jaro_winkler: 0.9xx
package similarity

import (
	"strings"
)

// Kind identifies one of the built-in similarity algorithms.
type Kind string

const (
	// Levenshtein scores by normalized edit distance.
	Levenshtein Kind = "levenshtein"
	// JaroWinkler scores by the Jaro similarity with a common-prefix boost.
	JaroWinkler Kind = "jaro_winkler"
	// Ngram scores by counted bigram overlap (Jaccard with multiplicity).
	Ngram Kind = "ngram"
	// Soundex scores by phonetic code agreement.
	Soundex Kind = "soundex"
)

// Kinds returns all built-in algorithms in a fixed, deterministic order.
//
// The order is stable across processes; configuration fingerprinting
// depends on it.
func Kinds() []Kind {
	return []Kind{Levenshtein, JaroWinkler, Ngram, Soundex}
}

// ParseKind resolves an algorithm name to its Kind.
func ParseKind(name string) (Kind, bool) {
	switch Kind(name) {
	case Levenshtein, JaroWinkler, Ngram, Soundex:
		return Kind(name), true
	}
	return "", false
}

func (k Kind) String() string { return string(k) }

// NeedsNormalized reports whether the algorithm expects preprocessed input.
//
// Soundex performs its own case folding and consonant mapping, so it scores
// the raw strings; the others compare preprocessed text.
func (k Kind) NeedsNormalized() bool {
	switch k {
	case Soundex:
		return false
	case Levenshtein, JaroWinkler, Ngram:
		return true
	}
	return true
}

// Similarity computes the algorithm's score for two strings.
//
// Scores are always in [0, 1]; identical inputs score 1.0 for every
// algorithm.
func (k Kind) Similarity(s1, s2 string) float64 {
	switch k {
	case Levenshtein:
		return LevenshteinSimilarity(s1, s2)
	case JaroWinkler:
		return JaroWinklerSimilarity(s1, s2)
	case Ngram:
		return NgramSimilarity(s1, s2)
	case Soundex:
		return SoundexSimilarity(s1, s2)
	}
	return 0
}

// LevenshteinSimilarity returns 1 - distance/maxLen for two strings.
//
// Example:
//
//	LevenshteinSimilarity("kitten", "sitting") // => 1 - 3/7 ≈ 0.571
func LevenshteinSimilarity(s1, s2 string) float64 {
	if s1 == s2 {
		return 1.0
	}
	r1 := []rune(s1)
	r2 := []rune(s2)
	if len(r1) == 0 || len(r2) == 0 {
		return 0.0
	}
	dist := levenshteinDistance(r1, r2)
	maxLen := len(r1)
	if len(r2) > maxLen {
		maxLen = len(r2)
	}
	return 1.0 - float64(dist)/float64(maxLen)
}

func levenshteinDistance(r1, r2 []rune) int {
	len1, len2 := len(r1), len(r2)

	// Two-row rolling matrix keeps allocation proportional to the shorter
	// dimension of the classic DP table.
	prev := make([]int, len2+1)
	curr := make([]int, len2+1)
	for j := 0; j <= len2; j++ {
		prev[j] = j
	}

	for i := 1; i <= len1; i++ {
		curr[0] = i
		for j := 1; j <= len2; j++ {
			cost := 1
			if r1[i-1] == r2[j-1] {
				cost = 0
			}
			curr[j] = minInt(prev[j]+1, minInt(curr[j-1]+1, prev[j-1]+cost))
		}
		prev, curr = curr, prev
	}
	return prev[len2]
}

// JaroWinklerSimilarity returns the Jaro-Winkler similarity of two strings.
//
// The Winkler prefix boost (up to 4 characters, scaling factor 0.1) is only
// applied when the base Jaro similarity is at least 0.7, so dissimilar
// strings are not inflated by a shared prefix.
//
// Example:
//
//	JaroWinklerSimilarity("martha", "marhta") // => 0.961
func JaroWinklerSimilarity(s1, s2 string) float64 {
	if s1 == s2 {
		return 1.0
	}

	jaro := jaroSimilarity([]rune(s1), []rune(s2))
	if jaro < 0.7 {
		return jaro
	}

	prefix := 0
	r1 := []rune(s1)
	r2 := []rune(s2)
	for i := 0; i < len(r1) && i < len(r2) && i < 4; i++ {
		if r1[i] != r2[i] {
			break
		}
		prefix++
	}

	return jaro + 0.1*float64(prefix)*(1.0-jaro)
}

func jaroSimilarity(r1, r2 []rune) float64 {
	len1, len2 := len(r1), len(r2)
	if len1 == 0 && len2 == 0 {
		return 1.0
	}
	if len1 == 0 || len2 == 0 {
		return 0.0
	}

	matchWindow := maxInt(len1, len2)/2 - 1
	if matchWindow < 0 {
		matchWindow = 0
	}

	matches1 := make([]bool, len1)
	matches2 := make([]bool, len2)
	matches := 0

	for i := 0; i < len1; i++ {
		start := maxInt(0, i-matchWindow)
		end := minInt(i+matchWindow+1, len2)
		for j := start; j < end; j++ {
			if matches2[j] || r1[i] != r2[j] {
				continue
			}
			matches1[i] = true
			matches2[j] = true
			matches++
			break
		}
	}

	if matches == 0 {
		return 0.0
	}

	transpositions := 0
	k := 0
	for i := 0; i < len1; i++ {
		if !matches1[i] {
			continue
		}
		for !matches2[k] {
			k++
		}
		if r1[i] != r2[k] {
			transpositions++
		}
		k++
	}

	m := float64(matches)
	return (m/float64(len1) + m/float64(len2) + (m-float64(transpositions)/2.0)/m) / 3.0
}

// NgramSimilarity returns the counted bigram overlap of two strings.
//
// Bigram multiplicities are respected: the score is the sum of per-bigram
// minimum counts over the sum of per-bigram maximum counts. Strings shorter
// than a bigram are treated as a single gram.
//
// Example:
//
//	NgramSimilarity("night", "nacht") // shared "ht" only => low score
func NgramSimilarity(s1, s2 string) float64 {
	if s1 == s2 {
		return 1.0
	}

	grams1 := bigrams(s1)
	grams2 := bigrams(s2)
	if len(grams1) == 0 && len(grams2) == 0 {
		return 1.0
	}
	if len(grams1) == 0 || len(grams2) == 0 {
		return 0.0
	}

	intersection := 0
	union := 0
	seen := make(map[string]bool, len(grams1)+len(grams2))
	for gram := range grams1 {
		seen[gram] = true
	}
	for gram := range grams2 {
		seen[gram] = true
	}
	for gram := range seen {
		c1 := grams1[gram]
		c2 := grams2[gram]
		intersection += minInt(c1, c2)
		union += maxInt(c1, c2)
	}

	if union == 0 {
		return 0.0
	}
	return float64(intersection) / float64(union)
}

func bigrams(s string) map[string]int {
	runes := []rune(s)
	grams := make(map[string]int)
	if len(runes) == 0 {
		return grams
	}
	if len(runes) < 2 {
		grams[s] = 1
		return grams
	}
	for i := 0; i+2 <= len(runes); i++ {
		grams[string(runes[i:i+2])]++
	}
	return grams
}

// SoundexSimilarity scores two strings by their Soundex codes.
//
// Equal codes score 0.8 rather than 1.0 because phonetic agreement is weaker
// evidence than textual agreement. Unequal codes score by matching code
// positions, scaled down to at most 0.6.
func SoundexSimilarity(s1, s2 string) float64 {
	if s1 == s2 {
		return 1.0
	}

	code1 := soundexCode(s1)
	code2 := soundexCode(s2)
	if code1 == code2 {
		return 0.8
	}

	matches := 0
	for i := 0; i < 4; i++ {
		if code1[i] == code2[i] {
			matches++
		}
	}
	return float64(matches) / 4.0 * 0.6
}

// soundexCode returns the 4-character Soundex code for a string.
// Empty input encodes to "0000".
func soundexCode(s string) string {
	if s == "" {
		return "0000"
	}

	upper := strings.ToUpper(s)
	var b strings.Builder
	b.WriteByte(upper[0])

	prev := soundexDigit(rune(upper[0]))
	for _, r := range upper[1:] {
		code := soundexDigit(r)
		if code != '0' && code != prev {
			b.WriteRune(code)
			if b.Len() == 4 {
				break
			}
		}
		if code != '0' {
			prev = code
		}
	}

	for b.Len() < 4 {
		b.WriteByte('0')
	}
	return b.String()
}

func soundexDigit(r rune) rune {
	switch r {
	case 'B', 'F', 'P', 'V':
		return '1'
	case 'C', 'G', 'J', 'K', 'Q', 'S', 'X', 'Z':
		return '2'
	case 'D', 'T':
		return '3'
	case 'L':
		return '4'
	case 'M', 'N':
		return '5'
	case 'R':
		return '6'
	}
	return '0'
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
