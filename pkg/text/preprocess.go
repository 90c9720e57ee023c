// Package text provides text preprocessing for fuzzy column matching.
//
// Column headers arrive with unpredictable casing, punctuation, and
// shorthand. The Preprocessor folds them into a normalized form before
// similarity scoring: lowercase, alphanumeric words only, known
// abbreviations expanded, stop words removed.
//
// Preprocessing is pure and idempotent: running the output through the
// preprocessor again yields the same string. Every applied step is recorded
// so match results can explain how a string was transformed.
//
// Example:
//
//	pre := text.NewPreprocessor()
//	processed, steps := pre.Process("Asset-Mgmt.  Owner (POC)")
//	// processed: "asset management owner point contact"
//	// steps: [lowercase normalize_chars expand_abbreviations remove_stop_words]
package text

import (
	"strings"
	"unicode"
)

// Step names recorded in preprocessing output.
const (
	StepLowercase           = "lowercase"
	StepNormalizeChars      = "normalize_chars"
	StepExpandAbbreviations = "expand_abbreviations"
	StepRemoveStopWords     = "remove_stop_words"
	StepExactMatch          = "exact_match"
)

// Preprocessor normalizes strings before similarity scoring.
//
// The zero value is not usable; construct with NewPreprocessor, which
// installs the default abbreviation and stop-word tables. Both tables can
// be extended per instance.
type Preprocessor struct {
	abbreviations map[string]string
	stopWords     map[string]struct{}
}

// NewPreprocessor creates a preprocessor with the default tables.
//
// The default abbreviation table covers shorthand common in spreadsheet
// column headers; the stop-word table removes low-signal connective words.
func NewPreprocessor() *Preprocessor {
	p := &Preprocessor{
		abbreviations: make(map[string]string),
		stopWords:     make(map[string]struct{}),
	}

	defaults := map[string]string{
		"poc":    "point of contact",
		"desc":   "description",
		"qty":    "quantity",
		"num":    "number",
		"org":    "organization",
		"dept":   "department",
		"addr":   "address",
		"info":   "information",
		"mgmt":   "management",
		"config": "configuration",
		"env":    "environment",
		"vuln":   "vulnerability",
		"auth":   "authorization",
	}
	for abbrev, expansion := range defaults {
		p.abbreviations[abbrev] = expansion
	}

	for _, w := range []string{
		"the", "and", "or", "of", "in", "on", "at", "to",
		"for", "with", "by", "from", "a", "an", "is", "as",
	} {
		p.stopWords[w] = struct{}{}
	}

	return p
}

// AddAbbreviation registers a custom abbreviation expansion.
// Both sides are stored lowercase; matching is whole-word.
func (p *Preprocessor) AddAbbreviation(abbrev, expansion string) {
	p.abbreviations[strings.ToLower(abbrev)] = strings.ToLower(expansion)
}

// AddStopWord registers an additional word to remove during preprocessing.
func (p *Preprocessor) AddStopWord(word string) {
	p.stopWords[strings.ToLower(word)] = struct{}{}
}

// Process normalizes a string and returns it with the list of steps that
// actually changed it. Steps that were evaluated but made no difference are
// still recorded for lowercase and character normalization since they are
// unconditional; abbreviation expansion and stop-word removal appear only
// when they fired.
func (p *Preprocessor) Process(s string) (string, []string) {
	steps := make([]string, 0, 4)

	processed := strings.ToLower(s)
	steps = append(steps, StepLowercase)

	processed = collapseNonAlnum(processed)
	steps = append(steps, StepNormalizeChars)

	words := strings.Fields(processed)

	expanded := false
	out := make([]string, 0, len(words))
	for _, w := range words {
		if expansion, ok := p.abbreviations[w]; ok {
			out = append(out, strings.Fields(expansion)...)
			expanded = true
			continue
		}
		out = append(out, w)
	}
	if expanded {
		steps = append(steps, StepExpandAbbreviations)
	}

	filtered := out[:0]
	removed := false
	for _, w := range out {
		if _, stop := p.stopWords[w]; stop {
			removed = true
			continue
		}
		filtered = append(filtered, w)
	}
	if removed {
		steps = append(steps, StepRemoveStopWords)
	}

	return strings.Join(filtered, " "), steps
}

// Equivalent reports whether two strings normalize to the same form.
func (p *Preprocessor) Equivalent(a, b string) bool {
	pa, _ := p.Process(a)
	pb, _ := p.Process(b)
	return pa == pb
}

// collapseNonAlnum replaces every non-alphanumeric rune with a space and
// squeezes repeated whitespace.
func collapseNonAlnum(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
