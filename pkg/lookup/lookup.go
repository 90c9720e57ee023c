// Package lookup builds the exact and fuzzy lookup index over a target
// field schema.
//
// The index is constructed once from a schema and is immutable afterwards;
// reconfiguration means building a new index. Exact lookups are O(1) over
// normalized alias names. Fuzzy lookups delegate the alias pool to the
// fuzzy matching engine and map the results back to schema entries.
//
// Example:
//
//	ix := lookup.NewIndex(schema.Default(), nil)
//	if entry, ok := ix.FindExactMatch("asset-id"); ok {
//		fmt.Println(entry.TargetField) // uuid
//	}
//	for _, r := range ix.FindFuzzyMatches("Assett ID", 0.6) {
//		fmt.Printf("%s -> %s (%.2f)\n", r.SourceColumn, r.TargetField, r.Confidence)
//	}
package lookup

import (
	"strings"
	"unicode"

	"github.com/orneryd/colmap/pkg/fuzzy"
	"github.com/orneryd/colmap/pkg/schema"
	"github.com/orneryd/colmap/pkg/xlog"
)

// Entry is the index record an alias resolves to.
type Entry struct {
	TargetField string            `json:"target_field"`
	SourceType  schema.SourceType `json:"source_type"`
	Required    bool              `json:"required"`
	Validation  string            `json:"validation,omitempty"`
	DataType    string            `json:"data_type,omitempty"`
}

// Candidate is one alias in the fuzzy search pool.
type Candidate struct {
	OriginalName   string            `json:"original_name"`
	NormalizedName string            `json:"normalized_name"`
	TargetField    string            `json:"target_field"`
	SourceType     schema.SourceType `json:"source_type"`
	Required       bool              `json:"required"`
}

// Result is a resolved mapping from a source column to a target field.
type Result struct {
	SourceColumn string            `json:"source_column"`
	TargetField  string            `json:"target_field"`
	Confidence   float64           `json:"confidence"`
	SourceType   schema.SourceType `json:"source_type"`
	Required     bool              `json:"required"`
	ExactMatch   bool              `json:"exact_match"`
}

// ValidationType classifies a field's validation-rule reference.
type ValidationType string

const (
	ValidationBoolean       ValidationType = "boolean"
	ValidationNumeric       ValidationType = "numeric"
	ValidationDate          ValidationType = "date"
	ValidationEmail         ValidationType = "email"
	ValidationURL           ValidationType = "url"
	ValidationRegex         ValidationType = "regex"
	ValidationAllowedValues ValidationType = "allowed_values"
	ValidationCustom        ValidationType = "custom"
)

// ValidationRule is a parsed validation-rule reference.
type ValidationRule struct {
	Type ValidationType `json:"type"`
	// Raw is the original reference string, including any regex: or
	// values: payload.
	Raw      string `json:"raw"`
	Required bool   `json:"required"`
}

// Index is the immutable exact plus fuzzy lookup structure.
type Index struct {
	exact           map[string]Entry
	candidates      []Candidate
	byOriginal      map[string]int
	validationRules map[string]ValidationRule
	requiredFields  map[string]struct{}

	matcher *fuzzy.Matcher
	targets []string
}

// NewIndex builds an index from a schema.
//
// A nil matcher gets the column-tuned default. The matcher's candidate
// index is built over the alias pool so repeated fuzzy queries are
// narrowed efficiently.
func NewIndex(s *schema.Schema, matcher *fuzzy.Matcher) *Index {
	if matcher == nil {
		matcher = fuzzy.NewMatcher(fuzzy.ColumnProfile())
	}

	ix := &Index{
		exact:           make(map[string]Entry),
		byOriginal:      make(map[string]int),
		validationRules: make(map[string]ValidationRule),
		requiredFields:  make(map[string]struct{}),
		matcher:         matcher,
	}

	for _, field := range s.Fields {
		sourceType := field.SourceType
		if sourceType == "" {
			sourceType = schema.SourceCustom
		}

		entry := Entry{
			TargetField: field.Name,
			SourceType:  sourceType,
			Required:    field.Required,
			Validation:  field.Validation,
			DataType:    field.DataType,
		}

		if field.Required {
			ix.requiredFields[field.Name] = struct{}{}
		}

		for _, alias := range field.Aliases {
			normalized := Normalize(alias)
			ix.exact[normalized] = entry

			if _, dup := ix.byOriginal[alias]; !dup {
				ix.byOriginal[alias] = len(ix.candidates)
				ix.candidates = append(ix.candidates, Candidate{
					OriginalName:   alias,
					NormalizedName: normalized,
					TargetField:    field.Name,
					SourceType:     sourceType,
					Required:       field.Required,
				})
				ix.targets = append(ix.targets, alias)
			}
		}

		if field.Validation != "" {
			ix.validationRules[field.Name] = ValidationRule{
				Type:     parseValidationType(field.Validation),
				Raw:      field.Validation,
				Required: field.Required,
			}
		}
	}

	matcher.BuildIndex(ix.targets)

	xlog.Debug("built lookup index", map[string]interface{}{
		"exact_matches":    len(ix.exact),
		"fuzzy_candidates": len(ix.candidates),
	})
	return ix
}

// Normalize folds a column name for exact lookups: lowercase, "&" spelled
// out, every non-alphanumeric character dropped. Deterministic and
// idempotent.
func Normalize(name string) string {
	lowered := strings.ToLower(name)
	lowered = strings.ReplaceAll(lowered, "&", "and")

	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FindExactMatch resolves a column by its normalized name. O(1).
func (ix *Index) FindExactMatch(column string) (Entry, bool) {
	entry, ok := ix.exact[Normalize(column)]
	return entry, ok
}

// FindFuzzyMatches resolves a column against the alias pool via the fuzzy
// matcher, dropping anything below minConfidence and mapping the surviving
// targets back to schema entries.
func (ix *Index) FindFuzzyMatches(column string, minConfidence float64) []Result {
	matches := ix.matcher.FindMatches(column, ix.targets)

	results := make([]Result, 0, len(matches))
	for _, m := range matches {
		if m.Confidence < minConfidence {
			continue
		}
		pos, ok := ix.byOriginal[m.Target]
		if !ok {
			continue
		}
		c := ix.candidates[pos]
		results = append(results, Result{
			SourceColumn: column,
			TargetField:  c.TargetField,
			Confidence:   m.Confidence,
			SourceType:   c.SourceType,
			Required:     c.Required,
			ExactMatch:   m.ExactMatch,
		})
	}
	return results
}

// DetailedFuzzyMatches returns the raw fuzzy results, with per-algorithm
// scores and explanations when the matcher has them enabled.
func (ix *Index) DetailedFuzzyMatches(column string, minConfidence float64) []fuzzy.Result {
	matches := ix.matcher.FindMatches(column, ix.targets)

	out := matches[:0]
	for _, m := range matches {
		if m.Confidence >= minConfidence {
			out = append(out, m)
		}
	}
	return out
}

// ValidationRule returns the parsed validation rule for a target field.
func (ix *Index) ValidationRule(fieldName string) (ValidationRule, bool) {
	rule, ok := ix.validationRules[fieldName]
	return rule, ok
}

// IsRequiredField reports whether a target field is required.
func (ix *Index) IsRequiredField(fieldName string) bool {
	_, ok := ix.requiredFields[fieldName]
	return ok
}

// Candidates returns the fuzzy candidate pool.
func (ix *Index) Candidates() []Candidate {
	return ix.candidates
}

// Matcher returns the fuzzy matcher the index delegates to.
func (ix *Index) Matcher() *fuzzy.Matcher {
	return ix.matcher
}

// ClearCache drops the fuzzy matcher's memoized results.
func (ix *Index) ClearCache() {
	ix.matcher.ClearCache()
}

// Stats summarizes the index contents.
type Stats struct {
	ExactMatches    int                       `json:"exact_matches"`
	FuzzyCandidates int                       `json:"fuzzy_candidates"`
	ValidationRules int                       `json:"validation_rules"`
	RequiredFields  int                       `json:"required_fields"`
	SourceTypes     map[schema.SourceType]int `json:"source_type_breakdown"`
}

// Stats returns a snapshot of the index contents.
func (ix *Index) Stats() Stats {
	byType := make(map[schema.SourceType]int)
	for _, c := range ix.candidates {
		byType[c.SourceType]++
	}
	return Stats{
		ExactMatches:    len(ix.exact),
		FuzzyCandidates: len(ix.candidates),
		ValidationRules: len(ix.validationRules),
		RequiredFields:  len(ix.requiredFields),
		SourceTypes:     byType,
	}
}

func parseValidationType(validation string) ValidationType {
	v := strings.ToLower(validation)
	switch v {
	case "boolean", "bool":
		return ValidationBoolean
	case "numeric", "number":
		return ValidationNumeric
	case "date":
		return ValidationDate
	case "email":
		return ValidationEmail
	case "url":
		return ValidationURL
	}
	if strings.HasPrefix(v, "regex:") {
		return ValidationRegex
	}
	if strings.HasPrefix(v, "values:") {
		return ValidationAllowedValues
	}
	return ValidationCustom
}
