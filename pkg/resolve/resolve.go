// Package resolve composes the full column resolution pipeline.
//
// Each column is resolved in a fixed order: user-authored overrides first,
// then the lookup index's exact match, then fuzzy matching as a fallback.
// The first stage that produces a result wins; later stages are not
// consulted.
//
// Example:
//
//	p := resolve.NewPipeline(index, engine, 0.6)
//	m := p.Resolve("Assett ID", "inventory", &override.Context{DocumentType: "inventory"})
//	fmt.Printf("%s -> %s via %s (%.2f)\n", m.SourceColumn, m.TargetField, m.Method, m.Confidence)
package resolve

import (
	"time"

	"github.com/orneryd/colmap/pkg/lookup"
	"github.com/orneryd/colmap/pkg/override"
	"github.com/orneryd/colmap/pkg/schema"
	"github.com/orneryd/colmap/pkg/xlog"
)

// Method names the pipeline stage that produced a mapping.
type Method string

const (
	// MethodOverride means a user-authored override rule applied.
	MethodOverride Method = "override"
	// MethodExact means the normalized column matched a known alias.
	MethodExact Method = "exact"
	// MethodFuzzy means the fuzzy ensemble produced the mapping.
	MethodFuzzy Method = "fuzzy"
	// MethodNone means no stage produced a mapping.
	MethodNone Method = "none"
)

// ColumnMapping is the pipeline's result for one column.
type ColumnMapping struct {
	SourceColumn string            `json:"source_column"`
	TargetField  string            `json:"target_field,omitempty"`
	Confidence   float64           `json:"confidence"`
	Method       Method            `json:"method"`
	SourceType   schema.SourceType `json:"source_type,omitempty"`
	Required     bool              `json:"required"`
	// Alternatives are lower-ranked fuzzy candidates, present only for
	// fuzzy resolutions.
	Alternatives []lookup.Result `json:"alternatives,omitempty"`
	// Conflicts carries override conflicts, present only for override
	// resolutions.
	Conflicts []override.Conflict `json:"conflicts,omitempty"`

	ResolutionTime time.Duration `json:"resolution_time"`
	FromCache      bool          `json:"from_cache"`
}

// Report summarizes a batch resolution.
type Report struct {
	Mappings []ColumnMapping `json:"mappings"`
	// Unmapped lists columns no stage could resolve.
	Unmapped []string `json:"unmapped,omitempty"`
	// MissingRequired lists required target fields no column mapped to.
	MissingRequired []string `json:"missing_required,omitempty"`
}

// Pipeline resolves columns through overrides, exact lookup, and fuzzy
// matching.
type Pipeline struct {
	index         *lookup.Index
	overrides     *override.Engine
	minConfidence float64
}

// NewPipeline creates a pipeline. The override engine may be nil, in which
// case the override stage is skipped. minConfidence bounds the fuzzy
// stage; a non-positive value falls back to 0.6.
func NewPipeline(index *lookup.Index, overrides *override.Engine, minConfidence float64) *Pipeline {
	if minConfidence <= 0 {
		minConfidence = 0.6
	}
	return &Pipeline{
		index:         index,
		overrides:     overrides,
		minConfidence: minConfidence,
	}
}

// Index returns the pipeline's lookup index.
func (p *Pipeline) Index() *lookup.Index {
	return p.index
}

// Overrides returns the pipeline's override engine, nil if none.
func (p *Pipeline) Overrides() *override.Engine {
	return p.overrides
}

// Resolve maps one column to a target field.
func (p *Pipeline) Resolve(column, documentType string, ctx *override.Context) ColumnMapping {
	started := time.Now()

	if p.overrides != nil {
		res := p.overrides.ResolveMapping(column, documentType, ctx)
		if res.OverrideApplied {
			return ColumnMapping{
				SourceColumn:   column,
				TargetField:    res.TargetField,
				Confidence:     res.Confidence,
				Method:         MethodOverride,
				Required:       p.index.IsRequiredField(res.TargetField),
				Conflicts:      res.Conflicts,
				ResolutionTime: time.Since(started),
				FromCache:      res.FromCache,
			}
		}
	}

	if entry, ok := p.index.FindExactMatch(column); ok {
		return ColumnMapping{
			SourceColumn:   column,
			TargetField:    entry.TargetField,
			Confidence:     1.0,
			Method:         MethodExact,
			SourceType:     entry.SourceType,
			Required:       entry.Required,
			ResolutionTime: time.Since(started),
		}
	}

	fuzzyResults := p.index.FindFuzzyMatches(column, p.minConfidence)
	if len(fuzzyResults) > 0 {
		best := fuzzyResults[0]
		return ColumnMapping{
			SourceColumn:   column,
			TargetField:    best.TargetField,
			Confidence:     best.Confidence,
			Method:         MethodFuzzy,
			SourceType:     best.SourceType,
			Required:       best.Required,
			Alternatives:   fuzzyResults[1:],
			ResolutionTime: time.Since(started),
		}
	}

	xlog.Debug("column did not resolve", map[string]interface{}{"column": column})
	return ColumnMapping{
		SourceColumn:   column,
		Method:         MethodNone,
		ResolutionTime: time.Since(started),
	}
}

// MapColumns resolves a whole header row and reports unmapped columns and
// required fields left without a mapping.
func (p *Pipeline) MapColumns(columns []string, documentType string, ctx *override.Context) Report {
	report := Report{Mappings: make([]ColumnMapping, 0, len(columns))}

	mappedTargets := make(map[string]struct{}, len(columns))
	for _, column := range columns {
		m := p.Resolve(column, documentType, ctx)
		report.Mappings = append(report.Mappings, m)
		if m.Method == MethodNone {
			report.Unmapped = append(report.Unmapped, column)
			continue
		}
		mappedTargets[m.TargetField] = struct{}{}
	}

	for _, c := range p.index.Candidates() {
		if !c.Required {
			continue
		}
		if _, ok := mappedTargets[c.TargetField]; !ok {
			report.MissingRequired = appendUnique(report.MissingRequired, c.TargetField)
		}
	}

	return report
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
