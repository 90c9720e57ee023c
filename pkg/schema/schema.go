// Package schema defines the canonical target field schema that column
// headers are resolved onto.
//
// A schema is static configuration: a list of target fields, each with its
// known alias strings, a required flag, and optional validation and data
// type hints. Schemas load from YAML and are validated before use; the
// lookup index is built from a schema once and never mutated.
//
// Example schema file:
//
//	fields:
//	  - name: uuid
//	    source_type: inventory
//	    required: true
//	    aliases: ["Asset ID", "Asset Identifier", "UUID"]
//	    validation: regex:^[0-9a-f-]+$
//	  - name: poc_name
//	    source_type: inventory
//	    aliases: ["POC", "Point of Contact"]
package schema

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// SourceType tags which mapping family a field belongs to.
type SourceType string

const (
	SourceInventory SourceType = "inventory"
	SourcePOAM      SourceType = "poam"
	SourceSSP       SourceType = "ssp_section"
	SourceCustom    SourceType = "custom"
)

// Field is one canonical target field.
type Field struct {
	// Name is the canonical field identifier.
	Name string `yaml:"name" json:"name"`
	// SourceType tags the owning mapping family. Defaults to custom.
	SourceType SourceType `yaml:"source_type,omitempty" json:"source_type,omitempty"`
	// Aliases are the known column header spellings for this field.
	Aliases []string `yaml:"aliases" json:"aliases"`
	// Required marks fields that must be present in a mapped document.
	Required bool `yaml:"required,omitempty" json:"required,omitempty"`
	// Validation is an optional validation-rule reference, e.g. "date",
	// "email", "regex:^...$" or "values:a,b,c".
	Validation string `yaml:"validation,omitempty" json:"validation,omitempty"`
	// DataType is an optional declared data type hint.
	DataType string `yaml:"data_type,omitempty" json:"data_type,omitempty"`
}

// Schema is the full set of target fields.
type Schema struct {
	Fields []Field `yaml:"fields" json:"fields"`
}

// Load reads and validates a YAML schema.
func Load(r io.Reader) (*Schema, error) {
	var s Schema
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("decoding schema: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// LoadFile reads and validates a YAML schema from a file.
func LoadFile(path string) (*Schema, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening schema file: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Validate checks structural constraints: at least one field, non-empty
// unique field names, and at least one alias per field.
func (s *Schema) Validate() error {
	if len(s.Fields) == 0 {
		return fmt.Errorf("schema has no fields")
	}

	seen := make(map[string]struct{}, len(s.Fields))
	for i, f := range s.Fields {
		if f.Name == "" {
			return fmt.Errorf("field %d has an empty name", i)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("duplicate field name %q", f.Name)
		}
		seen[f.Name] = struct{}{}

		if len(f.Aliases) == 0 {
			return fmt.Errorf("field %q has no aliases", f.Name)
		}
		for j, alias := range f.Aliases {
			if alias == "" {
				return fmt.Errorf("field %q alias %d is empty", f.Name, j)
			}
		}
	}
	return nil
}

// Default returns a small built-in inventory schema, used when no schema
// file is supplied.
func Default() *Schema {
	return &Schema{Fields: []Field{
		{
			Name:       "uuid",
			SourceType: SourceInventory,
			Required:   true,
			Aliases:    []string{"Asset ID", "Asset Identifier", "UUID", "Unique Identifier"},
		},
		{
			Name:       "title",
			SourceType: SourceInventory,
			Required:   true,
			Aliases:    []string{"Asset Name", "Name", "Title", "Hostname"},
		},
		{
			Name:       "description",
			SourceType: SourceInventory,
			Aliases:    []string{"Description", "Asset Description", "Comments"},
		},
		{
			Name:       "ip_address",
			SourceType: SourceInventory,
			Aliases:    []string{"IP Address", "IPv4", "IP"},
			Validation: "regex:^\\d{1,3}(\\.\\d{1,3}){3}$",
		},
		{
			Name:       "poc_name",
			SourceType: SourceInventory,
			Aliases:    []string{"POC", "Point of Contact", "POC Name", "Owner"},
		},
		{
			Name:       "poc_email",
			SourceType: SourceInventory,
			Aliases:    []string{"POC Email", "Contact Email", "Email"},
			Validation: "email",
		},
		{
			Name:       "scheduled_completion_date",
			SourceType: SourcePOAM,
			Required:   true,
			Aliases:    []string{"Scheduled Completion Date", "Due Date", "Target Date"},
			Validation: "date",
			DataType:   "date",
		},
		{
			Name:       "severity",
			SourceType: SourcePOAM,
			Aliases:    []string{"Severity", "Risk Rating", "Vuln Severity"},
			Validation: "values:low,moderate,high,critical",
		},
	}}
}
