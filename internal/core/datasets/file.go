package datasets

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/JonMunkholm/sheetimport/internal/core"
	"gopkg.in/yaml.v3"
)

// File is the YAML registry format.
//
//	include_defaults: true      # append unlisted built-ins after the listed ones
//	schemas:
//	  - id: vendor              # a built-in id, or a new id with base or kind
//	    store: suppliers
//	    keywords: [vendor, supplier, creditor]
//	    fields:
//	      name:
//	        patterns: [vendor, supplier, creditor]
//	  - id: contractor
//	    base: employee
//	    label: Contractors
//	    store: contractors
//
// Listed schemas come first, in file order.
type File struct {
	IncludeDefaults *bool         `yaml:"include_defaults"`
	Schemas         []SchemaEntry `yaml:"schemas"`
}

// SchemaEntry overrides or derives one schema.
type SchemaEntry struct {
	ID       string                   `yaml:"id"`
	Base     string                   `yaml:"base"`
	Kind     string                   `yaml:"kind"`
	Label    string                   `yaml:"label"`
	Store    string                   `yaml:"store"`
	Keywords []string                 `yaml:"keywords"`
	Fields   map[string]FieldOverride `yaml:"fields"`
}

// FieldOverride replaces the label or match patterns of a field.
type FieldOverride struct {
	Label    string   `yaml:"label"`
	Patterns []string `yaml:"patterns"`
}

// LoadFile reads a YAML registry file. An empty path returns Default().
func LoadFile(path string) (*core.Registry, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry file: %w", err)
	}
	reg, err := Load(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return reg, nil
}

// Load parses a YAML registry from r.
func Load(r io.Reader) (*core.Registry, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse registry: %w", err)
	}
	return f.Registry()
}

// Registry builds the registry described by f.
func (f File) Registry() (*core.Registry, error) {
	builtins := Schemas()
	byID := make(map[string]core.DatasetSchema, len(builtins))
	for _, s := range builtins {
		byID[s.ID] = s
	}

	var (
		schemas []core.DatasetSchema
		listed  []string
	)
	for i, e := range f.Schemas {
		s, err := e.resolve(byID)
		if err != nil {
			return nil, fmt.Errorf("schema %d: %w", i+1, err)
		}
		schemas = append(schemas, s)
		listed = append(listed, s.ID)
	}

	if f.IncludeDefaults == nil || *f.IncludeDefaults {
		for _, s := range builtins {
			if !slices.Contains(listed, s.ID) {
				schemas = append(schemas, s)
			}
		}
	}

	return core.NewRegistry(schemas...)
}

// resolve starts from the built-in named by base, id or kind and applies
// the overrides.
func (e SchemaEntry) resolve(builtins map[string]core.DatasetSchema) (core.DatasetSchema, error) {
	if e.ID == "" {
		return core.DatasetSchema{}, fmt.Errorf("id is required")
	}

	start := e.Base
	if start == "" {
		if _, ok := builtins[e.ID]; ok {
			start = e.ID
		} else {
			start = e.Kind
		}
	}
	if start == "" {
		return core.DatasetSchema{}, fmt.Errorf("%s: unknown schema; set base or kind", e.ID)
	}

	var s core.DatasetSchema
	found := false
	for _, b := range builtins {
		if b.ID == start || (e.Base == "" && string(b.Kind) == start) {
			s, found = b, true
			break
		}
	}
	if !found {
		return core.DatasetSchema{}, fmt.Errorf("%s: no built-in schema %q", e.ID, start)
	}
	if e.Kind != "" && core.Kind(e.Kind) != s.Kind {
		return core.DatasetSchema{}, fmt.Errorf("%s: kind %q does not match base kind %q", e.ID, e.Kind, s.Kind)
	}

	s.RequiredFields = slices.Clone(s.RequiredFields)
	s.OptionalFields = slices.Clone(s.OptionalFields)
	s.ID = e.ID
	if e.Label != "" {
		s.Label = e.Label
	}
	if e.Store != "" {
		s.StoreID = e.Store
	}
	if e.Keywords != nil {
		s.KeywordPatterns = slices.Clone(e.Keywords)
	}

	for key, o := range e.Fields {
		if !overrideField(s.RequiredFields, key, o) && !overrideField(s.OptionalFields, key, o) {
			return core.DatasetSchema{}, fmt.Errorf("%s: unknown field %q", e.ID, key)
		}
	}
	return s, nil
}

func overrideField(fields []core.FieldSpec, key string, o FieldOverride) bool {
	for i := range fields {
		if fields[i].Key != key {
			continue
		}
		if o.Label != "" {
			fields[i].Label = o.Label
		}
		if o.Patterns != nil {
			fields[i].MatchPatterns = slices.Clone(o.Patterns)
		}
		return true
	}
	return false
}
