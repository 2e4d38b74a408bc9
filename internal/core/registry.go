package core

import (
	"fmt"
	"strings"
)

// Registry is an ordered, immutable list of dataset schemas.
//
// Order is part of the contract: when two schemas score equally during
// classification the earlier one wins, and when every schema scores zero the
// first one is selected.
type Registry struct {
	schemas []*DatasetSchema
	byID    map[string]*DatasetSchema
}

// NewRegistry builds a registry in the given order. Schema ids must be unique
// and every schema needs a kind, a store id and at least one required field.
func NewRegistry(schemas ...DatasetSchema) (*Registry, error) {
	r := &Registry{
		schemas: make([]*DatasetSchema, 0, len(schemas)),
		byID:    make(map[string]*DatasetSchema, len(schemas)),
	}

	for i := range schemas {
		s := cloneSchema(schemas[i])
		if err := validateSchema(s); err != nil {
			return nil, err
		}
		if _, exists := r.byID[s.ID]; exists {
			return nil, fmt.Errorf("schema already registered: %s", s.ID)
		}
		r.schemas = append(r.schemas, s)
		r.byID[s.ID] = s
	}

	return r, nil
}

// MustRegistry is NewRegistry that panics on error, for static definitions.
func MustRegistry(schemas ...DatasetSchema) *Registry {
	r, err := NewRegistry(schemas...)
	if err != nil {
		panic(err)
	}
	return r
}

func validateSchema(s *DatasetSchema) error {
	switch {
	case s.ID == "":
		return fmt.Errorf("schema id is required")
	case !s.Kind.Valid():
		return fmt.Errorf("schema %s: unknown kind %q", s.ID, s.Kind)
	case s.StoreID == "":
		return fmt.Errorf("schema %s: store id is required", s.ID)
	case len(s.RequiredFields) == 0:
		return fmt.Errorf("schema %s: at least one required field is needed", s.ID)
	}

	seen := make(map[string]bool)
	for _, f := range s.Fields() {
		if f.Key == "" {
			return fmt.Errorf("schema %s: field key is required", s.ID)
		}
		if seen[f.Key] {
			return fmt.Errorf("schema %s: duplicate field %s", s.ID, f.Key)
		}
		seen[f.Key] = true
	}
	return nil
}

// cloneSchema deep-copies s and lowercases its patterns.
func cloneSchema(s DatasetSchema) *DatasetSchema {
	out := s
	out.RequiredFields = cloneFields(s.RequiredFields, true)
	out.OptionalFields = cloneFields(s.OptionalFields, false)
	out.KeywordPatterns = lowerAll(s.KeywordPatterns)
	return &out
}

func cloneFields(fields []FieldSpec, required bool) []FieldSpec {
	out := make([]FieldSpec, len(fields))
	for i, f := range fields {
		f.Required = required
		f.MatchPatterns = lowerAll(f.MatchPatterns)
		if f.Label == "" {
			f.Label = f.Key
		}
		out[i] = f
	}
	return out
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, p := range in {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Get returns a schema by id.
func (r *Registry) Get(id string) (*DatasetSchema, bool) {
	s, ok := r.byID[id]
	return s, ok
}

// All returns the schemas in registry order.
func (r *Registry) All() []*DatasetSchema {
	out := make([]*DatasetSchema, len(r.schemas))
	copy(out, r.schemas)
	return out
}

// Len returns the number of schemas.
func (r *Registry) Len() int {
	return len(r.schemas)
}

// IDs returns schema ids in registry order.
func (r *Registry) IDs() []string {
	ids := make([]string, len(r.schemas))
	for i, s := range r.schemas {
		ids[i] = s.ID
	}
	return ids
}

// StoreIDs returns the distinct store ids in registry order.
func (r *Registry) StoreIDs() []string {
	seen := make(map[string]bool)
	var ids []string
	for _, s := range r.schemas {
		if !seen[s.StoreID] {
			seen[s.StoreID] = true
			ids = append(ids, s.StoreID)
		}
	}
	return ids
}
