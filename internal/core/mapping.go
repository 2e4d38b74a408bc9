package core

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// MappingPolicy controls whether one header may serve several fields.
type MappingPolicy int

const (
	// MappingShared lets a header satisfy any number of fields.
	MappingShared MappingPolicy = iota
	// MappingExclusive skips headers already claimed by an earlier field.
	MappingExclusive
)

// String returns the policy name.
func (p MappingPolicy) String() string {
	if p == MappingExclusive {
		return "exclusive"
	}
	return "shared"
}

// Bookkeeping columns written by the error report. They are never auto-mapped,
// so a corrected report can be fed back through the pipeline.
const (
	ReportRowIndexColumn = "row_index"
	ReportReasonColumn   = "reason"
)

// MappingOverrideError reports an invalid manual mapping entry.
type MappingOverrideError struct {
	Field  string
	Header string
	Reason string
}

func (e *MappingOverrideError) Error() string {
	return fmt.Sprintf("invalid mapping %s -> %q: %s", e.Field, e.Header, e.Reason)
}

// ColumnMapping assigns schema field keys to source headers.
type ColumnMapping struct {
	schema   *DatasetSchema
	headers  []string
	policy   MappingPolicy
	assigned map[string]string // field key -> header
}

// AutoMap assigns each field, required first then optional in declaration
// order, to the first header whose lowercase form contains one of the field's
// match patterns.
func AutoMap(headers []string, schema *DatasetSchema, policy MappingPolicy) *ColumnMapping {
	m := &ColumnMapping{
		schema:   schema,
		headers:  slices.Clone(headers),
		policy:   policy,
		assigned: make(map[string]string),
	}

	claimed := make(map[string]bool)
	for _, f := range schema.Fields() {
		for _, h := range m.headers {
			if isBookkeepingHeader(h) {
				continue
			}
			if policy == MappingExclusive && claimed[h] {
				continue
			}
			if matchesField(h, f) {
				m.assigned[f.Key] = h
				claimed[h] = true
				break
			}
		}
	}

	return m
}

func matchesField(header string, f FieldSpec) bool {
	lower := strings.ToLower(header)
	for _, p := range f.MatchPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

func isBookkeepingHeader(h string) bool {
	h = strings.ToLower(strings.TrimSpace(h))
	return h == ReportRowIndexColumn || h == ReportReasonColumn
}

// Schema returns the schema the mapping was built for.
func (m *ColumnMapping) Schema() *DatasetSchema { return m.schema }

// Headers returns the source headers.
func (m *ColumnMapping) Headers() []string { return slices.Clone(m.headers) }

// Policy returns the exclusivity policy.
func (m *ColumnMapping) Policy() MappingPolicy { return m.policy }

// Header returns the header mapped to a field key.
func (m *ColumnMapping) Header(key string) (string, bool) {
	h, ok := m.assigned[key]
	return h, ok
}

// Set overrides one entry. An empty header unmaps the field. Under
// MappingExclusive a header held by another field is rejected.
func (m *ColumnMapping) Set(key, header string) error {
	if _, ok := m.schema.Field(key); !ok {
		return &MappingOverrideError{Field: key, Header: header, Reason: "unknown field for " + m.schema.ID}
	}
	if header == "" {
		delete(m.assigned, key)
		return nil
	}
	if !slices.Contains(m.headers, header) {
		return &MappingOverrideError{Field: key, Header: header, Reason: "no such header"}
	}
	if m.policy == MappingExclusive {
		for other, h := range m.assigned {
			if other != key && h == header {
				return &MappingOverrideError{Field: key, Header: header, Reason: "header already mapped to " + other}
			}
		}
	}
	m.assigned[key] = header
	return nil
}

// Apply sets several overrides in field declaration order. Either every
// override is applied or, on error, the mapping is left unchanged.
func (m *ColumnMapping) Apply(overrides map[string]string) error {
	for _, key := range slices.Sorted(maps.Keys(overrides)) {
		if _, ok := m.schema.Field(key); !ok {
			return &MappingOverrideError{Field: key, Header: overrides[key], Reason: "unknown field for " + m.schema.ID}
		}
	}

	next := m.Clone()
	for _, f := range m.schema.Fields() {
		if h, ok := overrides[f.Key]; ok {
			if err := next.Set(f.Key, h); err != nil {
				return err
			}
		}
	}
	m.assigned = next.assigned
	return nil
}

// Missing returns unmapped required field keys in declaration order.
func (m *ColumnMapping) Missing() []string {
	var missing []string
	for _, f := range m.schema.RequiredFields {
		if _, ok := m.assigned[f.Key]; !ok {
			missing = append(missing, f.Key)
		}
	}
	return missing
}

// Complete returns a MappingIncompleteError if any required field is unmapped.
func (m *ColumnMapping) Complete() error {
	if missing := m.Missing(); len(missing) > 0 {
		return &MappingIncompleteError{SchemaID: m.schema.ID, Missing: missing}
	}
	return nil
}

// Entries returns a copy of the field -> header assignments.
func (m *ColumnMapping) Entries() map[string]string {
	out := make(map[string]string, len(m.assigned))
	for k, v := range m.assigned {
		out[k] = v
	}
	return out
}

// Clone returns an independent copy, used to freeze a mapping for a run.
func (m *ColumnMapping) Clone() *ColumnMapping {
	return &ColumnMapping{
		schema:   m.schema,
		headers:  slices.Clone(m.headers),
		policy:   m.policy,
		assigned: m.Entries(),
	}
}
