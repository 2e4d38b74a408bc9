package core

// validation.go checks DataRows against a frozen ColumnMapping.
//
// A row is valid iff every required field resolves to a non-empty parsed
// value. Optional fields are parsed when mapped; values that do not parse are
// dropped and never fail the row. Validation is pure: no store access.

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// ValidationError describes one field that failed.
type ValidationError struct {
	Field   string // Field key
	Value   string // The raw value
	Message string // Human-readable message
}

func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// ValidationOutcome is the result for one DataRow.
type ValidationOutcome struct {
	RowIndex int
	Valid    bool
	Values   ParsedValues
	Failed   []string // Failed required field keys, declaration order
	Errors   []ValidationError
}

// Reason renders the failure reason, e.g. "missing or unparseable amount".
func (o ValidationOutcome) Reason() string {
	if o.Valid {
		return ""
	}
	return "missing or unparseable " + strings.Join(o.Failed, ", ")
}

// FieldFailure counts how often a required field failed.
type FieldFailure struct {
	Field string `json:"field"`
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Validation is the outcome of validating every row.
type Validation struct {
	Outcomes []ValidationOutcome // Aligned with the input rows
	Valid    int
	Invalid  int
	Failures []FieldFailure // Most frequent first
}

// RowValidator validates rows for one schema and mapping.
type RowValidator struct {
	schema  *DatasetSchema
	mapping *ColumnMapping
	locale  Locale
}

// NewRowValidator freezes a copy of the mapping.
func NewRowValidator(m *ColumnMapping, loc Locale) *RowValidator {
	return &RowValidator{
		schema:  m.Schema(),
		mapping: m.Clone(),
		locale:  loc,
	}
}

// ValidateRow validates one row and reports every failed required field.
func (v *RowValidator) ValidateRow(row DataRow) ValidationOutcome {
	out := ValidationOutcome{
		RowIndex: row.Index,
		Valid:    true,
		Values:   make(ParsedValues),
	}

	for _, spec := range v.schema.Fields() {
		var raw string
		header, mapped := v.mapping.Header(spec.Key)
		if mapped {
			raw = row.Value(header)
		}

		value, msg := v.parse(spec, raw)
		if msg == "" {
			out.Values[spec.Key] = value
			continue
		}
		if !spec.Required {
			continue
		}
		if !mapped {
			msg = "column not mapped"
		}

		out.Valid = false
		out.Failed = append(out.Failed, spec.Key)
		out.Errors = append(out.Errors, ValidationError{
			Field:   spec.Key,
			Value:   raw,
			Message: msg,
		})
	}

	return out
}

// parse converts raw by field type. msg is empty on success.
func (v *RowValidator) parse(spec FieldSpec, raw string) (value any, msg string) {
	cleaned := CleanCell(raw)
	if cleaned == "" {
		return nil, "required field is empty"
	}

	switch spec.Type {
	case FieldAmount:
		n := ParseAmount(cleaned, v.locale)
		if !n.Valid {
			return nil, "unparseable amount"
		}
		return n, ""
	case FieldDate:
		d := ParseDate(cleaned, v.locale)
		if !d.Valid {
			return nil, "unparseable date"
		}
		return d, ""
	default:
		return cleaned, ""
	}
}

// ValidateAll validates rows in order and tallies per-field failures.
func (v *RowValidator) ValidateAll(rows []DataRow) *Validation {
	result := &Validation{Outcomes: make([]ValidationOutcome, len(rows))}
	counts := make(map[string]int)

	for i, row := range rows {
		o := v.ValidateRow(row)
		result.Outcomes[i] = o
		if o.Valid {
			result.Valid++
			continue
		}
		result.Invalid++
		for _, key := range o.Failed {
			counts[key]++
		}
	}

	result.Failures = v.failureTally(counts)
	return result
}

// failureTally orders failures by count, then declaration order.
func (v *RowValidator) failureTally(counts map[string]int) []FieldFailure {
	if len(counts) == 0 {
		return nil
	}

	order := make([]string, 0, len(v.schema.RequiredFields))
	var failures []FieldFailure
	for _, f := range v.schema.RequiredFields {
		order = append(order, f.Key)
		if n := counts[f.Key]; n > 0 {
			failures = append(failures, FieldFailure{Field: f.Key, Label: f.Label, Count: n})
		}
	}

	sort.SliceStable(failures, func(i, j int) bool {
		if failures[i].Count != failures[j].Count {
			return failures[i].Count > failures[j].Count
		}
		return slices.Index(order, failures[i].Field) < slices.Index(order, failures[j].Field)
	})
	return failures
}
