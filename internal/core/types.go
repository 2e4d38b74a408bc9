package core

import (
	"context"
	"time"
)

// Defaults for pipeline tunables.
const (
	DefaultRowCap         = 1000
	DefaultHeaderScanRows = 10
	DefaultBatchSize      = 50
	DefaultBatchPause     = 10 * time.Millisecond
	DefaultMaxFileSize    = 100 * 1024 * 1024
)

// Options carries every tunable of a pipeline run. Nothing in this package
// reads the environment; callers build Options from their own configuration.
type Options struct {
	RowCap         int           // Maximum data rows processed per run
	HeaderScanRows int           // Rows scanned when looking for the header
	BatchSize      int           // Rows committed per batch
	BatchPause     time.Duration // Cooperative pause between batches
	MaxFileSize    int64         // Inputs larger than this fail with ParseError
	Locale         Locale        // Parsing locale; zero value uses the heuristic
	Exclusivity    MappingPolicy // Whether a header may serve several fields
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		RowCap:         DefaultRowCap,
		HeaderScanRows: DefaultHeaderScanRows,
		BatchSize:      DefaultBatchSize,
		BatchPause:     DefaultBatchPause,
		MaxFileSize:    DefaultMaxFileSize,
	}
}

// withDefaults fills zero-valued numeric options.
func (o Options) withDefaults() Options {
	if o.RowCap <= 0 {
		o.RowCap = DefaultRowCap
	}
	if o.HeaderScanRows <= 0 {
		o.HeaderScanRows = DefaultHeaderScanRows
	}
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.BatchPause < 0 {
		o.BatchPause = 0
	}
	if o.MaxFileSize <= 0 {
		o.MaxFileSize = DefaultMaxFileSize
	}
	return o
}

// RawTable is the unparsed grid of one sheet, before any header is known.
// Column counts may differ between rows. A RawTable is not modified after load.
type RawTable struct {
	Sheet     string     // Sheet name; empty for delimited text
	Rows      [][]string // Raw cell values
	Truncated bool       // True if the source had more rows than were loaded
}

// DataRow is one source row keyed by header name.
type DataRow struct {
	Index  int               // 0-based row index in the source sheet
	Values map[string]string // Header name -> raw value; duplicate names keep the last column
	Cells  []string          // Raw values aligned with Detection.Headers
}

// Value returns the raw value under a header name.
func (r DataRow) Value(header string) string {
	return r.Values[header]
}

// FieldType is the semantic type of a schema field.
type FieldType int

const (
	FieldText FieldType = iota
	FieldAmount
	FieldDate
)

// String returns the lowercase type name.
func (t FieldType) String() string {
	switch t {
	case FieldText:
		return "text"
	case FieldAmount:
		return "amount"
	case FieldDate:
		return "date"
	default:
		return "unknown"
	}
}

// FieldSpec describes one schema field and how it is auto-mapped.
type FieldSpec struct {
	Key           string    // Stable field key used in records
	Label         string    // Display label
	Type          FieldType // Semantic type used by the validator
	Required      bool      // Row fails validation when missing or unparseable
	MatchPatterns []string  // Lowercase substrings matched against headers
}

// Kind identifies the record variant a schema produces.
type Kind string

const (
	KindEmployee    Kind = "employee"
	KindVendor      Kind = "vendor"
	KindCustomer    Kind = "customer"
	KindTransaction Kind = "transaction"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindEmployee, KindVendor, KindCustomer, KindTransaction:
		return true
	}
	return false
}

// DatasetSchema defines one importable entity type.
type DatasetSchema struct {
	ID              string
	Kind            Kind
	Label           string
	StoreID         string      // Target store
	RequiredFields  []FieldSpec // Declaration order is mapping order
	OptionalFields  []FieldSpec
	KeywordPatterns []string // Lowercase substrings used by the classifier
}

// Fields returns required fields followed by optional fields.
func (s *DatasetSchema) Fields() []FieldSpec {
	fields := make([]FieldSpec, 0, len(s.RequiredFields)+len(s.OptionalFields))
	fields = append(fields, s.RequiredFields...)
	return append(fields, s.OptionalFields...)
}

// Field looks up a field by key.
func (s *DatasetSchema) Field(key string) (FieldSpec, bool) {
	for _, f := range s.Fields() {
		if f.Key == key {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// Outcome is the per-row result of an import.
type Outcome string

const (
	OutcomeImported Outcome = "imported"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeFailed   Outcome = "failed"
)

// ReasonDuplicate is the reason recorded for skipped rows.
const ReasonDuplicate = "duplicate"

// ImportRecord is the outcome of one attempted row.
type ImportRecord struct {
	RowIndex int     `json:"rowIndex"`
	Outcome  Outcome `json:"outcome"`
	Reason   string  `json:"reason,omitempty"`
	ID       string  `json:"id,omitempty"` // Store id of an imported record
}

// FailedRow is a failed row with its original values.
type FailedRow struct {
	RowIndex int      `json:"rowIndex"`
	Reason   string   `json:"reason"`
	Values   []string `json:"values"` // Aligned with ImportReport.Headers
}

// ImportReport aggregates one run. Imported+Skipped+Failed == Attempted.
type ImportReport struct {
	RunID      string         `json:"runId"`
	SchemaID   string         `json:"schemaId"`
	StoreID    string         `json:"storeId"`
	Headers    []string       `json:"headers"`
	Total      int            `json:"total"`     // Rows handed to the importer
	Attempted  int            `json:"attempted"` // Rows processed before completion or cancellation
	Imported   int            `json:"imported"`
	Skipped    int            `json:"skipped"`
	Failed     int            `json:"failed"`
	FailedRows []FailedRow    `json:"failedRows"`
	Records    []ImportRecord `json:"records"`
	Cancelled  bool           `json:"cancelled"`
	Truncated  bool           `json:"truncated"` // Rows beyond the row cap were ignored
	Duration   time.Duration  `json:"duration"`
}

// Phase indicates the current stage of a run.
type Phase string

const (
	PhaseStarting  Phase = "starting"
	PhaseLoading   Phase = "loading"
	PhaseImporting Phase = "importing"
	PhaseComplete  Phase = "complete"
	PhaseFailed    Phase = "failed"
	PhaseCancelled Phase = "cancelled"
)

// Progress is a snapshot of a run, published between batches.
type Progress struct {
	RunID    string `json:"runId"`
	SchemaID string `json:"schemaId"`
	Phase    Phase  `json:"phase"`
	Current  int    `json:"current"`
	Total    int    `json:"total"`
	Imported int    `json:"imported"`
	Skipped  int    `json:"skipped"`
	Failed   int    `json:"failed"`
	Error    string `json:"error,omitempty"`
}

// Percent returns progress as 0-100.
func (p Progress) Percent() int {
	if p.Total <= 0 {
		if p.Phase == PhaseComplete {
			return 100
		}
		return 0
	}
	return p.Current * 100 / p.Total
}

// ProgressCallback receives progress snapshots.
type ProgressCallback func(Progress)

// NaturalKey is the ordered set of normalized values identifying a record.
type NaturalKey []KeyPart

// KeyPart is one component of a natural key.
type KeyPart struct {
	Field string
	Value string
}

// String renders the key as field=value pairs joined by '|'.
func (k NaturalKey) String() string {
	n := 0
	for _, p := range k {
		n += len(p.Field) + len(p.Value) + 2
	}
	b := make([]byte, 0, n)
	for i, p := range k {
		if i > 0 {
			b = append(b, '|')
		}
		b = append(b, p.Field...)
		b = append(b, '=')
		b = append(b, p.Value...)
	}
	return string(b)
}

// StoredRecord is what a Store persists.
type StoredRecord struct {
	ID        string         `json:"id"`
	RunID     string         `json:"runId"`
	Kind      Kind           `json:"kind"`
	Key       string         `json:"key"` // NaturalKey.String()
	Fields    map[string]any `json:"fields"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Store is the persistence contract the importer needs. Implementations
// should reject a second record with the same Key in one store by returning
// ErrDuplicate from Insert.
type Store interface {
	// FindOne returns the record with the given key, if any.
	FindOne(ctx context.Context, storeID, key string) (StoredRecord, bool, error)

	// Insert persists rec and returns its id.
	Insert(ctx context.Context, storeID string, rec StoredRecord) (string, error)

	// DeleteByRun removes every record a run inserted.
	DeleteByRun(ctx context.Context, storeID, runID string) (int64, error)
}
