// Package core implements the tabular import and classification pipeline.
//
// The package takes a spreadsheet or delimited text file of unknown shape and
// turns it into validated, deduplicated records committed to a business-entity
// store. It has no UI or transport dependencies: web handlers, the CLI and
// tests all drive the same function chain.
//
// # Pipeline
//
// Each stage consumes the output of the previous one:
//
//  1. [LoadSheet] decodes bytes into a [RawTable] (delimiter sniffing, workbook sheets).
//  2. [DetectHeader] scores the first rows and picks the header row.
//  3. [Classify] scores every [DatasetSchema] in a [Registry] against the headers.
//  4. [AutoMap] assigns schema fields to headers; [ColumnMapping.Set] overrides one entry.
//  5. [RowValidator] checks required fields and parses money and dates.
//  6. [Importer] commits valid rows in batches, skipping duplicates.
//  7. [WriteErrorCSV] turns failed rows into a re-importable artifact.
//
// [Pipeline] chains the stages for headless use and [Service] runs imports
// asynchronously with progress, cancellation and rollback.
//
// # Registry Order
//
// Registry order is part of the registry's contract: classification ties and
// the all-zero fallback both resolve to the earliest schema.
//
// # Duplicates
//
// The lookup-then-insert sequence is not atomic. The importer holds a
// per-store run lock ([StoreLocks]) for the whole run, and stores are expected
// to enforce uniqueness of the natural key themselves, reporting a violation
// as [ErrDuplicate]. Both paths record the row as skipped.
//
// # Error Codes
//
// Technical errors are mapped to user-facing messages by [MapError]:
//
//   - FILE001-FILE006: input decoding (size, format, empty, sheet selection)
//   - HDR001: header row not found
//   - MAP001-MAP003: mapping and schema selection
//   - VAL001-VAL003: row validation
//   - DB001-DB005: store errors
//   - RUN001-RUN006: run lifecycle (busy, cancelled, not found, timeout, running, rolled back)
package core
