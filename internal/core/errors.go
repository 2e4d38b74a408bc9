package core

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors.
var (
	// ErrDuplicate is returned by a Store when a record with the same natural
	// key already exists. The importer records the row as skipped.
	ErrDuplicate = errors.New("duplicate key")

	ErrRunNotFound       = errors.New("import run not found")
	ErrRunInProgress     = errors.New("import still running")
	ErrAlreadyRolledBack = errors.New("import already rolled back")
	ErrRunCancelled      = errors.New("import cancelled")
	ErrUnknownSchema     = errors.New("unknown schema")
	ErrEmptyRegistry     = errors.New("schema registry is empty")
)

// ParseError reports unreadable or corrupt input.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse error: %s: %v", e.Reason, e.Err)
	}
	return "parse error: " + e.Reason
}

func (e *ParseError) Unwrap() error { return e.Err }

// EmptyInputError reports a sheet with fewer than two raw rows.
type EmptyInputError struct {
	Rows int
}

func (e *EmptyInputError) Error() string {
	return fmt.Sprintf("empty file: need a header and at least one data row, got %d row(s)", e.Rows)
}

// SheetSelectionError reports a workbook with several sheets and no selection,
// or a selection that does not exist.
type SheetSelectionError struct {
	Requested string
	Sheets    []string
}

func (e *SheetSelectionError) Error() string {
	if e.Requested != "" {
		return fmt.Sprintf("sheet %q not found (available: %s)", e.Requested, strings.Join(e.Sheets, ", "))
	}
	return "sheet selection required: " + strings.Join(e.Sheets, ", ")
}

// HeaderNotFoundError reports that no scanned row could serve as a header.
type HeaderNotFoundError struct {
	Scanned int
}

func (e *HeaderNotFoundError) Error() string {
	return fmt.Sprintf("header row not found in first %d row(s)", e.Scanned)
}

// MappingIncompleteError lists required fields that have no header assigned.
type MappingIncompleteError struct {
	SchemaID string
	Missing  []string
}

func (e *MappingIncompleteError) Error() string {
	return fmt.Sprintf("mapping incomplete for %s: unmapped required field(s) %s",
		e.SchemaID, strings.Join(e.Missing, ", "))
}

// PersistenceError wraps a store failure for one row.
type PersistenceError struct {
	Op      string
	StoreID string
	Err     error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("store error: %s %s: %v", e.Op, e.StoreID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
