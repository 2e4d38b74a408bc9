// # Error Codes Reference
//
// User-facing messages carry a code that can be quoted to support staff.
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large: input exceeds IMPORT_MAX_FILE_SIZE
//	          Action: Split the file into smaller chunks
//	FILE002 - Unreadable file: corrupt workbook or malformed delimited text
//	          Action: Re-export the sheet as .xlsx or UTF-8 CSV
//	FILE003 - Unsupported format: extension is neither delimited nor workbook
//	          Action: Upload a .csv, .tsv, .txt, .xlsx or .xlsm file
//	FILE004 - No file: no file was provided
//	FILE005 - Empty file: fewer than two rows
//	FILE006 - Sheet selection: workbook has several sheets and none was chosen
//
// # Header Errors (HDR001-HDR099)
//
//	HDR001 - No header row in the scanned rows
//
// # Mapping Errors (MAP001-MAP099)
//
//	MAP001 - Required fields unmapped
//	MAP002 - Unknown dataset type
//	MAP003 - Invalid field or header in a mapping override
//
// # Validation Errors (VAL001-VAL099)
//
//	VAL001 - Unparseable date
//	VAL002 - Unparseable amount
//	VAL003 - Required field empty
//
// # Store Errors (DB001-DB099)
//
//	DB001 - Duplicate key
//	DB002 - Unique constraint
//	DB003 - Connection refused
//	DB004 - Connection reset
//	DB005 - Generic store failure
//
// # Run Errors (RUN001-RUN099)
//
//	RUN001 - Too many imports in progress
//	RUN002 - Import cancelled
//	RUN003 - Import run not found
//	RUN004 - Import timed out
//	RUN005 - Import still running
//	RUN006 - Import already rolled back
//
// # Default Error (ERR000)
//
// Typed errors are matched with errors.Is/As first. Anything else falls back to
// case-insensitive substring patterns, first match wins.
package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened
	Action  string // What to do about it
	Code    string // Error code for support reference
}

var (
	msgFileTooLarge = UserMessage{
		Message: "File exceeds the maximum size limit",
		Action:  "Split the file into smaller chunks",
		Code:    "FILE001",
	}
	msgUnreadable = UserMessage{
		Message: "The file could not be read",
		Action:  "Re-export the sheet as .xlsx or UTF-8 CSV and try again",
		Code:    "FILE002",
	}
	msgUnsupported = UserMessage{
		Message: "Unsupported file format",
		Action:  "Upload a .csv, .tsv, .txt, .xlsx or .xlsm file",
		Code:    "FILE003",
	}
	msgNoFile = UserMessage{
		Message: "No file was selected",
		Action:  "Please select a file to import",
		Code:    "FILE004",
	}
	msgEmpty = UserMessage{
		Message: "The file has no data rows",
		Action:  "Upload a file with a header row and at least one data row",
		Code:    "FILE005",
	}
	msgSheet = UserMessage{
		Message: "The workbook has several sheets",
		Action:  "Choose the sheet to import",
		Code:    "FILE006",
	}
	msgHeader = UserMessage{
		Message: "No header row was found",
		Action:  "Make sure the column names appear within the first rows of the sheet",
		Code:    "HDR001",
	}
	msgMappingIncomplete = UserMessage{
		Message: "Some required fields are not mapped to a column",
		Action:  "Map the remaining required fields before importing",
		Code:    "MAP001",
	}
	msgUnknownSchema = UserMessage{
		Message: "Unknown dataset type",
		Action:  "Choose one of the available dataset types",
		Code:    "MAP002",
	}
	msgBadMapping = UserMessage{
		Message: "Invalid column mapping",
		Action:  "Map fields to column names that exist in the file",
		Code:    "MAP003",
	}
	msgDuplicate = UserMessage{
		Message: "A record with this key already exists",
		Action:  "Download failed rows to review duplicates",
		Code:    "DB001",
	}
	msgStore = UserMessage{
		Message: "The record could not be saved",
		Action:  "Please try again; contact support if it keeps failing",
		Code:    "DB005",
	}
	msgBusy = UserMessage{
		Message: "System is busy processing other imports",
		Action:  "Please wait a moment and try again",
		Code:    "RUN001",
	}
	msgCancelled = UserMessage{
		Message: "Import was cancelled",
		Action:  "Start a new import when ready",
		Code:    "RUN002",
	}
	msgNotFound = UserMessage{
		Message: "Import run not found",
		Action:  "The run may have expired. Please start a new import",
		Code:    "RUN003",
	}
	msgTimeout = UserMessage{
		Message: "Import timed out",
		Action:  "Try a smaller file or try again later",
		Code:    "RUN004",
	}
	msgInProgress = UserMessage{
		Message: "Import is still running",
		Action:  "Wait for the import to finish",
		Code:    "RUN005",
	}
	msgRolledBack = UserMessage{
		Message: "Import was already rolled back",
		Action:  "No further action is needed",
		Code:    "RUN006",
	}
)

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns is the fallback for untyped errors, specific before general.
var errorPatterns = []errorPattern{
	{pattern: "duplicate key", msg: msgDuplicate},
	{pattern: "unique constraint", msg: UserMessage{
		Message: "This value must be unique but already exists",
		Action:  "Check for duplicate entries in your file",
		Code:    "DB002",
	}},
	{pattern: "violates unique", msg: UserMessage{
		Message: "A duplicate value was found",
		Action:  "Review your data for duplicate key values",
		Code:    "DB002",
	}},
	{pattern: "connection refused", msg: UserMessage{
		Message: "Unable to connect to the store",
		Action:  "Please try again in a few moments",
		Code:    "DB003",
	}},
	{pattern: "connection reset", msg: UserMessage{
		Message: "Store connection was interrupted",
		Action:  "Please try again",
		Code:    "DB004",
	}},
	{pattern: "unparseable date", msg: UserMessage{
		Message: "Invalid date format detected",
		Action:  "Use YYYY-MM-DD, DD/MM/YYYY, MM/DD/YYYY or 15 March 2024",
		Code:    "VAL001",
	}},
	{pattern: "unparseable amount", msg: UserMessage{
		Message: "Invalid amount format detected",
		Action:  "Use one decimal separator and consistent thousands grouping",
		Code:    "VAL002",
	}},
	{pattern: "missing or unparseable", msg: UserMessage{
		Message: "Required field is empty or invalid",
		Action:  "Fix the flagged cells and re-import the failed rows",
		Code:    "VAL003",
	}},
	{pattern: "file too large", msg: msgFileTooLarge},
	{pattern: "unsupported format", msg: msgUnsupported},
	{pattern: "no file provided", msg: msgNoFile},
	{pattern: "too many imports", msg: msgBusy},
	{pattern: "context canceled", msg: msgCancelled},
	{pattern: "context deadline exceeded", msg: msgTimeout},
	{pattern: "timeout", msg: msgTimeout},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
//
// Example:
//
//	msg := MapError(&MappingIncompleteError{Missing: []string{"amount"}})
//	// msg.Code == "MAP001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	if msg, ok := mapTypedError(err); ok {
		return msg
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

func mapTypedError(err error) (UserMessage, bool) {
	var (
		parseErr   *ParseError
		emptyErr   *EmptyInputError
		sheetErr   *SheetSelectionError
		headerErr  *HeaderNotFoundError
		mappingErr *MappingIncompleteError
		overrideEr *MappingOverrideError
		persistErr *PersistenceError
	)

	switch {
	case errors.As(err, &parseErr):
		switch {
		case strings.Contains(parseErr.Reason, "file too large"):
			return msgFileTooLarge, true
		case strings.Contains(parseErr.Reason, "unsupported format"):
			return msgUnsupported, true
		case strings.Contains(parseErr.Reason, "no file provided"):
			return msgNoFile, true
		}
		return msgUnreadable, true
	case errors.As(err, &emptyErr):
		return msgEmpty, true
	case errors.As(err, &sheetErr):
		return msgSheet, true
	case errors.As(err, &headerErr):
		return msgHeader, true
	case errors.As(err, &mappingErr):
		msg := msgMappingIncomplete
		msg.Message = fmt.Sprintf("%s: %s", msg.Message, strings.Join(mappingErr.Missing, ", "))
		return msg, true
	case errors.As(err, &overrideEr):
		return msgBadMapping, true
	case errors.Is(err, ErrUnknownSchema):
		return msgUnknownSchema, true
	case errors.Is(err, ErrDuplicate):
		return msgDuplicate, true
	case errors.Is(err, ErrTooManyImports):
		return msgBusy, true
	case errors.Is(err, ErrRunNotFound):
		return msgNotFound, true
	case errors.Is(err, ErrRunInProgress):
		return msgInProgress, true
	case errors.Is(err, ErrAlreadyRolledBack):
		return msgRolledBack, true
	case errors.Is(err, ErrRunCancelled), errors.Is(err, context.Canceled):
		return msgCancelled, true
	case errors.Is(err, context.DeadlineExceeded):
		return msgTimeout, true
	case errors.As(err, &persistErr):
		return msgStore, true
	}
	return UserMessage{}, false
}

// FormatUserError creates a display string: "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error (for logs) with its user message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
