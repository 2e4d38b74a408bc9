package core

// loader.go decodes input bytes into a RawTable.
//
// Delimited text is BOM-stripped, UTF-8 sanitized and parsed with
// encoding/csv after sniffing the delimiter from the first line. Workbooks are
// read with excelize; every sheet name is exposed and the caller picks one.

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// Format is the declared shape of an input file.
type Format int

const (
	FormatAuto Format = iota
	FormatDelimited
	FormatWorkbook
)

// String returns the format name.
func (f Format) String() string {
	switch f {
	case FormatDelimited:
		return "delimited"
	case FormatWorkbook:
		return "workbook"
	default:
		return "auto"
	}
}

// ParseFormat parses a format hint. Accepts "", "auto", "csv", "delimited",
// "xlsx" and "workbook".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return FormatAuto, nil
	case "csv", "tsv", "txt", "delimited":
		return FormatDelimited, nil
	case "xlsx", "xlsm", "workbook":
		return FormatWorkbook, nil
	}
	return FormatAuto, &ParseError{Reason: fmt.Sprintf("unsupported format %q", s)}
}

// formatFromName infers the format from a file extension.
func formatFromName(name string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".tsv", ".txt":
		return FormatDelimited, true
	case ".xlsx", ".xlsm":
		return FormatWorkbook, true
	}
	return FormatAuto, false
}

// zipMagic starts every xlsx container.
var zipMagic = []byte("PK\x03\x04")

// utf8BOM is stripped from delimited input.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Source is one input file.
type Source struct {
	Name   string // File name; its extension is the format hint under FormatAuto
	Data   []byte
	Format Format
	Sheet  string // Selected workbook sheet
}

// ReadSource reads r up to limit bytes. Larger inputs fail with a ParseError.
func ReadSource(r io.Reader, name string, limit int64) (Source, error) {
	if limit <= 0 {
		limit = DefaultMaxFileSize
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return Source{}, &ParseError{Reason: "read input", Err: err}
	}
	if int64(len(data)) > limit {
		return Source{}, &ParseError{Reason: fmt.Sprintf("file too large: exceeds %d bytes", limit)}
	}
	return Source{Name: name, Data: data}, nil
}

// resolveFormat applies the declared format, the extension, then content sniffing.
func (s Source) resolveFormat() Format {
	if s.Format != FormatAuto {
		return s.Format
	}
	if f, ok := formatFromName(s.Name); ok {
		return f
	}
	if bytes.HasPrefix(s.Data, zipMagic) {
		return FormatWorkbook
	}
	return FormatDelimited
}

// SheetNames lists the sheets of a workbook. Delimited text has a single
// unnamed sheet.
func SheetNames(src Source) ([]string, error) {
	if len(src.Data) == 0 {
		return nil, &ParseError{Reason: "no file provided"}
	}
	if src.resolveFormat() != FormatWorkbook {
		return []string{""}, nil
	}

	f, err := excelize.OpenReader(bytes.NewReader(src.Data))
	if err != nil {
		return nil, &ParseError{Reason: "open workbook", Err: err}
	}
	defer f.Close()

	return f.GetSheetList(), nil
}

// LoadSheet decodes the selected sheet. At most HeaderScanRows+RowCap raw
// rows are kept; RawTable.Truncated reports whether more existed.
func LoadSheet(src Source, opts Options) (*RawTable, error) {
	opts = opts.withDefaults()
	if len(src.Data) == 0 {
		return nil, &ParseError{Reason: "no file provided"}
	}
	if int64(len(src.Data)) > opts.MaxFileSize {
		return nil, &ParseError{Reason: fmt.Sprintf("file too large: exceeds %d bytes", opts.MaxFileSize)}
	}

	limit := opts.HeaderScanRows + opts.RowCap

	var (
		table *RawTable
		err   error
	)
	switch src.resolveFormat() {
	case FormatWorkbook:
		table, err = loadWorkbook(src, limit)
	default:
		table, err = loadDelimited(src.Data, limit)
	}
	if err != nil {
		return nil, err
	}

	if len(table.Rows) < 2 {
		return nil, &EmptyInputError{Rows: len(table.Rows)}
	}
	return table, nil
}

func loadDelimited(data []byte, limit int) (*RawTable, error) {
	data = sanitizeUTF8(bytes.TrimPrefix(data, utf8BOM))

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = sniffDelimiter(data)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	table := &RawTable{}
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &ParseError{Reason: "invalid delimited text", Err: err}
		}
		if len(table.Rows) == limit {
			table.Truncated = true
			break
		}
		table.Rows = append(table.Rows, record)
	}
	return table, nil
}

// sniffDelimiter checks the first line for ';', then tab, and falls back to ','.
func sniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	switch {
	case bytes.IndexByte(line, ';') >= 0:
		return ';'
	case bytes.IndexByte(line, '\t') >= 0:
		return '\t'
	default:
		return ','
	}
}

func loadWorkbook(src Source, limit int) (*RawTable, error) {
	f, err := excelize.OpenReader(bytes.NewReader(src.Data))
	if err != nil {
		return nil, &ParseError{Reason: "open workbook", Err: err}
	}
	defer f.Close()

	sheet, err := selectSheet(f.GetSheetList(), src.Sheet)
	if err != nil {
		return nil, err
	}

	rows, err := f.Rows(sheet)
	if err != nil {
		return nil, &ParseError{Reason: fmt.Sprintf("read sheet %q", sheet), Err: err}
	}
	defer rows.Close()

	table := &RawTable{Sheet: sheet}
	for rows.Next() {
		if len(table.Rows) == limit {
			table.Truncated = true
			break
		}
		cols, err := rows.Columns()
		if err != nil {
			return nil, &ParseError{Reason: fmt.Sprintf("read sheet %q", sheet), Err: err}
		}
		table.Rows = append(table.Rows, cols)
	}
	if err := rows.Error(); err != nil {
		return nil, &ParseError{Reason: fmt.Sprintf("read sheet %q", sheet), Err: err}
	}
	return table, nil
}

// selectSheet auto-selects a single sheet and otherwise requires a valid choice.
func selectSheet(sheets []string, requested string) (string, error) {
	if len(sheets) == 0 {
		return "", &ParseError{Reason: "workbook has no sheets"}
	}
	if requested == "" {
		if len(sheets) == 1 {
			return sheets[0], nil
		}
		return "", &SheetSelectionError{Sheets: sheets}
	}
	for _, s := range sheets {
		if s == requested {
			return s, nil
		}
	}
	return "", &SheetSelectionError{Requested: requested, Sheets: sheets}
}

// sanitizeUTF8 replaces invalid UTF-8 bytes with U+FFFD.
func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data))

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune(utf8.RuneError)
		} else {
			buf.Write(data[:size])
		}
		data = data[size:]
	}

	return buf.Bytes()
}
