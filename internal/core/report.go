package core

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"
)

// ErrorSheetName is the sheet written by WriteErrorXLSX.
const ErrorSheetName = "Failed Rows"

// ErrorTable lays out failed rows as [row_index, reason, ...headers], one row
// per failure. Values come from each row's positional cells, so duplicate
// header names keep their own columns.
func ErrorTable(headers []string, failed []FailedRow) [][]string {
	table := make([][]string, 0, len(failed)+1)

	head := make([]string, 0, len(headers)+2)
	head = append(head, ReportRowIndexColumn, ReportReasonColumn)
	head = append(head, headers...)
	table = append(table, head)

	for _, fr := range failed {
		row := make([]string, 0, len(headers)+2)
		row = append(row, strconv.Itoa(fr.RowIndex), fr.Reason)
		for i := range headers {
			var v string
			if i < len(fr.Values) {
				v = fr.Values[i]
			}
			row = append(row, v)
		}
		table = append(table, row)
	}
	return table
}

// WriteErrorCSV writes the error report as comma-separated text.
func WriteErrorCSV(w io.Writer, headers []string, failed []FailedRow) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(ErrorTable(headers, failed)); err != nil {
		return fmt.Errorf("write error report: %w", err)
	}
	return nil
}

// WriteErrorXLSX writes the error report as a single-sheet workbook.
func WriteErrorXLSX(w io.Writer, headers []string, failed []FailedRow) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), ErrorSheetName); err != nil {
		return fmt.Errorf("write error report: %w", err)
	}

	sw, err := f.NewStreamWriter(ErrorSheetName)
	if err != nil {
		return fmt.Errorf("write error report: %w", err)
	}

	for i, row := range ErrorTable(headers, failed) {
		cells := make([]any, len(row))
		for j, v := range row {
			cells[j] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("write error report: %w", err)
		}
		if err := sw.SetRow(cell, cells); err != nil {
			return fmt.Errorf("write error report: %w", err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("write error report: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write error report: %w", err)
	}
	return nil
}

// ErrorReportBytes renders the report in the given format (delimited or workbook).
func ErrorReportBytes(format Format, headers []string, failed []FailedRow) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	if format == FormatWorkbook {
		err = WriteErrorXLSX(&buf, headers, failed)
	} else {
		err = WriteErrorCSV(&buf, headers, failed)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
