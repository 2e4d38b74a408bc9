package core

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestScoreRow(t *testing.T) {
	tests := []struct {
		name string
		row  []string
		want int
	}{
		{name: "nil row", row: nil, want: 0},
		{name: "blank cells", row: []string{"", "  ", "\t"}, want: 0},
		{name: "single text cell", row: []string{"Quarterly report"}, want: 3},
		{name: "three text cells", row: []string{"Name", "Role", "Email"}, want: 14},
		{name: "numeric cells", row: []string{"1", "2.5", "1,000"}, want: 8},
		{name: "duplicate cells", row: []string{"Name", "Name"}, want: 10},
		{name: "mixed", row: []string{"Total", "42", ""}, want: 2 + 2 + 5},
		{name: "cells are cleaned", row: []string{`="Name"`, ` "Role" `}, want: 4 + 2 + 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ScoreRow(tt.row); got != tt.want {
				t.Errorf("ScoreRow(%q) = %d, want %d", tt.row, got, tt.want)
			}
		})
	}
}

func TestDetectHeader_Offset(t *testing.T) {
	table := &RawTable{Rows: [][]string{
		{"Acme Payroll Export", "", ""},
		{"", "", ""},
		{"Name", "Role", "Email"},
		{"Alice Smith", "Engineer", "alice@example.com"},
		{"Bob Jones", "Designer", "bob@example.com"},
		{"", " ", ""},
		{"Carol White", "Manager", "carol@example.com"},
		{"Dan Brown", "Analyst", ""},
	}}

	d, err := DetectHeader(table, DefaultOptions())
	if err != nil {
		t.Fatalf("DetectHeader() error: %v", err)
	}

	if d.HeaderIndex != 2 {
		t.Errorf("HeaderIndex = %d, want 2", d.HeaderIndex)
	}
	if diff := cmp.Diff([]string{"Name", "Role", "Email"}, d.Headers); diff != "" {
		t.Errorf("Headers mismatch (-want +got):\n%s", diff)
	}
	if len(d.Rows) != 4 {
		t.Fatalf("len(Rows) = %d, want 4", len(d.Rows))
	}
	if d.BlankRows != 1 {
		t.Errorf("BlankRows = %d, want 1", d.BlankRows)
	}

	var indexes []int
	for _, r := range d.Rows {
		indexes = append(indexes, r.Index)
	}
	if diff := cmp.Diff([]int{3, 4, 6, 7}, indexes); diff != "" {
		t.Errorf("row indexes mismatch (-want +got):\n%s", diff)
	}
	if got := d.Rows[3].Value("Email"); got != "" {
		t.Errorf("Dan's email = %q, want empty", got)
	}
}

func TestDetectHeader_TieGoesToEarliest(t *testing.T) {
	table := &RawTable{Rows: [][]string{
		{"Alpha", "Beta"},
		{"Gamma", "Delta"},
	}}

	d, err := DetectHeader(table, DefaultOptions())
	if err != nil {
		t.Fatalf("DetectHeader() error: %v", err)
	}
	if d.HeaderIndex != 0 {
		t.Errorf("HeaderIndex = %d, want 0", d.HeaderIndex)
	}
	if diff := cmp.Diff([]int{11, 11}, d.Scores); diff != "" {
		t.Errorf("Scores mismatch (-want +got):\n%s", diff)
	}
}

func TestDetectHeader_ScanLimit(t *testing.T) {
	rows := [][]string{{"title"}, {"1"}, {"2"}}
	rows = append(rows, []string{"Name", "Role", "Email"})

	opts := DefaultOptions()
	opts.HeaderScanRows = 3

	d, err := DetectHeader(&RawTable{Rows: rows}, opts)
	if err != nil {
		t.Fatalf("DetectHeader() error: %v", err)
	}
	if d.HeaderIndex != 0 {
		t.Errorf("HeaderIndex = %d, want 0 (row 3 is beyond the scan window)", d.HeaderIndex)
	}
	if len(d.Scores) != 3 {
		t.Errorf("len(Scores) = %d, want 3", len(d.Scores))
	}
}

func TestDetectHeader_NotFound(t *testing.T) {
	table := &RawTable{Rows: [][]string{{"", ""}, {" "}, {}}}

	_, err := DetectHeader(table, DefaultOptions())
	var hnf *HeaderNotFoundError
	if !errors.As(err, &hnf) {
		t.Fatalf("DetectHeader() error = %v, want HeaderNotFoundError", err)
	}
	if hnf.Scanned != 3 {
		t.Errorf("Scanned = %d, want 3", hnf.Scanned)
	}
}

func TestDetectHeader_RowCap(t *testing.T) {
	rows := [][]string{{"Name", "Wage"}}
	for i := 0; i < 10; i++ {
		rows = append(rows, []string{"n", "1"})
	}

	opts := DefaultOptions()
	opts.RowCap = 4

	d, err := DetectHeader(&RawTable{Rows: rows}, opts)
	if err != nil {
		t.Fatalf("DetectHeader() error: %v", err)
	}
	if len(d.Rows) != 4 {
		t.Errorf("len(Rows) = %d, want 4", len(d.Rows))
	}
	if !d.Truncated {
		t.Error("Truncated = false, want true")
	}
}

func TestDetectHeader_TruncatedTable(t *testing.T) {
	table := &RawTable{Rows: [][]string{{"Name", "Wage"}, {"a", "1"}}, Truncated: true}

	d, err := DetectHeader(table, DefaultOptions())
	if err != nil {
		t.Fatalf("DetectHeader() error: %v", err)
	}
	if !d.Truncated {
		t.Error("Truncated should carry over from the table")
	}
}

func TestDetectHeader_SparseHeader(t *testing.T) {
	table := &RawTable{Rows: [][]string{
		{"Name", "", "Wage", "Name"},
		{"Alice", "", "20", "Alice B."},
		{"Bob"},
	}}

	d, err := DetectHeader(table, DefaultOptions())
	if err != nil {
		t.Fatalf("DetectHeader() error: %v", err)
	}

	if diff := cmp.Diff([]string{"Name", "Wage", "Name"}, d.Headers); diff != "" {
		t.Errorf("Headers mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{0, 2, 3}, d.Columns); diff != "" {
		t.Errorf("Columns mismatch (-want +got):\n%s", diff)
	}

	alice := d.Rows[0]
	if diff := cmp.Diff([]string{"Alice", "20", "Alice B."}, alice.Cells); diff != "" {
		t.Errorf("Cells mismatch (-want +got):\n%s", diff)
	}
	// duplicate header names resolve to the last column
	if got := alice.Value("Name"); got != "Alice B." {
		t.Errorf("Value(Name) = %q, want last occurrence", got)
	}

	// short rows pad with empty cells
	if diff := cmp.Diff([]string{"Bob", "", ""}, d.Rows[1].Cells); diff != "" {
		t.Errorf("short row Cells mismatch (-want +got):\n%s", diff)
	}
}
