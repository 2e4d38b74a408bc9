package core

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/xuri/excelize/v2"
)

// workbook builds an xlsx file with the given sheets, in order.
func workbook(t *testing.T, sheets map[string][][]any, order ...string) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	for i, name := range order {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
				t.Fatal(err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			t.Fatal(err)
		}
		for r, row := range sheets[name] {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			if err != nil {
				t.Fatal(err)
			}
			if err := f.SetSheetRow(name, cell, &row); err != nil {
				t.Fatal(err)
			}
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// ----------------------------------------------------------------------------
// Delimited
// ----------------------------------------------------------------------------

func TestLoadSheet_Delimited(t *testing.T) {
	tests := []struct {
		name string
		data string
		want [][]string
	}{
		{
			name: "comma",
			data: "Name,Wage\nAlice,20\n",
			want: [][]string{{"Name", "Wage"}, {"Alice", "20"}},
		},
		{
			name: "semicolon",
			data: "Name;Wage\nAnna;12,50\n",
			want: [][]string{{"Name", "Wage"}, {"Anna", "12,50"}},
		},
		{
			name: "tab",
			data: "Name\tWage\nAlice\t1,200.00\n",
			want: [][]string{{"Name", "Wage"}, {"Alice", "1,200.00"}},
		},
		{
			name: "byte order mark",
			data: "\xEF\xBB\xBFName,Wage\nAlice,20\n",
			want: [][]string{{"Name", "Wage"}, {"Alice", "20"}},
		},
		{
			name: "ragged rows and quotes",
			data: "Name,Wage,Email\n\"Smith, Alice\",20\nBob,30,bob@example.com,extra\n",
			want: [][]string{
				{"Name", "Wage", "Email"},
				{"Smith, Alice", "20"},
				{"Bob", "30", "bob@example.com", "extra"},
			},
		},
		{
			name: "crlf",
			data: "Name,Wage\r\nAlice,20\r\n",
			want: [][]string{{"Name", "Wage"}, {"Alice", "20"}},
		},
		{
			name: "invalid utf8",
			data: "Name,Wage\nJos\xe9,20\n",
			want: [][]string{{"Name", "Wage"}, {"Jos�", "20"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := LoadSheet(Source{Name: "in.csv", Data: []byte(tt.data)}, DefaultOptions())
			if err != nil {
				t.Fatalf("LoadSheet() error: %v", err)
			}
			if diff := cmp.Diff(tt.want, table.Rows); diff != "" {
				t.Errorf("Rows mismatch (-want +got):\n%s", diff)
			}
			if table.Sheet != "" || table.Truncated {
				t.Errorf("Sheet = %q, Truncated = %v", table.Sheet, table.Truncated)
			}
		})
	}
}

func TestLoadSheet_RowLimit(t *testing.T) {
	var b strings.Builder
	b.WriteString("Name,Wage\n")
	for i := 0; i < 30; i++ {
		b.WriteString("x,1\n")
	}

	opts := DefaultOptions()
	opts.HeaderScanRows = 2
	opts.RowCap = 10

	table, err := LoadSheet(Source{Name: "big.csv", Data: []byte(b.String())}, opts)
	if err != nil {
		t.Fatalf("LoadSheet() error: %v", err)
	}
	if len(table.Rows) != 12 {
		t.Errorf("len(Rows) = %d, want 12", len(table.Rows))
	}
	if !table.Truncated {
		t.Error("Truncated = false, want true")
	}
}

func TestLoadSheet_Errors(t *testing.T) {
	t.Run("no data", func(t *testing.T) {
		_, err := LoadSheet(Source{Name: "a.csv"}, DefaultOptions())
		var pe *ParseError
		if !errors.As(err, &pe) || pe.Reason != "no file provided" {
			t.Errorf("error = %v, want ParseError no file provided", err)
		}
	})

	t.Run("single row", func(t *testing.T) {
		_, err := LoadSheet(csvSource("Name,Wage"), DefaultOptions())
		var ee *EmptyInputError
		if !errors.As(err, &ee) || ee.Rows != 1 {
			t.Errorf("error = %v, want EmptyInputError{Rows: 1}", err)
		}
	})

	t.Run("too large", func(t *testing.T) {
		opts := DefaultOptions()
		opts.MaxFileSize = 8
		_, err := LoadSheet(csvSource("Name,Wage", "Alice,20"), opts)
		if got := MapError(err).Code; got != "FILE001" {
			t.Errorf("MapError(%v) = %s, want FILE001", err, got)
		}
	})

	t.Run("corrupt workbook", func(t *testing.T) {
		_, err := LoadSheet(Source{Name: "a.xlsx", Data: []byte("PK\x03\x04 not really")}, DefaultOptions())
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Errorf("error = %v, want ParseError", err)
		}
	})
}

func TestReadSource(t *testing.T) {
	src, err := ReadSource(strings.NewReader("a,b\n1,2\n"), "x.csv", 100)
	if err != nil {
		t.Fatalf("ReadSource() error: %v", err)
	}
	if src.Name != "x.csv" || string(src.Data) != "a,b\n1,2\n" {
		t.Errorf("ReadSource() = %+v", src)
	}

	_, err = ReadSource(strings.NewReader(strings.Repeat("x", 101)), "x.csv", 100)
	var pe *ParseError
	if !errors.As(err, &pe) || !strings.Contains(pe.Reason, "file too large") {
		t.Errorf("oversized ReadSource() error = %v", err)
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatAuto, false},
		{"auto", FormatAuto, false},
		{"CSV", FormatDelimited, false},
		{"tsv", FormatDelimited, false},
		{"xlsx", FormatWorkbook, false},
		{"workbook", FormatWorkbook, false},
		{"pdf", FormatAuto, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}

	_, err := ParseFormat("pdf")
	if MapError(err).Code != "FILE003" {
		t.Errorf("MapError(%v) = %s, want FILE003", err, MapError(err).Code)
	}
}

func TestSource_ResolveFormat(t *testing.T) {
	tests := []struct {
		name string
		src  Source
		want Format
	}{
		{"declared wins", Source{Name: "a.csv", Format: FormatWorkbook}, FormatWorkbook},
		{"csv extension", Source{Name: "a.CSV"}, FormatDelimited},
		{"xlsm extension", Source{Name: "a.xlsm"}, FormatWorkbook},
		{"zip content", Source{Name: "upload", Data: []byte("PK\x03\x04...")}, FormatWorkbook},
		{"text content", Source{Name: "upload", Data: []byte("a,b")}, FormatDelimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.src.resolveFormat(); got != tt.want {
				t.Errorf("resolveFormat() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSniffDelimiter(t *testing.T) {
	tests := []struct {
		data string
		want rune
	}{
		{"a,b,c\n1;2", ','},
		{"a;b;c\n1,2", ';'},
		{"a\tb\n", '\t'},
		{"single", ','},
	}
	for _, tt := range tests {
		if got := sniffDelimiter([]byte(tt.data)); got != tt.want {
			t.Errorf("sniffDelimiter(%q) = %q, want %q", tt.data, got, tt.want)
		}
	}
}

func TestSanitizeUTF8(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  []byte
	}{
		{name: "valid ascii", input: []byte("hello"), want: []byte("hello")},
		{name: "valid multibyte", input: []byte("café €"), want: []byte("café €")},
		{name: "lone continuation byte", input: []byte{'a', 0x80, 'b'}, want: []byte("a�b")},
		{name: "truncated sequence", input: []byte{'x', 0xE2, 0x82}, want: []byte("x��")},
		{name: "empty", input: []byte{}, want: []byte{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeUTF8(tt.input); !bytes.Equal(got, tt.want) {
				t.Errorf("sanitizeUTF8(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// Workbook
// ----------------------------------------------------------------------------

func TestLoadSheet_Workbook(t *testing.T) {
	data := workbook(t, map[string][][]any{
		"Payroll": {
			{"Payroll export"},
			{"Name", "Wage"},
			{"Alice", 20},
		},
	}, "Payroll")

	src := Source{Name: "payroll.xlsx", Data: data}
	sheets, err := SheetNames(src)
	if err != nil {
		t.Fatalf("SheetNames() error: %v", err)
	}
	if diff := cmp.Diff([]string{"Payroll"}, sheets); diff != "" {
		t.Errorf("SheetNames() mismatch (-want +got):\n%s", diff)
	}

	table, err := LoadSheet(src, DefaultOptions())
	if err != nil {
		t.Fatalf("LoadSheet() error: %v", err)
	}
	if table.Sheet != "Payroll" {
		t.Errorf("Sheet = %q, want Payroll", table.Sheet)
	}
	want := [][]string{{"Payroll export"}, {"Name", "Wage"}, {"Alice", "20"}}
	if diff := cmp.Diff(want, table.Rows); diff != "" {
		t.Errorf("Rows mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadSheet_WorkbookSheetSelection(t *testing.T) {
	data := workbook(t, map[string][][]any{
		"Vendors":   {{"Vendor"}, {"Acme"}},
		"Customers": {{"Customer"}, {"Globex"}},
	}, "Vendors", "Customers")

	t.Run("several sheets need a choice", func(t *testing.T) {
		_, err := LoadSheet(Source{Name: "book.xlsx", Data: data}, DefaultOptions())
		var se *SheetSelectionError
		if !errors.As(err, &se) {
			t.Fatalf("error = %v, want SheetSelectionError", err)
		}
		if diff := cmp.Diff([]string{"Vendors", "Customers"}, se.Sheets); diff != "" {
			t.Errorf("Sheets mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("selected sheet loads", func(t *testing.T) {
		table, err := LoadSheet(Source{Name: "book.xlsx", Data: data, Sheet: "Customers"}, DefaultOptions())
		if err != nil {
			t.Fatalf("LoadSheet() error: %v", err)
		}
		if diff := cmp.Diff([][]string{{"Customer"}, {"Globex"}}, table.Rows); diff != "" {
			t.Errorf("Rows mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("unknown sheet", func(t *testing.T) {
		_, err := LoadSheet(Source{Name: "book.xlsx", Data: data, Sheet: "Nope"}, DefaultOptions())
		var se *SheetSelectionError
		if !errors.As(err, &se) || se.Requested != "Nope" {
			t.Errorf("error = %v, want SheetSelectionError for Nope", err)
		}
	})
}

func TestSheetNames_Delimited(t *testing.T) {
	sheets, err := SheetNames(csvSource("a,b", "1,2"))
	if err != nil {
		t.Fatalf("SheetNames() error: %v", err)
	}
	if diff := cmp.Diff([]string{""}, sheets); diff != "" {
		t.Errorf("SheetNames() mismatch (-want +got):\n%s", diff)
	}
}
