package core

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func dataRow(index int, values map[string]string) DataRow {
	return DataRow{Index: index, Values: values}
}

func TestValidateRow(t *testing.T) {
	headers := []string{"Date", "Memo", "Amount"}
	m := AutoMap(headers, testSchema(t, "ledger"), MappingShared)
	v := NewRowValidator(m, Locale{})

	tests := []struct {
		name       string
		values     map[string]string
		wantValid  bool
		wantFailed []string
		wantReason string
	}{
		{
			name:      "valid row",
			values:    map[string]string{"Date": "2024-03-15", "Memo": "Office rent", "Amount": "(1,234.56)"},
			wantValid: true,
		},
		{
			name:       "blank amount",
			values:     map[string]string{"Date": "2024-03-15", "Memo": "Office rent", "Amount": "  "},
			wantFailed: []string{KeyAmount},
			wantReason: "missing or unparseable amount",
		},
		{
			name:       "unparseable date and amount",
			values:     map[string]string{"Date": "someday", "Memo": "Rent", "Amount": "1.234.5"},
			wantFailed: []string{KeyDate, KeyAmount},
			wantReason: "missing or unparseable date, amount",
		},
		{
			name:       "missing cell",
			values:     map[string]string{"Date": "15/03/2024", "Amount": "12.00"},
			wantFailed: []string{KeyDescription},
			wantReason: "missing or unparseable description",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := v.ValidateRow(dataRow(7, tt.values))
			if out.RowIndex != 7 {
				t.Errorf("RowIndex = %d, want 7", out.RowIndex)
			}
			if out.Valid != tt.wantValid {
				t.Errorf("Valid = %v, want %v (errors %v)", out.Valid, tt.wantValid, out.Errors)
			}
			if diff := cmp.Diff(tt.wantFailed, out.Failed); diff != "" {
				t.Errorf("Failed mismatch (-want +got):\n%s", diff)
			}
			if got := out.Reason(); got != tt.wantReason {
				t.Errorf("Reason() = %q, want %q", got, tt.wantReason)
			}
			if len(out.Errors) != len(tt.wantFailed) {
				t.Errorf("len(Errors) = %d, want %d", len(out.Errors), len(tt.wantFailed))
			}
		})
	}
}

func TestValidateRow_ParsedValues(t *testing.T) {
	m := AutoMap([]string{"Date", "Memo", "Amount"}, testSchema(t, "ledger"), MappingShared)
	out := NewRowValidator(m, Locale{}).ValidateRow(dataRow(1, map[string]string{
		"Date":   "15/03/2024",
		"Memo":   ` ="Office  Rent" `,
		"Amount": "(1,234.56)",
	}))
	if !out.Valid {
		t.Fatalf("row invalid: %v", out.Errors)
	}

	if got := AmountString(out.Values.Amount(KeyAmount)); got != "-1234.56" {
		t.Errorf("amount = %q, want -1234.56", got)
	}
	want := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	if got := out.Values.Date(KeyDate).Time; !got.Equal(want) {
		t.Errorf("date = %v, want %v", got, want)
	}
	if got := out.Values.Text(KeyDescription); got != "Office  Rent" {
		t.Errorf("description = %q, want cleaned cell", got)
	}
}

func TestValidateRow_ErrorMessages(t *testing.T) {
	m := AutoMap([]string{"Date", "Amount"}, testSchema(t, "ledger"), MappingShared)
	out := NewRowValidator(m, Locale{}).ValidateRow(dataRow(0, map[string]string{
		"Date":   "not a date",
		"Amount": "",
	}))

	want := []ValidationError{
		{Field: KeyDate, Value: "not a date", Message: "unparseable date"},
		{Field: KeyDescription, Value: "", Message: "column not mapped"},
		{Field: KeyAmount, Value: "", Message: "required field is empty"},
	}
	if diff := cmp.Diff(want, out.Errors); diff != "" {
		t.Errorf("Errors mismatch (-want +got):\n%s", diff)
	}
	if got := out.Errors[0].Error(); got != "date: unparseable date" {
		t.Errorf("Error() = %q", got)
	}
}

func TestValidateRow_OptionalFieldsNeverFail(t *testing.T) {
	headers := []string{"Name", "Wage", "Email", "Start Date"}
	m := AutoMap(headers, testSchema(t, "people"), MappingShared)
	v := NewRowValidator(m, Locale{})

	out := v.ValidateRow(dataRow(1, map[string]string{
		"Name": "Alice", "Wage": "25.00", "Email": "", "Start Date": "next week",
	}))
	if !out.Valid {
		t.Fatalf("row invalid: %v", out.Errors)
	}
	if _, ok := out.Values[KeyStartDate]; ok {
		t.Error("unparseable optional date should be dropped")
	}
	if _, ok := out.Values[KeyEmail]; ok {
		t.Error("empty optional value should be dropped")
	}

	out = v.ValidateRow(dataRow(2, map[string]string{
		"Name": "Bob", "Wage": "30", "Email": "bob@example.com", "Start Date": "2023-01-09",
	}))
	if out.Values.Text(KeyEmail) != "bob@example.com" || !out.Values.Date(KeyStartDate).Valid {
		t.Errorf("optional values not parsed: %v", out.Values)
	}
}

func TestValidateRow_Locale(t *testing.T) {
	m := AutoMap([]string{"Name", "Wage"}, testSchema(t, "people"), MappingShared)
	row := dataRow(1, map[string]string{"Name": "Anna", "Wage": "1,234"})

	out := NewRowValidator(m, Locale{}).ValidateRow(row)
	if got := AmountString(out.Values.Amount(KeyWage)); got != "1234" {
		t.Errorf("wage without locale = %q, want 1234", got)
	}

	out = NewRowValidator(m, mustLocale(t, "de-DE")).ValidateRow(row)
	if !out.Valid {
		t.Fatalf("row invalid under de-DE: %v", out.Errors)
	}
	if got := AmountString(out.Values.Amount(KeyWage)); got != "1.234" {
		t.Errorf("wage = %q, want 1.234", got)
	}
}

func TestNewRowValidator_FreezesMapping(t *testing.T) {
	m := AutoMap([]string{"Name", "Wage"}, testSchema(t, "people"), MappingShared)
	v := NewRowValidator(m, Locale{})

	if err := m.Set(KeyWage, ""); err != nil {
		t.Fatal(err)
	}

	out := v.ValidateRow(dataRow(1, map[string]string{"Name": "Anna", "Wage": "20"}))
	if !out.Valid {
		t.Errorf("validator should use the mapping as it was at construction: %v", out.Errors)
	}
}

func TestValidateAll(t *testing.T) {
	m := AutoMap([]string{"Date", "Memo", "Amount"}, testSchema(t, "ledger"), MappingShared)
	v := NewRowValidator(m, Locale{})

	rows := []DataRow{
		dataRow(1, map[string]string{"Date": "2024-01-02", "Memo": "a", "Amount": "1"}),
		dataRow(2, map[string]string{"Date": "2024-01-02", "Memo": "b", "Amount": ""}),
		dataRow(3, map[string]string{"Date": "", "Memo": "c", "Amount": "x"}),
		dataRow(4, map[string]string{"Date": "", "Memo": "", "Amount": "2"}),
		dataRow(5, map[string]string{"Date": "2024-01-02", "Memo": "", "Amount": "3"}),
	}

	got := v.ValidateAll(rows)
	if got.Valid != 1 || got.Invalid != 4 {
		t.Errorf("Valid/Invalid = %d/%d, want 1/4", got.Valid, got.Invalid)
	}
	if len(got.Outcomes) != len(rows) {
		t.Fatalf("len(Outcomes) = %d, want %d", len(got.Outcomes), len(rows))
	}

	// date 2, description 2, amount 2: ties keep schema order
	want := []FieldFailure{
		{Field: KeyDate, Label: "Date", Count: 2},
		{Field: KeyDescription, Label: "Description", Count: 2},
		{Field: KeyAmount, Label: "Amount", Count: 2},
	}
	if diff := cmp.Diff(want, got.Failures); diff != "" {
		t.Errorf("Failures mismatch (-want +got):\n%s", diff)
	}

	rows = append(rows, dataRow(6, map[string]string{"Date": "2024-01-02", "Memo": "f", "Amount": ""}))
	got = v.ValidateAll(rows)
	if got.Failures[0].Field != KeyAmount || got.Failures[0].Count != 3 {
		t.Errorf("most frequent failure = %+v, want amount x3", got.Failures[0])
	}
}

func TestValidateAll_NoFailures(t *testing.T) {
	m := AutoMap([]string{"Vendor"}, testSchema(t, "orgs"), MappingShared)
	got := NewRowValidator(m, Locale{}).ValidateAll([]DataRow{dataRow(1, map[string]string{"Vendor": "Acme"})})
	if got.Failures != nil {
		t.Errorf("Failures = %v, want nil", got.Failures)
	}
}
