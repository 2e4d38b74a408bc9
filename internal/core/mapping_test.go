package core

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestAutoMap(t *testing.T) {
	tests := []struct {
		name    string
		schema  string
		headers []string
		policy  MappingPolicy
		want    map[string]string
		missing []string
	}{
		{
			name:    "all fields",
			schema:  "people",
			headers: []string{"Employee Name", "Hourly Wage", "Email", "Start Date"},
			want: map[string]string{
				KeyName:      "Employee Name",
				KeyWage:      "Hourly Wage",
				KeyEmail:     "Email",
				KeyStartDate: "Start Date",
			},
		},
		{
			name:    "first matching header wins",
			schema:  "people",
			headers: []string{"Manager Name", "Employee Name", "Salary"},
			want: map[string]string{
				KeyName: "Manager Name",
				KeyWage: "Salary",
			},
		},
		{
			name:    "missing required field",
			schema:  "ledger",
			headers: []string{"Date", "Memo"},
			want: map[string]string{
				KeyDate:        "Date",
				KeyDescription: "Memo",
			},
			missing: []string{KeyAmount},
		},
		{
			name:    "shared header serves several fields",
			schema:  "people",
			headers: []string{"Name and Wage"},
			policy:  MappingShared,
			want: map[string]string{
				KeyName: "Name and Wage",
				KeyWage: "Name and Wage",
			},
		},
		{
			name:    "exclusive header serves one field",
			schema:  "people",
			headers: []string{"Name and Wage"},
			policy:  MappingExclusive,
			want: map[string]string{
				KeyName: "Name and Wage",
			},
			missing: []string{KeyWage},
		},
		{
			name:    "exclusive falls through to next header",
			schema:  "people",
			headers: []string{"Name and Wage", "Salary"},
			policy:  MappingExclusive,
			want: map[string]string{
				KeyName: "Name and Wage",
				KeyWage: "Salary",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := AutoMap(tt.headers, testSchema(t, tt.schema), tt.policy)
			if diff := cmp.Diff(tt.want, m.Entries()); diff != "" {
				t.Errorf("Entries() mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.missing, m.Missing()); diff != "" {
				t.Errorf("Missing() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAutoMap_SkipsBookkeepingColumns(t *testing.T) {
	schema := &DatasetSchema{
		ID:      "notes",
		Kind:    KindVendor,
		StoreID: "notes",
		RequiredFields: []FieldSpec{
			{Key: KeyName, MatchPatterns: []string{"name"}},
		},
		OptionalFields: []FieldSpec{
			{Key: "note", MatchPatterns: []string{"reason", "index"}},
		},
	}

	m := AutoMap([]string{"row_index", "reason", "Name"}, schema, MappingShared)
	if _, ok := m.Header("note"); ok {
		t.Error("bookkeeping column was auto-mapped")
	}

	m = AutoMap([]string{"row_index", "reason", "Name", "Reason Code"}, schema, MappingShared)
	if h, _ := m.Header("note"); h != "Reason Code" {
		t.Errorf("Header(note) = %q, want Reason Code", h)
	}

	// manual mapping may still use them
	if err := m.Set("note", "reason"); err != nil {
		t.Errorf("Set() error: %v", err)
	}
}

func TestColumnMapping_Set(t *testing.T) {
	headers := []string{"Name", "Pay", "Contact"}

	t.Run("assigns a header", func(t *testing.T) {
		m := AutoMap(headers, testSchema(t, "people"), MappingShared)
		if err := m.Set(KeyWage, "Pay"); err != nil {
			t.Fatalf("Set() error: %v", err)
		}
		if h, _ := m.Header(KeyWage); h != "Pay" {
			t.Errorf("Header(wage) = %q, want Pay", h)
		}
		if err := m.Complete(); err != nil {
			t.Errorf("Complete() error: %v", err)
		}
	})

	t.Run("empty header unmaps", func(t *testing.T) {
		m := AutoMap(headers, testSchema(t, "people"), MappingShared)
		if err := m.Set(KeyName, ""); err != nil {
			t.Fatalf("Set() error: %v", err)
		}
		if _, ok := m.Header(KeyName); ok {
			t.Error("name still mapped")
		}
	})

	errorTests := []struct {
		name   string
		policy MappingPolicy
		key    string
		header string
	}{
		{name: "unknown field", key: "shoe_size", header: "Name"},
		{name: "unknown header", key: KeyWage, header: "Wages"},
		{name: "exclusive conflict", policy: MappingExclusive, key: KeyWage, header: "Name"},
	}
	for _, tt := range errorTests {
		t.Run(tt.name, func(t *testing.T) {
			m := AutoMap(headers, testSchema(t, "people"), tt.policy)
			err := m.Set(tt.key, tt.header)
			var moe *MappingOverrideError
			if !errors.As(err, &moe) {
				t.Fatalf("Set() error = %v, want MappingOverrideError", err)
			}
			if moe.Field != tt.key {
				t.Errorf("Field = %q, want %q", moe.Field, tt.key)
			}
		})
	}

	t.Run("shared allows reuse", func(t *testing.T) {
		m := AutoMap(headers, testSchema(t, "people"), MappingShared)
		if err := m.Set(KeyWage, "Name"); err != nil {
			t.Errorf("Set() error: %v", err)
		}
	})
}

func TestColumnMapping_Apply(t *testing.T) {
	m := AutoMap([]string{"Who", "Pay", "Mail"}, testSchema(t, "people"), MappingShared)

	err := m.Apply(map[string]string{KeyName: "Who", KeyWage: "Pay", KeyEmail: "Mail"})
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}
	want := map[string]string{KeyName: "Who", KeyWage: "Pay", KeyEmail: "Mail"}
	if diff := cmp.Diff(want, m.Entries()); diff != "" {
		t.Errorf("Entries() mismatch (-want +got):\n%s", diff)
	}

	if err := m.Apply(map[string]string{"bogus": "Who"}); err == nil {
		t.Error("Apply() with unknown field should fail")
	}
}

func TestColumnMapping_ApplyFailureLeavesMappingUnchanged(t *testing.T) {
	tests := []struct {
		name      string
		policy    MappingPolicy
		overrides map[string]string
	}{
		{
			name:      "unknown field",
			policy:    MappingShared,
			overrides: map[string]string{KeyName: "Mail", KeyWage: "", "bogus": "Who"},
		},
		{
			name:      "unknown header",
			policy:    MappingShared,
			overrides: map[string]string{KeyName: "Mail", KeyWage: "Salary"},
		},
		{
			name:      "exclusive conflict",
			policy:    MappingExclusive,
			overrides: map[string]string{KeyName: "", KeyEmail: "Pay"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := AutoMap([]string{"Name", "Pay", "Mail"}, testSchema(t, "people"), tt.policy)
			if err := m.Set(KeyWage, "Pay"); err != nil {
				t.Fatalf("Set() error: %v", err)
			}
			before := m.Entries()

			var oerr *MappingOverrideError
			if err := m.Apply(tt.overrides); !errors.As(err, &oerr) {
				t.Fatalf("Apply() error = %v, want MappingOverrideError", err)
			}
			if diff := cmp.Diff(before, m.Entries()); diff != "" {
				t.Errorf("mapping changed by failed Apply (-before +after):\n%s", diff)
			}
		})
	}
}

func TestColumnMapping_Complete(t *testing.T) {
	m := AutoMap([]string{"Memo"}, testSchema(t, "ledger"), MappingShared)

	err := m.Complete()
	var mie *MappingIncompleteError
	if !errors.As(err, &mie) {
		t.Fatalf("Complete() error = %v, want MappingIncompleteError", err)
	}
	if mie.SchemaID != "ledger" {
		t.Errorf("SchemaID = %q, want ledger", mie.SchemaID)
	}
	if diff := cmp.Diff([]string{KeyDate, KeyAmount}, mie.Missing); diff != "" {
		t.Errorf("Missing mismatch (-want +got):\n%s", diff)
	}
}

func TestColumnMapping_CloneIsIndependent(t *testing.T) {
	m := AutoMap([]string{"Name", "Wage"}, testSchema(t, "people"), MappingShared)
	frozen := m.Clone()

	if err := m.Set(KeyWage, ""); err != nil {
		t.Fatal(err)
	}
	if _, ok := frozen.Header(KeyWage); !ok {
		t.Error("clone changed when the original was edited")
	}
}

func TestMappingPolicy_String(t *testing.T) {
	if MappingShared.String() != "shared" || MappingExclusive.String() != "exclusive" {
		t.Errorf("String() = %q, %q", MappingShared, MappingExclusive)
	}
}
