package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// vendorInput validates the given names against the orgs schema.
func vendorInput(t *testing.T, names ...string) ImportInput {
	t.Helper()
	schema := testSchema(t, "orgs")
	headers := []string{"Vendor"}

	rows := make([]DataRow, len(names))
	for i, n := range names {
		rows[i] = DataRow{
			Index:  i + 1,
			Values: map[string]string{"Vendor": n},
			Cells:  []string{n},
		}
	}
	v := NewRowValidator(AutoMap(headers, schema, MappingShared), Locale{})
	return ImportInput{
		RunID:    "run-1",
		Schema:   schema,
		Headers:  headers,
		Rows:     rows,
		Outcomes: v.ValidateAll(rows).Outcomes,
	}
}

func fastOptions(batch int) Options {
	opts := DefaultOptions()
	opts.BatchSize = batch
	opts.BatchPause = 0
	return opts
}

func TestImporter_Dedup(t *testing.T) {
	store := newFakeStore()
	im := NewImporter(store, nil, fastOptions(50))

	report, err := im.Run(context.Background(), vendorInput(t, "Acme Corp", "acme  corp"), nil)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if report.Imported != 1 || report.Skipped != 1 || report.Failed != 0 {
		t.Errorf("report = %d/%d/%d, want 1/1/0", report.Imported, report.Skipped, report.Failed)
	}
	checkConservation(t, report)

	want := []ImportRecord{
		{RowIndex: 1, Outcome: OutcomeImported, ID: "orgs-name=acme corp"},
		{RowIndex: 2, Outcome: OutcomeSkipped, Reason: ReasonDuplicate},
	}
	if diff := cmp.Diff(want, report.Records); diff != "" {
		t.Errorf("Records mismatch (-want +got):\n%s", diff)
	}

	rec, ok := store.get("orgs", "name=acme corp")
	if !ok {
		t.Fatal("record not stored")
	}
	if rec.RunID != "run-1" || rec.Kind != KindVendor || rec.Fields[KeyName] != "Acme Corp" {
		t.Errorf("stored record = %+v", rec)
	}
}

func TestImporter_Idempotent(t *testing.T) {
	store := newFakeStore()
	im := NewImporter(store, nil, fastOptions(2))
	in := vendorInput(t, "Acme", "Globex", "Initech")

	first, err := im.Run(context.Background(), in, nil)
	if err != nil {
		t.Fatalf("first Run() error: %v", err)
	}
	if first.Imported != 3 {
		t.Errorf("first run imported %d, want 3", first.Imported)
	}

	in.RunID = "run-2"
	second, err := im.Run(context.Background(), in, nil)
	if err != nil {
		t.Fatalf("second Run() error: %v", err)
	}
	if second.Imported != 0 || second.Skipped != 3 {
		t.Errorf("second run = %d imported, %d skipped; want 0, 3", second.Imported, second.Skipped)
	}
	if store.count("orgs") != 3 {
		t.Errorf("store holds %d records, want 3", store.count("orgs"))
	}
}

func TestImporter_InvalidRowsNeverTouchStore(t *testing.T) {
	store := newFakeStore()
	im := NewImporter(store, nil, fastOptions(50))

	report, err := im.Run(context.Background(), vendorInput(t, "Acme", "", "Globex"), nil)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	checkConservation(t, report)

	if store.inserts != 2 {
		t.Errorf("inserts = %d, want 2", store.inserts)
	}
	want := []FailedRow{{RowIndex: 2, Reason: "missing or unparseable name", Values: []string{""}}}
	if diff := cmp.Diff(want, report.FailedRows); diff != "" {
		t.Errorf("FailedRows mismatch (-want +got):\n%s", diff)
	}
}

func TestImporter_InsertDuplicateIsSkipped(t *testing.T) {
	store := newFakeStore()
	store.hideOnFind = true // lookup misses, the uniqueness constraint catches it
	im := NewImporter(store, nil, fastOptions(50))

	report, err := im.Run(context.Background(), vendorInput(t, "Acme", "ACME"), nil)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if report.Imported != 1 || report.Skipped != 1 {
		t.Errorf("report = %d imported, %d skipped; want 1, 1", report.Imported, report.Skipped)
	}
	if report.Records[1].Reason != ReasonDuplicate {
		t.Errorf("Reason = %q, want %q", report.Records[1].Reason, ReasonDuplicate)
	}
}

func TestImporter_StoreErrors(t *testing.T) {
	t.Run("insert failure", func(t *testing.T) {
		store := newFakeStore()
		store.insertErr["name=globex"] = errStoreDown
		im := NewImporter(store, nil, fastOptions(50))

		report, err := im.Run(context.Background(), vendorInput(t, "Acme", "Globex", "Initech"), nil)
		if err != nil {
			t.Fatalf("Run() error: %v", err)
		}
		checkConservation(t, report)
		if report.Imported != 2 || report.Failed != 1 {
			t.Errorf("report = %d imported, %d failed; want 2, 1", report.Imported, report.Failed)
		}
		fr := report.FailedRows[0]
		if fr.RowIndex != 2 || !strings.Contains(fr.Reason, "connection refused") {
			t.Errorf("FailedRows[0] = %+v", fr)
		}
		if diff := cmp.Diff([]string{"Globex"}, fr.Values); diff != "" {
			t.Errorf("Values mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("lookup failure", func(t *testing.T) {
		store := newFakeStore()
		store.findErr = errStoreDown
		im := NewImporter(store, nil, fastOptions(50))

		report, err := im.Run(context.Background(), vendorInput(t, "Acme"), nil)
		if err != nil {
			t.Fatalf("Run() error: %v", err)
		}
		if report.Failed != 1 || store.inserts != 0 {
			t.Errorf("failed %d, inserts %d; want 1, 0", report.Failed, store.inserts)
		}
	})
}

func TestImporter_Progress(t *testing.T) {
	store := newFakeStore()
	im := NewImporter(store, nil, fastOptions(2))

	var updates []Progress
	report, err := im.Run(context.Background(), vendorInput(t, "a", "b", "c", "d", "e"), func(p Progress) {
		updates = append(updates, p)
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	var current []int
	for _, p := range updates {
		current = append(current, p.Current)
		if p.Total != 5 || p.RunID != "run-1" || p.SchemaID != "orgs" {
			t.Errorf("unexpected progress %+v", p)
		}
	}
	// initial, three batches, completion
	if diff := cmp.Diff([]int{0, 2, 4, 5, 5}, current); diff != "" {
		t.Errorf("progress mismatch (-want +got):\n%s", diff)
	}
	if last := updates[len(updates)-1]; last.Phase != PhaseComplete || last.Imported != report.Imported {
		t.Errorf("last update = %+v", last)
	}
}

func TestImporter_CancelBetweenBatches(t *testing.T) {
	store := newFakeStore()
	im := NewImporter(store, nil, fastOptions(2))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	names := make([]string, 10)
	for i := range names {
		names[i] = fmt.Sprintf("vendor %d", i)
	}

	report, err := im.Run(ctx, vendorInput(t, names...), func(p Progress) {
		if p.Current == 4 {
			cancel()
		}
	})

	if !errors.Is(err, ErrRunCancelled) || !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want ErrRunCancelled wrapping context.Canceled", err)
	}
	if report == nil {
		t.Fatal("cancelled run should still return its report")
	}
	if !report.Cancelled {
		t.Error("Cancelled = false")
	}
	if report.Attempted != 4 || report.Total != 10 {
		t.Errorf("attempted %d of %d, want 4 of 10", report.Attempted, report.Total)
	}
	checkConservation(t, report)

	// committed rows stay committed
	if store.count("orgs") != 4 {
		t.Errorf("store holds %d records, want 4", store.count("orgs"))
	}
}

func TestImporter_CancelledBeforeStart(t *testing.T) {
	im := NewImporter(newFakeStore(), nil, fastOptions(2))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := im.Run(ctx, vendorInput(t, "a"), nil)
	if !errors.Is(err, ErrRunCancelled) {
		t.Fatalf("Run() error = %v, want ErrRunCancelled", err)
	}
}

func TestImporter_InputErrors(t *testing.T) {
	im := NewImporter(newFakeStore(), nil, fastOptions(2))

	if _, err := im.Run(context.Background(), ImportInput{}, nil); !errors.Is(err, ErrUnknownSchema) {
		t.Errorf("missing schema error = %v, want ErrUnknownSchema", err)
	}

	in := vendorInput(t, "a", "b")
	in.Outcomes = in.Outcomes[:1]
	if _, err := im.Run(context.Background(), in, nil); err == nil {
		t.Error("misaligned outcomes should fail")
	}
}

func TestImporter_GeneratesRunID(t *testing.T) {
	im := NewImporter(newFakeStore(), nil, fastOptions(2))
	in := vendorInput(t, "a")
	in.RunID = ""

	report, err := im.Run(context.Background(), in, nil)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if report.RunID == "" {
		t.Error("RunID should be generated")
	}
}

func TestImporter_SerializesRunsPerStore(t *testing.T) {
	store := newFakeStore()
	locks := NewStoreLocks()

	opts := fastOptions(1)
	opts.BatchPause = time.Millisecond

	var wg sync.WaitGroup
	reports := make([]*ImportReport, 4)
	for i := range reports {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			in := vendorInput(t, "Acme", "Globex", "Initech")
			in.RunID = fmt.Sprintf("run-%d", i)
			r, err := NewImporter(store, locks, opts).Run(context.Background(), in, nil)
			if err != nil {
				t.Errorf("Run() error: %v", err)
				return
			}
			reports[i] = r
		}(i)
	}
	wg.Wait()

	imported := 0
	for _, r := range reports {
		if r != nil {
			imported += r.Imported
		}
	}
	if imported != 3 {
		t.Errorf("imported %d across runs, want 3", imported)
	}
	if store.count("orgs") != 3 {
		t.Errorf("store holds %d records, want 3", store.count("orgs"))
	}
}

func TestStoreLocks(t *testing.T) {
	locks := NewStoreLocks()

	release, err := locks.Acquire(context.Background(), "vendors")
	if err != nil {
		t.Fatalf("Acquire() error: %v", err)
	}

	// another store is independent
	other, err := locks.Acquire(context.Background(), "customers")
	if err != nil {
		t.Fatalf("Acquire(other) error: %v", err)
	}
	other()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := locks.Acquire(ctx, "vendors"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Acquire() on a held store error = %v, want DeadlineExceeded", err)
	}

	release()
	release() // idempotent

	again, err := locks.Acquire(context.Background(), "vendors")
	if err != nil {
		t.Fatalf("Acquire() after release error: %v", err)
	}
	again()
}
