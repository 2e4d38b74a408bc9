package core

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
)

// testSchemas mirrors the shape of the built-in datasets with small keyword sets.
func testSchemas() []DatasetSchema {
	return []DatasetSchema{
		{
			ID:      "people",
			Kind:    KindEmployee,
			StoreID: "people",
			RequiredFields: []FieldSpec{
				{Key: KeyName, Label: "Name", Type: FieldText, MatchPatterns: []string{"name", "employee"}},
				{Key: KeyWage, Label: "Wage", Type: FieldAmount, MatchPatterns: []string{"wage", "salary"}},
			},
			OptionalFields: []FieldSpec{
				{Key: KeyEmail, Label: "Email", Type: FieldText, MatchPatterns: []string{"email"}},
				{Key: KeyStartDate, Label: "Start Date", Type: FieldDate, MatchPatterns: []string{"start", "hire"}},
			},
			KeywordPatterns: []string{"employee", "wage", "name"},
		},
		{
			ID:      "orgs",
			Kind:    KindVendor,
			StoreID: "orgs",
			RequiredFields: []FieldSpec{
				{Key: KeyName, Label: "Name", Type: FieldText, MatchPatterns: []string{"vendor", "supplier", "name"}},
			},
			OptionalFields: []FieldSpec{
				{Key: KeyEmail, Label: "Email", Type: FieldText, MatchPatterns: []string{"email"}},
			},
			KeywordPatterns: []string{"vendor", "supplier"},
		},
		{
			ID:      "ledger",
			Kind:    KindTransaction,
			StoreID: "ledger",
			RequiredFields: []FieldSpec{
				{Key: KeyDate, Label: "Date", Type: FieldDate, MatchPatterns: []string{"date"}},
				{Key: KeyDescription, Label: "Description", Type: FieldText, MatchPatterns: []string{"description", "memo"}},
				{Key: KeyAmount, Label: "Amount", Type: FieldAmount, MatchPatterns: []string{"amount"}},
			},
			KeywordPatterns: []string{"amount", "date", "description", "memo"},
		},
	}
}

func testRegistry(t testing.TB) *Registry {
	t.Helper()
	reg, err := NewRegistry(testSchemas()...)
	if err != nil {
		t.Fatalf("NewRegistry() error: %v", err)
	}
	return reg
}

func testSchema(t testing.TB, id string) *DatasetSchema {
	t.Helper()
	s, ok := testRegistry(t).Get(id)
	if !ok {
		t.Fatalf("schema %s not registered", id)
	}
	return s
}

// csvSource builds a delimited Source from lines.
func csvSource(lines ...string) Source {
	return Source{Name: "test.csv", Data: []byte(strings.Join(lines, "\n") + "\n")}
}

// fakeStore is an in-memory Store with failure hooks.
type fakeStore struct {
	mu      sync.Mutex
	records map[string]map[string]StoredRecord
	inserts int

	findErr    error
	deleteErr  error
	insertErr  map[string]error // key -> error returned by Insert
	hideOnFind bool             // FindOne never reports a match
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		records:   make(map[string]map[string]StoredRecord),
		insertErr: make(map[string]error),
	}
}

func (s *fakeStore) FindOne(_ context.Context, storeID, key string) (StoredRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return StoredRecord{}, false, s.findErr
	}
	if s.hideOnFind {
		return StoredRecord{}, false, nil
	}
	rec, ok := s.records[storeID][key]
	return rec, ok, nil
}

func (s *fakeStore) Insert(_ context.Context, storeID string, rec StoredRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.insertErr[rec.Key]; err != nil {
		return "", err
	}
	if s.records[storeID] == nil {
		s.records[storeID] = make(map[string]StoredRecord)
	}
	if _, ok := s.records[storeID][rec.Key]; ok {
		return "", ErrDuplicate
	}
	s.inserts++
	rec.ID = storeID + "-" + rec.Key
	s.records[storeID][rec.Key] = rec
	return rec.ID, nil
}

func (s *fakeStore) DeleteByRun(_ context.Context, storeID, runID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return 0, s.deleteErr
	}
	var n int64
	for key, rec := range s.records[storeID] {
		if rec.RunID == runID {
			delete(s.records[storeID], key)
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) setDeleteErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteErr = err
}

func (s *fakeStore) count(storeID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records[storeID])
}

func (s *fakeStore) get(storeID, key string) (StoredRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[storeID][key]
	return rec, ok
}

var errStoreDown = errors.New("connection refused")

// checkConservation asserts Imported+Skipped+Failed == Attempted.
func checkConservation(t *testing.T, r *ImportReport) {
	t.Helper()
	if r.Imported+r.Skipped+r.Failed != r.Attempted {
		t.Errorf("imported %d + skipped %d + failed %d != attempted %d",
			r.Imported, r.Skipped, r.Failed, r.Attempted)
	}
	if len(r.Records) != r.Attempted {
		t.Errorf("len(Records) = %d, want %d", len(r.Records), r.Attempted)
	}
	if len(r.FailedRows) != r.Failed {
		t.Errorf("len(FailedRows) = %d, want %d", len(r.FailedRows), r.Failed)
	}
}
