package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/JonMunkholm/sheetimport/internal/core"
)

// Memory is a process-local store, used by tests and dry runs.
type Memory struct {
	mu     sync.RWMutex
	stores map[string]map[string]core.StoredRecord // store id -> key -> record
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{stores: make(map[string]map[string]core.StoredRecord)}
}

// FindOne implements core.Store.
func (m *Memory) FindOne(_ context.Context, storeID, key string) (core.StoredRecord, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.stores[storeID][key]
	return cloneRecord(rec), ok, nil
}

// Insert implements core.Store.
func (m *Memory) Insert(_ context.Context, storeID string, rec core.StoredRecord) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	records, ok := m.stores[storeID]
	if !ok {
		records = make(map[string]core.StoredRecord)
		m.stores[storeID] = records
	}
	if _, exists := records[rec.Key]; exists {
		return "", fmt.Errorf("%s %q: %w", storeID, rec.Key, core.ErrDuplicate)
	}

	rec = prepare(rec)
	records[rec.Key] = cloneRecord(rec)
	return rec.ID, nil
}

// DeleteByRun implements core.Store.
func (m *Memory) DeleteByRun(_ context.Context, storeID, runID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for key, rec := range m.stores[storeID] {
		if rec.RunID == runID {
			delete(m.stores[storeID], key)
			n++
		}
	}
	return n, nil
}

// List returns the records of one store ordered by creation time.
func (m *Memory) List(_ context.Context, storeID string) ([]core.StoredRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]core.StoredRecord, 0, len(m.stores[storeID]))
	for _, rec := range m.stores[storeID] {
		out = append(out, cloneRecord(rec))
	}
	sortRecords(out)
	return out, nil
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }
