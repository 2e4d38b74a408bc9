// Package store implements core.Store over memory, a JSON file and PostgreSQL.
//
// Every implementation enforces one record per (store id, key) and reports a
// second insert with core.ErrDuplicate.
package store

import (
	"context"
	"maps"
	"sort"
	"time"

	"github.com/JonMunkholm/sheetimport/internal/core"
	"github.com/google/uuid"
)

// Backend is a core.Store that can also list a store's records.
type Backend interface {
	core.Store
	List(ctx context.Context, storeID string) ([]core.StoredRecord, error)
}

var (
	_ Backend = (*Memory)(nil)
	_ Backend = (*JSONFile)(nil)
	_ Backend = (*Postgres)(nil)
)

// prepare assigns an id and creation time when missing.
func prepare(rec core.StoredRecord) core.StoredRecord {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	return rec
}

func cloneRecord(rec core.StoredRecord) core.StoredRecord {
	rec.Fields = maps.Clone(rec.Fields)
	return rec
}

func sortRecords(recs []core.StoredRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		if !recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].CreatedAt.Before(recs[j].CreatedAt)
		}
		return recs[i].Key < recs[j].Key
	})
}
