package core

// importer.go commits validated rows to a Store.
//
// Rows are processed in sequential batches, one row at a time within a batch:
// invalid rows fail without touching the store, valid rows are looked up by
// natural key and either skipped as duplicates or inserted. Cancellation is
// honored between batches; store calls inside a batch run on a context that
// ignores cancellation so a batch is never split.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// StoreLocks serializes runs per store id within this process.
type StoreLocks struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

// NewStoreLocks creates an empty lock set.
func NewStoreLocks() *StoreLocks {
	return &StoreLocks{locks: make(map[string]chan struct{})}
}

// Acquire blocks until the store is free or ctx is done. The returned
// function releases the lock.
func (l *StoreLocks) Acquire(ctx context.Context, storeID string) (func(), error) {
	l.mu.Lock()
	ch, ok := l.locks[storeID]
	if !ok {
		ch = make(chan struct{}, 1)
		l.locks[storeID] = ch
	}
	l.mu.Unlock()

	select {
	case ch <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-ch }) }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for store %s: %w", storeID, ctx.Err())
	}
}

// ImportInput is one run's work.
type ImportInput struct {
	RunID     string // Generated when empty
	Schema    *DatasetSchema
	Headers   []string
	Rows      []DataRow
	Outcomes  []ValidationOutcome // Aligned with Rows
	Truncated bool
}

// Importer runs the batch commit loop.
type Importer struct {
	store  Store
	locks  *StoreLocks
	opts   Options
	logger *slog.Logger
}

// NewImporter creates an importer. A nil locks gets a private lock set.
func NewImporter(store Store, locks *StoreLocks, opts Options) *Importer {
	if locks == nil {
		locks = NewStoreLocks()
	}
	return &Importer{
		store:  store,
		locks:  locks,
		opts:   opts.withDefaults(),
		logger: slog.Default(),
	}
}

// WithLogger sets the logger used for run start and finish.
func (im *Importer) WithLogger(l *slog.Logger) *Importer {
	im.logger = l
	return im
}

// Run imports in.Rows. The report is always returned once the store lock is
// held; when ctx is cancelled between batches the report covers the rows
// attempted so far and the error wraps ErrRunCancelled.
func (im *Importer) Run(ctx context.Context, in ImportInput, progress ProgressCallback) (*ImportReport, error) {
	if in.Schema == nil {
		return nil, fmt.Errorf("import: %w", ErrUnknownSchema)
	}
	if len(in.Outcomes) != len(in.Rows) {
		return nil, fmt.Errorf("import: %d rows but %d validation outcomes", len(in.Rows), len(in.Outcomes))
	}
	if in.RunID == "" {
		in.RunID = uuid.NewString()
	}

	release, err := im.locks.Acquire(ctx, in.Schema.StoreID)
	if err != nil {
		return nil, fmt.Errorf("%w before start: %w", ErrRunCancelled, err)
	}
	defer release()

	start := time.Now()
	report := &ImportReport{
		RunID:      in.RunID,
		SchemaID:   in.Schema.ID,
		StoreID:    in.Schema.StoreID,
		Headers:    in.Headers,
		Total:      len(in.Rows),
		Truncated:  in.Truncated,
		FailedRows: []FailedRow{},
		Records:    make([]ImportRecord, 0, len(in.Rows)),
	}

	log := im.logger.With("run_id", in.RunID, "schema", in.Schema.ID, "store", in.Schema.StoreID)
	log.Info("import started", "rows", len(in.Rows), "batch_size", im.opts.BatchSize)

	notify := func(phase Phase) {
		if progress == nil {
			return
		}
		progress(Progress{
			RunID:    in.RunID,
			SchemaID: in.Schema.ID,
			Phase:    phase,
			Current:  report.Attempted,
			Total:    report.Total,
			Imported: report.Imported,
			Skipped:  report.Skipped,
			Failed:   report.Failed,
		})
	}

	storeCtx := context.WithoutCancel(ctx)
	notify(PhaseImporting)

	for batchStart := 0; batchStart < len(in.Rows); batchStart += im.opts.BatchSize {
		if batchStart > 0 && im.opts.BatchPause > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(im.opts.BatchPause):
			}
		}
		if ctx.Err() != nil {
			report.Cancelled = true
			break
		}

		batchEnd := min(batchStart+im.opts.BatchSize, len(in.Rows))
		for i := batchStart; i < batchEnd; i++ {
			rec := im.importRow(storeCtx, in, i)
			report.add(rec, in.Rows[i])
		}

		notify(PhaseImporting)
	}

	report.Duration = time.Since(start)

	if report.Cancelled {
		notify(PhaseCancelled)
		log.Warn("import cancelled",
			"attempted", report.Attempted,
			"imported", report.Imported,
			"skipped", report.Skipped,
			"failed", report.Failed)
		return report, fmt.Errorf("%w after %d of %d rows: %w", ErrRunCancelled, report.Attempted, report.Total, ctx.Err())
	}

	notify(PhaseComplete)
	log.Info("import finished",
		"imported", report.Imported,
		"skipped", report.Skipped,
		"failed", report.Failed,
		"duration", report.Duration)
	return report, nil
}

// importRow processes one row and returns its outcome.
func (im *Importer) importRow(ctx context.Context, in ImportInput, i int) ImportRecord {
	row, outcome := in.Rows[i], in.Outcomes[i]
	rec := ImportRecord{RowIndex: row.Index}

	if !outcome.Valid {
		rec.Outcome, rec.Reason = OutcomeFailed, outcome.Reason()
		return rec
	}

	record, err := BuildRecord(in.Schema.Kind, outcome.Values)
	if err != nil {
		rec.Outcome, rec.Reason = OutcomeFailed, err.Error()
		return rec
	}
	key := record.NaturalKey().String()

	_, found, err := im.store.FindOne(ctx, in.Schema.StoreID, key)
	if err != nil {
		return im.storeFailure(rec, &PersistenceError{Op: "find", StoreID: in.Schema.StoreID, Err: err})
	}
	if found {
		rec.Outcome, rec.Reason = OutcomeSkipped, ReasonDuplicate
		return rec
	}

	id, err := im.store.Insert(ctx, in.Schema.StoreID, StoredRecord{
		RunID:     in.RunID,
		Kind:      record.Kind(),
		Key:       key,
		Fields:    record.Fields(),
		CreatedAt: time.Now().UTC(),
	})
	switch {
	case errors.Is(err, ErrDuplicate):
		rec.Outcome, rec.Reason = OutcomeSkipped, ReasonDuplicate
	case err != nil:
		return im.storeFailure(rec, &PersistenceError{Op: "insert", StoreID: in.Schema.StoreID, Err: err})
	default:
		rec.Outcome, rec.ID = OutcomeImported, id
	}
	return rec
}

func (im *Importer) storeFailure(rec ImportRecord, err *PersistenceError) ImportRecord {
	im.logger.Warn("row not stored", "row_index", rec.RowIndex, "error", err)
	rec.Outcome, rec.Reason = OutcomeFailed, err.Error()
	return rec
}

// add records one outcome and keeps the tallies consistent.
func (r *ImportReport) add(rec ImportRecord, row DataRow) {
	r.Records = append(r.Records, rec)
	r.Attempted++

	switch rec.Outcome {
	case OutcomeImported:
		r.Imported++
	case OutcomeSkipped:
		r.Skipped++
	default:
		r.Failed++
		values := make([]string, len(row.Cells))
		copy(values, row.Cells)
		r.FailedRows = append(r.FailedRows, FailedRow{
			RowIndex: rec.RowIndex,
			Reason:   rec.Reason,
			Values:   values,
		})
	}
}
