package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RunInfo describes a started import.
type RunInfo struct {
	RunID     string    `json:"runId"`
	SchemaID  string    `json:"schemaId"`
	StoreID   string    `json:"storeId"`
	FileName  string    `json:"fileName"`
	Rows      int       `json:"rows"`
	StartedAt time.Time `json:"startedAt"`
}

// RollbackResult is the outcome of undoing a run.
type RollbackResult struct {
	RunID   string `json:"runId"`
	StoreID string `json:"storeId"`
	Deleted int64  `json:"deleted"`
}

type activeRun struct {
	info   RunInfo
	cancel context.CancelFunc
	done   chan struct{}

	mu         sync.Mutex
	progress   Progress
	report     *ImportReport
	err        error
	rolledBack bool
	listeners  []chan Progress
}

// StartImport analyzes the request, then imports it in the background and
// returns the run id. Fatal input errors and an incomplete mapping are
// returned before any commit. ErrTooManyImports is returned when no import
// slot frees up in time.
func (s *Service) StartImport(ctx context.Context, req Request) (RunInfo, error) {
	a, err := s.pipeline.Analyze(req)
	if err != nil {
		return RunInfo{}, err
	}
	if err := a.Ready(); err != nil {
		return RunInfo{}, err
	}

	release, err := s.limiter.Acquire(ctx)
	if err != nil {
		return RunInfo{}, err
	}

	info := RunInfo{
		RunID:     uuid.NewString(),
		SchemaID:  a.Schema.ID,
		StoreID:   a.Schema.StoreID,
		FileName:  req.Source.Name,
		Rows:      len(a.Detection.Rows),
		StartedAt: time.Now().UTC(),
	}

	runCtx, cancel := context.WithTimeout(context.Background(), s.timeout)
	run := &activeRun{
		info:   info,
		cancel: cancel,
		done:   make(chan struct{}),
		progress: Progress{
			RunID:    info.RunID,
			SchemaID: info.SchemaID,
			Phase:    PhaseStarting,
			Total:    info.Rows,
		},
	}

	s.mu.Lock()
	s.runs[info.RunID] = run
	s.mu.Unlock()

	go func() {
		defer release()
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("panic in import", "run_id", info.RunID, "schema", info.SchemaID, "panic", r)
				s.finish(run, nil, fmt.Errorf("internal error: %v", r))
			}
		}()

		report, err := s.pipeline.Import(runCtx, a, s.importer, info.RunID, run.setProgress)
		s.finish(run, report, err)
	}()

	return info, nil
}

// finish records the outcome, notifies listeners and schedules cleanup.
func (s *Service) finish(run *activeRun, report *ImportReport, err error) {
	run.mu.Lock()
	select {
	case <-run.done:
		run.mu.Unlock()
		return
	default:
	}

	run.report, run.err = report, err
	switch {
	case err == nil:
		run.progress.Phase = PhaseComplete
	case errors.Is(err, ErrRunCancelled):
		run.progress.Phase = PhaseCancelled
		run.progress.Error = err.Error()
	default:
		run.progress.Phase = PhaseFailed
		run.progress.Error = err.Error()
	}
	if report != nil {
		run.progress.Current = report.Attempted
		run.progress.Imported = report.Imported
		run.progress.Skipped = report.Skipped
		run.progress.Failed = report.Failed
	}
	run.broadcast()
	for _, ch := range run.listeners {
		close(ch)
	}
	run.listeners = nil
	close(run.done)
	run.mu.Unlock()

	time.AfterFunc(s.retention, func() {
		s.mu.Lock()
		delete(s.runs, run.info.RunID)
		s.mu.Unlock()
	})
}

// setProgress is the importer's progress callback.
func (r *activeRun) setProgress(p Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()

	select {
	case <-r.done:
		return
	default:
	}
	r.progress = p
	r.broadcast()
}

// broadcast sends the current progress without blocking. Caller holds r.mu.
func (r *activeRun) broadcast() {
	for _, ch := range r.listeners {
		select {
		case ch <- r.progress:
		default:
		}
	}
}

func (s *Service) run(runID string) (*activeRun, error) {
	s.mu.RLock()
	run, ok := s.runs[runID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return run, nil
}

// SubscribeProgress returns a channel of progress snapshots. The current
// snapshot is sent immediately; the channel closes when the run ends.
func (s *Service) SubscribeProgress(runID string) (<-chan Progress, error) {
	run, err := s.run(runID)
	if err != nil {
		return nil, err
	}

	ch := make(chan Progress, 10)
	run.mu.Lock()
	defer run.mu.Unlock()

	ch <- run.progress
	select {
	case <-run.done:
		close(ch)
	default:
		run.listeners = append(run.listeners, ch)
	}
	return ch, nil
}

// GetProgress returns the latest progress snapshot.
func (s *Service) GetProgress(runID string) (Progress, error) {
	run, err := s.run(runID)
	if err != nil {
		return Progress{}, err
	}
	run.mu.Lock()
	defer run.mu.Unlock()
	return run.progress, nil
}

// GetResult waits for the run to end and returns its report. A cancelled run
// returns its partial report together with an error wrapping ErrRunCancelled.
func (s *Service) GetResult(ctx context.Context, runID string) (*ImportReport, error) {
	run, err := s.run(runID)
	if err != nil {
		return nil, err
	}

	select {
	case <-run.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	run.mu.Lock()
	defer run.mu.Unlock()
	return run.report, run.err
}

// Cancel asks a run to stop before its next batch. Committed rows stay.
func (s *Service) Cancel(runID string) error {
	run, err := s.run(runID)
	if err != nil {
		return err
	}
	run.cancel()
	return nil
}

// finishedReport returns the report of a finished run.
func (s *Service) finishedReport(runID string) (*activeRun, *ImportReport, error) {
	run, err := s.run(runID)
	if err != nil {
		return nil, nil, err
	}

	select {
	case <-run.done:
	default:
		return nil, nil, fmt.Errorf("%w: %s", ErrRunInProgress, runID)
	}

	run.mu.Lock()
	report := run.report
	run.mu.Unlock()
	if report == nil {
		return nil, nil, fmt.Errorf("run %s produced no report: %w", runID, run.err)
	}
	return run, report, nil
}

// ErrorReport renders the failed rows of a finished run as CSV or XLSX.
func (s *Service) ErrorReport(runID string, format Format) ([]byte, error) {
	_, report, err := s.finishedReport(runID)
	if err != nil {
		return nil, err
	}
	return ErrorReportBytes(format, report.Headers, report.FailedRows)
}

// Rollback deletes every record a finished run inserted.
func (s *Service) Rollback(ctx context.Context, runID string) (RollbackResult, error) {
	run, report, err := s.finishedReport(runID)
	if err != nil {
		return RollbackResult{RunID: runID}, err
	}
	result := RollbackResult{RunID: runID, StoreID: report.StoreID}

	// Claim the rollback before deleting; a failed attempt gives the claim back.
	run.mu.Lock()
	if run.rolledBack {
		run.mu.Unlock()
		return result, fmt.Errorf("%w: %s", ErrAlreadyRolledBack, runID)
	}
	run.rolledBack = true
	run.mu.Unlock()

	unclaim := func() {
		run.mu.Lock()
		run.rolledBack = false
		run.mu.Unlock()
	}

	release, err := s.locks.Acquire(ctx, report.StoreID)
	if err != nil {
		unclaim()
		return result, err
	}
	defer release()

	deleted, err := s.store.DeleteByRun(ctx, report.StoreID, runID)
	if err != nil {
		unclaim()
		return result, &PersistenceError{Op: "rollback", StoreID: report.StoreID, Err: err}
	}
	result.Deleted = deleted

	s.logger.Info("import rolled back", "run_id", runID, "store", report.StoreID, "deleted", deleted)
	return result, nil
}
