package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/sheetimport/internal/core"
	"github.com/JonMunkholm/sheetimport/internal/logging"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// handleImport analyzes the upload and starts an asynchronous run.
// Fatal input errors and an incomplete mapping are rejected before any commit.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	req, err := s.readImportRequest(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	info, err := s.service.StartImport(r.Context(), req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	logging.WithFields(r.Context(),
		"run_id", info.RunID,
		"schema", info.SchemaID,
		"rows", info.Rows,
	).Info("import accepted", "file", info.FileName)

	writeJSON(w, http.StatusAccepted, info)
}

// handleImportProgress streams run progress via Server-Sent Events.
// Supports resumption via lastEventId query parameter for reconnection.
func (s *Server) handleImportProgress(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	// The event ID is the progress percentage, allowing clients to skip
	// already-received events after reconnection
	lastEventIDStr := r.URL.Query().Get("lastEventId")
	if h := r.Header.Get("Last-Event-ID"); h != "" {
		lastEventIDStr = h
	}
	lastEventID := -1
	if lastEventIDStr != "" {
		if n, err := strconv.Atoi(lastEventIDStr); err == nil {
			lastEventID = n
		}
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.respondError(w, r, errors.New("streaming not supported"))
		return
	}

	progressCh, err := s.service.SubscribeProgress(runID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case progress, ok := <-progressCh:
			if !ok {
				// Channel closed - run complete, failed or cancelled
				fmt.Fprintf(w, "event: complete\ndata: {}\n\n")
				flusher.Flush()
				return
			}

			// Skip events that were already sent; terminal phases always go out
			pct := progress.Percent()
			terminal := progress.Phase == core.PhaseComplete ||
				progress.Phase == core.PhaseFailed ||
				progress.Phase == core.PhaseCancelled
			if pct <= lastEventID && !terminal {
				continue
			}
			lastEventID = pct

			data, _ := json.Marshal(progress)
			fmt.Fprintf(w, "id: %d\nevent: progress\ndata: %s\n\n", pct, data)
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// handleImportResult returns the report of a finished run. A run still in
// progress answers 202 with its progress unless ?wait=true is given.
func (s *Server) handleImportResult(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	if r.URL.Query().Get("wait") != "true" {
		progress, err := s.service.GetProgress(runID)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		switch progress.Phase {
		case core.PhaseComplete, core.PhaseFailed, core.PhaseCancelled:
		default:
			writeJSON(w, http.StatusAccepted, progress)
			return
		}
	}

	report, err := s.service.GetResult(r.Context(), runID)
	if report == nil {
		if err == nil {
			err = fmt.Errorf("run %s produced no report", runID)
		}
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toResultResponse(report, err))
}

// handleCancelImport asks a run to stop before its next batch.
func (s *Server) handleCancelImport(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	if err := s.service.Cancel(runID); err != nil {
		s.respondError(w, r, err)
		return
	}

	logging.WithFields(r.Context(), "run_id", runID).Info("import cancel requested")
	writeJSON(w, http.StatusOK, map[string]string{"runId": runID, "status": "cancelling"})
}

// handleExportFailedRows exports the failed rows of a run as CSV, or as XLSX
// with ?format=xlsx.
func (s *Server) handleExportFailedRows(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	format, err := core.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	ext, contentType := "csv", "text/csv"
	if format == core.FormatWorkbook {
		ext, contentType = "xlsx", xlsxContentType
	} else {
		format = core.FormatDelimited
	}

	data, err := s.service.ErrorReport(runID, format)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	filename := fmt.Sprintf("failed_rows_%s.%s", runID, ext)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

// handleRollback deletes every record a finished run inserted.
func (s *Server) handleRollback(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	result, err := s.service.Rollback(r.Context(), runID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
