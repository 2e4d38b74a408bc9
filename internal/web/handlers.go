package web

import (
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/sheetimport/internal/core"
	"github.com/JonMunkholm/sheetimport/internal/logging"
)

// handleHealth reports liveness and import slot usage.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"imports": s.service.LimiterStatus(),
	})
}

// handleListSchemas returns the registry in classification order.
func (s *Server) handleListSchemas(w http.ResponseWriter, r *http.Request) {
	schemas := s.service.Registry().All()
	resp := make([]SchemaResponse, 0, len(schemas))
	for _, sc := range schemas {
		resp = append(resp, toSchemaResponse(sc))
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleAnalyze runs every stage up to validation and reports what an
// import would do. An incomplete mapping is not an error here.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	req, err := s.readImportRequest(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	a, err := s.service.Analyze(req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	logging.FromContext(r.Context()).Debug("sheet analyzed",
		"file", req.Source.Name,
		"schema", a.Schema.ID,
		"rows", len(a.Detection.Rows),
		"missing", a.Missing)

	writeJSON(w, http.StatusOK, toAnalysisResponse(req.Source.Name, a))
}

// RecordsResponse lists stored records.
type RecordsResponse struct {
	StoreID string              `json:"storeId"`
	Count   int                 `json:"count"`
	Records []core.StoredRecord `json:"records"`
}

// handleListRecords lists the records of one store, optionally restricted to
// a run (?run=) and capped (?limit=).
func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	storeID := chi.URLParam(r, "storeID")
	if !slices.Contains(s.service.Registry().StoreIDs(), storeID) {
		s.respondError(w, r, errUnknownStore)
		return
	}
	if s.records == nil {
		s.respondError(w, r, errListingBlocked)
		return
	}

	records, err := s.records.List(r.Context(), storeID)
	if err != nil {
		s.respondError(w, r, &core.PersistenceError{Op: "list", StoreID: storeID, Err: err})
		return
	}

	if runID := r.URL.Query().Get("run"); runID != "" {
		records = slices.DeleteFunc(records, func(rec core.StoredRecord) bool {
			return rec.RunID != runID
		})
	}
	if limit := parseIntParam(r, "limit", 0); limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	if records == nil {
		records = []core.StoredRecord{}
	}

	writeJSON(w, http.StatusOK, RecordsResponse{
		StoreID: storeID,
		Count:   len(records),
		Records: records,
	})
}
