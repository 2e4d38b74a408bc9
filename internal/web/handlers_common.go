// Package web provides HTTP handlers for the import API.
// This file contains shared request parsing and response shapes.
package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/sheetimport/internal/core"
)

// formOverhead is the allowance for multipart framing and form fields on top
// of the file itself.
const formOverhead = 1 << 20

// Bounds on what an analysis response echoes back.
const (
	maxPreviewFailures = 20
	maxPreviewRows     = 5
)

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// clientIP returns the host part of RemoteAddr.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// readImportRequest builds a pipeline request from a multipart form.
//
// Form fields:
//
//	file     the sheet (required)
//	format   auto, csv or xlsx (optional)
//	sheet    workbook sheet name (optional)
//	schema   schema id overriding classification (optional)
//	mapping  JSON object of field key -> header overrides (optional)
func (s *Server) readImportRequest(w http.ResponseWriter, r *http.Request) (core.Request, error) {
	maxSize := s.cfg.Import.MaxFileSize
	if maxSize <= 0 {
		maxSize = core.DefaultMaxFileSize
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+formOverhead)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return core.Request{}, &core.ParseError{Reason: fmt.Sprintf("file too large: exceeds %d bytes", maxSize)}
		}
		if errors.Is(err, http.ErrNotMultipart) || errors.Is(err, http.ErrMissingBoundary) {
			return core.Request{}, &core.ParseError{Reason: "no file provided", Err: err}
		}
		return core.Request{}, &core.ParseError{Reason: "invalid form", Err: err}
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return core.Request{}, &core.ParseError{Reason: "no file provided", Err: err}
	}
	defer file.Close()

	src, err := core.ReadSource(file, header.Filename, maxSize)
	if err != nil {
		return core.Request{}, err
	}

	if src.Format, err = core.ParseFormat(r.FormValue("format")); err != nil {
		return core.Request{}, err
	}
	src.Sheet = r.FormValue("sheet")

	req := core.Request{
		Source:   src,
		SchemaID: r.FormValue("schema"),
	}

	if raw := r.FormValue("mapping"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.Mapping); err != nil {
			return core.Request{}, &core.MappingOverrideError{Field: "mapping", Reason: "not a JSON object of field to header"}
		}
	}

	return req, nil
}

// FieldResponse describes one schema field.
type FieldResponse struct {
	Key      string   `json:"key"`
	Label    string   `json:"label"`
	Type     string   `json:"type"`
	Required bool     `json:"required"`
	Patterns []string `json:"patterns"`
}

// SchemaResponse describes one dataset schema.
type SchemaResponse struct {
	ID       string          `json:"id"`
	Kind     core.Kind       `json:"kind"`
	Label    string          `json:"label"`
	StoreID  string          `json:"storeId"`
	Fields   []FieldResponse `json:"fields"`
	Keywords []string        `json:"keywords"`
}

func toSchemaResponse(s *core.DatasetSchema) SchemaResponse {
	resp := SchemaResponse{
		ID:       s.ID,
		Kind:     s.Kind,
		Label:    s.Label,
		StoreID:  s.StoreID,
		Keywords: s.KeywordPatterns,
	}
	for _, f := range s.Fields() {
		resp.Fields = append(resp.Fields, FieldResponse{
			Key:      f.Key,
			Label:    f.Label,
			Type:     f.Type.String(),
			Required: f.Required,
			Patterns: f.MatchPatterns,
		})
	}
	return resp
}

// RowIssue is one invalid row in an analysis.
type RowIssue struct {
	RowIndex int    `json:"rowIndex"`
	Reason   string `json:"reason"`
}

// ValidationSummary counts valid and invalid rows.
type ValidationSummary struct {
	Valid    int                 `json:"valid"`
	Invalid  int                 `json:"invalid"`
	Failures []core.FieldFailure `json:"failures"`
	Issues   []RowIssue          `json:"issues"` // First invalid rows
}

// AnalysisResponse is what an import would do, before any commit.
type AnalysisResponse struct {
	FileName    string             `json:"fileName"`
	Sheets      []string           `json:"sheets"`
	Sheet       string             `json:"sheet"`
	HeaderIndex int                `json:"headerIndex"`
	Headers     []string           `json:"headers"`
	Rows        int                `json:"rows"`
	BlankRows   int                `json:"blankRows"`
	Truncated   bool               `json:"truncated"`
	SchemaID    string             `json:"schemaId"`
	StoreID     string             `json:"storeId"`
	Fallback    bool               `json:"fallback"`
	Scores      []core.SchemaScore `json:"scores"`
	Mapping     map[string]string  `json:"mapping"`
	Missing     []string           `json:"missing"`
	Ready       bool               `json:"ready"`
	Sample      [][]string         `json:"sample"`
	Validation  *ValidationSummary `json:"validation,omitempty"`
}

func toAnalysisResponse(name string, a *core.Analysis) AnalysisResponse {
	resp := AnalysisResponse{
		FileName:    name,
		Sheets:      a.Sheets,
		Sheet:       a.Table.Sheet,
		HeaderIndex: a.Detection.HeaderIndex,
		Headers:     a.Detection.Headers,
		Rows:        len(a.Detection.Rows),
		BlankRows:   a.Detection.BlankRows,
		Truncated:   a.Detection.Truncated,
		SchemaID:    a.Schema.ID,
		StoreID:     a.Schema.StoreID,
		Fallback:    a.Classification.Fallback,
		Scores:      a.Classification.Scores,
		Mapping:     a.Mapping.Entries(),
		Missing:     a.Missing,
		Ready:       a.Ready() == nil,
	}
	if resp.Missing == nil {
		resp.Missing = []string{}
	}

	resp.Sample = make([][]string, 0, min(len(a.Detection.Rows), maxPreviewRows))
	for _, row := range a.Detection.Rows[:cap(resp.Sample)] {
		resp.Sample = append(resp.Sample, row.Cells)
	}

	if v := a.Validation; v != nil {
		summary := &ValidationSummary{
			Valid:    v.Valid,
			Invalid:  v.Invalid,
			Failures: v.Failures,
			Issues:   []RowIssue{},
		}
		for _, o := range v.Outcomes {
			if o.Valid {
				continue
			}
			if len(summary.Issues) == maxPreviewFailures {
				break
			}
			summary.Issues = append(summary.Issues, RowIssue{RowIndex: o.RowIndex, Reason: o.Reason()})
		}
		resp.Validation = summary
	}
	return resp
}

// ResultResponse wraps a run report with its terminal error, if any.
type ResultResponse struct {
	*core.ImportReport
	Duration string `json:"duration"`
	Error    string `json:"error,omitempty"`
	Code     string `json:"code,omitempty"`
}

// toResultResponse converts an ImportReport to a JSON-friendly format.
func toResultResponse(report *core.ImportReport, runErr error) ResultResponse {
	resp := ResultResponse{
		ImportReport: report,
		Duration:     report.Duration.String(),
	}
	if runErr != nil {
		msg := core.MapError(runErr)
		resp.Error = msg.Message
		resp.Code = msg.Code
	}
	return resp
}
