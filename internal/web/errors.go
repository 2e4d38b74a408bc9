package web

// errors.go provides unified error response handling for the web layer.
//
// Every error is:
//   - Logged with full technical details and the request ID (server-side)
//   - Returned to clients as a JSON body with a user-friendly message,
//     an action suggestion and a support code
//
// The HTTP status is derived from the support code so handlers never pick
// statuses by hand.

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/JonMunkholm/sheetimport/internal/core"
	"github.com/JonMunkholm/sheetimport/internal/logging"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

var (
	errUnknownStore   = errors.New("unknown store")
	errListingBlocked = errors.New("record listing is not supported by this store")
)

// statusFor maps a support code to an HTTP status.
func statusFor(err error, code string) int {
	switch {
	case errors.Is(err, errUnknownStore):
		return http.StatusNotFound
	case errors.Is(err, errListingBlocked):
		return http.StatusNotImplemented
	}

	switch code {
	case "FILE001":
		return http.StatusRequestEntityTooLarge
	case "FILE002", "FILE003", "FILE004", "FILE005", "FILE006", "HDR001", "MAP002", "MAP003":
		return http.StatusBadRequest
	case "MAP001":
		return http.StatusUnprocessableEntity
	case "RUN001":
		return http.StatusServiceUnavailable
	case "RUN003":
		return http.StatusNotFound
	case "RUN002", "RUN005", "RUN006":
		return http.StatusConflict
	case "RUN004":
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// respondError logs the technical error and writes a user-friendly JSON body.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	msg := core.MapError(err)
	if errors.Is(err, errUnknownStore) || errors.Is(err, errListingBlocked) {
		msg = core.UserMessage{Message: err.Error(), Code: "API001"}
	}
	status := statusFor(err, msg.Code)

	logger := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request error", attrs...)
	} else {
		logger.Warn("request error", attrs...)
	}

	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "30")
	}
	writeErrorJSON(w, msg, status)
}

// writeErrorJSON writes a JSON error response.
func writeErrorJSON(w http.ResponseWriter, msg core.UserMessage, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}
