package web

// errors.go provides unified error response handling for the web layer.
//
// Run failures are mapped through core.MapError so the service reports the
// same codes as the CLI. The technical error is logged with the request
// and run IDs; clients only see the mapped message.

import (
	"context"
	"errors"
	"net/http"

	"github.com/JonMunkholm/bulkindex/internal/blob"
	"github.com/JonMunkholm/bulkindex/internal/core"
	"github.com/JonMunkholm/bulkindex/internal/logging"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError logs err and writes its mapped message with the status
// statusFor picks.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := core.MapError(err)
	switch {
	case status == http.StatusRequestEntityTooLarge:
		msg = core.UserMessage{Message: "The file is too large", Action: "Split the file and preview each part", Code: "HTTP413"}
	case errors.Is(err, blob.ErrNotFound):
		msg = core.UserMessage{Message: "No such run artifact", Code: "HTTP404"}
	}

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
	)

	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "5")
	}
	writeJSON(w, status, ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// writeError writes a client error that needs no mapping.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message, Message: message, Code: http.StatusText(status)})
}

func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrTooManyRuns):
		return http.StatusServiceUnavailable
	case errors.Is(err, blob.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
