// Package handlers provides REST API handlers for the capture shell.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/wayfound/trailbook/internal/errors"
	"github.com/wayfound/trailbook/internal/logging"
)

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Error("Failed to encode response", err)
	}
}

// writeError writes a structured error body: {"code": ..., "message": ...}.
func writeError(w http.ResponseWriter, status int, code errors.ErrorCode, message string) {
	writeJSON(w, status, map[string]interface{}{
		"code":    code,
		"message": message,
	})
}

// writeAppError maps an engine error to an HTTP status and structured body.
func writeAppError(w http.ResponseWriter, err error) {
	code := errors.CodeOf(err)

	status := http.StatusInternalServerError
	switch code {
	case errors.ErrStorageUnavailable:
		status = http.StatusServiceUnavailable
	case errors.ErrValidation, errors.ErrInvalid:
		status = http.StatusBadRequest
	case errors.ErrEntryNotFound, errors.ErrNotFound, errors.ErrRemoteNotConfigured:
		status = http.StatusNotFound
	}

	writeError(w, status, code, err.Error())
}
