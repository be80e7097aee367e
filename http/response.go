package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/avelinot/peerdrop"
)

// ErrorResponse represents a JSON error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteError writes a JSON error response
func WriteError(w http.ResponseWriter, code int, errCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(ErrorResponse{
		Error:   errCode,
		Message: message,
	}); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// HandleError writes appropriate error response based on error type.
// Clients see only a status code and an error label, never internal
// error detail.
func HandleError(w http.ResponseWriter, err error) {
	slog.Error("request error", "error", err)

	if errors.Is(err, peerdrop.ErrMissingFile) {
		WriteError(w, http.StatusBadRequest, "missing_file", "No file field in upload")
		return
	}

	if errors.Is(err, peerdrop.ErrNotFound) {
		WriteError(w, http.StatusNotFound, "not_found", "Blob not found")
		return
	}

	if errors.Is(err, peerdrop.ErrIngest) {
		WriteError(w, http.StatusInternalServerError, "ingest_failed", "Failed to store content")
		return
	}

	if errors.Is(err, peerdrop.ErrInvalidTicket) {
		WriteError(w, http.StatusInternalServerError, "ticket_failed", "Failed to build ticket")
		return
	}

	// Default internal error
	WriteError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, code int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(data)
}
