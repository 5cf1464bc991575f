package runs

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/AryanB1/Source-Graph/internal/core/runs"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// writeError writes a JSON error response
func writeError(w http.ResponseWriter, statusCode int, errorType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(errorResponse{
		Error:   errorType,
		Message: message,
	}); err != nil {
		log.Printf("Failed to encode error response: %v", err)
	}
}

// handleServiceError maps service errors to HTTP responses
func handleServiceError(w http.ResponseWriter, err error) {
	var validationErr *runs.ValidationError
	var ingestionErr *runs.IngestionError

	switch {
	case errors.Is(err, runs.ErrRunNotFound):
		writeError(w, http.StatusNotFound, "RunNotFound", "Run not found")

	case errors.As(err, &validationErr):
		writeError(w, http.StatusBadRequest, "InvalidRequest", validationErr.Error())

	case errors.As(err, &ingestionErr):
		// Upstream crawl failed; the run row exists but has no linked data
		writeError(w, http.StatusBadGateway, "IngestionFailed", ingestionErr.Error())

	default:
		// Don't leak internal error details to clients
		log.Printf("Unexpected error in runs handler: %v", err)
		writeError(w, http.StatusInternalServerError, "InternalServerError",
			"An internal error occurred")
	}
}
