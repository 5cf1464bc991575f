package runs

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/AryanB1/Source-Graph/internal/core/runs"
)

// CreateHandler handles crawl run creation requests
type CreateHandler struct {
	service runs.Service
}

// NewCreateHandler creates a new create handler
func NewCreateHandler(service runs.Service) *CreateHandler {
	return &CreateHandler{
		service: service,
	}
}

// HandleCreate handles POST /runs
// Validates the request, executes the crawl synchronously, and persists the
// result before responding.
func (h *CreateHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	// Limit request body size; run requests are small JSON objects
	r.Body = http.MaxBytesReader(w, r.Body, 64*1024)

	var req runs.CreateRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err.Error() == "http: request body too large" {
			writeError(w, http.StatusRequestEntityTooLarge, "RequestTooLarge",
				"Request body too large (max 64KB)")
			return
		}
		writeError(w, http.StatusBadRequest, "InvalidRequest", "Invalid request body")
		return
	}

	runID, err := h.service.CreateRun(r.Context(), req)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(runs.CreateRunResponse{RunID: runID.String()}); err != nil {
		// Log encoding errors but don't return error response (headers already sent)
		log.Printf("Failed to encode run creation response: %v", err)
	}
}
