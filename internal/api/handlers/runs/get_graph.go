package runs

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/AryanB1/Source-Graph/internal/core/runs"
)

// GetGraphHandler handles graph retrieval requests
type GetGraphHandler struct {
	service runs.Service
}

// NewGetGraphHandler creates a new graph handler
func NewGetGraphHandler(service runs.Service) *GetGraphHandler {
	return &GetGraphHandler{
		service: service,
	}
}

// HandleGetGraph handles GET /runs/{runID}/graph
// Optional query parameter maxNodes trims the graph to the top-scoring
// nodes by engagement.
func (h *GetGraphHandler) HandleGetGraph(w http.ResponseWriter, r *http.Request) {
	runID, err := uuid.Parse(chi.URLParam(r, "runID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "runID must be a valid UUID")
		return
	}

	maxNodes := 0
	if raw := r.URL.Query().Get("maxNodes"); raw != "" {
		maxNodes, err = strconv.Atoi(raw)
		if err != nil || maxNodes < 0 {
			writeError(w, http.StatusBadRequest, "InvalidRequest",
				"maxNodes must be a non-negative integer")
			return
		}
	}

	graph, err := h.service.GetRunGraph(r.Context(), runID, maxNodes)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(graph); err != nil {
		log.Printf("Failed to encode graph response: %v", err)
	}
}
