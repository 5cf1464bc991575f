package routes

import (
	"github.com/go-chi/chi/v5"

	runshandlers "github.com/AryanB1/Source-Graph/internal/api/handlers/runs"
	"github.com/AryanB1/Source-Graph/internal/core/runs"
)

// RegisterRunRoutes registers crawl run endpoints on the router
func RegisterRunRoutes(r chi.Router, service runs.Service) {
	createHandler := runshandlers.NewCreateHandler(service)
	graphHandler := runshandlers.NewGetGraphHandler(service)

	// POST /runs - start a crawl run (query or seed mode) and persist the result
	r.Post("/runs", createHandler.HandleCreate)

	// GET /runs/{runID}/graph - assemble the stored run into a graph view
	r.Get("/runs/{runID}/graph", graphHandler.HandleGetGraph)
}
