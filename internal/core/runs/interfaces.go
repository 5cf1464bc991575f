package runs

import (
	"context"

	"github.com/google/uuid"

	"github.com/AryanB1/Source-Graph/internal/core/ingestion"
)

// Service orchestrates run creation (crawl + persist) and graph retrieval.
type Service interface {
	// CreateRun validates the request, executes the crawl, persists posts,
	// edges, and run links, and returns the run's identifier.
	CreateRun(ctx context.Context, req CreateRunRequest) (uuid.UUID, error)

	// GetRunGraph assembles the graph view for a run. maxNodes > 0 trims
	// the graph to the top-scoring nodes. Returns ErrRunNotFound when the
	// run does not exist.
	GetRunGraph(ctx context.Context, runID uuid.UUID, maxNodes int) (*Graph, error)
}

// Ingestor executes one crawl per call; ingestion.Runner satisfies it.
type Ingestor interface {
	QueryMode(ctx context.Context, in ingestion.QueryModeInputs) (*ingestion.IngestResult, error)
	SeedMode(ctx context.Context, in ingestion.SeedModeInputs) (*ingestion.IngestResult, error)
}

// Repository persists runs, posts, edges, and run links. The core never
// depends on which datastore implements it: posts upsert with full-field
// overwrite on conflict, edges insert ignoring duplicates.
type Repository interface {
	// CreateRun inserts a new run record.
	CreateRun(ctx context.Context, run *Run) error

	// UpsertPosts inserts posts, overwriting all fields on URI conflict.
	// Returns the number of posts processed.
	UpsertPosts(ctx context.Context, posts []ingestion.Post) (int, error)

	// InsertEdges inserts edges, ignoring (src, dst, type) duplicates.
	// Returns the number of edges processed.
	InsertEdges(ctx context.Context, edges []ingestion.Edge) (int, error)

	// LinkRunPosts associates post URIs with a run.
	LinkRunPosts(ctx context.Context, runID uuid.UUID, uris []string) (int, error)

	// LinkRunEdges associates edges with a run.
	LinkRunEdges(ctx context.Context, runID uuid.UUID, edges []ingestion.Edge) (int, error)

	// GetRun fetches a run by ID. Returns ErrRunNotFound when absent.
	GetRun(ctx context.Context, runID uuid.UUID) (*Run, error)

	// GetRunPosts fetches all posts linked to a run.
	GetRunPosts(ctx context.Context, runID uuid.UUID) ([]ingestion.Post, error)

	// GetRunEdges fetches all edges linked to a run.
	GetRunEdges(ctx context.Context, runID uuid.UUID) ([]ingestion.Edge, error)
}
