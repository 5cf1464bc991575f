package runs

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/AryanB1/Source-Graph/internal/core/ingestion"
)

// service implements the Service interface
type service struct {
	repo     Repository
	ingestor Ingestor
}

// NewService creates a new run service
func NewService(repo Repository, ingestor Ingestor) Service {
	if repo == nil {
		panic("runs: repo cannot be nil")
	}
	if ingestor == nil {
		panic("runs: ingestor cannot be nil")
	}
	return &service{repo: repo, ingestor: ingestor}
}

// CreateRun validates the request, records the run, executes the crawl, and
// persists the result. Validation failures surface before any network
// activity; crawl failures surface as *IngestionError.
func (s *service) CreateRun(ctx context.Context, req CreateRunRequest) (uuid.UUID, error) {
	if req.Mode != ModeQuery && req.Mode != ModeSeed {
		return uuid.Nil, &ValidationError{Reason: fmt.Sprintf("invalid mode: %q, must be 'query' or 'seed'", req.Mode)}
	}
	if req.Mode == ModeQuery && req.Query == "" {
		return uuid.Nil, &ValidationError{Reason: "query mode requires 'query' field"}
	}
	if req.Mode == ModeSeed && req.SeedURI == "" {
		return uuid.Nil, &ValidationError{Reason: "seed mode requires 'seedUri' field"}
	}

	run := &Run{
		RunID:     uuid.New(),
		Mode:      req.Mode,
		Query:     req.Query,
		SeedURI:   req.SeedURI,
		CreatedAt: time.Now().UTC(),
		Params:    req.Params,
	}
	if err := s.repo.CreateRun(ctx, run); err != nil {
		return uuid.Nil, fmt.Errorf("failed to create run: %w", err)
	}

	log.Printf("[RUNS] Created run %s in %s mode", run.RunID, run.Mode)

	var result *ingestion.IngestResult
	var err error

	if req.Mode == ModeQuery {
		result, err = s.ingestor.QueryMode(ctx, ingestion.QueryModeInputs{
			Query:           req.Query,
			TimeWindowHours: req.Params.TimeWindowHours,
			MaxPages:        req.Params.MaxPages,
			PageSize:        req.Params.PageSize,
			Lang:            req.Params.Lang,
		})
	} else {
		result, err = s.ingestor.SeedMode(ctx, ingestion.SeedModeInputs{
			SeedURI:       req.SeedURI,
			MaxDepth:      req.Params.MaxDepth,
			MaxQuotePages: req.Params.MaxQuotePages,
			MaxNodes:      req.Params.MaxNodes,
		})
	}
	if err != nil {
		log.Printf("[RUNS] Ingestion failed for run %s: %v", run.RunID, err)
		return uuid.Nil, &IngestionError{Err: err}
	}

	log.Printf("[RUNS] Ingestion complete for run %s: %d posts, %d edges, %d requests, %d cache hits",
		run.RunID, len(result.Posts), len(result.Edges), result.TotalRequests, result.CacheHits)

	postsCount, err := s.repo.UpsertPosts(ctx, result.Posts)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to persist posts for run %s: %w", run.RunID, err)
	}
	edgesCount, err := s.repo.InsertEdges(ctx, result.Edges)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to persist edges for run %s: %w", run.RunID, err)
	}

	uris := make([]string, 0, len(result.Posts))
	for _, p := range result.Posts {
		uris = append(uris, p.URI)
	}
	if _, err := s.repo.LinkRunPosts(ctx, run.RunID, uris); err != nil {
		return uuid.Nil, fmt.Errorf("failed to link posts for run %s: %w", run.RunID, err)
	}
	if _, err := s.repo.LinkRunEdges(ctx, run.RunID, result.Edges); err != nil {
		return uuid.Nil, fmt.Errorf("failed to link edges for run %s: %w", run.RunID, err)
	}

	log.Printf("[RUNS] Persisted run %s: %d posts, %d edges", run.RunID, postsCount, edgesCount)

	return run.RunID, nil
}

// GetRunGraph fetches a run's posts and edges and assembles the graph view.
func (s *service) GetRunGraph(ctx context.Context, runID uuid.UUID, maxNodes int) (*Graph, error) {
	if _, err := s.repo.GetRun(ctx, runID); err != nil {
		return nil, err
	}

	posts, err := s.repo.GetRunPosts(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch posts for run %s: %w", runID, err)
	}
	edges, err := s.repo.GetRunEdges(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch edges for run %s: %w", runID, err)
	}

	log.Printf("[RUNS] Retrieved graph inputs for run %s: %d posts, %d edges", runID, len(posts), len(edges))

	graph := BuildGraph(posts, edges, maxNodes)

	log.Printf("[RUNS] Assembled graph for run %s: %d nodes, %d edges",
		runID, graph.Stats.NodeCount, graph.Stats.EdgeCount)

	return graph, nil
}
