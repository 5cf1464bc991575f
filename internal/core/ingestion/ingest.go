package ingestion

import (
	"context"
	"log/slog"
	"time"

	"github.com/AryanB1/Source-Graph/internal/atproto/appview"
)

// Pagination stops once fewer than this many requests remain in the budget,
// leaving headroom for retries.
const minBudgetFloor = 10

// Defaults applied when crawl inputs leave a bound unset.
const (
	defaultMaxPages      = 4
	defaultMaxDepth      = 2
	defaultMaxQuotePages = 3
	defaultMaxNodes      = 500

	// getPostThread also ascends this many ancestors above the seed
	seedParentHeight = 3

	// getQuotes page size used by seed mode
	quotePageSize = 50
)

// Client is the slice of the AppView client the crawl modes consume.
// *appview.Client satisfies it.
type Client interface {
	SearchPosts(ctx context.Context, p appview.SearchParams) (*appview.SearchPostsResponse, error)
	GetPostThread(ctx context.Context, uri string, depth, parentHeight int) (*appview.ThreadResponse, error)
	GetQuotes(ctx context.Context, uri string, limit int, cursor string) (*appview.QuotesResponse, error)
	Stats() appview.Stats
	RemainingBudget() int
}

// QueryMode crawls flat paginated search results for a query. Pagination
// stops at the page cap, a missing cursor, or a low budget; a page fetch
// error aborts early keeping partial results. No edges are produced.
func QueryMode(ctx context.Context, client Client, cfg appview.Config, in QueryModeInputs) *IngestResult {
	if in.MaxPages <= 0 {
		in.MaxPages = defaultMaxPages
	}
	if in.PageSize <= 0 {
		in.PageSize = cfg.DefaultPageSize
	}
	pageSize := min(in.PageSize, cfg.MaxPageSize)

	slog.Info("starting query mode", "query", in.Query, "pages", in.MaxPages, "pageSize", pageSize)

	var since, until string
	if in.TimeWindowHours > 0 {
		now := time.Now().UTC()
		since = now.Add(-time.Duration(in.TimeWindowHours) * time.Hour).Format(time.RFC3339)
		until = now.Format(time.RFC3339)
	}

	var allPosts []Post
	cursor := ""
	pagesFetched := 0

	for pagesFetched < in.MaxPages {
		resp, err := client.SearchPosts(ctx, appview.SearchParams{
			Query:  in.Query,
			Limit:  pageSize,
			Cursor: cursor,
			Since:  since,
			Until:  until,
			Lang:   in.Lang,
		})
		if err != nil {
			slog.Error("error fetching search page", "page", pagesFetched+1, "error", err)
			break
		}

		for _, raw := range resp.Posts {
			if post, ok := NormalizePost(raw); ok {
				allPosts = append(allPosts, post)
			}
		}

		pagesFetched++
		slog.Info("fetched search page", "page", pagesFetched, "maxPages", in.MaxPages, "posts", len(resp.Posts))

		cursor = resp.Cursor
		if cursor == "" {
			slog.Info("no more pages available")
			break
		}
		if client.RemainingBudget() < minBudgetFloor {
			slog.Warn("request budget low, stopping pagination")
			break
		}
	}

	allPosts = DeduplicatePosts(allPosts)
	stats := client.Stats()

	slog.Info("query mode complete",
		"posts", len(allPosts),
		"requests", stats.TotalRequests,
		"cacheHits", stats.CacheHits,
	)

	return &IngestResult{
		Posts:         allPosts,
		Edges:         []Edge{},
		TotalRequests: stats.TotalRequests,
		CacheHits:     stats.CacheHits,
		CacheMisses:   stats.CacheMisses,
	}
}

// SeedMode crawls outward from one seed post: first its conversation thread
// (bounded by depth), then the posts quoting it (paginated, bounded by the
// node cap). A thread fetch failure is not fatal; quote expansion still runs
// so the result may hold only quote-derived posts and edges.
func SeedMode(ctx context.Context, client Client, in SeedModeInputs) *IngestResult {
	if in.MaxDepth <= 0 {
		in.MaxDepth = defaultMaxDepth
	}
	if in.MaxQuotePages <= 0 {
		in.MaxQuotePages = defaultMaxQuotePages
	}
	if in.MaxNodes <= 0 {
		in.MaxNodes = defaultMaxNodes
	}

	slog.Info("starting seed mode", "seedUri", in.SeedURI, "maxDepth", in.MaxDepth, "maxNodes", in.MaxNodes)

	acc := newPostSet()
	var allEdges []Edge

	threadResp, err := client.GetPostThread(ctx, in.SeedURI, in.MaxDepth, seedParentHeight)
	if err != nil {
		slog.Error("failed to fetch thread", "seedUri", in.SeedURI, "error", err)
	} else if threadResp.Thread != nil {
		threadPosts, threadEdges := ExtractThreadPostsAndEdges(threadResp.Thread, in.MaxDepth)
		for _, p := range threadPosts {
			acc.Add(p)
		}
		allEdges = append(allEdges, threadEdges...)
		slog.Info("thread extraction", "posts", len(threadPosts), "edges", len(threadEdges))
	}

	if acc.Len() >= in.MaxNodes {
		slog.Warn("reached max nodes after thread extraction", "maxNodes", in.MaxNodes)
		return seedResult(client, acc.Posts()[:in.MaxNodes], allEdges)
	}

	cursor := ""
	quotePagesFetched := 0

	for quotePagesFetched < in.MaxQuotePages {
		resp, err := client.GetQuotes(ctx, in.SeedURI, quotePageSize, cursor)
		if err != nil {
			slog.Error("error fetching quote page", "page", quotePagesFetched+1, "error", err)
			break
		}

		quotePosts, quoteEdges := ExtractQuoteEdges(resp.Posts, in.SeedURI)

		for _, post := range quotePosts {
			if acc.Len() >= in.MaxNodes {
				slog.Warn("reached max nodes", "maxNodes", in.MaxNodes)
				break
			}
			acc.Add(post)
		}

		// Edges for the whole page are kept even when the node cap stopped
		// post insertion partway through; the graph assembler drops any
		// edge whose endpoint never made it into the node set.
		allEdges = append(allEdges, quoteEdges...)

		quotePagesFetched++
		slog.Info("fetched quote page", "page", quotePagesFetched, "maxPages", in.MaxQuotePages, "posts", len(quotePosts))

		cursor = resp.Cursor
		if cursor == "" {
			slog.Info("no more quote pages available")
			break
		}
		if client.RemainingBudget() < minBudgetFloor {
			slog.Warn("request budget low, stopping quote pagination")
			break
		}
		if acc.Len() >= in.MaxNodes {
			break
		}
	}

	posts := acc.Posts()
	if len(posts) > in.MaxNodes {
		posts = posts[:in.MaxNodes]
	}

	return seedResult(client, posts, allEdges)
}

func seedResult(client Client, posts []Post, edges []Edge) *IngestResult {
	edges = DeduplicateEdges(edges)
	stats := client.Stats()

	slog.Info("seed mode complete",
		"posts", len(posts),
		"edges", len(edges),
		"requests", stats.TotalRequests,
		"cacheHits", stats.CacheHits,
	)

	return &IngestResult{
		Posts:         posts,
		Edges:         edges,
		TotalRequests: stats.TotalRequests,
		CacheHits:     stats.CacheHits,
		CacheMisses:   stats.CacheMisses,
	}
}

// Runner owns the client lifecycle for crawl runs: each invocation builds
// one budgeted client, runs the mode, and releases the client's resources
// on every exit path.
type Runner struct {
	cfg appview.Config
}

// NewRunner creates a Runner that builds clients from cfg.
func NewRunner(cfg appview.Config) *Runner {
	return &Runner{cfg: cfg}
}

// QueryMode executes a query-mode crawl with a fresh client.
func (r *Runner) QueryMode(ctx context.Context, in QueryModeInputs) (*IngestResult, error) {
	client := appview.NewClient(r.cfg)
	defer client.Close()
	return QueryMode(ctx, client, r.cfg, in), nil
}

// SeedMode executes a seed-mode crawl with a fresh client.
func (r *Runner) SeedMode(ctx context.Context, in SeedModeInputs) (*IngestResult, error) {
	client := appview.NewClient(r.cfg)
	defer client.Close()
	return SeedMode(ctx, client, in), nil
}
