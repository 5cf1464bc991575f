package ingestion

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/AryanB1/Source-Graph/internal/atproto/appview"
)

// mockClient implements Client with function hooks and call counters.
type mockClient struct {
	searchFunc func(ctx context.Context, p appview.SearchParams) (*appview.SearchPostsResponse, error)
	threadFunc func(ctx context.Context, uri string, depth, parentHeight int) (*appview.ThreadResponse, error)
	quotesFunc func(ctx context.Context, uri string, limit int, cursor string) (*appview.QuotesResponse, error)

	searchCalls int
	threadCalls int
	quotesCalls int

	budget int
	stats  appview.Stats
}

func newMockClient() *mockClient {
	return &mockClient{budget: 500}
}

func (m *mockClient) SearchPosts(ctx context.Context, p appview.SearchParams) (*appview.SearchPostsResponse, error) {
	m.searchCalls++
	m.stats.TotalRequests++
	return m.searchFunc(ctx, p)
}

func (m *mockClient) GetPostThread(ctx context.Context, uri string, depth, parentHeight int) (*appview.ThreadResponse, error) {
	m.threadCalls++
	m.stats.TotalRequests++
	return m.threadFunc(ctx, uri, depth, parentHeight)
}

func (m *mockClient) GetQuotes(ctx context.Context, uri string, limit int, cursor string) (*appview.QuotesResponse, error) {
	m.quotesCalls++
	m.stats.TotalRequests++
	return m.quotesFunc(ctx, uri, limit, cursor)
}

func (m *mockClient) Stats() appview.Stats { return m.stats }
func (m *mockClient) RemainingBudget() int { return m.budget }

func searchPage(cursor string, uris ...string) *appview.SearchPostsResponse {
	resp := &appview.SearchPostsResponse{Cursor: cursor}
	for _, uri := range uris {
		resp.Posts = append(resp.Posts, validPostView(uri))
	}
	return resp
}

func quotePage(cursor string, uris ...string) *appview.QuotesResponse {
	resp := &appview.QuotesResponse{Cursor: cursor}
	for _, uri := range uris {
		resp.Posts = append(resp.Posts, validPostView(uri))
	}
	return resp
}

func TestQueryModePaginatesUntilCursorEnds(t *testing.T) {
	client := newMockClient()
	client.searchFunc = func(ctx context.Context, p appview.SearchParams) (*appview.SearchPostsResponse, error) {
		switch p.Cursor {
		case "":
			return searchPage("page2", "at://a", "at://b"), nil
		case "page2":
			return searchPage("", "at://b", "at://c"), nil
		}
		return nil, fmt.Errorf("unexpected cursor %q", p.Cursor)
	}

	result := QueryMode(context.Background(), client, appview.DefaultConfig(), QueryModeInputs{
		Query:    "golang",
		MaxPages: 10,
	})

	if client.searchCalls != 2 {
		t.Errorf("expected 2 search calls, got %d", client.searchCalls)
	}
	// at://b appears on both pages; dedupe keeps the first
	if len(result.Posts) != 3 {
		t.Fatalf("expected 3 deduplicated posts, got %d", len(result.Posts))
	}
	if len(result.Edges) != 0 {
		t.Errorf("query mode must not produce edges, got %d", len(result.Edges))
	}
	if result.TotalRequests != 2 {
		t.Errorf("expected TotalRequests=2, got %d", result.TotalRequests)
	}
}

func TestQueryModeStopsAtMaxPages(t *testing.T) {
	client := newMockClient()
	page := 0
	client.searchFunc = func(ctx context.Context, p appview.SearchParams) (*appview.SearchPostsResponse, error) {
		page++
		return searchPage("more", fmt.Sprintf("at://post%d", page)), nil
	}

	result := QueryMode(context.Background(), client, appview.DefaultConfig(), QueryModeInputs{
		Query:    "golang",
		MaxPages: 3,
	})

	if client.searchCalls != 3 {
		t.Errorf("expected 3 search calls, got %d", client.searchCalls)
	}
	if len(result.Posts) != 3 {
		t.Errorf("expected 3 posts, got %d", len(result.Posts))
	}
}

func TestQueryModeKeepsPartialResultsOnError(t *testing.T) {
	client := newMockClient()
	client.searchFunc = func(ctx context.Context, p appview.SearchParams) (*appview.SearchPostsResponse, error) {
		if p.Cursor == "" {
			return searchPage("page2", "at://a", "at://b"), nil
		}
		return nil, errors.New("upstream unavailable")
	}

	result := QueryMode(context.Background(), client, appview.DefaultConfig(), QueryModeInputs{
		Query:    "golang",
		MaxPages: 5,
	})

	if len(result.Posts) != 2 {
		t.Errorf("expected partial results from first page, got %d posts", len(result.Posts))
	}
}

func TestQueryModeStopsOnLowBudget(t *testing.T) {
	client := newMockClient()
	client.budget = 5
	client.searchFunc = func(ctx context.Context, p appview.SearchParams) (*appview.SearchPostsResponse, error) {
		return searchPage("more", "at://a"), nil
	}

	QueryMode(context.Background(), client, appview.DefaultConfig(), QueryModeInputs{
		Query:    "golang",
		MaxPages: 10,
	})

	if client.searchCalls != 1 {
		t.Errorf("expected pagination to stop on low budget after 1 call, got %d", client.searchCalls)
	}
}

func TestQueryModeCapsPageSize(t *testing.T) {
	client := newMockClient()
	var gotLimit int
	client.searchFunc = func(ctx context.Context, p appview.SearchParams) (*appview.SearchPostsResponse, error) {
		gotLimit = p.Limit
		return searchPage(""), nil
	}

	cfg := appview.DefaultConfig()
	QueryMode(context.Background(), client, cfg, QueryModeInputs{
		Query:    "golang",
		PageSize: 5000,
	})

	if gotLimit != cfg.MaxPageSize {
		t.Errorf("expected page size capped at %d, got %d", cfg.MaxPageSize, gotLimit)
	}
}

func TestSeedModeThreadAndQuotes(t *testing.T) {
	client := newMockClient()
	client.threadFunc = func(ctx context.Context, uri string, depth, parentHeight int) (*appview.ThreadResponse, error) {
		root := threadPost(uri)
		root.Replies = []*appview.ThreadNode{threadPost("at://reply1")}
		return &appview.ThreadResponse{Thread: root}, nil
	}
	client.quotesFunc = func(ctx context.Context, uri string, limit int, cursor string) (*appview.QuotesResponse, error) {
		return quotePage("", "at://quote1"), nil
	}

	result := SeedMode(context.Background(), client, SeedModeInputs{SeedURI: "at://seed"})

	if client.threadCalls != 1 || client.quotesCalls != 1 {
		t.Fatalf("expected 1 thread and 1 quote call, got %d and %d", client.threadCalls, client.quotesCalls)
	}
	if len(result.Posts) != 3 {
		t.Fatalf("expected 3 posts, got %d", len(result.Posts))
	}
	if len(result.Edges) != 2 {
		t.Fatalf("expected 1 reply + 1 quote edge, got %d", len(result.Edges))
	}
}

func TestSeedModeThreadFailureStillFetchesQuotes(t *testing.T) {
	client := newMockClient()
	client.threadFunc = func(ctx context.Context, uri string, depth, parentHeight int) (*appview.ThreadResponse, error) {
		return nil, errors.New("thread unavailable")
	}
	client.quotesFunc = func(ctx context.Context, uri string, limit int, cursor string) (*appview.QuotesResponse, error) {
		return quotePage("", "at://quote1", "at://quote2"), nil
	}

	result := SeedMode(context.Background(), client, SeedModeInputs{SeedURI: "at://seed"})

	if client.quotesCalls != 1 {
		t.Fatalf("expected quote expansion despite thread failure, got %d calls", client.quotesCalls)
	}
	if len(result.Posts) != 2 {
		t.Errorf("expected 2 quote posts, got %d", len(result.Posts))
	}
	if len(result.Edges) != 2 {
		t.Errorf("expected 2 quote edges, got %d", len(result.Edges))
	}
}

func TestSeedModeNodeCapSkipsQuotes(t *testing.T) {
	client := newMockClient()
	client.threadFunc = func(ctx context.Context, uri string, depth, parentHeight int) (*appview.ThreadResponse, error) {
		root := threadPost(uri)
		root.Replies = []*appview.ThreadNode{threadPost("at://reply1"), threadPost("at://reply2")}
		return &appview.ThreadResponse{Thread: root}, nil
	}

	result := SeedMode(context.Background(), client, SeedModeInputs{
		SeedURI:  "at://seed",
		MaxNodes: 2,
	})

	if client.quotesCalls != 0 {
		t.Errorf("expected quote expansion to be skipped at node cap, got %d calls", client.quotesCalls)
	}
	if len(result.Posts) != 2 {
		t.Errorf("expected posts truncated to cap, got %d", len(result.Posts))
	}
}

func TestSeedModeNodeCapMidPageKeepsEdges(t *testing.T) {
	client := newMockClient()
	client.threadFunc = func(ctx context.Context, uri string, depth, parentHeight int) (*appview.ThreadResponse, error) {
		return &appview.ThreadResponse{Thread: threadPost(uri)}, nil
	}
	client.quotesFunc = func(ctx context.Context, uri string, limit int, cursor string) (*appview.QuotesResponse, error) {
		return quotePage("", "at://q1", "at://q2", "at://q3"), nil
	}

	result := SeedMode(context.Background(), client, SeedModeInputs{
		SeedURI:  "at://seed",
		MaxNodes: 2,
	})

	// Cap hit mid-page: only the seed plus one quote post survive, but the
	// whole page's edges are kept.
	if len(result.Posts) != 2 {
		t.Fatalf("expected 2 posts, got %d", len(result.Posts))
	}
	if len(result.Edges) != 3 {
		t.Errorf("expected all 3 page edges kept, got %d", len(result.Edges))
	}
}

func TestSeedModeQuotePaginationStopsOnEmptyCursor(t *testing.T) {
	client := newMockClient()
	client.threadFunc = func(ctx context.Context, uri string, depth, parentHeight int) (*appview.ThreadResponse, error) {
		return &appview.ThreadResponse{Thread: threadPost(uri)}, nil
	}
	client.quotesFunc = func(ctx context.Context, uri string, limit int, cursor string) (*appview.QuotesResponse, error) {
		if cursor == "" {
			return quotePage("next", "at://q1"), nil
		}
		return quotePage("", "at://q2"), nil
	}

	result := SeedMode(context.Background(), client, SeedModeInputs{
		SeedURI:       "at://seed",
		MaxQuotePages: 10,
	})

	if client.quotesCalls != 2 {
		t.Errorf("expected 2 quote pages, got %d", client.quotesCalls)
	}
	if len(result.Posts) != 3 {
		t.Errorf("expected 3 posts, got %d", len(result.Posts))
	}
}
