package appview

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

// SearchParams are the inputs for SearchPosts. Zero-valued optional fields
// are omitted from the request.
type SearchParams struct {
	Query  string
	Limit  int
	Cursor string
	Since  string
	Until  string
	Lang   string
}

// SearchPosts fetches one page of app.bsky.feed.searchPosts results.
// The limit is capped at 100 by the API.
func (c *Client) SearchPosts(ctx context.Context, p SearchParams) (*SearchPostsResponse, error) {
	params := url.Values{}
	params.Set("q", p.Query)
	params.Set("limit", strconv.Itoa(min(p.Limit, 100)))
	if p.Cursor != "" {
		params.Set("cursor", p.Cursor)
	}
	if p.Since != "" {
		params.Set("since", p.Since)
	}
	if p.Until != "" {
		params.Set("until", p.Until)
	}
	if p.Lang != "" {
		params.Set("lang", p.Lang)
	}

	data, err := c.Get(ctx, "app.bsky.feed.searchPosts", params)
	if err != nil {
		return nil, err
	}

	var resp SearchPostsResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode searchPosts response: %w", err)
	}
	return &resp, nil
}

// GetPostThread fetches the conversation tree around a post via
// app.bsky.feed.getPostThread. depth bounds reply descent and parentHeight
// bounds ancestor ascent, both server side.
func (c *Client) GetPostThread(ctx context.Context, uri string, depth, parentHeight int) (*ThreadResponse, error) {
	params := url.Values{}
	params.Set("uri", uri)
	params.Set("depth", strconv.Itoa(depth))
	params.Set("parentHeight", strconv.Itoa(parentHeight))

	data, err := c.Get(ctx, "app.bsky.feed.getPostThread", params)
	if err != nil {
		return nil, err
	}

	var resp ThreadResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode getPostThread response: %w", err)
	}
	return &resp, nil
}

// GetQuotes fetches one page of posts quoting the given URI via
// app.bsky.feed.getQuotes. The limit is capped at 100 by the API.
func (c *Client) GetQuotes(ctx context.Context, uri string, limit int, cursor string) (*QuotesResponse, error) {
	params := url.Values{}
	params.Set("uri", uri)
	params.Set("limit", strconv.Itoa(min(limit, 100)))
	if cursor != "" {
		params.Set("cursor", cursor)
	}

	data, err := c.Get(ctx, "app.bsky.feed.getQuotes", params)
	if err != nil {
		return nil, err
	}

	var resp QuotesResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode getQuotes response: %w", err)
	}
	return &resp, nil
}

// getPostsChunkSize is the API's per-call URI limit for getPosts
const getPostsChunkSize = 25

// GetPosts fetches up to 25 posts by URI via app.bsky.feed.getPosts.
// URIs beyond the first 25 are ignored; use BatchGetPosts for larger sets.
func (c *Client) GetPosts(ctx context.Context, uris []string) (*PostsResponse, error) {
	if len(uris) == 0 {
		return &PostsResponse{}, nil
	}
	if len(uris) > getPostsChunkSize {
		uris = uris[:getPostsChunkSize]
	}

	params := url.Values{}
	for _, uri := range uris {
		params.Add("uris", uri)
	}

	data, err := c.Get(ctx, "app.bsky.feed.getPosts", params)
	if err != nil {
		return nil, err
	}

	var resp PostsResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode getPosts response: %w", err)
	}
	return &resp, nil
}

// BatchGetPosts fetches any number of posts by URI, chunking into getPosts
// calls of 25. A failed chunk is logged and skipped; the rest are returned.
func (c *Client) BatchGetPosts(ctx context.Context, uris []string) ([]PostView, error) {
	if len(uris) == 0 {
		return nil, nil
	}

	var posts []PostView
	for i := 0; i < len(uris); i += getPostsChunkSize {
		chunk := uris[i:min(i+getPostsChunkSize, len(uris))]
		resp, err := c.GetPosts(ctx, chunk)
		if err != nil {
			c.logger.Error("failed to fetch post chunk", "chunk", i/getPostsChunkSize, "error", err)
			continue
		}
		posts = append(posts, resp.Posts...)
	}
	return posts, nil
}
