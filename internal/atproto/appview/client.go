package appview

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// defaultBaseURL is the public Bluesky AppView endpoint
const defaultBaseURL = "https://api.bsky.app"

// ErrBudgetExhausted is returned when a run's request budget has been spent.
// Callers check for it with errors.Is; it is never retried.
var ErrBudgetExhausted = errors.New("request budget exhausted")

// Stats tracks request counters for one client instance.
type Stats struct {
	TotalRequests  int
	CacheHits      int
	CacheMisses    int
	FailedRequests int
}

// Reset zeroes all counters.
func (s *Stats) Reset() {
	*s = Stats{}
}

// Client issues read requests against the Bluesky AppView API with
// response caching, bounded retries, and a per-run request budget.
// One Client is scoped to exactly one crawl run; it is not safe for
// concurrent use.
type Client struct {
	cfg          Config
	baseURL      string
	http         *http.Client
	cache        Cache
	stats        Stats
	requestCount int
	logger       *slog.Logger

	// sleep and jitter are swappable for tests
	sleep  func(time.Duration)
	jitter func() time.Duration
}

// Option configures the client
type Option func(*Client)

// WithBaseURL overrides the AppView endpoint (used by tests).
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithCache replaces the default Redis-backed cache.
func WithCache(cache Cache) Option {
	return func(c *Client) {
		c.cache = cache
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.http = httpClient
	}
}

// WithLogger replaces the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a client for one crawl run. If caching is enabled and no
// cache is injected, it connects to Redis; an unreachable Redis disables
// caching for the run instead of failing it.
func NewClient(cfg Config, opts ...Option) *Client {
	c := &Client{
		cfg:     cfg,
		baseURL: defaultBaseURL,
		logger:  slog.Default(),
		sleep:   time.Sleep,
		jitter: func() time.Duration {
			return time.Duration(rand.Float64() * float64(time.Second))
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.http == nil {
		c.http = &http.Client{
			Timeout: cfg.ReadTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: cfg.ConnectTimeout}).DialContext,
			},
		}
	}

	if c.cache == nil && cfg.CacheEnabled {
		cache, err := NewRedisCache(cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			c.logger.Warn("redis unavailable, caching disabled", "addr", cfg.RedisAddr, "error", err)
		} else {
			c.cache = cache
			c.logger.Info("redis connection established", "addr", cfg.RedisAddr)
		}
	}

	return c
}

// Close releases the cache connection and idle HTTP connections.
func (c *Client) Close() {
	if c.cache != nil {
		if err := c.cache.Close(); err != nil {
			c.logger.Warn("failed to close cache", "error", err)
		}
	}
	c.http.CloseIdleConnections()
}

// Stats returns a copy of the client's request counters.
func (c *Client) Stats() Stats {
	return c.stats
}

// ResetStats zeroes the request counters.
func (c *Client) ResetStats() {
	c.stats.Reset()
}

// ResetBudget zeroes the budget counter.
func (c *Client) ResetBudget() {
	c.requestCount = 0
}

// RemainingBudget reports how many network calls the run may still make.
func (c *Client) RemainingBudget() int {
	remaining := c.cfg.MaxRequestsPerRun - c.requestCount
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Get fetches an xrpc endpoint, serving from cache when possible.
// Budget is checked before any cache or network activity. Transient
// failures (429, 5xx, transport errors) are retried with exponential
// backoff up to the configured attempt cap.
func (c *Client) Get(ctx context.Context, endpoint string, params url.Values) (json.RawMessage, error) {
	if c.requestCount >= c.cfg.MaxRequestsPerRun {
		return nil, fmt.Errorf("%w (%d)", ErrBudgetExhausted, c.cfg.MaxRequestsPerRun)
	}

	cacheKey := c.cacheKey(endpoint, params)
	ttl := c.ttlForEndpoint(endpoint)

	if data, ok := c.cacheGet(ctx, cacheKey); ok {
		return data, nil
	}
	c.stats.CacheMisses++

	backoff := c.cfg.InitialBackoff
	attempt := 0

	for attempt < c.cfg.MaxRetries {
		start := time.Now()
		c.requestCount++
		c.stats.TotalRequests++

		resp, err := c.doRequest(ctx, endpoint, params)
		if err != nil {
			c.stats.FailedRequests++
			c.logger.Error("request failed", "endpoint", endpoint, "attempt", attempt+1, "error", err)
			if attempt >= c.cfg.MaxRetries-1 {
				return nil, fmt.Errorf("max retries reached for %s: %w", endpoint, err)
			}
			backoff = min(backoff*2, c.cfg.MaxBackoff)
			c.sleep(backoff + c.jitter())
			attempt++
			continue
		}

		c.logger.Info("api request",
			"endpoint", endpoint,
			"status", resp.StatusCode,
			"latency", time.Since(start),
			"attempt", attempt+1,
		)

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			wait := backoff + c.jitter()
			if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
				if secs, parseErr := strconv.ParseFloat(retryAfter, 64); parseErr == nil {
					wait = time.Duration(secs * float64(time.Second))
				}
			}
			drain(resp)
			c.logger.Warn("rate limited", "endpoint", endpoint, "wait", wait)
			c.sleep(wait)
			backoff = min(backoff*2, c.cfg.MaxBackoff)
			attempt++

		case resp.StatusCode >= 500:
			drain(resp)
			c.logger.Warn("server error, retrying", "endpoint", endpoint, "status", resp.StatusCode, "backoff", backoff)
			c.sleep(backoff + c.jitter())
			backoff = min(backoff*2, c.cfg.MaxBackoff)
			attempt++

		case resp.StatusCode >= 400:
			// Client errors other than 429 still consume a retry attempt,
			// matching the transport-error path.
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			_ = resp.Body.Close()
			c.stats.FailedRequests++
			err := fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
			c.logger.Error("request failed", "endpoint", endpoint, "attempt", attempt+1, "error", err)
			if attempt >= c.cfg.MaxRetries-1 {
				return nil, fmt.Errorf("max retries reached for %s: %w", endpoint, err)
			}
			backoff = min(backoff*2, c.cfg.MaxBackoff)
			c.sleep(backoff + c.jitter())
			attempt++

		default:
			data, readErr := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			if readErr != nil {
				return nil, fmt.Errorf("failed to read response from %s: %w", endpoint, readErr)
			}
			if !json.Valid(data) {
				return nil, fmt.Errorf("invalid JSON response from %s", endpoint)
			}
			c.cacheSet(ctx, cacheKey, data, ttl)
			return data, nil
		}
	}

	return nil, fmt.Errorf("failed to fetch %s after %d attempts", endpoint, c.cfg.MaxRetries)
}

func (c *Client) doRequest(ctx context.Context, endpoint string, params url.Values) (*http.Response, error) {
	reqURL := c.baseURL + "/xrpc/" + endpoint
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; SourceGraph/1.0)")

	return c.http.Do(req)
}

// cacheKey derives a deterministic key from the endpoint and parameters.
// url.Values.Encode sorts by key, so parameter order never affects identity.
func (c *Client) cacheKey(endpoint string, params url.Values) string {
	sum := md5.Sum([]byte(params.Encode()))
	return fmt.Sprintf("bsky:%s:%x", endpoint, sum)
}

// ttlForEndpoint maps an endpoint to its cache TTL class.
func (c *Client) ttlForEndpoint(endpoint string) time.Duration {
	switch {
	case strings.Contains(endpoint, "searchPosts"):
		return c.cfg.SearchTTL
	case strings.Contains(endpoint, "getPostThread"):
		return c.cfg.ThreadTTL
	case strings.Contains(endpoint, "getQuotes"):
		return c.cfg.QuotesTTL
	case strings.Contains(endpoint, "getPosts"):
		return c.cfg.PostsTTL
	}
	return c.cfg.SearchTTL
}

func (c *Client) cacheGet(ctx context.Context, key string) (json.RawMessage, bool) {
	if c.cache == nil {
		return nil, false
	}
	data, err := c.cache.Get(ctx, key)
	if errors.Is(err, ErrCacheMiss) {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("cache read error", "key", key, "error", err)
		return nil, false
	}
	c.stats.CacheHits++
	c.logger.Debug("cache hit", "key", key)
	return data, true
}

func (c *Client) cacheSet(ctx context.Context, key string, data []byte, ttl time.Duration) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Set(ctx, key, data, ttl); err != nil {
		c.logger.Warn("cache write error", "key", key, "error", err)
	}
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
}
