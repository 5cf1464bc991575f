package appview

import (
	"os"
	"strconv"
	"time"
)

// Config holds the tunables for one crawl's API client.
// All values have working defaults; env overrides are applied by ConfigFromEnv.
type Config struct {
	// CacheEnabled controls whether responses are cached in Redis.
	CacheEnabled bool

	// RedisAddr is the Redis host:port used for response caching.
	RedisAddr string

	// RedisDB selects the Redis logical database.
	RedisDB int

	// Per-endpoint-class cache TTLs. Search results churn fastest,
	// direct post lookups slowest.
	SearchTTL time.Duration
	ThreadTTL time.Duration
	QuotesTTL time.Duration
	PostsTTL  time.Duration

	// ConnectTimeout bounds connection establishment; ReadTimeout bounds
	// the whole request.
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration

	// MaxRetries is the attempt cap for one logical request.
	MaxRetries int

	// InitialBackoff is the first retry delay; doubles per retry up to
	// MaxBackoff. Jitter in [0,1)s is added on top.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// MaxRequestsPerRun is the hard ceiling on network calls for one run.
	MaxRequestsPerRun int

	// DefaultPageSize and MaxPageSize bound paginated requests.
	DefaultPageSize int
	MaxPageSize     int
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		CacheEnabled:      true,
		RedisAddr:         "localhost:6379",
		RedisDB:           0,
		SearchTTL:         120 * time.Second,
		ThreadTTL:         600 * time.Second,
		QuotesTTL:         600 * time.Second,
		PostsTTL:          1800 * time.Second,
		ConnectTimeout:    5 * time.Second,
		ReadTimeout:       20 * time.Second,
		MaxRetries:        3,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        60 * time.Second,
		MaxRequestsPerRun: 500,
		DefaultPageSize:   25,
		MaxPageSize:       100,
	}
}

// ConfigFromEnv reads configuration from environment variables, falling back
// to defaults for anything unset.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	if v := os.Getenv("BSKY_CACHE_ENABLED"); v != "" {
		cfg.CacheEnabled = v == "true" || v == "1"
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.RedisDB = db
		}
	}

	cfg.SearchTTL = envSeconds("BSKY_SEARCH_TTL", cfg.SearchTTL)
	cfg.ThreadTTL = envSeconds("BSKY_THREAD_TTL", cfg.ThreadTTL)
	cfg.QuotesTTL = envSeconds("BSKY_QUOTES_TTL", cfg.QuotesTTL)
	cfg.PostsTTL = envSeconds("BSKY_POSTS_TTL", cfg.PostsTTL)
	cfg.ConnectTimeout = envSeconds("BSKY_CONNECT_TIMEOUT", cfg.ConnectTimeout)
	cfg.ReadTimeout = envSeconds("BSKY_READ_TIMEOUT", cfg.ReadTimeout)
	cfg.InitialBackoff = envSeconds("BSKY_INITIAL_BACKOFF", cfg.InitialBackoff)
	cfg.MaxBackoff = envSeconds("BSKY_MAX_BACKOFF", cfg.MaxBackoff)

	cfg.MaxRetries = envInt("BSKY_MAX_RETRIES", cfg.MaxRetries)
	cfg.MaxRequestsPerRun = envInt("BSKY_MAX_REQUESTS_PER_RUN", cfg.MaxRequestsPerRun)
	cfg.DefaultPageSize = envInt("BSKY_DEFAULT_PAGE_SIZE", cfg.DefaultPageSize)
	cfg.MaxPageSize = envInt("BSKY_MAX_PAGE_SIZE", cfg.MaxPageSize)

	return cfg
}

func envInt(name string, fallback int) int {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envSeconds(name string, fallback time.Duration) time.Duration {
	if v := os.Getenv(name); v != "" {
		if secs, err := strconv.ParseFloat(v, 64); err == nil {
			return time.Duration(secs * float64(time.Second))
		}
	}
	return fallback
}
