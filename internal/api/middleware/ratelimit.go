package middleware

import (
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"
)

// RateLimiter is a fixed-window in-memory rate limiter keyed by client IP.
// Crawl runs are expensive (each one spends an upstream request budget), so
// the limiter sits in front of every route.
type RateLimiter struct {
	windows  map[string]*window
	requests int
	length   time.Duration
	mu       sync.Mutex
}

type window struct {
	resetAt time.Time
	count   int
}

// NewRateLimiter creates a rate limiter allowing requests per window length
func NewRateLimiter(requests int, length time.Duration) *RateLimiter {
	rl := &RateLimiter{
		windows:  make(map[string]*window),
		requests: requests,
		length:   length,
	}

	go rl.evictExpired()

	return rl
}

// Middleware returns a rate limiting middleware
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, retryAfter := rl.allow(clientIP(r))
		if !allowed {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(retryAfter.Seconds())+1))
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// allow records a request for the client and reports whether it fits in the
// current window. When denied, retryAfter is the time until the window resets.
func (rl *RateLimiter) allow(clientID string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now().UTC()

	win, ok := rl.windows[clientID]
	if !ok || now.After(win.resetAt) {
		rl.windows[clientID] = &window{count: 1, resetAt: now.Add(rl.length)}
		return true, 0
	}

	if win.count < rl.requests {
		win.count++
		return true, 0
	}

	return false, win.resetAt.Sub(now)
}

// evictExpired drops stale windows so idle clients don't accumulate
func (rl *RateLimiter) evictExpired() {
	ticker := time.NewTicker(rl.length)
	defer ticker.Stop()

	for range ticker.C {
		rl.mu.Lock()
		now := time.Now().UTC()
		for clientID, win := range rl.windows {
			if now.After(win.resetAt) {
				delete(rl.windows, clientID)
			}
		}
		rl.mu.Unlock()
	}
}

// clientIP extracts the client IP, preferring proxy headers
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
