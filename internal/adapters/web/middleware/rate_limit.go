package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/lcalzada-xor/vmap/internal/telemetry"
)

// RateLimiter is a per-client sliding-window limiter. Uploads parse whole
// files; without a cap one misbehaving client can saturate the pipeline.
type RateLimiter struct {
	mu      sync.Mutex
	seen    map[string][]time.Time
	limit   int
	window  time.Duration
	stopped chan struct{}
}

// NewRateLimiter allows limit requests per client per window.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		seen:    make(map[string][]time.Time),
		limit:   limit,
		window:  window,
		stopped: make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Allow records a request for the client and reports whether it is within
// the limit.
func (rl *RateLimiter) Allow(client string) bool {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	recent := prune(rl.seen[client], now, rl.window)
	if len(recent) >= rl.limit {
		rl.seen[client] = recent
		return false
	}
	rl.seen[client] = append(recent, now)
	return true
}

// Stop ends the background cleanup goroutine.
func (rl *RateLimiter) Stop() {
	close(rl.stopped)
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stopped:
			return
		case <-ticker.C:
			now := time.Now()
			rl.mu.Lock()
			for client, times := range rl.seen {
				if recent := prune(times, now, rl.window); len(recent) == 0 {
					delete(rl.seen, client)
				} else {
					rl.seen[client] = recent
				}
			}
			rl.mu.Unlock()
		}
	}
}

func prune(times []time.Time, now time.Time, window time.Duration) []time.Time {
	recent := times[:0]
	for _, t := range times {
		if now.Sub(t) < window {
			recent = append(recent, t)
		}
	}
	return recent
}

// RateLimitMiddleware rejects requests over the client's limit with 429.
func RateLimitMiddleware(limiter *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				client = r.RemoteAddr
			}

			if !limiter.Allow(client) {
				telemetry.UploadsRejected.WithLabelValues("rate_limit").Inc()
				http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
