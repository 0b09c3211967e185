package inproc

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig configures per-route rate limiting.
type RateLimitConfig struct {
	Rate            float64                   // requests per second
	Burst           int                       // max burst
	KeyFunc         func(req *Request) string // default: one bucket per route
	CleanupInterval time.Duration             // how often to prune idle limiters (default: 1m)
	MaxIdle         time.Duration             // remove limiters idle longer than this (default: 5m)
}

// WithRateLimit applies a token bucket to the route. Requests over the limit
// get 429 Too Many Requests and the handler is not invoked.
func WithRateLimit(cfg RateLimitConfig) RouteOption {
	return func(e *routeEntry) {
		e.rateLimit = &cfg
	}
}

// WithDefaultRateLimit applies cfg to every route registered without its own
// WithRateLimit.
func WithDefaultRateLimit(cfg RateLimitConfig) RouterOption {
	return func(r *Router) {
		r.rateLimit = &cfg
	}
}

// limiterSet holds one rate.Limiter per key for a single route.
type limiterSet struct {
	cfg RateLimitConfig

	mu          sync.Mutex
	limiters    map[string]*limiterEntry
	lastCleanup time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newLimiterSet(cfg RateLimitConfig) *limiterSet {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = func(*Request) string { return "" }
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Minute
	}
	if cfg.MaxIdle <= 0 {
		cfg.MaxIdle = 5 * time.Minute
	}
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	return &limiterSet{
		cfg:      cfg,
		limiters: make(map[string]*limiterEntry),
	}
}

// allow reports whether req may proceed. Idle limiters are pruned lazily.
func (s *limiterSet) allow(req *Request) bool {
	key := s.cfg.KeyFunc(req)

	s.mu.Lock()
	now := time.Now()

	if now.Sub(s.lastCleanup) >= s.cfg.CleanupInterval {
		for k, e := range s.limiters {
			if now.Sub(e.lastSeen) > s.cfg.MaxIdle {
				delete(s.limiters, k)
			}
		}
		s.lastCleanup = now
	}

	entry, ok := s.limiters[key]
	if !ok {
		entry = &limiterEntry{
			limiter: rate.NewLimiter(rate.Limit(s.cfg.Rate), s.cfg.Burst),
		}
		s.limiters[key] = entry
	}
	entry.lastSeen = now
	s.mu.Unlock()

	return entry.limiter.Allow()
}

func (s *limiterSet) limitedResponse() *Response {
	retryAfter := "1"
	if s.cfg.Rate > 0 {
		retryAfter = strconv.FormatFloat(math.Max(1, math.Ceil(1/s.cfg.Rate)), 'f', 0, 64)
	}
	return Text(http.StatusTooManyRequests, http.StatusText(http.StatusTooManyRequests)).
		WithHeader("Retry-After", retryAfter)
}
