package core

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"autopost/internal/types"
)

// defaultLimiterEntries bounds the number of route and address pairs that
// hold a token bucket at once.
const defaultLimiterEntries = 500

// RateLimiter keeps one token bucket per route pattern and client address.
// Buckets of the least recently seen pairs are evicted when the cache is full.
type RateLimiter struct {
	mu       sync.Mutex
	buckets  *lru.Cache[string, *rate.Limiter]
	perMin   int
	interval time.Duration
}

// NewRateLimiter allows perMinute requests per route and address, with a
// burst of the same size.
func NewRateLimiter(perMinute, entries int) (*RateLimiter, error) {
	if perMinute <= 0 {
		perMinute = 1
	}
	if entries <= 0 {
		entries = defaultLimiterEntries
	}
	cache, err := lru.New[string, *rate.Limiter](entries)
	if err != nil {
		return nil, err
	}
	return &RateLimiter{
		buckets:  cache,
		perMin:   perMinute,
		interval: time.Minute / time.Duration(perMinute),
	}, nil
}

// Allow consumes a token from the bucket of key. It returns the tokens left
// and, when denied, how long until the next token is available.
func (l *RateLimiter) Allow(key string, now time.Time) (bool, int, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, ok := l.buckets.Get(key)
	if !ok {
		limiter = rate.NewLimiter(rate.Every(l.interval), l.perMin)
		l.buckets.Add(key, limiter)
	}

	res := limiter.ReserveN(now, 1)
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return false, 0, delay
	}
	remaining := int(math.Floor(limiter.TokensAt(now)))
	if remaining < 0 {
		remaining = 0
	}
	return true, remaining, 0
}

// Limit returns the configured requests per minute.
func (l *RateLimiter) Limit() int {
	return l.perMin
}

// RateLimit enforces RateLimiter per route pattern and client address. It
// passes through when no RateLimiter is configured.
//
// Every response carries X-RateLimit-Limit and X-RateLimit-Remaining; a 429
// also carries Retry-After in whole seconds.
func (s *Server) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.RateLimiter == nil {
			next.ServeHTTP(w, r)
			return
		}

		ip := extractClientIP(r)
		key := r.Method + " " + routePattern(r) + "|" + ip
		allowed, remaining, retry := s.RateLimiter.Allow(key, time.Now())

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(s.RateLimiter.Limit()))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			s.Logger.WarnContext(r.Context(), "rate limit exceeded",
				slog.String("ip", ip),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			)
			retryAfter := int(math.Ceil(retry.Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			JSON(w, r, http.StatusTooManyRequests, APIErrorResponse{
				Error: ErrorDetail{
					Code:      string(types.ErrCodeRateLimit),
					Message:   "Rate limit exceeded. Please retry later.",
					RequestID: types.GetRequestID(r.Context()),
				},
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// routePattern returns the matched chi pattern so that path parameters share
// one bucket, falling back to the raw path outside a chi router.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}
