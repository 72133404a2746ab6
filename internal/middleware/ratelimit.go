package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/dukerupert/reunite/internal/metrics"
)

// Limiter keeps one token bucket per key. A bucket holds burst tokens and
// refills completely over window.
type Limiter struct {
	mu      sync.Mutex
	burst   int
	window  time.Duration
	per     time.Duration
	buckets map[string]*bucket
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

func NewLimiter(burst int, window time.Duration) *Limiter {
	return &Limiter{
		burst:   burst,
		window:  window,
		per:     window / time.Duration(burst),
		buckets: make(map[string]*bucket),
	}
}

func (l *Limiter) Allow(key string) bool {
	return l.allowAt(key, time.Now())
}

func (l *Limiter) allowAt(key string, now time.Time) bool {
	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(rate.Every(l.per), l.burst)}
		l.buckets[key] = b
	}
	b.seen = now
	l.mu.Unlock()
	return b.lim.AllowN(now, 1)
}

// Prune drops buckets untouched for a full window. They are full again by
// then, so a fresh bucket behaves the same.
func (l *Limiter) Prune() int {
	return l.pruneAt(time.Now())
}

func (l *Limiter) pruneAt(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for key, b := range l.buckets {
		if now.Sub(b.seen) >= l.window {
			delete(l.buckets, key)
			n++
		}
	}
	return n
}

// RetryAfter is how long a drained bucket waits for its next token.
func (l *Limiter) RetryAfter() time.Duration {
	return l.per
}

// RateLimit budgets requests per scope and client address. clientIP
// decides which address a request counts against.
func RateLimit(l *Limiter, scope string, clientIP func(*http.Request) string, m *metrics.Metrics) func(http.Handler) http.Handler {
	retry := strconv.Itoa(max(1, int(math.Ceil(l.RetryAfter().Seconds()))))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow(scope + " " + clientIP(r)) {
				m.RateLimited(scope)
				w.Header().Set("Retry-After", retry)
				http.Error(w, "Too many requests. Please try again later.", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
