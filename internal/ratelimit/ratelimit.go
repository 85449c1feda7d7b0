// Package ratelimit throttles event intake per authenticated supplier with
// token buckets, falling back to the client IP for anonymous callers.
package ratelimit

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"movetrack/pkg/platform/httputil"
	"movetrack/pkg/requestcontext"
)

const defaultIdleTTL = 10 * time.Minute

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter hands out one token bucket per caller key. Buckets idle for longer
// than the idle TTL are dropped on the next sweep.
type Limiter struct {
	perSecond rate.Limit
	burst     int
	idleTTL   time.Duration
	now       func() time.Time
	logger    *slog.Logger

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

type Option func(*Limiter)

func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

func WithIdleTTL(d time.Duration) Option {
	return func(l *Limiter) {
		if d > 0 {
			l.idleTTL = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) { l.logger = logger }
}

// New returns a limiter allowing perSecond requests with the given burst.
// A non-positive rate disables limiting.
func New(perSecond float64, burst int, opts ...Option) *Limiter {
	l := &Limiter{
		perSecond: rate.Limit(perSecond),
		burst:     max(burst, 1),
		idleTTL:   defaultIdleTTL,
		now:       time.Now,
		logger:    slog.Default(),
		buckets:   map[string]*bucket{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Limiter) disabled() bool { return l.perSecond <= 0 }

// Result describes the outcome of one check.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Allow consumes a token for key if one is available.
func (l *Limiter) Allow(key string) Result {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep(now)
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.perSecond, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now

	res := Result{Limit: l.burst}
	r := b.limiter.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		res.RetryAfter = delay
	} else {
		res.Allowed = true
	}
	res.Remaining = max(int(math.Floor(b.limiter.TokensAt(now))), 0)
	return res
}

func (l *Limiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.idleTTL {
		return
	}
	l.lastSweep = now
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.idleTTL {
			delete(l.buckets, key)
		}
	}
}

func (l *Limiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Middleware rejects over-limit callers with 429 and sets the
// X-RateLimit-* headers on every response.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l.disabled() {
			next.ServeHTTP(w, r)
			return
		}
		ctx := r.Context()
		key := "ip:" + requestcontext.ClientIP(ctx)
		if supplier := requestcontext.SupplierID(ctx); !supplier.IsNil() {
			key = "supplier:" + supplier.String()
		}

		res := l.Allow(key)
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		if !res.Allowed {
			retry := int(math.Ceil(res.RetryAfter.Seconds()))
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			l.logger.WarnContext(ctx, "intake rate limit exceeded",
				"key", key,
				"retry_after_s", retry,
				"request_id", requestcontext.RequestID(ctx),
			)
			httputil.WriteJSON(w, http.StatusTooManyRequests, map[string]any{
				"error":             "rate_limit_exceeded",
				"error_description": "too many requests, retry later",
				"retry_after":       retry,
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}
