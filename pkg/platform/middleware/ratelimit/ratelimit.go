// Package ratelimit throttles requests per caller with token buckets.
package ratelimit

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"memberpass/internal/platform/privacy"
	"memberpass/pkg/platform/middleware/auth"
	"memberpass/pkg/platform/middleware/metadata"
	request "memberpass/pkg/platform/middleware/request"
)

const (
	DefaultIdleTTL  = 3 * time.Minute
	cleanupInterval = time.Minute
)

// Limiter keeps one token bucket per key. Buckets idle for longer than the
// idle TTL are dropped and start full on the next request.
type Limiter struct {
	limit   rate.Limit
	burst   int
	buckets *gocache.Cache
	logger  *slog.Logger
}

func New(perSecond float64, burst int, logger *slog.Logger) *Limiter {
	return &Limiter{
		limit:   rate.Limit(perSecond),
		burst:   burst,
		buckets: gocache.New(DefaultIdleTTL, cleanupInterval),
		logger:  logger,
	}
}

func (l *Limiter) bucket(key string) *rate.Limiter {
	if v, ok := l.buckets.Get(key); ok {
		lim := v.(*rate.Limiter)
		// refresh the idle deadline
		l.buckets.SetDefault(key, lim)
		return lim
	}
	lim := rate.NewLimiter(l.limit, l.burst)
	if err := l.buckets.Add(key, lim, gocache.DefaultExpiration); err != nil {
		// another request created it first
		if v, ok := l.buckets.Get(key); ok {
			return v.(*rate.Limiter)
		}
	}
	return lim
}

// Reserve takes a token for key, returning whether the request may proceed
// and how long until a token is available when it may not.
func (l *Limiter) Reserve(key string, now time.Time) (bool, time.Duration) {
	r := l.bucket(key).ReserveN(now, 1)
	if !r.OK() {
		return false, time.Second
	}
	delay := r.DelayFrom(now)
	if delay == 0 {
		return true, 0
	}
	r.CancelAt(now)
	return false, delay
}

// Key identifies the caller: the authenticated principal, else the client IP.
func Key(r *http.Request) string {
	ctx := r.Context()
	if p := auth.GetPrincipal(ctx); !p.IsNil() {
		return "principal:" + p.String()
	}
	if ip := metadata.GetClientIP(ctx); ip != "" {
		return "ip:" + ip
	}
	return "ip:unknown"
}

// logKey keeps principals and masks client addresses.
func logKey(key string) string {
	if ip, ok := strings.CutPrefix(key, "ip:"); ok {
		return "ip:" + privacy.AnonymizeIP(ip)
	}
	return key
}

func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := Key(r)
		allowed, retryAfter := l.Reserve(key, time.Now())
		if !allowed {
			ctx := r.Context()
			if l.logger != nil {
				l.logger.WarnContext(ctx, "rate limit exceeded",
					"key", logKey(key),
					"retry_after", retryAfter,
					"request_id", request.GetRequestID(ctx),
				)
			}
			seconds := int(math.Ceil(retryAfter.Seconds()))
			w.Header().Set("Retry-After", strconv.Itoa(max(seconds, 1)))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate_limited","error_description":"too many requests"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}
