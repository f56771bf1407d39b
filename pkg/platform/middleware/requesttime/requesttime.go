// Package requesttime provides request-scoped time. Every operation in one
// request sees the same "now", at whole-second resolution in UTC; pass
// timestamps and the mint window are all compared at that granularity.
package requesttime

import (
	"context"
	"net/http"
	"time"
)

type contextKeyRequestTime struct{}

// Middleware captures the time at the start of the request.
func Middleware(next http.Handler) http.Handler {
	return MiddlewareWithClock(time.Now)(next)
}

// MiddlewareWithClock is Middleware with an injectable clock.
func MiddlewareWithClock(clock func() time.Time) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(WithTime(r.Context(), clock())))
		})
	}
}

// Now returns the request-scoped time, falling back to the wall clock for
// non-HTTP callers.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(contextKeyRequestTime{}).(time.Time); ok {
		return t
	}
	return normalize(time.Now())
}

// WithTime pins "now" for a context. Used by tests, the CLI and workers.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, contextKeyRequestTime{}, normalize(t))
}

func normalize(t time.Time) time.Time {
	return t.Truncate(time.Second).UTC()
}
