// Package clock provides a request-scoped "now".
//
// Middleware stamps each request with a single timestamp so every step of an
// operation (lockout checks, token expiry, audit records) agrees on the time.
// Tests inject a fixed time with WithTime.
package clock

import (
	"context"
	"net/http"
	"time"
)

type ctxKey struct{}

// WithTime returns a context whose Now is t.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ctxKey{}, t)
}

// Now returns the time stored on ctx, or the wall clock (UTC) if none.
func Now(ctx context.Context) time.Time {
	if ctx != nil {
		if t, ok := ctx.Value(ctxKey{}).(time.Time); ok {
			return t
		}
	}
	return time.Now().UTC()
}

// Middleware captures the current time once per request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := WithTime(r.Context(), time.Now().UTC())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
