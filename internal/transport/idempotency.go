package transport

import (
	"context"
	"net/http"
	"strings"
)

// IdempotencyHeader carries a client-chosen key that makes a scan request safe
// to retry.
const IdempotencyHeader = "Idempotency-Key"

type idempotencyKey struct{}

// IdempotencyKeyFromContext returns the request's idempotency key, if present.
func IdempotencyKeyFromContext(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(idempotencyKey{}).(string)
	return key, ok
}

// IdempotencyMiddleware extracts Idempotency-Key and stores it in context.
func IdempotencyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
		if key != "" {
			ctx := context.WithValue(r.Context(), idempotencyKey{}, key)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}
		next.ServeHTTP(w, r)
	})
}
