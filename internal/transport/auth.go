package transport

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rpggio/tally/internal/apierr"
)

// ErrUnauthorized indicates invalid or missing credentials.
var ErrUnauthorized = errors.New("unauthorized")

// Principal is the authenticated tenant and user of a request.
type Principal struct {
	TenantID string
	UserID   string
}

type principalKey struct{}

// PrincipalResolver resolves a bearer token to its tenant and user.
type PrincipalResolver interface {
	Resolve(ctx context.Context, token string) (tenantID, userID string, err error)
}

// WithPrincipal returns a context carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the principal from context, if present.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok && p.TenantID != "" && p.UserID != ""
}

// AuthMiddleware enforces bearer token authentication.
func AuthMiddleware(resolver PrincipalResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			if token == "" {
				writeAPIError(w, apierr.New(apierr.CodeUnauthorized, "missing bearer token"))
				return
			}

			tenantID, userID, err := resolver.Resolve(r.Context(), token)
			if err != nil || tenantID == "" || userID == "" {
				writeAPIError(w, apierr.New(apierr.CodeUnauthorized, "invalid bearer token"))
				return
			}

			ctx := WithPrincipal(r.Context(), Principal{TenantID: tenantID, UserID: userID})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// StaticPrincipal attaches a fixed principal to every request. It stands in
// for AuthMiddleware when authentication is disabled.
func StaticPrincipal(p Principal) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}
