package mcp

import (
	"context"
	"fmt"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rpggio/tally/internal/console"
)

type contextKey int

const callerKey contextKey = iota

// getCaller extracts the console caller from context.
func getCaller(ctx context.Context) console.Caller {
	v, _ := ctx.Value(callerKey).(console.Caller)
	return v
}

// Resolver resolves a bearer token to its tenant and user.
type Resolver interface {
	Resolve(ctx context.Context, token string) (tenantID, userID string, err error)
}

// authMiddleware implements bearer token authentication as MCP middleware.
func authMiddleware(resolver Resolver) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			// Skip auth for protocol methods
			if method == "initialize" || method == "ping" || strings.HasPrefix(method, "notifications/") {
				return next(ctx, method, req)
			}

			extra := req.GetExtra()
			if extra == nil || extra.Header == nil {
				return nil, fmt.Errorf("unauthorized: missing headers")
			}

			auth := extra.Header.Get("Authorization")
			token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			if token == "" {
				return nil, fmt.Errorf("unauthorized: missing bearer token")
			}

			tenantID, userID, err := resolver.Resolve(ctx, token)
			if err != nil {
				return nil, fmt.Errorf("unauthorized: %w", err)
			}
			if tenantID == "" || userID == "" {
				return nil, fmt.Errorf("unauthorized: invalid bearer token")
			}

			ctx = context.WithValue(ctx, callerKey, console.Caller{TenantID: tenantID, UserID: userID})
			return next(ctx, method, req)
		}
	}
}

// noAuthMiddleware acts as a fixed user when auth is disabled.
func noAuthMiddleware(tenantID, userID string) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			ctx = context.WithValue(ctx, callerKey, console.Caller{TenantID: tenantID, UserID: userID})
			return next(ctx, method, req)
		}
	}
}

// idempotencyMiddleware copies the Idempotency-Key header onto the caller.
// Headers are only present on the HTTP transport.
func idempotencyMiddleware() sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			if extra := req.GetExtra(); extra != nil && extra.Header != nil {
				if key := strings.TrimSpace(extra.Header.Get("Idempotency-Key")); key != "" {
					caller := getCaller(ctx)
					caller.IdempotencyKey = key
					ctx = context.WithValue(ctx, callerKey, caller)
				}
			}
			return next(ctx, method, req)
		}
	}
}
