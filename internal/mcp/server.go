package mcp

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rpggio/tally/internal/console"
)

// Dispatcher runs a console method for a caller.
type Dispatcher interface {
	Handle(ctx context.Context, caller console.Caller, method string, params json.RawMessage) (any, error)
}

// Config contains server configuration.
type Config struct {
	Console     Dispatcher
	Resolver    Resolver
	AuthEnabled bool
	// DefaultTenant and DefaultUser act for every call when auth is disabled.
	DefaultTenant string
	DefaultUser   string
	Logger        *slog.Logger
}

// NewServer creates and configures an MCP server with all tools and middleware.
func NewServer(cfg Config) *sdkmcp.Server {
	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "tally",
		Version: "0.1.0",
	}, &sdkmcp.ServerOptions{
		Instructions: serverInstructions,
		Logger:       cfg.Logger,
	})

	registerDocResources(server)

	identify := noAuthMiddleware(cfg.DefaultTenant, cfg.DefaultUser)
	if cfg.AuthEnabled {
		identify = authMiddleware(cfg.Resolver)
	}
	// Within one call the first middleware runs outermost.
	server.AddReceivingMiddleware(identify, idempotencyMiddleware(), trafficLoggingMiddleware(cfg.Logger, "inbound"))
	server.AddSendingMiddleware(trafficLoggingMiddleware(cfg.Logger, "outbound"))

	registerTools(server, cfg.Console)

	return server
}

// NewHTTPHandler serves the MCP server over streamable HTTP.
func NewHTTPHandler(server *sdkmcp.Server) http.Handler {
	return sdkmcp.NewStreamableHTTPHandler(
		func(r *http.Request) *sdkmcp.Server { return server },
		&sdkmcp.StreamableHTTPOptions{
			SessionTimeout: 30 * time.Minute,
		},
	)
}
