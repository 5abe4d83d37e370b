package transport

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rpggio/tally/internal/apierr"
	"github.com/rpggio/tally/internal/console"
)

// RPCHandler handles console method dispatch.
type RPCHandler interface {
	Handle(ctx context.Context, caller console.Caller, method string, params json.RawMessage) (any, error)
}

// Config wires the HTTP surfaces. Device and MCP are optional.
type Config struct {
	Console RPCHandler
	Device  DeviceService
	Users   console.Authorizer
	MCP     http.Handler
	// Auth establishes the Principal; use AuthMiddleware or StaticPrincipal.
	Auth   func(http.Handler) http.Handler
	Logger *slog.Logger
}

// Server wires HTTP handlers.
type Server struct {
	console RPCHandler
	device  DeviceService
	users   console.Authorizer
	logger  *slog.Logger
}

// NewServer creates an HTTP server router with middleware.
func NewServer(cfg Config) *chi.Mux {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	srv := &Server{console: cfg.Console, device: cfg.Device, users: cfg.Users, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/health", srv.handleHealth)

	r.Group(func(r chi.Router) {
		if cfg.Auth != nil {
			r.Use(cfg.Auth)
		}
		r.Use(requirePrincipal)
		r.Use(IdempotencyMiddleware)

		r.Post("/rpc", srv.handleRPC)
		if cfg.Device != nil {
			r.Route("/api/v1", srv.deviceRoutes)
		}
		if cfg.MCP != nil {
			r.Handle("/mcp", cfg.MCP)
			r.Handle("/mcp/*", cfg.MCP)
		}
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	req, err := ParseRequest(r.Body)
	if err != nil {
		if errors.Is(err, errParse) {
			WriteError(w, nil, ErrParseCode, "parse error", nil)
			return
		}
		WriteError(w, req.ID, ErrInvalidReq, "invalid request", nil)
		return
	}

	caller := CallerFromContext(r.Context())
	result, err := s.console.Handle(r.Context(), caller, req.Method, req.Params)
	if err != nil {
		if apierr.Map(err).Code == apierr.CodeInternal {
			s.logger.Error("rpc failed", "method", req.Method, "error", err)
		}
		WriteDispatchError(w, req.ID, err)
		return
	}

	WriteResult(w, req.ID, result)
}

// CallerFromContext builds the console caller from the request context.
func CallerFromContext(ctx context.Context) console.Caller {
	p, _ := PrincipalFromContext(ctx)
	key, _ := IdempotencyKeyFromContext(ctx)
	return console.Caller{TenantID: p.TenantID, UserID: p.UserID, IdempotencyKey: key}
}

func requirePrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := PrincipalFromContext(r.Context()); !ok {
			writeAPIError(w, apierr.New(apierr.CodeUnauthorized, "missing principal"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

type errorBody struct {
	Error *apierr.APIError `json:"error"`
}

func writeAPIError(w http.ResponseWriter, e *apierr.APIError) {
	writeJSON(w, e.Status, errorBody{Error: e})
}
