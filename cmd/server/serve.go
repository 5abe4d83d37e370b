package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/rpggio/tally/internal/cache"
	"github.com/rpggio/tally/internal/console"
	"github.com/rpggio/tally/internal/domain/activity"
	"github.com/rpggio/tally/internal/domain/asset"
	"github.com/rpggio/tally/internal/domain/inventory"
	"github.com/rpggio/tally/internal/domain/operator"
	"github.com/rpggio/tally/internal/mcp"
	"github.com/rpggio/tally/internal/notify"
	"github.com/rpggio/tally/internal/sqlite"
	"github.com/rpggio/tally/internal/transport"
)

func newServeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server (console RPC, device API, MCP)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}
}

func newStdioCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stdio",
		Short: "Serve the MCP tools over stdin/stdout as the default user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.stdio(cmd.Context())
		},
	}
}

// stack is the wired service graph shared by both transports.
type stack struct {
	inventory *inventory.Service
	users     *operator.Service
	console   *console.Handler
	apiKeys   *sqlite.APIKeyRepository
}

func (a *app) buildStack(db *sqlite.DB) (*stack, error) {
	var catalog asset.Catalog = sqlite.NewCatalogRepository(db)
	if a.cfg.Cache.Enabled {
		cached, err := cache.NewCatalog(catalog, a.cfg.Cache.MaxItems, a.cfg.Cache.TTL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, closeFunc(cached.Close))
		catalog = cached
	}

	var publisher inventory.EventPublisher = notify.NewLogPublisher(a.logger)
	if a.cfg.NATS.URL != "" {
		nc, err := notify.NewNATSPublisher(a.cfg.NATS.URL, a.cfg.NATS.SubjectPrefix, a.logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, nc)
		publisher = nc
	}

	activityRepo := sqlite.NewActivityRepository(db)
	users := operator.NewService(sqlite.NewUserRepository(db), a.logger)
	inventorySvc := inventory.NewService(sqlite.NewStore(db), catalog, users, activityRepo, publisher, a.logger)

	return &stack{
		inventory: inventorySvc,
		users:     users,
		console:   console.NewHandler(inventorySvc, users, activity.NewService(activityRepo, a.logger)),
		apiKeys:   sqlite.NewAPIKeyRepository(db),
	}, nil
}

func (a *app) serve(ctx context.Context) error {
	db, err := a.openDB()
	if err != nil {
		return err
	}
	s, err := a.buildStack(db)
	if err != nil {
		return err
	}

	mcpServer := mcp.NewServer(mcp.Config{
		Console:       s.console,
		Resolver:      s.apiKeys,
		AuthEnabled:   a.cfg.Auth.Enabled,
		DefaultTenant: a.cfg.Auth.DefaultTenant,
		DefaultUser:   a.cfg.Auth.DefaultUser,
		Logger:        a.logger,
	})

	auth := transport.AuthMiddleware(s.apiKeys)
	if !a.cfg.Auth.Enabled {
		a.logger.Warn("authentication disabled", "tenant", a.cfg.Auth.DefaultTenant, "user", a.cfg.Auth.DefaultUser)
		auth = transport.StaticPrincipal(transport.Principal{
			TenantID: a.cfg.Auth.DefaultTenant,
			UserID:   a.cfg.Auth.DefaultUser,
		})
	}

	router := transport.NewServer(transport.Config{
		Console: s.console,
		Device:  s.inventory,
		Users:   s.users,
		MCP:     mcp.NewHTTPHandler(mcpServer),
		Auth:    auth,
		Logger:  a.logger,
	})

	httpServer := &http.Server{
		Addr:              a.cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	return waitForShutdown(ctx, a.logger, httpServer, errCh)
}

func (a *app) stdio(ctx context.Context) error {
	db, err := a.openDB()
	if err != nil {
		return err
	}
	s, err := a.buildStack(db)
	if err != nil {
		return err
	}

	mcpServer := mcp.NewServer(mcp.Config{
		Console:       s.console,
		DefaultTenant: a.cfg.Auth.DefaultTenant,
		DefaultUser:   a.cfg.Auth.DefaultUser,
		Logger:        a.logger,
	})

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.logger.Info("starting stdio transport", "auth", "disabled", "user", a.cfg.Auth.DefaultUser)
	// Run blocks until stdin closes or the context is canceled.
	if err := mcpServer.Run(ctx, &sdkmcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func waitForShutdown(ctx context.Context, logger *slog.Logger, server *http.Server, errCh <-chan error) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case <-stop:
	case <-ctx.Done():
	case err, ok := <-errCh:
		if ok {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logger.Info("shutting down")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		return err
	}
	return nil
}

type closeFunc func()

func (f closeFunc) Close() error {
	f()
	return nil
}
