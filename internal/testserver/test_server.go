package testserver

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

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

// TestServer runs the full HTTP stack over an in-memory database.
type TestServer struct {
	Server   *httptest.Server
	DB       *sqlite.DB
	TenantID string

	Catalog   *sqlite.CatalogRepository
	Inventory *inventory.Service
	users     *operator.Service
	apiKeys   *sqlite.APIKeyRepository
}

func New(t *testing.T, tenantID string) *TestServer {
	t.Helper()

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())

	catalogRepo := sqlite.NewCatalogRepository(db)
	catalog, err := cache.NewCatalog(catalogRepo, 1000, time.Minute)
	require.NoError(t, err)

	activityRepo := sqlite.NewActivityRepository(db)
	apiKeys := sqlite.NewAPIKeyRepository(db)
	users := operator.NewService(sqlite.NewUserRepository(db), nil)
	activitySvc := activity.NewService(activityRepo, nil)
	inventorySvc := inventory.NewService(sqlite.NewStore(db), catalog, users, activityRepo, notify.NewLogPublisher(nil), nil)

	handler := console.NewHandler(inventorySvc, users, activitySvc)
	mcpServer := mcp.NewServer(mcp.Config{Console: handler, Resolver: apiKeys, AuthEnabled: true})

	server := httptest.NewServer(transport.NewServer(transport.Config{
		Console: handler,
		Device:  inventorySvc,
		Users:   users,
		MCP:     mcp.NewHTTPHandler(mcpServer),
		Auth:    transport.AuthMiddleware(apiKeys),
	}))

	ts := &TestServer{
		Server:    server,
		DB:        db,
		TenantID:  tenantID,
		Catalog:   catalogRepo,
		Inventory: inventorySvc,
		users:     users,
		apiKeys:   apiKeys,
	}

	t.Cleanup(func() {
		server.Close()
		catalog.Close()
		_ = db.Close()
	})

	return ts
}

// AddUser registers a user with perms and returns a bearer token for them.
func (ts *TestServer) AddUser(t *testing.T, id, name string, perms ...operator.Permission) string {
	t.Helper()
	ctx := context.Background()
	_, err := ts.users.Create(ctx, ts.TenantID, operator.CreateRequest{ID: id, Name: name, Permissions: perms})
	require.NoError(t, err)
	token, err := ts.apiKeys.Create(ctx, ts.TenantID, id, "", "test")
	require.NoError(t, err)
	return token
}

// AddLocation seeds a catalog location.
func (ts *TestServer) AddLocation(t *testing.T, id, name string) {
	t.Helper()
	require.NoError(t, ts.Catalog.SaveLocation(context.Background(), ts.TenantID, &asset.Location{ID: id, Name: name}))
}

// AddAsset seeds a catalog asset.
func (ts *TestServer) AddAsset(t *testing.T, a asset.Asset) {
	t.Helper()
	require.NoError(t, ts.Catalog.SaveAsset(context.Background(), ts.TenantID, &a))
}
