package integration_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/rpggio/tally/internal/cache"
	"github.com/rpggio/tally/internal/domain/asset"
	"github.com/rpggio/tally/internal/domain/inventory"
	"github.com/rpggio/tally/internal/domain/operator"
	"github.com/rpggio/tally/internal/sqlite"
)

const tenant = "tenant1"

// newInstance opens its own handle on the database file, as a second server
// process would. Instances share no in-process locks.
func newInstance(t *testing.T, path string) *inventory.Service {
	t.Helper()
	db, err := sqlite.New(path)
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())
	t.Cleanup(func() { _ = db.Close() })

	catalog, err := cache.NewCatalog(sqlite.NewCatalogRepository(db), 100, time.Minute)
	require.NoError(t, err)
	t.Cleanup(catalog.Close)

	users := operator.NewService(sqlite.NewUserRepository(db), nil)
	return inventory.NewService(sqlite.NewStore(db), catalog, users, sqlite.NewActivityRepository(db), nil, nil)
}

func seed(t *testing.T, path string) {
	t.Helper()
	ctx := context.Background()
	db, err := sqlite.New(path)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.RunMigrations())

	catalog := sqlite.NewCatalogRepository(db)
	loc := "A"
	require.NoError(t, catalog.SaveLocation(ctx, tenant, &asset.Location{ID: loc, Name: "Aisle A"}))
	for i := 0; i < 3; i++ {
		require.NoError(t, catalog.SaveAsset(ctx, tenant, &asset.Asset{
			ID:         fmt.Sprintf("a%d", i),
			Code:       fmt.Sprintf("A-%d", i),
			Name:       fmt.Sprintf("Desk %d", i),
			LocationID: &loc,
		}))
	}
}

func TestSharedDB_InstancesAgreeOnState(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tally.db")
	seed(t, path)

	east := newInstance(t, path)
	west := newInstance(t, path)

	sess, _, err := east.CreateSession(ctx, tenant, inventory.CreateSessionRequest{
		Name:      "Two floors",
		Scope:     asset.Scope{Type: asset.ScopeAll},
		CreatedBy: "manager",
	})
	require.NoError(t, err)

	// A start replayed through the other instance cannot materialize twice.
	_, err = east.StartSession(ctx, tenant, sess.ID, "manager")
	require.NoError(t, err)
	_, err = west.StartSession(ctx, tenant, sess.ID, "manager")
	require.ErrorIs(t, err, inventory.ErrInvalidTransition)

	out, err := east.Scan(ctx, tenant, inventory.ScanRequest{SessionID: sess.ID, OperatorID: "op1", Code: "A-0"})
	require.NoError(t, err)
	require.Equal(t, inventory.ResultNewlyFound, out.Result)

	out, err = west.Scan(ctx, tenant, inventory.ScanRequest{SessionID: sess.ID, OperatorID: "op2", Code: "A-0"})
	require.NoError(t, err)
	require.Equal(t, inventory.ResultAlreadyFound, out.Result)

	// Client event ids are honoured across instances.
	first, err := west.Scan(ctx, tenant, inventory.ScanRequest{SessionID: sess.ID, OperatorID: "op2", Code: "A-1", ClientEventID: "evt-1"})
	require.NoError(t, err)
	require.False(t, first.Duplicate)
	again, err := east.Scan(ctx, tenant, inventory.ScanRequest{SessionID: sess.ID, OperatorID: "op2", Code: "A-1", ClientEventID: "evt-1"})
	require.NoError(t, err)
	require.True(t, again.Duplicate)
	require.Equal(t, first.Item.ID, again.Item.ID)

	done, err := west.CompleteSession(ctx, tenant, sess.ID, "manager")
	require.NoError(t, err)
	require.Equal(t, inventory.Counters{Expected: 3, Scanned: 2, Matched: 2, Missing: 1}, done.Counters)

	_, err = east.Scan(ctx, tenant, inventory.ScanRequest{SessionID: sess.ID, OperatorID: "op1", Code: "A-2"})
	require.ErrorIs(t, err, inventory.ErrInvalidTransition)

	got, err := east.GetSession(ctx, tenant, sess.ID)
	require.NoError(t, err)
	require.Equal(t, done.Counters, got.Counters)
}

func TestSharedDB_RacingScansAcrossInstances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tally.db")
	seed(t, path)

	east := newInstance(t, path)
	west := newInstance(t, path)
	instances := []*inventory.Service{east, west, east, west}

	sess, _, err := east.CreateSession(ctx, tenant, inventory.CreateSessionRequest{
		Name:      "Racing floors",
		Scope:     asset.Scope{Type: asset.ScopeAll},
		CreatedBy: "manager",
	})
	require.NoError(t, err)
	_, err = west.StartSession(ctx, tenant, sess.ID, "manager")
	require.NoError(t, err)

	for round := 0; round < 3; round++ {
		code := fmt.Sprintf("A-%d", round)
		results := make([]inventory.ScanResult, len(instances))
		g, gctx := errgroup.WithContext(ctx)
		for i, svc := range instances {
			g.Go(func() error {
				out, err := svc.Scan(gctx, tenant, inventory.ScanRequest{
					SessionID: sess.ID, OperatorID: fmt.Sprintf("op%d", i), Code: code,
				})
				if err != nil {
					return fmt.Errorf("scan %d of %s: %w", i, code, err)
				}
				results[i] = out.Result
				return nil
			})
		}
		require.NoError(t, g.Wait())

		newly := 0
		for _, r := range results {
			if r == inventory.ResultNewlyFound {
				newly++
			} else {
				require.Equal(t, inventory.ResultAlreadyFound, r, code)
			}
		}
		require.Equal(t, 1, newly, code)
	}

	got, err := west.GetSession(ctx, tenant, sess.ID)
	require.NoError(t, err)
	require.Equal(t, inventory.Counters{Expected: 3, Scanned: 3, Matched: 3}, got.Counters)
}
