package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rpggio/tally/internal/domain/asset"
	"github.com/rpggio/tally/internal/repository"
	"github.com/rpggio/tally/internal/repository/mocks"
)

func newTestCatalog(t *testing.T, next asset.Catalog) *Catalog {
	t.Helper()
	c, err := NewCatalog(next, 1000, time.Minute)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestCatalog_CachesHits(t *testing.T) {
	ctx := context.Background()
	next := &mocks.Catalog{}
	c := newTestCatalog(t, next)

	chair := &asset.Asset{ID: "a1", Code: "A-1"}
	next.On("FindByIdentifier", ctx, "tenant1", asset.FieldCode, "A-1").Return(chair, nil).Once()

	got, err := c.FindByIdentifier(ctx, "tenant1", asset.FieldCode, "A-1")
	require.NoError(t, err)
	require.Equal(t, "a1", got.ID)
	c.Wait()

	got, err = c.FindByIdentifier(ctx, "tenant1", asset.FieldCode, "A-1")
	require.NoError(t, err)
	require.Equal(t, "a1", got.ID)
	next.AssertNumberOfCalls(t, "FindByIdentifier", 1)
}

func TestCatalog_DoesNotCacheMisses(t *testing.T) {
	ctx := context.Background()
	next := &mocks.Catalog{}
	c := newTestCatalog(t, next)

	next.On("FindByIdentifier", ctx, "tenant1", asset.FieldBarcode, "X").Return(nil, repository.ErrNotFound)

	for i := 0; i < 2; i++ {
		_, err := c.FindByIdentifier(ctx, "tenant1", asset.FieldBarcode, "X")
		require.ErrorIs(t, err, repository.ErrNotFound)
		c.Wait()
	}
	next.AssertNumberOfCalls(t, "FindByIdentifier", 2)
}

func TestCatalog_TenantsDoNotShareEntries(t *testing.T) {
	ctx := context.Background()
	next := &mocks.Catalog{}
	c := newTestCatalog(t, next)

	next.On("GetLocation", ctx, "tenant1", "A").Return(&asset.Location{ID: "A", Name: "Aisle A"}, nil)
	next.On("GetLocation", ctx, "tenant2", "A").Return(&asset.Location{ID: "A", Name: "Dock A"}, nil)

	loc, err := c.GetLocation(ctx, "tenant1", "A")
	require.NoError(t, err)
	require.Equal(t, "Aisle A", loc.Name)
	c.Wait()

	loc, err = c.GetLocation(ctx, "tenant2", "A")
	require.NoError(t, err)
	require.Equal(t, "Dock A", loc.Name)
}

func TestCatalog_ListPassesThrough(t *testing.T) {
	ctx := context.Background()
	next := &mocks.Catalog{}
	c := newTestCatalog(t, next)

	scope := asset.Scope{Type: asset.ScopeAll}
	next.On("List", ctx, "tenant1", scope).Return([]asset.Asset{{ID: "a1"}}, nil).Twice()

	for i := 0; i < 2; i++ {
		list, err := c.List(ctx, "tenant1", scope)
		require.NoError(t, err)
		require.Len(t, list, 1)
	}
	next.AssertExpectations(t)
	next.AssertNotCalled(t, "Get", mock.Anything, mock.Anything, mock.Anything)
}
