package sqlite

import (
	"context"
	"testing"

	"github.com/rpggio/tally/internal/domain/asset"
	"github.com/rpggio/tally/internal/repository"
	"github.com/stretchr/testify/require"
)

func TestCatalogRepository_FindByIdentifier(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	catalog := NewCatalogRepository(db)

	require.NoError(t, catalog.SaveLocation(ctx, "tenant1", &asset.Location{ID: "A", Name: "Aisle A"}))
	require.NoError(t, catalog.SaveAsset(ctx, "tenant1", &asset.Asset{
		ID: "a2", Code: "C-1", Barcode: "B-1", Name: "Laptop", LocationID: ptr("A"), Tags: []string{"rfid-9", "rfid-1"},
	}))
	require.NoError(t, catalog.SaveAsset(ctx, "tenant1", &asset.Asset{
		ID: "a1", Code: "C-1", Name: "Duplicate code",
	}))

	found, err := catalog.FindByIdentifier(ctx, "tenant1", asset.FieldBarcode, "B-1")
	require.NoError(t, err)
	require.Equal(t, "a2", found.ID)
	require.Equal(t, []string{"rfid-1", "rfid-9"}, found.Tags)

	found, err = catalog.FindByIdentifier(ctx, "tenant1", asset.FieldCode, "C-1")
	require.NoError(t, err)
	require.Equal(t, "a1", found.ID, "ties resolve to the lowest id")

	found, err = catalog.FindByIdentifier(ctx, "tenant1", asset.FieldTag, "rfid-9")
	require.NoError(t, err)
	require.Equal(t, "a2", found.ID)

	_, err = catalog.FindByIdentifier(ctx, "tenant2", asset.FieldBarcode, "B-1")
	require.ErrorIs(t, err, repository.ErrNotFound)

	loc, err := catalog.GetLocation(ctx, "tenant1", "A")
	require.NoError(t, err)
	require.Equal(t, "Aisle A", loc.Name)
}

func TestCatalogRepository_ListScope(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	catalog := NewCatalogRepository(db)

	require.NoError(t, catalog.SaveAsset(ctx, "tenant1", &asset.Asset{ID: "a1", Code: "1", Name: "one", LocationID: ptr("A"), CategoryID: ptr("it")}))
	require.NoError(t, catalog.SaveAsset(ctx, "tenant1", &asset.Asset{ID: "a2", Code: "2", Name: "two", LocationID: ptr("B"), CategoryID: ptr("it")}))
	require.NoError(t, catalog.SaveAsset(ctx, "tenant1", &asset.Asset{ID: "a3", Code: "3", Name: "three", LocationID: ptr("B"), DepartmentID: ptr("ops")}))
	require.NoError(t, catalog.SaveAsset(ctx, "tenant2", &asset.Asset{ID: "x1", Code: "1", Name: "other", LocationID: ptr("A")}))

	all, err := catalog.List(ctx, "tenant1", asset.Scope{Type: asset.ScopeAll})
	require.NoError(t, err)
	require.Len(t, all, 3)

	byLoc, err := catalog.List(ctx, "tenant1", asset.Scope{Type: asset.ScopeLocation, IDs: []string{"B"}})
	require.NoError(t, err)
	require.Len(t, byLoc, 2)

	byCat, err := catalog.List(ctx, "tenant1", asset.Scope{Type: asset.ScopeCategory, IDs: []string{"it"}})
	require.NoError(t, err)
	require.Len(t, byCat, 2)

	byDept, err := catalog.List(ctx, "tenant1", asset.Scope{Type: asset.ScopeDepartment, IDs: []string{"ops"}})
	require.NoError(t, err)
	require.Len(t, byDept, 1)
	require.Equal(t, "a3", byDept[0].ID)

	empty, err := catalog.List(ctx, "tenant1", asset.Scope{Type: asset.ScopeLocation})
	require.NoError(t, err)
	require.Empty(t, empty)
}
