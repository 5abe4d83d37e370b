package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/rpggio/tally/internal/domain/asset"
	"github.com/rpggio/tally/internal/repository"
)

const tagSeparator = "\x1f"

// CatalogRepository implements asset.Catalog for SQLite. The write methods
// are used by catalog imports and fixtures; the engine only reads.
type CatalogRepository struct {
	db *DB
}

// NewCatalogRepository creates a new CatalogRepository
func NewCatalogRepository(db *DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

const assetColumns = `
	a.id, a.tenant_id, a.code, a.barcode, a.name, a.location_id, a.category_id, a.department_id, a.status,
	(SELECT group_concat(t.tag, char(31)) FROM asset_tags t WHERE t.asset_id = a.id)`

// SaveLocation inserts or renames a location
func (r *CatalogRepository) SaveLocation(ctx context.Context, tenantID string, loc *asset.Location) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO locations (id, tenant_id, name) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name
	`, loc.ID, tenantID, loc.Name)
	if err != nil {
		return fmt.Errorf("failed to save location: %w", err)
	}
	loc.TenantID = tenantID
	return nil
}

// SaveAsset inserts or replaces an asset and its tags
func (r *CatalogRepository) SaveAsset(ctx context.Context, tenantID string, a *asset.Asset) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	status := a.Status
	if status == "" {
		status = "active"
	}
	var barcode any
	if a.Barcode != "" {
		barcode = a.Barcode
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO assets (id, tenant_id, code, barcode, name, location_id, category_id, department_id, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			code = excluded.code, barcode = excluded.barcode, name = excluded.name,
			location_id = excluded.location_id, category_id = excluded.category_id,
			department_id = excluded.department_id, status = excluded.status
	`, a.ID, tenantID, a.Code, barcode, a.Name, a.LocationID, a.CategoryID, a.DepartmentID, status)
	if err != nil {
		return fmt.Errorf("failed to save asset: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM asset_tags WHERE asset_id = ?`, a.ID); err != nil {
		return fmt.Errorf("failed to clear asset tags: %w", err)
	}
	for _, tag := range a.Tags {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO asset_tags (asset_id, tag) VALUES (?, ?)`, a.ID, tag); err != nil {
			return fmt.Errorf("failed to save asset tag: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit asset: %w", err)
	}
	a.TenantID = tenantID
	a.Status = status
	return nil
}

// Get retrieves an asset by ID
func (r *CatalogRepository) Get(ctx context.Context, tenantID, id string) (*asset.Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM assets a WHERE a.id = ? AND a.tenant_id = ?`
	return r.getOne(ctx, query, id, tenantID)
}

// FindByIdentifier returns the lowest-id asset whose field equals value
func (r *CatalogRepository) FindByIdentifier(ctx context.Context, tenantID string, field asset.IdentifierField, value string) (*asset.Asset, error) {
	var query string
	switch field {
	case asset.FieldBarcode:
		query = `SELECT ` + assetColumns + ` FROM assets a WHERE a.tenant_id = ? AND a.barcode = ? ORDER BY a.id LIMIT 1`
	case asset.FieldCode:
		query = `SELECT ` + assetColumns + ` FROM assets a WHERE a.tenant_id = ? AND a.code = ? ORDER BY a.id LIMIT 1`
	case asset.FieldTag:
		query = `SELECT ` + assetColumns + ` FROM assets a
			WHERE a.tenant_id = ? AND EXISTS (SELECT 1 FROM asset_tags t WHERE t.asset_id = a.id AND t.tag = ?)
			ORDER BY a.id LIMIT 1`
	default:
		return nil, repository.ErrInvalidInput
	}
	return r.getOne(ctx, query, tenantID, value)
}

// List returns the assets matching a scope, ordered by ID
func (r *CatalogRepository) List(ctx context.Context, tenantID string, scope asset.Scope) ([]asset.Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM assets a WHERE a.tenant_id = ?`
	args := []any{tenantID}

	var column string
	switch scope.Type {
	case asset.ScopeAll, "":
	case asset.ScopeLocation:
		column = "a.location_id"
	case asset.ScopeCategory:
		column = "a.category_id"
	case asset.ScopeDepartment:
		column = "a.department_id"
	default:
		return nil, repository.ErrInvalidInput
	}
	if column != "" {
		if len(scope.IDs) == 0 {
			return []asset.Asset{}, nil
		}
		query += " AND " + column + " IN (" + placeholders(len(scope.IDs)) + ")"
		for _, id := range scope.IDs {
			args = append(args, id)
		}
	}
	query += " ORDER BY a.id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	defer rows.Close()

	assets := []asset.Asset{}
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan asset: %w", err)
		}
		assets = append(assets, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating assets: %w", err)
	}
	return assets, nil
}

// GetLocation retrieves a location by ID
func (r *CatalogRepository) GetLocation(ctx context.Context, tenantID, id string) (*asset.Location, error) {
	var loc asset.Location
	err := r.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, name FROM locations WHERE id = ? AND tenant_id = ?`, id, tenantID,
	).Scan(&loc.ID, &loc.TenantID, &loc.Name)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get location: %w", err)
	}
	return &loc, nil
}

func (r *CatalogRepository) getOne(ctx context.Context, query string, args ...any) (*asset.Asset, error) {
	a, err := scanAsset(r.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get asset: %w", err)
	}
	return a, nil
}

func scanAsset(row rowScanner) (*asset.Asset, error) {
	var (
		a            asset.Asset
		barcode      sql.NullString
		locationID   sql.NullString
		categoryID   sql.NullString
		departmentID sql.NullString
		tags         sql.NullString
	)
	err := row.Scan(
		&a.ID,
		&a.TenantID,
		&a.Code,
		&barcode,
		&a.Name,
		&locationID,
		&categoryID,
		&departmentID,
		&a.Status,
		&tags,
	)
	if err != nil {
		return nil, err
	}
	a.Barcode = barcode.String
	a.LocationID = nullString(locationID)
	a.CategoryID = nullString(categoryID)
	a.DepartmentID = nullString(departmentID)
	if tags.Valid && tags.String != "" {
		a.Tags = strings.Split(tags.String, tagSeparator)
		sort.Strings(a.Tags)
	}
	return &a, nil
}
