package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rpggio/tally/internal/domain/inventory"
	"github.com/rpggio/tally/internal/repository"
)

// ItemRepository implements inventory.ItemRepository for SQLite
type ItemRepository struct {
	q querier
}

const itemColumns = `
	id, tenant_id, session_id, asset_id, location_id, status,
	scanned_at, scanned_by, task_id, condition, created_at`

// CreateBatch inserts items in the caller's transaction
func (r *ItemRepository) CreateBatch(ctx context.Context, tenantID string, items []inventory.Item) error {
	for i := range items {
		if err := r.insert(ctx, tenantID, &items[i], false); err != nil {
			return err
		}
	}
	return nil
}

func (r *ItemRepository) insert(ctx context.Context, tenantID string, item *inventory.Item, ignoreConflict bool) error {
	if item.ID == "" {
		return repository.ErrInvalidInput
	}
	query := `INSERT INTO inventory_items (` + itemColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if ignoreConflict {
		query += ` ON CONFLICT(session_id, asset_id) DO NOTHING`
	}

	result, err := r.q.ExecContext(ctx, query,
		item.ID,
		tenantID,
		item.SessionID,
		item.AssetID,
		item.LocationID,
		item.Status,
		item.ScannedAt,
		item.ScannedBy,
		item.TaskID,
		item.Condition,
		item.CreatedAt,
	)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return repository.ErrDuplicate
		case isForeignKeyViolation(err):
			return repository.ErrForeignKeyViolation
		}
		return fmt.Errorf("failed to insert item: %w", err)
	}
	if ignoreConflict {
		if n, _ := result.RowsAffected(); n == 0 {
			return repository.ErrConflict
		}
	}
	item.TenantID = tenantID
	return nil
}

// InsertOrGet inserts item unless its (session, asset) pair exists
func (r *ItemRepository) InsertOrGet(ctx context.Context, tenantID string, item *inventory.Item) (*inventory.Item, bool, error) {
	err := r.insert(ctx, tenantID, item, true)
	if err == nil {
		created := *item
		return &created, true, nil
	}
	if !errors.Is(err, repository.ErrConflict) && !errors.Is(err, repository.ErrDuplicate) {
		return nil, false, err
	}

	existing, getErr := r.GetByAsset(ctx, tenantID, item.SessionID, item.AssetID)
	if getErr != nil {
		if errors.Is(getErr, repository.ErrNotFound) {
			return nil, false, repository.ErrDuplicate
		}
		return nil, false, getErr
	}
	return existing, false, nil
}

// Get retrieves an item by ID
func (r *ItemRepository) Get(ctx context.Context, tenantID, id string) (*inventory.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM inventory_items WHERE id = ? AND tenant_id = ?`
	return r.getOne(ctx, query, id, tenantID)
}

// GetByAsset retrieves the item of an asset within a session
func (r *ItemRepository) GetByAsset(ctx context.Context, tenantID, sessionID, assetID string) (*inventory.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM inventory_items WHERE session_id = ? AND asset_id = ? AND tenant_id = ?`
	return r.getOne(ctx, query, sessionID, assetID, tenantID)
}

func (r *ItemRepository) getOne(ctx context.Context, query string, args ...any) (*inventory.Item, error) {
	item, err := scanItem(r.q.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return item, nil
}

// List returns a session's items ordered by creation
func (r *ItemRepository) List(ctx context.Context, tenantID, sessionID string, opts inventory.ListItemsOptions) ([]inventory.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM inventory_items WHERE session_id = ? AND tenant_id = ?`
	args := []any{sessionID, tenantID}

	if opts.LocationID != nil {
		query += " AND location_id = ?"
		args = append(args, *opts.LocationID)
	}
	if len(opts.Statuses) > 0 {
		query += " AND status IN (" + placeholders(len(opts.Statuses)) + ")"
		for _, st := range opts.Statuses {
			args = append(args, st)
		}
	}
	query += " ORDER BY created_at, asset_id"

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	items := []inventory.Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating items: %w", err)
	}
	return items, nil
}

// MarkFound moves an expected or missing item to found
func (r *ItemRepository) MarkFound(ctx context.Context, tenantID, id, operatorID string, taskID *string, at time.Time) (bool, error) {
	query := `
		UPDATE inventory_items
		SET status = 'found', scanned_at = ?, scanned_by = ?, task_id = COALESCE(?, task_id)
		WHERE id = ? AND tenant_id = ? AND status IN ('expected', 'missing')
	`
	return r.update(ctx, query, at, operatorID, taskID, id, tenantID)
}

// MarkMissing moves an expected or found item to missing and clears its scan
func (r *ItemRepository) MarkMissing(ctx context.Context, tenantID, id string) (bool, error) {
	query := `
		UPDATE inventory_items
		SET status = 'missing', scanned_at = NULL, scanned_by = NULL
		WHERE id = ? AND tenant_id = ? AND status IN ('expected', 'found')
	`
	return r.update(ctx, query, id, tenantID)
}

// TouchScanned refreshes the scan time without changing status
func (r *ItemRepository) TouchScanned(ctx context.Context, tenantID, id string, at time.Time) error {
	changed, err := r.update(ctx, `UPDATE inventory_items SET scanned_at = ? WHERE id = ? AND tenant_id = ?`, at, id, tenantID)
	if err != nil {
		return err
	}
	if !changed {
		return repository.ErrNotFound
	}
	return nil
}

// SweepExpected moves every expected item of a session to missing
func (r *ItemRepository) SweepExpected(ctx context.Context, tenantID, sessionID string) (int64, error) {
	result, err := r.q.ExecContext(ctx, `
		UPDATE inventory_items SET status = 'missing'
		WHERE session_id = ? AND tenant_id = ? AND status = 'expected'
	`, sessionID, tenantID)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep items: %w", err)
	}
	return result.RowsAffected()
}

// Counts aggregates item statuses of a session
func (r *ItemRepository) Counts(ctx context.Context, tenantID, sessionID string, locationID *string) (inventory.Counters, error) {
	query := `
		SELECT
			COALESCE(SUM(CASE WHEN status != 'unexpected' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN scanned_at IS NOT NULL THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'found' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'missing' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'unexpected' THEN 1 ELSE 0 END), 0)
		FROM inventory_items
		WHERE session_id = ? AND tenant_id = ?
	`
	args := []any{sessionID, tenantID}
	if locationID != nil {
		query += " AND location_id = ?"
		args = append(args, *locationID)
	}

	var c inventory.Counters
	err := r.q.QueryRowContext(ctx, query, args...).Scan(
		&c.Expected, &c.Scanned, &c.Matched, &c.Missing, &c.Unexpected)
	if err != nil {
		return inventory.Counters{}, fmt.Errorf("failed to count items: %w", err)
	}
	return c, nil
}

func (r *ItemRepository) update(ctx context.Context, query string, args ...any) (bool, error) {
	result, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update item: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n == 1, nil
}

func scanItem(row rowScanner) (*inventory.Item, error) {
	var (
		item       inventory.Item
		locationID sql.NullString
		scannedAt  sql.NullTime
		scannedBy  sql.NullString
		taskID     sql.NullString
	)
	err := row.Scan(
		&item.ID,
		&item.TenantID,
		&item.SessionID,
		&item.AssetID,
		&locationID,
		&item.Status,
		&scannedAt,
		&scannedBy,
		&taskID,
		&item.Condition,
		&item.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	item.LocationID = nullString(locationID)
	item.ScannedAt = nullTime(scannedAt)
	item.ScannedBy = nullString(scannedBy)
	item.TaskID = nullString(taskID)
	return &item, nil
}
