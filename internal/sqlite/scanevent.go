package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rpggio/tally/internal/domain/inventory"
	"github.com/rpggio/tally/internal/repository"
)

// ScanEventRepository implements inventory.ScanEventRepository for SQLite
type ScanEventRepository struct {
	q querier
}

// Record stores a client submission; a reused client event id is a duplicate
func (r *ScanEventRepository) Record(ctx context.Context, tenantID string, ev *inventory.ScanEvent) error {
	query := `
		INSERT INTO scan_events (
			tenant_id, session_id, client_event_id, kind, code, asset_id, item_id,
			task_id, operator_id, result, scanned_at, recorded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.q.ExecContext(ctx, query,
		tenantID,
		ev.SessionID,
		ev.ClientEventID,
		ev.Kind,
		ev.Code,
		ev.AssetID,
		ev.ItemID,
		ev.TaskID,
		ev.OperatorID,
		ev.Result,
		ev.ScannedAt,
		ev.RecordedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		if isForeignKeyViolation(err) {
			return repository.ErrForeignKeyViolation
		}
		return fmt.Errorf("failed to record scan event: %w", err)
	}
	ev.TenantID = tenantID
	return nil
}

// Get retrieves a recorded submission
func (r *ScanEventRepository) Get(ctx context.Context, tenantID, sessionID, clientEventID string) (*inventory.ScanEvent, error) {
	query := `
		SELECT
			tenant_id, session_id, client_event_id, kind, code, asset_id, item_id,
			task_id, operator_id, result, scanned_at, recorded_at
		FROM scan_events
		WHERE session_id = ? AND client_event_id = ? AND tenant_id = ?
	`
	var (
		ev      inventory.ScanEvent
		assetID sql.NullString
		itemID  sql.NullString
		taskID  sql.NullString
	)
	err := r.q.QueryRowContext(ctx, query, sessionID, clientEventID, tenantID).Scan(
		&ev.TenantID,
		&ev.SessionID,
		&ev.ClientEventID,
		&ev.Kind,
		&ev.Code,
		&assetID,
		&itemID,
		&taskID,
		&ev.OperatorID,
		&ev.Result,
		&ev.ScannedAt,
		&ev.RecordedAt,
	)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scan event: %w", err)
	}
	ev.AssetID = nullString(assetID)
	ev.ItemID = nullString(itemID)
	ev.TaskID = nullString(taskID)
	return &ev, nil
}
