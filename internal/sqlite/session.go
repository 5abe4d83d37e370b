package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rpggio/tally/internal/domain/asset"
	"github.com/rpggio/tally/internal/domain/inventory"
	"github.com/rpggio/tally/internal/repository"
)

// SessionRepository implements inventory.SessionRepository for SQLite
type SessionRepository struct {
	q querier
}

// NewSessionRepository creates a new SessionRepository
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{q: db.DB}
}

const sessionColumns = `
	id, tenant_id, name, scope_type, scope_ids, status, notes, created_by,
	created_at, started_at, completed_at, cancelled_at,
	total_expected, total_scanned, total_matched, total_missing, total_unexpected`

// Create creates a new session
func (r *SessionRepository) Create(ctx context.Context, tenantID string, sess *inventory.Session) error {
	ids := sess.Scope.IDs
	if ids == nil {
		ids = []string{}
	}
	scopeIDs, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("failed to encode scope: %w", err)
	}

	query := `
		INSERT INTO inventory_sessions (
			id, tenant_id, name, scope_type, scope_ids, status, notes, created_by, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.q.ExecContext(ctx, query,
		sess.ID,
		tenantID,
		sess.Name,
		sess.Scope.Type,
		string(scopeIDs),
		sess.Status,
		sess.Notes,
		sess.CreatedBy,
		sess.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("failed to create session: %w", err)
	}
	sess.TenantID = tenantID
	return nil
}

// Get retrieves a session by ID
func (r *SessionRepository) Get(ctx context.Context, tenantID, id string) (*inventory.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM inventory_sessions WHERE id = ? AND tenant_id = ?`
	sess, err := scanSession(r.q.QueryRowContext(ctx, query, id, tenantID))
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return sess, nil
}

// List returns sessions newest first
func (r *SessionRepository) List(ctx context.Context, tenantID string, opts inventory.ListSessionsOptions) ([]inventory.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM inventory_sessions WHERE tenant_id = ?`
	args := []any{tenantID}

	if len(opts.Statuses) > 0 {
		query += " AND status IN (" + placeholders(len(opts.Statuses)) + ")"
		for _, st := range opts.Statuses {
			args = append(args, st)
		}
	}
	query += " ORDER BY created_at DESC, id"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
		if opts.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, opts.Offset)
		}
	}

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []inventory.Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, *sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}
	return sessions, nil
}

// TransitionStatus moves a session between statuses when its current status
// is one of from
func (r *SessionRepository) TransitionStatus(ctx context.Context, tenantID, id string, from []inventory.SessionStatus, to inventory.SessionStatus, at time.Time) (bool, error) {
	if len(from) == 0 {
		return false, repository.ErrInvalidInput
	}

	stamp := ""
	switch to {
	case inventory.StatusInProgress:
		stamp = ", started_at = ?"
	case inventory.StatusCompleted:
		stamp = ", completed_at = ?"
	case inventory.StatusCancelled:
		stamp = ", cancelled_at = ?"
	}

	query := `UPDATE inventory_sessions SET status = ?` + stamp +
		` WHERE id = ? AND tenant_id = ? AND status IN (` + placeholders(len(from)) + `)`
	args := []any{to}
	if stamp != "" {
		args = append(args, at)
	}
	args = append(args, id, tenantID)
	for _, st := range from {
		args = append(args, st)
	}

	result, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to transition session: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n == 1, nil
}

// UpdateCounters overwrites the cached counters of a session
func (r *SessionRepository) UpdateCounters(ctx context.Context, tenantID, id string, c inventory.Counters) error {
	query := `
		UPDATE inventory_sessions
		SET total_expected = ?, total_scanned = ?, total_matched = ?, total_missing = ?, total_unexpected = ?
		WHERE id = ? AND tenant_id = ?
	`
	result, err := r.q.ExecContext(ctx, query,
		c.Expected, c.Scanned, c.Matched, c.Missing, c.Unexpected, id, tenantID)
	if err != nil {
		return fmt.Errorf("failed to update counters: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*inventory.Session, error) {
	var (
		sess        inventory.Session
		scopeIDs    string
		startedAt   sql.NullTime
		completedAt sql.NullTime
		cancelledAt sql.NullTime
	)
	err := row.Scan(
		&sess.ID,
		&sess.TenantID,
		&sess.Name,
		&sess.Scope.Type,
		&scopeIDs,
		&sess.Status,
		&sess.Notes,
		&sess.CreatedBy,
		&sess.CreatedAt,
		&startedAt,
		&completedAt,
		&cancelledAt,
		&sess.Counters.Expected,
		&sess.Counters.Scanned,
		&sess.Counters.Matched,
		&sess.Counters.Missing,
		&sess.Counters.Unexpected,
	)
	if err != nil {
		return nil, err
	}

	var ids []string
	if err := json.Unmarshal([]byte(scopeIDs), &ids); err != nil {
		return nil, fmt.Errorf("failed to decode scope: %w", err)
	}
	if len(ids) > 0 {
		sess.Scope = asset.Scope{Type: sess.Scope.Type, IDs: ids}
	}
	sess.StartedAt = nullTime(startedAt)
	sess.CompletedAt = nullTime(completedAt)
	sess.CancelledAt = nullTime(cancelledAt)
	return &sess, nil
}
