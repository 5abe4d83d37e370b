package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rpggio/tally/internal/domain/inventory"
	"github.com/rpggio/tally/internal/repository"
)

// TaskRepository implements inventory.TaskRepository for SQLite
type TaskRepository struct {
	q querier
}

const taskColumns = `
	t.id, t.tenant_id, t.session_id, t.assignee_id, t.location_id, t.status, t.notes,
	t.created_at, t.started_at, t.completed_at`

// Create creates a new task
func (r *TaskRepository) Create(ctx context.Context, tenantID string, task *inventory.Task) error {
	query := `
		INSERT INTO inventory_tasks (
			id, tenant_id, session_id, assignee_id, location_id, status, notes, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.q.ExecContext(ctx, query,
		task.ID,
		tenantID,
		task.SessionID,
		task.AssigneeID,
		task.LocationID,
		task.Status,
		task.Notes,
		task.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return repository.ErrForeignKeyViolation
		}
		return fmt.Errorf("failed to create task: %w", err)
	}
	task.TenantID = tenantID
	return nil
}

// Get retrieves a task by ID
func (r *TaskRepository) Get(ctx context.Context, tenantID, id string) (*inventory.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM inventory_tasks t WHERE t.id = ? AND t.tenant_id = ?`
	task, err := scanTask(r.q.QueryRowContext(ctx, query, id, tenantID))
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

// ListBySession returns the tasks of a session in creation order
func (r *TaskRepository) ListBySession(ctx context.Context, tenantID, sessionID string) ([]inventory.Task, error) {
	query := `SELECT ` + taskColumns + `
		FROM inventory_tasks t
		WHERE t.session_id = ? AND t.tenant_id = ?
		ORDER BY t.created_at, t.id`
	return r.list(ctx, query, sessionID, tenantID)
}

// ListAssigned returns the assignee's tasks in running sessions
func (r *TaskRepository) ListAssigned(ctx context.Context, tenantID, assigneeID string) ([]inventory.Task, error) {
	query := `SELECT ` + taskColumns + `
		FROM inventory_tasks t
		JOIN inventory_sessions s ON s.id = t.session_id
		WHERE t.assignee_id = ? AND t.tenant_id = ? AND s.status = 'in_progress'
		ORDER BY t.created_at, t.id`
	return r.list(ctx, query, assigneeID, tenantID)
}

func (r *TaskRepository) list(ctx context.Context, query string, args ...any) ([]inventory.Task, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []inventory.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}
	return tasks, nil
}

// TransitionStatus moves a task to `to` when its status is one of from
func (r *TaskRepository) TransitionStatus(ctx context.Context, tenantID, id string, from []inventory.TaskStatus, to inventory.TaskStatus, at time.Time) (bool, error) {
	if len(from) == 0 {
		return false, repository.ErrInvalidInput
	}

	stamp := ""
	switch to {
	case inventory.TaskInProgress:
		stamp = ", started_at = ?"
	case inventory.TaskCompleted:
		stamp = ", completed_at = ?, started_at = COALESCE(started_at, ?)"
	}

	query := `UPDATE inventory_tasks SET status = ?` + stamp +
		` WHERE id = ? AND tenant_id = ? AND status IN (` + placeholders(len(from)) + `)`
	args := []any{to}
	switch to {
	case inventory.TaskInProgress:
		args = append(args, at)
	case inventory.TaskCompleted:
		args = append(args, at, at)
	}
	args = append(args, id, tenantID)
	for _, st := range from {
		args = append(args, st)
	}

	result, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to transition task: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n == 1, nil
}

// AppendNotes adds a line to the task's notes
func (r *TaskRepository) AppendNotes(ctx context.Context, tenantID, id, notes string) error {
	query := `
		UPDATE inventory_tasks
		SET notes = CASE WHEN notes = '' THEN ? ELSE notes || char(10) || ? END
		WHERE id = ? AND tenant_id = ?
	`
	result, err := r.q.ExecContext(ctx, query, notes, notes, id, tenantID)
	if err != nil {
		return fmt.Errorf("failed to update task notes: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func scanTask(row rowScanner) (*inventory.Task, error) {
	var (
		task        inventory.Task
		locationID  sql.NullString
		startedAt   sql.NullTime
		completedAt sql.NullTime
	)
	err := row.Scan(
		&task.ID,
		&task.TenantID,
		&task.SessionID,
		&task.AssigneeID,
		&locationID,
		&task.Status,
		&task.Notes,
		&task.CreatedAt,
		&startedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}
	task.LocationID = nullString(locationID)
	task.StartedAt = nullTime(startedAt)
	task.CompletedAt = nullTime(completedAt)
	return &task, nil
}
