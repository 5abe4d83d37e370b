package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rpggio/tally/internal/domain/operator"
	"github.com/rpggio/tally/internal/repository"
)

// UserRepository implements operator.Repository for SQLite
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, tenantID string, user *operator.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, tenant_id, name, email, permissions, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, user.ID, tenantID, user.Name, user.Email, joinPermissions(user.Permissions), user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	user.TenantID = tenantID
	return nil
}

// Get retrieves a user by ID
func (r *UserRepository) Get(ctx context.Context, tenantID, id string) (*operator.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, name, email, permissions, created_at
		FROM users WHERE id = ? AND tenant_id = ?
	`, id, tenantID))
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// List returns every user of a tenant ordered by name
func (r *UserRepository) List(ctx context.Context, tenantID string) ([]operator.User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tenant_id, name, email, permissions, created_at
		FROM users WHERE tenant_id = ? ORDER BY name, id
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := []operator.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}

func scanUser(row rowScanner) (*operator.User, error) {
	var (
		user  operator.User
		email sql.NullString
		perms string
	)
	if err := row.Scan(&user.ID, &user.TenantID, &user.Name, &email, &perms, &user.CreatedAt); err != nil {
		return nil, err
	}
	user.Email = email.String
	user.Permissions = splitPermissions(perms)
	return &user, nil
}

func joinPermissions(perms []operator.Permission) string {
	parts := make([]string, 0, len(perms))
	for _, p := range perms {
		parts = append(parts, string(p))
	}
	return strings.Join(parts, ",")
}

func splitPermissions(s string) []operator.Permission {
	perms := []operator.Permission{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			perms = append(perms, operator.Permission(part))
		}
	}
	return perms
}
