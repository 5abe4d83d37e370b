package sqlite

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/rpggio/tally/internal/repository"
)

// APIKeyRepository stores hashed bearer tokens bound to a tenant and user
type APIKeyRepository struct {
	db *DB
}

// NewAPIKeyRepository creates a new APIKeyRepository
func NewAPIKeyRepository(db *DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

// Create stores token for the given user. An empty token generates one.
func (r *APIKeyRepository) Create(ctx context.Context, tenantID, userID, token, description string) (string, error) {
	if token == "" {
		buf := make([]byte, 24)
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to generate token: %w", err)
		}
		token = hex.EncodeToString(buf)
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO api_keys (key_hash, tenant_id, user_id, created_at, description)
		VALUES (?, ?, ?, ?, ?)
	`, HashToken(token), tenantID, userID, time.Now(), description)
	if err != nil {
		if isUniqueViolation(err) {
			return "", repository.ErrConflict
		}
		return "", fmt.Errorf("failed to create api key: %w", err)
	}
	return token, nil
}

// Resolve returns the tenant and user a token belongs to
func (r *APIKeyRepository) Resolve(ctx context.Context, token string) (string, string, error) {
	hash := HashToken(token)
	var tenantID, userID string
	err := r.db.QueryRowContext(ctx,
		`SELECT tenant_id, user_id FROM api_keys WHERE key_hash = ?`, hash,
	).Scan(&tenantID, &userID)
	if err == sql.ErrNoRows {
		return "", "", repository.ErrNotFound
	}
	if err != nil {
		return "", "", fmt.Errorf("failed to resolve api key: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, `UPDATE api_keys SET last_used = ? WHERE key_hash = ?`, time.Now(), hash); err != nil {
		return "", "", fmt.Errorf("failed to touch api key: %w", err)
	}
	return tenantID, userID, nil
}

// HashToken returns the stored form of a bearer token
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
