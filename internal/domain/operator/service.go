package operator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rpggio/tally/internal/repository"
)

// Service handles user directory operations.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService creates a new operator service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// CreateRequest defines user creation inputs.
type CreateRequest struct {
	ID          string
	Name        string
	Email       string
	Permissions []Permission
}

// Create registers a user in the directory.
func (s *Service) Create(ctx context.Context, tenantID string, req CreateRequest) (*User, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, ErrInvalidInput
	}
	for _, p := range req.Permissions {
		if p != PermManage && p != PermExecute {
			return nil, fmt.Errorf("%w: unknown permission %q", ErrInvalidInput, p)
		}
	}

	id := req.ID
	if strings.TrimSpace(id) == "" {
		id = uuid.NewString()
	}

	user := &User{
		ID:          id,
		TenantID:    tenantID,
		Name:        req.Name,
		Email:       req.Email,
		Permissions: req.Permissions,
		CreatedAt:   time.Now(),
	}
	if err := s.repo.Create(ctx, tenantID, user); err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}
	return user, nil
}

// Get fetches a user by ID.
func (s *Service) Get(ctx context.Context, tenantID, id string) (*User, error) {
	user, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return user, nil
}

// List returns every user of the tenant.
func (s *Service) List(ctx context.Context, tenantID string) ([]User, error) {
	return s.repo.List(ctx, tenantID)
}

// Authorize fails with ErrForbidden unless the user holds perm.
func (s *Service) Authorize(ctx context.Context, tenantID, userID string, perm Permission) error {
	user, err := s.Get(ctx, tenantID, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrForbidden
		}
		return err
	}
	if !user.Can(perm) {
		return fmt.Errorf("%w: %s requires %s", ErrForbidden, user.ID, perm)
	}
	return nil
}
