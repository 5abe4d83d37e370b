package operator

import "context"

// Repository provides persistence for the user directory.
type Repository interface {
	Create(ctx context.Context, tenantID string, user *User) error
	Get(ctx context.Context, tenantID, id string) (*User, error)
	List(ctx context.Context, tenantID string) ([]User, error)
}
