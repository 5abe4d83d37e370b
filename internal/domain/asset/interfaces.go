package asset

import "context"

// Catalog is read-only access to the organization's assets. Lookups that
// match nothing return repository.ErrNotFound.
type Catalog interface {
	Get(ctx context.Context, tenantID, id string) (*Asset, error)
	FindByIdentifier(ctx context.Context, tenantID string, field IdentifierField, value string) (*Asset, error)
	List(ctx context.Context, tenantID string, scope Scope) ([]Asset, error)
	GetLocation(ctx context.Context, tenantID, id string) (*Location, error)
}
