package asset

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rpggio/tally/internal/repository"
)

// Resolver computes expected asset sets and resolves scan codes against a
// catalog.
type Resolver struct {
	catalog Catalog
}

// NewResolver creates a resolver over catalog.
func NewResolver(catalog Catalog) *Resolver {
	return &Resolver{catalog: catalog}
}

// Resolve returns the assets a session with the given scope expects to find.
// A filtered scope with no ids yields an empty set.
func (r *Resolver) Resolve(ctx context.Context, tenantID string, scope Scope) ([]Asset, error) {
	scope, err := NormalizeScope(scope)
	if err != nil {
		return nil, err
	}
	if scope.Type != ScopeAll && len(scope.IDs) == 0 {
		return []Asset{}, nil
	}

	assets, err := r.catalog.List(ctx, tenantID, scope)
	if err != nil {
		return nil, fmt.Errorf("listing assets in scope: %w", err)
	}
	return assets, nil
}

// ResolveCode matches code against barcode, asset code and tag values in
// IdentifierPriority order.
func (r *Resolver) ResolveCode(ctx context.Context, tenantID, code string) (*Asset, IdentifierField, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, "", ErrInvalidCode
	}

	for _, field := range IdentifierPriority {
		found, err := r.catalog.FindByIdentifier(ctx, tenantID, field, code)
		if err == nil {
			return found, field, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, "", fmt.Errorf("looking up %s: %w", field, err)
		}
	}
	return nil, "", ErrAssetNotFound
}

// Get loads a single asset by id.
func (r *Resolver) Get(ctx context.Context, tenantID, id string) (*Asset, error) {
	found, err := r.catalog.Get(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAssetNotFound
		}
		return nil, fmt.Errorf("loading asset: %w", err)
	}
	return found, nil
}

// LocationName returns the display name of a location, or "" when unknown.
func (r *Resolver) LocationName(ctx context.Context, tenantID string, id *string) string {
	if id == nil || *id == "" {
		return ""
	}
	loc, err := r.catalog.GetLocation(ctx, tenantID, *id)
	if err != nil {
		return ""
	}
	return loc.Name
}

// NormalizeScope validates the scope type and trims and de-duplicates ids.
func NormalizeScope(scope Scope) (Scope, error) {
	if scope.Type == "" {
		scope.Type = ScopeAll
	}
	if !scope.Type.Valid() {
		return Scope{}, fmt.Errorf("%w: %q", ErrInvalidScope, scope.Type)
	}
	if scope.Type == ScopeAll {
		return Scope{Type: ScopeAll}, nil
	}

	seen := make(map[string]struct{}, len(scope.IDs))
	ids := make([]string, 0, len(scope.IDs))
	for _, id := range scope.IDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return Scope{Type: scope.Type, IDs: ids}, nil
}
