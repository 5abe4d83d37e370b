// Package cache keeps hot catalog lookups in an in-process ristretto cache.
package cache

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/rpggio/tally/internal/domain/asset"
)

// Catalog wraps an asset.Catalog and caches single-asset and location
// lookups. Misses and errors are never cached; scope listings always go to
// the underlying catalog.
type Catalog struct {
	next      asset.Catalog
	assets    *ristretto.Cache[string, *asset.Asset]
	locations *ristretto.Cache[string, *asset.Location]
	ttl       time.Duration
}

// NewCatalog creates a cached catalog holding up to maxItems entries per kind.
func NewCatalog(next asset.Catalog, maxItems int64, ttl time.Duration) (*Catalog, error) {
	assets, err := ristretto.NewCache(&ristretto.Config[string, *asset.Asset]{
		NumCounters: maxItems * 10,
		MaxCost:     maxItems,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	locations, err := ristretto.NewCache(&ristretto.Config[string, *asset.Location]{
		NumCounters: maxItems * 10,
		MaxCost:     maxItems,
		BufferItems: 64,
	})
	if err != nil {
		assets.Close()
		return nil, err
	}
	return &Catalog{next: next, assets: assets, locations: locations, ttl: ttl}, nil
}

// Get returns an asset by id.
func (c *Catalog) Get(ctx context.Context, tenantID, id string) (*asset.Asset, error) {
	key := tenantID + "/id/" + id
	if a, ok := c.assets.Get(key); ok {
		return a, nil
	}
	a, err := c.next.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	c.assets.SetWithTTL(key, a, 1, c.ttl)
	return a, nil
}

// FindByIdentifier returns the asset matching one identifier field.
func (c *Catalog) FindByIdentifier(ctx context.Context, tenantID string, field asset.IdentifierField, value string) (*asset.Asset, error) {
	key := tenantID + "/" + string(field) + "/" + value
	if a, ok := c.assets.Get(key); ok {
		return a, nil
	}
	a, err := c.next.FindByIdentifier(ctx, tenantID, field, value)
	if err != nil {
		return nil, err
	}
	c.assets.SetWithTTL(key, a, 1, c.ttl)
	return a, nil
}

// List passes through to the underlying catalog.
func (c *Catalog) List(ctx context.Context, tenantID string, scope asset.Scope) ([]asset.Asset, error) {
	return c.next.List(ctx, tenantID, scope)
}

// GetLocation returns a location by id.
func (c *Catalog) GetLocation(ctx context.Context, tenantID, id string) (*asset.Location, error) {
	key := tenantID + "/" + id
	if loc, ok := c.locations.Get(key); ok {
		return loc, nil
	}
	loc, err := c.next.GetLocation(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	c.locations.SetWithTTL(key, loc, 1, c.ttl)
	return loc, nil
}

// Wait blocks until buffered writes are applied.
func (c *Catalog) Wait() {
	c.assets.Wait()
	c.locations.Wait()
}

// Close releases the caches.
func (c *Catalog) Close() {
	c.assets.Close()
	c.locations.Close()
}
