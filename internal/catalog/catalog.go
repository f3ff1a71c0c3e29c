// Package catalog serves the fabric catalog through a long-lived cache.
package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/Simplici0/atelier/internal/cache"
	"github.com/Simplici0/atelier/internal/pricing"
	"github.com/Simplici0/atelier/internal/store"
)

const listKey = "fabrics"

// Source reads fabrics from persistent storage.
type Source interface {
	ListFabrics(ctx context.Context) ([]store.Fabric, error)
}

// Catalog is a cached view of the active fabrics.
type Catalog struct {
	source Source
	cache  *cache.Cache[[]store.Fabric]
}

// New builds a catalog whose list is kept for ttl.
func New(source Source, ttl time.Duration, opts ...cache.Option) *Catalog {
	return &Catalog{
		source: source,
		cache:  cache.New[[]store.Fabric](ttl, opts...),
	}
}

// Cache exposes the underlying cache so it can be swept on a schedule.
func (c *Catalog) Cache() *cache.Cache[[]store.Fabric] { return c.cache }

// List returns the active fabrics, fetching them at most once per TTL.
func (c *Catalog) List(ctx context.Context) ([]store.Fabric, error) {
	fabrics, err := c.cache.CachedRequest(ctx, listKey, c.source.ListFabrics)
	if err != nil {
		return nil, fmt.Errorf("list fabrics: %w", err)
	}
	return fabrics, nil
}

// Get finds an active fabric by id.
func (c *Catalog) Get(ctx context.Context, id int64) (store.Fabric, error) {
	fabrics, err := c.List(ctx)
	if err != nil {
		return store.Fabric{}, err
	}
	for _, f := range fabrics {
		if f.ID == id {
			return f, nil
		}
	}
	return store.Fabric{}, fmt.Errorf("fabric %d: %w", id, store.ErrNotFound)
}

// Invalidate drops the cached list after the catalog changed.
func (c *Catalog) Invalidate() {
	c.cache.Invalidate(listKey)
}

// PricingInput converts a catalog entry to the prices used by the calculator.
func PricingInput(f store.Fabric) pricing.Fabric {
	return pricing.Fabric{PricePerKg: f.PricePerKg, PricePerMeter: f.PricePerMeter}
}
