package ads

import (
	"context"
	"sort"
	"sync"
)

// CatalogStore persists the ad catalog. ListActive returns a snapshot for
// placement; IncrementView must be atomic under concurrent callers and a
// no-op for unknown IDs, reporting whether the ad existed.
type CatalogStore interface {
	CreateAd(ctx context.Context, a Ad) error
	GetAd(ctx context.Context, id string) (*Ad, error)
	ListActive(ctx context.Context) ([]Ad, error)
	IncrementView(ctx context.Context, id string) (bool, error)
	Deactivate(ctx context.Context, id string) error
}

// MemoryCatalog is a map-backed catalog for dev and tests.
type MemoryCatalog struct {
	mu  sync.RWMutex
	ads map[string]*Ad
}

// NewMemoryCatalog creates an empty in-memory catalog.
func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{ads: make(map[string]*Ad)}
}

// CreateAd stores a new ad.
func (c *MemoryCatalog) CreateAd(ctx context.Context, a Ad) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	ad := a
	c.ads[a.ID] = &ad
	return nil
}

// GetAd returns a copy of the ad or ErrNotFound.
func (c *MemoryCatalog) GetAd(ctx context.Context, id string) (*Ad, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ad, ok := c.ads[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *ad
	return &cp, nil
}

// ListActive returns a snapshot of active ads in creation order.
func (c *MemoryCatalog) ListActive(ctx context.Context) ([]Ad, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []Ad
	for _, ad := range c.ads {
		if ad.Active {
			out = append(out, *ad)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// IncrementView bumps the view counter; unknown IDs are a no-op.
func (c *MemoryCatalog) IncrementView(ctx context.Context, id string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ad, ok := c.ads[id]
	if !ok {
		return false, nil
	}
	ad.ViewCount++
	return true, nil
}

// Deactivate marks an ad inactive.
func (c *MemoryCatalog) Deactivate(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	ad, ok := c.ads[id]
	if !ok {
		return ErrNotFound
	}
	ad.Active = false
	return nil
}
