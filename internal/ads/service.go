package ads

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var impressionsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "campushub_ad_impressions_total",
	Help: "Ad impressions recorded via view tracking.",
})

// Service wraps the catalog store with placement and view tracking.
type Service struct {
	catalog CatalogStore
}

// NewService creates a service backed by a catalog store.
func NewService(catalog CatalogStore) *Service {
	return &Service{catalog: catalog}
}

// CreateAd validates and stores a new active ad.
func (s *Service) CreateAd(ctx context.Context, a Ad) (*Ad, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	a.Active = true
	a.ViewCount = 0
	if err := ValidateAd(a); err != nil {
		return nil, fmt.Errorf("validate ad: %w", err)
	}
	if err := s.catalog.CreateAd(ctx, a); err != nil {
		return nil, err
	}
	return &a, nil
}

// Deactivate marks an ad inactive; it stops appearing in placements.
func (s *Service) Deactivate(ctx context.Context, id string) error {
	return s.catalog.Deactivate(ctx, id)
}

// PlaceAds snapshots the active catalog and computes the placement for one
// calendar view. The catalog itself is never mutated here.
func (s *Service) PlaceAds(ctx context.Context, cal Calendar) ([]Ad, error) {
	catalog, err := s.catalog.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot catalog: %w", err)
	}
	return Place(cal, catalog), nil
}

// TrackView records one impression. It never fails the caller: an unknown ad
// or a store error is logged and swallowed, because view tracking must not
// block rendering.
func (s *Service) TrackView(ctx context.Context, adID string) {
	if adID == "" {
		return
	}
	found, err := s.catalog.IncrementView(ctx, adID)
	if err != nil {
		log.Printf("view tracking failed for ad %s: %v", adID, err)
		return
	}
	if found {
		impressionsTotal.Inc()
	}
}
