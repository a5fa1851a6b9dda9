package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/inspection-risk/internal/model"
	"github.com/sells-group/inspection-risk/internal/store"
)

// Registry fetches inspection rows for a window.
type Registry interface {
	FetchAll(ctx context.Context, days int) ([]model.Inspection, error)
}

// CachedSource serves inspections from a fresh stored snapshot when one
// exists and otherwise from the registry, saving what it fetched. A nil
// store always goes to the registry. Store failures are logged, not fatal.
type CachedSource struct {
	registry Registry
	store    store.Store
	maxAge   time.Duration
}

// NewCachedSource creates a CachedSource.
func NewCachedSource(registry Registry, st store.Store, maxAge time.Duration) *CachedSource {
	return &CachedSource{registry: registry, store: st, maxAge: maxAge}
}

// Inspections implements Source.
func (s *CachedSource) Inspections(ctx context.Context, days int) ([]model.Inspection, error) {
	log := zap.L().With(zap.String("component", "source"), zap.Int("days", days))

	if s.store != nil {
		snap, err := s.store.LatestSnapshot(ctx, days, s.maxAge)
		switch {
		case err != nil:
			log.Warn("snapshot lookup failed, fetching from registry", zap.Error(err))
		case snap != nil:
			log.Info("using stored snapshot",
				zap.String("snapshot_id", snap.ID),
				zap.Time("fetched_at", snap.FetchedAt),
				zap.Int("records", len(snap.Inspections)),
			)
			return snap.Inspections, nil
		}
	}
	return s.Refresh(ctx, days)
}

// Refresh fetches the window from the registry and stores a new snapshot.
// An empty fetch is not stored.
func (s *CachedSource) Refresh(ctx context.Context, days int) ([]model.Inspection, error) {
	rows, err := s.registry.FetchAll(ctx, days)
	if err != nil {
		return nil, err
	}
	if s.store != nil && len(rows) > 0 {
		if _, err := s.store.SaveSnapshot(ctx, days, rows); err != nil {
			zap.L().Warn("saving snapshot failed", zap.Int("days", days), zap.Error(err))
		}
	}
	return rows, nil
}
