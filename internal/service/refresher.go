package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/inspection-risk/internal/model"
)

// DefaultRefreshInterval is used when a Refresher is given no interval.
const DefaultRefreshInterval = 6 * time.Hour

// Refreshable re-fetches a window from the registry.
type Refreshable interface {
	Refresh(ctx context.Context, days int) ([]model.Inspection, error)
}

// Refresher periodically re-fetches windows in the background and drops
// their cached analyzers so the next request rebuilds from the new rows.
type Refresher struct {
	source   Refreshable
	cache    *Cache
	windows  []int
	interval time.Duration
}

// NewRefresher creates a background refresher for the given windows.
func NewRefresher(source Refreshable, cache *Cache, windows []int, interval time.Duration) *Refresher {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &Refresher{source: source, cache: cache, windows: windows, interval: interval}
}

// Run starts the periodic refresh loop. It blocks until ctx is cancelled.
func (r *Refresher) Run(ctx context.Context) {
	log := zap.L().With(zap.String("component", "service.refresher"))
	log.Info("starting inspection refresher",
		zap.Duration("interval", r.interval),
		zap.Ints("windows", r.windows),
	)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("inspection refresher stopped")
			return
		case <-ticker.C:
			r.refresh(ctx, log)
		}
	}
}

// refresh re-fetches every window. A failed window keeps its current
// analyzer.
func (r *Refresher) refresh(ctx context.Context, log *zap.Logger) {
	refreshed := 0
	for _, days := range r.windows {
		rows, err := r.source.Refresh(ctx, days)
		if err != nil {
			log.Error("refresh window", zap.Int("days", days), zap.Error(err))
			continue
		}
		if len(rows) == 0 {
			log.Warn("refresh returned no rows, keeping current analyzer", zap.Int("days", days))
			continue
		}
		r.cache.Invalidate(days)
		refreshed++
	}
	log.Info("refresh complete", zap.Int("windows_refreshed", refreshed), zap.Int("windows", len(r.windows)))
}
