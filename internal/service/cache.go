// Package service owns the per-window analyzer cache that the CLI and HTTP
// server share.
package service

import (
	"context"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/inspection-risk/internal/analytics"
	"github.com/sells-group/inspection-risk/internal/loader"
	"github.com/sells-group/inspection-risk/internal/model"
	"github.com/sells-group/inspection-risk/internal/resolve"
)

// Source supplies the inspection rows for a time window.
type Source interface {
	Inspections(ctx context.Context, days int) ([]model.Inspection, error)
}

// Base is the window-independent input shared by every analyzer.
type Base struct {
	Orders  []model.Order
	Dropped int
	Matcher *resolve.Matcher
}

// BaseLoader produces the shared base data.
type BaseLoader func(ctx context.Context) (*Base, error)

// FileBase loads the order export and the mapping file concurrently. A
// missing mapping file yields an empty matcher; a bad order export fails.
func FileBase(ordersPath, mappingPath string) BaseLoader {
	return func(ctx context.Context) (*Base, error) {
		var (
			orders  *loader.Result
			matcher *resolve.Matcher
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			orders, err = loader.LoadOrders(gctx, ordersPath)
			return err
		})
		g.Go(func() error {
			matcher = resolve.LoadMatcher(mappingPath)
			return nil
		})
		if err := g.Wait(); err != nil {
			return nil, eris.Wrap(err, "service: load base data")
		}
		return &Base{Orders: orders.Orders, Dropped: orders.Dropped, Matcher: matcher}, nil
	}
}

// BuildTimeout bounds one shared base load or analyzer build. Builds run
// detached from the context of the caller that started them, so a caller
// that goes away does not fail the others waiting on the same build.
const BuildTimeout = 10 * time.Minute

// Cache builds one analytics.Analyzer per window on first use and hands the
// same instance to later callers. Concurrent first requests for a window
// share a single build. Failed builds are not cached.
type Cache struct {
	loadBase BaseLoader
	source   Source
	group    singleflight.Group

	mu        sync.RWMutex
	base      *Base
	analyzers map[int]*analytics.Analyzer
	// generations counts invalidations per window. A build started before an
	// Invalidate is returned to its callers but not stored.
	generations map[int]uint64
}

// NewCache creates an empty Cache.
func NewCache(loadBase BaseLoader, source Source) *Cache {
	return &Cache{
		loadBase:    loadBase,
		source:      source,
		analyzers:   make(map[int]*analytics.Analyzer),
		generations: make(map[int]uint64),
	}
}

// share runs fn once per key across concurrent callers. fn gets a context
// that outlives ctx; each caller stops waiting when its own ctx is done.
func (c *Cache) share(ctx context.Context, key string, fn func(ctx context.Context) (any, error)) (any, bool, error) {
	ch := c.group.DoChan(key, func() (any, error) {
		bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), BuildTimeout)
		defer cancel()
		return fn(bctx)
	})
	select {
	case res := <-ch:
		return res.Val, res.Shared, res.Err
	case <-ctx.Done():
		return nil, false, eris.Wrapf(ctx.Err(), "service: wait for %s", key)
	}
}

// Base returns the shared base data, loading it on first use.
func (c *Cache) Base(ctx context.Context) (*Base, error) {
	if base, ok := c.PeekBase(); ok {
		return base, nil
	}

	v, _, err := c.share(ctx, "base", func(ctx context.Context) (any, error) {
		if cached, ok := c.PeekBase(); ok {
			return cached, nil
		}

		b, err := c.loadBase(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.base = b
		c.mu.Unlock()
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Base), nil
}

// Get returns the analyzer for the window, building it if needed.
func (c *Cache) Get(ctx context.Context, days int) (*analytics.Analyzer, error) {
	c.mu.RLock()
	a, ok := c.analyzers[days]
	gen := c.generations[days]
	c.mu.RUnlock()
	if ok {
		return a, nil
	}

	key := "window:" + strconv.Itoa(days) + ":" + strconv.FormatUint(gen, 10)
	v, shared, err := c.share(ctx, key, func(ctx context.Context) (any, error) {
		c.mu.RLock()
		cached, ok := c.analyzers[days]
		c.mu.RUnlock()
		if ok {
			return cached, nil
		}

		base, err := c.Base(ctx)
		if err != nil {
			return nil, err
		}
		rows, err := c.source.Inspections(ctx, days)
		if err != nil {
			return nil, eris.Wrapf(err, "service: inspections for %d days", days)
		}

		built := analytics.New(base.Orders, rows, base.Matcher)
		c.mu.Lock()
		stale := c.generations[days] != gen
		if !stale {
			c.analyzers[days] = built
		}
		c.mu.Unlock()
		zap.L().Info("built analyzer",
			zap.Int("days", days),
			zap.Int("inspections", len(rows)),
			zap.Bool("stale", stale),
		)
		return built, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		zap.L().Debug("shared analyzer build", zap.Int("days", days))
	}
	return v.(*analytics.Analyzer), nil
}

// Invalidate drops the analyzer for a window so the next Get rebuilds it.
// A build already in flight for the window is not stored.
func (c *Cache) Invalidate(days int) {
	c.mu.Lock()
	delete(c.analyzers, days)
	c.generations[days]++
	c.mu.Unlock()
}

// Windows lists the windows with a built analyzer, ascending.
func (c *Cache) Windows() []int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]int, 0, len(c.analyzers))
	for d := range c.analyzers {
		out = append(out, d)
	}
	slices.Sort(out)
	return out
}

// Peek returns the analyzer for a window without building it.
func (c *Cache) Peek(days int) (*analytics.Analyzer, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.analyzers[days]
	return a, ok
}

// PeekBase returns the base data if it has been loaded, without loading it.
func (c *Cache) PeekBase() (*Base, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.base, c.base != nil
}
