package main

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/sells-group/inspection-risk/internal/config"
	"github.com/sells-group/inspection-risk/internal/fetcher"
	"github.com/sells-group/inspection-risk/internal/registry"
	"github.com/sells-group/inspection-risk/internal/resilience"
	"github.com/sells-group/inspection-risk/internal/service"
	"github.com/sells-group/inspection-risk/internal/store"
)

// env holds the wired components a command needs.
type env struct {
	Registry *registry.Client
	Store    store.Store
	Source   *service.CachedSource
	Cache    *service.Cache
}

// Close releases the snapshot store, if any.
func (e *env) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func newFetcher(c config.RegistryConfig) *fetcher.HTTPFetcher {
	headers := map[string]string{"Accept": "application/json"}
	if c.AppToken != "" {
		headers[registry.AppTokenHeader] = c.AppToken
	}
	retry := resilience.DefaultRetryConfig()
	if c.MaxRetries > 0 {
		retry = retry.WithAttempts(c.MaxRetries)
	}
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		Timeout:   time.Duration(c.TimeoutSecs) * time.Second,
		Headers:   headers,
		RateLimit: rate.Limit(c.RateLimit),
		Retry:     retry,
	})
}

func newRegistry(c config.RegistryConfig) *registry.Client {
	return registry.New(newFetcher(c), registry.Options{
		BaseURL:    c.BaseURL,
		BatchSize:  c.BatchSize,
		MaxRecords: c.MaxRecords,
	})
}

func maxAge(c config.CacheConfig) time.Duration {
	return time.Duration(c.MaxAgeDays) * 24 * time.Hour
}

// initEnv wires the registry, snapshot store, cached source and analyzer
// cache from cfg.
func initEnv(ctx context.Context, c *config.Config) (*env, error) {
	st, err := store.Open(ctx, c.Cache.Driver, c.Cache.DatabaseURL)
	if err != nil {
		return nil, err
	}

	reg := newRegistry(c.Registry)
	src := service.NewCachedSource(reg, st, maxAge(c.Cache))
	cache := service.NewCache(service.FileBase(c.Orders.CSVPath, c.Mapping.Path), src)

	return &env{Registry: reg, Store: st, Source: src, Cache: cache}, nil
}
