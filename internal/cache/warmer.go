package cache

import (
	"context"
	"log/slog"
	"time"

	"railplan/internal/store"
)

// CacheWarmer precomputes the read-heavy catalog responses after each
// timetable load so cold requests rarely hit the store.
type CacheWarmer struct {
	cache   *RedisCache
	catalog *store.Catalog
	ttl     time.Duration
	logger  *slog.Logger
}

func NewCacheWarmer(cache *RedisCache, catalog *store.Catalog, ttl time.Duration, logger *slog.Logger) *CacheWarmer {
	return &CacheWarmer{
		cache:   cache,
		catalog: catalog,
		ttl:     ttl,
		logger:  logger.With("component", "cache_warmer"),
	}
}

func (w *CacheWarmer) WarmAll(ctx context.Context) error {
	start := time.Now()
	w.logger.Info("starting cache warming")

	// Plans computed against the previous snapshot are stale now.
	if err := w.cache.DeletePattern(ctx, "plan:*"); err != nil {
		w.logger.Error("failed to drop stale plans", "error", err)
	}
	if err := w.cache.DeletePattern(ctx, "connections:*"); err != nil {
		w.logger.Error("failed to drop stale connections", "error", err)
	}

	if err := w.warmCities(ctx); err != nil {
		w.logger.Error("failed to warm cities", "error", err)
	}
	if err := w.warmRoutes(ctx); err != nil {
		w.logger.Error("failed to warm routes", "error", err)
	}

	w.logger.Info("cache warming completed", "duration_ms", time.Since(start).Milliseconds())
	return nil
}

func (w *CacheWarmer) warmCities(ctx context.Context) error {
	cities := w.catalog.Cities()
	return w.cache.SetJSON(ctx, KeyCities, cities, w.ttl)
}

func (w *CacheWarmer) warmRoutes(ctx context.Context) error {
	start := time.Now()

	routes := w.catalog.AllRoutes()
	if err := w.cache.SetJSON(ctx, KeyRoutes, routes, w.ttl); err != nil {
		return err
	}

	warmed := 0
	for _, route := range routes {
		stops, err := w.catalog.StopsFor(route.ID)
		if err != nil {
			w.logger.Debug("failed to load stops for warming", "route_id", route.ID, "error", err)
			continue
		}
		if err := w.cache.SetJSON(ctx, KeyRouteStops(route.ID), stops, w.ttl); err != nil {
			w.logger.Debug("failed to cache route stops", "route_id", route.ID, "error", err)
			continue
		}
		warmed++
	}

	w.logger.Info("warmed routes",
		"routes", len(routes),
		"stop_lists_warmed", warmed,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}
