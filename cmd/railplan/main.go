package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	_ "modernc.org/sqlite"

	"railplan/internal/cache"
	"railplan/internal/config"
	"railplan/internal/handler"
	"railplan/internal/hub"
	"railplan/internal/ingestor"
	"railplan/internal/middleware"
	"railplan/internal/planner"
	"railplan/internal/repository"
	"railplan/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("starting railplan server",
		"log_level", cfg.LogLevel.String(),
		"http_addr", cfg.HTTPAddr,
		"timetable", cfg.TimetablePath,
		"redis_enabled", cfg.RedisEnabled,
	)

	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := repository.InitSchema(db); err != nil {
		logger.Error("failed to initialize schema", "error", err)
		os.Exit(1)
	}

	catalog := store.New()
	plan := planner.New(catalog, logger, planner.Options{
		MaxHops:       cfg.MaxHops,
		PathCacheSize: cfg.PathCacheSize,
		PathCacheTTL:  cfg.PathCacheTTL,
	})
	scheduleRepo := repository.NewScheduleRepository(db)
	wsHub := hub.NewHub(logger)

	var redisCache *cache.RedisCache
	var warmer *cache.CacheWarmer
	if cfg.RedisEnabled {
		redisCache, err = cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger)
		if err != nil {
			logger.Error("failed to connect to redis", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}
		defer redisCache.Close()
		warmer = cache.NewCacheWarmer(redisCache, catalog, cfg.CacheTTL, logger)
	}

	ing := ingestor.New(cfg.TimetablePath, catalog, cfg.ReloadInterval, logger)
	ing.OnUpdate = func(ctx context.Context) {
		if warmer != nil && cfg.CacheWarmOnStart {
			if err := warmer.WarmAll(ctx); err != nil {
				logger.Warn("cache warm failed", "error", err)
			}
		}
		stats := catalog.GetStats()
		wsHub.Broadcast(handler.NewCatalogUpdatedMessage(stats.Generation, stats.RoutesCount))
	}

	catalogHandler := handler.NewCatalogHandler(catalog, plan, redisCache, cfg.CacheTTL, logger)
	planHandler := handler.NewPlanHandler(plan, catalog, redisCache, cfg.CacheTTL, logger)
	scheduleHandler := handler.NewScheduleHandler(scheduleRepo, plan, logger)
	healthHandler := handler.NewHealthHandler(ing, catalog)
	statsHandler := handler.NewStatsHandler(catalog, wsHub)
	wsHandler := handler.NewWSHandler(wsHub, plan, logger)

	limiter := middleware.NewRateLimiter(
		cfg.RateLimitPerWindow,
		cfg.RateLimitWindow,
		cfg.RateLimitWhitelist,
		[]string{"/healthz", "/readyz"},
		logger,
	)
	limiter.OnBlocked = handler.ServerStats.IncRateLimitBlocked

	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/cities", catalogHandler.ListCities)
	mux.HandleFunc("GET /v1/routes", catalogHandler.ListRoutes)
	mux.HandleFunc("GET /v1/routes/{id}", catalogHandler.GetRoute)
	mux.HandleFunc("GET /v1/routes/{id}/stops", catalogHandler.GetRouteStops)

	mux.HandleFunc("POST /v1/plans", planHandler.BuildPlan)

	mux.HandleFunc("POST /v1/schedules", scheduleHandler.Create)
	mux.HandleFunc("GET /v1/schedules", scheduleHandler.List)
	mux.HandleFunc("GET /v1/schedules/{id}", scheduleHandler.Get)
	mux.HandleFunc("GET /v1/schedules/{id}/itinerary", scheduleHandler.Itinerary)
	mux.HandleFunc("DELETE /v1/schedules/{id}", scheduleHandler.Delete)

	mux.HandleFunc("GET /v1/stats", statsHandler.GetStats)
	mux.HandleFunc("/v1/ws", wsHandler.ServeWS)

	mux.HandleFunc("GET /healthz", healthHandler.Healthz)
	mux.HandleFunc("GET /readyz", healthHandler.Readyz)

	chain := handler.CORSMiddleware(handler.GzipMiddleware(limiter.Middleware(mux)))

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      chain,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go wsHub.Run(ctx)

	go ing.Start(ctx)

	go func() {
		logger.Info("starting HTTP server", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}
