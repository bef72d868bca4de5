package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"campus-map-server/internal/auth"
	"campus-map-server/internal/metrics"
	"campus-map-server/internal/middleware"
	"campus-map-server/internal/server"
	"campus-map-server/internal/session"
	"campus-map-server/internal/shared/config"
	"campus-map-server/internal/shared/database"
	"campus-map-server/internal/shared/logger"
	"campus-map-server/internal/shared/redis"
	"campus-map-server/internal/spatial"
	"campus-map-server/internal/tracking"
	"campus-map-server/internal/visibility"

	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	if err := config.Init(); err != nil {
		slog.Error("Failed to initialize configuration", "error", err)
		os.Exit(1)
	}
	logger.Init()

	cfg := config.GlobalConfig
	log := slog.With("component", "main")
	log.Info("Starting campus map server",
		"environment", cfg.Server.Environment,
		"port", cfg.Server.Port)

	db, err := database.Connect(cfg)
	if err != nil {
		log.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.RunMigrations(context.Background(), database.MigrationSource(cfg.Database.MigrationsPath)); err != nil {
		log.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	redisClient, err := redis.Connect(cfg.Redis)
	if err != nil {
		log.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	markers := tracking.NewMarkerStore(redisClient, cfg.Redis.MarkerTTL)
	if mem, ok := markers.(*tracking.MemoryMarkerStore); ok {
		go mem.RunCleanup(ctx, 10*time.Minute)
	}

	presets, err := visibility.LoadPresets(cfg.Map.PresetsPath)
	if err != nil {
		log.Error("Failed to load presets", "error", err)
		os.Exit(1)
	}

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector, err = metrics.NewCollector(prometheus.DefaultRegisterer)
		if err != nil {
			log.Error("Failed to register metrics", "error", err)
			os.Exit(1)
		}
	}

	tokens, err := auth.NewTokenManager(cfg.Auth.SessionSecret, cfg.Auth.TokenExpiration)
	if err != nil {
		log.Error("Failed to initialize session tokens", "error", err)
		os.Exit(1)
	}

	spatialService := spatial.NewService(spatial.NewRepository(db, slog.Default()), presets, slog.Default())
	sessions, err := session.NewManager(session.Dependencies{
		Spatial: spatialService,
		Presets: presets,
		Markers: markers,
		Config:  cfg,
		Metrics: collector,
	})
	if err != nil {
		log.Error("Failed to initialize session manager", "error", err)
		os.Exit(1)
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimit)
	go limiter.RunCleanup(ctx)

	routes := server.NewRoutes(db, redisClient, spatialService, sessions, tokens, collector, cfg, presets.BuildingsLayer)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      routes.Handler(middleware.NewCORS(cfg.Frontend), limiter),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		log.Error("HTTP server failed", "error", err)
		os.Exit(1)
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Hijacked websockets are not tracked by the HTTP server.
	if err := sessions.Shutdown(shutdownCtx); err != nil {
		log.Warn("Viewer sessions did not close in time", "error", err)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed", "error", err)
	}
	log.Info("Server stopped")
}
