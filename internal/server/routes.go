package server

import (
	"log/slog"
	"net/http"

	"campus-map-server/internal/auth"
	authHandlers "campus-map-server/internal/auth/handlers"
	"campus-map-server/internal/metrics"
	"campus-map-server/internal/middleware"
	searchHandlers "campus-map-server/internal/search/handlers"
	serverHandlers "campus-map-server/internal/server/handlers"
	"campus-map-server/internal/session"
	"campus-map-server/internal/shared/config"
	"campus-map-server/internal/shared/redis"
	"campus-map-server/internal/spatial"
	spatialHandlers "campus-map-server/internal/spatial/handlers"
)

type Routes struct {
	db             serverHandlers.Pinger
	redis          *redis.Client
	spatialService *spatial.Service
	sessions       *session.Manager
	tokens         *auth.TokenManager
	metrics        *metrics.Collector
	cfg            *config.Config
	buildingsLayer string
}

func NewRoutes(db serverHandlers.Pinger, redisClient *redis.Client, spatialService *spatial.Service, sessions *session.Manager, tokens *auth.TokenManager, collector *metrics.Collector, cfg *config.Config, buildingsLayer string) *Routes {
	return &Routes{
		db:             db,
		redis:          redisClient,
		spatialService: spatialService,
		sessions:       sessions,
		tokens:         tokens,
		metrics:        collector,
		cfg:            cfg,
		buildingsLayer: buildingsLayer,
	}
}

func (r *Routes) Setup() *http.ServeMux {
	logger := slog.With("component", "routes", "operation", "setup")
	logger.Debug("Setting up application routes")

	mux := http.NewServeMux()

	healthHandler := serverHandlers.NewHealthHandler(r.db, r.redis, r.sessions)
	sessionHandler := authHandlers.NewSessionHandler(r.tokens)
	spatialHandler := spatialHandlers.NewSpatialHandler(r.spatialService)
	searchHandler := searchHandlers.NewSearchHandler(r.spatialService, r.buildingsLayer)
	requireSession := middleware.RequireSession(r.tokens)

	// Public endpoints
	mux.Handle("/api/server/health", healthHandler)
	mux.Handle("/api/session", sessionHandler)
	mux.HandleFunc("GET /api/layers", spatialHandler.GetLayers)
	mux.HandleFunc("GET /api/layers/{id}/entities", spatialHandler.GetEntities)
	mux.Handle("/api/search", searchHandler)

	// Viewer endpoints
	mux.Handle("GET /ws", requireSession(r.sessions))

	public := []string{"/api/server/health", "/api/session", "/api/layers", "/api/layers/{id}/entities", "/api/search"}
	if r.cfg.Metrics.Enabled {
		mux.Handle("GET "+r.cfg.Metrics.Path, r.metrics.Handler())
		public = append(public, r.cfg.Metrics.Path)
	}

	logger.Info("Routes configured successfully",
		"public_endpoints", public,
		"viewer_endpoints", []string{"/ws"},
	)

	return mux
}

// Handler wraps the routes in the middleware chain shared by every request.
func (r *Routes) Handler(cors *middleware.CORSMiddleware, limiter *middleware.RateLimiter) http.Handler {
	var h http.Handler = r.Setup()
	h = limiter.Middleware(h)
	h = cors.Middleware(h)
	if r.cfg.Metrics.Enabled {
		h = r.metrics.Middleware(h)
	}
	return h
}
