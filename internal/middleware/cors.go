package middleware

import (
	"log/slog"
	"net/http"

	"campus-map-server/internal/shared/config"

	"github.com/rs/cors"
)

var corsMethods = []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}

type CORSMiddleware struct {
	*cors.Cors
}

func NewCORS(cfg config.FrontendConfig) *CORSMiddleware {
	logger := slog.With("component", "cors", "operation", "setup")

	allowedOrigins := []string{cfg.URL}
	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   corsMethods,
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		Debug:            cfg.CORSDebug,
	})

	logger.Info("CORS middleware configured",
		"allowed_origins", allowedOrigins,
		"allowed_methods", corsMethods,
		"debug_mode", cfg.CORSDebug,
	)

	return &CORSMiddleware{c}
}

func (c *CORSMiddleware) Middleware(h http.Handler) http.Handler {
	return c.Cors.Handler(h)
}
