package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"campus-map-server/internal/shared/redis"
	"campus-map-server/internal/shared/response"
)

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Database  string `json:"database"`
	Redis     string `json:"redis"`
	Viewers   int    `json:"viewers"`
}

type Pinger interface {
	PingContext(ctx context.Context) error
}

type ViewerCounter interface {
	Active() int
}

type HealthHandler struct {
	db      Pinger
	redis   *redis.Client
	viewers ViewerCounter
}

func NewHealthHandler(db Pinger, redisClient *redis.Client, viewers ViewerCounter) *HealthHandler {
	return &HealthHandler{db: db, redis: redisClient, viewers: viewers}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "health")
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	dbStatus := "disconnected"
	if err := h.db.PingContext(ctx); err == nil {
		dbStatus = "connected"
	} else {
		logger.Warn("Database ping failed", "error", err)
	}

	redisStatus := "disabled"
	if h.redis != nil {
		redisStatus = "connected"
		if err := h.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "disconnected"
			logger.Warn("Redis ping failed", "error", err)
		}
	}

	status := "healthy"
	if dbStatus != "connected" {
		status = "degraded"
	}

	resp := HealthResponse{
		Status:    status,
		Timestamp: time.Now().Format(time.RFC3339),
		Database:  dbStatus,
		Redis:     redisStatus,
	}
	if h.viewers != nil {
		resp.Viewers = h.viewers.Active()
	}

	response.Success(w, http.StatusOK, resp)
}
