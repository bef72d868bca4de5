package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"campus-map-server/internal/shared/config"

	"github.com/stretchr/testify/assert"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimiterRejectsBurstOverflow(t *testing.T) {
	rl := NewRateLimiter(config.RateLimitConfig{Enabled: true, RequestsPerSecond: 0.001, BurstSize: 2})
	handler := rl.Middleware(okHandler())

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/layers", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// Another client has its own bucket.
	req := httptest.NewRequest(http.MethodGet, "/api/layers", nil)
	req.RemoteAddr = "10.0.0.2:5000"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := NewRateLimiter(config.RateLimitConfig{Enabled: false, RequestsPerSecond: 0.001, BurstSize: 1})
	handler := rl.Middleware(okHandler())

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRateLimiterSweepForgetsRefilledClients(t *testing.T) {
	rl := NewRateLimiter(config.RateLimitConfig{Enabled: true, RequestsPerSecond: 1, BurstSize: 1})
	rl.limiter("10.0.0.1").Allow()

	assert.Equal(t, 0, rl.sweep(time.Now()))
	assert.Equal(t, 1, rl.sweep(time.Now().Add(time.Minute)))
	assert.Empty(t, rl.clients)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.1:12345"
	req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")

	assert.Equal(t, "192.168.1.1", ClientIP(req, false))
	assert.Equal(t, "203.0.113.5", ClientIP(req, true))

	req.Header.Del("X-Forwarded-For")
	req.Header.Set("X-Real-IP", "198.51.100.7")
	assert.Equal(t, "198.51.100.7", ClientIP(req, true))
}
