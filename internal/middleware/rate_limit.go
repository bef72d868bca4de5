package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"campus-map-server/internal/shared/config"
	"campus-map-server/internal/shared/errors"
	"campus-map-server/internal/shared/response"

	"golang.org/x/time/rate"
)

const clientIdleSweep = time.Minute

// RateLimiter throttles HTTP requests per client address. Websocket
// messages are throttled separately per connection.
type RateLimiter struct {
	cfg     config.RateLimitConfig
	clients map[string]*rate.Limiter
	mu      sync.Mutex
}

func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		cfg:     cfg,
		clients: make(map[string]*rate.Limiter),
	}
}

func (rl *RateLimiter) limiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, ok := rl.clients[ip]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(rl.cfg.RequestsPerSecond), rl.cfg.BurstSize)
		rl.clients[ip] = limiter
	}
	return limiter
}

// RunCleanup forgets clients whose bucket has refilled until ctx ends.
func (rl *RateLimiter) RunCleanup(ctx context.Context) {
	if !rl.cfg.Enabled {
		return
	}
	ticker := time.NewTicker(clientIdleSweep)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			rl.sweep(now)
		}
	}
}

func (rl *RateLimiter) sweep(now time.Time) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	removed := 0
	for ip, limiter := range rl.clients {
		if limiter.TokensAt(now) >= float64(rl.cfg.BurstSize) {
			delete(rl.clients, ip)
			removed++
		}
	}
	return removed
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.cfg.Enabled {
			next.ServeHTTP(w, r)
			return
		}

		ip := ClientIP(r, rl.cfg.TrustProxy)
		if !rl.limiter(ip).Allow() {
			logger := slog.With(
				"middleware", "rate_limit",
				"client_ip", ip,
				"method", r.Method,
				"path", r.URL.Path,
			)
			w.Header().Set("Retry-After", "1")
			response.Error(w, r, logger, errors.New(errors.ErrorTypeRateLimited, "rate limit exceeded", nil))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ClientIP returns the caller address, honoring proxy headers when trusted.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			if i := strings.IndexByte(xff, ','); i != -1 {
				return strings.TrimSpace(xff[:i])
			}
			return strings.TrimSpace(xff)
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return xri
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
