package session

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"campus-map-server/internal/interaction"
	"campus-map-server/internal/metrics"
	"campus-map-server/internal/middleware"
	"campus-map-server/internal/shared/config"
	"campus-map-server/internal/shared/errors"
	"campus-map-server/internal/shared/response"
	"campus-map-server/internal/spatial"
	"campus-map-server/internal/tracking"
	"campus-map-server/internal/visibility"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const shutdownGrace = 2 * time.Second

type Dependencies struct {
	Spatial *spatial.Service
	Presets *visibility.Presets
	Markers tracking.MarkerStore
	Config  *config.Config
	Metrics *metrics.Collector
}

// Manager accepts viewer websockets and runs one controller per connection.
type Manager struct {
	deps     Dependencies
	decoder  *Decoder
	upgrader websocket.Upgrader
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	mu       sync.Mutex
	active   int
	logger   *slog.Logger
}

func NewManager(deps Dependencies) (*Manager, error) {
	decoder, err := NewDecoder()
	if err != nil {
		return nil, err
	}

	allowed := deps.Config.Frontend.URL
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		deps:    deps,
		decoder: decoder,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origin == allowed
			},
		},
		ctx:    ctx,
		cancel: cancel,
		logger: slog.With("component", "session_manager"),
	}, nil
}

// ServeHTTP upgrades an authenticated request and serves the viewer until
// the connection closes.
func (m *Manager) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	claims := middleware.SessionFromContext(r.Context())
	if claims == nil {
		response.Error(w, r, m.logger, errors.Unauthorized("viewer session required"))
		return
	}
	if m.ctx.Err() != nil {
		response.Error(w, r, m.logger, errors.New(errors.ErrorTypeUnavailable, "server shutting down", nil))
		return
	}

	ws, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		m.logger.Debug("Websocket upgrade failed", "error", err)
		return
	}

	m.wg.Add(1)
	defer m.wg.Done()
	m.serve(ws, claims.SessionID)
}

func (m *Manager) serve(ws *websocket.Conn, sessionID string) {
	logger := m.logger.With("session_id", sessionID)
	ctx, cancel := context.WithCancel(m.ctx)
	defer cancel()

	m.opened()
	defer m.closed()
	logger.Info("Viewer connected")

	cfg := m.deps.Config
	conn := NewConn(ws, m.deps.Metrics, logger)
	scene := NewRemoteScene(conn)
	geolocator := NewRemoteGeolocator(conn)
	loop := interaction.NewLoop(logger)

	ctrl := interaction.NewController(ctx, loop, interaction.Config{
		SessionID:   sessionID,
		Scene:       scene,
		Status:      scene,
		Geolocator:  geolocator,
		Presets:     m.deps.Presets,
		Markers:     m.deps.Markers,
		Map:         cfg.Map,
		Geolocation: cfg.Geolocation,
		Recorder:    m.deps.Metrics,
		Logger:      logger,
	})

	go loop.Run(ctx)
	go conn.WritePump(ctx)

	ctrl.Run(func(c *interaction.Controller) { c.Welcome() })
	m.deps.Spatial.LoadAsync(ctx, m.deps.Presets.LayerIDs(), func(res spatial.LoadResult) {
		if res.Err != nil {
			ctrl.Run(func(c *interaction.Controller) { c.LayerFailed(res.LayerID, res.Err) })
			return
		}
		ctrl.Run(func(c *interaction.Controller) { c.InstallLayer(res.LayerID, res.Registry) })
	})

	d := &dispatcher{
		decoder:    m.decoder,
		ctrl:       ctrl,
		scene:      scene,
		geolocator: geolocator,
		out:        conn,
		recorder:   m.deps.Metrics,
		logger:     logger,
	}
	if cfg.RateLimit.Enabled {
		d.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit.MessagesPerSecond), cfg.RateLimit.MessageBurst)
	}

	conn.ReadPump(ctx, d.handle)

	// Let the controller stop tracking before the loop goes away.
	stopped := make(chan struct{})
	if ctrl.Run(func(c *interaction.Controller) { c.Shutdown(); close(stopped) }) {
		select {
		case <-stopped:
		case <-loop.Done():
		case <-time.After(shutdownGrace):
			logger.Warn("Controller did not stop in time")
		}
	}
	cancel()
	loop.Close()
	geolocator.Close()
	scene.Close()
	conn.Close()
	logger.Info("Viewer disconnected")
}

func (m *Manager) opened() {
	m.mu.Lock()
	m.active++
	m.mu.Unlock()
	m.deps.Metrics.SessionOpened()
}

func (m *Manager) closed() {
	m.mu.Lock()
	m.active--
	m.mu.Unlock()
	m.deps.Metrics.SessionClosed()
}

// Active reports the number of connected viewers.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Shutdown disconnects every viewer and waits for their sessions to finish.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("All viewer sessions closed")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
