// Package metrics exposes Prometheus instrumentation for viewer sessions and
// the HTTP surface.
package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector bundles the server's metrics. A nil *Collector records nothing.
type Collector struct {
	gatherer prometheus.Gatherer

	Searches       *prometheus.CounterVec
	CameraFlights  *prometheus.CounterVec
	TrackerEvents  *prometheus.CounterVec
	Messages       *prometheus.CounterVec
	HTTPRequests   *prometheus.CounterVec
	HTTPDurations  *prometheus.HistogramVec
	ActiveSessions prometheus.Gauge
}

// NewCollector registers metrics against reg, defaulting to the global
// Prometheus registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	searches, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "campus_searches_total",
		Help: "Building searches, labeled by outcome.",
	}, []string{"outcome"}), "campus_searches_total")
	if err != nil {
		return nil, err
	}

	flights, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "campus_camera_flights_total",
		Help: "Camera navigations, labeled by the strategy that completed them.",
	}, []string{"strategy"}), "campus_camera_flights_total")
	if err != nil {
		return nil, err
	}

	tracker, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "campus_tracker_events_total",
		Help: "Location tracker transitions and position updates, labeled by event.",
	}, []string{"event"}), "campus_tracker_events_total")
	if err != nil {
		return nil, err
	}

	messages, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "campus_ws_messages_total",
		Help: "Websocket messages, labeled by direction and type.",
	}, []string{"direction", "type"}), "campus_ws_messages_total")
	if err != nil {
		return nil, err
	}

	requests, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "campus_http_requests_total",
		Help: "HTTP requests, labeled by method and status code.",
	}, []string{"method", "code"}), "campus_http_requests_total")
	if err != nil {
		return nil, err
	}

	durations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "campus_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"method"}), "campus_http_request_duration_seconds")
	if err != nil {
		return nil, err
	}

	sessions, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "campus_active_sessions",
		Help: "Connected viewer sessions.",
	}), "campus_active_sessions")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:       gatherer,
		Searches:       searches,
		CameraFlights:  flights,
		TrackerEvents:  tracker,
		Messages:       messages,
		HTTPRequests:   requests,
		HTTPDurations:  durations,
		ActiveSessions: sessions,
	}, nil
}

func (c *Collector) ObserveSearch(outcome string) {
	if c == nil {
		return
	}
	c.Searches.WithLabelValues(outcome).Inc()
}

func (c *Collector) ObserveFlight(strategy string) {
	if c == nil {
		return
	}
	c.CameraFlights.WithLabelValues(strategy).Inc()
}

func (c *Collector) ObserveTracker(event string) {
	if c == nil {
		return
	}
	c.TrackerEvents.WithLabelValues(event).Inc()
}

func (c *Collector) ObserveMessage(direction, msgType string) {
	if c == nil {
		return
	}
	c.Messages.WithLabelValues(direction, msgType).Inc()
}

func (c *Collector) SessionOpened() {
	if c == nil {
		return
	}
	c.ActiveSessions.Inc()
}

func (c *Collector) SessionClosed() {
	if c == nil {
		return
	}
	c.ActiveSessions.Dec()
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the hijacker for websocket upgrades.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Middleware counts requests and observes their latency.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	if c == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		c.HTTPRequests.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Inc()
		c.HTTPDurations.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
	})
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
