package tracking

import (
	"context"
	"log/slog"
	"time"

	"campus-map-server/internal/geo"
	"campus-map-server/internal/spatial"

	"github.com/google/uuid"
)

type State int

const (
	Idle State = iota
	Tracking
)

func (s State) String() string {
	if s == Tracking {
		return "tracking"
	}
	return "idle"
}

const (
	MarkerName = "My Location"

	// MarkerViewHeight is the camera height above a fix, in meters.
	MarkerViewHeight  = 300.0
	FirstFixDuration  = 1000 * time.Millisecond
	FollowFixDuration = 800 * time.Millisecond
)

var MarkerPitch = geo.ToRadians(-45)

// Events reported to the Recorder.
const (
	EventStarted = "started"
	EventStopped = "stopped"
	EventApplied = "applied"
	EventDropped = "dropped"
	EventError   = "error"
)

// MarkerScene shows the marker entity in the rendering engine.
type MarkerScene interface {
	PlaceMarker(e *spatial.Entity)
}

// Camera is what the tracker needs from the navigator.
type Camera interface {
	FlyToCoordinate(coord geo.Coordinate, orientation geo.Orientation, duration time.Duration)
}

type Recorder interface {
	ObserveTracker(event string)
}

// Tracker is the Idle/Tracking state machine for one viewer. All methods must
// run on the owning controller's event loop; subscription updates are handed
// back to it through dispatch.
type Tracker struct {
	geolocator Geolocator
	scene      MarkerScene
	camera     Camera
	store      MarkerStore
	entities   *spatial.Registry
	sessionID  string
	dispatch   func(func()) bool
	opts       Options
	onError    func(error)
	recorder   Recorder
	logger     *slog.Logger

	state      State
	sub        Subscription
	generation uint64
	marker     *spatial.Entity
	lastFix    time.Time
}

type Config struct {
	Geolocator Geolocator
	Scene      MarkerScene
	Camera     Camera
	// Store is optional; without one marker positions are not persisted.
	Store MarkerStore
	// Entities is the viewer's own entity registry. The marker is registered
	// there once and moved in place afterwards.
	Entities  *spatial.Registry
	SessionID string
	// Dispatch queues f on the owner's event loop and reports whether it was accepted.
	Dispatch func(f func()) bool
	Options  Options
	// OnError receives subscription errors while tracking.
	OnError  func(error)
	Recorder Recorder
	Logger   *slog.Logger
}

func NewTracker(cfg Config) *Tracker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	dispatch := cfg.Dispatch
	if dispatch == nil {
		dispatch = func(f func()) bool { f(); return true }
	}
	return &Tracker{
		geolocator: cfg.Geolocator,
		scene:      cfg.Scene,
		camera:     cfg.Camera,
		store:      cfg.Store,
		entities:   cfg.Entities,
		sessionID:  cfg.SessionID,
		dispatch:   dispatch,
		opts:       cfg.Options,
		onError:    cfg.OnError,
		recorder:   cfg.Recorder,
		logger:     logger.With("component", "location_tracker", "session_id", cfg.SessionID),
	}
}

func (t *Tracker) State() State { return t.state }

// Marker returns the current user marker, or nil before the first fix.
func (t *Tracker) Marker() *spatial.Entity { return t.marker }

// Toggle starts tracking from Idle and stops it while Tracking. It returns the
// resulting state.
func (t *Tracker) Toggle(ctx context.Context) (State, error) {
	if t.state == Tracking {
		t.Stop()
		return t.state, nil
	}
	err := t.Start(ctx)
	return t.state, err
}

// Start opens a position subscription. Called while Tracking it stops the
// existing one instead, so two subscriptions never coexist.
func (t *Tracker) Start(ctx context.Context) error {
	if t.state == Tracking {
		t.Stop()
		return nil
	}
	if t.geolocator == nil || !t.geolocator.Available() {
		return ErrCapabilityUnavailable
	}

	sub, err := t.geolocator.Watch(ctx, t.opts)
	if err != nil {
		t.logger.Warn("Failed to open position subscription", "error", err)
		return err
	}

	t.generation++
	t.sub = sub
	t.state = Tracking
	t.record(EventStarted)
	t.logger.Info("Location tracking started")

	go t.pump(sub, t.generation)
	return nil
}

// Stop cancels the subscription and leaves the marker at its last position.
func (t *Tracker) Stop() {
	if t.state != Tracking {
		return
	}
	t.sub.Cancel()
	t.sub = nil
	t.generation++
	t.state = Idle
	t.record(EventStopped)
	t.logger.Info("Location tracking stopped")
}

func (t *Tracker) pump(sub Subscription, generation uint64) {
	for {
		select {
		case <-sub.Done():
			return
		case u, ok := <-sub.Updates():
			if !ok {
				return
			}
			if !t.dispatch(func() { t.apply(generation, u) }) {
				return
			}
		}
	}
}

func (t *Tracker) apply(generation uint64, u PositionUpdate) {
	if generation != t.generation || t.state != Tracking {
		// Update was in flight when the subscription was cancelled.
		t.record(EventDropped)
		return
	}

	if u.Err != nil {
		t.record(EventError)
		t.logger.Warn("Position subscription error", "error", u.Err)
		if t.onError != nil {
			t.onError(u.Err)
		}
		return
	}

	pos := u.Position
	if !pos.Coordinate.Valid() {
		t.record(EventDropped)
		return
	}
	if !pos.Timestamp.IsZero() && pos.Timestamp.Before(t.lastFix) {
		t.record(EventDropped)
		t.logger.Debug("Dropping out-of-order fix", "timestamp", pos.Timestamp, "last_fix", t.lastFix)
		return
	}
	if !pos.Timestamp.IsZero() {
		t.lastFix = pos.Timestamp
	}

	duration := FollowFixDuration
	if t.marker == nil {
		duration = FirstFixDuration
	}
	t.placeMarker(pos.Coordinate)
	t.camera.FlyToCoordinate(
		geo.Coordinate{Longitude: pos.Coordinate.Longitude, Latitude: pos.Coordinate.Latitude, Height: MarkerViewHeight},
		geo.Orientation{Heading: 0, Pitch: MarkerPitch},
		duration,
	)
	t.record(EventApplied)
	t.persist(pos)
}

// placeMarker creates the marker on first use and moves it in place afterwards.
func (t *Tracker) placeMarker(coord geo.Coordinate) {
	ground := geo.Coordinate{Longitude: coord.Longitude, Latitude: coord.Latitude}
	if t.marker == nil {
		t.marker = &spatial.Entity{
			ID:         "marker-" + uuid.NewString(),
			Name:       MarkerName,
			Category:   spatial.CategoryOther,
			Geometry:   spatial.GeometryBillboard,
			Visible:    true,
			Properties: spatial.PropertyMap{},
		}
		if t.entities != nil {
			t.entities.Register(t.marker)
		}
	}
	t.marker.Position = spatial.StaticPosition{Coordinate: ground}
	t.scene.PlaceMarker(t.marker)
}

func (t *Tracker) persist(pos Position) {
	if t.store == nil || t.sessionID == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := t.store.Save(ctx, t.sessionID, pos); err != nil {
			t.logger.Warn("Failed to persist marker position", "error", err)
		}
	}()
}

// Restore places the marker at a remembered position without moving the
// camera. It does nothing once a marker exists.
func (t *Tracker) Restore(pos Position) {
	if t.marker != nil || !pos.Coordinate.Valid() {
		return
	}
	t.placeMarker(pos.Coordinate)
	t.logger.Debug("Marker restored", "lon", pos.Coordinate.Longitude, "lat", pos.Coordinate.Latitude)
}

// LoadRemembered fetches the session's stored marker off the loop and
// dispatches Restore with it.
func (t *Tracker) LoadRemembered(ctx context.Context) {
	if t.store == nil || t.sessionID == "" {
		return
	}
	go func() {
		pos, ok, err := t.store.Load(ctx, t.sessionID)
		if err != nil {
			t.logger.Warn("Failed to load remembered marker", "error", err)
			return
		}
		if ok {
			t.dispatch(func() { t.Restore(pos) })
		}
	}()
}

// Probe asks once for the current position so the viewer is prompted for
// permission early. The outcome is dispatched to done and never changes state.
func (t *Tracker) Probe(ctx context.Context, timeout time.Duration, done func(error)) {
	if t.geolocator == nil || !t.geolocator.Available() {
		t.dispatch(func() { done(ErrCapabilityUnavailable) })
		return
	}
	opts := Options{HighAccuracy: true}
	go func() {
		probeCtx := ctx
		if timeout > 0 {
			var cancel context.CancelFunc
			probeCtx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		pos, err := t.geolocator.CurrentPosition(probeCtx, opts)
		if err == nil {
			t.logger.Debug("Location permission granted",
				"lat", pos.Coordinate.Latitude, "lon", pos.Coordinate.Longitude)
		}
		t.dispatch(func() { done(err) })
	}()
}

func (t *Tracker) record(event string) {
	if t.recorder != nil {
		t.recorder.ObserveTracker(event)
	}
}
