// Package camera drives the rendering engine's viewpoint toward entities and
// coordinates.
package camera

import (
	"log/slog"
	"math"
	"time"

	"campus-map-server/internal/geo"
	"campus-map-server/internal/shared/errors"
	"campus-map-server/internal/spatial"
)

const (
	MinimumRange  = 40.0
	DefaultRange  = 80.0
	RangeScale    = 1.8
	FrameDuration = 1600 * time.Millisecond

	// FallbackDuration is the raw flight used when framing fails.
	FallbackDuration = 1200 * time.Millisecond
)

// TopDownPitch looks straight down.
var TopDownPitch = geo.ToRadians(-90)

// Strategy outcomes of a FlyTo, as reported to the Recorder.
const (
	StrategyFramed   = "framed"
	StrategyFallback = "fallback"
	StrategySkipped  = "skipped"
)

var ErrTransitionFailed = errors.New(errors.ErrorTypeExternal, "camera transition failed", nil)

// Engine is the camera surface of the rendering engine.
type Engine interface {
	// BoundingSphere reports the entity's bounding volume when the engine can compute one.
	BoundingSphere(e *spatial.Entity) (geo.BoundingSphere, bool)
	// FlyToEntity starts a framed transition and later reports its outcome on done.
	FlyToEntity(e *spatial.Entity, offset geo.HeadingPitchRange, duration time.Duration, done func(error))
	FlyToDestination(dest geo.Cartesian3, orientation geo.Orientation, duration time.Duration)
}

type Recorder interface {
	ObserveFlight(strategy string)
}

type Options struct {
	Duration time.Duration
	Heading  float64
	Pitch    float64
	// Range overrides the computed framing distance when positive.
	Range float64
}

func DefaultOptions() Options {
	return Options{Duration: FrameDuration, Pitch: TopDownPitch}
}

type Navigator struct {
	engine           Engine
	dispatch         func(func())
	now              func() time.Time
	recorder         Recorder
	fallbackDuration time.Duration
	logger           *slog.Logger
}

type Option func(*Navigator)

// WithDispatch routes transition outcomes through dispatch, typically an
// event loop, instead of running them on the engine's goroutine.
func WithDispatch(dispatch func(func())) Option {
	return func(n *Navigator) { n.dispatch = dispatch }
}

func WithClock(now func() time.Time) Option {
	return func(n *Navigator) { n.now = now }
}

func WithRecorder(r Recorder) Option {
	return func(n *Navigator) { n.recorder = r }
}

func WithFallbackDuration(d time.Duration) Option {
	return func(n *Navigator) {
		if d > 0 {
			n.fallbackDuration = d
		}
	}
}

func NewNavigator(engine Engine, logger *slog.Logger, opts ...Option) *Navigator {
	n := &Navigator{
		engine:           engine,
		dispatch:         func(f func()) { f() },
		now:              time.Now,
		fallbackDuration: FallbackDuration,
		logger:           logger.With("component", "camera_navigator"),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// FlyTo shows the entity and starts a framed transition. Should the engine
// fail to frame it, the camera falls back to a raw flight above its position.
// When no position is available either, nothing moves.
func (n *Navigator) FlyTo(e *spatial.Entity, opts Options) {
	if e == nil {
		return
	}
	e.Visible = true

	rng := n.frameRange(e, opts)
	offset := geo.HeadingPitchRange{Heading: opts.Heading, Pitch: opts.Pitch, Range: rng}

	n.engine.FlyToEntity(e, offset, opts.Duration, func(err error) {
		n.dispatch(func() {
			if err == nil {
				n.record(StrategyFramed)
				return
			}
			n.logger.Debug("Framed transition failed, falling back",
				"entity_id", e.ID, "error", err)
			n.fallback(e, opts, rng)
		})
	})
}

func (n *Navigator) frameRange(e *spatial.Entity, opts Options) float64 {
	if opts.Range > 0 {
		return opts.Range
	}
	bs, ok := n.engine.BoundingSphere(e)
	if !ok || bs.Radius <= 0 || math.IsNaN(bs.Radius) {
		return DefaultRange
	}
	return math.Max(MinimumRange, bs.Radius*RangeScale)
}

func (n *Navigator) fallback(e *spatial.Entity, opts Options, rng float64) {
	if e.Position == nil {
		n.record(StrategySkipped)
		return
	}
	pos, err := e.Position.PositionAt(n.now())
	if err != nil {
		n.logger.Debug("Entity position unavailable, skipping flight",
			"entity_id", e.ID, "error", err)
		n.record(StrategySkipped)
		return
	}

	n.engine.FlyToDestination(pos.Raise(rng), geo.Orientation{Heading: opts.Heading, Pitch: opts.Pitch}, n.fallbackDuration)
	n.record(StrategyFallback)
}

// FlyToCoordinate moves the raw camera to coord.
func (n *Navigator) FlyToCoordinate(coord geo.Coordinate, orientation geo.Orientation, duration time.Duration) {
	n.engine.FlyToDestination(coord.Cartesian(), orientation, duration)
}

func (n *Navigator) record(strategy string) {
	if n.recorder != nil {
		n.recorder.ObserveFlight(strategy)
	}
}
