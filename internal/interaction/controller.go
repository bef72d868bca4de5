// Package interaction wires viewer events to search, filtering, camera
// navigation and location tracking for one viewer session.
package interaction

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"

	"campus-map-server/internal/camera"
	"campus-map-server/internal/geo"
	"campus-map-server/internal/search"
	"campus-map-server/internal/shared/config"
	"campus-map-server/internal/spatial"
	"campus-map-server/internal/tracking"
	"campus-map-server/internal/visibility"
)

const (
	MsgEmptyQuery      = "Type a building name to search."
	MsgNotLoaded       = "Buildings not loaded yet, please wait a moment."
	MsgNotFoundFormat  = `No building found for "%s". Try another name.`
	MsgFlyingFormat    = "Flying to: %s"
	MsgNoGeolocation   = "Geolocation not supported in this browser."
	MsgTrackingStarted = "Live location tracking started."
	MsgTrackingStopped = "Live location tracking stopped."
	MsgLocationError   = "Unable to access your location. Check permissions."
	MsgAllowLocation   = "Please allow location access for this app to work."
)

// Search outcomes reported to the Recorder.
const (
	SearchEmpty     = "empty"
	SearchNotLoaded = "not_loaded"
	SearchNotFound  = "not_found"
	SearchFound     = "found"
)

// Scene is the rendering engine as the controller drives it.
type Scene interface {
	camera.Engine
	tracking.MarkerScene
	DeclareLayers(layers []spatial.LayerView)
	LayerLoaded(layer spatial.LayerView, entities []spatial.EntityView)
	ApplyVisibility(entities []*spatial.Entity)
	ShowLayers(shown map[string]bool)
}

type Recorder interface {
	camera.Recorder
	tracking.Recorder
	ObserveSearch(outcome string)
}

type Config struct {
	SessionID   string
	Scene       Scene
	Status      StatusSink
	Geolocator  tracking.Geolocator
	Presets     *visibility.Presets
	Markers     tracking.MarkerStore
	Map         config.MapConfig
	Geolocation config.GeolocationConfig
	Recorder    Recorder
	Logger      *slog.Logger
}

// Controller owns one viewer's layers, tracker and status slot. Its methods
// must only be called on its Loop.
type Controller struct {
	ctx       context.Context
	loop      *Loop
	scene     Scene
	presets   *visibility.Presets
	layers    *spatial.LayerSet
	entities  *spatial.Registry
	filter    *visibility.Filter
	navigator *camera.Navigator
	tracker   *tracking.Tracker
	status    *StatusBoard
	mapCfg    config.MapConfig
	geoCfg    config.GeolocationConfig
	recorder  Recorder
	logger    *slog.Logger
}

func NewController(ctx context.Context, loop *Loop, cfg Config) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "interaction_controller", "session_id", cfg.SessionID)

	c := &Controller{
		ctx:      ctx,
		loop:     loop,
		scene:    cfg.Scene,
		presets:  cfg.Presets,
		layers:   spatial.NewLayerSet(),
		entities: spatial.NewRegistry(),
		mapCfg:   cfg.Map,
		geoCfg:   cfg.Geolocation,
		recorder: cfg.Recorder,
		logger:   logger,
	}

	cfg.Presets.Declare(c.layers)
	c.filter = visibility.NewFilter(c.layers, cfg.Presets.BuildingsLayer)
	c.status = NewStatusBoard(cfg.Status, loop.Post, cfg.Map.StatusTimeout)

	navOpts := []camera.Option{
		camera.WithDispatch(func(f func()) { loop.Post(f) }),
		camera.WithFallbackDuration(cfg.Map.FallbackDuration),
	}
	var trackerRecorder tracking.Recorder
	if cfg.Recorder != nil {
		navOpts = append(navOpts, camera.WithRecorder(cfg.Recorder))
		trackerRecorder = cfg.Recorder
	}
	c.navigator = camera.NewNavigator(cfg.Scene, logger, navOpts...)

	c.tracker = tracking.NewTracker(tracking.Config{
		Geolocator: cfg.Geolocator,
		Scene:      cfg.Scene,
		Camera:     c.navigator,
		Store:      cfg.Markers,
		Entities:   c.entities,
		SessionID:  cfg.SessionID,
		Dispatch:   loop.Post,
		Options: tracking.Options{
			HighAccuracy: cfg.Geolocation.HighAccuracy,
			MaximumAge:   cfg.Geolocation.MaximumAge,
			Timeout:      cfg.Geolocation.Timeout,
		},
		OnError:  func(error) { c.status.Show(MsgLocationError, 0) },
		Recorder: trackerRecorder,
		Logger:   logger,
	})

	return c
}

// Welcome announces the legend layers, flies to the campus home view and
// restores a remembered location marker.
func (c *Controller) Welcome() {
	c.scene.DeclareLayers(c.layers.Views())
	c.navigator.FlyToCoordinate(
		geo.Coordinate{Longitude: c.mapCfg.HomeLongitude, Latitude: c.mapCfg.HomeLatitude, Height: c.mapCfg.HomeHeight},
		geo.Orientation{Heading: 0, Pitch: geo.ToRadians(c.mapCfg.HomePitchDegrees)},
		0,
	)
	c.tracker.LoadRemembered(c.ctx)
}

// InstallLayer makes a loaded layer available to search and filtering.
func (c *Controller) InstallLayer(layerID string, reg *spatial.Registry) {
	layer := c.layers.Install(layerID, reg)

	views := make([]spatial.EntityView, 0, layer.Entities.Len())
	for _, e := range layer.Entities.All() {
		views = append(views, e.View())
	}
	c.scene.LayerLoaded(layer.View(), views)
	c.logger.Debug("Layer installed", "layer_id", layerID, "entities", len(views))
}

// LayerFailed records a layer that could not be loaded; it stays empty.
func (c *Controller) LayerFailed(layerID string, err error) {
	c.logger.Warn("Layer unavailable", "layer_id", layerID, "error", err)
}

// SubmitSearch resolves query to a building and flies to it.
func (c *Controller) SubmitSearch(query string) {
	q := strings.TrimSpace(query)
	if q == "" {
		c.observeSearch(SearchEmpty)
		c.status.Show(MsgEmptyQuery, 0)
		return
	}

	reg, ok := c.layers.Loaded(c.presets.BuildingsLayer)
	if !ok {
		c.observeSearch(SearchNotLoaded)
		c.status.Show(MsgNotLoaded, 0)
		return
	}

	entity, err := search.NewResolver(reg).Resolve(q)
	if err != nil {
		c.observeSearch(SearchNotFound)
		c.status.Show(fmt.Sprintf(MsgNotFoundFormat, q), 0)
		return
	}

	c.observeSearch(SearchFound)
	entity.Visible = true
	c.scene.ApplyVisibility([]*spatial.Entity{entity})

	opts := camera.DefaultOptions()
	if c.mapCfg.FlyDuration > 0 {
		opts.Duration = c.mapCfg.FlyDuration
	}
	c.navigator.FlyTo(entity, opts)

	name, _ := entity.DisplayName()
	c.status.Show(fmt.Sprintf(MsgFlyingFormat, name), c.mapCfg.SearchStatusTimeout)
}

// FocusSearch dismisses the current hint.
func (c *Controller) FocusSearch() {
	c.status.Clear()
}

// SelectCategory filters buildings to a preset category, or shows them all
// for the reset category.
func (c *Controller) SelectCategory(name string) {
	var touched []*spatial.Entity
	if name == visibility.ResetCategory {
		touched = c.filter.ResetAll()
	} else {
		names, ok := c.presets.Names(name)
		if !ok {
			c.logger.Debug("Ignoring unknown category", "category", name)
			return
		}
		touched = c.filter.ShowOnly(names)
	}

	if len(touched) > 0 {
		c.scene.ApplyVisibility(touched)
	}
}

// SelectLegend shows a single layer.
func (c *Controller) SelectLegend(layerID string) {
	shown, ok := c.filter.ShowLayer(layerID)
	if !ok {
		c.logger.Debug("Ignoring unknown layer", "layer_id", layerID)
		return
	}
	c.scene.ShowLayers(shown)
}

// ToggleTracking starts or stops live location tracking.
func (c *Controller) ToggleTracking() {
	state, err := c.tracker.Toggle(c.ctx)
	switch {
	case stderrors.Is(err, tracking.ErrCapabilityUnavailable):
		c.status.Show(MsgNoGeolocation, 0)
	case err != nil:
		c.status.Show(MsgLocationError, 0)
	case state == tracking.Tracking:
		c.status.Show(MsgTrackingStarted, 0)
	default:
		c.status.Show(MsgTrackingStopped, 0)
	}
}

// ProbeLocation asks for a position once so the permission prompt appears early.
func (c *Controller) ProbeLocation() {
	c.tracker.Probe(c.ctx, c.geoCfg.ProbeTimeout, func(err error) {
		switch {
		case err == nil:
		case stderrors.Is(err, tracking.ErrCapabilityUnavailable):
			c.status.Show(MsgNoGeolocation, 0)
		default:
			c.status.Show(MsgAllowLocation, 0)
		}
	})
}

// Shutdown stops tracking and any pending status timer.
func (c *Controller) Shutdown() {
	c.tracker.Stop()
	c.status.stopTimer()
}

func (c *Controller) TrackerState() tracking.State { return c.tracker.State() }

func (c *Controller) Layers() *spatial.LayerSet { return c.layers }

// Entities holds the viewer's own entities, outside any legend layer.
func (c *Controller) Entities() *spatial.Registry { return c.entities }

func (c *Controller) Status() *StatusBoard { return c.status }

func (c *Controller) observeSearch(outcome string) {
	if c.recorder != nil {
		c.recorder.ObserveSearch(outcome)
	}
}

// Run is a convenience for posting a controller call onto its loop.
func (c *Controller) Run(f func(*Controller)) bool {
	return c.loop.Post(func() { f(c) })
}
