package tracking

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"campus-map-server/internal/geo"
	"campus-map-server/internal/spatial"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type loopQueue chan func()

func (q loopQueue) post(f func()) bool {
	q <- f
	return true
}

func (q loopQueue) next(t *testing.T) func() {
	t.Helper()
	select {
	case f := <-q:
		return f
	case <-time.After(time.Second):
		t.Fatal("nothing dispatched")
		return nil
	}
}

func (q loopQueue) runNext(t *testing.T) {
	t.Helper()
	q.next(t)()
}

type fakeGeolocator struct {
	available  bool
	feeds      []*Feed
	watchErr   error
	current    Position
	currentErr error
	lastOpts   Options
}

func (g *fakeGeolocator) Available() bool { return g.available }

func (g *fakeGeolocator) CurrentPosition(context.Context, Options) (Position, error) {
	return g.current, g.currentErr
}

func (g *fakeGeolocator) Watch(_ context.Context, opts Options) (Subscription, error) {
	if g.watchErr != nil {
		return nil, g.watchErr
	}
	g.lastOpts = opts
	f := NewFeed(4, nil)
	g.feeds = append(g.feeds, f)
	return f, nil
}

type cameraFlight struct {
	coord    geo.Coordinate
	orient   geo.Orientation
	duration time.Duration
}

type fakeScene struct {
	placed  []spatial.Entity
	flights []cameraFlight
}

func (s *fakeScene) PlaceMarker(e *spatial.Entity) { s.placed = append(s.placed, *e) }

func (s *fakeScene) FlyToCoordinate(c geo.Coordinate, o geo.Orientation, d time.Duration) {
	s.flights = append(s.flights, cameraFlight{c, o, d})
}

type trackerFixture struct {
	tracker *Tracker
	geo     *fakeGeolocator
	scene   *fakeScene
	queue   loopQueue
	errs     []error
	store    *MemoryMarkerStore
	entities *spatial.Registry
}

func newFixture(available bool) *trackerFixture {
	f := &trackerFixture{
		geo:   &fakeGeolocator{available: available},
		scene: &fakeScene{},
		queue: make(loopQueue, 16),
		store:    NewMemoryMarkerStore(time.Hour),
		entities: spatial.NewRegistry(),
	}
	f.tracker = NewTracker(Config{
		Geolocator: f.geo,
		Scene:      f.scene,
		Camera:     f.scene,
		Store:      f.store,
		Entities:   f.entities,
		SessionID:  "session-1",
		Dispatch:   f.queue.post,
		Options:    DefaultOptions(),
		OnError:    func(err error) { f.errs = append(f.errs, err) },
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return f
}

func fix(lon, lat float64, at time.Time) PositionUpdate {
	return PositionUpdate{Position: Position{
		Coordinate: geo.Coordinate{Longitude: lon, Latitude: lat},
		Timestamp:  at,
	}}
}

func TestStartWithoutCapability(t *testing.T) {
	f := newFixture(false)

	err := f.tracker.Start(context.Background())
	assert.ErrorIs(t, err, ErrCapabilityUnavailable)
	assert.Equal(t, Idle, f.tracker.State())
	assert.Empty(t, f.geo.feeds)
}

func TestStartSubscriptionFailureStaysIdle(t *testing.T) {
	f := newFixture(true)
	f.geo.watchErr = errors.New("viewer gone")

	require.Error(t, f.tracker.Start(context.Background()))
	assert.Equal(t, Idle, f.tracker.State())
}

func TestFirstAndFollowingFixes(t *testing.T) {
	f := newFixture(true)
	require.NoError(t, f.tracker.Start(context.Background()))
	assert.Equal(t, Tracking, f.tracker.State())
	assert.Equal(t, DefaultOptions(), f.geo.lastOpts)

	now := time.Now()
	feed := f.geo.feeds[0]
	feed.Publish(fix(28.2314, -25.7550, now))
	f.queue.runNext(t)

	require.Len(t, f.scene.placed, 1)
	marker := f.scene.placed[0]
	assert.Equal(t, MarkerName, marker.Name)
	assert.Equal(t, spatial.GeometryBillboard, marker.Geometry)
	require.Len(t, f.scene.flights, 1)
	assert.Equal(t, FirstFixDuration, f.scene.flights[0].duration)
	assert.Equal(t, MarkerViewHeight, f.scene.flights[0].coord.Height)
	assert.Equal(t, MarkerPitch, f.scene.flights[0].orient.Pitch)

	feed.Publish(fix(28.2320, -25.7560, now.Add(time.Second)))
	f.queue.runNext(t)

	require.Len(t, f.scene.placed, 2)
	assert.Equal(t, marker.ID, f.scene.placed[1].ID, "marker moves in place")
	coord, ok := f.tracker.Marker().Coordinate()
	require.True(t, ok)
	assert.Equal(t, 28.2320, coord.Longitude)
	assert.Equal(t, FollowFixDuration, f.scene.flights[1].duration)
}

func TestStartWhileTrackingStops(t *testing.T) {
	f := newFixture(true)
	require.NoError(t, f.tracker.Start(context.Background()))
	require.NoError(t, f.tracker.Start(context.Background()))

	assert.Equal(t, Idle, f.tracker.State())
	require.Len(t, f.geo.feeds, 1, "never two subscriptions")
	select {
	case <-f.geo.feeds[0].Done():
	default:
		t.Fatal("subscription was not cancelled")
	}
}

func TestToggle(t *testing.T) {
	f := newFixture(true)

	state, err := f.tracker.Toggle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Tracking, state)

	state, err = f.tracker.Toggle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Idle, state)

	state, err = f.tracker.Toggle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Tracking, state)
	assert.Len(t, f.geo.feeds, 2)
}

func TestMarkerRegisteredOnce(t *testing.T) {
	f := newFixture(true)
	require.NoError(t, f.tracker.Start(context.Background()))
	now := time.Now()
	f.geo.feeds[0].Publish(fix(28.23, -25.75, now))
	f.queue.runNext(t)
	f.geo.feeds[0].Publish(fix(28.24, -25.76, now.Add(time.Second)))
	f.queue.runNext(t)

	require.Equal(t, 1, f.entities.Len())
	registered, ok := f.entities.Get(f.tracker.Marker().ID)
	require.True(t, ok)
	assert.Same(t, f.tracker.Marker(), registered)
	coord, _ := registered.Coordinate()
	assert.Equal(t, 28.24, coord.Longitude)
}

func TestStopKeepsMarker(t *testing.T) {
	f := newFixture(true)
	require.NoError(t, f.tracker.Start(context.Background()))
	f.geo.feeds[0].Publish(fix(28.23, -25.75, time.Now()))
	f.queue.runNext(t)

	f.tracker.Stop()
	assert.Equal(t, Idle, f.tracker.State())
	require.NotNil(t, f.tracker.Marker())
	assert.True(t, f.tracker.Marker().Visible)
}

func TestInFlightUpdateAfterStopIsDropped(t *testing.T) {
	f := newFixture(true)
	require.NoError(t, f.tracker.Start(context.Background()))
	f.geo.feeds[0].Publish(fix(28.23, -25.75, time.Now()))

	pending := f.queue.next(t)
	f.tracker.Stop()
	pending()

	assert.Nil(t, f.tracker.Marker())
	assert.Empty(t, f.scene.flights)
}

func TestUpdateFromOldSubscriptionIsDropped(t *testing.T) {
	f := newFixture(true)
	require.NoError(t, f.tracker.Start(context.Background()))
	f.geo.feeds[0].Publish(fix(28.23, -25.75, time.Now()))
	pending := f.queue.next(t)

	f.tracker.Stop()
	require.NoError(t, f.tracker.Start(context.Background()))
	pending()

	assert.Nil(t, f.tracker.Marker())
}

func TestOutOfOrderFixIsDropped(t *testing.T) {
	f := newFixture(true)
	require.NoError(t, f.tracker.Start(context.Background()))

	now := time.Now()
	feed := f.geo.feeds[0]
	feed.Publish(fix(28.2300, -25.7500, now))
	f.queue.runNext(t)
	feed.Publish(fix(28.9999, -25.9999, now.Add(-time.Second)))
	f.queue.runNext(t)

	coord, _ := f.tracker.Marker().Coordinate()
	assert.Equal(t, 28.2300, coord.Longitude)
	assert.Len(t, f.scene.flights, 1)
}

func TestSubscriptionErrorKeepsTracking(t *testing.T) {
	f := newFixture(true)
	require.NoError(t, f.tracker.Start(context.Background()))

	f.geo.feeds[0].Publish(PositionUpdate{Err: PositionError(CodeTimeout, "timeout expired")})
	f.queue.runNext(t)

	assert.Equal(t, Tracking, f.tracker.State())
	require.Len(t, f.errs, 1)
	assert.ErrorIs(t, f.errs[0], ErrSubscription)
}

func TestFixIsPersistedAndRestored(t *testing.T) {
	f := newFixture(true)
	require.NoError(t, f.tracker.Start(context.Background()))
	f.geo.feeds[0].Publish(fix(28.2314, -25.7550, time.Now()))
	f.queue.runNext(t)

	assert.Eventually(t, func() bool {
		_, ok, _ := f.store.Load(context.Background(), "session-1")
		return ok
	}, time.Second, 10*time.Millisecond)

	again := newFixture(true)
	again.store = f.store
	again.tracker.store = f.store
	again.tracker.LoadRemembered(context.Background())
	again.queue.runNext(t)

	require.NotNil(t, again.tracker.Marker())
	coord, _ := again.tracker.Marker().Coordinate()
	assert.Equal(t, 28.2314, coord.Longitude)
	assert.Len(t, again.scene.placed, 1)
	assert.Empty(t, again.scene.flights, "restoring never moves the camera")
	assert.Equal(t, Idle, again.tracker.State())
}

func TestProbe(t *testing.T) {
	f := newFixture(true)
	f.geo.currentErr = PositionError(CodePermissionDenied, "User denied Geolocation")

	var got error
	f.tracker.Probe(context.Background(), time.Second, func(err error) { got = err })
	f.queue.runNext(t)

	assert.ErrorIs(t, got, ErrPermissionDenied)
	assert.Equal(t, Idle, f.tracker.State())
}

func TestProbeWithoutCapability(t *testing.T) {
	f := newFixture(false)

	var got error
	f.tracker.Probe(context.Background(), 0, func(err error) { got = err })
	f.queue.runNext(t)

	assert.ErrorIs(t, got, ErrCapabilityUnavailable)
}
