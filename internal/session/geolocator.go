package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"campus-map-server/internal/geo"
	"campus-map-server/internal/shared/errors"
	"campus-map-server/internal/tracking"

	"github.com/google/uuid"
)

const watchBuffer = 16

// RemoteGeolocator exposes the viewer's browser geolocation. Watches and
// one-shot requests share one ID space; replies name the ID they answer.
type RemoteGeolocator struct {
	out       Sender
	available atomic.Bool

	mu       sync.Mutex
	watches  map[string]*tracking.Feed
	requests map[string]chan tracking.PositionUpdate
}

func NewRemoteGeolocator(out Sender) *RemoteGeolocator {
	return &RemoteGeolocator{
		out:      out,
		watches:  make(map[string]*tracking.Feed),
		requests: make(map[string]chan tracking.PositionUpdate),
	}
}

// SetAvailable records whether the viewer's browser offers geolocation.
func (g *RemoteGeolocator) SetAvailable(ok bool) { g.available.Store(ok) }

func (g *RemoteGeolocator) Available() bool { return g.available.Load() }

func (g *RemoteGeolocator) Watch(ctx context.Context, opts tracking.Options) (tracking.Subscription, error) {
	if !g.Available() {
		return nil, tracking.ErrCapabilityUnavailable
	}

	id := uuid.NewString()
	feed := tracking.NewFeed(watchBuffer, func() {
		g.mu.Lock()
		delete(g.watches, id)
		g.mu.Unlock()
		g.out.Send(TypeClearWatch, "", ClearWatchPayload{Watch: id})
	})

	g.mu.Lock()
	g.watches[id] = feed
	g.mu.Unlock()

	if err := g.out.Send(TypeWatchPosition, "", watchPayload(id, opts)); err != nil {
		g.mu.Lock()
		delete(g.watches, id)
		g.mu.Unlock()
		return nil, errors.New(errors.ErrorTypeExternal, "failed to open position watch", tracking.ErrSubscription)
	}
	return feed, nil
}

func (g *RemoteGeolocator) CurrentPosition(ctx context.Context, opts tracking.Options) (tracking.Position, error) {
	if !g.Available() {
		return tracking.Position{}, tracking.ErrCapabilityUnavailable
	}

	id := uuid.NewString()
	reply := make(chan tracking.PositionUpdate, 1)
	g.mu.Lock()
	g.requests[id] = reply
	g.mu.Unlock()
	defer func() {
		g.mu.Lock()
		delete(g.requests, id)
		g.mu.Unlock()
	}()

	if err := g.out.Send(TypeGetPosition, "", watchPayload(id, opts)); err != nil {
		return tracking.Position{}, errors.New(errors.ErrorTypeExternal, "failed to request position", tracking.ErrSubscription)
	}

	var timeout <-chan time.Time
	if opts.Timeout > 0 {
		timer := time.NewTimer(opts.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case u := <-reply:
		return u.Position, u.Err
	case <-timeout:
		return tracking.Position{}, tracking.PositionError(tracking.CodeTimeout, "position request timed out")
	case <-ctx.Done():
		return tracking.Position{}, ctx.Err()
	}
}

// Deliver routes a fix to the watch or request it answers. It reports false
// when nothing is waiting for that ID. A fix without a browser timestamp keeps
// the zero time; server time is never mixed with the browser clock.
func (g *RemoteGeolocator) Deliver(p PositionPayload) bool {
	var ts time.Time
	if p.Timestamp > 0 {
		ts = time.UnixMilli(p.Timestamp)
	}
	return g.route(p.Watch, tracking.PositionUpdate{Position: tracking.Position{
		Coordinate: geo.Coordinate{Longitude: p.Lon, Latitude: p.Lat, Height: p.Height},
		Accuracy:   p.Accuracy,
		Timestamp:  ts,
	}})
}

// Fail routes a geolocation error to the watch or request it answers.
func (g *RemoteGeolocator) Fail(p PositionErrorPayload) bool {
	return g.route(p.Watch, tracking.PositionUpdate{Err: tracking.PositionError(p.Code, p.Message)})
}

func (g *RemoteGeolocator) route(id string, u tracking.PositionUpdate) bool {
	g.mu.Lock()
	feed, isWatch := g.watches[id]
	reply, isRequest := g.requests[id]
	if isRequest {
		delete(g.requests, id)
	}
	g.mu.Unlock()

	switch {
	case isWatch:
		return feed.Publish(u)
	case isRequest:
		reply <- u
		return true
	default:
		return false
	}
}

// Close cancels every open watch.
func (g *RemoteGeolocator) Close() {
	g.mu.Lock()
	feeds := make([]*tracking.Feed, 0, len(g.watches))
	for _, f := range g.watches {
		feeds = append(feeds, f)
	}
	g.mu.Unlock()

	for _, f := range feeds {
		f.Cancel()
	}
}

func watchPayload(id string, opts tracking.Options) WatchPayload {
	return WatchPayload{
		Watch:        id,
		HighAccuracy: opts.HighAccuracy,
		MaximumAgeMS: opts.MaximumAge.Milliseconds(),
		TimeoutMS:    opts.Timeout.Milliseconds(),
	}
}
