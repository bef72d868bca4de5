// Package tracking follows the viewer's live location with a single marker.
package tracking

import (
	"context"
	"sync"
	"time"

	"campus-map-server/internal/geo"
	"campus-map-server/internal/shared/errors"
)

var (
	ErrCapabilityUnavailable = errors.New(errors.ErrorTypeUnavailable, "geolocation not supported", nil)
	ErrPermissionDenied      = errors.New(errors.ErrorTypePermission, "location permission denied", nil)
	ErrSubscription          = errors.New(errors.ErrorTypeExternal, "location subscription failed", nil)
)

// Geolocation error codes as reported by browsers.
const (
	CodePermissionDenied    = 1
	CodePositionUnavailable = 2
	CodeTimeout             = 3
)

// PositionError classifies a geolocation failure reported by the viewer.
func PositionError(code int, message string) error {
	if code == CodePermissionDenied {
		return errors.New(errors.ErrorTypePermission, message, ErrPermissionDenied)
	}
	return errors.New(errors.ErrorTypeExternal, message, ErrSubscription)
}

type Position struct {
	Coordinate geo.Coordinate `json:"coordinate"`
	Accuracy   float64        `json:"accuracy"`
	Timestamp  time.Time      `json:"timestamp"`
}

// PositionUpdate carries either a fix or a subscription error.
type PositionUpdate struct {
	Position Position
	Err      error
}

type Options struct {
	HighAccuracy bool
	MaximumAge   time.Duration
	Timeout      time.Duration
}

func DefaultOptions() Options {
	return Options{HighAccuracy: true, MaximumAge: time.Second, Timeout: 5 * time.Second}
}

// Geolocator is the viewer's location capability.
type Geolocator interface {
	Available() bool
	CurrentPosition(ctx context.Context, opts Options) (Position, error)
	Watch(ctx context.Context, opts Options) (Subscription, error)
}

// Subscription is a cancellable stream of position updates. Updates are
// delivered in order; Done closes once the subscription is cancelled.
type Subscription interface {
	Updates() <-chan PositionUpdate
	Done() <-chan struct{}
	Cancel()
}

// Feed is a Subscription fed by a producer through Publish.
type Feed struct {
	updates  chan PositionUpdate
	done     chan struct{}
	once     sync.Once
	onCancel func()
}

// NewFeed returns a feed buffering up to buffer updates. onCancel, if set,
// runs once when the feed is cancelled.
func NewFeed(buffer int, onCancel func()) *Feed {
	return &Feed{
		updates:  make(chan PositionUpdate, buffer),
		done:     make(chan struct{}),
		onCancel: onCancel,
	}
}

func (f *Feed) Updates() <-chan PositionUpdate { return f.updates }

func (f *Feed) Done() <-chan struct{} { return f.done }

func (f *Feed) Cancel() {
	f.once.Do(func() {
		close(f.done)
		if f.onCancel != nil {
			f.onCancel()
		}
	})
}

// Publish hands u to the subscriber, blocking while the buffer is full. It
// reports false once the feed is cancelled.
func (f *Feed) Publish(u PositionUpdate) bool {
	select {
	case <-f.done:
		return false
	default:
	}
	select {
	case f.updates <- u:
		return true
	case <-f.done:
		return false
	}
}
