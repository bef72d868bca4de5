package session

import (
	"sync"
	"time"

	"campus-map-server/internal/camera"
	"campus-map-server/internal/geo"
	"campus-map-server/internal/shared/errors"
	"campus-map-server/internal/spatial"

	"github.com/google/uuid"
)

// transitionGrace is how long past its flight duration a framed transition
// may stay unanswered before it is failed.
const transitionGrace = 5 * time.Second

type pendingTransition struct {
	done  func(error)
	timer *time.Timer
}

// RemoteScene drives the viewer's rendering engine over the connection.
// Framed transitions are completed by transition_result replies, or failed
// when the viewer stays silent past the flight plus transitionGrace.
type RemoteScene struct {
	out     Sender
	grace   time.Duration
	mu      sync.Mutex
	pending map[string]pendingTransition
}

func NewRemoteScene(out Sender) *RemoteScene {
	return &RemoteScene{out: out, grace: transitionGrace, pending: make(map[string]pendingTransition)}
}

func (s *RemoteScene) DeclareLayers(layers []spatial.LayerView) {
	s.out.Send(TypeLayers, "", LayersPayload{Layers: layers})
}

func (s *RemoteScene) LayerLoaded(layer spatial.LayerView, entities []spatial.EntityView) {
	s.out.Send(TypeLayerLoaded, "", LayerLoadedPayload{Layer: layer, Entities: entities})
}

func (s *RemoteScene) ApplyVisibility(entities []*spatial.Entity) {
	p := VisibilityPayload{Shown: []string{}, Hidden: []string{}}
	for _, e := range entities {
		if e.Visible {
			p.Shown = append(p.Shown, e.ID)
		} else {
			p.Hidden = append(p.Hidden, e.ID)
		}
	}
	s.out.Send(TypeVisibility, "", p)
}

func (s *RemoteScene) ShowLayers(shown map[string]bool) {
	s.out.Send(TypeLayerVisibility, "", LayerVisibilityPayload{Layers: shown})
}

func (s *RemoteScene) PlaceMarker(e *spatial.Entity) {
	s.out.Send(TypeMarker, "", MarkerPayload{Entity: e.View()})
}

func (s *RemoteScene) ShowStatus(text string) {
	s.out.Send(TypeStatus, "", StatusPayload{Text: text})
}

func (s *RemoteScene) ClearStatus() {
	s.out.Send(TypeStatusClear, "", nil)
}

// BoundingSphere uses the catalog bounds; the viewer computes nothing for us.
func (s *RemoteScene) BoundingSphere(e *spatial.Entity) (geo.BoundingSphere, bool) {
	if e.Bounds == nil || e.Bounds.Radius <= 0 {
		return geo.BoundingSphere{}, false
	}
	return *e.Bounds, true
}

func (s *RemoteScene) FlyToEntity(e *spatial.Entity, offset geo.HeadingPitchRange, duration time.Duration, done func(error)) {
	id := uuid.NewString()
	s.mu.Lock()
	s.pending[id] = pendingTransition{
		done: done,
		timer: time.AfterFunc(duration+s.grace, func() {
			s.resolve(id, errors.New(errors.ErrorTypeExternal, "viewer did not answer transition", camera.ErrTransitionFailed))
		}),
	}
	s.mu.Unlock()

	err := s.out.Send(TypeFlyToEntity, id, FlyToEntityPayload{
		Entity:     e.ID,
		Heading:    offset.Heading,
		Pitch:      offset.Pitch,
		Range:      offset.Range,
		DurationMS: duration.Milliseconds(),
	})
	if err != nil {
		s.resolve(id, errors.New(errors.ErrorTypeExternal, "failed to request transition", camera.ErrTransitionFailed))
	}
}

func (s *RemoteScene) FlyToDestination(dest geo.Cartesian3, orientation geo.Orientation, duration time.Duration) {
	s.out.Send(TypeFlyTo, "", FlyToPayload{
		Destination: dest,
		Heading:     orientation.Heading,
		Pitch:       orientation.Pitch,
		DurationMS:  duration.Milliseconds(),
	})
}

// CompleteTransition settles the transition with the given request ID. It
// reports false for an unknown or already settled ID.
func (s *RemoteScene) CompleteTransition(id string, result TransitionResultPayload) bool {
	var err error
	if !result.OK {
		msg := result.Error
		if msg == "" {
			msg = "viewer could not frame entity"
		}
		err = errors.New(errors.ErrorTypeExternal, msg, camera.ErrTransitionFailed)
	}
	return s.resolve(id, err)
}

func (s *RemoteScene) resolve(id string, err error) bool {
	s.mu.Lock()
	p, ok := s.pending[id]
	delete(s.pending, id)
	s.mu.Unlock()
	if !ok {
		return false
	}
	p.timer.Stop()
	p.done(err)
	return true
}

// Pending reports how many transitions await a result.
func (s *RemoteScene) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Close fails every outstanding transition.
func (s *RemoteScene) Close() {
	s.mu.Lock()
	pending := s.pending
	s.pending = make(map[string]pendingTransition)
	s.mu.Unlock()

	for _, p := range pending {
		p.timer.Stop()
		p.done(camera.ErrTransitionFailed)
	}
}
