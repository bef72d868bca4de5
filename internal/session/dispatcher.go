package session

import (
	"log/slog"

	"campus-map-server/internal/interaction"

	"golang.org/x/time/rate"
)

// userEvents are throttled; replies to our own requests never are.
var userEvents = map[string]bool{
	TypeSearch:      true,
	TypeSearchFocus: true,
	TypeCategory:    true,
	TypeLegend:      true,
	TypeTrackToggle: true,
}

type dispatcher struct {
	decoder    *Decoder
	ctrl       *interaction.Controller
	scene      *RemoteScene
	geolocator *RemoteGeolocator
	out        Sender
	limiter    *rate.Limiter
	recorder   MessageRecorder
	logger     *slog.Logger
}

func (d *dispatcher) handle(data []byte) {
	env, err := d.decoder.Decode(data)
	if err != nil {
		d.logger.Debug("Rejected viewer message", "error", err)
		d.out.Send(TypeError, env.ID, ErrorPayload{Message: err.Error()})
		return
	}
	if d.recorder != nil {
		d.recorder.ObserveMessage("in", env.Type)
	}

	if userEvents[env.Type] && d.limiter != nil && !d.limiter.Allow() {
		d.logger.Debug("Viewer message rate exceeded", "type", env.Type)
		d.out.Send(TypeError, env.ID, ErrorPayload{Message: "too many messages"})
		return
	}

	switch env.Type {
	case TypeHello:
		var p HelloPayload
		if d.unmarshal(env, &p) {
			d.geolocator.SetAvailable(p.Geolocation)
			d.ctrl.Run(func(c *interaction.Controller) { c.ProbeLocation() })
		}
	case TypeSearch:
		var p SearchPayload
		if d.unmarshal(env, &p) {
			d.ctrl.Run(func(c *interaction.Controller) { c.SubmitSearch(p.Query) })
		}
	case TypeSearchFocus:
		d.ctrl.Run(func(c *interaction.Controller) { c.FocusSearch() })
	case TypeCategory:
		var p CategoryPayload
		if d.unmarshal(env, &p) {
			d.ctrl.Run(func(c *interaction.Controller) { c.SelectCategory(p.Name) })
		}
	case TypeLegend:
		var p LegendPayload
		if d.unmarshal(env, &p) {
			d.ctrl.Run(func(c *interaction.Controller) { c.SelectLegend(p.Layer) })
		}
	case TypeTrackToggle:
		d.ctrl.Run(func(c *interaction.Controller) { c.ToggleTracking() })
	case TypeTransitionResult:
		var p TransitionResultPayload
		if d.unmarshal(env, &p) && !d.scene.CompleteTransition(env.ID, p) {
			d.logger.Debug("Ignoring result for unknown transition", "id", env.ID)
		}
	case TypePosition:
		var p PositionPayload
		if d.unmarshal(env, &p) && !d.geolocator.Deliver(p) {
			d.logger.Debug("Ignoring position for closed watch", "watch", p.Watch)
		}
	case TypePositionError:
		var p PositionErrorPayload
		if d.unmarshal(env, &p) && !d.geolocator.Fail(p) {
			d.logger.Debug("Ignoring position error for closed watch", "watch", p.Watch)
		}
	}
}

func (d *dispatcher) unmarshal(env Envelope, v any) bool {
	if err := env.Unmarshal(v); err != nil {
		d.logger.Debug("Failed to decode payload", "type", env.Type, "error", err)
		return false
	}
	return true
}
