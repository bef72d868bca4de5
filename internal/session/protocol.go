// Package session serves one websocket connection per viewer and bridges it
// to an interaction controller.
package session

import (
	"embed"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"campus-map-server/internal/geo"
	"campus-map-server/internal/shared/errors"
	"campus-map-server/internal/spatial"

	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"
)

// Inbound message types.
const (
	TypeHello            = "hello"
	TypeSearch           = "search"
	TypeSearchFocus      = "search_focus"
	TypeCategory         = "category"
	TypeLegend           = "legend"
	TypeTrackToggle      = "track_toggle"
	TypeTransitionResult = "transition_result"
	TypePosition         = "position"
	TypePositionError    = "position_error"
)

// Outbound message types.
const (
	TypeStatus          = "status"
	TypeStatusClear     = "status_clear"
	TypeLayers          = "layers"
	TypeLayerLoaded     = "layer_loaded"
	TypeLayerVisibility = "layer_visibility"
	TypeVisibility      = "visibility"
	TypeFlyToEntity     = "fly_to_entity"
	TypeFlyTo           = "fly_to"
	TypeMarker          = "marker"
	TypeWatchPosition   = "watch_position"
	TypeClearWatch      = "clear_watch"
	TypeGetPosition     = "get_position"
	TypeError           = "error"
)

// Envelope frames every message in both directions. ID correlates a request
// with its reply.
type Envelope struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type HelloPayload struct {
	Geolocation bool `json:"geolocation"`
}

type SearchPayload struct {
	Query string `json:"query"`
}

type CategoryPayload struct {
	Name string `json:"name"`
}

type LegendPayload struct {
	Layer string `json:"layer"`
}

type TransitionResultPayload struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type PositionPayload struct {
	Watch    string  `json:"watch"`
	Lon      float64 `json:"lon"`
	Lat      float64 `json:"lat"`
	Height   float64 `json:"height"`
	Accuracy float64 `json:"accuracy"`
	// Timestamp is in Unix milliseconds.
	Timestamp int64 `json:"timestamp"`
}

type PositionErrorPayload struct {
	Watch   string `json:"watch"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type StatusPayload struct {
	Text string `json:"text"`
}

type LayersPayload struct {
	Layers []spatial.LayerView `json:"layers"`
}

type LayerLoadedPayload struct {
	Layer    spatial.LayerView    `json:"layer"`
	Entities []spatial.EntityView `json:"entities"`
}

type LayerVisibilityPayload struct {
	Layers map[string]bool `json:"layers"`
}

type VisibilityPayload struct {
	Shown  []string `json:"shown"`
	Hidden []string `json:"hidden"`
}

type FlyToEntityPayload struct {
	Entity     string  `json:"entity"`
	Heading    float64 `json:"heading"`
	Pitch      float64 `json:"pitch"`
	Range      float64 `json:"range"`
	DurationMS int64   `json:"duration_ms"`
}

type FlyToPayload struct {
	Destination geo.Cartesian3 `json:"destination"`
	Heading     float64        `json:"heading"`
	Pitch       float64        `json:"pitch"`
	DurationMS  int64          `json:"duration_ms"`
}

type MarkerPayload struct {
	Entity spatial.EntityView `json:"entity"`
}

type WatchPayload struct {
	Watch        string `json:"watch"`
	HighAccuracy bool   `json:"high_accuracy"`
	MaximumAgeMS int64  `json:"maximum_age_ms"`
	TimeoutMS    int64  `json:"timeout_ms"`
}

type ClearWatchPayload struct {
	Watch string `json:"watch"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

//go:embed schemas/*.json
var schemaFiles embed.FS

var (
	layerIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)
	registerOnce   sync.Once
)

type layerIDFormatChecker struct{}

func (layerIDFormatChecker) IsFormat(input interface{}) bool {
	s, ok := input.(string)
	return ok && layerIDPattern.MatchString(s)
}

type requestIDFormatChecker struct{}

func (requestIDFormatChecker) IsFormat(input interface{}) bool {
	s, ok := input.(string)
	if !ok {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

func registerFormats() {
	registerOnce.Do(func() {
		gojsonschema.FormatCheckers.Add("layer_id", layerIDFormatChecker{})
		gojsonschema.FormatCheckers.Add("request_id", requestIDFormatChecker{})
	})
}

// Decoder validates inbound messages against the embedded JSON schemas.
type Decoder struct {
	envelope *gojsonschema.Schema
	payloads map[string]*gojsonschema.Schema
}

func NewDecoder() (*Decoder, error) {
	registerFormats()

	entries, err := schemaFiles.ReadDir("schemas")
	if err != nil {
		return nil, fmt.Errorf("failed to list message schemas: %w", err)
	}

	d := &Decoder{payloads: make(map[string]*gojsonschema.Schema)}
	for _, entry := range entries {
		data, err := schemaFiles.ReadFile("schemas/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read schema %s: %w", entry.Name(), err)
		}
		schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to compile schema %s: %w", entry.Name(), err)
		}

		name := strings.TrimSuffix(entry.Name(), ".json")
		if name == "envelope" {
			d.envelope = schema
			continue
		}
		d.payloads[name] = schema
	}
	if d.envelope == nil {
		return nil, fmt.Errorf("envelope schema missing")
	}
	return d, nil
}

// Decode validates data as an inbound envelope and its typed payload.
func (d *Decoder) Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := validate(d.envelope, data); err != nil {
		return env, errors.WrapValidation("invalid message", err)
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return env, errors.WrapValidation("invalid message", err)
	}

	schema, ok := d.payloads[env.Type]
	if !ok {
		return env, nil
	}
	payload := env.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	if err := validate(schema, payload); err != nil {
		return env, errors.WrapValidation(fmt.Sprintf("invalid %s payload", env.Type), err)
	}
	return env, nil
}

func validate(schema *gojsonschema.Schema, data []byte) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return err
	}
	if result.Valid() {
		return nil
	}
	problems := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}
	return fmt.Errorf("%s", strings.Join(problems, "; "))
}

// Unmarshal decodes the envelope payload into v.
func (e Envelope) Unmarshal(v any) error {
	if len(e.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(e.Payload, v)
}

func encode(msgType, id string, payload any) ([]byte, error) {
	env := Envelope{Type: msgType, ID: id}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		env.Payload = raw
	}
	return json.Marshal(env)
}
