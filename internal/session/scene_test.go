package session

import (
	"fmt"
	"testing"
	"time"

	"campus-map-server/internal/camera"
	"campus-map-server/internal/geo"
	"campus-map-server/internal/spatial"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoteSceneVisibility(t *testing.T) {
	out := &fakeSender{}
	scene := NewRemoteScene(out)

	scene.ApplyVisibility([]*spatial.Entity{
		{ID: "a", Visible: true},
		{ID: "b", Visible: false},
		{ID: "c", Visible: true},
	})

	p := decodePayload[VisibilityPayload](t, out.waitFor(t, TypeVisibility))
	assert.Equal(t, []string{"a", "c"}, p.Shown)
	assert.Equal(t, []string{"b"}, p.Hidden)
}

func TestRemoteSceneTransitionLifecycle(t *testing.T) {
	out := &fakeSender{}
	scene := NewRemoteScene(out)
	e := &spatial.Entity{ID: "shs"}

	var results []error
	scene.FlyToEntity(e, geo.HeadingPitchRange{Pitch: camera.TopDownPitch, Range: 80}, 1600*time.Millisecond, func(err error) {
		results = append(results, err)
	})

	msg := out.waitFor(t, TypeFlyToEntity)
	require.NotEmpty(t, msg.ID)
	p := decodePayload[FlyToEntityPayload](t, msg)
	assert.Equal(t, "shs", p.Entity)
	assert.Equal(t, 80.0, p.Range)
	assert.Equal(t, int64(1600), p.DurationMS)
	assert.Equal(t, 1, scene.Pending())

	assert.True(t, scene.CompleteTransition(msg.ID, TransitionResultPayload{OK: true}))
	assert.False(t, scene.CompleteTransition(msg.ID, TransitionResultPayload{OK: true}), "settles once")
	require.Len(t, results, 1)
	assert.NoError(t, results[0])
	assert.Zero(t, scene.Pending())
}

func TestRemoteSceneTransitionFailure(t *testing.T) {
	out := &fakeSender{}
	scene := NewRemoteScene(out)

	var got error
	scene.FlyToEntity(&spatial.Entity{ID: "x"}, geo.HeadingPitchRange{}, 0, func(err error) { got = err })
	msg := out.waitFor(t, TypeFlyToEntity)

	assert.True(t, scene.CompleteTransition(msg.ID, TransitionResultPayload{OK: false, Error: "no bounding volume"}))
	assert.ErrorIs(t, got, camera.ErrTransitionFailed)
	assert.ErrorContains(t, got, "no bounding volume")
	assert.False(t, scene.CompleteTransition("unknown", TransitionResultPayload{OK: true}))
}

func TestRemoteSceneSendFailureFailsTransition(t *testing.T) {
	out := &fakeSender{err: fmt.Errorf("closed")}
	scene := NewRemoteScene(out)

	var got error
	called := false
	scene.FlyToEntity(&spatial.Entity{ID: "x"}, geo.HeadingPitchRange{}, 0, func(err error) {
		called = true
		got = err
	})

	assert.True(t, called)
	assert.ErrorIs(t, got, camera.ErrTransitionFailed)
	assert.Zero(t, scene.Pending())
}

func TestRemoteSceneCloseFailsPending(t *testing.T) {
	scene := NewRemoteScene(&fakeSender{})

	var got []error
	for i := 0; i < 2; i++ {
		scene.FlyToEntity(&spatial.Entity{ID: "x"}, geo.HeadingPitchRange{}, 0, func(err error) { got = append(got, err) })
	}
	scene.Close()

	require.Len(t, got, 2)
	for _, err := range got {
		assert.ErrorIs(t, err, camera.ErrTransitionFailed)
	}
}

func TestRemoteSceneUnansweredTransitionTimesOut(t *testing.T) {
	out := &fakeSender{}
	scene := NewRemoteScene(out)
	scene.grace = 20 * time.Millisecond

	result := make(chan error, 1)
	scene.FlyToEntity(&spatial.Entity{ID: "x"}, geo.HeadingPitchRange{}, 10*time.Millisecond, func(err error) { result <- err })
	msg := out.waitFor(t, TypeFlyToEntity)

	select {
	case err := <-result:
		assert.ErrorIs(t, err, camera.ErrTransitionFailed)
	case <-time.After(time.Second):
		t.Fatal("transition never settled")
	}
	assert.Zero(t, scene.Pending())
	assert.False(t, scene.CompleteTransition(msg.ID, TransitionResultPayload{OK: true}), "late reply is ignored")
}

func TestRemoteSceneBoundingSphere(t *testing.T) {
	scene := NewRemoteScene(&fakeSender{})

	_, ok := scene.BoundingSphere(&spatial.Entity{ID: "none"})
	assert.False(t, ok)

	_, ok = scene.BoundingSphere(&spatial.Entity{ID: "flat", Bounds: &geo.BoundingSphere{Radius: 0}})
	assert.False(t, ok)

	bs, ok := scene.BoundingSphere(&spatial.Entity{ID: "hall", Bounds: &geo.BoundingSphere{Radius: 30}})
	assert.True(t, ok)
	assert.Equal(t, 30.0, bs.Radius)
}

func TestRemoteSceneStatus(t *testing.T) {
	out := &fakeSender{}
	scene := NewRemoteScene(out)

	scene.ShowStatus("Flying to: Library")
	scene.ClearStatus()

	assert.Equal(t, []string{"Flying to: Library"}, out.statuses())
	assert.Len(t, out.ofType(TypeStatusClear), 1)
}
