package interaction

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startLoop(t *testing.T) *Loop {
	t.Helper()
	loop := NewLoop(discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	go loop.Run(ctx)
	t.Cleanup(cancel)
	return loop
}

// do runs f on the loop and waits for it, including anything f posted first.
func do(t *testing.T, loop *Loop, f func()) {
	t.Helper()
	done := make(chan struct{})
	require.True(t, loop.Post(func() {
		f()
		close(done)
	}))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop did not run the closure")
	}
}

// onLoop evaluates cond on the loop, reporting false if it cannot run.
func onLoop(loop *Loop, cond func() bool) bool {
	result := make(chan bool, 1)
	if !loop.Post(func() { result <- cond() }) {
		return false
	}
	select {
	case ok := <-result:
		return ok
	case <-time.After(time.Second):
		return false
	}
}

func TestLoopRunsInOrder(t *testing.T) {
	loop := startLoop(t)

	var got []int
	for i := 0; i < 100; i++ {
		i := i
		loop.Post(func() { got = append(got, i) })
	}
	do(t, loop, func() {})

	require.Len(t, got, 100)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestLoopPostFromInsideLoop(t *testing.T) {
	loop := startLoop(t)

	ran := make(chan struct{})
	loop.Post(func() {
		loop.Post(func() { close(ran) })
	})

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("nested post never ran")
	}
}

func TestLoopSurvivesPanics(t *testing.T) {
	loop := startLoop(t)

	loop.Post(func() { panic("boom") })
	do(t, loop, func() {})
}

func TestLoopRejectsAfterClose(t *testing.T) {
	loop := NewLoop(discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(stopped)
	}()

	cancel()
	<-stopped

	assert.False(t, loop.Post(func() {}))
	select {
	case <-loop.Done():
	default:
		t.Fatal("done not closed")
	}
}
