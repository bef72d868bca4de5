package interaction

import (
	"context"
	"log/slog"
	"sync"
)

// Loop runs posted closures one at a time in FIFO order on a single
// goroutine. Everything that touches a controller goes through its loop.
type Loop struct {
	mu     sync.Mutex
	queue  []func()
	closed bool
	wake   chan struct{}
	done   chan struct{}
	logger *slog.Logger
}

func NewLoop(logger *slog.Logger) *Loop {
	return &Loop{
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		logger: logger.With("component", "event_loop"),
	}
}

// Post queues f. It never blocks, so it is safe to call from the loop itself.
// It reports false once the loop is closed.
func (l *Loop) Post(f func()) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, f)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Run drains the queue until ctx is done or Close is called. Closures still
// queued at that point are discarded.
func (l *Loop) Run(ctx context.Context) {
	defer l.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.done:
			return
		case <-l.wake:
		}

		for {
			f, ok := l.pop()
			if !ok {
				break
			}
			l.run(f)
		}
	}
}

func (l *Loop) pop() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed || len(l.queue) == 0 {
		return nil, false
	}
	f := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return f, true
}

func (l *Loop) run(f func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("Event handler panicked", "panic", r)
		}
	}()
	f()
}

func (l *Loop) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	l.queue = nil
	close(l.done)
}

// Done is closed once the loop stops accepting work.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}
