package interaction

import (
	"time"
)

// StatusSink is the presentation layer's single transient message slot.
type StatusSink interface {
	ShowStatus(text string)
	ClearStatus()
}

type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d, like time.AfterFunc.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// StatusBoard shows one message at a time and clears it after a timeout.
// Each new message cancels the previous clear, so only the latest timeout
// applies.
type StatusBoard struct {
	sink           StatusSink
	dispatch       func(func()) bool
	afterFunc      AfterFunc
	defaultTimeout time.Duration

	text  string
	timer Timer
	seq   uint64
}

func NewStatusBoard(sink StatusSink, dispatch func(func()) bool, defaultTimeout time.Duration) *StatusBoard {
	return &StatusBoard{
		sink:           sink,
		dispatch:       dispatch,
		afterFunc:      realAfterFunc,
		defaultTimeout: defaultTimeout,
	}
}

// Show displays text for timeout, or the default timeout when it is not positive.
func (b *StatusBoard) Show(text string, timeout time.Duration) {
	if timeout <= 0 {
		timeout = b.defaultTimeout
	}
	b.stopTimer()

	b.seq++
	seq := b.seq
	b.text = text
	b.sink.ShowStatus(text)

	b.timer = b.afterFunc(timeout, func() {
		b.dispatch(func() {
			// A later Show owns the slot now.
			if seq != b.seq {
				return
			}
			b.clear()
		})
	})
}

// Clear hides the current message at once.
func (b *StatusBoard) Clear() {
	b.stopTimer()
	b.seq++
	if b.text != "" {
		b.clear()
	}
}

func (b *StatusBoard) Text() string {
	return b.text
}

func (b *StatusBoard) clear() {
	b.text = ""
	b.timer = nil
	b.sink.ClearStatus()
}

func (b *StatusBoard) stopTimer() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}
