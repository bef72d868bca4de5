package session

import (
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMessage struct {
	Type    string
	ID      string
	Payload json.RawMessage
}

// fakeSender records outbound messages as the viewer would receive them.
type fakeSender struct {
	mu   sync.Mutex
	msgs []sentMessage
	err  error
}

func (s *fakeSender) Send(msgType, id string, payload any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	s.msgs = append(s.msgs, sentMessage{Type: msgType, ID: id, Payload: raw})
	return nil
}

func (s *fakeSender) ofType(msgType string) []sentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []sentMessage
	for _, m := range s.msgs {
		if m.Type == msgType {
			out = append(out, m)
		}
	}
	return out
}

// waitFor returns the first message of msgType, failing the test if none arrives.
func (s *fakeSender) waitFor(t *testing.T, msgType string) sentMessage {
	t.Helper()
	var found sentMessage
	require.Eventually(t, func() bool {
		msgs := s.ofType(msgType)
		if len(msgs) == 0 {
			return false
		}
		found = msgs[0]
		return true
	}, time.Second, 5*time.Millisecond, "no %s message", msgType)
	return found
}

func (s *fakeSender) statuses() []string {
	var out []string
	for _, m := range s.ofType(TypeStatus) {
		var p StatusPayload
		if json.Unmarshal(m.Payload, &p) == nil {
			out = append(out, p.Text)
		}
	}
	return out
}

func (s *fakeSender) waitForStatus(t *testing.T, text string) {
	t.Helper()
	assert.Eventually(t, func() bool {
		for _, got := range s.statuses() {
			if got == text {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond, "status %q never shown", text)
}

func decodePayload[T any](t *testing.T, m sentMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(m.Payload, &v))
	return v
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
