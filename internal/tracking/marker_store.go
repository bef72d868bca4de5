package tracking

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"campus-map-server/internal/shared/redis"

	goredis "github.com/redis/go-redis/v9"
)

// MarkerStore remembers each viewer session's last marker position.
type MarkerStore interface {
	Save(ctx context.Context, sessionID string, pos Position) error
	Load(ctx context.Context, sessionID string) (Position, bool, error)
}

// NewMarkerStore picks Redis when a client is available and memory otherwise.
func NewMarkerStore(client *redis.Client, ttl time.Duration) MarkerStore {
	if client == nil {
		return NewMemoryMarkerStore(ttl)
	}
	return NewRedisMarkerStore(client, ttl)
}

type RedisMarkerStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisMarkerStore(client *redis.Client, ttl time.Duration) *RedisMarkerStore {
	return &RedisMarkerStore{client: client, ttl: ttl}
}

func markerKey(sessionID string) string {
	return redis.Key("marker", sessionID)
}

func (s *RedisMarkerStore) Save(ctx context.Context, sessionID string, pos Position) error {
	data, err := json.Marshal(pos)
	if err != nil {
		return fmt.Errorf("failed to marshal marker position: %w", err)
	}
	if err := s.client.Set(ctx, markerKey(sessionID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save marker position: %w", err)
	}
	return nil
}

func (s *RedisMarkerStore) Load(ctx context.Context, sessionID string) (Position, bool, error) {
	data, err := s.client.Get(ctx, markerKey(sessionID)).Bytes()
	if stderrors.Is(err, goredis.Nil) {
		return Position{}, false, nil
	}
	if err != nil {
		return Position{}, false, fmt.Errorf("failed to load marker position: %w", err)
	}

	var pos Position
	if err := json.Unmarshal(data, &pos); err != nil {
		return Position{}, false, fmt.Errorf("failed to decode marker position: %w", err)
	}
	return pos, true, nil
}

type markerEntry struct {
	position Position
	savedAt  time.Time
}

// MemoryMarkerStore keeps positions in process, expiring them after ttl.
type MemoryMarkerStore struct {
	mu      sync.RWMutex
	entries map[string]markerEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryMarkerStore(ttl time.Duration) *MemoryMarkerStore {
	return &MemoryMarkerStore{
		entries: make(map[string]markerEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *MemoryMarkerStore) Save(_ context.Context, sessionID string, pos Position) error {
	s.mu.Lock()
	s.entries[sessionID] = markerEntry{position: pos, savedAt: s.now()}
	s.mu.Unlock()
	return nil
}

func (s *MemoryMarkerStore) Load(_ context.Context, sessionID string) (Position, bool, error) {
	s.mu.RLock()
	entry, ok := s.entries[sessionID]
	s.mu.RUnlock()

	if !ok || s.expired(entry) {
		return Position{}, false, nil
	}
	return entry.position, true, nil
}

func (s *MemoryMarkerStore) expired(e markerEntry) bool {
	return s.ttl > 0 && s.now().Sub(e.savedAt) > s.ttl
}

// Cleanup drops expired entries and reports how many were removed.
func (s *MemoryMarkerStore) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.entries {
		if s.expired(e) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}

// RunCleanup calls Cleanup every interval until ctx is done.
func (s *MemoryMarkerStore) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger := slog.With("component", "marker_store", "operation", "cleanup")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Cleanup(); n > 0 {
				logger.Debug("Expired marker positions removed", "count", n)
			}
		}
	}
}
