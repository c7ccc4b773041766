package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"bizplan-workers/internal/common/errors"
)

// Store persists session state keyed by token. Load returns a
// SESSION_NOT_FOUND error for unknown or expired tokens.
type Store interface {
	Load(ctx context.Context, token string) (*State, error)
	Save(ctx context.Context, state *State) error
	Delete(ctx context.Context, token string) error
}

const keyPrefix = "plan:session:"

func sessionKey(token string) string {
	return keyPrefix + token
}

// RedisStore keeps sessions as JSON strings with a TTL that is refreshed on
// every save.
type RedisStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisStore(client redis.Cmdable, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Load(ctx context.Context, token string) (*State, error) {
	raw, err := s.client.Get(ctx, sessionKey(token)).Bytes()
	if err == redis.Nil {
		return nil, errors.NewSessionNotFoundError(token)
	}
	if err != nil {
		return nil, errors.NewDatabaseQueryError("load session", err)
	}

	var state State
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, errors.NewDatabaseQueryError("decode session", err)
	}
	return &state, nil
}

func (s *RedisStore) Save(ctx context.Context, state *State) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.client.Set(ctx, sessionKey(state.Token), raw, s.ttl).Err(); err != nil {
		return errors.NewDatabaseQueryError("save session", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, sessionKey(token)).Err(); err != nil {
		return errors.NewDatabaseQueryError("delete session", err)
	}
	return nil
}

// MemoryStore keeps sessions in process memory. Suitable for a single
// process and for tests.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	raw       []byte
	expiresAt time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:     ttl,
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (s *MemoryStore) Load(ctx context.Context, token string) (*State, error) {
	s.mu.Lock()
	entry, ok := s.entries[token]
	if ok && s.ttl > 0 && s.now().After(entry.expiresAt) {
		delete(s.entries, token)
		ok = false
	}
	s.mu.Unlock()

	if !ok {
		return nil, errors.NewSessionNotFoundError(token)
	}

	var state State
	if err := json.Unmarshal(entry.raw, &state); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &state, nil
}

// Save stores a serialized copy so callers cannot mutate stored state.
func (s *MemoryStore) Save(ctx context.Context, state *State) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	s.mu.Lock()
	s.entries[state.Token] = memoryEntry{raw: raw, expiresAt: s.now().Add(s.ttl)}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, token string) error {
	s.mu.Lock()
	delete(s.entries, token)
	s.mu.Unlock()
	return nil
}
