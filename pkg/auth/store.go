package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrSessionNotFound is returned by SessionStore.Load when nothing is stored.
var ErrSessionNotFound = errors.New("auth: session not found")

// SessionStore persists sessions between process runs.
type SessionStore interface {
	Load(ctx context.Context, key string) (*Session, error)
	Save(ctx context.Context, key string, s Session) error
	Delete(ctx context.Context, key string) error
}

// MemoryStore keeps sessions in a map.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]Session)}
}

func (m *MemoryStore) Load(_ context.Context, key string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[key]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return &s, nil
}

func (m *MemoryStore) Save(_ context.Context, key string, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[key] = s
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, key)
	return nil
}

// RedisKeyPrefix namespaces session keys in Redis.
const RedisKeyPrefix = "supabase:auth:"

// Sealer encrypts stored sessions. Values written with a sealer can only be
// read back with the same key.
type Sealer interface {
	Seal(plaintext []byte) ([]byte, error)
	Open(sealed []byte) ([]byte, error)
}

// RedisStore keeps JSON-encoded sessions in Redis under RedisKeyPrefix+key.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	sealer Sealer
}

// NewRedisStore creates a store. A zero ttl stores without expiration.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// WithSealer encrypts sessions before they are written.
func (r *RedisStore) WithSealer(s Sealer) *RedisStore {
	r.sealer = s
	return r
}

func (r *RedisStore) namespaceKey(key string) string {
	return RedisKeyPrefix + key
}

func (r *RedisStore) Load(ctx context.Context, key string) (*Session, error) {
	raw, err := r.client.Get(ctx, r.namespaceKey(key)).Bytes()
	if err == redis.Nil {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", key, err)
	}
	if r.sealer != nil {
		if raw, err = r.sealer.Open(raw); err != nil {
			return nil, fmt.Errorf("unseal session %s: %w", key, err)
		}
	}

	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", key, err)
	}
	return &s, nil
}

func (r *RedisStore) Save(ctx context.Context, key string, s Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", key, err)
	}
	if r.sealer != nil {
		if raw, err = r.sealer.Seal(raw); err != nil {
			return fmt.Errorf("seal session %s: %w", key, err)
		}
	}
	if err := r.client.Set(ctx, r.namespaceKey(key), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("save session %s: %w", key, err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.namespaceKey(key)).Err(); err != nil {
		return fmt.Errorf("delete session %s: %w", key, err)
	}
	return nil
}
