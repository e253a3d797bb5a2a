package catalog

import (
	"context"
	"errors"
	"sync"

	"github.com/redis/go-redis/v9"
)

// ErrUnavailable is returned by a KV that cannot currently be reached.
var ErrUnavailable = errors.New("catalog: storage unavailable")

// KV persists the catalog document under a single key.
type KV interface {
	Load(ctx context.Context, key string) ([]byte, bool, error)
	Save(ctx context.Context, key string, value []byte) error
}

// MemoryKV keeps documents in process memory.
type MemoryKV struct {
	mu          sync.RWMutex
	data        map[string][]byte
	unavailable bool
}

// NewMemoryKV constructs an empty in-memory KV.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string][]byte)}
}

// SetUnavailable makes subsequent calls fail with ErrUnavailable.
func (m *MemoryKV) SetUnavailable(v bool) {
	m.mu.Lock()
	m.unavailable = v
	m.mu.Unlock()
}

// Load implements KV.
func (m *MemoryKV) Load(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.unavailable {
		return nil, false, ErrUnavailable
	}
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

// Save implements KV.
func (m *MemoryKV) Save(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unavailable {
		return ErrUnavailable
	}
	if m.data == nil {
		m.data = make(map[string][]byte)
	}
	m.data[key] = append([]byte(nil), value...)
	return nil
}

// Ping implements a health probe.
func (m *MemoryKV) Ping(context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.unavailable {
		return ErrUnavailable
	}
	return nil
}

// RedisKV stores documents as plain Redis strings without expiry.
type RedisKV struct {
	client *redis.Client
}

// NewRedisKV wraps a Redis client.
func NewRedisKV(client *redis.Client) *RedisKV {
	return &RedisKV{client: client}
}

// Load implements KV.
func (r *RedisKV) Load(ctx context.Context, key string) ([]byte, bool, error) {
	if r == nil || r.client == nil {
		return nil, false, ErrUnavailable
	}
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

// Save implements KV.
func (r *RedisKV) Save(ctx context.Context, key string, value []byte) error {
	if r == nil || r.client == nil {
		return ErrUnavailable
	}
	return r.client.Set(ctx, key, value, 0).Err()
}

// Ping implements a health probe.
func (r *RedisKV) Ping(ctx context.Context) error {
	if r == nil || r.client == nil {
		return ErrUnavailable
	}
	return r.client.Ping(ctx).Err()
}
