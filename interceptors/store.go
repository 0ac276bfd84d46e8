package interceptors

import (
	"errors"
	"sync"
	"time"

	"github.com/go-redis/redis"
)

// Store keeps encoded results for Cache.
type Store interface {
	// Get returns the entry stored under key. A missing or expired entry is
	// reported with ok == false and no error.
	Get(key string) (data []byte, ok bool, err error)

	// Set stores data under key. A zero ttl keeps the entry until it is
	// deleted.
	Set(key string, data []byte, ttl time.Duration) error

	Delete(key string) error
}

type memoryEntry struct {
	data    []byte
	expires time.Time
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (s *MemoryStore) Get(key string) ([]byte, bool, error) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}
	if !entry.expires.IsZero() && !s.now().Before(entry.expires) {
		s.mu.Lock()
		if current, ok := s.entries[key]; ok && current.expires.Equal(entry.expires) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return nil, false, nil
	}
	return entry.data, true, nil
}

func (s *MemoryStore) Set(key string, data []byte, ttl time.Duration) error {
	entry := memoryEntry{data: append([]byte(nil), data...)}
	if ttl > 0 {
		entry.expires = s.now().Add(ttl)
	}

	s.mu.Lock()
	s.entries[key] = entry
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

// Len returns the number of entries, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// RedisClient is the part of *redis.Client a RedisStore uses.
type RedisClient interface {
	Get(key string) *redis.StringCmd
	Set(key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(keys ...string) *redis.IntCmd
}

var _ RedisClient = (*redis.Client)(nil)

// RedisStore is a Store on a Redis server. Keys are prefixed with Prefix.
type RedisStore struct {
	Client RedisClient
	Prefix string
}

// NewRedisStore creates a RedisStore over a client for opts.
func NewRedisStore(opts *redis.Options, prefix string) *RedisStore {
	return &RedisStore{Client: redis.NewClient(opts), Prefix: prefix}
}

func (s *RedisStore) Get(key string) ([]byte, bool, error) {
	data, err := s.Client.Get(s.Prefix + key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (s *RedisStore) Set(key string, data []byte, ttl time.Duration) error {
	return s.Client.Set(s.Prefix+key, data, ttl).Err()
}

func (s *RedisStore) Delete(key string) error {
	return s.Client.Del(s.Prefix + key).Err()
}
