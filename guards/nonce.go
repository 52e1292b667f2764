package guards

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/joy095/booking-core/logger"
	"github.com/redis/go-redis/v9"
)

// NonceStore records consumed request nonces. CheckAndStore returns true when
// the nonce was accepted and false when it was already seen while live. The
// in-memory store is process-local; the Redis store gives the same guarantee
// across horizontally scaled processes.
type NonceStore interface {
	CheckAndStore(ctx context.Context, nonce, owner string) (bool, error)
}

type nonceEntry struct {
	owner     string
	expiresAt time.Time
}

// MemoryNonceStore is a bounded, TTL-evicting in-memory nonce store.
type MemoryNonceStore struct {
	ttl     time.Duration
	maxSize int

	mu      sync.Mutex
	entries map[string]nonceEntry
	order   []string // insertion order, oldest first

	now func() time.Time
}

// NewMemoryNonceStore creates a store holding at most maxSize live nonces for
// ttl each. When full, the oldest entries are evicted first.
func NewMemoryNonceStore(ttl time.Duration, maxSize int) *MemoryNonceStore {
	return &MemoryNonceStore{
		ttl:     ttl,
		maxSize: maxSize,
		entries: make(map[string]nonceEntry),
		now:     time.Now,
	}
}

// CheckAndStore accepts a nonce exactly once within its TTL.
func (s *MemoryNonceStore) CheckAndStore(_ context.Context, nonce, owner string) (bool, error) {
	if nonce == "" {
		return false, fmt.Errorf("empty nonce")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if e, ok := s.entries[nonce]; ok {
		if e.expiresAt.After(now) {
			return false, nil
		}
		// Drop the stale order slot too; leaving it would make the fresh
		// acceptance below look like the oldest entry at eviction time.
		delete(s.entries, nonce)
		s.dropOrderLocked(nonce)
	}

	if len(s.entries) >= s.maxSize {
		s.evictLocked(now)
	}

	s.entries[nonce] = nonceEntry{owner: owner, expiresAt: now.Add(s.ttl)}
	s.order = append(s.order, nonce)
	return true, nil
}

func (s *MemoryNonceStore) dropOrderLocked(nonce string) {
	for i, n := range s.order {
		if n == nonce {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

// evictLocked drops expired entries first and, if still full, the oldest
// live ones.
func (s *MemoryNonceStore) evictLocked(now time.Time) {
	kept := s.order[:0]
	for _, n := range s.order {
		e, ok := s.entries[n]
		if !ok {
			continue
		}
		if !e.expiresAt.After(now) {
			delete(s.entries, n)
			continue
		}
		kept = append(kept, n)
	}
	s.order = kept

	for len(s.entries) >= s.maxSize && len(s.order) > 0 {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.entries, oldest)
	}
}

// RedisNonceStore backs the nonce guarantee with Redis SetNX, sharing it
// across processes.
type RedisNonceStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisNonceStore creates a Redis-backed nonce store.
func NewRedisNonceStore(client *redis.Client, ttl time.Duration) *RedisNonceStore {
	return &RedisNonceStore{client: client, ttl: ttl, prefix: "nonce:"}
}

// CheckAndStore accepts a nonce exactly once within its TTL.
func (s *RedisNonceStore) CheckAndStore(ctx context.Context, nonce, owner string) (bool, error) {
	if nonce == "" {
		return false, fmt.Errorf("empty nonce")
	}
	set, err := s.client.SetNX(ctx, s.prefix+nonce, owner, s.ttl).Result()
	if err != nil {
		logger.ErrorLogger.Errorf("Redis error storing nonce: %v", err)
		return false, fmt.Errorf("failed to store nonce: %w", err)
	}
	return set, nil
}
