package nonce

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a mutex-guarded in-memory Store used for unit tests and for
// running the service without Redis. Expired entries are purged from a
// namespace before each check, which bounds growth and re-opens values whose
// window has elapsed.
type MemoryStore struct {
	mu   sync.Mutex
	seen map[Namespace]map[string]time.Time
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		seen: make(map[Namespace]map[string]time.Time),
		now:  time.Now,
	}
}

func (s *MemoryStore) CheckAndConsume(ctx context.Context, ns Namespace, value string) (bool, error) {
	if value == "" {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	bucket, ok := s.seen[ns]
	if !ok {
		bucket = make(map[string]time.Time)
		s.seen[ns] = bucket
	}

	now := s.now()
	cutoff := now.Add(-Window)
	for v, at := range bucket {
		if at.Before(cutoff) {
			delete(bucket, v)
		}
	}

	if _, dup := bucket[value]; dup {
		return false, nil
	}
	bucket[value] = now
	return true, nil
}
