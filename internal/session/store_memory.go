package session

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	sess      Session
	expiresAt time.Time
}

// MemoryStore keeps sessions in process. Entries expire after the ttl
// given to Set, like the Redis store.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]memoryEntry
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make(map[string]memoryEntry),
		now:   time.Now,
	}
}

func (s *MemoryStore) Set(ctx context.Context, id string, sess Session, ttl time.Duration) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	exp := sess.ExpiresAt
	if ttl > 0 {
		exp = s.now().Add(ttl)
	}
	s.items[id] = memoryEntry{sess: sess, expiresAt: exp}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Session, error) {
	_ = ctx
	s.mu.RLock()
	entry, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if !entry.expiresAt.IsZero() && s.now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.items, id)
		s.mu.Unlock()
		return nil, ErrNotFound
	}
	sess := entry.sess
	return &sess, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
	return nil
}
