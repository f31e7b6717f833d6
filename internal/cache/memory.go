package cache

import (
	"container/list"
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// MemoryStore is a concurrent-safe LRU cache with TTL expiration.
type MemoryStore struct {
	mu         sync.Mutex
	entries    map[string]*list.Element
	order      *list.List // front=newest, back=oldest
	maxEntries int
	ttl        time.Duration
	clock      Clock
	hits       atomic.Int64
	misses     atomic.Int64
}

type memoryEntry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock replaces the wall clock used for expiry.
func WithClock(c Clock) MemoryOption {
	return func(s *MemoryStore) { s.clock = c }
}

// NewMemoryStore creates a MemoryStore holding at most maxEntries values.
// A non-positive ttl selects DefaultTTL.
func NewMemoryStore(maxEntries int, ttl time.Duration, opts ...MemoryOption) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &MemoryStore{
		entries:    make(map[string]*list.Element),
		order:      list.New(),
		maxEntries: maxEntries,
		ttl:        ttl,
		clock:      SystemClock,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get implements Store. Expired entries are removed on access.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.entries[key]
	if !ok {
		s.misses.Add(1)
		return nil, false, nil
	}
	e := el.Value.(*memoryEntry)
	if !s.clock.Now().Before(e.expiresAt) {
		s.remove(el)
		s.misses.Add(1)
		return nil, false, nil
	}

	s.order.MoveToFront(el)
	s.hits.Add(1)
	return e.value, true, nil
}

// Set implements Store, evicting the least recently used entry at capacity.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.ttl
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	expiresAt := s.clock.Now().Add(ttl)
	if el, ok := s.entries[key]; ok {
		e := el.Value.(*memoryEntry)
		e.value = value
		e.expiresAt = expiresAt
		s.order.MoveToFront(el)
		return nil
	}

	for len(s.entries) >= s.maxEntries {
		s.remove(s.order.Back())
	}
	s.entries[key] = s.order.PushFront(&memoryEntry{key: key, value: value, expiresAt: expiresAt})
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if el, ok := s.entries[key]; ok {
		s.remove(el)
	}
	return nil
}

// Clear implements Store.
func (s *MemoryStore) Clear(_ context.Context, prefix string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for key, el := range s.entries {
		if strings.HasPrefix(key, prefix) {
			s.remove(el)
			n++
		}
	}
	return n, nil
}

// Stats implements Store.
func (s *MemoryStore) Stats(context.Context) (Stats, error) {
	s.mu.Lock()
	entries := len(s.entries)
	s.mu.Unlock()

	hits, misses := s.hits.Load(), s.misses.Load()
	return Stats{
		Backend:    "memory",
		Entries:    entries,
		MaxEntries: s.maxEntries,
		Hits:       hits,
		Misses:     misses,
		HitRate:    hitRate(hits, misses),
	}, nil
}

// remove deletes el from both indexes. Callers hold mu.
func (s *MemoryStore) remove(el *list.Element) {
	s.order.Remove(el)
	delete(s.entries, el.Value.(*memoryEntry).key)
}
