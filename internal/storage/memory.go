package storage

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process LRU store with per-entry expiry.
// It backs tests and single-instance development servers.
type MemoryStore struct {
	capacity int
	items    map[string]*list.Element
	lru      *list.List
	mu       sync.Mutex
	now      func() time.Time
}

type memoryEntry struct {
	key       string
	value     string
	expiresAt time.Time
}

func (e *memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// NewMemoryStore creates a store holding at most capacity keys. capacity <= 0 means unbounded.
func NewMemoryStore(capacity int) *MemoryStore {
	return &MemoryStore{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		lru:      list.New(),
		now:      time.Now,
	}
}

// Get returns the value for key if present and not expired.
func (s *MemoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.items[key]
	if !ok {
		return "", ErrNotFound
	}
	entry := elem.Value.(*memoryEntry)
	if entry.expired(s.now()) {
		s.removeElement(elem)
		return "", ErrNotFound
	}
	s.lru.MoveToFront(elem)
	return entry.value, nil
}

// Set stores value for key, evicting the least recently used entry if at capacity.
func (s *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = s.now().Add(ttl)
	}

	if elem, ok := s.items[key]; ok {
		s.lru.MoveToFront(elem)
		entry := elem.Value.(*memoryEntry)
		entry.value = value
		entry.expiresAt = expiresAt
		return nil
	}

	elem := s.lru.PushFront(&memoryEntry{key: key, value: value, expiresAt: expiresAt})
	s.items[key] = elem

	if s.capacity > 0 && s.lru.Len() > s.capacity {
		if oldest := s.lru.Back(); oldest != nil {
			s.removeElement(oldest)
		}
	}
	return nil
}

// Delete removes key.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if elem, ok := s.items[key]; ok {
		s.removeElement(elem)
	}
	return nil
}

// Len returns the number of stored entries, expired ones included until they are touched.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Len()
}

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) removeElement(elem *list.Element) {
	s.lru.Remove(elem)
	delete(s.items, elem.Value.(*memoryEntry).key)
}
