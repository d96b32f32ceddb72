package store

import (
	"context"
	"sync"
	"time"
)

const defaultJanitorInterval = 30 * time.Second

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore is an in-process Store with a background janitor that sweeps
// expired entries. Expiry is enforced on read as well, so a stale entry is
// invisible even before the janitor reaches it.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry

	janitorInterval time.Duration
	stop            chan struct{}
	stopOnce        sync.Once
}

// NewMemoryStore creates a memory-backed store and starts its janitor.
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithInterval(defaultJanitorInterval)
}

// NewMemoryStoreWithInterval creates a memory store with a custom janitor
// cadence. Intervals below one second are clamped.
func NewMemoryStoreWithInterval(interval time.Duration) *MemoryStore {
	if interval < time.Second {
		interval = time.Second
	}
	s := &MemoryStore{
		entries:         make(map[string]memoryEntry),
		janitorInterval: interval,
		stop:            make(chan struct{}),
	}
	go s.janitorLoop()
	return s
}

func compositeKey(namespace, key string) string {
	return namespace + "\x00" + key
}

func (s *MemoryStore) Get(_ context.Context, namespace, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[compositeKey(namespace, key)]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false, nil
	}
	return cloneValue(entry.value), true, nil
}

func (s *MemoryStore) GetMany(_ context.Context, namespace string, keys []string) (map[string][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	out := make(map[string][]byte, len(keys))
	for _, key := range keys {
		if entry, ok := s.entries[compositeKey(namespace, key)]; ok && now.Before(entry.expiresAt) {
			out[key] = cloneValue(entry.value)
		}
	}
	return out, nil
}

func (s *MemoryStore) Set(_ context.Context, namespace, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	copied := cloneValue(value)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[compositeKey(namespace, key)] = memoryEntry{
		value:     copied,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

// Values are copied on both write and read so callers can never alias
// the stored slice.
func cloneValue(value []byte) []byte {
	copied := make([]byte, len(value))
	copy(copied, value)
	return copied
}

func (s *MemoryStore) Delete(_ context.Context, namespace, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, compositeKey(namespace, key))
	return nil
}

func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}

func (s *MemoryStore) janitorLoop() {
	ticker := time.NewTicker(s.janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *MemoryStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for key, entry := range s.entries {
		if now.After(entry.expiresAt) {
			delete(s.entries, key)
		}
	}
}
