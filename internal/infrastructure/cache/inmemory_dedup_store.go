package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	appsync "github.com/erp/connector/internal/application/sync"
	"github.com/erp/connector/internal/domain/syncqueue"
)

// entry represents a stored record key with expiration
type entry struct {
	expiresAt time.Time
}

// InMemoryDedupStore implements RecordDedupStore using an in-memory map.
// Suitable for single-process deployments and testing; dedup state is lost
// on restart, which degrades to duplicate work rather than lost records.
type InMemoryDedupStore struct {
	mu        sync.RWMutex
	entries   map[string]entry
	ttl       time.Duration
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryDedupStore creates an in-memory dedup store and starts a
// background goroutine to clean up expired entries
func NewInMemoryDedupStore(ttl time.Duration) *InMemoryDedupStore {
	if ttl <= 0 {
		ttl = defaultDedupTTL
	}
	store := &InMemoryDedupStore{
		entries:  make(map[string]entry),
		ttl:      ttl,
		stopChan: make(chan struct{}),
	}

	store.wg.Add(1)
	go store.cleanupLoop()

	return store
}

func dedupKey(instance *syncqueue.Instance, collection syncqueue.Collection, recordKey string) string {
	return fmt.Sprintf("%s:%s:%s", instance.ID, collection, recordKey)
}

// Seen returns true if the record key was already queued for the pair
func (s *InMemoryDedupStore) Seen(ctx context.Context, instance *syncqueue.Instance, collection syncqueue.Collection, recordKey string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.entries[dedupKey(instance, collection, recordKey)]
	if !exists {
		return false, nil
	}
	if time.Now().After(e.expiresAt) {
		return false, nil // Expired, treat as not seen
	}
	return true, nil
}

// Mark remembers a queued record key
func (s *InMemoryDedupStore) Mark(ctx context.Context, instance *syncqueue.Instance, collection syncqueue.Collection, recordKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[dedupKey(instance, collection, recordKey)] = entry{
		expiresAt: time.Now().Add(s.ttl),
	}
	return nil
}

// Close stops the cleanup goroutine and releases resources.
// Safe to call multiple times.
func (s *InMemoryDedupStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

// cleanupLoop periodically removes expired entries
func (s *InMemoryDedupStore) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

// cleanup removes expired entries from the store
func (s *InMemoryDedupStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for key, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, key)
		}
	}
}

// Size returns the number of entries in the store (for testing/monitoring)
func (s *InMemoryDedupStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Ensure InMemoryDedupStore implements RecordDedupStore
var _ appsync.RecordDedupStore = (*InMemoryDedupStore)(nil)
