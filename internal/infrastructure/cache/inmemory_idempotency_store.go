package cache

import (
	"context"
	"sync"
	"time"

	"github.com/cobranza/backend/internal/domain/shared"
)

// entry represents a stored payment ID with expiration
type entry struct {
	expiresAt time.Time
}

// InMemoryIdempotencyStore implements IdempotencyStore using an in-memory map.
// Suitable for single-instance deployments and testing; state is not shared
// across processes.
type InMemoryIdempotencyStore struct {
	mu        sync.RWMutex
	entries   map[string]entry
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryIdempotencyStore creates a new in-memory idempotency store.
// It starts a background goroutine to clean up expired entries.
func NewInMemoryIdempotencyStore() *InMemoryIdempotencyStore {
	store := &InMemoryIdempotencyStore{
		entries:  make(map[string]entry),
		stopChan: make(chan struct{}),
	}

	store.wg.Add(1)
	go store.cleanupLoop()

	return store
}

// MarkSubmitted marks a payment as submitted with a TTL.
// Returns true if the payment was newly marked, false if it was already submitted.
func (s *InMemoryIdempotencyStore) MarkSubmitted(ctx context.Context, paymentID string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, exists := s.entries[paymentID]; exists {
		if time.Now().Before(e.expiresAt) {
			return false, nil // Already submitted
		}
		// Entry exists but expired, will be overwritten
	}

	s.entries[paymentID] = entry{
		expiresAt: time.Now().Add(ttl),
	}

	return true, nil
}

// IsSubmitted checks if a payment has already been submitted
func (s *InMemoryIdempotencyStore) IsSubmitted(ctx context.Context, paymentID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.entries[paymentID]
	if !exists {
		return false, nil
	}

	if time.Now().After(e.expiresAt) {
		return false, nil // Expired, treat as not submitted
	}

	return true, nil
}

// Release removes a submission mark so the payment ID can be marked again
func (s *InMemoryIdempotencyStore) Release(ctx context.Context, paymentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, paymentID)
	return nil
}

// Close stops the cleanup goroutine and releases resources.
// Safe to call multiple times.
func (s *InMemoryIdempotencyStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

// cleanupLoop periodically removes expired entries
func (s *InMemoryIdempotencyStore) cleanupLoop() {
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
func (s *InMemoryIdempotencyStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for paymentID, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, paymentID)
		}
	}
}

// Size returns the number of entries in the store (for testing/monitoring)
func (s *InMemoryIdempotencyStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Ensure InMemoryIdempotencyStore implements IdempotencyStore
var _ shared.IdempotencyStore = (*InMemoryIdempotencyStore)(nil)
