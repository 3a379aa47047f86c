package lock

import (
	"context"
	"sync"
	"time"
)

// InMemoryStore is an in-memory implementation of Store for tests and
// single-process deployments. A mutex stands in for the database's
// statement atomicity.
type InMemoryStore struct {
	mu     sync.Mutex
	leases map[string]time.Time
}

// NewInMemoryStore creates a new in-memory lease store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{leases: make(map[string]time.Time)}
}

// ConditionalInsert implements Store.ConditionalInsert.
func (s *InMemoryStore) ConditionalInsert(ctx context.Context, resource string, now, expiryThreshold time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if acquiredAt, ok := s.leases[resource]; ok && acquiredAt.After(expiryThreshold) {
		return 0, nil
	}
	s.leases[resource] = now
	return 1, nil
}

// Delete implements Store.Delete.
func (s *InMemoryStore) Delete(ctx context.Context, resource string, acquiredAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if current, ok := s.leases[resource]; ok && current.Equal(acquiredAt) {
		delete(s.leases, resource)
	}
	return nil
}

// DeleteAll implements Store.DeleteAll.
func (s *InMemoryStore) DeleteAll(ctx context.Context, resource string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.leases, resource)
	return nil
}

// AcquiredAt reports the recorded acquisition time for resource, if any.
func (s *InMemoryStore) AcquiredAt(resource string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acquiredAt, ok := s.leases[resource]
	return acquiredAt, ok
}

var _ Store = (*InMemoryStore)(nil)
