package presence

import (
	"context"
	"sync"
)

// MemoryRegistry implements Registry with an in-process map. Suitable for
// single-process deployments and tests; it has no cross-process visibility.
type MemoryRegistry struct {
	mu    sync.RWMutex
	users map[int64]map[string]struct{}
}

var _ Registry = (*MemoryRegistry)(nil)

// NewMemoryRegistry creates a new in-memory presence registry
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		users: make(map[int64]map[string]struct{}),
	}
}

// Add implements Registry.Add
func (r *MemoryRegistry) Add(_ context.Context, userID int64, connID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.users[userID]
	if !ok {
		set = make(map[string]struct{})
		r.users[userID] = set
	}
	set[connID] = struct{}{}
	return nil
}

// Remove implements Registry.Remove
func (r *MemoryRegistry) Remove(_ context.Context, userID int64, connID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.users[userID]
	if !ok {
		return nil
	}
	delete(set, connID)
	if len(set) == 0 {
		delete(r.users, userID)
	}
	return nil
}

// Members implements Registry.Members
func (r *MemoryRegistry) Members(_ context.Context, userID int64) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.users[userID]
	members := make([]string, 0, len(set))
	for id := range set {
		members = append(members, id)
	}
	return members, nil
}

// IsOnline implements Registry.IsOnline
func (r *MemoryRegistry) IsOnline(_ context.Context, userID int64) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.users[userID]) > 0, nil
}
