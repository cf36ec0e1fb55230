package audit

import (
	"context"
	"sync"
)

// MemoryRepository is an in-memory append-only store, used in tests
// and as a fallback when the audit table is unavailable.
type MemoryRepository struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) Append(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

// Events returns a snapshot copy.
func (r *MemoryRepository) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}
