package decision

import (
	"context"
	"sync"
)

// maxMemoryDecisions caps the in-memory audit trail.
const maxMemoryDecisions = 10000

// MemoryStore is an in-memory decision audit store for demo/test use.
type MemoryStore struct {
	mu        sync.RWMutex
	decisions []*Decision
}

// NewMemoryStore creates an in-memory decision store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Record(ctx context.Context, d *Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *d
	s.decisions = append(s.decisions, &copied)
	if len(s.decisions) > maxMemoryDecisions {
		s.decisions = s.decisions[len(s.decisions)-maxMemoryDecisions:]
	}
	return nil
}

func (s *MemoryStore) ListRecent(ctx context.Context, limit int) ([]*Decision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.decisions) {
		limit = len(s.decisions)
	}

	// Newest first
	out := make([]*Decision, 0, limit)
	for i := len(s.decisions) - 1; i >= 0 && len(out) < limit; i-- {
		copied := *s.decisions[i]
		out = append(out, &copied)
	}
	return out, nil
}
