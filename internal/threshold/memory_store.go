package threshold

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store for demo/test use. It keeps the full
// adoption history so tests can assert provenance.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots []*Snapshot
}

// NewMemoryStore creates an in-memory threshold store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Save(ctx context.Context, snap *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *snap
	s.snapshots = append(s.snapshots, &copied)
	return nil
}

func (s *MemoryStore) Load(ctx context.Context) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.snapshots) == 0 {
		return nil, nil
	}
	copied := *s.snapshots[len(s.snapshots)-1]
	return &copied, nil
}

// History returns all saved snapshots, oldest first.
func (s *MemoryStore) History() []*Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Snapshot, len(s.snapshots))
	copy(out, s.snapshots)
	return out
}
