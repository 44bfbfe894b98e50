package checkpoint

import (
	"context"
	"sort"
	"sync"
)

// MemorySaver keeps checkpoints in a process local map. Stored and returned
// states are cloned so callers cannot mutate saved history.
type MemorySaver struct {
	mu          sync.RWMutex
	checkpoints map[string]*Checkpoint
}

// NewMemorySaver constructs an empty in-memory saver.
func NewMemorySaver() *MemorySaver {
	return &MemorySaver{checkpoints: make(map[string]*Checkpoint)}
}

// Get returns a copy of the checkpoint for threadID.
func (s *MemorySaver) Get(_ context.Context, threadID string) (*Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cp, ok := s.checkpoints[threadID]
	if !ok {
		return nil, ErrNotFound
	}

	return clone(cp), nil
}

// Put stores a copy of cp, replacing any earlier checkpoint of the thread.
func (s *MemorySaver) Put(_ context.Context, cp *Checkpoint) error {
	if err := prepare(cp); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.checkpoints[cp.ThreadID] = clone(cp)

	return nil
}

// Delete removes the checkpoint of threadID. Deleting a missing thread is a no-op.
func (s *MemorySaver) Delete(_ context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.checkpoints, threadID)

	return nil
}

// List returns the stored thread ids in sorted order.
func (s *MemorySaver) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.checkpoints))
	for id := range s.checkpoints {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids, nil
}

func clone(cp *Checkpoint) *Checkpoint {
	out := *cp
	out.State = cp.State.Clone()

	return &out
}
