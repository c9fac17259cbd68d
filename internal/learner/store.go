package learner

import (
	"context"
	"fmt"
	"sync"
)

// Store persists learner state across sessions and restarts.
type Store interface {
	// Load returns the stored state, or a fresh empty state when the learner is unknown.
	Load(ctx context.Context, learnerID string) (*State, error)
	AppendInteraction(ctx context.Context, learnerID string, in Interaction) error
	SetMastery(ctx context.Context, learnerID string, mastery map[string]float64) error
}

// MemoryStore is an in-memory implementation of Store.
type MemoryStore struct {
	learners map[string]*State
	mu       sync.RWMutex
}

// NewMemoryStore creates a new in-memory learner store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		learners: make(map[string]*State),
	}
}

func (s *MemoryStore) Load(_ context.Context, learnerID string) (*State, error) {
	if learnerID == "" {
		return nil, fmt.Errorf("learner id is required")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.learners[learnerID]
	if !ok {
		return NewState(learnerID), nil
	}
	out := NewState(learnerID)
	out.History = st.HistorySnapshot()
	out.SetMastery(st.Mastery)
	return out, nil
}

func (s *MemoryStore) AppendInteraction(_ context.Context, learnerID string, in Interaction) error {
	if learnerID == "" {
		return fmt.Errorf("learner id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.stateLocked(learnerID).Append(in)
	return nil
}

func (s *MemoryStore) SetMastery(_ context.Context, learnerID string, mastery map[string]float64) error {
	if learnerID == "" {
		return fmt.Errorf("learner id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.stateLocked(learnerID).SetMastery(mastery)
	return nil
}

func (s *MemoryStore) stateLocked(learnerID string) *State {
	st, ok := s.learners[learnerID]
	if !ok {
		st = NewState(learnerID)
		s.learners[learnerID] = st
	}
	return st
}
