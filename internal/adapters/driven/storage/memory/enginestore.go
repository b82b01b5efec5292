package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/arbiter/internal/core/domain"
	"github.com/custodia-labs/arbiter/internal/core/ports/driven"
)

// Ensure EngineStore implements the interface.
var _ driven.EngineStore = (*EngineStore)(nil)

// EngineStore is an in-memory implementation of driven.EngineStore.
// States are copied on the way in and out so callers never share balances.
type EngineStore struct {
	mu     sync.RWMutex
	states map[domain.Address]*domain.ArbitrageState
}

// NewEngineStore creates a new in-memory engine store.
func NewEngineStore() *EngineStore {
	return &EngineStore{
		states: make(map[domain.Address]*domain.ArbitrageState),
	}
}

// Get retrieves the state of an engine.
func (s *EngineStore) Get(_ context.Context, address domain.Address) (*domain.ArbitrageState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[address]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return state.Clone(), nil
}

// Save stores or replaces an engine state.
func (s *EngineStore) Save(_ context.Context, state *domain.ArbitrageState) error {
	if state == nil || state.Address.IsZero() {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.Address] = state.Clone()
	return nil
}
