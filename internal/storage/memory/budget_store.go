// Package memory provides an in-process budget store for tests and
// debug mode. State does not survive a restart.
package memory

import (
	"context"
	"sync"

	"github.com/felixgeelhaar/looplab/internal/domain"
)

// BudgetStore keeps budget state in a mutex-guarded map
type BudgetStore struct {
	mu     sync.RWMutex
	states map[string]domain.BudgetState
}

// NewBudgetStore creates an empty in-memory budget store
func NewBudgetStore() *BudgetStore {
	return &BudgetStore{states: make(map[string]domain.BudgetState)}
}

func key(scope, loopID string) string {
	return scope + "\x00" + loopID
}

// Get returns the stored state and whether one exists
func (s *BudgetStore) Get(ctx context.Context, scope, loopID string) (domain.BudgetState, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[key(scope, loopID)]
	return state, ok, nil
}

// Put inserts or replaces the state
func (s *BudgetStore) Put(ctx context.Context, scope, loopID string, state domain.BudgetState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[key(scope, loopID)] = state
	return nil
}
