package memory

import (
	"context"
	"sync"

	"solana-launch-sniper/internal/domain"
	"solana-launch-sniper/internal/storage"
)

// BreakerStateStore is an in-memory implementation of storage.BreakerStateStore.
type BreakerStateStore struct {
	mu    sync.RWMutex
	state *domain.BreakerState
}

// NewBreakerStateStore creates an empty in-memory breaker state store.
func NewBreakerStateStore() *BreakerStateStore {
	return &BreakerStateStore{}
}

var _ storage.BreakerStateStore = (*BreakerStateStore)(nil)

// Load retrieves the persisted state. Returns ErrNotFound when never saved.
func (s *BreakerStateStore) Load(_ context.Context) (*domain.BreakerState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state == nil {
		return nil, storage.ErrNotFound
	}
	copy := *s.state
	return &copy, nil
}

// Save persists the state, replacing any previous snapshot.
func (s *BreakerStateStore) Save(_ context.Context, state *domain.BreakerState) error {
	if state == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *state
	s.state = &copy
	return nil
}
