package memory

import (
	"context"
	"sort"
	"sync"

	"solana-launch-sniper/internal/domain"
	"solana-launch-sniper/internal/storage"
)

// PositionStore is an in-memory implementation of storage.PositionStore.
type PositionStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Position // keyed by mint
}

// NewPositionStore creates an empty in-memory position store.
func NewPositionStore() *PositionStore {
	return &PositionStore{data: make(map[string]*domain.Position)}
}

var _ storage.PositionStore = (*PositionStore)(nil)

// Upsert inserts or replaces the position for its mint.
func (s *PositionStore) Upsert(_ context.Context, p *domain.Position) error {
	if p == nil || p.Mint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *p
	s.data[p.Mint] = &copy
	return nil
}

// GetByMint retrieves a position. Returns ErrNotFound if absent.
func (s *PositionStore) GetByMint(_ context.Context, mint string) (*domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.data[mint]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copy := *p
	return &copy, nil
}

// List retrieves all open positions ordered by mint for determinism.
func (s *PositionStore) List(_ context.Context) ([]*domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Position, 0, len(s.data))
	for _, p := range s.data {
		copy := *p
		out = append(out, &copy)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Mint < out[j].Mint })
	return out, nil
}

// Delete removes a position. Deleting an absent mint is not an error.
func (s *PositionStore) Delete(_ context.Context, mint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, mint)
	return nil
}
