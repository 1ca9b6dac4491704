package memory

import (
	"context"
	"sort"
	"sync"

	"solana-launch-sniper/internal/domain"
	"solana-launch-sniper/internal/storage"
)

// AttemptStore is an in-memory implementation of storage.AttemptStore.
type AttemptStore struct {
	mu   sync.RWMutex
	data map[string]*domain.ExecutionAttempt // keyed by attempt id
}

// NewAttemptStore creates an empty in-memory attempt store.
func NewAttemptStore() *AttemptStore {
	return &AttemptStore{data: make(map[string]*domain.ExecutionAttempt)}
}

var _ storage.AttemptStore = (*AttemptStore)(nil)

// Insert appends an attempt. Returns ErrDuplicateKey if the id exists.
func (s *AttemptStore) Insert(_ context.Context, a *domain.ExecutionAttempt) error {
	if a == nil || a.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[a.ID]; exists {
		return storage.ErrDuplicateKey
	}
	copy := *a
	s.data[a.ID] = &copy
	return nil
}

// GetByMint retrieves attempts for a mint ordered by start time ASC.
func (s *AttemptStore) GetByMint(_ context.Context, mint string) ([]*domain.ExecutionAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.ExecutionAttempt
	for _, a := range s.data {
		if a.Mint == mint {
			copy := *a
			out = append(out, &copy)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}
