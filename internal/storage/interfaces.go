package storage

import (
	"context"

	"solana-launch-sniper/internal/domain"
)

// BreakerStateStore persists the circuit-breaker snapshot. There is exactly
// one row; Save overwrites it.
type BreakerStateStore interface {
	// Load retrieves the persisted state. Returns ErrNotFound when the
	// breaker has never been saved.
	Load(ctx context.Context) (*domain.BreakerState, error)

	// Save persists the state, replacing any previous snapshot.
	Save(ctx context.Context, state *domain.BreakerState) error
}

// PositionStore persists open positions, keyed by mint.
type PositionStore interface {
	// Upsert inserts or replaces the position for its mint.
	Upsert(ctx context.Context, p *domain.Position) error

	// GetByMint retrieves a position. Returns ErrNotFound if absent.
	GetByMint(ctx context.Context, mint string) (*domain.Position, error)

	// List retrieves all open positions.
	List(ctx context.Context) ([]*domain.Position, error)

	// Delete removes a position. Deleting an absent mint is not an error.
	Delete(ctx context.Context, mint string) error
}

// AttemptStore archives execution attempts. Append-only.
type AttemptStore interface {
	// Insert appends an attempt. Returns ErrDuplicateKey if the id exists.
	Insert(ctx context.Context, a *domain.ExecutionAttempt) error

	// GetByMint retrieves attempts for a mint ordered by start time ASC.
	GetByMint(ctx context.Context, mint string) ([]*domain.ExecutionAttempt, error)
}
