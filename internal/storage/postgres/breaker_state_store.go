package postgres

import (
	"context"
	"fmt"

	"solana-launch-sniper/internal/domain"
	"solana-launch-sniper/internal/storage"
)

// BreakerStateStore implements storage.BreakerStateStore using PostgreSQL.
// The table holds exactly one row; Save upserts it.
type BreakerStateStore struct {
	pool *Pool
}

// NewBreakerStateStore creates a new BreakerStateStore.
func NewBreakerStateStore(pool *Pool) *BreakerStateStore {
	return &BreakerStateStore{pool: pool}
}

// Compile-time interface check.
var _ storage.BreakerStateStore = (*BreakerStateStore)(nil)

// Load retrieves the persisted state. Returns ErrNotFound when the breaker
// has never been saved.
func (s *BreakerStateStore) Load(ctx context.Context) (*domain.BreakerState, error) {
	query := `
		SELECT
			status, consecutive_failures, daily_loss_sol, daily_trades,
			next_attempt_at, day_started_at
		FROM breaker_state
		WHERE id = 1
	`

	var state domain.BreakerState
	err := s.pool.QueryRow(ctx, query).Scan(
		&state.Status, &state.ConsecutiveFailures, &state.DailyLossSOL, &state.DailyTrades,
		&state.NextAttemptAt, &state.DayStartedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("load breaker state: %w", err)
	}
	return &state, nil
}

// Save persists the state, replacing any previous snapshot.
func (s *BreakerStateStore) Save(ctx context.Context, state *domain.BreakerState) error {
	query := `
		INSERT INTO breaker_state (
			id, status, consecutive_failures, daily_loss_sol, daily_trades,
			next_attempt_at, day_started_at, updated_at
		) VALUES (
			1, $1, $2, $3, $4, $5, $6, now()
		)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			consecutive_failures = EXCLUDED.consecutive_failures,
			daily_loss_sol = EXCLUDED.daily_loss_sol,
			daily_trades = EXCLUDED.daily_trades,
			next_attempt_at = EXCLUDED.next_attempt_at,
			day_started_at = EXCLUDED.day_started_at,
			updated_at = now()
	`

	_, err := s.pool.Exec(ctx, query,
		state.Status, state.ConsecutiveFailures, state.DailyLossSOL, state.DailyTrades,
		state.NextAttemptAt, state.DayStartedAt,
	)
	if err != nil {
		return fmt.Errorf("save breaker state: %w", err)
	}
	return nil
}
