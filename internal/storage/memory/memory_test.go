package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-launch-sniper/internal/domain"
	"solana-launch-sniper/internal/storage"
)

func TestBreakerStateStore(t *testing.T) {
	store := NewBreakerStateStore()
	ctx := context.Background()

	_, err := store.Load(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	state := &domain.BreakerState{Status: domain.BreakerOpen, ConsecutiveFailures: 3}
	require.NoError(t, store.Save(ctx, state))

	// The store holds a copy, not the caller's pointer.
	state.ConsecutiveFailures = 99

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.BreakerOpen, loaded.Status)
	assert.Equal(t, 3, loaded.ConsecutiveFailures)

	assert.ErrorIs(t, store.Save(ctx, nil), storage.ErrInvalidInput)
}

func TestPositionStore(t *testing.T) {
	store := NewPositionStore()
	ctx := context.Background()

	_, err := store.GetByMint(ctx, "mint-a")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	p := &domain.Position{Mint: "mint-a", EntryAmount: 100, RemainingAmount: 100}
	require.NoError(t, store.Upsert(ctx, p))

	p.RemainingAmount = 70
	require.NoError(t, store.Upsert(ctx, p))

	loaded, err := store.GetByMint(ctx, "mint-a")
	require.NoError(t, err)
	assert.Equal(t, uint64(70), loaded.RemainingAmount)

	require.NoError(t, store.Upsert(ctx, &domain.Position{Mint: "mint-b"}))
	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "mint-a", list[0].Mint)
	assert.Equal(t, "mint-b", list[1].Mint)

	require.NoError(t, store.Delete(ctx, "mint-a"))
	_, err = store.GetByMint(ctx, "mint-a")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.NoError(t, store.Delete(ctx, "mint-a"))

	assert.ErrorIs(t, store.Upsert(ctx, &domain.Position{}), storage.ErrInvalidInput)
}

func TestAttemptStore(t *testing.T) {
	store := NewAttemptStore()
	ctx := context.Background()

	base := time.Now()
	second := &domain.ExecutionAttempt{ID: "id-2", Mint: "mint-a", StartedAt: base.Add(time.Second)}
	first := &domain.ExecutionAttempt{ID: "id-1", Mint: "mint-a", StartedAt: base}

	require.NoError(t, store.Insert(ctx, second))
	require.NoError(t, store.Insert(ctx, first))
	assert.ErrorIs(t, store.Insert(ctx, first), storage.ErrDuplicateKey)
	assert.ErrorIs(t, store.Insert(ctx, &domain.ExecutionAttempt{}), storage.ErrInvalidInput)

	attempts, err := store.GetByMint(ctx, "mint-a")
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	assert.Equal(t, "id-1", attempts[0].ID)
	assert.Equal(t, "id-2", attempts[1].ID)

	attempts, err = store.GetByMint(ctx, "unknown")
	require.NoError(t, err)
	assert.Empty(t, attempts)
}
