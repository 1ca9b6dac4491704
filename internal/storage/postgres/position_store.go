package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-launch-sniper/internal/domain"
	"solana-launch-sniper/internal/storage"
)

// PositionStore implements storage.PositionStore using PostgreSQL.
type PositionStore struct {
	pool *Pool
}

// NewPositionStore creates a new PositionStore.
func NewPositionStore(pool *Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PositionStore = (*PositionStore)(nil)

// Upsert inserts or replaces the position for its mint.
func (s *PositionStore) Upsert(ctx context.Context, p *domain.Position) error {
	query := `
		INSERT INTO positions (
			mint, platform, creator, token_decimals, entry_price, entry_amount,
			remaining_amount, sold_amount, tier1_sold, tier2_sold, entry_time,
			last_price_check, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now()
		)
		ON CONFLICT (mint) DO UPDATE SET
			platform = EXCLUDED.platform,
			creator = EXCLUDED.creator,
			token_decimals = EXCLUDED.token_decimals,
			entry_price = EXCLUDED.entry_price,
			entry_amount = EXCLUDED.entry_amount,
			remaining_amount = EXCLUDED.remaining_amount,
			sold_amount = EXCLUDED.sold_amount,
			tier1_sold = EXCLUDED.tier1_sold,
			tier2_sold = EXCLUDED.tier2_sold,
			entry_time = EXCLUDED.entry_time,
			last_price_check = EXCLUDED.last_price_check,
			updated_at = now()
	`

	_, err := s.pool.Exec(ctx, query,
		p.Mint, string(p.Platform), p.Creator, int16(p.Decimals), p.EntryPrice,
		int64(p.EntryAmount), int64(p.RemainingAmount), int64(p.SoldAmount),
		p.Tier1Sold, p.Tier2Sold, p.EntryTime, p.LastPriceCheck,
	)
	if err != nil {
		return fmt.Errorf("upsert position: %w", err)
	}
	return nil
}

// GetByMint retrieves a position. Returns ErrNotFound if absent.
func (s *PositionStore) GetByMint(ctx context.Context, mint string) (*domain.Position, error) {
	query := `
		SELECT
			mint, platform, creator, token_decimals, entry_price, entry_amount,
			remaining_amount, sold_amount, tier1_sold, tier2_sold, entry_time,
			last_price_check
		FROM positions
		WHERE mint = $1
	`

	p, err := scanPosition(s.pool.QueryRow(ctx, query, mint))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get position by mint: %w", err)
	}
	return p, nil
}

// List retrieves all open positions.
func (s *PositionStore) List(ctx context.Context) ([]*domain.Position, error) {
	query := `
		SELECT
			mint, platform, creator, token_decimals, entry_price, entry_amount,
			remaining_amount, sold_amount, tier1_sold, tier2_sold, entry_time,
			last_price_check
		FROM positions
		ORDER BY entry_time ASC, mint ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	defer rows.Close()

	var positions []*domain.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan position row: %w", err)
		}
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate position rows: %w", err)
	}

	return positions, nil
}

// Delete removes a position. Deleting an absent mint is not an error.
func (s *PositionStore) Delete(ctx context.Context, mint string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM positions WHERE mint = $1`, mint); err != nil {
		return fmt.Errorf("delete position: %w", err)
	}
	return nil
}

// scanPosition scans a single row into a Position.
func scanPosition(row pgx.Row) (*domain.Position, error) {
	var p domain.Position
	var platform string
	var decimals int16
	var entryAmount, remainingAmount, soldAmount int64

	err := row.Scan(
		&p.Mint, &platform, &p.Creator, &decimals, &p.EntryPrice,
		&entryAmount, &remainingAmount, &soldAmount,
		&p.Tier1Sold, &p.Tier2Sold, &p.EntryTime, &p.LastPriceCheck,
	)
	if err != nil {
		return nil, err
	}

	p.Platform = domain.Platform(platform)
	p.Decimals = uint8(decimals)
	p.EntryAmount = uint64(entryAmount)
	p.RemainingAmount = uint64(remainingAmount)
	p.SoldAmount = uint64(soldAmount)
	return &p, nil
}
