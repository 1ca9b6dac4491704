package clickhouse

import (
	"context"
	"fmt"

	"solana-launch-sniper/internal/domain"
	"solana-launch-sniper/internal/storage"
)

// AttemptStore implements storage.AttemptStore using ClickHouse.
type AttemptStore struct {
	conn *Conn
}

// NewAttemptStore creates a new AttemptStore.
func NewAttemptStore(conn *Conn) *AttemptStore {
	return &AttemptStore{conn: conn}
}

// Compile-time interface check.
var _ storage.AttemptStore = (*AttemptStore)(nil)

// Insert appends an attempt. Returns ErrDuplicateKey if the id exists.
// MergeTree doesn't enforce uniqueness, so the id is checked first.
func (s *AttemptStore) Insert(ctx context.Context, a *domain.ExecutionAttempt) error {
	exists, err := s.exists(ctx, a.ID)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	query := `
		INSERT INTO execution_attempts (
			id, mint, method, side, started_at, finished_at,
			outcome, signature, err_kind, err_message, retries
		) VALUES (
			?, ?, ?, ?, ?, ?,
			?, ?, ?, ?, ?
		)
	`

	err = s.conn.Exec(ctx, query,
		a.ID, a.Mint, string(a.Method), string(a.Side), a.StartedAt, a.FinishedAt,
		a.Outcome, a.Signature, a.ErrKind, a.ErrMessage, int32(a.Retries),
	)
	if err != nil {
		return fmt.Errorf("insert execution attempt: %w", err)
	}
	return nil
}

// InsertBulk appends multiple attempts in one batch. Fails the whole batch
// on any duplicate id.
func (s *AttemptStore) InsertBulk(ctx context.Context, attempts []*domain.ExecutionAttempt) error {
	if len(attempts) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(attempts))
	for _, a := range attempts {
		if _, dup := seen[a.ID]; dup {
			return storage.ErrDuplicateKey
		}
		seen[a.ID] = struct{}{}

		exists, err := s.exists(ctx, a.ID)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO execution_attempts (
			id, mint, method, side, started_at, finished_at,
			outcome, signature, err_kind, err_message, retries
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, a := range attempts {
		err = batch.Append(
			a.ID, a.Mint, string(a.Method), string(a.Side), a.StartedAt, a.FinishedAt,
			a.Outcome, a.Signature, a.ErrKind, a.ErrMessage, int32(a.Retries),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByMint retrieves attempts for a mint ordered by start time ASC.
func (s *AttemptStore) GetByMint(ctx context.Context, mint string) ([]*domain.ExecutionAttempt, error) {
	query := `
		SELECT
			id, mint, method, side, started_at, finished_at,
			outcome, signature, err_kind, err_message, retries
		FROM execution_attempts
		WHERE mint = ?
		ORDER BY started_at ASC, id ASC
	`

	rows, err := s.conn.Query(ctx, query, mint)
	if err != nil {
		return nil, fmt.Errorf("query attempts by mint: %w", err)
	}
	defer rows.Close()

	var attempts []*domain.ExecutionAttempt
	for rows.Next() {
		var a domain.ExecutionAttempt
		var method, side string
		var retries int32

		err := rows.Scan(
			&a.ID, &a.Mint, &method, &side, &a.StartedAt, &a.FinishedAt,
			&a.Outcome, &a.Signature, &a.ErrKind, &a.ErrMessage, &retries,
		)
		if err != nil {
			return nil, fmt.Errorf("scan attempt row: %w", err)
		}

		a.Method = domain.ExecMethod(method)
		a.Side = domain.Side(side)
		a.Retries = int(retries)
		attempts = append(attempts, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempt rows: %w", err)
	}

	return attempts, nil
}

// exists checks if an attempt with the given id exists.
func (s *AttemptStore) exists(ctx context.Context, id string) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `SELECT count(*) FROM execution_attempts WHERE id = ?`, id).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
