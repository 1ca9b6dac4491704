// Package postgres backs the durable stores (breaker state, position
// ledger) with a shared pgx connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool is the process-wide Postgres handle every store shares.
type Pool struct {
	*pgxpool.Pool
}

// NewPool connects and verifies the database is reachable before any store
// is built on it.
func NewPool(ctx context.Context, dsn string) (*Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// isNotFoundError reports whether a query matched no rows, so stores can
// translate it into storage.ErrNotFound.
func isNotFoundError(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
