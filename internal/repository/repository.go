// Package repository is the Postgres persistence layer. One Repository type
// backs every service-facing interface; callers depend on the narrow
// interfaces their packages declare, never on this type directly.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrGameNotFound is returned when a game id has no row.
var ErrGameNotFound = errors.New("game not found")

// Repository holds the shared connection pool.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a repository over an existing pool.
func NewRepository(pool *pgxpool.Pool) (*Repository, error) {
	if pool == nil {
		return nil, errors.New("pgx pool cannot be nil")
	}
	return &Repository{pool: pool}, nil
}

// Connect opens a pool and verifies connectivity.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}
