// Package postgres is the pgx-backed adapter for the store ports,
// grounded on the teacher's internal/db package (pgxpool wrapper,
// QueryRow/Scan idiom) and expanded to the full §3 data model.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store wraps a pgxpool.Pool and implements every store.* port.
type Store struct {
	pool *pgxpool.Pool
}

// New opens a connection pool against url.
func New(ctx context.Context, url string) (*Store, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("postgres: connecting: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Pool exposes the underlying pgxpool.Pool for schema-migration
// tooling, which is out of scope for this package (§1).
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}
