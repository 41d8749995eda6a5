// Package store is the remote per-user JSON store backed by Postgres.
package store

import (
	"context"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool *pgxpool.Pool
	hub  *hub
}

func New(pool *pgxpool.Pool) *Store {
	s := &Store{pool: pool}
	s.hub = newHub(pool, s.loadRow)
	return s
}

// Migrate applies the schema file at path.
func (s *Store) Migrate(ctx context.Context, path string) error {
	sql, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, string(sql))
	return err
}

// Close stops the change listener. The pool is owned by the caller.
func (s *Store) Close() {
	s.hub.stop()
}
