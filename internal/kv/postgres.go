package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres stores documents in a single table keyed by document name.
// It is the alternative backend for deployments that already run postgres.
type Postgres struct {
	db *pgxpool.Pool
}

func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db}
}

// Migrate creates the documents table if it does not exist yet.
func (s *Postgres) Migrate(ctx context.Context) error {
	const stmt = `
CREATE TABLE IF NOT EXISTS documents (
	key         TEXT PRIMARY KEY,
	value       BYTEA NOT NULL,
	update_time TIMESTAMPTZ NOT NULL DEFAULT now()
);`

	if _, err := s.db.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("kv: migrate documents: %w", err)
	}

	return nil
}

func (s *Postgres) Get(ctx context.Context, key string) ([]byte, error) {
	const stmt = `SELECT value FROM documents WHERE key = $1;`

	var b []byte
	err := s.db.QueryRow(ctx, stmt, key).Scan(&b)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("kv: postgres get %s: %w", key, err)
	}

	return b, nil
}

func (s *Postgres) Set(ctx context.Context, key string, value []byte) error {
	const stmt = `
INSERT INTO documents (key, value) VALUES ($1, $2)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, update_time = now();`

	if _, err := s.db.Exec(ctx, stmt, key, value); err != nil {
		return fmt.Errorf("kv: postgres set %s: %w", key, err)
	}

	return nil
}
