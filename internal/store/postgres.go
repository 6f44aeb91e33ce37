package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createVariablesSQL = `
    CREATE TABLE IF NOT EXISTS pipeline_variables (
        key        TEXT PRIMARY KEY,
        value      TEXT NOT NULL,
        updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
    )
`

const getVariableSQL = `SELECT value FROM pipeline_variables WHERE key = $1`

const upsertVariableSQL = `
    INSERT INTO pipeline_variables (key, value, updated_at)
    VALUES ($1, $2, now())
    ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
`

// PostgresVariables stores variables in the pipeline_variables table.
type PostgresVariables struct {
	pool *pgxpool.Pool
}

// NewPostgresVariables opens a pool and creates the variables table if needed.
func NewPostgresVariables(ctx context.Context, databaseURL string) (*PostgresVariables, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if _, err := pool.Exec(ctx, createVariablesSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create pipeline_variables: %w", err)
	}
	return &PostgresVariables{pool: pool}, nil
}

func (p *PostgresVariables) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := p.pool.QueryRow(ctx, getVariableSQL, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (p *PostgresVariables) Set(ctx context.Context, key, value string) error {
	_, err := p.pool.Exec(ctx, upsertVariableSQL, key, value)
	return err
}

// Close releases the pool resources.
func (p *PostgresVariables) Close() error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}
