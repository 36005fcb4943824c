package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CounterRepository hands out per-tenant monotonically increasing values.
type CounterRepository interface {
	Next(ctx context.Context, tenantID, name string) (int64, error)
	Current(ctx context.Context, tenantID, name string) (int64, error)
}

type counterRepository struct {
	pool *pgxpool.Pool
}

// NewCounterRepository instantiates repository.
func NewCounterRepository(pool *pgxpool.Pool) CounterRepository {
	return &counterRepository{pool: pool}
}

// Next increments the named counter inside a transaction, creating it at 1.
func (r *counterRepository) Next(ctx context.Context, tenantID, name string) (int64, error) {
	const query = `
        INSERT INTO counters (tenant_id, name, value) VALUES ($1, $2, 1)
        ON CONFLICT (tenant_id, name) DO UPDATE SET value = counters.value + 1, updated_at = NOW()
        RETURNING value`
	var value int64
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, query, tenantID, name).Scan(&value)
	})
	if err != nil {
		return 0, err
	}
	return value, nil
}

// Current returns the last issued value, 0 when the counter does not exist.
func (r *counterRepository) Current(ctx context.Context, tenantID, name string) (int64, error) {
	const query = `SELECT value FROM counters WHERE tenant_id=$1 AND name=$2`
	var value int64
	err := r.pool.QueryRow(ctx, query, tenantID, name).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return value, err
}
