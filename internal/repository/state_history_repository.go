package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/fleet-maintenance/internal/domain"
)

// StateHistoryRepository stores transition audit entries.
type StateHistoryRepository interface {
	Create(ctx context.Context, change *domain.StateChange) error
	ListByEntity(ctx context.Context, kind, entityID string) ([]domain.StateChange, error)
}

type stateHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewStateHistoryRepository builds repository.
func NewStateHistoryRepository(pool *pgxpool.Pool) StateHistoryRepository {
	return &stateHistoryRepository{pool: pool}
}

func (r *stateHistoryRepository) Create(ctx context.Context, change *domain.StateChange) error {
	const query = `
        INSERT INTO state_history (tenant_id, entity_kind, entity_id, from_state, to_state, changed_by, comment, changed_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id`
	return r.pool.QueryRow(ctx, query,
		change.TenantID,
		change.EntityKind,
		change.EntityID,
		change.FromState,
		change.ToState,
		change.ChangedBy,
		change.Comment,
		change.ChangedAt,
	).Scan(&change.ID)
}

// ListByEntity returns the history oldest first.
func (r *stateHistoryRepository) ListByEntity(ctx context.Context, kind, entityID string) ([]domain.StateChange, error) {
	const query = `
        SELECT id, tenant_id, entity_kind, entity_id, from_state, to_state, changed_by, comment, changed_at
        FROM state_history WHERE entity_kind=$1 AND entity_id=$2 ORDER BY changed_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, kind, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.StateChange
	for rows.Next() {
		var change domain.StateChange
		if err := rows.Scan(
			&change.ID,
			&change.TenantID,
			&change.EntityKind,
			&change.EntityID,
			&change.FromState,
			&change.ToState,
			&change.ChangedBy,
			&change.Comment,
			&change.ChangedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, change)
	}
	return result, rows.Err()
}
