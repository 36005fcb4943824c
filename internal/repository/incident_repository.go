package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/fleet-maintenance/internal/domain"
	"github.com/spec-kit/fleet-maintenance/internal/sla"
	"github.com/spec-kit/fleet-maintenance/internal/statemachine"
)

// IncidentFilter captures list parameters. An empty TenantID means every tenant.
type IncidentFilter struct {
	TenantID     string
	AssetID      *string
	AssignedTo   *string
	States       []statemachine.IncidentState
	Priorities   []sla.Priority
	OpenedFrom   *time.Time
	OpenedTo     *time.Time
	SearchTerm   *string
	OnlyUnbreach bool
	Limit        int
	Offset       int
}

// IncidentRepository encapsulates incident persistence.
type IncidentRepository interface {
	Create(ctx context.Context, incident *domain.Incident) error
	// Update writes incident only while its stored state is still from and
	// returns ErrStateChanged otherwise.
	Update(ctx context.Context, incident *domain.Incident, from statemachine.IncidentState) error
	GetByID(ctx context.Context, id string) (*domain.Incident, error)
	GetByCode(ctx context.Context, tenantID, code string) (*domain.Incident, error)
	List(ctx context.Context, filter IncidentFilter) ([]domain.Incident, error)
	MarkBreached(ctx context.Context, id string, at time.Time) (bool, error)
}

type incidentRepository struct {
	pool *pgxpool.Pool
}

// NewIncidentRepository instantiates repository.
func NewIncidentRepository(pool *pgxpool.Pool) IncidentRepository {
	return &incidentRepository{pool: pool}
}

const incidentColumns = `id, tenant_id, code, asset_id, title, description, priority, state, reported_by,
       assigned_to, opened_at, analysis_started_at, repaired_at, closed_at, reopen_count,
       sla_breached_at, created_at, updated_at`

func (r *incidentRepository) Create(ctx context.Context, incident *domain.Incident) error {
	const query = `
        INSERT INTO incidents (id, tenant_id, code, asset_id, title, description, priority, state,
            reported_by, assigned_to, opened_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
        RETURNING created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		incident.ID,
		incident.TenantID,
		incident.Code,
		incident.AssetID,
		incident.Title,
		incident.Description,
		incident.Priority,
		incident.State,
		incident.ReportedBy,
		incident.AssignedTo,
		incident.OpenedAt,
	).Scan(&incident.CreatedAt, &incident.UpdatedAt)
}

func (r *incidentRepository) Update(ctx context.Context, incident *domain.Incident, from statemachine.IncidentState) error {
	const query = `
        UPDATE incidents SET title=$1, description=$2, priority=$3, state=$4, assigned_to=$5,
            analysis_started_at=$6, repaired_at=$7, closed_at=$8, reopen_count=$9, updated_at=NOW()
        WHERE id=$10 AND state=$11
        RETURNING updated_at`
	err := r.pool.QueryRow(ctx, query,
		incident.Title,
		incident.Description,
		incident.Priority,
		incident.State,
		incident.AssignedTo,
		incident.AnalysisStartedAt,
		incident.RepairedAt,
		incident.ClosedAt,
		incident.ReopenCount,
		incident.ID,
		from,
	).Scan(&incident.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrStateChanged
	}
	return err
}

func (r *incidentRepository) GetByID(ctx context.Context, id string) (*domain.Incident, error) {
	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE id=$1`
	return scanIncident(r.pool.QueryRow(ctx, query, id))
}

func (r *incidentRepository) GetByCode(ctx context.Context, tenantID, code string) (*domain.Incident, error) {
	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE tenant_id=$1 AND code=$2`
	return scanIncident(r.pool.QueryRow(ctx, query, tenantID, code))
}

// MarkBreached records the first breach only; it reports false when the
// incident was already marked.
func (r *incidentRepository) MarkBreached(ctx context.Context, id string, at time.Time) (bool, error) {
	const query = `UPDATE incidents SET sla_breached_at=$1 WHERE id=$2 AND sla_breached_at IS NULL`
	cmd, err := r.pool.Exec(ctx, query, at, id)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *incidentRepository) List(ctx context.Context, filter IncidentFilter) ([]domain.Incident, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.TenantID != "" {
		args = append(args, filter.TenantID)
		clauses = append(clauses, fmt.Sprintf("tenant_id=$%d", len(args)))
	}
	if filter.AssetID != nil {
		args = append(args, *filter.AssetID)
		clauses = append(clauses, fmt.Sprintf("asset_id=$%d", len(args)))
	}
	if filter.AssignedTo != nil {
		args = append(args, *filter.AssignedTo)
		clauses = append(clauses, fmt.Sprintf("assigned_to=$%d", len(args)))
	}
	if len(filter.States) > 0 {
		placeholders := make([]string, len(filter.States))
		for i, s := range filter.States {
			args = append(args, s)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("state IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, p := range filter.Priorities {
			args = append(args, p)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.OpenedFrom != nil {
		args = append(args, *filter.OpenedFrom)
		clauses = append(clauses, fmt.Sprintf("opened_at >= $%d", len(args)))
	}
	if filter.OpenedTo != nil {
		args = append(args, *filter.OpenedTo)
		clauses = append(clauses, fmt.Sprintf("opened_at <= $%d", len(args)))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(title) LIKE %s OR LOWER(code) LIKE %s)", placeholder, placeholder))
	}
	if filter.OnlyUnbreach {
		clauses = append(clauses, "sla_breached_at IS NULL")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM incidents WHERE %s ORDER BY opened_at DESC LIMIT %d OFFSET %d`,
		incidentColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Incident
	for rows.Next() {
		incident, err := scanIncident(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *incident)
	}
	return result, rows.Err()
}

func scanIncident(row pgx.Row) (*domain.Incident, error) {
	var i domain.Incident
	if err := row.Scan(
		&i.ID,
		&i.TenantID,
		&i.Code,
		&i.AssetID,
		&i.Title,
		&i.Description,
		&i.Priority,
		&i.State,
		&i.ReportedBy,
		&i.AssignedTo,
		&i.OpenedAt,
		&i.AnalysisStartedAt,
		&i.RepairedAt,
		&i.ClosedAt,
		&i.ReopenCount,
		&i.SLABreachedAt,
		&i.CreatedAt,
		&i.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &i, nil
}
