package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/fleet-maintenance/internal/domain"
	"github.com/spec-kit/fleet-maintenance/internal/statemachine"
)

// InventoryRepository persists inventory items.
type InventoryRepository interface {
	Create(ctx context.Context, item *domain.InventoryItem) error
	// Update writes item only while its stored state is still from.
	Update(ctx context.Context, item *domain.InventoryItem, from statemachine.InventoryState) error
	GetByID(ctx context.Context, id string) (*domain.InventoryItem, error)
}

// AssetRepository persists fleet assets.
type AssetRepository interface {
	Create(ctx context.Context, asset *domain.Asset) error
	// Update writes asset only while its stored state is still from.
	Update(ctx context.Context, asset *domain.Asset, from statemachine.AssetState) error
	GetByID(ctx context.Context, id string) (*domain.Asset, error)
}

type inventoryRepository struct {
	pool *pgxpool.Pool
}

// NewInventoryRepository instantiates repository.
func NewInventoryRepository(pool *pgxpool.Pool) InventoryRepository {
	return &inventoryRepository{pool: pool}
}

func (r *inventoryRepository) Create(ctx context.Context, item *domain.InventoryItem) error {
	const query = `
        INSERT INTO inventory_items (id, tenant_id, code, equipment_type, state, location_kind, location_ref)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		item.ID, item.TenantID, item.Code, item.EquipmentType, item.State, item.LocationKind, item.LocationRef,
	).Scan(&item.CreatedAt, &item.UpdatedAt)
}

func (r *inventoryRepository) Update(ctx context.Context, item *domain.InventoryItem, from statemachine.InventoryState) error {
	const query = `
        UPDATE inventory_items SET state=$1, location_kind=$2, location_ref=$3, retired_at=$4, updated_at=NOW()
        WHERE id=$5 AND state=$6
        RETURNING updated_at`
	err := r.pool.QueryRow(ctx, query,
		item.State, item.LocationKind, item.LocationRef, item.RetiredAt, item.ID, from,
	).Scan(&item.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrStateChanged
	}
	return err
}

func (r *inventoryRepository) GetByID(ctx context.Context, id string) (*domain.InventoryItem, error) {
	const query = `
        SELECT id, tenant_id, code, equipment_type, state, location_kind, location_ref, retired_at, created_at, updated_at
        FROM inventory_items WHERE id=$1`
	var item domain.InventoryItem
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&item.ID,
		&item.TenantID,
		&item.Code,
		&item.EquipmentType,
		&item.State,
		&item.LocationKind,
		&item.LocationRef,
		&item.RetiredAt,
		&item.CreatedAt,
		&item.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &item, nil
}

type assetRepository struct {
	pool *pgxpool.Pool
}

// NewAssetRepository instantiates repository.
func NewAssetRepository(pool *pgxpool.Pool) AssetRepository {
	return &assetRepository{pool: pool}
}

func (r *assetRepository) Create(ctx context.Context, asset *domain.Asset) error {
	const query = `
        INSERT INTO assets (id, tenant_id, code, plate, state, state_changed_at)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		asset.ID, asset.TenantID, asset.Code, asset.Plate, asset.State, asset.StateChangedAt,
	).Scan(&asset.CreatedAt, &asset.UpdatedAt)
}

func (r *assetRepository) Update(ctx context.Context, asset *domain.Asset, from statemachine.AssetState) error {
	const query = `
        UPDATE assets SET plate=$1, state=$2, state_changed_at=$3, retired_at=$4, updated_at=NOW()
        WHERE id=$5 AND state=$6`
	cmd, err := r.pool.Exec(ctx, query, asset.Plate, asset.State, asset.StateChangedAt, asset.RetiredAt, asset.ID, from)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrStateChanged
	}
	return nil
}

func (r *assetRepository) GetByID(ctx context.Context, id string) (*domain.Asset, error) {
	const query = `
        SELECT id, tenant_id, code, plate, state, state_changed_at, retired_at, created_at, updated_at
        FROM assets WHERE id=$1`
	var a domain.Asset
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&a.ID,
		&a.TenantID,
		&a.Code,
		&a.Plate,
		&a.State,
		&a.StateChangedAt,
		&a.RetiredAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &a, nil
}
