package dto

import (
	"time"

	"github.com/spec-kit/fleet-maintenance/internal/domain"
	"github.com/spec-kit/fleet-maintenance/internal/statemachine"
)

// CreateInventoryItemRequest payload.
type CreateInventoryItemRequest struct {
	TenantID      string `json:"tenant_id"`
	EquipmentType string `json:"equipment_type"`
	WarehouseRef  string `json:"warehouse_ref"`
}

// MoveInventoryItemRequest sends an item to a bus, warehouse or supplier.
type MoveInventoryItemRequest struct {
	Destination statemachine.Destination `json:"destination"`
	Reference   string                   `json:"reference"`
}

// InventoryItemResponse is the API view of an inventory item.
type InventoryItemResponse struct {
	ID            string                      `json:"id"`
	TenantID      string                      `json:"tenant_id"`
	Code          string                      `json:"code"`
	EquipmentType string                      `json:"equipment_type"`
	State         statemachine.InventoryState `json:"state"`
	LocationKind  statemachine.Destination    `json:"location_kind"`
	LocationRef   string                      `json:"location_ref"`
	RetiredAt     *time.Time                  `json:"retired_at"`
}

// CreateAssetRequest payload.
type CreateAssetRequest struct {
	TenantID string `json:"tenant_id"`
	Code     string `json:"code"`
	Plate    string `json:"plate"`
}

// AssetResponse is the API view of a vehicle.
type AssetResponse struct {
	ID             string                  `json:"id"`
	TenantID       string                  `json:"tenant_id"`
	Code           string                  `json:"code"`
	Plate          string                  `json:"plate"`
	State          statemachine.AssetState `json:"state"`
	StateChangedAt time.Time               `json:"state_changed_at"`
	RetiredAt      *time.Time              `json:"retired_at"`
}

// OutOfServiceResponse reports the downtime of an asset in working time.
type OutOfServiceResponse struct {
	Asset     AssetResponse `json:"asset"`
	Minutes   int           `json:"minutes"`
	Formatted string        `json:"formatted"`
}

func NewInventoryItemResponse(item *domain.InventoryItem) InventoryItemResponse {
	return InventoryItemResponse{
		ID:            item.ID,
		TenantID:      item.TenantID,
		Code:          item.Code,
		EquipmentType: item.EquipmentType,
		State:         item.State,
		LocationKind:  item.LocationKind,
		LocationRef:   item.LocationRef,
		RetiredAt:     item.RetiredAt,
	}
}

func NewAssetResponse(a *domain.Asset) AssetResponse {
	return AssetResponse{
		ID:             a.ID,
		TenantID:       a.TenantID,
		Code:           a.Code,
		Plate:          a.Plate,
		State:          a.State,
		StateChangedAt: a.StateChangedAt,
		RetiredAt:      a.RetiredAt,
	}
}
