package domain

import (
	"time"

	"github.com/spec-kit/fleet-maintenance/internal/statemachine"
)

// InventoryItem is a piece of on-board equipment tracked by code.
type InventoryItem struct {
	ID            string
	TenantID      string
	Code          string
	EquipmentType string
	State         statemachine.InventoryState
	// LocationKind and LocationRef say where the item is: a bus code, a
	// warehouse id or a supplier name.
	LocationKind statemachine.Destination
	LocationRef  string
	RetiredAt    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Asset is a fleet vehicle.
type Asset struct {
	ID       string
	TenantID string
	Code     string
	Plate    string
	State    statemachine.AssetState
	// StateChangedAt is when the current state was entered.
	StateChangedAt time.Time
	RetiredAt      *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
