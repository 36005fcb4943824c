package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/fleet-maintenance/internal/codes"
	"github.com/spec-kit/fleet-maintenance/internal/domain"
	"github.com/spec-kit/fleet-maintenance/internal/events"
	"github.com/spec-kit/fleet-maintenance/internal/observability"
	"github.com/spec-kit/fleet-maintenance/internal/permission"
	"github.com/spec-kit/fleet-maintenance/internal/sla"
	sm "github.com/spec-kit/fleet-maintenance/internal/statemachine"
	apperrors "github.com/spec-kit/fleet-maintenance/pkg/util"
)

// InventoryCreateInput registers a piece of equipment in a warehouse.
type InventoryCreateInput struct {
	TenantID      string
	EquipmentType string
	WarehouseRef  string
}

// AssetCreateInput registers a vehicle.
type AssetCreateInput struct {
	TenantID string
	Code     string
	Plate    string
}

// AssetServiceStatus reports how long an asset has been unavailable.
type AssetServiceStatus struct {
	Asset               *domain.Asset
	OutOfServiceMinutes int
	Formatted           string
}

// CreateInventoryItem stores a new item in the warehouse with the next
// equipment code for its type.
func (s *WorkflowService) CreateInventoryItem(ctx context.Context, p domain.Principal, input InventoryCreateInput) (*domain.InventoryItem, error) {
	if err := s.authorizeWrite(p, permission.P(permission.ResourceInventario, permission.ActionCrear)); err != nil {
		return nil, err
	}
	tenantID, err := s.targetTenant(p, input.TenantID)
	if err != nil {
		return nil, err
	}
	equipmentType := strings.TrimSpace(input.EquipmentType)
	if equipmentType == "" {
		return nil, apperrors.NewValidationError("equipment type is required", map[string]any{"field": "equipment_type"})
	}

	prefix := codes.EquipmentPrefix(equipmentType)
	seq, err := s.sequencer.Next(ctx, tenantID, codes.EquipmentCounter(prefix))
	if err != nil {
		return nil, err
	}
	code, err := codes.Equipment(prefix, int(seq))
	if err != nil {
		return nil, err
	}

	now := s.now()
	item := &domain.InventoryItem{
		ID:            uuid.NewString(),
		TenantID:      tenantID,
		Code:          code,
		EquipmentType: equipmentType,
		State:         sm.InventoryAlmacen,
		LocationKind:  sm.DestinationWarehouse,
		LocationRef:   strings.TrimSpace(input.WarehouseRef),
	}
	if err := s.inventory.Create(ctx, item); err != nil {
		return nil, err
	}
	s.recordHistory(ctx, p, domain.EntityInventory, item.TenantID, item.ID, "", string(item.State), "", now)
	return item, nil
}

// GetInventoryItem loads an item visible to p.
func (s *WorkflowService) GetInventoryItem(ctx context.Context, p domain.Principal, id string) (*domain.InventoryItem, error) {
	if err := s.authorize(p, permission.P(permission.ResourceInventario, permission.ActionVer)); err != nil {
		return nil, err
	}
	return s.loadInventoryItem(ctx, p, id)
}

// ChangeInventoryState applies a direct state change to an item.
func (s *WorkflowService) ChangeInventoryState(ctx context.Context, p domain.Principal, id string, to sm.InventoryState, comment string) (*domain.InventoryItem, error) {
	if err := s.authorizeWrite(p, permission.P(permission.ResourceInventario, permission.ActionEditar)); err != nil {
		return nil, err
	}
	item, err := s.loadInventoryItem(ctx, p, id)
	if err != nil {
		return nil, err
	}
	from := item.State
	if err := decide(s, s.kernel.Inventory, item.ID, from, to); err != nil {
		return nil, err
	}

	now := s.now()
	item.State = to
	if to == sm.InventoryBaja {
		item.RetiredAt = &now
	}
	if err := s.inventory.Update(ctx, item, from); err != nil {
		return nil, s.staleWrite(err, sm.DomainInventory, item.ID, string(from))
	}
	s.metrics.RecordDecision(sm.DomainInventory, observability.OutcomeAccepted)
	s.recordHistory(ctx, p, domain.EntityInventory, item.TenantID, item.ID, string(from), string(to), comment, now)
	s.publishEvent(ctx, events.New(events.EventInventoryStateChanged, item.TenantID, item.ID, item.Code,
		actorOf(p), now, events.StateChangedPayload{
			Domain:   sm.DomainInventory,
			OldState: string(from),
			NewState: string(to),
			Comment:  comment,
		}))
	return item, nil
}

// MoveInventoryItem relocates an item. The destination decides the resulting
// state, which must still be a legal transition from the current one.
func (s *WorkflowService) MoveInventoryItem(ctx context.Context, p domain.Principal, id string, dest sm.Destination, ref string) (*domain.InventoryItem, error) {
	if err := s.authorizeWrite(p, permission.P(permission.ResourceInventario, permission.ActionMover)); err != nil {
		return nil, err
	}
	item, err := s.loadInventoryItem(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if !s.kernel.Inventory.Known(item.State) {
		s.logUnknownState(sm.DomainInventory, item.ID, string(item.State))
		return nil, &sm.UnknownStateError{Domain: sm.DomainInventory, State: string(item.State)}
	}

	from := item.State
	to, err := sm.ResolveMove(from, dest)
	if err != nil {
		s.metrics.RecordDecision(sm.DomainInventory, observability.OutcomeRejected)
		s.logger.Info("move rejected", zap.String("entity_id", item.ID), zap.Error(err))
		return nil, err
	}
	if to != from {
		if err := decide(s, s.kernel.Inventory, item.ID, from, to); err != nil {
			return nil, err
		}
	}

	now := s.now()
	item.State = to
	item.LocationKind = dest
	item.LocationRef = strings.TrimSpace(ref)
	if err := s.inventory.Update(ctx, item, from); err != nil {
		return nil, s.staleWrite(err, sm.DomainInventory, item.ID, string(from))
	}
	s.metrics.RecordDecision(sm.DomainInventory, observability.OutcomeAccepted)
	if to != from {
		s.recordHistory(ctx, p, domain.EntityInventory, item.TenantID, item.ID, string(from), string(to),
			"moved to "+string(dest), now)
	}
	s.publishEvent(ctx, events.New(events.EventInventoryMoved, item.TenantID, item.ID, item.Code,
		actorOf(p), now, events.InventoryMovedPayload{
			Destination: string(dest),
			Reference:   item.LocationRef,
			OldState:    string(from),
			NewState:    string(to),
		}))
	return item, nil
}

// CreateAsset registers a vehicle in service.
func (s *WorkflowService) CreateAsset(ctx context.Context, p domain.Principal, input AssetCreateInput) (*domain.Asset, error) {
	if err := s.authorizeWrite(p, permission.P(permission.ResourceActivos, permission.ActionCrear)); err != nil {
		return nil, err
	}
	tenantID, err := s.targetTenant(p, input.TenantID)
	if err != nil {
		return nil, err
	}
	code := strings.ToUpper(strings.TrimSpace(input.Code))
	if code == "" {
		return nil, apperrors.NewValidationError("code is required", map[string]any{"field": "code"})
	}

	now := s.now()
	asset := &domain.Asset{
		ID:             uuid.NewString(),
		TenantID:       tenantID,
		Code:           code,
		Plate:          strings.TrimSpace(input.Plate),
		State:          sm.AssetOperativo,
		StateChangedAt: now,
	}
	if err := s.assets.Create(ctx, asset); err != nil {
		return nil, err
	}
	s.recordHistory(ctx, p, domain.EntityAsset, asset.TenantID, asset.ID, "", string(asset.State), "", now)
	return asset, nil
}

// GetAsset loads an asset visible to p.
func (s *WorkflowService) GetAsset(ctx context.Context, p domain.Principal, id string) (*domain.Asset, error) {
	if err := s.authorize(p, permission.P(permission.ResourceActivos, permission.ActionVer)); err != nil {
		return nil, err
	}
	return s.loadAsset(ctx, p, id)
}

// ChangeAssetState moves a vehicle between operational states.
func (s *WorkflowService) ChangeAssetState(ctx context.Context, p domain.Principal, id string, to sm.AssetState, comment string) (*domain.Asset, error) {
	if err := s.authorizeWrite(p, permission.P(permission.ResourceActivos, permission.ActionEditar)); err != nil {
		return nil, err
	}
	asset, err := s.loadAsset(ctx, p, id)
	if err != nil {
		return nil, err
	}
	from := asset.State
	if err := decide(s, s.kernel.Assets, asset.ID, from, to); err != nil {
		return nil, err
	}

	now := s.now()
	asset.State = to
	asset.StateChangedAt = now
	if to == sm.AssetBaja {
		asset.RetiredAt = &now
	}
	if err := s.assets.Update(ctx, asset, from); err != nil {
		return nil, s.staleWrite(err, sm.DomainAsset, asset.ID, string(from))
	}
	s.metrics.RecordDecision(sm.DomainAsset, observability.OutcomeAccepted)
	s.recordHistory(ctx, p, domain.EntityAsset, asset.TenantID, asset.ID, string(from), string(to), comment, now)
	s.publishEvent(ctx, events.New(events.EventAssetStateChanged, asset.TenantID, asset.ID, asset.Code,
		actorOf(p), now, events.StateChangedPayload{
			Domain:   sm.DomainAsset,
			OldState: string(from),
			NewState: string(to),
			Comment:  comment,
		}))
	return asset, nil
}

// AssetOutOfService sums the working minutes the asset spent in a
// non-operational state, up to now.
func (s *WorkflowService) AssetOutOfService(ctx context.Context, p domain.Principal, id string) (*AssetServiceStatus, error) {
	if err := s.authorize(p, permission.P(permission.ResourceActivos, permission.ActionVer)); err != nil {
		return nil, err
	}
	asset, err := s.loadAsset(ctx, p, id)
	if err != nil {
		return nil, err
	}

	var history []sla.StateChange
	if s.history != nil {
		entries, err := s.history.ListByEntity(ctx, domain.EntityAsset, asset.ID)
		if err != nil {
			return nil, err
		}
		history = make([]sla.StateChange, 0, len(entries))
		for _, e := range entries {
			history = append(history, sla.StateChange{State: e.ToState, At: e.ChangedAt})
		}
	}
	if len(history) == 0 {
		history = []sla.StateChange{{State: string(asset.State), At: asset.StateChangedAt}}
	}

	minutes := s.kernel.Clock.OutOfServiceMinutes(history, sla.DefaultNonOperational, s.now())
	return &AssetServiceStatus{
		Asset:               asset,
		OutOfServiceMinutes: minutes,
		Formatted:           sla.FormatMinutes(minutes),
	}, nil
}

func (s *WorkflowService) loadInventoryItem(ctx context.Context, p domain.Principal, id string) (*domain.InventoryItem, error) {
	item, err := s.inventory.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.CanSeeTenant(item.TenantID) {
		return nil, apperrors.NewNotFound("inventory item", map[string]any{"id": id})
	}
	return item, nil
}

func (s *WorkflowService) loadAsset(ctx context.Context, p domain.Principal, id string) (*domain.Asset, error) {
	asset, err := s.assets.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.CanSeeTenant(asset.TenantID) {
		return nil, apperrors.NewNotFound("asset", map[string]any{"id": id})
	}
	return asset, nil
}
