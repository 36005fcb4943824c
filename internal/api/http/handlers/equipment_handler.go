package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/fleet-maintenance/internal/api/dto"
	"github.com/spec-kit/fleet-maintenance/internal/service"
	sm "github.com/spec-kit/fleet-maintenance/internal/statemachine"
	apperrors "github.com/spec-kit/fleet-maintenance/pkg/util"
)

// EquipmentHandler exposes inventory items and fleet vehicles.
type EquipmentHandler struct {
	service *service.WorkflowService
}

// NewEquipmentHandler constructs handler.
func NewEquipmentHandler(workflow *service.WorkflowService) *EquipmentHandler {
	return &EquipmentHandler{service: workflow}
}

// CreateItem POST /inventario.
func (h *EquipmentHandler) CreateItem(c *fiber.Ctx) error {
	principal, err := principalOf(c)
	if err != nil {
		return err
	}
	var req dto.CreateInventoryItemRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	item, err := h.service.CreateInventoryItem(c.UserContext(), principal, service.InventoryCreateInput{
		TenantID:      req.TenantID,
		EquipmentType: req.EquipmentType,
		WarehouseRef:  req.WarehouseRef,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewInventoryItemResponse(item)})
}

// GetItem GET /inventario/:id.
func (h *EquipmentHandler) GetItem(c *fiber.Ctx) error {
	principal, err := principalOf(c)
	if err != nil {
		return err
	}
	item, err := h.service.GetInventoryItem(c.UserContext(), principal, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewInventoryItemResponse(item)})
}

// ChangeItemState POST /inventario/:id/estado.
func (h *EquipmentHandler) ChangeItemState(c *fiber.Ctx) error {
	principal, err := principalOf(c)
	if err != nil {
		return err
	}
	var req dto.ChangeStateRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.State == "" {
		return apperrors.NewValidationError("state required", map[string]any{"field": "state"})
	}
	item, err := h.service.ChangeInventoryState(c.UserContext(), principal, c.Params("id"), sm.InventoryState(req.State), req.Comment)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewInventoryItemResponse(item)})
}

// MoveItem POST /inventario/:id/movimientos.
func (h *EquipmentHandler) MoveItem(c *fiber.Ctx) error {
	principal, err := principalOf(c)
	if err != nil {
		return err
	}
	var req dto.MoveInventoryItemRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if !req.Destination.Valid() {
		return apperrors.NewValidationError("unknown destination", map[string]any{
			"destination": req.Destination,
			"allowed":     []sm.Destination{sm.DestinationBus, sm.DestinationWarehouse, sm.DestinationSupplier},
		})
	}
	item, err := h.service.MoveInventoryItem(c.UserContext(), principal, c.Params("id"), req.Destination, req.Reference)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewInventoryItemResponse(item)})
}

// CreateAsset POST /autobuses.
func (h *EquipmentHandler) CreateAsset(c *fiber.Ctx) error {
	principal, err := principalOf(c)
	if err != nil {
		return err
	}
	var req dto.CreateAssetRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	asset, err := h.service.CreateAsset(c.UserContext(), principal, service.AssetCreateInput{
		TenantID: req.TenantID,
		Code:     req.Code,
		Plate:    req.Plate,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewAssetResponse(asset)})
}

// GetAsset GET /autobuses/:id.
func (h *EquipmentHandler) GetAsset(c *fiber.Ctx) error {
	principal, err := principalOf(c)
	if err != nil {
		return err
	}
	asset, err := h.service.GetAsset(c.UserContext(), principal, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAssetResponse(asset)})
}

// ChangeAssetState POST /autobuses/:id/estado.
func (h *EquipmentHandler) ChangeAssetState(c *fiber.Ctx) error {
	principal, err := principalOf(c)
	if err != nil {
		return err
	}
	var req dto.ChangeStateRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.State == "" {
		return apperrors.NewValidationError("state required", map[string]any{"field": "state"})
	}
	asset, err := h.service.ChangeAssetState(c.UserContext(), principal, c.Params("id"), sm.AssetState(req.State), req.Comment)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAssetResponse(asset)})
}

// OutOfService GET /autobuses/:id/fuera-de-servicio.
func (h *EquipmentHandler) OutOfService(c *fiber.Ctx) error {
	principal, err := principalOf(c)
	if err != nil {
		return err
	}
	status, err := h.service.AssetOutOfService(c.UserContext(), principal, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.OutOfServiceResponse{
		Asset:     dto.NewAssetResponse(status.Asset),
		Minutes:   status.OutOfServiceMinutes,
		Formatted: status.Formatted,
	}})
}
