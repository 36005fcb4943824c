package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/fleet-maintenance/internal/api/dto"
	"github.com/spec-kit/fleet-maintenance/internal/permission"
	"github.com/spec-kit/fleet-maintenance/internal/service"
	apperrors "github.com/spec-kit/fleet-maintenance/pkg/util"
)

// KernelHandler answers rule questions over snapshots sent by the caller.
// Nothing here reads or writes storage.
type KernelHandler struct {
	service *service.KernelService
}

// NewKernelHandler constructs handler.
func NewKernelHandler(kernel *service.KernelService) *KernelHandler {
	return &KernelHandler{service: kernel}
}

// EvaluateSLA POST /kernel/sla.
func (h *KernelHandler) EvaluateSLA(c *fiber.Ctx) error {
	var req dto.SLARequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	in := service.SLAInput{
		Priority:          req.Priority,
		OpenedAt:          req.OpenedAt,
		AnalysisStartedAt: req.AnalysisStartedAt,
		ResolvedAt:        req.ResolvedAt,
	}
	if req.Now != nil {
		in.Now = *req.Now
	}
	out, err := h.service.EvaluateSLA(in)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.SLAResponse{
		Attention:          out.Attention,
		Resolution:         out.Resolution,
		Metrics:            out.Metrics,
		Band:               out.Band,
		ElapsedFormatted:   out.ElapsedFormatted,
		RemainingFormatted: out.RemainingFormatted,
	}})
}

// WorkingMinutes POST /kernel/calendario/minutos.
func (h *KernelHandler) WorkingMinutes(c *fiber.Ctx) error {
	var req dto.WorkingMinutesRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.Start.IsZero() || req.End.IsZero() {
		return apperrors.NewValidationError("start and end required", nil)
	}
	out := h.service.WorkingMinutes(req.Start, req.End)
	return c.JSON(fiber.Map{"data": dto.WorkingMinutesResponse{Minutes: out.Minutes, Formatted: out.Formatted}})
}

// AddWorkingMinutes POST /kernel/calendario/sumar.
func (h *KernelHandler) AddWorkingMinutes(c *fiber.Ctx) error {
	var req dto.AddWorkingMinutesRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.Start.IsZero() {
		return apperrors.NewValidationError("start required", map[string]any{"field": "start"})
	}
	end, err := h.service.AddWorkingMinutes(req.Start, req.Minutes)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.AddWorkingMinutesResponse{Start: req.Start, Minutes: req.Minutes, End: end}})
}

// EvaluateTransition POST /kernel/transiciones.
func (h *KernelHandler) EvaluateTransition(c *fiber.Ctx) error {
	var req dto.TransitionRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.Domain == "" || req.From == "" || req.To == "" {
		return apperrors.NewValidationError("domain, from, to required", nil)
	}
	out, err := h.service.EvaluateTransition(req.Domain, req.From, req.To, req.Role)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TransitionResponse{
		Domain:            out.Domain,
		From:              out.From,
		To:                out.To,
		Legal:             out.Legal,
		Reason:            out.Reason,
		NextStates:        out.NextStates,
		Terminal:          out.Terminal,
		RoleChecked:       out.RoleChecked,
		RoleAllowed:       out.RoleAllowed,
		NextStatesForRole: out.NextStatesForRole,
	}})
}

// EvaluateMove POST /kernel/movimientos.
func (h *KernelHandler) EvaluateMove(c *fiber.Ctx) error {
	var req dto.MoveRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if !req.Destination.Valid() {
		return apperrors.NewValidationError("unknown destination", map[string]any{"destination": req.Destination})
	}
	out, err := h.service.EvaluateMove(req.From, req.Destination)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.MoveResponse{
		From:        out.From,
		Destination: out.Destination,
		Allowed:     out.Allowed,
		Resulting:   out.Resulting,
		Reason:      out.Reason,
	}})
}

// CheckPermission POST /kernel/permisos.
func (h *KernelHandler) CheckPermission(c *fiber.Ctx) error {
	principal, err := principalOf(c)
	if err != nil {
		return err
	}
	var req dto.PermissionCheckRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	role := req.Role
	if role == "" {
		role = principal.Role
	}
	required := make([]permission.Permission, 0, len(req.Permissions))
	for _, raw := range req.Permissions {
		p, err := permission.ParsePermission(raw)
		if err != nil {
			return apperrors.NewValidationError(err.Error(), map[string]any{"permission": raw})
		}
		required = append(required, p)
	}
	out := h.service.CheckPermission(role, required)
	return c.JSON(fiber.Map{"data": dto.PermissionCheckResponse{
		Role:    out.Role,
		Allowed: out.Allowed,
		Missing: out.Missing,
		Granted: out.Granted,
	}})
}

// Capabilities GET /kernel/roles/:role. The role "me" resolves to the caller.
func (h *KernelHandler) Capabilities(c *fiber.Ctx) error {
	principal, err := principalOf(c)
	if err != nil {
		return err
	}
	role := permission.Role(c.Params("role"))
	if role == "me" {
		role = principal.Role
	}
	out := h.service.Capabilities(role)
	return c.JSON(fiber.Map{"data": dto.RoleProfileResponse{
		Definition:   out.Definition,
		Known:        out.Known,
		Capabilities: out.Capabilities,
		Detail:       out.Detail,
	}})
}

// RouteAccess GET /kernel/rutas?path=&role=.
func (h *KernelHandler) RouteAccess(c *fiber.Ctx) error {
	principal, err := principalOf(c)
	if err != nil {
		return err
	}
	path := c.Query("path")
	if path == "" {
		return apperrors.NewValidationError("path required", map[string]any{"field": "path"})
	}
	role := permission.Role(c.Query("role"))
	if role == "" {
		role = principal.Role
	}
	out := h.service.RouteAccess(role, path)
	return c.JSON(fiber.Map{"data": dto.RouteAccessResponse{
		Role:     role,
		Path:     out.Path,
		Required: out.Required,
		Allowed:  out.Allowed,
		Missing:  out.Missing,
	}})
}

// FormatCode POST /kernel/codigos.
func (h *KernelHandler) FormatCode(c *fiber.Ctx) error {
	var req dto.FormatCodeRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	var date time.Time
	if req.Date != nil {
		date = *req.Date
	}
	code, err := h.service.FormatCode(service.CodeRequest{
		Format:        req.Format,
		Sequence:      req.Sequence,
		Year:          req.Year,
		Date:          date,
		EquipmentType: req.EquipmentType,
		BusCode:       req.BusCode,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.CodeResponse{Code: code}})
}

// NextCode POST /kernel/codigos/siguiente.
func (h *KernelHandler) NextCode(c *fiber.Ctx) error {
	var req dto.NextCodeRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	code, err := h.service.NextCode(req.Format, req.Last, req.Year)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.CodeResponse{Code: code}})
}

// ParseCode GET /kernel/codigos/:code.
func (h *KernelHandler) ParseCode(c *fiber.Ctx) error {
	raw := c.Params("code")
	out, err := h.service.ParseCode(raw)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.ParsedCodeResponse{Raw: raw, Kind: out.Kind, Code: out.Code}})
}

// OutOfService POST /kernel/fuera-de-servicio.
func (h *KernelHandler) OutOfService(c *fiber.Ctx) error {
	var req dto.OutOfServiceRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	var now time.Time
	if req.Now != nil {
		now = *req.Now
	}
	out := h.service.OutOfService(req.History, req.NonOperational, now)
	return c.JSON(fiber.Map{"data": dto.WorkingMinutesResponse{Minutes: out.Minutes, Formatted: out.Formatted}})
}
