package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/fleet-maintenance/internal/api/dto"
	"github.com/spec-kit/fleet-maintenance/internal/service"
	"github.com/spec-kit/fleet-maintenance/internal/sla"
	sm "github.com/spec-kit/fleet-maintenance/internal/statemachine"
	apperrors "github.com/spec-kit/fleet-maintenance/pkg/util"
)

// IncidentsHandler exposes the incident workflow.
type IncidentsHandler struct {
	service *service.WorkflowService
}

// NewIncidentsHandler constructs handler.
func NewIncidentsHandler(workflow *service.WorkflowService) *IncidentsHandler {
	return &IncidentsHandler{service: workflow}
}

// Create POST /incidencias.
func (h *IncidentsHandler) Create(c *fiber.Ctx) error {
	principal, err := principalOf(c)
	if err != nil {
		return err
	}
	var req dto.CreateIncidentRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	incident, err := h.service.CreateIncident(c.UserContext(), principal, service.IncidentCreateInput{
		TenantID:    req.TenantID,
		AssetID:     req.AssetID,
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewIncidentResponse(incident)})
}

// List GET /incidencias.
func (h *IncidentsHandler) List(c *fiber.Ctx) error {
	principal, err := principalOf(c)
	if err != nil {
		return err
	}
	filter, err := parseIncidentQuery(c)
	if err != nil {
		return err
	}
	incidents, err := h.service.ListIncidents(c.UserContext(), principal, filter)
	if err != nil {
		return err
	}
	items := make([]dto.IncidentResponse, 0, len(incidents))
	for i := range incidents {
		items = append(items, dto.NewIncidentResponse(&incidents[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Get GET /incidencias/:id.
func (h *IncidentsHandler) Get(c *fiber.Ctx) error {
	principal, err := principalOf(c)
	if err != nil {
		return err
	}
	incident, err := h.service.GetIncident(c.UserContext(), principal, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewIncidentResponse(incident)})
}

// ChangeState POST /incidencias/:id/estado.
func (h *IncidentsHandler) ChangeState(c *fiber.Ctx) error {
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
	incident, err := h.service.ChangeIncidentState(c.UserContext(), principal, c.Params("id"), sm.IncidentState(req.State), req.Comment)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewIncidentResponse(incident)})
}

// Assign POST /incidencias/:id/asignacion.
func (h *IncidentsHandler) Assign(c *fiber.Ctx) error {
	principal, err := principalOf(c)
	if err != nil {
		return err
	}
	var req dto.AssignIncidentRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	incident, err := h.service.AssignIncident(c.UserContext(), principal, c.Params("id"), req.Assignee)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewIncidentResponse(incident)})
}

// SelfAssign POST /incidencias/:id/tomar.
func (h *IncidentsHandler) SelfAssign(c *fiber.Ctx) error {
	principal, err := principalOf(c)
	if err != nil {
		return err
	}
	incident, err := h.service.SelfAssignIncident(c.UserContext(), principal, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewIncidentResponse(incident)})
}

// NextStates GET /incidencias/:id/transiciones.
func (h *IncidentsHandler) NextStates(c *fiber.Ctx) error {
	principal, err := principalOf(c)
	if err != nil {
		return err
	}
	incident, err := h.service.GetIncident(c.UserContext(), principal, c.Params("id"))
	if err != nil {
		return err
	}
	next, err := h.service.IncidentNextStates(c.UserContext(), principal, incident.ID)
	if err != nil {
		return err
	}
	states := make([]string, 0, len(next))
	for _, s := range next {
		states = append(states, string(s))
	}
	return c.JSON(fiber.Map{"data": dto.NextStatesResponse{Current: string(incident.State), NextStates: states}})
}

// SLA GET /incidencias/:id/sla.
func (h *IncidentsHandler) SLA(c *fiber.Ctx) error {
	principal, err := principalOf(c)
	if err != nil {
		return err
	}
	status, err := h.service.IncidentSLA(c.UserContext(), principal, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.IncidentSLAResponse{
		Incident:   dto.NewIncidentResponse(status.Incident),
		Attention:  status.Attention,
		Resolution: status.Resolution,
		Metrics:    status.Metrics,
		Band:       status.Band,
	}})
}

func parseIncidentQuery(c *fiber.Ctx) (service.IncidentListFilter, error) {
	filter := service.IncidentListFilter{
		AssetID:    optional(c.Query("asset_id")),
		AssignedTo: optional(c.Query("assigned_to")),
		SearchTerm: optional(c.Query("q")),
		Limit:      parseInt(c.Query("limit"), 20),
		Offset:     parseInt(c.Query("offset"), 0),
	}
	for _, s := range splitList(c.Query("state")) {
		filter.States = append(filter.States, sm.IncidentState(s))
	}
	for _, p := range splitList(c.Query("priority")) {
		filter.Priorities = append(filter.Priorities, sla.Priority(p))
	}
	var err error
	if filter.OpenedFrom, err = parseTime("opened_from", c.Query("opened_from")); err != nil {
		return filter, err
	}
	if filter.OpenedTo, err = parseTime("opened_to", c.Query("opened_to")); err != nil {
		return filter, err
	}
	return filter, nil
}
