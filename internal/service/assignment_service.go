package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/fleet-maintenance/internal/domain"
	"github.com/spec-kit/fleet-maintenance/internal/events"
	"github.com/spec-kit/fleet-maintenance/internal/permission"
	sm "github.com/spec-kit/fleet-maintenance/internal/statemachine"
	apperrors "github.com/spec-kit/fleet-maintenance/pkg/util"
)

// SelfAssignIncident lets a caller take an open, unassigned incident.
func (s *WorkflowService) SelfAssignIncident(ctx context.Context, p domain.Principal, id string) (*domain.Incident, error) {
	if err := s.authorizeWrite(p, permission.P(permission.ResourceIncidencias, permission.ActionEditar)); err != nil {
		return nil, err
	}
	incident, err := s.loadIncident(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if incident.AssignedTo != nil && *incident.AssignedTo != p.UserID {
		return nil, apperrors.NewConflict("incident already assigned", map[string]any{
			"incident_id": incident.ID,
			"assigned_to": *incident.AssignedTo,
		})
	}
	return s.assign(ctx, p, incident, p.UserID)
}

// AssignIncident hands an incident to assignee. A first assignment needs
// incidencias:asignar, changing an existing assignee needs
// incidencias:reasignar.
func (s *WorkflowService) AssignIncident(ctx context.Context, p domain.Principal, id, assignee string) (*domain.Incident, error) {
	assignee = strings.TrimSpace(assignee)
	if assignee == "" {
		return nil, apperrors.NewValidationError("assignee required", map[string]any{"field": "assignee"})
	}
	if err := s.authorizeWrite(p, permission.P(permission.ResourceIncidencias, permission.ActionAsignar)); err != nil {
		return nil, err
	}
	incident, err := s.loadIncident(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if incident.AssignedTo != nil && *incident.AssignedTo != assignee {
		if err := s.authorize(p, permission.P(permission.ResourceIncidencias, permission.ActionReasignar)); err != nil {
			return nil, err
		}
	}
	return s.assign(ctx, p, incident, assignee)
}

func (s *WorkflowService) assign(ctx context.Context, p domain.Principal, incident *domain.Incident, assignee string) (*domain.Incident, error) {
	if !incident.State.IsOpen() {
		return nil, apperrors.NewConflict("only open incidents can be assigned", map[string]any{
			"incident_id": incident.ID,
			"state":       incident.State,
		})
	}
	if incident.AssignedTo != nil && *incident.AssignedTo == assignee {
		return incident, nil
	}

	old := incident.AssignedTo
	incident.AssignedTo = &assignee
	if err := s.incidents.Update(ctx, incident, incident.State); err != nil {
		return nil, s.staleWrite(err, sm.DomainIncident, incident.ID, string(incident.State))
	}
	s.logger.Info("incident assigned",
		zap.String("incident_id", incident.ID),
		zap.String("code", incident.Code),
		zap.String("assignee", assignee),
		zap.String("by", p.UserID),
	)
	s.publishEvent(ctx, events.New(events.EventIncidentAssigned, incident.TenantID, incident.ID, incident.Code,
		actorOf(p), s.now(), events.IncidentAssignedPayload{
			OldAssignee: old,
			NewAssignee: assignee,
			Self:        assignee == p.UserID,
		}))
	return incident, nil
}
