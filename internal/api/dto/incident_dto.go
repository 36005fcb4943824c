package dto

import (
	"time"

	"github.com/spec-kit/fleet-maintenance/internal/domain"
	"github.com/spec-kit/fleet-maintenance/internal/sla"
	"github.com/spec-kit/fleet-maintenance/internal/statemachine"
)

// CreateIncidentRequest payload.
type CreateIncidentRequest struct {
	TenantID    string       `json:"tenant_id"`
	AssetID     *string      `json:"asset_id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Priority    sla.Priority `json:"priority"`
}

// ChangeStateRequest moves an entity to State.
type ChangeStateRequest struct {
	State   string `json:"state"`
	Comment string `json:"comment"`
}

// AssignIncidentRequest names the new assignee.
type AssignIncidentRequest struct {
	Assignee string `json:"assignee"`
}

// IncidentResponse is the API view of an incident.
type IncidentResponse struct {
	ID                string                     `json:"id"`
	TenantID          string                     `json:"tenant_id"`
	Code              string                     `json:"code"`
	AssetID           *string                    `json:"asset_id"`
	Title             string                     `json:"title"`
	Description       string                     `json:"description"`
	Priority          sla.Priority               `json:"priority"`
	State             statemachine.IncidentState `json:"state"`
	ReportedBy        string                     `json:"reported_by"`
	AssignedTo        *string                    `json:"assigned_to"`
	OpenedAt          time.Time                  `json:"opened_at"`
	AnalysisStartedAt *time.Time                 `json:"analysis_started_at"`
	RepairedAt        *time.Time                 `json:"repaired_at"`
	ClosedAt          *time.Time                 `json:"closed_at"`
	ReopenCount       int                        `json:"reopen_count"`
	SLABreachedAt     *time.Time                 `json:"sla_breached_at"`
}

// IncidentSLAResponse is the live SLA status of an incident.
type IncidentSLAResponse struct {
	Incident   IncidentResponse `json:"incident"`
	Attention  sla.Window       `json:"attention"`
	Resolution sla.Window       `json:"resolution"`
	Metrics    sla.Metrics      `json:"metrics"`
	Band       sla.Band         `json:"band"`
}

// NextStatesResponse lists the states the caller may move an entity to.
type NextStatesResponse struct {
	Current    string   `json:"current"`
	NextStates []string `json:"next_states"`
}

// NewIncidentResponse maps the domain model.
func NewIncidentResponse(i *domain.Incident) IncidentResponse {
	return IncidentResponse{
		ID:                i.ID,
		TenantID:          i.TenantID,
		Code:              i.Code,
		AssetID:           i.AssetID,
		Title:             i.Title,
		Description:       i.Description,
		Priority:          i.Priority,
		State:             i.State,
		ReportedBy:        i.ReportedBy,
		AssignedTo:        i.AssignedTo,
		OpenedAt:          i.OpenedAt,
		AnalysisStartedAt: i.AnalysisStartedAt,
		RepairedAt:        i.RepairedAt,
		ClosedAt:          i.ClosedAt,
		ReopenCount:       i.ReopenCount,
		SLABreachedAt:     i.SLABreachedAt,
	}
}
