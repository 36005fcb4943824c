package dto

import (
	"time"

	"github.com/spec-kit/fleet-maintenance/internal/codes"
	"github.com/spec-kit/fleet-maintenance/internal/permission"
	"github.com/spec-kit/fleet-maintenance/internal/sla"
	"github.com/spec-kit/fleet-maintenance/internal/statemachine"
)

// SLARequest is an incident snapshot to evaluate. Now defaults to the
// server clock.
type SLARequest struct {
	Priority          sla.Priority `json:"priority"`
	OpenedAt          time.Time    `json:"opened_at"`
	AnalysisStartedAt *time.Time   `json:"analysis_started_at"`
	ResolvedAt        *time.Time   `json:"resolved_at"`
	Now               *time.Time   `json:"now"`
}

type SLAResponse struct {
	Attention          sla.Window  `json:"attention"`
	Resolution         sla.Window  `json:"resolution"`
	Metrics            sla.Metrics `json:"metrics"`
	Band               sla.Band    `json:"band"`
	ElapsedFormatted   string      `json:"elapsed_formatted"`
	RemainingFormatted string      `json:"remaining_formatted"`
}

// WorkingMinutesRequest asks for the working time in [Start, End).
type WorkingMinutesRequest struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type WorkingMinutesResponse struct {
	Minutes   int    `json:"minutes"`
	Formatted string `json:"formatted"`
}

// AddWorkingMinutesRequest asks for the instant Minutes of working time
// after Start.
type AddWorkingMinutesRequest struct {
	Start   time.Time `json:"start"`
	Minutes int       `json:"minutes"`
}

type AddWorkingMinutesResponse struct {
	Start   time.Time `json:"start"`
	Minutes int       `json:"minutes"`
	End     time.Time `json:"end"`
}

// TransitionRequest asks whether From -> To is legal in Domain. Role is
// optional.
type TransitionRequest struct {
	Domain string          `json:"domain"`
	From   string          `json:"from"`
	To     string          `json:"to"`
	Role   permission.Role `json:"role"`
}

type TransitionResponse struct {
	Domain            string   `json:"domain"`
	From              string   `json:"from"`
	To                string   `json:"to"`
	Legal             bool     `json:"legal"`
	Reason            string   `json:"reason,omitempty"`
	NextStates        []string `json:"next_states"`
	Terminal          bool     `json:"terminal"`
	RoleChecked       bool     `json:"role_checked"`
	RoleAllowed       bool     `json:"role_allowed"`
	NextStatesForRole []string `json:"next_states_for_role,omitempty"`
}

type MoveRequest struct {
	From        statemachine.InventoryState `json:"from"`
	Destination statemachine.Destination    `json:"destination"`
}

type MoveResponse struct {
	From        statemachine.InventoryState `json:"from"`
	Destination statemachine.Destination    `json:"destination"`
	Allowed     bool                        `json:"allowed"`
	Resulting   statemachine.InventoryState `json:"resulting,omitempty"`
	Reason      string                      `json:"reason,omitempty"`
}

// PermissionCheckRequest lists "resource:action" strings. Role defaults to
// the caller's role.
type PermissionCheckRequest struct {
	Role        permission.Role `json:"role"`
	Permissions []string        `json:"permissions"`
}

type PermissionCheckResponse struct {
	Role    permission.Role         `json:"role"`
	Allowed bool                    `json:"allowed"`
	Missing *permission.Permission  `json:"missing"`
	Granted []permission.Permission `json:"granted"`
}

type RoleProfileResponse struct {
	Definition   permission.Definition   `json:"definition"`
	Known        bool                    `json:"known"`
	Capabilities permission.Capabilities `json:"capabilities"`
	Detail       permission.DetailConfig `json:"detail"`
}

type RouteAccessResponse struct {
	Role     permission.Role         `json:"role"`
	Path     string                  `json:"path"`
	Required []permission.Permission `json:"required"`
	Allowed  bool                    `json:"allowed"`
	Missing  *permission.Permission  `json:"missing"`
}

// FormatCodeRequest renders one code. Fields unused by Format are ignored.
type FormatCodeRequest struct {
	Format        string     `json:"format"`
	Sequence      int        `json:"sequence"`
	Year          int        `json:"year"`
	Date          *time.Time `json:"date"`
	EquipmentType string     `json:"equipment_type"`
	BusCode       string     `json:"bus_code"`
}

type NextCodeRequest struct {
	Format string `json:"format"`
	Last   string `json:"last"`
	Year   int    `json:"year"`
}

type CodeResponse struct {
	Code string `json:"code"`
}

// ParsedCodeResponse flattens the decoded parts next to the raw code.
type ParsedCodeResponse struct {
	Raw  string     `json:"raw"`
	Kind codes.Kind `json:"kind"`
	codes.Code
}

// OutOfServiceRequest is a chronological state history. NonOperational
// defaults to the asset breakdown states.
type OutOfServiceRequest struct {
	History        []sla.StateChange `json:"history"`
	NonOperational []string          `json:"non_operational"`
	Now            *time.Time        `json:"now"`
}
