package service

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/fleet-maintenance/internal/calendar"
	"github.com/spec-kit/fleet-maintenance/internal/codes"
	"github.com/spec-kit/fleet-maintenance/internal/permission"
	"github.com/spec-kit/fleet-maintenance/internal/policy"
	"github.com/spec-kit/fleet-maintenance/internal/sla"
	sm "github.com/spec-kit/fleet-maintenance/internal/statemachine"
	apperrors "github.com/spec-kit/fleet-maintenance/pkg/util"
)

// Code formats accepted by FormatCode.
const (
	FormatIncident      = "incident"
	FormatWorkOrder     = "work_order"
	FormatPreventive    = "preventive"
	FormatPreventiveRun = "preventive_run"
	FormatMovement      = "movement"
	FormatBusEquipment  = "bus_equipment"
	FormatEquipment     = "equipment"
)

// KernelService answers rule questions over caller-supplied snapshots. It
// holds no state besides the kernel and never touches storage.
type KernelService struct {
	kernel *policy.Kernel
	logger *zap.Logger
	now    func() time.Time
}

// NewKernelService constructs the service. now defaults to time.Now.
func NewKernelService(kernel *policy.Kernel, logger *zap.Logger, now func() time.Time) *KernelService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &KernelService{kernel: kernel, logger: logger, now: now}
}

// Kernel exposes the rule set for read-only callers.
func (s *KernelService) Kernel() *policy.Kernel { return s.kernel }

// SLAInput is an incident snapshot. Now is the evaluation instant; zero means
// the current time.
type SLAInput struct {
	Priority          sla.Priority
	OpenedAt          time.Time
	AnalysisStartedAt *time.Time
	ResolvedAt        *time.Time
	Now               time.Time
}

// SLAEvaluation is the result of EvaluateSLA.
type SLAEvaluation struct {
	Attention          sla.Window  `json:"attention"`
	Resolution         sla.Window  `json:"resolution"`
	Metrics            sla.Metrics `json:"metrics"`
	Band               sla.Band    `json:"band"`
	ElapsedFormatted   string      `json:"elapsed_formatted"`
	RemainingFormatted string      `json:"remaining_formatted"`
}

// EvaluateSLA computes both windows and the milestone metrics of a snapshot.
func (s *KernelService) EvaluateSLA(in SLAInput) (SLAEvaluation, error) {
	if in.OpenedAt.IsZero() {
		return SLAEvaluation{}, apperrors.NewValidationError("opened_at is required", map[string]any{"field": "opened_at"})
	}
	now := in.Now
	if now.IsZero() {
		now = s.now()
	}
	clock := s.kernel.Clock

	resolutionEnd := now
	if in.ResolvedAt != nil {
		resolutionEnd = *in.ResolvedAt
	}
	attentionEnd := now
	if in.AnalysisStartedAt != nil {
		attentionEnd = *in.AnalysisStartedAt
	}

	res := clock.Compute(in.OpenedAt, resolutionEnd, in.Priority)
	if res.PriorityFallback {
		s.logger.Warn("unknown priority, using default SLA tier",
			zap.String("priority", string(in.Priority)),
			zap.String("fallback", string(res.Priority)),
		)
	}
	return SLAEvaluation{
		Attention:  clock.ComputeKind(in.OpenedAt, attentionEnd, in.Priority, sla.KindAttention),
		Resolution: res,
		Metrics: clock.Metrics(sla.Timestamps{
			Opened:          in.OpenedAt,
			AnalysisStarted: in.AnalysisStartedAt,
			Repaired:        in.ResolvedAt,
		}, in.Priority),
		Band:               res.Band(),
		ElapsedFormatted:   sla.FormatMinutes(res.ElapsedMinutes),
		RemainingFormatted: sla.FormatMinutes(res.RemainingMinutes),
	}, nil
}

// WorkingTime is the calendar answer for an interval.
type WorkingTime struct {
	Minutes   int    `json:"minutes"`
	Formatted string `json:"formatted"`
}

// WorkingMinutes counts working minutes in [start, end).
func (s *KernelService) WorkingMinutes(start, end time.Time) WorkingTime {
	m := s.kernel.Calendar.WorkingMinutesBetween(start, end)
	return WorkingTime{Minutes: m, Formatted: sla.FormatMinutes(m)}
}

// AddWorkingMinutes returns the instant minutes of working time after start.
func (s *KernelService) AddWorkingMinutes(start time.Time, minutes int) (time.Time, error) {
	if minutes < 0 {
		return time.Time{}, apperrors.NewValidationError("minutes must not be negative", map[string]any{"minutes": minutes})
	}
	if minutes > calendar.MaxAddMinutes {
		return time.Time{}, apperrors.NewValidationError("minutes out of range", map[string]any{
			"minutes": minutes,
			"max":     calendar.MaxAddMinutes,
		})
	}
	return s.kernel.Calendar.AddWorkingMinutes(start, minutes)
}

// TransitionEvaluation is the result of EvaluateTransition. RoleAllowed and
// NextStatesForRole are only meaningful for domains with per-role rules.
type TransitionEvaluation struct {
	Domain            string   `json:"domain"`
	From              string   `json:"from"`
	To                string   `json:"to"`
	Legal             bool     `json:"legal"`
	Reason            string   `json:"reason"`
	NextStates        []string `json:"next_states"`
	Terminal          bool     `json:"terminal"`
	RoleChecked       bool     `json:"role_checked"`
	RoleAllowed       bool     `json:"role_allowed"`
	NextStatesForRole []string `json:"next_states_for_role"`
}

// EvaluateTransition decides from -> to in the named domain. A non-empty
// role is checked against the per-transition role table when the domain has
// one. An unknown from state is a validation error here, since the state is
// caller input.
func (s *KernelService) EvaluateTransition(domainName, from, to string, role permission.Role) (TransitionEvaluation, error) {
	var (
		out TransitionEvaluation
		err error
	)
	switch domainName {
	case sm.DomainIncident:
		out, err = evaluate(s.kernel.Incidents, sm.IncidentState(from), sm.IncidentState(to))
		if err == nil && role != "" {
			out.RoleChecked = true
			out.RoleAllowed, _ = s.kernel.IncidentGuard.Allows(role, sm.IncidentState(from), sm.IncidentState(to))
			next, _ := s.kernel.IncidentGuard.NextStatesFor(sm.IncidentState(from), role)
			out.NextStatesForRole = toStrings(next)
		}
	case sm.DomainInventory:
		out, err = evaluate(s.kernel.Inventory, sm.InventoryState(from), sm.InventoryState(to))
	case sm.DomainAsset:
		out, err = evaluate(s.kernel.Assets, sm.AssetState(from), sm.AssetState(to))
	default:
		return TransitionEvaluation{}, apperrors.NewValidationError("unknown domain", map[string]any{
			"domain":  domainName,
			"allowed": []string{sm.DomainIncident, sm.DomainInventory, sm.DomainAsset},
		})
	}
	if err != nil {
		return TransitionEvaluation{}, apperrors.NewValidationError(err.Error(), map[string]any{
			"domain": domainName,
			"state":  from,
		})
	}
	return out, nil
}

func evaluate[S ~string](m *sm.Machine[S], from, to S) (TransitionEvaluation, error) {
	d, err := m.Decide(from, to)
	if err != nil {
		return TransitionEvaluation{}, err
	}
	out := TransitionEvaluation{
		Domain:     m.Domain(),
		From:       string(from),
		To:         string(to),
		Legal:      d.Legal,
		NextStates: toStrings(d.NextStates),
		Terminal:   len(d.NextStates) == 0,
	}
	if d.Reason != nil {
		out.Reason = d.Reason.Error()
	}
	return out, nil
}

// MoveEvaluation is the result of EvaluateMove.
type MoveEvaluation struct {
	From        sm.InventoryState `json:"from"`
	Destination sm.Destination    `json:"destination"`
	Allowed     bool              `json:"allowed"`
	Resulting   sm.InventoryState `json:"resulting"`
	Reason      string            `json:"reason"`
}

// EvaluateMove tells where an item in from would end up when sent to dest.
func (s *KernelService) EvaluateMove(from sm.InventoryState, dest sm.Destination) (MoveEvaluation, error) {
	if !s.kernel.Inventory.Known(from) {
		return MoveEvaluation{}, apperrors.NewValidationError("unknown inventory state", map[string]any{"state": from})
	}
	out := MoveEvaluation{From: from, Destination: dest}
	to, err := sm.ResolveMove(from, dest)
	if err != nil {
		out.Reason = err.Error()
		return out, nil
	}
	out.Allowed = true
	out.Resulting = to
	return out, nil
}

// PermissionCheck is the result of CheckPermission.
type PermissionCheck struct {
	Role    permission.Role         `json:"role"`
	Allowed bool                    `json:"allowed"`
	Missing *permission.Permission  `json:"missing"`
	Granted []permission.Permission `json:"granted"`
}

// CheckPermission reports whether role holds every permission in required.
// An empty required list is always allowed.
func (s *KernelService) CheckPermission(role permission.Role, required []permission.Permission) PermissionCheck {
	missing := s.kernel.Permissions.FirstMissing(role, required...)
	return PermissionCheck{
		Role:    role,
		Allowed: missing == nil,
		Missing: missing,
		Granted: s.kernel.Permissions.PermissionsFor(role),
	}
}

// RoleProfile combines the role definition with its derived capabilities.
type RoleProfile struct {
	Definition   permission.Definition   `json:"definition"`
	Known        bool                    `json:"known"`
	Capabilities permission.Capabilities `json:"capabilities"`
	Detail       permission.DetailConfig `json:"detail"`
}

// Capabilities describes what role can see and do.
func (s *KernelService) Capabilities(role permission.Role) RoleProfile {
	def, ok := permission.DefinitionOf(role)
	return RoleProfile{
		Definition:   def,
		Known:        ok,
		Capabilities: permission.CapabilitiesOf(role),
		Detail:       permission.Detail(permission.DetailLevelFor(role)),
	}
}

// RouteCheck is the result of RouteAccess.
type RouteCheck struct {
	Path     string                  `json:"path"`
	Required []permission.Permission `json:"required"`
	Allowed  bool                    `json:"allowed"`
	Missing  *permission.Permission  `json:"missing"`
}

// RouteAccess resolves the permissions path requires and checks role.
func (s *KernelService) RouteAccess(role permission.Role, path string) RouteCheck {
	allowed, missing := s.kernel.Routes.Allowed(s.kernel.Permissions, role, path)
	return RouteCheck{
		Path:     path,
		Required: s.kernel.Routes.Required(path),
		Allowed:  allowed,
		Missing:  missing,
	}
}

// CodeRequest describes a code to format. Fields unused by Format are ignored.
type CodeRequest struct {
	Format        string
	Sequence      int
	Year          int
	Date          time.Time
	EquipmentType string
	BusCode       string
}

// FormatCode renders a code in one of the Format* layouts.
func (s *KernelService) FormatCode(req CodeRequest) (string, error) {
	date := req.Date
	if date.IsZero() {
		date = s.now().In(s.kernel.Calendar.Location())
	}
	year := req.Year
	if year == 0 {
		year = date.Year()
	}
	switch req.Format {
	case FormatIncident:
		return codes.Incident(req.Sequence, year)
	case FormatWorkOrder:
		return codes.WorkOrder(req.Sequence, year)
	case FormatPreventive:
		return codes.Preventive(req.Sequence)
	case FormatPreventiveRun:
		return codes.PreventiveRun(req.Sequence, date)
	case FormatMovement:
		return codes.Movement(req.Sequence, date)
	case FormatBusEquipment:
		return codes.BusEquipment(req.EquipmentType, req.BusCode, req.Sequence)
	case FormatEquipment:
		return codes.Equipment(codes.EquipmentPrefix(req.EquipmentType), req.Sequence)
	}
	return "", apperrors.NewValidationError(fmt.Sprintf("unknown code format %q", req.Format), map[string]any{
		"allowed": []string{FormatIncident, FormatWorkOrder, FormatPreventive, FormatPreventiveRun,
			FormatMovement, FormatBusEquipment, FormatEquipment},
	})
}

// NextCode returns the code following last for yearly formats, restarting at
// 1 when last belongs to an earlier year. An empty last starts the series.
func (s *KernelService) NextCode(format, last string, year int) (string, error) {
	if year == 0 {
		year = s.now().In(s.kernel.Calendar.Location()).Year()
	}
	switch format {
	case FormatIncident:
		return codes.NextIncident(last, year)
	case FormatWorkOrder:
		return codes.NextWorkOrder(last, year)
	}
	return "", apperrors.NewValidationError(fmt.Sprintf("format %q has no yearly series", format), map[string]any{
		"allowed": []string{FormatIncident, FormatWorkOrder},
	})
}

// ParsedCode is the result of ParseCode.
type ParsedCode struct {
	Code codes.Code `json:"code"`
	Kind codes.Kind `json:"kind"`
}

// ParseCode decodes any supported code.
func (s *KernelService) ParseCode(raw string) (ParsedCode, error) {
	c, err := codes.Parse(raw)
	if err != nil {
		return ParsedCode{}, err
	}
	return ParsedCode{Code: c, Kind: c.Kind()}, nil
}

// OutOfService sums the working minutes history spends in nonOperational
// states; an empty nonOperational uses the default asset states.
func (s *KernelService) OutOfService(history []sla.StateChange, nonOperational []string, now time.Time) WorkingTime {
	if len(nonOperational) == 0 {
		nonOperational = sla.DefaultNonOperational
	}
	if now.IsZero() {
		now = s.now()
	}
	m := s.kernel.Clock.OutOfServiceMinutes(history, nonOperational, now)
	return WorkingTime{Minutes: m, Formatted: sla.FormatMinutes(m)}
}

func toStrings[S ~string](in []S) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = string(v)
	}
	return out
}
