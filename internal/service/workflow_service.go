package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/fleet-maintenance/internal/codes"
	"github.com/spec-kit/fleet-maintenance/internal/domain"
	"github.com/spec-kit/fleet-maintenance/internal/events"
	"github.com/spec-kit/fleet-maintenance/internal/observability"
	"github.com/spec-kit/fleet-maintenance/internal/permission"
	"github.com/spec-kit/fleet-maintenance/internal/policy"
	"github.com/spec-kit/fleet-maintenance/internal/repository"
	"github.com/spec-kit/fleet-maintenance/internal/sequence"
	"github.com/spec-kit/fleet-maintenance/internal/sla"
	sm "github.com/spec-kit/fleet-maintenance/internal/statemachine"
	apperrors "github.com/spec-kit/fleet-maintenance/pkg/util"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
	scanPageSize     = 200
)

// WorkflowService applies the kernel rules to persisted incidents, inventory
// items and assets.
type WorkflowService struct {
	kernel     *policy.Kernel
	incidents  repository.IncidentRepository
	inventory  repository.InventoryRepository
	assets     repository.AssetRepository
	history    repository.StateHistoryRepository
	sequencer  sequence.Sequencer
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// WorkflowDependencies bundles collaborators for the workflow service.
type WorkflowDependencies struct {
	Kernel        *policy.Kernel
	IncidentRepo  repository.IncidentRepository
	InventoryRepo repository.InventoryRepository
	AssetRepo     repository.AssetRepository
	HistoryRepo   repository.StateHistoryRepository
	Sequencer     sequence.Sequencer
	Dispatcher    events.Dispatcher
	Metrics       *observability.Metrics
	Logger        *zap.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// NewWorkflowService constructs the service.
func NewWorkflowService(deps WorkflowDependencies) *WorkflowService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &WorkflowService{
		kernel:     deps.Kernel,
		incidents:  deps.IncidentRepo,
		inventory:  deps.InventoryRepo,
		assets:     deps.AssetRepo,
		history:    deps.HistoryRepo,
		sequencer:  deps.Sequencer,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
		now:        now,
	}
}

// IncidentCreateInput describes incident creation payload. TenantID may name
// another tenant only for roles that see every tenant.
type IncidentCreateInput struct {
	TenantID    string
	AssetID     *string
	Title       string
	Description string
	Priority    sla.Priority
}

// IncidentListFilter describes listing filters.
type IncidentListFilter struct {
	AssetID    *string
	AssignedTo *string
	States     []sm.IncidentState
	Priorities []sla.Priority
	SearchTerm *string
	OpenedFrom *time.Time
	OpenedTo   *time.Time
	Limit      int
	Offset     int
}

// IncidentSLAStatus is the live SLA picture of one incident.
type IncidentSLAStatus struct {
	Incident   *domain.Incident
	Attention  sla.Window
	Resolution sla.Window
	Metrics    sla.Metrics
	Band       sla.Band
}

// CreateIncident opens an incident with the next code of the tenant's yearly
// counter.
func (s *WorkflowService) CreateIncident(ctx context.Context, p domain.Principal, input IncidentCreateInput) (*domain.Incident, error) {
	if err := s.authorizeWrite(p, permission.P(permission.ResourceIncidencias, permission.ActionCrear)); err != nil {
		return nil, err
	}
	tenantID, err := s.targetTenant(p, input.TenantID)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewValidationError("title is required", map[string]any{"field": "title"})
	}
	priority := input.Priority
	if priority == "" {
		priority = s.kernel.Clock.Table().Fallback()
	}
	if _, _, fallback := s.kernel.Clock.Table().Lookup(priority); fallback {
		return nil, apperrors.NewValidationError("unknown priority", map[string]any{
			"priority": priority,
			"allowed":  s.kernel.Clock.Table().Priorities(),
		})
	}

	now := s.now()
	year := now.In(s.kernel.Calendar.Location()).Year()
	seq, err := s.sequencer.Next(ctx, tenantID, codes.IncidentCounter(year))
	if err != nil {
		return nil, err
	}
	code, err := codes.Incident(int(seq), year)
	if err != nil {
		return nil, err
	}

	incident := &domain.Incident{
		ID:          uuid.NewString(),
		TenantID:    tenantID,
		Code:        code,
		AssetID:     input.AssetID,
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		Priority:    priority,
		State:       sm.IncidentNueva,
		ReportedBy:  p.UserID,
		OpenedAt:    now,
	}
	if err := s.incidents.Create(ctx, incident); err != nil {
		return nil, err
	}
	s.recordHistory(ctx, p, domain.EntityIncident, incident.TenantID, incident.ID, "", string(incident.State), "", now)
	s.publishEvent(ctx, events.New(events.EventIncidentCreated, incident.TenantID, incident.ID, incident.Code,
		actorOf(p), now, events.IncidentCreatedPayload{
			Priority: incident.Priority,
			Title:    incident.Title,
			AssetID:  incident.AssetID,
		}))
	s.logger.Info("incident created",
		zap.String("incident_id", incident.ID),
		zap.String("code", incident.Code),
		zap.String("tenant_id", incident.TenantID),
		zap.String("priority", string(incident.Priority)),
	)
	return incident, nil
}

// GetIncident loads an incident visible to p.
func (s *WorkflowService) GetIncident(ctx context.Context, p domain.Principal, id string) (*domain.Incident, error) {
	if err := s.authorize(p, permission.P(permission.ResourceIncidencias, permission.ActionVer)); err != nil {
		return nil, err
	}
	return s.loadIncident(ctx, p, id)
}

// ListIncidents returns incidents of p's tenant scope, never older than the
// role's history horizon.
func (s *WorkflowService) ListIncidents(ctx context.Context, p domain.Principal, filter IncidentListFilter) ([]domain.Incident, error) {
	if err := s.authorize(p, permission.P(permission.ResourceIncidencias, permission.ActionVer)); err != nil {
		return nil, err
	}

	horizon := s.now().AddDate(0, 0, -permission.MaxHistoryDays(p.Role))
	from := filter.OpenedFrom
	if from == nil || from.Before(horizon) {
		from = &horizon
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	return s.incidents.List(ctx, repository.IncidentFilter{
		TenantID:   p.TenantScope(),
		AssetID:    filter.AssetID,
		AssignedTo: filter.AssignedTo,
		States:     filter.States,
		Priorities: filter.Priorities,
		SearchTerm: filter.SearchTerm,
		OpenedFrom: from,
		OpenedTo:   filter.OpenedTo,
		Limit:      limit,
		Offset:     filter.Offset,
	})
}

// ChangeIncidentState moves an incident to a new state. The transition must
// be legal and p's role must be allowed to perform it. Entering analysis
// starts the attention milestone and assigns the incident to p when
// unassigned; resolving stamps the repair; reopening clears both closing
// milestones so the resolution clock runs again.
func (s *WorkflowService) ChangeIncidentState(ctx context.Context, p domain.Principal, id string, to sm.IncidentState, comment string) (*domain.Incident, error) {
	if err := s.authorizeWrite(p, permission.P(permission.ResourceIncidencias, permission.ActionEditar)); err != nil {
		return nil, err
	}
	incident, err := s.loadIncident(ctx, p, id)
	if err != nil {
		return nil, err
	}

	from := incident.State
	if err := decide(s, s.kernel.Incidents, incident.ID, from, to); err != nil {
		return nil, err
	}
	allowed, err := s.kernel.IncidentGuard.Allows(p.Role, from, to)
	if err != nil {
		return nil, err
	}
	if !allowed {
		s.metrics.RecordDecision(sm.DomainIncident, observability.OutcomeDenied)
		s.logger.Info("transition denied for role",
			zap.String("domain", sm.DomainIncident),
			zap.String("entity_id", incident.ID),
			zap.String("role", string(p.Role)),
			zap.String("from", string(from)),
			zap.String("to", string(to)),
		)
		return nil, apperrors.NewDomainError(apperrors.CodeForbidden, "role may not perform this transition", http.StatusForbidden,
			map[string]any{
				"role":          p.Role,
				"from":          from,
				"to":            to,
				"allowed_roles": s.kernel.IncidentGuard.RolesFor(from, to),
			})
	}

	now := s.now()
	switch to {
	case sm.IncidentEnAnalisis:
		if incident.AnalysisStartedAt == nil {
			incident.AnalysisStartedAt = &now
		}
		if incident.AssignedTo == nil {
			assignee := p.UserID
			incident.AssignedTo = &assignee
		}
	case sm.IncidentResuelta:
		if incident.RepairedAt == nil {
			incident.RepairedAt = &now
		}
	case sm.IncidentCerrada:
		incident.ClosedAt = &now
	case sm.IncidentReabierta:
		incident.ReopenCount++
		incident.ClosedAt = nil
		incident.RepairedAt = nil
	}
	incident.State = to

	if err := s.incidents.Update(ctx, incident, from); err != nil {
		return nil, s.staleWrite(err, sm.DomainIncident, incident.ID, string(from))
	}
	s.metrics.RecordDecision(sm.DomainIncident, observability.OutcomeAccepted)
	s.recordHistory(ctx, p, domain.EntityIncident, incident.TenantID, incident.ID, string(from), string(to), comment, now)
	s.publishEvent(ctx, events.New(events.EventIncidentStateChanged, incident.TenantID, incident.ID, incident.Code,
		actorOf(p), now, events.StateChangedPayload{
			Domain:   sm.DomainIncident,
			OldState: string(from),
			NewState: string(to),
			Comment:  comment,
		}))
	return incident, nil
}

// IncidentNextStates lists the states p may move the incident to.
func (s *WorkflowService) IncidentNextStates(ctx context.Context, p domain.Principal, id string) ([]sm.IncidentState, error) {
	if err := s.authorize(p, permission.P(permission.ResourceIncidencias, permission.ActionVer)); err != nil {
		return nil, err
	}
	incident, err := s.loadIncident(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if permission.IsReadOnlyRole(p.Role) {
		return []sm.IncidentState{}, nil
	}
	next, err := s.kernel.IncidentGuard.NextStatesFor(incident.State, p.Role)
	if err != nil {
		s.logUnknownState(sm.DomainIncident, incident.ID, string(incident.State))
		return nil, err
	}
	return next, nil
}

// IncidentSLA evaluates the attention and resolution windows of an incident
// at the current instant.
func (s *WorkflowService) IncidentSLA(ctx context.Context, p domain.Principal, id string) (*IncidentSLAStatus, error) {
	if err := s.authorize(p, permission.P(permission.ResourceIncidencias, permission.ActionVer)); err != nil {
		return nil, err
	}
	incident, err := s.loadIncident(ctx, p, id)
	if err != nil {
		return nil, err
	}
	return s.evaluateIncident(incident, s.now()), nil
}

func (s *WorkflowService) evaluateIncident(incident *domain.Incident, now time.Time) *IncidentSLAStatus {
	clock := s.kernel.Clock
	attentionEnd := now
	if incident.AnalysisStartedAt != nil {
		attentionEnd = *incident.AnalysisStartedAt
	}
	status := &IncidentSLAStatus{
		Incident:   incident,
		Attention:  clock.ComputeKind(incident.OpenedAt, attentionEnd, incident.Priority, sla.KindAttention),
		Resolution: clock.Compute(incident.OpenedAt, incident.ResolutionEnd(now), incident.Priority),
		Metrics:    clock.Metrics(incident.SLATimestamps(), incident.Priority),
	}
	status.Band = status.Resolution.Band()
	if status.Resolution.PriorityFallback {
		s.metrics.RecordPriorityFallback()
		s.logger.Warn("unknown priority, using default SLA tier",
			zap.String("incident_id", incident.ID),
			zap.String("priority", string(incident.Priority)),
			zap.String("fallback", string(status.Resolution.Priority)),
		)
	}
	return status
}

// ScanBreaches marks every open incident whose resolution window has run
// out and publishes one breach event per incident. It returns how many
// incidents were newly marked.
func (s *WorkflowService) ScanBreaches(ctx context.Context) (int, error) {
	var open []sm.IncidentState
	for _, st := range s.kernel.Incidents.States() {
		if st.IsOpen() {
			open = append(open, st)
		}
	}

	marked, offset := 0, 0
	for {
		if err := ctx.Err(); err != nil {
			return marked, err
		}
		page, err := s.incidents.List(ctx, repository.IncidentFilter{
			States:       open,
			OnlyUnbreach: true,
			Limit:        scanPageSize,
			Offset:       offset,
		})
		if err != nil {
			return marked, err
		}
		now := s.now()
		// Rows marked here or by a concurrent scan both leave the filter.
		markedInPage, alreadyMarked := 0, 0
		for i := range page {
			status := s.evaluateIncident(&page[i], now)
			if status.Resolution.WithinSLA {
				continue
			}
			ok, err := s.incidents.MarkBreached(ctx, page[i].ID, now)
			if err != nil {
				return marked, err
			}
			if !ok {
				alreadyMarked++
				continue
			}
			markedInPage++
			s.onBreach(ctx, &page[i], status.Resolution, now)
		}
		marked += markedInPage
		if len(page) < scanPageSize {
			return marked, nil
		}
		offset += len(page) - markedInPage - alreadyMarked
	}
}

func (s *WorkflowService) onBreach(ctx context.Context, incident *domain.Incident, w sla.Window, now time.Time) {
	s.metrics.RecordBreach(string(w.Priority))
	s.logger.Warn("sla breached",
		zap.String("incident_id", incident.ID),
		zap.String("code", incident.Code),
		zap.String("tenant_id", incident.TenantID),
		zap.String("priority", string(w.Priority)),
		zap.Int("elapsed_minutes", w.ElapsedMinutes),
		zap.Int("target_minutes", w.TargetMinutes),
	)
	s.publishEvent(ctx, events.New(events.EventSLABreached, incident.TenantID, incident.ID, incident.Code,
		events.Actor{}, now, events.SLABreachedPayload{
			Priority:       w.Priority,
			TargetMinutes:  w.TargetMinutes,
			ElapsedMinutes: w.ElapsedMinutes,
			PercentageUsed: w.PercentageUsed,
			Deadline:       w.Deadline,
		}))
}

func (s *WorkflowService) loadIncident(ctx context.Context, p domain.Principal, id string) (*domain.Incident, error) {
	incident, err := s.incidents.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.CanSeeTenant(incident.TenantID) {
		return nil, apperrors.NewNotFound("incident", map[string]any{"id": id})
	}
	return incident, nil
}

// authorize checks that p's role holds every permission.
func (s *WorkflowService) authorize(p domain.Principal, required ...permission.Permission) error {
	if missing := s.kernel.Permissions.FirstMissing(p.Role, required...); missing != nil {
		return apperrors.NewPermissionDenied(p.Role, *missing)
	}
	return nil
}

func (s *WorkflowService) authorizeWrite(p domain.Principal, required ...permission.Permission) error {
	if permission.IsReadOnlyRole(p.Role) {
		return apperrors.NewForbidden("role is read-only")
	}
	return s.authorize(p, required...)
}

func (s *WorkflowService) targetTenant(p domain.Principal, requested string) (string, error) {
	if requested == "" || requested == p.TenantID {
		return p.TenantID, nil
	}
	if !permission.CanAccessAllTenants(p.Role) {
		return "", apperrors.NewForbidden("cannot act on another tenant")
	}
	return requested, nil
}

// decide validates from -> to on m, logging and counting rejections. Unknown
// current states are data defects and logged at error level.
func decide[S ~string](s *WorkflowService, m *sm.Machine[S], entityID string, from, to S) error {
	err := m.Validate(from, to)
	if err == nil {
		return nil
	}
	s.metrics.RecordDecision(m.Domain(), observability.OutcomeRejected)
	if errors.Is(err, sm.ErrUnknownState) {
		s.logUnknownState(m.Domain(), entityID, string(from))
		return err
	}
	s.logger.Info("transition rejected",
		zap.String("domain", m.Domain()),
		zap.String("entity_id", entityID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)
	return err
}

// staleWrite maps a guarded update that lost a race to CONFLICT; the caller
// must reload and decide again.
func (s *WorkflowService) staleWrite(err error, domainName, entityID, from string) error {
	if !errors.Is(err, repository.ErrStateChanged) {
		return err
	}
	s.logger.Info("stale state on write",
		zap.String("domain", domainName),
		zap.String("entity_id", entityID),
		zap.String("expected", from),
	)
	return apperrors.NewConflict("state changed since it was read", map[string]any{
		"domain":         domainName,
		"entity_id":      entityID,
		"expected_state": from,
	})
}

func (s *WorkflowService) logUnknownState(domainName, entityID, state string) {
	s.logger.Error("entity in unknown state",
		zap.String("domain", domainName),
		zap.String("entity_id", entityID),
		zap.String("state", state),
	)
}

func (s *WorkflowService) recordHistory(ctx context.Context, p domain.Principal, kind, tenantID, entityID, from, to, comment string, at time.Time) {
	if s.history == nil {
		return
	}
	change := &domain.StateChange{
		TenantID:   tenantID,
		EntityKind: kind,
		EntityID:   entityID,
		FromState:  from,
		ToState:    to,
		ChangedBy:  p.UserID,
		Comment:    comment,
		ChangedAt:  at,
	}
	if err := s.history.Create(ctx, change); err != nil {
		s.logger.Error("record state history", zap.Error(err),
			zap.String("entity_kind", kind), zap.String("entity_id", entityID))
	}
}

func (s *WorkflowService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.Error(err), zap.String("event_type", string(event.Type)))
	}
}

func actorOf(p domain.Principal) events.Actor {
	return events.Actor{UserID: p.UserID, Role: p.Role}
}
