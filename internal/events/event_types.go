package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/fleet-maintenance/internal/permission"
	"github.com/spec-kit/fleet-maintenance/internal/sla"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventIncidentCreated       EventType = "incident_created"
	EventIncidentStateChanged  EventType = "incident_state_changed"
	EventIncidentAssigned      EventType = "incident_assigned"
	EventInventoryStateChanged EventType = "inventory_state_changed"
	EventInventoryMoved        EventType = "inventory_moved"
	EventAssetStateChanged     EventType = "asset_state_changed"
	EventSLABreached           EventType = "sla_breached"
)

// AllTypes lists every event type, for subscribers that want everything.
func AllTypes() []EventType {
	return []EventType{
		EventIncidentCreated,
		EventIncidentStateChanged,
		EventIncidentAssigned,
		EventInventoryStateChanged,
		EventInventoryMoved,
		EventAssetStateChanged,
		EventSLABreached,
	}
}

// Known reports whether t is one of AllTypes.
func (t EventType) Known() bool {
	for _, k := range AllTypes() {
		if k == t {
			return true
		}
	}
	return false
}

// Actor identifies who caused an event. System events have an empty UserID.
type Actor struct {
	UserID string          `json:"user_id,omitempty"`
	Role   permission.Role `json:"role,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	TenantID   string    `json:"tenant_id"`
	EntityID   string    `json:"entity_id"`
	EntityCode string    `json:"entity_code,omitempty"`
	Actor      Actor     `json:"actor"`
	Timestamp  time.Time `json:"timestamp"`
	Payload    any       `json:"payload"`
}

// New builds an event with a fresh id.
func New(t EventType, tenantID, entityID, code string, actor Actor, at time.Time, payload any) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       t,
		TenantID:   tenantID,
		EntityID:   entityID,
		EntityCode: code,
		Actor:      actor,
		Timestamp:  at,
		Payload:    payload,
	}
}

// IncidentCreatedPayload payload.
type IncidentCreatedPayload struct {
	Priority         sla.Priority `json:"priority"`
	PriorityFallback bool         `json:"priority_fallback"`
	Title            string       `json:"title"`
	AssetID          *string      `json:"asset_id,omitempty"`
}

// StateChangedPayload is shared by the three state-change events.
type StateChangedPayload struct {
	Domain   string `json:"domain"`
	OldState string `json:"old_state"`
	NewState string `json:"new_state"`
	Comment  string `json:"comment,omitempty"`
}

// IncidentAssignedPayload records an assignee change. OldAssignee is nil on
// first assignment.
type IncidentAssignedPayload struct {
	OldAssignee *string `json:"old_assignee"`
	NewAssignee string  `json:"new_assignee"`
	Self        bool    `json:"self"`
}

// InventoryMovedPayload payload.
type InventoryMovedPayload struct {
	Destination string `json:"destination"`
	Reference   string `json:"reference,omitempty"`
	OldState    string `json:"old_state"`
	NewState    string `json:"new_state"`
}

// SLABreachedPayload payload.
type SLABreachedPayload struct {
	Priority       sla.Priority `json:"priority"`
	TargetMinutes  int          `json:"target_minutes"`
	ElapsedMinutes int          `json:"elapsed_minutes"`
	PercentageUsed int          `json:"percentage_used"`
	Deadline       time.Time    `json:"deadline"`
}
