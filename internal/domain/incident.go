package domain

import (
	"time"

	"github.com/spec-kit/fleet-maintenance/internal/sla"
	"github.com/spec-kit/fleet-maintenance/internal/statemachine"
)

// Incident is a reported fault on a fleet asset.
type Incident struct {
	ID          string
	TenantID    string
	Code        string
	AssetID     *string
	Title       string
	Description string
	Priority    sla.Priority
	State       statemachine.IncidentState
	ReportedBy  string
	AssignedTo  *string
	OpenedAt    time.Time
	// AnalysisStartedAt is the attention milestone.
	AnalysisStartedAt *time.Time
	// RepairedAt is the resolution milestone.
	RepairedAt  *time.Time
	ClosedAt    *time.Time
	ReopenCount int
	// SLABreachedAt is set once, the first time a breach is detected.
	SLABreachedAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ResolutionEnd is the instant the resolution clock stops, or now while the
// incident is unresolved.
func (i *Incident) ResolutionEnd(now time.Time) time.Time {
	if i.RepairedAt != nil {
		return *i.RepairedAt
	}
	return now
}

// SLATimestamps exposes the milestones the SLA clock measures.
func (i *Incident) SLATimestamps() sla.Timestamps {
	return sla.Timestamps{
		Opened:          i.OpenedAt,
		AnalysisStarted: i.AnalysisStartedAt,
		Repaired:        i.RepairedAt,
	}
}
