// Package sla computes deadlines and breach status for incidents from the
// working time elapsed on a business calendar.
package sla

import (
	"fmt"
	"time"

	"github.com/spec-kit/fleet-maintenance/internal/calendar"
)

// Kind selects which target of a priority a computation uses.
type Kind string

const (
	KindAttention  Kind = "attention"
	KindResolution Kind = "resolution"
)

// Window is the SLA status of one entity at one instant.
type Window struct {
	Priority         Priority  `json:"priority"`
	PriorityFallback bool      `json:"priority_fallback"`
	TargetMinutes    int       `json:"target_minutes"`
	Deadline         time.Time `json:"deadline"`
	ElapsedMinutes   int       `json:"elapsed_minutes"`
	RemainingMinutes int       `json:"remaining_minutes"`
	WithinSLA        bool      `json:"within_sla"`
	PercentageUsed   int       `json:"percentage_used"`
}

// Band classifies a Window for display.
func (w Window) Band() Band { return BandFor(w.PercentageUsed) }

// Clock evaluates SLA windows against a calendar and a target table.
type Clock struct {
	cal   *calendar.Calendar
	table *Table
}

// NewClock binds a calendar and a table.
func NewClock(cal *calendar.Calendar, table *Table) *Clock {
	return &Clock{cal: cal, table: table}
}

// Calendar returns the calendar the clock counts working time on.
func (c *Clock) Calendar() *calendar.Calendar { return c.cal }

// Table returns the target table.
func (c *Clock) Table() *Table { return c.table }

// Compute evaluates the resolution SLA of an entity opened at start. end is
// the resolution instant, or the caller's "now" while unresolved.
func (c *Clock) Compute(start, end time.Time, p Priority) Window {
	return c.ComputeKind(start, end, p, KindResolution)
}

// ComputeKind is Compute for an explicit target kind.
func (c *Clock) ComputeKind(start, end time.Time, p Priority, kind Kind) Window {
	targets, resolved, fallback := c.table.Lookup(p)
	target := targets.ResolutionMinutes
	if kind == KindAttention {
		target = targets.AttentionMinutes
	}
	elapsed := c.cal.WorkingMinutesBetween(start, end)

	w := Window{
		Priority:         resolved,
		PriorityFallback: fallback,
		TargetMinutes:    target,
		ElapsedMinutes:   elapsed,
		RemainingMinutes: target - elapsed,
		WithinSLA:        elapsed <= target,
		PercentageUsed:   percentage(elapsed, target),
	}
	if deadline, err := c.cal.AddWorkingMinutes(start, target); err == nil {
		w.Deadline = deadline
	}
	return w
}

// Deadline returns the instant the chosen target of p expires for an entity
// opened at start.
func (c *Clock) Deadline(start time.Time, p Priority, kind Kind) (time.Time, error) {
	targets, _, _ := c.table.Lookup(p)
	target := targets.ResolutionMinutes
	if kind == KindAttention {
		target = targets.AttentionMinutes
	}
	deadline, err := c.cal.AddWorkingMinutes(start, target)
	if err != nil {
		return time.Time{}, fmt.Errorf("deadline for %s: %w", p, err)
	}
	return deadline, nil
}

// percentage rounds half up; target is always positive for a validated table.
func percentage(elapsed, target int) int {
	if target <= 0 {
		return 0
	}
	return (200*elapsed + target) / (2 * target)
}
