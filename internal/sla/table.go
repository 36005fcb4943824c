package sla

import (
	"errors"
	"fmt"
	"sort"
)

// ErrInvalidTarget marks an SLA table entry with a non-positive target.
var ErrInvalidTarget = errors.New("invalid sla target")

// ErrUnknownFallback is returned when the fallback priority has no entry.
var ErrUnknownFallback = errors.New("fallback priority not in sla table")

// Priority is the severity tier an incident is opened with.
type Priority string

const (
	PriorityCritica Priority = "critica"
	PriorityAlta    Priority = "alta"
	PriorityMedia   Priority = "media"
	PriorityBaja    Priority = "baja"
	// PriorityNormal is the non-critical tier of two-level contracts.
	PriorityNormal Priority = "normal"
)

// Targets holds the working-minute budgets for one priority.
type Targets struct {
	// AttentionMinutes is the budget until analysis starts.
	AttentionMinutes int `json:"attention_minutes" yaml:"attention"`
	// ResolutionMinutes is the budget until the repair is finished.
	ResolutionMinutes int `json:"resolution_minutes" yaml:"resolution"`
}

// Table maps priorities to targets. Lookups of unknown priorities resolve to
// the fallback tier. A Table is immutable once built.
type Table struct {
	targets  map[Priority]Targets
	fallback Priority
}

// NewTable validates every target and the fallback tier.
func NewTable(targets map[Priority]Targets, fallback Priority) (*Table, error) {
	t := &Table{targets: make(map[Priority]Targets, len(targets)), fallback: fallback}
	for p, tg := range targets {
		if tg.AttentionMinutes <= 0 || tg.ResolutionMinutes <= 0 {
			return nil, fmt.Errorf("%w: priority %q has attention=%d resolution=%d",
				ErrInvalidTarget, p, tg.AttentionMinutes, tg.ResolutionMinutes)
		}
		t.targets[p] = tg
	}
	if _, ok := t.targets[fallback]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFallback, fallback)
	}
	return t, nil
}

// DefaultTargets are the contractual defaults used when no policy file is given.
func DefaultTargets() map[Priority]Targets {
	return map[Priority]Targets{
		PriorityCritica: {AttentionMinutes: 30, ResolutionMinutes: 240},
		PriorityAlta:    {AttentionMinutes: 60, ResolutionMinutes: 480},
		PriorityMedia:   {AttentionMinutes: 120, ResolutionMinutes: 1440},
		PriorityBaja:    {AttentionMinutes: 240, ResolutionMinutes: 2880},
		PriorityNormal:  {AttentionMinutes: 120, ResolutionMinutes: 1440},
	}
}

// DefaultTable builds the default targets with media as fallback.
func DefaultTable() *Table {
	t, err := NewTable(DefaultTargets(), PriorityMedia)
	if err != nil {
		panic(err)
	}
	return t
}

// Lookup returns the targets for p. When p is not in the table the fallback
// tier is returned, resolved names that tier and fallback is true.
func (t *Table) Lookup(p Priority) (targets Targets, resolved Priority, fallback bool) {
	if tg, ok := t.targets[p]; ok {
		return tg, p, false
	}
	return t.targets[t.fallback], t.fallback, true
}

// Fallback is the tier unknown priorities resolve to.
func (t *Table) Fallback() Priority { return t.fallback }

// Priorities lists configured priorities in name order.
func (t *Table) Priorities() []Priority {
	out := make([]Priority, 0, len(t.targets))
	for p := range t.targets {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
