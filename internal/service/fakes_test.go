package service

import (
	"context"
	"time"

	"github.com/spec-kit/fleet-maintenance/internal/domain"
	"github.com/spec-kit/fleet-maintenance/internal/events"
	"github.com/spec-kit/fleet-maintenance/internal/repository/memory"
)

type recordingDispatcher struct {
	events []events.Event
}

func (d *recordingDispatcher) Publish(_ context.Context, e events.Event) error {
	d.events = append(d.events, e)
	return nil
}

func (d *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *recordingDispatcher) ofType(t events.EventType) []events.Event {
	var out []events.Event
	for _, e := range d.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// racingIncidents stands in for a second writer on the memory store.
// GetByID serves snapshots taken before the other writer committed, and
// MarkBreached loses the race for the ids in markedElsewhere.
type racingIncidents struct {
	*memory.Incidents
	snapshots       map[string]domain.Incident
	markedElsewhere map[string]bool
}

func (r *racingIncidents) GetByID(ctx context.Context, id string) (*domain.Incident, error) {
	if snap, ok := r.snapshots[id]; ok {
		return &snap, nil
	}
	return r.Incidents.GetByID(ctx, id)
}

func (r *racingIncidents) MarkBreached(ctx context.Context, id string, at time.Time) (bool, error) {
	if r.markedElsewhere[id] {
		if _, err := r.Incidents.MarkBreached(ctx, id, at); err != nil {
			return false, err
		}
		return false, nil
	}
	return r.Incidents.MarkBreached(ctx, id, at)
}
