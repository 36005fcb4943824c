package sla

import (
	"fmt"
	"time"
)

// Timestamps are the milestones of an incident relevant to its SLA.
type Timestamps struct {
	Opened          time.Time
	AnalysisStarted *time.Time
	Repaired        *time.Time
}

// Metrics is the attention/resolution summary of one incident. Nil minutes
// mean the milestone has not happened yet.
type Metrics struct {
	Priority          Priority `json:"priority"`
	PriorityFallback  bool     `json:"priority_fallback"`
	AttentionMinutes  *int     `json:"attention_minutes"`
	ResolutionMinutes *int     `json:"resolution_minutes"`
	WithinAttention   bool     `json:"within_attention"`
	WithinResolution  bool     `json:"within_resolution"`
	// MeetsSLA holds only when both milestones happened inside their targets.
	MeetsSLA bool `json:"meets_sla"`
}

// Metrics measures the attention and resolution times recorded in ts.
func (c *Clock) Metrics(ts Timestamps, p Priority) Metrics {
	targets, resolved, fallback := c.table.Lookup(p)
	m := Metrics{Priority: resolved, PriorityFallback: fallback}

	if ts.AnalysisStarted != nil {
		v := c.cal.WorkingMinutesBetween(ts.Opened, *ts.AnalysisStarted)
		m.AttentionMinutes = &v
		m.WithinAttention = v <= targets.AttentionMinutes
	}
	if ts.Repaired != nil {
		v := c.cal.WorkingMinutesBetween(ts.Opened, *ts.Repaired)
		m.ResolutionMinutes = &v
		m.WithinResolution = v <= targets.ResolutionMinutes
	}
	m.MeetsSLA = m.WithinAttention && m.WithinResolution
	return m
}

// StateChange is one entry of an entity's chronological state history.
type StateChange struct {
	State string    `json:"state"`
	At    time.Time `json:"at"`
}

// DefaultNonOperational are the asset states that count as out of service.
var DefaultNonOperational = []string{"en_taller", "averiado"}

// OutOfServiceMinutes sums the working minutes spent in any of the
// nonOperational states. history must be in chronological order; a period
// still open at the end of history is counted up to now.
func (c *Clock) OutOfServiceMinutes(history []StateChange, nonOperational []string, now time.Time) int {
	down := make(map[string]struct{}, len(nonOperational))
	for _, s := range nonOperational {
		down[s] = struct{}{}
	}

	total := 0
	var since *time.Time
	for i := range history {
		_, isDown := down[history[i].State]
		switch {
		case isDown && since == nil:
			since = &history[i].At
		case !isDown && since != nil:
			total += c.cal.WorkingMinutesBetween(*since, history[i].At)
			since = nil
		}
	}
	if since != nil {
		total += c.cal.WorkingMinutesBetween(*since, now)
	}
	return total
}

// Band is a coarse urgency grade derived from the percentage of target used.
type Band string

const (
	BandOK       Band = "ok"
	BandWarning  Band = "warning"
	BandCritical Band = "critical"
)

// BandFor grades a percentage: ok up to 50, warning up to 80, critical above.
func BandFor(percentageUsed int) Band {
	switch {
	case percentageUsed <= 50:
		return BandOK
	case percentageUsed <= 80:
		return BandWarning
	default:
		return BandCritical
	}
}

// FormatMinutes renders a working-minute amount as "45m", "2h 30m" or
// "1d 1h". Days are 24h; negative amounts keep their sign.
func FormatMinutes(minutes int) string {
	sign := ""
	if minutes < 0 {
		sign = "-"
		minutes = -minutes
	}
	switch {
	case minutes < 60:
		return fmt.Sprintf("%s%dm", sign, minutes)
	case minutes < 24*60:
		h, m := minutes/60, minutes%60
		if m == 0 {
			return fmt.Sprintf("%s%dh", sign, h)
		}
		return fmt.Sprintf("%s%dh %dm", sign, h, m)
	default:
		d, h := minutes/(24*60), (minutes%(24*60))/60
		if h == 0 {
			return fmt.Sprintf("%s%dd", sign, d)
		}
		return fmt.Sprintf("%s%dd %dh", sign, d, h)
	}
}
