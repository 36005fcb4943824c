// Package calendar models a non-24/7 business calendar: the weekdays that
// count as working days, a daily opening window and an optional table of
// excluded dates. All computations are pure; callers pass every instant in.
package calendar

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidConfig marks a calendar definition that cannot be used.
var ErrInvalidConfig = errors.New("invalid calendar config")

// ErrNoWorkingTime is returned when a computation needs working time but the
// calendar defines no working days at all.
var ErrNoWorkingTime = errors.New("calendar has no working time")

// ErrTooManyMinutes is returned by AddWorkingMinutes above MaxAddMinutes.
var ErrTooManyMinutes = errors.New("working minutes out of range")

const minutesPerDay = 24 * 60

// MaxAddMinutes caps AddWorkingMinutes at ten years of round-the-clock time.
const MaxAddMinutes = 10 * 366 * minutesPerDay

// TimeOfDay is a wall-clock time expressed in minutes since midnight.
type TimeOfDay int

// ParseTimeOfDay parses "HH:MM". "24:00" is accepted as end of day.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("%w: time of day %q must be HH:MM", ErrInvalidConfig, s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, fmt.Errorf("%w: hour in %q", ErrInvalidConfig, s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("%w: minute in %q", ErrInvalidConfig, s)
	}
	t := TimeOfDay(h*60 + m)
	if h < 0 || t > minutesPerDay {
		return 0, fmt.Errorf("%w: %q out of range", ErrInvalidConfig, s)
	}
	return t, nil
}

// MustTimeOfDay is ParseTimeOfDay for constants.
func MustTimeOfDay(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// Config is the declarative definition of a calendar.
type Config struct {
	WorkingDays []time.Weekday
	Start       TimeOfDay
	End         TimeOfDay
	// Holidays are compared by calendar date in Location; the clock part is ignored.
	Holidays []time.Time
	// Location defaults to UTC.
	Location *time.Location
}

type date struct {
	year  int
	month time.Month
	day   int
}

func dateOf(t time.Time) date {
	y, m, d := t.Date()
	return date{year: y, month: m, day: d}
}

// Calendar is an immutable, validated business calendar. It is safe for
// concurrent use.
type Calendar struct {
	days     [7]bool
	start    TimeOfDay
	end      TimeOfDay
	holidays map[date]struct{}
	loc      *time.Location
}

// New validates cfg and builds a Calendar.
func New(cfg Config) (*Calendar, error) {
	if cfg.Start < 0 || cfg.End > minutesPerDay {
		return nil, fmt.Errorf("%w: working window %s-%s out of range", ErrInvalidConfig, cfg.Start, cfg.End)
	}
	if cfg.Start >= cfg.End {
		return nil, fmt.Errorf("%w: start %s must be before end %s", ErrInvalidConfig, cfg.Start, cfg.End)
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	c := &Calendar{
		start:    cfg.Start,
		end:      cfg.End,
		holidays: make(map[date]struct{}, len(cfg.Holidays)),
		loc:      loc,
	}
	for _, wd := range cfg.WorkingDays {
		if wd < time.Sunday || wd > time.Saturday {
			return nil, fmt.Errorf("%w: weekday %d", ErrInvalidConfig, wd)
		}
		c.days[wd] = true
	}
	for _, h := range cfg.Holidays {
		c.holidays[dateOf(h.In(loc))] = struct{}{}
	}
	return c, nil
}

// Default is Monday to Friday, 08:00 to 20:00 UTC, no holidays.
func Default() *Calendar {
	c, err := New(Config{
		WorkingDays: []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
		Start:       MustTimeOfDay("08:00"),
		End:         MustTimeOfDay("20:00"),
	})
	if err != nil {
		panic(err)
	}
	return c
}

// Location returns the zone wall-clock rules are evaluated in.
func (c *Calendar) Location() *time.Location { return c.loc }

// Window returns the daily start and end of working time.
func (c *Calendar) Window() (TimeOfDay, TimeOfDay) { return c.start, c.end }

// WorkingDays lists the configured working weekdays in order.
func (c *Calendar) WorkingDays() []time.Weekday {
	out := make([]time.Weekday, 0, 7)
	for wd, ok := range c.days {
		if ok {
			out = append(out, time.Weekday(wd))
		}
	}
	return out
}

// Holidays lists excluded dates, sorted, at midnight in the calendar zone.
func (c *Calendar) Holidays() []time.Time {
	out := make([]time.Time, 0, len(c.holidays))
	for d := range c.holidays {
		out = append(out, time.Date(d.year, d.month, d.day, 0, 0, 0, 0, c.loc))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// MinutesPerDay is the length of one working day.
func (c *Calendar) MinutesPerDay() int { return int(c.end - c.start) }

// HasWorkingTime reports whether at least one weekday is a working day.
func (c *Calendar) HasWorkingTime() bool {
	for _, ok := range c.days {
		if ok {
			return true
		}
	}
	return false
}

// IsWorkingDay reports whether the date of t (in the calendar zone) is a
// working weekday and not an excluded date.
func (c *Calendar) IsWorkingDay(t time.Time) bool {
	t = t.In(c.loc)
	if !c.days[t.Weekday()] {
		return false
	}
	_, excluded := c.holidays[dateOf(t)]
	return !excluded
}

// InWorkingHours reports whether t falls inside [start, end) of a working day.
func (c *Calendar) InWorkingHours(t time.Time) bool {
	if !c.IsWorkingDay(t) {
		return false
	}
	tod := timeOfDay(t.In(c.loc))
	return tod >= c.start && tod < c.end
}

// WorkingMinutesBetween counts whole working minutes in [start, end). Seconds
// are dropped from both ends, so the count is additive over any split point.
// The result is 0 when end is not after start.
func (c *Calendar) WorkingMinutesBetween(start, end time.Time) int {
	start = start.Truncate(time.Minute).In(c.loc)
	end = end.Truncate(time.Minute).In(c.loc)
	if !end.After(start) {
		return 0
	}

	total := 0
	for day := midnight(start); day.Before(end); day = nextMidnight(day) {
		if !c.IsWorkingDay(day) {
			continue
		}
		open := at(day, c.start)
		closing := at(day, c.end)
		from := latest(open, start)
		to := earliest(closing, end)
		if to.After(from) {
			total += int(to.Sub(from) / time.Minute)
		}
	}
	return total
}

// NextWorkingInstant returns t unchanged when it is inside working hours,
// otherwise the start of the next working window. A calendar without working
// days returns t unchanged.
func (c *Calendar) NextWorkingInstant(t time.Time) time.Time {
	if !c.HasWorkingTime() {
		return t
	}
	cur := t.In(c.loc)
	for {
		if c.IsWorkingDay(cur) {
			tod := timeOfDay(cur)
			if tod < c.start {
				return at(cur, c.start)
			}
			if tod < c.end {
				return cur
			}
		}
		cur = nextMidnight(midnight(cur))
	}
}

// AddWorkingMinutes returns the instant at which minutes of working time have
// elapsed after start. The clock starts at NextWorkingInstant(start).
func (c *Calendar) AddWorkingMinutes(start time.Time, minutes int) (time.Time, error) {
	if !c.HasWorkingTime() {
		return time.Time{}, ErrNoWorkingTime
	}
	if minutes > MaxAddMinutes {
		return time.Time{}, fmt.Errorf("%w: %d exceeds %d", ErrTooManyMinutes, minutes, MaxAddMinutes)
	}
	perWeek := c.MinutesPerDay() * len(c.WorkingDays())
	cur := c.NextWorkingInstant(start.Truncate(time.Minute))
	remaining := minutes
	for {
		available := int(at(cur, c.end).Sub(cur) / time.Minute)
		if remaining <= available {
			return cur.Add(time.Duration(remaining) * time.Minute), nil
		}
		remaining -= available
		next := nextMidnight(midnight(cur))
		if weeks := (remaining - 1) / perWeek; weeks > 0 {
			next, remaining = c.skipWeeks(next, weeks, remaining)
		}
		cur = c.NextWorkingInstant(next)
	}
}

// skipWeeks advances day (a midnight) by whole weeks while they hold fewer
// than remaining working minutes, halving the jump when they would not.
func (c *Calendar) skipWeeks(day time.Time, weeks, remaining int) (time.Time, int) {
	for ; weeks > 0; weeks /= 2 {
		end := day.AddDate(0, 0, 7*weeks)
		if used := c.weeksMinutes(day, end, weeks); used < remaining {
			return end, remaining - used
		}
	}
	return day, remaining
}

// weeksMinutes counts the working minutes of the whole weeks in [from, to)
// without visiting every day. Excluded dates and days whose offset changes
// inside the window are corrected from the nominal total.
func (c *Calendar) weeksMinutes(from, to time.Time, weeks int) int {
	daily := c.MinutesPerDay()
	total := weeks * daily * len(c.WorkingDays())
	for d := range c.holidays {
		day := time.Date(d.year, d.month, d.day, 0, 0, 0, 0, c.loc)
		if c.days[day.Weekday()] && !day.Before(from) && day.Before(to) {
			total -= daily
		}
	}

	var last date
	for t := from; ; {
		_, change := t.ZoneBounds()
		if change.IsZero() || !change.Before(to) {
			return total
		}
		if d := dateOf(change); d != last && c.IsWorkingDay(change) {
			day := midnight(change)
			total += int(at(day, c.end).Sub(at(day, c.start))/time.Minute) - daily
			last = d
		}
		t = change
	}
}

func timeOfDay(t time.Time) TimeOfDay {
	return TimeOfDay(t.Hour()*60 + t.Minute())
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func nextMidnight(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, day.Location())
}

func at(day time.Time, tod TimeOfDay) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, int(tod)/60, int(tod)%60, 0, 0, day.Location())
}

func latest(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func earliest(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
