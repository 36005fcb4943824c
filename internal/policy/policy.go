// Package policy loads the static kernel configuration (business calendar,
// SLA targets, optional permission overrides) and assembles the kernel from
// it. Configuration is read once at startup and never mutated afterwards.
package policy

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/spec-kit/fleet-maintenance/internal/calendar"
	"github.com/spec-kit/fleet-maintenance/internal/permission"
	"github.com/spec-kit/fleet-maintenance/internal/sla"
)

// ErrInvalidPolicy wraps every validation failure of a policy file.
var ErrInvalidPolicy = errors.New("invalid policy")

// File is the YAML policy document.
type File struct {
	Timezone string          `yaml:"timezone"`
	Calendar CalendarSection `yaml:"calendar"`
	SLA      SLASection      `yaml:"sla"`
	// Permissions replaces the built-in role matrix when set.
	Permissions map[permission.Role][]permission.Permission `yaml:"permissions,omitempty"`
	// Routes replaces the built-in route table when set.
	Routes map[string][]permission.Permission `yaml:"routes,omitempty"`
}

type CalendarSection struct {
	WorkingDays []string `yaml:"working_days"`
	Start       string   `yaml:"start"`
	End         string   `yaml:"end"`
	// Holidays are YYYY-MM-DD dates.
	Holidays []string `yaml:"holidays"`
}

type SLASection struct {
	DefaultPriority sla.Priority                 `yaml:"default_priority"`
	Targets         map[sla.Priority]sla.Targets `yaml:"targets"`
}

// Default mirrors the built-in configuration.
func Default() *File {
	return &File{
		Timezone: "UTC",
		Calendar: CalendarSection{
			WorkingDays: []string{"monday", "tuesday", "wednesday", "thursday", "friday"},
			Start:       "08:00",
			End:         "20:00",
		},
		SLA: SLASection{
			DefaultPriority: sla.PriorityMedia,
			Targets:         sla.DefaultTargets(),
		},
	}
}

// Load reads and parses a policy file. Sections left out of the file keep
// their defaults.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a policy document on top of Default.
func Parse(data []byte) (*File, error) {
	f := Default()
	f.SLA.Targets = nil
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("parse policy file: %w", err)
	}
	if f.SLA.Targets == nil {
		f.SLA.Targets = sla.DefaultTargets()
	}
	return f, nil
}

// Location resolves the configured timezone.
func (f *File) Location() (*time.Location, error) {
	if f.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(f.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q: %v", ErrInvalidPolicy, f.Timezone, err)
	}
	return loc, nil
}

// CalendarConfig converts the calendar section.
func (f *File) CalendarConfig() (calendar.Config, error) {
	loc, err := f.Location()
	if err != nil {
		return calendar.Config{}, err
	}
	cfg := calendar.Config{Location: loc}
	for _, d := range f.Calendar.WorkingDays {
		wd, err := parseWeekday(d)
		if err != nil {
			return calendar.Config{}, err
		}
		cfg.WorkingDays = append(cfg.WorkingDays, wd)
	}
	if cfg.Start, err = calendar.ParseTimeOfDay(f.Calendar.Start); err != nil {
		return calendar.Config{}, fmt.Errorf("%w: calendar.start: %w", ErrInvalidPolicy, err)
	}
	if cfg.End, err = calendar.ParseTimeOfDay(f.Calendar.End); err != nil {
		return calendar.Config{}, fmt.Errorf("%w: calendar.end: %w", ErrInvalidPolicy, err)
	}
	for _, h := range f.Calendar.Holidays {
		day, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(h), loc)
		if err != nil {
			return calendar.Config{}, fmt.Errorf("%w: holiday %q: want YYYY-MM-DD", ErrInvalidPolicy, h)
		}
		cfg.Holidays = append(cfg.Holidays, day)
	}
	return cfg, nil
}

var weekdayNames = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday, "domingo": time.Sunday,
	"monday": time.Monday, "mon": time.Monday, "lunes": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday, "martes": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday, "miercoles": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday, "jueves": time.Thursday,
	"friday": time.Friday, "fri": time.Friday, "viernes": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday, "sabado": time.Saturday,
}

// parseWeekday accepts English or Spanish names, short English names and
// 0 (Sunday) to 6 (Saturday).
func parseWeekday(s string) (time.Weekday, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if wd, ok := weekdayNames[key]; ok {
		return wd, nil
	}
	if n, err := strconv.Atoi(key); err == nil && n >= 0 && n <= 6 {
		return time.Weekday(n), nil
	}
	return 0, fmt.Errorf("%w: unknown weekday %q", ErrInvalidPolicy, s)
}
