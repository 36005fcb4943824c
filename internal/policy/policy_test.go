package policy

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/fleet-maintenance/internal/calendar"
	"github.com/spec-kit/fleet-maintenance/internal/permission"
	"github.com/spec-kit/fleet-maintenance/internal/sla"
)

const sample = `
timezone: UTC
calendar:
  working_days: [lunes, martes, miercoles, jueves, viernes]
  start: "08:00"
  end: "17:00"
  holidays: ["2026-01-06", "2026-12-25"]
sla:
  default_priority: normal
  targets:
    critica: {attention: 30, resolution: 240}
    normal: {attention: 120, resolution: 1440}
`

func TestParse(t *testing.T) {
	f, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, "08:00", f.Calendar.Start)
	assert.Equal(t, sla.PriorityNormal, f.SLA.DefaultPriority)
	assert.Len(t, f.SLA.Targets, 2, "targets replace the defaults instead of merging")

	k, err := Build(f)
	require.NoError(t, err)

	assert.Equal(t, 540, k.Calendar.MinutesPerDay())
	assert.Len(t, k.Calendar.Holidays(), 2)
	assert.Equal(t, sla.PriorityNormal, k.Clock.Table().Fallback())

	opened := time.Date(2026, 1, 30, 16, 30, 0, 0, time.UTC)
	resolved := time.Date(2026, 2, 2, 9, 0, 0, 0, time.UTC)
	w := k.Clock.Compute(opened, resolved, sla.PriorityCritica)
	assert.Equal(t, 90, w.ElapsedMinutes)
	assert.True(t, w.WithinSLA)

	w = k.Clock.Compute(opened, resolved, sla.PriorityAlta)
	assert.True(t, w.PriorityFallback)
	assert.Equal(t, sla.PriorityNormal, w.Priority)
}

func TestParse_KeepsDefaultsForMissingSections(t *testing.T) {
	f, err := Parse([]byte("timezone: UTC\n"))
	require.NoError(t, err)

	k, err := Build(f)
	require.NoError(t, err)
	start, end := k.Calendar.Window()
	assert.Equal(t, "08:00", start.String())
	assert.Equal(t, "20:00", end.String())
	assert.Len(t, k.Clock.Table().Priorities(), 5)
}

func TestBuild_RejectsInvalidPolicies(t *testing.T) {
	tests := map[string]string{
		"start after end":  "calendar: {start: '18:00', end: '08:00'}",
		"malformed time":   "calendar: {start: '8am'}",
		"unknown weekday":  "calendar: {working_days: [funday]}",
		"bad holiday":      "calendar: {holidays: ['06/01/2026']}",
		"zero target":      "sla: {targets: {critica: {attention: 30, resolution: 0}}, default_priority: critica}",
		"missing fallback": "sla: {targets: {critica: {attention: 30, resolution: 240}}}",
		"unknown timezone": "timezone: Mars/Olympus",
		"unknown route":    "routes: {/x: ['naves:ver']}",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			f, err := Parse([]byte(doc))
			if err != nil {
				return
			}
			_, err = Build(f)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidPolicy)
		})
	}
}

func TestBuild_ErrorsKeepTheirCause(t *testing.T) {
	f, err := Parse([]byte("calendar: {start: '18:00', end: '08:00'}"))
	require.NoError(t, err)
	_, err = Build(f)
	assert.ErrorIs(t, err, calendar.ErrInvalidConfig)

	f, err = Parse([]byte("sla: {targets: {media: {attention: 0, resolution: 10}}}"))
	require.NoError(t, err)
	_, err = Build(f)
	assert.ErrorIs(t, err, sla.ErrInvalidTarget)
}

func TestBuild_PermissionOverride(t *testing.T) {
	f, err := Parse([]byte(`
permissions:
  tecnico: ["incidencias:ver"]
routes:
  /taller: ["activos:editar"]
`))
	require.NoError(t, err)
	k, err := Build(f)
	require.NoError(t, err)

	assert.True(t, k.Permissions.HasPermission(permission.RoleTecnico, permission.P(permission.ResourceIncidencias, permission.ActionVer)))
	assert.False(t, k.Permissions.HasPermission(permission.RoleAdmin, permission.P(permission.ResourceIncidencias, permission.ActionVer)))
	assert.Equal(t, []permission.Permission{permission.P(permission.ResourceActivos, permission.ActionEditar)}, k.Routes.Required("/taller/7"))
}

func TestFromPath(t *testing.T) {
	k, err := FromPath("")
	require.NoError(t, err)
	assert.NotNil(t, k.IncidentGuard)

	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))
	k, err = FromPath(path)
	require.NoError(t, err)
	assert.Equal(t, 540, k.Calendar.MinutesPerDay())

	_, err = FromPath(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParseWeekday(t *testing.T) {
	for in, want := range map[string]time.Weekday{
		"Monday": time.Monday, "sat": time.Saturday, "domingo": time.Sunday, "3": time.Wednesday,
	} {
		got, err := parseWeekday(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := parseWeekday("7")
	assert.ErrorIs(t, err, ErrInvalidPolicy)
}
