package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spec-kit/fleet-maintenance/internal/calendar"
	"github.com/spec-kit/fleet-maintenance/internal/codes"
	"github.com/spec-kit/fleet-maintenance/internal/permission"
	"github.com/spec-kit/fleet-maintenance/internal/policy"
	"github.com/spec-kit/fleet-maintenance/internal/sla"
	sm "github.com/spec-kit/fleet-maintenance/internal/statemachine"
	apperrors "github.com/spec-kit/fleet-maintenance/pkg/util"
)

func newKernelService(t *testing.T) *KernelService {
	return NewKernelService(policy.MustDefault(), zaptest.NewLogger(t), func() time.Time { return monday(12, 0) })
}

func TestEvaluateSLA(t *testing.T) {
	s := newKernelService(t)

	t.Run("within target", func(t *testing.T) {
		got, err := s.EvaluateSLA(SLAInput{Priority: sla.PriorityMedia, OpenedAt: monday(8, 0), Now: monday(10, 0)})
		require.NoError(t, err)
		assert.Equal(t, 120, got.Resolution.ElapsedMinutes)
		assert.True(t, got.Resolution.WithinSLA)
		assert.Equal(t, "2h", got.ElapsedFormatted)
		assert.Equal(t, "22h", got.RemainingFormatted)
	})

	t.Run("breached and resolved", func(t *testing.T) {
		analysis := monday(8, 20)
		resolved := monday(14, 0)
		got, err := s.EvaluateSLA(SLAInput{
			Priority:          sla.PriorityCritica,
			OpenedAt:          monday(8, 0),
			AnalysisStartedAt: &analysis,
			ResolvedAt:        &resolved,
			Now:               monday(19, 0),
		})
		require.NoError(t, err)
		assert.Equal(t, 360, got.Resolution.ElapsedMinutes)
		assert.Equal(t, 150, got.Resolution.PercentageUsed)
		assert.False(t, got.Resolution.WithinSLA)
		assert.Equal(t, sla.BandCritical, got.Band)
		assert.Equal(t, "-2h", got.RemainingFormatted)

		assert.Equal(t, 20, got.Attention.ElapsedMinutes)
		assert.True(t, got.Metrics.WithinAttention)
		assert.False(t, got.Metrics.WithinResolution)
		assert.False(t, got.Metrics.MeetsSLA)
	})

	t.Run("defaults now", func(t *testing.T) {
		got, err := s.EvaluateSLA(SLAInput{Priority: sla.PriorityAlta, OpenedAt: monday(8, 0)})
		require.NoError(t, err)
		assert.Equal(t, 240, got.Resolution.ElapsedMinutes)
	})

	t.Run("unknown priority falls back", func(t *testing.T) {
		got, err := s.EvaluateSLA(SLAInput{Priority: "urgente", OpenedAt: monday(8, 0)})
		require.NoError(t, err)
		assert.True(t, got.Resolution.PriorityFallback)
		assert.Equal(t, sla.PriorityMedia, got.Resolution.Priority)
	})

	t.Run("missing opened", func(t *testing.T) {
		_, err := s.EvaluateSLA(SLAInput{Priority: sla.PriorityAlta})
		assert.Equal(t, apperrors.CodeValidation, apperrors.ToDomainError(err).Code)
	})
}

func TestWorkingTime(t *testing.T) {
	s := newKernelService(t)

	friday := time.Date(2026, 3, 6, 19, 0, 0, 0, time.UTC)
	got := s.WorkingMinutes(friday, monday(8, 0).AddDate(0, 0, 7).Add(time.Hour))
	assert.Equal(t, 120, got.Minutes)

	end, err := s.AddWorkingMinutes(friday, 120)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC), end)

	_, err = s.AddWorkingMinutes(friday, -1)
	assert.Error(t, err)

	for _, minutes := range []int{calendar.MaxAddMinutes + 1, 1 << 40} {
		_, err = s.AddWorkingMinutes(friday, minutes)
		require.Error(t, err)
		assert.Equal(t, apperrors.CodeValidation, apperrors.ToDomainError(err).Code, "minutes=%d", minutes)
	}

	// Ten years of working time on the default calendar.
	end, err = s.AddWorkingMinutes(friday, calendar.MaxAddMinutes)
	require.NoError(t, err)
	assert.Equal(t, calendar.MaxAddMinutes, s.WorkingMinutes(friday, end).Minutes)
}

func TestEvaluateTransition(t *testing.T) {
	s := newKernelService(t)

	got, err := s.EvaluateTransition(sm.DomainIncident, "nueva", "en_analisis", permission.RoleTecnico)
	require.NoError(t, err)
	assert.True(t, got.Legal)
	assert.True(t, got.RoleChecked)
	assert.True(t, got.RoleAllowed)
	assert.Equal(t, []string{"en_analisis", "cerrada"}, got.NextStates)
	assert.Equal(t, []string{"en_analisis"}, got.NextStatesForRole)

	got, err = s.EvaluateTransition(sm.DomainIncident, "nueva", "resuelta", "")
	require.NoError(t, err)
	assert.False(t, got.Legal)
	assert.False(t, got.RoleChecked)
	assert.Equal(t, "cannot move from nueva to resuelta", got.Reason)

	got, err = s.EvaluateTransition(sm.DomainAsset, "baja", "operativo", permission.RoleAdmin)
	require.NoError(t, err)
	assert.False(t, got.Legal)
	assert.True(t, got.Terminal)
	assert.Empty(t, got.NextStates)
	assert.False(t, got.RoleChecked)

	got, err = s.EvaluateTransition(sm.DomainInventory, "almacen", "instalado", "")
	require.NoError(t, err)
	assert.True(t, got.Legal)

	_, err = s.EvaluateTransition(sm.DomainInventory, "perdido", "almacen", "")
	assert.Equal(t, apperrors.CodeValidation, apperrors.ToDomainError(err).Code)

	_, err = s.EvaluateTransition("work_order", "a", "b", "")
	assert.Equal(t, apperrors.CodeValidation, apperrors.ToDomainError(err).Code)
}

func TestEvaluateMove(t *testing.T) {
	s := newKernelService(t)

	got, err := s.EvaluateMove(sm.InventoryAlmacen, sm.DestinationBus)
	require.NoError(t, err)
	assert.True(t, got.Allowed)
	assert.Equal(t, sm.InventoryInstalado, got.Resulting)

	got, err = s.EvaluateMove(sm.InventoryReparacion, sm.DestinationBus)
	require.NoError(t, err)
	assert.False(t, got.Allowed)
	assert.NotEmpty(t, got.Reason)

	_, err = s.EvaluateMove("perdido", sm.DestinationBus)
	assert.Error(t, err)
}

func TestCheckPermissionAndCapabilities(t *testing.T) {
	s := newKernelService(t)
	del := permission.P(permission.ResourceUsuarios, permission.ActionEliminar)

	got := s.CheckPermission(permission.RoleTecnico, []permission.Permission{del})
	assert.False(t, got.Allowed)
	require.NotNil(t, got.Missing)
	assert.Equal(t, del, *got.Missing)

	got = s.CheckPermission(permission.RoleAdmin, []permission.Permission{del})
	assert.True(t, got.Allowed)
	assert.Nil(t, got.Missing)

	got = s.CheckPermission("desconocido", nil)
	assert.True(t, got.Allowed)
	assert.Empty(t, got.Granted)

	profile := s.Capabilities(permission.RoleDFG)
	assert.True(t, profile.Known)
	assert.True(t, profile.Capabilities.IsReadOnly)
	assert.True(t, profile.Capabilities.CanAccessAllTenants)
	assert.Equal(t, 1825, profile.Detail.MaxHistoryDays)

	profile = s.Capabilities("desconocido")
	assert.False(t, profile.Known)
	assert.Equal(t, 30, profile.Capabilities.MaxHistoryDays)
}

func TestRouteAccess(t *testing.T) {
	s := newKernelService(t)

	got := s.RouteAccess(permission.RoleTecnico, "/incidencias/INC-2026-00001")
	assert.True(t, got.Allowed)
	assert.Equal(t, []permission.Permission{permission.P(permission.ResourceIncidencias, permission.ActionVer)}, got.Required)

	got = s.RouteAccess(permission.RoleTecnico, "/admin/usuarios")
	assert.False(t, got.Allowed)
	require.NotNil(t, got.Missing)
	assert.Equal(t, "usuarios:ver", got.Missing.String())
}

func TestCodes(t *testing.T) {
	s := newKernelService(t)

	code, err := s.FormatCode(CodeRequest{Format: FormatIncident, Sequence: 7})
	require.NoError(t, err)
	assert.Equal(t, "INC-2026-00007", code)

	code, err = s.FormatCode(CodeRequest{Format: FormatMovement, Sequence: 3, Date: monday(9, 0)})
	require.NoError(t, err)
	assert.Equal(t, "MOV-20260302-0003", code)

	code, err = s.FormatCode(CodeRequest{Format: FormatBusEquipment, EquipmentType: "camara", BusCode: "321", Sequence: 2})
	require.NoError(t, err)
	assert.Equal(t, "CAM-321-002", code)

	_, err = s.FormatCode(CodeRequest{Format: "ticket", Sequence: 1})
	assert.Equal(t, apperrors.CodeValidation, apperrors.ToDomainError(err).Code)

	next, err := s.NextCode(FormatIncident, "INC-2025-00042", 2026)
	require.NoError(t, err)
	assert.Equal(t, "INC-2026-00001", next)

	next, err = s.NextCode(FormatWorkOrder, "OT-2026-00042", 0)
	require.NoError(t, err)
	assert.Equal(t, "OT-2026-00043", next)

	parsed, err := s.ParseCode("OT-2026-00043")
	require.NoError(t, err)
	assert.Equal(t, codes.KindWorkOrder, parsed.Kind)
	assert.Equal(t, 43, parsed.Code.Sequence)

	_, err = s.ParseCode("garbage")
	assert.ErrorIs(t, err, codes.ErrMalformedCode)
}

func TestOutOfService(t *testing.T) {
	s := newKernelService(t)
	history := []sla.StateChange{
		{State: "operativo", At: monday(8, 0)},
		{State: "averiado", At: monday(9, 0)},
		{State: "en_taller", At: monday(10, 0)},
		{State: "operativo", At: monday(11, 30)},
		{State: "en_taller", At: monday(11, 45)},
	}
	got := s.OutOfService(history, nil, time.Time{})
	assert.Equal(t, 150+15, got.Minutes)
	assert.Equal(t, "2h 45m", got.Formatted)
}
