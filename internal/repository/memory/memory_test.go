package memory

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/fleet-maintenance/internal/domain"
	"github.com/spec-kit/fleet-maintenance/internal/repository"
	"github.com/spec-kit/fleet-maintenance/internal/sla"
	sm "github.com/spec-kit/fleet-maintenance/internal/statemachine"
	apperrors "github.com/spec-kit/fleet-maintenance/pkg/util"
)

func at(day int) time.Time { return time.Date(2026, 3, day, 9, 0, 0, 0, time.UTC) }

func seed(t *testing.T) *Incidents {
	t.Helper()
	repo := NewIncidents()
	ctx := context.Background()
	bus := "bus-7"
	rows := []domain.Incident{
		{ID: "a", TenantID: "t1", Code: "INC-2026-00001", Title: "Validadora", State: sm.IncidentNueva, Priority: sla.PriorityAlta, OpenedAt: at(2)},
		{ID: "b", TenantID: "t1", Code: "INC-2026-00002", Title: "Cámara trasera", State: sm.IncidentCerrada, Priority: sla.PriorityBaja, OpenedAt: at(3), AssetID: &bus},
		{ID: "c", TenantID: "t2", Code: "INC-2026-00001", Title: "Validadora", State: sm.IncidentNueva, Priority: sla.PriorityAlta, OpenedAt: at(4)},
	}
	for i := range rows {
		require.NoError(t, repo.Create(ctx, &rows[i]))
	}
	return repo
}

func ids(list []domain.Incident) []string {
	out := make([]string, len(list))
	for i, inc := range list {
		out[i] = inc.ID
	}
	return out
}

func TestIncidentsList(t *testing.T) {
	repo := seed(t)
	ctx := context.Background()

	got, err := repo.List(ctx, repository.IncidentFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a"}, ids(got))

	got, _ = repo.List(ctx, repository.IncidentFilter{TenantID: "t1", States: []sm.IncidentState{sm.IncidentNueva}})
	assert.Equal(t, []string{"a"}, ids(got))

	bus := "bus-7"
	got, _ = repo.List(ctx, repository.IncidentFilter{AssetID: &bus})
	assert.Equal(t, []string{"b"}, ids(got))

	term := "validadora"
	from := at(3)
	got, _ = repo.List(ctx, repository.IncidentFilter{SearchTerm: &term, OpenedFrom: &from})
	assert.Equal(t, []string{"c"}, ids(got))

	got, _ = repo.List(ctx, repository.IncidentFilter{Limit: 1, Offset: 1})
	assert.Equal(t, []string{"b"}, ids(got))

	got, _ = repo.List(ctx, repository.IncidentFilter{Offset: 10})
	assert.Empty(t, got)
}

func TestIncidentsDuplicateCode(t *testing.T) {
	repo := seed(t)
	err := repo.Create(context.Background(), &domain.Incident{ID: "d", TenantID: "t1", Code: "INC-2026-00001"})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeConflict, apperrors.ToDomainError(err).Code)
}

func TestIncidentsMarkBreached(t *testing.T) {
	repo := seed(t)
	ctx := context.Background()

	ok, err := repo.MarkBreached(ctx, "a", at(5))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = repo.MarkBreached(ctx, "a", at(6))
	assert.False(t, ok)

	got, _ := repo.List(ctx, repository.IncidentFilter{TenantID: "t1", OnlyUnbreach: true})
	assert.Equal(t, []string{"b"}, ids(got))

	_, err = repo.GetByID(ctx, "zzz")
	assert.ErrorIs(t, err, pgx.ErrNoRows)
}

func TestIncidentsUpdateGuardsState(t *testing.T) {
	repo := seed(t)
	ctx := context.Background()

	first, _ := repo.GetByID(ctx, "a")
	second, _ := repo.GetByID(ctx, "a")

	first.State = sm.IncidentEnAnalisis
	require.NoError(t, repo.Update(ctx, first, sm.IncidentNueva))

	second.State = sm.IncidentCerrada
	err := repo.Update(ctx, second, sm.IncidentNueva)
	assert.ErrorIs(t, err, repository.ErrStateChanged)

	stored, _ := repo.GetByID(ctx, "a")
	assert.Equal(t, sm.IncidentEnAnalisis, stored.State)

	err = repo.Update(ctx, &domain.Incident{ID: "zzz"}, sm.IncidentNueva)
	assert.ErrorIs(t, err, pgx.ErrNoRows)
}

func TestEquipmentUpdateGuardsState(t *testing.T) {
	ctx := context.Background()

	inv := NewInventory()
	require.NoError(t, inv.Create(ctx, &domain.InventoryItem{ID: "i1", State: sm.InventoryAlmacen}))
	err := inv.Update(ctx, &domain.InventoryItem{ID: "i1", State: sm.InventoryBaja}, sm.InventoryInstalado)
	assert.ErrorIs(t, err, repository.ErrStateChanged)
	require.NoError(t, inv.Update(ctx, &domain.InventoryItem{ID: "i1", State: sm.InventoryInstalado}, sm.InventoryAlmacen))

	assets := NewAssets()
	require.NoError(t, assets.Create(ctx, &domain.Asset{ID: "a1", Code: "BUS-1", State: sm.AssetOperativo}))
	err = assets.Update(ctx, &domain.Asset{ID: "a1", State: sm.AssetBaja}, sm.AssetEnTaller)
	assert.ErrorIs(t, err, repository.ErrStateChanged)
	stored, _ := assets.GetByID(ctx, "a1")
	assert.Equal(t, sm.AssetOperativo, stored.State)
}

func TestHistoryOrdered(t *testing.T) {
	h := &History{}
	ctx := context.Background()
	require.NoError(t, h.Create(ctx, &domain.StateChange{EntityKind: domain.EntityAsset, EntityID: "x", ToState: "averiado", ChangedAt: at(3)}))
	require.NoError(t, h.Create(ctx, &domain.StateChange{EntityKind: domain.EntityAsset, EntityID: "x", ToState: "operativo", ChangedAt: at(2)}))
	require.NoError(t, h.Create(ctx, &domain.StateChange{EntityKind: domain.EntityAsset, EntityID: "y", ToState: "baja", ChangedAt: at(1)}))

	got, err := h.ListByEntity(ctx, domain.EntityAsset, "x")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "operativo", got[0].ToState)
	assert.Equal(t, "averiado", got[1].ToState)
}

func TestCountersPerTenant(t *testing.T) {
	c := NewCounters()
	ctx := context.Background()
	n, _ := c.Next(ctx, "t1", "incident:2026")
	assert.Equal(t, int64(1), n)
	n, _ = c.Next(ctx, "t1", "incident:2026")
	assert.Equal(t, int64(2), n)
	n, _ = c.Next(ctx, "t2", "incident:2026")
	assert.Equal(t, int64(1), n)

	cur, err := c.Current(ctx, "t1", "incident:2026")
	require.NoError(t, err)
	assert.Equal(t, int64(2), cur)
}
