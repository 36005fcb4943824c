// Package memory holds map-backed repositories. The service runs on them
// when no Postgres DSN is configured, and tests use them as fixtures.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/fleet-maintenance/internal/domain"
	"github.com/spec-kit/fleet-maintenance/internal/repository"
	"github.com/spec-kit/fleet-maintenance/internal/statemachine"
)

// Store bundles one instance of every repository.
type Store struct {
	Incidents *Incidents
	Inventory *Inventory
	Assets    *Assets
	History   *History
	Counters  *Counters
}

func NewStore() *Store {
	return &Store{
		Incidents: NewIncidents(),
		Inventory: NewInventory(),
		Assets:    NewAssets(),
		History:   &History{},
		Counters:  NewCounters(),
	}
}

// Incidents implements repository.IncidentRepository.
type Incidents struct {
	mu   sync.RWMutex
	rows map[string]domain.Incident
}

var _ repository.IncidentRepository = (*Incidents)(nil)

func NewIncidents() *Incidents { return &Incidents{rows: map[string]domain.Incident{}} }

// Put stores i as is, replacing any row with the same id.
func (m *Incidents) Put(i domain.Incident) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[i.ID] = i
}

func (m *Incidents) Create(_ context.Context, i *domain.Incident) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.TenantID == i.TenantID && row.Code == i.Code {
			return uniqueViolation("incidents_tenant_code")
		}
	}
	if i.CreatedAt.IsZero() {
		i.CreatedAt = i.OpenedAt
	}
	i.UpdatedAt = i.CreatedAt
	m.rows[i.ID] = *i
	return nil
}

func (m *Incidents) Update(_ context.Context, i *domain.Incident, from statemachine.IncidentState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.rows[i.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	if stored.State != from {
		return repository.ErrStateChanged
	}
	m.rows[i.ID] = *i
	return nil
}

func (m *Incidents) GetByID(_ context.Context, id string) (*domain.Incident, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.rows[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &i, nil
}

func (m *Incidents) GetByCode(_ context.Context, tenantID, code string) (*domain.Incident, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, i := range m.rows {
		if i.TenantID == tenantID && i.Code == code {
			return &i, nil
		}
	}
	return nil, pgx.ErrNoRows
}

// List applies filter with the same semantics as the SQL repository:
// newest first, Limit defaulting to 20.
func (m *Incidents) List(_ context.Context, f repository.IncidentFilter) ([]domain.Incident, error) {
	m.mu.RLock()
	var out []domain.Incident
	for _, i := range m.rows {
		if matches(i, f) {
			out = append(out, i)
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(a, b int) bool {
		if !out[a].OpenedAt.Equal(out[b].OpenedAt) {
			return out[a].OpenedAt.After(out[b].OpenedAt)
		}
		return out[a].Code > out[b].Code
	})
	if f.Offset >= len(out) {
		return []domain.Incident{}, nil
	}
	out = out[f.Offset:]
	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func matches(i domain.Incident, f repository.IncidentFilter) bool {
	switch {
	case f.TenantID != "" && i.TenantID != f.TenantID:
		return false
	case f.OnlyUnbreach && i.SLABreachedAt != nil:
		return false
	case f.AssetID != nil && (i.AssetID == nil || *i.AssetID != *f.AssetID):
		return false
	case f.AssignedTo != nil && (i.AssignedTo == nil || *i.AssignedTo != *f.AssignedTo):
		return false
	case f.OpenedFrom != nil && i.OpenedAt.Before(*f.OpenedFrom):
		return false
	case f.OpenedTo != nil && i.OpenedAt.After(*f.OpenedTo):
		return false
	}
	if len(f.States) > 0 && !contains(f.States, i.State) {
		return false
	}
	if len(f.Priorities) > 0 && !contains(f.Priorities, i.Priority) {
		return false
	}
	if f.SearchTerm != nil {
		term := strings.ToLower(*f.SearchTerm)
		if !strings.Contains(strings.ToLower(i.Title), term) && !strings.Contains(strings.ToLower(i.Code), term) {
			return false
		}
	}
	return true
}

// uniqueViolation mirrors the error Postgres reports for a duplicate key.
func uniqueViolation(constraint string) error {
	return &pgconn.PgError{Code: "23505", ConstraintName: constraint, Message: "duplicate key value violates unique constraint"}
}

func contains[T comparable](list []T, v T) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func (m *Incidents) MarkBreached(_ context.Context, id string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.rows[id]
	if !ok || i.SLABreachedAt != nil {
		return false, nil
	}
	i.SLABreachedAt = &at
	m.rows[id] = i
	return true, nil
}

// Inventory implements repository.InventoryRepository.
type Inventory struct {
	mu   sync.RWMutex
	rows map[string]domain.InventoryItem
}

var _ repository.InventoryRepository = (*Inventory)(nil)

func NewInventory() *Inventory { return &Inventory{rows: map[string]domain.InventoryItem{}} }

func (m *Inventory) Create(_ context.Context, item *domain.InventoryItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[item.ID] = *item
	return nil
}

func (m *Inventory) Update(_ context.Context, item *domain.InventoryItem, from statemachine.InventoryState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.rows[item.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	if stored.State != from {
		return repository.ErrStateChanged
	}
	m.rows[item.ID] = *item
	return nil
}

func (m *Inventory) GetByID(_ context.Context, id string) (*domain.InventoryItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, ok := m.rows[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &item, nil
}

// Assets implements repository.AssetRepository.
type Assets struct {
	mu   sync.RWMutex
	rows map[string]domain.Asset
}

var _ repository.AssetRepository = (*Assets)(nil)

func NewAssets() *Assets { return &Assets{rows: map[string]domain.Asset{}} }

func (m *Assets) Create(_ context.Context, a *domain.Asset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.TenantID == a.TenantID && row.Code == a.Code {
			return uniqueViolation("assets_tenant_code")
		}
	}
	m.rows[a.ID] = *a
	return nil
}

func (m *Assets) Update(_ context.Context, a *domain.Asset, from statemachine.AssetState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.rows[a.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	if stored.State != from {
		return repository.ErrStateChanged
	}
	m.rows[a.ID] = *a
	return nil
}

func (m *Assets) GetByID(_ context.Context, id string) (*domain.Asset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.rows[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &a, nil
}

// History implements repository.StateHistoryRepository.
type History struct {
	mu   sync.RWMutex
	rows []domain.StateChange
}

var _ repository.StateHistoryRepository = (*History)(nil)

func (m *History) Create(_ context.Context, c *domain.StateChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, *c)
	return nil
}

// ListByEntity returns the entity's changes oldest first.
func (m *History) ListByEntity(_ context.Context, kind, id string) ([]domain.StateChange, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []domain.StateChange{}
	for _, c := range m.rows {
		if c.EntityKind == kind && c.EntityID == id {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].ChangedAt.Before(out[b].ChangedAt) })
	return out, nil
}

// Counters implements repository.CounterRepository.
type Counters struct {
	mu     sync.Mutex
	values map[string]int64
}

var _ repository.CounterRepository = (*Counters)(nil)

func NewCounters() *Counters { return &Counters{values: map[string]int64{}} }

func (m *Counters) Next(_ context.Context, tenantID, name string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := tenantID + "\x00" + name
	m.values[key]++
	return m.values[key], nil
}

func (m *Counters) Current(_ context.Context, tenantID, name string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[tenantID+"\x00"+name], nil
}
