package permission

import (
	"fmt"
	"sort"
)

// Matrix maps each role to its granted permissions. It is immutable once
// built and safe for concurrent use.
type Matrix struct {
	grants map[Role]map[Permission]struct{}
}

// NewMatrix validates every granted permission against the enumerations.
func NewMatrix(grants map[Role][]Permission) (*Matrix, error) {
	m := &Matrix{grants: make(map[Role]map[Permission]struct{}, len(grants))}
	for role, perms := range grants {
		set := make(map[Permission]struct{}, len(perms))
		for _, p := range perms {
			if !p.Valid() {
				return nil, fmt.Errorf("%w: %s granted to %s", ErrUnknownPermission, p, role)
			}
			set[p] = struct{}{}
		}
		m.grants[role] = set
	}
	return m, nil
}

// HasPermission reports whether role holds p. Unknown roles hold nothing.
func (m *Matrix) HasPermission(role Role, p Permission) bool {
	_, ok := m.grants[role][p]
	return ok
}

// HasAll is true when role holds every permission in ps. An empty list is
// trivially satisfied.
func (m *Matrix) HasAll(role Role, ps ...Permission) bool {
	return m.FirstMissing(role, ps...) == nil
}

// HasAny is true when role holds at least one permission in ps.
func (m *Matrix) HasAny(role Role, ps ...Permission) bool {
	for _, p := range ps {
		if m.HasPermission(role, p) {
			return true
		}
	}
	return false
}

// FirstMissing returns the first permission of ps that role lacks, or nil.
func (m *Matrix) FirstMissing(role Role, ps ...Permission) *Permission {
	for i := range ps {
		if !m.HasPermission(role, ps[i]) {
			return &ps[i]
		}
	}
	return nil
}

// PermissionsFor returns a sorted copy of the role's grants. It is meant for
// driving affordances; decisions should go through HasPermission.
func (m *Matrix) PermissionsFor(role Role) []Permission {
	set := m.grants[role]
	out := make([]Permission, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sortPermissions(out)
	return out
}

// RolesWith lists, in Roles() order, the known roles holding p.
func (m *Matrix) RolesWith(p Permission) []Role {
	var out []Role
	for _, r := range Roles() {
		if m.HasPermission(r, p) {
			out = append(out, r)
		}
	}
	return out
}

func sortPermissions(ps []Permission) {
	sort.Slice(ps, func(i, j int) bool { return ps[i].String() < ps[j].String() })
}

// DefaultMatrix is the production grant table.
func DefaultMatrix() *Matrix {
	m, err := NewMatrix(DefaultGrants())
	if err != nil {
		panic(err)
	}
	return m
}

func grant(r Resource, as ...Action) []Permission {
	out := make([]Permission, len(as))
	for i, a := range as {
		out[i] = P(r, a)
	}
	return out
}

func concat(groups ...[]Permission) []Permission {
	var out []Permission
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// DefaultGrants returns a fresh copy of the production grant table.
func DefaultGrants() map[Role][]Permission {
	return map[Role][]Permission{
		// Executes interventions, no costs, no other tenants.
		RoleTecnico: concat(
			grant(ResourceIncidencias, ActionVer, ActionCrear, ActionEditar),
			grant(ResourceOrdenesTrabajo, ActionVer, ActionEditar, ActionCerrar),
			grant(ResourceActivos, ActionVer),
			grant(ResourceEquipos, ActionVer),
			grant(ResourceInventario, ActionVer, ActionConsumir, ActionInstalar, ActionDesinstalar, ActionMover),
			grant(ResourcePreventivo, ActionVer, ActionEditar),
			grant(ResourceAlmacenes, ActionVer),
		),
		RoleJefeMantenimiento: concat(
			grant(ResourceIncidencias, ActionVer, ActionCrear, ActionEditar, ActionAsignar, ActionReasignar,
				ActionCerrar, ActionReabrir, ActionValidar),
			grant(ResourceOrdenesTrabajo, ActionVer, ActionCrear, ActionEditar, ActionAsignar, ActionReasignar,
				ActionCerrar, ActionValidar, ActionVerCostes),
			grant(ResourceActivos, ActionVer, ActionEditar),
			grant(ResourceEquipos, ActionVer, ActionCrear, ActionEditar),
			grant(ResourceInventario, ActionVer, ActionCrear, ActionEditar, ActionMover, ActionConsumir,
				ActionInstalar, ActionDesinstalar),
			grant(ResourcePreventivo, ActionVer, ActionCrear, ActionEditar, ActionAsignar),
			grant(ResourceTecnicos, ActionVer, ActionAsignar),
			grant(ResourceAlmacenes, ActionVer, ActionEditar),
			grant(ResourceUsuarios, ActionVer),
			grant(ResourceInformes, ActionVer, ActionExportar),
			grant(ResourceSLA, ActionVer),
		),
		RoleOperador: concat(
			grant(ResourceIncidencias, ActionVer, ActionCrear, ActionEditar),
			grant(ResourceOrdenesTrabajo, ActionVer),
			grant(ResourceActivos, ActionVer),
			grant(ResourceEquipos, ActionVer),
			grant(ResourceInventario, ActionVer),
			grant(ResourcePreventivo, ActionVer),
			grant(ResourceAlmacenes, ActionVer),
			grant(ResourceInformes, ActionVer, ActionExportar),
			grant(ResourceSLA, ActionVer),
		),
		// Oversight body: reads every tenant, edits contracts only.
		RoleDFG: concat(
			grant(ResourceIncidencias, ActionVer, ActionVerTodos, ActionAuditar),
			grant(ResourceOrdenesTrabajo, ActionVer, ActionVerTodos, ActionAuditar),
			grant(ResourceActivos, ActionVer, ActionVerTodos),
			grant(ResourceEquipos, ActionVer, ActionVerTodos),
			grant(ResourceInventario, ActionVer),
			grant(ResourcePreventivo, ActionVer, ActionVerTodos),
			grant(ResourceOperadores, ActionVer),
			grant(ResourceContratos, ActionVer, ActionEditar),
			grant(ResourceInformes, ActionVer, ActionVerTodos, ActionExportar),
			grant(ResourceSLA, ActionVer, ActionVerTodos),
			grant(ResourceFacturacion, ActionVer),
		),
		RoleAdmin: concat(
			grant(ResourceIncidencias, ActionVer, ActionCrear, ActionEditar, ActionEliminar, ActionAsignar,
				ActionReasignar, ActionCerrar, ActionReabrir, ActionValidar, ActionVerTodos, ActionAuditar),
			grant(ResourceOrdenesTrabajo, ActionVer, ActionCrear, ActionEditar, ActionEliminar, ActionAsignar,
				ActionReasignar, ActionCerrar, ActionValidar, ActionVerTodos, ActionVerCostes, ActionAuditar),
			grant(ResourceActivos, ActionVer, ActionCrear, ActionEditar, ActionEliminar, ActionVerTodos),
			grant(ResourceEquipos, ActionVer, ActionCrear, ActionEditar, ActionEliminar, ActionVerTodos),
			grant(ResourceInventario, ActionVer, ActionCrear, ActionEditar, ActionEliminar, ActionMover,
				ActionConsumir, ActionInstalar, ActionDesinstalar),
			grant(ResourcePreventivo, ActionVer, ActionCrear, ActionEditar, ActionEliminar, ActionAsignar, ActionVerTodos),
			grant(ResourceTecnicos, ActionVer, ActionCrear, ActionEditar, ActionEliminar, ActionAsignar),
			grant(ResourceUsuarios, ActionVer, ActionCrear, ActionEditar, ActionEliminar),
			grant(ResourceOperadores, ActionVer, ActionCrear, ActionEditar, ActionEliminar),
			grant(ResourceAlmacenes, ActionVer, ActionCrear, ActionEditar, ActionEliminar),
			grant(ResourceContratos, ActionVer, ActionCrear, ActionEditar, ActionEliminar),
			grant(ResourceInformes, ActionVer, ActionVerTodos, ActionExportar),
			grant(ResourceSLA, ActionVer, ActionVerTodos, ActionConfigurar),
			grant(ResourceFacturacion, ActionVer, ActionCrear, ActionEditar),
			grant(ResourceSistema, ActionVer, ActionConfigurar),
		),
	}
}
