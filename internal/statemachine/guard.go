package statemachine

import (
	"fmt"

	"github.com/spec-kit/fleet-maintenance/internal/permission"
)

// RoleGuard restricts each legal transition of a machine to a set of roles.
// Transitions without an entry are allowed to nobody.
type RoleGuard[S ~string] struct {
	machine *Machine[S]
	roles   map[Edge[S]][]permission.Role
}

// NewRoleGuard rejects rules for transitions the machine does not define.
func NewRoleGuard[S ~string](m *Machine[S], rules map[Edge[S]][]permission.Role) (*RoleGuard[S], error) {
	g := &RoleGuard[S]{machine: m, roles: make(map[Edge[S]][]permission.Role, len(rules))}
	for edge, roles := range rules {
		legal, err := m.IsLegal(edge.From, edge.To)
		if err != nil {
			return nil, fmt.Errorf("%w: role rule %s: %v", ErrInvalidTable, edge, err)
		}
		if !legal {
			return nil, fmt.Errorf("%w: role rule for undefined transition %s", ErrInvalidTable, edge)
		}
		g.roles[edge] = append([]permission.Role(nil), roles...)
	}
	return g, nil
}

func (g *RoleGuard[S]) Machine() *Machine[S] { return g.machine }

// RolesFor lists the roles allowed to perform from -> to.
func (g *RoleGuard[S]) RolesFor(from, to S) []permission.Role {
	return append([]permission.Role(nil), g.roles[Edge[S]{From: from, To: to}]...)
}

// Allows reports whether role may perform from -> to. The transition itself
// must be legal; an unknown from is an error.
func (g *RoleGuard[S]) Allows(role permission.Role, from, to S) (bool, error) {
	legal, err := g.machine.IsLegal(from, to)
	if err != nil || !legal {
		return false, err
	}
	for _, r := range g.roles[Edge[S]{From: from, To: to}] {
		if r == role {
			return true, nil
		}
	}
	return false, nil
}

// NextStatesFor filters the legal next states of from down to those role may
// move to.
func (g *RoleGuard[S]) NextStatesFor(from S, role permission.Role) ([]S, error) {
	next, err := g.machine.NextStates(from)
	if err != nil {
		return nil, err
	}
	out := make([]S, 0, len(next))
	for _, to := range next {
		if ok, _ := g.Allows(role, from, to); ok {
			out = append(out, to)
		}
	}
	return out, nil
}

// IncidentRoleRules is the default per-transition role table for incidents.
// Closing straight from nueva and sending back to nueva are manager-only;
// resolved incidents can also be closed or reopened by the operator.
func IncidentRoleRules() map[Edge[IncidentState]][]permission.Role {
	var (
		admin    = permission.RoleAdmin
		jefe     = permission.RoleJefeMantenimiento
		tecnico  = permission.RoleTecnico
		operador = permission.RoleOperador
	)
	e := func(from, to IncidentState) Edge[IncidentState] { return Edge[IncidentState]{From: from, To: to} }
	return map[Edge[IncidentState]][]permission.Role{
		e(IncidentNueva, IncidentEnAnalisis):          {admin, jefe, tecnico},
		e(IncidentNueva, IncidentCerrada):             {admin, jefe},
		e(IncidentEnAnalisis, IncidentEnIntervencion): {admin, jefe, tecnico},
		e(IncidentEnAnalisis, IncidentNueva):          {admin, jefe},
		e(IncidentEnIntervencion, IncidentResuelta):   {admin, jefe, tecnico},
		e(IncidentEnIntervencion, IncidentEnAnalisis): {admin, jefe, tecnico},
		e(IncidentResuelta, IncidentCerrada):          {admin, jefe, operador},
		e(IncidentResuelta, IncidentReabierta):        {admin, jefe, operador},
		e(IncidentCerrada, IncidentReabierta):         {admin, jefe},
		e(IncidentReabierta, IncidentEnAnalisis):      {admin, jefe, tecnico},
	}
}

// NewIncidentGuard binds the default incident rules to m.
func NewIncidentGuard(m *Machine[IncidentState]) (*RoleGuard[IncidentState], error) {
	return NewRoleGuard(m, IncidentRoleRules())
}
