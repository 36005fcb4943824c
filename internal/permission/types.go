// Package permission holds the role to permission matrix, the coarse
// capabilities each role implies and the route to permission table.
//
// Every check is whitelist-only: a role or permission that is not
// explicitly granted is denied.
package permission

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownPermission is returned when a permission names a resource or an
// action outside the closed enumerations.
var ErrUnknownPermission = errors.New("unknown permission")

type Resource string

const (
	ResourceIncidencias    Resource = "incidencias"
	ResourceOrdenesTrabajo Resource = "ordenes_trabajo"
	ResourceActivos        Resource = "activos"
	ResourceInventario     Resource = "inventario"
	ResourcePreventivo     Resource = "preventivo"
	ResourceTecnicos       Resource = "tecnicos"
	ResourceUsuarios       Resource = "usuarios"
	ResourceOperadores     Resource = "operadores"
	ResourceContratos      Resource = "contratos"
	ResourceInformes       Resource = "informes"
	ResourceSLA            Resource = "sla"
	ResourceFacturacion    Resource = "facturacion"
	ResourceSistema        Resource = "sistema"
	ResourceAlmacenes      Resource = "almacenes"
	ResourceEquipos        Resource = "equipos"
)

var resources = map[Resource]struct{}{
	ResourceIncidencias: {}, ResourceOrdenesTrabajo: {}, ResourceActivos: {},
	ResourceInventario: {}, ResourcePreventivo: {}, ResourceTecnicos: {},
	ResourceUsuarios: {}, ResourceOperadores: {}, ResourceContratos: {},
	ResourceInformes: {}, ResourceSLA: {}, ResourceFacturacion: {},
	ResourceSistema: {}, ResourceAlmacenes: {}, ResourceEquipos: {},
}

type Action string

const (
	ActionVer         Action = "ver"
	ActionCrear       Action = "crear"
	ActionEditar      Action = "editar"
	ActionEliminar    Action = "eliminar"
	ActionAsignar     Action = "asignar"
	ActionReasignar   Action = "reasignar"
	ActionCerrar      Action = "cerrar"
	ActionReabrir     Action = "reabrir"
	ActionValidar     Action = "validar"
	ActionAprobar     Action = "aprobar"
	ActionMover       Action = "mover"
	ActionConsumir    Action = "consumir"
	ActionInstalar    Action = "instalar"
	ActionDesinstalar Action = "desinstalar"
	ActionExportar    Action = "exportar"
	ActionConfigurar  Action = "configurar"
	ActionVerCostes   Action = "ver_costes"
	ActionVerSLA      Action = "ver_sla"
	ActionVerTodos    Action = "ver_todos"
	ActionAuditar     Action = "auditar"
)

var actions = map[Action]struct{}{
	ActionVer: {}, ActionCrear: {}, ActionEditar: {}, ActionEliminar: {},
	ActionAsignar: {}, ActionReasignar: {}, ActionCerrar: {}, ActionReabrir: {},
	ActionValidar: {}, ActionAprobar: {}, ActionMover: {}, ActionConsumir: {},
	ActionInstalar: {}, ActionDesinstalar: {}, ActionExportar: {},
	ActionConfigurar: {}, ActionVerCostes: {}, ActionVerSLA: {},
	ActionVerTodos: {}, ActionAuditar: {},
}

// Permission is a (resource, action) pair, written "resource:action".
type Permission struct {
	Resource Resource
	Action   Action
}

// P builds a permission without validating it.
func P(r Resource, a Action) Permission { return Permission{Resource: r, Action: a} }

func (p Permission) String() string { return string(p.Resource) + ":" + string(p.Action) }

// Valid reports whether both halves belong to the closed enumerations.
func (p Permission) Valid() bool {
	_, okR := resources[p.Resource]
	_, okA := actions[p.Action]
	return okR && okA
}

// ParsePermission parses "resource:action" and validates both halves.
func ParsePermission(s string) (Permission, error) {
	r, a, ok := strings.Cut(s, ":")
	if !ok {
		return Permission{}, fmt.Errorf("%w: %q is not resource:action", ErrUnknownPermission, s)
	}
	p := Permission{Resource: Resource(r), Action: Action(a)}
	if !p.Valid() {
		return Permission{}, fmt.Errorf("%w: %q", ErrUnknownPermission, s)
	}
	return p, nil
}

// MustParse is ParsePermission for literals.
func MustParse(s string) Permission {
	p, err := ParsePermission(s)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Permission) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *Permission) UnmarshalText(b []byte) error {
	parsed, err := ParsePermission(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Role is the closed set of user roles.
type Role string

const (
	RoleAdmin             Role = "admin"
	RoleDFG               Role = "dfg"
	RoleOperador          Role = "operador"
	RoleJefeMantenimiento Role = "jefe_mantenimiento"
	RoleTecnico           Role = "tecnico"
)

// Roles lists every known role, highest access level first.
func Roles() []Role {
	return []Role{RoleAdmin, RoleDFG, RoleOperador, RoleJefeMantenimiento, RoleTecnico}
}

// Known reports whether r is one of the enumerated roles.
func (r Role) Known() bool {
	switch r {
	case RoleAdmin, RoleDFG, RoleOperador, RoleJefeMantenimiento, RoleTecnico:
		return true
	}
	return false
}
