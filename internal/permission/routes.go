package permission

import (
	"fmt"
	"sort"
	"strings"
)

// Routes maps application routes to the permissions they require.
type Routes struct {
	exact map[string][]Permission
	// registered routes, longest first, for prefix matching
	byLength []string
}

// NewRoutes validates every permission in table.
func NewRoutes(table map[string][]Permission) (*Routes, error) {
	r := &Routes{exact: make(map[string][]Permission, len(table))}
	for route, perms := range table {
		for _, p := range perms {
			if !p.Valid() {
				return nil, fmt.Errorf("%w: %s on route %s", ErrUnknownPermission, p, route)
			}
		}
		key := normalizeRoute(route)
		r.exact[key] = append([]Permission(nil), perms...)
		r.byLength = append(r.byLength, key)
	}
	sort.Slice(r.byLength, func(i, j int) bool {
		if len(r.byLength[i]) != len(r.byLength[j]) {
			return len(r.byLength[i]) > len(r.byLength[j])
		}
		return r.byLength[i] < r.byLength[j]
	})
	return r, nil
}

// Required returns the permissions needed for path: the exact entry if one
// exists, otherwise the longest registered route that is a prefix of path on
// a segment boundary. Unregistered paths need nothing beyond authentication.
func (r *Routes) Required(path string) []Permission {
	path = normalizeRoute(path)
	if perms, ok := r.exact[path]; ok {
		return append([]Permission{}, perms...)
	}
	for _, route := range r.byLength {
		if route == "/" || strings.HasPrefix(path, route+"/") {
			return append([]Permission{}, r.exact[route]...)
		}
	}
	return []Permission{}
}

// Allowed reports whether role may open path, and the first permission it
// lacks when it may not.
func (r *Routes) Allowed(m *Matrix, role Role, path string) (bool, *Permission) {
	missing := m.FirstMissing(role, r.Required(path)...)
	return missing == nil, missing
}

func normalizeRoute(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
		if p == "" {
			p = "/"
		}
	}
	return p
}

// DefaultRoutes is the production route table.
func DefaultRoutes() *Routes {
	r, err := NewRoutes(map[string][]Permission{
		"/dashboard":             {},
		"/incidencias":           {P(ResourceIncidencias, ActionVer)},
		"/incidencias/nueva":     {P(ResourceIncidencias, ActionCrear)},
		"/ordenes-trabajo":       {P(ResourceOrdenesTrabajo, ActionVer)},
		"/ordenes-trabajo/nueva": {P(ResourceOrdenesTrabajo, ActionCrear)},
		"/autobuses":             {P(ResourceActivos, ActionVer)},
		"/equipos":               {P(ResourceEquipos, ActionVer)},
		"/inventario":            {P(ResourceInventario, ActionVer)},
		"/preventivo":            {P(ResourcePreventivo, ActionVer)},
		"/preventivo/nuevo":      {P(ResourcePreventivo, ActionCrear)},
		"/tecnicos":              {P(ResourceTecnicos, ActionVer)},
		"/almacenes":             {P(ResourceAlmacenes, ActionVer)},
		"/informes":              {P(ResourceInformes, ActionVer)},
		"/contratos":             {P(ResourceContratos, ActionVer)},
		"/facturacion":           {P(ResourceFacturacion, ActionVer)},
		"/admin/usuarios":        {P(ResourceUsuarios, ActionVer)},
		"/admin/operadores":      {P(ResourceOperadores, ActionVer)},
		"/admin/configuracion":   {P(ResourceSistema, ActionConfigurar)},
	})
	if err != nil {
		panic(err)
	}
	return r
}
