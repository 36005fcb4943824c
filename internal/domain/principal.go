package domain

import "github.com/spec-kit/fleet-maintenance/internal/permission"

// Principal is the authenticated caller as asserted by the bearer token.
type Principal struct {
	UserID   string
	TenantID string
	Role     permission.Role
}

// CanSeeTenant reports whether p may read data belonging to tenantID.
func (p Principal) CanSeeTenant(tenantID string) bool {
	return permission.CanAccessAllTenants(p.Role) || p.TenantID == tenantID
}

// TenantScope is the tenant list queries must be restricted to, or "" when
// the role sees every tenant.
func (p Principal) TenantScope() string {
	if permission.CanAccessAllTenants(p.Role) {
		return ""
	}
	return p.TenantID
}
