package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/fleet-maintenance/internal/permission"
	apperrors "github.com/spec-kit/fleet-maintenance/pkg/util"
)

// RequireAuthenticated ensures a principal is present.
func RequireAuthenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := PrincipalFromContext(c); !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		return c.Next()
	}
}

// RequirePermission admits callers whose role holds every permission.
func RequirePermission(m *permission.Matrix, required ...permission.Permission) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if missing := m.FirstMissing(principal.Role, required...); missing != nil {
			return apperrors.NewPermissionDenied(principal.Role, *missing)
		}
		return c.Next()
	}
}

// RequireRoute checks the permissions the route table requires for the
// request path with basePath stripped. Paths with no entry need only
// authentication.
func RequireRoute(m *permission.Matrix, routes *permission.Routes, basePath string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if allowed, missing := routes.Allowed(m, principal.Role, strings.TrimPrefix(c.Path(), basePath)); !allowed {
			return apperrors.NewPermissionDenied(principal.Role, *missing)
		}
		return c.Next()
	}
}

// RequireWritable rejects read-only roles on mutating routes.
func RequireWritable() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if permission.IsReadOnlyRole(principal.Role) {
			return apperrors.NewForbidden("role is read-only")
		}
		return c.Next()
	}
}
