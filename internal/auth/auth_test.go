package auth

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/fleet-maintenance/internal/domain"
	"github.com/spec-kit/fleet-maintenance/internal/permission"
	apperrors "github.com/spec-kit/fleet-maintenance/pkg/util"
)

func testApp() *fiber.App {
	return fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			de := apperrors.ToDomainError(err)
			return c.Status(de.HTTPStatus).JSON(fiber.Map{"code": de.Code, "details": de.Details})
		},
	})
}

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", "fleet", 15)
	p := domain.Principal{UserID: "u-1", TenantID: "t-1", Role: permission.RoleTecnico}

	token, exp, err := tm.GenerateToken(p)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), exp, 5*time.Second)

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, p, claims.Principal())
}

func TestParseTokenRejects(t *testing.T) {
	tm := NewTokenManager("secret", "fleet", 15)
	p := domain.Principal{UserID: "u-1", TenantID: "t-1", Role: permission.RoleAdmin}

	t.Run("wrong secret", func(t *testing.T) {
		token, _, err := NewTokenManager("other", "fleet", 15).GenerateToken(p)
		require.NoError(t, err)
		_, err = tm.ParseToken(token)
		assert.Error(t, err)
	})
	t.Run("wrong issuer", func(t *testing.T) {
		token, _, err := NewTokenManager("secret", "someone-else", 15).GenerateToken(p)
		require.NoError(t, err)
		_, err = tm.ParseToken(token)
		assert.Error(t, err)
	})
	t.Run("expired", func(t *testing.T) {
		old := NewTokenManager("secret", "fleet", 1)
		old.now = func() time.Time { return time.Now().Add(-time.Hour) }
		token, _, err := old.GenerateToken(p)
		require.NoError(t, err)
		_, err = tm.ParseToken(token)
		assert.Error(t, err)
	})
	t.Run("missing tenant", func(t *testing.T) {
		token, _, err := tm.GenerateToken(domain.Principal{UserID: "u-1", Role: permission.RoleAdmin})
		require.NoError(t, err)
		_, err = tm.ParseToken(token)
		assert.ErrorIs(t, err, ErrInvalidClaims)
	})
}

func TestMiddlewareStoresPrincipal(t *testing.T) {
	tm := NewTokenManager("secret", "", 15)
	app := testApp()
	app.Get("/me", NewAuthMiddleware(tm).Handle, func(c *fiber.Ctx) error {
		p, ok := PrincipalFromContext(c)
		require.True(t, ok)
		return c.JSON(fiber.Map{"user": p.UserID, "role": p.Role})
	})

	token, _, err := tm.GenerateToken(domain.Principal{UserID: "u-9", TenantID: "t-1", Role: permission.RoleOperador})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `{"user":"u-9","role":"operador"}`, string(body))

	for _, header := range []string{"", "Basic abc", "Bearer nope"} {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, header)
	}
}

func withRole(role permission.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		WithPrincipal(c, domain.Principal{UserID: "u", TenantID: "t", Role: role})
		return c.Next()
	}
}

func TestRequirePermission(t *testing.T) {
	m := permission.DefaultMatrix()
	ok := func(c *fiber.Ctx) error { return c.SendStatus(http.StatusNoContent) }

	cases := []struct {
		role   permission.Role
		status int
	}{
		{permission.RoleAdmin, http.StatusNoContent},
		{permission.RoleTecnico, http.StatusForbidden},
		{permission.Role("intruso"), http.StatusForbidden},
	}
	for _, tc := range cases {
		app := testApp()
		app.Delete("/users/:id", withRole(tc.role),
			RequirePermission(m, permission.P(permission.ResourceUsuarios, permission.ActionEliminar)), ok)
		resp, err := app.Test(httptest.NewRequest(http.MethodDelete, "/users/1", nil))
		require.NoError(t, err)
		assert.Equal(t, tc.status, resp.StatusCode, tc.role)
		if tc.status == http.StatusForbidden {
			var body struct {
				Code    string         `json:"code"`
				Details map[string]any `json:"details"`
			}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, apperrors.CodeForbidden, body.Code)
			assert.Equal(t, "usuarios:eliminar", body.Details["permission"])
		}
	}
}

func TestRequireRouteStripsBasePath(t *testing.T) {
	m := permission.DefaultMatrix()
	routes := permission.DefaultRoutes()
	ok := func(c *fiber.Ctx) error { return c.SendStatus(http.StatusNoContent) }

	app := testApp()
	app.Get("/api/v1/*", withRole(permission.RoleTecnico), RequireRoute(m, routes, "/api/v1"), ok)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/incidencias/abc", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/facturacion", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/unlisted", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestRequireWritable(t *testing.T) {
	ok := func(c *fiber.Ctx) error { return c.SendStatus(http.StatusNoContent) }
	for role, status := range map[permission.Role]int{
		permission.RoleDFG:      http.StatusForbidden,
		permission.RoleOperador: http.StatusNoContent,
	} {
		app := testApp()
		app.Post("/x", withRole(role), RequireWritable(), ok)
		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/x", nil))
		require.NoError(t, err)
		assert.Equal(t, status, resp.StatusCode, role)
	}

	app := testApp()
	app.Post("/x", RequireWritable(), ok)
	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/x", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
