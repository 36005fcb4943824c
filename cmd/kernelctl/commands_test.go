package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/fleet-maintenance/internal/auth"
	"github.com/spec-kit/fleet-maintenance/internal/permission"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func decode(t *testing.T, raw string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &m), raw)
	return m
}

func TestSLACommand(t *testing.T) {
	out, err := run(t, "sla", "--priority", "critica", "--opened", "2026-03-02T08:00:00Z", "--now", "2026-03-02T13:00:00Z")
	require.NoError(t, err)
	got := decode(t, out)
	resolution := got["resolution"].(map[string]any)
	assert.Equal(t, float64(300), resolution["elapsed_minutes"])
	assert.Equal(t, false, resolution["within_sla"])
	assert.Equal(t, "critical", got["band"])

	_, err = run(t, "sla", "--priority", "alta")
	assert.Error(t, err)
}

func TestTransitionCommand(t *testing.T) {
	out, err := run(t, "transition", "incident", "resuelta", "cerrada", "--role", "operador")
	require.NoError(t, err)
	got := decode(t, out)
	assert.Equal(t, true, got["legal"])
	assert.Equal(t, true, got["role_allowed"])

	_, err = run(t, "transition", "incident", "perdida", "nueva")
	assert.Error(t, err)
}

func TestCanCommand(t *testing.T) {
	out, err := run(t, "can", "tecnico", "incidencias:editar", "usuarios:ver")
	require.NoError(t, err)
	got := decode(t, out)
	assert.Equal(t, false, got["allowed"])
	assert.Equal(t, "usuarios:ver", got["missing"])

	_, err = run(t, "can", "tecnico", "volar")
	assert.ErrorIs(t, err, permission.ErrUnknownPermission)
}

func TestCodeCommands(t *testing.T) {
	out, err := run(t, "code", "next", "incident", "INC-2025-00042", "--now", "2026-01-05T09:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, "INC-2026-00001", strings.TrimSpace(out))

	out, err = run(t, "code", "format", "bus_equipment", "2", "--type", "camara", "--bus", "321")
	require.NoError(t, err)
	assert.Equal(t, "CAM-321-002", strings.TrimSpace(out))

	out, err = run(t, "code", "parse", "OT-2026-00043")
	require.NoError(t, err)
	assert.Equal(t, "orden_trabajo", decode(t, out)["kind"])
}

func TestPolicyFlag(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("calendar:\n  start: \"20:00\"\n  end: \"08:00\"\n"), 0o600))
	_, err := run(t, "--policy", path, "route", "admin", "/dashboard")
	assert.Error(t, err)
}

func TestTokenCommand(t *testing.T) {
	out, err := run(t, "token", "--user", "u-1", "--tenant", "t1", "--role", "jefe_mantenimiento", "--secret", "s3cret")
	require.NoError(t, err)
	token := decode(t, out)["token"].(string)

	claims, err := auth.NewTokenManager("s3cret", "fleet-maintenance", 60).ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, permission.RoleJefeMantenimiento, claims.Principal().Role)
	assert.Equal(t, "t1", claims.Principal().TenantID)

	_, err = run(t, "token", "--user", "u-1", "--tenant", "t1", "--role", "capitan")
	assert.Error(t, err)
}
