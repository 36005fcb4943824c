package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spec-kit/fleet-maintenance/internal/api/http/handlers"
	"github.com/spec-kit/fleet-maintenance/internal/auth"
	"github.com/spec-kit/fleet-maintenance/internal/domain"
	"github.com/spec-kit/fleet-maintenance/internal/events"
	"github.com/spec-kit/fleet-maintenance/internal/observability"
	"github.com/spec-kit/fleet-maintenance/internal/permission"
	"github.com/spec-kit/fleet-maintenance/internal/policy"
	"github.com/spec-kit/fleet-maintenance/internal/repository/memory"
	"github.com/spec-kit/fleet-maintenance/internal/sequence"
	"github.com/spec-kit/fleet-maintenance/internal/service"
)

var (
	tecnico  = domain.Principal{UserID: "tec-1", TenantID: "t1", Role: permission.RoleTecnico}
	operador = domain.Principal{UserID: "op-1", TenantID: "t1", Role: permission.RoleOperador}
	jefe     = domain.Principal{UserID: "jefe-1", TenantID: "t1", Role: permission.RoleJefeMantenimiento}
	admin    = domain.Principal{UserID: "adm-1", TenantID: "t0", Role: permission.RoleAdmin}
	dfg      = domain.Principal{UserID: "dfg-1", TenantID: "t0", Role: permission.RoleDFG}
)

type pingerFunc func(context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

type testEnv struct {
	app     *fiber.App
	tokens  *auth.TokenManager
	metrics *observability.Metrics
}

func newTestEnv(t *testing.T, deps ...handlers.Dependency) *testEnv {
	t.Helper()
	logger := zaptest.NewLogger(t)
	kernel := policy.MustDefault()
	store := memory.NewStore()
	metrics := observability.NewMetrics()
	now := func() time.Time { return time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC) }

	workflow := service.NewWorkflowService(service.WorkflowDependencies{
		Kernel:        kernel,
		IncidentRepo:  store.Incidents,
		InventoryRepo: store.Inventory,
		AssetRepo:     store.Assets,
		HistoryRepo:   store.History,
		Sequencer:     sequence.NewPostgres(store.Counters),
		Dispatcher:    events.NewInMemoryDispatcher(),
		Metrics:       metrics,
		Logger:        logger,
		Now:           now,
	})
	tokens := auth.NewTokenManager("test-secret", "fleet", 60)

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logger, metrics)})
	RegisterMiddlewares(app, logger, metrics, MiddlewareOptions{
		Timeout:      time.Second,
		AllowOrigins: "https://taller.example.com",
	})
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("fleet-maintenance", "test", deps...),
		Incidents:      handlers.NewIncidentsHandler(workflow),
		Equipment:      handlers.NewEquipmentHandler(workflow),
		Kernel:         handlers.NewKernelHandler(service.NewKernelService(kernel, logger, now)),
		Metrics:        handlers.NewMetricsHandler(metrics),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
		Rules:          kernel,
	})
	return &testEnv{app: app, tokens: tokens, metrics: metrics}
}

type response struct {
	Status int
	Header map[string]string
	Body   map[string]any
}

func (e *testEnv) do(t *testing.T, method, path string, caller *domain.Principal, body any) response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if caller != nil {
		token, _, err := e.tokens.GenerateToken(*caller)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := response{Status: resp.StatusCode, Header: map[string]string{}, Body: map[string]any{}}
	out.Header[observability.RequestIDHeader] = resp.Header.Get(observability.RequestIDHeader)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out.Body), string(raw))
	}
	return out
}

func data(t *testing.T, r response) map[string]any {
	t.Helper()
	d, ok := r.Body["data"].(map[string]any)
	require.True(t, ok, "no data object in %v", r.Body)
	return d
}

func errorCode(r response) string {
	e, _ := r.Body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func TestHealthProbes(t *testing.T) {
	down := pingerFunc(func(context.Context) error { return errors.New("connection refused") })
	up := pingerFunc(func(context.Context) error { return nil })

	env := newTestEnv(t,
		handlers.Dependency{Name: "postgres", Pinger: up},
		handlers.Dependency{Name: "redis", Pinger: down, Optional: true},
	)
	r := env.do(t, "GET", "/health/live", nil, nil)
	assert.Equal(t, fiber.StatusOK, r.Status)
	assert.Equal(t, "alive", r.Body["status"])

	r = env.do(t, "GET", "/health/ready", nil, nil)
	assert.Equal(t, fiber.StatusOK, r.Status)
	assert.Equal(t, map[string]any{"postgres": "ok", "redis": "connection refused"}, r.Body["dependencies"])

	env = newTestEnv(t, handlers.Dependency{Name: "postgres", Pinger: down})
	r = env.do(t, "GET", "/health/ready", nil, nil)
	assert.Equal(t, fiber.StatusServiceUnavailable, r.Status)
	assert.Equal(t, "DEPENDENCY_UNAVAILABLE", errorCode(r))
}

func TestAPIRequiresToken(t *testing.T) {
	env := newTestEnv(t)
	r := env.do(t, "GET", "/api/v1/incidencias", nil, nil)
	assert.Equal(t, fiber.StatusUnauthorized, r.Status)
	assert.Equal(t, "UNAUTHORIZED", errorCode(r))
	assert.NotEmpty(t, r.Header[observability.RequestIDHeader])
}

func TestRouteTableGuardsPaths(t *testing.T) {
	env := newTestEnv(t)
	r := env.do(t, "GET", "/api/v1/admin/usuarios", &tecnico, nil)
	assert.Equal(t, fiber.StatusForbidden, r.Status)
	details := r.Body["error"].(map[string]any)["details"].(map[string]any)
	assert.Equal(t, "usuarios:ver", details["permission"])

	r = env.do(t, "GET", "/api/v1/admin/metricas", &tecnico, nil)
	assert.Equal(t, fiber.StatusForbidden, r.Status)

	r = env.do(t, "GET", "/api/v1/admin/metricas", &admin, nil)
	assert.Equal(t, fiber.StatusOK, r.Status)

	r = env.do(t, "GET", "/api/v1/no-such-thing", &admin, nil)
	assert.Equal(t, fiber.StatusNotFound, r.Status)
	assert.Equal(t, "NOT_FOUND", errorCode(r))
}

func TestPrometheusEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, "GET", "/health/live", nil, nil)

	resp, err := env.app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `fleet_http_requests_total{method="GET",path="/health/live",status="200"} 1`)
}

func TestCORSPreflightSkipsAuth(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest("OPTIONS", "/api/v1/incidencias", nil)
	req.Header.Set("Origin", "https://taller.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")

	resp, err := env.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "https://taller.example.com", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestIncidentLifecycle(t *testing.T) {
	env := newTestEnv(t)

	r := env.do(t, "POST", "/api/v1/incidencias", &operador, map[string]any{
		"title":    "Validadora sin conexión",
		"priority": "critica",
	})
	require.Equal(t, fiber.StatusCreated, r.Status, r.Body)
	created := data(t, r)
	assert.Equal(t, "INC-2026-00001", created["code"])
	assert.Equal(t, "nueva", created["state"])
	id := created["id"].(string)

	r = env.do(t, "GET", "/api/v1/incidencias/"+id+"/transiciones", &tecnico, nil)
	require.Equal(t, fiber.StatusOK, r.Status)
	assert.Equal(t, []any{"en_analisis"}, data(t, r)["next_states"])

	r = env.do(t, "POST", "/api/v1/incidencias/"+id+"/estado", &tecnico, map[string]any{"state": "resuelta"})
	assert.Equal(t, fiber.StatusConflict, r.Status)
	assert.Equal(t, "INVALID_TRANSITION", errorCode(r))

	r = env.do(t, "POST", "/api/v1/incidencias/"+id+"/estado", &tecnico, map[string]any{"state": "en_analisis"})
	require.Equal(t, fiber.StatusOK, r.Status, r.Body)
	assert.Equal(t, "en_analisis", data(t, r)["state"])
	assert.Equal(t, "tec-1", data(t, r)["assigned_to"])

	r = env.do(t, "GET", "/api/v1/incidencias/"+id+"/sla", &jefe, nil)
	require.Equal(t, fiber.StatusOK, r.Status)
	resolution := data(t, r)["resolution"].(map[string]any)
	assert.Equal(t, float64(0), resolution["elapsed_minutes"])
	assert.Equal(t, float64(240), resolution["target_minutes"])
	assert.Equal(t, true, resolution["within_sla"])

	r = env.do(t, "POST", "/api/v1/incidencias/"+id+"/asignacion", &jefe, map[string]any{"assignee": "tec-7"})
	require.Equal(t, fiber.StatusOK, r.Status, r.Body)
	assert.Equal(t, "tec-7", data(t, r)["assigned_to"])

	r = env.do(t, "POST", "/api/v1/incidencias/"+id+"/tomar", &tecnico, nil)
	assert.Equal(t, fiber.StatusConflict, r.Status)

	r = env.do(t, "GET", "/api/v1/incidencias?state=en_analisis", &jefe, nil)
	require.Equal(t, fiber.StatusOK, r.Status)
	assert.Len(t, r.Body["data"], 1)

	r = env.do(t, "GET", "/api/v1/incidencias?opened_from=yesterday", &jefe, nil)
	assert.Equal(t, fiber.StatusBadRequest, r.Status)
}

func TestReadOnlyRoleCannotMutate(t *testing.T) {
	env := newTestEnv(t)
	r := env.do(t, "POST", "/api/v1/incidencias", &dfg, map[string]any{"title": "x"})
	assert.Equal(t, fiber.StatusForbidden, r.Status)
	assert.Equal(t, "FORBIDDEN", errorCode(r))
}

func TestInventoryAndAssets(t *testing.T) {
	env := newTestEnv(t)

	r := env.do(t, "POST", "/api/v1/inventario", &tecnico, map[string]any{"equipment_type": "validadora"})
	assert.Equal(t, fiber.StatusForbidden, r.Status)

	r = env.do(t, "POST", "/api/v1/inventario", &jefe, map[string]any{"equipment_type": "validadora", "warehouse_ref": "ALM-1"})
	require.Equal(t, fiber.StatusCreated, r.Status, r.Body)
	item := data(t, r)
	assert.Equal(t, "almacen", item["state"])
	id := item["id"].(string)

	r = env.do(t, "POST", "/api/v1/inventario/"+id+"/movimientos", &tecnico, map[string]any{"destination": "luna"})
	assert.Equal(t, fiber.StatusBadRequest, r.Status)

	r = env.do(t, "POST", "/api/v1/inventario/"+id+"/movimientos", &tecnico, map[string]any{"destination": "autobus", "reference": "BUS-321"})
	require.Equal(t, fiber.StatusOK, r.Status, r.Body)
	assert.Equal(t, "instalado", data(t, r)["state"])
	assert.Equal(t, "BUS-321", data(t, r)["location_ref"])

	r = env.do(t, "POST", "/api/v1/autobuses", &admin, map[string]any{"tenant_id": "t1", "code": "bus-321", "plate": "1234-ABC"})
	require.Equal(t, fiber.StatusCreated, r.Status, r.Body)
	asset := data(t, r)
	assert.Equal(t, "BUS-321", asset["code"])
	assetID := asset["id"].(string)

	r = env.do(t, "POST", "/api/v1/autobuses", &admin, map[string]any{"tenant_id": "t1", "code": "BUS-321"})
	assert.Equal(t, fiber.StatusConflict, r.Status)

	r = env.do(t, "GET", "/api/v1/autobuses/"+assetID+"/fuera-de-servicio", &operador, nil)
	require.Equal(t, fiber.StatusOK, r.Status)
	assert.Equal(t, float64(0), data(t, r)["minutes"])

	r = env.do(t, "GET", "/api/v1/autobuses/missing", &operador, nil)
	assert.Equal(t, fiber.StatusNotFound, r.Status)
}

func TestKernelEndpoints(t *testing.T) {
	env := newTestEnv(t)

	r := env.do(t, "POST", "/api/v1/kernel/sla", &operador, map[string]any{
		"priority":  "critica",
		"opened_at": "2026-03-02T08:00:00Z",
		"now":       "2026-03-02T13:00:00Z",
	})
	require.Equal(t, fiber.StatusOK, r.Status, r.Body)
	sla := data(t, r)
	assert.Equal(t, float64(300), sla["resolution"].(map[string]any)["elapsed_minutes"])
	assert.Equal(t, false, sla["resolution"].(map[string]any)["within_sla"])
	assert.Equal(t, "5h", sla["elapsed_formatted"])

	r = env.do(t, "POST", "/api/v1/kernel/transiciones", &operador, map[string]any{
		"domain": "incident", "from": "nueva", "to": "en_analisis", "role": "operador",
	})
	require.Equal(t, fiber.StatusOK, r.Status)
	assert.Equal(t, true, data(t, r)["legal"])
	assert.Equal(t, false, data(t, r)["role_allowed"])

	r = env.do(t, "POST", "/api/v1/kernel/transiciones", &operador, map[string]any{
		"domain": "incident", "from": "perdida", "to": "nueva",
	})
	assert.Equal(t, fiber.StatusBadRequest, r.Status)

	r = env.do(t, "POST", "/api/v1/kernel/permisos", &tecnico, map[string]any{"permissions": []string{"usuarios:eliminar"}})
	require.Equal(t, fiber.StatusOK, r.Status)
	assert.Equal(t, false, data(t, r)["allowed"])
	assert.Equal(t, "usuarios:eliminar", data(t, r)["missing"])

	r = env.do(t, "POST", "/api/v1/kernel/permisos", &tecnico, map[string]any{"permissions": []string{"volar"}})
	assert.Equal(t, fiber.StatusBadRequest, r.Status)

	r = env.do(t, "GET", "/api/v1/kernel/roles/me", &dfg, nil)
	require.Equal(t, fiber.StatusOK, r.Status)
	assert.Equal(t, true, data(t, r)["capabilities"].(map[string]any)["is_read_only"])

	r = env.do(t, "GET", "/api/v1/kernel/rutas?path=/admin/usuarios", &tecnico, nil)
	require.Equal(t, fiber.StatusOK, r.Status)
	assert.Equal(t, false, data(t, r)["allowed"])

	r = env.do(t, "GET", "/api/v1/kernel/codigos/INC-2026-00043", &tecnico, nil)
	require.Equal(t, fiber.StatusOK, r.Status)
	assert.Equal(t, "incidencia", data(t, r)["kind"])
	assert.Equal(t, float64(43), data(t, r)["sequence"])

	r = env.do(t, "POST", "/api/v1/kernel/codigos", &tecnico, map[string]any{"format": "work_order", "sequence": 9})
	require.Equal(t, fiber.StatusOK, r.Status)
	assert.Equal(t, "OT-2026-00009", data(t, r)["code"])

	r = env.do(t, "POST", "/api/v1/kernel/codigos/siguiente", &tecnico, map[string]any{"format": "incident", "last": "INC-2026-00009"})
	require.Equal(t, fiber.StatusOK, r.Status)
	assert.Equal(t, "INC-2026-00010", data(t, r)["code"])

	r = env.do(t, "POST", "/api/v1/kernel/movimientos", &tecnico, map[string]any{"from": "reparacion", "destination": "autobus"})
	require.Equal(t, fiber.StatusOK, r.Status)
	assert.Equal(t, false, data(t, r)["allowed"])

	r = env.do(t, "POST", "/api/v1/kernel/calendario/sumar", &tecnico, map[string]any{"start": "2026-03-06T19:00:00Z", "minutes": 120})
	require.Equal(t, fiber.StatusOK, r.Status)
	assert.Equal(t, "2026-03-09T09:00:00Z", data(t, r)["end"])
}
