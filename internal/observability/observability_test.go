package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/fleet-maintenance/internal/config"
)

func TestNewLoggerFallsBackToInfo(t *testing.T) {
	logger, err := NewLogger(config.LoggerConfig{Level: "nonsense"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zap.InfoLevel))
	assert.False(t, logger.Core().Enabled(zap.DebugLevel))

	logger, err = NewLogger(config.LoggerConfig{Level: "DEBUG"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zap.DebugLevel))
}

func TestRequestLoggerAssignsIDAndCounts(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	metrics := NewMetrics()

	app := fiber.New()
	app.Use(RequestLogger(zap.New(core), metrics))
	app.Get("/items/:id", func(c *fiber.Ctx) error {
		return c.SendString(RequestID(c))
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/items/7", nil))
	require.NoError(t, err)
	id := resp.Header.Get(RequestIDHeader)
	assert.NotEmpty(t, id)

	req := httptest.NewRequest(http.MethodGet, "/items/8", nil)
	req.Header.Set(RequestIDHeader, "given-id")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "given-id", resp.Header.Get(RequestIDHeader))

	require.Equal(t, 2, logs.Len())
	entry := logs.All()[1]
	assert.Equal(t, "given-id", entry.ContextMap()["request_id"])
	assert.Equal(t, "/items/8", entry.ContextMap()["path"])

	snap := metrics.Snapshot()
	require.Len(t, snap.Requests, 1)
	assert.Equal(t, Counter{Key: "/items/:id|GET|200", Value: 2}, snap.Requests[0])
}

func TestMetricsSnapshotIsSortedAndNilSafe(t *testing.T) {
	var nilMetrics *Metrics
	nilMetrics.RecordDecision("incident", OutcomeAccepted)
	assert.Equal(t, Snapshot{}, nilMetrics.Snapshot())

	m := NewMetrics()
	m.RecordDecision("incident", OutcomeRejected)
	m.RecordDecision("asset", OutcomeAccepted)
	m.RecordDecision("incident", OutcomeRejected)
	m.RecordBreach("critica")
	m.RecordPriorityFallback()
	m.RecordRequest("/x", "GET", 200, 4*time.Millisecond)
	m.RecordRequest("/x", "GET", 200, 6*time.Millisecond)

	snap := m.Snapshot()
	assert.Equal(t, []Counter{{"asset|accepted", 1}, {"incident|rejected", 2}}, snap.Decisions)
	assert.Equal(t, []Counter{{"critica", 1}}, snap.Breaches)
	assert.Equal(t, int64(1), snap.PriorityFallbacks)
	assert.Equal(t, []Counter{{"/x|GET|200", 5}}, snap.RequestAvgMillis)
}
