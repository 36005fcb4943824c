package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/fleet-maintenance/internal/config"
)

func tracerWithClock(slow time.Duration, steps ...time.Duration) (*queryTracer, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	tr := newQueryTracer(zap.New(core), slow)
	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	i := 0
	tr.now = func() time.Time {
		t := base
		if i < len(steps) {
			t = base.Add(steps[i])
		}
		i++
		return t
	}
	return tr, logs
}

func trace(tr *queryTracer, sql string, err error) {
	ctx := tr.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: sql})
	tr.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{Err: err})
}

func TestQueryTracerLogsSlowQueries(t *testing.T) {
	tr, logs := tracerWithClock(100*time.Millisecond, 0, 250*time.Millisecond)
	trace(tr, "SELECT id\n        FROM incidents", nil)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "slow query", entry.Message)
	assert.Equal(t, "SELECT id FROM incidents", entry.ContextMap()["sql"])
}

func TestQueryTracerIgnoresFastAndNoRows(t *testing.T) {
	tr, logs := tracerWithClock(100*time.Millisecond, 0, 10*time.Millisecond, 0, 10*time.Millisecond)
	trace(tr, "SELECT 1", nil)
	trace(tr, "SELECT 1", pgx.ErrNoRows)
	assert.Zero(t, logs.Len())
}

func TestQueryTracerLogsFailures(t *testing.T) {
	tr, logs := tracerWithClock(0, 0, time.Millisecond)
	trace(tr, "INSERT INTO counters", errors.New("deadlock detected"))

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "query failed", logs.All()[0].Message)
}

func TestNewPostgresWithoutDSN(t *testing.T) {
	pg, err := NewPostgres(context.Background(), config.PostgresConfig{}, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, pg.PoolHandle())
	assert.ErrorIs(t, pg.Ping(context.Background()), ErrPostgresNotConfigured)
	pg.Close()
}

func TestRedisWithoutAddr(t *testing.T) {
	r := NewRedis(config.RedisConfig{KeyPrefix: "fleet"}, zap.NewNop())
	assert.Nil(t, r.Client)
	assert.ErrorIs(t, r.Ping(context.Background()), ErrRedisNotConfigured)
	assert.Equal(t, "fleet:seq:t1:incidencias_2026", r.Key("seq", "t1", "incidencias_2026"))
	r.Close()

	var none *Redis
	assert.Equal(t, "a:b", none.Key("a", "b"))
}
