// Package sequence issues the per-tenant counters behind human-readable codes.
package sequence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/fleet-maintenance/internal/repository"
)

// ErrUnavailable is returned when the backing store is not configured.
var ErrUnavailable = errors.New("sequence backend unavailable")

// Sequencer returns the next value of a named per-tenant counter. Values start
// at 1 and are never reused.
type Sequencer interface {
	Next(ctx context.Context, tenantID, name string) (int64, error)
}

type postgresSequencer struct {
	counters repository.CounterRepository
}

// NewPostgres issues values from the counters table.
func NewPostgres(counters repository.CounterRepository) Sequencer {
	return &postgresSequencer{counters: counters}
}

func (s *postgresSequencer) Next(ctx context.Context, tenantID, name string) (int64, error) {
	if s.counters == nil {
		return 0, ErrUnavailable
	}
	v, err := s.counters.Next(ctx, tenantID, name)
	if err != nil {
		return 0, fmt.Errorf("next %s/%s: %w", tenantID, name, err)
	}
	return v, nil
}

// KeyFunc maps a tenant counter to a Redis key.
type KeyFunc func(parts ...string) string

type redisSequencer struct {
	client redis.Cmdable
	key    KeyFunc
}

// NewRedis issues values with INCR. key may be nil, in which case keys are
// "seq:<tenant>:<name>".
func NewRedis(client redis.Cmdable, key KeyFunc) Sequencer {
	if key == nil {
		key = func(parts ...string) string { return strings.Join(parts, ":") }
	}
	return &redisSequencer{client: client, key: key}
}

func (s *redisSequencer) Next(ctx context.Context, tenantID, name string) (int64, error) {
	if s.client == nil {
		return 0, ErrUnavailable
	}
	v, err := s.client.Incr(ctx, s.key("seq", tenantID, name)).Result()
	if err != nil {
		return 0, fmt.Errorf("next %s/%s: %w", tenantID, name, err)
	}
	return v, nil
}

// Memory is a process-local Sequencer.
type Memory struct {
	mu     sync.Mutex
	values map[string]int64
}

func NewMemory() *Memory {
	return &Memory{values: make(map[string]int64)}
}

func (m *Memory) Next(_ context.Context, tenantID, name string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := tenantID + "/" + name
	m.values[k]++
	return m.values[k], nil
}

// Set primes a counter so the next call returns v+1.
func (m *Memory) Set(tenantID, name string, v int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[tenantID+"/"+name] = v
}
