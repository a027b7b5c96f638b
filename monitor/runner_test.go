package monitor_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mitjajez/nodewatcher/datastream"
	"github.com/mitjajez/nodewatcher/datastream/memory"
	"github.com/mitjajez/nodewatcher/fields"
	"github.com/mitjajez/nodewatcher/monitor"
	"github.com/mitjajez/nodewatcher/registry"
)

type sensor struct {
	ID      string
	Reading *float64 `datastream:"reading"`
}

type brokenSensor struct {
	ID string
}

type sensorDescriptor struct {
	model  any
	id     string
	schema *fields.Schema
}

func (d *sensorDescriptor) Model() any                       { return d.model }
func (d *sensorDescriptor) StreamTags() datastream.Tags      { return datastream.Tags{"sensor": d.id} }
func (d *sensorDescriptor) StreamQueryTags() datastream.Tags { return datastream.Tags{"sensor": d.id} }
func (d *sensorDescriptor) Schema() *fields.Schema           { return d.schema }

func (d *sensorDescriptor) StreamHighestGranularity() datastream.Granularity {
	return datastream.GranularitySeconds
}

func (d *sensorDescriptor) ResolveModelReference(name string) (any, error) {
	return nil, fmt.Errorf("no model reference %q", name)
}

type listerFunc func() []any

func (f listerFunc) ListModels() []any { return f() }

// failingStore fails every request after the first n succeed.
type failingStore struct {
	next datastream.Store

	mu      sync.Mutex
	allowed int
	calls   int
}

func (s *failingStore) EnsureStream(
	ctx context.Context, queryTags, tags datastream.Tags, opts datastream.EnsureOptions,
) (datastream.StreamID, error) {
	if err := s.tick(); err != nil {
		return "", err
	}
	return s.next.EnsureStream(ctx, queryTags, tags, opts)
}

func (s *failingStore) Append(ctx context.Context, id datastream.StreamID, value any, at time.Time) error {
	if err := s.tick(); err != nil {
		return err
	}
	return s.next.Append(ctx, id, value, at)
}

func (s *failingStore) DeleteStreams(ctx context.Context, queryTags datastream.Tags) error {
	if err := s.tick(); err != nil {
		return err
	}
	return s.next.DeleteStreams(ctx, queryTags)
}

func (s *failingStore) tick() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls > s.allowed {
		return fmt.Errorf("store unavailable")
	}
	return nil
}

type env struct {
	store  *memory.Store
	pool   *registry.Pool
	schema *fields.Schema
}

func newEnv(t *testing.T, store datastream.Store) (*env, *fields.Engine) {
	t.Helper()
	schema := fields.NewSchema().MustAdd("reading", fields.NewFloat())
	pool := registry.NewPool()
	require.NoError(t, pool.Register(&sensor{}, func(model any) fields.Descriptor {
		return &sensorDescriptor{model: model, id: model.(*sensor).ID, schema: schema}
	}))

	mem, _ := store.(*memory.Store)
	engine, err := fields.NewEngine(store, pool)
	require.NoError(t, err)
	return &env{store: mem, pool: pool, schema: schema}, engine
}

func testConfig() monitor.Config {
	return monitor.Config{Interval: time.Minute, Workers: 4}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		config monitor.Config
		ok     bool
	}{
		{"valid", monitor.Config{Interval: time.Minute, Workers: 2}, true},
		{"valid with rate limit", monitor.Config{Interval: time.Minute, Workers: 2, RateLimit: 10}, true},
		{"zero interval", monitor.Config{Workers: 2}, false},
		{"zero workers", monitor.Config{Interval: time.Minute}, false},
		{"negative rate", monitor.Config{Interval: time.Minute, Workers: 2, RateLimit: -1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestRunCycleProcessesAllModels(t *testing.T) {
	store := memory.New()
	env, engine := newEnv(t, store)

	reading := 21.5
	models := []any{
		&sensor{ID: "s-1", Reading: &reading},
		&sensor{ID: "s-2"},
	}
	runner, err := monitor.NewRunner(testConfig(), engine,
		listerFunc(func() []any { return models }), quietLogger())
	require.NoError(t, err)

	stats := runner.RunCycle(context.Background())
	assert.Equal(t, 2, stats.Models)
	assert.Zero(t, stats.Failed)
	assert.Zero(t, stats.FieldErrors)
	assert.Equal(t, 2, env.store.StreamCount())

	info, ok := env.store.Find(datastream.Tags{"sensor": "s-1", "name": "reading"})
	require.True(t, ok)
	points := env.store.Datapoints(info.ID)
	require.Len(t, points, 1)
	assert.Equal(t, 21.5, points[0].Value)
}

func TestRunCycleCountsUnregisteredModels(t *testing.T) {
	_, engine := newEnv(t, memory.New())

	models := []any{&sensor{ID: "s-1"}, &brokenSensor{ID: "b-1"}}
	runner, err := monitor.NewRunner(testConfig(), engine,
		listerFunc(func() []any { return models }), quietLogger())
	require.NoError(t, err)

	stats := runner.RunCycle(context.Background())
	assert.Equal(t, 2, stats.Models)
	assert.Equal(t, 1, stats.Failed, "the unregistered model fails, the other proceeds")
}

func TestRunCycleAbandonsModelOnStoreFailure(t *testing.T) {
	// The first store call succeeds, everything after fails.
	store := &failingStore{next: memory.New(), allowed: 1}
	_, engine := newEnv(t, store)

	runner, err := monitor.NewRunner(monitor.Config{Interval: time.Minute, Workers: 1}, engine,
		listerFunc(func() []any {
			return []any{&sensor{ID: "s-1"}, &sensor{ID: "s-2"}}
		}), quietLogger())
	require.NoError(t, err)

	stats := runner.RunCycle(context.Background())
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.StoreErrors)
}

func TestRunnerLifecycle(t *testing.T) {
	env, engine := newEnv(t, memory.New())

	var mu sync.Mutex
	cycles := 0
	runner, err := monitor.NewRunner(
		monitor.Config{Interval: 10 * time.Millisecond, Workers: 2}, engine,
		listerFunc(func() []any {
			mu.Lock()
			cycles++
			mu.Unlock()
			return []any{&sensor{ID: "s-1"}}
		}), quietLogger())
	require.NoError(t, err)

	require.NoError(t, runner.Start(context.Background()))
	assert.Error(t, runner.Start(context.Background()), "double start is rejected")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return cycles >= 2
	}, time.Second, 5*time.Millisecond, "the first cycle runs immediately, then on ticks")

	require.NoError(t, runner.Stop(time.Second))
	assert.Error(t, runner.Stop(time.Second), "double stop is rejected")
	assert.Equal(t, 1, env.store.StreamCount())
}
