package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	// The loader refuses paths outside the working directory.
	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(cwd) })
	return name
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, BackendMemory, cfg.Datastream.Backend)
	assert.Equal(t, 5*time.Minute, cfg.Monitor.Interval)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoadSingleLayer(t *testing.T) {
	path := writeConfigFile(t, "config.json", `{
		"monitor": {"interval": "30s", "workers": 4},
		"datastream": {"backend": "nats", "request_timeout": "2s"},
		"nats": {"urls": ["nats://one:4222", "nats://two:4222"]},
		"inventory": {"path": "nodes.yml"}
	}`)

	loader := NewLoader()
	loader.EnableValidation(true)
	cfg, err := loader.LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.Monitor.Interval)
	assert.Equal(t, 4, cfg.Monitor.Workers)
	assert.Equal(t, BackendNATS, cfg.Datastream.Backend)
	assert.Equal(t, 2*time.Second, cfg.Datastream.RequestTimeout)
	assert.Equal(t, []string{"nats://one:4222", "nats://two:4222"}, cfg.NATS.URLs)
	assert.Equal(t, "nodes.yml", cfg.Inventory.Path)

	// Untouched sections keep their defaults.
	assert.Equal(t, "nodewatcher.datastream", cfg.Datastream.SubjectPrefix)
	assert.Equal(t, 9090, cfg.Metrics.Port)
}

func TestLayersMergeKeyByKey(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base.json")
	override := filepath.Join(dir, "production.json")
	require.NoError(t, os.WriteFile(base, []byte(`{
		"monitor": {"interval": "1m", "workers": 2},
		"metrics": {"enabled": true, "port": 9100, "path": "/metrics"}
	}`), 0o600))
	require.NoError(t, os.WriteFile(override, []byte(`{
		"monitor": {"workers": 16}
	}`), 0o600))

	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(cwd) })

	loader := NewLoader()
	loader.AddLayer("base.json")
	loader.AddLayer("production.json")
	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, 16, cfg.Monitor.Workers, "override layer wins")
	assert.Equal(t, time.Minute, cfg.Monitor.Interval, "untouched key survives from the base layer")
	assert.Equal(t, 9100, cfg.Metrics.Port)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("NODEWATCHER_NATS_URLS", "nats://env-a:4222,nats://env-b:4222")
	t.Setenv("NODEWATCHER_MONITOR_INTERVAL", "45s")
	t.Setenv("NODEWATCHER_DATASTREAM_BACKEND", "nats")

	loader := NewLoader()
	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"nats://env-a:4222", "nats://env-b:4222"}, cfg.NATS.URLs)
	assert.Equal(t, 45*time.Second, cfg.Monitor.Interval)
	assert.Equal(t, BackendNATS, cfg.Datastream.Backend)
}

func TestEnvOverrideRejectsBadDuration(t *testing.T) {
	t.Setenv("NODEWATCHER_MONITOR_INTERVAL", "never")

	_, err := NewLoader().Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NODEWATCHER_MONITOR_INTERVAL")
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr string
	}{
		{
			name:    "zero interval",
			mutate:  func(cfg *Config) { cfg.Monitor.Interval = 0 },
			wantErr: "monitor.interval",
		},
		{
			name:    "zero workers",
			mutate:  func(cfg *Config) { cfg.Monitor.Workers = 0 },
			wantErr: "monitor.workers",
		},
		{
			name:    "negative rate",
			mutate:  func(cfg *Config) { cfg.Monitor.RateLimit = -1 },
			wantErr: "monitor.rate_limit",
		},
		{
			name:    "unknown backend",
			mutate:  func(cfg *Config) { cfg.Datastream.Backend = "postgres" },
			wantErr: "datastream.backend",
		},
		{
			name: "nats backend without urls",
			mutate: func(cfg *Config) {
				cfg.Datastream.Backend = BackendNATS
				cfg.NATS.URLs = nil
			},
			wantErr: "nats.urls",
		},
		{
			name:    "metrics port out of range",
			mutate:  func(cfg *Config) { cfg.Metrics.Port = 0 },
			wantErr: "metrics.port",
		},
		{
			name:    "metrics path without slash",
			mutate:  func(cfg *Config) { cfg.Metrics.Path = "metrics" },
			wantErr: "metrics.path",
		},
		{
			name:    "missing inventory",
			mutate:  func(cfg *Config) { cfg.Inventory.Path = "" },
			wantErr: "inventory.path",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateNormalizesBackendCase(t *testing.T) {
	cfg := Defaults()
	cfg.Datastream.Backend = "Memory"
	require.NoError(t, cfg.Validate())
	assert.Equal(t, BackendMemory, cfg.Datastream.Backend)
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	path := writeConfigFile(t, "bad.json", `{"monitor": `)
	_, err := NewLoader().LoadFile(path)
	require.Error(t, err)
}

func TestLoadRejectsNonJSONExtension(t *testing.T) {
	path := writeConfigFile(t, "config.yaml", `monitor: {}`)
	_, err := NewLoader().LoadFile(path)
	require.Error(t, err)
}

func TestLoadRejectsDeeplyNestedJSON(t *testing.T) {
	nested := strings.Repeat(`{"a":`, maxJSONDepth+1) + "1" + strings.Repeat("}", maxJSONDepth+1)
	path := writeConfigFile(t, "deep.json", nested)
	_, err := NewLoader().LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nesting too deep")
}

func TestLoadRejectsPathTraversal(t *testing.T) {
	_ = writeConfigFile(t, "config.json", `{}`)
	_, err := NewLoader().LoadFile(filepath.Join("..", "config.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path traversal")
}

func TestSafeConfigSwap(t *testing.T) {
	sc := NewSafeConfig(Defaults())

	got := sc.Get()
	got.Monitor.Workers = 99
	assert.Equal(t, 10, sc.Get().Monitor.Workers, "Get hands out copies")

	next := Defaults()
	next.Monitor.Workers = 3
	require.NoError(t, sc.Update(next))
	assert.Equal(t, 3, sc.Get().Monitor.Workers)

	broken := Defaults()
	broken.Monitor.Interval = 0
	require.Error(t, sc.Update(broken))
	assert.Equal(t, 3, sc.Get().Monitor.Workers, "failed update leaves config untouched")
}

func TestCloneIsDeep(t *testing.T) {
	cfg := Defaults()
	clone := cfg.Clone()
	clone.NATS.URLs[0] = "nats://mutated:4222"
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URLs[0])
}
