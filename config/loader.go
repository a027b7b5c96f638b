package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// envPrefix namespaces the environment overrides.
const envPrefix = "NODEWATCHER"

// Loader loads configuration from layered JSON files with environment
// overrides. Later layers win over earlier ones; only keys present in a
// layer override the merged result so far.
type Loader struct {
	layers     []string
	validation bool
}

// NewLoader creates a configuration loader with no layers.
func NewLoader() *Loader {
	return &Loader{}
}

// AddLayer appends a configuration file layer.
func (l *Loader) AddLayer(path string) {
	l.layers = append(l.layers, path)
}

// EnableValidation toggles Validate() on the loaded result.
func (l *Loader) EnableValidation(enable bool) {
	l.validation = enable
}

// LoadFile loads configuration from a single file, replacing any layers
// added so far.
func (l *Loader) LoadFile(path string) (*Config, error) {
	l.layers = []string{path}
	return l.Load()
}

// Load merges defaults, file layers and environment overrides.
func (l *Loader) Load() (*Config, error) {
	cfg := Defaults()

	for _, path := range l.layers {
		raw, err := l.loadRawJSON(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
		cfg = l.mergeFromMap(cfg, raw)
	}

	if err := l.applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if l.validation {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Monitor: MonitorConfig{
			Interval: 5 * time.Minute,
			Workers:  10,
		},
		Datastream: DatastreamConfig{
			Backend:        BackendMemory,
			SubjectPrefix:  "nodewatcher.datastream",
			RequestTimeout: 10 * time.Second,
		},
		NATS: NATSConfig{
			URLs:          []string{"nats://localhost:4222"},
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
		Inventory: InventoryConfig{
			Path: "inventory.yml",
		},
	}
}

// loadRawJSON reads one layer as a map so the merge only sees keys the file
// actually sets.
func (l *Loader) loadRawJSON(path string) (map[string]any, error) {
	data, err := safeReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := validateJSONDepth(data); err != nil {
		return nil, fmt.Errorf("invalid JSON structure: %w", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	parseDurations(raw)
	return raw, nil
}

// mergeFromMap overlays a raw layer onto the config built so far.
func (l *Loader) mergeFromMap(base *Config, override map[string]any) *Config {
	if override == nil {
		return base
	}

	baseJSON, err := json.Marshal(base)
	if err != nil {
		return base
	}
	var baseMap map[string]any
	if err := json.Unmarshal(baseJSON, &baseMap); err != nil {
		return base
	}

	mergedMap := deepMergeMaps(baseMap, override)

	mergedJSON, err := json.Marshal(mergedMap)
	if err != nil {
		return base
	}
	var merged Config
	if err := json.Unmarshal(mergedJSON, &merged); err != nil {
		return base
	}
	return &merged
}

// deepMergeMaps recursively merges two maps, override winning on leaves.
func deepMergeMaps(base, override map[string]any) map[string]any {
	result := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		result[k] = v
	}
	for k, v := range override {
		if v == nil {
			continue
		}
		if baseMap, ok := base[k].(map[string]any); ok {
			if overrideMap, ok := v.(map[string]any); ok {
				result[k] = deepMergeMaps(baseMap, overrideMap)
				continue
			}
		}
		result[k] = v
	}
	return result
}

// parseDurations rewrites duration strings into nanoseconds so the merged
// map unmarshals into time.Duration fields.
func parseDurations(raw map[string]any) {
	parseDurationKey(raw, "monitor", "interval")
	parseDurationKey(raw, "datastream", "request_timeout")
	parseDurationKey(raw, "nats", "reconnect_wait")
}

func parseDurationKey(raw map[string]any, section, key string) {
	sec, ok := raw[section].(map[string]any)
	if !ok {
		return
	}
	s, ok := sec[key].(string)
	if !ok {
		return
	}
	if d, err := time.ParseDuration(s); err == nil {
		sec[key] = d.Nanoseconds()
	}
}

// applyEnvOverrides applies NODEWATCHER_* environment variables on top of
// the merged configuration.
func (l *Loader) applyEnvOverrides(cfg *Config) error {
	overrides := []struct {
		key   string
		apply func(val string) error
	}{
		{"NATS_URLS", func(val string) error {
			cfg.NATS.URLs = strings.Split(val, ",")
			return nil
		}},
		{"NATS_USERNAME", func(val string) error {
			cfg.NATS.Username = val
			return nil
		}},
		{"NATS_PASSWORD", func(val string) error {
			cfg.NATS.Password = val
			return nil
		}},
		{"NATS_TOKEN", func(val string) error {
			cfg.NATS.Token = val
			return nil
		}},
		{"DATASTREAM_BACKEND", func(val string) error {
			cfg.Datastream.Backend = val
			return nil
		}},
		{"DATASTREAM_PREFIX", func(val string) error {
			cfg.Datastream.SubjectPrefix = val
			return nil
		}},
		{"MONITOR_INTERVAL", func(val string) error {
			d, err := time.ParseDuration(val)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			cfg.Monitor.Interval = d
			return nil
		}},
		{"MONITOR_WORKERS", func(val string) error {
			n, err := strconv.Atoi(val)
			if err != nil {
				return fmt.Errorf("invalid integer: %w", err)
			}
			cfg.Monitor.Workers = n
			return nil
		}},
		{"METRICS_PORT", func(val string) error {
			n, err := strconv.Atoi(val)
			if err != nil {
				return fmt.Errorf("invalid integer: %w", err)
			}
			cfg.Metrics.Port = n
			return nil
		}},
		{"INVENTORY_PATH", func(val string) error {
			cfg.Inventory.Path = val
			return nil
		}},
	}

	for _, o := range overrides {
		key := envPrefix + "_" + o.key
		val := os.Getenv(key)
		if val == "" {
			continue
		}
		if err := validateEnvVar(key, val); err != nil {
			return err
		}
		if err := o.apply(val); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}
	return nil
}
