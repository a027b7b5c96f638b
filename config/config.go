package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mitjajez/nodewatcher/pkg/security"
)

// Datastream backend selectors.
const (
	BackendMemory = "memory" // in-process store, dev and tests
	BackendNATS   = "nats"   // remote store over NATS request/reply
)

// Config is the complete daemon configuration.
type Config struct {
	Monitor    MonitorConfig    `json:"monitor"`
	Datastream DatastreamConfig `json:"datastream"`
	NATS       NATSConfig       `json:"nats"`
	Metrics    MetricsConfig    `json:"metrics"`
	Catalog    CatalogConfig    `json:"catalog,omitempty"`
	Inventory  InventoryConfig  `json:"inventory"`
	Security   security.Config  `json:"security,omitempty"`
}

// MonitorConfig shapes the collection cycle.
type MonitorConfig struct {
	Interval  time.Duration `json:"interval"`             // time between cycle starts
	Workers   int           `json:"workers"`              // concurrent nodes per cycle
	RateLimit float64       `json:"rate_limit,omitempty"` // node starts per second, 0 = unlimited
}

// DatastreamConfig selects and tunes the stream store backend.
type DatastreamConfig struct {
	Backend        string        `json:"backend"`                   // memory | nats
	SubjectPrefix  string        `json:"subject_prefix,omitempty"`  // NATS subject prefix
	RequestTimeout time.Duration `json:"request_timeout,omitempty"` // per store request
}

// NATSConfig defines the NATS connection.
type NATSConfig struct {
	URLs          []string      `json:"urls,omitempty"`
	Username      string        `json:"username,omitempty"`
	Password      string        `json:"password,omitempty"`
	Token         string        `json:"token,omitempty"`
	MaxReconnects int           `json:"max_reconnects,omitempty"`
	ReconnectWait time.Duration `json:"reconnect_wait,omitempty"`
}

// MetricsConfig shapes the prometheus exposition server.
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Port    int    `json:"port,omitempty"`
	Path    string `json:"path,omitempty"`
}

// CatalogConfig lists device catalog locations.
type CatalogConfig struct {
	Paths []string `json:"paths,omitempty"` // directories of device YAML files
}

// InventoryConfig points at the static node inventory.
type InventoryConfig struct {
	Path string `json:"path"`
}

// Validate checks the configuration, normalizing where that is cheap.
func (c *Config) Validate() error {
	if c.Monitor.Interval <= 0 {
		return errors.New("monitor.interval must be positive")
	}
	if c.Monitor.Workers <= 0 {
		return errors.New("monitor.workers must be positive")
	}
	if c.Monitor.RateLimit < 0 {
		return errors.New("monitor.rate_limit cannot be negative")
	}

	c.Datastream.Backend = strings.ToLower(c.Datastream.Backend)
	switch c.Datastream.Backend {
	case BackendMemory:
	case BackendNATS:
		if len(c.NATS.URLs) == 0 {
			return errors.New("nats.urls is required for the nats datastream backend")
		}
	default:
		return fmt.Errorf("datastream.backend %q is not supported (memory or nats)", c.Datastream.Backend)
	}
	if c.Datastream.RequestTimeout < 0 {
		return errors.New("datastream.request_timeout cannot be negative")
	}

	if c.Metrics.Enabled {
		if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port %d is out of range", c.Metrics.Port)
		}
		if !strings.HasPrefix(c.Metrics.Path, "/") {
			return fmt.Errorf("metrics.path %q must start with /", c.Metrics.Path)
		}
	}

	if c.Inventory.Path == "" {
		return errors.New("inventory.path is required")
	}

	if err := c.validateSecurity(); err != nil {
		return fmt.Errorf("security configuration: %w", err)
	}
	return nil
}

// validateSecurity checks the TLS material referenced by the config.
func (c *Config) validateSecurity() error {
	if c.Security.TLS.Server.Enabled {
		if c.Security.TLS.Server.CertFile == "" {
			return errors.New("tls.server.cert_file is required when TLS is enabled")
		}
		if c.Security.TLS.Server.KeyFile == "" {
			return errors.New("tls.server.key_file is required when TLS is enabled")
		}
		if _, err := os.Stat(c.Security.TLS.Server.CertFile); err != nil {
			return fmt.Errorf("tls.server.cert_file: %w", err)
		}
		if _, err := os.Stat(c.Security.TLS.Server.KeyFile); err != nil {
			return fmt.Errorf("tls.server.key_file: %w", err)
		}
		if c.Security.TLS.Server.MinVersion != "" {
			if err := validateTLSVersion(c.Security.TLS.Server.MinVersion); err != nil {
				return fmt.Errorf("tls.server.min_version: %w", err)
			}
		}
	}

	for i, caFile := range c.Security.TLS.Client.CAFiles {
		if _, err := os.Stat(caFile); err != nil {
			return fmt.Errorf("tls.client.ca_files[%d]: %w", i, err)
		}
	}
	if c.Security.TLS.Client.MinVersion != "" {
		if err := validateTLSVersion(c.Security.TLS.Client.MinVersion); err != nil {
			return fmt.Errorf("tls.client.min_version: %w", err)
		}
	}
	return nil
}

func validateTLSVersion(version string) error {
	switch version {
	case "1.2", "1.3":
		return nil
	default:
		return fmt.Errorf("invalid TLS version %q (must be \"1.2\" or \"1.3\")", version)
	}
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	if c == nil {
		return &Config{}
	}

	data, err := json.Marshal(c)
	if err != nil {
		copied := *c
		return &copied
	}
	var clone Config
	if err := json.Unmarshal(data, &clone); err != nil {
		copied := *c
		return &copied
	}
	return &clone
}

// String returns an indented JSON rendering, for logs and debugging.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// SaveToFile writes the configuration as JSON with restrictive permissions.
func (c *Config) SaveToFile(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return safeWriteFile(path, data)
}

// SafeConfig provides thread-safe access to a configuration that may be
// swapped at runtime.
type SafeConfig struct {
	mu     sync.RWMutex
	config *Config
}

// NewSafeConfig wraps cfg. A nil cfg is replaced with an empty one.
func NewSafeConfig(cfg *Config) *SafeConfig {
	if cfg == nil {
		cfg = &Config{}
	}
	return &SafeConfig{config: cfg}
}

// Get returns a deep copy of the current configuration.
func (sc *SafeConfig) Get() *Config {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.config.Clone()
}

// Update atomically replaces the configuration after validation.
func (sc *SafeConfig) Update(cfg *Config) error {
	if cfg == nil {
		return errors.New("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.config = cfg
	return nil
}
