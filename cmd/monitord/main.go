// Package main implements the entry point for the monitord daemon.
// monitord periodically maps monitoring models from the node inventory
// into time-series streams through the registered field descriptors.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/mitjajez/nodewatcher/catalog"
	"github.com/mitjajez/nodewatcher/config"
	"github.com/mitjajez/nodewatcher/datastream"
	"github.com/mitjajez/nodewatcher/datastream/memory"
	"github.com/mitjajez/nodewatcher/datastream/natsstore"
	"github.com/mitjajez/nodewatcher/fields"
	"github.com/mitjajez/nodewatcher/metric"
	"github.com/mitjajez/nodewatcher/monitor"
	"github.com/mitjajez/nodewatcher/natsclient"
	"github.com/mitjajez/nodewatcher/nodes"
	"github.com/mitjajez/nodewatcher/pkg/cache"
	"github.com/mitjajez/nodewatcher/pkg/retry"
	"github.com/mitjajez/nodewatcher/registry"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "monitord"
)

// ensureCacheSize bounds the in-process ensure memo. Sized for a few
// thousand nodes with a handful of streams each.
const ensureCacheSize = 16384

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg, logger, shouldExit, err := initializeCLI()
	if shouldExit || err != nil {
		return err
	}

	cfg, err := loadConfiguration(cliCfg)
	if err != nil {
		return err
	}

	if cliCfg.Validate {
		slog.Info("Configuration is valid")
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsRegistry := metric.NewMetricsRegistry()
	coreMetrics := metricsRegistry.CoreMetrics()

	pool, inventory, err := loadSchemas(cfg, logger)
	if err != nil {
		return err
	}

	store, storeCleanup, err := buildStore(ctx, cfg, logger, coreMetrics)
	if err != nil {
		return err
	}
	defer storeCleanup()

	engine, err := fields.NewEngine(store, pool)
	if err != nil {
		return fmt.Errorf("failed to create field engine: %w", err)
	}

	runner, err := monitor.NewRunner(monitor.Config{
		Interval:  cfg.Monitor.Interval,
		Workers:   cfg.Monitor.Workers,
		RateLimit: cfg.Monitor.RateLimit,
	}, engine, inventory, logger, monitor.WithMetrics(coreMetrics))
	if err != nil {
		return fmt.Errorf("failed to create monitor runner: %w", err)
	}

	if cfg.Metrics.Enabled {
		metricsServer := metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, metricsRegistry, cfg.Security)
		if err := metricsServer.Start(); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		defer func() {
			if err := metricsServer.Stop(); err != nil {
				slog.Warn("Metrics server shutdown failed", "error", err)
			}
		}()
		slog.Info("Metrics server started", "address", metricsServer.Address(), "path", cfg.Metrics.Path)
	}

	if err := runner.Start(ctx); err != nil {
		return fmt.Errorf("failed to start monitor runner: %w", err)
	}
	coreMetrics.RecordServiceStatus(appName, 1)
	slog.Info("monitord started",
		"interval", cfg.Monitor.Interval,
		"workers", cfg.Monitor.Workers,
		"backend", cfg.Datastream.Backend)

	<-ctx.Done()
	slog.Info("Shutdown signal received", "timeout", cliCfg.ShutdownTimeout)
	coreMetrics.RecordServiceStatus(appName, 0)

	if err := runner.Stop(cliCfg.ShutdownTimeout); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	slog.Info("monitord stopped")
	return nil
}

// initializeCLI parses flags and sets up logging
func initializeCLI() (*CLIConfig, *slog.Logger, bool, error) {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return nil, nil, false, fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil, nil, true, nil
	}

	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil, nil, true, nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	slog.Info("Starting monitord (node monitoring daemon)",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath)

	return cliCfg, logger, false, nil
}

func loadConfiguration(cliCfg *CLIConfig) (*config.Config, error) {
	loader := config.NewLoader()
	loader.EnableValidation(true)

	cfg, err := loader.LoadFile(cliCfg.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// loadSchemas builds the field descriptor pool from the schema catalog and
// loads the node inventory the runner will walk.
func loadSchemas(cfg *config.Config, logger *slog.Logger) (*registry.Pool, *nodes.Inventory, error) {
	cat := catalog.NewRegistry()
	for _, dir := range cfg.Catalog.Paths {
		if err := cat.LoadDir(dir); err != nil {
			return nil, nil, fmt.Errorf("failed to load device catalog from %s: %w", dir, err)
		}
	}

	inventory, err := nodes.LoadInventory(cfg.Inventory.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load inventory: %w", err)
	}

	pool := registry.NewPool()
	adapter, err := nodes.NewAdapter(nodes.WithDeviceTags(cat.DeviceTags))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create node adapter: %w", err)
	}
	if err := adapter.RegisterWith(pool); err != nil {
		return nil, nil, fmt.Errorf("failed to register node descriptors: %w", err)
	}

	logger.Info("Schemas loaded",
		"catalog_dirs", len(cfg.Catalog.Paths),
		"devices", len(cat.Identifiers()))

	return pool, inventory, nil
}

// buildStore creates the datastream backend named by the configuration and
// wraps it with the ensure memo and request instrumentation. The returned
// cleanup releases the backend's resources and is safe to call on a memory
// store too.
func buildStore(ctx context.Context, cfg *config.Config, logger *slog.Logger,
	metrics *metric.Metrics) (datastream.Store, func(), error) {
	var base datastream.Store
	cleanup := func() {}

	switch cfg.Datastream.Backend {
	case config.BackendMemory:
		base = memory.New()

	case config.BackendNATS:
		nc, err := connectNATS(ctx, cfg, logger, metrics)
		if err != nil {
			return nil, nil, err
		}
		client, err := natsstore.NewClient(nc.Conn(),
			natsstore.WithPrefix(cfg.Datastream.SubjectPrefix),
			natsstore.WithRequestTimeout(cfg.Datastream.RequestTimeout))
		if err != nil {
			_ = nc.Close(ctx)
			return nil, nil, fmt.Errorf("failed to create datastream client: %w", err)
		}
		base = client
		cleanup = func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := nc.Close(closeCtx); err != nil {
				slog.Warn("NATS client shutdown failed", "error", err)
			}
		}

	default:
		return nil, nil, fmt.Errorf("unknown datastream backend: %s", cfg.Datastream.Backend)
	}

	ids, err := cache.NewLRU[datastream.StreamID](ensureCacheSize)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to create ensure cache: %w", err)
	}

	store := datastream.NewInstrumentedStore(
		datastream.NewCachedStore(base, ids), appName, metrics)
	return store, cleanup, nil
}

// connectNATS builds the NATS client from the configuration and connects,
// retrying persistently while the signal context stays alive. The daemon is
// useless without its store, so it keeps trying instead of crash-looping
// under a supervisor.
func connectNATS(ctx context.Context, cfg *config.Config, logger *slog.Logger,
	metrics *metric.Metrics) (*natsclient.Client, error) {
	opts := []natsclient.Option{
		natsclient.WithName(appName),
		natsclient.WithLogger(logger),
		natsclient.WithMetrics(metrics),
		natsclient.WithMaxReconnects(cfg.NATS.MaxReconnects),
		natsclient.WithReconnectWait(cfg.NATS.ReconnectWait),
	}
	if cfg.NATS.Username != "" {
		opts = append(opts, natsclient.WithCredentials(cfg.NATS.Username, cfg.NATS.Password))
	}
	if cfg.NATS.Token != "" {
		opts = append(opts, natsclient.WithToken(cfg.NATS.Token))
	}
	if cfg.Security.TLS.Client.Enabled {
		opts = append(opts, natsclient.WithTLS(cfg.Security.TLS.Client))
	}

	nc, err := natsclient.New(cfg.NATS.URLs, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create NATS client: %w", err)
	}

	if err := retry.Do(ctx, retry.Persistent(), func() error {
		return nc.Connect(ctx)
	}); err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return nc, nil
}
