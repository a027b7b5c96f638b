// Package metric provides Prometheus-based metrics collection and an HTTP
// server for nodewatcher monitoring and observability.
//
// The package offers a centralized metrics registry managing both core
// platform metrics (service status, stream store traffic, monitoring cycles,
// NATS health) and custom service-specific metrics. It includes an HTTP
// server exposing metrics in Prometheus format for monitoring system
// integration.
//
// # Architecture
//
// The package follows a three-layer design:
//
//  1. Core Metrics: Platform-level metrics automatically registered (Metrics type)
//  2. Service Registry: Extensible registration for service-specific metrics (MetricsRegistrar interface)
//  3. HTTP Server: Metrics endpoint with health checks (Server type)
//
// This architecture separates infrastructure concerns (core metrics) from
// application concerns (service-specific metrics) while providing a unified
// metrics endpoint for monitoring systems.
//
// # Core metrics
//
// Core metrics cover the platform surfaces every deployment has:
//
//   - nodewatcher_service_status: lifecycle state per service
//   - nodewatcher_streams_ensured_total: stream ensure requests by outcome
//     (ok, inconsistent, error)
//   - nodewatcher_datapoints_appended_total: datapoint appends by outcome
//   - nodewatcher_streams_deleted_total: stream delete requests by outcome
//   - nodewatcher_store_request_duration_seconds: store round-trip latency
//     per operation
//   - nodewatcher_monitor_cycles_total / cycle_duration_seconds: monitoring
//     pipeline passes
//   - nodewatcher_monitor_models_processed_total: monitored objects per
//     cycle outcome
//   - nodewatcher_errors_total: errors by classification (transient,
//     invalid, fatal)
//   - nodewatcher_nats_*: NATS connection health
//
// # Basic Usage
//
// Setting up metrics collection and HTTP server:
//
//	registry := metric.NewMetricsRegistry()
//	securityCfg := security.Config{} // Platform security config
//	server := metric.NewServer(9090, "/metrics", registry, securityCfg)
//
//	go func() {
//	    if err := server.Start(); err != nil && err != http.ErrServerClosed {
//	        log.Printf("Metrics server error: %v", err)
//	    }
//	}()
//
//	// Record core platform metrics
//	coreMetrics := registry.CoreMetrics()
//	coreMetrics.RecordServiceStatus("monitord", 2)
//	coreMetrics.RecordStreamEnsured("monitord", "ok")
//	coreMetrics.RecordNATSStatus(true)
//
// # Service-specific metrics
//
// Services register their own metrics through the MetricsRegistrar
// interface. The registry tracks registrations per service and rejects
// duplicates both at its own level and at the Prometheus level:
//
//	scraped := prometheus.NewCounter(prometheus.CounterOpts{
//	    Namespace: "nodewatcher",
//	    Subsystem: "collector",
//	    Name:      "nodes_scraped_total",
//	    Help:      "Total number of nodes scraped",
//	})
//	if err := registry.RegisterCounter("collector", "nodes_scraped_total", scraped); err != nil {
//	    return err
//	}
//
// # Instrumenting the stream store
//
// The datastream package ships an instrumented Store decorator that feeds
// the core store metrics. Wrap any Store implementation once at wiring time:
//
//	store = datastream.NewInstrumentedStore(store, "monitord", registry.CoreMetrics())
//
// All ensure/append/delete traffic then shows up under the nodewatcher_streams,
// nodewatcher_datapoints and nodewatcher_store subsystems with no further
// code changes.
//
// # Naming conventions
//
// All metrics use the "nodewatcher" namespace. Subsystems group related
// metrics (service, streams, datapoints, store, monitor, errors, health,
// nats). Counter names end in _total, durations in _seconds. Label
// cardinality stays bounded: services, operations and outcome statuses only,
// never stream identities or node names.
package metric
