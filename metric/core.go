package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains all platform-level metrics (not service-specific)
type Metrics struct {
	// Service metrics
	ServiceStatus     *prometheus.GaugeVec
	ErrorsTotal       *prometheus.CounterVec
	HealthCheckStatus *prometheus.GaugeVec

	// Stream store metrics
	StreamsEnsured       *prometheus.CounterVec
	DatapointsAppended   *prometheus.CounterVec
	StreamsDeleted       *prometheus.CounterVec
	StoreRequestDuration *prometheus.HistogramVec

	// Monitoring pipeline metrics
	CyclesTotal     *prometheus.CounterVec
	CycleDuration   *prometheus.HistogramVec
	ModelsProcessed *prometheus.CounterVec

	// NATS metrics
	NATSConnected  prometheus.Gauge
	NATSRTT        prometheus.Gauge
	NATSReconnects prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all platform metrics
func NewMetrics() *Metrics {
	return &Metrics{
		// Service metrics
		ServiceStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "nodewatcher",
				Subsystem: "service",
				Name:      "status",
				Help:      "Service status (0=stopped, 1=starting, 2=running, 3=stopping, 4=failed)",
			},
			[]string{"service"},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "nodewatcher",
				Subsystem: "errors",
				Name:      "total",
				Help:      "Total number of errors by classification",
			},
			[]string{"service", "class"},
		),

		HealthCheckStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "nodewatcher",
				Subsystem: "health",
				Name:      "status",
				Help:      "Health check status (0=unhealthy, 1=healthy)",
			},
			[]string{"service"},
		),

		// Stream store metrics
		StreamsEnsured: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "nodewatcher",
				Subsystem: "streams",
				Name:      "ensured_total",
				Help:      "Total number of stream ensure requests",
			},
			[]string{"service", "status"},
		),

		DatapointsAppended: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "nodewatcher",
				Subsystem: "datapoints",
				Name:      "appended_total",
				Help:      "Total number of datapoint append requests",
			},
			[]string{"service", "status"},
		),

		StreamsDeleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "nodewatcher",
				Subsystem: "streams",
				Name:      "deleted_total",
				Help:      "Total number of stream delete requests",
			},
			[]string{"service", "status"},
		),

		StoreRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "nodewatcher",
				Subsystem: "store",
				Name:      "request_duration_seconds",
				Help:      "Stream store request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"service", "operation"},
		),

		// Monitoring pipeline metrics
		CyclesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "nodewatcher",
				Subsystem: "monitor",
				Name:      "cycles_total",
				Help:      "Total number of monitoring cycles",
			},
			[]string{"service", "status"},
		),

		CycleDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "nodewatcher",
				Subsystem: "monitor",
				Name:      "cycle_duration_seconds",
				Help:      "Monitoring cycle duration in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"service"},
		),

		ModelsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "nodewatcher",
				Subsystem: "monitor",
				Name:      "models_processed_total",
				Help:      "Total number of monitored objects processed per cycle outcome",
			},
			[]string{"service", "status"},
		),

		// NATS metrics
		NATSConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "nodewatcher",
				Subsystem: "nats",
				Name:      "connected",
				Help:      "NATS connection status (0=disconnected, 1=connected)",
			},
		),

		NATSRTT: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "nodewatcher",
				Subsystem: "nats",
				Name:      "rtt_milliseconds",
				Help:      "NATS round-trip time in milliseconds",
			},
		),

		NATSReconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "nodewatcher",
				Subsystem: "nats",
				Name:      "reconnects_total",
				Help:      "Total number of NATS reconnections",
			},
		),
	}
}

// RecordServiceStatus updates service status metric
func (c *Metrics) RecordServiceStatus(service string, status int) {
	c.ServiceStatus.WithLabelValues(service).Set(float64(status))
}

// RecordError increments error counter
func (c *Metrics) RecordError(service, class string) {
	c.ErrorsTotal.WithLabelValues(service, class).Inc()
}

// RecordHealthStatus updates health check status
func (c *Metrics) RecordHealthStatus(service string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1.0
	}
	c.HealthCheckStatus.WithLabelValues(service).Set(value)
}

// RecordStreamEnsured increments the ensure counter
func (c *Metrics) RecordStreamEnsured(service, status string) {
	c.StreamsEnsured.WithLabelValues(service, status).Inc()
}

// RecordDatapointAppended increments the append counter
func (c *Metrics) RecordDatapointAppended(service, status string) {
	c.DatapointsAppended.WithLabelValues(service, status).Inc()
}

// RecordStreamsDeleted increments the delete counter
func (c *Metrics) RecordStreamsDeleted(service, status string) {
	c.StreamsDeleted.WithLabelValues(service, status).Inc()
}

// RecordStoreRequestDuration records one store request round trip
func (c *Metrics) RecordStoreRequestDuration(service, operation string, duration time.Duration) {
	c.StoreRequestDuration.WithLabelValues(service, operation).Observe(duration.Seconds())
}

// RecordCycle records one monitoring cycle with its outcome
func (c *Metrics) RecordCycle(service, status string, duration time.Duration) {
	c.CyclesTotal.WithLabelValues(service, status).Inc()
	c.CycleDuration.WithLabelValues(service).Observe(duration.Seconds())
}

// RecordModelProcessed increments the per-object processing counter
func (c *Metrics) RecordModelProcessed(service, status string) {
	c.ModelsProcessed.WithLabelValues(service, status).Inc()
}

// RecordNATSStatus updates NATS connection status
func (c *Metrics) RecordNATSStatus(connected bool) {
	value := 0.0
	if connected {
		value = 1.0
	}
	c.NATSConnected.Set(value)
}

// RecordNATSRTT updates NATS round-trip time
func (c *Metrics) RecordNATSRTT(rtt time.Duration) {
	c.NATSRTT.Set(float64(rtt.Milliseconds()))
}

// RecordNATSReconnect increments reconnection counter
func (c *Metrics) RecordNATSReconnect() {
	c.NATSReconnects.Inc()
}
