// Package nodewatcher maps monitoring data from community network nodes
// into tagged time-series streams.
//
// # Architecture
//
// The module is built around a declarative field-mapping core and a small
// set of infrastructure packages:
//
//	┌─────────────────────────────────────┐
//	│          monitor.Runner             │  collection cycles,
//	│   (interval, workers, rate limit)   │  worker fan-out
//	└─────────────────────────────────────┘
//	           ↓ processes models via
//	┌─────────────────────────────────────┐
//	│          fields.Engine              │  schemas, fields,
//	│   (registry.Pool of descriptors)    │  tag resolution
//	└─────────────────────────────────────┘
//	           ↓ ensures and appends on
//	┌─────────────────────────────────────┐
//	│         datastream.Store            │  memory backend or
//	│   (memory | natsstore over NATS)    │  NATS request/reply
//	└─────────────────────────────────────┘
//
// # Packages
//
// Core:
//   - datastream: store interface, tags, stream identity
//   - datastream/memory: in-process store for dev and tests
//   - datastream/natsstore: store client and server over NATS
//   - fields: field descriptors and the mapping engine
//   - registry: schema registration by model type
//
// Domain data:
//   - nodes: node inventory and monitoring models
//   - catalog: device capability catalog
//
// Daemon:
//   - monitor: the periodic collection runner
//   - config: layered JSON configuration
//   - cmd/monitord: daemon wiring
//
// Infrastructure:
//   - errors: classified error handling
//   - metric: Prometheus metrics and exposition server
//   - natsclient: NATS connection management
//   - pkg/buffer, pkg/cache, pkg/retry, pkg/worker: runtime utilities
//   - pkg/security, pkg/tlsutil, pkg/timestamp: supporting utilities
//
// # Binary
//
// Build and run the daemon:
//
//	go build ./cmd/monitord
//	./monitord --config configs/monitord.json
package nodewatcher
