// Package cache provides high-performance, thread-safe caching implementations with
// built-in statistics tracking and optional Prometheus metrics integration.
//
// # Overview
//
// The cache package offers two cache implementations with different eviction strategies:
//   - Simple: No eviction (manual cleanup only)
//   - LRU: Least Recently Used eviction
//
// All implementations are generic, thread-safe, and provide comprehensive observability
// through always-on statistics and optional metrics.
//
// # Quick Start
//
// Simple cache creation:
//
//	cache, _ := cache.NewSimple[string]()
//	cache.Set("key", "value")
//	value, ok := cache.Get("key")
//
// LRU cache with capacity limit:
//
//	cache, err := cache.NewLRU[datastream.StreamID](1000)
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Config-driven creation (strategy picked by the operator):
//
//	cache, err := cache.NewFromConfig[datastream.StreamID](cfg,
//		cache.WithMetrics[datastream.StreamID](registry, "stream_ids"),
//	)
//
// # Cache Types and Eviction Policies
//
// Simple Cache (No Eviction):
//
// Items remain in cache until explicitly deleted or cache is cleared. Best for
// small, stable datasets where manual control is desired, such as memoizing
// stream identifiers for a bounded node population.
//
//	cache, _ := cache.NewSimple[V]()
//
// LRU Cache (Capacity-Based):
//
// Evicts least recently used items when maximum capacity is reached. Best for
// fixed-size caches where recent access patterns indicate importance.
//
//	cache, _ := cache.NewLRU[V](maxSize)
//
// # Observability Architecture
//
// The cache package implements a dual-tracking pattern for comprehensive observability:
//
// Statistics (Always On):
//   - Tracks all operations using atomic counters
//   - Zero configuration required
//   - Available via cache.Stats()
//   - Provides computed metrics (hit ratio, requests/sec)
//   - No external dependencies
//
// Prometheus Metrics (Optional):
//   - Enabled via WithMetrics() option
//   - Exports to Prometheus for time-series monitoring
//   - Includes component labels for instance identification
//   - Standard metric types (Counter, Gauge)
//
// # Design Decision: Dual Tracking Pattern
//
// Both Statistics and Metrics track operations independently, which appears redundant
// but serves distinct operational purposes:
//
// 1. Independence: Statistics work without Prometheus dependency
//   - Always available for debugging, even in minimal deployments
//   - No external infrastructure required for basic observability
//   - Critical for tests and local development
//
// 2. Computed Metrics: Statistics provide derived values not available in raw Prometheus
//   - Hit ratio (hits / total requests)
//   - Requests per second with built-in timing
//   - Miss ratio (misses / total requests)
//
// 3. Different Use Cases:
//   - Statistics: Programmatic access, debugging, tests, runtime inspection
//   - Metrics: Time-series analysis, Grafana dashboards, alerting, production monitoring
//
// # Functional Options Pattern
//
// The package uses functional options for clean, composable configuration:
//
//	cache, err := cache.NewLRU[V](capacity,
//		cache.WithMetrics[V](registry, "component"),
//		cache.WithEvictionCallback[V](callback),
//	)
//
// Available options:
//   - WithMetrics: Enable Prometheus metrics export
//   - WithEvictionCallback: Get notified when items are evicted
//
// # Thread Safety
//
// All cache operations are thread-safe for concurrent use:
//   - Multiple goroutines can read concurrently (RWMutex for reads)
//   - Writes are serialized with mutex protection
//   - Statistics use atomic operations (lock-free)
//   - Metrics use Prometheus atomic types
//   - Eviction callbacks are called outside locks to prevent deadlocks
//
// # Performance Characteristics
//
// Simple Cache:
//   - Get: O(1) map lookup
//   - Set: O(1) map insert
//   - Delete: O(1) map delete
//   - Memory: O(n) where n is number of items
//
// LRU Cache:
//   - Get: O(1) map lookup + list move
//   - Set: O(1) map insert + list append/evict
//   - Delete: O(1) map delete + list remove
//   - Memory: O(n) map + list overhead
//
// # Generic Type Support
//
// Caches are fully generic and work with any Go type:
//
//	stringCache, _ := cache.NewSimple[string]()
//	intCache, _ := cache.NewLRU[int](100)
//
// Type constraints:
//   - Keys are always strings (for consistent hashing and comparison)
//   - Values can be any type V
//   - No serialization required - stores values directly in memory
//
// # Testing
//
// The package includes comprehensive tests with race detection. Statistics make
// testing cache behavior easy:
//
//	cache, _ := cache.NewSimple[int]()
//	cache.Set("key", 42)
//	_, _ = cache.Get("key")
//	_, _ = cache.Get("missing")
//
//	assert.Equal(t, int64(1), cache.Stats().Hits())
//	assert.Equal(t, int64(1), cache.Stats().Misses())
//	assert.Equal(t, 0.5, cache.Stats().HitRatio())
package cache
