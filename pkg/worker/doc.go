// Package worker provides a generic, thread-safe worker pool for concurrent task processing.
//
// # Overview
//
// The worker package implements a worker pool with:
//   - Generic type support for type-safe work processing
//   - Bounded queues with backpressure (non-blocking submit)
//   - Context-aware cancellation and graceful shutdown
//   - Dual-tracking observability (always-on statistics + optional Prometheus metrics)
//   - Configurable worker count and queue sizing
//
// The primary consumer is the stream store service, which fans incoming
// ensure/append/delete requests out across a fixed set of workers, but the
// pool is generic and processes any work type.
//
// # Core Concepts
//
// Worker Pool Pattern:
//
// The pool manages a fixed number of goroutines (workers) that process work
// items from a bounded channel (queue). This provides:
//   - Resource control: Fixed memory and goroutine overhead
//   - Backpressure: Queue fills when workers can't keep up
//   - Load distribution: Work items distributed across workers
//   - Observability: Statistics on throughput, latency, and queue depth
//
// Generic Type Safety:
//
// Using Go generics, the pool processes any work type T without type assertions:
//
//	pool, err := worker.NewPool[*storeRequest](
//	    10,    // workers
//	    1000,  // queue size
//	    func(ctx context.Context, req *storeRequest) error {
//	        return srv.handle(ctx, req)
//	    },
//	)
//
// Dual-Tracking Observability:
//
//   - Statistics: ALWAYS tracked using atomic operations (zero-allocation)
//   - Metrics: OPTIONAL Prometheus metrics for external monitoring
//
// # Architecture Decisions
//
// Non-Blocking Submit with Backpressure:
//
// Submit() uses a non-blocking send (select with default case) rather than
// blocking on a full queue. This provides:
//   - Predictable latency: Callers never block waiting for queue space
//   - Clear semantics: ErrQueueFull indicates system overload
//   - Backpressure signal: Dropped work indicates workers can't keep up
//
// For the store service this matters because a request that cannot be queued
// must be answered with an overload error while the client still holds the
// reply inbox; blocking would burn the client's request timeout instead.
//
// Context-Based Cancellation:
//
// Workers receive context from Start() and check it on each iteration:
//   - Clean shutdown: In-flight work completes, no new work starts
//   - Timeout enforcement: Caller can use context.WithTimeout
//   - Cancellation propagation: Work processors receive same context
//
// Graceful Shutdown with Timeout:
//
// Stop(timeout) provides best-effort graceful shutdown:
//  1. Close work channel (no new submissions)
//  2. Workers drain remaining queue items
//  3. Wait for all workers with timeout
//  4. Return ErrStopTimeout if workers don't finish
//
// Individual workers don't have per-worker timeouts. If you need per-work-item
// timeouts, implement them in the processor function using the context.
//
// # Usage
//
// Basic pool:
//
//	pool, err := worker.NewPool[Job](
//	    5,     // 5 workers
//	    100,   // queue holds 100 jobs
//	    func(ctx context.Context, job Job) error {
//	        return process(ctx, job)
//	    },
//	)
//	if err != nil {
//	    return err
//	}
//
//	if err := pool.Start(ctx); err != nil {
//	    return err
//	}
//	defer pool.Stop(5 * time.Second)
//
//	if err := pool.Submit(job); err != nil {
//	    if errors.Is(err, worker.ErrQueueFull) {
//	        // overloaded: reject or back off
//	    }
//	}
//
// With Prometheus metrics:
//
//	pool, err := worker.NewPool[Job](
//	    10, 1000, processJob,
//	    worker.WithMetricsRegistry[Job](registry, "store_requests"),
//	)
//
//	// Metrics exposed (all labeled component="store_requests"):
//	// - nodewatcher_worker_queue_depth
//	// - nodewatcher_worker_utilization (queue depth / queue size)
//	// - nodewatcher_worker_submitted_total
//	// - nodewatcher_worker_processed_total
//	// - nodewatcher_worker_failed_total
//	// - nodewatcher_worker_dropped_total (queue full)
//	// - nodewatcher_worker_processing_duration_seconds (histogram by status)
//
// # Thread Safety
//
// All public methods are safe for concurrent use:
//
//   - Submit(): guarded by the lifecycle mutex so a concurrent Stop cannot
//     close the channel mid-send
//   - Start()/Stop(): protected by the lifecycle mutex
//   - Stats(): atomic loads, no locks required
//
// Lifecycle guarantees:
//   - Start() can only be called once
//   - Submit() fails if not started or already stopped
//   - Stop() is idempotent (safe to call multiple times)
//   - Workers complete in-flight work before exiting
//
// # Error Handling
//
// The worker package uses plain sentinel errors (not the classified error
// framework) because pool errors are always programming errors or resource
// exhaustion:
//
//   - ErrPoolNotStarted: Submit before Start
//   - ErrPoolAlreadyStarted: Start called twice
//   - ErrPoolStopped: expected after Stop()
//   - ErrQueueFull: backpressure signal
//   - ErrNilProcessor: validation failure at construction
//   - ErrStopTimeout: workers stuck past the shutdown deadline
//
// Processor functions can return classified errors and the pool tracks them
// in the failed counter, but doesn't interpret them.
//
// # Known Limitations
//
//  1. No per-work-item timeout: implement in the processor function
//  2. No priority queues: all work processed FIFO
//  3. No work cancellation: can't cancel individual queued items
//  4. Queue depth metrics: 1-second granularity (ticker-based)
//  5. No dynamic worker scaling: worker count is fixed at construction
//
// These are design decisions, not bugs. The package prioritizes simplicity,
// predictability, and correctness over feature richness.
//
// # See Also
//
//   - buffer package: for buffering with overflow policies
//   - retry package: for retry logic with exponential backoff
//   - metric package: for metrics registry integration
package worker
