// Package monitor runs the collection pipeline: every interval it lists the
// monitored models and materializes every declared field of every model into
// the stream store through the fields engine.
//
// The runner honors the engine's concurrency contract: models fan out over a
// bounded worker set, but each model is processed by exactly one goroutine
// at a time and cycles never overlap, so every descriptor sees a
// single-logical-thread traversal.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/mitjajez/nodewatcher/errors"
	"github.com/mitjajez/nodewatcher/fields"
	"github.com/mitjajez/nodewatcher/metric"
)

// ModelLister supplies the models to process each cycle.
type ModelLister interface {
	ListModels() []any
}

// CyclePreparer is implemented by descriptors that refresh runtime state
// (for example a dynamic sum's source list) before their schema is walked.
type CyclePreparer interface {
	PrepareCycle() error
}

// Config holds the runner settings.
type Config struct {
	// Interval between cycle starts.
	Interval time.Duration
	// Workers bounds how many models are processed concurrently.
	Workers int
	// RateLimit caps model processing starts per second; zero disables the
	// limiter.
	RateLimit float64
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Interval <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "monitor", "Validate",
			"interval must be positive")
	}
	if c.Workers <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "monitor", "Validate",
			"workers must be positive")
	}
	if c.RateLimit < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "monitor", "Validate",
			"rate limit cannot be negative")
	}
	return nil
}

// Runner drives monitoring cycles.
type Runner struct {
	config  Config
	engine  *fields.Engine
	lister  ModelLister
	logger  *slog.Logger
	metrics *metric.Metrics
	limiter *rate.Limiter
	now     func() time.Time

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithMetrics records cycle and model metrics.
func WithMetrics(m *metric.Metrics) RunnerOption {
	return func(r *Runner) { r.metrics = m }
}

// WithClock replaces the cycle timestamp source.
func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) { r.now = now }
}

// NewRunner creates a runner over the engine and model source.
func NewRunner(
	config Config, engine *fields.Engine, lister ModelLister,
	logger *slog.Logger, opts ...RunnerOption,
) (*Runner, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if engine == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "monitor", "NewRunner",
			"engine cannot be nil")
	}
	if lister == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "monitor", "NewRunner",
			"model lister cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &Runner{
		config: config,
		engine: engine,
		lister: lister,
		logger: logger.With("component", "monitor"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if config.RateLimit > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(config.RateLimit), config.Workers)
	}
	return r, nil
}

// Start launches the cycle loop. The first cycle runs immediately.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "monitor", "Start", "runner already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	r.started = true

	go r.loop(runCtx)
	r.logger.Info("monitor runner started",
		"interval", r.config.Interval, "workers", r.config.Workers)
	return nil
}

// Stop cancels the loop and waits up to timeout for the current cycle to
// finish.
func (r *Runner) Stop(timeout time.Duration) error {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return errors.WrapInvalid(errors.ErrNotStarted, "monitor", "Stop", "runner not started")
	}
	cancel, done := r.cancel, r.done
	r.started = false
	r.mu.Unlock()

	cancel()
	select {
	case <-done:
		r.logger.Info("monitor runner stopped")
		return nil
	case <-time.After(timeout):
		return errors.WrapTransient(errors.ErrShuttingDown, "monitor", "Stop",
			"cycle did not finish before timeout")
	}
}

func (r *Runner) loop(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	// Cycles never overlap: the next tick waits for RunCycle to return.
	r.RunCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RunCycle(ctx)
		}
	}
}

// CycleStats summarizes one cycle.
type CycleStats struct {
	Models      int
	Failed      int
	FieldErrors int
	StoreErrors int
	Duration    time.Duration
}

// RunCycle processes every listed model once and returns the cycle summary.
func (r *Runner) RunCycle(ctx context.Context) CycleStats {
	start := time.Now()
	at := r.now()
	models := r.lister.ListModels()

	var (
		mu    sync.Mutex
		stats = CycleStats{Models: len(models)}
	)

	g, gctx := errgroup.WithContext(context.WithoutCancel(ctx))
	g.SetLimit(r.config.Workers)
	for _, model := range models {
		if ctx.Err() != nil {
			break
		}
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				break
			}
		}
		model := model
		g.Go(func() error {
			result := r.processModel(gctx, model, at)
			if r.metrics != nil {
				status := "success"
				if result.failed {
					status = "failed"
				}
				r.metrics.RecordModelProcessed("monitor", status)
			}
			mu.Lock()
			stats.FieldErrors += result.fieldErrors
			stats.StoreErrors += result.storeErrors
			if result.failed {
				stats.Failed++
			}
			mu.Unlock()
			return nil
		})
	}
	// Workers always return nil; failures land in stats.
	_ = g.Wait()

	stats.Duration = time.Since(start)
	if r.metrics != nil {
		outcome := "success"
		if stats.Failed > 0 {
			outcome = "partial"
		}
		r.metrics.RecordCycle("monitor", outcome, stats.Duration)
	}
	r.logger.Debug("cycle finished",
		"models", stats.Models, "failed", stats.Failed,
		"field_errors", stats.FieldErrors, "duration", stats.Duration)
	return stats
}

type modelResult struct {
	failed      bool
	fieldErrors int
	storeErrors int
}

// processModel walks one model's schema in declaration order. Configuration
// errors are logged and counted but do not stop the walk; a store failure
// abandons the model's remaining fields for this cycle, since the store is
// unlikely to accept the next request either.
func (r *Runner) processModel(ctx context.Context, model any, at time.Time) modelResult {
	var result modelResult

	descriptor, err := r.engine.Pool().Descriptor(model)
	if err != nil {
		r.logger.Error("no descriptor for model", "model", fmt.Sprintf("%T", model), "error", err)
		return modelResult{failed: true, fieldErrors: 1}
	}

	if preparer, ok := descriptor.(CyclePreparer); ok {
		if err := preparer.PrepareCycle(); err != nil {
			r.logger.Error("cycle preparation failed", "model", fmt.Sprintf("%T", model), "error", err)
			return modelResult{failed: true, fieldErrors: 1}
		}
	}

	// The walk error is already accounted for in result.
	_ = descriptor.Schema().Walk(func(name string, field fields.Field) error {
		err := field.ToStream(ctx, r.engine, descriptor, at)
		switch {
		case err == nil:
			return nil
		case errors.IsInvalid(err):
			result.fieldErrors++
			r.logger.Warn("field misconfigured", "field", name, "error", err)
			return nil
		default:
			result.storeErrors++
			result.failed = true
			r.logger.Error("store request failed, skipping remaining fields",
				"field", name, "error", err)
			return err
		}
	})

	return result
}
