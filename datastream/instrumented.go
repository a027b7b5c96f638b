package datastream

import (
	"context"
	"errors"
	"time"

	"github.com/mitjajez/nodewatcher/metric"
)

// InstrumentedStore wraps a Store and records platform metrics for every
// request: per-operation counters with an outcome label and request duration
// histograms. It adds no behavior of its own.
type InstrumentedStore struct {
	next    Store
	service string
	metrics *metric.Metrics
}

// NewInstrumentedStore wraps next, labeling all recorded metrics with service.
func NewInstrumentedStore(next Store, service string, m *metric.Metrics) *InstrumentedStore {
	return &InstrumentedStore{next: next, service: service, metrics: m}
}

// EnsureStream records the request outcome and duration. Configuration
// inconsistency gets its own outcome label because it is the one ensure
// failure the caller reconciles rather than reports.
func (s *InstrumentedStore) EnsureStream(
	ctx context.Context, queryTags, tags Tags, opts EnsureOptions,
) (StreamID, error) {
	start := time.Now()
	id, err := s.next.EnsureStream(ctx, queryTags, tags, opts)
	s.metrics.RecordStoreRequestDuration(s.service, "ensure", time.Since(start))

	status := "ok"
	switch {
	case errors.Is(err, ErrInconsistentStreamConfiguration):
		status = "inconsistent"
	case err != nil:
		status = "error"
	}
	s.metrics.RecordStreamEnsured(s.service, status)
	return id, err
}

// Append records the request outcome and duration.
func (s *InstrumentedStore) Append(ctx context.Context, id StreamID, value any, at time.Time) error {
	start := time.Now()
	err := s.next.Append(ctx, id, value, at)
	s.metrics.RecordStoreRequestDuration(s.service, "append", time.Since(start))

	status := "ok"
	if err != nil {
		status = "error"
	}
	s.metrics.RecordDatapointAppended(s.service, status)
	return err
}

// DeleteStreams records the request outcome and duration.
func (s *InstrumentedStore) DeleteStreams(ctx context.Context, queryTags Tags) error {
	start := time.Now()
	err := s.next.DeleteStreams(ctx, queryTags)
	s.metrics.RecordStoreRequestDuration(s.service, "delete", time.Since(start))

	status := "ok"
	if err != nil {
		status = "error"
	}
	s.metrics.RecordStreamsDeleted(s.service, status)
	return err
}
