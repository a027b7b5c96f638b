package datastream

import (
	"context"
	"errors"
	"time"
)

// StreamID identifies one stream in the store. IDs are allocated by the
// store; callers treat them as opaque.
type StreamID string

// ValueType is the store-level datapoint type of a stream.
type ValueType string

// Supported value types.
const (
	ValueNumeric ValueType = "numeric"
	ValueGraph   ValueType = "graph"
	ValueNominal ValueType = "nominal"
)

// Valid reports whether vt is one of the supported value types.
func (vt ValueType) Valid() bool {
	switch vt {
	case ValueNumeric, ValueGraph, ValueNominal:
		return true
	default:
		return false
	}
}

// Downsampler names an aggregate the store maintains at coarser
// granularities.
type Downsampler string

// Supported downsampling functions.
const (
	DownsampleMean   Downsampler = "mean"
	DownsampleSum    Downsampler = "sum"
	DownsampleMin    Downsampler = "min"
	DownsampleMax    Downsampler = "max"
	DownsampleStdDev Downsampler = "std_dev"
	DownsampleCount  Downsampler = "count"
)

// Valid reports whether d is one of the supported downsampling functions.
func (d Downsampler) Valid() bool {
	switch d {
	case DownsampleMean, DownsampleSum, DownsampleMin,
		DownsampleMax, DownsampleStdDev, DownsampleCount:
		return true
	default:
		return false
	}
}

// Granularity is a sampling resolution, ordered from finest to coarsest.
type Granularity string

// Supported granularities.
const (
	GranularitySeconds   Granularity = "seconds"
	GranularitySeconds10 Granularity = "10seconds"
	GranularityMinutes   Granularity = "minutes"
	GranularityMinutes10 Granularity = "10minutes"
	GranularityHours     Granularity = "hours"
	GranularityHours6    Granularity = "6hours"
	GranularityDays      Granularity = "days"
)

var granularityRank = map[Granularity]int{
	GranularitySeconds:   0,
	GranularitySeconds10: 1,
	GranularityMinutes:   2,
	GranularityMinutes10: 3,
	GranularityHours:     4,
	GranularityHours6:    5,
	GranularityDays:      6,
}

// Valid reports whether g is one of the supported granularities.
func (g Granularity) Valid() bool {
	_, ok := granularityRank[g]
	return ok
}

// FinerThan reports whether g is a finer resolution than other. Unknown
// granularities are never finer.
func (g Granularity) FinerThan(other Granularity) bool {
	gr, ok := granularityRank[g]
	if !ok {
		return false
	}
	or, ok := granularityRank[other]
	if !ok {
		return false
	}
	return gr < or
}

// Derivation operators the store understands.
const (
	// OpCounterReset emits 1 whenever a monotonic counter moves backwards.
	OpCounterReset = "counter_reset"
	// OpCounterDerivative emits the rate of change of a counter, consuming a
	// reset stream to suppress datapoints across counter wraps.
	OpCounterDerivative = "counter_derivative"
	// OpSum emits the sum of all source streams.
	OpSum = "sum"
)

// DeriveInput names one source stream of a derived stream. Name is the role
// the operator assigns to the input (for example "reset"); it may be empty.
type DeriveInput struct {
	Name   string   `json:"name,omitempty"`
	Stream StreamID `json:"stream"`
}

// EnsureOptions carries the stream configuration for EnsureStream.
type EnsureOptions struct {
	// Downsamplers the store maintains for this stream.
	Downsamplers []Downsampler `json:"downsamplers,omitempty"`
	// HighestGranularity is the finest resolution datapoints will be
	// appended at.
	HighestGranularity Granularity `json:"highest_granularity,omitempty"`
	// ValueType of the stream's datapoints.
	ValueType ValueType `json:"value_type"`

	// DeriveFrom, DeriveOp and DeriveArgs declare a derived stream. A stream
	// is derived exactly when DeriveOp is non-empty.
	DeriveFrom []DeriveInput  `json:"derive_from,omitempty"`
	DeriveOp   string         `json:"derive_op,omitempty"`
	DeriveArgs map[string]any `json:"derive_args,omitempty"`
	// NoBackprocess suppresses recomputation of historical datapoints when a
	// derived stream is created. The zero value keeps the store's default
	// behavior of backprocessing.
	NoBackprocess bool `json:"no_backprocess,omitempty"`
}

// Derived reports whether the options declare a derived stream.
func (o EnsureOptions) Derived() bool {
	return o.DeriveOp != ""
}

// Datapoint is one appended value with the timestamp it was recorded at.
type Datapoint struct {
	Value     any       `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// Store errors. Implementations return these sentinels (possibly wrapped) so
// callers can match on them with errors.Is.
var (
	// ErrInconsistentStreamConfiguration signals that an existing stream with
	// the same query tags has a different derivation or value type. The
	// store never rewires a stream in place; the caller reconciles.
	ErrInconsistentStreamConfiguration = errors.New("inconsistent stream configuration")

	// ErrStreamNotFound signals an operation on an unknown stream id.
	ErrStreamNotFound = errors.New("stream not found")

	// ErrAppendToDerived signals a direct append to a derived stream.
	ErrAppendToDerived = errors.New("cannot append to a derived stream")
)

// Store is the narrow client API of the time-series stream store.
//
// EnsureStream is idempotent on query tags: ensuring with the same query tags
// returns the same stream id, updating descriptive tags, downsamplers and
// granularity in place when they changed. Derivation changes are rejected
// with ErrInconsistentStreamConfiguration.
//
// Append adds one datapoint. A zero at means "now" as decided by the store.
//
// DeleteStreams removes every stream whose query tags subsume queryTags,
// together with all its datapoints. Deleting with an empty match set is not
// an error.
type Store interface {
	EnsureStream(ctx context.Context, queryTags, tags Tags, opts EnsureOptions) (StreamID, error)
	Append(ctx context.Context, id StreamID, value any, at time.Time) error
	DeleteStreams(ctx context.Context, queryTags Tags) error
}
