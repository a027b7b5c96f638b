// Package memory provides an in-memory datastream.Store.
//
// Streams are keyed by the canonical form of their query tags and keep a
// bounded ring of raw datapoints. The backend exists for unit tests, the
// conformance suite and single-process development runs; it does not
// downsample and it does not compute values for derived streams.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mitjajez/nodewatcher/datastream"
	"github.com/mitjajez/nodewatcher/errors"
	"github.com/mitjajez/nodewatcher/pkg/buffer"
)

// defaultRetention is the per-stream datapoint ring capacity.
const defaultRetention = 1024

// Option configures the store.
type Option func(*Store)

// WithRetention sets how many raw datapoints each stream keeps. Once a
// stream's ring is full the oldest datapoint is dropped. Non-positive values
// keep the default.
func WithRetention(points int) Option {
	return func(s *Store) {
		if points > 0 {
			s.retention = points
		}
	}
}

// WithClock replaces the timestamp source used when Append is called with a
// zero time.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store is an in-memory datastream.Store.
type Store struct {
	mu        sync.RWMutex
	byKey     map[string]*stream
	byID      map[datastream.StreamID]*stream
	retention int
	now       func() time.Time
}

type stream struct {
	id           datastream.StreamID
	key          string
	queryTags    datastream.Tags
	tags         datastream.Tags
	downsamplers []datastream.Downsampler
	granularity  datastream.Granularity
	valueType    datastream.ValueType

	// derive is nil for leaf streams; points is nil for derived ones.
	derive *derivation
	points buffer.Buffer[datastream.Datapoint]
}

// derivation is the stream shape the re-ensure consistency check compares.
// NoBackprocess is deliberately absent: it is a creation-time directive, and
// including it would make every recreate inconsistent with the next plain
// ensure of the same configuration.
type derivation struct {
	op        string
	inputs    []datastream.DeriveInput
	args      map[string]any
	inputsKey string
	argsKey   string

	noBackprocess bool
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		byKey:     make(map[string]*stream),
		byID:      make(map[datastream.StreamID]*stream),
		retention: defaultRetention,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureStream creates or updates the stream identified by queryTags.
//
// An ensure request carries the stream's whole configuration, so tags,
// downsamplers and granularity are overwritten with what was requested.
// Value type and derivation are the stream's shape: changing either is
// rejected with ErrInconsistentStreamConfiguration and the caller decides
// whether to reconcile.
func (s *Store) EnsureStream(
	_ context.Context, queryTags, tags datastream.Tags, opts datastream.EnsureOptions,
) (datastream.StreamID, error) {
	if err := validateOptions(opts); err != nil {
		return "", err
	}
	key, err := datastream.CanonicalKey(queryTags)
	if err != nil {
		return "", errors.WrapInvalid(err, "memory", "EnsureStream", "serialize query tags")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.byKey[key]
	if !ok {
		created, err := s.create(key, queryTags, tags, opts)
		if err != nil {
			return "", err
		}
		return created.id, nil
	}

	if err := existing.checkShape(opts); err != nil {
		return "", err
	}
	existing.tags = tags.Clone()
	existing.downsamplers = append([]datastream.Downsampler(nil), opts.Downsamplers...)
	existing.granularity = opts.HighestGranularity
	return existing.id, nil
}

// Append adds one datapoint to a leaf stream. A zero at is replaced with the
// store clock's now.
func (s *Store) Append(_ context.Context, id datastream.StreamID, value any, at time.Time) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("stream %s: %w", id, datastream.ErrStreamNotFound)
	}
	if st.derive != nil {
		return fmt.Errorf("stream %s: %w", id, datastream.ErrAppendToDerived)
	}
	if at.IsZero() {
		at = s.now()
	}
	return st.points.Write(datastream.Datapoint{Value: value, Timestamp: at})
}

// DeleteStreams removes every stream whose query tags subsume queryTags,
// datapoints included. A query matching nothing is not an error; an empty
// query deletes everything.
func (s *Store) DeleteStreams(_ context.Context, queryTags datastream.Tags) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, st := range s.byKey {
		if !st.queryTags.Subsumes(queryTags) {
			continue
		}
		delete(s.byKey, key)
		delete(s.byID, st.id)
		if st.points != nil {
			_ = st.points.Close()
		}
	}
	return nil
}

func (s *Store) create(
	key string, queryTags, tags datastream.Tags, opts datastream.EnsureOptions,
) (*stream, error) {
	st := &stream{
		id:           datastream.StreamID(uuid.NewString()),
		key:          key,
		queryTags:    queryTags.Clone(),
		tags:         tags.Clone(),
		downsamplers: append([]datastream.Downsampler(nil), opts.Downsamplers...),
		granularity:  opts.HighestGranularity,
		valueType:    opts.ValueType,
	}

	if opts.Derived() {
		for _, in := range opts.DeriveFrom {
			if _, ok := s.byID[in.Stream]; !ok {
				return nil, fmt.Errorf("derive input %q (%s): %w",
					in.Name, in.Stream, datastream.ErrStreamNotFound)
			}
		}
		st.derive = newDerivation(opts)
	} else {
		ring, err := buffer.NewCircularBuffer[datastream.Datapoint](s.retention)
		if err != nil {
			return nil, errors.WrapFatal(err, "memory", "EnsureStream", "allocate datapoint ring")
		}
		st.points = ring
	}

	s.byKey[key] = st
	s.byID[st.id] = st
	return st, nil
}

// checkShape rejects ensure requests that would change the stream's value
// type or derivation. Everything else updates in place.
func (st *stream) checkShape(opts datastream.EnsureOptions) error {
	if opts.ValueType != st.valueType {
		return fmt.Errorf("stream %s: value type is %q, requested %q: %w",
			st.id, st.valueType, opts.ValueType, datastream.ErrInconsistentStreamConfiguration)
	}
	if opts.Derived() != (st.derive != nil) {
		return fmt.Errorf("stream %s: derivation added or removed: %w",
			st.id, datastream.ErrInconsistentStreamConfiguration)
	}
	if st.derive == nil {
		return nil
	}
	req := newDerivation(opts)
	if req.op != st.derive.op || req.inputsKey != st.derive.inputsKey || req.argsKey != st.derive.argsKey {
		return fmt.Errorf("stream %s: derivation changed: %w",
			st.id, datastream.ErrInconsistentStreamConfiguration)
	}
	return nil
}

func newDerivation(opts datastream.EnsureOptions) *derivation {
	return &derivation{
		op:            opts.DeriveOp,
		inputs:        append([]datastream.DeriveInput(nil), opts.DeriveFrom...),
		args:          opts.DeriveArgs,
		inputsKey:     canonicalJSON(opts.DeriveFrom),
		argsKey:       canonicalJSON(opts.DeriveArgs),
		noBackprocess: opts.NoBackprocess,
	}
}

// canonicalJSON is a comparable serialization: encoding/json sorts map keys
// and formats whole floats like integers, so equal content compares equal
// regardless of construction order or numeric type. Arguments were validated
// as serializable before this is called.
func canonicalJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "!" + err.Error()
	}
	return string(b)
}

func validateOptions(opts datastream.EnsureOptions) error {
	if !opts.ValueType.Valid() {
		return errors.WrapInvalid(
			fmt.Errorf("unknown value type %q", opts.ValueType),
			"memory", "EnsureStream", "validate options")
	}
	if g := opts.HighestGranularity; g != "" && !g.Valid() {
		return errors.WrapInvalid(
			fmt.Errorf("unknown granularity %q", g),
			"memory", "EnsureStream", "validate options")
	}
	for _, d := range opts.Downsamplers {
		if !d.Valid() {
			return errors.WrapInvalid(
				fmt.Errorf("unknown downsampler %q", d),
				"memory", "EnsureStream", "validate options")
		}
	}

	if !opts.Derived() {
		if len(opts.DeriveFrom) > 0 {
			return errors.WrapInvalid(
				fmt.Errorf("derive inputs without an operator"),
				"memory", "EnsureStream", "validate options")
		}
		return nil
	}

	switch opts.DeriveOp {
	case datastream.OpCounterReset, datastream.OpCounterDerivative, datastream.OpSum:
	default:
		return errors.WrapInvalid(
			fmt.Errorf("unknown derive operator %q", opts.DeriveOp),
			"memory", "EnsureStream", "validate options")
	}
	if len(opts.DeriveFrom) == 0 {
		return errors.WrapInvalid(
			fmt.Errorf("derived stream needs at least one input"),
			"memory", "EnsureStream", "validate options")
	}
	if _, err := json.Marshal(opts.DeriveArgs); err != nil {
		return errors.WrapInvalid(err, "memory", "EnsureStream", "serialize derive arguments")
	}
	return nil
}
