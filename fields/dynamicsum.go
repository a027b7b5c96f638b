package fields

import (
	"context"
	"errors"
	"time"

	"github.com/mitjajez/nodewatcher/datastream"
)

// DynamicSumField sums the streams of a source field set that changes at run
// time. Sources are registered against their own descriptors, so the inputs
// may span many domain objects of different kinds.
//
// When the registered set changes shape between materializations, the store
// rejects the new derivation as inconsistent with the existing stream; the
// field then deletes the stream under its identity and recreates it with the
// new input set, suppressing historical recomputation. Future correctness
// wins over backfilled history: recomputing a changed input set on every
// topology change would stall live ingestion.
//
// Mutating the source list concurrently with an in-flight materialization on
// the same field is not supported; callers serialize externally.
type DynamicSumField struct {
	base
	sources []dynamicSource
}

type dynamicSource struct {
	field      Field
	descriptor Descriptor
}

// NewDynamicSum creates a dynamic sum field with an empty source set.
func NewDynamicSum(opts ...Option) *DynamicSumField {
	f := &DynamicSumField{base: newBase(datastream.ValueNumeric, opts...)}
	f.finish(numericDownsamplers)
	return f
}

// AddSourceField registers a source field together with the descriptor of
// the object it belongs to.
func (f *DynamicSumField) AddSourceField(field Field, d Descriptor) {
	f.sources = append(f.sources, dynamicSource{field: field, descriptor: d})
}

// ClearSourceFields removes all registered sources.
func (f *DynamicSumField) ClearSourceFields() {
	f.sources = nil
}

// SourceCount returns the number of registered sources.
func (f *DynamicSumField) SourceCount() int {
	return len(f.sources)
}

// EnsureStream ensures every registered source's stream, then the sum stream
// over them. With no registered sources there is nothing to aggregate: the
// store is not contacted and the returned id is empty.
func (f *DynamicSumField) EnsureStream(
	ctx context.Context, e *Engine, d Descriptor,
) (datastream.StreamID, error) {
	if len(f.sources) == 0 {
		return "", nil
	}

	inputs := make([]datastream.DeriveInput, 0, len(f.sources))
	for _, src := range f.sources {
		id, err := src.field.EnsureStream(ctx, e, src.descriptor)
		if err != nil {
			return "", err
		}
		inputs = append(inputs, datastream.DeriveInput{Stream: id})
	}

	id, err := f.ensureSum(ctx, e, d, inputs, false)
	if errors.Is(err, datastream.ErrInconsistentStreamConfiguration) {
		return f.recreate(ctx, e, d, inputs)
	}
	return id, err
}

// ToStream only ensures the stream; the store computes its values.
func (f *DynamicSumField) ToStream(ctx context.Context, e *Engine, d Descriptor, _ time.Time) error {
	_, err := f.EnsureStream(ctx, e, d)
	return err
}

func (f *DynamicSumField) ensureSum(
	ctx context.Context, e *Engine, d Descriptor,
	inputs []datastream.DeriveInput, noBackprocess bool,
) (datastream.StreamID, error) {
	return f.ensureOwnStream(ctx, e, d, func(opts *datastream.EnsureOptions) {
		opts.DeriveFrom = inputs
		opts.DeriveOp = datastream.OpSum
		opts.DeriveArgs = map[string]any{}
		opts.NoBackprocess = noBackprocess
	})
}

// recreate drops the stream under the field's identity and ensures it fresh
// with the current input set. Backprocessing is suppressed on the recreated
// stream: the old history was computed over a different input set and
// recomputing it here would stall the monitoring pass.
func (f *DynamicSumField) recreate(
	ctx context.Context, e *Engine, d Descriptor, inputs []datastream.DeriveInput,
) (datastream.StreamID, error) {
	queryTags, _, err := f.processTags(d)
	if err != nil {
		return "", err
	}
	if err := e.store.DeleteStreams(ctx, queryTags); err != nil {
		return "", err
	}
	return f.ensureSum(ctx, e, d, inputs, true)
}
