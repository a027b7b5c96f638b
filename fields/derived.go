package fields

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mitjajez/nodewatcher/datastream"
	"github.com/mitjajez/nodewatcher/errors"
)

// SourceRef names one input of a derived field. Field is a locator of the
// form "<reference>#<field>": a non-empty reference is resolved through the
// owning descriptor's model references to reach a field on another domain
// object; a plain "<field>" (or "#<field>") names a sibling field. Name is
// the role the derive operator assigns to the input and may be empty.
type SourceRef struct {
	Name  string
	Field string
}

// DerivedField is a field whose stream the store computes from other fields'
// streams via a named operator. Its stream never receives direct appends;
// materializing it only ensures its existence and derivation linkage.
type DerivedField struct {
	base
	sources []SourceRef
	op      string
	args    map[string]any
}

// NewDerived creates a derived field over the given sources.
func NewDerived(
	sources []SourceRef, op string, args map[string]any, opts ...Option,
) *DerivedField {
	return newDerived(sources, op, args, datastream.ValueNumeric, numericDownsamplers, opts)
}

// NewReset creates a field deriving a reset-marker stream from a counter
// field: the store emits a marker whenever the counter moves backwards.
func NewReset(counterField string, opts ...Option) *DerivedField {
	return newDerived(
		[]SourceRef{{Name: "reset", Field: counterField}},
		datastream.OpCounterReset, nil,
		datastream.ValueNominal, countDownsampler, opts,
	)
}

// NewRate creates a field deriving a rate-of-change stream from a counter
// data field, gated by a reset-marker field so datapoints spanning a counter
// reset are suppressed. A non-nil maxValue rejects readings above it as
// wrapped or overflowed counters.
func NewRate(resetField, dataField string, maxValue *float64, opts ...Option) *DerivedField {
	args := map[string]any{"max_value": nil}
	if maxValue != nil {
		args["max_value"] = *maxValue
	}
	return newDerived(
		[]SourceRef{
			{Name: "reset", Field: resetField},
			{Field: dataField},
		},
		datastream.OpCounterDerivative, args,
		datastream.ValueNumeric, numericDownsamplers, opts,
	)
}

func newDerived(
	sources []SourceRef, op string, args map[string]any,
	valueType datastream.ValueType, defaults []datastream.Downsampler, opts []Option,
) *DerivedField {
	if args == nil {
		args = map[string]any{}
	}
	f := &DerivedField{
		base:    newBase(valueType, opts...),
		sources: append([]SourceRef(nil), sources...),
		op:      op,
		args:    args,
	}
	f.finish(defaults)
	return f
}

// Op returns the derive operator name.
func (f *DerivedField) Op() string { return f.op }

// EnsureStream first ensures every source field's stream, resolving
// cross-object locators through the engine's pool, then ensures the derived
// stream itself with the collected inputs.
func (f *DerivedField) EnsureStream(
	ctx context.Context, e *Engine, d Descriptor,
) (datastream.StreamID, error) {
	inputs := make([]datastream.DeriveInput, 0, len(f.sources))
	for _, ref := range f.sources {
		srcField, srcDescriptor, err := resolveFieldLocator(e, d, ref.Field)
		if err != nil {
			return "", err
		}
		id, err := srcField.EnsureStream(ctx, e, srcDescriptor)
		if err != nil {
			return "", err
		}
		inputs = append(inputs, datastream.DeriveInput{Name: ref.Name, Stream: id})
	}

	return f.ensureOwnStream(ctx, e, d, func(opts *datastream.EnsureOptions) {
		opts.DeriveFrom = inputs
		opts.DeriveOp = f.op
		opts.DeriveArgs = f.args
	})
}

// ToStream only ensures the stream; the store computes its values.
func (f *DerivedField) ToStream(ctx context.Context, e *Engine, d Descriptor, _ time.Time) error {
	_, err := f.EnsureStream(ctx, e, d)
	return err
}

// resolveFieldLocator resolves "<reference>#<field>" against d, going
// through the pool so the source field is always paired with its own
// object's descriptor.
func resolveFieldLocator(e *Engine, d Descriptor, locator string) (Field, Descriptor, error) {
	reference, fieldName := "", locator
	if before, after, found := strings.Cut(locator, "#"); found {
		reference, fieldName = before, after
	}

	model := d.Model()
	if reference != "" {
		var err error
		model, err = d.ResolveModelReference(reference)
		if err != nil {
			return nil, nil, errors.WrapInvalid(err, "fields", "EnsureStream",
				fmt.Sprintf("resolve model reference %q of locator %q", reference, locator))
		}
	}

	srcDescriptor, err := e.pool.Descriptor(model)
	if err != nil {
		return nil, nil, errors.WrapInvalid(err, "fields", "EnsureStream",
			fmt.Sprintf("resolve descriptor for locator %q", locator))
	}

	srcField, ok := srcDescriptor.Schema().Field(fieldName)
	if !ok {
		return nil, nil, errors.WrapInvalid(
			fmt.Errorf("locator %q: %w", locator, errors.ErrFieldNotFound),
			"fields", "EnsureStream", "resolve derived source field")
	}
	return srcField, srcDescriptor, nil
}
