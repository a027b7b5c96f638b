package fields

import (
	"context"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"time"

	"github.com/mitjajez/nodewatcher/datastream"
	"github.com/mitjajez/nodewatcher/errors"
)

// Kind is the declared type of a scalar field. It fixes the stream's store
// value type, the value coercion, the kind tag and the default downsampler
// set.
type Kind string

// Scalar field kinds.
const (
	KindNumeric             Kind = "numeric"
	KindInteger             Kind = "integer"
	KindCounter             Kind = "counter"
	KindFloat               Kind = "float"
	KindMultiPoint          Kind = "multipoint"
	KindGraph               Kind = "graph"
	KindNominal             Kind = "nominal"
	KindIntegerNominal      Kind = "integer_nominal"
	KindIntegerArrayNominal Kind = "integer_array_nominal"
)

// numericDownsamplers is the default set for numerically typed streams.
var numericDownsamplers = []datastream.Downsampler{
	datastream.DownsampleMean,
	datastream.DownsampleSum,
	datastream.DownsampleMin,
	datastream.DownsampleMax,
	datastream.DownsampleStdDev,
	datastream.DownsampleCount,
}

// countDownsampler is the default set for graph and nominal streams.
var countDownsampler = []datastream.Downsampler{datastream.DownsampleCount}

// ScalarField is a leaf field: its stream receives values extracted directly
// from the domain object.
type ScalarField struct {
	base
	kind Kind
}

// NewNumeric creates a numerically typed field with no value coercion.
func NewNumeric(opts ...Option) *ScalarField {
	return newScalar(KindNumeric, datastream.ValueNumeric, nil, numericDownsamplers, opts)
}

// NewInteger creates a field that coerces values to integers.
func NewInteger(opts ...Option) *ScalarField {
	return newScalar(KindInteger, datastream.ValueNumeric,
		datastream.Tags{"type": "integer"}, numericDownsamplers, opts)
}

// NewCounter creates a monotonic counter field. Counters carry no
// downsamplers by default: raw counter values only matter as input to reset
// and rate derivations. The visualization.initial_set tag is seeded to false
// in both the custom tags and the default snapshot.
func NewCounter(opts ...Option) *ScalarField {
	f := newScalarUnfinished(KindCounter, datastream.ValueNumeric,
		datastream.Tags{"type": "integer"}, opts)
	f.SetTags(datastream.Tags{"visualization": datastream.Tags{"initial_set": false}})
	f.finish(nil)
	return f
}

// NewFloat creates a field that coerces values to floats.
func NewFloat(opts ...Option) *ScalarField {
	return newScalar(KindFloat, datastream.ValueNumeric,
		datastream.Tags{"type": "float"}, numericDownsamplers, opts)
}

// NewMultiPoint creates a field whose values are already downsampled
// aggregates covering multiple raw datapoints.
func NewMultiPoint(opts ...Option) *ScalarField {
	return newScalar(KindMultiPoint, datastream.ValueNumeric,
		datastream.Tags{"type": "multipoint"}, numericDownsamplers, opts)
}

// NewGraph creates a field that stores graph-structured datapoints.
func NewGraph(opts ...Option) *ScalarField {
	return newScalar(KindGraph, datastream.ValueGraph, nil, countDownsampler, opts)
}

// NewNominal creates a field that stores arbitrary values with no
// statistical downsampling.
func NewNominal(opts ...Option) *ScalarField {
	return newScalar(KindNominal, datastream.ValueNominal, nil, countDownsampler, opts)
}

// NewIntegerNominal creates a nominal field that coerces values to integers.
func NewIntegerNominal(opts ...Option) *ScalarField {
	return newScalar(KindIntegerNominal, datastream.ValueNominal, nil, countDownsampler, opts)
}

// NewIntegerArrayNominal creates a nominal field that coerces values to
// integer arrays.
func NewIntegerArrayNominal(opts ...Option) *ScalarField {
	return newScalar(KindIntegerArrayNominal, datastream.ValueNominal, nil, countDownsampler, opts)
}

func newScalar(
	kind Kind, valueType datastream.ValueType, kindTags datastream.Tags,
	defaults []datastream.Downsampler, opts []Option,
) *ScalarField {
	f := newScalarUnfinished(kind, valueType, kindTags, opts)
	f.finish(defaults)
	return f
}

func newScalarUnfinished(
	kind Kind, valueType datastream.ValueType, kindTags datastream.Tags, opts []Option,
) *ScalarField {
	f := &ScalarField{base: newBase(valueType, opts...), kind: kind}
	f.kindTags = kindTags
	return f
}

// Kind returns the field's declared kind.
func (f *ScalarField) Kind() Kind { return f.kind }

// EnsureStream idempotently creates or updates the field's stream.
func (f *ScalarField) EnsureStream(
	ctx context.Context, e *Engine, d Descriptor,
) (datastream.StreamID, error) {
	return f.ensureOwnStream(ctx, e, d, nil)
}

// ToStream ensures the field's stream and appends the current value. An
// absent value still ensures the stream but appends nothing; that is a
// normal cycle, not an error.
func (f *ScalarField) ToStream(ctx context.Context, e *Engine, d Descriptor, at time.Time) error {
	value, present, err := f.resolveValue(d.Model())
	if err != nil {
		return err
	}

	id, err := f.EnsureStream(ctx, e, d)
	if err != nil {
		return err
	}
	if !present {
		return nil
	}

	value, err = f.prepareValue(value)
	if err != nil {
		return err
	}
	return e.store.Append(ctx, id, value, at)
}

// prepareValue coerces the raw value per the field's kind.
func (f *ScalarField) prepareValue(value any) (any, error) {
	var (
		coerced any
		err     error
	)
	switch f.kind {
	case KindInteger, KindCounter, KindIntegerNominal:
		coerced, err = toInt64(value)
	case KindFloat:
		coerced, err = toFloat64(value)
	case KindMultiPoint, KindGraph:
		coerced, err = toTagMap(value)
	case KindIntegerArrayNominal:
		coerced, err = toInt64Slice(value)
	default:
		return value, nil
	}
	if err != nil {
		return nil, errors.WrapInvalid(err, "fields", "ToStream",
			fmt.Sprintf("coerce value for field %q", f.name))
	}
	return coerced, nil
}

func toInt64(value any) (int64, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		return int64(v), nil
	case float32:
		return int64(math.Trunc(float64(v))), nil
	case float64:
		return int64(math.Trunc(v)), nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not an integer: %w", v, errors.ErrInvalidData)
		}
		return int64(math.Trunc(f)), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("cannot coerce %T to integer: %w", value, errors.ErrInvalidData)
	}
}

func toFloat64(value any) (float64, error) {
	switch v := value.(type) {
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int8:
		return float64(v), nil
	case int16:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint:
		return float64(v), nil
	case uint8:
		return float64(v), nil
	case uint16:
		return float64(v), nil
	case uint32:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not a float: %w", v, errors.ErrInvalidData)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("cannot coerce %T to float: %w", value, errors.ErrInvalidData)
	}
}

func toTagMap(value any) (map[string]any, error) {
	switch v := value.(type) {
	case map[string]any:
		return v, nil
	case datastream.Tags:
		return v, nil
	default:
		return nil, fmt.Errorf("cannot coerce %T to a mapping: %w", value, errors.ErrInvalidData)
	}
}

func toInt64Slice(value any) ([]int64, error) {
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("cannot coerce %T to an integer array: %w", value, errors.ErrInvalidData)
	}
	out := make([]int64, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		n, err := toInt64(rv.Index(i).Interface())
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = n
	}
	return out, nil
}
