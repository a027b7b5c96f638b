package fields

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/mitjajez/nodewatcher/datastream"
	"github.com/mitjajez/nodewatcher/errors"
)

// Field declares how one value of a domain object maps onto exactly one
// stream: how the value is extracted and coerced, how the stream is tagged,
// and which downsamplers the store maintains for it.
//
// The set of implementations is closed: *ScalarField carries directly
// appended values, *DerivedField declares a store-computed stream over other
// fields' streams, and *DynamicSumField sums a source set that changes at
// run time. Fields are created at schema-definition time and live for the
// process; the only state that changes afterwards is the custom tag overlay
// and the dynamic sum source list.
type Field interface {
	// Name returns the name assigned by the owning schema.
	Name() string

	// SetTags deep-merges overrides into the field's custom tags.
	SetTags(overrides datastream.Tags)

	// ResetTagsToDefault restores selected custom tags to the snapshot taken
	// at construction. See the method on ScalarField for the selector
	// contract.
	ResetTagsToDefault(selectors map[string]any) error

	// Downsamplers returns the downsamplers for the field's stream.
	Downsamplers() []datastream.Downsampler

	// EnsureStream idempotently creates or updates the field's stream for
	// the given descriptor and returns its identity.
	EnsureStream(ctx context.Context, e *Engine, d Descriptor) (datastream.StreamID, error)

	// ToStream ensures the field's stream and, for leaf fields, appends the
	// current value at the given timestamp (zero means the store's "now").
	ToStream(ctx context.Context, e *Engine, d Descriptor, at time.Time) error

	// setName assigns the name exactly once; only Schema.Add calls it.
	setName(name string) error
}

// ValueFunc extracts a field's value from a domain object. ok=false means
// the object legitimately has no value this cycle.
type ValueFunc func(model any) (value any, ok bool)

// StreamAttributer lets a model resolve field source attributes itself
// instead of going through reflection.
type StreamAttributer interface {
	StreamAttribute(name string) (value any, ok bool)
}

// Option configures a field at construction.
type Option func(*base)

// WithAttribute sets the name of the model attribute the value is read from.
// Without it the field's own name is used.
func WithAttribute(name string) Option {
	return func(b *base) { b.attribute = name }
}

// WithValue sets a value extraction function, bypassing attribute lookup.
func WithValue(fn ValueFunc) Option {
	return func(b *base) { b.value = fn }
}

// WithTags deep-merges tags into the field's custom tags. The custom tags at
// the end of construction become the immutable default snapshot.
func WithTags(tags datastream.Tags) Option {
	return func(b *base) { b.customTags = datastream.Merge(b.customTags, tags) }
}

// WithDownsamplers replaces the kind's default downsampler set.
func WithDownsamplers(ds ...datastream.Downsampler) Option {
	return func(b *base) {
		b.downsamplers = append([]datastream.Downsampler(nil), ds...)
		b.downsamplersSet = true
	}
}

// base carries the state and tag protocol shared by every field kind.
type base struct {
	name      string
	attribute string
	value     ValueFunc

	customTags  datastream.Tags
	defaultTags datastream.Tags

	downsamplers    []datastream.Downsampler
	downsamplersSet bool
	valueType       datastream.ValueType

	// kindTags are merged on top of custom tags when the stream is tagged,
	// e.g. {"type": "integer"}.
	kindTags datastream.Tags
}

func newBase(valueType datastream.ValueType, opts ...Option) base {
	b := base{
		customTags: datastream.Tags{},
		valueType:  valueType,
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// finish snapshots the default tags and applies the kind's default
// downsamplers. Constructors call it after all construction-time tag
// seeding.
func (b *base) finish(defaults []datastream.Downsampler) {
	if !b.downsamplersSet {
		b.downsamplers = append([]datastream.Downsampler(nil), defaults...)
	}
	b.defaultTags = b.customTags.Clone()
}

// Name returns the name assigned by the owning schema; empty until the
// field is added to one.
func (b *base) Name() string { return b.name }

func (b *base) setName(name string) error {
	if b.name != "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "fields", "setName",
			fmt.Sprintf("field already named %q", b.name))
	}
	b.name = name
	return nil
}

// Downsamplers returns the downsamplers for the field's stream.
func (b *base) Downsamplers() []datastream.Downsampler {
	return append([]datastream.Downsampler(nil), b.downsamplers...)
}

// SetTags deep-merges overrides into the field's custom tags: nested maps
// merge recursively, any other override value replaces the current leaf.
func (b *base) SetTags(overrides datastream.Tags) {
	b.customTags = datastream.Merge(b.customTags, overrides)
}

// ResetTagsToDefault restores selected custom tags to the default snapshot
// taken at construction. Selector values are either nested maps, descending
// into the corresponding tag branch, or the boolean true, restoring that
// leaf from the defaults. A leaf with no default is deleted; a branch left
// empty after the reset is removed entirely. Any other selector value is a
// configuration error.
//
// Given custom tags {"visualization": {"initial_set": true, "foo": "bar"}},
// resetting just initial_set is:
//
//	field.ResetTagsToDefault(map[string]any{"visualization": map[string]any{"initial_set": true}})
func (b *base) ResetTagsToDefault(selectors map[string]any) error {
	return resetTags(selectors, b.customTags, b.defaultTags)
}

func resetTags(selectors map[string]any, current, defaults datastream.Tags) error {
	for tag, selector := range selectors {
		switch sel := selector.(type) {
		case map[string]any:
			// A missing default branch behaves as empty, so existing values
			// with no default to fall back to get removed.
			defaultBranch, ok := asTagMap(defaults[tag])
			if defaults[tag] != nil && !ok {
				continue
			}
			if defaultBranch == nil {
				defaultBranch = datastream.Tags{}
			}
			currentBranch, ok := asTagMap(current[tag])
			if !ok {
				currentBranch = datastream.Tags{}
				current[tag] = currentBranch
			}
			if err := resetTags(sel, currentBranch, defaultBranch); err != nil {
				return err
			}
			if len(currentBranch) == 0 {
				delete(current, tag)
			}
		case bool:
			if !sel {
				return errors.WrapInvalid(errors.ErrInvalidData, "fields", "ResetTagsToDefault",
					fmt.Sprintf("selector for %q must be a nested map or true", tag))
			}
			if dv, ok := defaults[tag]; ok {
				current[tag] = cloneTagValue(dv)
			} else {
				delete(current, tag)
			}
		default:
			return errors.WrapInvalid(errors.ErrInvalidData, "fields", "ResetTagsToDefault",
				fmt.Sprintf("selector for %q must be a nested map or true", tag))
		}
	}
	return nil
}

func cloneTagValue(v any) any {
	return datastream.Tags{"v": v}.Clone()["v"]
}

// prepareTags returns the field's full tag contribution: name, then custom
// tags, then the kind tags on top.
func (b *base) prepareTags() datastream.Tags {
	tags := datastream.Merge(datastream.Tags{"name": b.name}, b.customTags)
	if len(b.kindTags) > 0 {
		tags = datastream.Merge(tags, b.kindTags)
	}
	return tags
}

// prepareQueryTags returns the field's contribution to stream identity.
func (b *base) prepareQueryTags() datastream.Tags {
	return datastream.Tags{"name": b.name}
}

// processTags combines the descriptor's tags with the field's and resolves
// every embedded TagReference. It returns (query tags, descriptive tags).
func (b *base) processTags(d Descriptor) (datastream.Tags, datastream.Tags, error) {
	if b.name == "" {
		return nil, nil, errors.WrapInvalid(errors.ErrInvalidData, "fields", "processTags",
			"field was never added to a schema")
	}

	queryTags := d.StreamQueryTags().Clone()
	if queryTags == nil {
		queryTags = datastream.Tags{}
	}
	for k, v := range b.prepareQueryTags() {
		queryTags[k] = v
	}

	tags := datastream.Merge(d.StreamTags(), b.prepareTags())
	tags, err := resolveTagMap(tags, d)
	if err != nil {
		return nil, nil, err
	}
	return queryTags, tags, nil
}

// ensureOwnStream issues the idempotent ensure for the field's stream.
// Derivation options, when any, come from the caller.
func (b *base) ensureOwnStream(
	ctx context.Context, e *Engine, d Descriptor,
	derive func(*datastream.EnsureOptions),
) (datastream.StreamID, error) {
	queryTags, tags, err := b.processTags(d)
	if err != nil {
		return "", err
	}
	opts := datastream.EnsureOptions{
		Downsamplers:       b.downsamplers,
		HighestGranularity: d.StreamHighestGranularity(),
		ValueType:          b.valueType,
	}
	if derive != nil {
		derive(&opts)
	}
	return e.store.EnsureStream(ctx, queryTags, tags, opts)
}

// resolveValue pulls the field's raw value off the model. ok=false means
// the value is legitimately absent this cycle; an unresolvable attribute is
// a configuration error.
func (b *base) resolveValue(model any) (any, bool, error) {
	if b.value != nil {
		v, ok := b.value(model)
		return v, ok, nil
	}

	attribute := b.attribute
	if attribute == "" {
		attribute = b.name
	}

	if sa, ok := model.(StreamAttributer); ok {
		v, present := sa.StreamAttribute(attribute)
		return v, present, nil
	}

	v, found := lookupStructAttribute(model, attribute)
	if !found {
		return nil, false, errors.WrapInvalid(errors.ErrInvalidData, "fields", "ToStream",
			fmt.Sprintf("model %T has no attribute %q", model, attribute))
	}
	value, present := deref(v)
	return value, present, nil
}

// lookupStructAttribute finds a struct field by `datastream` tag, then by
// case-insensitive name.
func lookupStructAttribute(model any, attribute string) (reflect.Value, bool) {
	v := reflect.ValueOf(model)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return reflect.Value{}, false
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return reflect.Value{}, false
	}

	t := v.Type()
	byName := -1
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		if tag, ok := sf.Tag.Lookup("datastream"); ok {
			name, _, _ := strings.Cut(tag, ",")
			if name == attribute {
				return v.Field(i), true
			}
			continue
		}
		if byName < 0 && strings.EqualFold(sf.Name, attribute) {
			byName = i
		}
	}
	if byName >= 0 {
		return v.Field(byName), true
	}
	return reflect.Value{}, false
}

// deref unwraps pointers and reports nil values as absent.
func deref(v reflect.Value) (any, bool) {
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, false
		}
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Map, reflect.Slice:
		if v.IsNil() {
			return nil, false
		}
	}
	return v.Interface(), true
}
