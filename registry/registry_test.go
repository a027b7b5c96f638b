package registry_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mitjajez/nodewatcher/datastream"
	"github.com/mitjajez/nodewatcher/errors"
	"github.com/mitjajez/nodewatcher/fields"
	"github.com/mitjajez/nodewatcher/registry"
)

type widget struct{ ID string }
type gadget struct{ ID string }

type widgetDescriptor struct {
	model *widget
}

func (d *widgetDescriptor) Model() any                       { return d.model }
func (d *widgetDescriptor) StreamTags() datastream.Tags      { return datastream.Tags{} }
func (d *widgetDescriptor) StreamQueryTags() datastream.Tags { return datastream.Tags{"widget": d.model.ID} }
func (d *widgetDescriptor) Schema() *fields.Schema           { return fields.NewSchema() }

func (d *widgetDescriptor) StreamHighestGranularity() datastream.Granularity {
	return datastream.GranularityMinutes
}

func (d *widgetDescriptor) ResolveModelReference(string) (any, error) {
	return nil, errors.ErrModelNotRegistered
}

func widgetFactory(model any) fields.Descriptor {
	return &widgetDescriptor{model: model.(*widget)}
}

func TestPoolRegisterAndResolve(t *testing.T) {
	pool := registry.NewPool()
	require.NoError(t, pool.Register(&widget{}, widgetFactory))
	assert.Equal(t, 1, pool.Registered())

	d, err := pool.Descriptor(&widget{ID: "w-1"})
	require.NoError(t, err)
	assert.Equal(t, datastream.Tags{"widget": "w-1"}, d.StreamQueryTags())
}

func TestPoolNormalizesPointerTypes(t *testing.T) {
	pool := registry.NewPool()
	require.NoError(t, pool.Register(widget{}, widgetFactory))

	// Registered by value, resolved by pointer.
	_, err := pool.Descriptor(&widget{ID: "w-1"})
	require.NoError(t, err)

	err = pool.Register(&widget{}, widgetFactory)
	require.Error(t, err, "pointer and value forms are the same registration")
	assert.True(t, errors.IsInvalid(err))
}

func TestPoolRejectsDuplicates(t *testing.T) {
	pool := registry.NewPool()
	require.NoError(t, pool.Register(&widget{}, widgetFactory))
	err := pool.Register(&widget{}, widgetFactory)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestPoolUnregisteredModel(t *testing.T) {
	pool := registry.NewPool()
	require.NoError(t, pool.Register(&widget{}, widgetFactory))

	_, err := pool.Descriptor(&gadget{ID: "g-1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrModelNotRegistered)
	assert.Contains(t, err.Error(), "gadget", "the missing type is named")
}

func TestPoolsAreIsolated(t *testing.T) {
	a := registry.NewPool()
	b := registry.NewPool()
	require.NoError(t, a.Register(&widget{}, widgetFactory))

	_, err := b.Descriptor(&widget{ID: "w-1"})
	assert.ErrorIs(t, err, errors.ErrModelNotRegistered)
}

func TestPoolRejectsNilInputs(t *testing.T) {
	pool := registry.NewPool()
	assert.Error(t, pool.Register(&widget{}, nil))
	assert.Error(t, pool.Register(nil, widgetFactory))
	_, err := pool.Descriptor(nil)
	assert.Error(t, err)
}
