package fields_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mitjajez/nodewatcher/datastream"
	"github.com/mitjajez/nodewatcher/datastream/memory"
	"github.com/mitjajez/nodewatcher/fields"
)

// testNode is the domain object most tests monitor.
type testNode struct {
	UUID     string
	RTT      *float64  `datastream:"rtt"`
	Uptime   *int64    `datastream:"uptime"`
	Clients  *int64    `datastream:"clients"`
	Channels []float64 `datastream:"channels"`
	Status   string    `datastream:"status"`
	Topology any       `datastream:"topology"`
}

// testIface lives on a different descriptor, for cross-object locators.
type testIface struct {
	Name    string
	TxBytes *int64 `datastream:"tx_bytes"`
}

type testDescriptor struct {
	model       any
	queryTags   datastream.Tags
	streamTags  datastream.Tags
	granularity datastream.Granularity
	schema      *fields.Schema
	references  map[string]any
}

func (d *testDescriptor) Model() any                       { return d.model }
func (d *testDescriptor) StreamTags() datastream.Tags      { return d.streamTags.Clone() }
func (d *testDescriptor) StreamQueryTags() datastream.Tags { return d.queryTags.Clone() }
func (d *testDescriptor) Schema() *fields.Schema           { return d.schema }

func (d *testDescriptor) StreamHighestGranularity() datastream.Granularity {
	return d.granularity
}

func (d *testDescriptor) ResolveModelReference(name string) (any, error) {
	model, ok := d.references[name]
	if !ok {
		return nil, fmt.Errorf("no model reference %q", name)
	}
	return model, nil
}

// testPool resolves models to descriptors by pointer identity.
type testPool struct {
	descriptors map[any]fields.Descriptor
}

func newTestPool() *testPool {
	return &testPool{descriptors: make(map[any]fields.Descriptor)}
}

func (p *testPool) add(d *testDescriptor) *testDescriptor {
	p.descriptors[d.model] = d
	return d
}

func (p *testPool) Descriptor(model any) (fields.Descriptor, error) {
	d, ok := p.descriptors[model]
	if !ok {
		return nil, fmt.Errorf("no descriptor for model %T", model)
	}
	return d, nil
}

// countingStore records how often each store operation ran.
type countingStore struct {
	next    datastream.Store
	ensures int
	appends int
	deletes int
}

func (s *countingStore) EnsureStream(
	ctx context.Context, queryTags, tags datastream.Tags, opts datastream.EnsureOptions,
) (datastream.StreamID, error) {
	s.ensures++
	return s.next.EnsureStream(ctx, queryTags, tags, opts)
}

func (s *countingStore) Append(ctx context.Context, id datastream.StreamID, value any, at time.Time) error {
	s.appends++
	return s.next.Append(ctx, id, value, at)
}

func (s *countingStore) DeleteStreams(ctx context.Context, queryTags datastream.Tags) error {
	s.deletes++
	return s.next.DeleteStreams(ctx, queryTags)
}

// harness bundles a memory store, a counting wrapper, a pool and an engine.
type harness struct {
	store  *memory.Store
	counts *countingStore
	pool   *testPool
	engine *fields.Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := memory.New()
	counts := &countingStore{next: store}
	pool := newTestPool()
	engine, err := fields.NewEngine(counts, pool)
	require.NoError(t, err)
	return &harness{store: store, counts: counts, pool: pool, engine: engine}
}

// nodeDescriptor builds a descriptor for a node with an empty schema,
// registered in the pool.
func (h *harness) nodeDescriptor(node *testNode) *testDescriptor {
	return h.pool.add(&testDescriptor{
		model:     node,
		queryTags: datastream.Tags{"node": node.UUID},
		streamTags: datastream.Tags{
			"node": node.UUID,
			"visualization": datastream.Tags{"hidden": false},
		},
		granularity: datastream.GranularityMinutes,
		schema:      fields.NewSchema(),
		references:  map[string]any{},
	})
}

func (h *harness) ifaceDescriptor(node *testNode, iface *testIface) *testDescriptor {
	return h.pool.add(&testDescriptor{
		model:       iface,
		queryTags:   datastream.Tags{"node": node.UUID, "interface": iface.Name},
		streamTags:  datastream.Tags{"node": node.UUID, "interface": iface.Name},
		granularity: datastream.GranularityMinutes,
		schema:      fields.NewSchema(),
		references:  map[string]any{"node": node},
	})
}

func float64p(v float64) *float64 { return &v }
func int64p(v int64) *int64       { return &v }

func testTime() time.Time {
	return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
}
