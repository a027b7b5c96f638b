// Package streamtest is a reusable conformance suite for datastream.Store
// implementations. A backend runs it from its own tests:
//
//	func TestConformance(t *testing.T) {
//		streamtest.Run(t, func(t *testing.T) datastream.Store {
//			return memory.New()
//		})
//	}
//
// The suite only goes through the Store interface, so it holds for any
// backend: the in-memory store, the NATS client against a live server, or a
// decorated stack of either.
package streamtest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mitjajez/nodewatcher/datastream"
)

// Factory builds a fresh, empty store for one test. Cleanup belongs on t.
type Factory func(t *testing.T) datastream.Store

// Run executes the conformance suite against stores built by factory.
func Run(t *testing.T, factory Factory) {
	suite.Run(t, &Suite{New: factory})
}

// Suite exercises the Store contract. Each test method gets a fresh store.
type Suite struct {
	suite.Suite
	New Factory

	store datastream.Store
	ctx   context.Context
}

// SetupTest builds the store under test.
func (s *Suite) SetupTest() {
	s.Require().NotNil(s.New, "streamtest.Suite needs a store factory")
	s.store = s.New(s.T())
	s.ctx = context.Background()
}

func (s *Suite) ensure(queryTags, tags datastream.Tags, opts datastream.EnsureOptions) datastream.StreamID {
	s.T().Helper()
	id, err := s.store.EnsureStream(s.ctx, queryTags, tags, opts)
	s.Require().NoError(err)
	s.Require().NotEmpty(id)
	return id
}

func leafOptions() datastream.EnsureOptions {
	return datastream.EnsureOptions{
		ValueType:          datastream.ValueNumeric,
		Downsamplers:       []datastream.Downsampler{datastream.DownsampleMean, datastream.DownsampleCount},
		HighestGranularity: datastream.GranularitySeconds,
	}
}

// TestEnsureIsIdempotent checks that an unchanged ensure returns the same id.
func (s *Suite) TestEnsureIsIdempotent() {
	query := datastream.Tags{"node": "node-a", "name": "load"}
	tags := datastream.Tags{"group": "system"}

	first := s.ensure(query, tags, leafOptions())
	second := s.ensure(query, tags, leafOptions())
	s.Equal(first, second)
}

// TestEnsureDistinguishesIdentities checks that distinct query tags get
// distinct streams.
func (s *Suite) TestEnsureDistinguishesIdentities() {
	a := s.ensure(datastream.Tags{"node": "node-a", "name": "load"}, nil, leafOptions())
	b := s.ensure(datastream.Tags{"node": "node-b", "name": "load"}, nil, leafOptions())
	s.NotEqual(a, b)
}

// TestEnsureUpdatesInPlace checks that tags, downsamplers and granularity may
// change between ensures without disturbing stream identity.
func (s *Suite) TestEnsureUpdatesInPlace() {
	query := datastream.Tags{"node": "node-a", "name": "load"}

	first := s.ensure(query, datastream.Tags{"group": "system"}, leafOptions())

	updated := leafOptions()
	updated.Downsamplers = []datastream.Downsampler{datastream.DownsampleMean}
	updated.HighestGranularity = datastream.GranularityMinutes
	second := s.ensure(query, datastream.Tags{"group": "base", "visualization": datastream.Tags{"type": "line"}}, updated)

	s.Equal(first, second)
}

// TestValueTypeChangeIsInconsistent checks that re-ensuring with a different
// value type is rejected rather than applied.
func (s *Suite) TestValueTypeChangeIsInconsistent() {
	query := datastream.Tags{"node": "node-a", "name": "load"}
	s.ensure(query, nil, leafOptions())

	changed := leafOptions()
	changed.ValueType = datastream.ValueNominal
	_, err := s.store.EnsureStream(s.ctx, query, nil, changed)
	s.ErrorIs(err, datastream.ErrInconsistentStreamConfiguration)
}

// TestDerivedEnsureIsIdempotent checks that an unchanged derived ensure does
// not trip the consistency check.
func (s *Suite) TestDerivedEnsureIsIdempotent() {
	a := s.ensure(datastream.Tags{"node": "node-a", "name": "tx_bytes"}, nil, leafOptions())
	b := s.ensure(datastream.Tags{"node": "node-a", "name": "rx_bytes"}, nil, leafOptions())

	opts := datastream.EnsureOptions{
		ValueType: datastream.ValueNumeric,
		DeriveOp:  datastream.OpSum,
		DeriveFrom: []datastream.DeriveInput{
			{Stream: a},
			{Stream: b},
		},
	}
	query := datastream.Tags{"node": "node-a", "name": "total_bytes"}

	first := s.ensure(query, nil, opts)
	second := s.ensure(query, nil, opts)
	s.Equal(first, second)
}

// TestDerivedInputChangeIsInconsistent checks the three derivation change
// classes: input set, operator and arguments.
func (s *Suite) TestDerivedInputChangeIsInconsistent() {
	a := s.ensure(datastream.Tags{"node": "node-a", "name": "tx_bytes"}, nil, leafOptions())
	b := s.ensure(datastream.Tags{"node": "node-a", "name": "rx_bytes"}, nil, leafOptions())
	c := s.ensure(datastream.Tags{"node": "node-a", "name": "drop_bytes"}, nil, leafOptions())

	query := datastream.Tags{"node": "node-a", "name": "total_bytes"}
	base := datastream.EnsureOptions{
		ValueType:  datastream.ValueNumeric,
		DeriveOp:   datastream.OpSum,
		DeriveFrom: []datastream.DeriveInput{{Stream: a}, {Stream: b}},
	}
	s.ensure(query, nil, base)

	inputsChanged := base
	inputsChanged.DeriveFrom = []datastream.DeriveInput{{Stream: a}, {Stream: c}}
	_, err := s.store.EnsureStream(s.ctx, query, nil, inputsChanged)
	s.ErrorIs(err, datastream.ErrInconsistentStreamConfiguration, "input set change")

	opChanged := base
	opChanged.DeriveOp = datastream.OpCounterReset
	opChanged.DeriveFrom = []datastream.DeriveInput{{Stream: a}, {Stream: b}}
	_, err = s.store.EnsureStream(s.ctx, query, nil, opChanged)
	s.ErrorIs(err, datastream.ErrInconsistentStreamConfiguration, "operator change")

	argsChanged := base
	argsChanged.DeriveArgs = map[string]any{"max_value": 1 << 30}
	_, err = s.store.EnsureStream(s.ctx, query, nil, argsChanged)
	s.ErrorIs(err, datastream.ErrInconsistentStreamConfiguration, "argument change")
}

// TestDerivationAddedOrRemovedIsInconsistent checks that a stream cannot
// switch between leaf and derived in place.
func (s *Suite) TestDerivationAddedOrRemovedIsInconsistent() {
	src := s.ensure(datastream.Tags{"node": "node-a", "name": "tx_bytes"}, nil, leafOptions())

	leafQuery := datastream.Tags{"node": "node-a", "name": "load"}
	s.ensure(leafQuery, nil, leafOptions())

	toDerived := datastream.EnsureOptions{
		ValueType:  datastream.ValueNumeric,
		DeriveOp:   datastream.OpSum,
		DeriveFrom: []datastream.DeriveInput{{Stream: src}},
	}
	_, err := s.store.EnsureStream(s.ctx, leafQuery, nil, toDerived)
	s.ErrorIs(err, datastream.ErrInconsistentStreamConfiguration, "leaf to derived")

	derivedQuery := datastream.Tags{"node": "node-a", "name": "total_bytes"}
	s.ensure(derivedQuery, nil, toDerived)

	_, err = s.store.EnsureStream(s.ctx, derivedQuery, nil, leafOptions())
	s.ErrorIs(err, datastream.ErrInconsistentStreamConfiguration, "derived to leaf")
}

// TestCounterDerivationShapes ensures the operator shapes the field engine
// produces for counters: reset marker over the counter, then a rate stream
// gated by the reset marker.
func (s *Suite) TestCounterDerivationShapes() {
	counter := s.ensure(
		datastream.Tags{"node": "node-a", "name": "tx_bytes"},
		nil,
		datastream.EnsureOptions{
			ValueType:          datastream.ValueNumeric,
			HighestGranularity: datastream.GranularitySeconds,
		},
	)

	resetOpts := datastream.EnsureOptions{
		ValueType:  datastream.ValueNominal,
		DeriveOp:   datastream.OpCounterReset,
		DeriveFrom: []datastream.DeriveInput{{Stream: counter}},
	}
	reset := s.ensure(datastream.Tags{"node": "node-a", "name": "tx_bytes_reset"}, nil, resetOpts)

	rateOpts := datastream.EnsureOptions{
		ValueType: datastream.ValueNumeric,
		DeriveOp:  datastream.OpCounterDerivative,
		DeriveFrom: []datastream.DeriveInput{
			{Name: "reset", Stream: reset},
			{Stream: counter},
		},
		DeriveArgs: map[string]any{"max_value": 1 << 32},
	}
	rate := s.ensure(datastream.Tags{"node": "node-a", "name": "tx_rate"}, nil, rateOpts)

	s.Equal(reset, s.ensure(datastream.Tags{"node": "node-a", "name": "tx_bytes_reset"}, nil, resetOpts))
	s.Equal(rate, s.ensure(datastream.Tags{"node": "node-a", "name": "tx_rate"}, nil, rateOpts))
}

// TestAppend checks plain appends, zero-time appends and the append error
// sentinels.
func (s *Suite) TestAppend() {
	id := s.ensure(datastream.Tags{"node": "node-a", "name": "load"}, nil, leafOptions())

	s.NoError(s.store.Append(s.ctx, id, 0.35, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)))
	s.NoError(s.store.Append(s.ctx, id, 0.40, time.Time{}), "zero time means the store picks now")

	err := s.store.Append(s.ctx, datastream.StreamID("no-such-stream"), 1, time.Time{})
	s.ErrorIs(err, datastream.ErrStreamNotFound)

	derived := s.ensure(datastream.Tags{"node": "node-a", "name": "total"}, nil, datastream.EnsureOptions{
		ValueType:  datastream.ValueNumeric,
		DeriveOp:   datastream.OpSum,
		DeriveFrom: []datastream.DeriveInput{{Stream: id}},
	})
	err = s.store.Append(s.ctx, derived, 1, time.Time{})
	s.ErrorIs(err, datastream.ErrAppendToDerived)
}

// TestDeleteBySubsumption checks that delete matches streams whose query tags
// contain the delete query, and only those.
func (s *Suite) TestDeleteBySubsumption() {
	wlanA := s.ensure(datastream.Tags{"node": "node-a", "name": "wlan0"}, nil, leafOptions())
	s.ensure(datastream.Tags{"node": "node-a", "name": "eth0"}, nil, leafOptions())
	wlanB := s.ensure(datastream.Tags{"node": "node-b", "name": "wlan0"}, nil, leafOptions())

	s.Require().NoError(s.store.DeleteStreams(s.ctx, datastream.Tags{"node": "node-a"}))

	err := s.store.Append(s.ctx, wlanA, 1, time.Time{})
	s.ErrorIs(err, datastream.ErrStreamNotFound, "matched stream should be gone")

	recreated := s.ensure(datastream.Tags{"node": "node-a", "name": "wlan0"}, nil, leafOptions())
	s.NotEqual(wlanA, recreated, "re-ensure after delete makes a fresh stream")

	survivor := s.ensure(datastream.Tags{"node": "node-b", "name": "wlan0"}, nil, leafOptions())
	s.Equal(wlanB, survivor, "unmatched stream should survive")
}

// TestDeleteMatchingNothing checks that a delete with no matches succeeds.
func (s *Suite) TestDeleteMatchingNothing() {
	s.NoError(s.store.DeleteStreams(s.ctx, datastream.Tags{"node": "absent"}))
}

// TestDeleteEverything checks that an empty query subsumes all streams.
func (s *Suite) TestDeleteEverything() {
	a := s.ensure(datastream.Tags{"node": "node-a", "name": "load"}, nil, leafOptions())
	b := s.ensure(datastream.Tags{"node": "node-b", "name": "load"}, nil, leafOptions())

	s.Require().NoError(s.store.DeleteStreams(s.ctx, datastream.Tags{}))

	s.NotEqual(a, s.ensure(datastream.Tags{"node": "node-a", "name": "load"}, nil, leafOptions()))
	s.NotEqual(b, s.ensure(datastream.Tags{"node": "node-b", "name": "load"}, nil, leafOptions()))
}

// TestEnsureRejectsUnknownValueType checks option validation. The error class
// is backend-specific; erroring at all is the contract.
func (s *Suite) TestEnsureRejectsUnknownValueType() {
	_, err := s.store.EnsureStream(s.ctx, datastream.Tags{"node": "node-a"}, nil, datastream.EnsureOptions{
		ValueType: datastream.ValueType("histogram"),
	})
	s.Error(err)
}
