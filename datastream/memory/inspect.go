package memory

import (
	"github.com/mitjajez/nodewatcher/datastream"
)

// StreamInfo is a point-in-time copy of one stream's configuration. Tests
// assert against it; the monitoring pipeline never needs it.
type StreamInfo struct {
	ID                 datastream.StreamID
	QueryTags          datastream.Tags
	Tags               datastream.Tags
	Downsamplers       []datastream.Downsampler
	HighestGranularity datastream.Granularity
	ValueType          datastream.ValueType

	Derived       bool
	DeriveOp      string
	DeriveFrom    []datastream.DeriveInput
	DeriveArgs    map[string]any
	NoBackprocess bool
}

// StreamCount returns the number of live streams.
func (s *Store) StreamCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byKey)
}

// Info returns a copy of one stream's configuration.
func (s *Store) Info(id datastream.StreamID) (StreamInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.byID[id]
	if !ok {
		return StreamInfo{}, false
	}
	return st.info(), true
}

// Find returns the stream whose identity is exactly queryTags. Subsumption
// does not apply here; use DeleteStreams semantics for that.
func (s *Store) Find(queryTags datastream.Tags) (StreamInfo, bool) {
	key, err := datastream.CanonicalKey(queryTags)
	if err != nil {
		return StreamInfo{}, false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.byKey[key]
	if !ok {
		return StreamInfo{}, false
	}
	return st.info(), true
}

// Datapoints returns a copy of a leaf stream's buffered datapoints, oldest
// first. Unknown ids and derived streams return nil.
func (s *Store) Datapoints(id datastream.StreamID) []datastream.Datapoint {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.byID[id]
	if !ok || st.points == nil {
		return nil
	}
	return st.points.Items()
}

func (st *stream) info() StreamInfo {
	info := StreamInfo{
		ID:                 st.id,
		QueryTags:          st.queryTags.Clone(),
		Tags:               st.tags.Clone(),
		Downsamplers:       append([]datastream.Downsampler(nil), st.downsamplers...),
		HighestGranularity: st.granularity,
		ValueType:          st.valueType,
	}
	if st.derive != nil {
		info.Derived = true
		info.DeriveOp = st.derive.op
		info.DeriveFrom = append([]datastream.DeriveInput(nil), st.derive.inputs...)
		info.DeriveArgs = cloneArgs(st.derive.args)
		info.NoBackprocess = st.derive.noBackprocess
	}
	return info
}

func cloneArgs(args map[string]any) map[string]any {
	if args == nil {
		return nil
	}
	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = v
	}
	return out
}
