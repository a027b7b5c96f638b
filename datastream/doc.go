// Package datastream defines the client-side API of the time-series stream
// store: the tag structures that identify and describe streams, the stream
// configuration types, and the narrow Store interface the rest of the system
// programs against.
//
// # Streams and tags
//
// A stream is a named, tagged time-series container living in an external
// store. Two independent tag sets attach to every stream:
//
//   - Query tags identify the stream. Ensuring a stream with the same query
//     tags always addresses the same stream; the store allocates the stream id
//     on first contact and returns the existing id afterwards.
//   - Descriptive tags annotate the stream (visualization hints, units,
//     device metadata). They carry no identity: changing them updates the
//     stream in place.
//
// Both sets are open-ended nested structures (maps of maps with scalar and
// array leaves), represented here as Tags. The helpers on Tags implement the
// algebra the engine relies on: deep Clone, deep Merge where the overlay wins
// on leaves, and recursive Subsumes matching for delete-by-query.
//
// # Derived streams
//
// A stream may be declared as derived: the store computes its datapoints from
// one or more source streams using a named operator (counter_reset,
// counter_derivative, sum). Derivation is part of the stream's shape. The
// store updates descriptive tags and downsamplers of an existing stream in
// place, but it never silently rewires derivation: a re-ensure whose
// derivation disagrees with the existing stream fails with
// ErrInconsistentStreamConfiguration, and the caller decides how to
// reconcile. Appending datapoints directly to a derived stream fails with
// ErrAppendToDerived.
//
// # Implementations
//
// Two Store implementations ship with this module:
//
//   - memory: a complete in-process reference backend used by tests and by
//     monitord's development mode.
//   - natsstore: a client speaking JSON request/reply over NATS to a remote
//     store service, plus the matching service adapter.
//
// The streamtest package holds a conformance suite that any Store
// implementation is expected to pass.
//
// Store implementations must be safe for concurrent use; the store is the
// single synchronization point for callers that parallelize monitoring work.
package datastream
