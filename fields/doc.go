// Package fields is the declarative mapping from domain-object attributes to
// time-series streams: a small compiler from a per-object schema to the
// stream-identity operations of a datastream.Store.
//
// # Schemas and descriptors
//
// Every monitored object kind declares a Schema: an ordered set of named
// fields. A Descriptor wraps one concrete object and contributes what the
// schema cannot know ahead of time: the object's identity tags, descriptive
// tags (which may embed TagReference values resolved at materialization
// time), the finest stream granularity, and references to related objects. A
// Pool resolves objects to descriptors; it is passed in explicitly so tests
// and isolated reconciliation runs never share registry state.
//
// # Field kinds
//
// The set of field kinds is closed:
//
//   - ScalarField extracts one value per cycle from the object (by value
//     function, by StreamAttributer, or by reflection over struct fields with
//     `datastream` tags) and appends it to its stream. Its Kind fixes value
//     coercion, the store value type, a kind tag and default downsamplers.
//   - DerivedField declares a stream the store computes from other fields'
//     streams via a named operator. Sources are "<reference>#<field>"
//     locators; a non-empty reference reaches a field on a different object
//     through the descriptor's model references and the pool. NewReset and
//     NewRate cover the two built-in counter derivations.
//   - DynamicSumField sums a source set mutated at run time. When the set
//     changes shape, the existing stream is dropped and recreated without
//     backprocessing; see the type's documentation for the trade-off.
//
// # Materialization
//
// Materialization always runs against an Engine, which binds the store and
// the pool. EnsureStream is idempotent: the same field and descriptor always
// address the same stream, with descriptive tags and downsamplers refreshed
// in place. ToStream additionally appends the current value for scalar
// fields; an absent value skips the append but still ensures the stream, so
// streams exist from the first cycle even when data lags.
//
// The engine holds no locks and no retry or timeout policy. It expects one
// monitoring pass over one descriptor at a time and leaves everything else
// to the store client.
package fields
