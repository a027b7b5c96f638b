// Package nodes is the concrete monitoring domain the daemon ships with:
// mesh network nodes and their interfaces, the stream schemas declared for
// them, and the static YAML inventory that stands in for the external node
// record store.
//
// The Adapter owns the shared interface schema; each node descriptor builds
// its own node schema because the traffic sum's source list is per-node
// state and cycle workers process nodes concurrently.
// Node streams cover latency, uptime (with
// reset and rate derivations), client counts, load, wifi channels, status
// and topology; interface streams cover traffic counters with reset and rate
// derivations in both directions. Two constructions exercise the engine's
// cross-object machinery: the node's primary_rx_rate field derives from
// counter streams on the primary interface through a model reference, and
// the node's traffic field dynamically sums the rate streams of all current
// interfaces, refreshed each cycle by PrepareCycle.
package nodes
