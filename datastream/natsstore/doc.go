// Package natsstore carries the datastream store API over NATS
// request/reply.
//
// The Client implements datastream.Store by publishing JSON requests on
// three subjects under a configurable prefix (ensure, append, delete) and
// decoding the reply. Store sentinels such as
// datastream.ErrInconsistentStreamConfiguration survive the round trip as
// wire error codes, so callers match remote errors exactly like local ones.
// Ensure and delete requests are retried with backoff on transport
// failures; appends never are, since a duplicate datapoint is worse than a
// missing one.
//
// The Server is the other end: it exposes any datastream.Store (typically
// the memory backend) on the same subjects, dispatching requests on a
// bounded worker pool. Multiple server replicas share a queue group.
//
// Typical wiring:
//
//	client, err := natsstore.NewClient(nc)
//	if err != nil {
//		return err
//	}
//	engine := fields.NewEngine(client, pool)
package natsstore
