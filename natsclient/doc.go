// Package natsclient manages the daemon's NATS connection.
//
// The Client wraps nats.Conn with the concerns the daemon cares about:
// credential and TLS configuration from the platform security config,
// context-bounded dialing, drain-on-close, and connection metrics
// (status gauge, reconnect counter, sampled RTT). Reconnection is left to
// the nats library; the client observes it through handlers and exposes the
// count.
//
//	client, err := natsclient.New(cfg.NATS.URLs,
//		natsclient.WithName("monitord"),
//		natsclient.WithMetrics(registry.CoreMetrics()),
//	)
//	if err != nil {
//		return err
//	}
//	if err := client.Connect(ctx); err != nil {
//		return err
//	}
//	defer client.Close(ctx)
//
//	store, err := natsstore.NewClient(client.Conn())
package natsclient
