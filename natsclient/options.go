package natsclient

import (
	"errors"
	"log/slog"
	"time"

	"github.com/mitjajez/nodewatcher/metric"
	"github.com/mitjajez/nodewatcher/pkg/security"
)

type tlsConfigHolder struct {
	cfg security.ClientTLSConfig
}

// Option configures a Client.
type Option func(*Client) error

// WithMaxReconnects sets the reconnect limit (-1 = unlimited).
func WithMaxReconnects(max int) Option {
	return func(c *Client) error {
		c.maxReconnects = max
		return nil
	}
}

// WithReconnectWait sets the wait between reconnect attempts.
func WithReconnectWait(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return errors.New("reconnect wait must be positive")
		}
		c.reconnectWait = d
		return nil
	}
}

// WithPingInterval sets the keepalive ping interval.
func WithPingInterval(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return errors.New("ping interval must be positive")
		}
		c.pingInterval = d
		return nil
	}
}

// WithConnectTimeout bounds the initial dial.
func WithConnectTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return errors.New("connect timeout must be positive")
		}
		c.timeout = d
		return nil
	}
}

// WithDrainTimeout bounds connection draining on Close.
func WithDrainTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return errors.New("drain timeout must be positive")
		}
		c.drainTimeout = d
		return nil
	}
}

// WithCredentials sets username/password authentication.
func WithCredentials(username, password string) Option {
	return func(c *Client) error {
		c.username = username
		c.password = password
		return nil
	}
}

// WithToken sets token authentication.
func WithToken(token string) Option {
	return func(c *Client) error {
		c.token = token
		return nil
	}
}

// WithTLS enables TLS using the platform client TLS configuration.
func WithTLS(cfg security.ClientTLSConfig) Option {
	return func(c *Client) error {
		c.tlsConfig = &tlsConfigHolder{cfg: cfg}
		return nil
	}
}

// WithName sets the client name visible to the server.
func WithName(name string) Option {
	return func(c *Client) error {
		c.clientName = name
		return nil
	}
}

// WithLogger replaces the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		c.logger = logger
		return nil
	}
}

// WithMetrics wires connection status, reconnect and RTT metrics.
func WithMetrics(metrics *metric.Metrics) Option {
	return func(c *Client) error {
		c.metrics = metrics
		return nil
	}
}

// WithRTTInterval sets how often the RTT gauge is sampled.
func WithRTTInterval(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return errors.New("RTT interval must be positive")
		}
		c.rttInterval = d
		return nil
	}
}

// WithDisconnectCallback registers a callback for disconnect events.
func WithDisconnectCallback(fn func(error)) Option {
	return func(c *Client) error {
		c.onDisconnect = fn
		return nil
	}
}

// WithReconnectCallback registers a callback for successful reconnects.
func WithReconnectCallback(fn func()) Option {
	return func(c *Client) error {
		c.onReconnect = fn
		return nil
	}
}
