package natsclient

import (
	"context"
	stderrors "errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/mitjajez/nodewatcher/errors"
	"github.com/mitjajez/nodewatcher/metric"
	"github.com/mitjajez/nodewatcher/pkg/tlsutil"
)

// Status is the state of the NATS connection.
type Status int

// Possible connection statuses.
const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
)

func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// ErrNotConnected is returned by operations that need a live connection.
var ErrNotConnected = stderrors.New("not connected to NATS")

// Client manages one NATS connection for the daemon: dialing, credentials,
// TLS, reconnect bookkeeping and connection metrics. Reconnection itself is
// left to the nats library; the client observes it through handlers.
type Client struct {
	urls    string
	logger  *slog.Logger
	metrics *metric.Metrics

	maxReconnects int
	reconnectWait time.Duration
	pingInterval  time.Duration
	timeout       time.Duration
	drainTimeout  time.Duration
	rttInterval   time.Duration

	// Credentials are cleared on close.
	username string
	password string
	token    string

	tlsConfig    *tlsConfigHolder
	clientName   string
	onReconnect  func()
	onDisconnect func(error)

	status     atomic.Value // Status
	reconnects atomic.Int32
	closed     atomic.Bool

	mu        sync.RWMutex
	conn      *nats.Conn
	rttCancel context.CancelFunc
	closeMu   sync.Mutex
}

// New creates a client for the given server URLs. It does not dial until
// Connect is called.
func New(urls []string, opts ...Option) (*Client, error) {
	if len(urls) == 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "natsclient", "New",
			"at least one NATS URL is required")
	}
	c := &Client{
		urls:          strings.Join(urls, ","),
		logger:        slog.Default(),
		maxReconnects: -1,
		reconnectWait: 2 * time.Second,
		pingInterval:  30 * time.Second,
		timeout:       5 * time.Second,
		drainTimeout:  30 * time.Second,
		rttInterval:   30 * time.Second,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, errors.WrapInvalid(err, "natsclient", "New", "apply option")
		}
	}
	c.logger = c.logger.With("component", "natsclient")
	c.status.Store(StatusDisconnected)
	return c, nil
}

// URLs returns the configured server URLs.
func (c *Client) URLs() string {
	return c.urls
}

// Status returns the current connection status.
func (c *Client) Status() Status {
	v := c.status.Load()
	if v == nil {
		return StatusDisconnected
	}
	return v.(Status)
}

// IsHealthy reports whether the connection is established.
func (c *Client) IsHealthy() bool {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	return conn != nil && conn.IsConnected()
}

// Conn returns the underlying connection, or nil before Connect.
func (c *Client) Conn() *nats.Conn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn
}

// Reconnects returns the number of reconnects observed so far.
func (c *Client) Reconnects() int32 {
	return c.reconnects.Load()
}

// RTT returns the round-trip time to the server.
func (c *Client) RTT() (time.Duration, error) {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil || !conn.IsConnected() {
		return 0, ErrNotConnected
	}
	return conn.RTT()
}

func (c *Client) buildConnectionOptions() ([]nats.Option, error) {
	opts := []nats.Option{
		nats.MaxReconnects(c.maxReconnects),
		nats.ReconnectWait(c.reconnectWait),
		nats.PingInterval(c.pingInterval),
		nats.Timeout(c.timeout),
		nats.DrainTimeout(c.drainTimeout),
		nats.DisconnectErrHandler(c.handleDisconnect),
		nats.ReconnectHandler(c.handleReconnect),
		nats.ClosedHandler(c.handleClosed),
		nats.ErrorHandler(c.handleError),
	}

	if c.username != "" && c.password != "" {
		opts = append(opts, nats.UserInfo(c.username, c.password))
	}
	if c.token != "" {
		opts = append(opts, nats.Token(c.token))
	}

	if c.tlsConfig != nil {
		tlsConf, err := tlsutil.LoadClientTLSConfig(c.tlsConfig.cfg)
		if err != nil {
			return nil, err
		}
		opts = append(opts, nats.Secure(tlsConf))
	}

	if c.clientName != "" {
		opts = append(opts, nats.Name(c.clientName))
	}
	return opts, nil
}

// Connect dials the server once. The nats library keeps reconnecting on its
// own afterwards, within MaxReconnects.
func (c *Client) Connect(ctx context.Context) error {
	c.status.Store(StatusConnecting)
	c.logger.Info("connecting to NATS", "urls", c.urls)

	opts, err := c.buildConnectionOptions()
	if err != nil {
		c.status.Store(StatusDisconnected)
		return errors.WrapInvalid(err, "natsclient", "Connect", "build TLS configuration")
	}

	connectDone := make(chan error, 1)
	go func() {
		conn, err := nats.Connect(c.urls, opts...)
		if err != nil {
			connectDone <- err
			return
		}
		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()
		connectDone <- nil
	}()

	select {
	case err := <-connectDone:
		if err != nil {
			c.status.Store(StatusDisconnected)
			return errors.WrapTransient(err, "natsclient", "Connect", "establish connection")
		}
	case <-ctx.Done():
		c.status.Store(StatusDisconnected)
		return errors.WrapTransient(ctx.Err(), "natsclient", "Connect", "connection cancelled")
	}

	c.status.Store(StatusConnected)
	c.logger.Info("connected to NATS", "urls", c.urls)

	if c.metrics != nil {
		c.metrics.RecordNATSStatus(true)
		c.startRTTPolling()
	}
	return nil
}

// Close drains and closes the connection. The context deadline bounds the
// drain; a second close is a no-op.
func (c *Client) Close(ctx context.Context) error {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if c.closed.Load() {
		return nil
	}
	c.closed.Store(true)

	c.mu.Lock()
	if c.rttCancel != nil {
		c.rttCancel()
		c.rttCancel = nil
	}
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	var drainErr error
	if conn != nil {
		drainTimeout := c.drainTimeout
		if deadline, ok := ctx.Deadline(); ok {
			if remaining := time.Until(deadline); remaining > 0 && remaining < drainTimeout {
				drainTimeout = remaining
			}
		}

		drainDone := make(chan error, 1)
		go func() {
			drainDone <- conn.Drain()
		}()

		select {
		case err := <-drainDone:
			if err != nil {
				drainErr = errors.Wrap(err, "natsclient", "Close", "drain connection")
			}
		case <-time.After(drainTimeout):
			drainErr = errors.WrapTransient(stderrors.New("drain timeout"),
				"natsclient", "Close", "drain connection")
			c.logger.Warn("drain timed out, force closing", "timeout", drainTimeout)
		case <-ctx.Done():
			drainErr = errors.Wrap(ctx.Err(), "natsclient", "Close", "drain cancelled")
		}
		conn.Close()
	}

	c.username = ""
	c.password = ""
	c.token = ""

	c.status.Store(StatusDisconnected)
	if c.metrics != nil {
		c.metrics.RecordNATSStatus(false)
	}
	return drainErr
}

func (c *Client) handleDisconnect(_ *nats.Conn, err error) {
	c.status.Store(StatusReconnecting)
	c.logger.Warn("NATS disconnected", "error", err)
	if c.metrics != nil {
		c.metrics.RecordNATSStatus(false)
	}
	if c.onDisconnect != nil {
		c.onDisconnect(err)
	}
}

func (c *Client) handleReconnect(conn *nats.Conn) {
	c.reconnects.Add(1)
	c.status.Store(StatusConnected)
	c.logger.Info("NATS reconnected", "url", conn.ConnectedUrl())
	if c.metrics != nil {
		c.metrics.RecordNATSReconnect()
		c.metrics.RecordNATSStatus(true)
	}
	if c.onReconnect != nil {
		c.onReconnect()
	}
}

func (c *Client) handleClosed(_ *nats.Conn) {
	c.logger.Info("NATS connection closed")
	if !c.closed.Load() {
		c.status.Store(StatusDisconnected)
	}
}

func (c *Client) handleError(_ *nats.Conn, sub *nats.Subscription, err error) {
	if sub != nil {
		c.logger.Warn("NATS async error", "subject", sub.Subject, "error", err)
		return
	}
	c.logger.Warn("NATS async error", "error", err)
}

// startRTTPolling samples the server round-trip time for the metrics
// endpoint. Runs until Close.
func (c *Client) startRTTPolling() {
	ctx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.rttCancel = cancel
	c.mu.Unlock()

	go func() {
		ticker := time.NewTicker(c.rttInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if rtt, err := c.RTT(); err == nil {
					c.metrics.RecordNATSRTT(rtt)
				}
			}
		}
	}()
}
