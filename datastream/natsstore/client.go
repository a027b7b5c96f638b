package natsstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/mitjajez/nodewatcher/datastream"
	"github.com/mitjajez/nodewatcher/errors"
	"github.com/mitjajez/nodewatcher/pkg/retry"
)

// Conn is the slice of *nats.Conn the client needs.
type Conn interface {
	RequestWithContext(ctx context.Context, subject string, data []byte) (*nats.Msg, error)
}

// Client is a datastream.Store speaking JSON request/reply over NATS to a
// remote stream store service.
//
// Ensure and delete requests are idempotent, so transient transport and
// store failures retry with backoff. Appends never retry: a duplicated
// datapoint corrupts the series, a missed one is just a gap until the next
// cycle.
type Client struct {
	conn    Conn
	prefix  string
	timeout time.Duration
	retry   retry.Config
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithPrefix sets the subject prefix (default DefaultPrefix).
func WithPrefix(prefix string) ClientOption {
	return func(c *Client) {
		if prefix != "" {
			c.prefix = prefix
		}
	}
}

// WithRequestTimeout bounds every individual request round trip.
func WithRequestTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithRetry replaces the backoff configuration for ensure and delete.
func WithRetry(cfg retry.Config) ClientOption {
	return func(c *Client) { c.retry = cfg }
}

// NewClient creates a store client over the given connection.
func NewClient(conn Conn, opts ...ClientOption) (*Client, error) {
	if conn == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "natsstore", "NewClient",
			"connection cannot be nil")
	}
	c := &Client{
		conn:    conn,
		prefix:  DefaultPrefix,
		timeout: 10 * time.Second,
		retry:   retry.Quick(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// EnsureStream sends an ensure request, retrying transient failures.
func (c *Client) EnsureStream(
	ctx context.Context, queryTags, tags datastream.Tags, opts datastream.EnsureOptions,
) (datastream.StreamID, error) {
	req := ensureRequest{QueryTags: queryTags, Tags: tags, Options: opts}
	return retry.DoWithResult(ctx, c.retry, func() (datastream.StreamID, error) {
		var resp ensureResponse
		if err := c.request(ctx, subjectEnsure, req, &resp); err != nil {
			return "", err
		}
		if err := fromWireError(resp.Error); err != nil {
			if errors.IsTransient(err) {
				return "", err
			}
			// Store-level rejections are not transport flakes; surface them
			// without further attempts.
			return "", retry.NonRetryable(err)
		}
		return resp.StreamID, nil
	})
}

// Append sends one datapoint. No retries.
func (c *Client) Append(ctx context.Context, id datastream.StreamID, value any, at time.Time) error {
	req := appendRequest{StreamID: id, Value: value, Timestamp: wireTimestamp(at)}
	var resp appendResponse
	if err := c.request(ctx, subjectAppend, req, &resp); err != nil {
		return err
	}
	return fromWireError(resp.Error)
}

// DeleteStreams sends a delete-by-query request, retrying transient
// failures.
func (c *Client) DeleteStreams(ctx context.Context, queryTags datastream.Tags) error {
	req := deleteRequest{QueryTags: queryTags}
	return retry.Do(ctx, c.retry, func() error {
		var resp deleteResponse
		if err := c.request(ctx, subjectDelete, req, &resp); err != nil {
			return err
		}
		if err := fromWireError(resp.Error); err != nil {
			if errors.IsTransient(err) {
				return err
			}
			return retry.NonRetryable(err)
		}
		return nil
	})
}

func (c *Client) request(ctx context.Context, suffix string, req, resp any) error {
	data, err := json.Marshal(req)
	if err != nil {
		return errors.WrapInvalid(err, "natsstore", "request", "marshal request")
	}

	reqCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	subject := c.prefix + "." + suffix
	msg, err := c.conn.RequestWithContext(reqCtx, subject, data)
	if err != nil {
		return errors.WrapTransient(err, "natsstore", "request",
			fmt.Sprintf("request %s", subject))
	}
	if err := json.Unmarshal(msg.Data, resp); err != nil {
		return errors.WrapTransient(err, "natsstore", "request",
			fmt.Sprintf("unmarshal %s response", subject))
	}
	return nil
}
