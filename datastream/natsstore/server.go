package natsstore

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/mitjajez/nodewatcher/datastream"
	"github.com/mitjajez/nodewatcher/errors"
	"github.com/mitjajez/nodewatcher/metric"
	"github.com/mitjajez/nodewatcher/pkg/worker"
)

const (
	defaultServerWorkers   = 8
	defaultServerQueueSize = 256

	// queueGroup load-balances requests across server replicas.
	queueGroup = "nodewatcher-datastream"
)

// Server exposes a datastream.Store over NATS request/reply. Requests are
// decoded from the subjects the Client publishes on and dispatched to the
// backing store on a bounded worker pool.
type Server struct {
	conn      *nats.Conn
	store     datastream.Store
	logger    *slog.Logger
	prefix    string
	workers   int
	queueSize int
	registry  *metric.MetricsRegistry
	metrics   *metric.Metrics

	mu      sync.Mutex
	started bool
	pool    *worker.Pool[*nats.Msg]
	subs    []*nats.Subscription
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerPrefix overrides the subject prefix the server listens on.
func WithServerPrefix(prefix string) ServerOption {
	return func(s *Server) { s.prefix = prefix }
}

// WithServerWorkers sets the worker count and queue size of the request
// pool.
func WithServerWorkers(workers, queueSize int) ServerOption {
	return func(s *Server) {
		s.workers = workers
		s.queueSize = queueSize
	}
}

// WithServerMetrics wires request counters and worker pool metrics into the
// given registry.
func WithServerMetrics(registry *metric.MetricsRegistry) ServerOption {
	return func(s *Server) { s.registry = registry }
}

// NewServer creates a store server over the given connection. The server
// does not listen until Start is called.
func NewServer(conn *nats.Conn, store datastream.Store, logger *slog.Logger, opts ...ServerOption) (*Server, error) {
	if conn == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "natsstore", "NewServer",
			"connection cannot be nil")
	}
	if store == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "natsstore", "NewServer",
			"store cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		conn:      conn,
		store:     store,
		logger:    logger.With("component", "natsstore"),
		prefix:    DefaultPrefix,
		workers:   defaultServerWorkers,
		queueSize: defaultServerQueueSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.registry != nil {
		s.metrics = s.registry.CoreMetrics()
	}
	return s, nil
}

// Start subscribes to the store subjects and begins serving requests. The
// context bounds the lifetime of the worker pool.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "natsstore", "Start", "server already started")
	}

	poolOpts := []worker.Option[*nats.Msg]{}
	if s.registry != nil {
		poolOpts = append(poolOpts, worker.WithMetricsRegistry[*nats.Msg](s.registry, "natsstore"))
	}
	pool, err := worker.NewPool(s.workers, s.queueSize, s.process, poolOpts...)
	if err != nil {
		return errors.Wrap(err, "natsstore", "Start", "create worker pool")
	}
	if err := pool.Start(ctx); err != nil {
		return errors.Wrap(err, "natsstore", "Start", "start worker pool")
	}

	subjects := []string{subjectEnsure, subjectAppend, subjectDelete}
	subs := make([]*nats.Subscription, 0, len(subjects))
	for _, suffix := range subjects {
		subject := s.prefix + "." + suffix
		sub, err := s.conn.QueueSubscribe(subject, queueGroup, func(msg *nats.Msg) {
			if err := pool.Submit(msg); err != nil {
				s.logger.Warn("request dropped", "subject", msg.Subject, "error", err)
				s.respond(msg, &ensureResponse{Error: &wireError{
					Code:    codeInternal,
					Message: "server overloaded",
				}})
			}
		})
		if err != nil {
			for _, prev := range subs {
				_ = prev.Unsubscribe()
			}
			_ = pool.Stop(time.Second)
			return errors.WrapTransient(err, "natsstore", "Start", "subscribe "+subject)
		}
		subs = append(subs, sub)
	}

	s.pool = pool
	s.subs = subs
	s.started = true
	s.logger.Info("store server started", "prefix", s.prefix, "workers", s.workers)
	return nil
}

// Stop unsubscribes and drains in-flight requests within the timeout.
func (s *Server) Stop(timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return errors.WrapInvalid(errors.ErrNotStarted, "natsstore", "Stop", "server not started")
	}
	for _, sub := range s.subs {
		if err := sub.Unsubscribe(); err != nil {
			s.logger.Warn("unsubscribe failed", "error", err)
		}
	}
	s.subs = nil
	s.started = false

	if err := s.pool.Stop(timeout); err != nil {
		return errors.WrapTransient(err, "natsstore", "Stop", "drain worker pool")
	}
	s.logger.Info("store server stopped")
	return nil
}

// process is the worker pool processor for one inbound request.
func (s *Server) process(ctx context.Context, msg *nats.Msg) error {
	suffix := strings.TrimPrefix(msg.Subject, s.prefix+".")
	reply := s.handle(ctx, suffix, msg.Data)
	if err := msg.Respond(reply); err != nil {
		s.logger.Warn("reply failed", "subject", msg.Subject, "error", err)
		return errors.WrapTransient(err, "natsstore", "process", "publish reply")
	}
	return nil
}

// handle decodes one request, dispatches it to the store and encodes the
// response. It is transport-agnostic so tests can drive it directly.
func (s *Server) handle(ctx context.Context, suffix string, data []byte) []byte {
	start := time.Now()
	switch suffix {
	case subjectEnsure:
		var req ensureRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return s.encode(&ensureResponse{Error: decodeError(err)})
		}
		id, err := s.store.EnsureStream(ctx, req.QueryTags, req.Tags, req.Options)
		s.observe("ensure", err, start)
		if err != nil {
			s.logger.Warn("ensure stream failed", "query_tags", req.QueryTags, "error", err)
			return s.encode(&ensureResponse{Error: toWireError(err)})
		}
		return s.encode(&ensureResponse{StreamID: id})

	case subjectAppend:
		var req appendRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return s.encode(&appendResponse{Error: decodeError(err)})
		}
		err := s.store.Append(ctx, req.StreamID, req.Value, fromWireTimestamp(req.Timestamp))
		s.observe("append", err, start)
		if err != nil {
			s.logger.Warn("append failed", "stream_id", req.StreamID, "error", err)
			return s.encode(&appendResponse{Error: toWireError(err)})
		}
		return s.encode(&appendResponse{})

	case subjectDelete:
		var req deleteRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return s.encode(&deleteResponse{Error: decodeError(err)})
		}
		err := s.store.DeleteStreams(ctx, req.QueryTags)
		s.observe("delete", err, start)
		if err != nil {
			s.logger.Warn("delete streams failed", "query_tags", req.QueryTags, "error", err)
			return s.encode(&deleteResponse{Error: toWireError(err)})
		}
		return s.encode(&deleteResponse{})

	default:
		return s.encode(&ensureResponse{Error: &wireError{
			Code:    codeInvalidRequest,
			Message: "unknown operation " + suffix,
		}})
	}
}

func (s *Server) observe(operation string, err error, start time.Time) {
	if s.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	switch operation {
	case "ensure":
		s.metrics.RecordStreamEnsured("natsstore", status)
	case "append":
		s.metrics.RecordDatapointAppended("natsstore", status)
	case "delete":
		s.metrics.RecordStreamsDeleted("natsstore", status)
	}
	s.metrics.RecordStoreRequestDuration("natsstore", operation, time.Since(start))
}

func (s *Server) encode(resp any) []byte {
	data, err := json.Marshal(resp)
	if err != nil {
		// Responses contain only JSON-safe types; a marshal failure means a
		// store handed back an unmarshalable value.
		s.logger.Error("encode response failed", "error", err)
		return []byte(`{"error":{"code":"internal","message":"encode response"}}`)
	}
	return data
}

func (s *Server) respond(msg *nats.Msg, resp any) {
	if err := msg.Respond(s.encode(resp)); err != nil {
		s.logger.Warn("reply failed", "subject", msg.Subject, "error", err)
	}
}

func decodeError(err error) *wireError {
	return &wireError{Code: codeInvalidRequest, Message: "decode request: " + err.Error()}
}
