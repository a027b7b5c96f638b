package fields

import (
	"github.com/mitjajez/nodewatcher/datastream"
	"github.com/mitjajez/nodewatcher/errors"
)

// Descriptor adapts one domain object for stream materialization. It is
// consumed, not owned: the domain package wraps its models and decides what
// identifies a stream (query tags), what describes it (stream tags, which may
// contain TagReference values) and how fine its streams are.
type Descriptor interface {
	// Model returns the wrapped domain object.
	Model() any

	// StreamTags returns the descriptive tags every stream of this object
	// starts from. Values may be TagReference.
	StreamTags() datastream.Tags

	// StreamQueryTags returns the identity tags every stream of this object
	// starts from.
	StreamQueryTags() datastream.Tags

	// StreamHighestGranularity returns the finest resolution streams of this
	// object are created at.
	StreamHighestGranularity() datastream.Granularity

	// Schema returns the object's declared fields.
	Schema() *Schema

	// ResolveModelReference resolves a named reference to another domain
	// object, for derived fields whose sources live elsewhere.
	ResolveModelReference(name string) (any, error)
}

// Pool resolves a domain object to its descriptor. It is dependency-injected
// everywhere so tests and reconciliation runs can use isolated pools.
type Pool interface {
	Descriptor(model any) (Descriptor, error)
}

// Engine binds the stream store and the descriptor pool. Every field
// materialization runs against an Engine.
//
// The engine holds no locks, retries nothing and has no timeouts of its own:
// it assumes one monitoring pass over one descriptor at a time and leaves
// concurrent-idempotency, backoff and deadlines to the store client.
type Engine struct {
	store datastream.Store
	pool  Pool
}

// NewEngine creates an engine over the given store and pool.
func NewEngine(store datastream.Store, pool Pool) (*Engine, error) {
	if store == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "fields", "NewEngine", "store cannot be nil")
	}
	if pool == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "fields", "NewEngine", "pool cannot be nil")
	}
	return &Engine{store: store, pool: pool}, nil
}

// Store returns the engine's stream store.
func (e *Engine) Store() datastream.Store { return e.store }

// Pool returns the engine's descriptor pool.
func (e *Engine) Pool() Pool { return e.pool }
