// Package registry holds the descriptor pool: the mapping from domain-object
// kinds to the descriptor factories that adapt them for stream
// materialization. The pool is always passed explicitly (to the fields
// engine, to the monitor runner, to tests) so isolated pools never share
// registrations.
package registry

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/mitjajez/nodewatcher/errors"
	"github.com/mitjajez/nodewatcher/fields"
)

// Factory wraps one domain object in its descriptor. Factories run once per
// descriptor lookup and must be cheap; schemas are shared, not rebuilt.
type Factory func(model any) fields.Descriptor

// Pool maps model types to descriptor factories. It implements fields.Pool
// and is safe for concurrent use, though registration is expected to finish
// before monitoring starts.
type Pool struct {
	mu        sync.RWMutex
	factories map[reflect.Type]Factory
}

// NewPool creates an empty pool.
func NewPool() *Pool {
	return &Pool{factories: make(map[reflect.Type]Factory)}
}

// Register binds a descriptor factory to the type of prototype. Pointer
// types are normalized to their element type, so registering with *Node and
// looking up either *Node or Node address the same factory. Registering a
// type twice is a configuration error.
func (p *Pool) Register(prototype any, factory Factory) error {
	if factory == nil {
		return errors.WrapInvalid(errors.ErrInvalidData, "registry", "Register",
			"factory cannot be nil")
	}
	key, err := modelType(prototype)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.factories[key]; exists {
		return errors.WrapInvalid(errors.ErrInvalidData, "registry", "Register",
			fmt.Sprintf("descriptor for %s already registered", key))
	}
	p.factories[key] = factory
	return nil
}

// MustRegister is Register for static setup code; it panics on a
// registration error, which can only be a programming mistake.
func (p *Pool) MustRegister(prototype any, factory Factory) {
	if err := p.Register(prototype, factory); err != nil {
		panic(err)
	}
}

// Descriptor wraps model in its registered descriptor.
func (p *Pool) Descriptor(model any) (fields.Descriptor, error) {
	key, err := modelType(model)
	if err != nil {
		return nil, err
	}

	p.mu.RLock()
	factory, ok := p.factories[key]
	p.mu.RUnlock()
	if !ok {
		return nil, errors.WrapInvalid(
			fmt.Errorf("model type %s: %w", key, errors.ErrModelNotRegistered),
			"registry", "Descriptor", "resolve descriptor")
	}
	return factory(model), nil
}

// Registered returns the number of registered model types.
func (p *Pool) Registered() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.factories)
}

func modelType(model any) (reflect.Type, error) {
	if model == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "registry", "modelType",
			"model cannot be nil")
	}
	t := reflect.TypeOf(model)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t, nil
}
