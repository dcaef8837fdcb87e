package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/MrWong99/sayso/pkg/tts"
)

// ErrGatewayNotRegistered is returned by [Registry.Create] when no factory
// has been registered under the requested gateway name.
var ErrGatewayNotRegistered = errors.New("config: gateway not registered")

// GatewayFactory builds a [tts.Gateway] from its configuration block.
type GatewayFactory func(GatewayEntry) (tts.Gateway, error)

// Registry maps gateway names to their constructor functions. It is safe for
// concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]GatewayFactory
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]GatewayFactory),
	}
}

// Register registers a gateway factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) Register(name string, factory GatewayFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Create instantiates a gateway using the factory registered under entry.Name.
// Returns [ErrGatewayNotRegistered] if no factory has been registered for
// that name.
func (r *Registry) Create(entry GatewayEntry) (tts.Gateway, error) {
	r.mu.RLock()
	factory, ok := r.factories[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrGatewayNotRegistered, entry.Name)
	}
	return factory(entry)
}

// Names returns the registered gateway names in unspecified order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	return names
}
