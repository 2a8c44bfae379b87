package stage

import (
	"errors"
	"fmt"

	"github.com/kingrea/The-Spiral/internal/config"
)

// ErrUnknown is returned when resolving a name nobody registered.
var ErrUnknown = errors.New("stage: unknown name")

// Factory constructs a stage.
type Factory func(Env) Stage

// Registry maps stage names to factories. It is filled once at startup and
// read afterwards; registration is not safe for concurrent use.
type Registry struct {
	order     []string
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// Register installs a factory under a stage name. The name must be one of
// config.Stages, since it selects the pulse interval the runner waits.
func (r *Registry) Register(name string, factory Factory) error {
	if !config.IsStage(name) {
		return fmt.Errorf("stage: %q has no pulse interval", name)
	}
	if factory == nil {
		return fmt.Errorf("stage: factory is required for %s", name)
	}
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("stage: %s already registered", name)
	}
	r.factories[name] = factory
	r.order = append(r.order, name)
	return nil
}

// MustRegister panics if registration fails.
func (r *Registry) MustRegister(name string, factory Factory) {
	if err := r.Register(name, factory); err != nil {
		panic(err)
	}
}

// Resolve constructs a stage by name. A factory whose stage reports a
// different name is an error: the runner, ledger and metrics all key on
// Name().
func (r *Registry) Resolve(name string, env Env) (Stage, error) {
	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknown, name)
	}
	s := factory(env.WithDefaults())
	if s == nil {
		return nil, fmt.Errorf("stage: factory for %s returned nil", name)
	}
	if s.Name() != name {
		return nil, fmt.Errorf("stage: factory for %s built %s", name, s.Name())
	}
	return s, nil
}

// Names returns the registered names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}
