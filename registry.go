package orchestrator

import (
	"fmt"
	"sort"
	"sync"
)

// registration pairs a component spec with its live instance.
type registration struct {
	spec      ComponentSpec
	component Component
}

// ComponentRegistry is the thread-safe store of registered components.
// Specs are immutable once registered; registration fails on duplicate
// ids. A declared dependency that has no registration yet is logged but
// accepted — the dependency may register later, and plan construction
// re-checks the graph.
type ComponentRegistry struct {
	mu     sync.RWMutex
	items  map[string]registration
	logger Logger
}

// NewComponentRegistry creates an empty registry.
func NewComponentRegistry(logger Logger) *ComponentRegistry {
	if logger == nil {
		logger = NewSlogLogger(nil)
	}
	return &ComponentRegistry{
		items:  make(map[string]registration),
		logger: logger,
	}
}

// Register validates the spec and stores it with its instance.
func (r *ComponentRegistry) Register(spec ComponentSpec, component Component) error {
	if component == nil {
		return fmt.Errorf("register '%s': %w", spec.ID, ErrComponentNil)
	}
	if err := spec.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[spec.ID]; exists {
		return fmt.Errorf("register '%s': %w", spec.ID, ErrComponentAlreadyRegistered)
	}

	for _, dep := range spec.Dependencies {
		if _, ok := r.items[dep]; !ok {
			r.logger.Warn("Required dependency not registered yet",
				"component", spec.ID, "dependency", dep)
		}
	}
	for _, dep := range spec.OptionalDependencies {
		if _, ok := r.items[dep]; !ok {
			r.logger.Debug("Optional dependency not registered",
				"component", spec.ID, "dependency", dep)
		}
	}

	r.items[spec.ID] = registration{spec: spec, component: component}
	r.logger.Debug("Registered component", "component", spec.ID, "type", spec.Type)
	return nil
}

// Get returns the spec and instance for id.
func (r *ComponentRegistry) Get(id string) (ComponentSpec, Component, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, ok := r.items[id]
	if !ok {
		return ComponentSpec{}, nil, false
	}
	return reg.spec, reg.component, true
}

// Specs returns all registered specs sorted by id.
func (r *ComponentRegistry) Specs() []ComponentSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	specs := make([]ComponentSpec, 0, len(r.items))
	for _, reg := range r.items {
		specs = append(specs, reg.spec)
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].ID < specs[j].ID })
	return specs
}

// Len returns the number of registered components.
func (r *ComponentRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}
