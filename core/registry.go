package core

import (
	"fmt"
	"sort"
	"sync"
)

// Registry is the thread-safe lookup table behind a FlowMesh instance. It
// maps flow names to their definitions and schema names to reflected JSON
// schemas. Values are stored untyped because flow definitions are generic;
// the flow package owns the concrete types.
type Registry struct {
	mu      sync.RWMutex
	flows   map[string]any
	schemas map[string]map[string]any
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		flows:   make(map[string]any),
		schemas: make(map[string]map[string]any),
	}
}

// RegisterFlow records a flow definition under its name. Registering the
// same name twice is a programming error.
func (r *Registry) RegisterFlow(name string, def any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.flows[name]; ok {
		return fmt.Errorf("flow %q already registered", name)
	}
	r.flows[name] = def
	return nil
}

// LookupFlow returns the definition registered under name, or nil.
func (r *Registry) LookupFlow(name string) any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.flows[name]
}

// ListFlows returns the sorted names of all registered flows.
func (r *Registry) ListFlows() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.flows))
	for name := range r.flows {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RegisterSchema records a reflected JSON schema under a type name,
// replacing any previous registration.
func (r *Registry) RegisterSchema(name string, schema map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemas[name] = schema
}

// LookupSchema returns the schema registered under name, or nil.
func (r *Registry) LookupSchema(name string) map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.schemas[name]
}
