// Package registry implements the component descriptor registry of
// spec.md §4.2: components register themselves by name at init time,
// and the graph looks them up by name when instantiating nodes.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/mitchellh/mapstructure"

	"github.com/wireflow/wireflow/internal/core"
)

// Slot describes one named, typed input or output of a component.
type Slot struct {
	Name string
	Type string // element type string, compared for strict equality on edges
}

// ParamSchema describes one constructor parameter a component accepts
// in init_args, JSON-schema-like per spec.md §4.2.
type ParamSchema struct {
	Name     string
	Type     string // "string", "int", "float", "bool", "duration"
	Required bool
	Default  any
}

// Factory constructs a fresh Node instance from decoded init args. The
// returned Node is not yet started.
type Factory func(initArgs map[string]any) (Node, error)

// Node is the runtime contract every component instance implements.
// Start/Step are optional in the sense that a node may be pure source
// (only Step, pushing on its own schedule) or pure reactive (only
// driven by inbound Receive calls in its own Step loop); see
// internal/runtime for how these are invoked.
type Node interface {
	// Start is called once before the node's task loop begins. A
	// no-op Start is valid.
	Start() error
	// Step performs one unit of work. Returning an error transitions
	// the node to core.StatusError.
	Step() error
	// Stop releases resources. Called exactly once, even after a
	// Step error.
	Stop() error
}

// Descriptor is the immutable registration record for one component
// kind.
type Descriptor struct {
	Name     string
	Category core.Category
	Inputs   []Slot
	Outputs  []Slot
	Params   []ParamSchema
	Factory  Factory
}

// Registry holds registered component descriptors. The zero value is
// usable; Default is the process-wide registry built-in components
// register themselves into from their package init().
type Registry struct {
	mu    sync.RWMutex
	descs map[string]Descriptor
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{descs: make(map[string]Descriptor)}
}

// Default is the process-wide registry. Built-in components call
// Register on it from their package-level init() functions, mirroring
// the teacher's global-registration-at-init pattern.
var Default = New()

// Register adds desc to r. Panics on a duplicate name, matching the
// teacher's stance that a name collision is a compile-time programmer
// error, not a runtime condition to recover from.
func (r *Registry) Register(desc Descriptor) {
	if desc.Name == "" {
		panic("registry: component name cannot be empty")
	}
	if desc.Factory == nil {
		panic(fmt.Sprintf("registry: component %q has a nil factory", desc.Name))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.descs == nil {
		r.descs = make(map[string]Descriptor)
	}
	if _, exists := r.descs[desc.Name]; exists {
		panic(fmt.Sprintf("registry: component %q already registered", desc.Name))
	}
	r.descs[desc.Name] = desc
}

// Lookup returns the descriptor for name.
func (r *Registry) Lookup(name string) (Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.descs[name]
	if !ok {
		return Descriptor{}, fmt.Errorf("component %q: %w", name, core.ErrComponentNotFound)
	}
	return d, nil
}

// List returns every registered descriptor, sorted by name.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.descs))
	for _, d := range r.descs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Instantiate looks up name and constructs a Node from rawArgs, which
// is decoded against the descriptor's declared Param schema via
// mapstructure. Required params missing from rawArgs (and without a
// Default) fail with core.ErrInvalidArgs.
func (r *Registry) Instantiate(name string, rawArgs map[string]any) (Node, Descriptor, error) {
	desc, err := r.Lookup(name)
	if err != nil {
		return nil, Descriptor{}, err
	}

	args := applyDefaults(desc.Params, rawArgs)
	if err := validateRequired(desc.Params, args); err != nil {
		return nil, desc, err
	}

	node, err := desc.Factory(args)
	if err != nil {
		return nil, desc, fmt.Errorf("component %q: %w: %v", name, core.ErrInvalidArgs, err)
	}
	return node, desc, nil
}

func applyDefaults(params []ParamSchema, rawArgs map[string]any) map[string]any {
	args := make(map[string]any, len(rawArgs))
	for k, v := range rawArgs {
		args[k] = v
	}
	for _, p := range params {
		if _, ok := args[p.Name]; !ok && p.Default != nil {
			args[p.Name] = p.Default
		}
	}
	return args
}

func validateRequired(params []ParamSchema, args map[string]any) error {
	for _, p := range params {
		if !p.Required {
			continue
		}
		if _, ok := args[p.Name]; !ok {
			return fmt.Errorf("missing required param %q: %w", p.Name, core.ErrInvalidArgs)
		}
	}
	return nil
}

// Decode is a convenience used by component factories to turn generic
// init_args into a typed options struct via mapstructure, the same
// decode step spec.md §4.2 requires of every factory.
func Decode(rawArgs map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      false,
	})
	if err != nil {
		return fmt.Errorf("registry: build decoder: %w", err)
	}
	if err := dec.Decode(rawArgs); err != nil {
		return fmt.Errorf("%w: %v", core.ErrInvalidArgs, err)
	}
	return nil
}
