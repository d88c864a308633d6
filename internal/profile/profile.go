// Package profile implements the transcription profile registry.
//
// A profile is a named, parameterized runner configuration. Profile types
// are registered once at startup and never removed; users then create
// runner instances from a type identifier plus parameter values, which are
// validated against the declared parameter specs.
package profile

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/scribepipe/scribepipe/internal/transcribe"
)

var (
	// ErrDuplicateProfile indicates a profile identifier was registered twice.
	ErrDuplicateProfile = errors.New("profile: duplicate profile")

	// ErrUnknownProfile indicates the requested identifier is not registered.
	ErrUnknownProfile = errors.New("profile: unknown profile")

	// ErrInvalidParameter indicates a supplied parameter violates its spec.
	ErrInvalidParameter = errors.New("profile: invalid parameter")
)

// ParamType enumerates the supported parameter value types.
type ParamType string

const (
	ParamString ParamType = "string"
	ParamInt    ParamType = "int"
	ParamFloat  ParamType = "float"
	ParamBool   ParamType = "bool"
)

// ParamSpec declares one configurable parameter of a profile type.
type ParamSpec struct {
	Name    string
	Type    ParamType
	Default any
	// Min and Max bound numeric parameters when non-nil.
	Min, Max *float64
}

// Descriptor identifies a profile type and its parameter signature.
type Descriptor struct {
	// ID is the unique profile-type identifier, e.g. "silero-en".
	ID string
	// DisplayName is the human-readable profile name.
	DisplayName string
	// Params lists the configurable parameters in display order.
	Params []ParamSpec
}

// Params maps parameter names to user-supplied values.
type Params map[string]any

// Factory constructs a runner instance from fully resolved parameters.
// The factory receives every declared parameter: defaults merged with the
// validated user values.
type Factory func(params Params) (transcribe.Runner, error)

type entry struct {
	desc    Descriptor
	factory Factory
}

// Registry maps profile-type identifiers to runner factories. Safe for
// concurrent use; registration happens at startup, creation at any time.
type Registry struct {
	mu      sync.RWMutex
	order   []string
	entries map[string]entry
}

// NewRegistry returns an empty profile registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register adds a profile type. It fails with ErrDuplicateProfile if the
// identifier is already taken.
func (r *Registry) Register(desc Descriptor, factory Factory) error {
	if desc.ID == "" {
		return fmt.Errorf("profile: empty identifier")
	}
	if factory == nil {
		return fmt.Errorf("profile: nil factory for %q", desc.ID)
	}
	for _, spec := range desc.Params {
		if err := checkValue(spec, spec.Default); err != nil {
			return fmt.Errorf("profile %q: bad default for %q: %w", desc.ID, spec.Name, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[desc.ID]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateProfile, desc.ID)
	}
	r.entries[desc.ID] = entry{desc: desc, factory: factory}
	r.order = append(r.order, desc.ID)
	return nil
}

// Create instantiates a runner for the identified profile type, merging
// the supplied parameters over the declared defaults.
func (r *Registry) Create(id string, params Params) (transcribe.Runner, error) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProfile, id)
	}

	resolved, err := resolve(e.desc, params)
	if err != nil {
		return nil, err
	}
	return e.factory(resolved)
}

// Describe returns the descriptor for the identified profile type.
func (r *Registry) Describe(id string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	return e.desc, ok
}

// List returns all descriptors in registration order.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.entries[id].desc)
	}
	return out
}

// resolve merges params over the descriptor defaults and validates every
// supplied value against its spec.
func resolve(desc Descriptor, params Params) (Params, error) {
	specs := make(map[string]ParamSpec, len(desc.Params))
	out := make(Params, len(desc.Params))
	for _, spec := range desc.Params {
		specs[spec.Name] = spec
		out[spec.Name] = spec.Default
	}

	for name, value := range params {
		spec, ok := specs[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q is not a parameter of %q", ErrInvalidParameter, name, desc.ID)
		}
		coerced, err := coerce(spec, value)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidParameter, name, err)
		}
		out[name] = coerced
	}
	return out, nil
}

// coerce converts value to the spec's canonical Go type and range-checks it.
func coerce(spec ParamSpec, value any) (any, error) {
	switch spec.Type {
	case ParamString:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("want string, got %T", value)
		}
		return s, nil

	case ParamBool:
		b, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("want bool, got %T", value)
		}
		return b, nil

	case ParamInt:
		var n int64
		switch v := value.(type) {
		case int:
			n = int64(v)
		case int64:
			n = v
		case float64:
			if v != math.Trunc(v) {
				return nil, fmt.Errorf("want integer, got %g", v)
			}
			n = int64(v)
		default:
			return nil, fmt.Errorf("want integer, got %T", value)
		}
		if err := checkRange(spec, float64(n)); err != nil {
			return nil, err
		}
		return n, nil

	case ParamFloat:
		var f float64
		switch v := value.(type) {
		case float64:
			f = v
		case float32:
			f = float64(v)
		case int:
			f = float64(v)
		case int64:
			f = float64(v)
		default:
			return nil, fmt.Errorf("want number, got %T", value)
		}
		if err := checkRange(spec, f); err != nil {
			return nil, err
		}
		return f, nil

	default:
		return nil, fmt.Errorf("unsupported parameter type %q", spec.Type)
	}
}

func checkRange(spec ParamSpec, v float64) error {
	if spec.Min != nil && v < *spec.Min {
		return fmt.Errorf("%g below minimum %g", v, *spec.Min)
	}
	if spec.Max != nil && v > *spec.Max {
		return fmt.Errorf("%g above maximum %g", v, *spec.Max)
	}
	return nil
}

// checkValue validates a default against its own spec at registration time.
func checkValue(spec ParamSpec, value any) error {
	if value == nil {
		return fmt.Errorf("missing default")
	}
	_, err := coerce(spec, value)
	return err
}

// Float reads a float parameter from resolved params, accepting the
// canonical types coerce produces.
func (p Params) Float(name string) float64 {
	switch v := p[name].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	}
	return 0
}

// Int reads an int parameter from resolved params.
func (p Params) Int(name string) int64 {
	switch v := p[name].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

// Bool reads a bool parameter from resolved params.
func (p Params) Bool(name string) bool {
	b, _ := p[name].(bool)
	return b
}

// String reads a string parameter from resolved params.
func (p Params) String(name string) string {
	s, _ := p[name].(string)
	return s
}
