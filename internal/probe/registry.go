package probe

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyName      = errors.New("probe has empty name")
	ErrDuplicateProbe = errors.New("probe already registered")
	ErrEmptyRegistry  = errors.New("no probes registered")
)

// Registry is the fixed set of probes run every cycle. It is built once at
// startup and read-only afterwards.
type Registry struct {
	probes []Probe
	names  map[string]struct{}
}

func NewRegistry(probes ...Probe) (*Registry, error) {
	r := &Registry{names: make(map[string]struct{}, len(probes))}
	for _, p := range probes {
		if err := r.Register(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Register(p Probe) error {
	name := p.Name()
	if name == "" {
		return ErrEmptyName
	}
	if _, ok := r.names[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateProbe, name)
	}
	r.names[name] = struct{}{}
	r.probes = append(r.probes, p)
	return nil
}

// Probes returns the registered probes in registration order.
func (r *Registry) Probes() []Probe {
	out := make([]Probe, len(r.probes))
	copy(out, r.probes)
	return out
}

func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.probes))
	for _, p := range r.probes {
		out = append(out, p.Name())
	}
	return out
}

func (r *Registry) Len() int { return len(r.probes) }
