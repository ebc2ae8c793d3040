// Package param models the parameter space of a simulation model: the
// bounds and point estimate of every parameter, plus the per-iteration
// active/passive classification used by the projection engine.
//
// Emulator iterations are 1-based everywhere in this module. Iteration 0 is
// never a valid key.
package param

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrUnknownParameter is returned when a requested parameter name is not part
// of the model. Unknown names are fatal; passive parameters are not (they are
// filtered silently by the request resolver).
var ErrUnknownParameter = errors.New("unknown model parameter")

// Parameter describes a single model parameter: the range the model accepts
// and an optional point estimate drawn as a marker in projection figures.
type Parameter struct {
	Name     string
	Min, Max float64
	Estimate *float64 // nil when the model has no preferred value
}

// Est is a convenience for building a Parameter with a point estimate.
func Est(v float64) *float64 { return &v }

// Space holds the full parameter set of a model together with the
// per-iteration active classification. A Space is safe for concurrent use.
type Space struct {
	mu     sync.RWMutex
	params []Parameter
	index  map[string]int
	active map[int][]string // iteration -> sorted active parameter names
}

// NewSpace builds a Space from the given parameters. Names must be unique,
// must not contain "-" (it joins parameter pairs in projection names), and
// every range must satisfy Min < Max.
func NewSpace(params ...Parameter) (*Space, error) {
	if len(params) < 2 {
		return nil, fmt.Errorf("a model needs at least 2 parameters, got %d", len(params))
	}
	s := &Space{
		params: make([]Parameter, len(params)),
		index:  make(map[string]int, len(params)),
		active: make(map[int][]string),
	}
	for i, p := range params {
		if p.Name == "" {
			return nil, fmt.Errorf("parameter %d has an empty name", i)
		}
		if strings.Contains(p.Name, "-") {
			return nil, fmt.Errorf("parameter name %q must not contain %q", p.Name, "-")
		}
		if _, dup := s.index[p.Name]; dup {
			return nil, fmt.Errorf("duplicate parameter name %q", p.Name)
		}
		if !(p.Min < p.Max) {
			return nil, fmt.Errorf("parameter %q has invalid range [%g, %g]", p.Name, p.Min, p.Max)
		}
		if p.Estimate != nil && (*p.Estimate < p.Min || *p.Estimate > p.Max) {
			return nil, fmt.Errorf("parameter %q estimate %g outside range [%g, %g]",
				p.Name, *p.Estimate, p.Min, p.Max)
		}
		s.params[i] = p
		s.index[p.Name] = i
	}
	return s, nil
}

// Dim returns the number of model parameters.
func (s *Space) Dim() int { return len(s.params) }

// Names returns the parameter names in declaration order.
func (s *Space) Names() []string {
	names := make([]string, len(s.params))
	for i, p := range s.params {
		names[i] = p.Name
	}
	return names
}

// Lookup returns the parameter with the given name.
func (s *Space) Lookup(name string) (Parameter, error) {
	i, ok := s.index[name]
	if !ok {
		return Parameter{}, fmt.Errorf("%w: %q", ErrUnknownParameter, name)
	}
	return s.params[i], nil
}

// Bounds returns the full model range of the named parameter.
func (s *Space) Bounds(name string) (lo, hi float64, err error) {
	p, err := s.Lookup(name)
	if err != nil {
		return 0, 0, err
	}
	return p.Min, p.Max, nil
}

// Estimate returns the point estimate of the named parameter, or nil when the
// model declares none.
func (s *Space) Estimate(name string) (*float64, error) {
	p, err := s.Lookup(name)
	if err != nil {
		return nil, err
	}
	return p.Estimate, nil
}

// SetActive records the active parameter set for an emulator iteration. Every
// name must be known. The stored set is sorted so that downstream key
// construction is deterministic.
func (s *Space) SetActive(iteration int, names []string) error {
	if iteration < 1 {
		return fmt.Errorf("iteration must be 1-based, got %d", iteration)
	}
	sorted := make([]string, 0, len(names))
	for _, name := range names {
		if _, ok := s.index[name]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownParameter, name)
		}
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.active[iteration] = sorted
	return nil
}

// Active returns the sorted active parameter names for an iteration. When no
// classification has been recorded for the iteration, all model parameters
// are considered active.
func (s *Space) Active(iteration int) []string {
	s.mu.RLock()
	names, ok := s.active[iteration]
	s.mu.RUnlock()
	if ok {
		return append([]string(nil), names...)
	}
	all := s.Names()
	sort.Strings(all)
	return all
}

// IsActive reports whether the named parameter is active in the given
// iteration. Unknown names are an error; passive names are not.
func (s *Space) IsActive(name string, iteration int) (bool, error) {
	if _, ok := s.index[name]; !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownParameter, name)
	}
	for _, a := range s.Active(iteration) {
		if a == name {
			return true, nil
		}
	}
	return false, nil
}
