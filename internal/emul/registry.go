package emul

import (
	"fmt"
	"sync"
)

// Evaluator is the call boundary to a constructed emulator. Evaluate returns
// the implausibility vector of a sample at one iteration, sorted in
// decreasing order so that it aligns with the iteration's cut-off vector
// (wildcard cut-offs consume the largest values).
//
// Evaluate must be safe for concurrent use: the projection aggregator fans
// grid points out over multiple goroutines.
type Evaluator interface {
	Evaluate(iteration int, sample map[string]float64) ([]float64, error)
}

// IterationState holds the projection-relevant state of one constructed
// emulator iteration. Iterations are 1-based.
type IterationState struct {
	Iteration int
	Cutoffs   CutoffVector

	// Active is the sorted list of parameters the emulator found active in
	// this iteration. Passive parameters are excluded from projections.
	Active []string

	// Ranges holds the emulator-defined plausible range per active parameter.
	// These may be narrower than the full model bounds; projection grids span
	// them unless the caller asks for full model-space axes.
	Ranges map[string][2]float64
}

// Registry is a versioned store of emulator iteration state, passed by handle
// into the projection engine instead of being reached through ambient
// process-wide state. It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	eval   Evaluator
	states map[int]*IterationState
	latest int
}

// NewRegistry wraps an evaluator with an empty iteration store.
func NewRegistry(eval Evaluator) *Registry {
	return &Registry{
		eval:   eval,
		states: make(map[int]*IterationState),
	}
}

// AddIteration records the state of a newly constructed iteration.
func (r *Registry) AddIteration(state *IterationState) error {
	if state.Iteration < 1 {
		return fmt.Errorf("iteration must be 1-based, got %d", state.Iteration)
	}
	if state.Cutoffs.FirstCutIndex() < 0 {
		return fmt.Errorf("iteration %d has no real cut-off", state.Iteration)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.states[state.Iteration]; dup {
		return fmt.Errorf("iteration %d already constructed", state.Iteration)
	}
	r.states[state.Iteration] = state
	if state.Iteration > r.latest {
		r.latest = state.Iteration
	}
	return nil
}

// Latest returns the highest constructed iteration, or 0 when none exists.
func (r *Registry) Latest() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.latest
}

// State returns the stored state for an iteration, or ErrNotConstructed.
func (r *Registry) State(iteration int) (*IterationState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.states[iteration]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNotConstructed, iteration)
	}
	return st, nil
}

// Evaluate delegates to the underlying evaluator after confirming the
// iteration exists.
func (r *Registry) Evaluate(iteration int, sample map[string]float64) ([]float64, error) {
	if _, err := r.State(iteration); err != nil {
		return nil, err
	}
	return r.eval.Evaluate(iteration, sample)
}

// CheckSample runs the full plausibility check of one sample: the sample is
// evaluated at every iteration from 1 up to and including the requested one,
// and is plausible only when it passes the cut-off check at each of them. The
// first-cut-off implausibility of the last iteration evaluated is returned,
// which for a plausible sample is the requested iteration itself.
func (r *Registry) CheckSample(iteration int, sample map[string]float64) (plausible bool, implFirst float64, err error) {
	if _, err := r.State(iteration); err != nil {
		return false, 0, err
	}
	plausible = true
	for i := 1; i <= iteration; i++ {
		st, err := r.State(i)
		if err != nil {
			return false, 0, err
		}
		impl, err := r.eval.Evaluate(i, sample)
		if err != nil {
			return false, 0, fmt.Errorf("evaluate iteration %d: %w", i, err)
		}
		ok, first, err := st.Cutoffs.Check(impl)
		if err != nil {
			return false, 0, fmt.Errorf("cut-off check iteration %d: %w", i, err)
		}
		implFirst = first
		if !ok {
			plausible = false
			break
		}
	}
	return plausible, implFirst, nil
}
