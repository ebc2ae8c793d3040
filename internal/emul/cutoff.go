// Package emul defines the boundary between the projection engine and the
// emulator: implausibility cut-off vectors, the Evaluator interface, and an
// iteration-keyed registry of emulator state. The regression machinery that
// constructs emulators lives outside this module; the projection engine only
// ever calls Evaluate.
package emul

import (
	"errors"
	"fmt"
)

// ErrNotConstructed is returned when an emulator iteration has no built state.
// It is surfaced before any grid computation begins.
var ErrNotConstructed = errors.New("emulator iteration not constructed")

// Wildcard marks a cut-off entry that is never checked. Wildcard entries
// consume the largest implausibility values of a sample so that only the
// remaining values are compared against real thresholds.
const Wildcard = 0

// CutoffVector is an ordered sequence of implausibility thresholds for one
// emulator iteration. Entries equal to Wildcard are skipped. The first
// non-wildcard entry is the "first cut-off"; the implausibility value aligned
// with it is the per-sample statistic the projection aggregator minimises.
type CutoffVector struct {
	Values []float64
}

// NewCutoffVector validates and builds a cut-off vector. At least one entry
// must be a real (non-wildcard) threshold and no entry may be negative.
func NewCutoffVector(values ...float64) (CutoffVector, error) {
	if len(values) == 0 {
		return CutoffVector{}, errors.New("cut-off vector is empty")
	}
	real := false
	for i, v := range values {
		if v < 0 {
			return CutoffVector{}, fmt.Errorf("cut-off %d is negative (%g)", i, v)
		}
		if v != Wildcard {
			real = true
		}
	}
	if !real {
		return CutoffVector{}, errors.New("cut-off vector contains only wildcards")
	}
	return CutoffVector{Values: append([]float64(nil), values...)}, nil
}

// FirstCutIndex returns the index of the first non-wildcard cut-off.
func (c CutoffVector) FirstCutIndex() int {
	for i, v := range c.Values {
		if v != Wildcard {
			return i
		}
	}
	return -1
}

// FirstCut returns the first non-wildcard threshold value.
func (c CutoffVector) FirstCut() float64 {
	return c.Values[c.FirstCutIndex()]
}

// Check compares a sample's implausibility vector against the cut-offs.
//
// The vector must be sorted in decreasing order (the evaluator's contract)
// and at least long enough to reach the first cut-off. Positions holding a
// wildcard are skipped; when the vector is shorter than the cut-off list the
// surplus cut-offs are unchecked, and vice versa.
//
// implFirst is always the value aligned with the first cut-off — even when
// the sample fails at a later threshold. A sample can therefore record a low
// implFirst while being implausible; the unsmoothed projection preserves this
// artifact on purpose.
func (c CutoffVector) Check(impl []float64) (plausible bool, implFirst float64, err error) {
	idx := c.FirstCutIndex()
	if len(impl) <= idx {
		return false, 0, fmt.Errorf("implausibility vector has %d values, need at least %d",
			len(impl), idx+1)
	}
	implFirst = impl[idx]

	plausible = true
	for i, cut := range c.Values {
		if i >= len(impl) {
			break
		}
		if cut == Wildcard {
			continue
		}
		if impl[i] > cut {
			plausible = false
			break
		}
	}
	return plausible, implFirst, nil
}
