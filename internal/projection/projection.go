// Package projection implements the projection engine: sampling the plausible
// region of a parameter space over 2D/3D grids, reducing per-sample emulator
// evaluations into per-grid-point minimum-implausibility and plausible
// fraction statistics, and resolving caller requests into concrete projection
// keys.
package projection

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrUnsupportedProjection is returned when a 3D projection is requested
	// against a model with only two parameters. The request is rejected, not
	// coerced: silent coercion hides caller mistakes.
	ErrUnsupportedProjection = errors.New("3D projection unsupported for 2-parameter model")

	// ErrNotEnoughParams is returned when, after passive filtering, too few
	// parameters remain to build the requested projection.
	ErrNotEnoughParams = errors.New("not enough active parameters for projection")
)

// Type identifies the shape of a projection.
type Type string

const (
	// Type2D projects one parameter: an R-length grid with per-point depth
	// samples over the remaining active parameters.
	Type2D Type = "2D"

	// Type3D projects a parameter pair over an RxR grid.
	Type3D Type = "3D"

	// TypeBoth is request-only: it expands to all 3D pairs plus all 2D
	// singles on models with more than two active parameters.
	TypeBoth Type = "both"
)

// Key identifies one projection dataset: the emulator iteration (1-based),
// the sorted plotted parameter subset, and the projection type.
type Key struct {
	Iteration int
	Params    []string
	Type      Type
}

// NewKey builds a normalized key with the parameter subset sorted.
func NewKey(iteration int, typ Type, params ...string) Key {
	sorted := append([]string(nil), params...)
	sort.Strings(sorted)
	return Key{Iteration: iteration, Params: sorted, Type: typ}
}

// Name returns the parameter part of the key ("A" or "A-B"), which also names
// derived figure artifacts.
func (k Key) Name() string {
	return strings.Join(k.Params, "-")
}

func (k Key) String() string {
	return fmt.Sprintf("%d/%s/%s", k.Iteration, k.Name(), k.Type)
}

// Validate checks the structural invariants of a key.
func (k Key) Validate() error {
	if k.Iteration < 1 {
		return fmt.Errorf("key iteration must be 1-based, got %d", k.Iteration)
	}
	switch k.Type {
	case Type2D:
		if len(k.Params) != 1 {
			return fmt.Errorf("2D key needs exactly 1 parameter, got %d", len(k.Params))
		}
	case Type3D:
		if len(k.Params) != 2 {
			return fmt.Errorf("3D key needs exactly 2 parameters, got %d", len(k.Params))
		}
	default:
		return fmt.Errorf("invalid key type %q", k.Type)
	}
	if !sort.StringsAreSorted(k.Params) {
		return fmt.Errorf("key parameters %v are not sorted", k.Params)
	}
	return nil
}
