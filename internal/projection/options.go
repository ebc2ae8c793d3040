package projection

import (
	"fmt"
	"runtime"
)

// Alignment selects how a figure's two panels are tiled.
type Alignment string

const (
	AlignColumn Alignment = "col"
	AlignRow    Alignment = "row"
)

// Options is the explicit, typed configuration of a projection request.
// Every flag of the request surface lives here with a documented default;
// unrecognized settings cannot exist by construction.
type Options struct {
	// Resolution is the number of grid values per plotted parameter axis.
	// Default 15.
	Resolution int

	// BaseDepth is the number of hidden-parameter samples per grid point for
	// a 3D projection. 2D projections of models with more than two active
	// parameters use Resolution*BaseDepth so both projection shapes keep the
	// same sample density per unit of grid. Default 150.
	BaseDepth int

	// Smooth removes the low-implausibility/zero-plausible-fraction artifact
	// by raising such cells' minimum implausibility to the first cut-off.
	// Default false: the artifact is informative and kept.
	Smooth bool

	// Figure controls whether figure artifacts are rendered after
	// aggregation. Default true.
	Figure bool

	// Force discards a cached dataset and its derived figures before
	// recomputing. Default false.
	Force bool

	// Align tiles the two figure panels in a column or a row. Default col.
	Align Alignment

	// ShowCuts draws every non-wildcard cut-off line instead of only the
	// first. Rendering-only. Default false.
	ShowCuts bool

	// UseParSpace draws axes over the full model parameter space instead of
	// the emulator iteration's plausible region. Rendering-only; stored data
	// never changes. Default false.
	UseParSpace bool

	// FullImplRange starts the minimum-implausibility colour range at the
	// smallest plotted value instead of zero. Rendering-only. Default false.
	FullImplRange bool

	// Seed fixes the Latin-Hypercube RNG. Zero selects a time-based seed.
	Seed int64

	// Workers bounds the goroutines evaluating grid points. Zero means
	// GOMAXPROCS.
	Workers int
}

// DefaultOptions returns the documented defaults, matching the projection
// parameter file defaults (n_proj_samples=15, n_hidden_samples=150).
func DefaultOptions() Options {
	return Options{
		Resolution: 15,
		BaseDepth:  150,
		Figure:     true,
		Align:      AlignColumn,
	}
}

// Validate rejects structurally invalid option combinations.
func (o Options) Validate() error {
	if o.Resolution < 2 {
		return fmt.Errorf("resolution must be at least 2, got %d", o.Resolution)
	}
	if o.BaseDepth < 1 {
		return fmt.Errorf("base depth must be positive, got %d", o.BaseDepth)
	}
	if o.Align != AlignColumn && o.Align != AlignRow {
		return fmt.Errorf("invalid alignment %q", o.Align)
	}
	if o.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", o.Workers)
	}
	return nil
}

// workers resolves the effective worker count.
func (o Options) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// depth resolves the effective per-grid-point sample depth for a key,
// applying the density-equalization rule.
func (o Options) depth(typ Type, activeCount int) int {
	if typ == Type2D && activeCount > 2 {
		return o.Resolution * o.BaseDepth
	}
	return o.BaseDepth
}
