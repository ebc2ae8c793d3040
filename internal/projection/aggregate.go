package projection

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/prism-data/prism/internal/emul"
	"github.com/prism-data/prism/internal/monitoring"
	"github.com/prism-data/prism/internal/param"
)

// Cell is the aggregated result of one grid point: the lowest first-cut-off
// implausibility any depth sample reached, and the fraction of depth samples
// that passed every cut-off ("line-of-sight depth").
type Cell struct {
	MinImpl       float64 `json:"min_impl"`
	FracPlausible float64 `json:"frac_plausible"`
}

// Dataset is the full grid of cells for one projection key, immutable once
// computed except for deletion from the store.
type Dataset struct {
	Key        Key
	Resolution int
	Depth      int
	Seed       int64

	// Axes holds the grid coordinate array per plotted parameter.
	Axes [][]float64

	// Cells is laid out like Grid.Points (row-major for 3D keys).
	Cells []Cell

	// FirstCut is the first non-wildcard cut-off of the iteration, kept with
	// the dataset so renderers and the smoothing pass need no registry access.
	FirstCut float64

	// Smoothed records whether the smoothing pass ran on these cells.
	Smoothed bool

	CreatedAt time.Time
}

// Aggregator evaluates projection grids against the emulator and reduces the
// raw sample results into datasets.
type Aggregator struct {
	gen *Generator
	reg *emul.Registry
}

func NewAggregator(space *param.Space, reg *emul.Registry) *Aggregator {
	return &Aggregator{gen: NewGenerator(space, reg), reg: reg}
}

// Project computes the dataset for one key. Grid points are independent, so
// they are evaluated in parallel with a bounded worker count; within a grid
// point the depth samples run sequentially and the minimum keeps the first
// sample encountered on ties, which is stable for a fixed seed.
func (a *Aggregator) Project(ctx context.Context, key Key, opts Options) (*Dataset, error) {
	st, err := a.reg.State(key.Iteration)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	grid, err := a.gen.Grid(key, opts)
	if err != nil {
		return nil, err
	}
	monitoring.Logf("[Projection] evaluating %s: %d grid points x %d samples",
		key, len(grid.Points), grid.Depth)

	cells := make([]Cell, len(grid.Points))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.workers())
	for i := range grid.Points {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			cell, err := a.reduce(key.Iteration, &grid.Points[i])
			if err != nil {
				return fmt.Errorf("grid point %d: %w", i, err)
			}
			cells[i] = cell
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ds := &Dataset{
		Key:        key,
		Resolution: len(grid.Axes[0]),
		Depth:      grid.Depth,
		Seed:       grid.Seed,
		Axes:       grid.Axes,
		Cells:      cells,
		FirstCut:   st.Cutoffs.FirstCut(),
	}
	if opts.Smooth {
		ApplySmoothing(ds)
	}
	monitoring.Logf("[Projection] finished %s in %.2fs", key, time.Since(start).Seconds())
	return ds, nil
}

// reduce folds the depth samples of one grid point into a cell.
func (a *Aggregator) reduce(iteration int, gp *GridPoint) (Cell, error) {
	minImpl := 0.0
	plausibleCount := 0
	for s, sample := range gp.Samples {
		plausible, implFirst, err := a.reg.CheckSample(iteration, sample)
		if err != nil {
			return Cell{}, err
		}
		if s == 0 || implFirst < minImpl {
			minImpl = implFirst
		}
		if plausible {
			plausibleCount++
		}
	}
	return Cell{
		MinImpl:       minImpl,
		FracPlausible: float64(plausibleCount) / float64(len(gp.Samples)),
	}, nil
}

// ApplySmoothing removes the unsmoothed-projection artifact: a cell with no
// plausible sample cannot honestly report an implausibility below the first
// cut-off (the low value came from a sample that failed a later cut-off), so
// such cells are raised to the first cut-off. Cells with any plausible sample
// are untouched. The pass is idempotent.
func ApplySmoothing(ds *Dataset) {
	for i := range ds.Cells {
		c := &ds.Cells[i]
		if c.FracPlausible == 0 && c.MinImpl < ds.FirstCut {
			c.MinImpl = ds.FirstCut
		}
	}
	ds.Smoothed = true
}
