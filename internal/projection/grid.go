package projection

import (
	"fmt"
	"math/rand"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/prism-data/prism/internal/emul"
	"github.com/prism-data/prism/internal/param"
)

// GridPoint pins the plotted parameter(s) to one grid coordinate and carries
// the depth samples over the remaining active parameters.
type GridPoint struct {
	// Values holds the plotted parameter values, aligned with Key.Params.
	Values []float64

	// Samples are full parameter assignments: plotted values pinned, hidden
	// active parameters from the Latin-Hypercube design, passive parameters
	// pinned to their estimates.
	Samples []map[string]float64
}

// Grid is the complete sample layout of one projection before evaluation.
// Resolution and depth are fixed at generation time and never mutated.
//
// For 3D keys Points is row-major: point [i*R+j] pins Key.Params[0] to
// Axes[0][i] and Key.Params[1] to Axes[1][j].
type Grid struct {
	Key   Key
	Axes  [][]float64
	Depth int
	Seed  int64

	Points []GridPoint
}

// Generator builds projection grids from the parameter space and the
// emulator iteration state.
type Generator struct {
	space *param.Space
	reg   *emul.Registry
}

func NewGenerator(space *param.Space, reg *emul.Registry) *Generator {
	return &Generator{space: space, reg: reg}
}

// rangeFor prefers the emulator iteration's plausible range and falls back to
// the full model bounds.
func (g *Generator) rangeFor(st *emul.IterationState, name string) ([2]float64, error) {
	if r, ok := st.Ranges[name]; ok {
		return r, nil
	}
	lo, hi, err := g.space.Bounds(name)
	if err != nil {
		return [2]float64{}, err
	}
	return [2]float64{lo, hi}, nil
}

// Grid generates the sample grid for a key. The plotted axes span the
// emulator iteration's ranges; every grid point shares one Latin-Hypercube
// design over the hidden active parameters, with the plotted values pinned
// per point.
func (g *Generator) Grid(key Key, opts Options) (*Grid, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	st, err := g.reg.State(key.Iteration)
	if err != nil {
		return nil, err
	}

	activeSet := make(map[string]bool, len(st.Active))
	for _, name := range st.Active {
		activeSet[name] = true
	}
	for _, name := range key.Params {
		if _, err := g.space.Lookup(name); err != nil {
			return nil, err
		}
		if !activeSet[name] {
			return nil, fmt.Errorf("plotted parameter %q is passive in iteration %d", name, key.Iteration)
		}
	}

	// Hidden parameters: active but not plotted.
	plotted := make(map[string]bool, len(key.Params))
	for _, name := range key.Params {
		plotted[name] = true
	}
	var hidden []string
	for _, name := range st.Active {
		if !plotted[name] {
			hidden = append(hidden, name)
		}
	}

	// Passive parameters are pinned to their estimate (range midpoint when
	// the model declares none); the emulator is insensitive to them in this
	// iteration by definition.
	pinned := make(map[string]float64)
	for _, name := range g.space.Names() {
		if activeSet[name] {
			continue
		}
		p, err := g.space.Lookup(name)
		if err != nil {
			return nil, err
		}
		if p.Estimate != nil {
			pinned[name] = *p.Estimate
		} else {
			pinned[name] = (p.Min + p.Max) / 2
		}
	}

	depth := opts.depth(key.Type, len(st.Active))
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	axes := make([][]float64, len(key.Params))
	for i, name := range key.Params {
		r, err := g.rangeFor(st, name)
		if err != nil {
			return nil, err
		}
		axes[i] = floats.Span(make([]float64, opts.Resolution), r[0], r[1])
	}

	hiddenRanges := make([][2]float64, len(hidden))
	for i, name := range hidden {
		r, err := g.rangeFor(st, name)
		if err != nil {
			return nil, err
		}
		hiddenRanges[i] = r
	}
	design := lhd(depth, hiddenRanges, rng)

	grid := &Grid{Key: key, Axes: axes, Depth: depth, Seed: seed}
	addPoint := func(values []float64) {
		gp := GridPoint{Values: values, Samples: make([]map[string]float64, depth)}
		for s := 0; s < depth; s++ {
			sample := make(map[string]float64, g.space.Dim())
			for name, v := range pinned {
				sample[name] = v
			}
			for h, name := range hidden {
				sample[name] = design[s][h]
			}
			for p, name := range key.Params {
				sample[name] = values[p]
			}
			gp.Samples[s] = sample
		}
		grid.Points = append(grid.Points, gp)
	}

	switch key.Type {
	case Type2D:
		for i := 0; i < opts.Resolution; i++ {
			addPoint([]float64{axes[0][i]})
		}
	case Type3D:
		for i := 0; i < opts.Resolution; i++ {
			for j := 0; j < opts.Resolution; j++ {
				addPoint([]float64{axes[0][i], axes[1][j]})
			}
		}
	}
	return grid, nil
}
