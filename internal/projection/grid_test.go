package projection

import (
	"errors"
	"testing"

	"github.com/prism-data/prism/internal/emul"
)

func flatEval(values ...float64) emul.Evaluator {
	return stubEvaluator{fn: func(int, map[string]float64) []float64 {
		return append([]float64(nil), values...)
	}}
}

func TestGrid3DLayout(t *testing.T) {
	space, reg := testModel(t, []float64{4.0, 3.8}, flatEval(1, 1), nil)
	gen := NewGenerator(space, reg)

	opts := DefaultOptions()
	opts.Resolution = 5
	opts.BaseDepth = 8
	opts.Seed = 11

	grid, err := gen.Grid(NewKey(1, Type3D, "A", "C"), opts)
	if err != nil {
		t.Fatal(err)
	}
	if len(grid.Points) != 25 {
		t.Fatalf("got %d grid points, want 25", len(grid.Points))
	}
	if grid.Depth != 8 {
		t.Errorf("Depth = %d, want 8", grid.Depth)
	}
	if len(grid.Axes) != 2 || len(grid.Axes[0]) != 5 || len(grid.Axes[1]) != 5 {
		t.Fatalf("unexpected axes shape %v", grid.Axes)
	}
	// Axes span the model bounds: A in [0,10], C in [0,100].
	if grid.Axes[0][0] != 0 || grid.Axes[0][4] != 10 {
		t.Errorf("A axis = %v, want linspace over [0, 10]", grid.Axes[0])
	}

	// Row-major: point [i*R+j] pins A to Axes[0][i] and C to Axes[1][j].
	for i := 0; i < 5; i++ {
		for j := 0; j < 5; j++ {
			gp := grid.Points[i*5+j]
			if gp.Values[0] != grid.Axes[0][i] || gp.Values[1] != grid.Axes[1][j] {
				t.Fatalf("point (%d,%d) values = %v", i, j, gp.Values)
			}
			for _, sample := range gp.Samples {
				if sample["A"] != grid.Axes[0][i] || sample["C"] != grid.Axes[1][j] {
					t.Fatalf("point (%d,%d) sample not pinned: %v", i, j, sample)
				}
				if sample["B"] < -1 || sample["B"] > 1 || sample["D"] < 2 || sample["D"] > 4 {
					t.Fatalf("hidden sample outside range: %v", sample)
				}
			}
		}
	}

	// The hidden design is shared across grid points.
	if grid.Points[0].Samples[3]["B"] != grid.Points[24].Samples[3]["B"] {
		t.Error("hidden design differs between grid points")
	}
}

func TestGrid2DDepthEqualization(t *testing.T) {
	space, reg := testModel(t, []float64{4.0}, flatEval(1), nil)
	gen := NewGenerator(space, reg)

	opts := DefaultOptions()
	opts.Resolution = 6
	opts.BaseDepth = 10
	opts.Seed = 3

	grid, err := gen.Grid(NewKey(1, Type2D, "B"), opts)
	if err != nil {
		t.Fatal(err)
	}
	if len(grid.Points) != 6 {
		t.Fatalf("got %d grid points, want 6", len(grid.Points))
	}
	// 4 active parameters > 2: depth scales with resolution.
	if grid.Depth != 60 {
		t.Errorf("Depth = %d, want 60", grid.Depth)
	}
}

func TestGridUsesIterationRanges(t *testing.T) {
	ranges := map[string][2]float64{
		"A": {4, 6},
		"B": {-0.5, 0.5},
		"C": {0, 100},
		"D": {2, 4},
	}
	space, reg := testModel(t, []float64{4.0}, flatEval(1), ranges)
	gen := NewGenerator(space, reg)

	opts := DefaultOptions()
	opts.Resolution = 3
	opts.BaseDepth = 4
	opts.Seed = 9

	grid, err := gen.Grid(NewKey(1, Type2D, "A"), opts)
	if err != nil {
		t.Fatal(err)
	}
	if grid.Axes[0][0] != 4 || grid.Axes[0][2] != 6 {
		t.Errorf("A axis = %v, want linspace over iteration range [4, 6]", grid.Axes[0])
	}
	for _, gp := range grid.Points {
		for _, sample := range gp.Samples {
			if sample["B"] < -0.5 || sample["B"] > 0.5 {
				t.Fatalf("hidden B sample %g outside iteration range", sample["B"])
			}
		}
	}
}

func TestGridErrors(t *testing.T) {
	space, reg := testModel(t, []float64{4.0}, flatEval(1), nil)
	gen := NewGenerator(space, reg)
	opts := DefaultOptions()

	if _, err := gen.Grid(NewKey(2, Type2D, "A"), opts); !errors.Is(err, emul.ErrNotConstructed) {
		t.Errorf("unconstructed iteration error = %v, want ErrNotConstructed", err)
	}
	if _, err := gen.Grid(NewKey(1, Type2D, "Z"), opts); err == nil {
		t.Error("unknown plotted parameter accepted")
	}
	if _, err := gen.Grid(Key{Iteration: 1, Params: []string{"A"}, Type: "weird"}, opts); err == nil {
		t.Error("invalid key type accepted")
	}
}
