package projection

import (
	"errors"
	"reflect"
	"testing"

	"github.com/prism-data/prism/internal/emul"
	"github.com/prism-data/prism/internal/param"
)

type mapCache map[string]bool

func (m mapCache) Exists(key Key) (bool, error) { return m[key.String()], nil }

func keyNames(keys []Key) []string {
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = string(k.Type) + ":" + k.Name()
	}
	return names
}

func TestResolveBothExpansion(t *testing.T) {
	space, reg := testModel(t, []float64{4.0}, flatEval(1), nil)
	r := NewResolver(space, reg)

	compute, cached, err := r.Resolve(1, []string{"C", "A", "B"}, TypeBoth, nil, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(cached) != 0 {
		t.Errorf("cached = %v without a cache", cached)
	}
	want := []string{
		"3D:A-B", "3D:A-C", "3D:B-C",
		"2D:A", "2D:B", "2D:C",
	}
	if got := keyNames(compute); !reflect.DeepEqual(got, want) {
		t.Errorf("keys = %v, want %v", got, want)
	}
}

func TestResolveDefaults(t *testing.T) {
	space, reg := testModel(t, []float64{4.0}, flatEval(1), nil)
	r := NewResolver(space, reg)

	// Iteration 0 selects the latest; empty params select all active.
	compute, _, err := r.Resolve(0, nil, Type2D, nil, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(compute) != 4 {
		t.Fatalf("got %d keys, want one 2D key per active parameter", len(compute))
	}
	for _, k := range compute {
		if k.Iteration != 1 {
			t.Errorf("key %s iteration = %d, want latest (1)", k, k.Iteration)
		}
	}
}

func TestResolvePassiveAndUnknown(t *testing.T) {
	space, err := param.NewSpace(
		param.Parameter{Name: "A", Min: 0, Max: 10},
		param.Parameter{Name: "B", Min: -1, Max: 1},
		param.Parameter{Name: "C", Min: 0, Max: 100},
	)
	if err != nil {
		t.Fatal(err)
	}
	cv, err := emul.NewCutoffVector(4.0)
	if err != nil {
		t.Fatal(err)
	}
	reg := emul.NewRegistry(flatEval(1))
	// C is passive at iteration 1.
	if err := reg.AddIteration(&emul.IterationState{
		Iteration: 1,
		Cutoffs:   cv,
		Active:    []string{"A", "B"},
	}); err != nil {
		t.Fatal(err)
	}
	r := NewResolver(space, reg)

	// Passive parameters are filtered; duplicates collapse.
	compute, _, err := r.Resolve(1, []string{"C", "A", "A", "B"}, Type3D, nil, false)
	if err != nil {
		t.Fatal(err)
	}
	if got := keyNames(compute); !reflect.DeepEqual(got, []string{"3D:A-B"}) {
		t.Errorf("keys = %v, want [3D:A-B]", got)
	}

	// Unknown names are fatal even when other names are valid.
	if _, _, err := r.Resolve(1, []string{"A", "Z"}, Type2D, nil, false); !errors.Is(err, param.ErrUnknownParameter) {
		t.Errorf("unknown parameter error = %v, want ErrUnknownParameter", err)
	}

	// A 3D request needs two active parameters after filtering.
	if _, _, err := r.Resolve(1, []string{"A", "C"}, Type3D, nil, false); !errors.Is(err, ErrNotEnoughParams) {
		t.Errorf("error = %v, want ErrNotEnoughParams", err)
	}
}

func TestResolveTwoParameterModel(t *testing.T) {
	space, err := param.NewSpace(
		param.Parameter{Name: "A", Min: 0, Max: 10},
		param.Parameter{Name: "B", Min: -1, Max: 1},
	)
	if err != nil {
		t.Fatal(err)
	}
	cv, err := emul.NewCutoffVector(4.0)
	if err != nil {
		t.Fatal(err)
	}
	reg := emul.NewRegistry(flatEval(1))
	if err := reg.AddIteration(&emul.IterationState{
		Iteration: 1,
		Cutoffs:   cv,
		Active:    []string{"A", "B"},
	}); err != nil {
		t.Fatal(err)
	}
	r := NewResolver(space, reg)

	// Explicit 3D is rejected: there is no hidden dimension to project over.
	if _, _, err := r.Resolve(1, nil, Type3D, nil, false); !errors.Is(err, ErrUnsupportedProjection) {
		t.Errorf("3D on two-parameter model error = %v, want ErrUnsupportedProjection", err)
	}

	// "both" degrades to the 2D keys.
	compute, _, err := r.Resolve(1, nil, TypeBoth, nil, false)
	if err != nil {
		t.Fatal(err)
	}
	if got := keyNames(compute); !reflect.DeepEqual(got, []string{"2D:A", "2D:B"}) {
		t.Errorf("keys = %v, want [2D:A 2D:B]", got)
	}
}

func TestResolveCacheSplit(t *testing.T) {
	space, reg := testModel(t, []float64{4.0}, flatEval(1), nil)
	r := NewResolver(space, reg)

	cache := mapCache{NewKey(1, Type2D, "B").String(): true}

	compute, cached, err := r.Resolve(1, []string{"A", "B", "C"}, Type2D, cache, false)
	if err != nil {
		t.Fatal(err)
	}
	if got := keyNames(compute); !reflect.DeepEqual(got, []string{"2D:A", "2D:C"}) {
		t.Errorf("compute = %v, want [2D:A 2D:C]", got)
	}
	if got := keyNames(cached); !reflect.DeepEqual(got, []string{"2D:B"}) {
		t.Errorf("cached = %v, want [2D:B]", got)
	}

	// Force ignores the cache entirely.
	compute, cached, err = r.Resolve(1, []string{"A", "B"}, Type2D, cache, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(compute) != 2 || len(cached) != 0 {
		t.Errorf("force split = compute %v cached %v, want all keys recomputed", compute, cached)
	}
}

func TestResolveInvalidType(t *testing.T) {
	space, reg := testModel(t, []float64{4.0}, flatEval(1), nil)
	r := NewResolver(space, reg)
	if _, _, err := r.Resolve(1, nil, Type("4D"), nil, false); err == nil {
		t.Error("invalid projection type accepted")
	}
}
