package emul

import (
	"fmt"
	"math"
	"sort"

	"github.com/prism-data/prism/internal/param"
)

// SineWave is a self-contained reference emulator for the test model
//
//	f(x) = A + 0.1*B*sin(C*x + D)
//
// used to exercise the projection pipeline without an external emulator
// backend. The "emulator" prediction is the exact model value with a synthetic
// adjusted variance that shrinks with every iteration, which reproduces the
// way a real emulator tightens around the model as iterations progress.
type SineWave struct {
	DataX   []float64 // x positions of the observed data points
	DataVal []float64 // observed values
	DataErr []float64 // observational 1-sigma errors

	// MDVar is the model discrepancy variance, identical for all data points.
	MDVar float64

	// BaseVar is the adjusted emulator variance at iteration 1; every later
	// iteration divides it by VarDecay.
	BaseVar  float64
	VarDecay float64
}

// Default sine-wave parameter space: name, range and estimate per parameter.
func SineWaveSpace() (*param.Space, error) {
	return param.NewSpace(
		param.Parameter{Name: "A", Min: 2, Max: 7, Estimate: param.Est(4)},
		param.Parameter{Name: "B", Min: -1, Max: 12, Estimate: param.Est(3)},
		param.Parameter{Name: "C", Min: 0, Max: 10, Estimate: param.Est(5)},
		param.Parameter{Name: "D", Min: 1.5, Max: 5, Estimate: param.Est(4.6)},
	)
}

// NewSineWave builds the reference emulator with data generated from the
// canonical parameter estimates at x = 1..5.
func NewSineWave() *SineWave {
	truth := map[string]float64{"A": 4, "B": 3, "C": 5, "D": 4.6}
	sw := &SineWave{
		MDVar:    0.01,
		BaseVar:  0.05,
		VarDecay: 4,
	}
	for x := 1.0; x <= 5; x++ {
		sw.DataX = append(sw.DataX, x)
		sw.DataVal = append(sw.DataVal, sineWaveModel(truth, x))
		sw.DataErr = append(sw.DataErr, 0.05)
	}
	return sw
}

func sineWaveModel(par map[string]float64, x float64) float64 {
	return par["A"] + 0.1*par["B"]*math.Sin(par["C"]*x+par["D"])
}

// Evaluate returns the per-data-point implausibility values of the sample,
// sorted in decreasing order as the Evaluator contract requires.
func (sw *SineWave) Evaluate(iteration int, sample map[string]float64) ([]float64, error) {
	if iteration < 1 {
		return nil, fmt.Errorf("iteration must be 1-based, got %d", iteration)
	}
	for _, name := range []string{"A", "B", "C", "D"} {
		if _, ok := sample[name]; !ok {
			return nil, fmt.Errorf("sample is missing parameter %q", name)
		}
	}

	emulVar := sw.BaseVar / math.Pow(sw.VarDecay, float64(iteration-1))
	impl := make([]float64, len(sw.DataX))
	for i, x := range sw.DataX {
		pred := sineWaveModel(sample, x)
		variance := emulVar + sw.MDVar + sw.DataErr[i]*sw.DataErr[i]
		impl[i] = math.Abs(pred-sw.DataVal[i]) / math.Sqrt(variance)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(impl)))
	return impl, nil
}

// NewSineWaveRegistry wires the reference emulator into a registry with the
// requested number of constructed iterations. All four parameters stay active;
// the plausible ranges tighten toward the canonical estimates by 30% per
// iteration, mimicking the shrinking plausible region of a real run. An empty
// implCut selects the standard cut-off vector [0, 4.0, 3.8, 3.5].
func NewSineWaveRegistry(iterations int, implCut ...float64) (*Registry, *param.Space, error) {
	if iterations < 1 {
		return nil, nil, fmt.Errorf("need at least 1 iteration, got %d", iterations)
	}
	space, err := SineWaveSpace()
	if err != nil {
		return nil, nil, err
	}
	reg := NewRegistry(NewSineWave())

	if len(implCut) == 0 {
		implCut = []float64{Wildcard, 4.0, 3.8, 3.5}
	}
	cutoffs, err := NewCutoffVector(implCut...)
	if err != nil {
		return nil, nil, err
	}

	names := space.Names()
	for i := 1; i <= iterations; i++ {
		ranges := make(map[string][2]float64, len(names))
		shrink := 1 - 0.3*float64(i-1)
		if shrink < 0.1 {
			shrink = 0.1
		}
		for _, name := range names {
			lo, hi, err := space.Bounds(name)
			if err != nil {
				return nil, nil, err
			}
			est, err := space.Estimate(name)
			if err != nil {
				return nil, nil, err
			}
			centre := (lo + hi) / 2
			if est != nil {
				centre = *est
			}
			half := (hi - lo) / 2 * shrink
			ranges[name] = [2]float64{
				math.Max(lo, centre-half),
				math.Min(hi, centre+half),
			}
		}
		st := &IterationState{
			Iteration: i,
			Cutoffs:   cutoffs,
			Active:    space.Active(i),
			Ranges:    ranges,
		}
		if err := reg.AddIteration(st); err != nil {
			return nil, nil, err
		}
		if err := space.SetActive(i, names); err != nil {
			return nil, nil, err
		}
	}
	return reg, space, nil
}
