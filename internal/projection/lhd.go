package projection

import (
	"math/rand"
)

// lhd draws an n-sample Latin-Hypercube design over the given ranges: each
// dimension is split into n equal strata and every stratum receives exactly
// one sample, so the design covers each dimension evenly no matter how the
// dimensions correlate. The draw is fully determined by rng, which keeps
// repeated projections reproducible for a fixed seed.
func lhd(n int, ranges [][2]float64, rng *rand.Rand) [][]float64 {
	samples := make([][]float64, n)
	for i := range samples {
		samples[i] = make([]float64, len(ranges))
	}
	for d, r := range ranges {
		width := (r[1] - r[0]) / float64(n)
		for i, stratum := range rng.Perm(n) {
			samples[i][d] = r[0] + width*(float64(stratum)+rng.Float64())
		}
	}
	return samples
}
