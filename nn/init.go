package nn

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// Generator supplies the initial value of one weight. offset is the layer index,
// input and output the neuron indices on either side of the weight. Generators are
// called exactly once per weight, layer by layer, output-major.
type Generator func(offset, input, output int) float64

// RNG is the source of randomness for the random generators. *math/rand.Rand
// satisfies it, so runs are reproducible from a seed.
type RNG interface {
	Float64() float64
}

// Constant sets every weight to v.
func Constant(v float64) Generator {
	return func(_, _, _ int) float64 { return v }
}

// Uniform draws weights uniformly from [lo, hi).
func Uniform(rng RNG, lo, hi float64) Generator {
	if lo > hi {
		lo, hi = hi, lo
	}
	dist := distuv.Uniform{Min: lo, Max: hi}
	return func(_, _, _ int) float64 {
		return dist.Quantile(rng.Float64())
	}
}

// Normal draws weights from a normal distribution.
func Normal(rng RNG, mean, sd float64) Generator {
	dist := distuv.Normal{Mu: mean, Sigma: sd}
	return func(_, _, _ int) float64 {
		return dist.Quantile(openUnit(rng))
	}
}

// FanIn draws each weight uniformly from ±1/sqrt(n), n being the number of inputs of
// the layer it belongs to.
func FanIn(topology Topology, rng RNG) Generator {
	dists := make([]distuv.Uniform, 0, len(topology))
	for i := 0; i+1 < len(topology); i++ {
		bound := 1 / math.Sqrt(float64(topology[i]))
		dists = append(dists, distuv.Uniform{Min: -bound, Max: bound})
	}
	return func(offset, _, _ int) float64 {
		return dists[offset].Quantile(rng.Float64())
	}
}

// openUnit returns a value in (0, 1); Quantile of an unbounded distribution is
// infinite at 0.
func openUnit(rng RNG) float64 {
	for {
		if p := rng.Float64(); p > 0 {
			return p
		}
	}
}
