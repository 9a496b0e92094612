package nn

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
)

func TestUniformRangeAndSeed(t *testing.T) {
	topology := Topology{8, 16, 4}
	a, err := GenerateWeights(topology, Uniform(rand.New(rand.NewSource(42)), -0.5, 0.5))
	require.NoError(t, err)
	b, err := GenerateWeights(topology, Uniform(rand.New(rand.NewSource(42)), 0.5, -0.5))
	require.NoError(t, err)

	assert.Equal(t, a.Last().Rows(), b.Last().Rows())
	for _, layer := range a.Last().Rows() {
		for _, row := range layer {
			for _, v := range row {
				assert.True(t, v >= -0.5 && v < 0.5, "%v out of range", v)
			}
		}
	}
}

func TestNormalMoments(t *testing.T) {
	gen := Normal(rand.New(rand.NewSource(1)), 0.2, 0.1)
	values := make([]float64, 5000)
	for i := range values {
		values[i] = gen(0, 0, 0)
	}
	mean, sd := stat.MeanStdDev(values, nil)
	assert.InDelta(t, 0.2, mean, 0.01)
	assert.InDelta(t, 0.1, sd, 0.01)
}

func TestFanInBounds(t *testing.T) {
	topology := Topology{4, 25, 1}
	h, err := GenerateWeights(topology, FanIn(topology, rand.New(rand.NewSource(3))))
	require.NoError(t, err)

	for k, layer := range h.Last().Rows() {
		bound := 1 / math.Sqrt(float64(topology[k]))
		for _, row := range layer {
			for _, v := range row {
				assert.LessOrEqual(t, math.Abs(v), bound)
			}
		}
	}
}

type zeroThenHalf struct{ calls int }

func (z *zeroThenHalf) Float64() float64 {
	z.calls++
	if z.calls == 1 {
		return 0
	}
	return 0.5
}

func TestNormalSkipsZero(t *testing.T) {
	rng := &zeroThenHalf{}
	v := Normal(rng, 1, 2)(0, 0, 0)
	assert.False(t, math.IsInf(v, 0))
	assert.InDelta(t, 1, v, 1e-12)
	assert.Equal(t, 2, rng.calls)
}

func TestGenerateWeightsNilGenerator(t *testing.T) {
	_, err := GenerateWeights(Topology{1, 1}, nil)
	assert.Error(t, err)
}
