// Package polar encodes angles on the unit circle as network inputs and decodes
// network outputs back into Cartesian points. It also generates the synthetic
// training data the trainer learns from.
package polar

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat/distuv"

	"polarnet/nn"
)

// Every polar network takes one input, the encoded angle, and produces two outputs,
// x and y on the unit circle.
const (
	Inputs  = 1
	Outputs = 2
)

// ToInput maps an angle in radians to [-1, 1): 0 becomes -1, π becomes 0 and angles
// approaching 2π approach 1. Congruent angles map to the same input.
func ToInput(radians float64) float64 {
	congruent := math.Mod(radians, 2*math.Pi)
	if congruent < 0 {
		congruent += 2 * math.Pi
	}
	// tiny negative angles round up to 2π after the shift
	if congruent >= 2*math.Pi {
		congruent = 0
	}
	return congruent/math.Pi - 1
}

// FromInput is the inverse of ToInput.
func FromInput(x float64) float64 {
	return (x + 1) * math.Pi
}

// ToCartesian converts polar coordinates to x, y.
func ToCartesian(radius, radians float64) (float64, float64) {
	return radius * math.Cos(radians), radius * math.Sin(radians)
}

// ToAngle returns the angle of (x, y) in [0, 2π).
func ToAngle(x, y float64) float64 {
	a := math.Atan2(y, x)
	if a < 0 {
		a += 2 * math.Pi
	}
	if a >= 2*math.Pi {
		a = 0
	}
	return a
}

// InterpretOutputs scales the two network outputs by radius.
func InterpretOutputs(radius float64, outputs []float64) (float64, float64, error) {
	if len(outputs) != Outputs {
		return 0, 0, errors.Wrapf(nn.ErrDimensionMismatch, "expected %d outputs, got %d", Outputs, len(outputs))
	}
	return outputs[0] * radius, outputs[1] * radius, nil
}

// Generate draws size encoded angles uniformly from [-1, 1).
func Generate(rng nn.RNG, size int) []float64 {
	dist := distuv.Uniform{Min: -1, Max: 1}
	data := make([]float64, size)
	for i := range data {
		data[i] = dist.Quantile(rng.Float64())
	}
	return data
}

// SampleFor builds the training sample for one encoded angle: the input is the angle
// itself, the desired output is its point on the unit circle.
func SampleFor(input float64) nn.Sample {
	x, y := ToCartesian(1, FromInput(input))
	return nn.Sample{Input: []float64{input}, Desired: []float64{x, y}}
}

// Samples generates size training samples.
func Samples(rng nn.RNG, size int) []nn.Sample {
	inputs := Generate(rng, size)
	samples := make([]nn.Sample, len(inputs))
	for i, v := range inputs {
		samples[i] = SampleFor(v)
	}
	return samples
}

type source struct {
	rng       nn.RNG
	remaining int
}

// Source streams limit samples without materialising them. A negative limit never
// runs dry; pair it with a cancellable context.
func Source(rng nn.RNG, limit int) nn.SampleSource {
	return &source{rng: rng, remaining: limit}
}

func (s *source) Next() (nn.Sample, bool, error) {
	if s.remaining == 0 {
		return nn.Sample{}, false, nil
	}
	if s.remaining > 0 {
		s.remaining--
	}
	return SampleFor(Generate(s.rng, 1)[0]), true, nil
}

// Predict runs the network on an angle and returns the predicted point scaled to
// radius.
func Predict(weights nn.Weights, fn nn.ActivationFunc, radius, radians float64) (float64, float64, error) {
	out, err := nn.Convert([]float64{ToInput(radians)}, weights, fn)
	if err != nil {
		return 0, 0, err
	}
	return InterpretOutputs(radius, out)
}
