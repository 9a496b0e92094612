package nn

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// SquaredError is half the sum of squared per-output errors, as returned in
// Step.Errors.
func SquaredError(errs []float64) float64 {
	return floats.Dot(errs, errs) / 2
}

// Loss runs inference on sample and returns its squared error.
func Loss(weights Weights, sample Sample, fn ActivationFunc) (float64, error) {
	out, err := Convert(sample.Input, weights, fn)
	if err != nil {
		return 0, err
	}
	if len(out) != len(sample.Desired) {
		return 0, dimensionMismatch("desired output has %d values, network produces %d", len(sample.Desired), len(out))
	}
	errs := make([]float64, len(out))
	floats.SubTo(errs, sample.Desired, out)
	return SquaredError(errs), nil
}

// MeanLoss averages Loss over samples.
func MeanLoss(weights Weights, samples []Sample, fn ActivationFunc) (float64, error) {
	if len(samples) == 0 {
		return 0, errors.New("no samples")
	}
	var total float64
	for i, s := range samples {
		l, err := Loss(weights, s, fn)
		if err != nil {
			return 0, errors.Wrapf(err, "sample %d", i)
		}
		total += l
	}
	return total / float64(len(samples)), nil
}
