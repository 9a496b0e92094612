package nn

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Sample is one training example.
type Sample struct {
	Input   []float64
	Desired []float64
}

// Gradients holds one gradient vector per non-input layer, in layer order: g[k]
// belongs to the neurons produced by weight layer k.
type Gradients [][]float64

// Signal selects what multiplies a neuron's gradient when its incoming weights are
// updated.
type Signal int

const (
	// SignalActivated uses the activated value of the upstream neuron (standard
	// backpropagation).
	SignalActivated Signal = iota
	// SignalWeightedSum uses the upstream neuron's weighted sum before activation.
	// It reproduces the numbers of an older training variant and is not a correct
	// gradient.
	SignalWeightedSum
)

func (s Signal) String() string {
	switch s {
	case SignalActivated:
		return "activated"
	case SignalWeightedSum:
		return "weighted-sum"
	default:
		return "unknown"
	}
}

// Options configures a single backpropagation step.
type Options struct {
	Activation   Activation
	LearningRate float64
	Signal       Signal
}

func (o Options) validate() error {
	if o.Activation.Func == nil || o.Activation.Derivative == nil {
		return errors.Wrap(ErrInvalidTrainingConfig, "activation needs both a function and a derivative")
	}
	if !(o.LearningRate > 0) || math.IsInf(o.LearningRate, 0) {
		return errors.Wrapf(ErrInvalidTrainingConfig, "learning rate must be positive, got %v", o.LearningRate)
	}
	if o.Signal != SignalActivated && o.Signal != SignalWeightedSum {
		return errors.Wrapf(ErrInvalidTrainingConfig, "unknown upstream signal %d", o.Signal)
	}
	return nil
}

// Step is the result of training on one sample.
type Step struct {
	// Weights are the updated weights. The weights passed in are not modified.
	Weights Weights
	// Gradients are computed against the weights passed in.
	Gradients Gradients
	// Activations is the forward pass that produced Errors.
	Activations ActivationRecord
	// Errors is desired minus actual output.
	Errors []float64
}

// TrainOnce runs one step of online backpropagation with the standard upstream signal.
func TrainOnce(weights Weights, sample Sample, act Activation, rate float64) (Step, error) {
	return TrainOnceWith(weights, sample, Options{Activation: act, LearningRate: rate})
}

// TrainOnceWith runs one step of online backpropagation on sample.
func TrainOnceWith(weights Weights, sample Sample, opts Options) (Step, error) {
	if err := opts.validate(); err != nil {
		return Step{}, err
	}
	if err := weights.Validate(); err != nil {
		return Step{}, err
	}
	if out, _ := weights[len(weights)-1].Dims(); len(sample.Desired) != out {
		return Step{}, dimensionMismatch("desired output has %d values, topology expects %d", len(sample.Desired), out)
	}

	record, err := ActivateNeurons(sample.Input, weights, opts.Activation.Func)
	if err != nil {
		return Step{}, err
	}

	outputs := record.Outputs()
	errs := make([]float64, len(outputs))
	floats.SubTo(errs, sample.Desired, outputs)

	grads := backpropagate(weights, record, errs, opts.Activation.Derivative)

	updated := make(Weights, len(weights))
	for k, layer := range weights {
		var upstream []float64
		if opts.Signal == SignalWeightedSum {
			upstream = record.Sums(k)
		} else {
			upstream = record.Values(k)
		}

		// W' = W + rate * g ⊗ upstream
		next := &mat.Dense{}
		next.RankOne(layer, opts.LearningRate, mat.NewVecDense(len(grads[k]), grads[k]), mat.NewVecDense(len(upstream), upstream))
		updated[k] = next
	}

	return Step{
		Weights:     updated,
		Gradients:   grads,
		Activations: record,
		Errors:      errs,
	}, nil
}

// backpropagate walks from the output layer back to the first hidden layer. The
// gradients are collected back to front and reversed into layer order.
func backpropagate(weights Weights, record ActivationRecord, errs []float64, derivative DerivativeFunc) Gradients {
	last := len(record) - 1

	reversed := make(Gradients, 0, len(weights))
	downstream := errs
	for layer := last; layer > 0; layer-- {
		if layer != last {
			// weighted[i] = Σ_o W[o][i] * g[o]
			next := weights[layer]
			_, in := next.Dims()
			weighted := mat.NewVecDense(in, nil)
			weighted.MulVec(next.T(), mat.NewVecDense(len(downstream), downstream))
			downstream = weighted.RawVector().Data
		}

		g := make([]float64, len(record[layer]))
		for i, n := range record[layer] {
			g[i] = derivative(n.Sum, n.Value) * downstream[i]
		}
		reversed = append(reversed, g)
		downstream = g
	}

	grads := make(Gradients, len(reversed))
	for i, g := range reversed {
		grads[len(reversed)-1-i] = g
	}
	return grads
}
