package nn

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Neuron is the state of one neuron after a forward pass. Sum is the weighted sum
// before activation; the backward pass needs both.
type Neuron struct {
	Sum   float64
	Value float64
}

// ActivationRecord holds every layer of a forward pass, input layer included. The
// input layer's neurons carry the input value as both Sum and Value.
type ActivationRecord [][]Neuron

// Values returns the activated values of layer.
func (r ActivationRecord) Values(layer int) []float64 {
	v := make([]float64, len(r[layer]))
	for i, n := range r[layer] {
		v[i] = n.Value
	}
	return v
}

// Sums returns the weighted sums of layer.
func (r ActivationRecord) Sums(layer int) []float64 {
	v := make([]float64, len(r[layer]))
	for i, n := range r[layer] {
		v[i] = n.Sum
	}
	return v
}

// Outputs returns the activated values of the output layer.
func (r ActivationRecord) Outputs() []float64 {
	return r.Values(len(r) - 1)
}

// ActivateNeurons runs input forward through weights, keeping the weighted sum and the
// activated value of every neuron.
func ActivateNeurons(input []float64, weights Weights, fn ActivationFunc) (ActivationRecord, error) {
	if fn == nil {
		return nil, errors.New("nil activation function")
	}
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	if _, in := weights[0].Dims(); len(input) != in {
		return nil, dimensionMismatch("input has %d values, topology expects %d", len(input), in)
	}

	record := make(ActivationRecord, len(weights)+1)
	record[0] = make([]Neuron, len(input))
	for i, x := range input {
		record[0][i] = Neuron{Sum: x, Value: x}
	}

	signal := mat.NewVecDense(len(input), append([]float64(nil), input...))
	for k, layer := range weights {
		out, _ := layer.Dims()
		sums := mat.NewVecDense(out, nil)
		sums.MulVec(layer, signal)

		neurons := make([]Neuron, out)
		activated := make([]float64, out)
		for o := range neurons {
			s := sums.AtVec(o)
			a := fn(s)
			neurons[o] = Neuron{Sum: s, Value: a}
			activated[o] = a
		}
		record[k+1] = neurons
		signal = mat.NewVecDense(out, activated)
	}

	return record, nil
}

// Convert is pure inference: the activated values of the output layer.
func Convert(input []float64, weights Weights, fn ActivationFunc) ([]float64, error) {
	record, err := ActivateNeurons(input, weights, fn)
	if err != nil {
		return nil, err
	}
	return record.Outputs(), nil
}
