package nn

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Topology lists the neuron count of every layer, input layer first.
type Topology []int

// Validate reports ErrInvalidTopology unless there are at least two layers and
// every layer has at least one neuron.
func (t Topology) Validate() error {
	if len(t) < 2 {
		return errors.Wrapf(ErrInvalidTopology, "need at least 2 layers, got %d", len(t))
	}
	for i, n := range t {
		if n <= 0 {
			return errors.Wrapf(ErrInvalidTopology, "layer %d has %d neurons", i, n)
		}
	}
	return nil
}

// Inputs is the size of the input layer.
func (t Topology) Inputs() int { return t[0] }

// Outputs is the size of the output layer.
func (t Topology) Outputs() int { return t[len(t)-1] }

func (t Topology) String() string {
	parts := make([]string, len(t))
	for i, n := range t {
		parts[i] = fmt.Sprint(n)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// Weights is the layered weight tensor. Layer k maps layer k to layer k+1 of the
// topology and has dimensions topology[k+1] x topology[k], so that
// w[k].At(output, input) is the weight from input neuron to output neuron.
//
// Weights are treated as values: nothing in this package mutates a tensor it was
// given, training always builds a new one.
type Weights []*mat.Dense

// Topology returns the topology declared by the layer shapes. It does not check that
// adjacent layers agree; see Validate.
func (w Weights) Topology() Topology {
	if len(w) == 0 {
		return nil
	}
	_, in := w[0].Dims()
	t := Topology{in}
	for _, layer := range w {
		out, _ := layer.Dims()
		t = append(t, out)
	}
	return t
}

// Validate checks that every layer consumes exactly the neurons the previous layer
// produces.
func (w Weights) Validate() error {
	if len(w) == 0 {
		return errors.Wrap(ErrInvalidTopology, "weight tensor has no layers")
	}
	for k, layer := range w {
		if layer == nil {
			return dimensionMismatch("layer %d is nil", k)
		}
		if k == 0 {
			continue
		}
		prev, _ := w[k-1].Dims()
		out, in := layer.Dims()
		if in != prev {
			return dimensionMismatch("layer %d is %dx%d but layer %d produces %d values", k, out, in, k-1, prev)
		}
	}
	return nil
}

// At returns the weight from input neuron in of layer to output neuron out.
func (w Weights) At(layer, out, in int) float64 {
	return w[layer].At(out, in)
}

// Clone returns a deep copy.
func (w Weights) Clone() Weights {
	c := make(Weights, len(w))
	for i, layer := range w {
		c[i] = mat.DenseCopyOf(layer)
	}
	return c
}

// Rows returns the tensor as nested slices, [layer][output][input].
func (w Weights) Rows() [][][]float64 {
	rows := make([][][]float64, len(w))
	for k, layer := range w {
		r, _ := layer.Dims()
		rows[k] = make([][]float64, r)
		for o := 0; o < r; o++ {
			rows[k][o] = mat.Row(nil, o, layer)
		}
	}
	return rows
}

// FromRows builds a weight tensor from [layer][output][input] slices and validates it.
func FromRows(rows [][][]float64) (Weights, error) {
	w := make(Weights, len(rows))
	for k, layer := range rows {
		if len(layer) == 0 || len(layer[0]) == 0 {
			return nil, dimensionMismatch("layer %d is empty", k)
		}
		out, in := len(layer), len(layer[0])
		data := make([]float64, 0, out*in)
		for o, row := range layer {
			if len(row) != in {
				return nil, dimensionMismatch("layer %d row %d has %d weights, want %d", k, o, len(row), in)
			}
			data = append(data, row...)
		}
		w[k] = mat.NewDense(out, in, data)
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return w, nil
}

// Entry is one training run in a History: the weights it ended with and the
// checkpoints it took on the way.
type Entry struct {
	Final         Weights
	SubIterations []Weights
}

// History is the append-only record of training runs. The first entry holds the
// initial weights.
type History []Entry

// Last returns the final weights of the most recent entry, or nil for an empty history.
func (h History) Last() Weights {
	if len(h) == 0 {
		return nil
	}
	return h[len(h)-1].Final
}

// Append returns a new history with e added. h itself is left untouched.
func (h History) Append(e Entry) History {
	out := make(History, len(h), len(h)+1)
	copy(out, h)
	return append(out, e)
}

// GenerateWeights builds the initial weight tensor for topology, taking every weight
// from gen, and returns it as a single-entry history with no sub-iterations.
func GenerateWeights(topology Topology, gen Generator) (History, error) {
	if err := topology.Validate(); err != nil {
		return nil, err
	}
	if gen == nil {
		return nil, errors.New("nil weight generator")
	}

	weights := make(Weights, len(topology)-1)
	for offset := range weights {
		from, to := topology[offset], topology[offset+1]
		layer := mat.NewDense(to, from, nil)
		for out := 0; out < to; out++ {
			for in := 0; in < from; in++ {
				layer.Set(out, in, gen(offset, in, out))
			}
		}
		weights[offset] = layer
	}

	return History{{Final: weights, SubIterations: []Weights{}}}, nil
}
