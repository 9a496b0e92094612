package nn

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Flatten encodes weights as a single numeric array:
//
//	[layers+1, topology..., layer 0 row-major, layer 1 row-major, ...]
//
// so that training can be paused and resumed from any store that holds floats.
func Flatten(weights Weights) []float64 {
	topology := weights.Topology()
	size := 1 + len(topology)
	for k := 0; k+1 < len(topology); k++ {
		size += topology[k] * topology[k+1]
	}

	flat := make([]float64, 0, size)
	flat = append(flat, float64(len(topology)))
	for _, n := range topology {
		flat = append(flat, float64(n))
	}
	for _, layer := range weights {
		r, _ := layer.Dims()
		for o := 0; o < r; o++ {
			flat = append(flat, layer.RawRowView(o)...)
		}
	}
	return flat
}

// Unflatten decodes the format written by Flatten.
func Unflatten(flat []float64) (Weights, error) {
	if len(flat) == 0 {
		return nil, dimensionMismatch("empty weight array")
	}
	count, err := toCount(flat[0])
	if err != nil {
		return nil, errors.Wrap(err, "layer count")
	}
	if len(flat) < 1+count {
		return nil, dimensionMismatch("header declares %d layers but array has %d values", count, len(flat))
	}

	topology := make(Topology, count)
	for i := range topology {
		if topology[i], err = toCount(flat[1+i]); err != nil {
			return nil, errors.Wrapf(err, "layer %d size", i)
		}
	}
	if err := topology.Validate(); err != nil {
		return nil, err
	}

	body := flat[1+count:]
	// checked layer by layer against what is left so a hostile header cannot overflow
	remaining := len(body)
	for k := 0; k+1 < count; k++ {
		if topology[k] > remaining/topology[k+1] {
			return nil, dimensionMismatch("topology %v needs more than the %d weights in the array", topology, len(body))
		}
		remaining -= topology[k] * topology[k+1]
	}
	if remaining != 0 {
		return nil, dimensionMismatch("topology %v leaves %d of %d weights unused", topology, remaining, len(body))
	}

	weights := make(Weights, count-1)
	for k := range weights {
		n := topology[k] * topology[k+1]
		weights[k] = mat.NewDense(topology[k+1], topology[k], append([]float64(nil), body[:n]...))
		body = body[n:]
	}
	return weights, nil
}

func toCount(v float64) (int, error) {
	if v != math.Trunc(v) || v < 0 || v > math.MaxInt32 {
		return 0, errors.Wrapf(ErrInvalidTopology, "%v is not a neuron count", v)
	}
	return int(v), nil
}
