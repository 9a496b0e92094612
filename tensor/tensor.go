package tensor

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Tensor is a simple n-D array backed by a flat row-major []float64.
type Tensor struct {
	Data  []float64
	Shape []int
}

// New allocates a Tensor of given shape (product of dims = len(Data)).
func New(shape ...int) *Tensor {
	total := 1
	for _, d := range shape {
		total *= d
	}
	return &Tensor{
		Data:  make([]float64, total),
		Shape: append([]int(nil), shape...),
	}
}

// FromDense copies a matrix into a 2-D tensor.
func FromDense(m mat.Matrix) *Tensor {
	r, c := m.Dims()
	t := New(r, c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			t.Data[i*c+j] = m.At(i, j)
		}
	}
	return t
}

// Dense copies a 2-D tensor into a matrix.
func (t *Tensor) Dense() (*mat.Dense, error) {
	if len(t.Shape) != 2 {
		return nil, fmt.Errorf("Dense requires a 2-D tensor, got shape %v", t.Shape)
	}
	r, c := t.Shape[0], t.Shape[1]
	if r <= 0 || c <= 0 {
		return nil, fmt.Errorf("Dense requires positive dimensions, got shape %v", t.Shape)
	}
	if len(t.Data) != r*c {
		return nil, fmt.Errorf("shape %v needs %d values, have %d", t.Shape, r*c, len(t.Data))
	}
	return mat.NewDense(r, c, append([]float64(nil), t.Data...)), nil
}
