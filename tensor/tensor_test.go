package tensor

import (
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestNewShape(t *testing.T) {
	t1 := New(2, 3)
	if len(t1.Data) != 6 {
		t.Fatalf("expected 6 elements, got %d", len(t1.Data))
	}
	if len(t1.Shape) != 2 || t1.Shape[0] != 2 || t1.Shape[1] != 3 {
		t.Fatalf("unexpected shape: %v", t1.Shape)
	}
}

func TestDenseRoundTrip(t *testing.T) {
	m := mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6})
	ten := FromDense(m)
	if ten.Data[3] != 4 {
		t.Errorf("element (1, 0) = %f, want 4", ten.Data[3])
	}

	back, err := ten.Dense()
	if err != nil {
		t.Fatal(err)
	}
	if !mat.Equal(m, back) {
		t.Errorf("round trip mismatch: %v vs %v", mat.Formatted(m), mat.Formatted(back))
	}

	ten.Data[0] = 9
	if m.At(0, 0) != 1 {
		t.Error("FromDense shares storage with the matrix")
	}
}

func TestDenseRejectsBadShape(t *testing.T) {
	if _, err := (&Tensor{Data: []float64{1, 2, 3}, Shape: []int{3}}).Dense(); err == nil {
		t.Error("expected error for 1-D tensor")
	}
	if _, err := (&Tensor{Data: []float64{1, 2, 3}, Shape: []int{2, 2}}).Dense(); err == nil {
		t.Error("expected error for short data")
	}
}
