package nn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/diff/fd"
)

func TestLookupActivation(t *testing.T) {
	for name, want := range ActivatorLookup {
		got, err := LookupActivation(name)
		require.NoError(t, err)
		assert.Equal(t, want.Name, got.Name)
		assert.Equal(t, name, got.String())
	}

	_, err := LookupActivation("softmax")
	assert.EqualError(t, err, "invalid activator: softmax")
}

func TestActivationDerivativesMatchFiniteDifference(t *testing.T) {
	points := []float64{-2.5, -0.7, -0.1, 0.3, 1.1, 2.9}
	settings := &fd.Settings{Formula: fd.Central}

	for _, act := range []Activation{Tanh, Sigmoid, LogisticSum, Identity, ReLU} {
		for _, s := range points {
			want := fd.Derivative(func(x float64) float64 { return act.Func(x) }, s, settings)
			got := act.Derivative(s, act.Func(s))
			assert.InDelta(t, want, got, 1e-6, "%s at %v", act, s)
		}
	}
}

func TestSigmoidAndLogisticSumAgree(t *testing.T) {
	for _, s := range []float64{-4, -1, 0, 0.5, 3} {
		a := Sigmoid.Func(s)
		assert.Equal(t, a, LogisticSum.Func(s))
		assert.InDelta(t, Sigmoid.Derivative(s, a), LogisticSum.Derivative(s, a), 1e-15)
	}
}

func TestReLU(t *testing.T) {
	assert.Equal(t, 0.0, ReLU.Func(-3))
	assert.Equal(t, 2.5, ReLU.Func(2.5))
	assert.Equal(t, 0.0, ReLU.Derivative(-3, 0))
	assert.Equal(t, 1.0, ReLU.Derivative(2.5, 2.5))
}
