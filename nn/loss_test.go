package nn

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSquaredError(t *testing.T) {
	assert.Equal(t, 12.5, SquaredError([]float64{3, -4}))
	assert.Equal(t, 0.0, SquaredError(nil))
}

func TestLossAndMeanLoss(t *testing.T) {
	w := mustRows(t, [][][]float64{{{2}}})
	samples := []Sample{
		{Input: []float64{1}, Desired: []float64{3}},
		{Input: []float64{2}, Desired: []float64{1}},
	}

	l, err := Loss(w, samples[0], Identity.Func)
	require.NoError(t, err)
	assert.Equal(t, 0.5, l)

	mean, err := MeanLoss(w, samples, Identity.Func)
	require.NoError(t, err)
	assert.Equal(t, (0.5+4.5)/2, mean)

	_, err = MeanLoss(w, nil, Identity.Func)
	assert.Error(t, err)

	_, err = MeanLoss(w, []Sample{{Input: []float64{1}, Desired: []float64{1, 2}}}, Identity.Func)
	assert.True(t, errors.Is(err, ErrDimensionMismatch))
}
