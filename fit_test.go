package kriging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func syntheticBins(m Model, n int, width float64) []VariogramBin {
	bins := make([]VariogramBin, n)
	for k := range bins {
		center := (float64(k) + 0.5) * width
		bins[k] = VariogramBin{Center: center, MeanDistance: center, MeanSemivariance: m.Semivariance(center), Count: 10}
	}
	return bins
}

func TestFitRecoversExponential(t *testing.T) {
	a := assert.New(t)
	truth := Model{Type: Exponential, Nugget: 0.2, Sill: 1.5, Range: 40}

	res, err := FitVariogram(syntheticBins(truth, 12, 5), FitOptions{Type: Exponential})
	require.NoError(t, err)

	a.Equal(Exponential, res.Model.Type)
	a.InDelta(truth.Nugget, res.Model.Nugget, 0.05)
	a.InDelta(truth.Sill, res.Model.Sill, 0.05)
	a.InDelta(truth.Range, res.Model.Range, 1)
	a.Less(res.Residual, 1e-3)
	a.Positive(res.Iterations)
	a.Positive(res.Evaluations)
}

func TestFitFixedNugget(t *testing.T) {
	a := assert.New(t)
	truth := Model{Type: Spherical, Nugget: 0.5, Sill: 2, Range: 30}
	hint := 0.5

	res, err := FitVariogram(syntheticBins(truth, 10, 5), FitOptions{Type: Spherical, NuggetHint: &hint, FixNugget: true})
	require.NoError(t, err)

	a.Equal(0.5, res.Model.Nugget)
	a.InDelta(truth.Sill, res.Model.Sill, 0.1)
	a.InDelta(truth.Range, res.Model.Range, 2)
}

func TestFitPower(t *testing.T) {
	a := assert.New(t)
	truth := Model{Type: Power, Nugget: 0.1, Scale: 0.3, Exponent: 1.2}

	res, err := FitVariogram(syntheticBins(truth, 10, 2), FitOptions{Type: Power})
	require.NoError(t, err)

	require.NoError(t, res.Model.Validate())
	a.Greater(res.Model.Exponent, 0.0)
	a.Less(res.Model.Exponent, 2.0)
	a.Less(res.Residual, 1e-2)
}

func TestFitErrors(t *testing.T) {
	a := assert.New(t)
	bins := syntheticBins(Model{Type: Gaussian, Sill: 1, Range: 10}, 5, 2)
	negative := -1.0

	_, err := FitVariogram(bins[:2], FitOptions{Type: Gaussian})
	a.ErrorIs(err, ErrInsufficientBins)
	_, err = FitVariogram(nil, FitOptions{Type: Gaussian})
	a.ErrorIs(err, ErrInsufficientBins)
	_, err = FitVariogram(bins, FitOptions{Type: "cubic"})
	a.ErrorIs(err, ErrInvalidModel)
	_, err = FitVariogram(bins, FitOptions{Type: Gaussian, FixNugget: true})
	a.ErrorIs(err, ErrInvalidArgument)
	_, err = FitVariogram(bins, FitOptions{Type: Gaussian, NuggetHint: &negative})
	a.ErrorIs(err, ErrInvalidArgument)
}

func TestFitIterationCap(t *testing.T) {
	truth := Model{Type: Gaussian, Nugget: 0.1, Sill: 3, Range: 25}

	_, err := FitVariogram(syntheticBins(truth, 10, 4), FitOptions{Type: Gaussian, MaxIterations: 1})
	assert.ErrorIs(t, err, ErrFitDidNotConverge)
}
