package kriging

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var squareSamples = []SamplePoint{
	{X: 0, Y: 0, Value: 1},
	{X: 10, Y: 0, Value: 3},
	{X: 0, Y: 10, Value: 5},
	{X: 10, Y: 10, Value: 7},
}

// scattered is a deterministic, irregular sample set with a smooth trend.
func scattered(n int) []SamplePoint {
	ret := make([]SamplePoint, n)
	for i := range ret {
		x := math.Mod(float64(i)*37.3, 100)
		y := math.Mod(float64(i)*61.7+13, 100)
		ret[i] = SamplePoint{X: x, Y: y, Value: 10 + 0.05*x + 0.02*y + math.Sin(x/15)*math.Cos(y/20)}
	}
	return ret
}

func TestEstimateVariogramSquare(t *testing.T) {
	a := assert.New(t)

	bins, err := EstimateVariogram(context.Background(), squareSamples, EstimateOptions{Bins: 2})
	require.NoError(t, err)

	// every pair is longer than half the largest distance, so bin 0 is dropped
	require.Len(t, bins, 1)
	a.Equal(uint64(6), bins[0].Count)
	a.InDelta(40.0/6, bins[0].MeanSemivariance, 1e-12)
	a.InDelta(0.75*math.Sqrt(200), bins[0].Center, 1e-12)
	a.InDelta((4*10+2*math.Sqrt(200))/6, bins[0].MeanDistance, 1e-12)
}

func TestEstimateVariogramBoundaryGoesToLowerBin(t *testing.T) {
	a := assert.New(t)

	line := []SamplePoint{{X: 0, Value: 0}, {X: 1, Value: 2}, {X: 2, Value: 0}}
	bins, err := EstimateVariogram(context.Background(), line, EstimateOptions{Bins: 2})
	require.NoError(t, err)

	require.Len(t, bins, 2)
	a.Equal(uint64(2), bins[0].Count)
	a.Equal(2.0, bins[0].MeanSemivariance)
	a.Equal(0.5, bins[0].Center)
	a.Equal(uint64(1), bins[1].Count)
	a.Equal(0.0, bins[1].MeanSemivariance)
	a.Equal(1.5, bins[1].Center)
}

func TestEstimateVariogramPairCount(t *testing.T) {
	a := assert.New(t)
	points := scattered(60)

	bins, err := EstimateVariogram(context.Background(), points, EstimateOptions{Bins: 15})
	require.NoError(t, err)
	a.Equal(uint64(60*59/2), PairCount(bins))
	a.LessOrEqual(len(bins), 15)

	capped, err := EstimateVariogram(context.Background(), points, EstimateOptions{Bins: 15, MaxDistance: 30})
	require.NoError(t, err)
	a.Less(PairCount(capped), uint64(60*59/2))
	for _, b := range capped {
		a.LessOrEqual(b.MeanDistance, 30.0)
		a.Positive(b.Count)
	}
}

func TestEstimateVariogramWorkersAgree(t *testing.T) {
	a := assert.New(t)
	points := scattered(80)

	serial, err := EstimateVariogram(context.Background(), points, EstimateOptions{Bins: 10, Workers: 1})
	require.NoError(t, err)
	parallel, err := EstimateVariogram(context.Background(), points, EstimateOptions{Bins: 10, Workers: 7})
	require.NoError(t, err)

	require.Len(t, parallel, len(serial))
	for i := range serial {
		a.Equal(serial[i].Count, parallel[i].Count)
		a.Equal(serial[i].Center, parallel[i].Center)
		a.InDelta(serial[i].MeanSemivariance, parallel[i].MeanSemivariance, 1e-12)
		a.InDelta(serial[i].MeanDistance, parallel[i].MeanDistance, 1e-12)
	}

	again, err := EstimateVariogram(context.Background(), points, EstimateOptions{Bins: 10, Workers: 7})
	require.NoError(t, err)
	a.Equal(parallel, again)
}

func TestEstimateVariogramErrors(t *testing.T) {
	a := assert.New(t)
	ctx := context.Background()

	_, err := EstimateVariogram(ctx, nil, EstimateOptions{Bins: 4})
	a.ErrorIs(err, ErrInsufficientData)
	_, err = EstimateVariogram(ctx, squareSamples[:1], EstimateOptions{Bins: 4})
	a.ErrorIs(err, ErrInsufficientData)
	_, err = EstimateVariogram(ctx, squareSamples, EstimateOptions{Bins: 0})
	a.ErrorIs(err, ErrInvalidArgument)
	_, err = EstimateVariogram(ctx, squareSamples, EstimateOptions{Bins: 3, MaxDistance: -1})
	a.ErrorIs(err, ErrInvalidArgument)
	_, err = EstimateVariogram(ctx, []SamplePoint{{X: 0}, {X: math.NaN()}}, EstimateOptions{Bins: 3})
	a.ErrorIs(err, ErrNonFiniteSample)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = EstimateVariogram(canceled, scattered(50), EstimateOptions{Bins: 3})
	a.ErrorIs(err, context.Canceled)
}

func TestPairRowsCoverEveryRow(t *testing.T) {
	a := assert.New(t)

	for _, workers := range []int{1, 2, 3, 8} {
		chunks := pairRows(25, workers)
		a.Equal(0, chunks[0][0])
		a.Equal(25, chunks[len(chunks)-1][1])
		for i := 1; i < len(chunks); i++ {
			a.Equal(chunks[i-1][1], chunks[i][0])
		}
	}
}
