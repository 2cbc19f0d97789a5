package kriging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBinToGrid(t *testing.T) {
	a := assert.New(t)
	points := []SamplePoint{
		{X: 0, Y: 0, Value: 1},
		{X: 0.4, Y: 0.2, Value: 3},
		{X: 2, Y: 2, Value: 9},
		{X: 0.1, Y: 0, Value: 5},
	}
	spec, err := GridSpecFor(points, 1)
	require.NoError(t, err)
	a.Equal(3, spec.NCols)
	a.Equal(3, spec.NRows)

	for tie, want := range map[TieBreak]float64{
		TieAverage: 3,
		TieNearest: 1,
		TieLast:    5,
	} {
		grid, err := BinToGrid(points, spec, DefaultNoData, tie)
		require.NoError(t, err)
		a.Nil(grid.Variances)
		a.Equal(2, grid.ValidCount(), tie)

		v, ok := grid.At(2, 0)
		a.True(ok)
		a.Equal(want, v, tie)
		v, ok = grid.At(0, 2)
		a.True(ok)
		a.Equal(9.0, v)
		a.True(grid.IsNoData(1, 1))
		a.Equal(DefaultNoData, grid.Values[1][1])
	}
}

func TestParseTieBreak(t *testing.T) {
	a := assert.New(t)

	tie, err := ParseTieBreak("")
	a.NoError(err)
	a.Equal(TieAverage, tie)
	tie, err = ParseTieBreak("last")
	a.NoError(err)
	a.Equal(TieLast, tie)
	_, err = ParseTieBreak("first")
	a.ErrorIs(err, ErrInvalidArgument)
}

func TestDecluster(t *testing.T) {
	a := assert.New(t)
	points := []SamplePoint{
		{X: 0, Y: 0, Value: 2},
		{X: 0.5, Y: 0.5, Value: 4},
		{X: 5, Y: 0, Value: 1},
		{X: 0, Y: 5, Value: 7},
	}

	out, err := Decluster(points, 1)
	require.NoError(t, err)
	a.Equal([]SamplePoint{
		{X: 0.25, Y: 0.25, Value: 3},
		{X: 5, Y: 0, Value: 1},
		{X: 0, Y: 5, Value: 7},
	}, out)

	_, err = Decluster(points, 0)
	a.ErrorIs(err, ErrInvalidArgument)
	_, err = Decluster(nil, 1)
	a.ErrorIs(err, ErrInsufficientData)
}
