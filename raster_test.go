package kriging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRasterizeSquare(t *testing.T) {
	a := assert.New(t)

	spec, err := GridSpecFor(squareSamples, 10)
	require.NoError(t, err)
	grid, err := Rasterize(context.Background(), squareSamples, squareModel, spec, RasterOptions{})
	require.NoError(t, err)

	a.Equal(DefaultNoData, grid.NoData)
	a.False(grid.Regularized)
	a.Equal(4, grid.ValidCount())

	// row 0 is north: (0,10) and (10,10)
	a.Equal([][]float64{{5, 7}, {1, 3}}, grid.Values)
	a.Equal([][]float64{{0, 0}, {0, 0}}, grid.Variances)

	v, ok := grid.At(1, 0)
	a.True(ok)
	a.Equal(1.0, v)
	a.Equal([]float64{5, 7, 1, 3}, grid.Data())
}

func TestRasterizeFillsEveryCell(t *testing.T) {
	a := assert.New(t)
	points := scattered(40)
	model := Model{Type: Spherical, Nugget: 0.02, Sill: 1, Range: 50}

	spec, err := GridSpecFor(points, 4)
	require.NoError(t, err)
	grid, err := Rasterize(context.Background(), points, model, spec, RasterOptions{Solver: SolverOptions{Workers: 4}})
	require.NoError(t, err)

	a.Equal(spec.Count(), grid.ValidCount())
	a.Len(grid.Values, spec.NRows)
	for r := range grid.Values {
		a.Len(grid.Values[r], spec.NCols)
		for c := range grid.Values[r] {
			a.False(grid.IsNoData(r, c))
			a.GreaterOrEqual(grid.Variances[r][c], -1e-9)
		}
	}
}

func TestRasterizeHullMask(t *testing.T) {
	a := assert.New(t)
	triangle := []SamplePoint{{X: 0, Y: 0, Value: 1}, {X: 20, Y: 0, Value: 2}, {X: 0, Y: 20, Value: 3}}
	noData := -1.0

	spec, err := GridSpecFor(triangle, 5)
	require.NoError(t, err)
	grid, err := Rasterize(context.Background(), triangle, squareModel, spec, RasterOptions{
		NoData: &noData,
		Hull:   NewConvex(triangle),
	})
	require.NoError(t, err)

	// north-east corner (20,20) is outside the triangle
	a.True(grid.IsNoData(0, 4))
	a.Equal(-1.0, grid.Values[0][4])
	a.Equal(-1.0, grid.Variances[0][4])
	// (10,10) lies on the hypotenuse
	a.False(grid.IsNoData(2, 2))
	a.Equal(15, grid.ValidCount())
	a.Len(grid.Points(), 15)
}

func TestRasterizeErrors(t *testing.T) {
	a := assert.New(t)
	ctx := context.Background()

	_, err := Rasterize(ctx, squareSamples, squareModel, GridSpec{}, RasterOptions{})
	a.ErrorIs(err, ErrInvalidArgument)

	spec, _ := GridSpecFor(squareSamples, 5)
	_, err = Rasterize(ctx, nil, squareModel, spec, RasterOptions{})
	a.ErrorIs(err, ErrInsufficientData)

	coincident := []SamplePoint{{X: 1, Y: 1, Value: 1}, {X: 1, Y: 1, Value: 2}}
	_, err = Rasterize(ctx, coincident, squareModel, spec, RasterOptions{})
	a.ErrorIs(err, ErrSingularSystem)

	grid, err := Rasterize(ctx, coincident, squareModel, spec, RasterOptions{Solver: SolverOptions{Regularize: true}})
	require.NoError(t, err)
	a.True(grid.Regularized)
}
