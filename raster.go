package kriging

import (
	"context"
	"fmt"

	vec2d "github.com/flywave/go3d/float64/vec2"
	"k8s.io/klog/v2"
)

const DefaultNoData = float64(-9999)

// InterpolatedGrid holds a north-up raster of estimates. Values and
// Variances are indexed [row][col]; Mask marks NODATA cells, whose value is
// NoData. Variances is nil for grids read back from a file.
type InterpolatedGrid struct {
	Spec        GridSpec
	Values      [][]float64
	Variances   [][]float64
	NoData      float64
	Mask        [][]bool
	Regularized bool
}

func newMatrix(rows, cols int, fill float64) [][]float64 {
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = fill
	}
	m := make([][]float64, rows)
	for r := range m {
		m[r] = data[r*cols : (r+1)*cols : (r+1)*cols]
	}
	return m
}

func newMask(rows, cols int, fill bool) [][]bool {
	data := make([]bool, rows*cols)
	if fill {
		for i := range data {
			data[i] = true
		}
	}
	m := make([][]bool, rows)
	for r := range m {
		m[r] = data[r*cols : (r+1)*cols : (r+1)*cols]
	}
	return m
}

// NewInterpolatedGrid returns a grid with every cell set to NODATA.
func NewInterpolatedGrid(spec GridSpec, noData float64, withVariance bool) *InterpolatedGrid {
	g := &InterpolatedGrid{
		Spec:   spec,
		Values: newMatrix(spec.NRows, spec.NCols, noData),
		NoData: noData,
		Mask:   newMask(spec.NRows, spec.NCols, true),
	}
	if withVariance {
		g.Variances = newMatrix(spec.NRows, spec.NCols, noData)
	}
	return g
}

func (g *InterpolatedGrid) set(row, col int, value, variance float64) {
	if !isFinite(value) {
		return
	}
	g.Values[row][col] = value
	g.Mask[row][col] = false
	if g.Variances != nil {
		g.Variances[row][col] = variance
	}
}

// At returns the value of a cell and whether it holds data.
func (g *InterpolatedGrid) At(row, col int) (float64, bool) {
	return g.Values[row][col], !g.Mask[row][col]
}

func (g *InterpolatedGrid) IsNoData(row, col int) bool {
	return g.Mask[row][col]
}

// Data flattens the values row-major.
func (g *InterpolatedGrid) Data() []float64 {
	data := make([]float64, 0, g.Spec.Count())
	for r := range g.Values {
		data = append(data, g.Values[r]...)
	}
	return data
}

// ValidCount is the number of cells holding data.
func (g *InterpolatedGrid) ValidCount() int {
	var n int
	for r := range g.Mask {
		for _, m := range g.Mask[r] {
			if !m {
				n++
			}
		}
	}
	return n
}

type RasterOptions struct {
	Solver SolverOptions
	// NoData defaults to DefaultNoData.
	NoData *float64
	// Hull, when set, leaves cells outside it as NODATA.
	Hull *Convex
}

// Rasterize kriges every node of spec with a single factorization of the
// system. Estimates that are not finite are stored as NODATA.
func Rasterize(ctx context.Context, points []SamplePoint, model Model, spec GridSpec, opts RasterOptions) (*InterpolatedGrid, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	noData := DefaultNoData
	if opts.NoData != nil {
		noData = *opts.NoData
	}
	kri, err := NewKriging(points, model, opts.Solver)
	if err != nil {
		return nil, err
	}

	targets := spec.Targets()
	if opts.Hull != nil {
		inside := targets[:0:0]
		for _, t := range targets {
			if opts.Hull.Contains(t) {
				inside = append(inside, t)
			}
		}
		klog.V(3).InfoS("masked cells outside hull", "cells", len(targets), "inside", len(inside))
		targets = inside
	}

	est, err := kri.PredictAll(ctx, targets)
	if err != nil {
		return nil, fmt.Errorf("rasterize %dx%d grid: %w", spec.NCols, spec.NRows, err)
	}

	grid := NewInterpolatedGrid(spec, noData, true)
	grid.Regularized = kri.Regularized()
	var skipped int
	for _, e := range est {
		row, col, ok := spec.Cell(e.X, e.Y)
		if !ok {
			skipped++
			continue
		}
		grid.set(row, col, e.Value, e.Variance)
	}
	if skipped > 0 {
		klog.V(2).InfoS("estimates outside grid skipped", "count", skipped)
	}
	return grid, nil
}

// Points returns the node coordinate of every cell holding data,
// row-major.
func (g *InterpolatedGrid) Points() []vec2d.T {
	pts := make([]vec2d.T, 0, g.Spec.Count())
	for r := 0; r < g.Spec.NRows; r++ {
		for c := 0; c < g.Spec.NCols; c++ {
			if !g.Mask[r][c] {
				pts = append(pts, g.Spec.Coordinate(r, c))
			}
		}
	}
	return pts
}
