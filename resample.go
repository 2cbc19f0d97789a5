package kriging

import (
	"fmt"
	"math"
)

const (
	BILINEAR = "bilinear"
	NEAREST  = "nearest"
)

// Interpolator blends the four nodes around a point; x and y are the
// fractional offsets from the south-west node.
type Interpolator interface {
	Interpolate(southWest, southEast, northWest, northEast, x, y float64) float64
}

type BilinearInterpolator struct{}

func Lerp(value1, value2, amount float64) float64 { return value1 + (value2-value1)*amount }

func (BilinearInterpolator) Interpolate(southWest, southEast, northWest, northEast, x, y float64) float64 {
	return Lerp(Lerp(southWest, northWest, y), Lerp(southEast, northEast, y), x)
}

// NearestInterpolator takes the value of the closest node; ties at the
// cell midline go north and east.
type NearestInterpolator struct{}

func (NearestInterpolator) Interpolate(southWest, southEast, northWest, northEast, x, y float64) float64 {
	if y >= 0.5 {
		if x >= 0.5 {
			return northEast
		}
		return northWest
	}
	if x >= 0.5 {
		return southEast
	}
	return southWest
}

func NewInterpolator(name string) (Interpolator, error) {
	switch name {
	case "", BILINEAR:
		return BilinearInterpolator{}, nil
	case NEAREST:
		return NearestInterpolator{}, nil
	}
	return nil, fmt.Errorf("%w: unknown interpolator %q", ErrInvalidArgument, name)
}

func averageExceptNoData(mask []bool, values []float64) (float64, bool) {
	var sum float64
	var n int
	for i, v := range values {
		if !mask[i] {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// Elevation samples the grid at (x, y). Points on a node return the node
// value; elsewhere the surrounding nodes are blended, with NODATA corners
// replaced by the mean of the valid ones. ok is false outside the grid or
// when every contributing node is NODATA.
func (g *InterpolatedGrid) Elevation(x, y float64, interpolator Interpolator) (float64, bool) {
	s := g.Spec
	colF := (x - s.XMin) / s.CellSize
	rowF := (s.YMax() - y) / s.CellSize
	const epsilon = 1e-9
	if colF < -epsilon || rowF < -epsilon || colF > float64(s.NCols-1)+epsilon || rowF > float64(s.NRows-1)+epsilon {
		return 0, false
	}

	colFloor := math.Floor(colF)
	rowFloor := math.Floor(rowF)
	xAmount := colF - colFloor
	yAmount := rowF - rowFloor
	if math.Abs(xAmount) < epsilon && math.Abs(yAmount) < epsilon {
		row := clampIndex(int(rowFloor), s.NRows)
		col := clampIndex(int(colFloor), s.NCols)
		return g.At(row, col)
	}

	west := clampIndex(int(colFloor), s.NCols)
	east := clampIndex(int(math.Ceil(colF)), s.NCols)
	north := clampIndex(int(rowFloor), s.NRows)
	south := clampIndex(int(math.Ceil(rowF)), s.NRows)

	values := []float64{
		g.Values[south][west], g.Values[south][east],
		g.Values[north][west], g.Values[north][east],
	}
	mask := []bool{
		g.Mask[south][west], g.Mask[south][east],
		g.Mask[north][west], g.Mask[north][east],
	}
	avg, ok := averageExceptNoData(mask, values)
	if !ok {
		return 0, false
	}
	for i := range values {
		if mask[i] {
			values[i] = avg
		}
	}
	// rowF grows southwards
	return interpolator.Interpolate(values[0], values[1], values[2], values[3], xAmount, 1-yAmount), true
}

// fillFrom writes background samples into the NODATA cells of g. Filled
// cells carry NoData as their variance.
func (g *InterpolatedGrid) fillFrom(background *InterpolatedGrid, interpolator Interpolator) int {
	var filled int
	for row := 0; row < g.Spec.NRows; row++ {
		for col := 0; col < g.Spec.NCols; col++ {
			if !g.Mask[row][col] {
				continue
			}
			p := g.Spec.Coordinate(row, col)
			v, ok := background.Elevation(p[0], p[1], interpolator)
			if !ok || !isFinite(v) {
				continue
			}
			g.set(row, col, v, g.NoData)
			filled++
		}
	}
	return filled
}
