package kriging

import (
	"fmt"
	"math"
	"sort"
)

// TieBreak decides the value of a cell that receives several samples.
type TieBreak string

const (
	TieAverage TieBreak = "average"
	TieNearest TieBreak = "nearest"
	TieLast    TieBreak = "last"
)

func ParseTieBreak(s string) (TieBreak, error) {
	switch t := TieBreak(s); t {
	case TieAverage, TieNearest, TieLast:
		return t, nil
	case "":
		return TieAverage, nil
	}
	return "", fmt.Errorf("%w: unknown tie break %q", ErrInvalidArgument, s)
}

type voxel struct {
	sumX, sumY, sumV float64
	num              int
	nearest          int
	nearestDist      float64
	last             int
}

// BinToGrid drops every sample into the cell whose node is closest and
// leaves cells without samples as NODATA. It does no interpolation.
func BinToGrid(points []SamplePoint, spec GridSpec, noData float64, tie TieBreak) (*InterpolatedGrid, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if _, err := ParseTieBreak(string(tie)); err != nil {
		return nil, err
	}
	if err := validateSamples(points); err != nil {
		return nil, err
	}

	voxels := make([]voxel, spec.Count())
	for i := range points {
		row, col, ok := spec.Cell(points[i].X, points[i].Y)
		if !ok {
			continue
		}
		node := spec.Coordinate(row, col)
		d := distance(points[i].X, points[i].Y, node[0], node[1])
		v := &voxels[row*spec.NCols+col]
		if v.num == 0 || d < v.nearestDist {
			v.nearest, v.nearestDist = i, d
		}
		v.num++
		v.sumV += points[i].Value
		v.last = i
	}

	grid := NewInterpolatedGrid(spec, noData, false)
	for row := 0; row < spec.NRows; row++ {
		for col := 0; col < spec.NCols; col++ {
			v := &voxels[row*spec.NCols+col]
			if v.num == 0 {
				continue
			}
			var value float64
			switch tie {
			case TieNearest:
				value = points[v.nearest].Value
			case TieLast:
				value = points[v.last].Value
			default:
				value = v.sumV / float64(v.num)
			}
			grid.set(row, col, value, 0)
		}
	}
	return grid, nil
}

type leafKey struct {
	x, y int64
}

// Decluster merges samples that share a square leaf of the given size into
// their centroid carrying the mean value. The result is ordered by leaf,
// south to north then west to east.
func Decluster(points []SamplePoint, leafSize float64) ([]SamplePoint, error) {
	if !(leafSize > 0) || math.IsInf(leafSize, 0) {
		return nil, fmt.Errorf("%w: leaf size %v", ErrInvalidArgument, leafSize)
	}
	extent, err := Extent(points)
	if err != nil {
		return nil, err
	}

	leaves := make(map[leafKey]*voxel)
	keys := make([]leafKey, 0, len(points))
	for i := range points {
		p := &points[i]
		k := leafKey{
			x: int64(math.Floor((p.X - extent.Min[0]) / leafSize)),
			y: int64(math.Floor((p.Y - extent.Min[1]) / leafSize)),
		}
		v, ok := leaves[k]
		if !ok {
			v = &voxel{}
			leaves[k] = v
			keys = append(keys, k)
		}
		v.num++
		v.sumX += p.X
		v.sumY += p.Y
		v.sumV += p.Value
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].y == keys[j].y {
			return keys[i].x < keys[j].x
		}
		return keys[i].y < keys[j].y
	})

	ret := make([]SamplePoint, 0, len(keys))
	for _, k := range keys {
		v := leaves[k]
		n := float64(v.num)
		ret = append(ret, SamplePoint{X: v.sumX / n, Y: v.sumY / n, Value: v.sumV / n})
	}
	return ret, nil
}
