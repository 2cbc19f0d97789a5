package kriging

import (
	"fmt"
	"math"

	vec2d "github.com/flywave/go3d/float64/vec2"
)

// GridSpec is a regular, square-celled grid. Nodes sit at
// XMin + col·CellSize and YMin + (NRows−1−row)·CellSize, so row 0 is the
// northern edge.
type GridSpec struct {
	XMin     float64 `json:"xMin"`
	YMin     float64 `json:"yMin"`
	CellSize float64 `json:"cellSize"`
	NCols    int     `json:"nCols"`
	NRows    int     `json:"nRows"`
}

// DefaultMaxCells bounds the node count of grids derived from an extent.
const DefaultMaxCells = 1 << 26

func cellsFor(min, max, cellSize float64, limit int) (int, error) {
	steps := math.Ceil((max - min) / cellSize)
	if !isFinite(steps) || steps >= float64(limit) {
		return 0, fmt.Errorf("%w: span %v at cell size %v exceeds %d cells", ErrInvalidArgument, max-min, cellSize, limit)
	}
	n := int(steps) + 1
	for n <= limit && min+float64(n-1)*cellSize < max {
		n++
	}
	if n > limit {
		return 0, fmt.Errorf("%w: span %v at cell size %v exceeds %d cells", ErrInvalidArgument, max-min, cellSize, limit)
	}
	return n, nil
}

// NewGridSpec covers the extent with cells of the given size, anchored at
// the extent's minimum corner. It fails when the grid would hold more than
// DefaultMaxCells nodes.
func NewGridSpec(extent vec2d.Rect, cellSize float64) (GridSpec, error) {
	return NewGridSpecLimit(extent, cellSize, DefaultMaxCells)
}

// NewGridSpecLimit is NewGridSpec with an explicit node limit. A limit of
// zero or less means DefaultMaxCells.
func NewGridSpecLimit(extent vec2d.Rect, cellSize float64, maxCells int) (GridSpec, error) {
	if maxCells <= 0 {
		maxCells = DefaultMaxCells
	}
	if !(cellSize > 0) || math.IsInf(cellSize, 0) {
		return GridSpec{}, fmt.Errorf("%w: cell size %v", ErrInvalidArgument, cellSize)
	}
	for _, v := range []float64{extent.Min[0], extent.Min[1], extent.Max[0], extent.Max[1]} {
		if !isFinite(v) {
			return GridSpec{}, fmt.Errorf("%w: extent %v", ErrInvalidArgument, extent)
		}
	}
	if extent.Max[0] < extent.Min[0] || extent.Max[1] < extent.Min[1] {
		return GridSpec{}, fmt.Errorf("%w: empty extent %v", ErrInvalidArgument, extent)
	}
	cols, err := cellsFor(extent.Min[0], extent.Max[0], cellSize, maxCells)
	if err != nil {
		return GridSpec{}, err
	}
	rows, err := cellsFor(extent.Min[1], extent.Max[1], cellSize, maxCells)
	if err != nil {
		return GridSpec{}, err
	}
	if float64(cols)*float64(rows) > float64(maxCells) {
		return GridSpec{}, fmt.Errorf("%w: %dx%d grid exceeds %d cells", ErrInvalidArgument, cols, rows, maxCells)
	}
	return GridSpec{
		XMin:     extent.Min[0],
		YMin:     extent.Min[1],
		CellSize: cellSize,
		NCols:    cols,
		NRows:    rows,
	}, nil
}

// GridSpecFor returns the grid covering the samples' bounding box.
func GridSpecFor(points []SamplePoint, cellSize float64) (GridSpec, error) {
	return GridSpecForLimit(points, cellSize, DefaultMaxCells)
}

func GridSpecForLimit(points []SamplePoint, cellSize float64, maxCells int) (GridSpec, error) {
	extent, err := Extent(points)
	if err != nil {
		return GridSpec{}, err
	}
	return NewGridSpecLimit(extent, cellSize, maxCells)
}

func (s GridSpec) Validate() error {
	if s.NCols < 1 || s.NRows < 1 {
		return fmt.Errorf("%w: grid %dx%d", ErrInvalidArgument, s.NCols, s.NRows)
	}
	if !(s.CellSize > 0) || math.IsInf(s.CellSize, 0) || !isFinite(s.XMin) || !isFinite(s.YMin) {
		return fmt.Errorf("%w: grid origin (%v, %v) cell size %v", ErrInvalidArgument, s.XMin, s.YMin, s.CellSize)
	}
	return nil
}

func (s GridSpec) XMax() float64 {
	return s.XMin + float64(s.NCols-1)*s.CellSize
}

func (s GridSpec) YMax() float64 {
	return s.YMin + float64(s.NRows-1)*s.CellSize
}

func (s GridSpec) Count() int {
	return s.NCols * s.NRows
}

// Rect is the extent spanned by the grid nodes.
func (s GridSpec) Rect() vec2d.Rect {
	return vec2d.Rect{Min: vec2d.T{s.XMin, s.YMin}, Max: vec2d.T{s.XMax(), s.YMax()}}
}

// Coordinate returns the node position of a cell.
func (s GridSpec) Coordinate(row, col int) vec2d.T {
	return vec2d.T{
		s.XMin + float64(col)*s.CellSize,
		s.YMin + float64(s.NRows-1-row)*s.CellSize,
	}
}

// Cell maps a coordinate to the nearest cell. ok is false when the
// coordinate falls outside the grid.
func (s GridSpec) Cell(x, y float64) (row, col int, ok bool) {
	col = int(math.Round((x - s.XMin) / s.CellSize))
	row = s.NRows - 1 - int(math.Round((y-s.YMin)/s.CellSize))
	ok = row >= 0 && row < s.NRows && col >= 0 && col < s.NCols
	return row, col, ok
}

// Targets lists every node row-major, starting at the north-west corner.
func (s GridSpec) Targets() []vec2d.T {
	coords := make([]vec2d.T, 0, s.Count())
	for row := 0; row < s.NRows; row++ {
		for col := 0; col < s.NCols; col++ {
			coords = append(coords, s.Coordinate(row, col))
		}
	}
	return coords
}
