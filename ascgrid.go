package kriging

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Field selects which matrix of a grid is written.
type Field string

const (
	FieldValue    Field = "value"
	FieldVariance Field = "variance"
)

type EncodeOptions struct {
	Field Field
	// HalfCell writes the Esri cell corner, half a cell south-west of the
	// first node, instead of the node itself.
	HalfCell bool
}

type DecodeOptions struct {
	// HalfCell treats xllcorner/yllcorner as the Esri cell corner and shifts
	// the origin half a cell north-east onto the first node.
	HalfCell bool
	// MaxCells bounds ncols*nrows; zero means DefaultMaxCells.
	MaxCells int
}

const headerKeyWidth = 14

func formatFloat(dst []byte, v float64) []byte {
	return strconv.AppendFloat(dst, v, 'g', -1, 64)
}

// Encode writes the grid as an Esri ASCII grid, top row first. Numbers use
// the shortest representation that parses back to the same float64.
func Encode(w io.Writer, g *InterpolatedGrid, opts EncodeOptions) error {
	if err := g.Spec.Validate(); err != nil {
		return err
	}
	matrix := g.Values
	switch opts.Field {
	case "", FieldValue:
	case FieldVariance:
		if g.Variances == nil {
			return fmt.Errorf("%w: grid has no variances", ErrInvalidArgument)
		}
		matrix = g.Variances
	default:
		return fmt.Errorf("%w: unknown field %q", ErrInvalidArgument, opts.Field)
	}
	if len(matrix) != g.Spec.NRows || len(g.Mask) != g.Spec.NRows {
		return fmt.Errorf("%w: %d rows for a %d row grid", ErrInvalidArgument, len(matrix), g.Spec.NRows)
	}

	xll, yll := g.Spec.XMin, g.Spec.YMin
	if opts.HalfCell {
		xll -= g.Spec.CellSize / 2
		yll -= g.Spec.CellSize / 2
	}

	bw := bufio.NewWriter(w)
	header := []struct {
		key   string
		value []byte
	}{
		{"ncols", strconv.AppendInt(nil, int64(g.Spec.NCols), 10)},
		{"nrows", strconv.AppendInt(nil, int64(g.Spec.NRows), 10)},
		{"xllcorner", formatFloat(nil, xll)},
		{"yllcorner", formatFloat(nil, yll)},
		{"cellsize", formatFloat(nil, g.Spec.CellSize)},
		{"NODATA_value", formatFloat(nil, g.NoData)},
	}
	for _, h := range header {
		fmt.Fprintf(bw, "%-*s%s\n", headerKeyWidth, h.key, h.value)
	}

	noData := formatFloat(nil, g.NoData)
	line := make([]byte, 0, 24*g.Spec.NCols)
	for r := 0; r < g.Spec.NRows; r++ {
		if len(matrix[r]) != g.Spec.NCols || len(g.Mask[r]) != g.Spec.NCols {
			return fmt.Errorf("%w: row %d has %d columns, want %d", ErrInvalidArgument, r, len(matrix[r]), g.Spec.NCols)
		}
		line = line[:0]
		for c := 0; c < g.Spec.NCols; c++ {
			if c > 0 {
				line = append(line, ' ')
			}
			if g.Mask[r][c] {
				line = append(line, noData...)
			} else {
				line = formatFloat(line, matrix[r][c])
			}
		}
		line = append(line, '\n')
		if _, err := bw.Write(line); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func EncodeBytes(g *InterpolatedGrid, opts EncodeOptions) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, g, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type ascHeader struct {
	values map[string]float64
}

func (h *ascHeader) get(keys ...string) (float64, string, bool) {
	for _, k := range keys {
		if v, ok := h.values[k]; ok {
			return v, k, true
		}
	}
	return 0, "", false
}

var ascHeaderKeys = map[string]bool{
	"ncols": true, "nrows": true,
	"xllcorner": true, "yllcorner": true, "xllcenter": true, "yllcenter": true,
	"cellsize": true, "dx": true, "dy": true, "nodata_value": true,
}

func formatError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrUnsupportedGridFormat}, args...)...)
}

func readLine(br *bufio.Reader) (string, bool, error) {
	line, err := br.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", false, err
	}
	if err != nil && line == "" {
		return "", false, nil
	}
	return line, true, nil
}

func isNumeric(tok string) bool {
	_, err := strconv.ParseFloat(tok, 64)
	return err == nil
}

func headerInt(h *ascHeader, key string) (int, error) {
	v, _, ok := h.get(key)
	if !ok {
		return 0, formatError("missing %s", key)
	}
	if v < 1 || v != math.Trunc(v) || v > math.MaxInt32 {
		return 0, formatError("%s %v", key, v)
	}
	return int(v), nil
}

// Decode reads an Esri ASCII grid. Header keys are matched
// case-insensitively; cells equal to NODATA_value are masked. The decoded
// grid has no variances.
func Decode(r io.Reader, opts DecodeOptions) (*InterpolatedGrid, error) {
	br := bufio.NewReader(r)
	h := &ascHeader{values: make(map[string]float64)}

	var first []string
	for {
		line, ok, err := readLine(br)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if isNumeric(fields[0]) {
			first = fields
			break
		}
		key := strings.ToLower(fields[0])
		if !ascHeaderKeys[key] {
			return nil, formatError("unknown header key %q", fields[0])
		}
		if len(fields) != 2 {
			return nil, formatError("header line %q", strings.TrimSpace(line))
		}
		if _, dup := h.values[key]; dup {
			return nil, formatError("duplicate header key %q", key)
		}
		v, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, formatError("header %s value %q", key, fields[1])
		}
		h.values[key] = v
	}

	ncols, err := headerInt(h, "ncols")
	if err != nil {
		return nil, err
	}
	nrows, err := headerInt(h, "nrows")
	if err != nil {
		return nil, err
	}
	cellSize, _, ok := h.get("cellsize")
	if !ok {
		dx, _, okx := h.get("dx")
		dy, _, oky := h.get("dy")
		if !okx || !oky {
			return nil, formatError("missing cellsize")
		}
		if dx != dy {
			return nil, formatError("non-square cells dx=%v dy=%v", dx, dy)
		}
		cellSize = dx
	} else if _, _, dup := h.get("dx", "dy"); dup {
		return nil, formatError("both cellsize and dx/dy given")
	}
	if !(cellSize > 0) || math.IsInf(cellSize, 0) {
		return nil, formatError("cellsize %v", cellSize)
	}
	xll, xkey, ok := h.get("xllcorner", "xllcenter")
	if !ok {
		return nil, formatError("missing xllcorner")
	}
	yll, ykey, ok := h.get("yllcorner", "yllcenter")
	if !ok {
		return nil, formatError("missing yllcorner")
	}
	if opts.HalfCell {
		if xkey == "xllcorner" {
			xll += cellSize / 2
		}
		if ykey == "yllcorner" {
			yll += cellSize / 2
		}
	}
	noData, _, ok := h.get("nodata_value")
	if !ok {
		noData = DefaultNoData
	}

	limit := opts.MaxCells
	if limit <= 0 {
		limit = DefaultMaxCells
	}
	if float64(ncols)*float64(nrows) > float64(limit) {
		return nil, formatError("%dx%d grid exceeds %d cells", ncols, nrows, limit)
	}

	spec := GridSpec{XMin: xll, YMin: yll, CellSize: cellSize, NCols: ncols, NRows: nrows}
	if err := spec.Validate(); err != nil {
		return nil, formatError("%v", err)
	}
	g := NewInterpolatedGrid(spec, noData, false)

	row := 0
	fields := first
	for {
		if fields == nil {
			line, ok, err := readLine(br)
			if err != nil {
				return nil, err
			}
			if !ok {
				break
			}
			fields = strings.Fields(line)
			if len(fields) == 0 {
				fields = nil
				continue
			}
		}
		if row >= nrows {
			return nil, formatError("more than %d rows", nrows)
		}
		if len(fields) != ncols {
			return nil, formatError("row %d has %d values, want %d", row, len(fields), ncols)
		}
		for col, tok := range fields {
			v, err := strconv.ParseFloat(tok, 64)
			if err != nil {
				return nil, formatError("row %d col %d value %q", row, col, tok)
			}
			if v == noData {
				continue
			}
			g.set(row, col, v, 0)
		}
		row++
		fields = nil
	}
	if row != nrows {
		return nil, formatError("%d rows, want %d", row, nrows)
	}
	return g, nil
}

func DecodeBytes(data []byte, opts DecodeOptions) (*InterpolatedGrid, error) {
	return Decode(bytes.NewReader(data), opts)
}
