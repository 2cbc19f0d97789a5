package kriging

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
	"k8s.io/klog/v2"
)

// Whitespace splits rows on runs of spaces and tabs.
const Whitespace = " "

type XYZOptions struct {
	// Delimiter separates the columns. Empty means a comma.
	Delimiter string
	// CompositeCoordinates reads rows of the form `"x,y"<Delimiter>value`.
	CompositeCoordinates bool
	// SkipHeader drops the first non-empty line.
	SkipHeader bool
}

// RowError describes an input row that was skipped.
type RowError struct {
	Line int
	Text string
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d %q: %v", e.Line, e.Text, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

func splitRow(line, delimiter string) []string {
	if delimiter == Whitespace {
		return strings.Fields(line)
	}
	parts := strings.Split(line, delimiter)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseNumber(s string) (float64, error) {
	return strconv.ParseFloat(strings.Trim(strings.TrimSpace(s), `"'`), 64)
}

func parseRow(line string, opts *XYZOptions) (SamplePoint, error) {
	parts := splitRow(line, opts.Delimiter)
	var xs, ys, vs string
	if opts.CompositeCoordinates {
		if len(parts) < 2 {
			return SamplePoint{}, fmt.Errorf("%w: want coordinate and value columns, got %d", ErrMalformedInputRow, len(parts))
		}
		xy := strings.Split(strings.Trim(parts[0], `"'`), ",")
		if len(xy) != 2 {
			return SamplePoint{}, fmt.Errorf("%w: coordinate %q is not x,y", ErrMalformedInputRow, parts[0])
		}
		xs, ys, vs = xy[0], xy[1], parts[1]
	} else {
		if len(parts) < 3 {
			return SamplePoint{}, fmt.Errorf("%w: want 3 columns, got %d", ErrMalformedInputRow, len(parts))
		}
		xs, ys, vs = parts[0], parts[1], parts[2]
	}

	var p SamplePoint
	var err error
	if p.X, err = parseNumber(xs); err != nil {
		return SamplePoint{}, fmt.Errorf("%w: x: %v", ErrMalformedInputRow, err)
	}
	if p.Y, err = parseNumber(ys); err != nil {
		return SamplePoint{}, fmt.Errorf("%w: y: %v", ErrMalformedInputRow, err)
	}
	if p.Value, err = parseNumber(vs); err != nil {
		return SamplePoint{}, fmt.Errorf("%w: value: %v", ErrMalformedInputRow, err)
	}
	if err := p.Validate(); err != nil {
		return SamplePoint{}, fmt.Errorf("%w: %w", ErrMalformedInputRow, err)
	}
	return p, nil
}

// ReadXYZ reads delimited x, y, value rows. Rows that cannot be parsed are
// skipped, logged and returned alongside the samples; only I/O failures and
// an input without any valid row are errors.
func ReadXYZ(r io.Reader, opts XYZOptions) ([]SamplePoint, []RowError, error) {
	if opts.Delimiter == "" {
		opts.Delimiter = ","
	}
	if opts.CompositeCoordinates && opts.Delimiter == "," {
		return nil, nil, fmt.Errorf("%w: composite coordinates need a delimiter other than a comma", ErrInvalidArgument)
	}

	var (
		points  []SamplePoint
		skipped []RowError
		line    int
		header  = opts.SkipHeader
	)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		if header {
			header = false
			continue
		}
		p, err := parseRow(text, &opts)
		if err != nil {
			klog.Warningf("skipping input row %d %q: %v", line, text, err)
			skipped = append(skipped, RowError{Line: line, Text: text, Err: err})
			continue
		}
		points = append(points, p)
	}
	if err := scanner.Err(); err != nil {
		return nil, skipped, err
	}
	if len(points) == 0 {
		return nil, skipped, fmt.Errorf("%w: no valid x,y,value rows", ErrInsufficientData)
	}
	return points, skipped, nil
}

// TableRow is one exported grid cell.
type TableRow struct {
	X        float64 `csv:"x"`
	Y        float64 `csv:"y"`
	Value    float64 `csv:"value"`
	Variance float64 `csv:"variance"`
}

// Rows lists the cells holding data row-major. Grids without variances
// report NoData as the variance.
func (g *InterpolatedGrid) Rows() []TableRow {
	rows := make([]TableRow, 0, g.Spec.Count())
	for r := 0; r < g.Spec.NRows; r++ {
		for c := 0; c < g.Spec.NCols; c++ {
			if g.Mask[r][c] {
				continue
			}
			p := g.Spec.Coordinate(r, c)
			row := TableRow{X: p[0], Y: p[1], Value: g.Values[r][c], Variance: g.NoData}
			if g.Variances != nil {
				row.Variance = g.Variances[r][c]
			}
			rows = append(rows, row)
		}
	}
	return rows
}

// WriteTable writes the grid as CSV with an x,y,value,variance header.
func WriteTable(w io.Writer, g *InterpolatedGrid) error {
	rows := g.Rows()
	return gocsv.Marshal(&rows, w)
}
