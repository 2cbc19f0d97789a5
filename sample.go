package kriging

import (
	"fmt"

	vec2d "github.com/flywave/go3d/float64/vec2"
	vec3d "github.com/flywave/go3d/float64/vec3"
)

// SamplePoint is a single observation. Samples are never mutated by the
// engine.
type SamplePoint struct {
	X     float64 `json:"x" csv:"x"`
	Y     float64 `json:"y" csv:"y"`
	Value float64 `json:"value" csv:"value"`
}

func (p SamplePoint) Validate() error {
	if !isFinite(p.X) || !isFinite(p.Y) || !isFinite(p.Value) {
		return fmt.Errorf("%w: (%v, %v, %v)", ErrNonFiniteSample, p.X, p.Y, p.Value)
	}
	return nil
}

func (p SamplePoint) Pos() vec2d.T {
	return vec2d.T{p.X, p.Y}
}

// SamplesFromVec3 reads x, y from the first two components and the sample
// value from the third.
func SamplesFromVec3(pos []vec3d.T) []SamplePoint {
	ret := make([]SamplePoint, len(pos))
	for i := range pos {
		ret[i] = SamplePoint{X: pos[i][0], Y: pos[i][1], Value: pos[i][2]}
	}
	return ret
}

func validateSamples(points []SamplePoint) error {
	for i := range points {
		if err := points[i].Validate(); err != nil {
			return fmt.Errorf("sample %d: %w", i, err)
		}
	}
	return nil
}

// Extent returns the bounding box of the samples.
func Extent(points []SamplePoint) (vec2d.Rect, error) {
	if len(points) == 0 {
		return vec2d.Rect{}, fmt.Errorf("%w: no samples", ErrInsufficientData)
	}
	r := vec2d.Rect{Min: vec2d.MaxVal, Max: vec2d.MinVal}
	for i := range points {
		p := points[i].Pos()
		r.Extend(&p)
	}
	return r, nil
}

func values(points []SamplePoint) []float64 {
	v := make([]float64, len(points))
	for i := range points {
		v[i] = points[i].Value
	}
	return v
}
