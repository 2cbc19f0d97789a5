package kriging

import (
	"testing"

	vec2d "github.com/flywave/go3d/float64/vec2"

	"github.com/stretchr/testify/assert"
)

func samplesAt(xy ...vec2d.T) []SamplePoint {
	ret := make([]SamplePoint, len(xy))
	for i := range xy {
		ret[i] = SamplePoint{X: xy[i][0], Y: xy[i][1], Value: float64(i)}
	}
	return ret
}

func TestNewConvex(t *testing.T) {
	a := assert.New(t)

	vertices := samplesAt(vec2d.T{0, 0}, vec2d.T{100, 0}, vec2d.T{100, -10}, vec2d.T{150, 100}, vec2d.T{100, 200}, vec2d.T{0, 210}, vec2d.T{-50, 100}, vec2d.T{30, 30}, vec2d.T{75, 30})
	hull := []vec2d.T{{-50, 100}, {0, 0}, {100, -10}, {150, 100}, {100, 200}, {0, 210}}

	c := NewConvex(vertices)

	a.Equal(hull, c.Hull())
	a.False(c.Degenerate())
	a.Equal(vec2d.Rect{Min: vec2d.T{-50, -10}, Max: vec2d.T{150, 210}}, c.Rect())
}

func TestEdge(t *testing.T) {
	a := assert.New(t)

	c := NewConvex(samplesAt(vec2d.T{0, 0}, vec2d.T{100, 0}, vec2d.T{0, 100}, vec2d.T{100, 100}))

	edges := c.Edges()
	a.Len(edges, 4)
	for i, edge := range edges {
		next := edges[(i+1)%len(edges)]
		a.Equal(edge.End, next.Start)
		// counter-clockwise: every turn is to the left
		a.Greater(Cross(vec2d.Sub(&edge.End, &edge.Start), vec2d.Sub(&next.End, &next.Start)), 0.0)
	}
	a.Equal(vec2d.T{0, -1}, edges[0].Normal)
}

func TestContains(t *testing.T) {
	a := assert.New(t)

	c := NewConvex(samplesAt(vec2d.T{0, 0}, vec2d.T{100, 0}, vec2d.T{0, 100}, vec2d.T{100, 100}))

	a.True(c.Contains(vec2d.T{50, 50}))
	a.True(c.Contains(vec2d.T{100, 100}))
	a.True(c.Contains(vec2d.T{0, 50}))
	a.False(c.Contains(vec2d.T{50, -50}))
	a.False(c.Contains(vec2d.T{100.001, 50}))
}

func TestDegenerateHullContainsEverything(t *testing.T) {
	a := assert.New(t)

	c := NewConvex(samplesAt(vec2d.T{0, 0}, vec2d.T{1, 1}, vec2d.T{2, 2}))

	a.True(c.Degenerate())
	a.True(c.Contains(vec2d.T{-100, 50}))
}

func TestSupport(t *testing.T) {
	a := assert.New(t)

	c := NewConvex(samplesAt(vec2d.T{0, 0}, vec2d.T{100, 0}, vec2d.T{0, 100}, vec2d.T{100, 100}))

	a.Equal(vec2d.T{100, 100}, c.Support(vec2d.T{1, 1}))
	a.Equal(vec2d.T{0, 0}, c.Support(vec2d.T{-1, -1}))
}
