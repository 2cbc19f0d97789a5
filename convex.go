package kriging

import (
	"math"

	vec2d "github.com/flywave/go3d/float64/vec2"
)

const hullTolerance = 1e-9

// Convex is the convex hull of a sample set, built lazily by quickhull.
// The hull is counter-clockwise, starting at the westernmost vertex.
type Convex struct {
	vertices []vec2d.T
	hull     []vec2d.T
	edges    []Edge
}

type Edge struct {
	Start  vec2d.T
	End    vec2d.T
	Normal vec2d.T
}

func NewConvex(points []SamplePoint) *Convex {
	vertices := make([]vec2d.T, len(points))
	for i := range points {
		vertices[i] = points[i].Pos()
	}
	return &Convex{vertices: vertices}
}

func (c *Convex) Rect() vec2d.Rect {
	r := vec2d.Rect{Min: vec2d.MaxVal, Max: vec2d.MinVal}
	for i := range c.Hull() {
		r.Extend(&c.hull[i])
	}
	return r
}

func (c *Convex) Hull() []vec2d.T {
	if c.hull == nil && len(c.vertices) > 0 {
		minX, maxX := c.getExtremePoints()
		if minX == maxX {
			c.hull = []vec2d.T{minX}
			return c.hull
		}
		c.hull = append(c.quickHull(c.vertices, maxX, minX), c.quickHull(c.vertices, minX, maxX)...)
	}

	return c.hull
}

// Edges returns the hull edges with their outward unit normals.
func (c *Convex) Edges() []Edge {
	if c.edges == nil {
		hull := c.Hull()
		for i, start := range hull {
			nextIndex := i + 1
			if len(hull) <= nextIndex {
				nextIndex = 0
			}
			end := hull[nextIndex]
			d := vec2d.Sub(&end, &start)
			normal := vec2d.T{d[1], -d[0]}
			if l := math.Hypot(normal[0], normal[1]); l > 0 {
				normal = vec2d.T{normal[0] / l, normal[1] / l}
			}
			c.edges = append(c.edges, Edge{start, end, normal})
		}
	}
	return c.edges
}

// Degenerate reports whether the samples are collinear or coincident, in
// which case the hull has no interior.
func (c *Convex) Degenerate() bool {
	return len(c.Hull()) < 3
}

// Contains reports whether p lies inside or on the hull. A degenerate hull
// contains every point, so it never masks a grid.
func (c *Convex) Contains(p vec2d.T) bool {
	if c.Degenerate() {
		return true
	}
	for _, edge := range c.Edges() {
		v := vec2d.Sub(&edge.End, &edge.Start)
		w := vec2d.Sub(&p, &edge.Start)
		scale := math.Max(1, math.Hypot(v[0], v[1])*math.Hypot(w[0], w[1]))
		if Cross(v, w) < -hullTolerance*scale {
			return false
		}
	}
	return true
}

// Support returns the hull vertex furthest along dir.
func (c *Convex) Support(dir vec2d.T) (bestVertex vec2d.T) {
	bestProjection := -math.MaxFloat64

	for _, vertex := range c.Hull() {
		v := vertex
		projection := vec2d.Dot(&v, &dir)

		if bestProjection < projection {
			bestVertex = vertex
			bestProjection = projection
		}
	}

	return bestVertex
}

func (c *Convex) quickHull(points []vec2d.T, start, end vec2d.T) []vec2d.T {
	var left []vec2d.T
	var farthestPoint vec2d.T
	maxDistanceIndicator := 0.0
	for _, point := range points {
		distanceIndicator := c.getDistanceIndicator(point, start, end)
		if distanceIndicator > 0 {
			left = append(left, point)
			if maxDistanceIndicator < distanceIndicator {
				maxDistanceIndicator = distanceIndicator
				farthestPoint = point
			}
		}
	}
	if len(left) == 0 {
		return []vec2d.T{end}
	}

	return append(
		c.quickHull(left, farthestPoint, end),
		c.quickHull(left, start, farthestPoint)...)
}

func Cross(lhs, rhs vec2d.T) float64 {
	return (lhs[0] * rhs[1]) - (lhs[1] * rhs[0])
}

func (c *Convex) getExtremePoints() (minX, maxX vec2d.T) {
	minX = vec2d.T{math.MaxFloat64, 0}
	maxX = vec2d.T{-math.MaxFloat64, 0}

	for _, p := range c.vertices {
		if p[0] < minX[0] {
			minX = p
		}

		if maxX[0] < p[0] {
			maxX = p
		}
	}

	return minX, maxX
}

func (c *Convex) getDistanceIndicator(point, start, end vec2d.T) float64 {
	vLine := vec2d.Sub(&end, &start)
	vPoint := vec2d.Sub(&point, &start)

	return Cross(vLine, vPoint)
}
