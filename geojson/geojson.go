// Package geojson reads kriging samples from GeoJSON feature collections.
// Every vertex of every geometry becomes a sample whose value is its Z
// coordinate.
package geojson

import (
	"fmt"
	"strings"

	"github.com/flywave/go-geo"
	"github.com/flywave/go-geoid"
	"github.com/flywave/go-geom/general"
	vec2d "github.com/flywave/go3d/float64/vec2"
	vec3d "github.com/flywave/go3d/float64/vec3"
	"k8s.io/klog/v2"

	kriging "github.com/flywave/go-okgrid"
)

const EPSG4326 = 4326

type Options struct {
	// InputEPSG is the code of the input coordinates. Zero leaves the
	// coordinates untouched.
	InputEPSG int
	// TargetEPSG is the code the samples are reprojected to. Zero means
	// EPSG:4326.
	TargetEPSG int
	// HeightModel converts Z from the given vertical datum to ellipsoidal
	// heights. nil is the same as geoid.HAE and leaves Z as read.
	HeightModel *geoid.VerticalDatum
	// HeightOffset is added to every Z after the conversion.
	HeightOffset float64
}

var verticalDatums = map[string]geoid.VerticalDatum{
	"hae":     geoid.HAE,
	"egm84":   geoid.EGM84,
	"egm96":   geoid.EGM96,
	"egm2008": geoid.EGM2008,
}

// ParseVerticalDatum maps a datum name to its go-geoid model. An empty name
// returns nil, which leaves heights untouched.
func ParseVerticalDatum(name string) (*geoid.VerticalDatum, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil, nil
	}
	d, ok := verticalDatums[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown vertical datum %q", kriging.ErrInvalidArgument, name)
	}
	return &d, nil
}

type reader struct {
	pos     []vec3d.T
	missing int
}

func (r *reader) add(x, y float64, z float64) {
	r.pos = append(r.pos, vec3d.T{x, y, z})
}

func (r *reader) extractPosition(fc *general.FeatureCollection) {
	for _, feas := range fc.Features {
		switch g := feas.Geometry.(type) {
		case *general.Point:
			if d := g.Data(); len(d) > 2 {
				r.add(g.X(), g.Y(), d[2])
			} else {
				r.missing++
			}
		case *general.MultiPoint:
			for _, pos := range g.Points() {
				if d := pos.Data(); len(d) > 2 {
					r.add(pos.X(), pos.Y(), d[2])
				} else {
					r.missing++
				}
			}
		case *general.LineString:
			for _, pos := range g.Subpoints() {
				if d := pos.Data(); len(d) > 2 {
					r.add(pos.X(), pos.Y(), d[2])
				} else {
					r.missing++
				}
			}
		case *general.MultiLine:
			for _, li := range g.Lines() {
				for _, pos := range li.Subpoints() {
					if d := pos.Data(); len(d) > 2 {
						r.add(pos.X(), pos.Y(), d[2])
					} else {
						r.missing++
					}
				}
			}
		case *general.Polygon:
			for _, sli := range g.Sublines() {
				for _, pos := range sli.Subpoints() {
					if d := pos.Data(); len(d) > 2 {
						r.add(pos.X(), pos.Y(), d[2])
					} else {
						r.missing++
					}
				}
			}
		case *general.MultiPolygon:
			for _, poly := range g.Polygons() {
				for _, sli := range poly.Sublines() {
					for _, pos := range sli.Subpoints() {
						if d := pos.Data(); len(d) > 2 {
							r.add(pos.X(), pos.Y(), d[2])
						} else {
							r.missing++
						}
					}
				}
			}
		default:
			klog.V(2).InfoS("unsupported geometry skipped", "type", fmt.Sprintf("%T", g))
		}
	}
}

func positions2d(pos []vec3d.T) []vec2d.T {
	ret := make([]vec2d.T, len(pos))
	for i := range pos {
		ret[i] = vec2d.T{pos[i][0], pos[i][1]}
	}
	return ret
}

func (r *reader) convertHeight(lonlat []vec2d.T, model geoid.VerticalDatum, offset float64) {
	if (model == geoid.HAE && offset == 0) || model == geoid.UNKNOWN {
		return
	}
	if model == geoid.HAE {
		for i := range r.pos {
			r.pos[i][2] += offset
		}
		return
	}
	gid := geoid.NewGeoid(model, false)
	for i := range r.pos {
		r.pos[i][2] = gid.ConvertHeight(lonlat[i][1], lonlat[i][0], r.pos[i][2], geoid.GEOIDTOELLIPSOID) + offset
	}
}

// Read decodes a feature collection into samples, reprojecting and
// converting heights as configured. Vertices without a Z coordinate are
// skipped.
func Read(data []byte, opts Options) ([]kriging.SamplePoint, error) {
	fc, err := general.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("decode feature collection: %w", err)
	}
	r := &reader{}
	r.extractPosition(fc)
	if r.missing > 0 {
		klog.Warningf("skipped %d vertices without a Z coordinate", r.missing)
	}
	if len(r.pos) == 0 {
		return nil, fmt.Errorf("%w: no vertices with a Z coordinate", kriging.ErrInsufficientData)
	}

	target := opts.TargetEPSG
	if target == 0 {
		target = EPSG4326
	}
	xy := positions2d(r.pos)
	lonlat := xy
	if opts.InputEPSG != 0 {
		inputProj := geo.NewProj(opts.InputEPSG)
		epsg4326 := geo.NewProj(EPSG4326)
		if !inputProj.Eq(epsg4326) {
			lonlat = inputProj.TransformTo(epsg4326, positions2d(r.pos))
		}
		if target != opts.InputEPSG {
			xy = inputProj.TransformTo(geo.NewProj(target), xy)
		}
	}
	model := geoid.HAE
	if opts.HeightModel != nil {
		model = *opts.HeightModel
	}
	r.convertHeight(lonlat, model, opts.HeightOffset)

	for i := range r.pos {
		r.pos[i][0], r.pos[i][1] = xy[i][0], xy[i][1]
	}
	points := kriging.SamplesFromVec3(r.pos)
	for i := range points {
		if err := points[i].Validate(); err != nil {
			return nil, fmt.Errorf("vertex %d: %w", i, err)
		}
	}
	klog.V(2).InfoS("read geojson samples", "samples", len(points), "inputEPSG", opts.InputEPSG, "targetEPSG", target)
	return points, nil
}
