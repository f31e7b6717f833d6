// Package voronoi builds bounded Voronoi diagrams over sensor anchors.
//
// Cells are computed with a Fortune sweep in a local equirectangular frame
// (longitude scaled by cos(latitude) at the box center) so they follow
// nearest-anchor membership on the ground rather than in raw degrees.
package voronoi

import (
	"fmt"
	"math"
	"slices"

	"github.com/derekmu/voronoi"
	geom "github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"

	"github.com/sells-group/zone-router/internal/geoerr"
	"github.com/sells-group/zone-router/internal/geometry"
	"github.com/sells-group/zone-router/internal/model"
)

// MinAnchors is the smallest anchor set that produces a diagram.
const MinAnchors = 3

const vertexEpsilon = 1e-12

// Diagram is a bounded Voronoi partition.
type Diagram struct {
	Box      geometry.BBox
	Cells    []model.ZonePolygon
	Warnings []geoerr.Warning
}

// ZoneID returns the identifier assigned to the anchor at input position i.
func ZoneID(i int) string {
	return fmt.Sprintf("zone_%d", i+1)
}

// Partition computes the Voronoi cell of every usable anchor, clipped to box.
// Anchors with invalid coordinates, outside the box, or duplicating an earlier
// anchor's location are skipped with a warning. Fewer than MinAnchors usable
// anchors yields an empty diagram and an InsufficientDataError; the diagram is
// still returned so callers can surface its warnings.
func Partition(anchors []model.SensorPoint, box geometry.BBox) (*Diagram, error) {
	if !box.Valid() {
		return nil, geoerr.Validationf("voronoi: bounding box %+v has no area", box)
	}

	d := &Diagram{Box: box, Cells: []model.ZonePolygon{}}

	type site struct {
		idx    int
		sensor model.SensorPoint
	}
	sites := make([]site, 0, len(anchors))
	seen := make(map[model.LatLng]string, len(anchors))
	for i, a := range anchors {
		switch prev, dup := seen[a.Location]; {
		case !a.Location.Valid():
			d.Warnings = append(d.Warnings, geoerr.Skipped("sensor", a.ID, "invalid coordinates"))
		case !box.Contains(a.Location):
			d.Warnings = append(d.Warnings, geoerr.Skipped("sensor", a.ID, "outside bounding box"))
		case dup:
			d.Warnings = append(d.Warnings, geoerr.Skipped("sensor", a.ID, "duplicates location of "+prev))
		default:
			seen[a.Location] = a.ID
			sites = append(sites, site{idx: i, sensor: a})
		}
	}

	if len(sites) < MinAnchors {
		err := &geoerr.InsufficientDataError{Operation: "voronoi", Have: len(sites), Need: MinAnchors}
		d.Warnings = append(d.Warnings, geoerr.WarningFrom(err))
		return d, err
	}

	f := newFrame(box)
	lo := f.project(model.LatLng{Lat: box.MinLat, Lng: box.MinLng})
	hi := f.project(model.LatLng{Lat: box.MaxLat, Lng: box.MaxLng})
	pts := make([]voronoi.Vertex, len(sites))
	for i, s := range sites {
		v := f.project(s.sensor.Location)
		pts[i] = voronoi.Vertex{X: v.x, Y: v.y}
	}

	// ComputeDiagram sorts its input, so cells are matched back by site.
	diagram := voronoi.ComputeDiagram(slices.Clone(pts), voronoi.NewBBox(lo.x, hi.x, lo.y, hi.y), true)
	bySite := make(map[vec]*voronoi.Cell, len(diagram.Cells))
	for _, c := range diagram.Cells {
		bySite[vec{c.Site.X, c.Site.Y}] = c
	}

	for i, s := range sites {
		cell := cellRing(bySite[vec{pts[i].X, pts[i].Y}])
		if len(cell) < 3 {
			d.Warnings = append(d.Warnings, geoerr.Skipped("zone", ZoneID(s.idx), "degenerate cell"))
			continue
		}
		d.Cells = append(d.Cells, model.ZonePolygon{
			ID:             ZoneID(s.idx),
			Boundary:       counterClockwise(f.unprojectRing(cell)),
			AnchorSensorID: s.sensor.ID,
			Anchor:         s.sensor.Location,
		})
	}
	return d, nil
}

// Locate returns the index of the cell whose anchor is nearest to p, or -1
// for an empty diagram.
func (d *Diagram) Locate(p model.LatLng) int {
	best, bestDist := -1, math.Inf(1)
	for i, c := range d.Cells {
		if dist := geometry.Haversine(p, c.Anchor); dist < bestDist {
			best, bestDist = i, dist
		}
	}
	return best
}

// vec is a point in the local projected frame.
type vec struct{ x, y float64 }

func (a vec) sub(b vec) vec { return vec{a.x - b.x, a.y - b.y} }
func (a vec) dot(b vec) float64 { return a.x*b.x + a.y*b.y }

// frame is a local equirectangular projection.
type frame struct {
	scale float64
}

func newFrame(box geometry.BBox) frame {
	s := math.Cos(box.Center().Lat * math.Pi / 180)
	if s < 1e-6 {
		s = 1e-6
	}
	return frame{scale: s}
}

func (f frame) project(p model.LatLng) vec {
	return vec{x: p.Lng * f.scale, y: p.Lat}
}

func (f frame) unproject(v vec) model.LatLng {
	return model.LatLng{Lat: v.y, Lng: v.x / f.scale}
}

func (f frame) unprojectRing(ring []vec) []model.LatLng {
	out := make([]model.LatLng, len(ring))
	for i, v := range ring {
		out[i] = f.unproject(v)
	}
	return out
}

// cellRing returns the closed cell's vertices in halfedge order with
// coincident vertices removed.
func cellRing(c *voronoi.Cell) []vec {
	if c == nil {
		return nil
	}
	ring := make([]vec, 0, len(c.Halfedges))
	for _, h := range c.Halfedges {
		v := h.GetStartpoint()
		ring = append(ring, vec{v.X, v.Y})
	}
	return dedupe(ring)
}

// counterClockwise returns ring in counter-clockwise order.
func counterClockwise(ring []model.LatLng) []model.LatLng {
	if !xy.IsRingCounterClockwise(geom.XY, geometry.FlatRing(ring)) {
		slices.Reverse(ring)
	}
	return ring
}

// dedupe drops consecutive vertices closer than vertexEpsilon, wrap-around
// included.
func dedupe(ring []vec) []vec {
	out := make([]vec, 0, len(ring))
	for _, v := range ring {
		if len(out) > 0 && near(out[len(out)-1], v) {
			continue
		}
		out = append(out, v)
	}
	for len(out) > 1 && near(out[0], out[len(out)-1]) {
		out = out[:len(out)-1]
	}
	return out
}

func near(a, b vec) bool {
	return math.Abs(a.x-b.x) <= vertexEpsilon && math.Abs(a.y-b.y) <= vertexEpsilon
}
