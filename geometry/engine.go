// Package geometry wraps the polygon operations the pipeline needs (area,
// intersection, union and dissolve) behind a small interface.
package geometry

import (
	"github.com/twpayne/go-geom"

	"github.com/bsaid97/go-area-weighted-average/layer"
)

// Engine performs polygon operations. Implementations must accept Polygon and
// MultiPolygon inputs and return polygonal results.
type Engine interface {
	// Area returns the area of g in the units of its coordinates.
	Area(g geom.T) (float64, error)
	// Intersect returns the overlap of a and b, an empty MultiPolygon when
	// they are disjoint.
	Intersect(a, b geom.T) (geom.T, error)
	// Union merges gs into one geometry.
	Union(gs []geom.T) (geom.T, error)
	// DissolveByGroup merges features sharing the values of keys.
	DissolveByGroup(features []layer.Feature, keys []string) ([]Dissolved, error)
}

// Dissolved is one merged group. Members lists the indexes of the features
// merged into it, ascending.
type Dissolved struct {
	layer.Feature
	Members []int
}

// IsEmpty reports whether g has no polygon parts with coordinates.
func IsEmpty(g geom.T) bool {
	if g == nil {
		return true
	}
	return Polygonal(g).NumPolygons() == 0
}

// Polygonal returns the polygon parts of g as a MultiPolygon. Points and
// lines, which GEOS may return for touching inputs, are discarded.
func Polygonal(g geom.T) *geom.MultiPolygon {
	out := geom.NewMultiPolygon(geom.XY)
	collect(out, g)
	return out
}

func collect(out *geom.MultiPolygon, g geom.T) {
	switch t := g.(type) {
	case *geom.Polygon:
		if t.NumLinearRings() > 0 && len(t.FlatCoords()) > 0 {
			_ = out.Push(flatten(t))
		}
	case *geom.MultiPolygon:
		for i := 0; i < t.NumPolygons(); i++ {
			collect(out, t.Polygon(i))
		}
	case *geom.GeometryCollection:
		for _, child := range t.Geoms() {
			collect(out, child)
		}
	}
}

// flatten drops Z and M so every part shares the XY layout.
func flatten(p *geom.Polygon) *geom.Polygon {
	if p.Layout() == geom.XY {
		return p
	}
	rings := make([][]geom.Coord, p.NumLinearRings())
	for i := range rings {
		for _, c := range p.LinearRing(i).Coords() {
			rings[i] = append(rings[i], geom.Coord{c.X(), c.Y()})
		}
	}
	return geom.NewPolygon(geom.XY).MustSetCoords(rings)
}

// Bounds returns the bounding box of g, nil when g is empty.
func Bounds(g geom.T) *geom.Bounds {
	if IsEmpty(g) {
		return nil
	}
	return g.Bounds()
}
