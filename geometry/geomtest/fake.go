// Package geomtest provides a geometry engine for tests that only handles
// axis-aligned rectangles, so expected areas can be worked out by hand.
package geomtest

import (
	"math"

	"github.com/twpayne/go-geom"

	"github.com/bsaid97/go-area-weighted-average/geometry"
	"github.com/bsaid97/go-area-weighted-average/layer"
)

// Rect returns the rectangle [minX,maxX]×[minY,maxY] as a counter-clockwise
// polygon.
func Rect(minX, minY, maxX, maxY float64) *geom.Polygon {
	return geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{{
		{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}, {minX, minY},
	}})
}

// Engine treats every polygon as its bounding box. Parts of one geometry
// are assumed not to overlap each other.
type Engine struct {
	// Calls counts Intersect invocations.
	Calls int
}

type box struct{ minX, minY, maxX, maxY float64 }

func (b box) area() float64 { return (b.maxX - b.minX) * (b.maxY - b.minY) }

func boxes(g geom.T) []box {
	mp := geometry.Polygonal(g)
	out := make([]box, 0, mp.NumPolygons())
	for i := 0; i < mp.NumPolygons(); i++ {
		b := mp.Polygon(i).Bounds()
		out = append(out, box{b.Min(0), b.Min(1), b.Max(0), b.Max(1)})
	}
	return out
}

// Area implements geometry.Engine.
func (e *Engine) Area(g geom.T) (float64, error) {
	var a float64
	for _, b := range boxes(g) {
		a += b.area()
	}
	return a, nil
}

// Intersect implements geometry.Engine. Overlaps of zero area are dropped.
func (e *Engine) Intersect(a, b geom.T) (geom.T, error) {
	e.Calls++
	out := geom.NewMultiPolygon(geom.XY)
	for _, x := range boxes(a) {
		for _, y := range boxes(b) {
			i := box{
				minX: math.Max(x.minX, y.minX), minY: math.Max(x.minY, y.minY),
				maxX: math.Min(x.maxX, y.maxX), maxY: math.Min(x.maxY, y.maxY),
			}
			if i.maxX > i.minX && i.maxY > i.minY {
				if err := out.Push(Rect(i.minX, i.minY, i.maxX, i.maxY)); err != nil {
					return nil, err
				}
			}
		}
	}
	return out, nil
}

// Union implements geometry.Engine by collecting the parts.
func (e *Engine) Union(gs []geom.T) (geom.T, error) {
	out := geom.NewMultiPolygon(geom.XY)
	for _, g := range gs {
		for _, b := range boxes(g) {
			if err := out.Push(Rect(b.minX, b.minY, b.maxX, b.maxY)); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// DissolveByGroup implements geometry.Engine.
func (e *Engine) DissolveByGroup(features []layer.Feature, keys []string) ([]geometry.Dissolved, error) {
	return geometry.Dissolve(e, features, keys)
}
