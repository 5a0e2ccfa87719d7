package utils

import (
	"math"

	"github.com/twpayne/go-geom"
)

// PRECISION is the number of decimals kept by TruncateGeometry.
var PRECISION int = 7

// TruncateGeometry rounds every coordinate of g to PRECISION decimals and
// returns a new geometry. Rings left with fewer than four coordinates are
// dropped, as are polygons whose shell is dropped.
func TruncateGeometry(g geom.T) geom.T {
	switch t := g.(type) {
	case *geom.Polygon:
		if p := truncatePolygon(t); p != nil {
			return p
		}
		return geom.NewPolygon(geom.XY)
	case *geom.MultiPolygon:
		out := geom.NewMultiPolygon(geom.XY)
		for i := 0; i < t.NumPolygons(); i++ {
			if p := truncatePolygon(t.Polygon(i)); p != nil {
				_ = out.Push(p)
			}
		}
		return out
	}
	return g
}

func truncatePolygon(polygon *geom.Polygon) *geom.Polygon {
	var rings [][]geom.Coord
	for r := 0; r < polygon.NumLinearRings(); r++ {
		coords := polygon.LinearRing(r).Coords()
		if len(coords) < 4 {
			if r == 0 {
				return nil
			}
			continue
		}
		ring := make([]geom.Coord, len(coords))
		for j, c := range coords {
			x, y := truncateCoordinates(c.X(), c.Y())
			ring[j] = geom.Coord{x, y}
		}
		rings = append(rings, ring)
	}
	if len(rings) == 0 {
		return nil
	}
	p, err := geom.NewPolygon(geom.XY).SetCoords(rings)
	if err != nil {
		return nil
	}
	return p
}

func truncateCoordinates(x float64, y float64) (float64, float64) {
	return RoundFloat(x, uint(PRECISION)), RoundFloat(y, uint(PRECISION))
}

// RoundFloat rounds val half away from zero to precision decimals.
func RoundFloat(val float64, precision uint) float64 {
	ratio := math.Pow(10, float64(precision))
	return math.Round(val*ratio) / ratio
}
