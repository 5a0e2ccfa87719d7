package geometry

import (
	"fmt"

	"github.com/golang/geo/s2"
	"github.com/twpayne/go-geom"
)

// EarthRadius is the mean Earth radius in metres (IUGG).
const EarthRadius = 6371008.8

// AreaMode selects how areas are measured.
type AreaMode string

const (
	// AreaPlanar measures in the units of the layer coordinates.
	AreaPlanar AreaMode = "planar"
	// AreaSpherical treats coordinates as longitude/latitude degrees and
	// measures square metres on a sphere.
	AreaSpherical AreaMode = "spherical"
	// AreaAuto is spherical for geographic layers and planar otherwise.
	AreaAuto AreaMode = "auto"
)

// ParseAreaMode validates a configured mode. The empty string is planar.
func ParseAreaMode(s string) (AreaMode, error) {
	switch AreaMode(s) {
	case "":
		return AreaPlanar, nil
	case AreaPlanar, AreaSpherical, AreaAuto:
		return AreaMode(s), nil
	}
	return "", fmt.Errorf("unknown area mode %q", s)
}

// ForMode returns base, or base wrapped in SphericalArea when mode asks for
// spherical measurement of a layer whose geographic flag is given.
func ForMode(base Engine, mode AreaMode, geographic bool) Engine {
	if mode == AreaSpherical || (mode == AreaAuto && geographic) {
		return SphericalArea{Engine: base}
	}
	return base
}

// SphericalArea measures areas on the sphere and delegates everything else
// to the wrapped engine.
type SphericalArea struct {
	Engine
}

// Area implements Engine. Holes are subtracted from their shell.
func (s SphericalArea) Area(g geom.T) (float64, error) {
	mp := Polygonal(g)
	var total float64
	for i := 0; i < mp.NumPolygons(); i++ {
		p := mp.Polygon(i)
		for r := 0; r < p.NumLinearRings(); r++ {
			a := ringArea(p.LinearRing(r).Coords())
			if r == 0 {
				total += a
			} else {
				total -= a
			}
		}
	}
	return total, nil
}

// ringArea returns the area enclosed by a closed lon/lat ring in m².
func ringArea(ring []geom.Coord) float64 {
	if n := len(ring); n > 1 && ring[0].Equal(geom.XY, ring[n-1]) {
		ring = ring[:n-1]
	}
	if len(ring) < 3 {
		return 0
	}
	pts := make([]s2.Point, len(ring))
	for i, c := range ring {
		pts[i] = s2.PointFromLatLng(s2.LatLngFromDegrees(c.Y(), c.X()))
	}
	loop := s2.LoopFromPoints(pts)
	loop.Normalize()
	return loop.Area() * EarthRadius * EarthRadius
}
