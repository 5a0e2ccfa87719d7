package geometry_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/bsaid97/go-area-weighted-average/geometry"
	"github.com/bsaid97/go-area-weighted-average/geometry/geomtest"
)

func TestSphericalAreaOfOneDegreeCell(t *testing.T) {
	e := geometry.SphericalArea{Engine: &geomtest.Engine{}}
	a, err := e.Area(geomtest.Rect(0, 0, 1, 1))
	require.NoError(t, err)
	assert.InEpsilon(t, 1.2364e10, a, 1e-3)

	// clockwise rings measure the same
	cw := geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{{{0, 0}, {0, 1}, {1, 1}, {1, 0}, {0, 0}}})
	b, err := e.Area(cw)
	require.NoError(t, err)
	assert.InEpsilon(t, a, b, 1e-9)
}

func TestSphericalAreaSubtractsHoles(t *testing.T) {
	e := geometry.SphericalArea{Engine: &geomtest.Engine{}}
	withHole := geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{
		{{0, 0}, {2, 0}, {2, 2}, {0, 2}, {0, 0}},
		{{0.5, 0.5}, {0.5, 1.5}, {1.5, 1.5}, {1.5, 0.5}, {0.5, 0.5}},
	})
	outer, _ := e.Area(geomtest.Rect(0, 0, 2, 2))
	hole, _ := e.Area(geomtest.Rect(0.5, 0.5, 1.5, 1.5))
	got, err := e.Area(withHole)
	require.NoError(t, err)
	assert.InEpsilon(t, outer-hole, got, 1e-9)
}

func TestForMode(t *testing.T) {
	base := &geomtest.Engine{}
	assert.Same(t, base, geometry.ForMode(base, geometry.AreaPlanar, true))
	assert.Same(t, base, geometry.ForMode(base, geometry.AreaAuto, false))
	assert.IsType(t, geometry.SphericalArea{}, geometry.ForMode(base, geometry.AreaAuto, true))
	assert.IsType(t, geometry.SphericalArea{}, geometry.ForMode(base, geometry.AreaSpherical, false))

	m, err := geometry.ParseAreaMode("")
	require.NoError(t, err)
	assert.Equal(t, geometry.AreaPlanar, m)
	_, err = geometry.ParseAreaMode("ellipsoidal")
	assert.Error(t, err)
}
