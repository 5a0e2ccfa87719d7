package geometry_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/bsaid97/go-area-weighted-average/geometry"
	"github.com/bsaid97/go-area-weighted-average/geometry/geomtest"
	"github.com/bsaid97/go-area-weighted-average/layer"
)

func TestGEOSIntersectAndArea(t *testing.T) {
	e := geometry.NewGEOSEngine(false)

	got, err := e.Intersect(geomtest.Rect(0, 0, 10, 10), geomtest.Rect(5, 0, 15, 10))
	require.NoError(t, err)
	area, err := e.Area(got)
	require.NoError(t, err)
	assert.InDelta(t, 50.0, area, 1e-9)

	disjoint, err := e.Intersect(geomtest.Rect(0, 0, 1, 1), geomtest.Rect(5, 5, 6, 6))
	require.NoError(t, err)
	assert.True(t, geometry.IsEmpty(disjoint))
	assert.IsType(t, &geom.MultiPolygon{}, disjoint)

	touching, err := e.Intersect(geomtest.Rect(0, 0, 1, 1), geomtest.Rect(1, 0, 2, 1))
	require.NoError(t, err)
	assert.True(t, geometry.IsEmpty(touching))
}

func TestGEOSUnionMergesOverlaps(t *testing.T) {
	e := geometry.NewGEOSEngine(false)
	u, err := e.Union([]geom.T{
		geomtest.Rect(0, 0, 10, 10),
		geomtest.Rect(5, 0, 15, 10),
		geomtest.Rect(30, 0, 40, 10),
	})
	require.NoError(t, err)
	area, err := e.Area(u)
	require.NoError(t, err)
	assert.InDelta(t, 250.0, area, 1e-9)
	assert.Equal(t, 2, geometry.Polygonal(u).NumPolygons())
}

func TestGEOSDissolveByGroup(t *testing.T) {
	e := geometry.NewGEOSEngine(false)
	out, err := e.DissolveByGroup([]layer.Feature{
		{Geometry: geomtest.Rect(0, 0, 10, 10), Attributes: map[string]layer.Value{"v": layer.Number(1)}},
		{Geometry: geomtest.Rect(10, 0, 20, 10), Attributes: map[string]layer.Value{"v": layer.Number(1)}},
	}, []string{"v"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	area, err := e.Area(out[0].Geometry)
	require.NoError(t, err)
	assert.InDelta(t, 200.0, area, 1e-9)
}

func TestGEOSValidateAndRepair(t *testing.T) {
	e := geometry.NewGEOSEngine(true)
	bowtie := geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{{{0, 0}, {10, 10}, {10, 0}, {0, 10}, {0, 0}}})

	valid, reason, err := e.Validate(bowtie)
	require.NoError(t, err)
	assert.False(t, valid)
	assert.Contains(t, reason, "Self-intersection")

	fixed, err := e.Repair(bowtie)
	require.NoError(t, err)
	valid, _, err = e.Validate(fixed)
	require.NoError(t, err)
	assert.True(t, valid)

	area, err := e.Area(bowtie)
	require.NoError(t, err)
	assert.InDelta(t, 50.0, area, 1e-9)
}
