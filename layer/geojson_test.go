package layer

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

const parcels = `{
  "type": "FeatureCollection",
  "crs": {"type": "name", "properties": {"name": "urn:ogc:def:crs:EPSG::26918"}},
  "features": [
    {"type": "Feature", "properties": {"zone": "R1", "lot": 12, "value": 1.5},
     "geometry": {"type": "Polygon", "coordinates": [[[0,0],[10,0],[10,10],[0,10],[0,0]]]}},
    {"type": "Feature", "properties": {"zone": null, "lot": 13, "value": 2},
     "geometry": {"type": "MultiPolygon", "coordinates": [[[[10,0],[20,0],[20,10],[10,10],[10,0]]]]}}
  ]
}`

func TestReadGeoJSON(t *testing.T) {
	l, err := ReadGeoJSON(strings.NewReader(parcels), "parcels")
	require.NoError(t, err)

	assert.Equal(t, "parcels", l.Name)
	assert.Equal(t, "EPSG:26918", l.CRS.AuthID)
	assert.Equal(t, []Field{
		{Name: "zone", Type: FieldText},
		{Name: "lot", Type: FieldInteger},
		{Name: "value", Type: FieldReal},
	}, l.Fields)
	require.Len(t, l.Features, 2)
	assert.True(t, l.Features[1].Get("zone").IsNull())
	assert.IsType(t, &geom.Polygon{}, l.Features[0].Geometry)
	assert.IsType(t, &geom.MultiPolygon{}, l.Features[1].Geometry)
}

func TestReadGeoJSONDefaultsToCRS84(t *testing.T) {
	l, err := ReadGeoJSON(strings.NewReader(`{"type":"FeatureCollection","features":[]}`), "empty")
	require.NoError(t, err)
	assert.Equal(t, "OGC:CRS84", l.CRS.AuthID)
	assert.True(t, l.CRS.IsGeographic())
}

func TestReadGeoJSONRejectsGeometry(t *testing.T) {
	_, err := ReadGeoJSON(strings.NewReader(`{"type":"Polygon","coordinates":[]}`), "x")
	assert.Error(t, err)
}

func TestWriteGeoJSONKeepsFieldOrder(t *testing.T) {
	l, err := ReadGeoJSON(strings.NewReader(parcels), "parcels")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteGeoJSON(&buf, l))
	out := buf.String()

	assert.Contains(t, out, `"urn:ogc:def:crs:EPSG::26918"`)
	assert.Contains(t, out, `"properties":{"zone":"R1","lot":12,"value":1.5}`)
	assert.Contains(t, out, `"properties":{"zone":null,"lot":13,"value":2}`)

	again, err := ReadGeoJSON(&buf, "again")
	require.NoError(t, err)
	assert.Equal(t, l.Fields, again.Fields)
	assert.Equal(t, l.CRS, again.CRS)
}

func TestParseCRSName(t *testing.T) {
	assert.Equal(t, "EPSG:3857", parseCRSName("urn:ogc:def:crs:EPSG::3857"))
	assert.Equal(t, "EPSG:4326", parseCRSName("urn:ogc:def:crs:EPSG:6.6:4326"))
	assert.Equal(t, "EPSG:2056", parseCRSName("EPSG:2056"))
	assert.Equal(t, "OGC:CRS84", parseCRSName("urn:ogc:def:crs:OGC:1.3:CRS84"))
}
