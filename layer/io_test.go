package layer

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectFormat(t *testing.T) {
	assert.Equal(t, FormatPostGIS, DetectFormat("postgres://u:p@localhost/gis?layer=parcels"))
	assert.Equal(t, FormatMongo, DetectFormat("mongodb://localhost/gis?collection=soils"))
	assert.Equal(t, FormatShapefile, DetectFormat("/data/Soils.SHP"))
	assert.Equal(t, FormatGeoJSON, DetectFormat("soils.geojson"))
	assert.True(t, IsFile("a.json"))
	assert.False(t, IsFile("postgresql://localhost/gis?layer=x"))
}

func TestParsePostGISLocation(t *testing.T) {
	loc, err := ParsePostGISLocation("postgres://u:p@db:5432/gis?sslmode=disable&layer=public.parcels&geometry_column=shape")
	require.NoError(t, err)
	assert.Equal(t, "public.parcels", loc.Table)
	assert.Equal(t, "shape", loc.GeometryColumn)
	assert.Equal(t, "postgres://u:p@db:5432/gis?sslmode=disable", loc.DSN)

	loc, err = ParsePostGISLocation("postgres://db/gis?layer=soils")
	require.NoError(t, err)
	assert.Equal(t, "geom", loc.GeometryColumn)

	_, err = ParsePostGISLocation("postgres://db/gis")
	assert.Error(t, err)
	assert.Equal(t, `"public"."parcels"`, quoteTable("public.parcels"))
}

func TestParseMongoLocation(t *testing.T) {
	loc, err := ParseMongoLocation("mongodb://localhost:27017/gis?collection=soils&crs=EPSG:3857")
	require.NoError(t, err)
	assert.Equal(t, "gis", loc.Database)
	assert.Equal(t, "soils", loc.Collection)
	assert.Equal(t, "EPSG:3857", loc.CRS.AuthID)
	assert.Equal(t, "mongodb://localhost:27017/", loc.URI)

	loc, err = ParseMongoLocation("mongodb://localhost/gis?collection=soils")
	require.NoError(t, err)
	assert.Equal(t, "EPSG:4326", loc.CRS.AuthID)

	_, err = ParseMongoLocation("mongodb://localhost/?collection=soils")
	assert.Error(t, err)
}

func TestFileName(t *testing.T) {
	tests := []struct {
		name, want string
	}{
		{"parcels_depth", "parcels_depth"},
		{"parcels_x/../../tmp/evil", "parcels_x_____tmp_evil"},
		{`parcels_..\evil`, "parcels___evil"},
		{"..", "_"},
		{" . ", "layer"},
		{"", "layer"},
		{"soil.v2", "soil.v2"},
	}
	for _, tt := range tests {
		got := FileName(tt.name)
		assert.Equal(t, tt.want, got, tt.name)
		assert.Equal(t, got, filepath.Base(got))
	}
}

func TestWriteAndReadGeoJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.geojson")
	l := &Layer{
		Name:     "out",
		CRS:      CRS{AuthID: "EPSG:3857"},
		Fields:   []Field{{Name: "v", Type: FieldReal}},
		Features: []Feature{{Geometry: square(0, 0, 1, 1), Attributes: map[string]Value{"v": Number(0.5)}}},
	}
	require.NoError(t, Write(context.Background(), path, l))

	got, err := Read(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "out", got.Name)
	assert.Equal(t, l.CRS, got.CRS)
	require.Len(t, got.Features, 1)
	assert.True(t, got.Features[0].Get("v").Equal(Number(0.5)))
}
