package layer

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Format identifies a layer storage backend.
type Format string

const (
	FormatGeoJSON   Format = "geojson"
	FormatShapefile Format = "shapefile"
	FormatPostGIS   Format = "postgis"
	FormatMongo     Format = "mongodb"
)

// DetectFormat picks the backend for a location: postgres:// and mongodb://
// URLs, .shp files, and GeoJSON for everything else.
func DetectFormat(location string) Format {
	lower := strings.ToLower(location)
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return FormatPostGIS
	case strings.HasPrefix(lower, "mongodb://"), strings.HasPrefix(lower, "mongodb+srv://"):
		return FormatMongo
	case strings.HasSuffix(lower, ".shp"):
		return FormatShapefile
	}
	return FormatGeoJSON
}

// Read loads the layer at location.
func Read(ctx context.Context, location string) (*Layer, error) {
	switch DetectFormat(location) {
	case FormatPostGIS:
		loc, err := ParsePostGISLocation(location)
		if err != nil {
			return nil, err
		}
		repo, err := OpenPostGIS(ctx, loc.DSN)
		if err != nil {
			return nil, err
		}
		defer repo.Close()
		return repo.Read(ctx, loc.Table, loc.GeometryColumn)
	case FormatMongo:
		loc, err := ParseMongoLocation(location)
		if err != nil {
			return nil, err
		}
		repo, err := ConnectMongo(ctx, loc.URI)
		if err != nil {
			return nil, err
		}
		defer repo.Close(ctx)
		return repo.Read(ctx, loc)
	case FormatShapefile:
		return ReadShapefile(location)
	}
	data, err := os.ReadFile(location)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", location, err)
	}
	name := strings.TrimSuffix(filepath.Base(location), filepath.Ext(location))
	return ReadGeoJSON(bytes.NewReader(data), name)
}

// Write stores l at location, replacing what was there.
func Write(ctx context.Context, location string, l *Layer) error {
	switch DetectFormat(location) {
	case FormatPostGIS:
		loc, err := ParsePostGISLocation(location)
		if err != nil {
			return err
		}
		repo, err := OpenPostGIS(ctx, loc.DSN)
		if err != nil {
			return err
		}
		defer repo.Close()
		return repo.Write(ctx, loc.Table, loc.GeometryColumn, l)
	case FormatMongo:
		loc, err := ParseMongoLocation(location)
		if err != nil {
			return err
		}
		repo, err := ConnectMongo(ctx, loc.URI)
		if err != nil {
			return err
		}
		defer repo.Close(ctx)
		return repo.Write(ctx, loc, l)
	case FormatShapefile:
		return WriteShapefile(location, l)
	}
	var buf bytes.Buffer
	if err := WriteGeoJSON(&buf, l); err != nil {
		return err
	}
	if err := os.WriteFile(location, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("error saving %s: %w", location, err)
	}
	return nil
}

// FileName turns a layer name into a single path element: separators and
// ".." become "_", and an empty result becomes "layer".
func FileName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', 0:
			return '_'
		}
		return r
	}, name)
	name = strings.ReplaceAll(name, "..", "_")
	name = strings.Trim(name, ". ")
	if name == "" {
		return "layer"
	}
	return name
}

// IsFile reports whether location names a local file rather than a database.
func IsFile(location string) bool {
	f := DetectFormat(location)
	return f == FormatGeoJSON || f == FormatShapefile
}
