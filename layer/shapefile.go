package layer

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/twpayne/go-geom"
)

// dbfNameLimit is the DBF field name length limit.
const dbfNameLimit = 10

var prjAuthority = regexp.MustCompile(`AUTHORITY\["EPSG",\s*"?(\d+)"?\]\s*\]\s*$`)

// ReadShapefile reads a polygon shapefile and its DBF attributes. The CRS
// comes from the sibling .prj file when present.
func ReadShapefile(path string) (*Layer, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open shapefile %s: %w", path, err)
	}
	defer reader.Close()

	switch reader.GeometryType {
	case shp.POLYGON, shp.POLYGONZ, shp.POLYGONM, shp.NULL:
	default:
		return nil, fmt.Errorf("shapefile %s is not a polygon layer (shape type %d)", path, reader.GeometryType)
	}

	dbfFields := reader.Fields()
	fields := make([]Field, len(dbfFields))
	for i, f := range dbfFields {
		fields[i] = Field{Name: dbfFieldName(f), Type: dbfFieldType(f)}
	}

	l := &Layer{
		Name:   strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Fields: fields,
		CRS:    readPrj(strings.TrimSuffix(path, filepath.Ext(path)) + ".prj"),
	}
	for reader.Next() {
		n, shape := reader.Shape()
		g, err := shapeToGeom(shape)
		if err != nil {
			return nil, fmt.Errorf("error reading shape %d of %s: %w", n, path, err)
		}
		attrs := make(map[string]Value, len(fields))
		for i, f := range fields {
			attrs[f.Name] = parseDBFValue(reader.ReadAttribute(n, i), f.Type)
		}
		l.Features = append(l.Features, Feature{Geometry: g, Attributes: attrs})
	}
	if err := reader.Err(); err != nil {
		return nil, fmt.Errorf("failed to read shapefile %s: %w", path, err)
	}
	return l, nil
}

func readPrj(path string) CRS {
	data, err := os.ReadFile(path)
	if err != nil {
		return CRS{}
	}
	wkt := strings.TrimSpace(string(data))
	crs := CRS{WKT: wkt}
	if m := prjAuthority.FindStringSubmatch(wkt); m != nil {
		crs.AuthID = "EPSG:" + m[1]
	}
	return crs
}

func dbfFieldName(f shp.Field) string {
	return strings.TrimRight(string(f.Name[:]), "\x00 ")
}

func dbfFieldType(f shp.Field) FieldType {
	switch f.Fieldtype {
	case 'N':
		if f.Precision == 0 {
			return FieldInteger
		}
		return FieldReal
	case 'F':
		return FieldReal
	default:
		return FieldText
	}
}

func parseDBFValue(raw string, t FieldType) Value {
	s := strings.TrimSpace(strings.TrimRight(raw, "\x00"))
	if !t.IsNumeric() {
		if s == "" {
			return Null()
		}
		return Text(s)
	}
	if s == "" || strings.Trim(s, "*") == "" {
		return Null()
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Null()
	}
	return Number(f)
}

// shapeToGeom converts a shapefile polygon into a MultiPolygon. Clockwise
// rings start a new polygon; counter-clockwise rings are holes of the
// polygon before them.
func shapeToGeom(shape shp.Shape) (geom.T, error) {
	var parts []int32
	var points []shp.Point
	switch s := shape.(type) {
	case *shp.Null:
		return geom.NewMultiPolygon(geom.XY), nil
	case *shp.Polygon:
		parts, points = s.Parts, s.Points
	case *shp.PolygonZ:
		parts, points = s.Parts, s.Points
	case *shp.PolygonM:
		parts, points = s.Parts, s.Points
	default:
		return nil, fmt.Errorf("unsupported shape %T", shape)
	}

	mp := geom.NewMultiPolygon(geom.XY)
	var current [][]geom.Coord
	flush := func() error {
		if len(current) == 0 {
			return nil
		}
		p, err := geom.NewPolygon(geom.XY).SetCoords(current)
		if err != nil {
			return err
		}
		current = nil
		return mp.Push(p)
	}
	for i, start := range parts {
		end := int32(len(points))
		if i+1 < len(parts) {
			end = parts[i+1]
		}
		ring := make([]geom.Coord, 0, end-start)
		for _, pt := range points[start:end] {
			ring = append(ring, geom.Coord{pt.X, pt.Y})
		}
		if len(ring) < 4 {
			continue
		}
		if signedArea(ring) <= 0 || len(current) == 0 {
			if err := flush(); err != nil {
				return nil, err
			}
		}
		current = append(current, ring)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return mp, nil
}

// signedArea is positive for counter-clockwise rings.
func signedArea(ring []geom.Coord) float64 {
	var a float64
	for i := 0; i+1 < len(ring); i++ {
		a += ring[i][0]*ring[i+1][1] - ring[i+1][0]*ring[i][1]
	}
	return a / 2
}

// WriteShapefile writes l as a polygon shapefile (.shp, .shx, .dbf, and .prj
// when the CRS has a WKT definition). Field names longer than the DBF limit
// are truncated and made unique. A layer without fields gets an FID column
// so that the .dbf always exists.
func WriteShapefile(path string, l *Layer) error {
	if len(l.Fields) == 0 && len(l.Features) == 0 {
		return fmt.Errorf("no features to write to shapefile")
	}
	base := strings.TrimSuffix(path, filepath.Ext(path))
	shape, err := shp.Create(path, shp.POLYGON)
	if err != nil {
		return fmt.Errorf("failed to create shapefile: %w", err)
	}
	closed := false
	defer func() {
		if !closed {
			shape.Close()
		}
	}()

	fields := l.Fields
	fid := len(fields) == 0
	if fid {
		fields = []Field{{Name: "FID", Type: FieldInteger}}
	}
	dbfFields, names := createDBFFields(fields)
	if err := shape.SetFields(dbfFields); err != nil {
		return fmt.Errorf("failed to set shapefile fields: %w", err)
	}

	for i, f := range l.Features {
		row := int(shape.Write(geomToShape(f.Geometry)))
		for j, fld := range fields {
			v := f.Get(fld.Name)
			if fid {
				v = Number(float64(i))
			}
			if err := shape.WriteAttribute(row, j, dbfValue(v, fld.Type)); err != nil {
				return fmt.Errorf("failed to write attribute %s of feature %d: %w", names[j], i, err)
			}
		}
	}
	shape.Close()
	closed = true

	// go-shp v0.1.1 names the table <base>dbf, without the dot.
	if _, err := os.Stat(base + "dbf"); err == nil {
		if err := os.Rename(base+"dbf", base+".dbf"); err != nil {
			return fmt.Errorf("failed to move attribute table: %w", err)
		}
	}
	if _, err := os.Stat(base + ".dbf"); err != nil {
		return fmt.Errorf("attribute table %s.dbf was not written: %w", base, err)
	}

	if l.CRS.WKT != "" {
		prj := base + ".prj"
		if err := os.WriteFile(prj, []byte(l.CRS.WKT), 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", prj, err)
		}
	}
	return nil
}

// createDBFFields maps the schema onto DBF fields.
func createDBFFields(fields []Field) ([]shp.Field, []string) {
	out := make([]shp.Field, 0, len(fields))
	names := make([]string, 0, len(fields))
	used := make(map[string]bool)
	for _, f := range fields {
		name := f.Name
		if len(name) > dbfNameLimit {
			name = name[:dbfNameLimit]
		}
		for n := 1; used[strings.ToUpper(name)]; n++ {
			suffix := strconv.Itoa(n)
			base := f.Name
			if len(base) > dbfNameLimit-len(suffix) {
				base = base[:dbfNameLimit-len(suffix)]
			}
			name = base + suffix
		}
		used[strings.ToUpper(name)] = true
		names = append(names, name)

		switch f.Type {
		case FieldInteger:
			out = append(out, shp.NumberField(name, 18))
		case FieldReal:
			out = append(out, shp.FloatField(name, 24, 5))
		default:
			out = append(out, shp.StringField(name, 254))
		}
	}
	return out, names
}

func dbfValue(v Value, t FieldType) interface{} {
	if v.IsNull() {
		return ""
	}
	switch t {
	case FieldInteger:
		if n, ok := v.Float(); ok {
			return int(math.Round(n))
		}
	case FieldReal:
		if n, ok := v.Float(); ok {
			return n
		}
	}
	s := v.String()
	if len(s) > 254 {
		s = s[:254]
	}
	return s
}

// geomToShape encodes polygonal geometry as a shapefile polygon with
// clockwise outer rings and counter-clockwise holes.
func geomToShape(g geom.T) shp.Shape {
	polygon := &shp.Polygon{}
	var polys []*geom.Polygon
	switch t := g.(type) {
	case *geom.Polygon:
		polys = []*geom.Polygon{t}
	case *geom.MultiPolygon:
		for i := 0; i < t.NumPolygons(); i++ {
			polys = append(polys, t.Polygon(i))
		}
	}
	for _, p := range polys {
		for r := 0; r < p.NumLinearRings(); r++ {
			ring := p.LinearRing(r).Coords()
			if len(ring) == 0 {
				continue
			}
			outer := r == 0
			if (outer && signedArea(ring) > 0) || (!outer && signedArea(ring) < 0) {
				ring = reversed(ring)
			}
			polygon.Parts = append(polygon.Parts, int32(len(polygon.Points)))
			for _, c := range ring {
				polygon.Points = append(polygon.Points, shp.Point{X: c[0], Y: c[1]})
			}
		}
	}
	if len(polygon.Points) == 0 {
		return &shp.Null{}
	}
	polygon.NumParts = int32(len(polygon.Parts))
	polygon.NumPoints = int32(len(polygon.Points))
	polygon.Box = shp.BBoxFromPoints(polygon.Points)
	return polygon
}

func reversed(ring []geom.Coord) []geom.Coord {
	out := make([]geom.Coord, len(ring))
	for i, c := range ring {
		out[len(ring)-1-i] = c
	}
	return out
}
