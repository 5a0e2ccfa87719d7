// Package layer holds the in-memory representation of polygon layers and the
// readers and writers that move them between files, databases and memory.
package layer

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/twpayne/go-geom"
)

// FieldType is the declared type of an attribute column.
type FieldType int

const (
	FieldUnknown FieldType = iota
	FieldInteger
	FieldReal
	FieldText
)

func (t FieldType) String() string {
	switch t {
	case FieldInteger:
		return "integer"
	case FieldReal:
		return "real"
	case FieldText:
		return "text"
	}
	return "unknown"
}

// IsNumeric reports whether values of the type can be averaged.
func (t FieldType) IsNumeric() bool {
	return t == FieldInteger || t == FieldReal
}

// Field describes one attribute column.
type Field struct {
	Name string
	Type FieldType
}

// Feature is a polygon geometry plus its attributes. Stages never modify a
// Feature they received; they build new ones with With.
type Feature struct {
	Geometry   geom.T
	Attributes map[string]Value
}

// Get returns the named attribute, null when absent.
func (f Feature) Get(name string) Value {
	return f.Attributes[name]
}

// With returns a copy of f whose attribute name is set to v.
func (f Feature) With(name string, v Value) Feature {
	attrs := make(map[string]Value, len(f.Attributes)+1)
	for k, val := range f.Attributes {
		attrs[k] = val
	}
	attrs[name] = v
	return Feature{Geometry: f.Geometry, Attributes: attrs}
}

// Layer is an ordered collection of features sharing a schema and a CRS.
type Layer struct {
	Name     string
	CRS      CRS
	Fields   []Field
	Features []Feature
}

// Field returns the named field and whether it exists.
func (l *Layer) Field(name string) (Field, bool) {
	for _, f := range l.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// FieldNames returns the field names in schema order.
func (l *Layer) FieldNames() []string {
	names := make([]string, len(l.Fields))
	for i, f := range l.Fields {
		names[i] = f.Name
	}
	return names
}

// InferFields derives a schema from attribute values: a column is integer
// when every non-null value is an integral number, real when every non-null
// value is a number, text otherwise, and unknown when all values are null.
// Column order follows order, then any remaining names sorted.
func InferFields(order []string, features []Feature) []Field {
	seen := make(map[string]bool)
	names := make([]string, 0, len(order))
	for _, n := range order {
		if !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}
	var extra []string
	for _, f := range features {
		for n := range f.Attributes {
			if !seen[n] {
				seen[n] = true
				extra = append(extra, n)
			}
		}
	}
	sort.Strings(extra)
	names = append(names, extra...)

	fields := make([]Field, len(names))
	for i, n := range names {
		fields[i] = Field{Name: n, Type: inferType(n, features)}
	}
	return fields
}

func inferType(name string, features []Feature) FieldType {
	t := FieldUnknown
	for _, f := range features {
		v := f.Get(name)
		switch v.Kind() {
		case KindText:
			return FieldText
		case KindNumber:
			n, _ := v.Float()
			if math.Abs(n) < 1<<53 && math.Trunc(n) == n {
				if t == FieldUnknown {
					t = FieldInteger
				}
			} else {
				t = FieldReal
			}
		}
	}
	return t
}

// CRS identifies a coordinate reference system by authority code, with the
// WKT definition kept when the source provided one.
type CRS struct {
	AuthID string
	WKT    string
}

// IsZero reports whether nothing is known about the CRS.
func (c CRS) IsZero() bool {
	return c.AuthID == "" && c.WKT == ""
}

// Equal compares two CRSs by authority code, falling back to WKT.
func (c CRS) Equal(o CRS) bool {
	if c.AuthID != "" || o.AuthID != "" {
		return strings.EqualFold(c.AuthID, o.AuthID)
	}
	return strings.TrimSpace(c.WKT) == strings.TrimSpace(o.WKT)
}

// nonGeographic4xxx lists EPSG code ranges inside 4000-4999 that are
// projected or geocentric systems.
var nonGeographic4xxx = [][2]int{
	{4026, 4026}, // MOLDREF99 / Moldova TM
	{4037, 4038}, // WGS 84 / TMzn35N, TMzn36N
	{4048, 4063}, // RGRDC 2005 / Congo TM zones
	{4071, 4071}, // Chua / UTM zone 23S
	{4082, 4083}, // REGCAN95 / UTM zones 27N, 28N
	{4087, 4088}, // World Equidistant Cylindrical
	{4093, 4096}, // ETRS89 / DKTM1-4
	{4217, 4217}, // NAD83 / BLM 59N
	{4328, 4328}, // WGS 84 geocentric
	{4390, 4415}, // Kertau RSO and NAD27 / BLM zones
	{4417, 4417}, // Pulkovo 1942(83) / 3-degree Gauss-Kruger zone 7
	{4418, 4434}, // NAD27 and NAD83 BLM zones, Puerto Rico / UTM 20N
	{4437, 4437}, // NAD83(NSRS2007) / Puerto Rico and Virgin Is.
	{4455, 4457}, // NAD27 / Pennsylvania South, New York Long Island
	{4462, 4462}, // WGS 84 / Australian Centre for Remote Sensing Lambert
	{4467, 4467}, // RGSPM06 / UTM zone 21N
	{4471, 4471}, // RGM04 / UTM zone 38S
	{4484, 4489}, // Mexico ITRF92 / UTM zones
	{4491, 4554}, // CGCS2000 / Gauss-Kruger zones
	{4568, 4589}, // New Beijing / Gauss-Kruger zones
	{4647, 4647}, // ETRS89 / UTM zone 32N (zE-N)
	{4826, 4826}, // WGS 84 / Cape Verde National
	{4839, 4839}, // ETRS89 / LCC Germany (N-E)
	{4855, 4880}, // ETRS89 / NTM zones
	{4936, 4936}, // ETRS89 geocentric
	{4978, 4978}, // WGS 84 geocentric
}

func isGeographicEPSG(code int) bool {
	if code < 4000 || code > 4999 {
		return false
	}
	for _, r := range nonGeographic4xxx {
		if code >= r[0] && code <= r[1] {
			return false
		}
	}
	return true
}

// IsGeographic reports whether the CRS uses angular (longitude/latitude)
// coordinates. A WKT definition decides when present; otherwise EPSG codes
// 4000-4999 count as geographic except the projected and geocentric codes
// in nonGeographic4xxx.
func (c CRS) IsGeographic() bool {
	if c.WKT != "" {
		w := strings.ToUpper(strings.TrimSpace(c.WKT))
		if strings.HasPrefix(w, "PROJCS") || strings.HasPrefix(w, "PROJCRS") ||
			strings.HasPrefix(w, "GEOCCS") || strings.HasPrefix(w, "GEOCCRS") {
			return false
		}
		if strings.HasPrefix(w, "GEOGCS") || strings.HasPrefix(w, "GEOGCRS") || strings.HasPrefix(w, "GEODCRS") {
			return true
		}
	}
	id := strings.ToUpper(c.AuthID)
	switch id {
	case "OGC:CRS84", "CRS:84", "OGC:CRS83", "OGC:CRS27":
		return true
	}
	if code, ok := strings.CutPrefix(id, "EPSG:"); ok {
		n, err := strconv.Atoi(code)
		return err == nil && isGeographicEPSG(n)
	}
	return false
}

func (c CRS) String() string {
	if c.AuthID != "" {
		return c.AuthID
	}
	if c.WKT != "" {
		return "custom WKT"
	}
	return "unknown"
}
