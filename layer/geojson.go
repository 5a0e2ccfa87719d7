package layer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// crsMember is the legacy (2008) GeoJSON "crs" member, still written by
// most desktop GIS tools for projected data.
type crsMember struct {
	Type       string `json:"type"`
	Properties struct {
		Name string `json:"name"`
	} `json:"properties"`
}

type rawCollection struct {
	Type     string            `json:"type"`
	Name     string            `json:"name,omitempty"`
	CRS      *crsMember        `json:"crs,omitempty"`
	Features []json.RawMessage `json:"features"`
}

type outCollection struct {
	Type     string             `json:"type"`
	Name     string             `json:"name,omitempty"`
	CRS      *crsMember         `json:"crs,omitempty"`
	Features []*geojson.Feature `json:"features"`
}

var urnEPSG = regexp.MustCompile(`(?i)EPSG:(?:[0-9.]*:)?:?(\d+)$`)

// parseCRSName maps "urn:ogc:def:crs:EPSG::3857", "EPSG:3857" and
// "urn:ogc:def:crs:OGC:1.3:CRS84" to an authority id.
func parseCRSName(name string) string {
	if m := urnEPSG.FindStringSubmatch(name); m != nil {
		return "EPSG:" + m[1]
	}
	if strings.HasSuffix(strings.ToUpper(name), "CRS84") {
		return "OGC:CRS84"
	}
	return name
}

// ReadGeoJSON decodes a GeoJSON FeatureCollection. Features keep their
// property order; the schema is inferred from the values. A collection
// without a "crs" member is assumed to be OGC:CRS84 as RFC 7946 requires.
func ReadGeoJSON(r io.Reader, name string) (*Layer, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read GeoJSON: %w", err)
	}
	var fc rawCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse feature collection: %w", err)
	}
	if fc.Type != "FeatureCollection" {
		return nil, fmt.Errorf("expected a FeatureCollection, got %q", fc.Type)
	}

	l := &Layer{Name: name, CRS: CRS{AuthID: "OGC:CRS84"}}
	if fc.Name != "" && name == "" {
		l.Name = fc.Name
	}
	if fc.CRS != nil && fc.CRS.Properties.Name != "" {
		l.CRS = CRS{AuthID: parseCRSName(fc.CRS.Properties.Name)}
	}

	var order []string
	for i, raw := range fc.Features {
		var f geojson.Feature
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, fmt.Errorf("error decoding feature %d: %w", i, err)
		}
		keys, err := propertyOrder(raw)
		if err != nil {
			return nil, fmt.Errorf("error decoding properties of feature %d: %w", i, err)
		}
		order = mergeOrder(order, keys)

		attrs := make(map[string]Value, len(f.Properties))
		for k, v := range f.Properties {
			attrs[k] = FromAny(v)
		}
		l.Features = append(l.Features, Feature{Geometry: f.Geometry, Attributes: attrs})
	}
	l.Fields = InferFields(order, l.Features)
	return l, nil
}

// WriteGeoJSON encodes l as a FeatureCollection with properties in schema
// order. A "crs" member is written for anything other than OGC:CRS84.
func WriteGeoJSON(w io.Writer, l *Layer) error {
	out := outCollection{
		Type:     "FeatureCollection",
		Name:     l.Name,
		Features: make([]*geojson.Feature, 0, len(l.Features)),
	}
	if l.CRS.AuthID != "" && !strings.EqualFold(l.CRS.AuthID, "OGC:CRS84") {
		c := &crsMember{Type: "name"}
		c.Properties.Name = crsURN(l.CRS.AuthID)
		out.CRS = c
	}
	for _, f := range l.Features {
		props := make(map[string]interface{}, len(l.Fields))
		for _, fld := range l.Fields {
			props[fld.Name] = f.Get(fld.Name).Interface()
		}
		g := f.Geometry
		if g == nil {
			g = geom.NewMultiPolygon(geom.XY)
		}
		out.Features = append(out.Features, &geojson.Feature{Geometry: g, Properties: props})
	}

	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("failed to marshal feature collection: %w", err)
	}
	data, err = reorderProperties(data, l.FieldNames())
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func crsURN(authID string) string {
	if code, ok := strings.CutPrefix(strings.ToUpper(authID), "EPSG:"); ok {
		return "urn:ogc:def:crs:EPSG::" + code
	}
	return authID
}

// propertyOrder returns the top-level keys of a feature's "properties"
// object in document order.
func propertyOrder(rawFeature json.RawMessage) ([]string, error) {
	var holder struct {
		Properties json.RawMessage `json:"properties"`
	}
	if err := json.Unmarshal(rawFeature, &holder); err != nil {
		return nil, err
	}
	return objectKeys(holder.Properties)
}

// objectKeys lists the keys of a JSON object in document order.
func objectKeys(obj json.RawMessage) ([]string, error) {
	obj = bytes.TrimSpace(obj)
	if len(obj) == 0 || bytes.Equal(obj, []byte("null")) {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(obj))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("properties is not an object")
	}
	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v", tok)
		}
		keys = append(keys, key)
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

func mergeOrder(order, keys []string) []string {
	for _, k := range keys {
		found := false
		for _, o := range order {
			if o == k {
				found = true
				break
			}
		}
		if !found {
			order = append(order, k)
		}
	}
	return order
}

// reorderProperties rewrites every "properties" object of an encoded
// collection so its keys follow names; encoding/json sorts map keys.
func reorderProperties(data []byte, names []string) ([]byte, error) {
	var fc struct {
		Type     string            `json:"type"`
		Name     string            `json:"name,omitempty"`
		CRS      *crsMember        `json:"crs,omitempty"`
		Features []json.RawMessage `json:"features"`
	}
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to reorder properties: %w", err)
	}
	for i, raw := range fc.Features {
		var f struct {
			Type       string                     `json:"type"`
			Geometry   json.RawMessage            `json:"geometry"`
			Properties map[string]json.RawMessage `json:"properties"`
		}
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, fmt.Errorf("failed to reorder properties: %w", err)
		}
		var sb bytes.Buffer
		sb.WriteString(`{"type":"Feature","geometry":`)
		sb.Write(f.Geometry)
		sb.WriteString(`,"properties":{`)
		for j, n := range names {
			if j > 0 {
				sb.WriteByte(',')
			}
			key, _ := json.Marshal(n)
			sb.Write(key)
			sb.WriteByte(':')
			if v, ok := f.Properties[n]; ok {
				sb.Write(v)
			} else {
				sb.WriteString("null")
			}
		}
		sb.WriteString("}}")
		fc.Features[i] = sb.Bytes()
	}
	return json.Marshal(fc)
}
