package geometry

import (
	"encoding/binary"
	"fmt"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"
	"github.com/twpayne/go-geos"

	"github.com/bsaid97/go-area-weighted-average/layer"
)

// GEOSEngine implements Engine on top of the GEOS library. Geometries cross
// the boundary as WKB. GEOS reports failures by panicking; every operation
// recovers and returns the panic as an error.
type GEOSEngine struct {
	ctx    *geos.Context
	repair bool
}

// NewGEOSEngine returns an engine with its own GEOS context. When repair is
// set, invalid inputs are fixed with MakeValid before every operation.
func NewGEOSEngine(repair bool) *GEOSEngine {
	return &GEOSEngine{ctx: geos.NewContext(), repair: repair}
}

func guard(op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("geos %s failed: %v", op, r)
		}
	}()
	return fn()
}

func (e *GEOSEngine) toGEOS(g geom.T) (*geos.Geom, error) {
	if g == nil {
		g = geom.NewMultiPolygon(geom.XY)
	}
	b, err := wkb.Marshal(g, binary.LittleEndian)
	if err != nil {
		return nil, fmt.Errorf("error encoding geometry: %w", err)
	}
	gg, err := e.ctx.NewGeomFromWKB(b)
	if err != nil {
		return nil, err
	}
	if e.repair && !gg.IsValid() {
		fixed := gg.MakeValidWithParams(geos.MakeValidStructure, geos.MakeValidDiscardCollapsed)
		gg.Destroy()
		gg = fixed
	}
	return gg, nil
}

func fromGEOS(g *geos.Geom) (*geom.MultiPolygon, error) {
	if g == nil || g.IsEmpty() {
		return geom.NewMultiPolygon(geom.XY), nil
	}
	t, err := wkb.Unmarshal(g.ToWKB())
	if err != nil {
		return nil, fmt.Errorf("error decoding geometry: %w", err)
	}
	return Polygonal(t), nil
}

// Area implements Engine.
func (e *GEOSEngine) Area(g geom.T) (float64, error) {
	var area float64
	err := guard("area", func() error {
		gg, err := e.toGEOS(g)
		if err != nil {
			return err
		}
		defer gg.Destroy()
		area = gg.Area()
		return nil
	})
	return area, err
}

// Intersect implements Engine.
func (e *GEOSEngine) Intersect(a, b geom.T) (geom.T, error) {
	var out geom.T
	err := guard("intersection", func() error {
		ga, err := e.toGEOS(a)
		if err != nil {
			return err
		}
		defer ga.Destroy()
		gb, err := e.toGEOS(b)
		if err != nil {
			return err
		}
		defer gb.Destroy()

		result := ga.Intersection(gb)
		defer result.Destroy()
		out, err = fromGEOS(result)
		return err
	})
	return out, err
}

// Union implements Engine. A single geometry is unioned with itself so
// overlapping parts are merged.
func (e *GEOSEngine) Union(gs []geom.T) (geom.T, error) {
	if len(gs) == 0 {
		return geom.NewMultiPolygon(geom.XY), nil
	}
	var out geom.T
	err := guard("union", func() error {
		converted := make([]*geos.Geom, 0, len(gs))
		for _, g := range gs {
			gg, err := e.toGEOS(g)
			if err != nil {
				for _, c := range converted {
					c.Destroy()
				}
				return err
			}
			converted = append(converted, gg)
		}
		var result *geos.Geom
		if len(converted) == 1 {
			result = converted[0].UnaryUnion()
			converted[0].Destroy()
		} else {
			result = cascadedUnion(converted)
		}
		defer result.Destroy()
		var err error
		out, err = fromGEOS(result)
		return err
	})
	return out, err
}

// cascadedUnion unions geometries pairwise, halving the set each round.
// Inputs are consumed.
func cascadedUnion(geometries []*geos.Geom) *geos.Geom {
	if len(geometries) == 1 {
		return geometries[0]
	}
	mid := len(geometries) / 2
	left := cascadedUnion(geometries[:mid])
	right := cascadedUnion(geometries[mid:])

	result := left.Union(right)
	left.Destroy()
	right.Destroy()
	return result
}

// DissolveByGroup implements Engine.
func (e *GEOSEngine) DissolveByGroup(features []layer.Feature, keys []string) ([]Dissolved, error) {
	return Dissolve(e, features, keys)
}

// Validate reports whether g is a valid polygonal geometry and, if not, why.
func (e *GEOSEngine) Validate(g geom.T) (bool, string, error) {
	valid, reason := true, ""
	err := guard("validity check", func() error {
		b, err := wkb.Marshal(g, binary.LittleEndian)
		if err != nil {
			return fmt.Errorf("error encoding geometry: %w", err)
		}
		gg, err := e.ctx.NewGeomFromWKB(b)
		if err != nil {
			return err
		}
		defer gg.Destroy()
		if !gg.IsValid() {
			valid, reason = false, gg.IsValidReason()
		}
		return nil
	})
	return valid, reason, err
}

// Repair returns g made valid, keeping only its polygonal parts.
func (e *GEOSEngine) Repair(g geom.T) (geom.T, error) {
	var out geom.T
	err := guard("make valid", func() error {
		b, err := wkb.Marshal(g, binary.LittleEndian)
		if err != nil {
			return fmt.Errorf("error encoding geometry: %w", err)
		}
		gg, err := e.ctx.NewGeomFromWKB(b)
		if err != nil {
			return err
		}
		defer gg.Destroy()
		fixed := gg.MakeValidWithParams(geos.MakeValidStructure, geos.MakeValidDiscardCollapsed)
		defer fixed.Destroy()
		out, err = fromGEOS(fixed)
		return err
	})
	return out, err
}
