package pipeline

import (
	"fmt"
	"sort"

	"github.com/twpayne/go-geom"

	apperrors "github.com/bsaid97/go-area-weighted-average/errors"
	"github.com/bsaid97/go-area-weighted-average/geometry"
	"github.com/bsaid97/go-area-weighted-average/layer"
)

// Stage names, in execution order.
const (
	StageValidate    = "validate"
	StageAssignIDs   = "assign_ids"
	StageMeasure     = "measure"
	StageConsolidate = "consolidate"
	StageSplit       = "split"
	StageAggregate   = "aggregate"
	StageRestore     = "restore"
	StageReport      = "report"
	StageNarrative   = "narrative"
)

// Stages lists every stage a run goes through.
var Stages = []string{
	StageValidate, StageAssignIDs, StageMeasure, StageConsolidate, StageSplit,
	StageAggregate, StageRestore, StageReport, StageNarrative,
}

const (
	// coverageTolerance is the relative slack allowed when fragment areas
	// are summed against the input feature area.
	coverageTolerance = 1e-6
	// relativeSliver drops fragments smaller than this share of their
	// input feature.
	relativeSliver = 1e-12
)

// Validate checks the request before any geometric work and returns it
// with the additional fields normalized: duplicates and the averaged field
// itself are removed.
func Validate(req Request) (Request, error) {
	if req.Input == nil || len(req.Input.Features) == 0 {
		return req, apperrors.Validation(StageValidate, "input layer has no features")
	}
	if req.Overlay == nil {
		return req, apperrors.Validation(StageValidate, "overlay layer is missing")
	}
	if req.Field == "" {
		return req, apperrors.Validation(StageValidate, "no field to average was given")
	}
	f, ok := req.Overlay.Field(req.Field)
	if !ok {
		return req, apperrors.Validation(StageValidate, "field %q not found in overlay layer %q", req.Field, req.Overlay.Name)
	}
	if f.Type == layer.FieldText {
		return req, apperrors.Validation(StageValidate, "field %q of overlay layer %q is %s, not numeric", req.Field, req.Overlay.Name, f.Type)
	}
	if req.Identifier != "" {
		if _, ok := req.Input.Field(req.Identifier); !ok {
			return req, apperrors.Validation(StageValidate, "identifier field %q not found in input layer %q", req.Identifier, req.Input.Name)
		}
	}

	seen := map[string]bool{req.Field: true}
	var additional []string
	for _, name := range req.Additional {
		if seen[name] {
			continue
		}
		seen[name] = true
		if _, ok := req.Overlay.Field(name); !ok {
			return req, apperrors.Validation(StageValidate, "additional field %q not found in overlay layer %q", name, req.Overlay.Name)
		}
		additional = append(additional, name)
	}
	req.Additional = additional
	return req, nil
}

// CRSWarnings reports the reference system problems that make areas
// questionable. The computation goes ahead regardless.
func CRSWarnings(input, overlay *layer.Layer) []Warning {
	var out []Warning
	if input.CRS.IsGeographic() {
		out = append(out, Warning{Kind: WarningCRS, Message: fmt.Sprintf(
			"input layer %q uses the geographic CRS %s; areas are measured in square degrees unless spherical area mode is on", input.Name, input.CRS)})
	}
	if overlay.CRS.IsGeographic() {
		out = append(out, Warning{Kind: WarningCRS, Message: fmt.Sprintf(
			"overlay layer %q uses the geographic CRS %s; areas are measured in square degrees unless spherical area mode is on", overlay.Name, overlay.CRS)})
	}
	if !input.CRS.IsZero() && !overlay.CRS.IsZero() && !input.CRS.Equal(overlay.CRS) {
		out = append(out, Warning{Kind: WarningCRS, Message: fmt.Sprintf(
			"input layer CRS %s differs from overlay layer CRS %s; layers are not reprojected", input.CRS, overlay.CRS)})
	}
	return out
}

// AssignIDs numbers the features of l from 1 in layer order.
func AssignIDs(l *layer.Layer) ([]InputFeature, error) {
	if l == nil || len(l.Features) == 0 {
		return nil, apperrors.Validation(StageAssignIDs, "input layer has no features")
	}
	out := make([]InputFeature, len(l.Features))
	for i, f := range l.Features {
		out[i] = InputFeature{ID: i + 1, Feature: f}
	}
	return out, nil
}

// MeasureInputs returns copies of inputs with RawArea set.
func MeasureInputs(engine geometry.Engine, inputs []InputFeature) ([]InputFeature, error) {
	out := make([]InputFeature, len(inputs))
	for i, in := range inputs {
		a, err := engine.Area(in.Geometry)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.KindGeometry, StageMeasure, "failed to measure area").WithFeature(in.ID)
		}
		in.RawArea = a
		out[i] = in
	}
	return out, nil
}

// Consolidate dissolves the overlay by the averaged field plus additional,
// so one logical region is intersected once. Nulls group together.
func Consolidate(engine geometry.Engine, overlay *layer.Layer, field string, additional []string) ([]OverlayRegion, error) {
	keys := []string{field}
	for _, a := range additional {
		if a != field {
			keys = append(keys, a)
		}
	}
	dissolved, err := engine.DissolveByGroup(overlay.Features, keys)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindGeometry, StageConsolidate, "failed to dissolve overlay layer %q", overlay.Name)
	}
	out := make([]OverlayRegion, len(dissolved))
	for i, d := range dissolved {
		sources := make([]int, len(d.Members))
		for j, m := range d.Members {
			sources[j] = m + 1
		}
		out[i] = OverlayRegion{
			Index:      i,
			Geometry:   d.Geometry,
			Value:      d.Get(field),
			Attributes: d.Attributes,
			Sources:    sources,
		}
	}
	return out, nil
}

// SplitOptions tunes Split.
type SplitOptions struct {
	// MinFragmentArea drops fragments smaller than this many square units.
	MinFragmentArea float64
	// CellSize is the spatial index cell size; zero derives one from the data.
	CellSize float64
}

// Split intersects every input feature with the overlay regions whose
// bounds it touches. Fragments come out by ascending input ID, then
// ascending region index. Empty and negligible fragments are dropped.
func Split(engine geometry.Engine, inputs []InputFeature, regions []OverlayRegion, opts SplitOptions) ([]Fragment, error) {
	gs := make([]geom.T, len(regions))
	for i, r := range regions {
		gs[i] = r.Geometry
	}
	index := geometry.NewSpatialIndex(gs, opts.CellSize)

	ordered := make([]InputFeature, len(inputs))
	copy(ordered, inputs)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	var fragments []Fragment
	for _, in := range ordered {
		minArea := max(opts.MinFragmentArea, relativeSliver*in.RawArea)
		var covered float64
		for _, r := range index.Candidates(in.Geometry) {
			g, err := engine.Intersect(in.Geometry, regions[r].Geometry)
			if err != nil {
				return nil, apperrors.Wrap(err, apperrors.KindGeometry, StageSplit, "failed to intersect with overlay region %d", r+1).WithFeature(in.ID)
			}
			if geometry.IsEmpty(g) {
				continue
			}
			a, err := engine.Area(g)
			if err != nil {
				return nil, apperrors.Wrap(err, apperrors.KindGeometry, StageSplit, "failed to measure fragment of overlay region %d", r+1).WithFeature(in.ID)
			}
			if a <= 0 || a < minArea {
				continue
			}
			covered += a
			fragments = append(fragments, Fragment{
				InputID:  in.ID,
				Region:   r,
				Geometry: g,
				Area:     a,
				Order:    len(fragments),
			})
		}
		if covered > in.RawArea*(1+coverageTolerance) {
			return nil, apperrors.Data(StageSplit,
				"overlay regions overlap each other: fragments cover %.6f of a feature area of %.6f", covered, in.RawArea).WithFeature(in.ID)
		}
	}
	return fragments, nil
}
