package pipeline

import (
	"github.com/twpayne/go-geom"

	apperrors "github.com/bsaid97/go-area-weighted-average/errors"
	"github.com/bsaid97/go-area-weighted-average/geometry"
	"github.com/bsaid97/go-area-weighted-average/layer"
)

// Aggregate computes, per input feature, Σ value × fragment area divided by
// the feature's raw area. Uncovered area therefore counts as zero. A null
// or non-numeric value on any fragment fails the run.
func Aggregate(inputs []InputFeature, regions []OverlayRegion, fragments []Fragment, field string) ([]AggregatedFeature, error) {
	byInput := make(map[int][]Fragment)
	for _, f := range fragments {
		byInput[f.InputID] = append(byInput[f.InputID], f)
	}

	out := make([]AggregatedFeature, 0, len(inputs))
	for _, in := range inputs {
		frags := byInput[in.ID]
		agg := AggregatedFeature{Input: in, Average: layer.Null(), Fragments: frags}
		if len(frags) == 0 {
			out = append(out, agg)
			continue
		}

		agg.Weights = make([]float64, len(frags))
		var sum float64
		for i, f := range frags {
			region := regions[f.Region]
			v, ok := region.Value.Float()
			if !ok {
				return nil, apperrors.Data(StageAggregate,
					"field %q is %s on overlay feature(s) %v", field, describe(region.Value), region.Sources).WithFeature(in.ID)
			}
			agg.Weights[i] = v * f.Area
			sum += agg.Weights[i]
		}
		if in.RawArea > 0 {
			agg.Average = layer.Number(sum / in.RawArea)
		}
		out = append(out, agg)
	}
	return out, nil
}

func describe(v layer.Value) string {
	if v.IsNull() {
		return "null"
	}
	return "not numeric (" + v.String() + ")"
}

// Restore rebuilds one feature per aggregate: the union of its fragments,
// carrying the input attributes plus column set to the weighted average.
// The geometry is the input clipped to the overlay, so a feature without
// fragments gets an empty multipolygon and a null average.
func Restore(engine geometry.Engine, aggregates []AggregatedFeature, column string) ([]layer.Feature, error) {
	out := make([]layer.Feature, len(aggregates))
	for i, agg := range aggregates {
		var g geom.T = geom.NewMultiPolygon(geom.XY)
		if len(agg.Fragments) > 0 {
			parts := make([]geom.T, len(agg.Fragments))
			for j, f := range agg.Fragments {
				parts[j] = f.Geometry
			}
			merged, err := engine.Union(parts)
			if err != nil {
				return nil, apperrors.Wrap(err, apperrors.KindGeometry, StageRestore, "failed to merge fragments").WithFeature(agg.Input.ID)
			}
			g = merged
		}
		f := agg.Input.Feature.With(column, agg.Average)
		f.Geometry = g
		out[i] = f
	}
	return out, nil
}
