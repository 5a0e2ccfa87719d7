package pipeline_test

import (
	"github.com/twpayne/go-geom"

	"github.com/bsaid97/go-area-weighted-average/geometry/geomtest"
	"github.com/bsaid97/go-area-weighted-average/layer"
	"github.com/bsaid97/go-area-weighted-average/pipeline"
)

type attrs = map[string]layer.Value

func num(f float64) layer.Value { return layer.Number(f) }

func text(s string) layer.Value { return layer.Text(s) }

func feat(g geom.T, a attrs) layer.Feature {
	return layer.Feature{Geometry: g, Attributes: a}
}

func newLayer(name, crs string, features ...layer.Feature) *layer.Layer {
	return &layer.Layer{
		Name:     name,
		CRS:      layer.CRS{AuthID: crs},
		Fields:   layer.InferFields(nil, features),
		Features: features,
	}
}

// parcels has feature A (area 100) half covered by value 10 and half by
// value 20, and feature B far away from the overlay.
func parcels() *layer.Layer {
	return newLayer("parcels", "EPSG:32633",
		feat(geomtest.Rect(0, 0, 10, 10), attrs{"name": text("A"), "lot": num(1)}),
		feat(geomtest.Rect(100, 100, 110, 110), attrs{"name": text("B"), "lot": num(2)}),
	)
}

func soils() *layer.Layer {
	return newLayer("soils", "EPSG:32633",
		feat(geomtest.Rect(0, 0, 5, 10), attrs{"depth": num(10), "soil": text("clay")}),
		feat(geomtest.Rect(5, 0, 10, 10), attrs{"depth": num(20), "soil": text("loam")}),
	)
}

func request(input, overlay *layer.Layer) pipeline.Request {
	return pipeline.Request{
		Input:      input,
		Overlay:    overlay,
		Field:      "depth",
		Identifier: "name",
		Additional: []string{"soil"},
		HTML:       true,
	}
}
