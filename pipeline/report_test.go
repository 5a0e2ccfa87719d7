package pipeline_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bsaid97/go-area-weighted-average/geometry/geomtest"
	"github.com/bsaid97/go-area-weighted-average/layer"
	"github.com/bsaid97/go-area-weighted-average/pipeline"
)

type rowSummary struct {
	InputID int
	Region  int
	Percent float64
}

func summarize(rows []pipeline.ReportRow) []rowSummary {
	out := make([]rowSummary, len(rows))
	for i, r := range rows {
		out[i] = rowSummary{r.InputID, r.Fragment.Region, r.AreaPercent}
	}
	return out
}

func TestBuildReportOrdering(t *testing.T) {
	input := newLayer("parcels", "EPSG:32633",
		feat(geomtest.Rect(0, 0, 10, 10), attrs{"name": text("A")}),
		feat(geomtest.Rect(20, 0, 30, 10), attrs{"name": text("C")}),
	)
	overlay := newLayer("soils", "EPSG:32633",
		feat(geomtest.Rect(0, 0, 2, 10), attrs{"depth": num(1)}),
		feat(geomtest.Rect(2, 0, 9, 10), attrs{"depth": num(2)}),
		feat(geomtest.Rect(9, 0, 10, 10), attrs{"depth": num(3)}),
		feat(geomtest.Rect(20, 0, 25, 10), attrs{"depth": num(4)}),
		feat(geomtest.Rect(25, 0, 30, 10), attrs{"depth": num(5)}),
	)
	e := &geomtest.Engine{}
	inputs, err := pipeline.AssignIDs(input)
	require.NoError(t, err)
	inputs, err = pipeline.MeasureInputs(e, inputs)
	require.NoError(t, err)
	regions, err := pipeline.Consolidate(e, overlay, "depth", nil)
	require.NoError(t, err)
	fragments, err := pipeline.Split(e, inputs, regions, pipeline.SplitOptions{})
	require.NoError(t, err)
	aggs, err := pipeline.Aggregate(inputs, regions, fragments, "depth")
	require.NoError(t, err)

	rows := pipeline.BuildReport(aggs, regions, "name")
	want := []rowSummary{
		{1, 1, 70},
		{1, 0, 20},
		{1, 2, 10},
		{2, 3, 50},
		{2, 4, 50},
	}
	if diff := cmp.Diff(want, summarize(rows)); diff != "" {
		t.Errorf("report rows mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, rows[0].Label.Equal(text("A")))
	assert.Equal(t, 70.0, rows[0].AreaCRSUnits)
}

func TestBuildReportRoundsPercent(t *testing.T) {
	aggs := []pipeline.AggregatedFeature{{
		Input:     pipeline.InputFeature{ID: 1, RawArea: 3},
		Average:   num(1),
		Fragments: []pipeline.Fragment{{InputID: 1, Region: 0, Area: 1}},
	}}
	rows := pipeline.BuildReport(aggs, []pipeline.OverlayRegion{{Value: num(1)}}, "")
	require.Len(t, rows, 1)
	assert.Equal(t, 33.33333, rows[0].AreaPercent)
	assert.True(t, rows[0].Label.IsNull())
}

func TestReportLayerSchema(t *testing.T) {
	req := request(parcels(), soils())
	aggs := []pipeline.AggregatedFeature{{
		Input:   pipeline.InputFeature{ID: 1, Feature: feat(nil, attrs{"name": text("A")}), RawArea: 100},
		Average: num(15),
		Fragments: []pipeline.Fragment{
			{InputID: 1, Region: 0, Geometry: geomtest.Rect(0, 0, 5, 10), Area: 50},
		},
	}}
	regions := []pipeline.OverlayRegion{{Value: num(10), Attributes: attrs{"depth": num(10), "soil": text("clay")}}}
	rows := pipeline.BuildReport(aggs, regions, "name")

	l := pipeline.ReportLayer(req, rows)
	assert.Equal(t, "parcels_depth_report", l.Name)
	assert.Equal(t, []layer.Field{
		{Name: "input_feat_id", Type: layer.FieldInteger},
		{Name: "name", Type: layer.FieldText},
		{Name: "weighted_depth", Type: layer.FieldReal},
		{Name: "soil", Type: layer.FieldText},
		{Name: "depth", Type: layer.FieldInteger},
		{Name: "area_crs_units", Type: layer.FieldReal},
		{Name: "area_prcnt", Type: layer.FieldReal},
	}, l.Fields)
	require.Len(t, l.Features, 1)
	f := l.Features[0]
	assert.True(t, f.Get("input_feat_id").Equal(num(1)))
	assert.True(t, f.Get("soil").Equal(text("clay")))
	assert.True(t, f.Get("area_prcnt").Equal(num(50)))
	assert.True(t, f.Get("weighted_depth").Equal(num(15)))
}

func TestReportLayerRenamesClashes(t *testing.T) {
	req := request(parcels(), soils())
	req.Identifier = "soil"
	req.Input = newLayer("parcels", "EPSG:32633", feat(geomtest.Rect(0, 0, 1, 1), attrs{"soil": text("x")}))
	l := pipeline.ReportLayer(req, nil)
	assert.Equal(t, []string{
		"input_feat_id", "soil", "weighted_depth", "soil_2", "depth", "area_crs_units", "area_prcnt",
	}, l.FieldNames())
}

func TestResultColumn(t *testing.T) {
	in := newLayer("parcels", "EPSG:32633", feat(nil, attrs{"weighted_depth": num(1)}))
	assert.Equal(t, "weighted_depth_2", pipeline.ResultColumn(in, "depth"))
	assert.Equal(t, "weighted_ph", pipeline.ResultColumn(in, "ph"))
}

func TestBuildNarrative(t *testing.T) {
	req := request(parcels(), soils())
	inputs, regions, fragments := split(t, soils(), "soil")
	aggs, err := pipeline.Aggregate(inputs, regions, fragments, "depth")
	require.NoError(t, err)
	rows := pipeline.BuildReport(aggs, regions, "name")

	n := pipeline.BuildNarrative(req, aggs, rows)
	assert.Equal(t, []string{"soil", "depth", "area_prcnt"}, []string{n.Columns[0].Name, n.Columns[1].Name, n.Columns[2].Name})
	require.Len(t, n.Blocks, 2)

	a := n.Blocks[0]
	assert.Equal(t, "1. A", a.Label)
	assert.Equal(t, 2, a.Regions)
	assert.Equal(t, [][]layer.Value{
		{text("clay"), num(10), num(50)},
		{text("loam"), num(20), num(50)},
	}, a.Rows)

	b := n.Blocks[1]
	assert.Equal(t, "2. B", b.Label)
	assert.Equal(t, 0, b.Regions)
	assert.Empty(t, b.Rows)
	assert.True(t, b.Average.IsNull())

	req.Identifier = ""
	n = pipeline.BuildNarrative(req, aggs, rows)
	assert.Equal(t, "Feature ID: 1", n.Blocks[0].Label)
}
