package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "github.com/bsaid97/go-area-weighted-average/errors"
	"github.com/bsaid97/go-area-weighted-average/geometry"
	"github.com/bsaid97/go-area-weighted-average/geometry/geomtest"
	"github.com/bsaid97/go-area-weighted-average/layer"
	"github.com/bsaid97/go-area-weighted-average/pipeline"
)

type fakeRenderer struct {
	err error
	got *pipeline.Narrative
}

func (r *fakeRenderer) Render(n pipeline.Narrative) ([]byte, error) {
	r.got = &n
	if r.err != nil {
		return nil, r.err
	}
	return []byte("<html></html>"), nil
}

type countingRecorder struct {
	stages   []string
	outcome  string
	features map[string]int
}

func (r *countingRecorder) ObserveStage(stage string, _ time.Duration) {
	r.stages = append(r.stages, stage)
}

func (r *countingRecorder) ObserveRun(outcome string, _ time.Duration) { r.outcome = outcome }

func (r *countingRecorder) AddFeatures(kind string, n int) {
	if r.features == nil {
		r.features = map[string]int{}
	}
	r.features[kind] += n
}

func TestRunScenario(t *testing.T) {
	renderer := &fakeRenderer{}
	rec := &countingRecorder{}
	p := pipeline.New(&geomtest.Engine{},
		pipeline.WithLogger(zap.NewNop()),
		pipeline.WithRenderer(renderer),
		pipeline.WithRecorder(rec))

	art, err := p.Run(context.Background(), request(parcels(), soils()))
	require.NoError(t, err)

	assert.Equal(t, "parcels_depth", art.Result.Name)
	assert.Equal(t, []string{"lot", "name", "weighted_depth"}, art.Result.FieldNames())
	require.Len(t, art.Result.Features, 2)
	assert.True(t, art.Result.Features[0].Get("weighted_depth").Equal(num(15)))
	assert.True(t, art.Result.Features[1].Get("weighted_depth").IsNull())

	require.Len(t, art.Report.Features, 2)
	for _, f := range art.Report.Features {
		assert.True(t, f.Get("input_feat_id").Equal(num(1)))
		assert.True(t, f.Get("area_prcnt").Equal(num(50)))
	}

	assert.Equal(t, []byte("<html></html>"), art.HTML)
	require.NotNil(t, renderer.got)
	assert.Len(t, renderer.got.Blocks, 2)
	assert.Empty(t, art.Warnings)
	assert.Equal(t, pipeline.Stats{InputFeatures: 2, OverlayFeatures: 2, OverlayRegions: 2, Fragments: 2, Uncovered: 1}, art.Stats)

	assert.Equal(t, pipeline.Stages, rec.stages)
	assert.Equal(t, "success", rec.outcome)
	assert.Equal(t, 2, rec.features["fragment"])
}

func TestRunIsIdempotent(t *testing.T) {
	p := pipeline.New(&geomtest.Engine{})
	first, err := p.Run(context.Background(), request(parcels(), soils()))
	require.NoError(t, err)
	second, err := p.Run(context.Background(), request(parcels(), soils()))
	require.NoError(t, err)
	assert.Equal(t, first.Result.Features, second.Result.Features)
	assert.Equal(t, first.Report.Features, second.Report.Features)
}

func TestRunNullValueFailsWithoutArtifacts(t *testing.T) {
	overlay := newLayer("soils", "EPSG:32633",
		feat(geomtest.Rect(0, 0, 10, 10), attrs{"depth": layer.Null(), "soil": text("peat")}),
	)
	rec := &countingRecorder{}
	art, err := pipeline.New(&geomtest.Engine{}, pipeline.WithRecorder(rec)).Run(context.Background(), request(parcels(), overlay))
	assert.Nil(t, art)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindData))
	assert.Equal(t, "data", rec.outcome)
}

func TestRunCanceledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	art, err := pipeline.New(&geomtest.Engine{}).Run(ctx, request(parcels(), soils()))
	assert.Nil(t, art)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.True(t, apperrors.IsKind(err, apperrors.KindCanceled))
}

func TestRunCanceledBetweenStages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var seen []string
	progress := func(step, total int, stage string) {
		assert.Equal(t, len(pipeline.Stages), total)
		seen = append(seen, stage)
		if stage == pipeline.StageSplit {
			cancel()
		}
	}
	art, err := pipeline.New(&geomtest.Engine{}, pipeline.WithProgress(progress)).Run(ctx, request(parcels(), soils()))
	assert.Nil(t, art)
	require.Error(t, err)

	var appErr *apperrors.Error
	require.True(t, apperrors.As(err, &appErr))
	assert.Equal(t, apperrors.KindCanceled, appErr.Kind)
	assert.Equal(t, pipeline.StageAggregate, appErr.Stage)
	assert.Equal(t, pipeline.StageSplit, seen[len(seen)-1])
}

func TestRunWarnsOnCRS(t *testing.T) {
	input := parcels()
	input.CRS = layer.CRS{AuthID: "EPSG:4326"}
	req := request(input, soils())
	req.HTML = false
	art, err := pipeline.New(&geomtest.Engine{}).Run(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, art.Warnings, 2)
	for _, w := range art.Warnings {
		assert.Equal(t, pipeline.WarningCRS, w.Kind)
	}
}

func TestRunSkipsHTMLWithoutRenderer(t *testing.T) {
	art, err := pipeline.New(&geomtest.Engine{}).Run(context.Background(), request(parcels(), soils()))
	require.NoError(t, err)
	assert.Nil(t, art.HTML)
	require.Len(t, art.Warnings, 1)
	assert.Equal(t, pipeline.WarningDependency, art.Warnings[0].Kind)
	assert.NotNil(t, art.Result)
	assert.NotNil(t, art.Report)
}

func TestRunSkipsHTMLWhenRenderingFails(t *testing.T) {
	p := pipeline.New(&geomtest.Engine{}, pipeline.WithRenderer(&fakeRenderer{err: fmt.Errorf("template broken")}))
	art, err := p.Run(context.Background(), request(parcels(), soils()))
	require.NoError(t, err)
	assert.Nil(t, art.HTML)
	require.Len(t, art.Warnings, 1)
	assert.Contains(t, art.Warnings[0].Message, "template broken")
}

func TestRunWithoutHTMLRequest(t *testing.T) {
	renderer := &fakeRenderer{}
	req := request(parcels(), soils())
	req.HTML = false
	art, err := pipeline.New(&geomtest.Engine{}, pipeline.WithRenderer(renderer)).Run(context.Background(), req)
	require.NoError(t, err)
	assert.Nil(t, art.HTML)
	assert.Nil(t, renderer.got)
	assert.Empty(t, art.Warnings)
}

func TestRunSphericalMode(t *testing.T) {
	input := newLayer("cells", "EPSG:4326", feat(geomtest.Rect(0, 0, 1, 1), attrs{"name": text("cell")}))
	overlay := newLayer("zones", "EPSG:4326", feat(geomtest.Rect(0, 0, 1, 1), attrs{"depth": num(7)}))
	req := pipeline.Request{Input: input, Overlay: overlay, Field: "depth"}

	art, err := pipeline.New(&geomtest.Engine{}, pipeline.WithAreaMode(geometry.AreaAuto)).Run(context.Background(), req)
	require.NoError(t, err)
	area, _ := art.Report.Features[0].Get("area_crs_units").Float()
	assert.InEpsilon(t, 1.2364e10, area, 1e-3)
	avg, _ := art.Result.Features[0].Get("weighted_depth").Float()
	assert.InDelta(t, 7.0, avg, 1e-9)
}

// A grid of overlay cells with varying values over inputs that are only
// partly covered: every property of the report must hold.
func TestRunProperties(t *testing.T) {
	var inputs []layer.Feature
	for i := 0; i < 6; i++ {
		x := float64(i) * 7
		inputs = append(inputs, feat(geomtest.Rect(x, x/2, x+9, x/2+5), attrs{"lot": num(float64(i))}))
	}
	var cells []layer.Feature
	for x := 0; x < 40; x += 4 {
		for y := 0; y < 20; y += 4 {
			cells = append(cells, feat(geomtest.Rect(float64(x), float64(y), float64(x+4), float64(y+4)),
				attrs{"depth": num(float64((x*7+y*3)%11 + 1))}))
		}
	}
	req := pipeline.Request{
		Input:   newLayer("in", "EPSG:32633", inputs...),
		Overlay: newLayer("cells", "EPSG:32633", cells...),
		Field:   "depth",
	}
	art, err := pipeline.New(&geomtest.Engine{}).Run(context.Background(), req)
	require.NoError(t, err)

	type acc struct{ area, pct, min, max float64 }
	sums := map[int]*acc{}
	lastID := 0
	for _, f := range art.Report.Features {
		id, _ := f.Get("input_feat_id").Float()
		assert.GreaterOrEqual(t, int(id), lastID)
		lastID = int(id)
		a, _ := f.Get("area_crs_units").Float()
		p, _ := f.Get("area_prcnt").Float()
		v, _ := f.Get("depth").Float()
		s, ok := sums[int(id)]
		if !ok {
			s = &acc{min: v, max: v}
			sums[int(id)] = s
		}
		s.area += a
		s.pct += p
		s.min, s.max = min(s.min, v), max(s.max, v)
	}
	require.NotEmpty(t, sums)
	for i, f := range art.Result.Features {
		s, ok := sums[i+1]
		if !ok {
			assert.True(t, f.Get("weighted_depth").IsNull())
			continue
		}
		assert.LessOrEqual(t, s.area, 45*(1+1e-6))
		assert.LessOrEqual(t, s.pct, 100+1e-4)
		avg, _ := f.Get("weighted_depth").Float()
		assert.LessOrEqual(t, avg, s.max+1e-9)
		assert.GreaterOrEqual(t, avg, 0.0)
		if s.pct > 100-1e-4 {
			assert.GreaterOrEqual(t, avg, s.min-1e-9)
		}
	}
}
