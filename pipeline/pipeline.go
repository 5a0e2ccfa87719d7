// Package pipeline computes area weighted averages of an overlay layer
// field over the features of an input layer.
//
// A run is a fixed sequence of stages (see Stages). Each stage is a plain
// function taking the previous stage's values and returning new ones;
// Pipeline.Run chains them, checks for cancellation between stages and
// reports progress.
package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/bsaid97/go-area-weighted-average/errors"
	"github.com/bsaid97/go-area-weighted-average/geometry"
)

// Renderer turns a narrative into a document.
type Renderer interface {
	Render(n Narrative) ([]byte, error)
}

// Recorder receives run measurements.
type Recorder interface {
	ObserveStage(stage string, d time.Duration)
	ObserveRun(outcome string, d time.Duration)
	AddFeatures(kind string, n int)
}

// Progress is called before each stage with its 1-based position.
type Progress func(step, total int, stage string)

type nopRecorder struct{}

func (nopRecorder) ObserveStage(string, time.Duration) {}
func (nopRecorder) ObserveRun(string, time.Duration)   {}
func (nopRecorder) AddFeatures(string, int)            {}

// Pipeline runs area weighted average computations. It holds no per-run
// state and may be reused.
type Pipeline struct {
	engine   geometry.Engine
	logger   *zap.Logger
	recorder Recorder
	progress Progress
	renderer Renderer
	split    SplitOptions
	areaMode geometry.AreaMode
}

// Option configures a Pipeline.
type Option func(*Pipeline)

func WithLogger(l *zap.Logger) Option { return func(p *Pipeline) { p.logger = l } }

func WithRecorder(r Recorder) Option { return func(p *Pipeline) { p.recorder = r } }

func WithProgress(fn Progress) Option { return func(p *Pipeline) { p.progress = fn } }

// WithRenderer sets the narrative renderer. Without one, requested HTML is
// skipped with a warning.
func WithRenderer(r Renderer) Option { return func(p *Pipeline) { p.renderer = r } }

func WithSplitOptions(o SplitOptions) Option { return func(p *Pipeline) { p.split = o } }

func WithAreaMode(m geometry.AreaMode) Option { return func(p *Pipeline) { p.areaMode = m } }

// New returns a pipeline using engine for all geometric work.
func New(engine geometry.Engine, opts ...Option) *Pipeline {
	p := &Pipeline{
		engine:   engine,
		logger:   zap.NewNop(),
		recorder: nopRecorder{},
		areaMode: geometry.AreaPlanar,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Run executes every stage. On cancellation it returns a KindCanceled
// error wrapping the context error and no artifacts; any other failure is
// an *errors.Error naming the stage and, when known, the input feature.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Artifacts, error) {
	start := time.Now()
	art, err := p.run(ctx, req)
	outcome := "success"
	if err != nil {
		outcome = string(apperrors.KindOf(err))
		if outcome == "" {
			outcome = "error"
		}
		p.logger.Error("run failed", zap.Error(err), zap.Duration("duration", time.Since(start)))
	}
	p.recorder.ObserveRun(outcome, time.Since(start))
	return art, err
}

func (p *Pipeline) run(ctx context.Context, req Request) (*Artifacts, error) {
	step := 0
	stage := func(name string, fn func() error) error {
		if err := ctx.Err(); err != nil {
			return apperrors.Canceled(name, err)
		}
		step++
		if p.progress != nil {
			p.progress(step, len(Stages), name)
		}
		t := time.Now()
		err := fn()
		d := time.Since(t)
		p.recorder.ObserveStage(name, d)
		p.logger.Debug("stage finished", zap.String("stage", name), zap.Duration("duration", d), zap.Bool("ok", err == nil))
		return err
	}

	art := &Artifacts{}
	var (
		engine     geometry.Engine
		inputs     []InputFeature
		regions    []OverlayRegion
		fragments  []Fragment
		aggregates []AggregatedFeature
		rows       []ReportRow
	)

	err := stage(StageValidate, func() error {
		var err error
		if req, err = Validate(req); err != nil {
			return err
		}
		art.Warnings = append(art.Warnings, CRSWarnings(req.Input, req.Overlay)...)
		engine = geometry.ForMode(p.engine, p.areaMode, req.Input.CRS.IsGeographic())
		art.Stats.InputFeatures = len(req.Input.Features)
		art.Stats.OverlayFeatures = len(req.Overlay.Features)
		p.recorder.AddFeatures("input", art.Stats.InputFeatures)
		p.recorder.AddFeatures("overlay", art.Stats.OverlayFeatures)
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, w := range art.Warnings {
		p.logger.Warn(w.Message, zap.String("kind", string(w.Kind)))
	}

	if err := stage(StageAssignIDs, func() (err error) {
		inputs, err = AssignIDs(req.Input)
		return err
	}); err != nil {
		return nil, err
	}

	if err := stage(StageMeasure, func() (err error) {
		inputs, err = MeasureInputs(engine, inputs)
		return err
	}); err != nil {
		return nil, err
	}

	if err := stage(StageConsolidate, func() (err error) {
		if regions, err = Consolidate(engine, req.Overlay, req.Field, req.Additional); err != nil {
			return err
		}
		art.Stats.OverlayRegions = len(regions)
		p.logger.Info("overlay consolidated",
			zap.String("layer", req.Overlay.Name),
			zap.Int("features", len(req.Overlay.Features)),
			zap.Int("regions", len(regions)))
		return nil
	}); err != nil {
		return nil, err
	}

	if err := stage(StageSplit, func() (err error) {
		fragments, err = Split(engine, inputs, regions, p.split)
		art.Stats.Fragments = len(fragments)
		p.recorder.AddFeatures("fragment", len(fragments))
		return err
	}); err != nil {
		return nil, err
	}

	if err := stage(StageAggregate, func() (err error) {
		aggregates, err = Aggregate(inputs, regions, fragments, req.Field)
		for _, a := range aggregates {
			if len(a.Fragments) == 0 {
				art.Stats.Uncovered++
				p.logger.Debug("input feature has no overlap", zap.Int("input_feat_id", a.Input.ID))
			}
		}
		return err
	}); err != nil {
		return nil, err
	}

	if err := stage(StageRestore, func() error {
		column := ResultColumn(req.Input, req.Field)
		features, err := Restore(engine, aggregates, column)
		if err != nil {
			return err
		}
		art.Result = ResultLayer(req, features, column)
		return nil
	}); err != nil {
		return nil, err
	}

	if err := stage(StageReport, func() error {
		rows = BuildReport(aggregates, regions, req.Identifier)
		art.Report = ReportLayer(req, rows)
		return nil
	}); err != nil {
		return nil, err
	}

	if err := stage(StageNarrative, func() error {
		if !req.HTML {
			return nil
		}
		if p.renderer == nil {
			p.warn(art, WarningDependency, "no HTML renderer is available; the HTML report was skipped")
			return nil
		}
		html, err := p.renderer.Render(BuildNarrative(req, aggregates, rows))
		if err != nil {
			p.warn(art, WarningDependency, "HTML report skipped: "+err.Error())
			return nil
		}
		art.HTML = html
		return nil
	}); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, apperrors.Canceled("", err)
	}
	p.logger.Info("run finished",
		zap.String("result", art.Result.Name),
		zap.Int("input_features", art.Stats.InputFeatures),
		zap.Int("fragments", art.Stats.Fragments),
		zap.Int("uncovered", art.Stats.Uncovered),
		zap.Int("warnings", len(art.Warnings)))
	return art, nil
}

func (p *Pipeline) warn(art *Artifacts, kind WarningKind, msg string) {
	art.Warnings = append(art.Warnings, Warning{Kind: kind, Message: msg})
	p.logger.Warn(msg, zap.String("kind", string(kind)))
}
