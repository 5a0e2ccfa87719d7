// Command awa computes area weighted averages of an overlay field over the
// features of an input polygon layer, from the command line (awa run) or as
// an HTTP service (awa serve).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	apperrors "github.com/bsaid97/go-area-weighted-average/errors"
	"github.com/bsaid97/go-area-weighted-average/config"
	"github.com/bsaid97/go-area-weighted-average/geometry"
	"github.com/bsaid97/go-area-weighted-average/logging"
	"github.com/bsaid97/go-area-weighted-average/metrics"
	"github.com/bsaid97/go-area-weighted-average/pipeline"
	"github.com/bsaid97/go-area-weighted-average/report"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "awa",
		Short:         "Area weighted averages of polygon layers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "YAML configuration file")
	root.AddCommand(newRunCmd(&configPath), newServeCmd(&configPath))
	return root
}

func exitCode(err error) int {
	switch apperrors.KindOf(err) {
	case apperrors.KindValidation:
		return 2
	case apperrors.KindData:
		return 3
	case apperrors.KindCanceled:
		return 130
	}
	return 1
}

// app holds what both commands build from the configuration.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	recorder *metrics.Recorder
	engine   *geometry.GEOSEngine
	renderer *report.HTMLRenderer
	// warnings met while setting up, reported with the run.
	warnings []pipeline.Warning
}

func newApp(configPath, areaMode string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if areaMode != "" {
		cfg.Geometry.AreaMode = areaMode
		if err := cfg.Validate(); err != nil {
			return nil, apperrors.Wrap(err, apperrors.KindValidation, "", "invalid --area-mode")
		}
	}
	logger, err := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		logger:   logger,
		recorder: metrics.NewRecorder(),
		engine:   geometry.NewGEOSEngine(cfg.Geometry.Repair),
	}
	a.renderer, err = report.NewHTMLRenderer(cfg.Report.Template)
	if err != nil {
		logger.Warn("report template unavailable", zap.Error(err))
		a.warnings = append(a.warnings, pipeline.Warning{Kind: pipeline.WarningDependency, Message: err.Error()})
	}
	return a, nil
}

func (a *app) pipeline(extra ...pipeline.Option) *pipeline.Pipeline {
	opts := []pipeline.Option{
		pipeline.WithLogger(a.logger),
		pipeline.WithRecorder(a.recorder),
		pipeline.WithRenderer(a.renderer),
		pipeline.WithAreaMode(a.cfg.AreaMode()),
		pipeline.WithSplitOptions(pipeline.SplitOptions{
			MinFragmentArea: a.cfg.Geometry.MinFragmentArea,
			CellSize:        a.cfg.Geometry.IndexCellSize,
		}),
	}
	return pipeline.New(a.engine, append(opts, extra...)...)
}
