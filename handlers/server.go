// Package handlers exposes the pipeline and the geometry tools over HTTP.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	apperrors "github.com/bsaid97/go-area-weighted-average/errors"
	"github.com/bsaid97/go-area-weighted-average/geometry"
	"github.com/bsaid97/go-area-weighted-average/metrics"
	"github.com/bsaid97/go-area-weighted-average/pipeline"
)

// GeometryChecker validates and repairs single geometries.
type GeometryChecker interface {
	Validate(g geom.T) (bool, string, error)
	Repair(g geom.T) (geom.T, error)
}

// Options wires a Server.
type Options struct {
	Pipeline *pipeline.Pipeline
	Engine   geometry.Engine
	Checker  GeometryChecker
	Metrics  *metrics.Recorder
	Logger   *zap.Logger
	// AreaMode is recorded in run manifests.
	AreaMode       string
	MaxUploadBytes int64
}

type Server struct {
	pipeline  *pipeline.Pipeline
	engine    geometry.Engine
	checker   GeometryChecker
	metrics   *metrics.Recorder
	logger    *zap.Logger
	areaMode  string
	maxUpload int64
}

func NewServer(o Options) *Server {
	s := &Server{
		pipeline:  o.Pipeline,
		engine:    o.Engine,
		checker:   o.Checker,
		metrics:   o.Metrics,
		logger:    o.Logger,
		areaMode:  o.AreaMode,
		maxUpload: o.MaxUploadBytes,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.maxUpload <= 0 {
		s.maxUpload = 100 << 20
	}
	return s
}

// Routes registers every endpoint on a new mux.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/area-weighted-average", s.instrument("area-weighted-average", s.areaWeightedAverageHandler))
	mux.Handle("/dissolve", s.instrument("dissolve", s.dissolveHandler))
	mux.Handle("/check-geometry", s.instrument("check-geometry", s.checkGeometryHandler))
	mux.Handle("/v2/fix-geometry", s.instrument("fix-geometry", s.fixGeometryHandler))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}
	return mux
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument enforces POST, recovers panics and records the request.
func (s *Server) instrument(name string, fn http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		defer func() {
			if p := recover(); p != nil {
				s.logger.Error("panic recovered", zap.String("handler", name), zap.Any("panic", p))
				http.Error(rec, "Internal server error", http.StatusInternalServerError)
			}
			if s.metrics != nil {
				s.metrics.ObserveRequest(name, rec.code)
			}
			s.logger.Info("request",
				zap.String("handler", name),
				zap.Int("code", rec.code),
				zap.Duration("duration", time.Since(start)))
		}()

		if r.Method != http.MethodPost {
			http.Error(rec, "Invalid request method, only POST allowed", http.StatusMethodNotAllowed)
			return
		}
		fn(rec, r)
	})
}

type errorResponse struct {
	Kind      string `json:"kind"`
	Stage     string `json:"stage,omitempty"`
	FeatureID int    `json:"input_feat_id,omitempty"`
	Error     string `json:"error"`
}

func statusFor(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindValidation:
		return http.StatusBadRequest
	case apperrors.KindData:
		return http.StatusUnprocessableEntity
	case apperrors.KindCanceled:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) sendError(w http.ResponseWriter, err error) {
	resp := errorResponse{Kind: string(apperrors.KindOf(err)), Error: err.Error()}
	var e *apperrors.Error
	if apperrors.As(err, &e) {
		resp.Stage = e.Stage
		resp.FeatureID = e.FeatureID
	}
	if resp.Kind == "" {
		resp.Kind = string(apperrors.KindIO)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusFor(apperrors.Kind(resp.Kind)))
	json.NewEncoder(w).Encode(resp)
}

func sendResponse(w http.ResponseWriter, response []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(response)
}

func sendJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v)
}

func sendZipResponse(w http.ResponseWriter, zipData []byte, filename string) {
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(zipData)
}
