package handlers

import (
	"bytes"
	"net/http"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	apperrors "github.com/bsaid97/go-area-weighted-average/errors"
	"github.com/bsaid97/go-area-weighted-average/layer"
	"github.com/bsaid97/go-area-weighted-average/pipeline"
	"github.com/bsaid97/go-area-weighted-average/report"
	"github.com/bsaid97/go-area-weighted-average/utils"
)

// areaWeightedAverageHandler runs the pipeline on two uploaded GeoJSON
// layers. Form fields: input, overlay (files), field, identifier,
// additional (repeated or comma separated) and html. The response is a zip
// of both layers as GeoJSON and shapefile, the HTML report and a manifest.
func (s *Server) areaWeightedAverageHandler(w http.ResponseWriter, r *http.Request) {
	form, err := utils.ReadMultiPartForm(r, s.maxUpload, "input", "overlay")
	if err != nil {
		s.sendError(w, apperrors.Wrap(err, apperrors.KindValidation, "", "invalid upload"))
		return
	}

	input, err := uploadedLayer(form, "input")
	if err != nil {
		s.sendError(w, err)
		return
	}
	overlay, err := uploadedLayer(form, "overlay")
	if err != nil {
		s.sendError(w, err)
		return
	}

	req := pipeline.Request{
		Input:      input,
		Overlay:    overlay,
		Field:      form.Value("field"),
		Identifier: form.Value("identifier"),
		Additional: form.List("additional"),
		HTML:       form.Bool("html"),
	}
	if req.Field != layer.FileName(req.Field) {
		s.sendError(w, apperrors.Validation("", "field %q cannot name an output file", req.Field))
		return
	}
	s.logger.Info("area weighted average request",
		zap.String("input", input.Name),
		zap.String("overlay", overlay.Name),
		zap.String("field", req.Field))

	art, err := s.pipeline.Run(r.Context(), req)
	if err != nil {
		s.sendError(w, err)
		return
	}

	manifest := report.NewManifest(req, s.areaMode)
	manifest.Record(art)
	var extra []utils.ZipFile
	for _, l := range []*layer.Layer{art.Result, art.Report} {
		manifest.Artifacts = append(manifest.Artifacts, l.Name+".geojson", l.Name+".shp")
	}
	if art.HTML != nil {
		extra = append(extra, utils.ZipFile{Name: "report.html", Data: art.HTML})
		manifest.Artifacts = append(manifest.Artifacts, "report.html")
	}
	data, err := manifest.Marshal()
	if err != nil {
		s.sendError(w, apperrors.Wrap(err, apperrors.KindIO, "", "failed to build manifest"))
		return
	}
	extra = append(extra, utils.ZipFile{Name: "manifest.yaml", Data: data})

	zipData, err := utils.GenerateShapefileZip([]*layer.Layer{art.Result, art.Report}, extra...)
	if err != nil {
		s.sendError(w, apperrors.Wrap(err, apperrors.KindIO, "", "failed to bundle artifacts"))
		return
	}
	sendZipResponse(w, zipData, layer.FileName(art.Result.Name)+".zip")
}

// uploadedLayer decodes the GeoJSON upload under key. The layer is named
// after the uploaded file.
func uploadedLayer(form utils.MultipartResult, key string) (*layer.Layer, error) {
	data, ok := form.Files[key]
	if !ok {
		return nil, apperrors.Validation("", "no %s layer was uploaded", key)
	}
	name := key
	if fn := form.Names[key]; fn != "" {
		name = strings.TrimSuffix(filepath.Base(fn), filepath.Ext(fn))
	}
	l, err := layer.ReadGeoJSON(bytes.NewReader(data), name)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindValidation, "", "invalid %s layer", key)
	}
	return l, nil
}
