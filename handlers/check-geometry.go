package handlers

import (
	"bytes"
	"io"
	"net/http"

	apperrors "github.com/bsaid97/go-area-weighted-average/errors"
	"github.com/bsaid97/go-area-weighted-average/geometry"
	"github.com/bsaid97/go-area-weighted-average/layer"
	"github.com/bsaid97/go-area-weighted-average/utils"
)

type Error struct {
	Ref          int    `json:"ref"`
	ErrorMessage string `json:"errorMessage"`
}

// CheckGeometry lists the features of l whose geometry is invalid.
func CheckGeometry(checker GeometryChecker, l *layer.Layer) ([]Error, error) {
	errors := []Error{}
	for i, f := range l.Features {
		if f.Geometry == nil {
			continue
		}
		valid, reason, err := checker.Validate(f.Geometry)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.KindGeometry, "", "failed to check feature %d", i)
		}
		if !valid {
			errors = append(errors, Error{Ref: i, ErrorMessage: reason})
		}
	}
	return errors, nil
}

// FixGeometry repairs invalid geometries and truncates coordinates to
// utils.PRECISION. Features left without polygonal geometry are dropped.
func FixGeometry(checker GeometryChecker, l *layer.Layer) (*layer.Layer, error) {
	out := &layer.Layer{Name: l.Name, CRS: l.CRS, Fields: l.Fields}
	for i, f := range l.Features {
		if f.Geometry == nil {
			continue
		}
		g := f.Geometry
		valid, _, err := checker.Validate(g)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.KindGeometry, "", "failed to check feature %d", i)
		}
		if !valid {
			if g, err = checker.Repair(g); err != nil {
				return nil, apperrors.Wrap(err, apperrors.KindGeometry, "", "failed to repair feature %d", i)
			}
		}
		g = utils.TruncateGeometry(g)
		// Truncation can collapse or cross edges again.
		if valid, _, err = checker.Validate(g); err == nil && !valid {
			if g, err = checker.Repair(g); err != nil {
				return nil, apperrors.Wrap(err, apperrors.KindGeometry, "", "failed to repair feature %d", i)
			}
		}
		if geometry.IsEmpty(g) {
			continue
		}
		f.Geometry = g
		out.Features = append(out.Features, f)
	}
	return out, nil
}

func (s *Server) readCollection(w http.ResponseWriter, r *http.Request) (*layer.Layer, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.sendError(w, apperrors.Wrap(err, apperrors.KindIO, "", "error reading request body"))
		return nil, false
	}
	defer r.Body.Close()
	l, err := layer.ReadGeoJSON(bytes.NewReader(body), "")
	if err != nil {
		s.sendError(w, apperrors.Wrap(err, apperrors.KindValidation, "", "invalid feature collection"))
		return nil, false
	}
	return l, true
}

func (s *Server) checkGeometryHandler(w http.ResponseWriter, r *http.Request) {
	l, ok := s.readCollection(w, r)
	if !ok {
		return
	}
	errors, err := CheckGeometry(s.checker, l)
	if err != nil {
		s.sendError(w, err)
		return
	}
	sendJSON(w, errors)
}

func (s *Server) fixGeometryHandler(w http.ResponseWriter, r *http.Request) {
	l, ok := s.readCollection(w, r)
	if !ok {
		return
	}
	fixed, err := FixGeometry(s.checker, l)
	if err != nil {
		s.sendError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := layer.WriteGeoJSON(&buf, fixed); err != nil {
		s.sendError(w, apperrors.Wrap(err, apperrors.KindIO, "", "failed to encode result"))
		return
	}
	sendResponse(w, buf.Bytes())
}
