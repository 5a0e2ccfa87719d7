package handlers

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/bsaid97/go-area-weighted-average/errors"
	"github.com/bsaid97/go-area-weighted-average/layer"
	"github.com/bsaid97/go-area-weighted-average/utils"
)

// dissolveHandler merges the features of a posted FeatureCollection that
// share the values of the comma separated "by" query fields. Without "by"
// everything is merged into one feature.
func (s *Server) dissolveHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.sendError(w, apperrors.Wrap(err, apperrors.KindIO, "", "error reading request body"))
		return
	}
	defer r.Body.Close()

	l, err := layer.ReadGeoJSON(bytes.NewReader(body), "dissolved")
	if err != nil {
		s.sendError(w, apperrors.Wrap(err, apperrors.KindValidation, "", "invalid feature collection"))
		return
	}

	var keys []string
	for _, k := range strings.Split(r.URL.Query().Get("by"), ",") {
		if k = strings.TrimSpace(k); k == "" {
			continue
		}
		if _, ok := l.Field(k); !ok {
			s.sendError(w, apperrors.Validation("", "dissolve field %q not found", k))
			return
		}
		keys = append(keys, k)
	}

	groups, err := s.engine.DissolveByGroup(l.Features, keys)
	if err != nil {
		s.sendError(w, apperrors.Wrap(err, apperrors.KindGeometry, "", "dissolve failed"))
		return
	}

	out := &layer.Layer{Name: l.Name, CRS: l.CRS}
	for _, k := range keys {
		f, _ := l.Field(k)
		out.Fields = append(out.Fields, f)
	}
	for _, g := range groups {
		f := g.Feature
		f.Geometry = utils.TruncateGeometry(f.Geometry)
		out.Features = append(out.Features, f)
	}

	var buf bytes.Buffer
	if err := layer.WriteGeoJSON(&buf, out); err != nil {
		s.sendError(w, apperrors.Wrap(err, apperrors.KindIO, "", "failed to encode result"))
		return
	}
	sendResponse(w, buf.Bytes())
}
