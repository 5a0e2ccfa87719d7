// Package report renders the narrative of a run as an HTML document.
package report

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"strconv"

	apperrors "github.com/bsaid97/go-area-weighted-average/errors"
	"github.com/bsaid97/go-area-weighted-average/layer"
	"github.com/bsaid97/go-area-weighted-average/pipeline"
)

const builtinTemplate = `<html><head>
<meta http-equiv="Content-Type" content="text/html; charset=utf-8" /></head><body>
{{- range .Blocks}}
<p><b>{{.Label}}</b><br>{{$.AverageColumn}}: {{.Average}}<br>count of distinct intersecting features: {{.Regions}}<br></p>
{{- if .Rows}}
<table border="1" class="dataframe">
<thead><tr style="text-align: right;">{{range $.Columns}}<th>{{.}}</th>{{end}}</tr></thead>
<tbody>
{{- range .Rows}}
<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>
{{- end}}
</tbody>
</table>
{{- end}}
<br>
{{- end}}
</body></html>
`

// Document is the data handed to the template.
type Document struct {
	Field         string
	AverageColumn string
	Columns       []string
	Blocks        []BlockView
}

// BlockView is one input feature with every value already formatted.
type BlockView struct {
	InputID int
	Label   string
	Average string
	Regions int
	Rows    [][]string
}

// HTMLRenderer implements pipeline.Renderer with html/template.
type HTMLRenderer struct {
	tmpl *template.Template
}

var _ pipeline.Renderer = (*HTMLRenderer)(nil)

// NewHTMLRenderer loads the template at path, or the built-in one when
// path is empty. If a custom template cannot be used the built-in
// renderer is returned together with a dependency error describing why.
func NewHTMLRenderer(path string) (*HTMLRenderer, error) {
	builtin := &HTMLRenderer{tmpl: template.Must(template.New("report").Parse(builtinTemplate))}
	if path == "" {
		return builtin, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return builtin, apperrors.Wrap(err, apperrors.KindDependency, pipeline.StageNarrative,
			"report template %s unavailable, using the built-in template", path)
	}
	tmpl, err := template.New("report").Parse(string(data))
	if err != nil {
		return builtin, apperrors.Wrap(err, apperrors.KindDependency, pipeline.StageNarrative,
			"report template %s does not parse, using the built-in template", path)
	}
	return &HTMLRenderer{tmpl: tmpl}, nil
}

// Render implements pipeline.Renderer.
func (r *HTMLRenderer) Render(n pipeline.Narrative) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, NewDocument(n)); err != nil {
		return nil, fmt.Errorf("failed to render report: %w", err)
	}
	return buf.Bytes(), nil
}

// NewDocument formats a narrative for display.
func NewDocument(n pipeline.Narrative) Document {
	doc := Document{Field: n.Field, AverageColumn: pipeline.WeightedColumn(n.Field)}
	for _, c := range n.Columns {
		doc.Columns = append(doc.Columns, c.Name)
	}
	for _, b := range n.Blocks {
		bv := BlockView{
			InputID: b.InputID,
			Label:   b.Label,
			Average: FormatValue(b.Average, layer.FieldReal),
			Regions: b.Regions,
		}
		for _, row := range b.Rows {
			cells := make([]string, len(row))
			for i, v := range row {
				t := layer.FieldReal
				if i < len(n.Columns) {
					t = n.Columns[i].Type
				}
				cells[i] = FormatValue(v, t)
			}
			bv.Rows = append(bv.Rows, cells)
		}
		doc.Blocks = append(doc.Blocks, bv)
	}
	return doc
}

// FormatValue renders v for a column of type t: "Null" for null, integers
// without decimals, other numbers with five decimals.
func FormatValue(v layer.Value, t layer.FieldType) string {
	if v.IsNull() {
		return "Null"
	}
	n, ok := v.Float()
	if !ok {
		return v.String()
	}
	if t == layer.FieldInteger && n == float64(int64(n)) {
		return strconv.FormatInt(int64(n), 10)
	}
	return strconv.FormatFloat(n, 'f', 5, 64)
}
