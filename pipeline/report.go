package pipeline

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/bsaid97/go-area-weighted-average/layer"
	"github.com/bsaid97/go-area-weighted-average/utils"
)

// Report layer column names.
const (
	ColumnInputID      = "input_feat_id"
	ColumnAreaCRSUnits = "area_crs_units"
	ColumnAreaPercent  = "area_prcnt"
)

// WeightedColumn is the name of the result column for field.
func WeightedColumn(field string) string {
	return "weighted_" + field
}

// BuildReport turns fragments into report rows ordered by input ID
// ascending, then area percent descending, then fragment order.
func BuildReport(aggregates []AggregatedFeature, regions []OverlayRegion, identifier string) []ReportRow {
	var rows []ReportRow
	for _, agg := range aggregates {
		label := layer.Null()
		if identifier != "" {
			label = agg.Input.Get(identifier)
		}
		start := len(rows)
		for _, f := range agg.Fragments {
			var pct float64
			if agg.Input.RawArea > 0 {
				pct = utils.RoundFloat(f.Area*100/agg.Input.RawArea, 5)
			}
			rows = append(rows, ReportRow{
				InputID:      agg.Input.ID,
				Label:        label,
				Average:      agg.Average,
				Fragment:     f,
				Attributes:   regions[f.Region].Attributes,
				AreaPercent:  pct,
				AreaCRSUnits: utils.RoundFloat(f.Area, 5),
			})
		}
		block := rows[start:]
		sort.SliceStable(block, func(i, j int) bool {
			return block[i].AreaPercent > block[j].AreaPercent
		})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].InputID < rows[j].InputID })
	return rows
}

// columnNamer hands out unique column names, suffixing clashes with _2, _3...
type columnNamer map[string]bool

func (n columnNamer) name(base string) string {
	name := base
	for i := 2; n[name]; i++ {
		name = base + "_" + strconv.Itoa(i)
	}
	n[name] = true
	return name
}

func fieldType(l *layer.Layer, name string, fallback layer.FieldType) layer.FieldType {
	if f, ok := l.Field(name); ok && f.Type != layer.FieldUnknown {
		return f.Type
	}
	return fallback
}

// ResultColumn is the name of the weighted average column in the result
// layer, suffixed when the input layer already has a field of that name.
func ResultColumn(input *layer.Layer, field string) string {
	names := columnNamer{}
	for _, f := range input.Fields {
		names.name(f.Name)
	}
	return names.name(WeightedColumn(field))
}

// ResultLayer assembles the result layer, named <input>_<field>: the input
// schema plus column.
func ResultLayer(req Request, features []layer.Feature, column string) *layer.Layer {
	fields := make([]layer.Field, 0, len(req.Input.Fields)+1)
	fields = append(fields, req.Input.Fields...)
	fields = append(fields, layer.Field{Name: column, Type: layer.FieldReal})
	return &layer.Layer{
		Name:     req.Input.Name + "_" + req.Field,
		CRS:      req.Input.CRS,
		Fields:   fields,
		Features: features,
	}
}

// ReportLayer assembles the report layer, one feature per row with the
// fragment geometry.
func ReportLayer(req Request, rows []ReportRow) *layer.Layer {
	names := columnNamer{}
	var fields []layer.Field
	add := func(base string, t layer.FieldType) string {
		n := names.name(base)
		fields = append(fields, layer.Field{Name: n, Type: t})
		return n
	}

	idCol := add(ColumnInputID, layer.FieldInteger)
	var identCol string
	if req.Identifier != "" {
		identCol = add(req.Identifier, fieldType(req.Input, req.Identifier, layer.FieldText))
	}
	avgCol := add(WeightedColumn(req.Field), layer.FieldReal)
	extraCols := make([]string, len(req.Additional))
	for i, a := range req.Additional {
		extraCols[i] = add(a, fieldType(req.Overlay, a, layer.FieldText))
	}
	fieldCol := add(req.Field, fieldType(req.Overlay, req.Field, layer.FieldReal))
	areaCol := add(ColumnAreaCRSUnits, layer.FieldReal)
	pctCol := add(ColumnAreaPercent, layer.FieldReal)

	features := make([]layer.Feature, len(rows))
	for i, r := range rows {
		attrs := map[string]layer.Value{
			idCol:    layer.Number(float64(r.InputID)),
			avgCol:   r.Average,
			fieldCol: r.Attributes[req.Field],
			areaCol:  layer.Number(r.AreaCRSUnits),
			pctCol:   layer.Number(r.AreaPercent),
		}
		if identCol != "" {
			attrs[identCol] = r.Label
		}
		for j, a := range req.Additional {
			attrs[extraCols[j]] = r.Attributes[a]
		}
		features[i] = layer.Feature{Geometry: r.Fragment.Geometry, Attributes: attrs}
	}
	return &layer.Layer{
		Name:     req.Input.Name + "_" + req.Field + "_report",
		CRS:      req.Input.CRS,
		Fields:   fields,
		Features: features,
	}
}

// Narrative is the content of the HTML report.
type Narrative struct {
	// Field is the averaged field.
	Field string
	// Columns are the table columns: additional fields, the averaged
	// field and the area percent.
	Columns []layer.Field
	Blocks  []Block
}

// Block summarizes one input feature.
type Block struct {
	InputID int
	Label   string
	Average layer.Value
	// Regions counts the distinct overlay regions intersecting the feature.
	Regions int
	Rows    [][]layer.Value
}

// BuildNarrative groups rows per input feature, one block per aggregate in
// ID order, including features without fragments.
func BuildNarrative(req Request, aggregates []AggregatedFeature, rows []ReportRow) Narrative {
	n := Narrative{Field: req.Field}
	for _, a := range req.Additional {
		n.Columns = append(n.Columns, layer.Field{Name: a, Type: fieldType(req.Overlay, a, layer.FieldText)})
	}
	n.Columns = append(n.Columns,
		layer.Field{Name: req.Field, Type: fieldType(req.Overlay, req.Field, layer.FieldReal)},
		layer.Field{Name: ColumnAreaPercent, Type: layer.FieldReal},
	)

	byInput := make(map[int][]ReportRow)
	for _, r := range rows {
		byInput[r.InputID] = append(byInput[r.InputID], r)
	}

	for _, agg := range aggregates {
		id := agg.Input.ID
		b := Block{InputID: id, Average: agg.Average}
		if req.Identifier != "" {
			b.Label = fmt.Sprintf("%d. %s", id, labelText(agg.Input.Get(req.Identifier)))
		} else {
			b.Label = fmt.Sprintf("Feature ID: %d", id)
		}
		regions := make(map[int]bool)
		for _, r := range byInput[id] {
			regions[r.Fragment.Region] = true
			row := make([]layer.Value, 0, len(n.Columns))
			for _, a := range req.Additional {
				row = append(row, r.Attributes[a])
			}
			row = append(row, r.Attributes[req.Field], layer.Number(r.AreaPercent))
			b.Rows = append(b.Rows, row)
		}
		b.Regions = len(regions)
		n.Blocks = append(n.Blocks, b)
	}
	sort.SliceStable(n.Blocks, func(i, j int) bool { return n.Blocks[i].InputID < n.Blocks[j].InputID })
	return n
}

func labelText(v layer.Value) string {
	if v.IsNull() {
		return "Null"
	}
	if n, ok := v.Float(); ok && n == float64(int64(n)) {
		return strconv.FormatInt(int64(n), 10)
	}
	return v.String()
}
