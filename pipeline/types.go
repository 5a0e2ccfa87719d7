package pipeline

import (
	"github.com/twpayne/go-geom"

	"github.com/bsaid97/go-area-weighted-average/layer"
)

// InputFeature is an input layer feature with its run identifier and the
// area it had before any intersection.
type InputFeature struct {
	ID int
	layer.Feature
	RawArea float64
}

// OverlayRegion is one consolidated overlay group. Value is the averaged
// field; Attributes holds the averaged field and the additional fields.
// Sources are the 1-based overlay feature numbers merged into the region.
type OverlayRegion struct {
	Index      int
	Geometry   geom.T
	Value      layer.Value
	Attributes map[string]layer.Value
	Sources    []int
}

// Fragment is the overlap of one input feature with one overlay region.
// Order is the position of the fragment in the split output.
type Fragment struct {
	InputID  int
	Region   int
	Geometry geom.T
	Area     float64
	Order    int
}

// AggregatedFeature holds the weighted average of one input feature.
// Average is null when the feature has no fragments or no area. Weights[i]
// is value × area of Fragments[i].
type AggregatedFeature struct {
	Input     InputFeature
	Average   layer.Value
	Fragments []Fragment
	Weights   []float64
}

// ReportRow describes one fragment's share of its input feature.
type ReportRow struct {
	InputID int
	// Label is the identifier field value, null without an identifier field.
	Label        layer.Value
	Average      layer.Value
	Fragment     Fragment
	Attributes   map[string]layer.Value
	AreaPercent  float64
	AreaCRSUnits float64
}

// Request selects what a run computes.
type Request struct {
	Input   *layer.Layer
	Overlay *layer.Layer
	// Field is the numeric overlay field to average.
	Field string
	// Identifier optionally names an input field used to label report blocks.
	Identifier string
	// Additional lists overlay fields kept in the report.
	Additional []string
	// HTML asks for the narrative document.
	HTML bool
}

// WarningKind classifies a non-fatal condition.
type WarningKind string

const (
	WarningCRS        WarningKind = "crs"
	WarningDependency WarningKind = "dependency"
)

// Warning is a non-fatal condition met during a run.
type Warning struct {
	Kind    WarningKind `yaml:"kind" json:"kind"`
	Message string      `yaml:"message" json:"message"`
}

// Stats counts what a run processed.
type Stats struct {
	InputFeatures   int `yaml:"input_features" json:"input_features"`
	OverlayFeatures int `yaml:"overlay_features" json:"overlay_features"`
	OverlayRegions  int `yaml:"overlay_regions" json:"overlay_regions"`
	Fragments       int `yaml:"fragments" json:"fragments"`
	Uncovered       int `yaml:"uncovered" json:"uncovered"`
}

// Artifacts is the output of a successful run. HTML is nil when the
// narrative was not requested or could not be rendered.
type Artifacts struct {
	Result   *layer.Layer
	Report   *layer.Layer
	HTML     []byte
	Warnings []Warning
	Stats    Stats
}
