package geometry

import (
	"math"
	"sort"

	"github.com/twpayne/go-geom"
)

// maxCellsPerAxis bounds the grid so a tiny cell size cannot explode the
// number of cells a large geometry is registered in.
const maxCellsPerAxis = 1024

type cellKey struct{ x, y int }

// SpatialIndex is a uniform grid over geometry bounds. Geometries are
// registered in every cell their bounding box touches.
type SpatialIndex struct {
	cellSize float64
	origin   geom.Coord
	last     cellKey
	bounds   map[int]*geom.Bounds
	grid     map[cellKey][]int
}

// NewSpatialIndex builds an index over gs, keyed by slice position. A
// cellSize of zero or less picks one from the data.
func NewSpatialIndex(gs []geom.T, cellSize float64) *SpatialIndex {
	si := &SpatialIndex{
		bounds: make(map[int]*geom.Bounds, len(gs)),
		grid:   make(map[cellKey][]int),
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for i, g := range gs {
		if b := Bounds(g); b != nil {
			si.bounds[i] = b
			minX, minY = math.Min(minX, b.Min(0)), math.Min(minY, b.Min(1))
			maxX, maxY = math.Max(maxX, b.Max(0)), math.Max(maxY, b.Max(1))
		}
	}
	if len(si.bounds) == 0 {
		si.cellSize = 1
		return si
	}
	si.origin = geom.Coord{minX, minY}
	si.cellSize = cellSize
	if si.cellSize <= 0 {
		si.cellSize = autoCellSize(si.bounds)
	}
	span := math.Max(maxX-minX, maxY-minY)
	if floor := span / maxCellsPerAxis; si.cellSize < floor {
		si.cellSize = floor
	}
	if si.cellSize <= 0 {
		si.cellSize = 1
	}
	si.last = si.cell(maxX, maxY)

	for i := range gs {
		if b, ok := si.bounds[i]; ok {
			si.addToGrid(i, b)
		}
	}
	return si
}

// autoCellSize uses the mean bounding box edge of the indexed geometries.
func autoCellSize(bounds map[int]*geom.Bounds) float64 {
	var sum float64
	for _, b := range bounds {
		sum += math.Max(b.Max(0)-b.Min(0), b.Max(1)-b.Min(1))
	}
	return sum / float64(len(bounds))
}

func (si *SpatialIndex) cell(x, y float64) cellKey {
	return cellKey{
		x: int(math.Floor((x - si.origin[0]) / si.cellSize)),
		y: int(math.Floor((y - si.origin[1]) / si.cellSize)),
	}
}

func (si *SpatialIndex) addToGrid(index int, b *geom.Bounds) {
	lo := si.cell(b.Min(0), b.Min(1))
	hi := si.cell(b.Max(0), b.Max(1))
	for x := lo.x; x <= hi.x; x++ {
		for y := lo.y; y <= hi.y; y++ {
			k := cellKey{x, y}
			si.grid[k] = append(si.grid[k], index)
		}
	}
}

// Candidates returns the indexes of geometries whose bounding boxes overlap
// the bounds of g, ascending.
func (si *SpatialIndex) Candidates(g geom.T) []int {
	b := Bounds(g)
	if b == nil || len(si.bounds) == 0 {
		return nil
	}
	lo := si.cell(b.Min(0), b.Min(1))
	hi := si.cell(b.Max(0), b.Max(1))
	lo.x, lo.y = max(lo.x, 0), max(lo.y, 0)
	hi.x, hi.y = min(hi.x, si.last.x), min(hi.y, si.last.y)

	seen := make(map[int]bool)
	var out []int
	for x := lo.x; x <= hi.x; x++ {
		for y := lo.y; y <= hi.y; y++ {
			for _, i := range si.grid[cellKey{x, y}] {
				if seen[i] {
					continue
				}
				seen[i] = true
				if b.Overlaps(geom.XY, si.bounds[i]) {
					out = append(out, i)
				}
			}
		}
	}
	sort.Ints(out)
	return out
}

// Len returns the number of indexed geometries.
func (si *SpatialIndex) Len() int {
	return len(si.bounds)
}
