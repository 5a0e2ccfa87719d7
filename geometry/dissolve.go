package geometry

import (
	"fmt"
	"strings"

	"github.com/twpayne/go-geom"

	"github.com/bsaid97/go-area-weighted-average/layer"
)

// Unioner merges geometries.
type Unioner interface {
	Union(gs []geom.T) (geom.T, error)
}

// GroupKey returns the grouping key of f over keys. Nulls compare equal.
func GroupKey(f layer.Feature, keys []string) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = f.Get(k).Key()
	}
	return strings.Join(parts, "\x1f")
}

// GroupByKeys partitions feature indexes by their key values. Groups come
// out in order of first occurrence, members ascending.
func GroupByKeys(features []layer.Feature, keys []string) [][]int {
	pos := make(map[string]int)
	var groups [][]int
	for i, f := range features {
		k := GroupKey(f, keys)
		g, ok := pos[k]
		if !ok {
			g = len(groups)
			pos[k] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], i)
	}
	return groups
}

// Dissolve groups features by keys and unions each group with u. Only the key
// attributes are kept.
func Dissolve(u Unioner, features []layer.Feature, keys []string) ([]Dissolved, error) {
	groups := GroupByKeys(features, keys)
	out := make([]Dissolved, 0, len(groups))
	for _, members := range groups {
		gs := make([]geom.T, 0, len(members))
		for _, m := range members {
			if g := features[m].Geometry; g != nil {
				gs = append(gs, g)
			}
		}
		merged, err := u.Union(gs)
		if err != nil {
			return nil, fmt.Errorf("error dissolving features %v: %w", members, err)
		}
		first := features[members[0]]
		attrs := make(map[string]layer.Value, len(keys))
		for _, k := range keys {
			attrs[k] = first.Get(k)
		}
		out = append(out, Dissolved{
			Feature: layer.Feature{Geometry: merged, Attributes: attrs},
			Members: members,
		})
	}
	return out, nil
}
