package classify

import (
	"sort"

	"github.com/sells-group/choropleth/internal/model"
)

// NoData is the class of absent or non-finite values.
const NoData = -1

// Scale is a threshold scale over one attribute. Values below Breaks[0] are
// class 0; a value v is in class i when exactly i thresholds are <= v.
type Scale struct {
	Attribute model.AttributeName `json:"attribute" yaml:"attribute"`
	// K is the requested number of classes.
	K int `json:"k" yaml:"k"`
	// Breaks are strictly ascending.
	Breaks       []float64 `json:"breaks" yaml:"breaks"`
	ClusterSizes []int     `json:"cluster_sizes" yaml:"cluster_sizes"`
	Count        int       `json:"count" yaml:"count"`
	Min          float64   `json:"min" yaml:"min"`
	Max          float64   `json:"max" yaml:"max"`
}

// Build classifies the defined, finite values of attr across records into at
// most k classes. It never fails: with no values the scale has no breaks and
// every finite value falls in class 0.
func Build(records []*model.PolygonRecord, attr model.AttributeName, k int) *Scale {
	if k < 1 {
		k = 1
	}
	s := &Scale{Attribute: attr, K: k}

	values := make([]float64, 0, len(records))
	for _, r := range records {
		if v, ok := r.Value(attr); ok && model.Finite(v) {
			values = append(values, v)
		}
	}
	s.Count = len(values)
	if len(values) == 0 {
		return s
	}

	clusters := Ckmeans(values, k)
	s.Min = clusters[0][0]
	last := clusters[len(clusters)-1]
	s.Max = last[len(last)-1]

	for i, cl := range clusters {
		s.ClusterSizes = append(s.ClusterSizes, len(cl))
		if i == 0 {
			continue
		}
		if n := len(s.Breaks); n > 0 && s.Breaks[n-1] >= cl[0] {
			continue
		}
		s.Breaks = append(s.Breaks, cl[0])
	}
	return s
}

// Classes is the number of numeric classes the scale can return.
func (s *Scale) Classes() int {
	return len(s.Breaks) + 1
}

// Class maps v onto [0, Classes()-1], or NoData for NaN and infinities.
func (s *Scale) Class(v float64) int {
	if !model.Finite(v) {
		return NoData
	}
	return sort.Search(len(s.Breaks), func(i int) bool { return s.Breaks[i] > v })
}

// ClassOf classifies the scale's attribute on r.
func (s *Scale) ClassOf(r *model.PolygonRecord) int {
	v, ok := r.Value(s.Attribute)
	if !ok {
		return NoData
	}
	return s.Class(v)
}

// Assign classifies every keyed record. Records sharing a key share a value,
// so the first record wins.
func (s *Scale) Assign(records []*model.PolygonRecord) map[string]int {
	out := make(map[string]int, len(records))
	for _, r := range records {
		if r == nil || r.Key == "" {
			continue
		}
		if _, done := out[r.Key]; done {
			continue
		}
		out[r.Key] = s.ClassOf(r)
	}
	return out
}
