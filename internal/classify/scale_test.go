package classify

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/choropleth/internal/model"
)

func records(attr model.AttributeName, values ...float64) []*model.PolygonRecord {
	out := make([]*model.PolygonRecord, len(values))
	for i, v := range values {
		r := model.NewPolygonRecord(string(rune('A'+i)), nil, nil)
		r.Set(attr, v)
		out[i] = r
	}
	return out
}

func TestBuild_NaturalBreaks(t *testing.T) {
	s := Build(records(model.Population, 10, 12, 11, 90, 95, 92, 50), model.Population, 3)

	assert.Equal(t, []float64{50, 90}, s.Breaks)
	assert.Equal(t, []int{3, 1, 3}, s.ClusterSizes)
	assert.Equal(t, 3, s.Classes())
	assert.Equal(t, 7, s.Count)
	assert.InDelta(t, 10.0, s.Min, 0)
	assert.InDelta(t, 95.0, s.Max, 0)

	assert.Equal(t, 0, s.Class(10))
	assert.Equal(t, 0, s.Class(49.99))
	assert.Equal(t, 1, s.Class(50))
	assert.Equal(t, 1, s.Class(89))
	assert.Equal(t, 2, s.Class(90))
	assert.Equal(t, 2, s.Class(1e12))
	assert.Equal(t, 0, s.Class(-1e12))
}

func TestBuild_AbsentValuesExcluded(t *testing.T) {
	recs := records(model.GDP, 1, 2, 100)
	missing := model.NewPolygonRecord("Sierra", nil, nil)
	recs = append(recs, missing)

	s := Build(recs, model.GDP, 5)
	assert.Equal(t, 3, s.Count)
	assert.Equal(t, []float64{2, 100}, s.Breaks)
	assert.Equal(t, NoData, s.ClassOf(missing))
	assert.Equal(t, NoData, s.ClassOf(nil))
	assert.Equal(t, 2, s.ClassOf(recs[2]))
}

func TestBuild_NonFiniteStoredValuesIgnored(t *testing.T) {
	recs := records(model.GDP, 1, 5)
	bad := model.NewPolygonRecord("Bad", nil, nil)
	bad.Set(model.GDP, math.NaN())
	recs = append(recs, bad)

	s := Build(recs, model.GDP, 5)
	assert.Equal(t, 2, s.Count)
	assert.Equal(t, NoData, s.ClassOf(bad))
}

func TestBuild_Degenerate(t *testing.T) {
	empty := Build(nil, model.Population, 5)
	assert.Empty(t, empty.Breaks)
	assert.Equal(t, 1, empty.Classes())
	assert.Equal(t, 0, empty.Class(42))
	assert.Equal(t, NoData, empty.Class(math.NaN()))

	one := Build(records(model.Population, 3, 3, 3), model.Population, 5)
	assert.Empty(t, one.Breaks)
	assert.Equal(t, []int{3}, one.ClusterSizes)
	assert.Equal(t, 0, one.Class(3))

	clamped := Build(records(model.Population, 1, 2), model.Population, 0)
	assert.Equal(t, 1, clamped.K)
	assert.Empty(t, clamped.Breaks)
}

func TestScale_ClassNonFinite(t *testing.T) {
	s := &Scale{Breaks: []float64{1, 2}}
	assert.Equal(t, NoData, s.Class(math.NaN()))
	assert.Equal(t, NoData, s.Class(math.Inf(1)))
	assert.Equal(t, NoData, s.Class(math.Inf(-1)))
}

func TestScale_Assign(t *testing.T) {
	recs := records(model.Population, 10, 12, 11, 90, 95, 92, 50)
	recs = append(recs, model.NewPolygonRecord("", nil, nil), model.NewPolygonRecord("Z", nil, nil))
	s := Build(recs, model.Population, 3)

	classes := s.Assign(recs)
	assert.Len(t, classes, 8)
	assert.Equal(t, 0, classes["A"])
	assert.Equal(t, 2, classes["D"])
	assert.Equal(t, 1, classes["G"])
	assert.Equal(t, NoData, classes["Z"])
}

func TestScale_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	build := func(values []float64, k int) *Scale {
		return Build(records(model.MedianIncome, values...), model.MedianIncome, k)
	}

	properties.Property("breaks are strictly ascending and classes stay in range", prop.ForAll(
		func(values []float64, k int, probe float64) bool {
			s := build(values, k)
			for i := 1; i < len(s.Breaks); i++ {
				if s.Breaks[i] <= s.Breaks[i-1] {
					return false
				}
			}
			for _, v := range append(values, probe) {
				c := s.Class(v)
				if c < 0 || c > k-1 {
					return false
				}
			}
			return s.Class(math.NaN()) == NoData
		},
		gen.SliceOf(gen.Float64Range(-1e6, 1e6)),
		gen.IntRange(1, 7),
		gen.Float64Range(-2e6, 2e6),
	))

	properties.Property("class is monotonic in value", prop.ForAll(
		func(values []float64, a, b float64) bool {
			s := build(values, 5)
			if a > b {
				a, b = b, a
			}
			return s.Class(a) <= s.Class(b)
		},
		gen.SliceOf(gen.Float64Range(0, 1000)),
		gen.Float64Range(-10, 1010),
		gen.Float64Range(-10, 1010),
	))

	properties.Property("rebuilding yields identical breaks and classes", prop.ForAll(
		func(values []float64) bool {
			a, b := build(values, 5), build(values, 5)
			if len(a.Breaks) != len(b.Breaks) {
				return false
			}
			for i := range a.Breaks {
				if a.Breaks[i] != b.Breaks[i] {
					return false
				}
			}
			for _, v := range values {
				if a.Class(v) != b.Class(v) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 20).Map(func(i int) float64 { return float64(i) })),
	))

	properties.TestingRun(t)
}

func TestBuild_IndependentOfRecordOrder(t *testing.T) {
	a := Build(records(model.GDP, 5, 1, 9, 3, 7), model.GDP, 3)
	b := Build(records(model.GDP, 9, 7, 5, 3, 1), model.GDP, 3)
	require.Equal(t, a.Breaks, b.Breaks)
}
