package join

import (
	"fmt"
	"strconv"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/choropleth/internal/model"
)

func rec(key string) *model.PolygonRecord {
	return model.NewPolygonRecord(key, nil, nil)
}

func row(key string, values map[model.AttributeName]string) model.FactRow {
	return model.FactRow{Key: key, Values: values}
}

func TestJoin_AlamedaButte(t *testing.T) {
	alameda, butte := rec("Alameda"), rec("Butte")
	facts := []model.FactRow{row("Alameda", map[model.AttributeName]string{model.Population: "1670000"})}

	rep := Join([]*model.PolygonRecord{alameda, butte}, facts, model.Attributes())

	v, ok := alameda.Value(model.Population)
	require.True(t, ok)
	assert.InDelta(t, 1670000.0, v, 0)

	_, ok = butte.Value(model.Population)
	assert.False(t, ok)
	assert.False(t, butte.HasData())

	want := Report{Matched: 1, UnmatchedPolygons: []string{"Butte"}}
	if diff := cmp.Diff(want, rep); diff != "" {
		t.Errorf("report mismatch (-want +got):\n%s", diff)
	}
}

func TestJoin_UnparsableCellIsIsolated(t *testing.T) {
	modoc := rec("Modoc")
	facts := []model.FactRow{row("Modoc", map[model.AttributeName]string{
		model.Population:   "8,700",
		model.MedianIncome: "N/A",
		model.GDP:          "",
		model.MeanIncome:   "NaN",
	})}

	rep := Join([]*model.PolygonRecord{modoc}, facts, model.Attributes())

	v, ok := modoc.Value(model.Population)
	require.True(t, ok)
	assert.InDelta(t, 8700.0, v, 0)
	for _, attr := range []model.AttributeName{model.MedianIncome, model.GDP, model.MeanIncome, model.Unemployment} {
		_, ok := modoc.Value(attr)
		assert.False(t, ok, attr)
	}
	// N/A and NaN are invalid; an empty cell is simply missing.
	assert.Equal(t, 2, rep.InvalidCells)
}

func TestJoin_AllRecordsSharingAKey(t *testing.T) {
	a, b := rec("Los Angeles"), rec("Los Angeles")
	facts := []model.FactRow{row("Los Angeles", map[model.AttributeName]string{model.GDP: "710000000"})}

	rep := Join([]*model.PolygonRecord{a, b}, facts, []model.AttributeName{model.GDP})

	assert.Equal(t, 2, rep.Matched)
	for _, r := range []*model.PolygonRecord{a, b} {
		v, ok := r.Value(model.GDP)
		require.True(t, ok)
		assert.InDelta(t, 710000000.0, v, 0)
	}
}

func TestJoin_KeysAreCaseSensitive(t *testing.T) {
	r := rec("San Diego")
	rep := Join([]*model.PolygonRecord{r}, []model.FactRow{
		row("san diego", map[model.AttributeName]string{model.Population: "1"}),
		row("San Diego ", map[model.AttributeName]string{model.Population: "2"}),
	}, model.Attributes())

	assert.False(t, r.HasData())
	assert.Equal(t, []string{"San Diego ", "san diego"}, rep.UnmatchedFacts)
	assert.Equal(t, []string{"San Diego"}, rep.UnmatchedPolygons)
}

func TestJoin_DuplicateFactKeyLaterRowWins(t *testing.T) {
	r := rec("Inyo")
	rep := Join([]*model.PolygonRecord{r}, []model.FactRow{
		row("Inyo", map[model.AttributeName]string{model.Population: "18000", model.GDP: "900"}),
		row("Inyo", map[model.AttributeName]string{model.Population: "19000", model.GDP: "bad"}),
	}, []model.AttributeName{model.Population, model.GDP})

	v, _ := r.Value(model.Population)
	assert.InDelta(t, 19000.0, v, 0)
	_, ok := r.Value(model.GDP)
	assert.False(t, ok, "the later unparsable value clears the earlier one")
	assert.Equal(t, []string{"Inyo"}, rep.DuplicateFacts)
	assert.Equal(t, 1, rep.Matched)
}

func TestJoin_OnlyRequestedAttributes(t *testing.T) {
	r := rec("Lake")
	Join([]*model.PolygonRecord{r}, []model.FactRow{
		row("Lake", map[model.AttributeName]string{model.Population: "68000", model.GDP: "2000"}),
	}, []model.AttributeName{model.Population})

	assert.Equal(t, map[model.AttributeName]float64{model.Population: 68000}, r.Attributes)
}

func TestJoin_KeylessRecordsNeverJoin(t *testing.T) {
	r := rec("")
	rep := Join([]*model.PolygonRecord{r, nil}, []model.FactRow{
		row("", map[model.AttributeName]string{model.Population: "1"}),
	}, model.Attributes())

	assert.False(t, r.HasData())
	assert.Empty(t, rep.UnmatchedPolygons)
	assert.Equal(t, []string{""}, rep.UnmatchedFacts)
}

func TestJoin_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	key := func(i int) string { return fmt.Sprintf("County %d", i) }

	properties.Property("matched records carry the last fact value, unmatched records stay empty", prop.ForAll(
		func(polyKeys, factKeys []int, values []float64) bool {
			records := make([]*model.PolygonRecord, len(polyKeys))
			for i, k := range polyKeys {
				records[i] = rec(key(k))
			}

			facts := make([]model.FactRow, len(factKeys))
			last := map[string]float64{}
			for i, k := range factKeys {
				v := values[i%len(values)]
				facts[i] = row(key(k), map[model.AttributeName]string{
					model.Population: strconv.FormatFloat(v, 'g', -1, 64),
					model.GDP:        "n/a",
				})
				last[key(k)] = v
			}

			Join(records, facts, model.Attributes())

			for _, r := range records {
				want, matched := last[r.Key]
				got, ok := r.Value(model.Population)
				if matched != ok || (matched && got != want) {
					return false
				}
				if !matched && r.HasData() {
					return false
				}
				if _, ok := r.Value(model.GDP); ok {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 9)),
		gen.SliceOf(gen.IntRange(0, 9)),
		gen.SliceOfN(8, gen.Float64Range(-1e9, 1e9)),
	))

	properties.TestingRun(t)
}
