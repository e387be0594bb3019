package render

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/choropleth/internal/classify"
	"github.com/sells-group/choropleth/internal/model"
)

// recorder captures the calls a repaint makes.
type recorder struct {
	calls []string
}

func (r *recorder) Begin(attr model.AttributeName, _ *classify.Scale) {
	r.calls = append(r.calls, "begin "+attr.String())
}

func (r *recorder) PaintPolygon(rec *model.PolygonRecord, class int) {
	r.calls = append(r.calls, fmt.Sprintf("polygon %s %d", rec.Key, class))
}

func (r *recorder) PaintBar(rec *model.PolygonRecord, class int, value float64) {
	r.calls = append(r.calls, fmt.Sprintf("bar %s %d %v", rec.Key, class, value))
}

func (r *recorder) DrawThresholdAxis(breaks []float64) {
	r.calls = append(r.calls, fmt.Sprintf("axis %v", breaks))
}

func (r *recorder) End() error {
	r.calls = append(r.calls, "end")
	return nil
}

func record(key string, values map[model.AttributeName]float64) *model.PolygonRecord {
	r := model.NewPolygonRecord(key, nil, nil)
	for a, v := range values {
		r.Set(a, v)
	}
	return r
}

func TestBars(t *testing.T) {
	pop := model.Population
	records := []*model.PolygonRecord{
		record("Butte", map[model.AttributeName]float64{pop: 200}),
		record("Alameda", map[model.AttributeName]float64{pop: 100}),
		record("Colusa", nil),
		record("Alpine", map[model.AttributeName]float64{pop: 100}),
		record("Butte", map[model.AttributeName]float64{pop: 200}), // second island
		record("", map[model.AttributeName]float64{pop: 5}),
	}

	bars := Bars(records, pop)
	require.Len(t, bars, 3)
	keys := []string{bars[0].Record.Key, bars[1].Record.Key, bars[2].Record.Key}
	assert.Equal(t, []string{"Alameda", "Alpine", "Butte"}, keys)
	assert.InDelta(t, 200, bars[2].Value, 0)
}

func TestPaint_CallOrder(t *testing.T) {
	pop := model.Population
	records := []*model.PolygonRecord{
		record("Butte", map[model.AttributeName]float64{pop: 90}),
		record("Alameda", map[model.AttributeName]float64{pop: 10}),
		record("Colusa", nil),
	}
	scale := classify.Build(records, pop, 2)

	rec := &recorder{}
	require.NoError(t, Paint(rec, records, scale))
	assert.Equal(t, []string{
		"begin Population",
		"polygon Butte 1",
		"polygon Alameda 0",
		"polygon Colusa -1",
		"bar Alameda 0 10",
		"bar Butte 1 90",
		"axis [90]",
		"end",
	}, rec.calls)
}
