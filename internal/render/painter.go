// Package render draws classified polygon records. The Painter interface is
// the boundary the selection controller repaints through; SVGPainter is the
// implementation behind the CLI and the HTTP server.
package render

import (
	"sort"

	"github.com/sells-group/choropleth/internal/classify"
	"github.com/sells-group/choropleth/internal/model"
)

// Painter receives one complete repaint between Begin and End.
type Painter interface {
	Begin(attr model.AttributeName, scale *classify.Scale)
	PaintPolygon(rec *model.PolygonRecord, class int)
	PaintBar(rec *model.PolygonRecord, class int, value float64)
	DrawThresholdAxis(breaks []float64)
	End() error
}

// Bar is one chart bar.
type Bar struct {
	Record *model.PolygonRecord
	Value  float64
}

// Bars returns one bar per keyed record with a finite value for attr, sorted
// ascending by value and then by key. Records sharing a key yield one bar.
func Bars(records []*model.PolygonRecord, attr model.AttributeName) []Bar {
	seen := make(map[string]bool, len(records))
	bars := make([]Bar, 0, len(records))
	for _, r := range records {
		if r == nil || r.Key == "" || seen[r.Key] {
			continue
		}
		seen[r.Key] = true
		if v, ok := r.Value(attr); ok && model.Finite(v) {
			bars = append(bars, Bar{Record: r, Value: v})
		}
	}
	sort.SliceStable(bars, func(i, j int) bool {
		if bars[i].Value != bars[j].Value {
			return bars[i].Value < bars[j].Value
		}
		return bars[i].Record.Key < bars[j].Record.Key
	})
	return bars
}

// Paint drives p through one repaint of records under scale: every polygon,
// then the bars, then the threshold axis.
func Paint(p Painter, records []*model.PolygonRecord, scale *classify.Scale) error {
	p.Begin(scale.Attribute, scale)
	for _, r := range records {
		p.PaintPolygon(r, scale.ClassOf(r))
	}
	for _, b := range Bars(records, scale.Attribute) {
		p.PaintBar(b.Record, scale.Class(b.Value), b.Value)
	}
	p.DrawThresholdAxis(scale.Breaks)
	return p.End()
}
