package render

import (
	"bytes"
	"fmt"
	"html"
	"math"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/choropleth/internal/classify"
	"github.com/sells-group/choropleth/internal/config"
	"github.com/sells-group/choropleth/internal/model"
)

// Chart layout.
const (
	chartLeftPadding  = 50
	chartRightPadding = 2
	chartVertPadding  = 5
	chartTopMargin    = 20
	chartTitleX       = 100
	chartTitleY       = 40
	axisTickCount     = 10
)

// Transition timings for recolouring and bar movement.
const (
	BarStaggerMillis   = 20
	BarDurationMillis  = 500
	FillDurationMillis = 1000
)

// Options configures an SVGPainter.
type Options struct {
	Width             float64
	Height            float64
	ChartWidth        float64
	ChartHeight       float64
	GraticuleStep     float64
	SimplifyTolerance float64
	Palette           Palette
	Projection        config.ProjectionConfig
	// SurroundingKey names the property used for the class of context polygons.
	SurroundingKey string
}

// OptionsFromConfig maps the render configuration onto Options.
func OptionsFromConfig(cfg config.RenderConfig) Options {
	pal := DefaultPalette()
	if len(cfg.Palette) > 0 {
		pal.Colors = cfg.Palette
	}
	if cfg.NoDataColor != "" {
		pal.NoData = cfg.NoDataColor
	}
	return Options{
		Width:             cfg.Width,
		Height:            cfg.Height,
		ChartWidth:        cfg.ChartWidth,
		ChartHeight:       cfg.ChartHeight,
		GraticuleStep:     cfg.GraticuleStep,
		SimplifyTolerance: cfg.SimplifyTolerance,
		Palette:           pal,
		Projection:        cfg.Projection,
	}
}

// Documents is the output of one repaint.
type Documents struct {
	Attribute model.AttributeName
	Map       []byte
	Chart     []byte
}

type paintedPolygon struct {
	rec   *model.PolygonRecord
	class int
}

type paintedBar struct {
	rec   *model.PolygonRecord
	class int
	value float64
}

// SVGPainter renders each repaint as a map document and a bar chart document.
// It is safe for concurrent use; a repaint in progress is not visible until End.
type SVGPainter struct {
	opts Options
	proj *Projection

	// static layers, rendered once
	gratBackground string
	gratLines      string
	context        string

	mu    sync.Mutex
	paths map[*model.PolygonRecord]string

	attr   model.AttributeName
	scale  *classify.Scale
	polys  []paintedPolygon
	bars   []paintedBar
	breaks []float64

	docs    Documents
	painted bool
}

// NewSVGPainter prepares the projection, graticule and surrounding-context
// layer. extent bounds the graticule; nil falls back to California.
func NewSVGPainter(opts Options, surrounding []*model.PolygonRecord, extent *geom.Bounds) (*SVGPainter, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, eris.Errorf("render: map size must be positive, got %vx%v", opts.Width, opts.Height)
	}
	if opts.ChartWidth <= chartLeftPadding+chartRightPadding || opts.ChartHeight <= 2*chartVertPadding+chartTopMargin {
		return nil, eris.Errorf("render: chart size %vx%v is too small", opts.ChartWidth, opts.ChartHeight)
	}
	if len(opts.Palette.Colors) == 0 {
		opts.Palette = DefaultPalette()
	}
	if opts.SurroundingKey == "" {
		opts.SurroundingKey = "name"
	}

	proj, err := NewProjection(opts.Projection)
	if err != nil {
		return nil, err
	}

	p := &SVGPainter{
		opts:  opts,
		proj:  proj,
		paths: make(map[*model.PolygonRecord]string),
	}

	grat := NewGraticule(extent, opts.GraticuleStep)
	p.gratBackground = PathData(grat.Outline, proj)
	p.gratLines = PathData(grat.Lines, proj)

	var b strings.Builder
	for _, r := range surrounding {
		d := PathData(Simplify(r.Geometry, opts.SimplifyTolerance), proj)
		if d == "" {
			continue
		}
		name := r.Key
		if v, ok := r.Properties[opts.SurroundingKey].(string); ok && v != "" {
			name = v
		}
		fmt.Fprintf(&b, `<path class="states %s" d="%s"/>`, classToken(name), d)
		b.WriteByte('\n')
	}
	p.context = b.String()

	zap.L().Debug("svg painter ready",
		zap.String("component", "render"),
		zap.Int("surrounding", len(surrounding)),
		zap.Float64("graticule_step", opts.GraticuleStep),
	)
	return p, nil
}

// Begin starts a repaint.
func (p *SVGPainter) Begin(attr model.AttributeName, scale *classify.Scale) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attr = attr
	p.scale = scale
	p.polys = p.polys[:0]
	p.bars = p.bars[:0]
	p.breaks = nil
}

// PaintPolygon records the class of one enumeration unit.
func (p *SVGPainter) PaintPolygon(rec *model.PolygonRecord, class int) {
	if rec == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.polys = append(p.polys, paintedPolygon{rec: rec, class: class})
}

// PaintBar records one chart bar. Bars are drawn in call order.
func (p *SVGPainter) PaintBar(rec *model.PolygonRecord, class int, value float64) {
	if rec == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bars = append(p.bars, paintedBar{rec: rec, class: class, value: value})
}

// DrawThresholdAxis records the class breaks for the legend.
func (p *SVGPainter) DrawThresholdAxis(breaks []float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.breaks = append([]float64(nil), breaks...)
}

// End renders the recorded repaint into both documents.
func (p *SVGPainter) End() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.scale == nil {
		return eris.New("render: End without Begin")
	}
	p.docs = Documents{
		Attribute: p.attr,
		Map:       p.renderMap(),
		Chart:     p.renderChart(),
	}
	p.painted = true

	zap.L().Debug("repainted",
		zap.String("component", "render"),
		zap.String("attribute", p.attr.String()),
		zap.Int("polygons", len(p.polys)),
		zap.Int("bars", len(p.bars)),
		zap.Int("map_bytes", len(p.docs.Map)),
	)
	return nil
}

// Documents returns the last completed repaint.
func (p *SVGPainter) Documents() (Documents, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.docs, p.painted
}

func (p *SVGPainter) classes() int {
	if p.scale == nil {
		return 1
	}
	return p.scale.Classes()
}

func (p *SVGPainter) pathFor(rec *model.PolygonRecord) string {
	if d, ok := p.paths[rec]; ok {
		return d
	}
	d := PathData(Simplify(rec.Geometry, p.opts.SimplifyTolerance), p.proj)
	p.paths[rec] = d
	return d
}

func (p *SVGPainter) renderMap() []byte {
	var b bytes.Buffer
	w, h := p.opts.Width, p.opts.Height
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" class="map" width="%s" height="%s" viewBox="0 0 %s %s">`,
		coord(w), coord(h), coord(w), coord(h))
	b.WriteByte('\n')
	fmt.Fprintf(&b, "<style>.counties{transition:fill %dms}</style>\n", FillDurationMillis)
	fmt.Fprintf(&b, `<path class="gratBackground" d="%s"/>`+"\n", p.gratBackground)
	fmt.Fprintf(&b, `<path class="gratLines" d="%s"/>`+"\n", p.gratLines)
	b.WriteString(p.context)

	classes := p.classes()
	for _, pp := range p.polys {
		d := p.pathFor(pp.rec)
		if d == "" {
			continue
		}
		label := pp.rec.Key
		if v, ok := pp.rec.Value(p.attr); ok {
			label += ": " + FormatValue(v)
		} else {
			label += ": no data"
		}
		fmt.Fprintf(&b, `<path class="counties %s" data-class="%d" data-key="%s" fill="%s" d="%s"><title>%s</title></path>`,
			classToken(pp.rec.Key), pp.class, html.EscapeString(pp.rec.Key), p.opts.Palette.Color(pp.class, classes), d, html.EscapeString(label))
		b.WriteByte('\n')
	}

	p.writeLegend(&b)
	b.WriteString("</svg>\n")
	return b.Bytes()
}

// LegendLabels describes each class of breaks, lowest first.
func LegendLabels(breaks []float64) []string {
	if len(breaks) == 0 {
		return []string{"all values"}
	}
	labels := make([]string, 0, len(breaks)+1)
	labels = append(labels, "under "+FormatValue(breaks[0]))
	for i := 1; i < len(breaks); i++ {
		labels = append(labels, FormatValue(breaks[i-1])+" to "+FormatValue(breaks[i]))
	}
	return append(labels, FormatValue(breaks[len(breaks)-1])+" and over")
}

func (p *SVGPainter) writeLegend(b *bytes.Buffer) {
	const swatch, gap = 18, 4
	labels := LegendLabels(p.breaks)
	rows := len(labels) + 1
	y0 := p.opts.Height - float64(rows*(swatch+gap)) - 20

	fmt.Fprintf(b, `<g class="legend" transform="translate(20,%s)">`+"\n", coord(y0))
	fmt.Fprintf(b, `<text class="legendTitle" x="0" y="-8">%s</text>`+"\n", html.EscapeString(p.attr.String()))
	for i, label := range labels {
		y := i * (swatch + gap)
		fmt.Fprintf(b, `<rect x="0" y="%d" width="%d" height="%d" fill="%s"/>`, y, swatch, swatch, p.opts.Palette.Color(i, len(labels)))
		fmt.Fprintf(b, `<text x="%d" y="%d">%s</text>`+"\n", swatch+6, y+swatch-4, html.EscapeString(label))
	}
	y := len(labels) * (swatch + gap)
	fmt.Fprintf(b, `<rect x="0" y="%d" width="%d" height="%d" fill="%s"/>`, y, swatch, swatch, p.opts.Palette.NoData)
	fmt.Fprintf(b, `<text x="%d" y="%d">no data</text>`+"\n", swatch+6, y+swatch-4)
	b.WriteString("</g>\n")
}

func (p *SVGPainter) renderChart() []byte {
	var b bytes.Buffer
	w, h := p.opts.ChartWidth, p.opts.ChartHeight
	innerW := w - chartLeftPadding - chartRightPadding
	innerH := h - 2*chartVertPadding
	translate := fmt.Sprintf("translate(%d,%d)", chartLeftPadding, chartVertPadding)

	maxV := 0.0
	for _, bar := range p.bars {
		maxV = math.Max(maxV, bar.value)
	}
	if maxV <= 0 {
		maxV = 1
	}
	y := func(v float64) float64 {
		return innerH - v/maxV*(innerH-chartTopMargin)
	}

	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" class="chart" width="%s" height="%s" viewBox="0 0 %s %s">`,
		coord(w), coord(h), coord(w), coord(h))
	b.WriteByte('\n')
	fmt.Fprintf(&b, "<style>.bar{transition:y %dms,height %dms,fill %dms}</style>\n",
		BarDurationMillis, BarDurationMillis, BarDurationMillis)
	fmt.Fprintf(&b, `<rect class="chartBackground" width="%s" height="%s" transform="%s"/>`+"\n",
		coord(innerW), coord(innerH), translate)

	classes := p.classes()
	if n := len(p.bars); n > 0 {
		slot := innerW / float64(n)
		for i, bar := range p.bars {
			top := y(bar.value)
			fmt.Fprintf(&b, `<rect class="bar %s" x="%s" y="%s" width="%s" height="%s" fill="%s" style="transition-delay:%dms"><title>%s</title></rect>`,
				classToken(bar.rec.Key),
				coord(float64(i)*slot+chartLeftPadding),
				coord(top+chartVertPadding),
				coord(math.Max(0, slot-1)),
				coord(innerH-top),
				p.opts.Palette.Color(bar.class, classes),
				i*BarStaggerMillis,
				html.EscapeString(bar.rec.Key+": "+FormatValue(bar.value)),
			)
			b.WriteByte('\n')
		}
	}

	fmt.Fprintf(&b, `<text class="chartTitle" x="%d" y="%d">%s</text>`+"\n",
		chartTitleX, chartTitleY, html.EscapeString(p.attr.String()))

	fmt.Fprintf(&b, `<g class="axis" transform="%s">`+"\n", translate)
	fmt.Fprintf(&b, `<line x1="0" y1="%s" x2="0" y2="%s" stroke="currentColor"/>`+"\n", coord(y(0)), coord(y(maxV)))
	for _, t := range Ticks(0, maxV, axisTickCount) {
		ty := coord(y(t))
		fmt.Fprintf(&b, `<g class="tick" transform="translate(0,%s)"><line x2="-6" stroke="currentColor"/><text x="-9" dy="0.32em" text-anchor="end">%s</text></g>`,
			ty, FormatValue(t))
		b.WriteByte('\n')
	}
	b.WriteString("</g>\n")

	fmt.Fprintf(&b, `<rect class="chartFrame" width="%s" height="%s" transform="%s" fill="none"/>`+"\n",
		coord(innerW), coord(innerH), translate)
	b.WriteString("</svg>\n")
	return b.Bytes()
}

// Ticks returns round tick values covering [start, stop], roughly count of
// them, at a step of 1, 2 or 5 times a power of ten.
func Ticks(start, stop float64, count int) []float64 {
	if count < 1 || !(stop > start) || !model.Finite(start) || !model.Finite(stop) {
		return []float64{start}
	}
	raw := (stop - start) / float64(count)
	power := math.Floor(math.Log10(raw))
	step := math.Pow(10, power)
	switch e := raw / step; {
	case e >= math.Sqrt(50):
		step *= 10
	case e >= math.Sqrt(10):
		step *= 5
	case e >= math.Sqrt(2):
		step *= 2
	}

	lo := math.Ceil(start / step)
	hi := math.Floor(stop / step)
	ticks := make([]float64, 0, int(hi-lo)+1)
	for i := lo; i <= hi; i++ {
		v := i * step
		if power < 0 {
			// avoid 0.30000000000000004
			scale := math.Pow(10, -power+1)
			v = math.Round(v*scale) / scale
		}
		ticks = append(ticks, v)
	}
	return ticks
}

// classToken turns a name into a single CSS class token.
func classToken(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "unknown"
	}
	return b.String()
}
