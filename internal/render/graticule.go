package render

import (
	"math"

	"github.com/twpayne/go-geom"
)

// Graticule is a lon/lat grid and its outline, both in degrees.
type Graticule struct {
	Lines   *geom.MultiLineString
	Outline *geom.Polygon
}

// fallbackExtent frames California when no geometry bounds are known.
var fallbackExtent = geom.NewBounds(geom.XY).Set(-125, 32, -114, 42)

// NewGraticule builds a grid with the given step over extent, widened to
// whole steps. Lines are sampled every degree so they curve under the
// projection.
func NewGraticule(extent *geom.Bounds, step float64) Graticule {
	if step <= 0 {
		step = 5
	}
	if extent == nil || extent.IsEmpty() {
		extent = fallbackExtent
	}
	x0 := math.Floor(extent.Min(0)/step) * step
	x1 := math.Ceil(extent.Max(0)/step) * step
	y0 := math.Floor(extent.Min(1)/step) * step
	y1 := math.Ceil(extent.Max(1)/step) * step
	sample := math.Min(1, step)

	lines := geom.NewMultiLineString(geom.XY)
	for x := x0; x <= x1+1e-9; x += step {
		_ = lines.Push(geom.NewLineStringFlat(geom.XY, meridian(x, y0, y1, sample)))
	}
	for y := y0; y <= y1+1e-9; y += step {
		_ = lines.Push(geom.NewLineStringFlat(geom.XY, parallel(y, x0, x1, sample)))
	}

	// outline: up the west edge, east along the north, down the east, west along the south
	var ring []float64
	ring = append(ring, meridian(x0, y0, y1, sample)...)
	ring = append(ring, parallel(y1, x0, x1, sample)[2:]...)
	east := meridian(x1, y0, y1, sample)
	for i := len(east)/2 - 2; i >= 0; i-- {
		ring = append(ring, east[2*i], east[2*i+1])
	}
	south := parallel(y0, x0, x1, sample)
	for i := len(south)/2 - 2; i >= 0; i-- {
		ring = append(ring, south[2*i], south[2*i+1])
	}
	outline := geom.NewPolygon(geom.XY)
	_ = outline.Push(geom.NewLinearRingFlat(geom.XY, ring))

	return Graticule{Lines: lines, Outline: outline}
}

func meridian(x, y0, y1, sample float64) []float64 {
	var flat []float64
	for y := y0; y < y1; y += sample {
		flat = append(flat, x, y)
	}
	return append(flat, x, y1)
}

func parallel(y, x0, x1, sample float64) []float64 {
	var flat []float64
	for x := x0; x < x1; x += sample {
		flat = append(flat, x, y)
	}
	return append(flat, x1, y)
}
