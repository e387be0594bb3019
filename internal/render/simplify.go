package render

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/simplify"
	"github.com/twpayne/go-geom"
)

// Simplify applies Douglas-Peucker to every ring of a polygonal geometry.
// Tolerance is in degrees; zero or negative returns g unchanged. Rings that
// would collapse below four positions keep their original coordinates.
func Simplify(g geom.T, tolerance float64) geom.T {
	if g == nil || tolerance <= 0 {
		return g
	}
	switch t := g.(type) {
	case *geom.Polygon:
		return simplifyPolygon(t, tolerance)
	case *geom.MultiPolygon:
		mp := geom.NewMultiPolygon(geom.XY)
		for i := range t.NumPolygons() {
			if err := mp.Push(simplifyPolygon(t.Polygon(i), tolerance)); err != nil {
				return g
			}
		}
		return mp
	default:
		return g
	}
}

func simplifyPolygon(p *geom.Polygon, tolerance float64) *geom.Polygon {
	out := geom.NewPolygon(geom.XY)
	for i := range p.NumLinearRings() {
		ring := p.LinearRing(i)
		flat := simplifyRing(ring.FlatCoords(), ring.Stride(), tolerance)
		if err := out.Push(geom.NewLinearRingFlat(geom.XY, flat)); err != nil {
			return p
		}
	}
	return out
}

func simplifyRing(flat []float64, stride int, tolerance float64) []float64 {
	n := len(flat) / stride
	ls := make(orb.LineString, 0, n)
	for i := range n {
		ls = append(ls, orb.Point{flat[i*stride], flat[i*stride+1]})
	}

	xy := func(pts orb.LineString) []float64 {
		out := make([]float64, 0, 2*len(pts))
		for _, pt := range pts {
			out = append(out, pt[0], pt[1])
		}
		return out
	}

	s, ok := simplify.DouglasPeucker(tolerance).Simplify(ls.Clone()).(orb.LineString)
	if !ok || len(s) < 4 {
		return xy(ls)
	}
	return xy(s)
}
