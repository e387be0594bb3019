package render

import (
	"math"
	"strconv"
	"strings"

	"github.com/twpayne/go-geom"
)

// PathData projects g and returns it as an SVG path "d" attribute. Points
// produce nothing; nil geometries produce "".
func PathData(g geom.T, proj *Projection) string {
	var b strings.Builder
	writeGeometry(&b, g, proj)
	return b.String()
}

func writeGeometry(b *strings.Builder, g geom.T, proj *Projection) {
	switch t := g.(type) {
	case nil:
	case *geom.Polygon:
		for i := range t.NumLinearRings() {
			r := t.LinearRing(i)
			writeCoords(b, r.FlatCoords(), r.Stride(), proj, true)
		}
	case *geom.MultiPolygon:
		for i := range t.NumPolygons() {
			writeGeometry(b, t.Polygon(i), proj)
		}
	case *geom.LineString:
		writeCoords(b, t.FlatCoords(), t.Stride(), proj, false)
	case *geom.MultiLineString:
		for i := range t.NumLineStrings() {
			writeGeometry(b, t.LineString(i), proj)
		}
	case *geom.GeometryCollection:
		for _, member := range t.Geoms() {
			writeGeometry(b, member, proj)
		}
	}
}

func writeCoords(b *strings.Builder, flat []float64, stride int, proj *Projection, closed bool) {
	n := len(flat) / stride
	if n < 2 {
		return
	}
	if closed && n > 1 && flat[0] == flat[(n-1)*stride] && flat[1] == flat[(n-1)*stride+1] {
		n-- // Z closes the ring
	}
	for i := range n {
		x, y := proj.Project(flat[i*stride], flat[i*stride+1])
		if i == 0 {
			b.WriteByte('M')
		} else {
			b.WriteByte('L')
		}
		b.WriteString(coord(x))
		b.WriteByte(',')
		b.WriteString(coord(y))
	}
	if closed {
		b.WriteByte('Z')
	}
}

// coord rounds to two decimals and drops trailing zeros.
func coord(v float64) string {
	r := math.Round(v*100) / 100
	if r == 0 {
		r = 0 // no "-0"
	}
	return strconv.FormatFloat(r, 'f', -1, 64)
}
