package render

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/choropleth/internal/config"
)

const epsilon = 1e-6

// Projection is a rotated, centered conic equal-area (Albers) projection from
// lon/lat degrees to screen pixels, y pointing down.
type Projection struct {
	raw    func(lambda, phi float64) (float64, float64)
	rotate float64 // radians added to longitude
	k      float64
	tx, ty float64
	cx, cy float64 // raw projection of the center
}

// DefaultProjectionConfig frames California.
func DefaultProjectionConfig() config.ProjectionConfig {
	return config.ProjectionConfig{
		Parallels: []float64{33, 45},
		Rotate:    []float64{120, 0},
		Center:    []float64{-10, 34},
		Scale:     5500,
		Translate: []float64{-270, 780},
	}
}

// NewProjection builds the projection. Only the longitude component of
// Rotate is applied.
func NewProjection(cfg config.ProjectionConfig) (*Projection, error) {
	if len(cfg.Parallels) != 2 || len(cfg.Rotate) < 1 || len(cfg.Center) != 2 || len(cfg.Translate) != 2 {
		return nil, eris.New("render: projection needs parallels, rotate, center and translate")
	}
	if cfg.Scale <= 0 {
		return nil, eris.Errorf("render: projection scale must be positive, got %v", cfg.Scale)
	}

	p := &Projection{
		raw:    conicEqualArea(radians(cfg.Parallels[0]), radians(cfg.Parallels[1])),
		rotate: radians(cfg.Rotate[0]),
		k:      cfg.Scale,
		tx:     cfg.Translate[0],
		ty:     cfg.Translate[1],
	}
	p.cx, p.cy = p.raw(radians(cfg.Center[0]), radians(cfg.Center[1]))
	return p, nil
}

// Project maps a lon/lat position to pixels.
func (p *Projection) Project(lon, lat float64) (float64, float64) {
	lambda := radians(lon) + p.rotate
	switch {
	case lambda > math.Pi:
		lambda -= 2 * math.Pi
	case lambda < -math.Pi:
		lambda += 2 * math.Pi
	}
	x, y := p.raw(lambda, radians(lat))
	return p.tx + p.k*(x-p.cx), p.ty - p.k*(y-p.cy)
}

func conicEqualArea(phi0, phi1 float64) func(float64, float64) (float64, float64) {
	sy0 := math.Sin(phi0)
	n := (sy0 + math.Sin(phi1)) / 2
	if math.Abs(n) < epsilon {
		// symmetric parallels degenerate to the cylindrical case
		cosPhi0 := math.Cos(phi0)
		return func(lambda, phi float64) (float64, float64) {
			return lambda * cosPhi0, math.Sin(phi) / cosPhi0
		}
	}

	c := 1 + sy0*(2*n-sy0)
	r0 := math.Sqrt(c) / n
	return func(lambda, phi float64) (float64, float64) {
		r := math.Sqrt(math.Max(0, c-2*n*math.Sin(phi))) / n
		a := lambda * n
		return r * math.Sin(a), r0 - r*math.Cos(a)
	}
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
