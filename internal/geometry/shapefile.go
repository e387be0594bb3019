package geometry

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/choropleth/internal/model"
)

// LoadShapefile reads polygon records from a .shp file and its .dbf sidecar.
// keyField is matched case-insensitively against the DBF field names; every
// field becomes a string property.
func LoadShapefile(path, keyField string) ([]*model.PolygonRecord, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "geometry: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	names := make([]string, len(fields))
	keyIdx := -1
	for i, f := range fields {
		names[i] = strings.TrimRight(f.String(), "\x00")
		if strings.EqualFold(names[i], keyField) {
			keyIdx = i
		}
	}
	if keyIdx < 0 {
		zap.L().Warn("geometry: key field not in shapefile",
			zap.String("component", "geometry"),
			zap.String("path", path),
			zap.String("key_field", keyField),
		)
	}

	var records []*model.PolygonRecord
	var unsupported int
	for reader.Next() {
		_, shape := reader.Shape()

		props := make(map[string]any, len(names))
		for i, name := range names {
			props[name] = strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
		}
		key := ""
		if keyIdx >= 0 {
			key, _ = props[names[keyIdx]].(string)
		}

		g := shapeToGeom(shape)
		if g == nil && shape != nil {
			unsupported++
		}
		records = append(records, model.NewPolygonRecord(key, g, props))
	}

	if unsupported > 0 {
		zap.L().Debug("geometry: shapefile records without usable geometry",
			zap.String("path", path),
			zap.Int("count", unsupported),
		)
	}
	return records, nil
}

// shapeToGeom converts polygon shapes. Other shape types yield nil.
func shapeToGeom(shape shp.Shape) geom.T {
	p, ok := shape.(*shp.Polygon)
	if !ok || p == nil {
		return nil
	}
	return polygonToMultiPolygon(p)
}

// polygonToMultiPolygon groups shapefile rings into polygons. Shapefile outer
// rings wind clockwise; a counter-clockwise ring is a hole in the polygon
// opened by the preceding outer ring.
func polygonToMultiPolygon(p *shp.Polygon) geom.T {
	if p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY)
	var current *geom.Polygon
	flush := func() {
		if current == nil {
			return
		}
		if err := mp.Push(current); err != nil {
			zap.L().Debug("geometry: skipping malformed polygon", zap.Error(err))
		}
		current = nil
	}

	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}
		if start < 0 || end > int32(len(p.Points)) || end-start < 3 {
			continue
		}

		flat := make([]float64, 0, 2*(end-start))
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}
		ring := geom.NewLinearRingFlat(geom.XY, flat)

		if signedArea(flat) <= 0 || current == nil {
			flush()
			current = geom.NewPolygon(geom.XY)
		}
		if err := current.Push(ring); err != nil {
			zap.L().Debug("geometry: skipping malformed ring", zap.Int32("part", i), zap.Error(err))
		}
	}
	flush()

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

// signedArea is the shoelace area of a flat XY ring; negative when clockwise.
func signedArea(flat []float64) float64 {
	n := len(flat) / 2
	var sum float64
	for i := range n {
		j := (i + 1) % n
		sum += flat[2*i]*flat[2*j+1] - flat[2*j]*flat[2*i+1]
	}
	return sum / 2
}
